package vm

import (
	"fmt"
	"sort"
)

// ---------------------------------------------------------------------------
// Function: a unit of callable code
// ---------------------------------------------------------------------------

// Function is one callable unit of a program. The label is the unit of
// addressing for CAL; FrameSize is the number of local stack bytes reserved
// for each activation.
type Function struct {
	Label        byte          `cbor:"1,keyasint"`
	FrameSize    byte          `cbor:"2,keyasint"`
	Instructions []Instruction `cbor:"3,keyasint"`
}

// ---------------------------------------------------------------------------
// FunctionBuilder: helper for constructing functions
// ---------------------------------------------------------------------------

// FunctionBuilder helps construct a function instruction by instruction.
// It is the programmatic equivalent of the assembler and is used heavily
// by tests.
type FunctionBuilder struct {
	fn Function
}

// NewFunctionBuilder creates a builder for a function with the given label
// and frame size.
func NewFunctionBuilder(label, frameSize byte) *FunctionBuilder {
	return &FunctionBuilder{fn: Function{Label: label, FrameSize: frameSize}}
}

// Emit appends an instruction with no operands.
func (b *FunctionBuilder) Emit(op Opcode) *FunctionBuilder {
	b.fn.Instructions = append(b.fn.Instructions, Instruction{Op: op})
	return b
}

// Emit1 appends an instruction with one operand.
func (b *FunctionBuilder) Emit1(op Opcode, arg1 Arg) *FunctionBuilder {
	b.fn.Instructions = append(b.fn.Instructions, Instruction{Op: op, Arg1: arg1})
	return b
}

// Emit2 appends an instruction with two operands.
func (b *FunctionBuilder) Emit2(op Opcode, arg1, arg2 Arg) *FunctionBuilder {
	b.fn.Instructions = append(b.fn.Instructions, Instruction{Op: op, Arg1: arg1, Arg2: arg2})
	return b
}

// Build returns the constructed function.
func (b *FunctionBuilder) Build() *Function {
	fn := b.fn
	return &fn
}

// Operand constructors, mirroring the assembly syntax.

// Val returns a literal operand.
func Val(v byte) Arg { return Arg{Mode: ModeVAL, Value: v} }

// Reg returns a register operand.
func Reg(v byte) Arg { return Arg{Mode: ModeREG, Value: v} }

// Stk returns a frame-symbol operand.
func Stk(v byte) Arg { return Arg{Mode: ModeSTACK, Value: v} }

// Ptr returns a pointer operand.
func Ptr(v byte) Arg { return Arg{Mode: ModePTR, Value: v} }

// ---------------------------------------------------------------------------
// Program: a validated function table
// ---------------------------------------------------------------------------

// Program is the input structure the machine executes: a table of functions
// keyed by label. A program is only executable once Validate has accepted it.
type Program struct {
	Functions map[byte]*Function `cbor:"1,keyasint"`
}

// NewProgram creates an empty program.
func NewProgram() *Program {
	return &Program{Functions: make(map[byte]*Function)}
}

// Add registers a function under its label.
func (p *Program) Add(fn *Function) {
	if p.Functions == nil {
		p.Functions = make(map[byte]*Function)
	}
	p.Functions[fn.Label] = fn
}

// FunctionsByLayout returns the functions in descending label order, the
// deterministic order in which they are laid into the flat instruction
// stream.
func (p *Program) FunctionsByLayout() []*Function {
	fns := make([]*Function, 0, len(p.Functions))
	for _, fn := range p.Functions {
		fns = append(fns, fn)
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i].Label > fns[j].Label })
	return fns
}

// Validate checks every load invariant against the given configuration:
// labels in range and consistent, no empty function, every function ends in
// RET, per-function and total instruction limits, register operands in
// range, and the presence of the entry function.
func (p *Program) Validate(cfg Config) error {
	if _, ok := p.Functions[cfg.EntryLabel]; !ok {
		return fmt.Errorf("%w (label %d)", ErrNoEntryFunction, cfg.EntryLabel)
	}

	total := 0
	for label, fn := range p.Functions {
		if fn.Label != label {
			return fmt.Errorf("%w: function %d registered under label %d",
				ErrDuplicateLabel, fn.Label, label)
		}
		if int(label) >= cfg.MaxFunctions {
			return fmt.Errorf("%w: label %d (max %d)",
				ErrLabelOutOfRange, label, cfg.MaxFunctions-1)
		}
		if len(fn.Instructions) == 0 {
			return fmt.Errorf("%w: function %d", ErrEmptyFunction, label)
		}
		if len(fn.Instructions) > cfg.MaxFunctionInstructions {
			return fmt.Errorf("%w: function %d has %d instructions (max %d)",
				ErrFunctionTooLarge, label, len(fn.Instructions), cfg.MaxFunctionInstructions)
		}
		if fn.Instructions[len(fn.Instructions)-1].Op != OpRET {
			return fmt.Errorf("%w %d", ErrMissingReturn, label)
		}
		if int(fn.FrameSize) > cfg.stackCapacity() {
			return fmt.Errorf("%w: function %d frame size %d (capacity %d)",
				ErrFrameTooLarge, label, fn.FrameSize, cfg.stackCapacity())
		}
		for i, inst := range fn.Instructions {
			if err := checkRegisters(inst, cfg.NumRegisters); err != nil {
				return fmt.Errorf("function %d instruction %d: %w", label, i, err)
			}
			if inst.Op == OpCAL && inst.Arg1.Mode == ModeVAL {
				if _, ok := p.Functions[inst.Arg1.Value]; !ok {
					return fmt.Errorf("function %d instruction %d: %w %d",
						label, i, ErrUnknownFunction, inst.Arg1.Value)
				}
			}
		}
		total += len(fn.Instructions)
	}

	if total > cfg.MaxInstructionsTotal {
		return fmt.Errorf("%w: %d instructions (max %d)",
			ErrProgramTooLarge, total, cfg.MaxInstructionsTotal)
	}
	return nil
}

// checkRegisters rejects REG operands naming a register the machine does not
// have.
func checkRegisters(inst Instruction, numRegisters int) error {
	for _, arg := range [2]Arg{inst.Arg1, inst.Arg2} {
		if arg.Mode == ModeREG && int(arg.Value) >= numRegisters {
			return fmt.Errorf("%w: register %d (max %d)",
				ErrRegisterRange, arg.Value, numRegisters-1)
		}
	}
	return nil
}
