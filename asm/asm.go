// Package asm assembles picovm text assembly into a program.
//
// The syntax is line oriented. A FUNC directive opens a function, every
// following line is one instruction, and a semicolon starts a comment:
//
//	FUNC 0              ; entry function
//	    MOV STK a VAL 5
//	    PRINT STK a
//	    RET
//
// Operands are written as a mode mnemonic (VAL, REG, STK, PTR) followed by
// a value. VAL and REG values are decimal; STK and PTR values are symbol
// names, mapped to frame slots in order of first appearance within their
// function. A function's frame size is the number of distinct symbols it
// names.
package asm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chazu/picovm/vm"
)

// opcodes maps mnemonics to opcodes.
var opcodes = map[string]vm.Opcode{
	"MOV":   vm.OpMOV,
	"CAL":   vm.OpCAL,
	"RET":   vm.OpRET,
	"REF":   vm.OpREF,
	"ADD":   vm.OpADD,
	"PRINT": vm.OpPRINT,
	"NOT":   vm.OpNOT,
	"EQU":   vm.OpEQU,
}

// modes maps operand mode mnemonics to addressing modes.
var modes = map[string]vm.AddrMode{
	"VAL": vm.ModeVAL,
	"REG": vm.ModeREG,
	"STK": vm.ModeSTACK,
	"PTR": vm.ModePTR,
}

// assembler carries the state of one Assemble call.
type assembler struct {
	program *vm.Program
	current *vm.Function
	symbols map[string]byte // stack symbol -> frame slot, current function
	line    int
}

// Assemble parses assembly source into a program. The result has not been
// validated; run Program.Validate against a machine configuration before
// executing it.
func Assemble(r io.Reader) (*vm.Program, error) {
	a := &assembler{program: vm.NewProgram()}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		a.line++
		if err := a.parseLine(scanner.Text()); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}

	a.finish()
	return a.program, nil
}

// AssembleFile parses an assembly source file into a program.
func AssembleFile(path string) (*vm.Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	defer f.Close()
	return Assemble(f)
}

func (a *assembler) errorf(format string, args ...any) error {
	return fmt.Errorf("line %d: %s", a.line, fmt.Sprintf(format, args...))
}

func (a *assembler) parseLine(text string) error {
	if i := strings.IndexByte(text, ';'); i >= 0 {
		text = text[:i]
	}
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}

	if fields[0] == "FUNC" {
		return a.beginFunction(fields)
	}
	return a.parseInstruction(fields)
}

func (a *assembler) beginFunction(fields []string) error {
	if len(fields) != 2 {
		return a.errorf("FUNC takes exactly one label")
	}
	label, err := strconv.ParseUint(fields[1], 10, 8)
	if err != nil {
		return a.errorf("invalid function label %q", fields[1])
	}
	if _, ok := a.program.Functions[byte(label)]; ok {
		return a.errorf("function %d defined twice", label)
	}

	a.finish()
	a.current = &vm.Function{Label: byte(label)}
	a.symbols = make(map[string]byte)
	return nil
}

// finish closes out the function being assembled, recording its frame size.
func (a *assembler) finish() {
	if a.current == nil {
		return
	}
	a.current.FrameSize = byte(len(a.symbols))
	a.program.Add(a.current)
	a.current = nil
	a.symbols = nil
}

func (a *assembler) parseInstruction(fields []string) error {
	if a.current == nil {
		return a.errorf("instruction before any FUNC directive")
	}

	op, ok := opcodes[fields[0]]
	if !ok {
		return a.errorf("unknown opcode %q", fields[0])
	}
	operands := fields[1:]
	if len(operands) != 2*op.Info().NumArgs {
		return a.errorf("%s takes %d operand(s)", op, op.Info().NumArgs)
	}

	inst := vm.Instruction{Op: op}
	if op.Info().NumArgs >= 1 {
		arg, err := a.parseOperand(operands[0], operands[1])
		if err != nil {
			return err
		}
		inst.Arg1 = arg
	}
	if op.Info().NumArgs >= 2 {
		arg, err := a.parseOperand(operands[2], operands[3])
		if err != nil {
			return err
		}
		inst.Arg2 = arg
	}

	a.current.Instructions = append(a.current.Instructions, inst)
	return nil
}

func (a *assembler) parseOperand(modeTok, valueTok string) (vm.Arg, error) {
	mode, ok := modes[modeTok]
	if !ok {
		return vm.Arg{}, a.errorf("unknown addressing mode %q", modeTok)
	}

	switch mode {
	case vm.ModeVAL, vm.ModeREG:
		v, err := strconv.ParseUint(valueTok, 10, 8)
		if err != nil {
			return vm.Arg{}, a.errorf("invalid %s operand %q", modeTok, valueTok)
		}
		return vm.Arg{Mode: mode, Value: byte(v)}, nil
	default:
		slot, err := a.internSymbol(valueTok)
		if err != nil {
			return vm.Arg{}, err
		}
		return vm.Arg{Mode: mode, Value: slot}, nil
	}
}

// internSymbol maps a stack symbol to its frame slot, allocating the next
// slot on first appearance.
func (a *assembler) internSymbol(name string) (byte, error) {
	if slot, ok := a.symbols[name]; ok {
		return slot, nil
	}
	if len(a.symbols) >= 256 {
		return 0, a.errorf("too many stack symbols in function %d", a.current.Label)
	}
	slot := byte(len(a.symbols))
	a.symbols[name] = slot
	return slot, nil
}
