package vm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode identifies a single picovm instruction.
type Opcode byte

const (
	OpMOV   Opcode = 0x00 // copy value from arg2 into arg1
	OpCAL   Opcode = 0x01 // call function named by arg1 literal
	OpRET   Opcode = 0x02 // return to caller, halt if entry frame
	OpREF   Opcode = 0x03 // store the address of stack symbol arg2 into arg1
	OpADD   Opcode = 0x04 // arg1 register += arg2 register (wrapping)
	OpPRINT Opcode = 0x05 // print arg1 as unsigned decimal
	OpNOT   Opcode = 0x06 // bitwise complement of arg1 register, in place
	OpEQU   Opcode = 0x07 // arg1 register = 1 if it was 0, else 0
)

// AddrMode tags an operand with how its byte is produced or stored.
type AddrMode byte

const (
	ModeVAL   AddrMode = 0x00 // literal byte value, never writable
	ModeREG   AddrMode = 0x01 // register index
	ModeSTACK AddrMode = 0x02 // symbolic offset within the current frame
	ModePTR   AddrMode = 0x03 // like STACK, but the slot holds a further address
)

// Arg is one operand slot of an instruction.
type Arg struct {
	Mode  AddrMode `cbor:"1,keyasint"`
	Value byte     `cbor:"2,keyasint"`
}

// Instruction is an opcode plus two operand slots. Not every opcode uses
// both slots. Instructions are immutable once loaded.
type Instruction struct {
	Op   Opcode `cbor:"1,keyasint"`
	Arg1 Arg    `cbor:"2,keyasint"`
	Arg2 Arg    `cbor:"3,keyasint"`
}

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name    string // human-readable mnemonic
	NumArgs int    // number of operand slots the opcode consumes
}

// opcodeTable maps opcodes to their metadata.
var opcodeTable = map[Opcode]OpcodeInfo{
	OpMOV:   {"MOV", 2},
	OpCAL:   {"CAL", 1},
	OpRET:   {"RET", 0},
	OpREF:   {"REF", 2},
	OpADD:   {"ADD", 2},
	OpPRINT: {"PRINT", 1},
	OpNOT:   {"NOT", 1},
	OpEQU:   {"EQU", 1},
}

// modeNames maps addressing modes to their assembly mnemonics.
var modeNames = map[AddrMode]string{
	ModeVAL:   "VAL",
	ModeREG:   "REG",
	ModeSTACK: "STK",
	ModePTR:   "PTR",
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op)), NumArgs: 0}
}

// Name returns the human-readable mnemonic for an opcode.
func (op Opcode) Name() string {
	return op.Info().Name
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Name()
}

// String returns the assembly mnemonic for an addressing mode.
func (m AddrMode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("MODE_%02X", byte(m))
}

// String formats an operand as it would appear in assembly source.
func (a Arg) String() string {
	return fmt.Sprintf("%s %d", a.Mode, a.Value)
}

// String formats the instruction as a single assembly line.
func (i Instruction) String() string {
	info := i.Op.Info()
	switch info.NumArgs {
	case 0:
		return info.Name
	case 1:
		return fmt.Sprintf("%s %s", info.Name, i.Arg1)
	default:
		return fmt.Sprintf("%s %s %s", info.Name, i.Arg1, i.Arg2)
	}
}

// ---------------------------------------------------------------------------
// Disassembly
// ---------------------------------------------------------------------------

// DisassembleInstruction formats one instruction at a flat stream address.
func DisassembleInstruction(addr int, inst Instruction) string {
	return fmt.Sprintf("%04d  %s", addr, inst)
}

// DisassembleFunction returns a disassembly of a single function.
func DisassembleFunction(fn *Function) string {
	var b strings.Builder
	fmt.Fprintf(&b, "FUNC %d  ; frame size %d\n", fn.Label, fn.FrameSize)
	for i, inst := range fn.Instructions {
		b.WriteString("    ")
		b.WriteString(DisassembleInstruction(i, inst))
		b.WriteByte('\n')
	}
	return b.String()
}

// Disassemble returns a full disassembly of a program, functions in
// descending label order to match the flat stream layout.
func Disassemble(p *Program) string {
	var b strings.Builder
	for _, fn := range p.FunctionsByLayout() {
		b.WriteString(DisassembleFunction(fn))
	}
	return b.String()
}
