package vm

import "errors"

// ---------------------------------------------------------------------------
// Error taxonomy
// ---------------------------------------------------------------------------
//
// Every error detected by the machine is fatal: a violation aborts the whole
// run, and the program must be fixed and reloaded externally. The sentinels
// below are wrapped with context (offending label, opcode, constraint) at the
// detection site.

// Load invariant violations, detected while validating or booting a program.
var (
	ErrNoEntryFunction  = errors.New("no entry function")
	ErrEmptyFunction    = errors.New("function has no instructions")
	ErrMissingReturn    = errors.New("no RET instruction at end of function")
	ErrLabelOutOfRange  = errors.New("function label out of range")
	ErrDuplicateLabel   = errors.New("duplicate function label")
	ErrFunctionTooLarge = errors.New("function exceeds instruction limit")
	ErrProgramTooLarge  = errors.New("program exceeds total instruction limit")
	ErrFrameTooLarge    = errors.New("frame does not fit the stack region")
	ErrRegisterRange    = errors.New("register index out of range")
	ErrUnknownFunction  = errors.New("call to unknown function")
)

// Execution faults, detected during dispatch.
var (
	ErrOperandMode   = errors.New("invalid operand mode for opcode")
	ErrStackOverflow = errors.New("stack overflow")
	ErrAddressRange  = errors.New("memory address out of range")
	ErrUnknownOpcode = errors.New("unknown opcode")
)
