// Package vm implements the picovm virtual machine.
//
// This package contains:
//   - Instruction and operand representation with four addressing modes
//   - Fetch-decode-execute dispatch over a flat instruction stream
//   - Manual stack-frame layout with a two-byte link header per call
//   - Program validation, bootstrap, and capacity configuration
//   - The .pvm program container reader and writer
package vm
