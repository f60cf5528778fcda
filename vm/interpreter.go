package vm

import (
	"fmt"
)

// ---------------------------------------------------------------------------
// Instruction dispatch
// ---------------------------------------------------------------------------

// step executes a single instruction. The program counter has already been
// advanced past the instruction, so control-transfer opcodes simply
// overwrite it. Operand-mode constraints are enforced here; a violation
// means the load produced an invalid program and aborts the run.
func (m *Machine) step(inst Instruction) error {
	switch inst.Op {
	case OpMOV:
		if inst.Arg1.Mode == ModeVAL {
			return fmt.Errorf("%w: first argument to MOV must not be value typed", ErrOperandMode)
		}
		v, err := m.argValue(inst.Arg2)
		if err != nil {
			return err
		}
		return m.store(inst.Arg1, v)

	case OpCAL:
		if inst.Arg1.Mode != ModeVAL {
			return fmt.Errorf("%w: first argument to CAL must be value typed", ErrOperandMode)
		}
		return m.call(inst.Arg1.Value)

	case OpRET:
		m.ret()
		return nil

	case OpREF:
		if inst.Arg2.Mode != ModeSTACK && inst.Arg2.Mode != ModePTR {
			return fmt.Errorf("%w: second argument to REF must be stack or pointer typed", ErrOperandMode)
		}
		addr := m.stackLoc(inst.Arg2.Value)
		if inst.Arg2.Mode == ModePTR {
			var err error
			if addr, err = m.load(addr); err != nil {
				return err
			}
		}
		return m.store(inst.Arg1, addr)

	case OpADD:
		if inst.Arg1.Mode != ModeREG || inst.Arg2.Mode != ModeREG {
			return fmt.Errorf("%w: both arguments to ADD must be register typed", ErrOperandMode)
		}
		m.registers[inst.Arg1.Value] += m.registers[inst.Arg2.Value]
		return nil

	case OpPRINT:
		// PRINT accepts any readable mode.
		v, err := m.argValue(inst.Arg1)
		if err != nil {
			return err
		}
		fmt.Fprintf(m.out, "%d\n", v)
		return nil

	case OpNOT:
		if inst.Arg1.Mode != ModeREG {
			return fmt.Errorf("%w: first argument to NOT must be register typed", ErrOperandMode)
		}
		m.registers[inst.Arg1.Value] = ^m.registers[inst.Arg1.Value]
		return nil

	case OpEQU:
		if inst.Arg1.Mode != ModeREG {
			return fmt.Errorf("%w: first argument to EQU must be register typed", ErrOperandMode)
		}
		if m.registers[inst.Arg1.Value] == 0 {
			m.registers[inst.Arg1.Value] = 1
		} else {
			m.registers[inst.Arg1.Value] = 0
		}
		return nil

	default:
		return fmt.Errorf("%w 0x%02X", ErrUnknownOpcode, byte(inst.Op))
	}
}

// ---------------------------------------------------------------------------
// Address resolution
// ---------------------------------------------------------------------------

// stackLoc resolves a frame symbol to its RAM address: the two-byte frame
// header sits at SP+1 and SP+2, locals start at SP+3. Byte arithmetic wraps
// to match the datapath.
func (m *Machine) stackLoc(sym byte) byte {
	return m.state.SP + 3 + sym
}

// load reads a RAM byte, rejecting addresses outside the configured RAM.
// Addresses only leave the 0..RAMSize-1 range on machines configured with
// less than the full 256 bytes.
func (m *Machine) load(addr byte) (byte, error) {
	if int(addr) >= m.cfg.RAMSize {
		return 0, fmt.Errorf("%w: %d (ram size %d)", ErrAddressRange, addr, m.cfg.RAMSize)
	}
	return m.ram[addr], nil
}

// storeRAM writes a RAM byte with the same bounds rule as load.
func (m *Machine) storeRAM(addr, v byte) error {
	if int(addr) >= m.cfg.RAMSize {
		return fmt.Errorf("%w: %d (ram size %d)", ErrAddressRange, addr, m.cfg.RAMSize)
	}
	m.ram[addr] = v
	return nil
}

// argValue resolves an operand to its byte value. VAL is the literal
// itself; REG reads the register; STACK reads the frame slot; PTR reads the
// frame slot and dereferences it one more level.
func (m *Machine) argValue(arg Arg) (byte, error) {
	switch arg.Mode {
	case ModeVAL:
		return arg.Value, nil
	case ModeREG:
		return m.registers[arg.Value], nil
	case ModeSTACK:
		return m.load(m.stackLoc(arg.Value))
	case ModePTR:
		addr, err := m.load(m.stackLoc(arg.Value))
		if err != nil {
			return 0, err
		}
		return m.load(addr)
	default:
		return 0, fmt.Errorf("%w: cannot read mode 0x%02X", ErrOperandMode, byte(arg.Mode))
	}
}

// store resolves an operand to a writable location and stores v there. A
// VAL operand is never writable; a valid load cannot produce one as a
// destination, so observing one is an invalid-input fault.
func (m *Machine) store(arg Arg, v byte) error {
	switch arg.Mode {
	case ModeREG:
		m.registers[arg.Value] = v
		return nil
	case ModeSTACK:
		return m.storeRAM(m.stackLoc(arg.Value), v)
	case ModePTR:
		addr, err := m.load(m.stackLoc(arg.Value))
		if err != nil {
			return err
		}
		return m.storeRAM(addr, v)
	default:
		return fmt.Errorf("%w: cannot write to a value-typed operand", ErrOperandMode)
	}
}

// ---------------------------------------------------------------------------
// Call / return
// ---------------------------------------------------------------------------

// call constructs the callee's frame below the current one. The new frame's
// header records the caller's stack pointer (link) and program counter
// (return address); nothing is mutated if the frame would not fit.
func (m *Machine) call(label byte) error {
	frameSize := int(m.frameSize(label))
	newSP := int(m.state.SP) - (2 + frameSize)
	if newSP < m.cfg.stackFloor() {
		return fmt.Errorf("%w when trying to call function %d", ErrStackOverflow, label)
	}

	m.ram[newSP+1] = m.state.SP
	m.ram[newSP+2] = m.state.PC

	m.state.SP = byte(newSP)
	m.state.PC = m.codeAddr(label)
	log.Debugf("call %d: sp %d, pc %d", label, m.state.SP, m.state.PC)
	return nil
}

// ret pops the active frame. A zero link pointer marks the entry frame;
// returning from it terminates the run. Frame bytes are not zeroed, the
// pointers simply retract.
func (m *Machine) ret() {
	link := m.ram[int(m.state.SP)+1]
	if link == 0 {
		m.halted = true
		log.Debug("returned from entry frame, halting")
		return
	}
	m.state.PC = m.ram[int(m.state.SP)+2]
	m.state.SP = link
	log.Debugf("return: sp %d, pc %d", m.state.SP, m.state.PC)
}
