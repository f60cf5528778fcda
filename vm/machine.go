package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("picovm.vm")

// ---------------------------------------------------------------------------
// MachineState: the mutable execution context
// ---------------------------------------------------------------------------

// MachineState is the machine's single mutable execution context: the
// program counter indexes the flat instruction stream, the stack pointer
// marks the low boundary of the active frame. Both are byte-wide to match
// the datapath. The state is owned by exactly one Machine and is never
// process-wide; independent machines run independently.
type MachineState struct {
	PC byte // flat instruction index of the next instruction to execute
	SP byte // RAM offset of the active frame's low boundary
}

// ---------------------------------------------------------------------------
// Machine: the picovm virtual machine
// ---------------------------------------------------------------------------

// Machine executes a validated program. All state — RAM, registers, the
// flat instruction stream, and the execution context — is allocated per
// instance and lives for the duration of a run.
type Machine struct {
	cfg       Config
	ram       []byte // tables + stack, multiplexed per the Config layout
	registers []byte // user-visible register file
	code      []Instruction
	state     MachineState

	out    io.Writer // PRINT destination
	booted bool
	halted bool
}

// NewMachine allocates a machine for the given configuration. PRINT output
// goes to os.Stdout until redirected with SetOutput.
func NewMachine(cfg Config) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Machine{
		cfg:       cfg,
		ram:       make([]byte, cfg.RAMSize),
		registers: make([]byte, cfg.NumRegisters),
		out:       os.Stdout,
	}, nil
}

// SetOutput redirects PRINT output, the machine's only observable channel.
func (m *Machine) SetOutput(w io.Writer) {
	m.out = w
}

// Config returns the machine's configuration.
func (m *Machine) Config() Config {
	return m.cfg
}

// State returns a copy of the current execution context.
func (m *Machine) State() MachineState {
	return m.state
}

// Register returns the current value of a user-visible register.
func (m *Machine) Register(i int) byte {
	return m.registers[i]
}

// Table accessors. The code-address and frame-size tables live in RAM for
// layout compatibility but are written only during Boot.

func (m *Machine) codeAddr(label byte) byte {
	return m.ram[m.cfg.codeTableBase()+int(label)]
}

func (m *Machine) frameSize(label byte) byte {
	return m.ram[m.cfg.frameTableBase()+int(label)]
}

// ---------------------------------------------------------------------------
// Bootstrap
// ---------------------------------------------------------------------------

// Boot validates the program, lays its functions into the flat instruction
// stream, populates the code-address and frame-size tables, and constructs
// the entry frame. After Boot the machine is ready to Run.
func (m *Machine) Boot(p *Program) error {
	if err := p.Validate(m.cfg); err != nil {
		return err
	}

	// Reset in case the machine is booted more than once.
	clear(m.ram)
	clear(m.registers)
	m.code = m.code[:0]
	m.state = MachineState{}
	m.halted = false

	// Functions are laid out contiguously in descending label order.
	for _, fn := range p.FunctionsByLayout() {
		m.ram[m.cfg.codeTableBase()+int(fn.Label)] = byte(len(m.code))
		m.ram[m.cfg.frameTableBase()+int(fn.Label)] = fn.FrameSize
		m.code = append(m.code, fn.Instructions...)
		log.Debugf("laid out function %d at %d (%d instructions, frame size %d)",
			fn.Label, m.ram[m.cfg.codeTableBase()+int(fn.Label)],
			len(fn.Instructions), fn.FrameSize)
	}

	entry := m.cfg.EntryLabel
	m.state.PC = m.codeAddr(entry)

	// The entry frame is laid out against the high-water mark, with the
	// sentinel link value marking it as the terminal frame.
	m.state.SP = byte(m.cfg.stackTop() - int(m.frameSize(entry)))
	m.ram[int(m.state.SP)+1] = 0

	m.booted = true
	log.Debugf("booted: entry %d, pc %d, sp %d", entry, m.state.PC, m.state.SP)
	return nil
}

// Run executes the booted program until the entry function returns or a
// fatal fault is detected. Fatal faults leave the machine halted; the run
// cannot be resumed.
func (m *Machine) Run() error {
	if !m.booted {
		return fmt.Errorf("machine has not been booted")
	}

	for !m.halted {
		if int(m.state.PC) >= len(m.code) {
			return fmt.Errorf("program counter %d outside the instruction stream", m.state.PC)
		}
		inst := m.code[m.state.PC]
		m.state.PC++
		if err := m.step(inst); err != nil {
			m.halted = true
			return err
		}
	}
	return nil
}

// Execute boots and runs a program in one step.
func (m *Machine) Execute(p *Program) error {
	if err := m.Boot(p); err != nil {
		return err
	}
	return m.Run()
}
