package vm

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// ---------------------------------------------------------------------------
// Config: machine capacity constants
// ---------------------------------------------------------------------------

// Config holds the capacity constants of a machine. The defaults describe
// the reference machine: 256 bytes of RAM, 8 functions, 8 registers, entry
// at label 0. All addresses and values are byte-wide, so RAMSize may not
// exceed 256 and the instruction stream may not exceed 256 slots.
type Config struct {
	MaxFunctions            int  `toml:"max-functions"`
	MaxFunctionInstructions int  `toml:"max-function-instructions"`
	MaxInstructionsTotal    int  `toml:"max-instructions-total"`
	NumRegisters            int  `toml:"num-registers"`
	RAMSize                 int  `toml:"ram-size"`
	EntryLabel              byte `toml:"entry-label"`
}

// DefaultConfig returns the reference machine configuration.
func DefaultConfig() Config {
	return Config{
		MaxFunctions:            8,
		MaxFunctionInstructions: 32,
		MaxInstructionsTotal:    256,
		NumRegisters:            8,
		RAMSize:                 256,
		EntryLabel:              0,
	}
}

// LoadConfig parses a picovm.toml file, applying defaults for any field the
// file omits.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("cannot read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration in %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the byte-wide datapath cannot address.
func (c Config) Validate() error {
	if c.RAMSize <= 0 || c.RAMSize > 256 {
		return fmt.Errorf("ram-size %d: must be in 1..256", c.RAMSize)
	}
	if c.NumRegisters <= 0 || c.NumRegisters > 256 {
		return fmt.Errorf("num-registers %d: must be in 1..256", c.NumRegisters)
	}
	if c.MaxFunctions <= 0 || c.MaxFunctions > 256 {
		return fmt.Errorf("max-functions %d: must be in 1..256", c.MaxFunctions)
	}
	if int(c.EntryLabel) >= c.MaxFunctions {
		return fmt.Errorf("entry-label %d: outside the function table (max-functions %d)",
			c.EntryLabel, c.MaxFunctions)
	}
	if c.MaxInstructionsTotal <= 0 || c.MaxInstructionsTotal > 256 {
		return fmt.Errorf("max-instructions-total %d: must be in 1..256 (byte-wide program counter)",
			c.MaxInstructionsTotal)
	}
	if c.MaxFunctionInstructions <= 0 || c.MaxFunctionInstructions > c.MaxInstructionsTotal {
		return fmt.Errorf("max-function-instructions %d: must be in 1..%d",
			c.MaxFunctionInstructions, c.MaxInstructionsTotal)
	}
	if c.stackCapacity() <= 0 {
		return fmt.Errorf("ram-size %d leaves no stack region above %d table bytes",
			c.RAMSize, 2*c.MaxFunctions)
	}
	return nil
}

// RAM region layout. The single flat byte array is multiplexed as three
// logically separate regions: the code-address table, the frame-size table,
// and the stack. The stack grows downward from stackTop; frame headers
// occupy the two bytes above the frame's low boundary, so stackTop sits
// three bytes below the end of RAM.

// codeTableBase is the RAM offset of the code-address table.
func (c Config) codeTableBase() int { return 0 }

// frameTableBase is the RAM offset of the frame-size table.
func (c Config) frameTableBase() int { return c.MaxFunctions }

// stackFloor is the lowest RAM offset the stack pointer may reach.
func (c Config) stackFloor() int { return 2 * c.MaxFunctions }

// stackTop is the high-water mark the entry frame is laid out against.
func (c Config) stackTop() int { return c.RAMSize - 3 }

// stackCapacity is the number of stack bytes available below the high-water
// mark.
func (c Config) stackCapacity() int { return c.stackTop() - c.stackFloor() }
