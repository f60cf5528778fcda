package vm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// Container errors.
var (
	ErrInvalidMagic    = errors.New("invalid magic number: expected PICO")
	ErrVersionMismatch = errors.New("program container version mismatch")
	ErrCorruptHeader   = errors.New("corrupt program container header")
)

const programHeaderSize = len(ProgramMagic) + 4

// ReadProgram deserializes a program container. The returned program has
// passed full validation against the given configuration and is ready to
// boot.
func ReadProgram(r io.Reader, cfg Config) (*Program, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read program container: %w", err)
	}

	if len(data) < programHeaderSize {
		return nil, ErrCorruptHeader
	}
	if string(data[:len(ProgramMagic)]) != ProgramMagic {
		return nil, ErrInvalidMagic
	}
	version := binary.LittleEndian.Uint32(data[len(ProgramMagic):programHeaderSize])
	if version != ProgramVersion {
		return nil, fmt.Errorf("%w: file has version %d, reader supports %d",
			ErrVersionMismatch, version, ProgramVersion)
	}

	var p Program
	if err := cbor.Unmarshal(data[programHeaderSize:], &p); err != nil {
		return nil, fmt.Errorf("decode program: %w", err)
	}
	if err := p.Validate(cfg); err != nil {
		return nil, err
	}
	return &p, nil
}

// ReadProgramFile deserializes a program container from a file.
func ReadProgramFile(path string, cfg Config) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	defer f.Close()
	return ReadProgram(f, cfg)
}
