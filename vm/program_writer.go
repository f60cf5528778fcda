package vm

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Program container format
// ---------------------------------------------------------------------------
//
// A .pvm file is a small container: a 4-byte magic, a 4-byte little-endian
// format version, and a canonical-mode CBOR encoding of the function table.
// Canonical encoding keeps the container deterministic for identical
// programs.

const (
	// ProgramMagic identifies a picovm program container.
	ProgramMagic = "PICO"

	// ProgramVersion is the current container format version.
	ProgramVersion uint32 = 1
)

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vm: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// WriteProgram serializes a program to the container format.
func WriteProgram(w io.Writer, p *Program) error {
	payload, err := cborEncMode.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode program: %w", err)
	}

	if _, err := w.Write([]byte(ProgramMagic)); err != nil {
		return fmt.Errorf("write program header: %w", err)
	}
	var version [4]byte
	binary.LittleEndian.PutUint32(version[:], ProgramVersion)
	if _, err := w.Write(version[:]); err != nil {
		return fmt.Errorf("write program header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write program payload: %w", err)
	}
	return nil
}

// WriteProgramFile serializes a program to a container file.
func WriteProgramFile(path string, p *Program) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", path, err)
	}
	defer f.Close()

	if err := WriteProgram(f, p); err != nil {
		return err
	}
	return f.Close()
}
