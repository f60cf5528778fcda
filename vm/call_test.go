package vm

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Call / return protocol tests
// ---------------------------------------------------------------------------

func TestCallReturnBalancesStackPointer(t *testing.T) {
	p := NewProgram()
	p.Add(NewFunctionBuilder(0, 2).Emit(OpRET).Build())
	p.Add(NewFunctionBuilder(1, 3).Emit(OpRET).Build())

	m, err := NewMachine(DefaultConfig())
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	if err := m.Boot(p); err != nil {
		t.Fatalf("Boot: %v", err)
	}

	before := m.state.SP
	if err := m.call(1); err != nil {
		t.Fatalf("call: %v", err)
	}
	if m.state.SP == before {
		t.Fatal("call did not move the stack pointer")
	}
	m.ret()
	if m.state.SP != before {
		t.Errorf("SP after call/ret = %d, want %d", m.state.SP, before)
	}
	if m.halted {
		t.Error("returning to the entry frame must not halt the run")
	}
}

func TestCallLinksFrameHeader(t *testing.T) {
	p := NewProgram()
	p.Add(NewFunctionBuilder(0, 0).Emit(OpRET).Build())
	p.Add(NewFunctionBuilder(1, 4).Emit(OpRET).Build())

	m, err := NewMachine(DefaultConfig())
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	if err := m.Boot(p); err != nil {
		t.Fatalf("Boot: %v", err)
	}

	callerSP, callerPC := m.state.SP, m.state.PC
	if err := m.call(1); err != nil {
		t.Fatalf("call: %v", err)
	}

	// 2 header bytes plus the callee's frame.
	if want := callerSP - 6; m.state.SP != want {
		t.Errorf("SP = %d, want %d", m.state.SP, want)
	}
	if m.ram[int(m.state.SP)+1] != callerSP {
		t.Errorf("link pointer = %d, want %d", m.ram[int(m.state.SP)+1], callerSP)
	}
	if m.ram[int(m.state.SP)+2] != callerPC {
		t.Errorf("return address = %d, want %d", m.ram[int(m.state.SP)+2], callerPC)
	}
	if m.state.PC != m.codeAddr(1) {
		t.Errorf("PC = %d, want entry address %d of function 1", m.state.PC, m.codeAddr(1))
	}
}

func TestNestedCallsAndReturns(t *testing.T) {
	// entry -> 1 -> 2, printing on the way down and back up.
	entry := NewFunctionBuilder(0, 0).
		Emit1(OpPRINT, Val(1)).
		Emit1(OpCAL, Val(1)).
		Emit1(OpPRINT, Val(5)).
		Emit(OpRET).
		Build()
	mid := NewFunctionBuilder(1, 1).
		Emit1(OpPRINT, Val(2)).
		Emit1(OpCAL, Val(2)).
		Emit1(OpPRINT, Val(4)).
		Emit(OpRET).
		Build()
	leaf := NewFunctionBuilder(2, 0).
		Emit1(OpPRINT, Val(3)).
		Emit(OpRET).
		Build()

	out, err := run(t, entry, mid, leaf)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if want := "1\n2\n3\n4\n5\n"; out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestUnboundedRecursionOverflows(t *testing.T) {
	entry := NewFunctionBuilder(0, 0).
		Emit1(OpCAL, Val(1)).
		Emit(OpRET).
		Build()
	loop := NewFunctionBuilder(1, 1).
		Emit1(OpCAL, Val(1)).
		Emit(OpRET).
		Build()

	out, err := run(t, entry, loop)
	if !errors.Is(err, ErrStackOverflow) {
		t.Fatalf("err = %v, want ErrStackOverflow", err)
	}
	if !strings.Contains(err.Error(), "function 1") {
		t.Errorf("error %q does not name the offending label", err)
	}
	if out != "" {
		t.Errorf("expected no output, got %q", out)
	}
}

// TestOverflowMutatesNothing pins down the no-partial-frame guarantee: a
// call that would overflow fails before any state changes.
func TestOverflowMutatesNothing(t *testing.T) {
	// A small machine: stack floor 16, high-water mark 21, so the entry
	// frame fits but function 1's frame cannot.
	cfg := DefaultConfig()
	cfg.RAMSize = 24

	p := NewProgram()
	p.Add(NewFunctionBuilder(0, 0).
		Emit1(OpCAL, Val(1)).
		Emit(OpRET).
		Build())
	p.Add(NewFunctionBuilder(1, 4).
		Emit2(OpMOV, Reg(0), Val(99)).
		Emit(OpRET).
		Build())

	m, err := NewMachine(cfg)
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	m.SetOutput(&bytes.Buffer{})
	if err := m.Boot(p); err != nil {
		t.Fatalf("Boot: %v", err)
	}

	spBefore := m.state.SP
	err = m.Run()
	if !errors.Is(err, ErrStackOverflow) {
		t.Fatalf("err = %v, want ErrStackOverflow", err)
	}
	if m.state.SP != spBefore {
		t.Errorf("SP = %d, want %d (no partial frame)", m.state.SP, spBefore)
	}
	if m.Register(0) != 0 {
		t.Errorf("register 0 = %d, want 0 (callee must never run)", m.Register(0))
	}
}

// TestStaleFrameBytesSurvive checks that popped frames are not zeroed: a
// second call into the same stack region sees the previous activation's
// bytes until it overwrites them.
func TestStaleFrameBytesSurvive(t *testing.T) {
	entry := NewFunctionBuilder(0, 0).
		Emit1(OpCAL, Val(1)).
		Emit1(OpCAL, Val(2)).
		Emit(OpRET).
		Build()
	writer := NewFunctionBuilder(1, 1).
		Emit2(OpMOV, Stk(0), Val(123)).
		Emit(OpRET).
		Build()
	reader := NewFunctionBuilder(2, 1).
		Emit1(OpPRINT, Stk(0)).
		Emit(OpRET).
		Build()

	out, err := run(t, entry, writer, reader)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != "123\n" {
		t.Errorf("output = %q, want %q", out, "123\n")
	}
}
