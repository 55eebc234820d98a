package mrubyc

import (
	"bytes"
	"testing"
)

// runProgram loads and runs bc as the sole task of a fresh VM, returning the
// captured stdout and the process exit status.
func runProgram(t *testing.T, bc []byte) (string, int) {
	t.Helper()
	var buf bytes.Buffer
	vm := Init(make([]byte, 1<<16), WithStdout(&buf))
	if _, err := vm.CreateTask(bc, "main"); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	status := vm.RunAndFlush()
	return buf.String(), status
}

// TestPutsArithmetic builds `puts 1 + 2` directly in bytecode and checks it
// prints "3\n", per the interpreter's stdout contract.
func TestPutsArithmetic(t *testing.T) {
	var code asm
	code.emit4(OpLOADI, 1, 1)     // r1 = 1
	code.emit4(OpLOADI, 2, 2)     // r2 = 2
	code.emit3(OpADD, 1, 2)       // r1 = r1 + r2
	code.emit2(OpLOADSELF, 3)     // r3 = self
	code.emit3(OpMOVE, 4, 1)      // r4 = r1
	code.emit5(OpSEND, 3, 0, 1)   // r3.puts(r4)
	code.emit1(OpHALT)

	b := &IREPBuilder{NLocals: 1, NRegs: 5, Code: code.bytes(), Symbols: []string{"puts"}}
	out, status := runProgram(t, EncodeFile(b))
	if out != "3\n" {
		t.Errorf("stdout = %q, want %q", out, "3\n")
	}
	if status != 0 {
		t.Errorf("status = %d, want 0", status)
	}
}

// TestClassMethodDispatch defines a class with a method via OpCLASS/OpMETHOD,
// instantiates it with `new`, calls the method, and prints the result —
// exercising class definition, method definition, `new`, and ordinary send
// all in one bytecode body.
func TestClassMethodDispatch(t *testing.T) {
	var answerBody asm
	answerBody.emit4(OpLOADI, 1, 42) // r1 = 42
	answerBody.emit2(OpRETURN, 1)    // return r1
	answer := &IREPBuilder{NLocals: 1, NRegs: 2, Code: answerBody.bytes()}

	var code asm
	code.emit5(OpCLASS, 1, 0, 0xFF) // r1 = class Foo (no explicit super)
	code.emit6(OpMETHOD, 1, 1, 0)   // Foo#answer = children[0]
	code.emit3(OpMOVE, 2, 1)        // r2 = r1 (receiver for `new`)
	code.emit5(OpSEND, 2, 2, 0)     // r2 = r2.new
	code.emit5(OpSEND, 2, 1, 0)     // r2 = r2.answer
	code.emit2(OpLOADSELF, 3)       // r3 = self
	code.emit3(OpMOVE, 4, 2)        // r4 = r2
	code.emit5(OpSEND, 3, 3, 1)     // r3.puts(r4)
	code.emit1(OpHALT)

	b := &IREPBuilder{
		NLocals:  1,
		NRegs:    5,
		Code:     code.bytes(),
		Symbols:  []string{"Foo", "answer", "new", "puts"},
		Children: []*IREPBuilder{answer},
	}
	out, status := runProgram(t, EncodeFile(b))
	if out != "42\n" {
		t.Errorf("stdout = %q, want %q", out, "42\n")
	}
	if status != 0 {
		t.Errorf("status = %d, want 0", status)
	}
}

// TestArrayDupDivergence builds [1, 2], dups it, mutates the original
// in place, and prints the dup's first element — confirming Dup copies the
// backing store rather than aliasing it, at the bytecode level.
func TestArrayDupDivergence(t *testing.T) {
	var code asm
	code.emit4(OpLOADI, 1, 1)    // r1 = 1
	code.emit4(OpLOADI, 2, 2)    // r2 = 2
	code.emit3(OpARRAY, 1, 2)    // r1 = [1, 2]
	code.emit3(OpMOVE, 2, 1)     // r2 = r1 (receiver for dup)
	code.emit5(OpSEND, 2, 0, 0)  // r2 = r2.dup
	code.emit3(OpMOVE, 6, 1)     // r6 = r1 (receiver for []=)
	code.emit4(OpLOADI, 7, 0)    // r7 = 0
	code.emit4(OpLOADI, 8, 99)   // r8 = 99
	code.emit5(OpSEND, 6, 1, 2)  // r1[0] = 99
	code.emit3(OpMOVE, 9, 2)     // r9 = r2 (receiver for [])
	code.emit4(OpLOADI, 10, 0)   // r10 = 0
	code.emit5(OpSEND, 9, 2, 1)  // r9 = r2[0]
	code.emit2(OpLOADSELF, 11)   // r11 = self
	code.emit3(OpMOVE, 12, 9)    // r12 = r9
	code.emit5(OpSEND, 11, 3, 1) // r11.puts(r12)
	code.emit1(OpHALT)

	b := &IREPBuilder{
		NLocals: 1,
		NRegs:   13,
		Code:    code.bytes(),
		Symbols: []string{"dup", "[]=", "[]", "puts"},
	}
	out, status := runProgram(t, EncodeFile(b))
	if out != "1\n" {
		t.Errorf("stdout = %q, want %q (dup's element 0 should be unaffected by mutating the original)", out, "1\n")
	}
	if status != 0 {
		t.Errorf("status = %d, want 0", status)
	}
}

// TestRescueMessage divides by zero under a catch handler, converts the
// pending exception into a value with OpEXCEPT, and prints its message.
func TestRescueMessage(t *testing.T) {
	var code asm
	code.emit4(OpLOADI, 1, 10)   // r1 = 10,        pc 0..3
	code.emit4(OpLOADI, 2, 0)    // r2 = 0,         pc 4..7
	code.emit3(OpDIV, 1, 2)      // r1 = r1 / r2,   pc 8..10 (raises; pc becomes 11)
	code.emit2(OpEXCEPT, 1)      // r1 = exception, pc 11..12
	code.emit5(OpSEND, 1, 0, 0)  // r1 = r1.message,pc 13..17
	code.emit2(OpLOADSELF, 3)    // r3 = self,      pc 18..19
	code.emit3(OpMOVE, 4, 1)     // r4 = r1,        pc 20..22
	code.emit5(OpSEND, 3, 1, 1)  // r3.puts(r4),    pc 23..27
	code.emit1(OpHALT)           // pc 28

	b := &IREPBuilder{
		NLocals: 1,
		NRegs:   5,
		Code:    code.bytes(),
		Symbols: []string{"message", "puts"},
		Catches: []CatchHandler{{Type: 0, Begin: 0, End: 20, Target: 11}},
	}
	out, status := runProgram(t, EncodeFile(b))
	if out != "divided by 0\n" {
		t.Errorf("stdout = %q, want %q", out, "divided by 0\n")
	}
	if status != 0 {
		t.Errorf("status = %d, want 0 (the exception was caught)", status)
	}
}

// TestDivisionByZeroUncaught has no catch handler at all: the task must
// finish with its exc slot still set, and Run must report a non-zero exit
// status.
func TestDivisionByZeroUncaught(t *testing.T) {
	var code asm
	code.emit4(OpLOADI, 1, 10)
	code.emit4(OpLOADI, 2, 0)
	code.emit3(OpDIV, 1, 2)
	code.emit1(OpHALT)

	b := &IREPBuilder{NLocals: 1, NRegs: 3, Code: code.bytes()}
	out, status := runProgram(t, EncodeFile(b))
	if out != "" {
		t.Errorf("stdout = %q, want empty (nothing printed before the crash)", out)
	}
	if status == 0 {
		t.Error("status = 0, want non-zero for an uncaught exception")
	}
}

// buildFairnessTask builds a task body that prints lit twice, yielding to
// the scheduler between and after each print.
func buildFairnessTask(lit string) *IREPBuilder {
	var code asm
	for i := 0; i < 2; i++ {
		code.emit4(OpSTRING, 1, 0)   // r1 = lit
		code.emit2(OpLOADSELF, 2)    // r2 = self
		code.emit3(OpMOVE, 3, 1)     // r3 = r1
		code.emit5(OpSEND, 2, 0, 1)  // r2.puts(r3)
		code.emit1(OpYIELDTASK)
	}
	code.emit1(OpHALT)
	return &IREPBuilder{
		NLocals:  1,
		NRegs:    4,
		Code:     code.bytes(),
		Symbols:  []string{"puts"},
		Literals: []poolLiteral{StrLiteral(lit)},
	}
}

// TestTwoTaskFairness runs two equal-priority tasks that each print and
// yield twice, and checks the scheduler interleaves them in strict
// round-robin order rather than draining one before starting the other.
func TestTwoTaskFairness(t *testing.T) {
	var buf bytes.Buffer
	vm := Init(make([]byte, 1<<16), WithStdout(&buf))

	if _, err := vm.CreateTask(EncodeFile(buildFairnessTask("A")), "a"); err != nil {
		t.Fatalf("CreateTask(a) failed: %v", err)
	}
	if _, err := vm.CreateTask(EncodeFile(buildFairnessTask("B")), "b"); err != nil {
		t.Fatalf("CreateTask(b) failed: %v", err)
	}

	status := vm.RunAndFlush()
	if status != 0 {
		t.Errorf("status = %d, want 0", status)
	}
	want := "A\nB\nA\nB\n"
	if buf.String() != want {
		t.Errorf("stdout = %q, want %q (round-robin interleave)", buf.String(), want)
	}
}
