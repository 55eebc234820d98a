// opcode.go - instruction set and encoding for the register VM

package mrubyc

import "encoding/binary"

// Op is one interpreter instruction. Unlike the bit-exact container format
// in irep.go/loader.go, per-instruction encoding here is this
// reimplementation's own internally-consistent scheme, grouped by operand
// shape (register-only, register+offset, and so on) the way a family of
// instruction sets shares addressing-mode concepts while each defines its
// own concrete layout.
type Op byte

const (
	OpNOP Op = iota
	OpHALT
	OpYIELDTASK
	OpABORT
	OpRETRY

	OpLOADNIL
	OpLOADSELF
	OpLOADT
	OpLOADF
	OpRETURN
	OpRAISE
	OpSLEEP
	OpEXCEPT

	OpMOVE
	OpADD
	OpSUB
	OpMUL
	OpDIV
	OpMOD
	OpEQ
	OpLT
	OpLE
	OpGT
	OpGE
	OpARRAY
	OpHASH
	OpRANGE
	OpSUPER
	OpCALL

	OpLOADI
	OpLOADL
	OpLOADSYM
	OpSTRING
	OpGETIV
	OpSETIV
	OpGETCONST
	OpSETCONST
	OpJMP
	OpJMPIF
	OpJMPNOT
	OpBLOCK

	OpSEND
	OpCLASS

	OpMETHOD
)

var opNames = [...]string{
	OpNOP: "NOP", OpHALT: "HALT", OpYIELDTASK: "YIELDTASK", OpABORT: "ABORT", OpRETRY: "RETRY",
	OpLOADNIL: "LOADNIL", OpLOADSELF: "LOADSELF", OpLOADT: "LOADT", OpLOADF: "LOADF",
	OpRETURN: "RETURN", OpRAISE: "RAISE", OpSLEEP: "SLEEP", OpEXCEPT: "EXCEPT",
	OpMOVE: "MOVE", OpADD: "ADD", OpSUB: "SUB", OpMUL: "MUL", OpDIV: "DIV", OpMOD: "MOD",
	OpEQ: "EQ", OpLT: "LT", OpLE: "LE", OpGT: "GT", OpGE: "GE",
	OpARRAY: "ARRAY", OpHASH: "HASH", OpRANGE: "RANGE", OpSUPER: "SUPER", OpCALL: "CALL",
	OpLOADI: "LOADI", OpLOADL: "LOADL", OpLOADSYM: "LOADSYM", OpSTRING: "STRING",
	OpGETIV: "GETIV", OpSETIV: "SETIV", OpGETCONST: "GETCONST", OpSETCONST: "SETCONST",
	OpJMP: "JMP", OpJMPIF: "JMPIF", OpJMPNOT: "JMPNOT", OpBLOCK: "BLOCK",
	OpSEND: "SEND", OpCLASS: "CLASS", OpMETHOD: "METHOD",
}

func (op Op) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return "UNKNOWN"
}

// instrLen returns the total encoded length, in bytes, of an instruction
// with the given opcode (opcode byte included). Every instance of a given
// opcode has the same length.
func instrLen(op Op) int {
	switch op {
	case OpNOP, OpHALT, OpYIELDTASK, OpABORT, OpRETRY:
		return 1
	case OpLOADNIL, OpLOADSELF, OpLOADT, OpLOADF, OpRETURN, OpRAISE, OpSLEEP, OpEXCEPT:
		return 2
	case OpMOVE, OpADD, OpSUB, OpMUL, OpDIV, OpMOD, OpEQ, OpLT, OpLE, OpGT, OpGE,
		OpARRAY, OpHASH, OpRANGE, OpSUPER, OpCALL:
		return 3
	case OpLOADI, OpLOADL, OpLOADSYM, OpSTRING, OpGETIV, OpSETIV, OpGETCONST, OpSETCONST,
		OpJMP, OpJMPIF, OpJMPNOT, OpBLOCK:
		return 4
	case OpSEND, OpCLASS:
		return 5
	case OpMETHOD:
		return 6
	default:
		return 1
	}
}

// instr is a decoded instruction, produced by decodeInstr.
type instr struct {
	op   Op
	a    byte
	b16  uint16
	c    byte // only set for the 5-byte schema
	c16  uint16 // only set for the 6-byte schema
}

func decodeInstr(code []byte, pc int) instr {
	op := Op(code[pc])
	switch instrLen(op) {
	case 1:
		return instr{op: op}
	case 2:
		return instr{op: op, a: code[pc+1]}
	case 3:
		return instr{op: op, a: code[pc+1], b16: uint16(code[pc+2])}
	case 4:
		return instr{op: op, a: code[pc+1], b16: binary.BigEndian.Uint16(code[pc+2 : pc+4])}
	case 5:
		return instr{op: op, a: code[pc+1], b16: binary.BigEndian.Uint16(code[pc+2 : pc+4]), c: code[pc+4]}
	case 6:
		return instr{op: op, a: code[pc+1], b16: binary.BigEndian.Uint16(code[pc+2 : pc+4]), c16: binary.BigEndian.Uint16(code[pc+4 : pc+6])}
	default:
		return instr{op: op}
	}
}

// asm is a tiny internal assembler used by tests to build instruction
// streams directly, since this repo has no front-end compiler.
type asm struct {
	buf []byte
}

func (a *asm) emit1(op Op) *asm {
	a.buf = append(a.buf, byte(op))
	return a
}

func (a *asm) emit2(op Op, x byte) *asm {
	a.buf = append(a.buf, byte(op), x)
	return a
}

func (a *asm) emit3(op Op, x, y byte) *asm {
	a.buf = append(a.buf, byte(op), x, y)
	return a
}

func (a *asm) emit4(op Op, x byte, y uint16) *asm {
	a.buf = append(a.buf, byte(op), x, byte(y>>8), byte(y))
	return a
}

func (a *asm) emit5(op Op, x byte, y uint16, z byte) *asm {
	a.buf = append(a.buf, byte(op), x, byte(y>>8), byte(y), z)
	return a
}

func (a *asm) emit6(op Op, x byte, y uint16, z uint16) *asm {
	a.buf = append(a.buf, byte(op), x, byte(y>>8), byte(y), byte(z>>8), byte(z))
	return a
}

func (a *asm) bytes() []byte { return a.buf }
