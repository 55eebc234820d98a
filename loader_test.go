package mrubyc

import (
	"errors"
	"testing"
)

func simpleBuilder() *IREPBuilder {
	var code asm
	code.emit2(OpLOADSELF, 0).emit1(OpHALT)
	return &IREPBuilder{
		NLocals:  1,
		NRegs:    2,
		Code:     code.bytes(),
		Literals: []poolLiteral{StrLiteral("hi"), IntLiteral(42), FloatLiteral(3.5)},
		Symbols:  []string{"foo", "bar"},
		Catches:  []CatchHandler{{Type: 0, Begin: 0, End: 5, Target: 6}},
	}
}

func TestLoadRoundTripCounts(t *testing.T) {
	Init(make([]byte, 1<<16))
	b := simpleBuilder()
	data := EncodeFile(b)

	root, err := Load(data)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if root.NLocals != 1 {
		t.Errorf("NLocals = %d, want 1", root.NLocals)
	}
	if root.NRegs != 2 {
		t.Errorf("NRegs = %d, want 2", root.NRegs)
	}
	if root.Ilen() != len(b.Code) {
		t.Errorf("Ilen() = %d, want %d", root.Ilen(), len(b.Code))
	}
	if root.Plen() != len(b.Literals) {
		t.Errorf("Plen() = %d, want %d", root.Plen(), len(b.Literals))
	}
	if root.Slen() != len(b.Symbols) {
		t.Errorf("Slen() = %d, want %d", root.Slen(), len(b.Symbols))
	}
	if root.Clen() != len(b.Catches) {
		t.Errorf("Clen() = %d, want %d", root.Clen(), len(b.Catches))
	}
	if root.Rlen() != 0 {
		t.Errorf("Rlen() = %d, want 0 (no children)", root.Rlen())
	}

	ch := root.Catches[0]
	if ch.Begin != 0 || ch.End != 5 || ch.Target != 6 {
		t.Errorf("catch handler round-tripped as %+v", ch)
	}
}

func TestLoadRoundTripLiterals(t *testing.T) {
	Init(make([]byte, 1<<16))
	b := simpleBuilder()
	data := EncodeFile(b)
	root, err := Load(data)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	sv, err := root.PoolValue(nil, 0)
	if err != nil || sv.tag != TagString || stringOf(sv) != "hi" {
		t.Fatalf("PoolValue(0) = %v, %v; want String \"hi\"", sv, err)
	}
	iv, err := root.PoolValue(nil, 1)
	if err != nil || iv.tag != TagInteger || iv.i != 42 {
		t.Fatalf("PoolValue(1) = %v, %v; want Integer 42", iv, err)
	}
	fv, err := root.PoolValue(nil, 2)
	if err != nil || fv.tag != TagFloat || fv.f != 3.5 {
		t.Fatalf("PoolValue(2) = %v, %v; want Float 3.5", fv, err)
	}
}

func TestLoadRoundTripSymbols(t *testing.T) {
	Init(make([]byte, 1<<16))
	b := simpleBuilder()
	data := EncodeFile(b)
	root, err := Load(data)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	for i, name := range b.Symbols {
		got, ok := Lookup(root.Syms[i])
		if !ok || got != name {
			t.Errorf("Syms[%d] = %q, want %q", i, got, name)
		}
	}
}

func TestLoadNestedChildren(t *testing.T) {
	Init(make([]byte, 1<<16))
	var childCode asm
	childCode.emit2(OpLOADNIL, 0).emit2(OpRETURN, 0)
	child := &IREPBuilder{NLocals: 1, NRegs: 1, Code: childCode.bytes()}

	var code asm
	code.emit1(OpHALT)
	root := &IREPBuilder{NLocals: 1, NRegs: 1, Code: code.bytes(), Children: []*IREPBuilder{child}}

	data := EncodeFile(root)
	loaded, err := Load(data)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Rlen() != 1 {
		t.Fatalf("Rlen() = %d, want 1", loaded.Rlen())
	}
	if loaded.Children[0].Ilen() != len(child.Code) {
		t.Fatalf("child Ilen() = %d, want %d", loaded.Children[0].Ilen(), len(child.Code))
	}
}

func TestLoadRejectsBadHeader(t *testing.T) {
	_, err := Load([]byte("not a valid container at all"))
	if !errors.Is(err, ErrBadHeader) {
		t.Fatalf("err = %v, want ErrBadHeader", err)
	}
}

func TestLoadRejectsTruncated(t *testing.T) {
	b := simpleBuilder()
	data := EncodeFile(b)
	_, err := Load(data[:len(data)-4])
	if err == nil {
		t.Fatal("Load of truncated data should fail")
	}
}

func TestLoadRejectsBadRecordSize(t *testing.T) {
	b := simpleBuilder()
	data := EncodeFile(b)

	// The IREP record's record_size field is the 4 bytes immediately
	// following the "IREP" section header + its 4-byte size.
	recordSizeOff := len("RITE02") + 2 + 4 + 4 + 4 + len("IREP") + 4
	data[recordSizeOff+3] ^= 0xFF

	_, err := Load(data)
	if !errors.Is(err, ErrRecordSize) {
		t.Fatalf("err = %v, want ErrRecordSize", err)
	}
}
