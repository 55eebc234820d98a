package mrubyc

import "testing"

func TestDefineClassIsIdempotent(t *testing.T) {
	Init(make([]byte, 1<<16))
	name := Intern("Widget")
	c1 := DefineClass(name, nil)
	c2 := DefineClass(name, nil)
	if c1 != c2 {
		t.Fatal("DefineClass with the same name should return the existing class")
	}
	if c1.super != objectClass {
		t.Fatal("a class defined with a nil super should default to Object")
	}
}

func TestFindMethodWalksSuperChain(t *testing.T) {
	Init(make([]byte, 1<<16))
	base := DefineClass(Intern("Base"), nil)
	derived := DefineClass(Intern("Derived"), base)

	greet := Intern("greet")
	DefineMethod(base, greet, func(vm *VM, recv Value, args []Value) Value { return IntValue(1) })

	entry, owner, ok := FindMethod(derived, greet)
	if !ok {
		t.Fatal("FindMethod should find a method defined on a superclass")
	}
	if owner != base {
		t.Fatalf("owner = %v, want base", owner)
	}
	if entry.fn == nil {
		t.Fatal("entry.fn should be set for a built-in method")
	}
}

func TestDefineMethodShadowsSuper(t *testing.T) {
	Init(make([]byte, 1<<16))
	base := DefineClass(Intern("ShadowBase"), nil)
	derived := DefineClass(Intern("ShadowDerived"), base)

	sym := Intern("value")
	DefineMethod(base, sym, func(vm *VM, recv Value, args []Value) Value { return IntValue(1) })
	DefineMethod(derived, sym, func(vm *VM, recv Value, args []Value) Value { return IntValue(2) })

	entry, owner, ok := FindMethod(derived, sym)
	if !ok {
		t.Fatal("expected to find shadowed method")
	}
	if owner != derived {
		t.Fatal("redefining a method on a subclass should shadow the superclass version")
	}
	got := entry.fn(nil, Nil, nil)
	if got.i != 2 {
		t.Fatalf("shadowed method returned %v, want 2", got)
	}
}

func TestObjIsKindOf(t *testing.T) {
	Init(make([]byte, 1<<16))
	animal := DefineClass(Intern("Animal"), nil)
	dog := DefineClass(Intern("Dog"), animal)

	inst := InstanceNew(nil, dog, NoOwner)
	if !ObjIsKindOf(inst, dog) {
		t.Fatal("instance should be kind_of? its own class")
	}
	if !ObjIsKindOf(inst, animal) {
		t.Fatal("instance should be kind_of? its superclass")
	}
	if !ObjIsKindOf(inst, objectClass) {
		t.Fatal("every instance should be kind_of? Object")
	}
	other := DefineClass(Intern("Unrelated"), nil)
	if ObjIsKindOf(inst, other) {
		t.Fatal("instance should not be kind_of? an unrelated class")
	}
}

func TestInstanceIvarsIsolatedAcrossInstances(t *testing.T) {
	Init(make([]byte, 1<<16))
	c := DefineClass(Intern("Counter"), nil)
	a := InstanceNew(nil, c, NoOwner)
	b := InstanceNew(nil, c, NoOwner)

	ivarSym := Intern("@n")
	aInst := a.obj.(*instanceObject)
	bInst := b.obj.(*instanceObject)
	aInst.ivars[ivarSym] = IntValue(1)

	if _, ok := bInst.ivars[ivarSym]; ok {
		t.Fatal("instances should not share an ivar table")
	}
}
