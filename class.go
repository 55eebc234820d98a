// class.go - class objects, inheritance chain, method table, ivar store

package mrubyc

import "sync"

// methodFn is a built-in (Go-native) method implementation. It receives
// the receiver and already-evaluated arguments and returns the result; to
// raise, it calls vm.Raise and returns Nil (the interpreter checks the
// task's exception slot after every call, built-in or not).
type methodFn func(vm *VM, recv Value, args []Value) Value

// methodEntry is one link in a class's method list: either a built-in
// function or a bytecode body (child IREP), never both. Lookup walks
// super chains strictly — first hit wins, no linearisation.
type methodEntry struct {
	sym     SymID
	fn      methodFn
	irep    *IREP
	ownClass *Class
	next    *methodEntry
}

// Class is a class object: a name, a single superclass link (root's super
// is nil), and a singly-linked method list. Classes are created at init
// time and live for the process's lifetime — DecRef on a Class value
// never actually frees it (see the TagClass destructor registered in init
// below).
type Class struct {
	header  objHeader
	name    SymID
	super   *Class
	methods *methodEntry
}

func (c *Class) hdr() *objHeader { return &c.header }

// instanceObject is an OBJECT value: a class pointer plus an ivar table
// keyed by symbol id, values owned (refcounted) by the instance.
type instanceObject struct {
	header objHeader
	class  *Class
	ivars  map[SymID]Value
}

func (o *instanceObject) hdr() *objHeader { return &o.header }

var (
	classRegistry   sync.Mutex
	classesByName   = map[SymID]*Class{}
	objectClass     *Class
	classClass      *Class // the class of Class values themselves
)

func init() {
	RegisterDestructor(TagClass, func(vm *VM, obj heapObject) {
		// Classes are process-lifetime singletons; nothing to release.
	})
	RegisterDestructor(TagObject, func(vm *VM, obj heapObject) {
		inst := obj.(*instanceObject)
		for _, v := range inst.ivars {
			DecRef(vm, v)
		}
	})
}

// DefineClass creates (or returns the existing) class named name with the
// given superclass. A nil super defaults to Object, except for Object's
// own bootstrap definition.
func DefineClass(name SymID, super *Class) *Class {
	classRegistry.Lock()
	defer classRegistry.Unlock()

	if c, ok := classesByName[name]; ok {
		return c
	}
	if super == nil && objectClass != nil {
		super = objectClass
	}
	c := &Class{header: newHeader(nil, TagClass, NoOwner, 0), name: name, super: super}
	classesByName[name] = c
	return c
}

// LookupClass returns the class previously defined under name, if any.
func LookupClass(name SymID) (*Class, bool) {
	classRegistry.Lock()
	defer classRegistry.Unlock()
	c, ok := classesByName[name]
	return c, ok
}

// DefineMethod prepends a built-in method entry to class. Re-defining a
// symbol shadows the previous entry (the new one is found first), which
// is how the source language's open classes and monkey-patching work.
func DefineMethod(class *Class, name SymID, fn methodFn) {
	class.methods = &methodEntry{sym: name, fn: fn, ownClass: class, next: class.methods}
}

// DefineMethodIrep binds a compiled body (child IREP) as a method on
// class — the target of the interpreter's "define method" opcode.
func DefineMethodIrep(class *Class, name SymID, irep *IREP) {
	class.methods = &methodEntry{sym: name, irep: irep, ownClass: class, next: class.methods}
}

// FindMethod walks class's super chain looking for name, returning the
// entry and the class in which it was actually found (needed by SEND to
// set own_class for super resolution).
func FindMethod(class *Class, name SymID) (*methodEntry, *Class, bool) {
	for c := class; c != nil; c = c.super {
		for m := c.methods; m != nil; m = m.next {
			if m.sym == name {
				return m, c, true
			}
		}
	}
	return nil, nil, false
}

// ObjIsKindOf walks class_of(v)'s chain looking for class.
func ObjIsKindOf(v Value, class *Class) bool {
	for c := ClassOf(v); c != nil; c = c.super {
		if c == class {
			return true
		}
	}
	return false
}

// InstanceNew allocates an OBJECT whose ivar table is empty. It does not
// call initialize; that is the interpreter's job (see doNew in vm.go).
func InstanceNew(vm *VM, class *Class, owner TaskID) Value {
	inst := &instanceObject{header: newHeader(vm, TagObject, owner, baseObjectFootprint), class: class, ivars: map[SymID]Value{}}
	return Value{tag: TagObject, obj: inst}
}

// newInstanceValue builds an OBJECT value around an already-prepared ivar
// table (used by Dup, which has already duplicated and incref'd the
// contained values).
func newInstanceValue(vm *VM, class *Class, ivars map[SymID]Value, owner TaskID) Value {
	inst := &instanceObject{header: newHeader(vm, TagObject, owner, baseObjectFootprint), class: class, ivars: ivars}
	return Value{tag: TagObject, obj: inst}
}

func classValue(c *Class) Value {
	IncRef(Value{tag: TagClass, obj: c})
	return Value{tag: TagClass, obj: c}
}
