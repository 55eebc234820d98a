// array.go - Array value: interface to the core (shape + destructor)

package mrubyc

type arrayObject struct {
	header objHeader
	elems  []Value
}

func (o *arrayObject) hdr() *objHeader { return &o.header }

func init() {
	RegisterDestructor(TagArray, func(vm *VM, obj heapObject) {
		a := obj.(*arrayObject)
		for _, v := range a.elems {
			DecRef(vm, v)
		}
	})
}

func newArrayValue(vm *VM, elems []Value, owner TaskID) Value {
	size := baseObjectFootprint + uint32(len(elems))*valueFootprint
	return Value{tag: TagArray, obj: &arrayObject{header: newHeader(vm, TagArray, owner, size), elems: elems}}
}

// ArrayValue builds an ARRAY value owning elems; each element must already
// be incref'd by the caller, since the array takes ownership of the slice
// as-is rather than copying and increffing it here.
func ArrayValue(vm *VM, elems []Value) Value {
	owner := NoOwner
	if vm != nil && vm.curTask != nil {
		owner = vm.curTask.id
	}
	return newArrayValue(vm, elems, owner)
}

var arrayClass *Class

func initArrayClass() {
	arrayClass = DefineClass(Intern("Array"), objectClass)
	DefineMethod(arrayClass, Intern("length"), arrayLength)
	DefineMethod(arrayClass, Intern("size"), arrayLength)
	DefineMethod(arrayClass, Intern("[]"), arrayGet)
	DefineMethod(arrayClass, Intern("[]="), arraySet)
	DefineMethod(arrayClass, Intern("<<"), arrayPush)
	DefineMethod(arrayClass, Intern("push"), arrayPush)
	DefineMethod(arrayClass, Intern("pop"), arrayPop)
	DefineMethod(arrayClass, Intern("dup"), func(vm *VM, recv Value, args []Value) Value { return Dup(vm, recv) })
	DefineMethod(arrayClass, Intern("each"), arrayEach)
}

// arrayEach yields every element to the given block in order, bailing out
// as soon as the block raises (the same convention integerTimes uses for
// Integer#times).
func arrayEach(vm *VM, recv Value, args []Value) Value {
	if len(args) != 1 || args[0].tag != TagProc {
		return vm.Raise(argumentErrorClass, "each requires a block")
	}
	a := recv.obj.(*arrayObject)
	for _, v := range a.elems {
		vm.CallProc(args[0], []Value{v})
		if vm.curTask != nil && vm.curTask.exc != nil {
			return Nil
		}
	}
	return recv
}

func arrayLength(vm *VM, recv Value, args []Value) Value {
	return IntValue(int64(len(recv.obj.(*arrayObject).elems)))
}

func arrayGet(vm *VM, recv Value, args []Value) Value {
	a := recv.obj.(*arrayObject)
	if len(args) != 1 || args[0].tag != TagInteger {
		return vm.Raise(typeErrorClass, "expected Integer index")
	}
	idx := normalizeIndex(args[0].i, len(a.elems))
	if idx < 0 || idx >= len(a.elems) {
		return Nil
	}
	return a.elems[idx]
}

func arraySet(vm *VM, recv Value, args []Value) Value {
	a := recv.obj.(*arrayObject)
	if len(args) != 2 || args[0].tag != TagInteger {
		return vm.Raise(typeErrorClass, "expected Integer index")
	}
	idx := normalizeIndex(args[0].i, len(a.elems))
	if idx < 0 {
		return vm.Raise(indexErrorClass, "index out of range")
	}
	for idx >= len(a.elems) {
		a.elems = append(a.elems, Nil)
	}
	assign(vm, &a.elems[idx], args[1])
	return args[1]
}

func arrayPush(vm *VM, recv Value, args []Value) Value {
	a := recv.obj.(*arrayObject)
	for _, v := range args {
		IncRef(v)
		a.elems = append(a.elems, v)
	}
	return recv
}

func arrayPop(vm *VM, recv Value, args []Value) Value {
	a := recv.obj.(*arrayObject)
	if len(a.elems) == 0 {
		return Nil
	}
	v := a.elems[len(a.elems)-1]
	a.elems = a.elems[:len(a.elems)-1]
	return v
}

func normalizeIndex(i int64, length int) int {
	if i < 0 {
		i += int64(length)
	}
	return int(i)
}
