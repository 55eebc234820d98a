// hash.go - Hash value: interface to the core (shape + destructor)

package mrubyc

type hashPair struct {
	key Value
	val Value
}

type hashObject struct {
	header objHeader
	pairs  []hashPair
}

func (o *hashObject) hdr() *objHeader { return &o.header }

func init() {
	RegisterDestructor(TagHash, func(vm *VM, obj heapObject) {
		h := obj.(*hashObject)
		for _, p := range h.pairs {
			DecRef(vm, p.key)
			DecRef(vm, p.val)
		}
	})
}

func newHashValue(vm *VM, pairs []hashPair, owner TaskID) Value {
	size := baseObjectFootprint + uint32(len(pairs))*2*valueFootprint
	return Value{tag: TagHash, obj: &hashObject{header: newHeader(vm, TagHash, owner, size), pairs: pairs}}
}

// HashValue builds a HASH value owning pairs.
func HashValue(vm *VM, pairs []hashPair) Value {
	owner := NoOwner
	if vm != nil && vm.curTask != nil {
		owner = vm.curTask.id
	}
	return newHashValue(vm, pairs, owner)
}

var hashClass *Class

func initHashClass() {
	hashClass = DefineClass(Intern("Hash"), objectClass)
	DefineMethod(hashClass, Intern("[]"), hashGet)
	DefineMethod(hashClass, Intern("[]="), hashSet)
	DefineMethod(hashClass, Intern("size"), hashSize)
	DefineMethod(hashClass, Intern("dup"), func(vm *VM, recv Value, args []Value) Value { return Dup(vm, recv) })
}

func hashGet(vm *VM, recv Value, args []Value) Value {
	h := recv.obj.(*hashObject)
	if len(args) != 1 {
		return vm.Raise(argumentErrorClass, "wrong number of arguments")
	}
	for _, p := range h.pairs {
		if Compare(p.key, args[0]) == 0 {
			return p.val
		}
	}
	return Nil
}

func hashSet(vm *VM, recv Value, args []Value) Value {
	h := recv.obj.(*hashObject)
	if len(args) != 2 {
		return vm.Raise(argumentErrorClass, "wrong number of arguments")
	}
	for i := range h.pairs {
		if Compare(h.pairs[i].key, args[0]) == 0 {
			assign(vm, &h.pairs[i].val, args[1])
			return args[1]
		}
	}
	IncRef(args[0])
	IncRef(args[1])
	h.pairs = append(h.pairs, hashPair{key: args[0], val: args[1]})
	return args[1]
}

func hashSize(vm *VM, recv Value, args []Value) Value {
	return IntValue(int64(len(recv.obj.(*hashObject).pairs)))
}
