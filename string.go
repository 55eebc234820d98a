// string.go - String value: interface to the core (shape + destructor)

package mrubyc

import "strconv"

type stringObject struct {
	header objHeader
	s      string
}

func (o *stringObject) hdr() *objHeader { return &o.header }

func init() {
	RegisterDestructor(TagString, func(vm *VM, obj heapObject) {
		// s is a Go string; nothing extra to release.
	})
}

// newStringValue builds a fresh STRING value with refcount 1.
func newStringValue(vm *VM, s string, owner TaskID) Value {
	return Value{tag: TagString, obj: &stringObject{header: newHeader(vm, TagString, owner, baseObjectFootprint+uint32(len(s))), s: s}}
}

// StringValue is the exported constructor used by built-in methods and by
// the interpreter's literal-load opcode.
func StringValue(vm *VM, s string) Value {
	owner := NoOwner
	if vm != nil && vm.curTask != nil {
		owner = vm.curTask.id
	}
	return newStringValue(vm, s, owner)
}

func stringOf(v Value) string {
	return v.obj.(*stringObject).s
}

var stringClass *Class

func initStringClass() {
	stringClass = DefineClass(Intern("String"), objectClass)
	DefineMethod(stringClass, Intern("+"), stringConcat)
	DefineMethod(stringClass, Intern("length"), stringLength)
	DefineMethod(stringClass, Intern("size"), stringLength)
	DefineMethod(stringClass, Intern("=="), stringEq)
	DefineMethod(stringClass, Intern("to_s"), func(vm *VM, recv Value, args []Value) Value { return recv })
	DefineMethod(stringClass, Intern("inspect"), stringInspect)
	DefineMethod(stringClass, Intern("to_i"), stringToI)
	DefineMethod(stringClass, Intern("to_f"), stringToF)
	DefineMethod(stringClass, Intern("<<"), stringAppend)
}

func stringConcat(vm *VM, recv Value, args []Value) Value {
	if len(args) != 1 || args[0].tag != TagString {
		return vm.Raise(typeErrorClass, "expected String")
	}
	return StringValue(vm, stringOf(recv)+stringOf(args[0]))
}

func stringLength(vm *VM, recv Value, args []Value) Value {
	return IntValue(int64(len([]rune(stringOf(recv)))))
}

func stringEq(vm *VM, recv Value, args []Value) Value {
	if len(args) != 1 || args[0].tag != TagString {
		return False
	}
	return BoolValue(stringOf(recv) == stringOf(args[0]))
}

func stringInspect(vm *VM, recv Value, args []Value) Value {
	return StringValue(vm, strconv.Quote(stringOf(recv)))
}

func stringToI(vm *VM, recv Value, args []Value) Value {
	n, _ := strconv.ParseInt(leadingInt(stringOf(recv)), 10, 64)
	return IntValue(n)
}

func stringToF(vm *VM, recv Value, args []Value) Value {
	f, _ := strconv.ParseFloat(stringOf(recv), 64)
	return FloatValue(f)
}

// stringAppend implements String#<<. The reference implementation's
// string_append computed a nonsensical length for non-string, non-integer
// arguments; this reimplementation raises TypeError instead.
func stringAppend(vm *VM, recv Value, args []Value) Value {
	if len(args) != 1 {
		return vm.Raise(argumentErrorClass, "wrong number of arguments")
	}
	so := recv.obj.(*stringObject)
	switch args[0].tag {
	case TagString:
		so.s += stringOf(args[0])
	case TagInteger:
		so.s += string(rune(args[0].i))
	default:
		return vm.Raise(typeErrorClass, "no implicit conversion to String")
	}
	return recv
}

// leadingInt extracts the longest valid signed-integer prefix of s, the
// way Ruby's String#to_i does, returning "0" when there is none.
func leadingInt(s string) string {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == start {
		return "0"
	}
	if s[0] == '-' {
		return "-" + s[start:i]
	}
	return s[start:i]
}
