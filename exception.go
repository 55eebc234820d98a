// exception.go - Exception value and the built-in exception hierarchy

package mrubyc

type exceptionObject struct {
	header  objHeader
	class   *Class
	message Value // String or Nil
}

func (o *exceptionObject) hdr() *objHeader { return &o.header }

func init() {
	RegisterDestructor(TagException, func(vm *VM, obj heapObject) {
		e := obj.(*exceptionObject)
		DecRef(vm, e.message)
	})
}

var (
	exceptionClass      *Class
	standardErrorClass  *Class
	runtimeErrorClass   *Class
	zeroDivisionClass   *Class
	argumentErrorClass  *Class
	indexErrorClass     *Class
	typeErrorClass      *Class
	noMemoryErrorClass  *Class
)

func initExceptionClasses() {
	exceptionClass = DefineClass(Intern("Exception"), objectClass)
	standardErrorClass = DefineClass(Intern("StandardError"), exceptionClass)
	runtimeErrorClass = DefineClass(Intern("RuntimeError"), standardErrorClass)
	zeroDivisionClass = DefineClass(Intern("ZeroDivisionError"), standardErrorClass)
	argumentErrorClass = DefineClass(Intern("ArgumentError"), standardErrorClass)
	indexErrorClass = DefineClass(Intern("IndexError"), standardErrorClass)
	typeErrorClass = DefineClass(Intern("TypeError"), standardErrorClass)
	noMemoryErrorClass = DefineClass(Intern("NoMemoryError"), exceptionClass)

	DefineMethod(exceptionClass, Intern("message"), func(vm *VM, recv Value, args []Value) Value {
		e := recv.obj.(*exceptionObject)
		if e.message.tag == TagNil {
			return StringValue(vm, symName(e.class.name))
		}
		return e.message
	})
	DefineMethod(exceptionClass, Intern("initialize"), func(vm *VM, recv Value, args []Value) Value {
		e := recv.obj.(*exceptionObject)
		if len(args) == 1 {
			assign(vm, &e.message, args[0])
		}
		return recv
	})
}

func symName(id SymID) string {
	s, _ := Lookup(id)
	return s
}

// newException builds an Exception value around class and an optional
// message value (Nil when there is none), owned by vm's current task if
// any.
func newException(vm *VM, class *Class, message Value) Value {
	IncRef(message)
	owner := NoOwner
	if vm != nil && vm.curTask != nil {
		owner = vm.curTask.id
	}
	return Value{tag: TagException, obj: &exceptionObject{header: newHeader(vm, TagException, owner, baseObjectFootprint), class: class, message: message}}
}

// Raise sets the current task's exception slot to class with the given
// message: exc holds the exception class and excMessage a string or nil.
// It returns Nil so built-in methods can `return vm.Raise(...)` as their
// last statement; the interpreter checks exc after every instruction and
// every call.
func (vm *VM) Raise(class *Class, message string) Value {
	if vm.curTask == nil {
		return Nil
	}
	vm.curTask.exc = class
	if message == "" {
		vm.curTask.excMessage = Nil
	} else {
		vm.curTask.excMessage = StringValue(vm, message)
	}
	return Nil
}

// raiseValue implements OpRAISE's single-value raise: a String raises
// RuntimeError with that string as message, a Class raises that class with
// no message, an Exception re-raises its own class and message, and
// anything else raises a bare RuntimeError.
func raiseValue(vm *VM, v Value) Value {
	switch v.tag {
	case TagString:
		return vm.Raise(runtimeErrorClass, stringOf(v))
	case TagClass:
		return vm.Raise(v.obj.(*Class), "")
	case TagException:
		e := v.obj.(*exceptionObject)
		msg := ""
		if e.message.tag == TagString {
			msg = stringOf(e.message)
		}
		return vm.Raise(e.class, msg)
	default:
		return vm.Raise(runtimeErrorClass, "")
	}
}
