// builtins.go - bootstraps the built-in class hierarchy and Kernel's
// free-function surface (puts, print, p, printf, sprintf, raise)

package mrubyc

import "strconv"

var (
	nilClass     *Class
	trueClassV   *Class
	falseClassV  *Class
	integerClass *Class
	floatClass   *Class
	symbolClass  *Class
	handleClass  *Class
)

// builtinClassFor maps a scalar tag to its built-in class object. Heap tags
// with their own stored class (Object, Class, Exception) never reach here;
// see ClassOf.
func builtinClassFor(tag ValueTag) *Class {
	switch tag {
	case TagNil:
		return nilClass
	case TagTrue:
		return trueClassV
	case TagFalse:
		return falseClassV
	case TagInteger:
		return integerClass
	case TagFloat:
		return floatClass
	case TagSymbol:
		return symbolClass
	case TagString:
		return stringClass
	case TagArray:
		return arrayClass
	case TagHash:
		return hashClass
	case TagRange:
		return rangeClass
	case TagProc:
		return procClass
	case TagHandle:
		return handleClass
	default:
		return objectClass
	}
}

// initBuiltinClasses wires the full class hierarchy and every library
// class's method table. A host calls this exactly once per process, from
// Init; it is idempotent because DefineClass returns an existing class
// rather than redefining it.
func initBuiltinClasses() {
	objectClass = DefineClass(Intern("Object"), nil)
	classClass = DefineClass(Intern("Class"), objectClass)
	nilClass = DefineClass(Intern("NilClass"), objectClass)
	trueClassV = DefineClass(Intern("TrueClass"), objectClass)
	falseClassV = DefineClass(Intern("FalseClass"), objectClass)
	integerClass = DefineClass(Intern("Integer"), objectClass)
	floatClass = DefineClass(Intern("Float"), objectClass)
	symbolClass = DefineClass(Intern("Symbol"), objectClass)
	handleClass = DefineClass(Intern("Handle"), objectClass)

	initExceptionClasses()
	initStringClass()
	initArrayClass()
	initHashClass()
	initRangeClass()
	initProcClass()

	initObjectMethods()
	initKernelMethods()
	initNumericMethods()
}

func initObjectMethods() {
	DefineMethod(objectClass, Intern("class"), func(vm *VM, recv Value, args []Value) Value {
		return classValue(ClassOf(recv))
	})
	DefineMethod(objectClass, Intern("=="), func(vm *VM, recv Value, args []Value) Value {
		if len(args) != 1 {
			return False
		}
		return BoolValue(Compare(recv, args[0]) == 0)
	})
	DefineMethod(objectClass, Intern("to_s"), func(vm *VM, recv Value, args []Value) Value {
		return StringValue(vm, Inspect(recv))
	})
	DefineMethod(objectClass, Intern("inspect"), func(vm *VM, recv Value, args []Value) Value {
		return StringValue(vm, Inspect(recv))
	})
	DefineMethod(objectClass, Intern("kind_of?"), objKindOf)
	DefineMethod(objectClass, Intern("is_a?"), objKindOf)
	DefineMethod(objectClass, Intern("initialize"), func(vm *VM, recv Value, args []Value) Value {
		return recv
	})
}

func objKindOf(vm *VM, recv Value, args []Value) Value {
	if len(args) != 1 || args[0].tag != TagClass {
		return False
	}
	return BoolValue(ObjIsKindOf(recv, args[0].obj.(*Class)))
}

func initKernelMethods() {
	DefineMethod(objectClass, Intern("puts"), kernelPuts)
	DefineMethod(objectClass, Intern("print"), kernelPrint)
	DefineMethod(objectClass, Intern("p"), kernelP)
	DefineMethod(objectClass, Intern("printf"), kernelPrintf)
	DefineMethod(objectClass, Intern("sprintf"), kernelSprintf)
	DefineMethod(objectClass, Intern("raise"), kernelRaise)
}

func writeOut(vm *VM, s string) {
	if vm.Stdout == nil {
		return
	}
	for i := 0; i < len(s); i++ {
		vm.Stdout.WriteByte(s[i])
	}
}

func kernelPuts(vm *VM, recv Value, args []Value) Value {
	if len(args) == 0 {
		writeOut(vm, "\n")
		return Nil
	}
	for _, a := range args {
		if a.tag == TagArray {
			for _, e := range a.obj.(*arrayObject).elems {
				kernelPuts(vm, recv, []Value{e})
			}
			continue
		}
		s := toDisplayString(vm, a)
		writeOut(vm, s)
		if len(s) == 0 || s[len(s)-1] != '\n' {
			writeOut(vm, "\n")
		}
	}
	return Nil
}

func kernelPrint(vm *VM, recv Value, args []Value) Value {
	for _, a := range args {
		writeOut(vm, toDisplayString(vm, a))
	}
	return Nil
}

func kernelP(vm *VM, recv Value, args []Value) Value {
	for _, a := range args {
		writeOut(vm, Inspect(a))
		writeOut(vm, "\n")
	}
	if len(args) == 1 {
		return args[0]
	}
	if len(args) == 0 {
		return Nil
	}
	return ArrayValue(vm, append([]Value(nil), args...))
}

func kernelPrintf(vm *VM, recv Value, args []Value) Value {
	if len(args) == 0 || args[0].tag != TagString {
		return vm.Raise(argumentErrorClass, "printf requires a format string")
	}
	writeOut(vm, Sprintf(vm, stringOf(args[0]), args[1:]))
	return Nil
}

func kernelSprintf(vm *VM, recv Value, args []Value) Value {
	if len(args) == 0 || args[0].tag != TagString {
		return vm.Raise(argumentErrorClass, "sprintf requires a format string")
	}
	return StringValue(vm, Sprintf(vm, stringOf(args[0]), args[1:]))
}

// kernelRaise implements Kernel#raise. With no arguments it re-raises
// RuntimeError with no message (the common "raise" idiom); with a String
// it raises RuntimeError with that message; with a Class it raises that
// class, optionally with a message argument.
func kernelRaise(vm *VM, recv Value, args []Value) Value {
	switch len(args) {
	case 0:
		return vm.Raise(runtimeErrorClass, "")
	case 1:
		if args[0].tag == TagString {
			return vm.Raise(runtimeErrorClass, stringOf(args[0]))
		}
		if args[0].tag == TagClass {
			return vm.Raise(args[0].obj.(*Class), "")
		}
		return vm.Raise(runtimeErrorClass, "")
	default:
		if args[0].tag == TagClass {
			msg := ""
			if args[1].tag == TagString {
				msg = stringOf(args[1])
			}
			return vm.Raise(args[0].obj.(*Class), msg)
		}
		return vm.Raise(runtimeErrorClass, "")
	}
}

func initNumericMethods() {
	DefineMethod(integerClass, Intern("to_s"), func(vm *VM, recv Value, args []Value) Value {
		return StringValue(vm, strconv.FormatInt(recv.i, 10))
	})
	DefineMethod(integerClass, Intern("to_f"), func(vm *VM, recv Value, args []Value) Value {
		return FloatValue(float64(recv.i))
	})
	DefineMethod(integerClass, Intern("to_i"), func(vm *VM, recv Value, args []Value) Value {
		return recv
	})
	DefineMethod(integerClass, Intern("times"), integerTimes)

	DefineMethod(floatClass, Intern("to_s"), func(vm *VM, recv Value, args []Value) Value {
		return StringValue(vm, strconv.FormatFloat(recv.f, 'g', -1, 64))
	})
	DefineMethod(floatClass, Intern("to_i"), func(vm *VM, recv Value, args []Value) Value {
		return IntValue(int64(recv.f))
	})
	DefineMethod(floatClass, Intern("to_f"), func(vm *VM, recv Value, args []Value) Value {
		return recv
	})

	DefineMethod(symbolClass, Intern("to_s"), func(vm *VM, recv Value, args []Value) Value {
		s, _ := Lookup(recv.sym)
		return StringValue(vm, s)
	})
}

// integerTimes invokes the given Proc n times with 0..n-1.
func integerTimes(vm *VM, recv Value, args []Value) Value {
	if len(args) != 1 || args[0].tag != TagProc {
		return vm.Raise(argumentErrorClass, "times requires a block")
	}
	for i := int64(0); i < recv.i; i++ {
		vm.CallProc(args[0], []Value{IntValue(i)})
		if vm.curTask != nil && vm.curTask.exc != nil {
			return Nil
		}
	}
	return recv
}
