// proc.go - Proc (block/closure) value

package mrubyc

// capturedFrame is the subset of a callinfo a Proc needs to remember so
// that, when later called, self, own_class and the enclosing method id
// resolve exactly as they did at the point the Proc was created (used for
// super resolution inside the body).
type capturedFrame struct {
	self     Value
	ownClass *Class
	methodID SymID
}

type procObject struct {
	header objHeader
	irep   *IREP
	frame  capturedFrame
}

func (o *procObject) hdr() *objHeader { return &o.header }

func init() {
	RegisterDestructor(TagProc, func(vm *VM, obj heapObject) {
		p := obj.(*procObject)
		DecRef(vm, p.frame.self)
	})
}

// NewProc captures irep's body together with the currently executing
// frame, producing a first-class Proc value.
func NewProc(vm *VM, irep *IREP, frame capturedFrame) Value {
	owner := NoOwner
	if vm.curTask != nil {
		owner = vm.curTask.id
	}
	IncRef(frame.self)
	return Value{tag: TagProc, obj: &procObject{header: newHeader(vm, TagProc, owner, baseObjectFootprint), irep: irep, frame: frame}}
}

var procClass *Class

func initProcClass() {
	procClass = DefineClass(Intern("Proc"), objectClass)
	DefineMethod(procClass, Intern("call"), func(vm *VM, recv Value, args []Value) Value {
		return vm.CallProc(recv, args)
	})
}
