// task.go - a unit of cooperative execution

package mrubyc

// TaskState is one of the five states a task can occupy.
type TaskState int

const (
	Dormant TaskState = iota
	Ready
	Running
	Waiting
	Suspended
)

func (s TaskState) String() string {
	switch s {
	case Dormant:
		return "DORMANT"
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Waiting:
		return "WAITING"
	case Suspended:
		return "SUSPENDED"
	default:
		return "?"
	}
}

// callinfo is a call frame: one node in the task's call-frame chain. It
// records exactly what the interpreter needs to resume the caller when
// the callee returns, and what it needs for `super` resolution while the
// callee is running.
type callinfo struct {
	callerIrep    *IREP
	callerPC      int
	callerRegBase int
	methodID      SymID
	ownClass      *Class // class in which the running method was found
	regBase       int    // absolute offset of the callee's register window
	nArgs         int
	next          *callinfo

	// isNewCall and newInstance let vm.go's doNew override initialize's
	// return value: `new` always yields the instance regardless of what
	// initialize returns, even though the calling convention otherwise
	// reuses the result register for the callee's own return value.
	isNewCall   bool
	newInstance Value
}

// DefaultRegStackSize is the number of Value slots reserved for every
// task's register stack, read when the task is created. Deeply constrained
// hosts can lower this; it bounds both call depth and per-call register
// usage.
var DefaultRegStackSize = 512

// Task owns one register stack and one call-frame chain; it is the unit
// the scheduler multiplexes.
type Task struct {
	id       TaskID
	name     SymID
	hasName  bool
	state    TaskState
	priority int
	timeslice int
	remainingSlice int
	wakeupTick uint64

	regs     []Value
	irep     *IREP
	pc       int
	regBase  int
	frames   *callinfo

	self        Value  // current frame's self
	curOwnClass *Class // class in which the current frame's method was found
	curMethodID SymID  // symbol id of the current frame's method, for super

	exc        *Class
	excMessage Value

	waitingMutex *Mutex

	next *Task // scheduler queue link

	vm *VM

	poolHandle int32 // register-stack reservation charged against vm.pool, noPoolHandle if none
}

// DefaultTimeslice is the number of polls a task runs before the
// scheduler round-robins to the next READY task of equal priority.
var DefaultTimeslice = 4

func newTask(vm *VM, id TaskID, irep *IREP, name SymID, hasName bool) *Task {
	t := &Task{
		id:             id,
		name:           name,
		hasName:        hasName,
		state:          Dormant,
		priority:       16,
		timeslice:      DefaultTimeslice,
		remainingSlice: DefaultTimeslice,
		regs:           make([]Value, DefaultRegStackSize),
		irep:           irep,
		pc:             0,
		regBase:        0,
		self:           Nil,
		excMessage:     Nil,
		vm:             vm,
		poolHandle:     noPoolHandle,
	}
	return t
}

// Name returns the task's name and whether one was given at creation.
func (t *Task) Name() (SymID, bool) { return t.name, t.hasName }

// State returns the task's current scheduler state.
func (t *Task) State() TaskState { return t.state }
