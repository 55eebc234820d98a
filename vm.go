// vm.go - the register-based bytecode interpreter: dispatch loop, calling
// convention, and exception propagation

package mrubyc

import "sync"

// VM owns the allocator, the symbol/class registries (process-wide, shared
// across every VM in the process — see host.go's single-instance note),
// the scheduler, and the set of tasks created against it.
type VM struct {
	pool  *Pool
	sched *Scheduler

	mu         sync.Mutex
	tasks      []*Task
	nextTaskID TaskID

	curTask *Task

	globalsMu sync.Mutex
	globals   map[SymID]Value

	Trace bool // when true, Run logs each dispatched instruction via TraceFunc
	TraceFunc func(t *Task, pc int, op Op)

	Stdout interface {
		WriteByte(b byte) error
	}
}

func newVM(pool *Pool) *VM {
	return &VM{
		pool:    pool,
		sched:   newScheduler(),
		globals: map[SymID]Value{},
	}
}

// CreateTask loads bytecode, creates a task around it, enqueues it READY,
// and returns it without running it (Run starts every created task the
// first time the scheduler selects it).
func (vm *VM) CreateTask(bytecode []byte, name string) (*Task, error) {
	irep, err := Load(bytecode)
	if err != nil {
		return nil, err
	}
	vm.mu.Lock()
	id := vm.nextTaskID
	vm.nextTaskID++
	vm.mu.Unlock()

	handle := noPoolHandle
	if vm.pool != nil {
		h, _, ok := vm.pool.Alloc(uint32(DefaultRegStackSize)*valueFootprint, id)
		if !ok {
			return nil, ErrPoolExhausted
		}
		handle = h
	}

	var sym SymID
	hasName := name != ""
	if hasName {
		sym = Intern(name)
	}
	t := newTask(vm, id, irep, sym, hasName)
	t.self = Nil
	t.curOwnClass = objectClass
	t.poolHandle = handle

	vm.mu.Lock()
	vm.tasks = append(vm.tasks, t)
	vm.mu.Unlock()

	vm.sched.enqueueReady(t)
	return t, nil
}

// Suspend, Resume and Terminate expose scheduler state transitions for
// host-level task control.
func (vm *VM) SuspendTask(t *Task)  { vm.sched.suspend(t) }
func (vm *VM) ResumeTask(t *Task) bool { return vm.sched.resume(t) }
func (vm *VM) TerminateTask(t *Task) { vm.sched.terminate(vm.pool, t) }

// Tick advances the scheduler's notion of time by one unit, waking any
// sleeping tasks whose deadline has arrived. A host drives this from its
// own timer; Run itself advances the tick only while no task is READY.
func (vm *VM) Tick() { vm.sched.Tick() }

// runResult is what one scheduling slice of a task ended with.
type runResult int

const (
	runYielded runResult = iota
	runTimesliceExpired
	runSleeping
	runBlocked
	runFinished
)

// Run drives every created task to completion (or forever, for tasks that
// never terminate) and returns a process exit status: 0 if every task
// finished cleanly, non-zero if any task's run ended in an uncaught
// exception.
func (vm *VM) Run() int {
	exitStatus := 0
	idleTicks := 0
	for !vm.sched.allDormant() {
		t := vm.sched.selectNext()
		if t == nil {
			// Nothing READY: every live task is asleep or blocked. Advance
			// the clock so sleepers can wake; a real host would instead
			// block on its own timer/IO here.
			vm.sched.Tick()
			idleTicks++
			if idleTicks > 1_000_000 {
				// A million idle ticks in a row with nothing READY: stop
				// spinning and return, abandoning any task still asleep.
				break
			}
			continue
		}
		idleTicks = 0
		vm.curTask = t
		result := vm.runSlice(t)
		vm.curTask = nil

		switch result {
		case runYielded, runTimesliceExpired:
			vm.sched.enqueueReady(t)
		case runSleeping, runBlocked:
			// Already moved to the appropriate queue by the opcode handler.
		case runFinished:
			if t.exc != nil {
				exitStatus = 1
			}
			vm.sched.terminate(vm.pool, t)
		}
	}
	return exitStatus
}

// runSlice executes t for up to its timeslice (measured in poll points,
// PollInterval instructions each), or until it yields, sleeps, blocks on a
// mutex, or finishes — whichever comes first.
func (vm *VM) runSlice(t *Task) runResult {
	for t.remainingSlice > 0 {
		for i := 0; i < PollInterval; i++ {
			sig := vm.step(t)
			switch sig {
			case sigContinue:
				continue
			case sigYield:
				return runYielded
			case sigSleep:
				return runSleeping
			case sigBlocked:
				return runBlocked
			case sigFinished:
				return runFinished
			}
		}
		t.remainingSlice--
	}
	return runTimesliceExpired
}

type signal int

const (
	sigContinue signal = iota
	sigYield
	sigSleep
	sigBlocked
	sigFinished
)

// step decodes and executes exactly one instruction for t, leaving t.pc
// advanced past it (unless the instruction itself redirected control flow,
// e.g. a jump or a call). If the instruction raised (built-in or OpRAISE),
// step immediately attempts to find a handler before returning, rather
// than letting a pending exception ride through further instructions.
func (vm *VM) step(t *Task) signal {
	if t.pc < 0 || t.pc >= len(t.irep.instructions) {
		return vm.finishFrame(t)
	}
	i := decodeInstr(t.irep.instructions, t.pc)
	if vm.Trace && vm.TraceFunc != nil {
		vm.TraceFunc(t, t.pc, i.op)
	}
	next := t.pc + instrLen(i.op)
	t.pc = next

	r := t.regBase
	switch i.op {
	case OpNOP:
	case OpHALT:
		return sigFinished
	case OpYIELDTASK:
		return sigYield
	case OpABORT:
		return vm.finishFrame(t)
	case OpRETRY:
		// Restart the current frame's instruction stream at pc 0.
		t.pc = 0

	case OpLOADNIL:
		assign(vm, &t.regs[r+int(i.a)], Nil)
	case OpLOADSELF:
		assign(vm, &t.regs[r+int(i.a)], t.self)
	case OpLOADT:
		assign(vm, &t.regs[r+int(i.a)], True)
	case OpLOADF:
		assign(vm, &t.regs[r+int(i.a)], False)

	case OpRETURN:
		return vm.doReturn(t, t.regs[r+int(i.a)])

	case OpRAISE:
		raiseValue(vm, t.regs[r+int(i.a)])
		return vm.propagate(t)

	case OpSLEEP:
		ms := int(t.regs[r+int(i.a)].i)
		t.state = Waiting
		vm.sched.sleep(t, ms)
		return sigSleep

	case OpEXCEPT:
		assign(vm, &t.regs[r+int(i.a)], newException(vm, t.exc, t.excMessage))
		t.exc = nil
		t.excMessage = Nil

	case OpMOVE:
		assign(vm, &t.regs[r+int(i.a)], t.regs[r+int(i.b16)])
	case OpADD, OpSUB, OpMUL, OpDIV, OpMOD:
		res, sig := vm.arith(t, i.op, t.regs[r+int(i.a)], t.regs[r+int(i.b16)])
		if sig != sigContinue {
			return sig
		}
		assign(vm, &t.regs[r+int(i.a)], res)
	case OpEQ:
		assign(vm, &t.regs[r+int(i.a)], BoolValue(Compare(t.regs[r+int(i.a)], t.regs[r+int(i.b16)]) == 0))
	case OpLT:
		assign(vm, &t.regs[r+int(i.a)], BoolValue(Compare(t.regs[r+int(i.a)], t.regs[r+int(i.b16)]) < 0))
	case OpLE:
		assign(vm, &t.regs[r+int(i.a)], BoolValue(Compare(t.regs[r+int(i.a)], t.regs[r+int(i.b16)]) <= 0))
	case OpGT:
		assign(vm, &t.regs[r+int(i.a)], BoolValue(Compare(t.regs[r+int(i.a)], t.regs[r+int(i.b16)]) > 0))
	case OpGE:
		assign(vm, &t.regs[r+int(i.a)], BoolValue(Compare(t.regs[r+int(i.a)], t.regs[r+int(i.b16)]) >= 0))
	case OpARRAY:
		n := int(i.b16)
		elems := make([]Value, n)
		copy(elems, t.regs[r+int(i.a):r+int(i.a)+n])
		for _, v := range elems {
			IncRef(v)
		}
		assign(vm, &t.regs[r+int(i.a)], ArrayValue(vm, elems))
	case OpHASH:
		n := int(i.b16)
		pairs := make([]hashPair, n)
		for k := 0; k < n; k++ {
			pairs[k] = hashPair{key: t.regs[r+int(i.a)+2*k], val: t.regs[r+int(i.a)+2*k+1]}
			IncRef(pairs[k].key)
			IncRef(pairs[k].val)
		}
		assign(vm, &t.regs[r+int(i.a)], HashValue(vm, pairs))
	case OpRANGE:
		excl := i.c != 0
		assign(vm, &t.regs[r+int(i.a)], RangeValue(vm, t.regs[r+int(i.a)], t.regs[r+int(i.b16)], excl))
	case OpSUPER:
		return vm.doSuper(t, i)
	case OpCALL:
		return vm.doCall(t, i)

	case OpLOADI:
		assign(vm, &t.regs[r+int(i.a)], IntValue(int64(int16(i.b16))))
	case OpLOADL:
		v, err := t.irep.PoolValue(vm, int(i.b16))
		if err != nil {
			vm.Raise(runtimeErrorClass, "bad literal pool index")
			return vm.propagate(t)
		}
		assign(vm, &t.regs[r+int(i.a)], v)
	case OpLOADSYM:
		assign(vm, &t.regs[r+int(i.a)], SymbolValue(t.irep.Syms[i.b16]))
	case OpSTRING:
		v, err := t.irep.PoolValue(vm, int(i.b16))
		if err != nil {
			vm.Raise(runtimeErrorClass, "bad literal pool index")
			return vm.propagate(t)
		}
		assign(vm, &t.regs[r+int(i.a)], v)
	case OpGETIV:
		if t.self.tag != TagObject {
			assign(vm, &t.regs[r+int(i.a)], Nil)
		} else {
			inst := t.self.obj.(*instanceObject)
			assign(vm, &t.regs[r+int(i.a)], inst.ivars[t.irep.Syms[i.b16]])
		}
	case OpSETIV:
		if t.self.tag == TagObject {
			inst := t.self.obj.(*instanceObject)
			sym := t.irep.Syms[i.b16]
			old := inst.ivars[sym]
			assign(vm, &old, t.regs[r+int(i.a)])
			inst.ivars[sym] = old
		}
	case OpGETCONST:
		sym := t.irep.Syms[i.b16]
		v, ok := vm.lookupConst(sym)
		if !ok {
			vm.Raise(runtimeErrorClass, "uninitialized constant "+symName(sym))
			return vm.propagate(t)
		}
		assign(vm, &t.regs[r+int(i.a)], v)
	case OpSETCONST:
		vm.setConst(t.irep.Syms[i.b16], t.regs[r+int(i.a)])
	case OpJMP:
		t.pc = int(i.b16)
	case OpJMPIF:
		if isTruthy(t.regs[r+int(i.a)]) {
			t.pc = int(i.b16)
		}
	case OpJMPNOT:
		if !isTruthy(t.regs[r+int(i.a)]) {
			t.pc = int(i.b16)
		}
	case OpBLOCK:
		childIdx := int(i.b16)
		child := t.irep.Children[childIdx]
		frame := capturedFrame{self: t.self, ownClass: t.curOwnClass, methodID: t.curMethodID}
		assign(vm, &t.regs[r+int(i.a)], NewProc(vm, child, frame))

	case OpSEND:
		return vm.doSend(t, i)
	case OpCLASS:
		return vm.doClass(t, i)
	case OpMETHOD:
		childIdx := int(i.c16)
		sym := t.irep.Syms[i.b16]
		classVal := t.regs[r+int(i.a)]
		if classVal.tag == TagClass {
			DefineMethodIrep(classVal.obj.(*Class), sym, t.irep.Children[childIdx])
		}
	}

	if t.exc != nil {
		return vm.propagate(t)
	}
	return sigContinue
}

func isTruthy(v Value) bool {
	return v.tag != TagNil && v.tag != TagFalse
}

// arith implements the five numeric binary opcodes with Integer/Float
// promotion: Integer op Integer stays Integer (two's-complement wraparound,
// per Go's native int64 semantics), any Float operand promotes the result
// to Float, and integer division/modulo by zero raises ZeroDivisionError.
func (vm *VM) arith(t *Task, op Op, a, b Value) (Value, signal) {
	if a.tag != TagInteger && a.tag != TagFloat {
		vm.Raise(typeErrorClass, "not a number")
		return Nil, vm.propagate(t)
	}
	if b.tag != TagInteger && b.tag != TagFloat {
		vm.Raise(typeErrorClass, "not a number")
		return Nil, vm.propagate(t)
	}
	if a.tag == TagInteger && b.tag == TagInteger {
		x, y := a.i, b.i
		switch op {
		case OpADD:
			return IntValue(x + y), sigContinue
		case OpSUB:
			return IntValue(x - y), sigContinue
		case OpMUL:
			return IntValue(x * y), sigContinue
		case OpDIV:
			if y == 0 {
				vm.Raise(zeroDivisionClass, "divided by 0")
				return Nil, vm.propagate(t)
			}
			return IntValue(x / y), sigContinue
		case OpMOD:
			if y == 0 {
				vm.Raise(zeroDivisionClass, "divided by 0")
				return Nil, vm.propagate(t)
			}
			return IntValue(x % y), sigContinue
		}
	}
	x, y := toFloat(a), toFloat(b)
	switch op {
	case OpADD:
		return FloatValue(x + y), sigContinue
	case OpSUB:
		return FloatValue(x - y), sigContinue
	case OpMUL:
		return FloatValue(x * y), sigContinue
	case OpDIV:
		return FloatValue(x / y), sigContinue
	case OpMOD:
		return FloatValue(float64(int64(x) % int64(y))), sigContinue
	}
	return Nil, sigContinue
}

func (vm *VM) lookupConst(sym SymID) (Value, bool) {
	vm.globalsMu.Lock()
	v, ok := vm.globals[sym]
	vm.globalsMu.Unlock()
	if ok {
		return v, true
	}
	if c, ok := LookupClass(sym); ok {
		return classValue(c), true
	}
	return Nil, false
}

func (vm *VM) setConst(sym SymID, v Value) {
	vm.globalsMu.Lock()
	defer vm.globalsMu.Unlock()
	old, existed := vm.globals[sym]
	if existed {
		IncRef(v)
		DecRef(vm, old)
	} else {
		IncRef(v)
	}
	vm.globals[sym] = v
}

// doSend implements method dispatch (OpSEND a,sym,nargs): the receiver and
// result share register a, exactly as the reference interpreter's calling
// convention does, so the callee's frame can be based directly at a.
func (vm *VM) doSend(t *Task, i instr) signal {
	r := t.regBase
	a := int(i.a)
	sym := t.irep.Syms[i.b16]
	nargs := int(i.c)
	recv := t.regs[r+a]
	args := t.regs[r+a+1 : r+a+1+nargs]

	if recv.tag == TagClass && sym == symNew {
		return vm.doNew(t, r+a, recv.obj.(*Class), args)
	}

	entry, owner, ok := FindMethod(ClassOf(recv), sym)
	if !ok {
		vm.Raise(runtimeErrorClass, "undefined method '"+symName(sym)+"'")
		return vm.propagate(t)
	}
	return vm.invokeMethod(t, r+a, recv, args, entry, owner, sym)
}

// doSuper dispatches to the current method's name, starting the search one
// class above the class in which the running method was found.
func (vm *VM) doSuper(t *Task, i instr) signal {
	r := t.regBase
	a := int(i.a)
	nargs := int(i.b16)
	recv := t.self
	args := t.regs[r+a : r+a+nargs]

	if t.curOwnClass == nil || t.curOwnClass.super == nil {
		vm.Raise(runtimeErrorClass, "super called outside of method")
		return vm.propagate(t)
	}
	entry, owner, ok := FindMethod(t.curOwnClass.super, t.curMethodID)
	if !ok {
		vm.Raise(runtimeErrorClass, "no superclass method '"+symName(t.curMethodID)+"'")
		return vm.propagate(t)
	}
	return vm.invokeMethod(t, r+a, recv, args, entry, owner, t.curMethodID)
}

// doCall implements Proc invocation via OpCALL (recv must be a Proc).
func (vm *VM) doCall(t *Task, i instr) signal {
	r := t.regBase
	a := int(i.a)
	nargs := int(i.b16)
	recv := t.regs[r+a]
	args := t.regs[r+a+1 : r+a+1+nargs]
	if recv.tag != TagProc {
		vm.Raise(typeErrorClass, "not a Proc")
		return vm.propagate(t)
	}
	p := recv.obj.(*procObject)
	return vm.invokeBody(t, r+a, p.irep, p.frame.self, args, p.frame.ownClass, p.frame.methodID)
}

// invokeMethod dispatches to a resolved methodEntry: either a built-in Go
// function (called synchronously, result stored immediately) or a
// bytecode body (a new call frame is pushed and control transfers there).
func (vm *VM) invokeMethod(t *Task, destReg int, recv Value, args []Value, entry *methodEntry, owner *Class, sym SymID) signal {
	if entry.fn != nil {
		result := entry.fn(vm, recv, args)
		if t.exc != nil {
			return vm.propagate(t)
		}
		assign(vm, &t.regs[destReg], result)
		return sigContinue
	}
	return vm.invokeBody(t, destReg, entry.irep, recv, args, owner, sym)
}

// invokeBody pushes a callinfo recording everything needed to resume the
// caller, then switches the task onto irep's body at a fresh register
// window based at destReg.
func (vm *VM) invokeBody(t *Task, destReg int, irep *IREP, self Value, args []Value, ownClass *Class, methodID SymID) signal {
	return vm.invokeBodyFrame(t, destReg, irep, self, args, ownClass, methodID, false, Nil)
}

func (vm *VM) invokeBodyFrame(t *Task, destReg int, irep *IREP, self Value, args []Value, ownClass *Class, methodID SymID, isNewCall bool, newInstance Value) signal {
	t.frames = &callinfo{
		callerIrep:    t.irep,
		callerPC:      t.pc,
		callerRegBase: t.regBase,
		methodID:      t.curMethodID,
		ownClass:      t.curOwnClass,
		regBase:       destReg,
		nArgs:         len(args),
		next:          t.frames,
		isNewCall:     isNewCall,
		newInstance:   newInstance,
	}
	t.irep = irep
	t.pc = 0
	t.regBase = destReg
	t.self = self
	t.curOwnClass = ownClass
	t.curMethodID = methodID

	if destReg+int(irep.NRegs) > len(t.regs) {
		vm.Raise(runtimeErrorClass, "register stack overflow")
		return vm.propagate(t)
	}
	assign(vm, &t.regs[destReg], self)
	for idx, v := range args {
		if destReg+1+idx < len(t.regs) {
			assign(vm, &t.regs[destReg+1+idx], v)
		}
	}
	return sigContinue
}

// doReturn pops the current call frame, placing val in the caller's
// receiver/result register and restoring the caller's irep/pc/regBase/self.
// If there is no caller frame, the task's top-level body has finished.
func (vm *VM) doReturn(t *Task, val Value) signal {
	cf := t.frames
	if cf == nil {
		return sigFinished
	}
	t.frames = cf.next
	destReg := cf.regBase
	t.irep = cf.callerIrep
	t.pc = cf.callerPC
	t.regBase = cf.callerRegBase
	t.curOwnClass = cf.ownClass
	t.curMethodID = cf.methodID
	if cf.next != nil {
		t.self = t.regs[cf.next.regBase]
	} else {
		t.self = Nil
	}
	if cf.isNewCall {
		val = cf.newInstance
	}
	assign(vm, &t.regs[destReg], val)
	return sigContinue
}

// finishFrame is reached when pc runs off the end of the current irep
// without an explicit RETURN (a bare method/block body falling through).
// It behaves like a RETURN of Nil.
func (vm *VM) finishFrame(t *Task) signal {
	return vm.doReturn(t, Nil)
}

// propagate is called whenever t.exc has just been set. It walks the
// current frame's catch handlers first; if none match, it unwinds one
// frame (as if the failing call had returned) and tries again, continuing
// until a handler is found or the frame chain is exhausted.
func (vm *VM) propagate(t *Task) signal {
	for {
		for _, ch := range t.irep.Catches {
			if uint32(t.pc) > ch.Begin && uint32(t.pc) <= ch.End {
				t.pc = int(ch.Target)
				return sigContinue
			}
		}
		if t.frames == nil {
			return sigFinished
		}
		cf := t.frames
		t.frames = cf.next
		t.irep = cf.callerIrep
		t.pc = cf.callerPC
		t.regBase = cf.callerRegBase
		t.curOwnClass = cf.ownClass
		t.curMethodID = cf.methodID
		if cf.next != nil {
			t.self = t.regs[cf.next.regBase]
		} else {
			t.self = Nil
		}
	}
}

var symNew, symInitialize SymID

func init() {
	symNew = Intern("new")
	symInitialize = Intern("initialize")
}

// doNew implements `new`: allocate a bare instance, then — if the class (or
// an ancestor) defines initialize — run it through the ordinary call
// machinery (so exceptions raised inside initialize propagate back into
// the allocating frame exactly as any other call's would), but with the
// frame marked isNewCall so that whatever initialize returns is discarded
// in favour of the instance itself once control returns here. Without this
// override, the calling convention's receiver/result register aliasing
// would let initialize's return value silently replace the new instance.
func (vm *VM) doNew(t *Task, destReg int, class *Class, args []Value) signal {
	owner := NoOwner
	if vm.curTask != nil {
		owner = vm.curTask.id
	}
	inst := InstanceNew(vm, class, owner)

	entry, ownerClass, ok := FindMethod(class, symInitialize)
	if !ok {
		assign(vm, &t.regs[destReg], inst)
		return sigContinue
	}
	if entry.fn != nil {
		entry.fn(vm, inst, args)
		if t.exc != nil {
			return vm.propagate(t)
		}
		assign(vm, &t.regs[destReg], inst)
		return sigContinue
	}
	return vm.invokeBodyFrame(t, destReg, entry.irep, inst, args, ownerClass, symInitialize, true, inst)
}

// doClass implements OpCLASS: define (or reopen) a class, optionally with
// a superclass already loaded into a register.
func (vm *VM) doClass(t *Task, i instr) signal {
	r := t.regBase
	name := t.irep.Syms[i.b16]
	var super *Class
	if i.c != 0xFF {
		superVal := t.regs[r+int(i.c)]
		if superVal.tag == TagClass {
			super = superVal.obj.(*Class)
		}
	}
	c := DefineClass(name, super)
	assign(vm, &t.regs[r+int(i.a)], classValue(c))
	return sigContinue
}

// CallProc is the host- and library-facing entry point for invoking a Proc
// synchronously (Proc#call, and any built-in that accepts a block). It
// only makes sense while a task is current; outside of one it is a no-op
// returning Nil.
func (vm *VM) CallProc(recv Value, args []Value) Value {
	t := vm.curTask
	if t == nil || recv.tag != TagProc {
		return Nil
	}
	p := recv.obj.(*procObject)
	destReg := t.regBase + int(t.irep.NRegs) // scratch register past the caller's own frame
	if destReg+int(p.irep.NRegs) >= len(t.regs) {
		vm.Raise(runtimeErrorClass, "register stack overflow")
		return Nil
	}
	baseFrame := t.frames
	sig := vm.invokeBody(t, destReg, p.irep, p.frame.self, args, p.frame.ownClass, p.frame.methodID)
	if sig != sigContinue {
		return Nil
	}
	for t.frames != baseFrame && t.exc == nil {
		sig = vm.step(t)
		if sig == sigFinished {
			break
		}
	}
	return t.regs[destReg]
}
