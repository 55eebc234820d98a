// scheduler.go - cooperative multitasking across tasks on one native thread

package mrubyc

import "sync"

// PollInterval is how many instructions the interpreter executes between
// scheduler poll points. A poll point counts down the task's timeslice; it
// does not read or advance the tick counter.
var PollInterval = 10

// TicksPerMillisecond converts a sleep duration in milliseconds into
// scheduler ticks. The host's tick callback (VM.Tick) drives the counter;
// this only defines the conversion ratio used by Sleep.
var TicksPerMillisecond = 1

// Scheduler multiplexes Tasks over one native thread. It holds four
// queues — ready, waiting, suspended, dormant — each a singly-linked
// chain through Task.next. The mutex exists for host-side inspection
// (e.g. the -monitor REPL) reading queue state concurrently with the VM
// goroutine; the VM's own queue mutation is always single-threaded.
type Scheduler struct {
	mu            sync.Mutex
	readyHead     *Task
	waitingHead   *Task
	suspendedHead *Task
	dormantHead   *Task
	tick          uint64
}

func newScheduler() *Scheduler {
	return &Scheduler{}
}

func pushTail(head **Task, t *Task) {
	t.next = nil
	if *head == nil {
		*head = t
		return
	}
	cur := *head
	for cur.next != nil {
		cur = cur.next
	}
	cur.next = t
}

func remove(head **Task, t *Task) bool {
	if *head == t {
		*head = t.next
		t.next = nil
		return true
	}
	for cur := *head; cur != nil; cur = cur.next {
		if cur.next == t {
			cur.next = t.next
			t.next = nil
			return true
		}
	}
	return false
}

// enqueueReady appends t to the ready queue and marks it READY.
func (s *Scheduler) enqueueReady(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.state = Ready
	t.remainingSlice = t.timeslice
	pushTail(&s.readyHead, t)
}

// selectNext picks the next task to run: the READY task with the
// numerically lowest priority value runs next; ties are broken by queue
// order (round-robin), since enqueueReady always appends to the tail.
func (s *Scheduler) selectNext() *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readyHead == nil {
		return nil
	}
	best := s.readyHead
	for cur := s.readyHead.next; cur != nil; cur = cur.next {
		if cur.priority < best.priority {
			best = cur
		}
	}
	remove(&s.readyHead, best)
	best.state = Running
	return best
}

// requeue puts a just-run task back onto a queue appropriate to its new
// state (called by the interpreter's dispatch loop when a task yields,
// sleeps, finishes its timeslice, or terminates).
func (s *Scheduler) requeue(t *Task) {
	switch t.state {
	case Ready:
		s.enqueueReady(t)
	case Waiting:
		s.mu.Lock()
		insertByWakeup(&s.waitingHead, t)
		s.mu.Unlock()
	case Suspended:
		s.mu.Lock()
		pushTail(&s.suspendedHead, t)
		s.mu.Unlock()
	case Dormant:
		s.mu.Lock()
		pushTail(&s.dormantHead, t)
		s.mu.Unlock()
	}
}

func insertByWakeup(head **Task, t *Task) {
	if *head == nil || t.wakeupTick < (*head).wakeupTick {
		t.next = *head
		*head = t
		return
	}
	cur := *head
	for cur.next != nil && cur.next.wakeupTick <= t.wakeupTick {
		cur = cur.next
	}
	t.next = cur.next
	cur.next = t
}

// Tick advances the scheduler's tick counter and wakes any WAITING tasks
// whose wakeup has arrived. Driven by a host timer ISR or loop (VM.Tick),
// and by Run while no task is READY.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	s.tick++
	var woken []*Task
	for s.waitingHead != nil && s.waitingHead.wakeupTick <= s.tick {
		t := s.waitingHead
		s.waitingHead = t.next
		t.next = nil
		woken = append(woken, t)
	}
	s.mu.Unlock()
	for _, t := range woken {
		s.enqueueReady(t)
	}
}

func (s *Scheduler) currentTick() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// sleep moves t to WAITING with a wakeup computed from ms milliseconds.
func (s *Scheduler) sleep(t *Task, ms int) {
	s.mu.Lock()
	t.state = Waiting
	t.wakeupTick = s.tick + uint64(ms*TicksPerMillisecond)
	insertByWakeup(&s.waitingHead, t)
	s.mu.Unlock()
}

// suspend moves t to SUSPENDED.
func (s *Scheduler) suspend(t *Task) {
	s.mu.Lock()
	t.state = Suspended
	pushTail(&s.suspendedHead, t)
	s.mu.Unlock()
}

// resume moves a SUSPENDED task back to READY.
func (s *Scheduler) resume(t *Task) bool {
	s.mu.Lock()
	if t.state != Suspended || !remove(&s.suspendedHead, t) {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()
	s.enqueueReady(t)
	return true
}

// terminate moves t to DORMANT and releases every pool block it owns.
// A double-terminate is a no-op, silently ignored.
func (s *Scheduler) terminate(pool *Pool, t *Task) {
	s.mu.Lock()
	switch t.state {
	case Ready:
		remove(&s.readyHead, t)
	case Waiting:
		remove(&s.waitingHead, t)
	case Suspended:
		remove(&s.suspendedHead, t)
	case Dormant:
		s.mu.Unlock()
		return
	}
	t.state = Dormant
	pushTail(&s.dormantHead, t)
	s.mu.Unlock()
	if pool != nil {
		pool.FreeAllOwnedBy(t.id)
	}
}

// allDormant reports whether every known task has terminated — Run's
// clean-exit condition.
func (s *Scheduler) allDormant() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readyHead == nil && s.waitingHead == nil && s.suspendedHead == nil
}

// Mutex is a non-reentrant binary lock with a FIFO wait list.
type Mutex struct {
	mu      sync.Mutex
	sched   *Scheduler
	locked  bool
	owner   *Task
	waiters []*Task
}

// NewMutex creates a mutex coordinated by the VM's scheduler.
func (vm *VM) NewMutex() *Mutex {
	return &Mutex{sched: vm.sched}
}

// Lock attempts to acquire m for t. If m is already held, t is moved to
// WAITING and appended to m's FIFO wait list; the caller (the interpreter)
// must then suspend dispatch for t and return to the scheduler.
func (m *Mutex) Lock(t *Task) (acquired bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.locked {
		m.locked = true
		m.owner = t
		return true
	}
	t.state = Waiting
	t.waitingMutex = m
	m.waiters = append(m.waiters, t)
	return false
}

// Unlock releases m. If waiters remain, the head of the FIFO moves to
// READY and becomes the new owner.
func (m *Mutex) Unlock() {
	m.mu.Lock()
	if len(m.waiters) == 0 {
		m.locked = false
		m.owner = nil
		m.mu.Unlock()
		return
	}
	next := m.waiters[0]
	m.waiters = m.waiters[1:]
	m.owner = next
	next.waitingMutex = nil
	m.mu.Unlock()
	m.sched.enqueueReady(next)
}
