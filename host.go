// host.go - embedding API: the surface a host program drives a VM through

package mrubyc

import (
	"bufio"
	"io"
	"os"
	"sync"
)

// Option configures a VM at Init time.
type Option func(*VM)

// WithStdout redirects Kernel#puts/print/p/printf output away from the
// process's stdout (the default).
func WithStdout(w io.Writer) Option {
	return func(vm *VM) {
		vm.Stdout = &byteSink{w: bufio.NewWriter(w)}
	}
}

// WithTrace enables per-instruction tracing via fn, called once for every
// instruction any task executes. cmd/mrbc's -trace flag uses it.
func WithTrace(fn func(t *Task, pc int, op Op)) Option {
	return func(vm *VM) {
		vm.Trace = true
		vm.TraceFunc = fn
	}
}

type byteSink struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func (b *byteSink) WriteByte(c byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.w.WriteByte(c)
}

func (b *byteSink) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.w.Flush()
}

var bootstrapOnce sync.Once

// Init builds a VM backed by memory, a single fixed buffer the allocator
// (alloc.go) charges every task-owned heap value and register stack
// against for capacity accounting and bulk release at task teardown. The
// values themselves still live on the Go heap, since they carry GC-traced
// pointers and interfaces a raw byte buffer cannot hold; what the pool
// tracks is how much of memory each task has reserved, not the bytes of
// the objects themselves. The process-wide symbol table and class/method
// registry (symbol.go, class.go) bootstrap exactly once per process, the
// first time Init is called anywhere: value representations and the
// method registry are process-global constructs here rather than fields
// threaded through every Value, so a second Init in the same process
// reuses the same classes and symbols, and two fully isolated VM instances
// cannot coexist in one process. A host needing that isolation should run
// each VM in its own process.
func Init(memory []byte, opts ...Option) *VM {
	bootstrapOnce.Do(func() {
		resetSymbolTable(SearchBTree)
		symNew = Intern("new")
		symInitialize = Intern("initialize")
		initBuiltinClasses()
	})
	vm := newVM(NewPool(memory))
	vm.Stdout = &byteSink{w: bufio.NewWriter(os.Stdout)}
	for _, opt := range opts {
		opt(vm)
	}
	return vm
}

// LoadFile is a convenience alias for CreateTask, which loads the bytecode
// itself before creating the task.
func (vm *VM) LoadFile(bytecode []byte, name string) (*Task, error) {
	return vm.CreateTask(bytecode, name)
}

// RunAndFlush drives Run to completion and flushes any buffered Stdout
// output before returning its exit status.
func (vm *VM) RunAndFlush() int {
	status := vm.Run()
	if f, ok := vm.Stdout.(interface{ Flush() error }); ok {
		f.Flush()
	}
	return status
}
