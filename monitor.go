// monitor.go - interactive task/register inspector for cmd/mrbc's -monitor flag

package mrubyc

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"golang.org/x/term"
)

// Monitor is a small REPL over a VM: list tasks, dump one task's registers
// and call depth, show pool statistics, and advance the tick. It has no
// command that runs or single-steps a task. It never mutates VM state
// itself beyond what its commands describe.
type Monitor struct {
	vm     *VM
	in     io.Reader
	out    io.Writer
	prompt string
}

// NewMonitor wires a Monitor to vm, reading commands from in and writing
// output to out.
func NewMonitor(vm *VM, in io.Reader, out io.Writer) *Monitor {
	return &Monitor{vm: vm, in: in, out: out, prompt: "mrbc> "}
}

// RunRaw puts fd (typically os.Stdin's descriptor) into raw mode for the
// duration of fn, restoring the previous terminal state on return.
func RunRaw(fd int, fn func() error) error {
	old, err := term.MakeRaw(fd)
	if err != nil {
		// Not a terminal (e.g. piped input in a test harness): run without
		// raw mode rather than failing outright.
		return fn()
	}
	defer term.Restore(fd, old)
	return fn()
}

// Loop reads one command per line until "quit" or EOF.
func (m *Monitor) Loop() {
	scanner := bufio.NewScanner(m.in)
	fmt.Fprint(m.out, m.prompt)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			m.dispatch(line)
			if cmd := strings.Fields(line)[0]; cmd == "quit" || cmd == "q" {
				return
			}
		}
		fmt.Fprint(m.out, m.prompt)
	}
}

func (m *Monitor) dispatch(line string) {
	fields := strings.Fields(line)
	cmd := fields[0]
	switch cmd {
	case "quit", "q":
		fmt.Fprintln(m.out, "bye")
	case "tasks", "t":
		m.printTasks()
	case "regs", "r":
		if len(fields) < 2 {
			fmt.Fprintln(m.out, "usage: regs <task-id>")
			return
		}
		m.printRegs(fields[1])
	case "pool":
		total, used, free, frag := m.vm.pool.Stats()
		fmt.Fprintf(m.out, "pool: total=%d used=%d free=%d fragments=%d\n", total, used, free, frag)
	case "tick":
		m.vm.Tick()
		fmt.Fprintln(m.out, "tick")
	case "help", "h":
		fmt.Fprintln(m.out, "commands: tasks, regs <id>, pool, tick, quit")
	default:
		fmt.Fprintf(m.out, "unknown command %q (try help)\n", cmd)
	}
}

func (m *Monitor) printTasks() {
	m.vm.mu.Lock()
	tasks := append([]*Task(nil), m.vm.tasks...)
	m.vm.mu.Unlock()
	for _, t := range tasks {
		name := "<unnamed>"
		if sym, ok := t.Name(); ok {
			name = symName(sym)
		}
		fmt.Fprintf(m.out, "%4d  %-10s  %-9s  pri=%d  pc=%d\n", t.id, name, t.State(), t.priority, t.pc)
	}
}

func (m *Monitor) printRegs(idStr string) {
	m.vm.mu.Lock()
	var target *Task
	for _, t := range m.vm.tasks {
		if fmt.Sprint(t.id) == idStr {
			target = t
			break
		}
	}
	m.vm.mu.Unlock()
	if target == nil {
		fmt.Fprintln(m.out, "no such task")
		return
	}
	n := int(target.irep.NRegs)
	if n == 0 {
		n = 8
	}
	for i := 0; i < n && target.regBase+i < len(target.regs); i++ {
		fmt.Fprintf(m.out, "  r%-3d %s\n", i, Inspect(target.regs[target.regBase+i]))
	}
	depth := 0
	for cf := target.frames; cf != nil; cf = cf.next {
		depth++
	}
	fmt.Fprintf(m.out, "  call depth: %d\n", depth)
}
