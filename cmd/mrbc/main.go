// Command mrbc loads one or more compiled bytecode files and runs them as
// cooperative tasks on a single VM instance.
package main

import (
	"flag"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/dressupgeekout/mrubyc"
)

func main() {
	poolSize := flag.Int("pool-size", 1<<20, "bytes for the fixed-pool allocator")
	trace := flag.Bool("trace", false, "log every dispatched instruction to stderr")
	monitor := flag.Bool("monitor", false, "drop into an interactive task/register inspector instead of free-running")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: mrbc [-pool-size N] [-trace] [-monitor] file.mrb [file.mrb ...]")
		os.Exit(2)
	}

	var opts []mrubyc.Option
	if *trace {
		opts = append(opts, mrubyc.WithTrace(func(t *mrubyc.Task, pc int, op mrubyc.Op) {
			fmt.Fprintf(os.Stderr, "pc=%-5d %s\n", pc, op)
		}))
	}
	vm := mrubyc.Init(make([]byte, *poolSize), opts...)

	for _, path := range flag.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "mrbc: %v\n", err)
			os.Exit(1)
		}
		if _, err := vm.CreateTask(data, path); err != nil {
			fmt.Fprintf(os.Stderr, "mrbc: %s: %v\n", path, err)
			os.Exit(1)
		}
	}

	if *monitor {
		runMonitor(vm)
		return
	}

	os.Exit(vm.RunAndFlush())
}

func runMonitor(vm *mrubyc.VM) {
	m := mrubyc.NewMonitor(vm, os.Stdin, os.Stdout)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		mrubyc.RunRaw(fd, func() error {
			m.Loop()
			return nil
		})
		return
	}
	m.Loop()
}
