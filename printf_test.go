package mrubyc

import "testing"

func TestSprintfBasicVerbs(t *testing.T) {
	Init(make([]byte, 1<<16))
	cases := []struct {
		format string
		args   []Value
		want   string
	}{
		{"%d", []Value{IntValue(42)}, "42"},
		{"%d", []Value{IntValue(-7)}, "-7"},
		{"%x", []Value{IntValue(255)}, "ff"},
		{"%o", []Value{IntValue(8)}, "10"},
		{"%c", []Value{IntValue('A')}, "A"},
		{"%f", []Value{FloatValue(1.5)}, "1.500000"},
		{"%.2f", []Value{FloatValue(1.5)}, "1.50"},
		{"%s", []Value{StringValue(nil, "hi")}, "hi"},
		{"%%", nil, "%"},
		{"sum: %d+%d", []Value{IntValue(1), IntValue(2)}, "sum: 1+2"},
	}
	for _, c := range cases {
		got := Sprintf(nil, c.format, c.args)
		if got != c.want {
			t.Errorf("Sprintf(%q, %v) = %q, want %q", c.format, c.args, got, c.want)
		}
	}
}

func TestSprintfWidthAndPadding(t *testing.T) {
	if got := Sprintf(nil, "%5d", []Value{IntValue(3)}); got != "    3" {
		t.Errorf("%%5d = %q, want %q", got, "    3")
	}
	if got := Sprintf(nil, "%-5d|", []Value{IntValue(3)}); got != "3    |" {
		t.Errorf("%%-5d| = %q, want %q", got, "3    |")
	}
	if got := Sprintf(nil, "%05d", []Value{IntValue(3)}); got != "00003" {
		t.Errorf("%%05d = %q, want %q", got, "00003")
	}
}

func TestSprintfSignFlags(t *testing.T) {
	if got := Sprintf(nil, "%+d", []Value{IntValue(3)}); got != "+3" {
		t.Errorf("%%+d = %q, want %q", got, "+3")
	}
	if got := Sprintf(nil, "%+d", []Value{IntValue(-3)}); got != "-3" {
		t.Errorf("%%+d = %q, want %q", got, "-3")
	}
	if got := Sprintf(nil, "% d", []Value{IntValue(3)}); got != " 3" {
		t.Errorf("%% d = %q, want %q", got, " 3")
	}
}

func TestSprintfArgumentCountMismatchRaises(t *testing.T) {
	vm := Init(make([]byte, 1<<16))
	vm.tasks = append(vm.tasks, newTask(vm, 0, nil, 0, false))
	vm.curTask = vm.tasks[0]

	Sprintf(vm, "%d %d", []Value{IntValue(1)})
	if vm.curTask.exc != argumentErrorClass {
		t.Fatalf("exc = %v, want argumentErrorClass", vm.curTask.exc)
	}
}

func TestInspectLiterals(t *testing.T) {
	cases := []struct {
		v    Value
		want string
	}{
		{Nil, "nil"},
		{True, "true"},
		{False, "false"},
		{IntValue(5), "5"},
		{StringValue(nil, "hi"), `"hi"`},
	}
	for _, c := range cases {
		if got := Inspect(c.v); got != c.want {
			t.Errorf("Inspect(%v) = %q, want %q", c.v, got, c.want)
		}
	}
}

func TestInspectArray(t *testing.T) {
	arr := ArrayValue(nil, []Value{IntValue(1), StringValue(nil, "x")})
	got := Inspect(arr)
	want := `[1, "x"]`
	if got != want {
		t.Errorf("Inspect(array) = %q, want %q", got, want)
	}
}

func TestToDisplayStringUsesToS(t *testing.T) {
	Init(make([]byte, 1<<16))
	got := toDisplayString(nil, IntValue(7))
	if got != "7" {
		t.Errorf("toDisplayString(Integer) = %q, want %q", got, "7")
	}
}
