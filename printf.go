// printf.go - the sprintf/printf format-string engine backing Kernel#printf
// and Kernel#sprintf

package mrubyc

import (
	"strconv"
	"strings"
)

// formatSpec is one parsed conversion: flags, width, precision and verb.
// The parser below walks the format string byte by byte, a
// character-class-driven walk decoding one field at a time.
type formatSpec struct {
	leftAlign bool
	zeroPad   bool
	plusSign  bool
	space     bool
	width     int
	hasWidth  bool
	precision int
	hasPrec   bool
	verb      byte
}

// Sprintf renders format against args, consuming one argument per
// conversion (except a literal %%). Unsupported verbs, malformed specs and
// too few arguments raise ArgumentError via vm.Raise and return the text
// rendered up to that point; surplus arguments are ignored.
func Sprintf(vm *VM, format string, args []Value) string {
	var out strings.Builder
	argi := 0
	nextArg := func() (Value, bool) {
		if argi >= len(args) {
			return Nil, false
		}
		v := args[argi]
		argi++
		return v, true
	}

	i := 0
	for i < len(format) {
		c := format[i]
		if c != '%' {
			out.WriteByte(c)
			i++
			continue
		}
		spec, next, ok := parseSpec(format, i)
		if !ok {
			vm.Raise(argumentErrorClass, "malformed format string")
			return out.String()
		}
		i = next
		if spec.verb == '%' {
			out.WriteByte('%')
			continue
		}
		arg, ok := nextArg()
		if !ok {
			vm.Raise(argumentErrorClass, "too few arguments for format string")
			return out.String()
		}
		rendered, err := renderOne(vm, spec, arg)
		if err != "" {
			vm.Raise(argumentErrorClass, err)
			return out.String()
		}
		out.WriteString(pad(rendered, spec))
	}
	return out.String()
}

// parseSpec parses one "%...X" conversion starting at the '%' byte index i,
// returning the spec and the index just past the verb character.
func parseSpec(format string, i int) (formatSpec, int, bool) {
	var spec formatSpec
	i++ // consume '%'
loop:
	for i < len(format) {
		switch format[i] {
		case '-':
			spec.leftAlign = true
			i++
		case '0':
			spec.zeroPad = true
			i++
		case '+':
			spec.plusSign = true
			i++
		case ' ':
			spec.space = true
			i++
		default:
			break loop
		}
	}
	start := i
	for i < len(format) && format[i] >= '0' && format[i] <= '9' {
		i++
	}
	if i > start {
		spec.width, _ = strconv.Atoi(format[start:i])
		spec.hasWidth = true
	}
	if i < len(format) && format[i] == '.' {
		i++
		start = i
		for i < len(format) && format[i] >= '0' && format[i] <= '9' {
			i++
		}
		spec.precision, _ = strconv.Atoi(format[start:i])
		spec.hasPrec = true
	}
	if i >= len(format) {
		return spec, i, false
	}
	spec.verb = format[i]
	return spec, i + 1, true
}

func renderOne(vm *VM, spec formatSpec, arg Value) (string, string) {
	switch spec.verb {
	case 'd':
		if arg.tag != TagInteger {
			return "", "argument to %d is not an Integer"
		}
		s := strconv.FormatInt(arg.i, 10)
		return signPrefix(s, arg.i < 0, spec), ""
	case 'x':
		if arg.tag != TagInteger {
			return "", "argument to %x is not an Integer"
		}
		return strconv.FormatInt(arg.i, 16), ""
	case 'o':
		if arg.tag != TagInteger {
			return "", "argument to %o is not an Integer"
		}
		return strconv.FormatInt(arg.i, 8), ""
	case 'c':
		switch arg.tag {
		case TagInteger:
			return string(rune(arg.i)), ""
		case TagString:
			s := stringOf(arg)
			if len(s) == 0 {
				return "", ""
			}
			return string([]rune(s)[0]), ""
		}
		return "", "argument to %c is not Integer or String"
	case 'f':
		f := toFloatForFormat(arg)
		prec := 6
		if spec.hasPrec {
			prec = spec.precision
		}
		s := strconv.FormatFloat(f, 'f', prec, 64)
		return signPrefix(s, f < 0, spec), ""
	case 's':
		return toDisplayString(vm, arg), ""
	default:
		return "", "unknown format directive"
	}
}

func toFloatForFormat(v Value) float64 {
	if v.tag == TagInteger {
		return float64(v.i)
	}
	return v.f
}

func signPrefix(s string, negative bool, spec formatSpec) string {
	if negative {
		return s
	}
	if spec.plusSign {
		return "+" + s
	}
	if spec.space {
		return " " + s
	}
	return s
}

// toDisplayString renders v as %s would: a String's own bytes, or the
// result of calling to_s for anything else.
func toDisplayString(vm *VM, v Value) string {
	if v.tag == TagString {
		return stringOf(v)
	}
	if entry, _, ok := FindMethod(ClassOf(v), Intern("to_s")); ok && entry.fn != nil {
		r := entry.fn(vm, v, nil)
		if r.tag == TagString {
			return stringOf(r)
		}
	}
	return Inspect(v)
}

func pad(s string, spec formatSpec) string {
	if !spec.hasWidth || len(s) >= spec.width {
		return s
	}
	padLen := spec.width - len(s)
	fill := " "
	if spec.zeroPad && !spec.leftAlign {
		fill = "0"
	}
	padding := strings.Repeat(fill, padLen)
	if spec.leftAlign {
		return s + strings.Repeat(" ", padLen)
	}
	return padding + s
}

// Inspect renders v the way Kernel#p does: quoted strings, bare literals
// for everything else with a directly-printable form.
func Inspect(v Value) string {
	switch v.tag {
	case TagNil:
		return "nil"
	case TagTrue:
		return "true"
	case TagFalse:
		return "false"
	case TagInteger:
		return strconv.FormatInt(v.i, 10)
	case TagFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case TagSymbol:
		s, _ := Lookup(v.sym)
		return ":" + s
	case TagString:
		return strconv.Quote(stringOf(v))
	case TagArray:
		a := v.obj.(*arrayObject)
		parts := make([]string, len(a.elems))
		for i, e := range a.elems {
			parts[i] = Inspect(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case TagClass:
		s, _ := Lookup(v.obj.(*Class).name)
		return s
	default:
		return "#<" + TypeOf(v).String() + ">"
	}
}
