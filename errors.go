// errors.go - Go-level error kinds (distinct from in-VM Exception values)

package mrubyc

import "errors"

// Loader and allocator failures are ordinary Go errors: they abort a
// load or an operation before any task context exists to hold an
// in-VM exception. In-VM exceptions (RuntimeError, ZeroDivisionError,
// ArgumentError, IndexError, TypeError, NoMemoryError, user-defined) never
// surface as Go errors; they live in Task.exc/Task.excMessage (exception.go)
// and are only ever observed via Run()'s exit status.
var (
	// ErrBadHeader is returned when the input is shorter than the 20-byte
	// header or does not start with the "RITE02" identifier; the version
	// bytes are not checked.
	ErrBadHeader = errors.New("mrubyc: bad bytecode header")
	// ErrTruncated is returned when a section or IREP record claims more
	// bytes than remain in the input.
	ErrTruncated = errors.New("mrubyc: truncated bytecode")
	// ErrBadLiteral is returned when an IREP's literal pool contains an
	// unrecognised type tag.
	ErrBadLiteral = errors.New("mrubyc: unknown literal tag")
	// ErrRecordSize is returned when an IREP's declared record_size does
	// not match the bytes actually consumed — hardening beyond what the
	// reference loader itself checks.
	ErrRecordSize = errors.New("mrubyc: inconsistent record_size")
	// ErrPoolExhausted is returned by CreateTask when the pool cannot
	// reserve capacity for the new task's register stack.
	ErrPoolExhausted = errors.New("mrubyc: pool exhausted")
)

// errLoadInvalid is what IREP.PoolValue returns for an out-of-range index
// or a corrupt literal; it is ErrTruncated itself.
var errLoadInvalid = ErrTruncated
