// Package fault defines the fatal conditions raised while executing Modl
// bytecode.
//
// Faults are raised as typed panics at the point of detection and converted
// back into errors at the API boundary with Catch. A VM that has faulted must
// not be resumed.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a fault.
type Kind int

const (
	UnknownOpcode Kind = iota + 1
	Decode
	Type
	NotCallable
	StackOverflow
	StackUnderflow
	CallStackOverflow
	ExternalOverflow
	RefCount
	Cast
	Unsupported
	DivideByZero
	Key
)

var kindNames = map[Kind]string{
	UnknownOpcode:     "unknown opcode",
	Decode:            "decode error",
	Type:              "type mismatch",
	NotCallable:       "not callable",
	StackOverflow:     "stack overflow",
	StackUnderflow:    "stack underflow",
	CallStackOverflow: "call stack overflow",
	ExternalOverflow:  "external table overflow",
	RefCount:          "reference count",
	Cast:              "unsupported cast",
	Unsupported:       "unsupported operation",
	DivideByZero:      "division by zero",
	Key:               "invalid key",
}

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("fault(%d)", int(k))
}

// Fault is a fatal runtime condition.
type Fault struct {
	Kind    Kind
	Message string
	// IP is the offset of the faulting instruction, or -1 when the fault
	// was raised outside the dispatch loop.
	IP int
}

func (f *Fault) Error() string {
	if f.IP >= 0 {
		return fmt.Sprintf("%s at [%04x]: %s", f.Kind, f.IP, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// New creates a fault with no instruction offset.
func New(kind Kind, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Message: fmt.Sprintf(format, args...), IP: -1}
}

// Raisef panics with a new fault.
func Raisef(kind Kind, format string, args ...any) {
	panic(New(kind, format, args...))
}

// Wrap panics with a fault of the given kind carrying err's message.
// It is a no-op when err is nil.
func Wrap(kind Kind, err error) {
	if err == nil {
		return
	}
	var f *Fault
	if errors.As(err, &f) {
		panic(f)
	}
	panic(New(kind, "%v", err))
}

// Catch recovers a fault panic into *errp. Panics that are not faults are
// re-raised. It must be called directly by a deferred statement.
func Catch(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	f, ok := r.(*Fault)
	if !ok {
		panic(r)
	}
	*errp = f
}

// KindOf returns the kind of the fault wrapped in err, or 0.
func KindOf(err error) Kind {
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return 0
}

// Is reports whether err is a fault of the given kind.
func Is(err error, kind Kind) bool {
	return kind != 0 && KindOf(err) == kind
}
