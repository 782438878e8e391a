// Package verr is the error taxonomy every component of the machine
// reports through. Nothing in this module panics on a VM-detectable
// domain violation; every primitive, stack operation, and memory
// access returns one of these instead.
package verr

import "fmt"

// Errno is a sentinel failure kind, paired with richer context in Error.
type Errno int

const (
	Bye Errno = iota
	EOF
	StackOverflow
	StackUnderflow
	RStackOverflow
	RStackUnderflow
	IllegalInstruction
	IllegalAddress
	UnalignedAddress
	ZeroDivision
	IOError
)

var strError = [...]string{
	Bye:                "bye",
	EOF:                "end of input",
	StackOverflow:      "parameter stack overflow",
	StackUnderflow:     "parameter stack underflow",
	RStackOverflow:     "return stack overflow",
	RStackUnderflow:    "return stack underflow",
	IllegalInstruction: "illegal instruction",
	IllegalAddress:     "illegal address",
	UnalignedAddress:   "unaligned address",
	ZeroDivision:       "division by zero",
	IOError:            "i/o error",
}

func (e Errno) Error() string {
	if int(e) < 0 || int(e) >= len(strError) {
		return "unknown error"
	}
	return strError[e]
}

// RStack remaps a parameter-stack errno to its return-stack counterpart.
// Used when a stack helper shared between both stacks needs to report
// which one actually faulted.
func RStack(err error) error {
	switch err {
	case StackOverflow:
		return RStackOverflow
	case StackUnderflow:
		return RStackUnderflow
	default:
		return err
	}
}

// Error carries the machine context present at the moment a primitive
// or the inner interpreter trapped: the instruction pointer, the
// offending instruction, and snapshots of both stacks for diagnosis.
// Addr is not set by New and stays zero.
type Error struct {
	Errno  Errno
	Err    error
	PC     int
	Instr  int
	Addr   int
	Stack  []int16
	RStack []int16
}

func (e *Error) Error() string {
	detail := e.Errno.Error()
	if e.Err != nil && e.Err != e.Errno {
		detail = e.Err.Error()
	}
	return fmt.Sprintf("forthvm: %s at pc=%d instr=%d", detail, e.PC, e.Instr)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error snapshotting the given stacks at pc/instr.
func New(errno Errno, err error, pc, instr int, stack, rstack []int16) *Error {
	if err == nil {
		err = errno
	}
	s := append([]int16(nil), stack...)
	r := append([]int16(nil), rstack...)
	return &Error{Errno: errno, Err: err, PC: pc, Instr: instr, Stack: s, RStack: r}
}
