// Package cstack implements the fixed-depth cell stack used for both
// the parameter stack and the return stack of a task. Every operation
// that can fail reports a verr.Errno instead of panicking.
package cstack

import "forthvm/internal/verr"

// Stack is a bounded LIFO of 16-bit cells with a floor (sp0/rp0 in
// the reference design): Depth never reports cells below the floor,
// and popping past it is StackUnderflow, not a panic.
type Stack struct {
	cells []int16
	floor int
}

// New returns a stack with the given maximum depth, initially empty.
func New(maxDepth int) *Stack {
	return &Stack{cells: make([]int16, 0, maxDepth)}
}

func (s *Stack) cap() int { return cap(s.cells) }

// Depth is the number of cells above the floor.
func (s *Stack) Depth() int { return len(s.cells) - s.floor }

// Reset pins the floor to the current depth, hiding every cell above
// it from Depth/Pop/Pick/All without touching the backing array —
// EMPTY's implementation, matching the reference "sp = task.m_sp0"
// except that this floor starts at a task's own base rather than a
// shared fixed address.
func (s *Stack) Reset() { s.floor = len(s.cells) }

// Floor reports the current floor.
func (s *Stack) Floor() int { return s.floor }

func (s *Stack) under(n int) bool { return len(s.cells)-n < s.floor }
func (s *Stack) over(n int) bool  { return len(s.cells)+n > s.cap() }

// Push appends one cell, or StackOverflow if the stack is full.
func (s *Stack) Push(v int16) error {
	if s.over(1) {
		return verr.StackOverflow
	}
	s.cells = append(s.cells, v)
	return nil
}

// Pop removes and returns the top cell, or StackUnderflow if empty.
func (s *Stack) Pop() (int16, error) {
	if s.under(1) {
		return 0, verr.StackUnderflow
	}
	n := len(s.cells) - 1
	v := s.cells[n]
	s.cells = s.cells[:n]
	return v, nil
}

// Peek returns the top cell without removing it.
func (s *Stack) Peek() (int16, error) {
	if s.under(1) {
		return 0, verr.StackUnderflow
	}
	return s.cells[len(s.cells)-1], nil
}

// Pick returns the cell `from` entries down from the top (0 is top),
// mirroring the reference PICK.
func (s *Stack) Pick(from int) (int16, error) {
	if from < 0 || s.under(from+1) {
		return 0, verr.StackUnderflow
	}
	return s.cells[len(s.cells)-1-from], nil
}

// Roll removes the cell `from` entries down and re-pushes it on top,
// shifting the cells above it down by one.
func (s *Stack) Roll(from int) error {
	if from == 0 {
		return nil
	}
	if from < 0 || s.under(from+1) {
		return verr.StackUnderflow
	}
	i := len(s.cells) - 1 - from
	v := s.cells[i]
	copy(s.cells[i:], s.cells[i+1:])
	s.cells[len(s.cells)-1] = v
	return nil
}

// All returns the live cells above the floor, oldest first — used by
// .S and by error snapshots. The returned slice is a copy.
func (s *Stack) All() []int16 {
	out := make([]int16, len(s.cells)-s.floor)
	copy(out, s.cells[s.floor:])
	return out
}

// PushDouble pushes a 32-bit double-cell value as two 16-bit cells,
// low cell first (little-endian cell order on the stack), as M* and
// UM* leave their double-cell products.
func (s *Stack) PushDouble(d int32) error {
	if err := s.Push(int16(d)); err != nil {
		return err
	}
	if err := s.Push(int16(d >> 16)); err != nil {
		return err
	}
	return nil
}

// PopDouble pops two cells and recombines them into a 32-bit value.
func (s *Stack) PopDouble() (int32, error) {
	hi, err := s.Pop()
	if err != nil {
		return 0, err
	}
	lo, err := s.Pop()
	if err != nil {
		return 0, err
	}
	return int32(uint32(uint16(hi))<<16 | uint32(uint16(lo))), nil
}
