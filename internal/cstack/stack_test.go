package cstack

import (
	"testing"

	"forthvm/internal/verr"
)

func TestPushPop(t *testing.T) {
	s := New(4)
	if err := s.Push(1); err != nil {
		t.Fatal(err)
	}
	if err := s.Push(2); err != nil {
		t.Fatal(err)
	}
	if v, err := s.Pop(); err != nil || v != 2 {
		t.Fatalf("Pop() = %d, %v, want 2, nil", v, err)
	}
	if v, err := s.Pop(); err != nil || v != 1 {
		t.Fatalf("Pop() = %d, %v, want 1, nil", v, err)
	}
	if _, err := s.Pop(); err != verr.StackUnderflow {
		t.Fatalf("Pop() on empty stack = %v, want StackUnderflow", err)
	}
}

func TestOverflow(t *testing.T) {
	s := New(2)
	if err := s.Push(1); err != nil {
		t.Fatal(err)
	}
	if err := s.Push(2); err != nil {
		t.Fatal(err)
	}
	if err := s.Push(3); err != verr.StackOverflow {
		t.Fatalf("Push() past capacity = %v, want StackOverflow", err)
	}
}

func TestFloorFencesUnderflow(t *testing.T) {
	s := New(4)
	s.Push(1)
	s.Push(2)
	s.Reset()
	if d := s.Depth(); d != 0 {
		t.Fatalf("Depth() after Reset() = %d, want 0", d)
	}
	if _, err := s.Pop(); err != verr.StackUnderflow {
		t.Fatalf("Pop() below floor = %v, want StackUnderflow", err)
	}
}

func TestPickRoll(t *testing.T) {
	s := New(4)
	s.Push(10)
	s.Push(20)
	s.Push(30)
	if v, err := s.Pick(1); err != nil || v != 20 {
		t.Fatalf("Pick(1) = %d, %v, want 20, nil", v, err)
	}
	if err := s.Roll(2); err != nil {
		t.Fatal(err)
	}
	if got := s.All(); len(got) != 3 || got[0] != 20 || got[1] != 30 || got[2] != 10 {
		t.Fatalf("All() after Roll(2) = %v, want [20 30 10]", got)
	}
}

func TestDoubleCellRoundTrip(t *testing.T) {
	s := New(4)
	want := int32(-123456)
	if err := s.PushDouble(want); err != nil {
		t.Fatal(err)
	}
	got, err := s.PopDouble()
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("PopDouble() = %d, want %d", got, want)
	}
}
