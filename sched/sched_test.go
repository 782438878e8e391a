package sched

import (
	"testing"

	"forthvm/forth"
	"forthvm/internal/token"
)

// Two tasks share one code image: a loop that pushes an increasing
// counter and yields, run for a fixed number of turns each (the
// image never halts). This exercises spec.md's "host round-robins resume calls"
// contract directly, rather than through the outer interpreter.
func buildCounterImage() []byte {
	// 0: CLITERAL 1   (push 1)
	// 2: PLUS         (counter += 1)
	// 3: YIELD
	// 4: BRANCH -6    (back to address 0, so every resumed turn repeats
	//                  the whole push-and-add instead of just the add)
	return []byte{
		byte(token.CLITERAL), 1,
		byte(token.PLUS),
		byte(token.YIELD),
		byte(token.BRANCH), byte(int8(-6)),
	}
}

func TestRoundRobinTwoTasks(t *testing.T) {
	image := buildCounterImage()
	vm := forth.New(image, nil, 0x400, forth.NewStringIO(""))
	t1 := vm.NewTask(0)
	t2 := vm.NewTask(0)
	t1.SP.Push(0)
	t2.SP.Push(100)

	s := New(vm, t1, t2)
	for i := 0; i < 6; i++ {
		task, sig := s.Step()
		if sig != forth.Yielded {
			t.Fatalf("Step() #%d signal = %v, want Yielded", i, sig)
		}
		_ = task
	}

	v1, err := t1.SP.Peek()
	if err != nil {
		t.Fatal(err)
	}
	v2, err := t2.SP.Peek()
	if err != nil {
		t.Fatal(err)
	}
	if v1 != 3 {
		t.Fatalf("t1 counter = %d, want 3 (three turns of +1)", v1)
	}
	if v2 != 103 {
		t.Fatalf("t2 counter = %d, want 103", v2)
	}
}

func TestStepReportsTrapErrorOnUnderflow(t *testing.T) {
	image := []byte{byte(token.PLUS)} // pops two off an empty stack
	vm := forth.New(image, nil, 0x100, forth.NewStringIO(""))
	task := vm.NewTask(0)

	s := New(vm, task)
	_, sig := s.Step()
	if sig != forth.Trapped {
		t.Fatalf("Step() signal = %v, want Trapped", sig)
	}
	if !s.Done(task) {
		t.Fatal("Done() should report true for a trapped task")
	}
	if task.Err() == nil {
		t.Fatal("Err() should report the trap that stopped the task")
	}
}

func TestRunStopsAtHalt(t *testing.T) {
	image := []byte{byte(token.HALT)}
	vm := forth.New(image, nil, 0x100, forth.NewStringIO(""))
	task := vm.NewTask(0)
	s := New(vm, task)
	steps := s.Run()
	if steps != 1 {
		t.Fatalf("Run() steps = %d, want 1", steps)
	}
	if !s.Done(task) {
		t.Fatal("Done() should report true once a task has halted")
	}
}
