// Package sched implements the host side of the machine's cooperative
// multitasking model: nothing about scheduling lives inside the
// virtual machine itself (spec.md's "each task is a passive data
// structure; the host calls resume(task)"), so any round-robining of
// Resume calls is host policy, and this package is one reference
// policy for it.
package sched

import "forthvm/forth"

// Scheduler round-robins Resume across a fixed set of tasks. Besides
// the VM it calls Resume on, it keeps only the order tasks are
// offered a turn in, and the last signal each one reported.
type Scheduler struct {
	vm    *forth.VM
	tasks []*forth.Task
	last  map[*forth.Task]forth.Signal
	next  int
}

// New builds a scheduler over vm's given tasks, offering turns in the
// order they are listed.
func New(vm *forth.VM, tasks ...*forth.Task) *Scheduler {
	s := &Scheduler{vm: vm, last: make(map[*forth.Task]forth.Signal)}
	for _, t := range tasks {
		s.Add(t)
	}
	return s
}

// Add registers another task to round-robin over.
func (s *Scheduler) Add(t *forth.Task) {
	s.tasks = append(s.tasks, t)
	s.last[t] = forth.Yielded
}

// Tasks returns the scheduler's task list in turn order.
func (s *Scheduler) Tasks() []*forth.Task { return s.tasks }

// Step resumes exactly one task — the next one in turn order — and
// returns it along with the signal its Resume call produced. Calling
// Step in a loop is round-robin scheduling; a host that wants to
// inspect every signal (to log a trap, or to drop a halted task from
// rotation) drives the loop itself instead of calling Run.
func (s *Scheduler) Step() (*forth.Task, forth.Signal) {
	if len(s.tasks) == 0 {
		return nil, forth.Halted
	}
	t := s.tasks[s.next]
	s.next = (s.next + 1) % len(s.tasks)
	sig := s.vm.Resume(t)
	s.last[t] = sig
	return t, sig
}

// Done reports whether t's most recent turn reported Halted or
// Trapped — resuming it again would be well-defined (halts are
// sticky, per spec.md) but pointless.
func (s *Scheduler) Done(t *forth.Task) bool {
	sig := s.last[t]
	return sig == forth.Halted || sig == forth.Trapped
}

// Run calls Step until every task under management has stopped
// (Halted or Trapped), returning the total number of Step calls made.
// A task that keeps yielding is resumed again on its next turn; a
// program where some task never halts would make Run loop forever —
// a host that cares about that possibility should drive Step itself
// with its own bound on iterations instead of calling Run.
func (s *Scheduler) Run() int {
	steps := 0
	for !s.allDone() {
		s.Step()
		steps++
	}
	return steps
}

func (s *Scheduler) allDone() bool {
	for _, t := range s.tasks {
		if !s.Done(t) {
			return false
		}
	}
	return true
}
