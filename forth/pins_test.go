package forth

import (
	"forthvm/internal/mem"
	"forthvm/internal/token"
	"testing"
)

// TestSimPinsThroughFuncExtension exercises HostPins the way
// cmd/forthvm's hostWords binds pin words: a FUNC opcode with an
// operand byte selecting a registered HostExtension closure, the
// closure reading/writing the task's stack and the VM's Pins.
func TestSimPinsThroughFuncExtension(t *testing.T) {
	vm := New(nil, nil, 0x100, NewStringIO(""))
	sim := NewSimPins()
	vm.Pins = sim

	write := vm.RegisterExtension(func(t *Task, env any) {
		v := env.(*VM)
		value, err := t.SP.Pop()
		if err != nil {
			return
		}
		pin, err := t.SP.Pop()
		if err != nil {
			return
		}
		v.Pins.DigitalWrite(pin, value)
	})
	read := vm.RegisterExtension(func(t *Task, env any) {
		v := env.(*VM)
		pin, err := t.SP.Pop()
		if err != nil {
			return
		}
		t.SP.Push(v.Pins.DigitalRead(pin))
	})
	vm.SetEnv(vm)

	// 3 1 FUNC(write) ; then 3 FUNC(read)
	image := []byte{
		byte(token.CLITERAL), 3,
		byte(token.CLITERAL), 1,
		byte(token.FUNC), byte(write),
		byte(token.CLITERAL), 3,
		byte(token.FUNC), byte(read),
		byte(token.HALT),
	}
	vm.Code = mem.NewCodeSpace(image)
	task := vm.NewTask(0)
	if sig := vm.Resume(task); sig != Halted {
		t.Fatalf("Resume() = %v, want Halted", sig)
	}

	got := task.SP.All()
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("stack after digital write/read = %v, want [1]", got)
	}
	if sim.digital[3] != 1 {
		t.Fatalf("SimPins digital[3] = %d, want 1", sim.digital[3])
	}
}
