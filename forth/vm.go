package forth

import (
	"time"

	"forthvm/internal/dict"
	"forthvm/internal/mem"
	"forthvm/internal/token"
	"forthvm/internal/verr"
)

// CodePMax is the split point between the two address spaces (spec
// §3/§6): addresses below it route to the read-only CodeSpace,
// addresses at or above it route to the mutable Arena. This desktop
// host is unified-memory, so the split has no hardware meaning — it
// exists only so CodeSpace and Arena can keep their own independent
// byte slices instead of being merged into one, while still letting a
// colon-definition's compiled body (which lives in the Arena) be
// called and fetched through exactly the same instruction-fetch path
// as code loaded from the static image.
const CodePMax mem.Addr = 0x4000

// HostExtension is a sketch/application-supplied function bound to a
// FUNC opcode's threaded-call slot. It may read and mutate the
// calling task's stacks; the task's other state is reloaded after the
// call returns, matching the host-extension contract.
type HostExtension func(t *Task, env any)

// VM is the shared machine state every Task executes against: the
// read-only code image, the shared mutable data arena (process-wide,
// not per-task — tasks only own their own stacks and instruction
// pointer), the three-tier dictionary, and host collaborators (I/O
// stream, extension functions, pin/timer shim).
type VM struct {
	Code  *mem.CodeSpace
	Arena *mem.Arena
	Dict  *dict.Dictionary
	IO    HostIO
	Pins  HostPins

	extensions []HostExtension
	env        any

	tasks  []*Task
	nextID int

	start time.Time // epoch MILLIS/MICROS measure elapsed time against
}

// New builds a VM over the given code image and static word table,
// with an arena of arenaSize bytes for variables and the dynamic
// dictionary.
func New(image []byte, static []dict.StaticWord, arenaSize int, io HostIO) *VM {
	return &VM{
		Code:  mem.NewCodeSpace(image),
		Arena: mem.NewArena(arenaSize),
		Dict:  dict.New(static),
		IO:    io,
		Pins:  NoopPins{},
		start: time.Now(),
	}
}

// RegisterExtension appends a host extension function, returning the
// slot index a FUNC opcode's inline operand byte selects it by.
func (v *VM) RegisterExtension(fn HostExtension) int {
	v.extensions = append(v.extensions, fn)
	return len(v.extensions) - 1
}

// SetEnv sets the opaque environment value passed to every host
// extension call.
func (v *VM) SetEnv(env any) { v.env = env }

// NewTask creates and registers a task starting at entry.
func (v *VM) NewTask(entry mem.Addr) *Task {
	t := NewTask(v.nextID, entry)
	v.nextID++
	v.tasks = append(v.tasks, t)
	return t
}

// Tasks returns every task registered on this VM.
func (v *VM) Tasks() []*Task { return v.tasks }

// Lookup resolves a word name to a token via the dictionary.
func (v *VM) Lookup(name string) token.Token { return v.Dict.Lookup(name) }

// HereAddr is the Arena's current bump pointer, expressed as a global
// address a Forth program can hold and later pass to FetchCell/@ or
// the inner interpreter's instruction fetch.
func (v *VM) HereAddr() mem.Addr { return CodePMax + v.Arena.Here() }

// FetchByte reads one byte from whichever space addr falls in.
func (v *VM) FetchByte(addr mem.Addr) (byte, error) {
	if addr < CodePMax {
		return v.Code.Byte(addr)
	}
	return v.Arena.Byte(addr - CodePMax)
}

// FetchCell reads a little-endian cell from whichever space addr
// falls in, one byte at a time so a cell can never straddle the two
// spaces undetected.
func (v *VM) FetchCell(addr mem.Addr) (int16, error) {
	lo, err := v.FetchByte(addr)
	if err != nil {
		return 0, err
	}
	hi, err := v.FetchByte(addr + 1)
	if err != nil {
		return 0, err
	}
	return int16(uint16(lo) | uint16(hi)<<8), nil
}

// FetchSlice reads n bytes starting at addr, used by TYPE/LOOKUP and
// anything else that wants a string's bytes without a byte-at-a-time
// loop. A run entirely inside the Arena — true for every string this
// VM ever compiles, since S" and the dynamic dictionary both live
// there — is read in one Arena.Slice call; a run touching the
// read-only Code half falls back to FetchByte so it still works for a
// string baked into a loaded application image.
func (v *VM) FetchSlice(addr mem.Addr, n int) ([]byte, error) {
	if n < 0 {
		return nil, verr.IllegalAddress
	}
	if addr >= CodePMax {
		return v.Arena.Slice(addr-CodePMax, n)
	}
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		b, err := v.FetchByte(addr + mem.Addr(i))
		if err != nil {
			return nil, err
		}
		buf[i] = b
	}
	return buf, nil
}

// StoreByte writes a byte into the Arena half of the address space.
// Code space is read-only; writing into it is IllegalAddress.
func (v *VM) StoreByte(addr mem.Addr, b byte) error {
	if addr < CodePMax {
		return verr.IllegalAddress
	}
	return v.Arena.StoreByte(addr-CodePMax, b)
}

// StoreCell writes a little-endian cell into the Arena half.
func (v *VM) StoreCell(addr mem.Addr, val int16) error {
	if addr < CodePMax {
		return verr.IllegalAddress
	}
	return v.Arena.StoreCell(addr-CodePMax, val)
}
