// Package mem implements the two address spaces the machine reads and
// writes: a read-only CodeSpace (the program image) and a mutable
// Arena (the shared data-space all tasks allocate variables, strings,
// and dynamic dictionary bodies out of).
package mem

import "forthvm/internal/verr"

// Addr is an address into either space; CODE_P_MAX in the reference
// design is the split point between code and data address ranges on
// hosts where the two are not unified.
type Addr uint16

// CodeSpace is the read-only program image primitives execute from.
// Application code loaded at startup and dynamic-dictionary bodies
// compiled at runtime both live in the shared Arena instead — a
// CodeSpace is only ever the static image a host loads once.
type CodeSpace struct {
	bytes []byte
}

// NewCodeSpace wraps an existing byte image. The image is never
// copied or mutated by the VM.
func NewCodeSpace(image []byte) *CodeSpace { return &CodeSpace{bytes: image} }

func (c *CodeSpace) Len() int { return len(c.bytes) }

// Byte fetches one byte at addr, IllegalAddress if out of range.
func (c *CodeSpace) Byte(addr Addr) (byte, error) {
	if int(addr) >= len(c.bytes) {
		return 0, verr.IllegalAddress
	}
	return c.bytes[addr], nil
}

// Arena is the shared, append-only (within a session) data space: the
// bump pointer dp, variables, CREATEd bodies, and the dynamic
// application dictionary's compiled bodies all live here. The dynamic
// dictionary's names are not stored in the arena; they are held in
// internal/dict's own index. As DESIGN.md records, this is
// process-wide, not per-task — the original C++ source keeps one per
// task.
type Arena struct {
	bytes []byte
	dp    Addr
}

// NewArena allocates a data arena of the given size, dp starting at 0.
func NewArena(size int) *Arena {
	return &Arena{bytes: make([]byte, size)}
}

// Here returns the current bump pointer (Forth's HERE).
func (a *Arena) Here() Addr { return a.dp }

// Allot advances dp by n bytes (n may be negative to free unused
// allocation, as Forth's ALLOT allows), erroring on bounds violation.
func (a *Arena) Allot(n int) error {
	next := int(a.dp) + n
	if next < 0 || next > len(a.bytes) {
		return verr.IllegalAddress
	}
	a.dp = Addr(next)
	return nil
}

func (a *Arena) checkRange(addr Addr, width int) error {
	if int(addr)+width > len(a.bytes) {
		return verr.IllegalAddress
	}
	return nil
}

// Byte fetches a byte from the arena.
func (a *Arena) Byte(addr Addr) (byte, error) {
	if err := a.checkRange(addr, 1); err != nil {
		return 0, err
	}
	return a.bytes[addr], nil
}

// StoreByte writes a byte into the arena.
func (a *Arena) StoreByte(addr Addr, v byte) error {
	if err := a.checkRange(addr, 1); err != nil {
		return err
	}
	a.bytes[addr] = v
	return nil
}

// StoreCell writes a little-endian cell into the arena.
func (a *Arena) StoreCell(addr Addr, v int16) error {
	if err := a.checkRange(addr, 2); err != nil {
		return err
	}
	a.bytes[addr] = byte(v)
	a.bytes[addr+1] = byte(v >> 8)
	return nil
}

// Comma appends a cell at HERE and advances dp by two bytes, the
// primitive building block behind COMMA and compiling words.
func (a *Arena) Comma(v int16) (Addr, error) {
	addr := a.dp
	if err := a.Allot(2); err != nil {
		return 0, err
	}
	return addr, a.StoreCell(addr, v)
}

// CComma appends a single byte at HERE and advances dp by one.
func (a *Arena) CComma(v byte) (Addr, error) {
	addr := a.dp
	if err := a.Allot(1); err != nil {
		return 0, err
	}
	return addr, a.StoreByte(addr, v)
}

// AppendBytes copies raw bytes (e.g. a name string) to HERE, advancing dp.
func (a *Arena) AppendBytes(b []byte) (Addr, error) {
	addr := a.dp
	if err := a.Allot(len(b)); err != nil {
		return 0, err
	}
	copy(a.bytes[addr:], b)
	return addr, nil
}

// Slice returns a read-only view of arena bytes [addr, addr+n), the
// fast path VM.FetchSlice takes for a string run that never leaves
// the arena (true of every string this VM compiles at runtime).
func (a *Arena) Slice(addr Addr, n int) ([]byte, error) {
	if err := a.checkRange(addr, n); err != nil {
		return nil, err
	}
	return a.bytes[addr : int(addr)+n], nil
}
