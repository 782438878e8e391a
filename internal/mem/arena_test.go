package mem

import "testing"

func TestArenaCommaAdvancesHere(t *testing.T) {
	a := NewArena(16)
	addr, err := a.Comma(0x1234)
	if err != nil {
		t.Fatal(err)
	}
	if addr != 0 {
		t.Fatalf("first Comma() addr = %d, want 0", addr)
	}
	if a.Here() != 2 {
		t.Fatalf("Here() after Comma() = %d, want 2", a.Here())
	}
	lo, _ := a.Byte(addr)
	hi, _ := a.Byte(addr + 1)
	if lo != 0x34 || hi != 0x12 {
		t.Fatalf("Comma(0x1234) bytes = %#x %#x, want 0x34 0x12", lo, hi)
	}
}

func TestArenaLittleEndian(t *testing.T) {
	a := NewArena(4)
	if err := a.StoreCell(0, 0x0102); err != nil {
		t.Fatal(err)
	}
	lo, _ := a.Byte(0)
	hi, _ := a.Byte(1)
	if lo != 0x02 || hi != 0x01 {
		t.Fatalf("StoreCell(0x0102) bytes = %#x %#x, want 0x02 0x01", lo, hi)
	}
}

func TestArenaAllotBounds(t *testing.T) {
	a := NewArena(4)
	if err := a.Allot(4); err != nil {
		t.Fatal(err)
	}
	if err := a.Allot(1); err == nil {
		t.Fatal("Allot() past capacity should fail")
	}
	if err := a.Allot(-4); err != nil {
		t.Fatal(err)
	}
	if a.Here() != 0 {
		t.Fatalf("Here() after negative Allot() = %d, want 0", a.Here())
	}
	if err := a.Allot(-1); err == nil {
		t.Fatal("Allot() below zero should fail")
	}
}

func TestArenaAppendBytesAndSlice(t *testing.T) {
	a := NewArena(16)
	addr, err := a.AppendBytes([]byte("hi"))
	if err != nil {
		t.Fatal(err)
	}
	got, err := a.Slice(addr, 2)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hi" {
		t.Fatalf("Slice() = %q, want %q", got, "hi")
	}
}
