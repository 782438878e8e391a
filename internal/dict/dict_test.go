package dict

import (
	"testing"

	"forthvm/internal/mem"
	"forthvm/internal/token"
)

func TestLookupKernelPrimitive(t *testing.T) {
	d := New(nil)
	if tok := d.Lookup("dup"); tok != token.Token(token.DUP) {
		t.Fatalf("Lookup(dup) = %d, want %d", tok, token.DUP)
	}
	if tok := d.Lookup("nosuchword"); tok != -1 {
		t.Fatalf("Lookup(miss) = %d, want -1", tok)
	}
	if tok := d.Lookup("DUP"); tok != -1 {
		t.Fatalf("Lookup(DUP) = %d, want -1 (lookup is case-sensitive)", tok)
	}
}

func TestLookupAliases(t *testing.T) {
	d := New(nil)
	if d.Lookup("true") != token.Token(token.MINUSONE) {
		t.Fatalf("true should alias MINUSONE")
	}
	if d.Lookup("not") != token.Token(token.ZEROEQUAL) {
		t.Fatalf("not should alias ZEROEQUAL")
	}
}

func TestStaticLookupAndResolve(t *testing.T) {
	static := []StaticWord{
		{Name: "SQUARE", Addr: mem.Addr(10)},
		{Name: "CUBE", Addr: mem.Addr(20)},
	}
	d := New(static)
	tok := d.Lookup("CUBE")
	if int(tok) < KernelMax || int(tok) >= StaticMax {
		t.Fatalf("CUBE token %d not in static range", tok)
	}
	addr, ok := d.Resolve(tok)
	if !ok || addr != mem.Addr(20) {
		t.Fatalf("Resolve(CUBE) = %d, %v, want 20, true", addr, ok)
	}
}

func TestDynamicShadowsStaticAndKernel(t *testing.T) {
	static := []StaticWord{{Name: "dup", Addr: mem.Addr(5)}}
	d := New(static)
	// Before any dynamic definition, the static entry shadows the
	// kernel primitive of the same name.
	if tok := d.Lookup("dup"); int(tok) < KernelMax {
		t.Fatalf("Lookup(dup) = %d, want static-range token", tok)
	}
	dynTok := d.DefineDynamic("dup", mem.Addr(99))
	if tok := d.Lookup("dup"); tok != dynTok {
		t.Fatalf("Lookup(dup) = %d, want dynamic token %d", tok, dynTok)
	}
	addr, ok := d.Resolve(dynTok)
	if !ok || addr != mem.Addr(99) {
		t.Fatalf("Resolve(dynamic dup) = %d, %v, want 99, true", addr, ok)
	}
}

func TestForgetTruncatesDynamicTier(t *testing.T) {
	d := New(nil)
	d.DefineDynamic("FOO", mem.Addr(1))
	keepTok := d.DefineDynamic("KEEP", mem.Addr(2))
	target, ok := d.Forget("FOO")
	if !ok || target != mem.Addr(1) {
		t.Fatalf("Forget(FOO) = %d, %v, want 1, true", target, ok)
	}
	if tok := d.Lookup("FOO"); tok != -1 {
		t.Fatalf("FOO should be gone after Forget")
	}
	if tok := d.Lookup("KEEP"); tok != -1 {
		t.Fatalf("KEEP defined after FOO should also be forgotten, got %d", tok)
	}
	_ = keepTok
}

func TestWordsPrecedenceOrder(t *testing.T) {
	static := []StaticWord{{Name: "SQUARE", Addr: mem.Addr(10)}}
	d := New(static)
	d.DefineDynamic("MYWORD", mem.Addr(1))
	names := d.Words()
	if names[0] != "MYWORD" {
		t.Fatalf("Words()[0] = %q, want MYWORD (dynamic listed first)", names[0])
	}
	found := map[string]bool{}
	for _, n := range names {
		found[n] = true
	}
	if !found["SQUARE"] || !found["dup"] {
		t.Fatal("Words() should include both static and kernel names")
	}
}
