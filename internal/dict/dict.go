// Package dict implements the three-tier word lookup: a mutable
// dynamic application dictionary (arena-backed, AVL-ordered), an
// immutable static application dictionary supplied by the host at
// startup, and the immutable kernel dictionary of primitives. Lookup
// tries dynamic, then static, then kernel — first match wins, so user
// words shadow the kernel.
package dict

import (
	"sort"
	"strings"

	"forthvm/internal/mem"
	"forthvm/internal/token"

	"github.com/danswartzendruber/avl"
)

// Token range boundaries. A kernel hit resolves to [0, KernelMax); a
// static application hit to [KernelMax, StaticMax); a dynamic
// application hit to [StaticMax, DynamicMax). Lookup miss is -1.
const (
	KernelMax  = int(token.KernelMax)
	staticCap  = 128
	dynamicCap = 256
	StaticMax  = KernelMax + staticCap
	DynamicMax = StaticMax + dynamicCap
)

// StaticWord is one immutable, host-supplied static application entry:
// a name and the code address (into the shared CodeSpace) it begins
// executing at.
type StaticWord struct {
	Name string
	Addr mem.Addr
}

// dynEntry is one dynamic application dictionary entry, ordered in
// the AVL tree by name. Embedding avl.AvlNode mirrors the pattern used
// throughout GaryLuck-basic-plus-1's statement dictionary.
type dynEntry struct {
	avl  avl.AvlNode
	name string
	addr mem.Addr
	tok  token.Token
}

func cmpByName(n1, n2 any) int { return strings.Compare(n1.(*dynEntry).name, n2.(*dynEntry).name) }
func cmpKeyName(key, n any) int {
	return strings.Compare(key.(string), n.(*dynEntry).name)
}

// Dictionary is the combined three-tier word table over one shared
// CodeSpace/Arena pair.
type Dictionary struct {
	static []StaticWord // sorted by Name for binary search; fixed at construction

	dynRoot    *avl.AvlNode
	dynByToken map[token.Token]*dynEntry
	nextDynTok token.Token
}

// New builds a Dictionary over a sorted-at-construction static table.
// The static table never changes after this call — a binary search
// over a fixed sorted slice is the natural structure for data that
// never mutates, so it is not AVL-backed like the dynamic tier.
func New(static []StaticWord) *Dictionary {
	sorted := append([]StaticWord(nil), static...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return &Dictionary{
		static:     sorted,
		dynRoot:    avl.NewAvlTree(),
		dynByToken: make(map[token.Token]*dynEntry),
		nextDynTok: token.Token(StaticMax),
	}
}

// DefineDynamic adds a new dynamic application word bound to addr,
// returning its token. Shadows any static or kernel word of the same
// name for future lookups, per spec: dynamic wins first.
func (d *Dictionary) DefineDynamic(name string, addr mem.Addr) token.Token {
	tok := d.nextDynTok
	d.nextDynTok++
	e := &dynEntry{name: name, addr: addr, tok: tok}
	avl.AvlTreeInsert(&d.dynRoot, &e.avl, e, cmpByName)
	d.dynByToken[tok] = e
	return tok
}

// Lookup resolves name to a token, trying the dynamic dictionary
// first, then static, then kernel. Returns -1 on a full miss.
func (d *Dictionary) Lookup(name string) token.Token {
	if n := avl.AvlTreeLookup(d.dynRoot, name, cmpKeyName); n != nil {
		return n.(*dynEntry).tok
	}
	if i := sort.Search(len(d.static), func(i int) bool { return d.static[i].Name >= name }); i < len(d.static) && d.static[i].Name == name {
		return token.Token(KernelMax + i)
	}
	if op, ok := kernelByName[name]; ok {
		return token.Token(op)
	}
	return -1
}

// Resolve turns a token back into an execution address, or ok=false
// if tok names a direct kernel primitive (which the inner interpreter
// dispatches by opcode, not by address).
func (d *Dictionary) Resolve(tok token.Token) (addr mem.Addr, ok bool) {
	switch {
	case int(tok) < KernelMax:
		return 0, false
	case int(tok) < StaticMax:
		i := int(tok) - KernelMax
		if i < 0 || i >= len(d.static) {
			return 0, false
		}
		return d.static[i].Addr, true
	default:
		e, found := d.dynByToken[tok]
		if !found {
			return 0, false
		}
		return e.addr, true
	}
}

// Name returns the mnemonic for any resolvable token, used by WORDS
// and tracing.
func (d *Dictionary) Name(tok token.Token) string {
	switch {
	case int(tok) < 0:
		return "?"
	case int(tok) < KernelMax:
		return token.Name(token.Opcode(tok))
	case int(tok) < StaticMax:
		i := int(tok) - KernelMax
		if i < 0 || i >= len(d.static) {
			return "?"
		}
		return d.static[i].Name
	default:
		if e, ok := d.dynByToken[tok]; ok {
			return e.name
		}
		return "?"
	}
}

// Words enumerates every word name across all three tiers, dynamic
// first (in name order), then static, then kernel — the same
// precedence order as Lookup.
func (d *Dictionary) Words() []string {
	var out []string
	for n := avl.AvlTreeFirstInOrder(d.dynRoot); n != nil; n = avl.AvlTreeNextInOrder(&n.(*dynEntry).avl) {
		out = append(out, n.(*dynEntry).name)
	}
	for _, w := range d.static {
		out = append(out, w.Name)
	}
	for op := token.Opcode(0); int(op) < KernelMax; op++ {
		if name := token.Name(op); name != "?" {
			out = append(out, name)
		}
	}
	return out
}

// kernelAliasNames binds extra mnemonics to an existing opcode instead
// of spending a kernel opcode slot on a word whose stack effect is
// identical to one already defined — TRUE/FALSE are just the signed
// constants -1/0 under boolean-flavored names, and BOOL/NOT are 0<>/0=
// under the names original_source/FVM.cpp's OP_BOOL/OP_NOT use.
var kernelAliasNames = map[string]token.Opcode{
	"true":  token.MINUSONE,
	"false": token.ZERO,
	"bool":  token.ZERONOTEQUAL,
	"not":   token.ZEROEQUAL,
}

var kernelByName = buildKernelByName()

func buildKernelByName() map[string]token.Opcode {
	m := make(map[string]token.Opcode, token.KernelMax)
	for op := token.Opcode(0); int(op) < int(token.KernelMax); op++ {
		name := token.Name(op)
		if name != "?" {
			m[name] = op
		}
	}
	for name, op := range kernelAliasNames {
		m[name] = op
	}
	return m
}

// Forget truncates the dynamic application dictionary back to the
// state it was in when name was defined, inclusive — name and every
// word defined after it are removed, and the next dynamic token
// reused. Used by the outer interpreter's FORGET and by the compiler's
// error-recovery path for a colon-definition that fails to parse.
func (d *Dictionary) Forget(name string) (mem.Addr, bool) {
	n := avl.AvlTreeLookup(d.dynRoot, name, cmpKeyName)
	if n == nil {
		return 0, false
	}
	target := n.(*dynEntry).addr
	for tok := d.nextDynTok - 1; tok >= token.Token(StaticMax); tok-- {
		e, ok := d.dynByToken[tok]
		if !ok {
			continue
		}
		avl.AvlTreeRemove(&d.dynRoot, &e.avl)
		delete(d.dynByToken, tok)
		d.nextDynTok = tok
		if e.name == name {
			break
		}
	}
	return target, true
}
