// Copyright 2013 Vadim Vygonets. All rights reserved.
// Use of this source code is governed by the Bugroff
// license that can be found in the LICENSE file.

// Command asm reads a line-oriented assembly source on stdin and
// writes a Go source file on stdout defining a static application
// dictionary image: a []byte code blob plus the []dict.StaticWord
// table of name/address pairs that index into it.
//
// This is the byte-token successor to the original cell-tagged
// assembler: cellSize shrinks from 4 to 1, PUSH picks CLITERAL or
// LITERAL instead of folding a shift-and-sign-extend immediate, and
// jmp/jz became branch/0branch, compiling the signed relative byte
// offset patchBranch uses everywhere else in this tree, not absolute
// cell addresses. The line syntax (.L, .B, .C, .W, bare mnemonics) is kept.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"forthvm/internal/token"
)

type (
	addr int

	dict map[string]addr

	instr struct {
		b byte
		s string
	}

	unres struct {
		a    addr
		s    string
		branch bool // relative branch operand vs. absolute byte
	}

	word struct {
		name string
		addr addr
	}

	parser struct {
		l     int     // line number
		s     string  // source line
		a     addr    // current address
		d     dict    // label -> address
		u     []unres // unresolved references
		i     []instr // compiled bytes
		words []word  // .W-declared static dictionary entries
	}
)

var (
	errParse      = errors.New("parse error")
	errLabelExists = errors.New("label already exists")

	// mnemonics maps every kernel primitive name to its opcode byte,
	// built from token.Names so the assembler never drifts from the
	// dispatch table in package forth.
	mnemonics = func() map[string]byte {
		m := make(map[string]byte)
		for i, n := range token.Names {
			if n != "" {
				m[n] = byte(i)
			}
		}
		return m
	}()
)

func (p *parser) defLabel(lbl string) error {
	if _, ok := p.d[lbl]; ok {
		return errLabelExists
	}
	p.d[lbl] = p.a
	return nil
}

func (p *parser) store(b byte) {
	p.i = append(p.i, instr{b, p.s})
	p.a++
	p.s = "\\\n"
}

func (p *parser) storeUnresolvedBranch(s string) {
	p.u = append(p.u, unres{a: p.a, s: s, branch: true})
	p.store(0)
}

func (p *parser) storeUnresolvedCell(s string) {
	p.u = append(p.u, unres{a: p.a, s: s})
	p.store(0)
	p.store(0)
}

// resolve back-patches every forward reference now that every label
// in the source has been seen, the same two-pass shape the cell
// assembler used for call/jmp/jz.
func (p *parser) resolve() []string {
	var syms []string
	for _, v := range p.u {
		target, ok := p.d[v.s]
		if !ok {
			syms = append(syms, v.s)
			continue
		}
		if v.branch {
			off := int(target) - int(v.a+1)
			if off < -128 || off > 127 {
				log.Fatalf("branch to %s out of range", v.s)
			}
			p.i[v.a].b = byte(int8(off))
		} else {
			p.i[v.a].b = byte(target)
			p.i[v.a+1].b = byte(target >> 8)
		}
	}
	return syms
}

// cellRef emits a raw little-endian cell holding num's value, or (if
// num names a label) that label's address, resolved immediately if
// the label is already known and deferred to resolve() otherwise.
// Used by .C for absolute address table entries — a dispatch table
// of word addresses, say — where a relative branch offset would be
// the wrong encoding.
func (p *parser) cellRef(num string) error {
	if a, ok := p.d[num]; ok {
		p.store(byte(a))
		p.store(byte(a >> 8))
		return nil
	}
	if n, err := strconv.ParseInt(num, 0, 16); err == nil {
		p.store(byte(n))
		p.store(byte(n >> 8))
		return nil
	}
	p.storeUnresolvedCell(num)
	return nil
}

func (p *parser) cellLiteral(num string) error {
	n, err := strconv.ParseInt(num, 0, 16)
	if err != nil {
		return err
	}
	if n >= -128 && n <= 127 {
		p.store(mnemonics["clit"])
		p.store(byte(int8(n)))
		return nil
	}
	p.store(mnemonics["lit"])
	v := uint16(int16(n))
	p.store(byte(v))
	p.store(byte(v >> 8))
	return nil
}

func (p *parser) branch(mnemonic, target string) error {
	var op byte
	switch mnemonic {
	case "branch":
		op = mnemonics["branch"]
	case "0branch":
		op = mnemonics["0branch"]
	}
	p.store(op)
	if a, ok := p.d[target]; ok {
		off := int(a) - int(p.a+1)
		if off < -128 || off > 127 {
			return fmt.Errorf("branch to %s out of range", target)
		}
		p.store(byte(int8(off)))
		return nil
	}
	p.storeUnresolvedBranch(target)
	return nil
}

func (p *parser) bytes(f []string) error {
	var b []byte
	for _, s := range f {
		switch s[0] {
		case '\'':
			for _, c := range s[1:] {
				if c == '\'' {
					break
				}
				b = append(b, byte(c))
			}
		default:
			n, err := strconv.ParseUint(s, 0, 8)
			if err != nil {
				return err
			}
			b = append(b, byte(n))
		}
	}
	for _, c := range b {
		p.store(c)
	}
	return nil
}

func (p *parser) doLine() error {
	f := strings.Fields(p.s)
	if len(f) == 0 {
		return nil
	}
	switch f[0] {
	case `\`:
		return nil
	case ".L":
		if len(f) != 2 {
			return errParse
		}
		return p.defLabel(f[1])
	case ".W":
		if len(f) != 2 {
			return errParse
		}
		p.words = append(p.words, word{name: f[1], addr: p.a})
		return p.defLabel(f[1])
	case ".B":
		if len(f) < 2 {
			return errParse
		}
		return p.bytes(f[1:])
	case ".C":
		if len(f) != 2 {
			return errParse
		}
		return p.cellRef(f[1])
	case "push":
		if len(f) != 2 {
			return errParse
		}
		return p.cellLiteral(f[1])
	case "branch", "0branch":
		if len(f) != 2 {
			return errParse
		}
		return p.branch(f[0], f[1])
	default:
		if len(f) != 1 {
			return errParse
		}
		op, ok := mnemonics[strings.ToLower(f[0])]
		if !ok {
			return errParse
		}
		p.store(op)
		return nil
	}
}

func (p *parser) dump(pkg string) {
	fmt.Printf("// Autogenerated by asm.  Do not edit by hand.\n\npackage %s\n\n", pkg)
	fmt.Print(`import (
	"forthvm/internal/dict"
	"forthvm/internal/mem"
)

var StaticImage = []byte{
`)
	for k, v := range p.i {
		fmt.Printf("\t%#02x, // %04x %s", v.b, k, v.s)
	}
	fmt.Print("}\n\nvar StaticWords = []dict.StaticWord{\n")
	for _, w := range p.words {
		fmt.Printf("\t{Name: %q, Addr: mem.Addr(%d)},\n", w.name, w.addr)
	}
	fmt.Print("}\n")
}

func main() {
	pkg := "staticwords"
	if len(os.Args) > 1 {
		pkg = os.Args[1]
	}
	p := &parser{d: make(dict)}
	in := bufio.NewReader(os.Stdin)
loop:
	for {
		var err error
		p.l++
		switch p.s, err = in.ReadString('\n'); err {
		case nil:
		case io.EOF:
			break loop
		default:
			log.Fatalln(p.l, err)
		}
		if err = p.doLine(); err != nil {
			log.Fatalln(p.l, err)
		}
	}
	if syms := p.resolve(); len(syms) != 0 {
		log.Fatalf("unresolved symbols: %s\n", syms)
	}
	p.dump(pkg)
}
