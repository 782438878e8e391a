package forth

import (
	"forthvm/internal/dict"
	"forthvm/internal/mem"
	"forthvm/internal/token"
	"forthvm/internal/verr"
)

// The colon compiler turns the control-structure and definition words
// spec.md leaves as "data, not design" (§1's Non-goals note on
// primitive bodies) into the byte stream §4.1 defines: IF/ELSE/THEN
// and BEGIN/WHILE/REPEAT/UNTIL fold to ZEROBRANCH/BRANCH pairs exactly
// like original_source/FVM.cpp's softcore does, but compiled natively
// here instead of bootstrapped from lower Forth words. DO/?DO and
// LOOP/+LOOP compile to their own direct opcodes; IF/THEN have none.

// emitByte appends one byte to the shared arena and returns its
// address in the VM's global (CodePMax-relative) space.
func (vm *VM) emitByte(b byte) (mem.Addr, error) {
	a, err := vm.Arena.CComma(b)
	return CodePMax + a, err
}

// emitCell appends one little-endian cell to the arena, global address.
func (vm *VM) emitCell(v int16) (mem.Addr, error) {
	a, err := vm.Arena.Comma(v)
	return CodePMax + a, err
}

// emitBytes appends raw bytes (e.g. a compiled string literal's text).
func (vm *VM) emitBytes(b []byte) (mem.Addr, error) {
	a, err := vm.Arena.AppendBytes(b)
	return CodePMax + a, err
}

// patchByte overwrites an already-compiled byte, used to back-patch a
// branch operand once its target address is known.
func (vm *VM) patchByte(addr mem.Addr, b byte) error { return vm.StoreByte(addr, b) }

// patchBranch writes the signed relative offset from the byte
// immediately following operandAddr to target, matching
// branchTarget's own convention in inner.go.
func (vm *VM) patchBranch(operandAddr, target mem.Addr) error {
	offset := int32(target) - int32(operandAddr+1)
	if offset < -128 || offset > 127 {
		return verr.IllegalAddress
	}
	return vm.patchByte(operandAddr, byte(int8(offset)))
}

// compileCall compiles a threaded call to tok, picking the cheapest
// encoding the token's range allows: a bare opcode byte for a kernel
// primitive, a negative direct-call byte for a static application
// word, or the CALL prefix for a dynamic application word (spec.md
// §4.4's token ranges, §4.1's CALL prefix).
func (vm *VM) compileCall(tok token.Token) error {
	switch {
	case int(tok) < dict.KernelMax:
		_, err := vm.emitByte(byte(tok))
		return err
	case int(tok) < dict.StaticMax:
		idx := int(tok) - dict.KernelMax
		_, err := vm.emitByte(byte(int8(-(idx + 1))))
		return err
	case int(tok) < dict.DynamicMax:
		idx := int(tok) - dict.StaticMax
		if idx > 255 {
			return verr.IllegalInstruction
		}
		if _, err := vm.emitByte(byte(token.CALL)); err != nil {
			return err
		}
		_, err := vm.emitByte(byte(idx))
		return err
	default:
		return verr.IllegalInstruction
	}
}

// compileLiteral compiles the cheapest literal encoding for v: CLITERAL
// when it fits a signed byte, LITERAL otherwise.
func (vm *VM) compileLiteral(v int16) error {
	if v >= -128 && v <= 127 {
		if _, err := vm.emitByte(byte(token.CLITERAL)); err != nil {
			return err
		}
		_, err := vm.emitByte(byte(int8(v)))
		return err
	}
	if _, err := vm.emitByte(byte(token.LITERAL)); err != nil {
		return err
	}
	_, err := vm.emitCell(v)
	return err
}

type ctrlKind int

const (
	ctrlIf ctrlKind = iota
	ctrlElse
	ctrlBegin
	ctrlWhile
	ctrlDo
)

// ctrlFrame is one open control-structure nesting level on the
// compiler's control-flow stack: the address of a branch operand still
// waiting to be patched, and/or the address a backward branch should
// return to.
type ctrlFrame struct {
	kind    ctrlKind
	operand mem.Addr
	target  mem.Addr
}

func (o *Outer) pushCtrl(f ctrlFrame) { o.ctrl = append(o.ctrl, f) }

func (o *Outer) popCtrl(want ctrlKind) (ctrlFrame, error) {
	if len(o.ctrl) == 0 {
		return ctrlFrame{}, verr.IllegalInstruction
	}
	f := o.ctrl[len(o.ctrl)-1]
	if f.kind != want {
		return ctrlFrame{}, verr.IllegalInstruction
	}
	o.ctrl = o.ctrl[:len(o.ctrl)-1]
	return f, nil
}

// compileIf compiles IF's ZEROBRANCH with a placeholder operand,
// deferring the branch target until the matching ELSE or THEN.
func (o *Outer) compileIf() error {
	if _, err := o.vm.emitByte(byte(token.ZEROBRANCH)); err != nil {
		return err
	}
	addr, err := o.vm.emitByte(0)
	if err != nil {
		return err
	}
	o.pushCtrl(ctrlFrame{kind: ctrlIf, operand: addr})
	return nil
}

func (o *Outer) compileElse() error {
	f, err := o.popCtrl(ctrlIf)
	if err != nil {
		return err
	}
	if _, err := o.vm.emitByte(byte(token.BRANCH)); err != nil {
		return err
	}
	addr, err := o.vm.emitByte(0)
	if err != nil {
		return err
	}
	if err := o.vm.patchBranch(f.operand, o.vm.HereAddr()); err != nil {
		return err
	}
	o.pushCtrl(ctrlFrame{kind: ctrlElse, operand: addr})
	return nil
}

func (o *Outer) compileThen() error {
	if len(o.ctrl) == 0 {
		return verr.IllegalInstruction
	}
	f := o.ctrl[len(o.ctrl)-1]
	if f.kind != ctrlIf && f.kind != ctrlElse {
		return verr.IllegalInstruction
	}
	o.ctrl = o.ctrl[:len(o.ctrl)-1]
	return o.vm.patchBranch(f.operand, o.vm.HereAddr())
}

func (o *Outer) compileBegin() error {
	o.pushCtrl(ctrlFrame{kind: ctrlBegin, target: o.vm.HereAddr()})
	return nil
}

func (o *Outer) compileUntil() error {
	f, err := o.popCtrl(ctrlBegin)
	if err != nil {
		return err
	}
	if _, err := o.vm.emitByte(byte(token.ZEROBRANCH)); err != nil {
		return err
	}
	addr, err := o.vm.emitByte(0)
	if err != nil {
		return err
	}
	return o.vm.patchBranch(addr, f.target)
}

func (o *Outer) compileAgain() error {
	f, err := o.popCtrl(ctrlBegin)
	if err != nil {
		return err
	}
	if _, err := o.vm.emitByte(byte(token.BRANCH)); err != nil {
		return err
	}
	addr, err := o.vm.emitByte(0)
	if err != nil {
		return err
	}
	return o.vm.patchBranch(addr, f.target)
}

func (o *Outer) compileWhile() error {
	f, err := o.popCtrl(ctrlBegin)
	if err != nil {
		return err
	}
	if _, err := o.vm.emitByte(byte(token.ZEROBRANCH)); err != nil {
		return err
	}
	addr, err := o.vm.emitByte(0)
	if err != nil {
		return err
	}
	o.pushCtrl(ctrlFrame{kind: ctrlWhile, operand: addr, target: f.target})
	return nil
}

func (o *Outer) compileRepeat() error {
	f, err := o.popCtrl(ctrlWhile)
	if err != nil {
		return err
	}
	if _, err := o.vm.emitByte(byte(token.BRANCH)); err != nil {
		return err
	}
	addr, err := o.vm.emitByte(0)
	if err != nil {
		return err
	}
	if err := o.vm.patchBranch(addr, f.target); err != nil {
		return err
	}
	return o.vm.patchBranch(f.operand, o.vm.HereAddr())
}

// compileDo compiles DO with a placeholder leave-target operand (read
// by the DO primitive itself, per spec.md §4.1, and used by LEAVE).
func (o *Outer) compileDo(qdo bool) error {
	op := token.DO
	if qdo {
		op = token.QDO
	}
	if _, err := o.vm.emitByte(byte(op)); err != nil {
		return err
	}
	addr, err := o.vm.emitByte(0)
	if err != nil {
		return err
	}
	o.pushCtrl(ctrlFrame{kind: ctrlDo, operand: addr, target: o.vm.HereAddr()})
	return nil
}

func (o *Outer) compileLoop(plus bool) error {
	f, err := o.popCtrl(ctrlDo)
	if err != nil {
		return err
	}
	op := token.LOOP
	if plus {
		op = token.PLUSLOOP
	}
	if _, err := o.vm.emitByte(byte(op)); err != nil {
		return err
	}
	addr, err := o.vm.emitByte(0)
	if err != nil {
		return err
	}
	if err := o.vm.patchBranch(addr, f.target); err != nil {
		return err
	}
	return o.vm.patchBranch(f.operand, o.vm.HereAddr())
}
