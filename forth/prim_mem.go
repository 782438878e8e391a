package forth

import (
	"forthvm/internal/mem"
	"forthvm/internal/token"
	"forthvm/internal/verr"
)

func init() {
	register(token.HERE, func(vm *VM, t *Task) error { return t.SP.Push(int16(vm.HereAddr())) })

	register(token.DP, func(vm *VM, t *Task) error { return t.SP.Push(int16(vm.HereAddr())) })

	register(token.DEPTH, func(vm *VM, t *Task) error { return t.SP.Push(int16(t.SP.Depth())) })

	register(token.FETCH, func(vm *VM, t *Task) error {
		a, err := t.SP.Pop()
		if err != nil {
			return err
		}
		v, err := vm.FetchCell(mem.Addr(uint16(a)))
		if err != nil {
			return err
		}
		return t.SP.Push(v)
	})

	register(token.STORE, func(vm *VM, t *Task) error {
		a, err := t.SP.Pop()
		if err != nil {
			return err
		}
		v, err := t.SP.Pop()
		if err != nil {
			return err
		}
		return vm.StoreCell(mem.Addr(uint16(a)), v)
	})

	register(token.CFETCH, func(vm *VM, t *Task) error {
		a, err := t.SP.Pop()
		if err != nil {
			return err
		}
		b, err := vm.FetchByte(mem.Addr(uint16(a)))
		if err != nil {
			return err
		}
		return t.SP.Push(int16(int8(b)))
	})

	register(token.CSTORE, func(vm *VM, t *Task) error {
		a, err := t.SP.Pop()
		if err != nil {
			return err
		}
		v, err := t.SP.Pop()
		if err != nil {
			return err
		}
		return vm.StoreByte(mem.Addr(uint16(a)), byte(v))
	})

	// +! ( n a-addr -- ) adds n to the cell at a-addr.
	register(token.PLUSSTORE, func(vm *VM, t *Task) error {
		a, err := t.SP.Pop()
		if err != nil {
			return err
		}
		n, err := t.SP.Pop()
		if err != nil {
			return err
		}
		addr := mem.Addr(uint16(a))
		v, err := vm.FetchCell(addr)
		if err != nil {
			return err
		}
		return vm.StoreCell(addr, v+n)
	})

	register(token.ALLOT, func(vm *VM, t *Task) error {
		n, err := t.SP.Pop()
		if err != nil {
			return err
		}
		return vm.Arena.Allot(int(n))
	})

	register(token.COMMA, func(vm *VM, t *Task) error {
		v, err := t.SP.Pop()
		if err != nil {
			return err
		}
		_, err = vm.Arena.Comma(v)
		return err
	})

	register(token.CCOMMA, func(vm *VM, t *Task) error {
		v, err := t.SP.Pop()
		if err != nil {
			return err
		}
		_, err = vm.Arena.CComma(byte(v))
		return err
	})

	register(token.CELLS, func(vm *VM, t *Task) error {
		n, err := t.SP.Pop()
		if err != nil {
			return err
		}
		return t.SP.Push(n * 2)
	})

	register(token.CELL, func(vm *VM, t *Task) error { return t.SP.Push(2) })

	// >BODY ( xt -- a-addr ) — the data address a variable/constant
	// token's xt resolves to. defineVariable/defineCreate allocate the
	// storage cell immediately before the VAR/DOES> header, so the body
	// sits one cell (2 bytes) behind the header for those two. A
	// CONSTANT has no separate storage cell — defineConstant writes the
	// value inline at header+1 — so its body is one byte past the
	// header instead.
	register(token.TOBODY, func(vm *VM, t *Task) error {
		xt, err := t.SP.Pop()
		if err != nil {
			return err
		}
		addr, ok := vm.Dict.Resolve(token.Token(xt))
		if !ok {
			return verr.IllegalInstruction
		}
		op, err := vm.FetchByte(addr)
		if err != nil {
			return err
		}
		if token.Opcode(op) == token.CONST {
			return t.SP.Push(int16(addr) + 1)
		}
		return t.SP.Push(int16(addr) - 2)
	})

	// EXECUTE ( i*x xt -- j*x ) calls a dictionary token directly,
	// used when a program holds a token value it looked up earlier
	// (e.g. via lookup).
	register(token.EXECUTE, func(vm *VM, t *Task) error {
		xt, err := t.SP.Pop()
		if err != nil {
			return err
		}
		tok := token.Token(xt)
		if int(tok) < int(token.KernelMax) {
			op := token.Opcode(tok)
			if int(op) >= len(primitives) || primitives[op] == nil {
				return verr.IllegalInstruction
			}
			return primitives[op](vm, t)
		}
		return vm.threadedCall(t, tok, t.IP)
	})
}
