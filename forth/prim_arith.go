package forth

import (
	"forthvm/internal/token"
	"forthvm/internal/verr"
)

// Division and remainder throughout this file use Go's native
// truncating semantics (quotient rounds toward zero, remainder takes
// the sign of the dividend) rather than the floored division some
// Forths define — the discipline SPEC_FULL.md §13 records.

func binOp(fn func(a, b int16) int16) primFunc {
	return func(vm *VM, t *Task) error {
		b, err := t.SP.Pop()
		if err != nil {
			return err
		}
		a, err := t.SP.Pop()
		if err != nil {
			return err
		}
		return t.SP.Push(fn(a, b))
	}
}

func unOp(fn func(a int16) int16) primFunc {
	return func(vm *VM, t *Task) error {
		a, err := t.SP.Pop()
		if err != nil {
			return err
		}
		return t.SP.Push(fn(a))
	}
}

func init() {
	register(token.PLUS, binOp(func(a, b int16) int16 { return a + b }))
	register(token.MINUS, binOp(func(a, b int16) int16 { return a - b }))
	register(token.STAR, binOp(func(a, b int16) int16 { return a * b }))

	register(token.SLASH, func(vm *VM, t *Task) error {
		b, err := t.SP.Pop()
		if err != nil {
			return err
		}
		a, err := t.SP.Pop()
		if err != nil {
			return err
		}
		if b == 0 {
			return verr.ZeroDivision
		}
		return t.SP.Push(a / b)
	})

	register(token.MOD, func(vm *VM, t *Task) error {
		b, err := t.SP.Pop()
		if err != nil {
			return err
		}
		a, err := t.SP.Pop()
		if err != nil {
			return err
		}
		if b == 0 {
			return verr.ZeroDivision
		}
		return t.SP.Push(a % b)
	})

	// /MOD ( n1 n2 -- rem quot )
	register(token.SLASHMOD, func(vm *VM, t *Task) error {
		b, err := t.SP.Pop()
		if err != nil {
			return err
		}
		a, err := t.SP.Pop()
		if err != nil {
			return err
		}
		if b == 0 {
			return verr.ZeroDivision
		}
		if err := t.SP.Push(a % b); err != nil {
			return err
		}
		return t.SP.Push(a / b)
	})

	// */ ( n1 n2 n3 -- n4 ) n4 = n1*n2/n3, the intermediate product
	// carried in a double cell so it can overflow a single cell
	// without corrupting the result.
	register(token.STARSLASH, func(vm *VM, t *Task) error {
		n3, err := t.SP.Pop()
		if err != nil {
			return err
		}
		n2, err := t.SP.Pop()
		if err != nil {
			return err
		}
		n1, err := t.SP.Pop()
		if err != nil {
			return err
		}
		if n3 == 0 {
			return verr.ZeroDivision
		}
		return t.SP.Push(int16(int32(n1) * int32(n2) / int32(n3)))
	})

	// */MOD ( n1 n2 n3 -- rem quot )
	register(token.STARSLASHMOD, func(vm *VM, t *Task) error {
		n3, err := t.SP.Pop()
		if err != nil {
			return err
		}
		n2, err := t.SP.Pop()
		if err != nil {
			return err
		}
		n1, err := t.SP.Pop()
		if err != nil {
			return err
		}
		if n3 == 0 {
			return verr.ZeroDivision
		}
		prod := int32(n1) * int32(n2)
		if err := t.SP.Push(int16(prod % int32(n3))); err != nil {
			return err
		}
		return t.SP.Push(int16(prod / int32(n3)))
	})

	// M* ( n1 n2 -- d ) signed multiply to a double-cell result.
	register(token.MSTAR, func(vm *VM, t *Task) error {
		b, err := t.SP.Pop()
		if err != nil {
			return err
		}
		a, err := t.SP.Pop()
		if err != nil {
			return err
		}
		return t.SP.PushDouble(int32(a) * int32(b))
	})

	// UM* ( u1 u2 -- ud ) unsigned multiply to a double-cell result.
	register(token.UMSTAR, func(vm *VM, t *Task) error {
		b, err := t.SP.Pop()
		if err != nil {
			return err
		}
		a, err := t.SP.Pop()
		if err != nil {
			return err
		}
		prod := uint32(uint16(a)) * uint32(uint16(b))
		return t.SP.PushDouble(int32(prod))
	})

	register(token.NEGATE, unOp(func(a int16) int16 { return -a }))
	register(token.ABS, unOp(func(a int16) int16 {
		if a < 0 {
			return -a
		}
		return a
	}))
	register(token.ONEPLUS, unOp(func(a int16) int16 { return a + 1 }))
	register(token.ONEMINUS, unOp(func(a int16) int16 { return a - 1 }))
	register(token.TWOPLUS, unOp(func(a int16) int16 { return a + 2 }))
	register(token.TWOMINUS, unOp(func(a int16) int16 { return a - 2 }))
	register(token.TWOSTAR, unOp(func(a int16) int16 { return a * 2 }))
	// 2/ is an arithmetic right shift, not truncating division — the
	// two disagree on negative odd values (-3 2/ = -2, not -1).
	register(token.TWOSLASH, unOp(func(a int16) int16 { return a >> 1 }))

	register(token.MIN, binOp(func(a, b int16) int16 {
		if a < b {
			return a
		}
		return b
	}))
	register(token.MAX, binOp(func(a, b int16) int16 {
		if a > b {
			return a
		}
		return b
	}))
}
