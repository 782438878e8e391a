package forth

import (
	"forthvm/internal/token"
	"forthvm/internal/verr"
)

func init() {
	register(token.DROP, func(vm *VM, t *Task) error { _, err := t.SP.Pop(); return err })

	register(token.NIP, func(vm *VM, t *Task) error {
		v, err := t.SP.Pop()
		if err != nil {
			return err
		}
		if _, err := t.SP.Pop(); err != nil {
			return err
		}
		return t.SP.Push(v)
	})

	register(token.EMPTY, func(vm *VM, t *Task) error { t.SP.Reset(); return nil })

	register(token.DUP, func(vm *VM, t *Task) error {
		v, err := t.SP.Peek()
		if err != nil {
			return err
		}
		return t.SP.Push(v)
	})

	register(token.QDUP, func(vm *VM, t *Task) error {
		v, err := t.SP.Peek()
		if err != nil {
			return err
		}
		if v == 0 {
			return nil
		}
		return t.SP.Push(v)
	})

	register(token.TOR, func(vm *VM, t *Task) error {
		v, err := t.SP.Pop()
		if err != nil {
			return err
		}
		if err := t.RP.Push(v); err != nil {
			return verr.RStack(err)
		}
		return nil
	})

	register(token.RFROM, func(vm *VM, t *Task) error {
		v, err := t.RP.Pop()
		if err != nil {
			return verr.RStack(err)
		}
		return t.SP.Push(v)
	})

	register(token.RFETCH, func(vm *VM, t *Task) error {
		v, err := t.RP.Peek()
		if err != nil {
			return verr.RStack(err)
		}
		return t.SP.Push(v)
	})

	// ?R ( -- flag ) ( R: n -- n ) pushes the nonzero-ness of the
	// return stack's top cell onto the parameter stack, without
	// disturbing or decrementing it.
	register(token.QR, func(vm *VM, t *Task) error {
		v, err := t.RP.Peek()
		if err != nil {
			return verr.RStack(err)
		}
		b := int16(0)
		if v != 0 {
			b = -1
		}
		return t.SP.Push(b)
	})

	register(token.PICK, func(vm *VM, t *Task) error {
		n, err := t.SP.Pop()
		if err != nil {
			return err
		}
		v, err := t.SP.Pick(int(n))
		if err != nil {
			return err
		}
		return t.SP.Push(v)
	})

	register(token.SWAP, func(vm *VM, t *Task) error { return t.SP.Roll(1) })

	register(token.ROT, func(vm *VM, t *Task) error { return t.SP.Roll(2) })

	// -ROT ( a b c -- c a b )
	register(token.MINUSROT, func(vm *VM, t *Task) error {
		c, err := t.SP.Pop()
		if err != nil {
			return err
		}
		b, err := t.SP.Pop()
		if err != nil {
			return err
		}
		a, err := t.SP.Pop()
		if err != nil {
			return err
		}
		if err := t.SP.Push(c); err != nil {
			return err
		}
		if err := t.SP.Push(a); err != nil {
			return err
		}
		return t.SP.Push(b)
	})

	register(token.ROLL, func(vm *VM, t *Task) error {
		n, err := t.SP.Pop()
		if err != nil {
			return err
		}
		return t.SP.Roll(int(n))
	})

	register(token.OVER, func(vm *VM, t *Task) error {
		v, err := t.SP.Pick(1)
		if err != nil {
			return err
		}
		return t.SP.Push(v)
	})

	// TUCK ( x1 x2 -- x2 x1 x2 )
	register(token.TUCK, func(vm *VM, t *Task) error {
		v, err := t.SP.Pick(0)
		if err != nil {
			return err
		}
		if err := t.SP.Roll(1); err != nil { // swap
			return err
		}
		return t.SP.Push(v)
	})

	register(token.TWODUP, func(vm *VM, t *Task) error {
		b, err := t.SP.Pick(0)
		if err != nil {
			return err
		}
		a, err := t.SP.Pick(1)
		if err != nil {
			return err
		}
		if err := t.SP.Push(a); err != nil {
			return err
		}
		return t.SP.Push(b)
	})

	register(token.TWODROP, func(vm *VM, t *Task) error {
		if _, err := t.SP.Pop(); err != nil {
			return err
		}
		_, err := t.SP.Pop()
		return err
	})

	register(token.TWOSWAP, func(vm *VM, t *Task) error {
		if err := t.SP.Roll(3); err != nil {
			return err
		}
		return t.SP.Roll(3)
	})

	register(token.TWOOVER, func(vm *VM, t *Task) error {
		x1, err := t.SP.Pick(3)
		if err != nil {
			return err
		}
		x2, err := t.SP.Pick(2)
		if err != nil {
			return err
		}
		if err := t.SP.Push(x1); err != nil {
			return err
		}
		return t.SP.Push(x2)
	})

	register(token.SP, func(vm *VM, t *Task) error { return t.SP.Push(int16(t.SP.Depth())) })

	register(token.ZERO, func(vm *VM, t *Task) error { return t.SP.Push(0) })
	register(token.ONE, func(vm *VM, t *Task) error { return t.SP.Push(1) })
	register(token.TWO, func(vm *VM, t *Task) error { return t.SP.Push(2) })
	register(token.MINUSONE, func(vm *VM, t *Task) error { return t.SP.Push(-1) })
	register(token.MINUSTWO, func(vm *VM, t *Task) error { return t.SP.Push(-2) })
}
