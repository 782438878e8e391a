package forth

import "forthvm/internal/token"

func flag(b bool) int16 {
	if b {
		return -1
	}
	return 0
}

func init() {
	register(token.EQUAL, binOp(func(a, b int16) int16 { return flag(a == b) }))
	register(token.NOTEQUAL, binOp(func(a, b int16) int16 { return flag(a != b) }))
	register(token.LESS, binOp(func(a, b int16) int16 { return flag(a < b) }))
	register(token.GREATER, binOp(func(a, b int16) int16 { return flag(a > b) }))

	register(token.ULESS, binOp(func(a, b int16) int16 {
		return flag(uint16(a) < uint16(b))
	}))

	register(token.ZEROEQUAL, unOp(func(a int16) int16 { return flag(a == 0) }))
	register(token.ZERONOTEQUAL, unOp(func(a int16) int16 { return flag(a != 0) }))
	register(token.ZEROLESS, unOp(func(a int16) int16 { return flag(a < 0) }))
	register(token.ZEROGREATER, unOp(func(a int16) int16 { return flag(a > 0) }))

	// WITHIN ( n lo hi -- flag ) true when lo <= n < hi, under the
	// standard wrap rule when lo > hi: the test becomes the union of
	// [lo,hi) taken the other way around, i.e. n >= lo OR n < hi.
	register(token.WITHIN, func(vm *VM, t *Task) error {
		hi, err := t.SP.Pop()
		if err != nil {
			return err
		}
		lo, err := t.SP.Pop()
		if err != nil {
			return err
		}
		n, err := t.SP.Pop()
		if err != nil {
			return err
		}
		var ok bool
		if lo <= hi {
			ok = n >= lo && n < hi
		} else {
			ok = n >= lo || n < hi
		}
		return t.SP.Push(flag(ok))
	})
}
