package forth

import "forthvm/internal/token"

func init() {
	register(token.AND, binOp(func(a, b int16) int16 { return a & b }))
	register(token.OR, binOp(func(a, b int16) int16 { return a | b }))
	register(token.XOR, binOp(func(a, b int16) int16 { return a ^ b }))
	register(token.INVERT, unOp(func(a int16) int16 { return ^a }))

	// LSHIFT/RSHIFT ( x u -- x' ) shift by the popped count, clamped to
	// the width of a cell; RSHIFT is logical (zero-filling), following
	// ANS Forth rather than Go's sign-extending >> on int16.
	register(token.LSHIFT, func(vm *VM, t *Task) error {
		u, err := t.SP.Pop()
		if err != nil {
			return err
		}
		x, err := t.SP.Pop()
		if err != nil {
			return err
		}
		if u < 0 || u >= 16 {
			return t.SP.Push(0)
		}
		return t.SP.Push(int16(uint16(x) << uint(u)))
	})

	register(token.RSHIFT, func(vm *VM, t *Task) error {
		u, err := t.SP.Pop()
		if err != nil {
			return err
		}
		x, err := t.SP.Pop()
		if err != nil {
			return err
		}
		if u < 0 || u >= 16 {
			return t.SP.Push(0)
		}
		return t.SP.Push(int16(uint16(x) >> uint(u)))
	})
}
