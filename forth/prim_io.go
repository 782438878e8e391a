package forth

import (
	"io"
	"strconv"
	"time"

	"forthvm/internal/mem"
	"forthvm/internal/token"
	"forthvm/internal/verr"
)

func readString(vm *VM, addr mem.Addr, n int16) ([]byte, error) {
	return vm.FetchSlice(addr, int(n))
}

func init() {
	// KEY ( -- c ) blocks without actually blocking the goroutine: when
	// no byte is ready it reports errSoftYield so Resume yields and the
	// scheduler can run another task, re-entering this same KEY on the
	// next Resume. ?KEY plus a hand-written yield loop would do the
	// same thing at the cost of compiling a loop for every caller.
	register(token.KEY, func(vm *VM, t *Task) error {
		if !vm.IO.Available() {
			return errSoftYield
		}
		b, err := vm.IO.ReadByte()
		if err != nil {
			if err == io.EOF {
				return verr.EOF
			}
			return verr.IOError
		}
		return t.SP.Push(int16(int8(b)))
	})

	register(token.QKEY, func(vm *VM, t *Task) error {
		if vm.IO.Available() {
			return t.SP.Push(-1)
		}
		return t.SP.Push(0)
	})

	register(token.EMIT, func(vm *VM, t *Task) error {
		c, err := t.SP.Pop()
		if err != nil {
			return err
		}
		vm.IO.Print(string(rune(byte(c))))
		return nil
	})

	register(token.TYPE, func(vm *VM, t *Task) error {
		n, err := t.SP.Pop()
		if err != nil {
			return err
		}
		a, err := t.SP.Pop()
		if err != nil {
			return err
		}
		buf, err := readString(vm, mem.Addr(uint16(a)), n)
		if err != nil {
			return err
		}
		vm.IO.Print(string(buf))
		return nil
	})

	register(token.DOT, func(vm *VM, t *Task) error {
		v, err := t.SP.Pop()
		if err != nil {
			return err
		}
		vm.IO.PrintNumber(v, t.Base)
		vm.IO.Print(" ")
		return nil
	})

	register(token.UDOT, func(vm *VM, t *Task) error {
		v, err := t.SP.Pop()
		if err != nil {
			return err
		}
		vm.IO.Print(strconv.FormatUint(uint64(uint16(v)), t.Base))
		vm.IO.Print(" ")
		return nil
	})

	register(token.DOTS, func(vm *VM, t *Task) error {
		vm.IO.Print("<")
		vm.IO.PrintNumber(int16(t.SP.Depth()), 10)
		vm.IO.Print("> ")
		for _, v := range t.SP.All() {
			vm.IO.PrintNumber(v, t.Base)
			vm.IO.Print(" ")
		}
		return nil
	})

	register(token.CR, func(vm *VM, t *Task) error { vm.IO.Println(); return nil })
	register(token.SPACE, func(vm *VM, t *Task) error { vm.IO.Print(" "); return nil })

	register(token.SPACES, func(vm *VM, t *Task) error {
		n, err := t.SP.Pop()
		if err != nil {
			return err
		}
		for i := int16(0); i < n; i++ {
			vm.IO.Print(" ")
		}
		return nil
	})

	// BASE ( -- n ) reports the current number-conversion base as a
	// value, not the address of a variable: this host has nowhere to
	// memory-map per-task state into the shared address space, so
	// unlike the reference "base ( -- addr )" there is no generic
	// store path for it — only HEX/DECIMAL change it.
	register(token.BASE, func(vm *VM, t *Task) error { return t.SP.Push(int16(t.Base)) })
	register(token.HEX, func(vm *VM, t *Task) error { t.Base = 16; return nil })
	register(token.DECIMAL, func(vm *VM, t *Task) error { t.Base = 10; return nil })

	register(token.WORDS, func(vm *VM, t *Task) error {
		for _, w := range vm.Dict.Words() {
			vm.IO.Print(w)
			vm.IO.Print(" ")
		}
		vm.IO.Println()
		return nil
	})

	register(token.DOTNAME, func(vm *VM, t *Task) error {
		v, err := t.SP.Pop()
		if err != nil {
			return err
		}
		vm.IO.Print(vm.Dict.Name(token.Token(v)))
		return nil
	})

	register(token.LOOKUP, func(vm *VM, t *Task) error {
		n, err := t.SP.Pop()
		if err != nil {
			return err
		}
		a, err := t.SP.Pop()
		if err != nil {
			return err
		}
		buf, err := readString(vm, mem.Addr(uint16(a)), n)
		if err != nil {
			return err
		}
		return t.SP.Push(int16(vm.Dict.Lookup(string(buf))))
	})

	// ? ( a-addr -- ) fetches and prints the cell stored at a-addr.
	register(token.QUESTION, func(vm *VM, t *Task) error {
		a, err := t.SP.Pop()
		if err != nil {
			return err
		}
		v, err := vm.FetchCell(mem.Addr(uint16(a)))
		if err != nil {
			return err
		}
		vm.IO.PrintNumber(v, t.Base)
		vm.IO.Print(" ")
		return nil
	})

	register(token.MILLIS, func(vm *VM, t *Task) error {
		return t.SP.Push(int16(time.Since(vm.start).Milliseconds()))
	})

	register(token.MICROS, func(vm *VM, t *Task) error {
		return t.SP.Push(int16(time.Since(vm.start).Microseconds()))
	})

	// DELAY ( n -- ) yields cooperatively until n milliseconds have
	// elapsed, the same re-entrant-primitive trick as KEY rather than
	// compiling MILLIS into a busy-wait loop.
	register(token.DELAY, func(vm *VM, t *Task) error {
		if !t.delaying {
			n, err := t.SP.Pop()
			if err != nil {
				return err
			}
			t.delaying = true
			t.delayUntil = time.Now().Add(time.Duration(n) * time.Millisecond)
		}
		if time.Now().Before(t.delayUntil) {
			return errSoftYield
		}
		t.delaying = false
		return nil
	})
}
