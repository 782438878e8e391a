package forth

import (
	"forthvm/internal/dict"
	"forthvm/internal/mem"
	"forthvm/internal/token"
	"forthvm/internal/verr"
)

func init() {
	register(token.EXIT, func(vm *VM, t *Task) error {
		addr, err := t.RP.Pop()
		if err != nil {
			return verr.RStack(err)
		}
		t.IP = mem.Addr(uint16(addr))
		return nil
	})

	register(token.LITERAL, func(vm *VM, t *Task) error {
		v, err := readOperandCell(vm, t)
		if err != nil {
			return err
		}
		return t.SP.Push(v)
	})

	register(token.CLITERAL, func(vm *VM, t *Task) error {
		v, err := readOperandByte(vm, t)
		if err != nil {
			return err
		}
		return t.SP.Push(int16(v))
	})

	// (sliteral) ( -- addr len ) — the bytes following the length byte
	// are the string itself, compiled inline by the outer interpreter's
	// S" handling; execution pushes addr/len and skips past the text
	// rather than pushing only addr and relying on a following BRANCH
	// the way original_source/FVM.cpp's OP(S_LITERAL) falls through to
	// OP(BRANCH) to skip it — SLITERAL here knows its own length and
	// needs no separate branch operand.
	register(token.SLITERAL, func(vm *VM, t *Task) error {
		n, err := vm.FetchByte(t.IP)
		if err != nil {
			return err
		}
		t.IP++
		addr := t.IP
		t.IP += mem.Addr(n)
		if err := t.SP.Push(int16(addr)); err != nil {
			return err
		}
		return t.SP.Push(int16(n))
	})

	// (var) ( -- a-addr ) the head of a VARIABLE word: the inline cell
	// is the address of the variable's storage (allocated elsewhere in
	// the arena); push it and fall through to the EXIT the compiler
	// always places right after.
	register(token.VAR, func(vm *VM, t *Task) error {
		v, err := readOperandCell(vm, t)
		if err != nil {
			return err
		}
		return t.SP.Push(v)
	})

	// (const) ( -- x ) the head of a CONSTANT word: the inline cell is
	// the value itself.
	register(token.CONST, func(vm *VM, t *Task) error {
		v, err := readOperandCell(vm, t)
		if err != nil {
			return err
		}
		return t.SP.Push(v)
	})

	// (does>) ( -- ) the head of a CREATE ... DOES> word's body: the
	// inline cell is the object (parameter-field) pointer CREATE set
	// up; push it and, unlike VAR/CONST, fall straight into the DOES>
	// action bytecode the compiler placed right after this cell
	// instead of an EXIT — the action's own EXIT returns to the
	// original caller.
	register(token.DOES, func(vm *VM, t *Task) error {
		v, err := readOperandCell(vm, t)
		if err != nil {
			return err
		}
		return t.SP.Push(v)
	})

	// (param) ( x0..xn -- x0..xn x0 ) duplicates the stack element n
	// deep, n an inline signed byte (0 copies the top, like DUP).
	register(token.PARAM, func(vm *VM, t *Task) error {
		n, err := readOperandByte(vm, t)
		if err != nil {
			return err
		}
		v, err := t.SP.Pick(int(n))
		if err != nil {
			return err
		}
		return t.SP.Push(v)
	})

	register(token.BRANCH, func(vm *VM, t *Task) error {
		offset, err := readOperandByte(vm, t)
		if err != nil {
			return err
		}
		t.IP = branchTarget(t, offset)
		return nil
	})

	register(token.ZEROBRANCH, func(vm *VM, t *Task) error {
		flag, err := t.SP.Pop()
		if err != nil {
			return err
		}
		offset, err := readOperandByte(vm, t)
		if err != nil {
			return err
		}
		if flag == 0 {
			t.IP = branchTarget(t, offset)
		}
		return nil
	})

	// DO ( limit start -- ) ( R: -- limit start ) always enters the
	// loop body; the inline byte operand is the LEAVE target, recorded
	// for I/J/LOOP/+LOOP/LEAVE/UNLOOP even though DO itself never
	// branches on it.
	register(token.DO, func(vm *VM, t *Task) error {
		idx, limit, err := popLoopBounds(t)
		if err != nil {
			return err
		}
		offset, err := readOperandByte(vm, t)
		if err != nil {
			return err
		}
		if err := pushLoopControl(t, limit, idx); err != nil {
			return err
		}
		t.loopStack = append(t.loopStack, loopFrame{leaveAddr: branchTarget(t, offset)})
		return nil
	})

	// ?DO ( limit start -- ) ( R: -- limit start ) is DO with the
	// limit==start guard spec.md §4.1 folds into "DO"'s own
	// description — tested here instead, so the plain DO above can
	// stay a clean unconditional loop entry matching §4.3's
	// dedicated DO/?DO opcode pair.
	register(token.QDO, func(vm *VM, t *Task) error {
		idx, limit, err := popLoopBounds(t)
		if err != nil {
			return err
		}
		offset, err := readOperandByte(vm, t)
		if err != nil {
			return err
		}
		leave := branchTarget(t, offset)
		if idx == limit {
			t.IP = leave
			return nil
		}
		if err := pushLoopControl(t, limit, idx); err != nil {
			return err
		}
		t.loopStack = append(t.loopStack, loopFrame{leaveAddr: leave})
		return nil
	})

	register(token.LOOP, func(vm *VM, t *Task) error {
		idx, limit, err := peekLoopControl(t)
		if err != nil {
			return err
		}
		idx++
		offset, err := readOperandByte(vm, t)
		if err != nil {
			return err
		}
		if idx == limit {
			return endLoop(t)
		}
		if err := updateLoopIndex(t, idx); err != nil {
			return err
		}
		t.IP = branchTarget(t, offset)
		return nil
	})

	// +LOOP ( n -- ) ( R: limit index -- limit index' | -- ) adds n to
	// the loop index and tests whether doing so crossed the limit
	// boundary (the standard ANS Forth rule, which also makes counting
	// down with a negative n work).
	register(token.PLUSLOOP, func(vm *VM, t *Task) error {
		n, err := t.SP.Pop()
		if err != nil {
			return err
		}
		idx, limit, err := peekLoopControl(t)
		if err != nil {
			return err
		}
		before := int32(idx) - int32(limit)
		newIdx := idx + n
		after := int32(newIdx) - int32(limit)
		done := after == 0 || (before < 0) != (after < 0)
		offset, err := readOperandByte(vm, t)
		if err != nil {
			return err
		}
		if done {
			return endLoop(t)
		}
		if err := updateLoopIndex(t, newIdx); err != nil {
			return err
		}
		t.IP = branchTarget(t, offset)
		return nil
	})

	register(token.I, func(vm *VM, t *Task) error {
		v, err := t.RP.Peek()
		if err != nil {
			return verr.RStack(err)
		}
		return t.SP.Push(v)
	})

	register(token.J, func(vm *VM, t *Task) error {
		v, err := t.RP.Pick(2)
		if err != nil {
			return verr.RStack(err)
		}
		return t.SP.Push(v)
	})

	register(token.LEAVE, func(vm *VM, t *Task) error {
		if len(t.loopStack) == 0 {
			return verr.IllegalInstruction
		}
		lf := t.loopStack[len(t.loopStack)-1]
		t.loopStack = t.loopStack[:len(t.loopStack)-1]
		if err := dropLoopControl(t); err != nil {
			return err
		}
		t.IP = lf.leaveAddr
		return nil
	})

	register(token.UNLOOP, func(vm *VM, t *Task) error {
		if len(t.loopStack) == 0 {
			return verr.IllegalInstruction
		}
		t.loopStack = t.loopStack[:len(t.loopStack)-1]
		return dropLoopControl(t)
	})

	// KERNEL reads an unsigned byte extending the direct opcode range
	// past 128, per spec.md's "giving the VM a total of 512 distinct
	// names". The kernel table currently fits in the unprefixed range,
	// so this mostly guards against a stray prefix byte rather than
	// reaching live opcodes — it is wired for wire-format completeness.
	register(token.KERNEL, func(vm *VM, t *Task) error {
		b, err := vm.FetchByte(t.IP)
		if err != nil {
			return err
		}
		t.IP++
		op := token.Opcode(128 + int(b))
		if int(op) >= len(primitives) || primitives[op] == nil {
			return verr.IllegalInstruction
		}
		return primitives[op](vm, t)
	})

	// CALL reads an unsigned byte indexing directly into the dynamic
	// application dictionary, bypassing name lookup the way a compiled
	// colon-definition's direct negative-byte calls bypass it for the
	// static dictionary.
	register(token.CALL, func(vm *VM, t *Task) error {
		b, err := vm.FetchByte(t.IP)
		if err != nil {
			return err
		}
		t.IP++
		tok := token.Token(int(dict.StaticMax) + int(b))
		return vm.threadedCall(t, tok, t.IP)
	})

	// FUNC calls a host extension function registered via
	// RegisterExtension, passing it the task and the VM's environment
	// value. The inline byte is the extension's slot index. The host
	// function runs to completion synchronously and this primitive
	// returns normally — equivalent to the reference "call then EXIT"
	// contract since a primitive's return already continues execution
	// immediately after its inline operand.
	register(token.FUNC, func(vm *VM, t *Task) error {
		idx, err := vm.FetchByte(t.IP)
		if err != nil {
			return err
		}
		t.IP++
		if int(idx) >= len(vm.extensions) {
			return verr.IllegalInstruction
		}
		vm.extensions[idx](t, vm.env)
		return nil
	})

	register(token.HALT, func(vm *VM, t *Task) error { return nil })
	register(token.YIELD, func(vm *VM, t *Task) error { return nil })
	register(token.NOP, func(vm *VM, t *Task) error { return nil })
	register(token.BYE, func(vm *VM, t *Task) error { return verr.Bye })
}

func popLoopBounds(t *Task) (idx, limit int16, err error) {
	idx, err = t.SP.Pop()
	if err != nil {
		return
	}
	limit, err = t.SP.Pop()
	return
}

func pushLoopControl(t *Task, limit, idx int16) error {
	if err := t.RP.Push(limit); err != nil {
		return verr.RStack(err)
	}
	if err := t.RP.Push(idx); err != nil {
		return verr.RStack(err)
	}
	return nil
}

// peekLoopControl reads the running index (top) and limit (just
// below) without disturbing the return stack.
func peekLoopControl(t *Task) (idx, limit int16, err error) {
	idx, err = t.RP.Peek()
	if err != nil {
		return 0, 0, verr.RStack(err)
	}
	limit, err = t.RP.Pick(1)
	if err != nil {
		return 0, 0, verr.RStack(err)
	}
	return idx, limit, nil
}

// updateLoopIndex replaces the running index on top of the return
// stack with a new value, leaving the limit beneath it untouched.
func updateLoopIndex(t *Task, idx int16) error {
	if _, err := t.RP.Pop(); err != nil {
		return verr.RStack(err)
	}
	if err := t.RP.Push(idx); err != nil {
		return verr.RStack(err)
	}
	return nil
}

// dropLoopControl removes the index/limit pair a DO/?DO pushed.
func dropLoopControl(t *Task) error {
	if _, err := t.RP.Pop(); err != nil {
		return verr.RStack(err)
	}
	if _, err := t.RP.Pop(); err != nil {
		return verr.RStack(err)
	}
	return nil
}

// endLoop drops the loop's index/limit pair and its loopStack entry,
// used when LOOP/+LOOP's index has reached the limit.
func endLoop(t *Task) error {
	if len(t.loopStack) > 0 {
		t.loopStack = t.loopStack[:len(t.loopStack)-1]
	}
	return dropLoopControl(t)
}
