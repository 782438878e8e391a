package forth

import (
	"errors"
	"time"

	"forthvm/internal/dict"
	"forthvm/internal/mem"
	"forthvm/internal/token"
	"forthvm/internal/verr"
)

// primFunc is one primitive's implementation. Primitives that carry
// an inline operand (LITERAL, BRANCH, VAR, ...) read it themselves
// from vm.Code starting at t.IP and advance t.IP past it.
type primFunc func(vm *VM, t *Task) error

var primitives [token.KernelMax]primFunc

func register(op token.Opcode, fn primFunc) {
	primitives[op] = fn
}

// errSoftYield is a primFunc's private signal that the instruction
// wants to yield without being consumed — on the next Resume the same
// opcode runs again. Never escapes the package: Resume rewrites it to
// Yielded. KEY and DELAY use it instead of the dedicated YIELD opcode
// so ?KEY-not-ready and MILLIS-not-elapsed read as ordinary
// primitives, matching spec.md §5's "KEY (which is ?KEY plus YIELD in
// a loop), DELAY (which is MILLIS plus YIELD in a loop)" without
// actually compiling that loop out of lower-level opcodes.
var errSoftYield = errors.New("forth: soft yield")

// readOperandByte reads the inline signed-byte operand immediately
// following the opcode at t.IP (already advanced past the opcode
// itself) and advances t.IP past it. Used by CLITERAL, BRANCH,
// ZEROBRANCH, PARAM, DO/?DO, LOOP/+LOOP.
func readOperandByte(vm *VM, t *Task) (int8, error) {
	b, err := vm.FetchByte(t.IP)
	if err != nil {
		return 0, verr.IllegalAddress
	}
	t.IP++
	return int8(b), nil
}

// readOperandCell reads the inline little-endian 16-bit operand
// following the opcode at t.IP, advancing t.IP past both bytes. Used
// by LITERAL.
func readOperandCell(vm *VM, t *Task) (int16, error) {
	v, err := vm.FetchCell(t.IP)
	if err != nil {
		return 0, verr.IllegalAddress
	}
	t.IP += 2
	return v, nil
}

// branchTarget computes a relative branch target the same way for
// every branching opcode (BRANCH, ZEROBRANCH, DO's leave-skip, LOOP's
// backward jump): relative to the address immediately following the
// operand byte just read.
func branchTarget(t *Task, offset int8) mem.Addr {
	return mem.Addr(int32(t.IP) + int32(offset))
}

// Resume runs task t until it yields, halts, or traps, returning which.
// Only YIELD, and KEY/DELAY while not yet ready (via errSoftYield), ever
// cause Resume to return Yielded; HALT returns Halted; everything else
// runs to completion inline.
func (vm *VM) Resume(t *Task) Signal {
	t.err = nil
	for {
		now := time.Now()
		pc := t.IP
		raw, err := vm.FetchByte(pc)
		if err != nil {
			return vm.trap(t, verr.IllegalAddress, pc, 0)
		}
		instr := int8(raw)
		t.IP++

		if t.Trace {
			vm.traceLine(t, pc, now, instr)
		}
		t.lastDispatch = now

		if instr >= 0 {
			op := token.Opcode(instr)
			if int(op) >= len(primitives) || primitives[op] == nil {
				return vm.trap(t, verr.IllegalInstruction, pc, int(instr))
			}
			switch op {
			case token.HALT:
				for t.RP.Depth() > 0 {
					t.RP.Pop()
				}
				t.IP = pc // sticky: re-executes HALT on next Resume
				return Halted
			case token.YIELD:
				return Yielded
			}
			if err := primitives[op](vm, t); err != nil {
				if err == errSoftYield {
					t.IP = pc // re-executes this same token next Resume
					return Yielded
				}
				return vm.trapErr(t, err, pc, int(instr))
			}
			continue
		}

		idx := int(-instr) - 1 // 0..127, direct threaded-call slot
		tok := token.Token(dict.KernelMax + idx)
		if err := vm.threadedCall(t, tok, pc); err != nil {
			return vm.trapErr(t, err, pc, int(instr))
		}
	}
}

// threadedCall performs a call to tok's body address, eliding the
// return-address push (a tail call) when the instruction immediately
// following this call in the caller's stream is EXIT — the caller's
// own EXIT is consumed along with it, since returning through it
// would just re-dispatch another EXIT that pops the same frame the
// tail call would have skipped. This must stay transparent to trace
// output: the callee's own trace lines look identical either way.
func (vm *VM) threadedCall(t *Task, tok token.Token, pc mem.Addr) error {
	addr, ok := vm.Dict.Resolve(tok)
	if !ok {
		return verr.IllegalInstruction
	}
	next, err := vm.FetchByte(t.IP)
	tailCall := err == nil && token.Opcode(next) == token.EXIT
	if tailCall {
		t.IP++ // consume the caller's EXIT too
	} else {
		if err := t.RP.Push(int16(t.IP)); err != nil {
			return verr.RStack(err)
		}
	}
	t.IP = addr
	return nil
}

func (vm *VM) trap(t *Task, errno verr.Errno, pc mem.Addr, instr int) Signal {
	return vm.trapErr(t, errno, pc, instr)
}

func (vm *VM) trapErr(t *Task, err error, pc mem.Addr, instr int) Signal {
	errno, _ := err.(verr.Errno)
	t.err = verr.New(errno, err, int(pc), instr, t.SP.All(), t.RP.All())
	return Trapped
}
