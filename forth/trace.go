package forth

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"forthvm/internal/dict"
	"forthvm/internal/mem"
	"forthvm/internal/token"
)

// traceLine writes one trace row: task id, elapsed microseconds since
// the previous dispatch on this task, the instruction pointer,
// return-stack depth as indentation, the resolved token name, and a
// bracketed parameter-stack dump — the same shape as the reference
// FVM_TRACE block, adapted from a fixed-width C struct dump to a
// formatted Go line.
func (vm *VM) traceLine(t *Task, pc mem.Addr, now time.Time, instr int8) {
	var elapsed int64
	if !t.lastDispatch.IsZero() {
		elapsed = now.Sub(t.lastDispatch).Microseconds()
	}
	name := vm.instrName(instr)
	indent := strings.Repeat("  ", t.RP.Depth())
	vm.IO.Print(fmt.Sprintf("%d:%6dus %04x %s%-10s [", t.ID, elapsed, pc, indent, name))
	for i, v := range t.SP.All() {
		if i > 0 {
			vm.IO.Print(" ")
		}
		vm.IO.Print(strconv.FormatInt(int64(v), t.Base))
	}
	vm.IO.Print("]\n")
}

func (vm *VM) instrName(instr int8) string {
	if instr >= 0 {
		return token.Name(token.Opcode(instr))
	}
	idx := int(-instr) - 1
	return vm.Dict.Name(token.Token(dict.KernelMax + idx))
}
