package forth

import (
	"strings"
	"testing"

	"forthvm/internal/token"
	"forthvm/internal/verr"
)

func newTestVM() *VM {
	return New(nil, nil, 0x2000, NewBufferedIO(strings.NewReader(""), new(strings.Builder)))
}

func runLine(t *testing.T, vm *VM, src string) *Outer {
	t.Helper()
	vm.IO = NewStringIO(src + "\n")
	o := NewOuter(vm)
	o.Quiet = true
	err := o.Interpret()
	if err != verr.EOF {
		t.Fatalf("Interpret(%q) = %v, want verr.EOF", src, err)
	}
	return o
}

func TestArithmeticInterpretTime(t *testing.T) {
	vm := newTestVM()
	o := runLine(t, vm, "3 4 + 2 *")
	got := o.Task().SP.All()
	if len(got) != 1 || got[0] != 14 {
		t.Fatalf("stack = %v, want [14]", got)
	}
}

func TestColonDefinitionAndRecursion(t *testing.T) {
	vm := newTestVM()
	runLine(t, vm, ": square dup * ;")
	o := runLine(t, vm, "5 square")
	got := o.Task().SP.All()
	if len(got) != 1 || got[0] != 25 {
		t.Fatalf("square(5) stack = %v, want [25]", got)
	}

	vm2 := newTestVM()
	runLine(t, vm2, ": countdown dup 0= if drop else 1- recurse then ;")
	o2 := runLine(t, vm2, "3 countdown")
	if d := o2.Task().SP.Depth(); d != 0 {
		t.Fatalf("countdown(3) left depth %d, want 0", d)
	}
}

func TestDoLoop(t *testing.T) {
	vm := newTestVM()
	runLine(t, vm, ": sum3 0 3 0 do i + loop ;")
	o := runLine(t, vm, "sum3")
	got := o.Task().SP.All()
	if len(got) != 1 || got[0] != 3 {
		t.Fatalf("sum3 stack = %v, want [3] (0+1+2)", got)
	}
}

func TestBeginUntil(t *testing.T) {
	vm := newTestVM()
	runLine(t, vm, ": countup ( n -- n' ) begin 1+ dup 5 = until ;")
	o := runLine(t, vm, "0 countup")
	got := o.Task().SP.All()
	if len(got) != 1 || got[0] != 5 {
		t.Fatalf("countup(0) stack = %v, want [5]", got)
	}
}

func TestBeginWhileRepeat(t *testing.T) {
	vm := newTestVM()
	runLine(t, vm, ": sumto5 ( -- sum ) 0 0 begin dup 5 < while 1+ swap over + swap repeat drop ;")
	o := runLine(t, vm, "sumto5")
	got := o.Task().SP.All()
	if len(got) != 1 || got[0] != 15 {
		t.Fatalf("sumto5 stack = %v, want [15] (1+2+3+4+5)", got)
	}
}

func TestQDoSkipsWhenLimitEqualsStart(t *testing.T) {
	vm := newTestVM()
	runLine(t, vm, ": maybe ( n -- ) 0 ?do 1 loop ;")
	o := runLine(t, vm, "0 maybe")
	if d := o.Task().SP.Depth(); d != 0 {
		t.Fatalf("?do with limit==start left depth %d, want 0", d)
	}
}

func TestPlusLoopSteppingByTwo(t *testing.T) {
	vm := newTestVM()
	runLine(t, vm, ": sumeven ( -- sum ) 0 6 0 do i + 2 +loop ;")
	o := runLine(t, vm, "sumeven")
	got := o.Task().SP.All()
	if len(got) != 1 || got[0] != 6 {
		t.Fatalf("sumeven stack = %v, want [6] (0+2+4)", got)
	}
}

func TestVariableStoreFetch(t *testing.T) {
	vm := newTestVM()
	runLine(t, vm, "variable foo")
	runLine(t, vm, "42 foo !")
	o := runLine(t, vm, "foo @")
	got := o.Task().SP.All()
	if len(got) != 1 || got[0] != 42 {
		t.Fatalf("foo @ stack = %v, want [42]", got)
	}
}

func TestConstant(t *testing.T) {
	vm := newTestVM()
	runLine(t, vm, "99 constant ninetynine")
	o := runLine(t, vm, "ninetynine")
	got := o.Task().SP.All()
	if len(got) != 1 || got[0] != 99 {
		t.Fatalf("ninetynine stack = %v, want [99]", got)
	}
}

func TestCreateDoes(t *testing.T) {
	// create's single inline cell starts zeroed; does>'s action fetches
	// it and adds 10, so executing the word with an empty storage field
	// leaves 10 on the stack.
	vm := newTestVM()
	runLine(t, vm, "create tenner does> @ 10 + ;")
	o := runLine(t, vm, "tenner")
	got := o.Task().SP.All()
	if len(got) != 1 || got[0] != 10 {
		t.Fatalf("tenner stack = %v, want [10]", got)
	}
}

func TestToBodyViaLookup(t *testing.T) {
	vm := newTestVM()
	runLine(t, vm, "variable foo")
	runLine(t, vm, "99 foo !")
	o := runLine(t, vm, `s" foo" lookup >body @`)
	got := o.Task().SP.All()
	if len(got) != 1 || got[0] != 99 {
		t.Fatalf(">body @ on foo's token = %v, want [99]", got)
	}
}

func TestToBodyOnConstant(t *testing.T) {
	vm := newTestVM()
	runLine(t, vm, "7 constant seven")
	o := runLine(t, vm, `s" seven" lookup >body @`)
	got := o.Task().SP.All()
	if len(got) != 1 || got[0] != 7 {
		t.Fatalf(">body @ on seven's token = %v, want [7]", got)
	}
}

func TestStringLiteralPrint(t *testing.T) {
	vm := newTestVM()
	sio := NewStringIO(`." hello" ` + "\n")
	vm.IO = sio
	o := NewOuter(vm)
	o.Quiet = true
	if err := o.Interpret(); err != verr.EOF {
		t.Fatalf("Interpret() = %v, want verr.EOF", err)
	}
	if got := sio.Output(); got != "hello" {
		t.Fatalf("Output() = %q, want %q", got, "hello")
	}
}

func TestUnknownWordReportedAndRecovered(t *testing.T) {
	vm := newTestVM()
	sio := NewStringIO("bogus\n5 5 +\n")
	vm.IO = sio
	o := NewOuter(vm)
	o.Quiet = true
	if err := o.Interpret(); err != verr.EOF {
		t.Fatalf("Interpret() = %v, want verr.EOF", err)
	}
	if !strings.Contains(sio.Output(), "bogus ??") {
		t.Fatalf("Output() = %q, want it to contain %q", sio.Output(), "bogus ??")
	}
	got := o.Task().SP.All()
	if len(got) != 1 || got[0] != 10 {
		t.Fatalf("stack after recovering from unknown word = %v, want [10]", got)
	}
}

func TestForgetRemovesWord(t *testing.T) {
	vm := newTestVM()
	runLine(t, vm, ": temp 1 ;")
	runLine(t, vm, "forget temp")
	if tok := vm.Lookup("temp"); tok != -1 {
		t.Fatalf("Lookup(temp) after forget = %d, want -1", tok)
	}
}

func TestHaltResetsReturnStack(t *testing.T) {
	vm := New([]byte{byte(token.HALT)}, nil, 0x100, NewStringIO(""))
	task := vm.NewTask(0)
	task.RP.Push(123)
	sig := vm.Resume(task)
	if sig != Halted {
		t.Fatalf("Resume() = %v, want Halted", sig)
	}
	if d := task.RP.Depth(); d != 0 {
		t.Fatalf("RP depth after HALT = %d, want 0", d)
	}
}

// The §8 acceptance programs, run verbatim (lowercase, case-sensitive
// lookup) through the outer interpreter end to end.
func TestAcceptanceScenarios(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"add-and-print", "5 3 + .", "8 "},
		{"square-word", ": sq dup * ; 7 sq .", "49 "},
		{"count-up-loop", "10 0 do i . loop cr", "0 1 2 3 4 5 6 7 8 9 \n"},
		{"factorial-recursion", ": fact dup 1 > if dup 1 - recurse * then ; 5 fact .", "120 "},
		{"variable-roundtrip", "variable x 42 x ! x @ .", "42 "},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			vm := newTestVM()
			sio := NewStringIO(c.src + "\n")
			vm.IO = sio
			o := NewOuter(vm)
			o.Quiet = true
			if err := o.Interpret(); err != verr.EOF {
				t.Fatalf("Interpret(%q) = %v, want verr.EOF", c.src, err)
			}
			if got := sio.Output(); got != c.want {
				t.Fatalf("Output(%q) = %q, want %q", c.src, got, c.want)
			}
		})
	}
}
