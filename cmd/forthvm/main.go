// Command forthvm is the reference host for the threaded-code virtual
// machine in package forth: an interactive, line-edited REPL when
// stdin is a terminal, a plain pipe reader otherwise, with debug flags
// for tracing, numeric base, CPU-time accounting, and quiet mode, plus
// a .dump word that prints the calling task's stacks.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"forthvm/forth"
	"forthvm/internal/dict"
	"forthvm/internal/mem"
	"forthvm/internal/token"
	"forthvm/internal/verr"

	"github.com/danswartzendruber/liner"
	"github.com/goforj/godump"
	"github.com/tklauser/go-sysconf"
	"golang.org/x/term"
)

const arenaSize = 0x8000

func main() {
	trace := flag.Bool("trace", false, "trace every compiled instruction the interpreter's task executes")
	base := flag.Int("base", 10, "initial numeric conversion base")
	cpu := flag.Bool("cpu", false, "report host process CPU time on exit")
	quiet := flag.Bool("quiet", false, "suppress the trailing .s courtesy after each line")
	flag.Parse()

	interactive := term.IsTerminal(int(os.Stdin.Fd()))

	image, static, exts := hostWords()
	stream := newHostIO(interactive)
	vm := forth.New(image, static, arenaSize, stream)
	for _, fn := range exts {
		vm.RegisterExtension(fn)
	}
	env := &hostEnv{vm: vm, out: os.Stdout}
	vm.SetEnv(env)

	outer := forth.NewOuter(vm)
	outer.Task().Base = *base
	outer.Task().Trace = *trace
	outer.Quiet = *quiet || !interactive

	start := time.Now()
	err := outer.Interpret()
	stream.Flush()

	if *cpu {
		reportCPU(os.Stderr, time.Since(start))
	}

	if closer, ok := stream.(interface{ Close() }); ok {
		closer.Close()
	}

	if err != nil && err != verr.Bye && err != verr.EOF {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// hostEnv is the opaque value every FUNC extension receives, giving it
// back the VM it runs against (for Pins and I/O) without a global.
type hostEnv struct {
	vm  *forth.VM
	out io.Writer
}

// hostWords builds the tiny static-application image binding host
// extension words (the Arduino-flavored pin primitives, plus a
// debug .dump) to FUNC-dispatched Go functions, in the same
// header-opcode-plus-payload shape every other defining word in this
// machine uses: each word's body is exactly [FUNC][slot][EXIT].
func hostWords() ([]byte, []dict.StaticWord, []forth.HostExtension) {
	names := []string{
		"pinmode", "digitalread", "digitalwrite", "digitaltoggle",
		"analogread", "analogwrite", ".dump",
	}
	fns := []forth.HostExtension{
		extPinMode, extDigitalRead, extDigitalWrite, extDigitalToggle,
		extAnalogRead, extAnalogWrite, extDump,
	}

	var image []byte
	static := make([]dict.StaticWord, len(names))
	for i, name := range names {
		addr := mem.Addr(len(image))
		image = append(image, byte(token.FUNC), byte(i), byte(token.EXIT))
		static[i] = dict.StaticWord{Name: name, Addr: addr}
	}
	return image, static, fns
}

func extPinMode(t *forth.Task, env any) {
	vm := env.(*hostEnv).vm
	mode, err := t.SP.Pop()
	if err != nil {
		return
	}
	pin, err := t.SP.Pop()
	if err != nil {
		return
	}
	vm.Pins.PinMode(pin, mode)
}

func extDigitalRead(t *forth.Task, env any) {
	vm := env.(*hostEnv).vm
	pin, err := t.SP.Pop()
	if err != nil {
		return
	}
	t.SP.Push(vm.Pins.DigitalRead(pin))
}

func extDigitalWrite(t *forth.Task, env any) {
	vm := env.(*hostEnv).vm
	value, err := t.SP.Pop()
	if err != nil {
		return
	}
	pin, err := t.SP.Pop()
	if err != nil {
		return
	}
	vm.Pins.DigitalWrite(pin, value)
}

func extDigitalToggle(t *forth.Task, env any) {
	vm := env.(*hostEnv).vm
	pin, err := t.SP.Pop()
	if err != nil {
		return
	}
	vm.Pins.DigitalToggle(pin)
}

func extAnalogRead(t *forth.Task, env any) {
	vm := env.(*hostEnv).vm
	pin, err := t.SP.Pop()
	if err != nil {
		return
	}
	t.SP.Push(vm.Pins.AnalogRead(pin))
}

func extAnalogWrite(t *forth.Task, env any) {
	vm := env.(*hostEnv).vm
	value, err := t.SP.Pop()
	if err != nil {
		return
	}
	pin, err := t.SP.Pop()
	if err != nil {
		return
	}
	vm.Pins.AnalogWrite(pin, value)
}

// extDump pretty-prints the calling task's stacks with godump, the
// same role godump.Dump plays for parser nodes in the basic-plus
// interpreter this host's REPL plumbing is grounded on.
func extDump(t *forth.Task, env any) {
	godump.Dump(struct {
		Task  int
		Base  int
		Stack []int16
		RStack []int16
	}{t.ID, t.Base, t.SP.All(), t.RP.All()})
}

func reportCPU(w io.Writer, wall time.Duration) {
	clktck, err := sysconf.Sysconf(sysconf.SC_CLK_TCK)
	if err != nil || clktck == 0 {
		fmt.Fprintf(w, "wall: %s\n", wall)
		return
	}
	contents, err := os.ReadFile("/proc/self/stat")
	if err != nil {
		fmt.Fprintf(w, "wall: %s\n", wall)
		return
	}
	fields := splitFields(string(contents))
	if len(fields) < 15 {
		fmt.Fprintf(w, "wall: %s\n", wall)
		return
	}
	utime, _ := strconv.ParseInt(fields[13], 10, 64)
	stime, _ := strconv.ParseInt(fields[14], 10, 64)
	fmt.Fprintf(w, "wall: %s  cpu: %.3fs\n", wall, float64(utime+stime)/float64(clktck))
}

func splitFields(s string) []string {
	var out []string
	start := -1
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' || s[i] == '\n' || s[i] == '\t' {
			if start >= 0 {
				out = append(out, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, s[start:])
	}
	return out
}

func newHostIO(interactive bool) forth.HostIO {
	if interactive {
		l := liner.NewLiner()
		l.SetMultiLineMode(false)
		return &linerIO{l: l, out: os.Stdout}
	}
	return forth.NewBufferedIO(os.Stdin, os.Stdout)
}

// linerIO adapts liner's line-at-a-time Prompt into forth.HostIO's
// byte stream, the same bridging GaryLuck-basic-plus-1's readLine does
// for its own interpreter loop, reused here one level lower.
type linerIO struct {
	l   *liner.State
	out io.Writer
	buf []byte
	pos int
}

func (x *linerIO) Available() bool { return x.pos < len(x.buf) }

func (x *linerIO) ReadByte() (byte, error) {
	if x.pos >= len(x.buf) {
		line, err := x.l.Prompt("")
		if err != nil {
			return 0, err
		}
		x.l.AppendHistory(line)
		x.buf = append([]byte(line), '\n')
		x.pos = 0
	}
	b := x.buf[x.pos]
	x.pos++
	return b, nil
}

func (x *linerIO) Print(s string) { fmt.Fprint(x.out, s) }

func (x *linerIO) Println() { fmt.Fprintln(x.out) }

func (x *linerIO) PrintNumber(v int16, base int) {
	fmt.Fprint(x.out, strconv.FormatInt(int64(v), base))
}

func (x *linerIO) Flush() error { return nil }

func (x *linerIO) Close() { x.l.Close() }
