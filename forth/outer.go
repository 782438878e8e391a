package forth

import (
	"errors"
	"io"
	"strconv"
	"time"

	"forthvm/internal/dict"
	"forthvm/internal/mem"
	"forthvm/internal/token"
	"forthvm/internal/verr"
)

// unknownWord is the "??" miss spec.md's outer interpreter reports
// when a token is neither a dictionary word nor a number in the
// current base — grounded on original_source/FVM.cpp's trynumber/find
// pair, which fall through to the same kind of report.
type unknownWord struct{ word string }

func (e *unknownWord) Error() string { return e.word + " ??" }

// interpretReturn is the sentinel return address callToCompletion
// plants on the return stack before jumping into a threaded word at
// interpret time: no real code lives there, so EXIT landing on it is
// exactly "the call returned to the outer interpreter."
const interpretReturn mem.Addr = 0xffff

// Outer is the text interpreter and colon compiler: it turns the
// character stream read through a VM's HostIO into either immediate
// execution (interpreting state) or compiled bytecode appended to the
// Arena (compiling state), per spec.md §4.5. One Outer owns one Task,
// used both as the parameter-stack scratchpad for interpreted
// arithmetic and as the execution context handed to primitives run
// directly at interpret time.
type Outer struct {
	vm *VM
	t  *Task

	lineBuf   []byte
	linePos   int
	atLineEnd bool

	// Quiet suppresses the trailing stack-dump courtesy after each
	// line (spec.md §4.5). The reference interactive session leaves
	// it unset; a host driving the interpreter over a script or a test
	// fixture sets it so output matches the program's own print
	// statements exactly, with no REPL furniture mixed in.
	Quiet bool

	compiling   bool
	ctrl        []ctrlFrame
	defName     string
	defTok      token.Token
	pendingDoes bool

	// scratch marks a compiling session the outer interpreter opened on
	// its own, not via ":" — a control-flow word seen outside a
	// definition. scratchEntry is where that body starts; there is no
	// dictionary entry for it, since nothing will ever look it up by
	// name, only run it once from endScratch.
	scratch      bool
	scratchEntry mem.Addr
}

// NewOuter builds a text interpreter over vm, running interpreted code
// on a dedicated task (not scheduled by any round-robin — it never
// yields, since KEY/DELAY inside interpret-time code trap rather than
// cooperating with a scheduler that does not know about this task).
func NewOuter(vm *VM) *Outer {
	return &Outer{vm: vm, t: NewTask(-1, 0)}
}

// Task returns the interpreter's scratch task, e.g. so a host can
// inspect the parameter stack after a line of interactive input.
func (o *Outer) Task() *Task { return o.t }

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\r' }

// refill reads one line of input (delimited by '\n', which is
// consumed and discarded) into lineBuf. Returns verr.EOF when the
// stream is exhausted with no bytes read.
func (o *Outer) refill() error {
	var buf []byte
	for {
		b, err := o.vm.IO.ReadByte()
		if err != nil {
			if err == io.EOF {
				if len(buf) == 0 {
					return verr.EOF
				}
				break
			}
			return verr.IOError
		}
		if b == '\n' {
			break
		}
		buf = append(buf, b)
	}
	o.lineBuf = buf
	o.linePos = 0
	return nil
}

// nextWord scans the next whitespace-delimited word, pulling in new
// lines via refill as needed — a colon definition or a string literal
// may span several lines of input without the caller noticing.
func (o *Outer) nextWord() (string, error) {
	for {
		for o.linePos < len(o.lineBuf) && isSpace(o.lineBuf[o.linePos]) {
			o.linePos++
		}
		if o.linePos < len(o.lineBuf) {
			start := o.linePos
			for o.linePos < len(o.lineBuf) && !isSpace(o.lineBuf[o.linePos]) {
				o.linePos++
			}
			word := string(o.lineBuf[start:o.linePos])
			o.atLineEnd = o.linePos >= len(o.lineBuf)
			return word, nil
		}
		if err := o.refill(); err != nil {
			return "", err
		}
	}
}

// scanUntil collects raw text (newlines folded to a single space, as
// ANS Forth's ." and ( comments do) up to and including delim, for
// constructs that read free-form text instead of a blank-delimited
// word: ." ... ", S" ... ", and ( ... ) comments. A single leading
// space — the delimiter between the word itself and its text — is
// dropped if present.
func (o *Outer) scanUntil(delim byte) (string, error) {
	if o.linePos < len(o.lineBuf) && o.lineBuf[o.linePos] == ' ' {
		o.linePos++
	}
	var buf []byte
	for {
		for o.linePos < len(o.lineBuf) {
			b := o.lineBuf[o.linePos]
			o.linePos++
			if b == delim {
				o.atLineEnd = o.linePos >= len(o.lineBuf)
				return string(buf), nil
			}
			buf = append(buf, b)
		}
		buf = append(buf, ' ')
		if err := o.refill(); err != nil {
			return "", err
		}
	}
}

// skipLine discards the rest of the current line, for \ comments.
func (o *Outer) skipLine() { o.linePos = len(o.lineBuf); o.atLineEnd = true }

// abortDefinition unwinds a colon definition (or CREATE ... DOES>)
// that failed to compile partway through, so a dictionary lookup never
// resolves to a half-written body.
func (o *Outer) abortDefinition() {
	if o.defName != "" {
		if target, ok := o.vm.Dict.Forget(o.defName); ok {
			o.vm.Arena.Allot(int(target) - int(CodePMax) - int(o.vm.Arena.Here()))
		}
	}
	o.compiling = false
	o.pendingDoes = false
	o.defName = ""
	o.scratch = false
	o.ctrl = o.ctrl[:0]
}

// Interpret runs the text-interpretation loop until the input stream
// ends or a BYE is executed, returning the error that stopped it
// (verr.EOF or verr.Bye, or verr.IOError if reading input fails).
// Every other error — an unknown word, a
// runtime trap from code run at interpret time, a malformed control
// structure — is reported to HostIO and interpretation resumes on the
// next word, matching an interactive session's tolerance for a typo in
// one line not ending the whole session.
func (o *Outer) Interpret() error {
	for {
		word, err := o.nextWord()
		if err != nil {
			return err
		}
		atLineEnd := o.atLineEnd
		err = o.interpretWord(word)
		if err != nil {
			if errors.Is(err, verr.EOF) || errors.Is(err, verr.Bye) {
				return err
			}
			o.vm.IO.Print(err.Error())
			o.vm.IO.Println()
			o.abortDefinition()
			continue
		}
		if atLineEnd && !o.Quiet && !o.compiling {
			primitives[token.DOTS](o.vm, o.t)
			o.vm.IO.Println()
		}
	}
}

// interpretWord dispatches one scanned token: a compiler-only control
// word, an immediate defining word, a dictionary word (compiled or
// executed depending on state), or a number literal.
func (o *Outer) interpretWord(word string) error {
	switch word {
	case "(":
		_, err := o.scanUntil(')')
		return err
	case "\\":
		o.skipLine()
		return nil
	case ".\"":
		return o.compileOrPrintString(true)
	case "s\"":
		return o.compileOrPrintString(false)
	case ":":
		return o.beginColon()
	case ";":
		return o.endColon()
	case "variable":
		return o.defineVariable()
	case "constant":
		return o.defineConstant()
	case "create":
		return o.defineCreate()
	case "does>":
		return o.beginDoes()
	case "recurse":
		if !o.compiling {
			return verr.IllegalInstruction
		}
		return o.vm.compileCall(o.defTok)
	case "forget":
		return o.doForget()
	case "if":
		return o.controlWord(true, o.compileIf)
	case "else":
		return o.controlWord(false, o.compileElse)
	case "then":
		return o.controlWord(false, o.compileThen)
	case "begin":
		return o.controlWord(true, o.compileBegin)
	case "until":
		return o.controlWord(false, o.compileUntil)
	case "again":
		return o.controlWord(false, o.compileAgain)
	case "while":
		return o.controlWord(false, o.compileWhile)
	case "repeat":
		return o.controlWord(false, o.compileRepeat)
	case "do":
		return o.controlWord(true, func() error { return o.compileDo(false) })
	case "?do":
		return o.controlWord(true, func() error { return o.compileDo(true) })
	case "loop":
		return o.controlWord(false, func() error { return o.compileLoop(false) })
	case "+loop":
		return o.controlWord(false, func() error { return o.compileLoop(true) })
	}
	return o.interpretGeneral(word)
}

// controlWord runs a control-structure word's compile step. Outside a
// ":" definition, an opener (if/begin/do/?do) starts a scratch
// compiling session instead of refusing outright — this is how a
// top-level "10 0 do i . loop" works without a surrounding colon
// definition, matching the acceptance program in spec.md §8. A
// non-opener (else/then/until/again/while/repeat/loop/+loop) still
// requires an already-open control frame, opener or not. Once fn
// closes the control-flow stack back to empty inside a scratch
// session, the session ends and the compiled body runs immediately.
func (o *Outer) controlWord(open bool, fn func() error) error {
	if !o.compiling {
		if !open {
			return verr.IllegalInstruction
		}
		o.beginScratch()
	}
	if err := fn(); err != nil {
		return err
	}
	if o.scratch && len(o.ctrl) == 0 {
		return o.endScratch()
	}
	return nil
}

// beginScratch opens an anonymous compiling session at the current
// arena top, for a control structure typed outside a ":" definition.
func (o *Outer) beginScratch() {
	o.scratchEntry = o.vm.HereAddr()
	o.compiling = true
	o.scratch = true
}

// endScratch closes the scratch session beginScratch opened and runs
// the body just compiled, to completion, on the interpreter's own
// task — the body is never registered in the dictionary, so nothing
// but this call ever reaches it.
func (o *Outer) endScratch() error {
	if _, err := o.vm.emitByte(byte(token.EXIT)); err != nil {
		return err
	}
	entry := o.scratchEntry
	o.compiling = false
	o.scratch = false
	o.scratchEntry = 0
	return o.vm.runToCompletion(o.t, entry)
}

// interpretGeneral handles a plain dictionary word or a number.
func (o *Outer) interpretGeneral(word string) error {
	tok := o.vm.Lookup(word)
	if tok != -1 {
		if o.compiling {
			return o.vm.compileCall(tok)
		}
		return o.vm.callToCompletion(o.t, tok)
	}
	n, err := strconv.ParseInt(word, o.t.Base, 16)
	if err != nil {
		return &unknownWord{word: word}
	}
	v := int16(n)
	if o.compiling {
		return o.vm.compileLiteral(v)
	}
	return o.t.SP.Push(v)
}

// compileOrPrintString implements ." (print) and S" (push addr/len).
// Compiling state compiles the text inline via SLITERAL and, for ."
// only, a trailing TYPE call; interpreting state either prints
// directly or allocates the text in the arena and pushes its address,
// since there is nowhere else for an interpret-time S" to put bytes
// that outlive this call.
func (o *Outer) compileOrPrintString(print bool) error {
	text, err := o.scanUntil('"')
	if err != nil {
		return err
	}
	if o.compiling {
		if _, err := o.vm.emitByte(byte(token.SLITERAL)); err != nil {
			return err
		}
		if len(text) > 255 {
			return verr.IllegalInstruction
		}
		if _, err := o.vm.emitByte(byte(len(text))); err != nil {
			return err
		}
		if _, err := o.vm.emitBytes([]byte(text)); err != nil {
			return err
		}
		if print {
			return o.vm.compileCall(token.Token(token.TYPE))
		}
		return nil
	}
	if print {
		o.vm.IO.Print(text)
		return nil
	}
	addr, err := o.vm.emitBytes([]byte(text))
	if err != nil {
		return err
	}
	if err := o.t.SP.Push(int16(addr)); err != nil {
		return err
	}
	return o.t.SP.Push(int16(len(text)))
}

// beginColon starts a definition: the word's token is registered
// immediately, at its final body address, so a recursive call compiled
// before ";" resolves to itself exactly like RECURSE would, matching
// the reference dictionary's "define first, compile body after" order.
func (o *Outer) beginColon() error {
	if o.compiling {
		return verr.IllegalInstruction
	}
	name, err := o.nextWord()
	if err != nil {
		return err
	}
	addr := o.vm.HereAddr()
	o.defName = name
	o.defTok = o.vm.Dict.DefineDynamic(name, addr)
	o.compiling = true
	return nil
}

func (o *Outer) endColon() error {
	if !o.compiling {
		return verr.IllegalInstruction
	}
	if len(o.ctrl) != 0 {
		return verr.IllegalInstruction
	}
	if _, err := o.vm.emitByte(byte(token.EXIT)); err != nil {
		return err
	}
	o.compiling = false
	o.pendingDoes = false
	o.defName = ""
	return nil
}

// defineVariable allocates one cell of storage and a (var) header
// pointing at it — VARIABLE name ( -- ), execution of name pushes the
// storage address.
func (o *Outer) defineVariable() error {
	if o.compiling {
		return verr.IllegalInstruction
	}
	name, err := o.nextWord()
	if err != nil {
		return err
	}
	storage, err := o.vm.emitCell(0)
	if err != nil {
		return err
	}
	header := o.vm.HereAddr()
	if _, err := o.vm.emitByte(byte(token.VAR)); err != nil {
		return err
	}
	if _, err := o.vm.emitCell(int16(storage)); err != nil {
		return err
	}
	if _, err := o.vm.emitByte(byte(token.EXIT)); err != nil {
		return err
	}
	o.vm.Dict.DefineDynamic(name, header)
	return nil
}

// defineConstant pops a value and compiles a (const) header around it
// — CONSTANT name ( x -- ), execution of name pushes x.
func (o *Outer) defineConstant() error {
	if o.compiling {
		return verr.IllegalInstruction
	}
	name, err := o.nextWord()
	if err != nil {
		return err
	}
	v, err := o.t.SP.Pop()
	if err != nil {
		return err
	}
	header := o.vm.HereAddr()
	if _, err := o.vm.emitByte(byte(token.CONST)); err != nil {
		return err
	}
	if _, err := o.vm.emitCell(v); err != nil {
		return err
	}
	if _, err := o.vm.emitByte(byte(token.EXIT)); err != nil {
		return err
	}
	o.vm.Dict.DefineDynamic(name, header)
	return nil
}

// defineCreate allocates one cell of object storage and a (does>)
// header over it, leaving the definition open: a following DOES>
// compiles the action bytecode the header falls through to instead of
// an EXIT, and ";" closes it exactly like a colon definition. CREATE
// without a following DOES> before the next top-level word is a
// restriction this compiler accepts silently rather than diagnosing —
// spec.md's single-inline-cell header leaves no room for an
// arbitrarily sized parameter field the way CREATE ... , ... ALLOT
// builds one in a full ANS system.
func (o *Outer) defineCreate() error {
	if o.compiling {
		return verr.IllegalInstruction
	}
	name, err := o.nextWord()
	if err != nil {
		return err
	}
	storage, err := o.vm.emitCell(0)
	if err != nil {
		return err
	}
	header := o.vm.HereAddr()
	if _, err := o.vm.emitByte(byte(token.DOES)); err != nil {
		return err
	}
	if _, err := o.vm.emitCell(int16(storage)); err != nil {
		return err
	}
	o.vm.Dict.DefineDynamic(name, header)
	o.defName = name
	o.pendingDoes = true
	return nil
}

func (o *Outer) beginDoes() error {
	if o.compiling || !o.pendingDoes {
		return verr.IllegalInstruction
	}
	o.pendingDoes = false
	o.compiling = true
	return nil
}

func (o *Outer) doForget() error {
	name, err := o.nextWord()
	if err != nil {
		return err
	}
	target, ok := o.vm.Dict.Forget(name)
	if !ok {
		return &unknownWord{word: name}
	}
	return o.vm.Arena.Allot(int(target) - int(CodePMax) - int(o.vm.Arena.Here()))
}

// callToCompletion runs tok to completion on t at interpret time: a
// kernel primitive runs directly, and a threaded (static or dynamic)
// word runs under the same private-sentinel loop runToCompletion uses.
func (vm *VM) callToCompletion(t *Task, tok token.Token) error {
	if int(tok) < dict.KernelMax {
		op := token.Opcode(tok)
		if int(op) >= len(primitives) || primitives[op] == nil {
			return verr.IllegalInstruction
		}
		return primitives[op](vm, t)
	}
	addr, ok := vm.Dict.Resolve(tok)
	if !ok {
		return verr.IllegalInstruction
	}
	return vm.runToCompletion(t, addr)
}

// runToCompletion executes the threaded code at addr to completion on
// t, under a private return-stack sentinel so the callee's own EXIT
// signals completion instead of returning into whatever t.IP happened
// to hold before the call — there is no caller to return to here, only
// the outer interpreter's own read-eval loop. Unlike callToCompletion
// this needs no dictionary entry at addr, which is how the outer
// interpreter runs a scratch body compiled for a top-level control
// structure (endScratch) as well as a looked-up word's xt.
func (vm *VM) runToCompletion(t *Task, addr mem.Addr) error {
	if err := t.RP.Push(int16(uint16(interpretReturn))); err != nil {
		return verr.RStack(err)
	}
	t.IP = addr
	for {
		pc := t.IP
		raw, err := vm.FetchByte(pc)
		if err != nil {
			return err
		}
		instr := int8(raw)
		t.IP++
		if t.Trace {
			now := time.Now()
			vm.traceLine(t, pc, now, instr)
			t.lastDispatch = now
		}
		if instr >= 0 {
			op := token.Opcode(instr)
			if int(op) >= len(primitives) || primitives[op] == nil {
				return verr.IllegalInstruction
			}
			if op == token.HALT || op == token.YIELD {
				return verr.IllegalInstruction
			}
			if err := primitives[op](vm, t); err != nil {
				if err == errSoftYield {
					return verr.IllegalInstruction
				}
				return err
			}
		} else {
			idx := int(-instr) - 1
			ctok := token.Token(dict.KernelMax + idx)
			if err := vm.threadedCall(t, ctok, pc); err != nil {
				return err
			}
		}
		if t.IP == interpretReturn {
			return nil
		}
	}
}
