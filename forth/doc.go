// Package forth implements a small threaded-code FORTH virtual
// machine with 16-bit cells, two bounded stacks per task, and
// cooperative multitasking.
//
// Every instruction occupies one byte in the instruction stream.
// Bytes 0 through KernelMax-1 dispatch a kernel primitive directly;
// negative bytes are direct threaded calls into the static application
// dictionary, encoded as -(index+1). The KERNEL and CALL prefix
// opcodes each consume one further unsigned byte to extend both
// ranges, matching the "512 distinct names" addressing the original
// hardware target used. internal/token holds the canonical primitive
// table; this package only implements their behavior.
//
// A task is one cooperatively scheduled thread: its own instruction
// pointer and parameter/return stacks, sharing one VM's code image,
// data arena, and three-tier dictionary. Resume runs a task until it
// yields, halts, or traps; nothing here ever blocks a goroutine on I/O
// or a timer — KEY and DELAY instead signal an internal soft-yield
// that re-enters the same instruction on the next Resume, so a host
// can round-robin any number of tasks on one OS thread.
package forth
