package process

import (
	"github.com/ezrec/uproc/mpu"
)

// Reason a process stopped executing.
type Reason int

const (
	TRAP_SYSCALL   = Reason(iota) // The process made a system call.
	TRAP_FAULT                    // The process made an invalid access.
	TRAP_TIMESLICE                // The timeslice expired.
	TRAP_INTERRUPT                // A hardware interrupt needs servicing.
)

var _reason_names = [...]string{
	TRAP_SYSCALL:   "syscall",
	TRAP_FAULT:     "fault",
	TRAP_TIMESLICE: "timeslice",
	TRAP_INTERRUPT: "interrupt",
}

func (reason Reason) String() string {
	if reason < 0 || int(reason) >= len(_reason_names) {
		return "unknown"
	}
	return _reason_names[reason]
}

// Trap describes the return from a context switch. For a system call the
// arguments are in the process context registers.
type Trap struct {
	Reason Reason
	Number uint8 // System call class number.
	Err    error // Fault cause.
}

// Switcher runs a process until it traps back into the kernel.
//
// SwitchTo is given a process whose Context is ready to resume and whose
// protection configuration has been programmed. It returns with the
// process's Context updated to its state at the trap.
type Switcher interface {
	SwitchTo(proc *Process) Trap
}

// Interrupts masks interrupts for short critical sections.
type Interrupts interface {
	// Atomic runs fn with interrupts masked.
	Atomic(fn func())
}

// NoInterrupts is for hosts without interrupts.
type NoInterrupts struct{}

func (NoInterrupts) Atomic(fn func()) {
	fn()
}

// Program makes the process's protection configuration active in hw.
// Reprogramming happens with interrupts masked.
func (proc *Process) Program(hw mpu.Hardware, irq Interrupts) {
	cfg := proc.Memory.Config()
	irq.Atomic(func() {
		hw.Configure(cfg)
	})
}
