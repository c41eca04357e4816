package upcall

import (
	"fmt"

	"github.com/ezrec/uproc/memory"
)

const (
	// FRAME_WORDS is the number of words in a resume frame:
	// r0, r1, r2, r3, r12, lr, pc, psr.
	FRAME_WORDS = 8
	// FRAME_SIZE is the size of a resume frame in bytes.
	FRAME_SIZE = FRAME_WORDS * 4

	// PSR_THUMB is the execution state bit of the status register.
	PSR_THUMB = uint32(1 << 24)
	// PC_THUMB marks an instruction address as Thumb code.
	PC_THUMB = uint32(1)
)

// Bounds gives the process-owned span of a process's RAM.
// *memory.Layout is one.
type Bounds interface {
	RAMStart() uint32
	AppBreak() uint32
}

var _ Bounds = (*memory.Layout)(nil)

// Context is the saved user state of a suspended process.
type Context struct {
	R   [4]uint32 // Argument and return registers r0..r3.
	R12 uint32
	SP  uint32 // Stack pointer.
	LR  uint32 // Link register.
	PC  uint32 // Address execution resumes at.
	PSR uint32 // Status register.
}

// NewContext returns the context of a process that has never run, with its
// stack pointer at sp.
func NewContext(sp uint32) Context {
	return Context{SP: sp, PSR: PSR_THUMB}
}

func (ctx Context) String() string {
	return fmt.Sprintf("r0=0x%08x r1=0x%08x r2=0x%08x r3=0x%08x sp=0x%08x lr=0x%08x pc=0x%08x psr=0x%08x",
		ctx.R[0], ctx.R[1], ctx.R[2], ctx.R[3], ctx.SP, ctx.LR, ctx.PC, ctx.PSR)
}

// Frame returns the resume frame that makes up appear to the process as a
// call into up.Entry made from ctx.PC.
func (ctx Context) Frame(up Upcall) (frame [FRAME_WORDS]uint32) {
	frame[0] = up.Args[0]
	frame[1] = up.Args[1]
	frame[2] = up.Args[2]
	frame[3] = up.Args[3]
	frame[4] = 0
	frame[5] = ctx.PC | PC_THUMB
	frame[6] = up.Entry | PC_THUMB
	frame[7] = ctx.PSR
	return
}

// Deliver pushes a resume frame for up onto the process stack and points ctx
// at it. The frame is built and checked first; process memory is written
// once, only if the whole frame lies in [RAMStart, AppBreak).
//
// On error neither ctx nor process memory changes, and the process must be
// faulted.
func Deliver(ctx *Context, up Upcall, bounds Bounds, ram *memory.RAM) (err error) {
	frame := ctx.Frame(up)

	newSP := int64(ctx.SP) - FRAME_SIZE
	if newSP < int64(bounds.RAMStart()) || ctx.SP > bounds.AppBreak() {
		err = ErrStackOverflow{SP: ctx.SP, RAMStart: bounds.RAMStart(), AppBreak: bounds.AppBreak()}
		return
	}

	err = ram.WriteWords(uint32(newSP), frame[:])
	if err != nil {
		return
	}

	*ctx = Context{
		R:   [4]uint32(frame[0:4]),
		R12: frame[4],
		SP:  uint32(newSP),
		LR:  frame[5],
		PC:  frame[6] &^ PC_THUMB,
		PSR: frame[7],
	}

	return
}
