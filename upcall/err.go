package upcall

import (
	"github.com/ezrec/uproc/translate"
)

var f = translate.From

// ErrStackOverflow is returned when a resume frame would not fit on the
// process stack.
type ErrStackOverflow struct {
	SP       uint32 // Stack pointer at the suspend point.
	RAMStart uint32
	AppBreak uint32
}

func (err ErrStackOverflow) Error() string {
	return f("stack pointer 0x%08x leaves no frame in [0x%08x, 0x%08x)", err.SP, err.RAMStart, err.AppBreak)
}
