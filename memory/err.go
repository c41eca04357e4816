package memory

import (
	"errors"

	"github.com/ezrec/uproc/translate"
)

var f = translate.From

var (
	ErrOutOfMemory = errors.New(f("out of memory"))
	ErrOutOfBounds = errors.New(f("address out of bounds"))
	ErrBusy        = errors.New(f("slot busy"))
	ErrAlignment   = errors.New(f("alignment not a power of two"))
)

// ErrAccess reports a RAM access outside the backing store.
type ErrAccess struct {
	Addr   uint32
	Length uint32
}

func (err ErrAccess) Error() string {
	return f("access [0x%08x, +%d) outside ram", err.Addr, err.Length)
}

func (err ErrAccess) Unwrap() error {
	return ErrOutOfBounds
}
