package syscall

import (
	"errors"

	"github.com/ezrec/uproc/translate"
)

var f = translate.From

var (
	ErrNoDriver     = errors.New(f("no such driver"))
	ErrDriverExists = errors.New(f("driver number already registered"))
	ErrSealed       = errors.New(f("driver registry sealed"))
)

// ErrClass is returned for an unknown system call class number.
type ErrClass uint8

func (err ErrClass) Error() string {
	return f("system call class %d unknown", uint8(err))
}
