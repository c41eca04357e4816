package mpu

import (
	"errors"

	"github.com/ezrec/uproc/translate"
)

var f = translate.From

var (
	ErrHardwareLimit = errors.New(f("mpu hardware limit exceeded"))
	ErrRegionOverlap = errors.New(f("mpu region overlaps an existing region"))
	ErrBreakOrder    = errors.New(f("app break above kernel break"))
	ErrOutsideBlock  = errors.New(f("break outside process block"))
)

// ErrUnknownUnit is returned for an unrecognized MPU model name.
type ErrUnknownUnit string

func (err ErrUnknownUnit) Error() string {
	return f("mpu model %q unknown", string(err))
}
