package config

import (
	"errors"

	"github.com/ezrec/uproc/translate"
)

var f = translate.From

var (
	ErrExprType = errors.New(f("expression must be an integer or a string"))
	ErrRAM      = errors.New(f("ram_size must be non-zero and end below 4GiB"))
	ErrRegions  = errors.New(f("regions exceeds the mpu model"))
	ErrLimits   = errors.New(f("max_processes and upcall_queue must be positive"))
)

// ErrExpr is returned when a numeric expression does not evaluate to a
// 32 bit unsigned integer.
type ErrExpr struct {
	Expr string
	Err  error
}

func (err *ErrExpr) Error() string {
	if err.Err == nil {
		return f("expression %q is not a 32 bit unsigned integer", err.Expr)
	}
	return f("expression %q: %v", err.Expr, err.Err)
}

func (err *ErrExpr) Unwrap() error {
	return err.Err
}

// ErrUnknownKey is returned for keys the board file may not contain.
type ErrUnknownKey []string

func (err ErrUnknownKey) Error() string {
	return f("unknown board keys: %v", []string(err))
}

// ErrFaultPolicy is returned for an unrecognized fault policy name.
type ErrFaultPolicy string

func (err ErrFaultPolicy) Error() string {
	return f("fault policy %q unknown", string(err))
}
