package process

import (
	"errors"

	"github.com/ezrec/uproc/translate"
)

var f = translate.From

var (
	ErrTableFull   = errors.New(f("process table full"))
	ErrStackSpace  = errors.New(f("initial stack too small for a resume frame"))
	ErrMemoryFault = errors.New(f("memory access violation"))
	ErrNoUpcall    = errors.New(f("driver has no such upcall"))
)

// ErrState is returned for a transition not allowed from the current state.
type ErrState struct {
	Op    string
	State State
}

func (err ErrState) Error() string {
	return f("%v not allowed while %v", err.Op, err.State)
}

// ErrFault records why a process faulted.
type ErrFault struct {
	PC  uint32
	Err error
}

func (err *ErrFault) Error() string {
	return f("fault at pc 0x%08x: %v", err.PC, err.Err)
}

func (err *ErrFault) Unwrap() error {
	return err.Err
}

// ErrPanic is the panic value of a process fault under the panic policy.
type ErrPanic struct {
	Name string
	Err  error
}

func (err ErrPanic) Error() string {
	return f("process %v faulted: %v", err.Name, err.Err)
}

func (err ErrPanic) Unwrap() error {
	return err.Err
}
