package tbf

import (
	"errors"

	"github.com/ezrec/uproc/translate"
)

var f = translate.From

var (
	ErrEndOfImages   = errors.New(f("no further images"))
	ErrNotEnoughData = errors.New(f("image header truncated"))
	ErrBadName       = errors.New(f("package name not utf-8"))
)

// ErrVersion is returned for an unsupported header version.
type ErrVersion uint16

func (err ErrVersion) Error() string {
	return f("header version %d unsupported", uint16(err))
}

// ErrChecksum is returned when the stored and computed checksums differ.
type ErrChecksum struct {
	Stored   uint32
	Computed uint32
}

func (err ErrChecksum) Error() string {
	return f("header checksum 0x%08x, computed 0x%08x", err.Stored, err.Computed)
}

// ErrBadTLV is returned for a header entry of the wrong length.
type ErrBadTLV uint16

func (err ErrBadTLV) Error() string {
	return f("header entry type %d malformed", uint16(err))
}

// ErrImage locates an error in a flash image.
type ErrImage struct {
	Address uint32
	Err     error
}

func (err *ErrImage) Error() string {
	return f("image at 0x%08x: %v", err.Address, err.Err)
}

func (err *ErrImage) Unwrap() error {
	return err.Err
}
