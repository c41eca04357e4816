package grant

import (
	"errors"

	"github.com/ezrec/uproc/translate"
)

var f = translate.From

var (
	ErrNoSlot = errors.New(f("driver has no grant slot"))
)

// ErrGrantType is returned when a grant is requested with a type other
// than the one it was created with.
type ErrGrantType struct {
	Driver uint32
	Have   string
	Want   string
}

func (err ErrGrantType) Error() string {
	return f("driver %d grant is %v, not %v", err.Driver, err.Have, err.Want)
}
