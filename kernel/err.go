package kernel

import (
	"errors"

	"github.com/ezrec/uproc/translate"
)

var f = translate.From

var (
	ErrNoRAM    = errors.New(f("no RAM left for process"))
	ErrNoImages = errors.New(f("no runnable images in flash"))
)
