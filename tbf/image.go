package tbf

import (
	"iter"
)

// Image is an application image located in flash.
type Image struct {
	Address uint32 // Flash address of the image start.
	Header  Header
	Data    []byte // The whole image, header included.
}

// Size is the flash taken by the image.
func (img *Image) Size() uint32 {
	return img.Header.TotalSize
}

// Name is the package name, or a name made from the image address.
func (img *Image) Name() string {
	if img.Header.PackageName != "" {
		return img.Header.PackageName
	}
	return f("app@0x%08x", img.Address)
}

// Walk yields the images found back to back in flash, which starts at
// address. An image with a bad header is yielded as an *ErrImage and
// skipped. Walking ends at the first word that does not start an image.
func Walk(address uint32, flash []byte) iter.Seq2[*Image, error] {
	return func(yield func(img *Image, err error) bool) {
		offset := 0
		for offset < len(flash) {
			data := flash[offset:]
			_, _, totalSize, err := ParseLengths(data)
			if err == ErrEndOfImages {
				return
			}
			if err == nil && uint64(totalSize) > uint64(len(data)) {
				err = ErrNotEnoughData
			}
			if err != nil {
				if !yield(nil, &ErrImage{Address: address + uint32(offset), Err: err}) {
					return
				}
				if totalSize == 0 || uint64(totalSize) > uint64(len(data)) {
					return
				}
				offset += int(totalSize)
				continue
			}

			img := &Image{Address: address + uint32(offset), Data: data[:totalSize]}
			img.Header, err = Parse(img.Data)
			if err != nil {
				if !yield(nil, &ErrImage{Address: img.Address, Err: err}) {
					return
				}
			} else if !yield(img, nil) {
				return
			}

			offset += int(totalSize)
		}
	}
}
