package main

import (
	"os"
)

// readFlash concatenates image files into one flash image.
func readFlash(paths []string) (flash []byte, err error) {
	for _, path := range paths {
		var data []byte
		data, err = os.ReadFile(path)
		if err != nil {
			return
		}
		flash = append(flash, data...)
	}
	return
}
