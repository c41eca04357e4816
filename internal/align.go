package internal

import (
	"math/bits"
)

// AlignUp rounds value up to the next multiple of align.
// An align of zero returns value unchanged.
func AlignUp(value uint64, align uint64) uint64 {
	if align == 0 {
		return value
	}
	if rem := value % align; rem != 0 {
		value += align - rem
	}
	return value
}

// AlignDown rounds value down to a multiple of align.
func AlignDown(value uint64, align uint64) uint64 {
	if align == 0 {
		return value
	}
	return value - value%align
}

// IsPowerOfTwo reports whether value has exactly one bit set.
func IsPowerOfTwo(value uint64) bool {
	return value != 0 && value&(value-1) == 0
}

// CeilPowerOfTwo returns the smallest power of two >= value.
func CeilPowerOfTwo(value uint64) uint64 {
	if value <= 1 {
		return 1
	}
	return 1 << bits.Len64(value-1)
}

// FloorPowerOfTwo returns the largest power of two <= value, or zero.
func FloorPowerOfTwo(value uint64) uint64 {
	if value == 0 {
		return 0
	}
	return 1 << (bits.Len64(value) - 1)
}
