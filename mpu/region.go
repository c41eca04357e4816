package mpu

import (
	"fmt"
)

// Region is a single hardware protection region.
// A zero Size means the region is unused.
type Region struct {
	Base       uint32
	Size       uint32
	Permission Permission
}

// End returns the first address past the region.
func (r Region) End() uint64 {
	return uint64(r.Base) + uint64(r.Size)
}

// Empty reports whether the region is unused.
func (r Region) Empty() bool {
	return r.Size == 0
}

// Contains reports whether [addr, addr+length) lies inside the region.
func (r Region) Contains(addr uint32, length uint32) bool {
	if r.Empty() {
		return false
	}
	return addr >= r.Base && uint64(addr)+uint64(length) <= r.End()
}

// Overlaps reports whether the region shares any byte with [start, start+size).
func (r Region) Overlaps(start uint32, size uint32) bool {
	if r.Empty() || size == 0 {
		return false
	}
	return uint64(start) < r.End() && uint64(start)+uint64(size) > uint64(r.Base)
}

func (r Region) String() string {
	if r.Empty() {
		return "<unused>"
	}
	return fmt.Sprintf("[0x%08x, 0x%08x) %v", r.Base, r.End(), r.Permission)
}

// Block is the span of RAM assigned to one process. The app-memory region
// always starts at the block start.
type Block struct {
	Start uint32
	Size  uint32
}

// End returns the first address past the block.
func (b Block) End() uint64 {
	return uint64(b.Start) + uint64(b.Size)
}
