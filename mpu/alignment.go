package mpu

import (
	"fmt"

	"github.com/ezrec/uproc/internal"
)

const (
	// MAX_REGION_SIZE is the largest region any rule will produce.
	MAX_REGION_SIZE = uint32(1 << 31)
)

// Alignment is the hardware rule deciding which (base, size) pairs a
// region may take.
type Alignment interface {
	// Align returns the required base alignment for a region of size bytes.
	Align(size uint32) uint32
	// Floor returns the largest legal size <= size, or zero.
	Floor(size uint32) uint32
	// Ceil returns the smallest legal size >= size, or zero if none exists.
	Ceil(size uint32) uint32
}

// Legal reports whether (base, size) satisfies rule.
func Legal(rule Alignment, base uint32, size uint32) bool {
	if size == 0 || rule.Ceil(size) != size {
		return false
	}
	return base%rule.Align(size) == 0
}

// PowerOfTwo regions have a power-of-two size and a size-aligned base.
type PowerOfTwo struct {
	Min uint32 // Smallest region, a power of two. Zero means 32.
}

var _ Alignment = PowerOfTwo{}

func (rule PowerOfTwo) min() uint32 {
	if rule.Min == 0 {
		return 32
	}
	return rule.Min
}

// Align is size; a region sits on its own size.
func (rule PowerOfTwo) Align(size uint32) uint32 {
	return size
}

// Floor rounds size down to a power of two, zero below Min.
func (rule PowerOfTwo) Floor(size uint32) uint32 {
	if size < rule.min() {
		return 0
	}
	return uint32(internal.FloorPowerOfTwo(uint64(size)))
}

// Ceil rounds size up to a power of two of at least Min.
func (rule PowerOfTwo) Ceil(size uint32) uint32 {
	if size <= rule.min() {
		return rule.min()
	}
	ceil := internal.CeilPowerOfTwo(uint64(size))
	if ceil > uint64(MAX_REGION_SIZE) {
		return 0
	}
	return uint32(ceil)
}

func (rule PowerOfTwo) String() string {
	return fmt.Sprintf("pow2(min %d)", rule.min())
}

// Granular regions have base and size that are multiples of Granule.
type Granular struct {
	Granule uint32 // Zero means 4.
}

var _ Alignment = Granular{}

func (rule Granular) granule() uint32 {
	if rule.Granule == 0 {
		return 4
	}
	return rule.Granule
}

// Align is the granule, whatever the size.
func (rule Granular) Align(size uint32) uint32 {
	return rule.granule()
}

// Floor rounds size down to a whole granule.
func (rule Granular) Floor(size uint32) uint32 {
	return uint32(internal.AlignDown(uint64(size), uint64(rule.granule())))
}

// Ceil rounds size up to a whole granule, at least one.
func (rule Granular) Ceil(size uint32) uint32 {
	if size == 0 {
		return rule.granule()
	}
	ceil := internal.AlignUp(uint64(size), uint64(rule.granule()))
	if ceil > uint64(MAX_REGION_SIZE) {
		return 0
	}
	return uint32(ceil)
}

func (rule Granular) String() string {
	return fmt.Sprintf("granular(%d)", rule.granule())
}

// Unit describes one MPU model: its alignment rule and region count.
type Unit struct {
	Name    string
	Rule    Alignment
	Regions int
}

// Units known by name.
var Units = map[string]Unit{
	"cortex-m":   {Name: "cortex-m", Rule: PowerOfTwo{Min: 32}, Regions: 8},
	"cortex-m33": {Name: "cortex-m33", Rule: Granular{Granule: 32}, Regions: 8},
	"riscv-pmp":  {Name: "riscv-pmp", Rule: Granular{Granule: 4}, Regions: 16},
}

// LookupUnit returns the MPU model with the given name.
func LookupUnit(name string) (unit Unit, err error) {
	unit, ok := Units[name]
	if !ok {
		err = ErrUnknownUnit(name)
	}
	return
}
