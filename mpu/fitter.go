package mpu

import (
	"github.com/ezrec/uproc/internal"
)

// rangeEnd is the end of [start, start+size), clipped to the 32-bit
// address space.
func rangeEnd(start uint32, size uint32) uint64 {
	end := uint64(start) + uint64(size)
	if end > 1<<32 {
		end = 1 << 32
	}
	return end
}

// Fitter picks hardware-representable regions under an alignment rule.
type Fitter struct {
	Rule Alignment
}

// NewFitter creates a fitter for rule.
func NewFitter(rule Alignment) *Fitter {
	return &Fitter{Rule: rule}
}

// Fit returns the largest legal region inside
// [unallocatedStart, unallocatedStart+unallocatedSize) whose size is at least
// minimumSize. ok is false if no such region exists.
func (ft *Fitter) Fit(unallocatedStart uint32, unallocatedSize uint32, minimumSize uint32, perm Permission) (region Region, ok bool) {
	if minimumSize == 0 {
		minimumSize = 1
	}

	end := rangeEnd(unallocatedStart, unallocatedSize)
	limit := uint32(end - uint64(unallocatedStart))

	for size := ft.Rule.Floor(limit); size != 0 && size >= minimumSize; size = ft.Rule.Floor(size - 1) {
		base := internal.AlignUp(uint64(unallocatedStart), uint64(ft.Rule.Align(size)))
		if base+uint64(size) <= end {
			region = Region{Base: uint32(base), Size: size, Permission: perm}
			ok = true
			return
		}
	}

	return
}

// FitGrowable chooses a process block inside the unallocated range and the
// initial app-memory region at its start.
//
// The block holds at least minTotalSize bytes, and at least initialAppSize
// plus initialKernelSize. The returned region covers at least the first
// initialAppSize bytes of the block and none of its top initialKernelSize
// bytes. The block start is aligned so that every region the rule can
// express up to the block size may start there, which lets both breaks move
// without the block being moved.
func (ft *Fitter) FitGrowable(unallocatedStart uint32, unallocatedSize uint32, minTotalSize uint32, initialAppSize uint32, initialKernelSize uint32, perm Permission) (region Region, block Block, ok bool) {
	appSize := ft.Rule.Ceil(initialAppSize)
	if appSize == 0 {
		return
	}

	total := uint64(appSize) + uint64(initialKernelSize)
	if uint64(minTotalSize) > total {
		total = uint64(minTotalSize)
	}
	if total > uint64(MAX_REGION_SIZE) {
		return
	}

	blockSize := ft.Rule.Ceil(uint32(total))
	if blockSize == 0 {
		return
	}

	blockStart := internal.AlignUp(uint64(unallocatedStart), uint64(ft.Rule.Align(blockSize)))
	if blockStart+uint64(blockSize) > rangeEnd(unallocatedStart, unallocatedSize) {
		return
	}

	block = Block{Start: uint32(blockStart), Size: blockSize}

	appBreak := block.Start + initialAppSize
	kernelBreak := uint32(block.End() - uint64(initialKernelSize))

	region, err := ft.UpdateGrowable(appBreak, kernelBreak, perm, block)
	if err != nil {
		block = Block{}
		return
	}

	ok = true
	return
}

// UpdateGrowable re-derives the app-memory region of block for the current
// breaks. The region starts at the block start, reaches at least appBreak and
// stays below kernelBreak. It fails when no legal region fits between the
// two, in which case the break move that led here must be rejected.
func (ft *Fitter) UpdateGrowable(appBreak uint32, kernelBreak uint32, perm Permission, block Block) (region Region, err error) {
	if appBreak < block.Start || uint64(kernelBreak) > block.End() {
		err = ErrOutsideBlock
		return
	}
	if appBreak > kernelBreak {
		err = ErrBreakOrder
		return
	}

	need := appBreak - block.Start
	avail := kernelBreak - block.Start

	for size := ft.Rule.Floor(avail); size != 0 && size >= need; size = ft.Rule.Floor(size - 1) {
		if block.Start%ft.Rule.Align(size) == 0 {
			region = Region{Base: block.Start, Size: size, Permission: perm}
			return
		}
	}

	err = ErrHardwareLimit
	return
}
