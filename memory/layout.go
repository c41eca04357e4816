package memory

import (
	"errors"
	"fmt"

	"github.com/ezrec/uproc/internal"
	"github.com/ezrec/uproc/mpu"
)

// Layout tracks the breaks of one process block and keeps the app-memory
// region of its protection configuration in step with them.
type Layout struct {
	fitter *mpu.Fitter
	config *mpu.Config
	block  mpu.Block
	perm   mpu.Permission

	appBreak        uint32
	kernelBreak     uint32
	initialAppBreak uint32
	allowHighWater  uint32
}

// NewLayout creates the layout of block with the app break at appBreak and
// the kernel break at the end of the block. The app-memory region is
// installed into cfg at mpu.APP_REGION.
func NewLayout(ft *mpu.Fitter, block mpu.Block, appBreak uint32, perm mpu.Permission, cfg *mpu.Config) (layout *Layout, err error) {
	if block.Size == 0 || block.End() > 1<<32-1 {
		err = ErrOutOfBounds
		return
	}

	ramEnd := uint32(block.End())
	if appBreak < block.Start || appBreak > ramEnd {
		err = ErrOutOfBounds
		return
	}

	region, err := ft.UpdateGrowable(appBreak, ramEnd, perm, block)
	if err != nil {
		err = errors.Join(ErrOutOfMemory, err)
		return
	}

	cfg.Set(mpu.APP_REGION, region)

	layout = &Layout{
		fitter:          ft,
		config:          cfg,
		block:           block,
		perm:            perm,
		appBreak:        appBreak,
		kernelBreak:     ramEnd,
		initialAppBreak: appBreak,
		allowHighWater:  block.Start,
	}

	return
}

// RAMStart is the first address of the process block.
func (layout *Layout) RAMStart() uint32 {
	return layout.block.Start
}

// RAMEnd is the first address past the process block.
func (layout *Layout) RAMEnd() uint32 {
	return uint32(layout.block.End())
}

// AppBreak is the end of process-owned memory.
func (layout *Layout) AppBreak() uint32 {
	return layout.appBreak
}

// KernelBreak is the start of kernel-owned memory.
func (layout *Layout) KernelBreak() uint32 {
	return layout.kernelBreak
}

// AllowHighWater is the end of the highest buffer ever allowed to a driver.
func (layout *Layout) AllowHighWater() uint32 {
	return layout.allowHighWater
}

// Block returns the RAM block of the process.
func (layout *Layout) Block() mpu.Block {
	return layout.block
}

// Region returns the current app-memory region.
func (layout *Layout) Region() mpu.Region {
	return layout.config.Region(mpu.APP_REGION)
}

// Config returns the protection configuration the layout maintains.
func (layout *Layout) Config() *mpu.Config {
	return layout.config
}

// GrowAppMemory moves the app break by delta bytes and returns the
// previous break.
func (layout *Layout) GrowAppMemory(delta int32) (oldBreak uint32, err error) {
	newBreak := int64(layout.appBreak) + int64(delta)
	switch {
	case newBreak < 0:
		err = ErrOutOfBounds
		oldBreak = layout.appBreak
		return
	case newBreak > int64(layout.kernelBreak):
		err = ErrOutOfMemory
		oldBreak = layout.appBreak
		return
	}

	return layout.SetAppBreak(uint32(newBreak))
}

// SetAppBreak moves the app break to newBreak and returns the previous break.
//
// A break above the kernel break is ErrOutOfMemory. A break below the
// initial break, or below memory already allowed to a driver, is
// ErrOutOfBounds. On error nothing changes.
func (layout *Layout) SetAppBreak(newBreak uint32) (oldBreak uint32, err error) {
	oldBreak = layout.appBreak

	switch {
	case newBreak > layout.kernelBreak:
		err = ErrOutOfMemory
		return
	case newBreak < layout.initialAppBreak, newBreak < layout.allowHighWater:
		err = ErrOutOfBounds
		return
	}

	region, err := layout.fitter.UpdateGrowable(newBreak, layout.kernelBreak, layout.perm, layout.block)
	if err != nil {
		err = errors.Join(ErrOutOfMemory, err)
		return
	}

	layout.appBreak = newBreak
	layout.config.Set(mpu.APP_REGION, region)
	layout.check()

	return
}

// AllocateKernelMemory takes size bytes from the top of the free space,
// aligned to align, and returns their address. Kernel memory is never
// returned.
func (layout *Layout) AllocateKernelMemory(size uint32, align uint32) (addr uint32, err error) {
	if align == 0 {
		align = 1
	}
	if !internal.IsPowerOfTwo(uint64(align)) {
		err = ErrAlignment
		return
	}

	if size > layout.kernelBreak-layout.appBreak {
		err = ErrOutOfMemory
		return
	}

	newBreak := uint32(internal.AlignDown(uint64(layout.kernelBreak-size), uint64(align)))
	if newBreak < layout.appBreak {
		err = ErrOutOfMemory
		return
	}

	region, err := layout.fitter.UpdateGrowable(layout.appBreak, newBreak, layout.perm, layout.block)
	if err != nil {
		err = errors.Join(ErrOutOfMemory, err)
		return
	}

	layout.kernelBreak = newBreak
	layout.config.Set(mpu.APP_REGION, region)
	layout.check()

	addr = newBreak
	return
}

// InAppMemory reports whether [addr, addr+length) lies in process-owned
// memory, below the app break.
func (layout *Layout) InAppMemory(addr uint32, length uint32) bool {
	return addr >= layout.block.Start && uint64(addr)+uint64(length) <= uint64(layout.appBreak)
}

// RaiseAllowHighWater records that memory up to end was allowed to a driver.
// The app break may not move below it afterwards.
func (layout *Layout) RaiseAllowHighWater(end uint32) {
	if end > layout.allowHighWater {
		layout.allowHighWater = end
	}
}

// check panics if the break ordering is broken. That can only follow from a
// kernel bug.
func (layout *Layout) check() {
	ramStart := layout.block.Start
	ramEnd := uint32(layout.block.End())
	if ramStart <= layout.appBreak && layout.appBreak <= layout.kernelBreak && layout.kernelBreak <= ramEnd {
		return
	}
	panic(fmt.Sprintf("memory: break order violated: 0x%08x <= 0x%08x <= 0x%08x <= 0x%08x",
		ramStart, layout.appBreak, layout.kernelBreak, ramEnd))
}

func (layout *Layout) String() string {
	return fmt.Sprintf("ram [0x%08x, 0x%08x) app 0x%08x kernel 0x%08x",
		layout.RAMStart(), layout.RAMEnd(), layout.appBreak, layout.kernelBreak)
}
