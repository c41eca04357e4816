package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/uproc/mpu"
)

func newTestLayout(t *testing.T, appBreak uint32) *Layout {
	t.Helper()

	cfg := mpu.NewConfig(8)
	layout, err := NewLayout(mpu.NewFitter(mpu.PowerOfTwo{Min: 32}), mpu.Block{Start: 0x2000, Size: 0x1000}, appBreak, mpu.PERM_READ_WRITE, cfg)
	if err != nil {
		t.Fatal(err)
	}
	return layout
}

func TestLayout_Scenario(t *testing.T) {
	assert := assert.New(t)

	layout := newTestLayout(t, 0x2200)
	assert.Equal(uint32(0x2000), layout.RAMStart())
	assert.Equal(uint32(0x3000), layout.RAMEnd())
	assert.Equal(uint32(0x3000), layout.KernelBreak())

	old, err := layout.GrowAppMemory(0x100)
	assert.NoError(err)
	assert.Equal(uint32(0x2200), old)
	assert.Equal(uint32(0x2300), layout.AppBreak())

	addr, err := layout.AllocateKernelMemory(64, 8)
	assert.NoError(err)
	assert.GreaterOrEqual(addr, uint32(0x2300))
	assert.Less(addr, uint32(0x3000))
	assert.Zero(addr % 8)
	assert.LessOrEqual(layout.KernelBreak(), uint32(0x3000-64))
	assert.Equal(mpu.Region{Base: 0x2000, Size: 0x800, Permission: mpu.PERM_READ_WRITE}, layout.Region())

	appBreak, kernelBreak := layout.AppBreak(), layout.KernelBreak()
	_, err = layout.GrowAppMemory(0xe00)
	assert.ErrorIs(err, ErrOutOfMemory)
	assert.Equal(appBreak, layout.AppBreak())
	assert.Equal(kernelBreak, layout.KernelBreak())
}

func TestLayout_GrowZero(t *testing.T) {
	assert := assert.New(t)

	layout := newTestLayout(t, 0x2200)
	for range 3 {
		old, err := layout.GrowAppMemory(0)
		assert.NoError(err)
		assert.Equal(uint32(0x2200), old)
		assert.Equal(uint32(0x2200), layout.AppBreak())
	}
}

func TestLayout_SetAppBreak(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		Break uint32
		Err   error
		After uint32
	}){
		{Break: 0x2400, After: 0x2400},
		{Break: 0x2200, After: 0x2200},
		{Break: 0x21fc, Err: ErrOutOfBounds, After: 0x2200},
		{Break: 0x1000, Err: ErrOutOfBounds, After: 0x2200},
		{Break: 0x3000, After: 0x3000},
		{Break: 0x3004, Err: ErrOutOfMemory, After: 0x2200},
	}

	for _, tc := range table {
		layout := newTestLayout(t, 0x2200)
		_, err := layout.SetAppBreak(tc.Break)
		if tc.Err != nil {
			assert.ErrorIs(err, tc.Err, "%+v", tc)
		} else {
			assert.NoError(err, "%+v", tc)
		}
		assert.Equal(tc.After, layout.AppBreak(), "%+v", tc)
	}
}

func TestLayout_HardwareLimitRollsBack(t *testing.T) {
	assert := assert.New(t)

	layout := newTestLayout(t, 0x2300)
	cfg := layout.Config()
	cfg.Dirty = false

	// 0x340 bytes below the kernel break leave no power of two >= 0x300.
	_, err := layout.AllocateKernelMemory(0x1000-0x340, 4)
	assert.ErrorIs(err, ErrOutOfMemory)
	assert.ErrorIs(err, mpu.ErrHardwareLimit)
	assert.Equal(uint32(0x3000), layout.KernelBreak())
	assert.False(cfg.Dirty)

	_, err = layout.AllocateKernelMemory(0x1000-0x400, 4)
	assert.NoError(err)
	assert.True(cfg.Dirty)
	assert.Equal(mpu.Region{Base: 0x2000, Size: 0x400, Permission: mpu.PERM_READ_WRITE}, layout.Region())
}

func TestLayout_AllocateKernelMemory(t *testing.T) {
	assert := assert.New(t)

	layout := newTestLayout(t, 0x2200)

	addr, err := layout.AllocateKernelMemory(3, 1)
	assert.NoError(err)
	assert.Equal(uint32(0x2ffd), addr)

	addr, err = layout.AllocateKernelMemory(8, 8)
	assert.NoError(err)
	assert.Equal(uint32(0x2ff0), addr)

	_, err = layout.AllocateKernelMemory(4, 3)
	assert.ErrorIs(err, ErrAlignment)

	_, err = layout.AllocateKernelMemory(0x2000, 4)
	assert.ErrorIs(err, ErrOutOfMemory)
	assert.Equal(uint32(0x2ff0), layout.KernelBreak())
}

func TestLayout_AllowHighWater(t *testing.T) {
	assert := assert.New(t)

	layout := newTestLayout(t, 0x2200)
	_, err := layout.SetAppBreak(0x2800)
	assert.NoError(err)

	layout.RaiseAllowHighWater(0x2600)
	layout.RaiseAllowHighWater(0x2400)
	assert.Equal(uint32(0x2600), layout.AllowHighWater())

	_, err = layout.SetAppBreak(0x2500)
	assert.ErrorIs(err, ErrOutOfBounds)
	_, err = layout.SetAppBreak(0x2600)
	assert.NoError(err)
}

func TestNewLayout(t *testing.T) {
	assert := assert.New(t)

	ft := mpu.NewFitter(mpu.PowerOfTwo{})
	cfg := mpu.NewConfig(8)

	_, err := NewLayout(ft, mpu.Block{Start: 0x2000, Size: 0x1000}, 0x1000, mpu.PERM_READ_WRITE, cfg)
	assert.ErrorIs(err, ErrOutOfBounds)

	_, err = NewLayout(ft, mpu.Block{Start: 0x2100, Size: 0x1000}, 0x2300, mpu.PERM_READ_WRITE, cfg)
	assert.ErrorIs(err, mpu.ErrHardwareLimit)

	layout, err := NewLayout(ft, mpu.Block{Start: 0x2000, Size: 0x1000}, 0x2000, mpu.PERM_READ_WRITE, cfg)
	assert.NoError(err)
	assert.Equal(layout.Region(), cfg.Region(mpu.APP_REGION))
	assert.Contains(layout.String(), "0x00002000")
}
