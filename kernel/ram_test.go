package kernel

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/uproc/mpu"
)

func TestBlocks_Free(t *testing.T) {
	assert := assert.New(t)

	free := func(b *blocks) (ranges [][2]uint32) {
		for start, size := range b.Free() {
			ranges = append(ranges, [2]uint32{start, size})
		}
		return
	}

	b := newBlocks(0x1000, 0x8000)
	assert.Equal([][2]uint32{{0x1000, 0x8000}}, free(b))

	b.Reserve(mpu.Block{Start: 0x4000, Size: 0x2000})
	b.Reserve(mpu.Block{Start: 0x1000, Size: 0x1000})
	assert.Equal(2, b.Len())
	assert.Equal([][2]uint32{{0x2000, 0x2000}, {0x6000, 0x3000}}, free(b))

	b.Reserve(mpu.Block{Start: 0x6000, Size: 0x3000})
	assert.Equal([][2]uint32{{0x2000, 0x2000}}, free(b))

	b.Reserve(mpu.Block{Start: 0x2000, Size: 0x2000})
	assert.Empty(free(b))

	// Stopping early.
	b = newBlocks(0, 0x4000)
	b.Reserve(mpu.Block{Start: 0x1000, Size: 0x1000})
	count := 0
	for range b.Free() {
		count++
		break
	}
	assert.Equal(1, count)
}
