package kernel

import (
	"iter"

	"github.com/google/btree"

	"github.com/ezrec/uproc/mpu"
)

// blocks tracks the RAM blocks given to processes, ordered by address.
// Alignment can leave holes between blocks; later processes may fill them.
type blocks struct {
	start uint64
	end   uint64
	used  *btree.BTreeG[mpu.Block]
}

func newBlocks(start uint32, size uint32) *blocks {
	return &blocks{
		start: uint64(start),
		end:   uint64(start) + uint64(size),
		used: btree.NewG(2, func(a, b mpu.Block) bool {
			return a.Start < b.Start
		}),
	}
}

// Free yields the unused ranges as (start, size), lowest first.
func (b *blocks) Free() iter.Seq2[uint32, uint32] {
	return func(yield func(start uint32, size uint32) bool) {
		next := b.start
		stopped := false
		b.used.Ascend(func(block mpu.Block) bool {
			if uint64(block.Start) > next {
				if !yield(uint32(next), uint32(uint64(block.Start)-next)) {
					stopped = true
					return false
				}
			}
			next = max(next, block.End())
			return true
		})
		if !stopped && next < b.end {
			yield(uint32(next), uint32(b.end-next))
		}
	}
}

// Reserve marks block used. It must lie in a free range.
func (b *blocks) Reserve(block mpu.Block) {
	b.used.ReplaceOrInsert(block)
}

// Len is the number of blocks in use.
func (b *blocks) Len() int {
	return b.used.Len()
}
