package upcall

import (
	"iter"
)

// QueueSize is the kernel memory taken by a queue of capacity upcalls.
func QueueSize(capacity int) uint32 {
	return uint32(capacity) * SIZE
}

// Queue is a bounded ring of pending upcalls. When full, new upcalls are
// dropped and counted.
type Queue struct {
	Capacity int

	ReadIndex int
	Size      int
	Dropped   int // Upcalls lost to a full queue.
	Data      []Upcall
}

// NewQueue creates an empty queue holding up to capacity upcalls.
func NewQueue(capacity int) (queue *Queue) {
	queue = &Queue{Capacity: capacity}
	queue.Reset()
	return
}

// Reset empties the queue and its drop counter.
func (queue *Queue) Reset() {
	queue.ReadIndex = 0
	queue.Size = 0
	queue.Dropped = 0
	queue.Data = make([]Upcall, queue.Capacity)
}

// Len is the number of pending upcalls.
func (queue *Queue) Len() int {
	return queue.Size
}

// Empty reports whether nothing is pending.
func (queue *Queue) Empty() bool {
	return queue.Size == 0
}

// Full reports whether the next Enqueue would drop.
func (queue *Queue) Full() bool {
	return queue.Size >= queue.Capacity
}

// Enqueue appends up. Returns false, dropping up, if the queue is full.
func (queue *Queue) Enqueue(up Upcall) (ok bool) {
	if queue.Full() {
		queue.Dropped++
		return
	}

	queue.Data[(queue.ReadIndex+queue.Size)%queue.Capacity] = up
	queue.Size++

	ok = true
	return
}

// Dequeue removes the oldest upcall.
func (queue *Queue) Dequeue() (up Upcall, ok bool) {
	if queue.Empty() {
		return
	}

	up = queue.Data[queue.ReadIndex]
	queue.Data[queue.ReadIndex] = Upcall{}
	queue.ReadIndex++
	if queue.ReadIndex == queue.Capacity {
		queue.ReadIndex = 0
	}
	queue.Size--

	ok = true
	return
}

// All yields the pending upcalls, oldest first, without removing them.
func (queue *Queue) All() iter.Seq[Upcall] {
	return func(yield func(up Upcall) bool) {
		for n := range queue.Size {
			if !yield(queue.Data[(queue.ReadIndex+n)%queue.Capacity]) {
				return
			}
		}
	}
}

// Retain keeps only the upcalls for which keep returns true, preserving
// their order, and returns the number removed.
func (queue *Queue) Retain(keep func(up Upcall) bool) (removed int) {
	kept := make([]Upcall, 0, queue.Size)
	for up := range queue.All() {
		if keep(up) {
			kept = append(kept, up)
		} else {
			removed++
		}
	}

	clear(queue.Data)
	copy(queue.Data, kept)
	queue.ReadIndex = 0
	queue.Size = len(kept)

	return
}
