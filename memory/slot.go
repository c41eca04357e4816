package memory

// Slot holds at most one value with a single owner. A value is moved in
// with Put and moved out with Take; it is never shared.
type Slot[T any] struct {
	value    T
	occupied bool
}

// IsOccupied reports whether the slot holds a value.
func (slot *Slot[T]) IsOccupied() bool {
	return slot.occupied
}

// Put moves value into the slot. Returns ErrBusy if the slot is occupied.
func (slot *Slot[T]) Put(value T) (err error) {
	if slot.occupied {
		err = ErrBusy
		return
	}

	slot.value = value
	slot.occupied = true
	return
}

// Take moves the value out of the slot. Taking from an empty slot is a
// programming error and panics.
func (slot *Slot[T]) Take() (value T) {
	if !slot.occupied {
		panic("memory: take from empty slot")
	}

	var zero T
	value = slot.value
	slot.value = zero
	slot.occupied = false
	return
}

// Swap moves value into the slot and returns the previous value, if any.
func (slot *Slot[T]) Swap(value T) (old T, ok bool) {
	if slot.occupied {
		old, ok = slot.Take(), true
	}
	_ = slot.Put(value)
	return
}

// Map calls fn with the held value in place, if any. fn must not retain it.
func (slot *Slot[T]) Map(fn func(value *T)) (ok bool) {
	if !slot.occupied {
		return
	}
	fn(&slot.value)
	ok = true
	return
}
