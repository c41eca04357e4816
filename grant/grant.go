// Package grant allocates per-process, per-driver state from the kernel
// end of a process's RAM.
//
// Each process has a table with one slot per registered driver. The table
// itself lives in kernel memory, as does every grant. A grant is created on
// first use and stays at the same address for the life of the process.
// There is no way to free one.
package grant

import (
	"fmt"
	"slices"
	"unsafe"

	"github.com/ezrec/uproc/memory"
)

const (
	// POINTER_SIZE is the size of one grant table entry.
	POINTER_SIZE = 4
)

// Allocator hands out kernel memory. *memory.Layout is one.
type Allocator interface {
	AllocateKernelMemory(size uint32, align uint32) (addr uint32, err error)
}

var _ Allocator = (*memory.Layout)(nil)

// TableSize is the kernel memory taken by a table of count slots.
func TableSize(count int) uint32 {
	return uint32(count) * POINTER_SIZE
}

// Table holds the grants of one process.
type Table struct {
	alloc   Allocator
	ram     *memory.RAM
	drivers []uint32

	base  uint32
	addr  []uint32
	value []any
}

// NewTable allocates a grant table with a slot for each driver number.
// If ram is not nil, grant addresses are also stored in the table's memory.
func NewTable(alloc Allocator, ram *memory.RAM, drivers []uint32) (table *Table, err error) {
	drivers = slices.Clone(drivers)
	slices.Sort(drivers)
	drivers = slices.Compact(drivers)

	base, err := alloc.AllocateKernelMemory(TableSize(len(drivers)), POINTER_SIZE)
	if err != nil {
		return
	}

	table = &Table{
		alloc:   alloc,
		ram:     ram,
		drivers: drivers,
		base:    base,
		addr:    make([]uint32, len(drivers)),
		value:   make([]any, len(drivers)),
	}

	if ram != nil {
		// Kernel memory is not cleared on allocation.
		for n := range drivers {
			_ = ram.WriteWord(table.entry(n), 0)
		}
	}

	return
}

func (table *Table) entry(index int) uint32 {
	return table.base + uint32(index)*POINTER_SIZE
}

// Base is the address of the table in kernel memory.
func (table *Table) Base() uint32 {
	return table.base
}

// Len is the number of slots.
func (table *Table) Len() int {
	return len(table.drivers)
}

// Count is the number of grants created.
func (table *Table) Count() (count int) {
	for _, v := range table.value {
		if v != nil {
			count++
		}
	}
	return
}

// Slot returns the slot index of driver.
func (table *Table) Slot(driver uint32) (index int, ok bool) {
	return slices.BinarySearch(table.drivers, driver)
}

// Allocated reports whether driver's grant exists.
func (table *Table) Allocated(driver uint32) bool {
	index, ok := table.Slot(driver)
	return ok && table.value[index] != nil
}

// Address returns the kernel address of driver's grant.
func (table *Table) Address(driver uint32) (addr uint32, ok bool) {
	index, ok := table.Slot(driver)
	if !ok || table.value[index] == nil {
		ok = false
		return
	}

	addr = table.addr[index]
	return
}

// Get returns driver's grant of type T, creating it from defaultValue on
// first use. Later calls return the same pointer and allocate nothing.
func Get[T any](table *Table, driver uint32, defaultValue T) (grant *T, err error) {
	index, ok := table.Slot(driver)
	if !ok {
		err = ErrNoSlot
		return
	}

	if v := table.value[index]; v != nil {
		grant, ok = v.(*T)
		if !ok {
			err = ErrGrantType{Driver: driver, Have: fmt.Sprintf("%T", v), Want: fmt.Sprintf("%T", grant)}
		}
		return
	}

	size := uint32(unsafe.Sizeof(defaultValue))
	align := uint32(unsafe.Alignof(defaultValue))
	addr, err := table.alloc.AllocateKernelMemory(size, align)
	if err != nil {
		return
	}

	grant = new(T)
	*grant = defaultValue

	table.addr[index] = addr
	table.value[index] = grant
	if table.ram != nil {
		_ = table.ram.WriteWord(table.entry(index), addr)
	}

	return
}
