package process

import (
	"iter"
)

// Table is the fixed set of process slots, created once at boot.
type Table struct {
	procs []*Process
}

// NewTable creates a table with capacity slots.
func NewTable(capacity int) *Table {
	return &Table{
		procs: make([]*Process, 0, capacity),
	}
}

// Add places proc in the next free slot and sets its ID.
func (table *Table) Add(proc *Process) (err error) {
	if len(table.procs) == cap(table.procs) {
		err = ErrTableFull
		return
	}

	proc.ID = len(table.procs)
	table.procs = append(table.procs, proc)
	return
}

// Get returns the process in slot id.
func (table *Table) Get(id int) (proc *Process, ok bool) {
	if id < 0 || id >= len(table.procs) {
		return
	}
	return table.procs[id], true
}

func (table *Table) Len() int {
	return len(table.procs)
}

func (table *Table) Capacity() int {
	return cap(table.procs)
}

// All iterates over the occupied slots.
func (table *Table) All() iter.Seq2[int, *Process] {
	return func(yield func(int, *Process) bool) {
		for id, proc := range table.procs {
			if !yield(id, proc) {
				return
			}
		}
	}
}
