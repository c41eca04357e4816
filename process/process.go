// Package process holds the runtime state of a loaded application and its
// state machine.
//
//	unstarted -> waiting <-> running -> faulted | terminated
//
// A faulted process may be reset to unstarted by the fault policy.
package process

import (
	"errors"

	"github.com/ezrec/uproc/grant"
	"github.com/ezrec/uproc/memory"
	"github.com/ezrec/uproc/mpu"
	"github.com/ezrec/uproc/upcall"
)

// Params describe where a process lives and how it starts.
type Params struct {
	Name string

	FlashStart uint32 // Start of the application image.
	FlashSize  uint32
	InitOffset uint32 // Entry point, relative to FlashStart.

	Block    mpu.Block // RAM block chosen for the process.
	AppBreak uint32    // Initial app break.

	Fitter  *mpu.Fitter
	Regions int         // Regions of the protection unit.
	RAM     *memory.RAM // Backing store of all process RAM.

	Drivers       []uint32 // Driver numbers that get a grant slot.
	QueueCapacity int      // Pending upcall limit.
}

// KernelSize is the kernel memory a process takes at creation, before any
// grant is made.
func KernelSize(drivers int, queueCapacity int) uint32 {
	return grant.TableSize(drivers) + upcall.QueueSize(queueCapacity)
}

// SUBSCRIPTION_SIZE is the kernel memory taken by one upcall slot.
const SUBSCRIPTION_SIZE = 2 * 4

// Subscription is a registered upcall function.
type Subscription struct {
	Entry   uint32
	AppData uint32
}

// upcallSlots are the subscriptions of one driver, mirrored in kernel
// memory at addr.
type upcallSlots struct {
	addr  uint32
	slots []Subscription
}

// Debug counters of a process.
type Debug struct {
	Syscalls             int
	DroppedUpcalls       int
	Restarts             int
	TimesliceExpirations int
	LastSyscall          uint8
}

// Process is one loaded application.
type Process struct {
	ID     int
	Name   string
	State  State
	Params Params

	// Set while waiting if the process was preempted rather than yielded.
	Preempted bool

	Memory   *memory.Layout
	RAM      *memory.RAM
	Grants   *grant.Table
	Upcalls  *upcall.Queue
	Context  upcall.Context
	Fault    error  // Cause of the last fault.
	ExitCode uint32 // Completion code passed to exit.

	StackHint uint32 // Top of stack reported by the process.
	HeapHint  uint32 // Start of heap reported by the process.

	Debug Debug

	config        *mpu.Config
	subscriptions map[uint32]*upcallSlots
}

// New creates an unstarted process. The flash region and the app memory
// region are installed in a new protection configuration, and the grant
// table and upcall queue are allocated from the top of the RAM block.
func New(params Params) (proc *Process, err error) {
	cfg := mpu.NewConfig(params.Regions)

	_, err = cfg.Allocate(params.Fitter, mpu.FLASH_REGION, params.FlashStart, params.FlashSize, params.FlashSize, mpu.PERM_READ_EXECUTE)
	if err != nil {
		return
	}

	proc = &Process{
		Name:   params.Name,
		Params: params,
		RAM:    params.RAM,
		config: cfg,
	}

	err = proc.load()
	if err != nil {
		proc = nil
		return
	}

	return
}

// load lays out the RAM block afresh.
func (proc *Process) load() (err error) {
	params := &proc.Params

	if params.AppBreak-params.Block.Start < upcall.FRAME_SIZE {
		err = ErrStackSpace
		return
	}

	layout, err := memory.NewLayout(params.Fitter, params.Block, params.AppBreak, mpu.PERM_READ_WRITE, proc.config)
	if err != nil {
		return
	}

	if params.RAM != nil {
		data, _ := params.RAM.Slice(layout.RAMStart(), layout.KernelBreak()-layout.RAMStart())
		clear(data)
	}

	grants, err := grant.NewTable(layout, params.RAM, params.Drivers)
	if err != nil {
		return
	}

	_, err = layout.AllocateKernelMemory(upcall.QueueSize(params.QueueCapacity), 4)
	if err != nil {
		return
	}

	proc.State = STATE_UNSTARTED
	proc.Preempted = false
	proc.Memory = layout
	proc.Grants = grants
	proc.Upcalls = upcall.NewQueue(params.QueueCapacity)
	proc.Context = upcall.NewContext(params.AppBreak)
	proc.Fault = nil
	proc.ExitCode = 0
	proc.StackHint = 0
	proc.HeapHint = 0
	proc.subscriptions = make(map[uint32]*upcallSlots)

	return
}

// FlashStart is the first address of the application image.
func (proc *Process) FlashStart() uint32 {
	return proc.Params.FlashStart
}

// FlashEnd is the first address past the application image.
func (proc *Process) FlashEnd() uint32 {
	return proc.Params.FlashStart + proc.Params.FlashSize
}

// Entry is the address of the process entry point.
func (proc *Process) Entry() uint32 {
	return proc.Params.FlashStart + proc.Params.InitOffset
}

// InFlash reports whether addr is inside the application image.
func (proc *Process) InFlash(addr uint32) bool {
	return addr >= proc.FlashStart() && addr < proc.FlashEnd()
}

// Start makes an unstarted process runnable by queueing a call to its
// entry point.
func (proc *Process) Start() (err error) {
	if proc.State != STATE_UNSTARTED {
		err = ErrState{Op: "start", State: proc.State}
		return
	}

	layout := proc.Memory
	entry := upcall.Upcall{
		ID:    upcall.KernelID(),
		Entry: proc.Entry(),
		Args: [4]uint32{
			proc.FlashStart(),
			layout.RAMStart(),
			layout.RAMEnd() - layout.RAMStart(),
			layout.AppBreak(),
		},
	}

	if !proc.Upcalls.Enqueue(entry) {
		proc.Debug.DroppedUpcalls++
		err = memory.ErrOutOfMemory
		return
	}

	proc.State = STATE_WAITING
	proc.Preempted = false
	return
}

// Ready reports whether the scheduler may run the process.
func (proc *Process) Ready() bool {
	if proc.State != STATE_WAITING {
		return false
	}
	return proc.Preempted || !proc.Upcalls.Empty()
}

// Resume prepares a waiting process to run. A preempted process continues
// where it stopped. Otherwise the next upcall is delivered; if its frame
// does not fit the process faults.
func (proc *Process) Resume() (err error) {
	if !proc.Ready() {
		err = ErrState{Op: "resume", State: proc.State}
		return
	}

	if !proc.Preempted {
		up, _ := proc.Upcalls.Dequeue()
		err = upcall.Deliver(&proc.Context, up, proc.Memory, proc.RAM)
		if err != nil {
			proc.SetFault(err)
			return
		}
	}

	proc.State = STATE_RUNNING
	proc.Preempted = false
	return
}

// Yield moves a running process to waiting for an upcall.
func (proc *Process) Yield() {
	if proc.State == STATE_RUNNING {
		proc.State = STATE_WAITING
		proc.Preempted = false
	}
}

// Preempt moves a running process to waiting, to be resumed where it
// stopped.
func (proc *Process) Preempt() {
	if proc.State == STATE_RUNNING {
		proc.State = STATE_WAITING
		proc.Preempted = true
	}
}

// SetFault stops the process with cause err.
func (proc *Process) SetFault(err error) {
	var fault *ErrFault
	if !errors.As(err, &fault) {
		err = &ErrFault{PC: proc.Context.PC, Err: err}
	}

	proc.State = STATE_FAULTED
	proc.Preempted = false
	proc.Fault = err
}

// Terminate stops the process at its own request.
func (proc *Process) Terminate(code uint32) {
	proc.State = STATE_TERMINATED
	proc.Preempted = false
	proc.ExitCode = code
}

// Reset returns the process to unstarted over its original RAM block.
// Grants, subscriptions and pending upcalls are discarded.
func (proc *Process) Reset() (err error) {
	if proc.State.Alive() {
		err = ErrState{Op: "reset", State: proc.State}
		return
	}

	err = proc.load()
	if err != nil {
		return
	}

	proc.Debug.Restarts++
	return
}

// SetReturn stores the system call return registers.
func (proc *Process) SetReturn(r [4]uint32) {
	proc.Context.R = r
}

// Subscribe registers sub for upcalls from id and returns the previous
// registration. The driver offers count upcalls; slots for all of them are
// taken from kernel memory on the first subscription to the driver. Upcalls
// already queued from id are discarded. A zero entry unregisters.
func (proc *Process) Subscribe(id upcall.ID, count uint32, sub Subscription) (old Subscription, err error) {
	if id.Kernel || id.Subscribe >= count {
		err = ErrNoUpcall
		return
	}

	table, ok := proc.subscriptions[id.Driver]
	if !ok {
		table, err = proc.allocateSlots(count)
		if err != nil {
			return
		}
		proc.subscriptions[id.Driver] = table
	}
	if id.Subscribe >= uint32(len(table.slots)) {
		err = ErrNoUpcall
		return
	}

	old = table.slots[id.Subscribe]
	table.slots[id.Subscribe] = sub
	proc.writeSlot(table, id.Subscribe)

	proc.Upcalls.Retain(func(up upcall.Upcall) bool {
		return up.ID != id
	})

	return
}

func (proc *Process) allocateSlots(count uint32) (table *upcallSlots, err error) {
	size := uint64(count) * SUBSCRIPTION_SIZE
	if size > uint64(proc.Memory.KernelBreak()-proc.Memory.AppBreak()) {
		err = memory.ErrOutOfMemory
		return
	}

	addr, err := proc.Memory.AllocateKernelMemory(uint32(size), 4)
	if err != nil {
		return
	}

	table = &upcallSlots{
		addr:  addr,
		slots: make([]Subscription, count),
	}
	// Kernel memory is not cleared on allocation.
	for n := range count {
		proc.writeSlot(table, n)
	}

	return
}

func (proc *Process) writeSlot(table *upcallSlots, index uint32) {
	if proc.RAM == nil {
		return
	}

	sub := table.slots[index]
	addr := table.addr + index*SUBSCRIPTION_SIZE
	_ = proc.RAM.WriteWord(addr, sub.Entry)
	_ = proc.RAM.WriteWord(addr+4, sub.AppData)
}

// Subscription returns the registration for id.
func (proc *Process) Subscription(id upcall.ID) (sub Subscription, ok bool) {
	table, found := proc.subscriptions[id.Driver]
	if id.Kernel || !found || id.Subscribe >= uint32(len(table.slots)) {
		return
	}

	sub = table.slots[id.Subscribe]
	ok = sub.Entry != 0
	return
}

// ScheduleUpcall queues a call to the function registered for id with
// args and the registered application data. Without a registration nothing
// is queued. Returns false if the process is not alive or the upcall was
// dropped.
func (proc *Process) ScheduleUpcall(id upcall.ID, args [3]uint32) (ok bool) {
	if !proc.State.Alive() {
		return
	}

	sub, registered := proc.Subscription(id)
	if !registered {
		ok = true
		return
	}

	ok = proc.Upcalls.Enqueue(upcall.Upcall{
		ID:    id,
		Entry: sub.Entry,
		Args:  [4]uint32{args[0], args[1], args[2], sub.AppData},
	})
	if !ok {
		proc.Debug.DroppedUpcalls++
	}

	return
}

// SetByte writes value at addr in process memory, if addr is process-owned.
func (proc *Process) SetByte(addr uint32, value uint8) (ok bool) {
	if !proc.Memory.InAppMemory(addr, 1) {
		return
	}

	data, err := proc.RAM.Slice(addr, 1)
	if err != nil {
		return
	}

	data[0] = value
	ok = true
	return
}
