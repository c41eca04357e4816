package syscall

import (
	"maps"
	"slices"

	"github.com/ezrec/uproc/memory"
	"github.com/ezrec/uproc/process"
	"github.com/ezrec/uproc/upcall"
)

// Outcome tells the kernel what to do with a process after a system call.
type Outcome int

const (
	OUTCOME_RETURN    = Outcome(iota) // Store the return value and resume.
	OUTCOME_RESUME                    // Resume without a return value.
	OUTCOME_YIELD                     // Wait for an upcall.
	OUTCOME_TERMINATE                 // Stop the process.
	OUTCOME_RESTART                   // Restart the process.
)

// Memory operations.
const (
	MEMOP_BRK                = 0
	MEMOP_SBRK               = 1
	MEMOP_RAM_START          = 2
	MEMOP_RAM_END            = 3
	MEMOP_FLASH_START        = 4
	MEMOP_FLASH_END          = 5
	MEMOP_GRANT_START        = 6
	MEMOP_FLASH_REGIONS      = 7
	MEMOP_FLASH_REGION_START = 8
	MEMOP_FLASH_REGION_END   = 9
	MEMOP_STACK_TOP          = 10
	MEMOP_HEAP_START         = 11
)

// Dispatcher routes system calls to the registered drivers.
type Dispatcher struct {
	drivers map[uint32]Driver
	sealed  bool
}

// NewDispatcher creates an empty registry.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		drivers: make(map[uint32]Driver),
	}
}

// Register installs driver under number. Registration closes once any
// process has been created, since grant tables are sized by it.
func (dis *Dispatcher) Register(number uint32, driver Driver) (err error) {
	if dis.sealed {
		err = ErrSealed
		return
	}
	if _, ok := dis.drivers[number]; ok {
		err = ErrDriverExists
		return
	}

	dis.drivers[number] = driver
	return
}

// Seal closes registration.
func (dis *Dispatcher) Seal() {
	dis.sealed = true
}

// GrantSlots returns the registered driver numbers, in order. Each gets a
// slot in every process's grant table.
func (dis *Dispatcher) GrantSlots() []uint32 {
	return slices.Sorted(maps.Keys(dis.drivers))
}

// Lookup returns the driver registered as number.
func (dis *Dispatcher) Lookup(number uint32) (driver Driver, ok bool) {
	driver, ok = dis.drivers[number]
	return
}

// ensureGrant gives the driver a chance to create its grant.
func (dis *Dispatcher) ensureGrant(proc *process.Process, number uint32, driver Driver) (err error) {
	if proc.Grants.Allocated(number) {
		return
	}
	return driver.AllocateGrant(proc)
}

// Command runs a driver command. Minor 0 reports whether the driver exists.
func (dis *Dispatcher) Command(proc *process.Process, number uint32, minor uint32, arg1 uint32, arg2 uint32) (ret CommandReturn) {
	driver, ok := dis.Lookup(number)
	if !ok {
		return Failure(NOSUPPORT)
	}

	if minor == 0 {
		return Success()
	}

	err := dis.ensureGrant(proc, number, driver)
	if err != nil {
		return FailureOf(err)
	}

	return driver.Command(minor, arg1, arg2, proc)
}

// Subscribe replaces the upcall registration (number, sub) and returns the
// previous one. The entry must be in the process image, or zero to
// unregister. Subscribe numbers the driver does not offer are NOSUPPORT;
// NOMEM if the process has no kernel memory left for the driver's slots.
func (dis *Dispatcher) Subscribe(proc *process.Process, number uint32, sub uint32, entry uint32, appData uint32) (ret CommandReturn) {
	driver, ok := dis.Lookup(number)
	if !ok || sub >= driver.Upcalls() {
		return FailureU32U32(NOSUPPORT, entry, appData)
	}

	if entry != 0 && !proc.InFlash(entry) {
		return FailureU32U32(INVAL, entry, appData)
	}

	old, err := proc.Subscribe(upcall.DriverID(number, sub), driver.Upcalls(), process.Subscription{Entry: entry, AppData: appData})
	if err != nil {
		return FailureU32U32(ToErrorCode(err), entry, appData)
	}

	return SuccessU32U32(old.Entry, old.AppData)
}

// AllowReadWrite shares [ptr, ptr+length) with a driver for writing and
// returns the buffer the driver gives back.
func (dis *Dispatcher) AllowReadWrite(proc *process.Process, number uint32, which uint32, ptr uint32, length uint32) (ret CommandReturn) {
	driver, ok := dis.Lookup(number)
	if !ok {
		return FailureU32U32(NOSUPPORT, ptr, length)
	}

	buf, err := memory.NewReadWriteBuffer(proc.Memory, proc.RAM, ptr, length)
	if err != nil {
		return FailureU32U32(INVAL, ptr, length)
	}

	err = dis.ensureGrant(proc, number, driver)
	if err != nil {
		return FailureU32U32(ToErrorCode(err), ptr, length)
	}

	old, err := driver.AllowReadWrite(proc, which, buf)
	if err != nil {
		return FailureU32U32(ToErrorCode(err), ptr, length)
	}

	return SuccessU32U32(old.Ptr(), old.Len())
}

// AllowReadOnly shares [ptr, ptr+length) with a driver for reading.
func (dis *Dispatcher) AllowReadOnly(proc *process.Process, number uint32, which uint32, ptr uint32, length uint32) (ret CommandReturn) {
	driver, ok := dis.Lookup(number)
	if !ok {
		return FailureU32U32(NOSUPPORT, ptr, length)
	}

	buf, err := memory.NewReadOnlyBuffer(proc.Memory, proc.RAM, ptr, length)
	if err != nil {
		return FailureU32U32(INVAL, ptr, length)
	}

	err = dis.ensureGrant(proc, number, driver)
	if err != nil {
		return FailureU32U32(ToErrorCode(err), ptr, length)
	}

	old, err := driver.AllowReadOnly(proc, which, buf)
	if err != nil {
		return FailureU32U32(ToErrorCode(err), ptr, length)
	}

	return SuccessU32U32(old.Ptr(), old.Len())
}

// Memop runs a memory operation.
func (dis *Dispatcher) Memop(proc *process.Process, op uint32, arg uint32) (ret CommandReturn) {
	layout := proc.Memory

	switch op {
	case MEMOP_BRK:
		_, err := layout.SetAppBreak(arg)
		if err != nil {
			return Failure(NOMEM)
		}
		return Success()
	case MEMOP_SBRK:
		old, err := layout.GrowAppMemory(int32(arg))
		if err != nil {
			return Failure(NOMEM)
		}
		return SuccessU32(old)
	case MEMOP_RAM_START:
		return SuccessU32(layout.RAMStart())
	case MEMOP_RAM_END:
		return SuccessU32(layout.RAMEnd())
	case MEMOP_FLASH_START:
		return SuccessU32(proc.FlashStart())
	case MEMOP_FLASH_END:
		return SuccessU32(proc.FlashEnd())
	case MEMOP_GRANT_START:
		return SuccessU32(layout.KernelBreak())
	case MEMOP_FLASH_REGIONS:
		return SuccessU32(0)
	case MEMOP_FLASH_REGION_START, MEMOP_FLASH_REGION_END:
		return Failure(INVAL)
	case MEMOP_STACK_TOP:
		proc.StackHint = arg
		return Success()
	case MEMOP_HEAP_START:
		proc.HeapHint = arg
		return Success()
	}

	return Failure(NOSUPPORT)
}

// Yield handles the yield class. Yield has no return value.
func (dis *Dispatcher) Yield(proc *process.Process, which uint32, param uint32) (outcome Outcome) {
	switch which {
	case YIELD_NO_WAIT:
		pending := !proc.Upcalls.Empty()
		var flag uint8
		if pending {
			flag = 1
		}
		proc.SetByte(param, flag)
		if pending {
			return OUTCOME_YIELD
		}
		return OUTCOME_RESUME
	case YIELD_WAIT:
		return OUTCOME_YIELD
	}

	return OUTCOME_RESUME
}

// Exit handles the exit class.
func (dis *Dispatcher) Exit(proc *process.Process, which uint32, code uint32) (ret CommandReturn, outcome Outcome) {
	switch which {
	case EXIT_TERMINATE:
		proc.ExitCode = code
		outcome = OUTCOME_TERMINATE
	case EXIT_RESTART:
		proc.ExitCode = code
		outcome = OUTCOME_RESTART
	default:
		ret = Failure(NOSUPPORT)
		outcome = OUTCOME_RETURN
	}
	return
}

// Handle runs a decoded system call for proc.
func (dis *Dispatcher) Handle(proc *process.Process, sc Syscall) (ret CommandReturn, outcome Outcome) {
	proc.Debug.Syscalls++
	proc.Debug.LastSyscall = uint8(sc.Class)

	a := sc.Args
	switch sc.Class {
	case CLASS_YIELD:
		outcome = dis.Yield(proc, a[0], a[1])
		return
	case CLASS_EXIT:
		return dis.Exit(proc, a[0], a[1])
	case CLASS_SUBSCRIBE:
		ret = dis.Subscribe(proc, a[0], a[1], a[2], a[3])
	case CLASS_COMMAND:
		ret = dis.Command(proc, a[0], a[1], a[2], a[3])
	case CLASS_READ_WRITE_ALLOW:
		ret = dis.AllowReadWrite(proc, a[0], a[1], a[2], a[3])
	case CLASS_READ_ONLY_ALLOW:
		ret = dis.AllowReadOnly(proc, a[0], a[1], a[2], a[3])
	case CLASS_MEMOP:
		ret = dis.Memop(proc, a[0], a[1])
	default:
		ret = Failure(NOSUPPORT)
	}

	outcome = OUTCOME_RETURN
	return
}
