package syscall

import (
	"github.com/ezrec/uproc/memory"
	"github.com/ezrec/uproc/process"
)

// Driver is a capsule reachable from processes by its driver number.
//
// Every method runs to completion without blocking. Slow work is started
// here and finished later with an upcall. Buffers are checked against the
// caller's memory before a driver sees them.
type Driver interface {
	// Command runs command minor with two arguments. Minor 0 never reaches
	// the driver.
	Command(minor uint32, arg1 uint32, arg2 uint32, caller *process.Process) CommandReturn

	// AllowReadWrite swaps buffer which for buf and returns the buffer
	// previously held. On error buf is handed back to the process.
	AllowReadWrite(caller *process.Process, which uint32, buf memory.ReadWriteBuffer) (old memory.ReadWriteBuffer, err error)

	// AllowReadOnly is AllowReadWrite for read-only buffers.
	AllowReadOnly(caller *process.Process, which uint32, buf memory.ReadOnlyBuffer) (old memory.ReadOnlyBuffer, err error)

	// Upcalls is the number of upcalls the driver can schedule. Subscribe
	// numbers from 0 up to it are accepted.
	Upcalls() uint32

	// AllocateGrant creates the driver's grant for caller, with grant.Get.
	// It is called before the first command or allow a process makes to
	// the driver.
	AllocateGrant(caller *process.Process) error
}

// Unsupported rejects every operation. Drivers embed it and override what
// they implement.
type Unsupported struct{}

var _ Driver = Unsupported{}

func (Unsupported) Command(minor uint32, arg1 uint32, arg2 uint32, caller *process.Process) CommandReturn {
	return Failure(NOSUPPORT)
}

func (Unsupported) AllowReadWrite(caller *process.Process, which uint32, buf memory.ReadWriteBuffer) (old memory.ReadWriteBuffer, err error) {
	err = NOSUPPORT
	return
}

func (Unsupported) AllowReadOnly(caller *process.Process, which uint32, buf memory.ReadOnlyBuffer) (old memory.ReadOnlyBuffer, err error) {
	err = NOSUPPORT
	return
}

func (Unsupported) Upcalls() uint32 {
	return 0
}

func (Unsupported) AllocateGrant(caller *process.Process) error {
	return nil
}
