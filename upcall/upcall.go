// Package upcall queues notifications for a process and delivers them by
// rewriting the process's resume point.
package upcall

import (
	"fmt"
)

const (
	// SIZE is the kernel memory taken by one queued upcall.
	SIZE = 6 * 4
)

// ID names the origin of an upcall.
type ID struct {
	Kernel    bool   // Set for upcalls the kernel itself schedules.
	Driver    uint32 // Driver number.
	Subscribe uint32 // Subscription number within the driver.
}

// KernelID is the origin of kernel-scheduled upcalls, such as the initial
// call into a process entry point.
func KernelID() ID {
	return ID{Kernel: true}
}

// DriverID is the origin of upcalls from a driver subscription.
func DriverID(driver uint32, subscribe uint32) ID {
	return ID{Driver: driver, Subscribe: subscribe}
}

func (id ID) String() string {
	if id.Kernel {
		return "kernel"
	}
	return fmt.Sprintf("%d/%d", id.Driver, id.Subscribe)
}

// Upcall is a function call the kernel makes into a process.
type Upcall struct {
	ID    ID
	Entry uint32
	Args  [4]uint32
}

func (up Upcall) String() string {
	return fmt.Sprintf("%v 0x%08x(0x%x, 0x%x, 0x%x, 0x%x)", up.ID, up.Entry, up.Args[0], up.Args[1], up.Args[2], up.Args[3])
}
