// Package capsule holds drivers that processes reach through system calls.
package capsule

import (
	"io"

	"github.com/ezrec/uproc/grant"
	"github.com/ezrec/uproc/memory"
	"github.com/ezrec/uproc/process"
	"github.com/ezrec/uproc/syscall"
	"github.com/ezrec/uproc/upcall"
)

// Console driver number, commands and buffer numbers.
const (
	CONSOLE_DRIVER = 0x1

	CONSOLE_WRITE = 1 // Command putstr(len); read-only buffer; upcall (written).
	CONSOLE_READ  = 2 // Command getnstr(len); upcall (status, read).
	CONSOLE_ABORT = 3 // Command abort a read.

	CONSOLE_READ_BUFFER = 1 // Read-write buffer receiving input.

	CONSOLE_UPCALLS = 3 // Subscribe numbers 0 to 2; write and read use theirs.
)

type consoleGrant struct {
	Write memory.Slot[memory.ReadOnlyBuffer]
	Read  memory.Slot[memory.ReadWriteBuffer]
}

// Console connects processes to a byte stream. Writes and reads complete at
// once and report through an upcall.
type Console struct {
	syscall.Unsupported

	Input  io.Reader
	Output io.Writer
}

var _ syscall.Driver = (*Console)(nil)

func (con *Console) enter(caller *process.Process) (*consoleGrant, error) {
	return grant.Get(caller.Grants, CONSOLE_DRIVER, consoleGrant{})
}

func (con *Console) Upcalls() uint32 {
	return CONSOLE_UPCALLS
}

func (con *Console) AllocateGrant(caller *process.Process) (err error) {
	_, err = con.enter(caller)
	return
}

func (con *Console) AllowReadOnly(caller *process.Process, which uint32, buf memory.ReadOnlyBuffer) (old memory.ReadOnlyBuffer, err error) {
	if which != CONSOLE_WRITE {
		err = syscall.NOSUPPORT
		return
	}

	state, err := con.enter(caller)
	if err != nil {
		return
	}

	old, _ = state.Write.Swap(buf)
	return
}

func (con *Console) AllowReadWrite(caller *process.Process, which uint32, buf memory.ReadWriteBuffer) (old memory.ReadWriteBuffer, err error) {
	if which != CONSOLE_READ_BUFFER {
		err = syscall.NOSUPPORT
		return
	}

	state, err := con.enter(caller)
	if err != nil {
		return
	}

	old, _ = state.Read.Swap(buf)
	return
}

func (con *Console) Command(minor uint32, arg1 uint32, arg2 uint32, caller *process.Process) syscall.CommandReturn {
	state, err := con.enter(caller)
	if err != nil {
		return syscall.FailureOf(err)
	}

	switch minor {
	case CONSOLE_WRITE:
		return con.write(caller, state, arg1)
	case CONSOLE_READ:
		return con.read(caller, state, arg1)
	case CONSOLE_ABORT:
		return syscall.Success()
	}

	return syscall.Failure(syscall.NOSUPPORT)
}

// write sends up to length bytes of the allowed buffer.
func (con *Console) write(caller *process.Process, state *consoleGrant, length uint32) syscall.CommandReturn {
	if con.Output == nil {
		return syscall.Failure(syscall.OFF)
	}

	var data []byte
	state.Write.Map(func(buf *memory.ReadOnlyBuffer) {
		data = make([]byte, min(length, buf.Len()))
		buf.CopyTo(data)
	})
	if len(data) == 0 {
		return syscall.Failure(syscall.RESERVE)
	}

	written, err := con.Output.Write(data)
	if err != nil {
		return syscall.Failure(syscall.FAIL)
	}

	caller.ScheduleUpcall(upcall.DriverID(CONSOLE_DRIVER, CONSOLE_WRITE), [3]uint32{uint32(written), 0, 0})
	return syscall.Success()
}

// read fills up to length bytes of the allowed buffer from one read of the
// input.
func (con *Console) read(caller *process.Process, state *consoleGrant, length uint32) syscall.CommandReturn {
	if con.Input == nil {
		return syscall.Failure(syscall.OFF)
	}
	if !state.Read.IsOccupied() {
		return syscall.Failure(syscall.RESERVE)
	}

	var count int
	var err error
	state.Read.Map(func(buf *memory.ReadWriteBuffer) {
		data := buf.Bytes()
		data = data[:min(int(length), len(data))]
		if len(data) > 0 {
			count, err = con.Input.Read(data)
		}
	})

	status := uint32(0)
	if err != nil {
		status = uint32(syscall.ToErrorCode(err))
	}

	caller.ScheduleUpcall(upcall.DriverID(CONSOLE_DRIVER, CONSOLE_READ), [3]uint32{status, uint32(count), 0})
	return syscall.Success()
}
