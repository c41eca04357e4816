package syscall

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/uproc/grant"
	"github.com/ezrec/uproc/memory"
	"github.com/ezrec/uproc/mpu"
	"github.com/ezrec/uproc/process"
	"github.com/ezrec/uproc/upcall"
)

const (
	testRAMStart = 0x20000000
	testFlash    = 0x40000
	testDriver   = 1
)

type testGrant struct {
	Count  uint32
	Buffer memory.Slot[memory.ReadWriteBuffer]
}

// countingDriver counts commands and holds one read-write buffer per process.
type countingDriver struct {
	Unsupported
	Allocations int
	Allows      int
}

func (drv *countingDriver) AllocateGrant(caller *process.Process) (err error) {
	drv.Allocations++
	_, err = grant.Get(caller.Grants, testDriver, testGrant{})
	return
}

func (drv *countingDriver) Upcalls() uint32 {
	return 1
}

func (drv *countingDriver) Command(minor uint32, arg1 uint32, arg2 uint32, caller *process.Process) CommandReturn {
	state, err := grant.Get(caller.Grants, testDriver, testGrant{})
	if err != nil {
		return FailureOf(err)
	}

	switch minor {
	case 1:
		state.Count += arg1
		return SuccessU32(state.Count)
	case 2:
		caller.ScheduleUpcall(upcall.DriverID(testDriver, 0), [3]uint32{state.Count, arg1, arg2})
		return Success()
	}

	return Failure(NOSUPPORT)
}

func (drv *countingDriver) AllowReadWrite(caller *process.Process, which uint32, buf memory.ReadWriteBuffer) (old memory.ReadWriteBuffer, err error) {
	drv.Allows++
	if which != 0 {
		err = NOSUPPORT
		return
	}

	state, err := grant.Get(caller.Grants, testDriver, testGrant{})
	if err != nil {
		return
	}

	old, _ = state.Buffer.Swap(buf)
	return
}

func newTestDispatcher(t *testing.T) (dis *Dispatcher, drv *countingDriver, proc *process.Process) {
	t.Helper()

	drv = &countingDriver{}
	dis = NewDispatcher()
	if err := dis.Register(testDriver, drv); err != nil {
		t.Fatal(err)
	}
	if err := dis.Register(2, Unsupported{}); err != nil {
		t.Fatal(err)
	}
	dis.Seal()

	proc, err := process.New(process.Params{
		Name:          "test",
		FlashStart:    testFlash,
		FlashSize:     0x1000,
		Block:         mpu.Block{Start: testRAMStart, Size: 0x1000},
		AppBreak:      testRAMStart + 0x800,
		Fitter:        mpu.NewFitter(mpu.PowerOfTwo{}),
		Regions:       8,
		RAM:           memory.NewRAM(testRAMStart, 0x1000),
		Drivers:       dis.GrantSlots(),
		QueueCapacity: 4,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := proc.Start(); err != nil {
		t.Fatal(err)
	}
	if err := proc.Resume(); err != nil {
		t.Fatal(err)
	}

	return
}

func TestDispatcher_Register(t *testing.T) {
	assert := assert.New(t)

	dis := NewDispatcher()
	assert.NoError(dis.Register(5, Unsupported{}))
	assert.NoError(dis.Register(3, Unsupported{}))
	assert.Equal(ErrDriverExists, dis.Register(5, Unsupported{}))
	assert.Equal([]uint32{3, 5}, dis.GrantSlots())

	dis.Seal()
	assert.Equal(ErrSealed, dis.Register(9, Unsupported{}))
}

func TestDispatcher_UnknownDriver(t *testing.T) {
	assert := assert.New(t)

	dis, drv, proc := newTestDispatcher(t)
	kernelBreak := proc.Memory.KernelBreak()

	ret := dis.Command(proc, 7, 1, 0, 0)
	assert.Equal(Failure(NOSUPPORT), ret)

	for _, class := range []Class{CLASS_SUBSCRIBE, CLASS_COMMAND, CLASS_READ_WRITE_ALLOW, CLASS_READ_ONLY_ALLOW} {
		ret, outcome := dis.Handle(proc, Syscall{Class: class, Args: [4]uint32{7, 1, testRAMStart, 4}})
		assert.False(ret.IsSuccess(), "%v", class)
		assert.Equal(NOSUPPORT, ret.ErrorCode(), "%v", class)
		assert.Equal(OUTCOME_RETURN, outcome)
	}

	assert.Equal(0, proc.Grants.Count())
	assert.Equal(kernelBreak, proc.Memory.KernelBreak())
	assert.Equal(0, drv.Allocations)
	assert.Equal(uint32(testRAMStart), proc.Memory.AllowHighWater())
	assert.Equal(4, proc.Debug.Syscalls)
}

func TestDispatcher_Command(t *testing.T) {
	assert := assert.New(t)

	dis, drv, proc := newTestDispatcher(t)

	// Existence probe.
	assert.Equal(Success(), dis.Command(proc, testDriver, 0, 0, 0))
	assert.Equal(Success(), dis.Command(proc, 2, 0, 0, 0))
	assert.Equal(0, drv.Allocations)
	assert.Equal(0, proc.Grants.Count())

	assert.Equal(SuccessU32(5), dis.Command(proc, testDriver, 1, 5, 0))
	assert.Equal(SuccessU32(8), dis.Command(proc, testDriver, 1, 3, 0))
	assert.Equal(1, drv.Allocations)
	assert.Equal(1, proc.Grants.Count())

	assert.Equal(Failure(NOSUPPORT), dis.Command(proc, 2, 1, 0, 0))
	assert.Equal(Failure(NOSUPPORT), dis.Command(proc, testDriver, 9, 0, 0))
}

func TestDispatcher_AllowReadWrite(t *testing.T) {
	assert := assert.New(t)

	dis, drv, proc := newTestDispatcher(t)
	ramEnd := proc.Memory.RAMEnd()

	// Straddles the end of RAM by one byte.
	ret := dis.AllowReadWrite(proc, testDriver, 0, ramEnd-4, 5)
	assert.Equal(FailureU32U32(INVAL, ramEnd-4, 5), ret)
	ret = dis.AllowReadOnly(proc, testDriver, 0, ramEnd-4, 5)
	assert.Equal(FailureU32U32(INVAL, ramEnd-4, 5), ret)

	// Kernel-owned memory.
	ret = dis.AllowReadWrite(proc, testDriver, 0, proc.Memory.KernelBreak(), 4)
	assert.Equal(INVAL, ret.ErrorCode())

	assert.Equal(0, drv.Allows)
	assert.Equal(0, drv.Allocations)

	ret = dis.AllowReadWrite(proc, testDriver, 0, testRAMStart+0x100, 0x10)
	assert.Equal(SuccessU32U32(0, 0), ret)
	ret = dis.AllowReadWrite(proc, testDriver, 0, testRAMStart+0x200, 0x20)
	assert.Equal(SuccessU32U32(testRAMStart+0x100, 0x10), ret)
	assert.Equal(uint32(testRAMStart+0x220), proc.Memory.AllowHighWater())

	// Zero length revokes, at any address.
	ret = dis.AllowReadWrite(proc, testDriver, 0, 0, 0)
	assert.Equal(SuccessU32U32(testRAMStart+0x200, 0x20), ret)

	// Driver rejects the index; the offered buffer comes back.
	ret = dis.AllowReadWrite(proc, testDriver, 3, testRAMStart+0x300, 4)
	assert.Equal(FailureU32U32(NOSUPPORT, testRAMStart+0x300, 4), ret)

	// Driver without allow support.
	ret = dis.AllowReadOnly(proc, 2, 0, testRAMStart, 4)
	assert.Equal(FailureU32U32(NOSUPPORT, testRAMStart, 4), ret)

	assert.Equal(1, drv.Allocations)
	assert.Equal(4, drv.Allows)
}

func TestDispatcher_Subscribe(t *testing.T) {
	assert := assert.New(t)

	dis, _, proc := newTestDispatcher(t)

	ret := dis.Subscribe(proc, testDriver, 0, testRAMStart, 1)
	assert.Equal(FailureU32U32(INVAL, testRAMStart, 1), ret)

	ret = dis.Subscribe(proc, testDriver, 0, testFlash+0x100, 1)
	assert.Equal(SuccessU32U32(0, 0), ret)

	dis.Command(proc, testDriver, 1, 4, 0)
	dis.Command(proc, testDriver, 2, 5, 6)
	assert.Equal(1, proc.Upcalls.Len())

	ret = dis.Subscribe(proc, testDriver, 0, testFlash+0x200, 2)
	assert.Equal(SuccessU32U32(testFlash+0x100, 1), ret)
	assert.Equal(0, proc.Upcalls.Len())

	dis.Command(proc, testDriver, 2, 5, 6)
	up, ok := proc.Upcalls.Dequeue()
	assert.True(ok)
	assert.Equal(upcall.Upcall{ID: upcall.DriverID(testDriver, 0), Entry: testFlash + 0x200, Args: [4]uint32{4, 5, 6, 2}}, up)

	// Unsubscribe: later upcalls are dropped silently.
	ret = dis.Subscribe(proc, testDriver, 0, 0, 0)
	assert.Equal(SuccessU32U32(testFlash+0x200, 2), ret)
	dis.Command(proc, testDriver, 2, 5, 6)
	assert.Equal(0, proc.Upcalls.Len())
}

func TestDispatcher_Subscribe_Limits(t *testing.T) {
	assert := assert.New(t)

	dis, _, proc := newTestDispatcher(t)
	kernelBreak := proc.Memory.KernelBreak()

	// Only subscribe numbers the driver offers.
	for sub := range uint32(1000) {
		ret := dis.Subscribe(proc, 2, sub, testFlash+0x10, sub)
		assert.Equal(FailureU32U32(NOSUPPORT, testFlash+0x10, sub), ret)
	}
	ret := dis.Subscribe(proc, testDriver, 1, testFlash+0x10, 0)
	assert.Equal(FailureU32U32(NOSUPPORT, testFlash+0x10, 0), ret)
	assert.Equal(kernelBreak, proc.Memory.KernelBreak())

	// Slots come from the process's kernel memory.
	free := proc.Memory.KernelBreak() - proc.Memory.AppBreak()
	_, err := proc.Memory.AllocateKernelMemory(free, 1)
	assert.NoError(err)
	ret = dis.Subscribe(proc, testDriver, 0, testFlash+0x10, 0)
	assert.Equal(FailureU32U32(NOMEM, testFlash+0x10, 0), ret)
	_, ok := proc.Subscription(upcall.DriverID(testDriver, 0))
	assert.False(ok)
}

func TestDispatcher_Memop(t *testing.T) {
	assert := assert.New(t)

	dis, _, proc := newTestDispatcher(t)
	kernelBreak := proc.Memory.KernelBreak()

	table := [](struct {
		Op     uint32
		Arg    uint32
		Return CommandReturn
	}){
		{Op: MEMOP_RAM_START, Return: SuccessU32(testRAMStart)},
		{Op: MEMOP_RAM_END, Return: SuccessU32(testRAMStart + 0x1000)},
		{Op: MEMOP_FLASH_START, Return: SuccessU32(testFlash)},
		{Op: MEMOP_FLASH_END, Return: SuccessU32(testFlash + 0x1000)},
		{Op: MEMOP_GRANT_START, Return: SuccessU32(kernelBreak)},
		{Op: MEMOP_FLASH_REGIONS, Return: SuccessU32(0)},
		{Op: MEMOP_FLASH_REGION_START, Return: Failure(INVAL)},
		{Op: MEMOP_SBRK, Arg: 0, Return: SuccessU32(testRAMStart + 0x800)},
		{Op: MEMOP_SBRK, Arg: 0x1000, Return: Failure(NOMEM)},
		{Op: MEMOP_SBRK, Arg: uint32(0xfffffff0), Return: Failure(NOMEM)},
		{Op: MEMOP_BRK, Arg: testRAMStart + 0x700, Return: Failure(NOMEM)},
		{Op: MEMOP_BRK, Arg: testRAMStart + 0x800, Return: Success()},
		{Op: MEMOP_STACK_TOP, Arg: testRAMStart + 0x400, Return: Success()},
		{Op: MEMOP_HEAP_START, Arg: testRAMStart + 0x600, Return: Success()},
		{Op: 99, Return: Failure(NOSUPPORT)},
	}

	for _, tc := range table {
		assert.Equal(tc.Return, dis.Memop(proc, tc.Op, tc.Arg), "%+v", tc)
	}

	assert.Equal(uint32(testRAMStart+0x400), proc.StackHint)
	assert.Equal(uint32(testRAMStart+0x600), proc.HeapHint)
}

func TestDispatcher_Yield(t *testing.T) {
	assert := assert.New(t)

	dis, _, proc := newTestDispatcher(t)
	flag := uint32(testRAMStart + 0x10)
	proc.RAM.Data[0x10] = 0xff

	_, outcome := dis.Handle(proc, Syscall{Class: CLASS_YIELD, Args: [4]uint32{YIELD_NO_WAIT, flag}})
	assert.Equal(OUTCOME_RESUME, outcome)
	assert.Equal(uint8(0), proc.RAM.Data[0x10])

	dis.Subscribe(proc, testDriver, 0, testFlash+0x100, 0)
	dis.Command(proc, testDriver, 2, 0, 0)

	_, outcome = dis.Handle(proc, Syscall{Class: CLASS_YIELD, Args: [4]uint32{YIELD_NO_WAIT, flag}})
	assert.Equal(OUTCOME_YIELD, outcome)
	assert.Equal(uint8(1), proc.RAM.Data[0x10])

	_, outcome = dis.Handle(proc, Syscall{Class: CLASS_YIELD, Args: [4]uint32{YIELD_WAIT}})
	assert.Equal(OUTCOME_YIELD, outcome)

	_, outcome = dis.Handle(proc, Syscall{Class: CLASS_YIELD, Args: [4]uint32{2}})
	assert.Equal(OUTCOME_RESUME, outcome)
}

func TestDispatcher_Exit(t *testing.T) {
	assert := assert.New(t)

	dis, _, proc := newTestDispatcher(t)

	_, outcome := dis.Handle(proc, Syscall{Class: CLASS_EXIT, Args: [4]uint32{EXIT_TERMINATE, 3}})
	assert.Equal(OUTCOME_TERMINATE, outcome)
	assert.Equal(uint32(3), proc.ExitCode)

	_, outcome = dis.Handle(proc, Syscall{Class: CLASS_EXIT, Args: [4]uint32{EXIT_RESTART}})
	assert.Equal(OUTCOME_RESTART, outcome)

	ret, outcome := dis.Handle(proc, Syscall{Class: CLASS_EXIT, Args: [4]uint32{9}})
	assert.Equal(OUTCOME_RETURN, outcome)
	assert.Equal(Failure(NOSUPPORT), ret)
}
