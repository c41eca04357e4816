package kernel

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"

	"github.com/ezrec/uproc/mpu"
	"github.com/ezrec/uproc/process"
	"github.com/ezrec/uproc/syscall"
	"github.com/ezrec/uproc/tbf"
)

const (
	FLASH_START = 0x40000
	RAM_START   = 0x20000000
)

type step func(proc *process.Process) process.Trap

// scriptSwitcher plays a list of traps per process. A process that runs
// past its script exits.
type scriptSwitcher struct {
	steps map[string][]step
	calls []string
}

func (sw *scriptSwitcher) SwitchTo(proc *process.Process) process.Trap {
	sw.calls = append(sw.calls, proc.Name)

	steps := sw.steps[proc.Name]
	if len(steps) == 0 {
		return call(syscall.CLASS_EXIT, syscall.EXIT_TERMINATE, 0)(proc)
	}
	sw.steps[proc.Name] = steps[1:]
	return steps[0](proc)
}

func call(class syscall.Class, args ...uint32) step {
	return func(proc *process.Process) process.Trap {
		var r [4]uint32
		copy(r[:], args)
		proc.Context.R = r
		return process.Trap{Reason: process.TRAP_SYSCALL, Number: uint8(class)}
	}
}

func trap(reason process.Reason) step {
	return func(proc *process.Process) process.Trap {
		return process.Trap{Reason: reason}
	}
}

func image(name string, size uint32, enabled bool) tbf.Header {
	h := tbf.Header{
		TotalSize:   size,
		Main:        &tbf.Main{InitOffset: 0x40, MinimumRAM: 0x800},
		PackageName: name,
	}
	if enabled {
		h.Flags = tbf.FLAG_ENABLED
	}
	return h
}

func buildFlash(headers ...tbf.Header) (flash []byte) {
	for _, h := range headers {
		data := make([]byte, h.TotalSize)
		copy(data, h.Marshal())
		flash = append(flash, data...)
	}
	return
}

func newTestKernel(t *testing.T, sw process.Switcher, policy process.FaultPolicy, headers ...tbf.Header) (k *Kernel, hook *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.TraceLevel)

	dis := syscall.NewDispatcher()
	assert.NoError(t, dis.Register(1, syscall.Unsupported{}))

	params := Params{
		Unit:          mpu.Units["cortex-m"],
		RAMStart:      RAM_START,
		RAMSize:       0x10000,
		MaxProcesses:  4,
		QueueCapacity: 8,
		StackSize:     0x400,
		Policy:        policy,
	}
	k = New(params, dis, sw, mpu.NewSimulated(params.Unit), logger)

	_, err := k.LoadApps(FLASH_START, buildFlash(headers...))
	assert.NoError(t, err)
	return
}

func TestKernel_LoadApps(t *testing.T) {
	assert := assert.New(t)

	sw := &scriptSwitcher{}
	padding := tbf.Header{TotalSize: 0x400}
	k, hook := newTestKernel(t, sw, nil,
		image("one", 0x400, true),
		padding,
		image("off", 0x400, false),
		image("two", 0x400, true),
	)

	assert.Equal(2, k.Processes.Len())

	var last uint64 = RAM_START
	names := []string{"one", "two"}
	flash := []uint32{FLASH_START, FLASH_START + 0xc00}
	for id, proc := range k.Processes.All() {
		assert.Equal(names[id], proc.Name)
		assert.Equal(flash[id], proc.FlashStart())
		assert.Equal(process.STATE_WAITING, proc.State)
		assert.True(proc.Ready())
		assert.Equal(1, proc.Upcalls.Len())

		block := proc.Memory.Block()
		assert.GreaterOrEqual(uint64(block.Start), last)
		assert.GreaterOrEqual(proc.Memory.AppBreak()-proc.Memory.RAMStart(), uint32(0x800))
		last = block.End()
	}

	assert.LessOrEqual(last, uint64(RAM_START+0x10000))

	var disabled bool
	for _, entry := range hook.AllEntries() {
		if entry.Message == "image disabled" && entry.Data["process"] == "off" {
			disabled = true
		}
	}
	assert.True(disabled)
}

func TestKernel_LoadApps_Empty(t *testing.T) {
	assert := assert.New(t)

	logger, _ := test.NewNullLogger()
	params := Params{Unit: mpu.Units["cortex-m"], RAMStart: RAM_START, RAMSize: 0x1000, MaxProcesses: 1}
	k := New(params, syscall.NewDispatcher(), &scriptSwitcher{}, mpu.NewSimulated(params.Unit), logger)

	loaded, err := k.LoadApps(FLASH_START, buildFlash(image("off", 0x400, false)))
	assert.Equal(0, loaded)
	assert.ErrorIs(err, ErrNoImages)
}

func TestKernel_LoadApps_TableFull(t *testing.T) {
	assert := assert.New(t)

	logger, _ := test.NewNullLogger()
	params := Params{Unit: mpu.Units["cortex-m"], RAMStart: RAM_START, RAMSize: 0x10000, MaxProcesses: 1, QueueCapacity: 4}
	k := New(params, syscall.NewDispatcher(), &scriptSwitcher{}, mpu.NewSimulated(params.Unit), logger)

	loaded, err := k.LoadApps(FLASH_START, buildFlash(image("a", 0x400, true), image("b", 0x400, true)))
	assert.NoError(err)
	assert.Equal(1, loaded)
}

func TestKernel_LoadApps_NoRAM(t *testing.T) {
	assert := assert.New(t)

	logger, _ := test.NewNullLogger()
	params := Params{Unit: mpu.Units["cortex-m"], RAMStart: RAM_START, RAMSize: 0x1000, MaxProcesses: 4, QueueCapacity: 4}
	k := New(params, syscall.NewDispatcher(), &scriptSwitcher{}, mpu.NewSimulated(params.Unit), logger)

	// Each process needs a 0x1000 block, so only the first fits.
	loaded, err := k.LoadApps(FLASH_START, buildFlash(image("a", 0x400, true), image("b", 0x400, true)))
	assert.NoError(err)
	assert.Equal(1, loaded)
}

func TestKernel_LoadApps_FillsHoles(t *testing.T) {
	assert := assert.New(t)

	big := image("big", 0x400, true)
	big.Main.MinimumRAM = 0x900

	k, _ := newTestKernel(t, &scriptSwitcher{}, nil,
		image("a", 0x400, true),
		big,
		image("c", 0x400, true),
	)

	// "big" needs a block aligned to its size, leaving a hole after "a".
	starts := map[string]uint32{}
	for _, proc := range k.Processes.All() {
		starts[proc.Name] = proc.Memory.RAMStart()
	}
	assert.Equal(map[string]uint32{
		"a":   RAM_START,
		"big": RAM_START + 0x2000,
		"c":   RAM_START + 0x1000,
	}, starts)
}

func TestKernel_Run(t *testing.T) {
	assert := assert.New(t)

	var entryPC, entryArg uint32
	var ret [4]uint32
	sw := &scriptSwitcher{steps: map[string][]step{
		"one": {
			func(proc *process.Process) process.Trap {
				entryPC = proc.Context.PC
				entryArg = proc.Context.R[0]
				return call(syscall.CLASS_COMMAND, 7, 1, 0, 0)(proc)
			},
			func(proc *process.Process) process.Trap {
				ret = proc.Context.R
				return call(syscall.CLASS_EXIT, syscall.EXIT_TERMINATE, 3)(proc)
			},
		},
	}}
	k, _ := newTestKernel(t, sw, nil, image("one", 0x400, true))

	err := k.Run(context.Background())
	assert.NoError(err)

	proc, _ := k.Processes.Get(0)
	assert.Equal(uint32(FLASH_START+0x40), entryPC)
	assert.Equal(uint32(FLASH_START), entryArg)
	assert.Equal([4]uint32{uint32(syscall.FAILURE), uint32(syscall.NOSUPPORT), 0, 0}, ret)
	assert.Equal(process.STATE_TERMINATED, proc.State)
	assert.Equal(uint32(3), proc.ExitCode)
	assert.Equal(2, proc.Debug.Syscalls)
	assert.Equal([]string{"one", "one"}, sw.calls)
}

func TestKernel_Run_Cancelled(t *testing.T) {
	assert := assert.New(t)

	sw := &scriptSwitcher{}
	k, _ := newTestKernel(t, sw, nil, image("one", 0x400, true))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := k.Run(ctx)
	assert.ErrorIs(err, context.Canceled)
	assert.Empty(sw.calls)
}

func TestKernel_RoundRobin(t *testing.T) {
	assert := assert.New(t)

	timeslice := trap(process.TRAP_TIMESLICE)
	sw := &scriptSwitcher{steps: map[string][]step{
		"a": {timeslice, timeslice},
		"b": {timeslice, call(syscall.CLASS_YIELD, syscall.YIELD_WAIT)},
	}}
	k, _ := newTestKernel(t, sw, nil, image("a", 0x400, true), image("b", 0x400, true))

	err := k.Run(context.Background())
	assert.NoError(err)

	assert.Equal([]string{"a", "b", "a", "b", "a"}, sw.calls)

	a, _ := k.Processes.Get(0)
	b, _ := k.Processes.Get(1)
	assert.Equal(2, a.Debug.TimesliceExpirations)
	assert.Equal(process.STATE_TERMINATED, a.State)
	assert.Equal(1, b.Debug.TimesliceExpirations)
	assert.Equal(process.STATE_WAITING, b.State)
	assert.False(b.Ready())
}

func TestKernel_Preempted(t *testing.T) {
	assert := assert.New(t)

	var pcs []uint32
	record := func(next step) step {
		return func(proc *process.Process) process.Trap {
			pcs = append(pcs, proc.Context.PC)
			return next(proc)
		}
	}

	sw := &scriptSwitcher{steps: map[string][]step{
		"a": {
			record(func(proc *process.Process) process.Trap {
				proc.Context.PC = 0x40100
				return process.Trap{Reason: process.TRAP_INTERRUPT}
			}),
			record(call(syscall.CLASS_EXIT, syscall.EXIT_TERMINATE, 0)),
		},
	}}
	k, _ := newTestKernel(t, sw, nil, image("a", 0x400, true))

	assert.NoError(k.Run(context.Background()))
	assert.Equal([]uint32{FLASH_START + 0x40, 0x40100}, pcs)
}

func TestKernel_Fault(t *testing.T) {
	fault := trap(process.TRAP_FAULT)

	table := [...]struct {
		name     string
		policy   process.FaultPolicy
		steps    []step
		state    process.State
		restarts int
		calls    int
	}{
		{"stop", process.StopPolicy{}, []step{fault}, process.STATE_FAULTED, 0, 1},
		{"restart", process.RestartPolicy{Threshold: 1}, []step{fault, fault}, process.STATE_FAULTED, 1, 2},
		{"recover", process.RestartPolicy{Threshold: 3}, []step{fault}, process.STATE_TERMINATED, 1, 2},
		{"bad-class", process.StopPolicy{}, []step{call(9)}, process.STATE_FAULTED, 0, 1},
	}

	for _, entry := range table {
		t.Run(entry.name, func(t *testing.T) {
			assert := assert.New(t)

			sw := &scriptSwitcher{steps: map[string][]step{"a": entry.steps}}
			k, hook := newTestKernel(t, sw, entry.policy, image("a", 0x400, true))

			assert.NoError(k.Run(context.Background()))

			proc, _ := k.Processes.Get(0)
			assert.Equal(entry.state, proc.State)
			assert.Equal(entry.restarts, proc.Debug.Restarts)
			assert.Len(sw.calls, entry.calls)

			var faulted bool
			for _, log := range hook.AllEntries() {
				if log.Message == "process faulted" {
					faulted = true
				}
			}
			assert.True(faulted)
		})
	}
}

func TestKernel_FaultCause(t *testing.T) {
	assert := assert.New(t)

	sw := &scriptSwitcher{steps: map[string][]step{"a": {trap(process.TRAP_FAULT)}}}
	k, _ := newTestKernel(t, sw, process.StopPolicy{}, image("a", 0x400, true))

	assert.NoError(k.Run(context.Background()))

	proc, _ := k.Processes.Get(0)
	assert.ErrorIs(proc.Fault, process.ErrMemoryFault)
	var fault *process.ErrFault
	assert.ErrorAs(proc.Fault, &fault)
	assert.Equal(uint32(FLASH_START+0x40), fault.PC)
}

func TestKernel_PanicPolicy(t *testing.T) {
	assert := assert.New(t)

	sw := &scriptSwitcher{steps: map[string][]step{"a": {trap(process.TRAP_FAULT)}}}
	k, _ := newTestKernel(t, sw, process.PanicPolicy{}, image("a", 0x400, true))

	assert.PanicsWithError(process.ErrPanic{Name: "a", Err: &process.ErrFault{PC: FLASH_START + 0x40, Err: process.ErrMemoryFault}}.Error(), func() {
		k.Run(context.Background())
	})
}

func TestKernel_ExitRestart(t *testing.T) {
	assert := assert.New(t)

	var sbrk [4]uint32
	sw := &scriptSwitcher{steps: map[string][]step{
		"a": {
			call(syscall.CLASS_MEMOP, syscall.MEMOP_SBRK, 0x100),
			func(proc *process.Process) process.Trap {
				sbrk = proc.Context.R
				return call(syscall.CLASS_EXIT, syscall.EXIT_RESTART, 0)(proc)
			},
		},
	}}
	// Room to grow the app region under power-of-two alignment.
	h := image("a", 0x400, true)
	h.Main.MinimumRAM = 0x900

	k, _ := newTestKernel(t, sw, nil, h)
	proc, _ := k.Processes.Get(0)
	initial := proc.Memory.AppBreak()

	assert.NoError(k.Run(context.Background()))

	assert.Equal(uint32(syscall.SUCCESS_U32), sbrk[0])
	assert.Equal(initial, sbrk[1])
	assert.Equal(1, proc.Debug.Restarts)
	assert.Equal(initial, proc.Memory.AppBreak())
	assert.Equal(process.STATE_TERMINATED, proc.State)
	assert.Equal([]string{"a", "a", "a"}, sw.calls)
}

func TestKernel_ProgramsMPU(t *testing.T) {
	assert := assert.New(t)

	var allowed, denied bool
	sw := &scriptSwitcher{steps: map[string][]step{
		"b": {call(syscall.CLASS_YIELD, syscall.YIELD_WAIT)},
	}}
	k, _ := newTestKernel(t, sw, nil, image("a", 0x400, true), image("b", 0x400, true))
	hw := k.Hardware.(*mpu.Simulated)

	a, _ := k.Processes.Get(0)
	sw.steps["a"] = []step{
		func(proc *process.Process) process.Trap {
			allowed = hw.Allows(a.Memory.RAMStart(), 4, mpu.PERM_READ_WRITE)
			denied = hw.Allows(a.Memory.KernelBreak(), 4, mpu.PERM_READ)
			return call(syscall.CLASS_YIELD, syscall.YIELD_WAIT)(proc)
		},
	}

	assert.NoError(k.Run(context.Background()))
	assert.True(allowed)
	assert.False(denied)
	assert.Equal(2, hw.Programmed)
}
