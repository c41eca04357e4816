// Package kernel loads application images into processes and schedules
// them round robin.
package kernel

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/ezrec/uproc/internal"
	"github.com/ezrec/uproc/memory"
	"github.com/ezrec/uproc/mpu"
	"github.com/ezrec/uproc/process"
	"github.com/ezrec/uproc/syscall"
	"github.com/ezrec/uproc/tbf"
	"github.com/ezrec/uproc/upcall"
)

// Params are the board properties the kernel needs.
type Params struct {
	Unit          mpu.Unit
	RAMStart      uint32
	RAMSize       uint32
	MaxProcesses  int
	QueueCapacity int
	StackSize     uint32 // Minimum initial stack of every process.
	Policy        process.FaultPolicy
}

// Kernel owns the process table and runs processes on a Switcher.
type Kernel struct {
	Params

	Log        logrus.FieldLogger
	Dispatcher *syscall.Dispatcher
	Switcher   process.Switcher
	Hardware   mpu.Hardware
	Interrupts process.Interrupts

	Processes *process.Table
	RAM       *memory.RAM

	fitter *mpu.Fitter
	blocks *blocks
	next   int // Table index the scheduler looks at first.
}

// New creates a kernel with an empty process table.
func New(params Params, dis *syscall.Dispatcher, sw process.Switcher, hw mpu.Hardware, log logrus.FieldLogger) *Kernel {
	if params.Policy == nil {
		params.Policy = process.StopPolicy{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &Kernel{
		Params:     params,
		Log:        log,
		Dispatcher: dis,
		Switcher:   sw,
		Hardware:   hw,
		Interrupts: process.NoInterrupts{},
		Processes:  process.NewTable(params.MaxProcesses),
		RAM:        memory.NewRAM(params.RAMStart, params.RAMSize),
		fitter:     mpu.NewFitter(params.Unit.Rule),
		blocks:     newBlocks(params.RAMStart, params.RAMSize),
	}
}

// Fitter is the region fitter for the board's protection unit.
func (k *Kernel) Fitter() *mpu.Fitter {
	return k.fitter
}

func (k *Kernel) procLog(proc *process.Process) logrus.FieldLogger {
	return k.Log.WithFields(logrus.Fields{
		"process": proc.Name,
		"state":   proc.State,
	})
}

// LoadApps creates a process for every enabled image in flash, which
// starts at address, and starts it. Images that cannot be loaded are
// logged and skipped. Loading stops when the process table is full.
func (k *Kernel) LoadApps(address uint32, flash []byte) (loaded int, err error) {
	k.Dispatcher.Seal()
	drivers := k.Dispatcher.GrantSlots()
	kernelSize := process.KernelSize(len(drivers), k.QueueCapacity)

	for img, walkErr := range tbf.Walk(address, flash) {
		if walkErr != nil {
			k.Log.WithError(walkErr).Warn(f("skipping image"))
			continue
		}

		log := k.Log.WithField("process", img.Name())
		if img.Header.Padding() {
			continue
		}
		if !img.Header.Enabled() {
			log.Info(f("image disabled"))
			continue
		}
		if k.Processes.Len() == k.Processes.Capacity() {
			log.Warn(process.ErrTableFull)
			break
		}

		var proc *process.Process
		proc, err = k.load(img, drivers, kernelSize)
		if err != nil {
			log.WithError(err).Error(f("image not loaded"))
			err = nil
			continue
		}

		err = k.Processes.Add(proc)
		if err != nil {
			return
		}
		err = proc.Start()
		if err != nil {
			return
		}

		k.procLog(proc).WithFields(logrus.Fields{
			"flash": f("0x%08x", img.Address),
			"ram":   proc.Memory.String(),
		}).Debug(f("process loaded"))
		loaded++
	}

	if loaded == 0 {
		err = ErrNoImages
	}

	return
}

// load places one image in the lowest free RAM it fits.
func (k *Kernel) load(img *tbf.Image, drivers []uint32, kernelSize uint32) (proc *process.Process, err error) {
	appSize := max(img.Header.MinimumRAM(), k.StackSize, upcall.FRAME_SIZE)
	appSize = uint32(internal.AlignUp(uint64(appSize), 8))

	var block mpu.Block
	var ok bool
	for start, size := range k.blocks.Free() {
		_, block, ok = k.fitter.FitGrowable(start, size, appSize+kernelSize, appSize, kernelSize, mpu.PERM_READ_WRITE)
		if ok {
			break
		}
	}
	if !ok {
		err = ErrNoRAM
		return
	}

	proc, err = process.New(process.Params{
		Name:          img.Name(),
		FlashStart:    img.Address,
		FlashSize:     img.Size(),
		InitOffset:    img.Header.InitOffset(),
		Block:         block,
		AppBreak:      block.Start + appSize,
		Fitter:        k.fitter,
		Regions:       k.Hardware.Regions(),
		RAM:           k.RAM,
		Drivers:       drivers,
		QueueCapacity: k.QueueCapacity,
	})
	if err != nil {
		return
	}

	k.blocks.Reserve(block)
	return
}

// Run schedules processes until none is ready or ctx is done.
func (k *Kernel) Run(ctx context.Context) (err error) {
	for {
		err = ctx.Err()
		if err != nil {
			return
		}

		if !k.Step() {
			k.Log.Debug(f("no process ready"))
			return
		}
	}
}

// Step runs the next ready process, in table order after the last one run,
// until it stops running. Returns false if no process was ready.
func (k *Kernel) Step() (ran bool) {
	count := k.Processes.Capacity()
	for n := range count {
		id := (k.next + n) % count
		proc, ok := k.Processes.Get(id)
		if !ok || !proc.Ready() {
			continue
		}

		k.next = (id + 1) % count
		k.run(proc)
		ran = true
		return
	}

	return
}

// run gives proc the processor until it yields, is preempted or stops.
func (k *Kernel) run(proc *process.Process) {
	err := proc.Resume()
	if err != nil {
		if proc.State == process.STATE_FAULTED {
			k.fault(proc)
		}
		return
	}

	for proc.State == process.STATE_RUNNING {
		proc.Program(k.Hardware, k.Interrupts)
		trap := k.Switcher.SwitchTo(proc)

		switch trap.Reason {
		case process.TRAP_SYSCALL:
			k.syscall(proc, trap.Number)
		case process.TRAP_FAULT:
			if trap.Err == nil {
				trap.Err = process.ErrMemoryFault
			}
			proc.SetFault(trap.Err)
			k.fault(proc)
		case process.TRAP_TIMESLICE:
			proc.Debug.TimesliceExpirations++
			proc.Preempt()
		case process.TRAP_INTERRUPT:
			proc.Preempt()
		}
	}
}

// syscall runs the system call proc trapped with.
func (k *Kernel) syscall(proc *process.Process, number uint8) {
	sc, err := syscall.Decode(number, proc.Context.R)
	if err != nil {
		proc.SetFault(err)
		k.fault(proc)
		return
	}

	ret, outcome := k.Dispatcher.Handle(proc, sc)
	k.procLog(proc).WithField("syscall", sc).Trace(ret)

	switch outcome {
	case syscall.OUTCOME_RETURN:
		proc.SetReturn(ret.Encode())
	case syscall.OUTCOME_RESUME:
	case syscall.OUTCOME_YIELD:
		proc.Yield()
	case syscall.OUTCOME_TERMINATE:
		proc.Terminate(proc.ExitCode)
		k.procLog(proc).WithField("code", proc.ExitCode).Info(f("process exited"))
	case syscall.OUTCOME_RESTART:
		proc.Terminate(proc.ExitCode)
		k.restart(proc)
	}
}

// fault applies the fault policy to a faulted process.
func (k *Kernel) fault(proc *process.Process) {
	action := k.Policy.Action(proc)
	k.procLog(proc).WithError(proc.Fault).WithField("action", action).Warn(f("process faulted"))

	switch action {
	case process.ACTION_PANIC:
		panic(process.ErrPanic{Name: proc.Name, Err: proc.Fault})
	case process.ACTION_STOP:
	case process.ACTION_RESTART:
		k.restart(proc)
	}
}

// restart reloads a stopped process and starts it again.
func (k *Kernel) restart(proc *process.Process) {
	err := proc.Reset()
	if err == nil {
		err = proc.Start()
	}
	if err != nil {
		k.procLog(proc).WithError(err).Error(f("process restart failed"))
		proc.SetFault(err)
		return
	}

	k.procLog(proc).WithField("restarts", proc.Debug.Restarts).Info(f("process restarted"))
}
