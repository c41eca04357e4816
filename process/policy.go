package process

// Action the kernel takes after a process faults.
//
//go:generate go tool stringer -type=Action -trimprefix=ACTION_
type Action int

const (
	ACTION_PANIC   = Action(iota) // Halt the whole system.
	ACTION_STOP                   // Leave the process faulted.
	ACTION_RESTART                // Reload the process from its image.
)

// FaultPolicy decides what happens to a faulted process.
type FaultPolicy interface {
	Action(proc *Process) Action
}

// PanicPolicy halts the system on any process fault. Useful while
// debugging.
type PanicPolicy struct{}

func (PanicPolicy) Action(proc *Process) Action {
	return ACTION_PANIC
}

// StopPolicy stops the faulted process and leaves the others running.
type StopPolicy struct{}

func (StopPolicy) Action(proc *Process) Action {
	return ACTION_STOP
}

// RestartPolicy restarts a faulted process until it has been restarted
// Threshold times, then stops it.
type RestartPolicy struct {
	Threshold int
}

func (policy RestartPolicy) Action(proc *Process) Action {
	if proc.Debug.Restarts >= policy.Threshold {
		return ACTION_STOP
	}
	return ACTION_RESTART
}

var (
	_ FaultPolicy = PanicPolicy{}
	_ FaultPolicy = StopPolicy{}
	_ FaultPolicy = RestartPolicy{}
)
