package process

// State of a process.
type State int

const (
	STATE_UNSTARTED  = State(iota) // Loaded, never run.
	STATE_WAITING                  // Not running; runnable when preempted or an upcall is pending.
	STATE_RUNNING                  // On the processor.
	STATE_FAULTED                  // Stopped by a fault.
	STATE_TERMINATED               // Stopped by its own exit call.
)

var _state_names = [...]string{
	STATE_UNSTARTED:  "unstarted",
	STATE_WAITING:    "waiting",
	STATE_RUNNING:    "running",
	STATE_FAULTED:    "faulted",
	STATE_TERMINATED: "terminated",
}

func (state State) String() string {
	if state < 0 || int(state) >= len(_state_names) {
		return "unknown"
	}
	return _state_names[state]
}

// Alive reports whether the process can still be scheduled.
func (state State) Alive() bool {
	return state == STATE_WAITING || state == STATE_RUNNING
}

// MarshalText makes states readable in reports.
func (state State) MarshalText() ([]byte, error) {
	return []byte(state.String()), nil
}
