package execution

// State is the lifecycle state of an Execution.
type State int32

const (
	// StateRunning is the initial state.
	StateRunning State = iota
	// StateCanceled is reached through Cancel.
	StateCanceled
	// StateTimeout is reached when a check finds the timeout exceeded.
	StateTimeout
	// StateError is reached through Fail.
	StateError
	// StateDone is reached through End.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "RUNNING"
	case StateCanceled:
		return "CANCELED"
	case StateTimeout:
		return "TIMEOUT"
	case StateError:
		return "ERROR"
	case StateDone:
		return "DONE"
	}
	return "UNKNOWN"
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s != StateRunning
}
