package pipeline

// State is a stage of the audit run state machine.
type State string

const (
	StatePending     State = "pending"
	StateNormalizing State = "normalizing"
	StateRetrieving  State = "retrieving"
	StateAuditing    State = "auditing"
	StateAggregating State = "aggregating"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
)

// Terminal reports whether the state ends the run.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// transitions enumerates the legal forward edges. Failed is reachable from
// every non-terminal state and is therefore not listed.
var transitions = map[State]State{
	StatePending:     StateNormalizing,
	StateNormalizing: StateRetrieving,
	StateRetrieving:  StateAuditing,
	StateAuditing:    StateAggregating,
	StateAggregating: StateCompleted,
}

// CanTransition reports whether moving from one state to another is legal.
func CanTransition(from, to State) bool {
	if to == StateFailed {
		return !from.Terminal()
	}
	return transitions[from] == to
}
