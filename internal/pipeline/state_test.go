package pipeline

import "testing"

func TestStateTransitions(t *testing.T) {
	legal := []struct{ from, to State }{
		{StatePending, StateNormalizing},
		{StateNormalizing, StateRetrieving},
		{StateRetrieving, StateAuditing},
		{StateAuditing, StateAggregating},
		{StateAggregating, StateCompleted},
	}
	for _, tc := range legal {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be legal", tc.from, tc.to)
		}
	}

	illegal := []struct{ from, to State }{
		{StatePending, StateAuditing},
		{StateRetrieving, StateCompleted},
		{StateCompleted, StateNormalizing},
		{StateCompleted, StateFailed},
		{StateFailed, StateFailed},
	}
	for _, tc := range illegal {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be illegal", tc.from, tc.to)
		}
	}
}

func TestFailedReachableFromAnyNonTerminalState(t *testing.T) {
	for _, from := range []State{StatePending, StateNormalizing, StateRetrieving, StateAuditing, StateAggregating} {
		if !CanTransition(from, StateFailed) {
			t.Errorf("expected %s -> failed to be legal", from)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	if !StateCompleted.Terminal() || !StateFailed.Terminal() {
		t.Error("completed and failed must be terminal")
	}
	if StateAuditing.Terminal() {
		t.Error("auditing must not be terminal")
	}
}
