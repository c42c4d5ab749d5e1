package task

import "testing"

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to State
		want     bool
	}{
		{StatePending, StateInProgress, true},
		{StatePending, StateBlocked, true},
		{StatePending, StateReview, false},
		{StatePending, StateCompleted, false},
		{StateInProgress, StateReview, true},
		{StateInProgress, StateBlocked, true},
		{StateInProgress, StateCompleted, true},
		{StateInProgress, StatePending, false},
		{StateReview, StateInProgress, true},
		{StateReview, StateCompleted, true},
		{StateReview, StateBlocked, true},
		{StateReview, StatePending, false},
		{StateBlocked, StatePending, true},
		{StateBlocked, StateInProgress, true},
		{StateBlocked, StateReview, false},
		{StateBlocked, StateCompleted, false},
		{StateCompleted, StatePending, false},
		{StateCompleted, StateInProgress, false},
		{StateCompleted, StateReview, false},
		{StateCompleted, StateBlocked, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTerminal(t *testing.T) {
	t.Parallel()

	for _, s := range []State{StatePending, StateInProgress, StateReview, StateBlocked} {
		if s.Terminal() {
			t.Errorf("%s.Terminal() = true, want false", s)
		}
		if len(Next(s)) == 0 {
			t.Errorf("Next(%s) is empty, want outgoing edges", s)
		}
	}
	if !StateCompleted.Terminal() {
		t.Error("completed should be terminal")
	}
	if Next(StateCompleted) != nil {
		t.Error("Next(completed) should be nil")
	}
}

func TestStateValid(t *testing.T) {
	t.Parallel()

	for _, s := range []State{StatePending, StateInProgress, StateReview, StateBlocked, StateCompleted} {
		if !s.Valid() {
			t.Errorf("%s.Valid() = false", s)
		}
	}
	if State("running").Valid() {
		t.Error("unknown state should not be valid")
	}
}

func TestClone(t *testing.T) {
	t.Parallel()

	orig := &Task{
		Name:         "design",
		State:        StatePending,
		Dependencies: nil,
		Metadata:     map[string]any{"priority": "high"},
	}
	cp := orig.Clone()
	cp.Metadata["priority"] = "low"
	cp.State = StateInProgress

	if orig.Metadata["priority"] != "high" {
		t.Error("clone shares metadata map with original")
	}
	if orig.State != StatePending {
		t.Error("clone mutated original state")
	}
}
