package task

// transitions is the fixed task state graph. Completed is terminal and
// has no entry.
var transitions = map[State][]State{
	StatePending:    {StateInProgress, StateBlocked},
	StateInProgress: {StateReview, StateBlocked, StateCompleted},
	StateReview:     {StateInProgress, StateCompleted, StateBlocked},
	StateBlocked:    {StatePending, StateInProgress},
}

// CanTransition reports whether from -> to is a legal edge in the task
// state graph.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Next returns the legal successor states of s. The returned slice is a
// copy; callers may mutate it.
func Next(s State) []State {
	edges := transitions[s]
	if len(edges) == 0 {
		return nil
	}
	out := make([]State, len(edges))
	copy(out, edges)
	return out
}
