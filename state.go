package maybenot

import "github.com/zoobzio/maybenot/dist"

// Transition is one candidate next-state for a given event, drawn
// independently with probability Probability. Next is either a real state
// index, StateEnd, or StateSignal (spec.md §3).
type Transition struct {
	Next        int
	Probability float64
}

// StateAction pairs an ActionKind with the parameters needed to build the
// concrete Action once admission control has been consulted. Limit, when
// non-nil, samples a count of occurrences remaining for this action before
// a LimitReached self-event fires (spec.md §4.4); a nil Limit means
// unlimited.
//
//nolint:govet // fieldalignment: struct layout optimized for readability
type StateAction struct {
	Kind     ActionKind
	Timeout  dist.Dist
	Duration dist.Dist
	Bypass   bool
	Replace  bool
	Timer    TimerKind // meaningful only for ActionCancel
	Limit    *dist.Dist
}

// State is one node in a machine's graph: an ordered transition list per
// event kind, plus an optional action to evaluate and counter update to
// apply on entry (spec.md §3).
//
//nolint:govet // fieldalignment: struct layout optimized for readability
type State struct {
	Transitions [EventNum][]Transition
	Action      *StateAction
	CounterUpdate *CounterUpdate
}

// NewState returns an empty State with no transitions, action or counter
// update; callers populate Transitions[event] directly.
func NewState() State {
	return State{}
}

// AddTransition appends a transition for event e, in declaration order
// (transitions are tried in the order added, per spec.md §4.2).
func (s *State) AddTransition(e Event, next int, probability float64) {
	s.Transitions[e] = append(s.Transitions[e], Transition{Next: next, Probability: probability})
}
