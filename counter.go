package maybenot

import "github.com/zoobzio/maybenot/dist"

// CounterID names one of a machine's two independent per-machine counters.
type CounterID uint8

const (
	CounterA CounterID = iota
	CounterB
)

// CounterOp is the operation a CounterUpdate applies to a counter's current
// value.
type CounterOp uint8

const (
	CounterIncrement CounterOp = iota
	CounterDecrement
	CounterSet
)

// CounterUpdate describes a single mutation to one of a state's two
// counters, applied on entry to the state (spec.md §3). Value is sampled
// from Dist for CounterSet; Increment/Decrement also sample from Dist for
// the step size. Copy, when true, ignores Dist and instead copies the
// current value of the other counter.
//
//nolint:govet // fieldalignment: struct layout optimized for readability
type CounterUpdate struct {
	Counter CounterID
	Op      CounterOp
	Value   dist.Dist
	Copy    bool
}

// apply mutates *cur (the Counter field's current value) according to u,
// given other (the other counter's current value, used only by Copy).
// Decrement saturates at zero. It returns the new value and whether this
// update drove the counter to zero from a nonzero value (or kept it at a
// zero stays-zero "decrement past zero"), which the caller uses to decide
// whether to emit a synthetic CounterZero event (spec.md §3's invariant:
// "Decrement saturates at zero and emits CounterZero on the transition
// 0→stays-0").
func (u CounterUpdate) apply(src sampler, cur, other uint64) (newValue uint64, zero bool) {
	if u.Copy {
		return other, other == 0
	}
	switch u.Op {
	case CounterSet:
		v := uint64(u.Value.Sample(src))
		return v, v == 0
	case CounterIncrement:
		step := uint64(u.Value.Sample(src))
		return cur + step, false
	case CounterDecrement:
		step := uint64(u.Value.Sample(src))
		if step >= cur {
			return 0, true
		}
		return cur - step, false
	default:
		return cur, cur == 0
	}
}
