package maybenot

import "time"

// Framework is the per-endpoint, single-threaded state engine (spec.md §1,
// §5). It owns one immutable Machine set (shared by reference, never
// mutated), one runtimeState per machine, and the RNG source used for every
// probabilistic draw. TriggerEvents is its only mutator and is not
// reentrant; Framework holds no state shared across instances.
//
//nolint:govet // fieldalignment: struct layout optimized for readability
type Framework struct {
	machines []*Machine
	runtimes []*runtimeState
	src      sampler

	maxPaddingFrac  float64
	maxBlockingFrac float64

	totalNormalSent      uint64
	totalPaddingSent     uint64
	totalBlockedDuration time.Duration
	connectionStart      time.Time

	// workQueue holds synthetic events (Signal, TimerBegin) that reach
	// machines other than the one that raised them; it is drained after the
	// externally supplied batch, before TriggerEvents returns (spec.md §5).
	workQueue []queuedEvent
}

// queuedEvent is a self-event (Signal, TimerBegin) raised mid-batch that
// must reach every running machine except the one that raised it.
type queuedEvent struct {
	event  Event
	origin int
}

// NewFramework validates the framework-level fractional caps and builds a
// Framework ready to run machines over one connection starting at now.
// machines is kept by reference: callers must not mutate the underlying
// Machine values afterwards (spec.md §3 "Lifecycle").
func NewFramework(machines []*Machine, maxPaddingFrac, maxBlockingFrac float64, now time.Time, src sampler) (*Framework, error) {
	if maxPaddingFrac < 0 || maxPaddingFrac > 1 {
		return nil, ErrPaddingLimit
	}
	if maxBlockingFrac < 0 || maxBlockingFrac > 1 {
		return nil, ErrBlockingLimit
	}

	runtimes := make([]*runtimeState, len(machines))
	for i := range runtimes {
		runtimes[i] = newRuntimeState()
	}

	return &Framework{
		machines:        machines,
		runtimes:        runtimes,
		src:             src,
		maxPaddingFrac:  maxPaddingFrac,
		maxBlockingFrac: maxBlockingFrac,
		connectionStart: now,
	}, nil
}

// NumMachines returns the number of machines this framework is running.
func (fw *Framework) NumMachines() int {
	return len(fw.machines)
}

// TriggerEvents processes one batch of externally supplied events and
// returns up to one Action per running machine, ordered by machine index
// (spec.md §4.3, §5). now must be monotonically non-decreasing across
// calls; the framework does not verify this itself (spec.md §5 places that
// obligation on the host).
func (fw *Framework) TriggerEvents(batch []TriggerEvent, now time.Time) []Action {
	for _, te := range batch {
		fw.dispatch(te.Event, te.MachineID, te.HasMachineID)
	}

	// Drain synthetic events raised during the batch (Signal, TimerBegin),
	// in FIFO order, before returning (spec.md §5).
	for i := 0; i < len(fw.workQueue); i++ {
		qe := fw.workQueue[i]
		for mIdx := range fw.machines {
			if mIdx == qe.origin {
				continue
			}
			fw.processOneEvent(mIdx, qe.event)
		}
	}
	fw.workQueue = fw.workQueue[:0]

	return fw.finalizeActions(now)
}

// dispatch routes one externally supplied event to the machine(s) it
// targets: machine-carrying events (PaddingSent, BlockingBegin, TimerBegin,
// TimerEnd) go only to the named machine; everything else is observed by
// every running machine (spec.md §3, §6).
func (fw *Framework) dispatch(ev Event, machineID int, hasMachine bool) {
	switch ev {
	case NormalSent:
		fw.totalNormalSent++
		for mIdx, rt := range fw.runtimes {
			if !rt.halted {
				rt.normalSent++
			}
			fw.processOneEvent(mIdx, ev)
		}
		return
	case PaddingSent:
		if hasMachine && machineID >= 0 && machineID < len(fw.runtimes) {
			rt := fw.runtimes[machineID]
			if !rt.halted {
				rt.paddingSent++
				fw.totalPaddingSent++
			}
			fw.processOneEvent(machineID, ev)
		}
		return
	case TimerEnd:
		if hasMachine && machineID >= 0 && machineID < len(fw.runtimes) {
			rt := fw.runtimes[machineID]
			if rt.actionTimerArmed || rt.internalTimerArmed {
				rt.actionTimerArmed = false
				rt.internalTimerArmed = false
				fw.processOneEvent(machineID, ev)
			}
			// A TimerEnd received after the corresponding Cancel is a no-op
			// (spec.md §5).
		}
		return
	case TimerBegin, BlockingBegin:
		if hasMachine && machineID >= 0 && machineID < len(fw.runtimes) {
			fw.processOneEvent(machineID, ev)
		}
		return
	default:
		for mIdx := range fw.machines {
			fw.processOneEvent(mIdx, ev)
		}
	}
}

// processOneEvent runs one event through machine mIdx's current state,
// drawing each candidate transition independently in declaration order and
// stopping at the first that fires (spec.md §4.2).
func (fw *Framework) processOneEvent(mIdx int, ev Event) {
	rt := fw.runtimes[mIdx]
	if rt.halted {
		return
	}
	m := fw.machines[mIdx]
	st := &m.States[rt.current]

	for _, tr := range st.Transitions[ev] {
		u := fw.src.Float64()
		if u < tr.Probability {
			fw.fireTransition(mIdx, tr.Next)
			return
		}
	}
}

// fireTransition applies the consequences of a fired transition: halting on
// StateEnd, broadcasting on StateSignal, or moving to a new state and
// running its entry effects (spec.md §4.2 steps 4-6).
func (fw *Framework) fireTransition(mIdx int, next int) {
	rt := fw.runtimes[mIdx]

	switch next {
	case StateEnd:
		rt.halted = true
		rt.pendingAction = nil
		rt.pendingActionSet = false
		return
	case StateSignal:
		fw.workQueue = append(fw.workQueue, queuedEvent{event: Signal, origin: mIdx})
		return
	}

	rt.current = next
	m := fw.machines[mIdx]
	newState := &m.States[next]

	if newState.CounterUpdate != nil {
		fw.applyCounterUpdate(mIdx, *newState.CounterUpdate)
	}
	if newState.Action != nil {
		fw.evaluateAction(mIdx, next, *newState.Action)
	}
}

// applyCounterUpdate mutates the named counter and, if it lands on zero,
// immediately re-enters this same machine with a CounterZero event, before
// any further externally supplied event in the batch is processed (spec.md
// §4.2 step 6a).
func (fw *Framework) applyCounterUpdate(mIdx int, u CounterUpdate) {
	rt := fw.runtimes[mIdx]
	cur := rt.counter(u.Counter)
	other := rt.otherCounter(u.Counter)
	newVal, zero := u.apply(fw.src, cur, other)
	rt.setCounter(u.Counter, newVal)
	if zero {
		fw.processOneEvent(mIdx, CounterZero)
	}
}

// evaluateAction builds the concrete Action for the state just entered,
// handles the state's action-limit counter (spec.md §4.4), and records it
// as the machine's pending action for this batch — later evaluations in the
// same batch simply overwrite it (spec.md §4.2 "last action wins").
// Admission control is applied once, at the end of the batch, to whichever
// action is left pending (see finalizeActions).
func (fw *Framework) evaluateAction(mIdx, stateIdx int, a StateAction) {
	rt := fw.runtimes[mIdx]

	if a.Limit != nil {
		if !rt.actionLimitArmed || rt.actionLimitStateIdx != stateIdx {
			rt.actionLimitArmed = true
			rt.actionLimitStateIdx = stateIdx
			rt.actionLimitRemaining = uint64(a.Limit.Sample(fw.src))
		}
		if rt.actionLimitRemaining == 0 {
			// The limit is exhausted (used up by earlier entries into this
			// state, or sampled as zero): this entry contributes a LimitReached event instead of
			// the action itself, so a transition keyed on LimitReached can
			// route the machine elsewhere.
			fw.processOneEvent(mIdx, LimitReached)
			return
		}
		rt.actionLimitRemaining--
	}

	switch a.Kind {
	case ActionCancel:
		if a.Timer == TimerAction || a.Timer == TimerAll {
			rt.actionTimerArmed = false
		}
		if a.Timer == TimerInternal || a.Timer == TimerAll {
			rt.internalTimerArmed = false
		}
		act := Cancel(mIdx, a.Timer)
		rt.pendingAction = &act
		rt.pendingActionSet = true

	case ActionSendPadding:
		timeout := sampledMicros(a.Timeout, fw.src)
		act := SendPadding(mIdx, timeout, a.Bypass, a.Replace)
		rt.pendingAction = &act
		rt.pendingActionSet = true
		rt.actionTimerArmed = true

	case ActionBlockOutgoing:
		timeout := sampledMicros(a.Timeout, fw.src)
		duration := sampledMicros(a.Duration, fw.src)
		act := BlockOutgoing(mIdx, timeout, duration, a.Bypass, a.Replace)
		rt.pendingAction = &act
		rt.pendingActionSet = true
		rt.actionTimerArmed = true

	case ActionUpdateTimer:
		duration := sampledMicros(a.Duration, fw.src)
		act := UpdateTimer(mIdx, duration, a.Replace)
		rt.pendingAction = &act
		rt.pendingActionSet = true
		rt.internalTimerArmed = true
		fw.workQueue = append(fw.workQueue, queuedEvent{event: TimerBegin, origin: mIdx})
	}
}

// sampledMicros draws a value in microseconds from d and converts it to a
// time.Duration, already clamped to one day by Action's constructors.
func sampledMicros(d interface{ Sample(sampler) float64 }, src sampler) time.Duration {
	return time.Duration(d.Sample(src)) * time.Microsecond
}

// finalizeActions applies admission control exactly once per machine, to
// whichever action (if any) is left pending after the whole batch and its
// synthetic follow-ups have been processed, then returns the admitted
// actions in machine-index order (spec.md §4.3, §5).
func (fw *Framework) finalizeActions(now time.Time) []Action {
	var out []Action
	for mIdx, rt := range fw.runtimes {
		if rt.halted || !rt.pendingActionSet || rt.pendingAction == nil {
			rt.pendingActionSet = false
			continue
		}
		act := *rt.pendingAction
		rt.pendingActionSet = false
		rt.pendingAction = nil

		m := fw.machines[mIdx]
		switch act.Kind {
		case ActionSendPadding:
			if !admitPadding(m, rt, fw) {
				rt.actionTimerArmed = false
				continue
			}
		case ActionBlockOutgoing:
			if !admitBlocking(m, rt, fw, now) {
				rt.actionTimerArmed = false
				continue
			}
			rt.blockedDuration += act.Duration
			fw.totalBlockedDuration += act.Duration
		}
		out = append(out, act)
	}
	return out
}
