package maybenot

import (
	"testing"
	"time"

	"github.com/zoobzio/maybenot/dist"
	"github.com/zoobzio/maybenot/rng"
)

func fixedDist(v float64) dist.Dist {
	return dist.Dist{Kind: dist.Uniform, Param1: v, Param2: v}
}

// constSource always returns the same Float64/Uint64 value, for tests that
// need a transition to fire (or not fire) deterministically.
type constSource struct{ v float64 }

func (c constSource) Uint64() uint64   { return uint64(c.v * 1e9) }
func (c constSource) Float64() float64 { return c.v }

func TestFramework_NewFrameworkRejectsOutOfRangeFractions(t *testing.T) {
	m, err := NewMachine(Machine{States: []State{NewState()}})
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	if _, err := NewFramework([]*Machine{m}, -0.1, 0.5, time.Now(), constSource{0}); err != ErrPaddingLimit {
		t.Errorf("expected ErrPaddingLimit, got %v", err)
	}
	if _, err := NewFramework([]*Machine{m}, 0.5, 1.1, time.Now(), constSource{0}); err != ErrBlockingLimit {
		t.Errorf("expected ErrBlockingLimit, got %v", err)
	}
}

// machineSendsPaddingOnFirstNormalSent builds a two-state machine that
// transitions to a SendPadding state on the first NormalSent it observes.
func machineSendsPaddingOnFirstNormalSent(t *testing.T, allowedPadding uint64) *Machine {
	t.Helper()
	st0 := NewState()
	st0.AddTransition(NormalSent, 1, 1.0)

	st1 := State{
		Action: &StateAction{
			Kind:    ActionSendPadding,
			Timeout: fixedDist(20_000), // 20ms in microseconds
		},
	}

	m, err := NewMachine(Machine{
		AllowedPaddingPackets: allowedPadding,
		MaxPaddingFrac:        1.0,
		MaxBlockingFrac:       1.0,
		States:                []State{st0, st1},
	})
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	return m
}

func TestFramework_SinglePaddingAfterFirstSent(t *testing.T) {
	m := machineSendsPaddingOnFirstNormalSent(t, 10)
	now := time.Now()
	fw, err := NewFramework([]*Machine{m}, 1.0, 1.0, now, constSource{0})
	if err != nil {
		t.Fatalf("NewFramework: %v", err)
	}

	actions := fw.TriggerEvents([]TriggerEvent{NewEvent(NormalSent)}, now)
	if len(actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(actions))
	}
	if actions[0].Kind != ActionSendPadding {
		t.Errorf("expected ActionSendPadding, got %v", actions[0].Kind)
	}
	if actions[0].Timeout != 20*time.Millisecond {
		t.Errorf("expected 20ms timeout, got %v", actions[0].Timeout)
	}

	// A second NormalSent shouldn't re-fire the same already-taken transition
	// (machine is now in state 1, which has no NormalSent transitions).
	actions = fw.TriggerEvents([]TriggerEvent{NewEvent(NormalSent)}, now)
	if len(actions) != 0 {
		t.Errorf("expected no further actions, got %d", len(actions))
	}
}

func TestFramework_PaddingBudgetExhaustion(t *testing.T) {
	// Allow exactly zero padding packets and cap the fractional budget at
	// zero too, so the very first SendPadding is denied outright.
	st0 := NewState()
	st0.AddTransition(NormalSent, 1, 1.0)
	st1 := State{Action: &StateAction{Kind: ActionSendPadding, Timeout: fixedDist(1_000)}}

	m, err := NewMachine(Machine{
		AllowedPaddingPackets: 0,
		MaxPaddingFrac:        0,
		MaxBlockingFrac:       1.0,
		States:                []State{st0, st1},
	})
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}

	now := time.Now()
	fw, err := NewFramework([]*Machine{m}, 1.0, 1.0, now, constSource{0})
	if err != nil {
		t.Fatalf("NewFramework: %v", err)
	}
	actions := fw.TriggerEvents([]TriggerEvent{NewEvent(NormalSent)}, now)
	if len(actions) != 0 {
		t.Fatalf("expected the padding action to be denied by admission control, got %d actions", len(actions))
	}
}

func TestFramework_FrameworkLevelFractionCap(t *testing.T) {
	// Exercise admitPadding directly: once the framework-wide padding
	// fraction already exceeds maxPaddingFrac, a machine past its own
	// absolute budget is denied even though its own MaxPaddingFrac is
	// permissive (spec.md §4.3).
	m := &Machine{AllowedPaddingPackets: 0, MaxPaddingFrac: 1.0}
	rt := newRuntimeState()
	rt.normalSent = 1
	rt.paddingSent = 1 // already at its absolute budget of 0, frac 1/1=1 <= 1.0: machine-level passes

	now := time.Now()
	fw, err := NewFramework(nil, 0, 1.0, now, constSource{0})
	if err != nil {
		t.Fatalf("NewFramework: %v", err)
	}
	fw.totalNormalSent = 1
	fw.totalPaddingSent = 1 // framework frac 1/1=1 > maxPaddingFrac 0

	if admitPadding(m, rt, fw) {
		t.Error("expected admitPadding to deny once the framework-wide fraction exceeds maxPaddingFrac")
	}
}

func TestFramework_CancelStopsArmedTimer(t *testing.T) {
	st0 := NewState()
	st0.AddTransition(NormalSent, 1, 1.0)
	st1 := State{Action: &StateAction{Kind: ActionSendPadding, Timeout: fixedDist(50_000)}}
	st1.AddTransition(PaddingSent, 2, 1.0)
	st2 := State{Action: &StateAction{Kind: ActionCancel, Timer: TimerAction}}

	m, err := NewMachine(Machine{MaxPaddingFrac: 1, MaxBlockingFrac: 1, States: []State{st0, st1, st2}})
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	now := time.Now()
	fw, err := NewFramework([]*Machine{m}, 1, 1, now, constSource{0})
	if err != nil {
		t.Fatalf("NewFramework: %v", err)
	}

	actions := fw.TriggerEvents([]TriggerEvent{NewEvent(NormalSent)}, now)
	if len(actions) != 1 || actions[0].Kind != ActionSendPadding {
		t.Fatalf("expected SendPadding, got %+v", actions)
	}

	// Simulate the timeout elapsing and the host re-injecting PaddingSent,
	// which drives the machine to the Cancel state.
	actions = fw.TriggerEvents([]TriggerEvent{NewMachineEvent(PaddingSent, 0)}, now.Add(50*time.Millisecond))
	if len(actions) != 1 || actions[0].Kind != ActionCancel {
		t.Fatalf("expected Cancel, got %+v", actions)
	}

	// A stale TimerEnd arriving after the Cancel must be a no-op: the
	// machine is in state 2 which has no TimerEnd transitions, and the
	// engine's own armed-flag bookkeeping should already have cleared.
	actions = fw.TriggerEvents([]TriggerEvent{NewMachineEvent(TimerEnd, 0)}, now.Add(60*time.Millisecond))
	if len(actions) != 0 {
		t.Errorf("expected stale TimerEnd to be a no-op, got %+v", actions)
	}
}

func TestFramework_DeterministicReplay(t *testing.T) {
	run := func(seed uint64) []Action {
		m := machineSendsPaddingOnFirstNormalSent(t, 100)
		now := time.Now()
		fw, err := NewFramework([]*Machine{m}, 1, 1, now, rng.NewXoshiro256(seed))
		if err != nil {
			t.Fatalf("NewFramework: %v", err)
		}
		return fw.TriggerEvents([]TriggerEvent{NewEvent(NormalSent)}, now)
	}

	a := run(42)
	b := run(42)
	if len(a) != len(b) || len(a) != 1 {
		t.Fatalf("expected both runs to produce one action, got %d and %d", len(a), len(b))
	}
	if a[0].Timeout != b[0].Timeout {
		t.Errorf("same seed produced different timeouts: %v vs %v", a[0].Timeout, b[0].Timeout)
	}
}

func TestFramework_SignalReachesOtherMachines(t *testing.T) {
	signaler := NewState()
	signaler.AddTransition(NormalSent, StateSignal, 1.0)

	receiver0 := NewState()
	receiver1 := State{Action: &StateAction{Kind: ActionSendPadding, Timeout: fixedDist(5_000)}}
	receiver0.AddTransition(Signal, 1, 1.0)

	sm, err := NewMachine(Machine{MaxPaddingFrac: 1, MaxBlockingFrac: 1, States: []State{signaler}})
	if err != nil {
		t.Fatalf("NewMachine signaler: %v", err)
	}
	rm, err := NewMachine(Machine{MaxPaddingFrac: 1, MaxBlockingFrac: 1, States: []State{receiver0, receiver1}})
	if err != nil {
		t.Fatalf("NewMachine receiver: %v", err)
	}

	now := time.Now()
	fw, err := NewFramework([]*Machine{sm, rm}, 1, 1, now, constSource{0})
	if err != nil {
		t.Fatalf("NewFramework: %v", err)
	}
	actions := fw.TriggerEvents([]TriggerEvent{NewEvent(NormalSent)}, now)
	if len(actions) != 1 {
		t.Fatalf("expected 1 action (from the receiver machine), got %d: %+v", len(actions), actions)
	}
	if actions[0].MachineID != 1 {
		t.Errorf("expected the receiver (machine 1) to act, got machine %d", actions[0].MachineID)
	}
}
