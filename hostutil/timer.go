// Package hostutil wires a Framework to wall-clock time. The engine itself
// never touches a clock (spec.md §5: every call is handed "now" by its
// caller) — something still has to arm the Action timeouts it asks for and
// call back in with TimerEnd when they fire. Host is that integration,
// built the way the teacher's Batcher drives a single debounced Timer
// (zoobzio-streamz/batcher.go), generalized to one timer per machine.
package hostutil

import (
	"context"
	"sync"
	"time"

	"github.com/zoobzio/maybenot"
)

// armState tracks the single outstanding timer for one machine. gen is
// bumped on every new arm and on Cancel, so a timer that fires after being
// superseded is recognized and dropped instead of delivered.
type armState struct {
	gen     uint64
	timer   maybenot.Timer
	padding bool
}

// Host drives one Framework against real time: Trigger feeds it external
// events, arms whatever Action timers come back, and re-injects TimerEnd
// (plus PaddingSent, for a SendPadding action) when they elapse.
type Host struct {
	mu    sync.Mutex
	fw    *maybenot.Framework
	clock maybenot.Clock
	arm   map[int]armState
}

// NewHost returns a Host driving fw. Use RealClock in production and a
// clockz fake in tests, same split the engine's own callers use.
func NewHost(fw *maybenot.Framework, clock maybenot.Clock) *Host {
	return &Host{fw: fw, clock: clock, arm: make(map[int]armState)}
}

// Trigger feeds batch to the Framework and arms/cancels the machine timers
// its returned Actions imply. Safe for concurrent use with timer fires.
func (h *Host) Trigger(ctx context.Context, batch []maybenot.TriggerEvent, now time.Time) []maybenot.Action {
	h.mu.Lock()
	actions := h.fw.TriggerEvents(batch, now)
	h.mu.Unlock()

	h.applyActions(ctx, actions)
	return actions
}

func (h *Host) applyActions(ctx context.Context, actions []maybenot.Action) {
	for _, a := range actions {
		switch a.Kind {
		case maybenot.ActionCancel:
			h.stop(a.MachineID)
		case maybenot.ActionSendPadding:
			h.schedule(ctx, a.MachineID, a.Timeout, true)
		case maybenot.ActionBlockOutgoing:
			h.schedule(ctx, a.MachineID, a.Timeout, false)
		case maybenot.ActionUpdateTimer:
			h.schedule(ctx, a.MachineID, a.Duration, false)
		}
	}
}

func (h *Host) stop(machineID int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if st, ok := h.arm[machineID]; ok && st.timer != nil {
		st.timer.Stop()
	}
	h.arm[machineID] = armState{gen: h.arm[machineID].gen + 1}
}

// schedule stops any timer already running for machineID (the teacher's
// "stop old timer if exists" rule in batcher.go, per machine instead of
// once globally) and arms a new one.
func (h *Host) schedule(ctx context.Context, machineID int, d time.Duration, padding bool) {
	h.mu.Lock()
	if st, ok := h.arm[machineID]; ok && st.timer != nil {
		st.timer.Stop()
	}
	gen := h.arm[machineID].gen + 1
	timer := h.clock.NewTimer(d)
	h.arm[machineID] = armState{gen: gen, timer: timer, padding: padding}
	h.mu.Unlock()

	go h.wait(ctx, machineID, gen, timer, padding)
}

func (h *Host) wait(ctx context.Context, machineID int, gen uint64, timer maybenot.Timer, padding bool) {
	select {
	case at := <-timer.C():
		h.fire(ctx, machineID, gen, at, padding)
	case <-ctx.Done():
	}
}

func (h *Host) fire(ctx context.Context, machineID int, gen uint64, at time.Time, padding bool) {
	h.mu.Lock()
	if h.arm[machineID].gen != gen {
		h.mu.Unlock()
		return // superseded by a later action or a Cancel
	}
	batch := []maybenot.TriggerEvent{maybenot.NewMachineEvent(maybenot.TimerEnd, machineID)}
	if padding {
		batch = append(batch, maybenot.NewMachineEvent(maybenot.PaddingSent, machineID))
	}
	actions := h.fw.TriggerEvents(batch, at)
	h.mu.Unlock()

	h.applyActions(ctx, actions)
}

// Stop cancels every outstanding timer, for shutdown. It does not touch the
// underlying Framework.
func (h *Host) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, st := range h.arm {
		if st.timer != nil {
			st.timer.Stop()
		}
		h.arm[id] = armState{gen: st.gen + 1}
	}
}
