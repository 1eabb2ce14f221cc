package simulator

import (
	"fmt"
	"math"
	"time"

	"github.com/zoobzio/maybenot"
	"github.com/zoobzio/maybenot/rng"
)

// noBlockUntil is the sentinel blockingUntil value meaning "this side has
// never been blocked" — chosen so every real event time compares greater
// than it.
const noBlockUntil = time.Duration(math.MinInt64)

// simEpoch anchors the Duration-based timeline to an absolute time.Time,
// since Framework.TriggerEvents takes a wall-clock "now" (spec.md §5) but
// the simulator itself works entirely in offsets from connection start.
var simEpoch = time.Unix(0, 0)

// pendingAction remembers what an armed action timer will do when its
// TimerEnd fires. BlockOutgoing's window is set up at admission time, not
// at expiry, so only SendPadding needs a remembered payload.
type pendingAction struct {
	kind    maybenot.ActionKind
	bypass  bool
	replace bool
}

// side holds everything SimAdvanced owns for one endpoint: its queues, its
// Framework, and the blocking/bottleneck/cancellation bookkeeping the
// simulator layers on top of the engine (spec.md §4.5).
type side struct {
	client    bool
	q         *sideQueues
	fw        *maybenot.Framework
	bn        *bottleneck
	linkTrace []LinkTraceSample

	blockingUntil      time.Duration
	blockingBypassable bool
	delaySum           time.Duration

	armCounter map[int]uint64
	pending    map[int]pendingAction
}

func newSide(client bool, q *sideQueues, fw *maybenot.Framework, bn *bottleneck, linkTrace []LinkTraceSample) *side {
	return &side{
		client:        client,
		q:             q,
		fw:            fw,
		bn:            bn,
		linkTrace:     linkTrace,
		blockingUntil: noBlockUntil,
		armCounter:    make(map[int]uint64),
		pending:       make(map[int]pendingAction),
	}
}

// linkTraceDelay returns the extra delay in effect at t: the Delay of the
// latest sample whose Time is <= t, or 0 if t precedes every sample or the
// side has no link trace (spec.md §4.5 "optional link-trace playback").
// linkTrace is assumed sorted ascending by Time, as produced by a recorded
// network-condition file.
func (s *side) linkTraceDelay(t time.Duration) time.Duration {
	if len(s.linkTrace) == 0 {
		return 0
	}
	lo, hi := 0, len(s.linkTrace)
	for lo < hi {
		mid := (lo + hi) / 2
		if s.linkTrace[mid].Time <= t {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		return 0
	}
	return s.linkTrace[lo-1].Delay
}

// depart applies the bottleneck model and link-trace playback to a packet
// whose selection logic computed effective as its departure time, and feeds
// any resulting forward push into the side's aggregate base delay when
// shouldDelayedPacketPropAggDelay says no adjacent packet already masks it
// (spec.md §4.5's bottleneck rule: "that forward-push propagates to
// aggregate base delay when no adjacent packets would mask it").
func (s *side) depart(effective time.Duration) time.Duration {
	actual, pushed := s.bn.apply(effective)
	if extra := s.linkTraceDelay(actual); extra > 0 {
		actual += extra
		pushed = true
	}
	if pushed {
		delayed := SimEvent{Time: effective}
		if shouldDelayedPacketPropAggDelay(s.q, delayed, s.delaySum) {
			s.delaySum += actual - effective
		}
	}
	return actual
}

func (s *side) arm(machineID int, kind maybenot.ActionKind, bypass, replace bool) uint64 {
	s.armCounter[machineID]++
	s.pending[machineID] = pendingAction{kind: kind, bypass: bypass, replace: replace}
	return s.armCounter[machineID]
}

func (s *side) cancel(machineID int) {
	s.armCounter[machineID]++
	delete(s.pending, machineID)
}

// feed delivers a batch to this side's Framework at offset t and recursively
// applies whatever actions come back.
func (s *side) feed(batch []maybenot.TriggerEvent, t time.Duration) []SimEvent {
	actions := s.fw.TriggerEvents(batch, simEpoch.Add(t))
	return s.applyActions(actions, t)
}

// applyActions schedules the timers/blocking windows an admitted action
// implies and returns any output-worthy synthetic events it produced
// immediately (spec.md §4.5).
func (s *side) applyActions(actions []maybenot.Action, t time.Duration) []SimEvent {
	var out []SimEvent
	for _, a := range actions {
		switch a.Kind {
		case maybenot.ActionCancel:
			s.cancel(a.MachineID)

		case maybenot.ActionSendPadding:
			token := s.arm(a.MachineID, a.Kind, a.Bypass, a.Replace)
			s.q.push(SimEvent{
				Time: t + a.Timeout, Event: maybenot.TimerEnd,
				MachineID: a.MachineID, HasMachine: true, Client: s.client,
				armToken: token,
			})

		case maybenot.ActionBlockOutgoing:
			token := s.arm(a.MachineID, a.Kind, a.Bypass, a.Replace)
			s.q.push(SimEvent{
				Time: t + a.Timeout, Event: maybenot.TimerEnd,
				MachineID: a.MachineID, HasMachine: true, Client: s.client,
				armToken: token,
			})
			until := t + a.Duration
			if s.blockingUntil != noBlockUntil && s.blockingUntil > until {
				until = s.blockingUntil
			}
			s.blockingUntil = until
			s.blockingBypassable = a.Bypass
			s.q.push(SimEvent{Time: until, Event: maybenot.BlockingEnd, Client: s.client})

			out = append(out, SimEvent{Time: t, Event: maybenot.BlockingBegin, MachineID: a.MachineID, HasMachine: true, Client: s.client})
			out = append(out, s.feed([]maybenot.TriggerEvent{maybenot.NewMachineEvent(maybenot.BlockingBegin, a.MachineID)}, t)...)

		case maybenot.ActionUpdateTimer:
			token := s.arm(a.MachineID, a.Kind, false, a.Replace)
			s.q.push(SimEvent{
				Time: t + a.Duration, Event: maybenot.TimerEnd,
				MachineID: a.MachineID, HasMachine: true, Client: s.client,
				armToken: token,
			})
			out = append(out, SimEvent{Time: t, Event: maybenot.TimerBegin, MachineID: a.MachineID, HasMachine: true, Client: s.client})
		}
	}
	return out
}

// scheduleArrival enqueues the network-delayed delivery of a departing
// packet on the far side: the semantic receive event plus the generic
// TunnelRecv every machine observes (spec.md §4.5).
func scheduleArrival(other *side, kind maybenot.Event, departTime, delay time.Duration) {
	arrival := departTime + delay
	other.q.push(SimEvent{Time: arrival, Event: kind, Client: other.client})
	other.q.push(SimEvent{Time: arrival, Event: maybenot.TunnelRecv, Client: other.client})
}

// handle processes one popped event on this side and returns the output
// trace entries it produces. raw carries the event's originally stored
// fields (needed for the delay-window math); effective is the time
// selectForSide computed for it (post blocking-deferment, pre-bottleneck).
func (s *side) handle(raw SimEvent, effective time.Duration, q Queue, other *side, netDelay time.Duration) []SimEvent {
	switch raw.Event {
	case maybenot.NormalSent:
		actual := s.depart(effective)
		out := []SimEvent{{Time: actual, Event: maybenot.NormalSent, Client: s.client}}
		out = append(out, s.feed([]maybenot.TriggerEvent{maybenot.NewEvent(maybenot.NormalSent)}, actual)...)
		scheduleArrival(other, maybenot.NormalRecv, actual, netDelay)
		return out

	case maybenot.TunnelSent:
		actual := s.departPadding(raw, effective, q)
		out := []SimEvent{{Time: actual, Event: maybenot.PaddingSent, MachineID: raw.MachineID, HasMachine: true, Client: s.client}}
		out = append(out, s.feed([]maybenot.TriggerEvent{
			maybenot.NewEvent(maybenot.TunnelSent),
			maybenot.NewMachineEvent(maybenot.PaddingSent, raw.MachineID),
		}, actual)...)
		scheduleArrival(other, maybenot.PaddingRecv, actual, netDelay)
		return out

	case maybenot.TimerEnd:
		if s.armCounter[raw.MachineID] != raw.armToken {
			return nil // superseded by a later action or a Cancel; no-op
		}
		rec, hadPending := s.pending[raw.MachineID]
		delete(s.pending, raw.MachineID)

		out := []SimEvent{{Time: effective, Event: maybenot.TimerEnd, MachineID: raw.MachineID, HasMachine: true, Client: s.client}}
		out = append(out, s.feed([]maybenot.TriggerEvent{maybenot.NewMachineEvent(maybenot.TimerEnd, raw.MachineID)}, effective)...)

		if hadPending && rec.kind == maybenot.ActionSendPadding {
			s.q.push(SimEvent{
				Time: effective, Event: maybenot.TunnelSent,
				MachineID: raw.MachineID, HasMachine: true, Client: s.client,
				Bypass: rec.bypass, Replace: rec.replace,
			})
		}
		return out

	case maybenot.BlockingEnd:
		out := []SimEvent{{Time: effective, Event: maybenot.BlockingEnd, Client: s.client}}
		out = append(out, s.feed([]maybenot.TriggerEvent{maybenot.NewEvent(maybenot.BlockingEnd)}, effective)...)
		return out

	case maybenot.NormalRecv, maybenot.PaddingRecv:
		out := []SimEvent{{Time: effective, Event: raw.Event, Client: s.client}}
		out = append(out, s.feed([]maybenot.TriggerEvent{maybenot.NewEvent(raw.Event)}, effective)...)
		return out

	case maybenot.TunnelRecv:
		return s.feed([]maybenot.TriggerEvent{maybenot.NewEvent(maybenot.TunnelRecv)}, effective)

	default:
		return nil
	}
}

// departPadding applies the aggregate-base-delay corrections (spec.md §4.5,
// ported in delay.go) and the bottleneck model to a padding packet leaving
// the blocking or bypassable queue, returning its actual departure time.
func (s *side) departPadding(raw SimEvent, effective time.Duration, q Queue) time.Duration {
	switch {
	case q == QueueBlocking && effective > raw.Time:
		if delta, ok := aggDelayOnBlockingExpire(s.q, effective, raw, s.delaySum); ok {
			s.delaySum += delta
		}
	case q == QueueBypassable && raw.Bypass && raw.Replace:
		if head, ok := s.q.blocking.peek(); ok {
			popSide(s.q, QueueBlocking, 0) // the queued non-bypassable packet this padding replaces
			if delta, ok2 := aggDelayOnPaddingBypassReplace(s.q, effective, head, s.delaySum); ok2 {
				s.delaySum += delta
			}
		}
	}
	actual := s.depart(effective)
	return actual
}

// selectForSide finds the side's globally earliest-firing candidate,
// applying the blocking-deferment rules (spec.md §4.5 selection rules 1-3):
// a non-bypassable TunnelSent queued during an active blocking window fires
// no earlier than the window's end; a bypass-flagged one fires at its own
// time only if the active window itself was started with bypass=true.
func selectForSide(s *side) candidate {
	best := candidate{}
	consider := func(e SimEvent, ok bool, q Queue, at time.Duration) {
		if !ok {
			return
		}
		if !best.ok || at < best.at || (at == best.at && q == QueueBase) {
			best = candidate{event: e, queue: q, at: at, ok: true}
		}
	}

	if e, ok := s.q.internal.peek(); ok {
		consider(e, ok, QueueInternal, e.Time)
	}
	if e, ok := s.q.base.peek(); ok {
		consider(e, ok, QueueBase, e.Time+s.delaySum)
	}
	if e, ok := s.q.blocking.peek(); ok {
		at := e.Time
		if e.Time < s.blockingUntil {
			at = s.blockingUntil
		}
		consider(e, ok, QueueBlocking, at)
	}
	if e, ok := s.q.bypassable.peek(); ok {
		at := e.Time
		if e.Time < s.blockingUntil && !s.blockingBypassable {
			at = s.blockingUntil
		}
		consider(e, ok, QueueBypassable, at)
	}
	return best
}

// SimAdvanced replays store through two Framework instances — one per
// machine list — connected by a synthetic network, returning the resulting
// timeline (spec.md §4.5, §6 sim_advanced). rngSeed derives each side's
// Xoshiro256** source (transition draws and distribution sampling) so a run
// is fully reproducible from one
// seed, even though every Framework owns an independent source (spec.md
// §5).
func SimAdvanced(clientMachines, serverMachines []*maybenot.Machine, store *EventQueue, args Args, rngSeed uint64) ([]SimEvent, error) {
	if args.Network.Delay < 0 {
		return nil, fmt.Errorf("simulator: network delay must not be negative, got %s", args.Network.Delay)
	}

	clientSrc := rng.NewXoshiro256(rngSeed)
	serverSrc := rng.NewXoshiro256(rngSeed ^ 0x9E3779B97F4A7C15)

	clientFw, err := maybenot.NewFramework(clientMachines, 1.0, 1.0, simEpoch, clientSrc)
	if err != nil {
		return nil, err
	}
	serverFw, err := maybenot.NewFramework(serverMachines, 1.0, 1.0, simEpoch, serverSrc)
	if err != nil {
		return nil, err
	}

	client := newSide(true, store.client, clientFw, newBottleneck(args.Network.PPSCap), args.LinkTrace)
	server := newSide(false, store.server, serverFw, newBottleneck(args.Network.PPSCap), args.LinkTrace)

	var out []SimEvent
	processed := 0

	for {
		if args.MaxEvents > 0 && processed >= args.MaxEvents {
			break
		}
		cc := selectForSide(client)
		sc := selectForSide(server)
		if !cc.ok && !sc.ok {
			break
		}

		var pick, peer *side
		var cand candidate
		if cc.ok && (!sc.ok || cc.at <= sc.at) {
			pick, peer, cand = client, server, cc
		} else {
			pick, peer, cand = server, client, sc
		}

		raw := popSide(pick.q, cand.queue, 0)
		processed++

		out = append(out, pick.handle(raw, cand.at, cand.queue, peer, args.Network.Delay)...)

		if !args.ContinueAfterAllNormal && client.q.base.Len() == 0 && server.q.base.Len() == 0 {
			break
		}
	}

	if args.OnlyPackets {
		filtered := out[:0]
		for _, e := range out {
			if isPacketEvent(e.Event) {
				filtered = append(filtered, e)
			}
		}
		out = filtered
	}
	return out, nil
}

func isPacketEvent(e maybenot.Event) bool {
	switch e {
	case maybenot.NormalRecv, maybenot.PaddingRecv, maybenot.NormalSent, maybenot.PaddingSent:
		return true
	default:
		return false
	}
}
