// Package simulator replays a base packet trace through two Machine Engine
// instances — client and server — connected by a synthetic network,
// producing a defended trace (spec.md §4.5). It is a discrete-event
// simulator, not part of the core engine: everything here is a consumer of
// the root maybenot package, driven the way any other host would drive it.
package simulator

import (
	"time"

	"github.com/zoobzio/maybenot"
)

// Queue identifies which of the four priority queues a SimEvent belongs to.
type Queue uint8

const (
	QueueBase Queue = iota
	QueueBypassable
	QueueBlocking
	QueueInternal
)

// SimEvent is one entry in the simulator's timeline: an event, the side it
// occurred on, and (for TunnelSent events) the bypass/replace flags that
// decide how it interacts with that side's blocking window (spec.md §4.5).
//
//nolint:govet // fieldalignment: struct layout optimized for readability
type SimEvent struct {
	Time      time.Duration
	Event     maybenot.Event
	MachineID int
	HasMachine bool
	Client    bool // true if this event occurred at the client side
	Bypass    bool
	Replace   bool

	// armToken lets Cancel invalidate an already-queued event without a
	// heap removal: a side's arm counter is bumped on Cancel, and a popped
	// event whose token no longer matches its machine's current counter is
	// silently dropped instead of delivered.
	armToken uint64
}

func (e SimEvent) queueFor() Queue {
	switch e.Event {
	case maybenot.NormalSent:
		return QueueBase
	case maybenot.TunnelSent:
		if e.Bypass {
			return QueueBypassable
		}
		return QueueBlocking
	default:
		return QueueInternal
	}
}
