package simulator

import (
	"container/heap"
	"time"
)

// eventHeap is a min-heap of SimEvent ordered by time, then by event kind —
// grounded on the eventHeap pattern in
// miretskiy-rollingstone/simulator/event_queue.go, adapted from an
// interface-typed Event to the concrete SimEvent value used here.
type eventHeap []SimEvent

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].Time != h[j].Time {
		return h[i].Time < h[j].Time
	}
	return h[i].Event < h[j].Event
}
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x interface{}) {
	*h = append(*h, x.(SimEvent))
}

func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

func (h eventHeap) peek() (SimEvent, bool) {
	if len(h) == 0 {
		return SimEvent{}, false
	}
	return h[0], true
}

// sideQueues holds the four priority sub-queues for one side of the
// connection (spec.md §4.5): base (NormalSent from the parsed trace),
// bypassable and blocking (TunnelSent split by its bypass flag), and
// internal (everything else, including self-events the engine raises).
type sideQueues struct {
	base       eventHeap
	bypassable eventHeap
	blocking   eventHeap
	internal   eventHeap
}

func newSideQueues() *sideQueues {
	sq := &sideQueues{}
	heap.Init(&sq.base)
	heap.Init(&sq.bypassable)
	heap.Init(&sq.blocking)
	heap.Init(&sq.internal)
	return sq
}

func (s *sideQueues) push(e SimEvent) {
	switch e.queueFor() {
	case QueueBase:
		heap.Push(&s.base, e)
	case QueueBypassable:
		heap.Push(&s.bypassable, e)
	case QueueBlocking:
		heap.Push(&s.blocking, e)
	default:
		heap.Push(&s.internal, e)
	}
}

func (s *sideQueues) len() int {
	return s.base.Len() + s.bypassable.Len() + s.blocking.Len() + s.internal.Len()
}

// EventQueue is the simulator's full event store: one sideQueues per side.
// Entries are owned copies (spec.md §9 "Ownership").
type EventQueue struct {
	client *sideQueues
	server *sideQueues
}

// NewEventQueue returns an empty event store.
func NewEventQueue() *EventQueue {
	return &EventQueue{client: newSideQueues(), server: newSideQueues()}
}

// Push adds an event to the store, routed to its side and queue by
// SimEvent.queueFor.
func (q *EventQueue) Push(e SimEvent) {
	if e.Client {
		q.client.push(e)
	} else {
		q.server.push(e)
	}
}

// Len returns the total number of pending events across both sides.
func (q *EventQueue) Len() int {
	return q.client.len() + q.server.len()
}

// candidate is the earliest event found for one side, tagged with its
// queue and the base-queue's adjusted (delay-shifted) fire time.
type candidate struct {
	event SimEvent
	queue Queue
	at    time.Duration
	ok    bool
}

// popSide removes the side's event at queue q, applying the base queue's
// delay-sum adjustment to its returned Time.
func popSide(s *sideQueues, q Queue, delaySum time.Duration) SimEvent {
	var h *eventHeap
	switch q {
	case QueueBypassable:
		h = &s.bypassable
	case QueueBlocking:
		h = &s.blocking
	case QueueInternal:
		h = &s.internal
	default:
		h = &s.base
	}
	e := heap.Pop(h).(SimEvent)
	if q == QueueBase {
		e.Time += delaySum
	}
	return e
}
