package simulator

import "time"

// These three window constants are ported directly from
// maybenot-simulator/src/delay.rs, the original's exact aggregate-base-delay
// algorithm (spec.md §4.5).
const (
	baseWindow     = 1 * time.Millisecond
	bufferWindow   = 1 * time.Millisecond
	adjacentWindow = 100 * time.Millisecond
)

// blockedEvents returns every event currently buffered in a side's blocking
// and bypassable queues, for the window scans below. The original iterates
// both BinaryHeaps directly (queue order does not matter for a window scan).
func blockedEvents(s *sideQueues) []SimEvent {
	all := make([]SimEvent, 0, len(s.blocking)+len(s.bypassable))
	all = append(all, s.blocking...)
	all = append(all, s.bypassable...)
	return all
}

// aggDelayOnBlockingExpire computes the duration, if any, to add as
// aggregate base delay when a blocking window expires and its
// longest-queued (head) packet is released at expireTime. Ported from
// delay.rs's agg_delay_on_blocking_expire.
func aggDelayOnBlockingExpire(s *sideQueues, expireTime time.Duration, blockingHead SimEvent, aggregateBaseDelay time.Duration) (time.Duration, bool) {
	buffered := blockedEvents(s)

	tail := blockingHead.Time
	if len(buffered) > 2 {
		for _, e := range buffered {
			if e.Time-blockingHead.Time <= bufferWindow && e.Time > tail {
				tail = e.Time
			}
		}
	}

	if expireTime == tail {
		return 0, false
	}

	if base, ok := s.base.peek(); ok {
		baseTime := base.Time + aggregateBaseDelay
		if baseTime-blockingHead.Time <= baseWindow {
			return 0, false
		}
		return expireTime - tail, true
	}
	return expireTime - tail, true
}

// aggDelayOnPaddingBypassReplace computes the duration, if any, to add as
// aggregate base delay when a bypass-replace padding packet is sent through
// an active blocking window. Ported from delay.rs's
// agg_delay_on_padding_bypass_replace. Callers must have already removed
// blockingHead from its queue, as the original does before calling this.
func aggDelayOnPaddingBypassReplace(s *sideQueues, currentTime time.Duration, blockingHead SimEvent, aggregateBaseDelay time.Duration) (time.Duration, bool) {
	for _, e := range blockedEvents(s) {
		if e.Time-blockingHead.Time <= adjacentWindow {
			return 0, false
		}
	}

	if base, ok := s.base.peek(); ok {
		baseTime := base.Time + aggregateBaseDelay
		if baseTime-blockingHead.Time <= baseWindow {
			return 0, false
		}
	}

	return currentTime - blockingHead.Time, true
}

// shouldDelayedPacketPropAggDelay decides whether a bottleneck-delayed
// packet's extra delay should also propagate into the side's aggregate base
// delay. Ported from delay.rs's should_delayed_packet_prop_agg_delay.
func shouldDelayedPacketPropAggDelay(s *sideQueues, delayedPacket SimEvent, aggregateBaseDelay time.Duration) bool {
	for _, e := range blockedEvents(s) {
		if e.Time-delayedPacket.Time <= adjacentWindow {
			return false
		}
	}

	if base, ok := s.base.peek(); ok {
		baseTime := base.Time + aggregateBaseDelay
		if baseTime-delayedPacket.Time <= baseWindow {
			return false
		}
	}
	return true
}
