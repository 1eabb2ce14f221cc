package simulator

import "time"

// bottleneck enforces an optional per-side packets-per-second cap: a packet
// arriving faster than 1/pps after the previous one on the same side is
// pushed forward by the deficit (spec.md §4.5).
type bottleneck struct {
	ppsCap   float64 // 0 means disabled
	interval time.Duration
	lastSent time.Duration
	hasSent  bool
}

func newBottleneck(ppsCap float64) *bottleneck {
	b := &bottleneck{ppsCap: ppsCap}
	if ppsCap > 0 {
		b.interval = time.Duration(float64(time.Second) / ppsCap)
	}
	return b
}

// apply returns the time a packet scheduled at t actually departs, and
// whether the bottleneck pushed it forward at all.
func (b *bottleneck) apply(t time.Duration) (time.Duration, bool) {
	if b.ppsCap <= 0 {
		return t, false
	}
	actual := t
	if b.hasSent {
		earliest := b.lastSent + b.interval
		if actual < earliest {
			actual = earliest
		}
	}
	b.lastSent = actual
	b.hasSent = true
	return actual, actual != t
}
