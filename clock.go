package maybenot

import "github.com/zoobzio/clockz"

// Clock provides time operations for deterministic testing. The engine
// itself never reads the clock (spec.md §5: "now" is always supplied by the
// caller) — these aliases exist for the hostutil package, which does own a
// wall-clock loop that arms and cancels Action timeouts.
type Clock = clockz.Clock

// Timer represents a single event timer.
type Timer = clockz.Timer

// Ticker delivers ticks at intervals.
type Ticker = clockz.Ticker

// RealClock is the default Clock using standard time.
var RealClock Clock = clockz.RealClock
