package maybenot

import "time"

// VERSION is the highest machine wire-format version this package produces
// and understands. See package wire for the encoder/decoder.
const VERSION uint8 = 2

// MaxDecompressedSize bounds the decompressed size of a wire-encoded
// machine payload. Decoders reject anything larger, before attempting to
// interpret the bytes as a machine.
const MaxDecompressedSize = 1 << 20 // 1 MiB

// EventNum is the number of distinct event kinds in the closed set defined
// by spec.md §3.
const EventNum = 13

// StateMax is the largest number of states a single machine may declare.
// It exists purely as a resource-exhaustion guard on untrusted input.
const StateMax = 100_000

// MaxSampledTimeout, MaxSampledTimerDuration and MaxSampledBlockDuration are
// hard ceilings (in microseconds) on any value sampled for a timeout or
// duration, regardless of the configured Dist. All three happen to share the
// same one-day ceiling.
const (
	MaxSampledTimeout       = 24 * 60 * 60 * 1_000_000
	MaxSampledTimerDuration = 24 * 60 * 60 * 1_000_000
	MaxSampledBlockDuration = 24 * 60 * 60 * 1_000_000
)

// maxSampledMicros is the shared ceiling applied uniformly to every sampled
// timeout/duration value, expressed as a time.Duration for use against the
// stdlib clock types. Sampled action limits are not clamped by it.
const maxSampledMicros = 24 * time.Hour

// StateEnd and StateSignal are reserved transition targets (pseudo-states).
// StateEnd halts a machine permanently; StateSignal broadcasts a Signal
// event to every other running machine without changing the current state.
// Both borrow the "all ones" / "all ones minus one" convention from the
// original Rust implementation so that a validated real state index can
// never collide with either sentinel.
const (
	StateEnd    = 1<<32 - 1
	StateSignal = StateEnd - 1
)

// ConnectedMinEdgeProbability is the minimum transition probability that
// counts as a "guaranteed" edge for the advisory topology liveness check in
// topology.go. It belongs conceptually to machine generation (spec.md §9)
// but is reproduced here since it defines what a "valid" defense topology
// looks like.
const ConnectedMinEdgeProbability = 0.05
