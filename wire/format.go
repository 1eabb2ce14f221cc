// Package wire encodes and decodes machines to and from the compact text
// format used to move them between peers (spec.md §4.6). A machine is
// version(1 hex char) || hex(deflate(payload)), newline-separated when
// multiple machines are carried in one string.
package wire

import "errors"

// Version 2 is the canonical format this package produces. Version 1, a
// legacy format with fewer event kinds and no counter support, is still
// accepted as input and upgraded transparently on decode.
const (
	Version1 uint8 = 1
	Version2 uint8 = 2
)

// v1EventNum is the number of event kinds version 1 machines carry
// transitions for: NormalRecv through TimerEnd. LimitReached, CounterZero
// and Signal did not exist yet.
const v1EventNum = 10

// maxDecompressedSize and maxStates bound what a decoder will accept before
// it even attempts to interpret the bytes as a machine (spec.md §4.6).
const (
	maxDecompressedSize = 1 << 20 // 1 MiB
	maxStates           = 100_000
)

var (
	// ErrInvalidEncoding covers malformed hex, truncated payloads, and
	// decompression failures.
	ErrInvalidEncoding = errors.New("wire: invalid encoding")
	// ErrInvalidVersion is returned for any version byte other than 1 or 2.
	ErrInvalidVersion = errors.New("wire: invalid version")
	// ErrTooLarge is returned when a decompressed payload or its declared
	// state count exceeds the format's bounds.
	ErrTooLarge = errors.New("wire: payload too large")
)
