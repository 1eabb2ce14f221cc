package wire

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/klauspost/compress/flate"

	"github.com/zoobzio/maybenot"
	"github.com/zoobzio/maybenot/dist"
)

// Decode parses the newline-separated text format produced by Encode,
// accepting both Version1 (upgraded transparently) and Version2 machines
// (spec.md §4.6). Every decoded machine is run through
// maybenot.NewMachine, so a decoded result is always a valid machine.
func Decode(s string) ([]*maybenot.Machine, error) {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	out := make([]*maybenot.Machine, 0, len(lines))
	for i, line := range lines {
		if line == "" {
			continue
		}
		m, err := decodeOne(line)
		if err != nil {
			return nil, fmt.Errorf("wire: decode machine %d: %w", i, err)
		}
		out = append(out, m)
	}
	return out, nil
}

func decodeOne(line string) (*maybenot.Machine, error) {
	if len(line) < 1 {
		return nil, ErrInvalidEncoding
	}
	version, err := strconv.ParseUint(line[:1], 16, 8)
	if err != nil {
		return nil, fmt.Errorf("%w: bad version nibble", ErrInvalidEncoding)
	}
	if version != uint64(Version1) && version != uint64(Version2) {
		return nil, ErrInvalidVersion
	}

	compressed, err := hex.DecodeString(line[1:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}

	zr := flate.NewReader(bytes.NewReader(compressed))
	defer zr.Close()

	limited := io.LimitReader(zr, maxDecompressedSize+1)
	payload, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}
	if len(payload) > maxDecompressedSize {
		return nil, ErrTooLarge
	}

	var spec maybenot.Machine
	if version == uint64(Version1) {
		spec, err = decodePayload(payload, v1EventNum, false)
	} else {
		spec, err = decodePayload(payload, maybenot.EventNum, true)
	}
	if err != nil {
		return nil, err
	}

	return maybenot.NewMachine(spec)
}

// decodePayload reads the binary form written by encodePayload. eventNum is
// the number of event kinds the source version carries transitions for;
// Version1 payloads carry fewer, and the remaining event kinds are left
// with no transitions on upgrade.
func decodePayload(payload []byte, eventNum int, hasCounters bool) (maybenot.Machine, error) {
	r := &reader{buf: payload}

	m := maybenot.Machine{}
	m.AllowedPaddingPackets = r.u64()
	m.MaxPaddingFrac = r.f64()
	m.AllowedBlockedMicrosec = r.u64()
	m.MaxBlockingFrac = r.f64()
	stateCount := int(r.u16())
	if r.err != nil {
		return maybenot.Machine{}, fmt.Errorf("%w: %v", ErrInvalidEncoding, r.err)
	}
	if stateCount > maxStates {
		return maybenot.Machine{}, fmt.Errorf("%w: %d states", ErrTooLarge, stateCount)
	}

	m.States = make([]maybenot.State, stateCount)
	for i := range m.States {
		m.States[i] = maybenot.NewState()

		hasAction := r.byte_()
		if hasAction == 1 {
			a := maybenot.StateAction{}
			a.Kind = maybenot.ActionKind(r.byte_())
			a.Timer = maybenot.TimerKind(r.byte_())
			a.Bypass = r.bool_()
			a.Replace = r.bool_()
			a.Timeout = r.dist()
			a.Duration = r.dist()
			hasLimit := r.byte_()
			if hasLimit == 1 {
				d := r.dist()
				a.Limit = &d
			}
			m.States[i].Action = &a
		}

		if hasCounters {
			hasCounter := r.byte_()
			if hasCounter == 1 {
				u := maybenot.CounterUpdate{}
				u.Counter = maybenot.CounterID(r.byte_())
				u.Op = maybenot.CounterOp(r.byte_())
				u.Copy = r.bool_()
				u.Value = r.dist()
				m.States[i].CounterUpdate = &u
			}
		}

		for e := 0; e < eventNum; e++ {
			n := int(r.u16())
			trs := make([]maybenot.Transition, n)
			for j := 0; j < n; j++ {
				trs[j] = maybenot.Transition{
					Next:        int(r.u32()),
					Probability: float64(r.f32()),
				}
			}
			m.States[i].Transitions[e] = trs
		}
		if r.err != nil {
			return maybenot.Machine{}, fmt.Errorf("%w: %v", ErrInvalidEncoding, r.err)
		}
	}

	return m, nil
}

// reader is a small bounds-checked cursor over a decoded payload. Every
// read records the first error it hits in err and becomes a no-op
// afterwards, so callers can read a whole state's worth of fields and check
// err once.
type reader struct {
	buf []byte
	pos int
	err error
}

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.pos+n > len(r.buf) {
		r.err = io.ErrUnexpectedEOF
		return false
	}
	return true
}

func (r *reader) byte_() byte {
	if !r.need(1) {
		return 0
	}
	b := r.buf[r.pos]
	r.pos++
	return b
}

func (r *reader) bool_() bool {
	return r.byte_() != 0
}

func (r *reader) u16() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v
}

func (r *reader) u32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v
}

func (r *reader) u64() uint64 {
	if !r.need(8) {
		return 0
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v
}

func (r *reader) f32() float32 {
	return math.Float32frombits(r.u32())
}

func (r *reader) f64() float64 {
	return math.Float64frombits(r.u64())
}

func (r *reader) dist() dist.Dist {
	return dist.Dist{
		Kind:   dist.Kind(r.byte_()),
		Param1: r.f64(),
		Param2: r.f64(),
		Param3: r.f64(),
		Start:  r.f64(),
		Max:    r.f64(),
	}
}
