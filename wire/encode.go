package wire

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/klauspost/compress/flate"

	"github.com/zoobzio/maybenot"
	"github.com/zoobzio/maybenot/dist"
)

// Encode serializes one or more machines into the newline-separated text
// format (spec.md §4.6). Every machine is written at Version2.
func Encode(machines ...*maybenot.Machine) (string, error) {
	lines := make([]string, len(machines))
	for i, m := range machines {
		line, err := encodeOne(m)
		if err != nil {
			return "", fmt.Errorf("wire: encode machine %d: %w", i, err)
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n"), nil
}

func encodeOne(m *maybenot.Machine) (string, error) {
	payload, err := encodePayload(m)
	if err != nil {
		return "", err
	}

	var compressed bytes.Buffer
	zw, err := flate.NewWriter(&compressed, flate.DefaultCompression)
	if err != nil {
		return "", err
	}
	if _, err := zw.Write(payload); err != nil {
		return "", err
	}
	if err := zw.Close(); err != nil {
		return "", err
	}

	return strconv.FormatUint(uint64(Version2), 16) + hex.EncodeToString(compressed.Bytes()), nil
}

// encodePayload writes the deterministic binary form of m: the four budget
// fields, a state count, then each state's action, counter update, and
// dense transitions table (spec.md §4.6).
func encodePayload(m *maybenot.Machine) ([]byte, error) {
	if len(m.States) > maxStates {
		return nil, fmt.Errorf("%w: %d states", ErrTooLarge, len(m.States))
	}

	var buf bytes.Buffer
	writeU64(&buf, m.AllowedPaddingPackets)
	writeF64(&buf, m.MaxPaddingFrac)
	writeU64(&buf, m.AllowedBlockedMicrosec)
	writeF64(&buf, m.MaxBlockingFrac)
	writeU16(&buf, uint16(len(m.States)))

	for _, st := range m.States {
		writeAction(&buf, st.Action)
		writeCounterUpdate(&buf, st.CounterUpdate)
		for e := 0; e < maybenot.EventNum; e++ {
			trs := st.Transitions[e]
			writeU16(&buf, uint16(len(trs)))
			for _, tr := range trs {
				writeU32(&buf, uint32(tr.Next))
				writeF32(&buf, float32(tr.Probability))
			}
		}
	}
	return buf.Bytes(), nil
}

func writeAction(buf *bytes.Buffer, a *maybenot.StateAction) {
	if a == nil {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	buf.WriteByte(byte(a.Kind))
	buf.WriteByte(byte(a.Timer))
	writeBool(buf, a.Bypass)
	writeBool(buf, a.Replace)
	writeDist(buf, a.Timeout)
	writeDist(buf, a.Duration)
	if a.Limit == nil {
		buf.WriteByte(0)
	} else {
		buf.WriteByte(1)
		writeDist(buf, *a.Limit)
	}
}

func writeCounterUpdate(buf *bytes.Buffer, u *maybenot.CounterUpdate) {
	if u == nil {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	buf.WriteByte(byte(u.Counter))
	buf.WriteByte(byte(u.Op))
	writeBool(buf, u.Copy)
	writeDist(buf, u.Value)
}

func writeDist(buf *bytes.Buffer, d dist.Dist) {
	buf.WriteByte(byte(d.Kind))
	writeF64(buf, d.Param1)
	writeF64(buf, d.Param2)
	writeF64(buf, d.Param3)
	writeF64(buf, d.Start)
	writeF64(buf, d.Max)
}

func writeBool(buf *bytes.Buffer, b bool) {
	if b {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeF32(buf *bytes.Buffer, v float32) {
	writeU32(buf, math.Float32bits(v))
}

func writeF64(buf *bytes.Buffer, v float64) {
	writeU64(buf, math.Float64bits(v))
}
