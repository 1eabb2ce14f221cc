package simulator

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/zoobzio/maybenot"
)

// ParseTrace parses a base trace into an EventQueue (spec.md §6). Each line
// is `timestamp_ns,("s"|"r")`: "s" is a packet the client sends (its own
// NormalSent, timestamped by the client's schedule); "r" is a packet the
// client receives, i.e. the server's own NormalSent on its independent
// schedule, which the network later delivers to the client. Both become
// NormalSent events in each side's base queue — the only place a base trace
// enters the simulator (spec.md §4.5).
func ParseTrace(trace string) (*EventQueue, error) {
	q := NewEventQueue()
	lines := strings.Split(strings.TrimRight(trace, "\n"), "\n")

	n := 0
	for i, line := range lines {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ",", 2)
		if len(parts) < 2 {
			return nil, fmt.Errorf("simulator: trace line %d: missing direction field", i)
		}
		ns, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil || ns < 0 {
			return nil, fmt.Errorf("simulator: trace line %d: invalid timestamp %q", i, parts[0])
		}
		dir := parts[1]
		if len(dir) == 0 {
			return nil, fmt.Errorf("simulator: trace line %d: empty direction field", i)
		}

		ev := SimEvent{
			Time:  time.Duration(ns),
			Event: maybenot.NormalSent,
		}
		switch dir[0] {
		case 's':
			ev.Client = true
		case 'r':
			ev.Client = false
		default:
			return nil, fmt.Errorf("simulator: trace line %d: unknown direction %q", i, dir)
		}
		q.Push(ev)
		n++
	}

	if n == 0 {
		return nil, fmt.Errorf("simulator: empty base trace")
	}
	return q, nil
}
