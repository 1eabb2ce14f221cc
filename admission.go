package maybenot

import "time"

// admitPadding decides whether a SendPadding action from machine m (with
// runtime rt) may proceed, given the framework-wide counters fw tracks.
// Padding is allowed if the machine's absolute budget isn't exhausted yet,
// or else both the per-machine and framework-wide fractional caps hold
// (spec.md §4.3). Checked only once the absolute budget is gone, per
// spec.md §3. A zero MaxPaddingFrac admits nothing beyond the absolute
// budget.
func admitPadding(m *Machine, rt *runtimeState, fw *Framework) bool {
	if rt.paddingSent < m.AllowedPaddingPackets {
		return true
	}
	machineFrac := float64(rt.paddingSent) / float64(max64(rt.normalSent, 1))
	if m.MaxPaddingFrac == 0 || machineFrac > m.MaxPaddingFrac {
		return false
	}
	frameworkFrac := float64(fw.totalPaddingSent) / float64(max64(fw.totalNormalSent, 1))
	return frameworkFrac <= fw.maxPaddingFrac
}

// admitBlocking decides whether a BlockOutgoing action from machine m may
// proceed, mirroring admitPadding's structure against the blocking budget
// and the connection's age at `now` (spec.md §4.3).
func admitBlocking(m *Machine, rt *runtimeState, fw *Framework, now time.Time) bool {
	allowed := time.Duration(m.AllowedBlockedMicrosec) * time.Microsecond
	if rt.blockedDuration < allowed {
		return true
	}
	age := now.Sub(fw.connectionStart)
	if age <= 0 {
		age = time.Nanosecond
	}
	machineFrac := float64(rt.blockedDuration) / float64(age)
	if machineFrac > m.MaxBlockingFrac {
		return false
	}
	frameworkFrac := float64(fw.totalBlockedDuration) / float64(age)
	return frameworkFrac <= fw.maxBlockingFrac
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
