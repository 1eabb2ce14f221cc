package maybenot

import "fmt"

// Error kinds returned by Machine and Framework construction. Runtime paths
// (Framework.TriggerEvents) never return an error: admission denials, halted
// machines and zero-probability fall-through are silent by design (spec.md
// §7).
var (
	// ErrPaddingLimit is returned when a framework-level max padding
	// fraction falls outside [0.0, 1.0].
	ErrPaddingLimit = fmt.Errorf("max_padding_frac has to be between [0.0, 1.0]")

	// ErrBlockingLimit is returned when a framework-level max blocking
	// fraction falls outside [0.0, 1.0].
	ErrBlockingLimit = fmt.Errorf("max_blocking_frac has to be between [0.0, 1.0]")
)

// InvalidMachineError reports a machine that fails validation. Reason names
// the violating field or state index, so callers can surface something more
// useful than "invalid machine".
type InvalidMachineError struct {
	Reason string
}

func (e *InvalidMachineError) Error() string {
	return fmt.Sprintf("invalid machine: %s", e.Reason)
}

func invalidMachinef(format string, args ...any) error {
	return &InvalidMachineError{Reason: fmt.Sprintf(format, args...)}
}
