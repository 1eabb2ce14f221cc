package maybenot

// Machine is a validated, immutable defense unit (spec.md §3). Once built by
// NewMachine it never changes; all per-connection mutable bookkeeping lives
// in the runtimeState owned by whichever Framework is running it.
//
//nolint:govet // fieldalignment: struct layout optimized for readability
type Machine struct {
	AllowedPaddingPackets  uint64
	MaxPaddingFrac         float64
	AllowedBlockedMicrosec uint64
	MaxBlockingFrac        float64
	States                 []State
}

// NewMachine validates m's invariants and returns an immutable copy, or an
// *InvalidMachineError naming the first violation found (spec.md §3, §7,
// §8).
func NewMachine(m Machine) (*Machine, error) {
	if len(m.States) == 0 {
		return nil, invalidMachinef("machine must have at least one state")
	}
	if len(m.States) > StateMax {
		return nil, invalidMachinef("machine has %d states, exceeds maximum of %d", len(m.States), StateMax)
	}
	if m.MaxPaddingFrac < 0 || m.MaxPaddingFrac > 1 {
		return nil, invalidMachinef("max_padding_frac must be in [0,1], got %v", m.MaxPaddingFrac)
	}
	if m.MaxBlockingFrac < 0 || m.MaxBlockingFrac > 1 {
		return nil, invalidMachinef("max_blocking_frac must be in [0,1], got %v", m.MaxBlockingFrac)
	}

	for si, st := range m.States {
		for e := Event(0); int(e) < EventNum; e++ {
			for ti, tr := range st.Transitions[e] {
				if tr.Probability < 0 || tr.Probability > 1 {
					return nil, invalidMachinef(
						"state %d: transition %d for event %s has probability %v outside [0,1]",
						si, ti, e, tr.Probability)
				}
				if tr.Next != StateEnd && tr.Next != StateSignal {
					if tr.Next < 0 || tr.Next >= len(m.States) {
						return nil, invalidMachinef(
							"state %d: transition %d for event %s targets invalid state index %d",
							si, ti, e, tr.Next)
					}
				}
			}
		}
		if st.Action != nil {
			if err := validateStateAction(si, *st.Action); err != nil {
				return nil, err
			}
		}
	}

	out := m
	out.States = append([]State(nil), m.States...)
	return &out, nil
}

func validateStateAction(stateIdx int, a StateAction) error {
	switch a.Kind {
	case ActionCancel:
		// No sampled parameters to validate.
	case ActionSendPadding:
		if err := a.Timeout.Validate(); err != nil {
			return invalidMachinef("state %d: send-padding timeout: %v", stateIdx, err)
		}
	case ActionBlockOutgoing:
		if err := a.Timeout.Validate(); err != nil {
			return invalidMachinef("state %d: block-outgoing timeout: %v", stateIdx, err)
		}
		if err := a.Duration.Validate(); err != nil {
			return invalidMachinef("state %d: block-outgoing duration: %v", stateIdx, err)
		}
	case ActionUpdateTimer:
		if err := a.Duration.Validate(); err != nil {
			return invalidMachinef("state %d: update-timer duration: %v", stateIdx, err)
		}
	default:
		return invalidMachinef("state %d: unknown action kind %v", stateIdx, a.Kind)
	}
	if a.Limit != nil {
		if err := a.Limit.Validate(); err != nil {
			return invalidMachinef("state %d: action limit: %v", stateIdx, err)
		}
	}
	return nil
}
