package pmax

import (
	"fmt"

	apperrors "github.com/lrdigital/pmax-steward/internal/errors"
)

// Phase describes the campaign lifecycle phase.
type Phase int

const (
	// PhaseUnspecified represents an invalid phase value.
	PhaseUnspecified Phase = iota
	// Phase1 is initial setup and testing under max-conversions bidding.
	Phase1
	// Phase2 introduces a target CPA bid strategy.
	Phase2
	// Phase3 is scaling and ongoing optimization. Terminal.
	Phase3
)

// ErrInvalidPhaseTransition indicates a disallowed phase change.
var ErrInvalidPhaseTransition = apperrors.New(apperrors.CodePhaseInvalidTransition, "phase transition is not allowed")

// Label returns a stable label for a phase.
func (p Phase) Label() string {
	switch p {
	case Phase1:
		return "PHASE_1"
	case Phase2:
		return "PHASE_2"
	case Phase3:
		return "PHASE_3"
	default:
		return "UNSPECIFIED"
	}
}

// Next returns the phase after p, or false when p is terminal or invalid.
func (p Phase) Next() (Phase, bool) {
	switch p {
	case Phase1:
		return Phase2, true
	case Phase2:
		return Phase3, true
	default:
		return PhaseUnspecified, false
	}
}

// PhaseFromLabel parses a stored phase label.
func PhaseFromLabel(label string) Phase {
	switch label {
	case "PHASE_1":
		return Phase1
	case "PHASE_2":
		return Phase2
	case "PHASE_3":
		return Phase3
	default:
		return PhaseUnspecified
	}
}

// TransitionPhase validates a phase transition. Only forward single-step
// transitions are allowed; there is no regression path.
func TransitionPhase(from, to Phase) (Phase, error) {
	if from == PhaseUnspecified || to == PhaseUnspecified {
		return PhaseUnspecified, apperrors.WithMetadata(
			apperrors.CodePhaseUnspecified,
			"phase transition requires specified phases",
			map[string]string{"FromPhase": from.Label(), "ToPhase": to.Label()},
		)
	}
	next, ok := from.Next()
	if !ok || next != to {
		return PhaseUnspecified, apperrors.WithMetadata(
			apperrors.CodePhaseInvalidTransition,
			fmt.Sprintf("phase transition not allowed: %s -> %s", from.Label(), to.Label()),
			map[string]string{"FromPhase": from.Label(), "ToPhase": to.Label()},
		)
	}
	return to, nil
}
