package pmax

import (
	"errors"
	"testing"

	apperrors "github.com/lrdigital/pmax-steward/internal/errors"
)

func TestTransitionPhaseAllowsForwardSteps(t *testing.T) {
	tests := []struct {
		name string
		from Phase
		to   Phase
	}{
		{name: "phase 1 to 2", from: Phase1, to: Phase2},
		{name: "phase 2 to 3", from: Phase2, to: Phase3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := TransitionPhase(tt.from, tt.to)
			if err != nil {
				t.Fatalf("transition: %v", err)
			}
			if got != tt.to {
				t.Fatalf("expected %s, got %s", tt.to.Label(), got.Label())
			}
		})
	}
}

func TestTransitionPhaseRejectsInvalidMoves(t *testing.T) {
	tests := []struct {
		name string
		from Phase
		to   Phase
	}{
		{name: "regression", from: Phase2, to: Phase1},
		{name: "skip", from: Phase1, to: Phase3},
		{name: "terminal", from: Phase3, to: Phase3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := TransitionPhase(tt.from, tt.to); !errors.Is(err, ErrInvalidPhaseTransition) {
				t.Fatalf("expected ErrInvalidPhaseTransition, got %v", err)
			}
		})
	}
}

func TestTransitionPhaseRequiresSpecifiedPhases(t *testing.T) {
	tests := []struct {
		name string
		from Phase
		to   Phase
	}{
		{name: "unspecified source", from: PhaseUnspecified, to: Phase1},
		{name: "unspecified target", from: Phase1, to: PhaseUnspecified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TransitionPhase(tt.from, tt.to)
			if !errors.Is(err, apperrors.New(apperrors.CodePhaseUnspecified, "")) {
				t.Fatalf("expected PHASE_UNSPECIFIED error, got %v", err)
			}
		})
	}
}

func TestPhaseLabelRoundTrip(t *testing.T) {
	for _, phase := range []Phase{Phase1, Phase2, Phase3} {
		if got := PhaseFromLabel(phase.Label()); got != phase {
			t.Fatalf("expected %v, got %v", phase, got)
		}
	}
	if PhaseFromLabel("PHASE_9") != PhaseUnspecified {
		t.Fatalf("expected unknown label to map to unspecified")
	}
}
