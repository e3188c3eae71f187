package dynamo

import (
	"errors"
	"math"
	"sync/atomic"
	"testing"
)

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		state State
		valid bool
	}{
		{"empty", State{}, true},
		{"normal", State{1.0, 2.0, 3.0}, true},
		{"with NaN", State{1.0, math.NaN()}, false},
		{"with +Inf", State{1.0, math.Inf(1)}, false},
		{"with -Inf", State{1.0, math.Inf(-1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestState_MaxAbs(t *testing.T) {
	if got := (State{1, -3, 2}).MaxAbs(); got != 3 {
		t.Errorf("MaxAbs() = %v, want 3", got)
	}
	if got := (State{}).MaxAbs(); got != 0 {
		t.Errorf("MaxAbs() of empty = %v, want 0", got)
	}
}

func TestInterval(t *testing.T) {
	iv := Interval{T0: 1.0, T1: 1.5}
	if iv.Dt() != 0.5 {
		t.Errorf("Dt() = %v, want 0.5", iv.Dt())
	}
	if iv.At(0.5) != 1.25 {
		t.Errorf("At(0.5) = %v, want 1.25", iv.At(0.5))
	}
	if iv.At(1.0) != iv.T1 {
		t.Errorf("At(1) = %v, want %v", iv.At(1.0), iv.T1)
	}
}

func TestStepErrorUnwrap(t *testing.T) {
	inner := &NodeError{Dof: 3, Time: 0.5, Wrapped: ErrIntegrationDiverged}
	err := &StepError{Step: 2, Phase: "pde", Interval: Interval{T0: 0, T1: 1}, Wrapped: inner}

	if !errors.Is(err, ErrIntegrationDiverged) {
		t.Error("StepError does not unwrap to the sentinel")
	}
	var ne *NodeError
	if !errors.As(err, &ne) || ne.Dof != 3 {
		t.Error("StepError does not unwrap to the NodeError")
	}
	want := "step 2 pde on (0, 1): dof 3 (t=0.5): dynamo: ode integration diverged"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestParallelForCoversRange(t *testing.T) {
	const n = 1000
	seen := make([]int32, n)
	err := ParallelFor(n, 16, func(_, start, end int) error {
		for i := start; i < end; i++ {
			atomic.AddInt32(&seen[i], 1)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ParallelFor: %v", err)
	}
	for i, c := range seen {
		if c != 1 {
			t.Fatalf("index %d visited %d times", i, c)
		}
	}
}

func TestParallelForReturnsError(t *testing.T) {
	err := ParallelFor(100, 1, func(chunk, start, end int) error {
		if start == 0 {
			return ErrLinearSolve
		}
		return nil
	})
	if !errors.Is(err, ErrLinearSolve) {
		t.Errorf("expected ErrLinearSolve, got %v", err)
	}
}
