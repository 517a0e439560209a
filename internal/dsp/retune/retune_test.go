package retune_test

import (
	"math"
	"testing"

	"github.com/SamWindell/signet/internal/dsp/retune"
)

func TestInterpolateAtIntegerPositionReturnsExactSample(t *testing.T) {
	src := retune.Source{0, 1, 2, 3, 4, 5}

	for i := range src {
		got := src.InterpolateAt(float64(i))
		if math.Abs(got-src[i]) > 1e-9 {
			t.Fatalf("at %d: got %v, want %v", i, got, src[i])
		}
	}
}

func TestInterpolateAtClampsOutOfBounds(t *testing.T) {
	src := retune.Source{1, 2, 3}

	// Near the end, a2 and beyond should clamp to the last sample rather
	// than panic or read garbage.
	got := src.InterpolateAt(2.0)
	if math.Abs(got-3) > 1e-9 {
		t.Fatalf("expected clamped last sample, got %v", got)
	}
}

func TestSmootherConvergesToTarget(t *testing.T) {
	s := retune.NewSmoother()
	s.SetTarget(2.0)

	for i := 0; i < 1_000_000; i++ {
		s.Step()
	}

	if math.Abs(s.Current-2.0) > 0.01 {
		t.Fatalf("smoother did not converge: got %v", s.Current)
	}
}

func TestSmootherIsGradual(t *testing.T) {
	s := retune.NewSmoother()
	s.SetTarget(2.0)
	s.Step()

	if s.Current <= 1.0 || s.Current > 1.01 {
		t.Fatalf("expected a small first step, got %v", s.Current)
	}
}
