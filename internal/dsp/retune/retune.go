// Package retune implements the cubic-interpolation sample stepper used by
// the pitch-drift corrector's retune pass (spec.md §4.6). It is kept
// separate from internal/dsp/resample because the corrector needs
// per-output-frame control of a continuously varying step size, which the
// generic Resampler contract (fixed in/out rate) does not expose.
package retune

// Source is a single channel of samples to read from, with clamped
// out-of-bounds access (spec.md §4.6: a₋₁/a₂ are clamped to file bounds).
type Source []float64

func (s Source) at(i int) float64 {
	if i < 0 {
		i = 0
	}

	if i >= len(s) {
		i = len(s) - 1
	}

	if len(s) == 0 {
		return 0
	}

	return s[i]
}

// InterpolateAt evaluates the source at fractional position pos using the
// four-tap cubic formula given in spec.md §4.6:
//
//	y = a0 + (((a2 - a-1 - 3a1 + 3a0)*t + 3(a1 + a-1 - 2a0))*t - (a2 + 2a-1 - 6a1 + 3a0)) * t / 6
//
// where a0,a1,a2,a-1 are the samples at floor(pos), floor(pos)+1,
// floor(pos)+2, floor(pos)-1 and t = pos - floor(pos).
func (s Source) InterpolateAt(pos float64) float64 {
	i0 := int(pos)
	t := pos - float64(i0)

	aMinus1 := s.at(i0 - 1)
	a0 := s.at(i0)
	a1 := s.at(i0 + 1)
	a2 := s.at(i0 + 2)

	term1 := (a2 - aMinus1 - 3*a1 + 3*a0) * t
	term2 := 3 * (a1 + aMinus1 - 2*a0)
	term3 := a2 + 2*aMinus1 - 6*a1 + 3*a0

	return a0 + ((term1+term2)*t-term3)*t/6
}

// Smoother is a first-order low-pass filter over a scalar ratio, used to
// glide between the current pitch-correction ratio and a new target
// without audible stepping (spec.md §4.6: "cutoff ≈ 0.00007, i.e. very
// gradual").
type Smoother struct {
	Cutoff  float64
	Current float64
	target  float64
}

// NewSmoother returns a Smoother initialized to ratio 1.0 (no correction)
// with the documented default cutoff.
func NewSmoother() *Smoother {
	return &Smoother{Cutoff: 0.00007, Current: 1.0, target: 1.0}
}

// SetTarget changes the ratio the smoother glides toward.
func (s *Smoother) SetTarget(target float64) { s.target = target }

// Reset snaps both the current value and the target to v immediately,
// skipping the glide (spec.md §4.6's chunk-zero "hard reset": the very
// first chunk has no prior ratio to glide from).
func (s *Smoother) Reset(v float64) {
	s.Current = v
	s.target = v
}

// Step advances the smoother by one output-frame tick and returns the new
// current value.
func (s *Smoother) Step() float64 {
	s.Current += (s.target - s.Current) * s.Cutoff

	return s.Current
}
