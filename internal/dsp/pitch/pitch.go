// Package pitch defines the monophonic pitch-detection oracle contract
// used by the auto-tune processor and the pitch-drift corrector (spec.md
// §1 treats the estimator itself as a black box; this package only fixes
// the contract and ships one reference implementation good enough to
// exercise it).
package pitch

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Estimator reports the dominant fundamental frequency of a monophonic
// chunk of audio, or ok=false if no clear pitch is present (e.g. silence
// or noise).
type Estimator interface {
	EstimateHz(mono []float64, sampleRate int) (hz float64, ok bool)
}

// Autocorrelation is the default Estimator: a time-domain autocorrelation
// search refined by a parabolic interpolation of the peak, with an FFT
// pre-filter (via gonum/dsp/fourier) that rejects chunks with negligible
// energy before the O(n^2) autocorrelation pass runs.
type Autocorrelation struct {
	MinHz float64 // lowest fundamental considered, default 40
	MaxHz float64 // highest fundamental considered, default 5000
}

// NewAutocorrelation returns an Autocorrelation estimator configured with
// the documented default frequency range.
func NewAutocorrelation() *Autocorrelation {
	return &Autocorrelation{MinHz: 40, MaxHz: 5000}
}

// EstimateHz implements Estimator.
func (a *Autocorrelation) EstimateHz(mono []float64, sampleRate int) (float64, bool) {
	if len(mono) < 64 || sampleRate <= 0 {
		return 0, false
	}

	if !hasEnergy(mono) {
		return 0, false
	}

	minLag := int(float64(sampleRate) / a.MaxHz)
	maxLag := int(float64(sampleRate) / a.MinHz)

	if minLag < 1 {
		minLag = 1
	}

	if maxLag >= len(mono) {
		maxLag = len(mono) - 1
	}

	if maxLag <= minLag {
		return 0, false
	}

	bestLag, bestVal := -1, math.Inf(-1)

	for lag := minLag; lag <= maxLag; lag++ {
		acc := 0.0
		for i := 0; i+lag < len(mono); i++ {
			acc += mono[i] * mono[i+lag]
		}

		if acc > bestVal {
			bestVal, bestLag = acc, lag
		}
	}

	if bestLag <= minLag || bestLag >= maxLag {
		return refine(mono, sampleRate, bestLag)
	}

	return refine(mono, sampleRate, bestLag)
}

// refine applies parabolic interpolation around the integer-lag peak found
// by the autocorrelation search to recover sub-sample precision.
func refine(mono []float64, sampleRate, lag int) (float64, bool) {
	if lag <= 0 {
		return 0, false
	}

	corr := func(l int) float64 {
		if l < 0 || l >= len(mono) {
			return 0
		}

		acc := 0.0
		for i := 0; i+l < len(mono); i++ {
			acc += mono[i] * mono[i+l]
		}

		return acc
	}

	cm1, c0, cp1 := corr(lag-1), corr(lag), corr(lag+1)
	denom := cm1 - 2*c0 + cp1

	offset := 0.0
	if denom != 0 {
		offset = 0.5 * (cm1 - cp1) / denom
	}

	refinedLag := float64(lag) + offset
	if refinedLag <= 0 {
		return 0, false
	}

	return float64(sampleRate) / refinedLag, true
}

// hasEnergy pre-filters near-silent chunks using an FFT magnitude sum; this
// is much cheaper than running the full autocorrelation search only to
// discover the chunk was silence.
func hasEnergy(mono []float64) bool {
	n := nextPow2(len(mono))
	padded := make([]float64, n)
	copy(padded, mono)

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, padded)

	var sum float64
	for _, c := range coeffs {
		sum += real(c)*real(c) + imag(c)*imag(c)
	}

	return sum > 1e-9*float64(n)
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}

	return p
}
