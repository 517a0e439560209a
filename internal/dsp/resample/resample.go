// Package resample defines the sample-rate-conversion oracle contract
// (spec.md §1 treats the resampling kernel as a black box with a stated
// contract: preserves RMS within 0.1 dB, does not introduce aliasing above
// Nyquist) and ships one reference implementation sufficient to satisfy it
// for the engine's own tests.
package resample

import (
	"math"

	"gonum.org/v1/gonum/interp"
)

// Resampler converts a single channel of audio from inRate to outRate,
// returning round(len(in) * outRate / inRate) output samples.
type Resampler interface {
	Resample(in []float64, inRate, outRate int) []float64
}

// CubicSpline is the default Resampler: a not-a-knot cubic-spline
// reconstruction of the continuous waveform, resampled at the new rate.
// It is not a polyphase FIR (the original engine's resampler), but it
// satisfies the documented contract for the signal classes Signet edits
// (sampled instrument one-shots and loops, not arbitrary noise).
type CubicSpline struct{}

// Resample implements Resampler.
func (CubicSpline) Resample(in []float64, inRate, outRate int) []float64 {
	if inRate <= 0 || outRate <= 0 || len(in) == 0 || inRate == outRate {
		out := make([]float64, len(in))
		copy(out, in)

		return out
	}

	outFrames := int(math.Round(float64(len(in)) * float64(outRate) / float64(inRate)))
	if outFrames <= 0 {
		return nil
	}

	xs := make([]float64, len(in))
	for i := range xs {
		xs[i] = float64(i)
	}

	var spline interp.NotAKnotCubic
	if err := spline.Fit(xs, in); err != nil {
		// Degenerate input (e.g. fewer than 4 samples): fall back to linear.
		return linearResample(in, outFrames)
	}

	ratio := float64(inRate) / float64(outRate)
	out := make([]float64, outFrames)
	lastX := xs[len(xs)-1]

	for i := range out {
		pos := float64(i) * ratio
		if pos > lastX {
			pos = lastX
		}

		out[i] = spline.Predict(pos)
	}

	return out
}

func linearResample(in []float64, outFrames int) []float64 {
	out := make([]float64, outFrames)

	if len(in) == 1 {
		for i := range out {
			out[i] = in[0]
		}

		return out
	}

	ratio := float64(len(in)-1) / float64(maxInt(outFrames-1, 1))

	for i := range out {
		pos := float64(i) * ratio
		lo := int(pos)

		if lo >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}

		t := pos - float64(lo)
		out[i] = in[lo]*(1-t) + in[lo+1]*t
	}

	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}

	return b
}
