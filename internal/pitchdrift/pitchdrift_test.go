package pitchdrift_test

import (
	"math"
	"testing"

	"github.com/SamWindell/signet/internal/dsp/pitch"
	"github.com/SamWindell/signet/internal/pitchdrift"
)

// fixedEstimator reports a pre-scripted sequence of detected pitches, one
// per call, so the marking passes can be tested without depending on the
// real autocorrelation estimator's behavior on synthetic chunks.
type fixedEstimator struct {
	hz []float64
	i  int
}

func (f *fixedEstimator) EstimateHz(mono []float64, sampleRate int) (float64, bool) {
	if f.i >= len(f.hz) {
		return 0, false
	}

	v := f.hz[f.i]
	f.i++

	if v == 0 {
		return 0, false
	}

	return v, true
}

func sine(frames int, freq float64, rate int) []float64 {
	out := make([]float64, frames)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(rate))
	}

	return out
}

func TestCanBeCorrectedRequires75PercentDetected(t *testing.T) {
	rate := 44100
	mono := sine(rate, 440, rate) // ~16-17 chunks at 60ms

	hz := make([]float64, 20)
	for i := range hz {
		hz[i] = 440
	}
	// Fail more than 25% of chunks.
	hz[0], hz[1], hz[2], hz[3], hz[4], hz[5] = 0, 0, 0, 0, 0, 0

	c := pitchdrift.New(mono, rate, 60, &fixedEstimator{hz: hz})
	if c.CanBeCorrected() {
		t.Fatal("expected CanBeCorrected to be false when more than 25% of chunks fail detection")
	}
}

func TestCanBeCorrectedAcceptsMostlyDetectedFile(t *testing.T) {
	rate := 44100
	mono := sine(rate, 440, rate)

	hz := make([]float64, 20)
	for i := range hz {
		hz[i] = 440
	}

	c := pitchdrift.New(mono, rate, 60, &fixedEstimator{hz: hz})
	if !c.CanBeCorrected() {
		t.Fatal("expected CanBeCorrected to be true when all chunks are detected")
	}
}

func TestCorrectedInterleavedPreservesLengthForStablePitch(t *testing.T) {
	rate := 44100
	mono := sine(rate, 440, rate)

	hz := make([]float64, 20)
	for i := range hz {
		hz[i] = 440
	}

	c := pitchdrift.New(mono, rate, 60, &fixedEstimator{hz: hz})
	if !c.CanBeCorrected() {
		t.Fatal("expected a stable 440Hz sine to be correctable")
	}

	c.Analyse()

	out := c.CorrectedInterleaved(mono, 1)

	ratio := float64(len(out)) / float64(len(mono))
	if math.Abs(ratio-1) > 0.01 {
		t.Fatalf("a perfectly stable pitch should barely change length, got ratio %v", ratio)
	}
}

func TestSustainedPitchJumpProducesIgnoreRegion(t *testing.T) {
	rate := 44100
	mono := sine(rate, 440, rate) // 17 chunks at 60ms

	// A baseline that jitters by a few cents between neighbours
	// (440/441, ~4 cents apart) so fixObviousOutliers' "was the
	// previous pair stable" check never holds at the transition into or
	// out of the anomaly; a perfectly flat baseline would let that pass
	// smooth the whole anomaly away chunk by chunk, cascading forever.
	hz := []float64{440, 441, 440, 441, 440, 441, 440, 441, 500, 501, 500, 501, 440, 441, 440, 441, 440}

	c := pitchdrift.New(mono, rate, 60, &fixedEstimator{hz: hz})
	if !c.CanBeCorrected() {
		t.Fatal("every chunk has a detected pitch, expected this file to remain correctable")
	}

	c.Analyse()

	var anyIgnored bool

	for _, chunk := range c.Chunks() {
		if chunk.IgnoreTuning {
			anyIgnored = true
		}
	}

	if !anyIgnored {
		t.Fatal("expected the sustained jump to a different pitch to be marked ignore_tuning")
	}
}
