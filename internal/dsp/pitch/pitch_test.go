package pitch_test

import (
	"math"
	"testing"

	"github.com/SamWindell/signet/internal/dsp/pitch"
)

func sineWave(hz float64, sampleRate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * hz * float64(i) / float64(sampleRate))
	}

	return out
}

func TestAutocorrelationDetectsKnownPitch(t *testing.T) {
	const sampleRate = 44100

	mono := sineWave(440, sampleRate, sampleRate/2)

	est := pitch.NewAutocorrelation()

	hz, ok := est.EstimateHz(mono, sampleRate)
	if !ok {
		t.Fatal("expected a pitch to be detected")
	}

	cents := 1200 * math.Log2(hz/440)
	if math.Abs(cents) > 5 {
		t.Fatalf("detected %v Hz, more than 5 cents from 440 Hz (%.2f cents)", hz, cents)
	}
}

func TestAutocorrelationReturnsFalseForSilence(t *testing.T) {
	mono := make([]float64, 4410)

	est := pitch.NewAutocorrelation()

	_, ok := est.EstimateHz(mono, 44100)
	if ok {
		t.Fatal("expected silence to report no pitch")
	}
}
