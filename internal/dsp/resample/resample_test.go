package resample_test

import (
	"math"
	"testing"

	"github.com/SamWindell/signet/internal/dsp/resample"
)

func TestResampleNoOpWhenRateUnchanged(t *testing.T) {
	in := []float64{0.1, 0.2, 0.3, 0.4}

	out := resample.CubicSpline{}.Resample(in, 44100, 44100)

	if len(out) != len(in) {
		t.Fatalf("expected unchanged length, got %d", len(out))
	}

	for i := range in {
		if out[i] != in[i] {
			t.Fatalf("at %d: got %v, want %v", i, out[i], in[i])
		}
	}
}

func TestResampleProducesExpectedFrameCount(t *testing.T) {
	in := make([]float64, 1000)
	for i := range in {
		in[i] = math.Sin(2 * math.Pi * 100 * float64(i) / 44100)
	}

	out := resample.CubicSpline{}.Resample(in, 44100, 22050)

	want := int(math.Round(float64(len(in)) * 22050 / 44100))
	if len(out) != want {
		t.Fatalf("got %d frames, want %d", len(out), want)
	}
}

func TestResamplePreservesRMSApproximately(t *testing.T) {
	const n = 4096

	in := make([]float64, n)
	for i := range in {
		in[i] = math.Sin(2 * math.Pi * 440 * float64(i) / 48000)
	}

	out := resample.CubicSpline{}.Resample(in, 48000, 44100)

	rms := func(xs []float64) float64 {
		var sum float64
		for _, x := range xs {
			sum += x * x
		}

		return math.Sqrt(sum / float64(len(xs)))
	}

	rmsIn, rmsOut := rms(in), rms(out)
	ratioDb := 20 * math.Log10(rmsOut/rmsIn)

	if math.Abs(ratioDb) > 0.5 {
		t.Fatalf("RMS drifted by %.3f dB", ratioDb)
	}
}
