package audio_test

import (
	"math"
	"testing"

	"github.com/SamWindell/signet/internal/audio"
	"github.com/SamWindell/signet/internal/dsp/pitch"
	"github.com/SamWindell/signet/internal/dsp/resample"
	"github.com/SamWindell/signet/internal/metadata"
)

func TestFrameCount(t *testing.T) {
	s := &audio.Samples{Interleaved: make([]float64, 12), ChannelCount: 2}

	if got := s.FrameCount(); got != 6 {
		t.Fatalf("got %d, want 6", got)
	}
}

func TestMultiplyByScalarHalvesSignal(t *testing.T) {
	s := &audio.Samples{Interleaved: []float64{1.0}, ChannelCount: 1}

	// -6dB ~= 0.50119
	s.MultiplyByScalar(math.Pow(10, -6.0/20))

	if math.Abs(s.Interleaved[0]-0.5012) > 0.01 {
		t.Fatalf("got %v, want ~0.5", s.Interleaved[0])
	}
}

func TestMixDownToMonoSumsChannels(t *testing.T) {
	s := &audio.Samples{Interleaved: []float64{0.2, 0.3, 0.4, 0.5}, ChannelCount: 2}

	mono := s.MixDownToMono()
	if len(mono) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(mono))
	}

	if math.Abs(mono[0]-0.5) > 1e-9 || math.Abs(mono[1]-0.9) > 1e-9 {
		t.Fatalf("unexpected mono mix: %v", mono)
	}
}

func TestAddZeroPadsShorterBuffer(t *testing.T) {
	a := &audio.Samples{Interleaved: []float64{1, 1}, ChannelCount: 1}
	b := &audio.Samples{Interleaved: []float64{1, 1, 1, 1}, ChannelCount: 1}

	if err := a.Add(b); err != nil {
		t.Fatal(err)
	}

	want := []float64{2, 2, 1, 1}
	for i, v := range want {
		if a.Interleaved[i] != v {
			t.Fatalf("at %d: got %v, want %v", i, a.Interleaved[i], v)
		}
	}
}

func TestAddRejectsChannelMismatch(t *testing.T) {
	a := &audio.Samples{Interleaved: []float64{1, 1}, ChannelCount: 1}
	b := &audio.Samples{Interleaved: []float64{1, 1}, ChannelCount: 2}

	if err := a.Add(b); err == nil {
		t.Fatal("expected an error for mismatched channel counts")
	}
}

func TestResampleNoOp(t *testing.T) {
	s := &audio.Samples{Interleaved: []float64{0.1, 0.2}, ChannelCount: 1, SampleRate: 44100}

	s.Resample(44100, resample.CubicSpline{})

	if len(s.Interleaved) != 2 {
		t.Fatalf("expected unchanged buffer on no-op resample")
	}
}

func TestResampleUpdatesRateAndLength(t *testing.T) {
	n := 1000
	in := make([]float64, n)

	for i := range in {
		in[i] = math.Sin(2 * math.Pi * 220 * float64(i) / 44100)
	}

	s := &audio.Samples{Interleaved: in, ChannelCount: 1, SampleRate: 44100}
	s.Resample(22050, resample.CubicSpline{})

	if s.SampleRate != 22050 {
		t.Fatalf("expected sample rate 22050, got %d", s.SampleRate)
	}

	wantFrames := int(math.Round(float64(n) * 22050 / 44100))
	if s.FrameCount() != wantFrames {
		t.Fatalf("got %d frames, want %d", s.FrameCount(), wantFrames)
	}
}

func TestDetectPitchOnSilenceReturnsFalse(t *testing.T) {
	s := &audio.Samples{Interleaved: make([]float64, 44100), ChannelCount: 1, SampleRate: 44100}

	_, ok := s.DetectPitch(pitch.NewAutocorrelation())
	if ok {
		t.Fatal("expected no pitch on silence")
	}
}

func TestDetectPitchOnSineWave(t *testing.T) {
	const sampleRate = 44100

	n := sampleRate // 1 second
	in := make([]float64, n)

	for i := range in {
		in[i] = math.Sin(2 * math.Pi * 440 * float64(i) / sampleRate)
	}

	s := &audio.Samples{Interleaved: in, ChannelCount: 1, SampleRate: sampleRate}

	hz, ok := s.DetectPitch(pitch.NewAutocorrelation())
	if !ok {
		t.Fatal("expected a pitch to be detected")
	}

	cents := 1200 * math.Log2(hz/440)
	if math.Abs(cents) > 10 {
		t.Fatalf("detected %v Hz, too far from 440 Hz (%.2f cents)", hz, cents)
	}
}

func TestFramesWereRemovedFromStartDropsAndShifts(t *testing.T) {
	s := &audio.Samples{Interleaved: make([]float64, 20), ChannelCount: 1, SampleRate: 44100}
	s.Metadata.Markers = []metadata.Marker{{StartFrame: 2}, {StartFrame: 10}}

	warnings := s.FramesWereRemovedFromStart(5)
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(warnings))
	}

	if len(s.Metadata.Markers) != 1 || s.Metadata.Markers[0].StartFrame != 5 {
		t.Fatalf("unexpected markers after shift: %+v", s.Metadata.Markers)
	}
}
