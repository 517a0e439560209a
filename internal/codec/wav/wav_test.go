package wav_test

import (
	"bytes"
	"fmt"
	"math"
	"testing"

	"github.com/SamWindell/signet/internal/audio"
	"github.com/SamWindell/signet/internal/codec/wav"
	"github.com/SamWindell/signet/internal/metadata"
)

func sineSamples(t *testing.T, frames, channels, sampleRate int) *audio.Samples {
	t.Helper()

	interleaved := make([]float64, frames*channels)
	for f := 0; f < frames; f++ {
		v := math.Sin(2 * math.Pi * 440 * float64(f) / float64(sampleRate))
		for ch := 0; ch < channels; ch++ {
			interleaved[f*channels+ch] = v
		}
	}

	return &audio.Samples{
		Interleaved:  interleaved,
		ChannelCount: channels,
		SampleRate:   sampleRate,
	}
}

func roundTrip(t *testing.T, s *audio.Samples, bitsPerSample int) (*audio.Samples, []string) {
	t.Helper()

	var buf bytes.Buffer

	encodeWarnings, err := wav.Encode(&buf, s, bitsPerSample)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, warnings, err := wav.Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	return decoded, append(encodeWarnings, warnings...)
}

func TestBitDepthRoundTrip(t *testing.T) {
	for _, bits := range wav.ValidBitDepths {
		bits := bits

		t.Run(fmt.Sprintf("%dbit", bits), func(t *testing.T) {
			s := sineSamples(t, 100, 1, 44100)

			decoded, warnings := roundTrip(t, s, bits)
			if len(warnings) != 0 {
				t.Fatalf("unexpected warnings: %v", warnings)
			}

			if decoded.ChannelCount != s.ChannelCount {
				t.Fatalf("channel count: got %d, want %d", decoded.ChannelCount, s.ChannelCount)
			}
			if decoded.SampleRate != s.SampleRate {
				t.Fatalf("sample rate: got %d, want %d", decoded.SampleRate, s.SampleRate)
			}
			if decoded.BitsPerSample != bits {
				t.Fatalf("bits per sample: got %d, want %d", decoded.BitsPerSample, bits)
			}
			if len(decoded.Interleaved) != len(s.Interleaved) {
				t.Fatalf("sample count: got %d, want %d", len(decoded.Interleaved), len(s.Interleaved))
			}

			tolerance := 1.0 / 200 // 8-bit is the coarsest depth under test
			for i, v := range s.Interleaved {
				if math.Abs(decoded.Interleaved[i]-v) > tolerance {
					t.Fatalf("sample %d at %d bits: got %v, want %v", i, bits, decoded.Interleaved[i], v)
				}
			}
		})
	}
}

func TestBitDepthRoundTripRejectsInvalidDepth(t *testing.T) {
	s := sineSamples(t, 10, 1, 44100)

	var buf bytes.Buffer
	if _, err := wav.Encode(&buf, s, 12); err == nil {
		t.Fatal("expected an error for an invalid bit depth")
	}
}

func TestRootNoteOnlyRoundTrip(t *testing.T) {
	s := sineSamples(t, 10, 1, 44100)
	s.Metadata.MidiMapping = &metadata.MidiMapping{RootMidiNote: 69}

	decoded, _ := roundTrip(t, s, 16)

	if decoded.Metadata.MidiMapping == nil {
		t.Fatal("expected a MidiMapping to round-trip")
	}
	if decoded.Metadata.MidiMapping.RootMidiNote != 69 {
		t.Fatalf("got root note %d, want 69", decoded.Metadata.MidiMapping.RootMidiNote)
	}
	if decoded.Metadata.MidiMapping.SamplerMapping != nil {
		t.Fatal("expected no sampler mapping")
	}
}

func TestSamplerMappingRoundTrip(t *testing.T) {
	s := sineSamples(t, 10, 1, 44100)
	sm := metadata.SamplerMapping{
		FineTuneCents: -12,
		GainDb:        6,
		LowNote:       36,
		HighNote:      96,
		LowVelocity:   1,
		HighVelocity:  100,
	}
	s.Metadata.MidiMapping = &metadata.MidiMapping{RootMidiNote: 60, SamplerMapping: &sm}

	decoded, _ := roundTrip(t, s, 16)

	mm := decoded.Metadata.MidiMapping
	if mm == nil || mm.SamplerMapping == nil {
		t.Fatal("expected sampler mapping to round-trip")
	}

	got := *mm.SamplerMapping
	if got != sm {
		t.Fatalf("got %+v, want %+v", got, sm)
	}
}

func TestLoopRoundTrip(t *testing.T) {
	s := sineSamples(t, 1000, 2, 44100)
	s.Metadata.Loops = []metadata.Loop{
		{Name: "sustain", Type: metadata.LoopForward, StartFrame: 10, NumFrames: 500, NumTimesToLoop: 3},
		{Name: "tail", Type: metadata.LoopPingPong, StartFrame: 600, NumFrames: 100, NumTimesToLoop: 0},
	}

	decoded, warnings := roundTrip(t, s, 16)
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	if len(decoded.Metadata.Loops) != 2 {
		t.Fatalf("got %d loops, want 2", len(decoded.Metadata.Loops))
	}

	for i, want := range s.Metadata.Loops {
		got := decoded.Metadata.Loops[i]
		if got.Name != want.Name {
			t.Errorf("loop %d name: got %q, want %q", i, got.Name, want.Name)
		}
		if got.Type != want.Type {
			t.Errorf("loop %d type: got %v, want %v", i, got.Type, want.Type)
		}
		if got.StartFrame != want.StartFrame {
			t.Errorf("loop %d start: got %d, want %d", i, got.StartFrame, want.StartFrame)
		}
		if got.NumFrames != want.NumFrames {
			t.Errorf("loop %d length: got %d, want %d", i, got.NumFrames, want.NumFrames)
		}
		if got.NumTimesToLoop != want.NumTimesToLoop {
			t.Errorf("loop %d play count: got %d, want %d", i, got.NumTimesToLoop, want.NumTimesToLoop)
		}
	}
}

func TestMarkerRoundTrip(t *testing.T) {
	s := sineSamples(t, 1000, 1, 44100)
	s.Metadata.Markers = []metadata.Marker{
		{Name: "attack", StartFrame: 0},
		{Name: "release", StartFrame: 800},
	}

	decoded, _ := roundTrip(t, s, 16)

	if len(decoded.Metadata.Markers) != 2 {
		t.Fatalf("got %d markers, want 2", len(decoded.Metadata.Markers))
	}

	for i, want := range s.Metadata.Markers {
		got := decoded.Metadata.Markers[i]
		if got.Name != want.Name || got.StartFrame != want.StartFrame {
			t.Errorf("marker %d: got %+v, want %+v", i, got, want)
		}
	}
}

func TestRegionRoundTrip(t *testing.T) {
	s := sineSamples(t, 1000, 1, 44100)
	s.Metadata.Regions = []metadata.Region{
		{InitialMarkerName: "verse", Name: "verse", StartFrame: 100, NumFrames: 300},
	}

	decoded, _ := roundTrip(t, s, 16)

	if len(decoded.Metadata.Regions) != 1 {
		t.Fatalf("got %d regions, want 1", len(decoded.Metadata.Regions))
	}

	got := decoded.Metadata.Regions[0]
	want := s.Metadata.Regions[0]

	if got.InitialMarkerName != want.InitialMarkerName || got.Name != want.Name ||
		got.StartFrame != want.StartFrame || got.NumFrames != want.NumFrames {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	// A region's cue point is also surfaced as a plain marker (§4.2.1 step
	// 5: every cue point becomes a Marker regardless of what else
	// references its id).
	foundMarker := false

	for _, mk := range decoded.Metadata.Markers {
		if mk.StartFrame == want.StartFrame && mk.Name == want.InitialMarkerName {
			foundMarker = true
		}
	}

	if !foundMarker {
		t.Fatal("expected the region's cue point to also appear as a marker")
	}
}

func TestTimingInfoRoundTrip(t *testing.T) {
	s := sineSamples(t, 100, 1, 44100)
	s.Metadata.TimingInfo = &metadata.TimingInfo{
		PlaybackType: metadata.PlaybackLoop,
		NumBeats:     8,
		TimeSigNum:   3,
		TimeSigDen:   4,
		TempoBpm:     128,
	}

	decoded, _ := roundTrip(t, s, 16)

	ti := decoded.Metadata.TimingInfo
	if ti == nil {
		t.Fatal("expected timing info to round-trip")
	}

	if ti.PlaybackType != metadata.PlaybackLoop {
		t.Errorf("playback type: got %v, want loop", ti.PlaybackType)
	}
	if ti.NumBeats != 8 {
		t.Errorf("num beats: got %d, want 8", ti.NumBeats)
	}
	if ti.TimeSigNum != 3 || ti.TimeSigDen != 4 {
		t.Errorf("time signature: got %d/%d, want 3/4", ti.TimeSigNum, ti.TimeSigDen)
	}
	if math.Abs(ti.TempoBpm-128) > 0.01 {
		t.Errorf("tempo: got %v, want 128", ti.TempoBpm)
	}
}

func TestOneShotTimingInfoRoundTrip(t *testing.T) {
	s := sineSamples(t, 100, 1, 44100)
	s.Metadata.TimingInfo = &metadata.TimingInfo{PlaybackType: metadata.PlaybackOneShot}

	decoded, _ := roundTrip(t, s, 16)

	if decoded.Metadata.TimingInfo == nil || decoded.Metadata.TimingInfo.PlaybackType != metadata.PlaybackOneShot {
		t.Fatalf("expected one-shot playback to round-trip, got %+v", decoded.Metadata.TimingInfo)
	}
}

func TestInfoChunksRoundTripThroughOpaque(t *testing.T) {
	s := sineSamples(t, 10, 1, 44100)
	s.Opaque = &wav.Extra{
		InfoChunks: []wav.RawChunk{
			{ID: [4]byte{'I', 'A', 'R', 'T'}, Data: []byte("Test Artist")},
		},
	}

	decoded, _ := roundTrip(t, s, 16)

	extra, ok := decoded.Opaque.(*wav.Extra)
	if !ok {
		t.Fatal("expected decoded Opaque to be *wav.Extra")
	}

	if len(extra.InfoChunks) != 1 {
		t.Fatalf("got %d INFO chunks, want 1", len(extra.InfoChunks))
	}
	if string(extra.InfoChunks[0].ID[:]) != "IART" || string(extra.InfoChunks[0].Data) != "Test Artist" {
		t.Fatalf("unexpected INFO chunk: %+v", extra.InfoChunks[0])
	}
}

func TestClippingSamplesAreScaledDownWithWarning(t *testing.T) {
	s := &audio.Samples{Interleaved: []float64{1.5, -2.0, 0.5}, ChannelCount: 1, SampleRate: 44100}

	decoded, warnings := roundTrip(t, s, 16)

	if len(warnings) != 1 {
		t.Fatalf("expected 1 clipping warning, got %d: %v", len(warnings), warnings)
	}

	peak := 0.0
	for _, v := range decoded.Interleaved {
		if math.Abs(v) > peak {
			peak = math.Abs(v)
		}
	}

	if peak > 1.0001 {
		t.Fatalf("expected samples scaled within [-1, 1], peak was %v", peak)
	}
}

func TestDecodeRejectsNonRIFF(t *testing.T) {
	_, _, err := wav.Decode(bytes.NewReader([]byte("not a wav file at all")))
	if err == nil {
		t.Fatal("expected an error decoding a non-RIFF stream")
	}
}
