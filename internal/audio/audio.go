// Package audio implements Signet's AudioSamples buffer (§3) and the
// sample-buffer transformations processors call into (§4.2.3): gain,
// mixing, resampling, pitch change, metadata rescaling after a
// size-changing edit, and pitch detection.
package audio

import (
	"fmt"
	"math"

	"github.com/SamWindell/signet/internal/dsp/pitch"
	"github.com/SamWindell/signet/internal/dsp/resample"
	"github.com/SamWindell/signet/internal/metadata"
)

// Container identifies which file format the samples were decoded from
// (or, after a format-changing edit, will be encoded to).
type Container int

const (
	ContainerWAV Container = iota
	ContainerFLAC
)

func (c Container) String() string {
	if c == ContainerFLAC {
		return "flac"
	}

	return "wav"
}

// Samples is a row-major interleaved buffer of samples in [-1, 1]
// (values outside that range are tolerated in memory and scaled down on
// write, §3).
type Samples struct {
	Interleaved   []float64
	ChannelCount  int
	SampleRate    int
	BitsPerSample int
	Container     Container
	Metadata      metadata.Metadata

	// Opaque carries container-specific data that has no place in the
	// neutral Metadata record but must still round-trip verbatim: WAV
	// INFO/adtl chunks the codec doesn't interpret, FLAC VORBIS_COMMENT
	// and PICTURE blocks, and so on (§6). Each codec package defines its
	// own concrete type for this and type-asserts it back on encode.
	Opaque any
}

// FrameCount returns len(Interleaved) / ChannelCount, per the §3
// invariant that the interleaved buffer length is a multiple of the
// channel count.
func (s *Samples) FrameCount() int {
	if s.ChannelCount == 0 {
		return 0
	}

	return len(s.Interleaved) / s.ChannelCount
}

// Frame returns the samples for one frame across all channels.
func (s *Samples) Frame(i int) []float64 {
	start := i * s.ChannelCount

	return s.Interleaved[start : start+s.ChannelCount]
}

// Sample returns the sample at the given channel and frame.
func (s *Samples) Sample(channel, frame int) float64 {
	return s.Interleaved[frame*s.ChannelCount+channel]
}

// SetSample sets the sample at the given channel and frame.
func (s *Samples) SetSample(channel, frame int, value float64) {
	s.Interleaved[frame*s.ChannelCount+channel] = value
}

// IsEmpty reports whether the buffer has zero frames, the boundary case
// every processor must short-circuit on (spec.md §8 boundary cases).
func (s *Samples) IsEmpty() bool { return len(s.Interleaved) == 0 }

// MultiplyByScalar scales every sample in place.
func (s *Samples) MultiplyByScalar(k float64) {
	for i := range s.Interleaved {
		s.Interleaved[i] *= k
	}
}

// Add sums other into s sample-wise, zero-padding the shorter buffer's
// frame count up to the longer one's first (§4.2.3). Channel counts must
// match.
func (s *Samples) Add(other *Samples) error {
	if s.ChannelCount != other.ChannelCount {
		return fmt.Errorf("audio.Add: channel count mismatch (%d vs %d)", s.ChannelCount, other.ChannelCount)
	}

	if len(other.Interleaved) > len(s.Interleaved) {
		grown := make([]float64, len(other.Interleaved))
		copy(grown, s.Interleaved)
		s.Interleaved = grown
	}

	for i := range other.Interleaved {
		s.Interleaved[i] += other.Interleaved[i]
	}

	return nil
}

// MixDownToMono returns a slice of length FrameCount(), each element the
// sum of that frame's channels.
func (s *Samples) MixDownToMono() []float64 {
	frames := s.FrameCount()
	out := make([]float64, frames)

	for f := 0; f < frames; f++ {
		var sum float64
		for _, v := range s.Frame(f) {
			sum += v
		}

		out[f] = sum
	}

	return out
}

// Resample converts every channel to newRate via r (the resampler
// oracle, spec.md §1), updates SampleRate, and rescales metadata frame
// positions to match. A no-op when newRate equals the current rate.
func (s *Samples) Resample(newRate int, r resample.Resampler) {
	if newRate == s.SampleRate || newRate <= 0 {
		return
	}

	oldFrames := s.FrameCount()
	if oldFrames == 0 {
		s.SampleRate = newRate
		return
	}

	channels := make([][]float64, s.ChannelCount)
	for ch := range channels {
		channels[ch] = make([]float64, oldFrames)
		for f := 0; f < oldFrames; f++ {
			channels[ch][f] = s.Sample(ch, f)
		}
	}

	var newFrames int

	resampled := make([][]float64, s.ChannelCount)
	for ch := range channels {
		resampled[ch] = r.Resample(channels[ch], s.SampleRate, newRate)
		newFrames = len(resampled[ch])
	}

	s.Interleaved = make([]float64, newFrames*s.ChannelCount)
	for f := 0; f < newFrames; f++ {
		for ch := 0; ch < s.ChannelCount; ch++ {
			s.SetSample(ch, f, resampled[ch][f])
		}
	}

	factor := float64(newRate) / float64(s.SampleRate)
	s.SampleRate = newRate
	s.metadataWasStretched(factor)
}

// ChangePitch shifts pitch by cents without changing the file's overall
// sample rate: it resamples to sampleRate*ratio then restores the
// original declared rate, so the net effect is a time-and-pitch change
// via resampling (§4.2.3).
func (s *Samples) ChangePitch(cents float64, r resample.Resampler) {
	if cents == 0 || s.IsEmpty() {
		return
	}

	ratio := math.Pow(2, -cents/1200)
	originalRate := s.SampleRate

	s.Resample(int(math.Round(float64(originalRate)*ratio)), r)
	s.SampleRate = originalRate
}

// metadataWasStretched re-scales every loop/region/marker frame position
// after a sample-count-changing edit and drops anything that no longer
// fits (§4.2.3, §3 invariants).
func (s *Samples) metadataWasStretched(factor float64) []metadata.Warning {
	return s.Metadata.WasStretched(factor, uint64(s.FrameCount()))
}

// MetadataWasStretched is the exported form, for processors (trim,
// seamless-loop, sample-blend) that resize the buffer directly rather
// than through Resample/ChangePitch.
func (s *Samples) MetadataWasStretched(factor float64) []metadata.Warning {
	return s.metadataWasStretched(factor)
}

// FramesWereRemovedFromStart adjusts metadata after n frames were trimmed
// from the start of the buffer (§4.2.3).
func (s *Samples) FramesWereRemovedFromStart(n uint64) []metadata.Warning {
	return s.Metadata.RemovedFromStart(n)
}

// FramesWereRemovedFromEnd adjusts metadata after frames were trimmed
// from the end of the buffer (§4.2.3).
func (s *Samples) FramesWereRemovedFromEnd() []metadata.Warning {
	return s.Metadata.RemovedFromEnd(uint64(s.FrameCount()))
}

// PeakAbs returns the largest absolute sample value, or 0 for an empty
// buffer.
func (s *Samples) PeakAbs() float64 {
	var peak float64

	for _, v := range s.Interleaved {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}

	return peak
}

// RMS returns the root-mean-square level across all channels combined.
func (s *Samples) RMS() float64 {
	if len(s.Interleaved) == 0 {
		return 0
	}

	var sumSq float64
	for _, v := range s.Interleaved {
		sumSq += v * v
	}

	return math.Sqrt(sumSq / float64(len(s.Interleaved)))
}

// DetectPitch estimates the single dominant pitch across the whole
// buffer using the chunked, distance-weighted voting scheme of spec.md
// §4.2.3. Chunks for which the estimator reports no pitch take no part in
// the weighting; ok=false is returned only when the buffer is silent or no
// chunk reports a pitch at all.
func (s *Samples) DetectPitch(estimator pitch.Estimator) (hz float64, ok bool) {
	if s.IsEmpty() {
		return 0, false
	}

	mono := s.MixDownToMono()

	peak := 0.0
	for _, v := range mono {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}

	if peak == 0 {
		return 0, false
	}

	for i := range mono {
		mono[i] /= peak
	}

	const chunkMs = 100

	chunkFrames := s.SampleRate * chunkMs / 1000
	if chunkFrames <= 0 {
		chunkFrames = len(mono)
	}

	var chunks []pitchChunk

	for start := 0; start < len(mono); start += chunkFrames {
		end := start + chunkFrames
		if end > len(mono) {
			end = len(mono)
		}

		seg := mono[start:end]

		segHz, segOK := estimator.EstimateHz(seg, s.SampleRate)
		chunks = append(chunks, pitchChunk{hz: segHz, ok: segOK, rms: rmsOf(seg)})
	}

	bestHz, bestOK := weightedBestChunk(chunks)

	return voteForOctave(chunks, bestHz, bestOK)
}

// pitchChunk holds one 100ms chunk's pitch-oracle result, used only to
// weight and vote toward a single whole-file pitch estimate.
type pitchChunk struct {
	hz  float64
	ok  bool
	rms float64
}

// voteForOctave implements the octave-error-robustness pass of spec.md
// §4.2.3: the weighted-best chunk estimate is re-examined at ±1200/±2400
// cents (one and two octaves each way). Every chunk with a detected pitch
// casts one vote for each candidate it matches within 3 Hz, either
// directly or at an integer multiple or division of 1 to 4 (see
// supportsCandidate). The candidate with the most votes is returned; ties
// go to the unshifted estimate.
func voteForOctave(chunks []pitchChunk, bestHz float64, bestOK bool) (float64, bool) {
	if !bestOK {
		return 0, false
	}

	shifts := []float64{-2400, -1200, 0, 1200, 2400}
	candidates := make([]float64, len(shifts))

	for i, cents := range shifts {
		candidates[i] = bestHz * math.Pow(2, cents/1200)
	}

	votes := make([]int, len(candidates))

	for i, cand := range candidates {
		for _, c := range chunks {
			if !c.ok || c.hz == 0 {
				continue
			}

			if supportsCandidate(cand, c.hz) {
				votes[i]++
			}
		}
	}

	bestIdx := 2 // index of the 0-cent shift, the default winner on ties

	for i, v := range votes {
		if v > votes[bestIdx] {
			bestIdx = i
		}
	}

	return candidates[bestIdx], true
}

// supportsCandidate reports whether the observed chunk pitch hz is
// consistent with cand at some octave multiple/submultiple within 3 Hz.
func supportsCandidate(cand, hz float64) bool {
	for k := 1; k <= 4; k++ {
		if math.Abs(hz-cand*float64(k)) <= 3 {
			return true
		}

		if math.Abs(hz*float64(k)-cand) <= 3 {
			return true
		}
	}

	return false
}

func weightedBestChunk(chunks []pitchChunk) (float64, bool) {
	type weighted struct {
		hz     float64
		weight float64
	}

	var valid []weighted

	maxRMS := maxRMSOf(chunks)

	for i, c := range chunks {
		if !c.ok || c.hz == 0 {
			continue
		}

		var kernelSum float64

		for j, other := range chunks {
			if i == j || !other.ok || other.hz == 0 {
				continue
			}

			cents := 1200 * math.Log2(c.hz/other.hz)
			kernelSum += gaussian(cents, 10, 0.9)
		}

		rmsRel := 0.0
		if maxRMS > 0 {
			rmsRel = c.rms / maxRMS
		}

		boost := 1 + math.Cos(math.Pi/2*(1-rmsRel))*1.5
		weight := kernelSum * boost

		valid = append(valid, weighted{hz: c.hz, weight: weight})
	}

	if len(valid) == 0 {
		return 0, false
	}

	bestIdx := 0

	for i, v := range valid {
		if v.weight > valid[bestIdx].weight {
			bestIdx = i
		}
	}

	return valid[bestIdx].hz, true
}

func maxRMSOf(chunks []pitchChunk) float64 {
	var max float64

	for _, c := range chunks {
		if c.rms > max {
			max = c.rms
		}
	}

	return max
}

func gaussian(x, height, sigma float64) float64 {
	return height * math.Exp(-(x*x)/(2*sigma*sigma))
}

func rmsOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}

	var sum float64
	for _, v := range xs {
		sum += v * v
	}

	return math.Sqrt(sum / float64(len(xs)))
}
