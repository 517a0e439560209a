// Package pitchdrift implements the pitch-drift corrector's analysis and
// retune passes (§4.6): chunked pitch detection, outlier smoothing and
// marking, ignore-region detection, per-region target pitch, and a cubic
// interpolation retune pass driven by a heavily-smoothed pitch ratio. It is
// grounded on
// code/signet/commands/fix_pitch_drift/pitch_drift_corrector.cpp, kept as a
// standalone package (rather than folded into processor) since it is pure
// DSP with no dependency on file.Collection.
package pitchdrift

import (
	"math"

	"github.com/SamWindell/signet/internal/dsp/pitch"
	"github.com/SamWindell/signet/internal/dsp/retune"
)

const (
	minConsecutiveGoodChunks = 7
	minIgnoreRegionSize      = 4
	outlierDeviationEpsilon  = 1.006
	smoothingFilterCutoff    = 0.00007
	numValueBands            = 5
)

// Chunk is one fixed-length analysis window of the mixed-down mono signal.
type Chunk struct {
	FrameStart    int
	FrameSize     int
	DetectedPitch float64

	Outlier      bool
	IgnoreTuning bool
	TargetPitch  float64

	// PitchRatioForPrint is the smoothed ratio at the start of this chunk,
	// kept for diagnostics (the original's --print-csv option).
	PitchRatioForPrint float64
}

// Corrector analyses one file's mono signal into chunks and can then
// re-synthesize a pitch-drift-corrected version of any signal that shares
// its chunk boundaries (the identical-processing-set authority/follower
// split in §4.6 requires reusing one ratio schedule across several files).
type Corrector struct {
	ChunkMilliseconds float64
	Estimator         pitch.Estimator

	chunks     []Chunk
	sampleRate int
}

// New analyses mono (already a mix-down of the source file) into chunks,
// running estimator over each chunk_ms window. chunkMS is clamped to
// [20,200] per §4.6; a zero or negative value defaults to 60.
func New(mono []float64, sampleRate int, chunkMS float64, estimator pitch.Estimator) *Corrector {
	if chunkMS <= 0 {
		chunkMS = 60
	}

	if chunkMS < 20 {
		chunkMS = 20
	}

	if chunkMS > 200 {
		chunkMS = 200
	}

	if estimator == nil {
		estimator = pitch.NewAutocorrelation()
	}

	chunkFrames := int(chunkMS / 1000 * float64(sampleRate))
	if chunkFrames < 1 {
		chunkFrames = 1
	}

	c := &Corrector{ChunkMilliseconds: chunkMS, Estimator: estimator, sampleRate: sampleRate}

	for frame := 0; frame < len(mono); frame += chunkFrames {
		size := chunkFrames
		if frame+size > len(mono) {
			size = len(mono) - frame
		}

		hz, ok := estimator.EstimateHz(mono[frame:frame+size], sampleRate)
		if !ok {
			hz = 0
		}

		c.chunks = append(c.chunks, Chunk{FrameStart: frame, FrameSize: size, DetectedPitch: hz})
	}

	return c
}

// Chunks returns the analysed chunk schedule, after fixObviousOutliers,
// markOutliers, markRegionsToIgnore and markTargetPitches have been run by
// Analyse.
func (c *Corrector) Chunks() []Chunk {
	return c.chunks
}

// CanBeCorrected reports the §4.6 viability gate: at least 75% of chunks
// must have a non-zero detected pitch.
func (c *Corrector) CanBeCorrected() bool {
	if len(c.chunks) == 0 {
		return false
	}

	detected := 0

	for _, chunk := range c.chunks {
		if chunk.DetectedPitch != 0 {
			detected++
		}
	}

	return float64(detected)/float64(len(c.chunks))*100 >= 75
}

// Analyse runs the full marking pipeline (outlier smoothing, outlier
// marking, ignore-region marking, target pitch assignment) over the
// chunk schedule. It must be called before CorrectedInterleaved.
func (c *Corrector) Analyse() {
	c.fixObviousOutliers()
	c.markOutliers()
	c.markRegionsToIgnore()
	c.markTargetPitches()
}

func centsDifference(a, b float64) float64 {
	if a <= 0 || b <= 0 {
		return math.Inf(1)
	}

	return 1200 * math.Log2(a/b)
}

func pitchesRoughlyEqual(a, b, thresholdCents float64) bool {
	return math.Abs(centsDifference(a, b)) < thresholdCents
}

// fixObviousOutliers erases single-chunk detector spikes inside otherwise
// stable regions (§4.6 "Outlier smoothing pass").
func (c *Corrector) fixObviousOutliers() {
	for i := 2; i < len(c.chunks); i++ {
		chunk := &c.chunks[i]
		prev := c.chunks[i-1]

		deviation := math.Inf(1)
		if chunk.DetectedPitch != 0 {
			deviation = math.Max(chunk.DetectedPitch, prev.DetectedPitch) / math.Min(chunk.DetectedPitch, prev.DetectedPitch)
		}

		if deviation > outlierDeviationEpsilon && pitchesRoughlyEqual(prev.DetectedPitch, c.chunks[i-2].DetectedPitch, 3) {
			chunk.DetectedPitch = prev.DetectedPitch
		}
	}
}

// ringMean is a fixed-size moving average over the last 5 added values.
type ringMean struct {
	buf   [5]float64
	count int
	next  int
}

func (r *ringMean) add(v float64) {
	r.buf[r.next] = v
	r.next = (r.next + 1) % len(r.buf)

	if r.count < len(r.buf) {
		r.count++
	}
}

func (r *ringMean) mean() float64 {
	if r.count == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < r.count; i++ {
		sum += r.buf[i]
	}

	return sum / float64(r.count)
}

// markOutliers marks chunks that deviate too far from a 5-chunk running
// mean (§4.6 "Outlier marking").
func (c *Corrector) markOutliers() {
	if len(c.chunks) == 0 {
		return
	}

	var mean ringMean
	mean.add(c.chunks[0].DetectedPitch)

	for i := range c.chunks {
		chunk := &c.chunks[i]

		if !pitchesRoughlyEqual(chunk.DetectedPitch, mean.mean(), 3) {
			chunk.Outlier = true
		}

		mean.add(chunk.DetectedPitch)
	}
}

// markRegionsToIgnore finds maximal runs of >= minIgnoreRegionSize outlier
// chunks that are bounded by file ends or by >= minConsecutiveGoodChunks
// non-outlier chunks, and marks every chunk in such a run ignore_tuning
// (§4.6 "Ignore-region marking").
func (c *Corrector) markRegionsToIgnore() {
	nextOutlier := func(from int) int {
		for i := from; i < len(c.chunks); i++ {
			if c.chunks[i].Outlier {
				return i
			}
		}

		return len(c.chunks)
	}

	firstOutlier := nextOutlier(0)
	if firstOutlier == len(c.chunks) {
		return
	}

	var regions [][2]int

	regionStart := firstOutlier
	if firstOutlier < minConsecutiveGoodChunks {
		regionStart = 0
	}

	cursor := firstOutlier + 1

	for {
		next := nextOutlier(cursor)
		distance := next - cursor

		if distance >= minConsecutiveGoodChunks || next == len(c.chunks) {
			regionSize := cursor - regionStart
			if regionSize >= minIgnoreRegionSize {
				regions = append(regions, [2]int{regionStart, cursor})
			}

			regionStart = next
		}

		if next == len(c.chunks) {
			break
		}

		cursor = next + 1
	}

	for _, r := range regions {
		for i := r[0]; i < r[1]; i++ {
			c.chunks[i].IgnoreTuning = true
		}
	}
}

// targetPitchForRegion implements §4.6's "Target pitch per non-ignore
// region" mode-band search.
func targetPitchForRegion(chunks []Chunk) float64 {
	minP, maxP := chunks[0].DetectedPitch, chunks[0].DetectedPitch

	for _, c := range chunks {
		if c.DetectedPitch < minP {
			minP = c.DetectedPitch
		}

		if c.DetectedPitch > maxP {
			maxP = c.DetectedPitch
		}
	}

	bandOf := func(p float64) int {
		if maxP == minP {
			return 0
		}

		band := int((p - minP) / (maxP - minP) * numValueBands)
		if band >= numValueBands {
			band = numValueBands - 1
		}

		if band < 0 {
			band = 0
		}

		return band
	}

	var counts [numValueBands]int
	bandIndex := make([]int, len(chunks))

	for i, c := range chunks {
		b := bandOf(c.DetectedPitch)
		bandIndex[i] = b
		counts[b]++
	}

	modeBand := 0
	for b := 1; b < numValueBands; b++ {
		if counts[b] > counts[modeBand] {
			modeBand = b
		}
	}

	var sum float64

	var n int

	for i, c := range chunks {
		if bandIndex[i] == modeBand {
			sum += c.DetectedPitch
			n++
		}
	}

	if n == 0 {
		return (minP + maxP) / 2
	}

	return sum / float64(n)
}

// markTargetPitches assigns each non-ignored region's chunks a shared
// target pitch (§4.6 "Target pitch per non-ignore region").
func (c *Corrector) markTargetPitches() {
	i := 0
	for i < len(c.chunks) {
		if c.chunks[i].IgnoreTuning {
			i++
			continue
		}

		start := i
		for i < len(c.chunks) && !c.chunks[i].IgnoreTuning {
			i++
		}

		target := targetPitchForRegion(c.chunks[start:i])
		for j := start; j < i; j++ {
			c.chunks[j].TargetPitch = target
		}
	}
}

// CorrectedInterleaved re-synthesizes interleaved (length frames*channels)
// using this Corrector's chunk schedule (frame_start/frame_size must match
// the schedule used to build it — the identical-processing-set authority
// and its followers all share one Corrector for exactly this reason).
// It implements §4.6's "Retune pass" via internal/dsp/retune's cubic
// interpolation and smoothed-ratio stepper.
func (c *Corrector) CorrectedInterleaved(interleaved []float64, channels int) []float64 {
	frameCount := len(interleaved) / channels

	channelSources := make([]retune.Source, channels)
	for ch := range channelSources {
		src := make(retune.Source, frameCount)
		for f := 0; f < frameCount; f++ {
			src[f] = interleaved[f*channels+ch]
		}

		channelSources[ch] = src
	}

	ratio := retune.NewSmoother()
	ratio.Cutoff = smoothingFilterCutoff

	chunkIdx := 0

	updateRatio := func(hardReset bool) {
		chunk := &c.chunks[chunkIdx]

		target := 1.0
		if !chunk.IgnoreTuning {
			cents := centsDifference(chunk.DetectedPitch, chunk.TargetPitch)
			target = math.Exp2((cents / 100.0) / 12.0)
		}

		if hardReset {
			ratio.Reset(target)
		} else {
			ratio.SetTarget(target)
		}

		chunk.PitchRatioForPrint = ratio.Current
	}

	if len(c.chunks) > 0 {
		updateRatio(true)
	}

	var out []float64

	pos := 0.0

	for pos <= float64(frameCount-1) {
		for ch := 0; ch < channels; ch++ {
			out = append(out, channelSources[ch].InterpolateAt(pos))
		}

		pos += ratio.Step()

		if chunkIdx < len(c.chunks) && pos >= float64(c.chunks[chunkIdx].FrameStart+c.chunks[chunkIdx].FrameSize) {
			chunkIdx++
			if chunkIdx < len(c.chunks) {
				updateRatio(false)
			} else {
				chunkIdx = len(c.chunks) - 1
			}
		}
	}

	return out
}
