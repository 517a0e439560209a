package processor

import (
	"math"

	"github.com/SamWindell/signet/internal/audio"
	"github.com/SamWindell/signet/internal/file"
)

// silenceAllowance is the number of silent frames left as padding on each
// trimmed side, matching the original's silence_allowence constant (§4.5).
const silenceAllowance = 4

// SilenceRegion selects which end(s) of the file Remove-silence searches.
type SilenceRegion int

const (
	SilenceStart SilenceRegion = iota
	SilenceEnd
	SilenceBoth
)

// RemoveSilenceOptions configures the Remove-silence processor.
type RemoveSilenceOptions struct {
	ThresholdDecibels float64
	Region            SilenceRegion
}

// DefaultRemoveSilenceOptions returns the documented -90dB threshold over
// both ends.
func DefaultRemoveSilenceOptions() RemoveSilenceOptions {
	return RemoveSilenceOptions{ThresholdDecibels: -90, Region: SilenceBoth}
}

// RemoveSilence trims leading/trailing frames below a threshold, leaving a
// small pad of silence on each trimmed side (§4.5).
type RemoveSilence struct {
	base
	Options RemoveSilenceOptions
}

// NewRemoveSilence returns a RemoveSilence processor configured with opts.
func NewRemoveSilence(opts RemoveSilenceOptions) *RemoveSilence {
	return &RemoveSilence{
		base:    base{name: "remove-silence", allowsOutputFolder: true, allowsSingleOutputFile: false},
		Options: opts,
	}
}

// ProcessFiles implements FileProcessor.
func (r *RemoveSilence) ProcessFiles(c *file.Collection) []Warning {
	threshold := dbToAmp(r.Options.ThresholdDecibels)

	var warnings []Warning

	for _, f := range c.Files() {
		if f.LoadFailed() {
			continue
		}

		s := f.AudioMut()

		frames := s.FrameCount()
		if frames == 0 {
			continue
		}

		firstLoud, lastLoud, anyLoud := loudRange(s, threshold)
		if !anyLoud {
			continue
		}

		trimStart := 0
		trimEnd := 0

		if r.Options.Region == SilenceStart || r.Options.Region == SilenceBoth {
			trimStart = maxZero(firstLoud - silenceAllowance)
		}

		if r.Options.Region == SilenceEnd || r.Options.Region == SilenceBoth {
			trimEnd = maxZero(frames - 1 - lastLoud - silenceAllowance)
		}

		if trimStart == 0 && trimEnd == 0 {
			continue
		}

		if trimStart > 0 {
			s.Interleaved = s.Interleaved[trimStart*s.ChannelCount:]
			s.FramesWereRemovedFromStart(uint64(trimStart))
		}

		if trimEnd > 0 {
			remaining := s.FrameCount()
			s.Interleaved = s.Interleaved[:(remaining-trimEnd)*s.ChannelCount]
			s.FramesWereRemovedFromEnd()
		}
	}

	return warnings
}

func loudRange(s *audio.Samples, threshold float64) (first, last int, ok bool) {
	frames := s.FrameCount()
	first, last = -1, -1

	for i := 0; i < frames; i++ {
		if frameIsLoud(s.Frame(i), threshold) {
			if first == -1 {
				first = i
			}

			last = i
		}
	}

	if first == -1 {
		return 0, 0, false
	}

	return first, last, true
}

func frameIsLoud(frame []float64, threshold float64) bool {
	for _, v := range frame {
		if math.Abs(v) > threshold {
			return true
		}
	}

	return false
}

func maxZero(n int) int {
	if n < 0 {
		return 0
	}

	return n
}
