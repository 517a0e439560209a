package processor

import (
	"github.com/SamWindell/signet/internal/file"
)

// ZeroCrossOffsetOptions configures the ZeroCrossOffset processor.
type ZeroCrossOffsetOptions struct {
	// SearchFrames bounds how far into the file a zero-crossing is
	// searched for before giving up (§SUPPLEMENTED FEATURES #2).
	SearchFrames int
}

// DefaultZeroCrossOffsetOptions searches the first 2000 frames.
func DefaultZeroCrossOffsetOptions() ZeroCrossOffsetOptions {
	return ZeroCrossOffsetOptions{SearchFrames: 2000}
}

// ZeroCrossOffset trims leading frames up to the first zero-crossing
// within a search window, avoiding a click at the new start (supplemented
// from code/audio_utils/offset_start_to_zero_crossing).
type ZeroCrossOffset struct {
	base
	Options ZeroCrossOffsetOptions
}

// NewZeroCrossOffset returns a ZeroCrossOffset processor configured with opts.
func NewZeroCrossOffset(opts ZeroCrossOffsetOptions) *ZeroCrossOffset {
	return &ZeroCrossOffset{
		base:    base{name: "zcross-offset", allowsOutputFolder: true, allowsSingleOutputFile: false},
		Options: opts,
	}
}

// ProcessFiles implements FileProcessor.
func (z *ZeroCrossOffset) ProcessFiles(c *file.Collection) []Warning {
	var warnings []Warning

	for _, f := range c.Files() {
		if f.LoadFailed() {
			continue
		}

		s := f.AudioMut()

		frames := s.FrameCount()
		if frames < 2 {
			continue
		}

		limit := z.Options.SearchFrames
		if limit <= 0 || limit > frames-1 {
			limit = frames - 1
		}

		crossing := -1

		for i := 1; i <= limit; i++ {
			if frameCrossesZero(s.Sample(0, i-1), s.Sample(0, i)) {
				crossing = i
				break
			}
		}

		if crossing <= 0 {
			continue
		}

		s.Interleaved = s.Interleaved[crossing*s.ChannelCount:]
		s.FramesWereRemovedFromStart(uint64(crossing))
	}

	return warnings
}

func frameCrossesZero(prev, cur float64) bool {
	return (prev < 0 && cur >= 0) || (prev > 0 && cur <= 0)
}
