package processor

import (
	"github.com/SamWindell/signet/internal/file"
)

// TrimOptions configures the Trim processor (§4.5, §4.2.3).
type TrimOptions struct {
	StartFrames uint64
	EndFrames   uint64
}

// DefaultTrimOptions removes nothing.
func DefaultTrimOptions() TrimOptions {
	return TrimOptions{}
}

// Trim removes a fixed number of frames from the start and/or end of each
// file, re-asserting the metadata invariants over what remains (§4.5).
type Trim struct {
	base
	Options TrimOptions
}

// NewTrim returns a Trim processor configured with opts.
func NewTrim(opts TrimOptions) *Trim {
	return &Trim{
		base:    base{name: "trim", allowsOutputFolder: true, allowsSingleOutputFile: false},
		Options: opts,
	}
}

// ProcessFiles implements FileProcessor.
func (t *Trim) ProcessFiles(c *file.Collection) []Warning {
	var warnings []Warning

	for _, f := range c.Files() {
		if f.LoadFailed() || (t.Options.StartFrames == 0 && t.Options.EndFrames == 0) {
			continue
		}

		s := f.AudioMut()

		frames := s.FrameCount()
		if frames == 0 {
			continue
		}

		start := int(t.Options.StartFrames)
		end := int(t.Options.EndFrames)

		if start+end >= frames {
			msg := "trim would remove the whole sample; file left untouched"
			f.AddWarning(msg)
			warnings = append(warnings, Warning{File: f.CurrentPath(), Message: msg})

			continue
		}

		if start > 0 {
			s.Interleaved = s.Interleaved[start*s.ChannelCount:]
			s.FramesWereRemovedFromStart(uint64(start))
		}

		if end > 0 {
			remaining := s.FrameCount()
			s.Interleaved = s.Interleaved[:(remaining-end)*s.ChannelCount]
			s.FramesWereRemovedFromEnd()
		}
	}

	return warnings
}
