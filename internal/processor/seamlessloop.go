package processor

import (
	"github.com/SamWindell/signet/internal/file"
)

// SeamlessLoopOptions configures the Seamless-loop processor.
type SeamlessLoopOptions struct {
	// CrossfadePercent is the percentage of the file's length crossfaded
	// from the end onto the start (§4.5).
	CrossfadePercent float64
}

// DefaultSeamlessLoopOptions crossfades 10% of the file.
func DefaultSeamlessLoopOptions() SeamlessLoopOptions {
	return SeamlessLoopOptions{CrossfadePercent: 10}
}

// SeamlessLoop crossfades the last X% of a file onto its first X% with
// sine curves, then removes the leading X% so the file now begins exactly
// where the blended loop point is (§4.5).
type SeamlessLoop struct {
	base
	Options SeamlessLoopOptions
}

// NewSeamlessLoop returns a SeamlessLoop processor configured with opts.
func NewSeamlessLoop(opts SeamlessLoopOptions) *SeamlessLoop {
	return &SeamlessLoop{
		base:    base{name: "seamless-loop", allowsOutputFolder: true, allowsSingleOutputFile: false},
		Options: opts,
	}
}

// ProcessFiles implements FileProcessor.
func (sl *SeamlessLoop) ProcessFiles(c *file.Collection) []Warning {
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

		n := int(float64(frames) * sl.Options.CrossfadePercent / 100)
		if n <= 0 || n >= frames {
			continue
		}

		ch := s.ChannelCount

		// Copy the head region (the blend's fade-in side) before it is
		// mutated below, so it can be summed into the tail.
		head := make([]float64, n*ch)
		copy(head, s.Interleaved[:n*ch])
		fadeRawIn(head, n, ch, FadeSine)

		PerformFade(s, FadeOut, FadeSine, uint64(n))

		tailStart := (frames - n) * ch
		for i := range head {
			s.Interleaved[tailStart+i] += head[i]
		}

		s.Interleaved = s.Interleaved[n*ch:]
		s.FramesWereRemovedFromStart(uint64(n))
	}

	return warnings
}

// fadeRawIn applies a FadeIn curve directly to an interleaved buffer of
// exactly n frames, for the seamless-loop head copy that is summed into the
// tail rather than mutated in place on an audio.Samples.
func fadeRawIn(buf []float64, frames, channels int, shape FadeShape) {
	if frames == 0 {
		return
	}

	for i := 0; i < frames; i++ {
		x := float64(i) / float64(maxInt(frames-1, 1))
		gain := fadeCurve(shape, x)

		for ch := 0; ch < channels; ch++ {
			buf[i*channels+ch] *= gain
		}
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}

	return b
}
