package processor

import (
	"math"

	"github.com/SamWindell/signet/internal/audio"
	"github.com/SamWindell/signet/internal/file"
)

// FadeShape is one of the six curve shapes a Fade can ramp through (§4.5).
type FadeShape int

const (
	FadeLinear FadeShape = iota
	FadeSine
	FadeSCurve
	FadeExp
	FadeLog
	FadeSqrt
)

// FadeDirection is which end of the buffer a Fade ramps.
type FadeDirection int

const (
	FadeIn FadeDirection = iota
	FadeOut
)

// fadeCurve maps a position x in [0, 1] to a gain in [0, 1], rising from
// exactly 0 to exactly 1 (§4.5: "endpoints are exactly 0 and 1").
func fadeCurve(shape FadeShape, x float64) float64 {
	switch shape {
	case FadeSine:
		return math.Sin(x * math.Pi / 2)
	case FadeSCurve:
		return 0.5 * (1 - math.Cos(x*math.Pi))
	case FadeExp:
		const k = 6.907755278982137 // ln(1000)
		return (math.Exp(x*k) - 1) / (math.Exp(k) - 1)
	case FadeLog:
		return math.Log10(x*9 + 1)
	case FadeSqrt:
		return math.Sqrt(x)
	default:
		return x
	}
}

// FadeOptions configures a single Fade pass.
type FadeOptions struct {
	Direction FadeDirection
	Shape     FadeShape
	Frames    uint64
}

// DefaultFadeOptions returns a 0-frame linear fade-in (a no-op until a
// duration is set).
func DefaultFadeOptions() FadeOptions {
	return FadeOptions{Direction: FadeIn, Shape: FadeLinear}
}

// Fade ramps the gain at one end of the buffer through one of six curve
// shapes (§4.5).
type Fade struct {
	base
	Options FadeOptions
}

// NewFade returns a Fade processor configured with opts.
func NewFade(opts FadeOptions) *Fade {
	return &Fade{
		base:    base{name: "fade", allowsOutputFolder: true, allowsSingleOutputFile: false},
		Options: opts,
	}
}

// ProcessFiles implements FileProcessor.
func (fd *Fade) ProcessFiles(c *file.Collection) []Warning {
	var warnings []Warning

	for _, f := range c.Files() {
		if f.LoadFailed() || fd.Options.Frames == 0 {
			continue
		}

		s := f.AudioMut()
		if s.IsEmpty() {
			continue
		}

		PerformFade(s, fd.Options.Direction, fd.Options.Shape, fd.Options.Frames)
	}

	return warnings
}

// PerformFade applies a fade of length n frames (clamped to the buffer's
// frame count) to the start (FadeIn) or end (FadeOut) of s in place.
func PerformFade(s *audio.Samples, direction FadeDirection, shape FadeShape, n uint64) {
	total := s.FrameCount()
	if total == 0 || n == 0 {
		return
	}

	length := int(n)
	if length > total {
		length = total
	}

	for i := 0; i < length; i++ {
		// x runs 0 -> 1 across the ramp regardless of direction; the frame
		// we apply it to, and whether we invert it, depends on direction.
		// Reaches 1 only at frame length (one past the ramp), so every
		// frame inside the ramp is strictly attenuated, frame 0 silenced.
		x := float64(i) / float64(length)

		gain := fadeCurve(shape, x)

		var frame int
		if direction == FadeIn {
			frame = i
		} else {
			gain = 1 - gain
			frame = total - length + i
		}

		for ch := 0; ch < s.ChannelCount; ch++ {
			s.SetSample(ch, frame, s.Sample(ch, frame)*gain)
		}
	}
}
