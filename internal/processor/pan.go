package processor

import (
	"github.com/SamWindell/signet/internal/file"
)

// PanOptions configures the Pan processor. Value is in [-1, 1]; negative
// attenuates the right channel, positive attenuates the left (supplemented
// from code/signet/commands/pan/pan.cpp), a representative "other
// processor" per §4.5.
type PanOptions struct {
	Value float64
}

// DefaultPanOptions is centered (no change).
func DefaultPanOptions() PanOptions {
	return PanOptions{}
}

// Pan applies a per-channel gain to stereo files.
type Pan struct {
	base
	Options PanOptions
}

// NewPan returns a Pan processor configured with opts.
func NewPan(opts PanOptions) *Pan {
	return &Pan{
		base:    base{name: "pan", allowsOutputFolder: true, allowsSingleOutputFile: false},
		Options: opts,
	}
}

// ProcessFiles implements FileProcessor. Files that are not exactly stereo
// are left untouched, since pan is undefined outside two channels.
func (p *Pan) ProcessFiles(c *file.Collection) []Warning {
	var warnings []Warning

	for _, f := range c.Files() {
		if f.LoadFailed() {
			continue
		}

		s := f.AudioMut()
		if s.ChannelCount != 2 {
			continue
		}

		value := p.Options.clamp().Value

		leftGain, rightGain := 1.0, 1.0

		if value < 0 {
			rightGain = 1 + value
		} else if value > 0 {
			leftGain = 1 - value
		}

		frames := s.FrameCount()
		for i := 0; i < frames; i++ {
			s.SetSample(0, i, s.Sample(0, i)*leftGain)
			s.SetSample(1, i, s.Sample(1, i)*rightGain)
		}
	}

	return warnings
}

func (p PanOptions) clamp() PanOptions {
	if p.Value < -1 {
		p.Value = -1
	}

	if p.Value > 1 {
		p.Value = 1
	}

	return p
}
