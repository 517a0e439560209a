package processor

import (
	"github.com/SamWindell/signet/internal/dsp/resample"
	"github.com/SamWindell/signet/internal/file"
)

// TuneOptions configures the Tune processor.
type TuneOptions struct {
	Cents     float64
	Resampler resample.Resampler
}

// DefaultTuneOptions leaves pitch unchanged until Cents is set.
func DefaultTuneOptions() TuneOptions {
	return TuneOptions{Resampler: resample.CubicSpline{}}
}

// Tune shifts every file's pitch by a fixed number of cents (§4.5).
type Tune struct {
	base
	Options TuneOptions
}

// NewTune returns a Tune processor configured with opts.
func NewTune(opts TuneOptions) *Tune {
	return &Tune{
		base:    base{name: "tune", allowsOutputFolder: true, allowsSingleOutputFile: false},
		Options: opts,
	}
}

// ProcessFiles implements FileProcessor.
func (t *Tune) ProcessFiles(c *file.Collection) []Warning {
	resampler := t.Options.Resampler
	if resampler == nil {
		resampler = resample.CubicSpline{}
	}

	var warnings []Warning

	for _, f := range c.Files() {
		if f.LoadFailed() {
			continue
		}

		s := f.AudioMut()
		if s.IsEmpty() {
			continue
		}

		s.ChangePitch(t.Options.Cents, resampler)
	}

	return warnings
}
