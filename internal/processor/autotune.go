package processor

import (
	"math"

	"github.com/SamWindell/signet/internal/dsp/pitch"
	"github.com/SamWindell/signet/internal/dsp/resample"
	"github.com/SamWindell/signet/internal/file"
	"github.com/SamWindell/signet/internal/midimap"
)

// AutoTuneOptions configures the Auto-tune processor.
type AutoTuneOptions struct {
	Estimator pitch.Estimator
	Resampler resample.Resampler
}

// DefaultAutoTuneOptions wires the reference pitch estimator and resampler.
func DefaultAutoTuneOptions() AutoTuneOptions {
	return AutoTuneOptions{Estimator: pitch.NewAutocorrelation(), Resampler: resample.CubicSpline{}}
}

// AutoTune detects each file's dominant pitch and snaps it to the nearest
// semitone, abstaining when it is already within 1 cent (§4.5).
type AutoTune struct {
	base
	Options AutoTuneOptions
}

// NewAutoTune returns an AutoTune processor configured with opts.
func NewAutoTune(opts AutoTuneOptions) *AutoTune {
	return &AutoTune{
		base:    base{name: "auto-tune", allowsOutputFolder: true, allowsSingleOutputFile: false},
		Options: opts,
	}
}

// ProcessFiles implements FileProcessor.
func (a *AutoTune) ProcessFiles(c *file.Collection) []Warning {
	estimator := a.Options.Estimator
	if estimator == nil {
		estimator = pitch.NewAutocorrelation()
	}

	resampler := a.Options.Resampler
	if resampler == nil {
		resampler = resample.CubicSpline{}
	}

	var warnings []Warning

	for _, f := range c.Files() {
		if f.LoadFailed() {
			continue
		}

		s := f.Audio()
		if s.IsEmpty() {
			continue
		}

		hz, ok := s.DetectPitch(estimator)
		if !ok {
			msg := "no clear pitch detected, left untouched"
			f.AddWarning(msg)
			warnings = append(warnings, Warning{File: f.CurrentPath(), Message: msg})

			continue
		}

		_, centsOffset := midimap.NoteForFrequency(hz)
		if math.Abs(centsOffset) < 1 {
			continue
		}

		f.AudioMut().ChangePitch(-centsOffset, resampler)
	}

	return warnings
}
