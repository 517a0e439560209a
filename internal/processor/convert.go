package processor

import (
	"fmt"

	"github.com/SamWindell/signet/internal/audio"
	"github.com/SamWindell/signet/internal/codec"
	"github.com/SamWindell/signet/internal/dsp/resample"
	"github.com/SamWindell/signet/internal/fault"
	"github.com/SamWindell/signet/internal/file"
)

// ConvertOptions configures the Convert processor. SampleRate, BitDepth and
// Container are applied only when HasRate, HasDepth and HasFormat
// respectively are set; otherwise that dimension is left untouched.
type ConvertOptions struct {
	SampleRate int
	BitDepth   int
	Container  audio.Container
	HasRate    bool
	HasDepth   bool
	HasFormat  bool
	Resampler  resample.Resampler
}

// DefaultConvertOptions changes nothing until a dimension is set.
func DefaultConvertOptions() ConvertOptions {
	return ConvertOptions{Resampler: resample.CubicSpline{}}
}

// Convert changes a file's sample-rate, bit-depth, and/or container,
// pre-validating the whole batch against the target bit-depth/container
// combination before mutating any file (§4.5).
type Convert struct {
	base
	Options ConvertOptions
}

// NewConvert returns a Convert processor configured with opts.
func NewConvert(opts ConvertOptions) *Convert {
	return &Convert{
		base:    base{name: "convert", allowsOutputFolder: true, allowsSingleOutputFile: false},
		Options: opts,
	}
}

// ProcessFiles implements FileProcessor.
func (cv *Convert) ProcessFiles(c *file.Collection) []Warning {
	if err := cv.preValidate(c); err != nil {
		var warnings []Warning

		for _, f := range c.Files() {
			f.AddWarning(err.Error())
			warnings = append(warnings, Warning{File: f.CurrentPath(), Message: err.Error()})
		}

		return warnings
	}

	var warnings []Warning

	resampler := cv.Options.Resampler
	if resampler == nil {
		resampler = resample.CubicSpline{}
	}

	for _, f := range c.Files() {
		if f.LoadFailed() {
			continue
		}

		s := f.AudioMut()

		if cv.Options.HasFormat {
			s.Container = cv.Options.Container
		}

		if cv.Options.HasRate {
			s.Resample(cv.Options.SampleRate, resampler)
		}

		if cv.Options.HasDepth {
			s.BitsPerSample = cv.Options.BitDepth
		}
	}

	return warnings
}

// preValidate checks that every loaded file can satisfy the requested
// (container, bit-depth) pair before any file is mutated, per §4.5's
// "pre-validates that every file can satisfy the requested triple before
// mutating any."
func (cv *Convert) preValidate(c *file.Collection) error {
	if !cv.Options.HasFormat && !cv.Options.HasDepth {
		return nil
	}

	target := cv.Options.Container

	for _, f := range c.Files() {
		if f.LoadFailed() {
			continue
		}

		container := f.Audio().Container
		if cv.Options.HasFormat {
			container = target
		}

		depth := f.Audio().BitsPerSample
		if cv.Options.HasDepth {
			depth = cv.Options.BitDepth
		}

		valid, err := codec.ValidBitDepths(containerFilename(container))
		if err != nil {
			return err
		}

		ok := false

		for _, d := range valid {
			if d == depth {
				ok = true
				break
			}
		}

		if !ok {
			return fmt.Errorf("%w: %s does not support %d-bit samples", fault.ErrUnsupportedFormat, container, depth)
		}
	}

	return nil
}

// containerFilename returns a synthetic filename carrying the extension
// codec.ValidBitDepths dispatches on, since that function is keyed by
// extension rather than by audio.Container.
func containerFilename(c audio.Container) string {
	if c == audio.ContainerFLAC {
		return "x.flac"
	}

	return "x.wav"
}
