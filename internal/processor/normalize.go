package processor

import (
	"math"

	"github.com/SamWindell/signet/internal/audio"
	"github.com/SamWindell/signet/internal/file"
)

// NormalizeMode selects which magnitude a Normalize measures against.
type NormalizeMode int

const (
	NormalizePeak NormalizeMode = iota
	NormalizeRMS
)

// NormalizeOptions configures the Normalize processor.
type NormalizeOptions struct {
	TargetDecibels float64
	Mode           NormalizeMode
	// CommonGain, when true (the default per §4.5), registers every
	// file's magnitude first and applies the single gain that brings the
	// loudest file up to TargetDecibels to every file in the batch.
	// When false ("--independently"), each file is normalized to its own
	// magnitude.
	CommonGain bool
	// MixPercent interpolates between doing nothing (0) and the full
	// computed gain (100, the default).
	MixPercent float64
}

// DefaultNormalizeOptions returns -1dB peak, common-gain, full mix —
// the original's documented defaults.
func DefaultNormalizeOptions() NormalizeOptions {
	return NormalizeOptions{TargetDecibels: -1, Mode: NormalizePeak, CommonGain: true, MixPercent: 100}
}

type gainCalculator interface {
	registerBufferMagnitude(s *audio.Samples)
	largestMagnitude() float64
}

type peakGainCalculator struct{ max float64 }

func (c *peakGainCalculator) registerBufferMagnitude(s *audio.Samples) {
	if pk := s.PeakAbs(); pk > c.max {
		c.max = pk
	}
}

func (c *peakGainCalculator) largestMagnitude() float64 { return c.max }

type rmsGainCalculator struct{ max float64 }

func (c *rmsGainCalculator) registerBufferMagnitude(s *audio.Samples) {
	if r := s.RMS(); r > c.max {
		c.max = r
	}
}

func (c *rmsGainCalculator) largestMagnitude() float64 { return c.max }

func newGainCalculator(mode NormalizeMode) gainCalculator {
	if mode == NormalizeRMS {
		return &rmsGainCalculator{}
	}

	return &peakGainCalculator{}
}

// Normalize scales each file's audio so its peak (or RMS) level reaches a
// target in decibels (§4.5), either independently or via one gain shared
// across the whole batch.
type Normalize struct {
	base
	Options NormalizeOptions
}

// NewNormalize returns a Normalize processor configured with opts.
func NewNormalize(opts NormalizeOptions) *Normalize {
	return &Normalize{
		base:    base{name: "norm", allowsOutputFolder: true, allowsSingleOutputFile: false},
		Options: opts,
	}
}

// ProcessFiles implements FileProcessor.
func (n *Normalize) ProcessFiles(c *file.Collection) []Warning {
	targetAmp := dbToAmp(n.Options.TargetDecibels)
	mix := n.Options.MixPercent / 100

	var warnings []Warning

	if mix == 0 {
		return warnings
	}

	if n.Options.CommonGain {
		calc := newGainCalculator(n.Options.Mode)

		for _, f := range c.Files() {
			if f.LoadFailed() {
				continue
			}

			s := f.Audio()
			if s.IsEmpty() {
				continue
			}

			calc.registerBufferMagnitude(s)
		}

		if calc.largestMagnitude() == 0 {
			return warnings
		}

		gain := targetAmp / calc.largestMagnitude()
		applied := 1 + mix*(gain-1)

		for _, f := range c.Files() {
			if f.LoadFailed() {
				continue
			}

			s := f.AudioMut()
			if s.IsEmpty() {
				continue
			}

			s.MultiplyByScalar(applied)
		}

		return warnings
	}

	for _, f := range c.Files() {
		if f.LoadFailed() {
			continue
		}

		s := f.AudioMut()
		if s.IsEmpty() {
			continue
		}

		calc := newGainCalculator(n.Options.Mode)
		calc.registerBufferMagnitude(s)

		if calc.largestMagnitude() == 0 {
			continue
		}

		gain := targetAmp / calc.largestMagnitude()
		applied := 1 + mix*(gain-1)
		s.MultiplyByScalar(applied)
	}

	return warnings
}

func dbToAmp(db float64) float64 {
	return math.Pow(10, db/20)
}
