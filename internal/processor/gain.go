package processor

import (
	"fmt"
	"math"

	"github.com/SamWindell/signet/internal/file"
	"github.com/SamWindell/signet/internal/fault"
)

// GainUnit is the unit a Gain value is expressed in (§4.5).
type GainUnit int

const (
	GainDecibels GainUnit = iota
	GainPercent
)

// GainOptions configures the Gain processor.
type GainOptions struct {
	Value float64
	Unit  GainUnit
}

// DefaultGainOptions returns 0 dB, i.e. unity gain.
func DefaultGainOptions() GainOptions {
	return GainOptions{Value: 0, Unit: GainDecibels}
}

// Multiplier returns the linear multiplier Value/Unit describes. A negative
// percentage is rejected (§4.5: "% < 0 rejected").
func (o GainOptions) Multiplier() (float64, error) {
	switch o.Unit {
	case GainPercent:
		if o.Value < 0 {
			return 0, fmt.Errorf("%w: negative percentage gain %v", fault.ErrUnparseableToken, o.Value)
		}

		return o.Value / 100, nil
	default:
		return math.Pow(10, o.Value/20), nil
	}
}

// Gain multiplies every sample by a constant multiplier (§4.5).
type Gain struct {
	base
	Options GainOptions
}

// NewGain returns a Gain processor configured with opts.
func NewGain(opts GainOptions) *Gain {
	return &Gain{
		base:    base{name: "gain", allowsOutputFolder: true, allowsSingleOutputFile: false},
		Options: opts,
	}
}

// ProcessFiles implements FileProcessor.
func (g *Gain) ProcessFiles(c *file.Collection) []Warning {
	multiplier, err := g.Options.Multiplier()
	if err != nil {
		var warnings []Warning
		for _, f := range c.Files() {
			f.AddWarning(err.Error())
			warnings = append(warnings, Warning{File: f.CurrentPath(), Message: err.Error()})
		}

		return warnings
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

		s.MultiplyByScalar(multiplier)
	}

	return warnings
}
