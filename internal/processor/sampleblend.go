package processor

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/SamWindell/signet/internal/audio"
	"github.com/SamWindell/signet/internal/dsp/resample"
	"github.com/SamWindell/signet/internal/file"
)

// SampleBlendOptions configures the Sample-blend generator.
type SampleBlendOptions struct {
	// SemitoneInterval is the spacing, in semitones, at which new
	// intermediate samples are synthesized between each root-noted pair.
	SemitoneInterval float64
	Resampler        resample.Resampler
}

// DefaultSampleBlendOptions generates a new sample every 2 semitones.
func DefaultSampleBlendOptions() SampleBlendOptions {
	return SampleBlendOptions{SemitoneInterval: 2, Resampler: resample.CubicSpline{}}
}

// SampleBlend synthesizes crossfades between neighbouring root-noted
// samples within a folder, pitch-shifting each side toward the target note
// and blending them by linear distance (§4.5). It only generates new
// files; it never mutates an existing one.
type SampleBlend struct {
	base
	Options SampleBlendOptions
}

// NewSampleBlend returns a SampleBlend processor configured with opts.
func NewSampleBlend(opts SampleBlendOptions) *SampleBlend {
	return &SampleBlend{
		base:    base{name: "sample-blend", allowsOutputFolder: true, allowsSingleOutputFile: false},
		Options: opts,
	}
}

type rootedFile struct {
	f    *file.EditTrackedFile
	note int
}

// GenerateFiles implements GeneratorProcessor.
func (sb *SampleBlend) GenerateFiles(c *file.Collection, j Journal) []Warning {
	resampler := sb.Options.Resampler
	if resampler == nil {
		resampler = resample.CubicSpline{}
	}

	var warnings []Warning

	for dir, files := range c.Folders() {
		rooted := rootedFilesIn(files)
		if len(rooted) < 2 {
			continue
		}

		sort.Slice(rooted, func(i, j int) bool { return rooted[i].note < rooted[j].note })

		for i := 0; i+1 < len(rooted); i++ {
			lo, hi := rooted[i], rooted[i+1]
			generated := sb.blendPair(lo, hi, dir, resampler)

			for _, g := range generated {
				c.Add(g)
				j.RecordGenerated(g.CurrentPath())
			}
		}
	}

	return warnings
}

// blendPair synthesizes one crossfaded file every SemitoneInterval
// semitones strictly between lo and hi's root notes.
func (sb *SampleBlend) blendPair(lo, hi rootedFile, dir string, r resample.Resampler) []*file.EditTrackedFile {
	var out []*file.EditTrackedFile

	step := sb.Options.SemitoneInterval
	if step <= 0 {
		step = 1
	}

	for target := float64(lo.note) + step; target < float64(hi.note); target += step {
		blended := blendAt(lo, hi, target, r)
		if blended == nil {
			continue
		}

		name := fmt.Sprintf("blend-%d-%d-%.1f.wav", lo.note, hi.note, target)
		path := filepath.Join(dir, name)

		out = append(out, file.NewGenerated(path, blended))
	}

	return out
}

// blendAt pitch-shifts copies of lo and hi toward target and mixes them
// by their linear distance from each endpoint.
func blendAt(lo, hi rootedFile, target float64, r resample.Resampler) *audio.Samples {
	loSamples := lo.f.Audio()
	hiSamples := hi.f.Audio()

	if loSamples.IsEmpty() || hiSamples.IsEmpty() {
		return nil
	}

	loCopy := cloneSamples(loSamples)
	hiCopy := cloneSamples(hiSamples)

	loCopy.ChangePitch((target-float64(lo.note))*100, r)
	hiCopy.ChangePitch((target-float64(hi.note))*100, r)

	span := float64(hi.note - lo.note)
	weightHi := (target - float64(lo.note)) / span
	weightLo := 1 - weightHi

	loCopy.MultiplyByScalar(weightLo)
	hiCopy.MultiplyByScalar(weightHi)

	if err := loCopy.Add(hiCopy); err != nil {
		return nil
	}

	return loCopy
}

func cloneSamples(s *audio.Samples) *audio.Samples {
	out := *s
	out.Interleaved = append([]float64(nil), s.Interleaved...)
	out.Metadata = s.Metadata.Clone()

	return &out
}

func rootedFilesIn(files []*file.EditTrackedFile) []rootedFile {
	var out []rootedFile

	for _, f := range files {
		if f.LoadFailed() {
			continue
		}

		mm := f.Audio().Metadata.MidiMapping
		if mm == nil {
			continue
		}

		out = append(out, rootedFile{f: f, note: mm.RootMidiNote})
	}

	return out
}
