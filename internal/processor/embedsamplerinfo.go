package processor

import (
	"github.com/SamWindell/signet/internal/audio"
	"github.com/SamWindell/signet/internal/dsp/pitch"
	"github.com/SamWindell/signet/internal/file"
	"github.com/SamWindell/signet/internal/metadata"
	"github.com/SamWindell/signet/internal/midimap"
)

// EmbedSamplerInfoOptions configures the embed-sampler-info processor
// (supplemented from code/signet/commands/embed_sampler_info, §SPEC_FULL
// item 5). Every field is optional; only the facets the caller sets are
// written into a file's Metadata.
type EmbedSamplerInfoOptions struct {
	// RootNote is the MIDI note (0-127) to root the sample at. If nil, the
	// root note is auto-detected from the file's dominant pitch, the way
	// the original falls back to pitch detection when no --root-note flag
	// is given.
	RootNote *int
	// SamplerMapping, if non-nil, sets the multisample key/velocity range
	// and per-sample fine-tune/gain. Clamped to its documented ranges.
	SamplerMapping *metadata.SamplerMapping
	// TimingInfo, if non-nil, sets the tempo-sync fields verbatim.
	TimingInfo *metadata.TimingInfo
	// WholeFileLoop, if true, adds a loop spanning the entire file (the
	// original's "mark this one-shot as loopable end-to-end" convenience).
	WholeFileLoop bool
	LoopType      metadata.LoopType

	Estimator pitch.Estimator
}

// DefaultEmbedSamplerInfoOptions wires the reference pitch estimator; every
// other field is left at its zero value (no mapping written unless asked
// for).
func DefaultEmbedSamplerInfoOptions() EmbedSamplerInfoOptions {
	return EmbedSamplerInfoOptions{Estimator: pitch.NewAutocorrelation()}
}

// EmbedSamplerInfo sets midi_mapping/sampler_mapping/timing_info/loop
// fields on each file's Metadata from the given options or, for the root
// note, from auto-detected pitch.
type EmbedSamplerInfo struct {
	base
	Options EmbedSamplerInfoOptions
}

// NewEmbedSamplerInfo returns an EmbedSamplerInfo processor configured with
// opts.
func NewEmbedSamplerInfo(opts EmbedSamplerInfoOptions) *EmbedSamplerInfo {
	return &EmbedSamplerInfo{
		base:    base{name: "embed-sampler-info", allowsOutputFolder: true, allowsSingleOutputFile: false},
		Options: opts,
	}
}

// ProcessFiles implements FileProcessor.
func (e *EmbedSamplerInfo) ProcessFiles(c *file.Collection) []Warning {
	estimator := e.Options.Estimator
	if estimator == nil {
		estimator = pitch.NewAutocorrelation()
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

		root, ok := e.resolveRootNote(s, estimator, f)
		if ok {
			mm := &metadata.MidiMapping{RootMidiNote: root}
			if e.Options.SamplerMapping != nil {
				clamped := e.Options.SamplerMapping.Clamp()
				mm.SamplerMapping = &clamped
			}

			s.Metadata.MidiMapping = mm
		} else if e.Options.RootNote == nil {
			msg := "no clear pitch detected, root note left unset"
			f.AddWarning(msg)
			warnings = append(warnings, Warning{File: f.CurrentPath(), Message: msg})
		}

		if e.Options.TimingInfo != nil {
			ti := *e.Options.TimingInfo
			s.Metadata.TimingInfo = &ti
		}

		if e.Options.WholeFileLoop {
			s.Metadata.Loops = append(s.Metadata.Loops, metadata.Loop{
				Type:       e.Options.LoopType,
				StartFrame: 0,
				NumFrames:  uint64(s.FrameCount()),
			})
		}
	}

	return warnings
}

// resolveRootNote returns the explicit RootNote option if set, else the
// nearest MIDI note to the file's auto-detected pitch.
func (e *EmbedSamplerInfo) resolveRootNote(s *audio.Samples, estimator pitch.Estimator, _ *file.EditTrackedFile) (int, bool) {
	if e.Options.RootNote != nil {
		return *e.Options.RootNote, true
	}

	hz, ok := s.DetectPitch(estimator)
	if !ok {
		return 0, false
	}

	note, _ := midimap.NoteForFrequency(hz)

	return note, true
}
