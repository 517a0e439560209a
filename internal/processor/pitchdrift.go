package processor

import (
	"fmt"
	"regexp"

	"github.com/SamWindell/signet/internal/dsp/pitch"
	"github.com/SamWindell/signet/internal/file"
	"github.com/SamWindell/signet/internal/pitchdrift"
)

// PitchDriftOptions configures the PitchDrift processor.
type PitchDriftOptions struct {
	ChunkMilliseconds float64
	Estimator         pitch.Estimator

	// SampleSetPattern and SampleSetAuthority configure identical-processing
	// sets (§4.6): when both are set, files are grouped by filename with
	// SampleSetPattern's single capture group replaced by "*", and the group
	// member whose capture equals SampleSetAuthority determines the ratio
	// schedule applied to every file in the group.
	SampleSetPattern   *regexp.Regexp
	SampleSetAuthority string
}

// DefaultPitchDriftOptions wires the reference pitch estimator and the
// documented default chunk length.
func DefaultPitchDriftOptions() PitchDriftOptions {
	return PitchDriftOptions{ChunkMilliseconds: 60, Estimator: pitch.NewAutocorrelation()}
}

// PitchDrift corrects regions of drifting pitch in single-note-instrument
// recordings by analysing the file in small chunks and smoothly
// speeding up or slowing down consistent-pitch regions (§4.6).
type PitchDrift struct {
	base
	Options PitchDriftOptions
}

// NewPitchDrift returns a PitchDrift processor configured with opts.
func NewPitchDrift(opts PitchDriftOptions) *PitchDrift {
	return &PitchDrift{
		base:    base{name: "fix-pitch-drift", allowsOutputFolder: true, allowsSingleOutputFile: false},
		Options: opts,
	}
}

// ProcessFiles implements FileProcessor.
func (p *PitchDrift) ProcessFiles(c *file.Collection) []Warning {
	if p.Options.SampleSetPattern != nil {
		return p.processSets(c)
	}

	var warnings []Warning

	for _, f := range c.Files() {
		if f.LoadFailed() {
			continue
		}

		if w, ok := p.correctOne(f, nil); !ok {
			warnings = append(warnings, w)
		}
	}

	return warnings
}

// correctOne runs the corrector against f's own audio, or, if schedule is
// non-nil, reuses an already-analysed schedule (the identical-processing
// set case, where a follower file must receive the authority's exact ratio
// curve rather than analyse its own pitch).
func (p *PitchDrift) correctOne(f *file.EditTrackedFile, schedule *pitchdrift.Corrector) (Warning, bool) {
	s := f.AudioMut()
	if s.IsEmpty() {
		return Warning{}, true
	}

	corrector := schedule
	if corrector == nil {
		mono := s.MixDownToMono()
		corrector = pitchdrift.New(mono, s.SampleRate, p.Options.ChunkMilliseconds, p.Options.Estimator)

		if !corrector.CanBeCorrected() {
			msg := "pitch detection is not reliable enough across this file's duration, left untouched"
			f.AddWarning(msg)

			return Warning{File: f.CurrentPath(), Message: msg}, false
		}

		corrector.Analyse()
	}

	before := s.FrameCount()
	out := corrector.CorrectedInterleaved(s.Interleaved, s.ChannelCount)
	s.Interleaved = out

	factor := float64(s.FrameCount()) / float64(before)
	s.MetadataWasStretched(factor)

	return Warning{}, true
}

// processSets implements §4.6's identical-processing sets: group files by
// filename with the capture group blanked out, find each group's authority
// file, analyse only the authority, and apply its exact ratio schedule to
// every file in the group (requiring equal frame counts).
func (p *PitchDrift) processSets(c *file.Collection) []Warning {
	var warnings []Warning

	type set struct {
		authority *file.EditTrackedFile
		members   []*file.EditTrackedFile
	}

	sets := map[string]*set{}
	order := []string{}

	for _, f := range c.Files() {
		if f.LoadFailed() {
			continue
		}

		key, capture := groupKey(f.Filename, p.Options.SampleSetPattern)

		s, ok := sets[key]
		if !ok {
			s = &set{}
			sets[key] = s
			order = append(order, key)
		}

		s.members = append(s.members, f)

		if capture == p.Options.SampleSetAuthority {
			s.authority = f
		}
	}

	for _, key := range order {
		s := sets[key]

		if s.authority == nil {
			msg := fmt.Sprintf("sample-set %q has no file matching authority %q, skipped",
				key, p.Options.SampleSetAuthority)
			warnings = append(warnings, Warning{Message: msg})

			continue
		}

		authorityFrames := s.authority.Audio().FrameCount()

		sameFrames := true

		for _, m := range s.members {
			if m.Audio().FrameCount() != authorityFrames {
				sameFrames = false
				break
			}
		}

		if !sameFrames {
			msg := fmt.Sprintf("sample-set %q: files do not all have the same number of frames, skipped", key)
			warnings = append(warnings, Warning{Message: msg})

			continue
		}

		authSamples := s.authority.AudioMut()
		mono := authSamples.MixDownToMono()
		corrector := pitchdrift.New(mono, authSamples.SampleRate, p.Options.ChunkMilliseconds, p.Options.Estimator)

		if !corrector.CanBeCorrected() {
			msg := fmt.Sprintf("sample-set %q: authority file cannot be pitch-drift corrected, skipped", key)
			warnings = append(warnings, Warning{File: s.authority.CurrentPath(), Message: msg})

			continue
		}

		corrector.Analyse()

		for _, m := range s.members {
			if w, ok := p.correctOne(m, corrector); !ok {
				warnings = append(warnings, w)
			}
		}
	}

	return warnings
}

// groupKey replaces pattern's single capture group within filename with
// "*", returning the resulting group key and the captured substring (for
// comparison against the configured authority literal). Files that don't
// match pattern are placed in their own singleton group keyed by filename.
func groupKey(filename string, pattern *regexp.Regexp) (key, capture string) {
	match := pattern.FindStringSubmatchIndex(filename)
	if match == nil || len(match) < 4 {
		return filename, ""
	}

	capture = filename[match[2]:match[3]]
	key = filename[:match[2]] + "*" + filename[match[3]:]

	return key, capture
}
