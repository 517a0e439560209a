// Package midimap converts between MIDI note numbers and their musical
// names, and between note numbers and frequency (§4.2.1's inst/smpl/acid
// root-note lift, §3's midi_mapping/sampler_mapping clamp ranges, and the
// rename processor's <detected-midi-note>/<detected-note> tokens).
//
// Conversion here is closed-form 12-tone-equal-temperament arithmetic, not a
// MIDI-library concern: nothing in this batch, non-interactive engine opens
// a MIDI port or parses a MIDI wire message (signet has no live-input
// surface, see spec §1 non-goals), so there is no component for a MIDI I/O
// library to serve. See DESIGN.md for the dropped-dependency note on
// gitlab.com/gomidi/midi/v2.
package midimap

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/SamWindell/signet/internal/fault"
)

// MinNote and MaxNote are the valid MIDI note number bounds (§3
// midi_mapping.root_midi_note ∈ 0..=127).
const (
	MinNote = 0
	MaxNote = 127
)

// middleCNote is the MIDI note number of the octave-4 "C4" commonly called
// middle C, per the naming convention used by samplers and DAWs (octave
// numbering has note/12 - 1 give "C4" for note 60).
const middleCNote = 60

var noteLetters = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Clamp restricts note to [MinNote, MaxNote].
func Clamp(note int) int {
	if note < MinNote {
		return MinNote
	}
	if note > MaxNote {
		return MaxNote
	}
	return note
}

// Name returns note's musical name, e.g. 60 -> "C4", 61 -> "C#4", 69 -> "A4".
func Name(note int) (string, error) {
	if note < MinNote || note > MaxNote {
		return "", fmt.Errorf("%w: midi note %d out of range 0..127", fault.ErrUnparseableToken, note)
	}

	octave := note/12 - 1
	letter := noteLetters[note%12]
	return fmt.Sprintf("%s%d", letter, octave), nil
}

// Note parses a musical note name (e.g. "C4", "c#4", "Db5", "A#-1") back
// into its MIDI note number. Either sharp ("#") or flat ("b") accidentals
// are accepted.
func Note(name string) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("%w: empty note name", fault.ErrUnparseableToken)
	}

	letter, rest := splitLetter(name)
	pitchClass, ok := pitchClassForLetter(letter)
	if !ok {
		return 0, fmt.Errorf("%w: unrecognized note letter in %q", fault.ErrUnparseableToken, name)
	}

	if rest == "" {
		return 0, fmt.Errorf("%w: missing octave in %q", fault.ErrUnparseableToken, name)
	}

	octave, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid octave in %q", fault.ErrUnparseableToken, name)
	}

	note := (octave+1)*12 + pitchClass
	if note < MinNote || note > MaxNote {
		return 0, fmt.Errorf("%w: %q resolves to out-of-range note %d", fault.ErrUnparseableToken, name, note)
	}

	return note, nil
}

// splitLetter separates name's leading letter-and-accidental run (e.g. "C#",
// "Db", "A") from its trailing octave digits (which may start with '-').
func splitLetter(name string) (letter, rest string) {
	if len(name) == 0 {
		return "", ""
	}

	first := name[0]
	if !((first >= 'A' && first <= 'G') || (first >= 'a' && first <= 'g')) {
		return "", name
	}

	i := 1
	for i < len(name) && (name[i] == '#' || name[i] == 'b') {
		i++
	}

	return name[:i], name[i:]
}

func pitchClassForLetter(letter string) (int, bool) {
	if letter == "" {
		return 0, false
	}

	base := map[byte]int{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}

	first := letter[0]
	if first >= 'a' && first <= 'z' {
		first -= 'a' - 'A'
	}

	pitchClass, ok := base[first]
	if !ok {
		return 0, false
	}

	for _, accidental := range letter[1:] {
		switch accidental {
		case '#':
			pitchClass++
		case 'b':
			pitchClass--
		default:
			return 0, false
		}
	}

	return ((pitchClass % 12) + 12) % 12, true
}

// Frequency returns the frequency in Hz of note under 12-tone equal
// temperament, A4 (note 69) tuned to 440 Hz.
func Frequency(note float64) float64 {
	return 440 * math.Pow(2, (note-69)/12)
}

// NoteForFrequency returns the nearest MIDI note number to freq, along with
// the residual offset in cents (positive meaning freq is sharp of that
// note). Used by detect_pitch's <detected-midi-note>/<detected-note> rename
// tokens.
func NoteForFrequency(freq float64) (note int, centsOffset float64) {
	exact := 69 + 12*math.Log2(freq/440)
	rounded := math.Round(exact)
	return int(rounded), (exact - rounded) * 100
}

// ShiftOctave returns note transposed by n octaves (12 semitones each),
// clamped to [MinNote, MaxNote].
func ShiftOctave(note, n int) int {
	return Clamp(note + n*12)
}
