package processor

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/SamWindell/signet/internal/dsp/pitch"
	"github.com/SamWindell/signet/internal/fault"
	"github.com/SamWindell/signet/internal/file"
	"github.com/SamWindell/signet/internal/midimap"
)

var renameTokenPattern = regexp.MustCompile(`<[^<>]*>`)

// RenameOptions configures the Rename processor.
type RenameOptions struct {
	// Pattern is the new filename (without extension), containing literal
	// text and <token> placeholders (§4.5).
	Pattern string
	// CounterStart is the first value <counter> and <alpha-counter>
	// produce; subsequent files in the run increment it.
	CounterStart int
	Estimator    pitch.Estimator
}

// DefaultRenameOptions starts the counter at 1 and wires the reference
// pitch estimator for <detected-*> tokens.
func DefaultRenameOptions() RenameOptions {
	return RenameOptions{CounterStart: 1, Estimator: pitch.NewAutocorrelation()}
}

// Rename applies a textual substitution to each file's name (§4.5).
// Recognized tokens: <counter>, <alpha-counter>, <detected-pitch>,
// <detected-midi-note>, <detected-note>, <detected-note-octave>, and
// <parent-folder>, <parent-folder-snake>, <parent-folder-camel>. Any other
// <...> token is an error.
type Rename struct {
	base
	Options RenameOptions
}

// NewRename returns a Rename processor configured with opts.
func NewRename(opts RenameOptions) *Rename {
	return &Rename{
		base:    base{name: "rename", allowsOutputFolder: false, allowsSingleOutputFile: false},
		Options: opts,
	}
}

// ProcessFiles implements FileProcessor.
func (r *Rename) ProcessFiles(c *file.Collection) []Warning {
	estimator := r.Options.Estimator
	if estimator == nil {
		estimator = pitch.NewAutocorrelation()
	}

	var warnings []Warning

	counter := r.Options.CounterStart

	for _, f := range c.Files() {
		newName, err := r.substitute(f, counter, estimator)
		if err != nil {
			f.AddWarning(err.Error())
			warnings = append(warnings, Warning{File: f.CurrentPath(), Message: err.Error()})

			counter++

			continue
		}

		dir := filepath.Dir(f.CurrentPath())
		ext := filepath.Ext(f.CurrentPath())
		f.SetPath(filepath.Join(dir, newName+ext))

		counter++
	}

	return warnings
}

func (r *Rename) substitute(f *file.EditTrackedFile, counter int, estimator pitch.Estimator) (string, error) {
	var outerErr error

	result := renameTokenPattern.ReplaceAllStringFunc(r.Options.Pattern, func(token string) string {
		if outerErr != nil {
			return token
		}

		replacement, err := renameTokenValue(token, f, counter, estimator)
		if err != nil {
			outerErr = err
			return token
		}

		return replacement
	})

	if outerErr != nil {
		return "", outerErr
	}

	return result, nil
}

func renameTokenValue(token string, f *file.EditTrackedFile, counter int, estimator pitch.Estimator) (string, error) {
	switch token {
	case "<counter>":
		return strconv.Itoa(counter), nil
	case "<alpha-counter>":
		return alphaCounter(counter), nil
	case "<parent-folder>":
		return filepath.Base(filepath.Dir(f.CurrentPath())), nil
	case "<parent-folder-snake>":
		return toSnakeCase(filepath.Base(filepath.Dir(f.CurrentPath()))), nil
	case "<parent-folder-camel>":
		return toCamelCase(filepath.Base(filepath.Dir(f.CurrentPath()))), nil
	case "<detected-pitch>":
		hz, ok := f.Audio().DetectPitch(estimator)
		if !ok {
			return "", fmt.Errorf("%w: no pitch detected for %s", fault.ErrUnparseableToken, f.OriginalPath)
		}

		return fmt.Sprintf("%.2f", hz), nil
	case "<detected-midi-note>":
		hz, ok := f.Audio().DetectPitch(estimator)
		if !ok {
			return "", fmt.Errorf("%w: no pitch detected for %s", fault.ErrUnparseableToken, f.OriginalPath)
		}

		note, _ := midimap.NoteForFrequency(hz)

		return strconv.Itoa(note), nil
	case "<detected-note>", "<detected-note-octave>":
		hz, ok := f.Audio().DetectPitch(estimator)
		if !ok {
			return "", fmt.Errorf("%w: no pitch detected for %s", fault.ErrUnparseableToken, f.OriginalPath)
		}

		note, _ := midimap.NoteForFrequency(hz)

		name, err := midimap.Name(note)
		if err != nil {
			return "", err
		}

		if token == "<detected-note>" {
			return strings.TrimRight(name, "-0123456789"), nil
		}

		return name, nil
	default:
		return "", fmt.Errorf("%w: unrecognized rename token %q", fault.ErrUnparseableToken, token)
	}
}

func alphaCounter(n int) string {
	if n <= 0 {
		n = 1
	}

	var letters []byte

	for n > 0 {
		n--
		letters = append([]byte{byte('A' + n%26)}, letters...)
		n /= 26
	}

	return string(letters)
}

func toSnakeCase(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")

	return strings.ToLower(s)
}

func toCamelCase(s string) string {
	parts := regexp.MustCompile(`[\s_-]+`).Split(s, -1)

	var b strings.Builder

	for i, p := range parts {
		if p == "" {
			continue
		}

		if i == 0 {
			b.WriteString(strings.ToLower(p))
			continue
		}

		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(strings.ToLower(p[1:]))
	}

	return b.String()
}
