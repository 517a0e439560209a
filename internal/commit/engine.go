package commit

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/SamWindell/signet/internal/audio"
	"github.com/SamWindell/signet/internal/codec"
	"github.com/SamWindell/signet/internal/fault"
	"github.com/SamWindell/signet/internal/file"
)

// Engine runs the §4.8 commit pass over a finished collection: the
// conflict check, the per-file dirty-bit decision table, and the
// journal-before-mutate writes.
type Engine struct {
	Journal *Journal
}

// NewEngine returns an Engine backed by j.
func NewEngine(j *Journal) *Engine {
	return &Engine{Journal: j}
}

// Run performs §4.8 steps 1–5 over c. It aborts on the first error, per
// step 5: "Any I/O failure aborts further processing ... the partial
// journal is preserved so undo can reverse whatever completed." Run does
// not abort on conflicting write paths' own errors beyond the first — the
// conflict check (step 1) already ran and would have caught duplicate
// current paths before any file was touched.
func (e *Engine) Run(c *file.Collection) error {
	if conflict, pairs := c.WouldWritingConflict(); conflict {
		return fmt.Errorf("%w: %s", fault.ErrWriteConflict, strings.Join(pairs, "; "))
	}

	for _, f := range c.Files() {
		if f.LoadFailed() {
			continue
		}

		if err := e.commitFile(f); err != nil {
			return fmt.Errorf("%w: %s: %w (run `signet --undo` to reverse completed changes)",
				fault.ErrWriteFailure, f.CurrentPath(), err)
		}
	}

	return nil
}

// commitFile implements §4.8 step 3's decision table for one file.
func (e *Engine) commitFile(f *file.EditTrackedFile) error {
	audioChanged := f.AudioChanged()
	pathChanged := f.PathChanged()
	formatChanged := f.FormatChanged()

	if !audioChanged && !pathChanged && !formatChanged {
		return nil
	}

	original := f.OriginalPath
	current := f.CurrentPath()

	switch {
	case !audioChanged && pathChanged && !formatChanged:
		// rename
		return e.Journal.MoveFile(original, current)

	case !audioChanged && !pathChanged && formatChanged:
		// write new path (new extension); delete original
		return e.writeThenDeleteOriginal(f, original, newExtensionPath(original, f.Audio().Container))

	case !audioChanged && pathChanged && formatChanged:
		// write current path (new extension); delete original
		return e.writeThenDeleteOriginal(f, original, newExtensionPath(current, f.Audio().Container))

	case audioChanged && !pathChanged && !formatChanged:
		// overwrite-in-place
		return e.overwrite(f, current)

	case audioChanged && pathChanged && !formatChanged:
		// write current path; delete original
		return e.writeThenDeleteOriginal(f, original, current)

	case audioChanged && !pathChanged && formatChanged:
		// write new path (new extension); delete original
		return e.writeThenDeleteOriginal(f, original, newExtensionPath(original, f.Audio().Container))

	case audioChanged && pathChanged && formatChanged:
		// write current path (new extension); delete original
		return e.writeThenDeleteOriginal(f, original, newExtensionPath(current, f.Audio().Container))
	}

	return nil
}

func (e *Engine) overwrite(f *file.EditTrackedFile, path string) error {
	data, err := encode(f, path)
	if err != nil {
		return err
	}

	return e.Journal.OverwriteFile(path, data)
}

func (e *Engine) writeThenDeleteOriginal(f *file.EditTrackedFile, original, target string) error {
	data, err := encode(f, target)
	if err != nil {
		return err
	}

	if err := e.Journal.CreateFile(target, data); err != nil {
		return err
	}

	if target == original {
		return nil
	}

	return e.Journal.DeleteFile(original)
}

func encode(f *file.EditTrackedFile, path string) ([]byte, error) {
	samples := f.Audio()

	bits := samples.BitsPerSample
	if bits == 0 {
		bits = 16
	}

	var buf bytes.Buffer

	warnings, err := codec.Encode(path, &buf, samples, bits)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrEncodeFailure, err)
	}

	for _, w := range warnings {
		f.AddWarning(w)
	}

	return buf.Bytes(), nil
}

// newExtensionPath replaces path's extension with the one matching
// container ("write new path (new extension)", §4.8 step 3).
func newExtensionPath(path string, container audio.Container) string {
	ext := ".wav"
	if container == audio.ContainerFLAC {
		ext = ".flac"
	}

	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
