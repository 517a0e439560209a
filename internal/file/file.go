// Package file implements the edit-tracked file wrapper and the in-memory
// collection processors operate over (§4.3, §4.4): lazy, failure-tolerant
// decode on first read, dirty-bit tracking for audio/path/format changes,
// and a path-indexed view rebuilt after each round of edits.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/SamWindell/signet/internal/audio"
	"github.com/SamWindell/signet/internal/codec"
)

// EditTrackedFile wraps one resolved input path, deferring the decode until
// something actually asks for the audio, and tracking whether the audio,
// path, or container has since changed so the commit engine (§4.8) can
// decide the minimal write for each file.
type EditTrackedFile struct {
	// OriginalPath is the path this file was resolved from; it never
	// changes for the lifetime of the wrapper.
	OriginalPath string
	// Filename is OriginalPath's base name with its extension stripped,
	// handy for rename/folderise tokens.
	Filename string

	currentPath       string
	samples           *audio.Samples
	warnings          []string
	loaded            bool
	loadFailed        bool
	audioDirty        bool
	pathDirty         bool
	originalContainer audio.Container
}

// New wraps path, not yet reading it.
func New(path string) *EditTrackedFile {
	base := filepath.Base(path)
	return &EditTrackedFile{
		OriginalPath: path,
		Filename:     strings.TrimSuffix(base, filepath.Ext(base)),
		currentPath:  path,
	}
}

// NewGenerated wraps samples as a brand-new file at path that never existed
// on disk, for generator processors (§4.5's generate_files, e.g.
// sample-blend). Unlike New, there is nothing to lazily decode: the file
// starts already loaded and with its audio marked dirty, since the whole
// point of a generated file is that the commit engine must write it out.
func NewGenerated(path string, samples *audio.Samples) *EditTrackedFile {
	f := New(path)
	f.samples = samples
	f.loaded = true
	f.audioDirty = true
	f.originalContainer = samples.Container

	return f
}

// Audio returns this file's decoded samples, decoding lazily on first call.
// A decode failure is recorded once and subsequent calls return a zero-value
// placeholder rather than re-attempting the read (§4.3: "mark load_failed
// and return a zero-sample placeholder").
func (f *EditTrackedFile) Audio() *audio.Samples {
	f.ensureLoaded()
	if f.samples == nil {
		return &audio.Samples{}
	}
	return f.samples
}

// AudioMut returns a mutable pointer to this file's decoded samples, and
// marks the file as having edited audio. Callers are expected to mutate
// through the returned pointer.
func (f *EditTrackedFile) AudioMut() *audio.Samples {
	f.ensureLoaded()
	f.audioDirty = true
	if f.samples == nil {
		f.samples = &audio.Samples{}
	}
	return f.samples
}

func (f *EditTrackedFile) ensureLoaded() {
	if f.loaded || f.loadFailed {
		return
	}

	r, err := os.Open(f.OriginalPath)
	if err != nil {
		f.loadFailed = true
		f.warnings = append(f.warnings, fmt.Sprintf("%s: could not open file: %v", f.OriginalPath, err))
		return
	}
	defer r.Close()

	samples, warnings, err := codec.Decode(f.OriginalPath, r)
	if err != nil {
		f.loadFailed = true
		f.warnings = append(f.warnings, fmt.Sprintf("%s: could not decode: %v", f.OriginalPath, err))
		return
	}

	f.samples = samples
	f.warnings = append(f.warnings, warnings...)
	f.originalContainer = samples.Container
	f.loaded = true
}

// Warnings returns every non-fatal warning accumulated for this file (decode
// failure, codec lift/lower warnings, processor warnings).
func (f *EditTrackedFile) Warnings() []string {
	return f.warnings
}

// AddWarning appends a non-fatal warning raised by a processor pass (§7:
// processors log and continue rather than aborting the run).
func (f *EditTrackedFile) AddWarning(msg string) {
	f.warnings = append(f.warnings, msg)
}

// LoadFailed reports whether the initial decode failed; once true it stays
// true for the file's lifetime.
func (f *EditTrackedFile) LoadFailed() bool {
	return f.loadFailed
}

// CurrentPath returns this file's path as of the most recent SetPath call,
// or OriginalPath if it was never renamed.
func (f *EditTrackedFile) CurrentPath() string {
	return f.currentPath
}

// SetPath renames this file's logical current path without touching disk;
// the commit engine applies the rename when it writes out edits.
func (f *EditTrackedFile) SetPath(path string) {
	f.pathDirty = true
	f.currentPath = path
}

// AudioChanged reports whether AudioMut was called and the initial decode
// succeeded (§4.3: audio_dirty ∧ ¬load_failed).
func (f *EditTrackedFile) AudioChanged() bool {
	return f.audioDirty && !f.loadFailed
}

// PathChanged reports whether SetPath was ever called.
func (f *EditTrackedFile) PathChanged() bool {
	return f.pathDirty
}

// FormatChanged reports whether the file was loaded and its current
// container differs from the one it was originally decoded from.
func (f *EditTrackedFile) FormatChanged() bool {
	return f.loaded && f.samples != nil && f.samples.Container != f.originalContainer
}

// Collection holds every file a run is operating on, plus a path-indexed
// view processors can use to look up neighbors within the same folder
// (§4.4, e.g. sample-blend's root-note pairing, folderise's per-directory
// grouping).
type Collection struct {
	files   []*EditTrackedFile
	folders map[string][]*EditTrackedFile
}

// NewCollection wraps paths (in the resolver's emission order) as a
// Collection, building the initial folder index.
func NewCollection(paths []string) *Collection {
	c := &Collection{}
	for _, p := range paths {
		c.files = append(c.files, New(p))
	}
	c.reindex()
	return c
}

// Files returns every file in the collection, in resolver emission order.
func (c *Collection) Files() []*EditTrackedFile {
	return c.files
}

// Size returns the number of files in the collection.
func (c *Collection) Size() int {
	return len(c.files)
}

// Add appends a newly generated file (e.g. sample-blend's crossfades) to the
// collection and rebuilds the folder index.
func (c *Collection) Add(f *EditTrackedFile) {
	c.files = append(c.files, f)
	c.reindex()
}

// Folders returns the cached, folder-path-keyed view of the collection.
// Callers must call Reindex after any round of path edits to keep this
// view current (§4.4: "rebuilt at construction and after any path edit
// round").
func (c *Collection) Folders() map[string][]*EditTrackedFile {
	return c.folders
}

// Reindex rebuilds the folder-path-keyed view from the current set of
// current paths.
func (c *Collection) Reindex() {
	c.reindex()
}

func (c *Collection) reindex() {
	c.folders = map[string][]*EditTrackedFile{}
	for _, f := range c.files {
		dir := filepath.Dir(f.CurrentPath())
		c.folders[dir] = append(c.folders[dir], f)
	}
}

// WouldWritingConflict reports whether any two files in the collection
// share a CurrentPath, logging every conflicting pair it finds (§4.4).
func (c *Collection) WouldWritingConflict() (bool, []string) {
	seen := map[string]*EditTrackedFile{}
	var conflicts []string

	for _, f := range c.files {
		if other, ok := seen[f.CurrentPath()]; ok {
			conflicts = append(conflicts, fmt.Sprintf(
				"%q and %q would both write to %q", other.OriginalPath, f.OriginalPath, f.CurrentPath()))
			continue
		}
		seen[f.CurrentPath()] = f
	}

	return len(conflicts) > 0, conflicts
}
