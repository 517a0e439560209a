package file_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/SamWindell/signet/internal/audio"
	"github.com/SamWindell/signet/internal/codec"
	"github.com/SamWindell/signet/internal/file"
)

func writeTestWAV(t *testing.T, path string) {
	t.Helper()

	s := &audio.Samples{
		Interleaved:  []float64{0, 0.1, -0.1, 0.2},
		ChannelCount: 1,
		SampleRate:   44100,
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f.Close()

	if _, err := codec.Encode(path, f, s, 16); err != nil {
		t.Fatalf("Encode: %v", err)
	}
}

func TestLazyLoadOnlyHappensOnAccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.wav")
	writeTestWAV(t, path)

	f := file.New(path)
	if f.LoadFailed() {
		t.Fatal("LoadFailed should be false before any access")
	}

	s := f.Audio()
	if s.FrameCount() != 4 {
		t.Fatalf("FrameCount() = %d, want 4", s.FrameCount())
	}
}

func TestAudioChangedOnlyAfterMutAccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.wav")
	writeTestWAV(t, path)

	f := file.New(path)
	_ = f.Audio()
	if f.AudioChanged() {
		t.Fatal("AudioChanged should be false after a read-only access")
	}

	f.AudioMut().MultiplyByScalar(0.5)
	if !f.AudioChanged() {
		t.Fatal("AudioChanged should be true after AudioMut")
	}
}

func TestLoadFailureProducesPlaceholderAndWarning(t *testing.T) {
	f := file.New("/does/not/exist.wav")

	s := f.Audio()
	if s.FrameCount() != 0 {
		t.Fatalf("expected a zero-sample placeholder, got %d frames", s.FrameCount())
	}
	if !f.LoadFailed() {
		t.Fatal("expected LoadFailed to be true")
	}
	if len(f.Warnings()) == 0 {
		t.Fatal("expected at least one warning")
	}

	// AudioChanged must stay false even if something calls AudioMut on a
	// file that failed to load (§4.3: audio_dirty ∧ ¬load_failed).
	f.AudioMut()
	if f.AudioChanged() {
		t.Fatal("AudioChanged should be false when the initial load failed")
	}
}

func TestSetPathMarksPathChanged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.wav")
	writeTestWAV(t, path)

	f := file.New(path)
	if f.PathChanged() {
		t.Fatal("PathChanged should start false")
	}

	f.SetPath(filepath.Join(dir, "b.wav"))
	if !f.PathChanged() {
		t.Fatal("PathChanged should be true after SetPath")
	}
	if f.CurrentPath() != filepath.Join(dir, "b.wav") {
		t.Fatalf("CurrentPath() = %q", f.CurrentPath())
	}
	if f.OriginalPath != path {
		t.Fatalf("OriginalPath should never change, got %q", f.OriginalPath)
	}
}

func TestFormatChangedWhenContainerDiffersFromOriginal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.wav")
	writeTestWAV(t, path)

	f := file.New(path)
	s := f.AudioMut()
	if f.FormatChanged() {
		t.Fatal("FormatChanged should be false before any container change")
	}

	s.Container = audio.ContainerFLAC
	if !f.FormatChanged() {
		t.Fatal("FormatChanged should be true once the in-memory container diverges from the original")
	}
}

func TestCollectionDetectsWriteConflicts(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.wav")
	pathB := filepath.Join(dir, "b.wav")
	writeTestWAV(t, pathA)
	writeTestWAV(t, pathB)

	c := file.NewCollection([]string{pathA, pathB})
	if conflict, _ := c.WouldWritingConflict(); conflict {
		t.Fatal("expected no conflict before any rename")
	}

	c.Files()[1].SetPath(pathA)
	conflict, messages := c.WouldWritingConflict()
	if !conflict {
		t.Fatal("expected a conflict after both files resolve to the same current path")
	}
	if len(messages) != 1 {
		t.Fatalf("expected 1 conflict message, got %d: %v", len(messages), messages)
	}
}

func TestCollectionFoldersIndexGroupsByDirectory(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	pathA := filepath.Join(dir, "a.wav")
	pathB := filepath.Join(sub, "b.wav")
	writeTestWAV(t, pathA)
	writeTestWAV(t, pathB)

	c := file.NewCollection([]string{pathA, pathB})
	folders := c.Folders()

	if len(folders[dir]) != 1 {
		t.Fatalf("expected 1 file in %q, got %d", dir, len(folders[dir]))
	}
	if len(folders[sub]) != 1 {
		t.Fatalf("expected 1 file in %q, got %d", sub, len(folders[sub]))
	}
}

func TestCollectionReindexReflectsRenames(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	path := filepath.Join(dir, "a.wav")
	writeTestWAV(t, path)

	c := file.NewCollection([]string{path})
	c.Files()[0].SetPath(filepath.Join(sub, "a.wav"))
	c.Reindex()

	if len(c.Folders()[sub]) != 1 {
		t.Fatalf("expected 1 file reindexed into %q", sub)
	}
	if _, stillThere := c.Folders()[dir]; stillThere {
		t.Fatalf("expected %q to no longer hold any files", dir)
	}
}
