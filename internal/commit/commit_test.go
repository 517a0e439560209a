package commit_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/SamWindell/signet/internal/audio"
	"github.com/SamWindell/signet/internal/codec"
	"github.com/SamWindell/signet/internal/commit"
	"github.com/SamWindell/signet/internal/file"
)

func writeFixture(t *testing.T, path string, value float64) {
	t.Helper()

	s := &audio.Samples{Interleaved: []float64{value, value}, ChannelCount: 1, SampleRate: 44100}

	var buf bytes.Buffer
	if _, err := codec.Encode(path, &buf, s, 16); err != nil {
		t.Fatalf("encoding fixture: %v", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
}

func decodeFixture(t *testing.T, path string) *audio.Samples {
	t.Helper()

	r, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening %q: %v", path, err)
	}
	defer r.Close()

	s, _, err := codec.Decode(path, r)
	if err != nil {
		t.Fatalf("decoding %q: %v", path, err)
	}

	return s
}

func TestCommitNoDirtyBitsIsNoop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.wav")
	writeFixture(t, path, 0.5)

	c := file.NewCollection([]string{path})
	c.Files()[0].Audio() // load, but never mutate

	j := commit.NewAt(filepath.Join(dir, "backup"))
	if err := commit.NewEngine(j).Run(c); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "backup", "backup.json")); !os.IsNotExist(err) {
		t.Fatal("a run with no dirty bits should never write a journal (lazy clear, §4.8 step 2)")
	}
}

func TestCommitRenameOnly(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "a.wav")
	newPath := filepath.Join(dir, "b.wav")
	writeFixture(t, oldPath, 0.5)

	c := file.NewCollection([]string{oldPath})
	f := c.Files()[0]
	f.Audio() // load
	f.SetPath(newPath)

	j := commit.NewAt(filepath.Join(dir, "backup"))
	if err := commit.NewEngine(j).Run(c); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Fatal("original path should no longer exist after a rename")
	}

	if _, err := os.Stat(newPath); err != nil {
		t.Fatalf("renamed path should exist: %v", err)
	}
}

func TestCommitOverwriteInPlace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.wav")
	writeFixture(t, path, 0.5)

	c := file.NewCollection([]string{path})
	f := c.Files()[0]
	f.AudioMut().Interleaved[0] = -1

	j := commit.NewAt(filepath.Join(dir, "backup"))
	if err := commit.NewEngine(j).Run(c); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := decodeFixture(t, path)
	if got.Interleaved[0] > -0.9 {
		t.Fatalf("Interleaved[0] = %v, want roughly -1 after overwrite", got.Interleaved[0])
	}
}

func TestCommitFormatChangeWritesNewExtensionAndDeletesOriginal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.wav")
	writeFixture(t, path, 0.25)

	c := file.NewCollection([]string{path})
	f := c.Files()[0]
	f.Audio().Container = audio.ContainerFLAC // format-changed without touching audio

	j := commit.NewAt(filepath.Join(dir, "backup"))
	if err := commit.NewEngine(j).Run(c); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("original .wav should be deleted after a format change")
	}

	if _, err := os.Stat(filepath.Join(dir, "a.flac")); err != nil {
		t.Fatalf("a.flac should exist after a format change: %v", err)
	}
}

func TestCommitAbortsOnWriteConflict(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.wav")
	pathB := filepath.Join(dir, "b.wav")
	writeFixture(t, pathA, 0.5)
	writeFixture(t, pathB, 0.5)

	c := file.NewCollection([]string{pathA, pathB})
	c.Files()[0].SetPath(filepath.Join(dir, "same.wav"))
	c.Files()[1].SetPath(filepath.Join(dir, "same.wav"))

	j := commit.NewAt(filepath.Join(dir, "backup"))
	if err := commit.NewEngine(j).Run(c); err == nil {
		t.Fatal("expected an error from conflicting current paths")
	}

	if _, err := os.Stat(pathA); err != nil {
		t.Fatal("a conflict must be caught before any file is touched")
	}
}

func TestJournalRecordGeneratedSatisfiesProcessorJournal(t *testing.T) {
	dir := t.TempDir()
	j := commit.NewAt(filepath.Join(dir, "backup"))

	generatedPath := filepath.Join(dir, "generated.wav")
	if err := os.WriteFile(generatedPath, []byte("fake wav bytes"), 0o644); err != nil {
		t.Fatalf("writing generated fixture: %v", err)
	}

	j.RecordGenerated(generatedPath)
	if err := j.Err(); err != nil {
		t.Fatalf("RecordGenerated: %v", err)
	}

	db, hadBackup, err := j.ReadAndClearDatabase()
	if err != nil {
		t.Fatalf("ReadAndClearDatabase: %v", err)
	}

	if !hadBackup {
		t.Fatal("expected a backup to have been recorded")
	}

	if len(db.FilesCreated) != 1 || db.FilesCreated[0] != generatedPath {
		t.Fatalf("FilesCreated = %v, want [%q]", db.FilesCreated, generatedPath)
	}
}
