package resolver_test

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/SamWindell/signet/internal/resolver"
)

// buildSandbox recreates the directory layout used throughout this package's
// tests (and mirrored from the original implementation's own test fixture),
// rooted at dir.
func buildSandbox(t *testing.T, dir string) {
	t.Helper()

	mkfile := func(rel string) {
		full := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(full, nil, 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	for _, f := range []string{
		"sandbox/file1.wav",
		"sandbox/file2.wav",
		"sandbox/file3.wav",
		"sandbox/foo.wav",
		"sandbox/unprocessed-piano/hello.wav",
		"sandbox/unprocessed-piano/there.wav",
		"sandbox/unprocessed-piano/copies/foo/file.flac",
		"sandbox/unprocessed-piano/copies/session1/file.wav",
		"sandbox/unprocessed-keys/copies/session1/file.wav",
		"sandbox/processed/file.wav",
		"sandbox/processed/file.flac",
	} {
		mkfile(f)
	}

	// unprocessed-keys/copies/foo exists but is empty in the original fixture.
	if err := os.MkdirAll(filepath.Join(dir, "sandbox/unprocessed-keys/copies/foo"), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
}

func canonicalize(t *testing.T, dir, rel string) string {
	t.Helper()

	abs, err := filepath.Abs(filepath.Join(dir, rel))
	if err != nil {
		t.Fatalf("Abs: %v", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		t.Fatalf("EvalSymlinks: %v", err)
	}
	return filepath.ToSlash(resolved)
}

func checkMatches(t *testing.T, dir string, tokens []string, recursive bool, expected []string) {
	t.Helper()

	set, err := resolver.Resolve(tokens, recursive)
	if err != nil {
		t.Fatalf("Resolve(%v): %v", tokens, err)
	}

	got := set.Paths()
	sort.Strings(got)

	want := make([]string, len(expected))
	for i, e := range expected {
		want[i] = canonicalize(t, dir, e)
	}
	sort.Strings(want)

	if len(got) != len(want) {
		t.Fatalf("Resolve(%v): got %v, want %v", tokens, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Resolve(%v)[%d]: got %q, want %q", tokens, i, got[i], want[i])
		}
	}
}

func TestAllWavsInAFolder(t *testing.T) {
	dir := t.TempDir()
	buildSandbox(t, dir)
	chdir(t, dir)

	checkMatches(t, dir, []string{"sandbox/*.wav"}, false, []string{
		"sandbox/file1.wav", "sandbox/file2.wav", "sandbox/file3.wav", "sandbox/foo.wav",
	})
}

func TestAllWavsInAFolderRecursively(t *testing.T) {
	dir := t.TempDir()
	buildSandbox(t, dir)
	chdir(t, dir)

	checkMatches(t, dir, []string{"sandbox/**.wav"}, false, []string{
		"sandbox/file1.wav",
		"sandbox/file2.wav",
		"sandbox/file3.wav",
		"sandbox/foo.wav",
		"sandbox/unprocessed-piano/hello.wav",
		"sandbox/unprocessed-piano/there.wav",
		"sandbox/unprocessed-keys/copies/session1/file.wav",
		"sandbox/unprocessed-piano/copies/session1/file.wav",
		"sandbox/processed/file.wav",
	})
}

func TestTwoNonRecursiveWildcards(t *testing.T) {
	dir := t.TempDir()
	buildSandbox(t, dir)
	chdir(t, dir)

	checkMatches(t, dir, []string{"sandbox/*/*.wav"}, false, []string{
		"sandbox/unprocessed-piano/hello.wav",
		"sandbox/unprocessed-piano/there.wav",
		"sandbox/processed/file.wav",
	})
}

func TestComplicatedNonRecursiveWildcards(t *testing.T) {
	dir := t.TempDir()
	buildSandbox(t, dir)
	chdir(t, dir)

	checkMatches(t, dir, []string{"sandbox/unprocessed-*/*.wav"}, false, []string{
		"sandbox/unprocessed-piano/hello.wav", "sandbox/unprocessed-piano/there.wav",
	})
}

func TestThreeSegmentWildcardsWithLiteralBetween(t *testing.T) {
	dir := t.TempDir()
	buildSandbox(t, dir)
	chdir(t, dir)

	checkMatches(t, dir, []string{"sandbox/unprocessed-*/*/session*/*.wav"}, false, []string{
		"sandbox/unprocessed-piano/copies/session1/file.wav",
		"sandbox/unprocessed-keys/copies/session1/file.wav",
	})
}

func TestRecursiveInTheMiddle(t *testing.T) {
	dir := t.TempDir()
	buildSandbox(t, dir)
	chdir(t, dir)

	checkMatches(t, dir, []string{"sandbox/**/*.wav"}, false, []string{
		"sandbox/unprocessed-piano/hello.wav",
		"sandbox/unprocessed-piano/there.wav",
		"sandbox/unprocessed-keys/copies/session1/file.wav",
		"sandbox/unprocessed-piano/copies/session1/file.wav",
		"sandbox/processed/file.wav",
	})
}

func TestExcludingAnEntireSubdirectory(t *testing.T) {
	dir := t.TempDir()
	buildSandbox(t, dir)
	chdir(t, dir)

	checkMatches(t, dir, []string{"sandbox/*/*.wav", "-sandbox/processed/*"}, false, []string{
		"sandbox/unprocessed-piano/hello.wav", "sandbox/unprocessed-piano/there.wav",
	})
}

func TestDirectoryTokenNonRecursive(t *testing.T) {
	dir := t.TempDir()
	buildSandbox(t, dir)
	chdir(t, dir)

	checkMatches(t, dir, []string{"sandbox"}, false, []string{
		"sandbox/file1.wav", "sandbox/file2.wav", "sandbox/file3.wav", "sandbox/foo.wav",
	})
}

func TestDirectoryTokenRecursive(t *testing.T) {
	dir := t.TempDir()
	buildSandbox(t, dir)
	chdir(t, dir)

	checkMatches(t, dir, []string{"sandbox"}, true, []string{
		"sandbox/file1.wav",
		"sandbox/file2.wav",
		"sandbox/file3.wav",
		"sandbox/foo.wav",
		"sandbox/unprocessed-piano/hello.wav",
		"sandbox/unprocessed-piano/there.wav",
		"sandbox/unprocessed-piano/copies/foo/file.flac",
		"sandbox/unprocessed-piano/copies/session1/file.wav",
		"sandbox/unprocessed-keys/copies/session1/file.wav",
		"sandbox/processed/file.wav",
		"sandbox/processed/file.flac",
	})
}

func TestSingleFileToken(t *testing.T) {
	dir := t.TempDir()
	buildSandbox(t, dir)
	chdir(t, dir)

	checkMatches(t, dir, []string{"sandbox/foo.wav"}, false, []string{"sandbox/foo.wav"})
}

func TestQuotedToken(t *testing.T) {
	dir := t.TempDir()
	buildSandbox(t, dir)
	chdir(t, dir)

	checkMatches(t, dir, []string{`"sandbox/foo.wav"`}, false, []string{"sandbox/foo.wav"})
}

func TestUnparseableTokenFails(t *testing.T) {
	dir := t.TempDir()
	buildSandbox(t, dir)
	chdir(t, dir)

	if _, err := resolver.Resolve([]string{"does-not-exist"}, false); err == nil {
		t.Fatal("expected an error for a token that is neither file, directory, nor glob")
	}
}

func TestEmptySelectionFails(t *testing.T) {
	dir := t.TempDir()
	buildSandbox(t, dir)
	chdir(t, dir)

	if _, err := resolver.Resolve([]string{"sandbox/*.flac", "-sandbox/**.flac"}, false); err == nil {
		t.Fatal("expected an error when every match is then excluded")
	}
}

func TestNonAudioExtensionIsIgnored(t *testing.T) {
	dir := t.TempDir()
	buildSandbox(t, dir)
	if err := os.WriteFile(filepath.Join(dir, "sandbox/notes.txt"), nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	chdir(t, dir)

	checkMatches(t, dir, []string{"sandbox/*.wav"}, false, []string{
		"sandbox/file1.wav", "sandbox/file2.wav", "sandbox/file3.wav", "sandbox/foo.wav",
	})
}

// chdir switches the test process into dir for the duration of the test,
// since the resolver's glob tokens are relative paths.
func chdir(t *testing.T, dir string) {
	t.Helper()

	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(prev)
	})
}
