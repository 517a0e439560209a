package main_test

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/containerd/nerdctl/mod/tigron/expect"
	"github.com/containerd/nerdctl/mod/tigron/test"
	"github.com/containerd/nerdctl/mod/tigron/tig"

	"github.com/farcloser/agar/pkg/agar"
)

// binaryPath locates the built signet binary the same way the teacher's
// tests/testutils.Setup locates haustorium's: relative to this source
// file's own position in the module.
func binaryPath() string {
	_, thisFile, _, _ := runtime.Caller(0) //nolint:dogsled // runtime.Caller returns 4 values, only file is needed
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))

	return filepath.Join(projectRoot, "bin", "signet")
}

func setup() *test.Case {
	return agar.Setup(binaryPath())
}

// hashOf reads path and returns its sha256 hex digest, failing the test on
// any read error.
func hashOf(t tig.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Log("reading " + path + " failed")
		t.Fail()

		return ""
	}

	sum := sha256.Sum256(data)

	return hex.EncodeToString(sum[:])
}

// expectFileRestored returns a comparator verifying that path's content
// hashes back to original.
func expectFileRestored(path, original string) test.Comparator {
	return func(_ string, testing tig.T) {
		testing.Helper()

		if hashOf(testing, path) != original {
			testing.Log("expected " + path + " to be restored to its original content after undo")
			testing.Fail()
		}
	}
}

// TestUndoAcrossProcessBoundary exercises the full commit/backup/undo
// round trip (§4.8, §4.9) across the built binary: a gain edit is
// committed by a first invocation of the binary, then a second
// invocation's --undo must restore the file byte-for-byte. The edit that
// creates the journal runs directly via os/exec rather than through
// tigron, so the one thing under test here — --undo reversing a prior
// run's committed journal — is isolated to a single subtest.
func TestUndoAcrossProcessBoundary(t *testing.T) {
	testCase := setup()

	var (
		path     string
		original string
	)

	testCase.SubTests = []*test.Case{
		{
			Description: "undo with no prior journal is a no-op",
			Command:     test.Command("--undo"),
			Expected:    test.Expects(expect.ExitCodeSuccess, nil, nil),
		},
		{
			Description: "undo restores a gain edit committed by a prior run",
			Setup: func(data test.Data, helpers test.Helpers) {
				path = agar.Genuine16bit44k(data, helpers)
				original = hashOf(t, path)

				edit := exec.Command(binaryPath(), path, "gain", "--value", "6") //nolint:gosec // fixed args, test-only binary
				if err := edit.Run(); err != nil {
					t.Fatalf("gain edit that should seed the journal failed: %v", err)
				}

				if hashOf(t, path) == original {
					t.Fatal("gain edit did not change the file; undo would trivially pass")
				}
			},
			Command: test.Command("--undo"),
			Expected: func(_ test.Data, _ test.Helpers) *test.Expected {
				return &test.Expected{
					ExitCode: expect.ExitCodeSuccess,
					Output:   expectFileRestored(path, original),
				}
			},
		},
	}

	testCase.Run(t)
}
