package processor_test

import (
	"math"
	"testing"

	"github.com/SamWindell/signet/internal/file"
	"github.com/SamWindell/signet/internal/processor"
)

func TestPanClampsOutOfRangeValue(t *testing.T) {
	f := newTestFile(t, []float64{1, 1}, 2, 44100)

	p := processor.NewPan(processor.PanOptions{Value: -5}) // clamped to -1

	c := &testCollection{files: []*file.EditTrackedFile{f}}
	p.ProcessFiles(c.collection())

	if got := f.Audio().Interleaved[1]; math.Abs(got) > 1e-9 {
		t.Fatalf("right channel = %v, want 0 (full left)", got)
	}
}

func TestPanLeavesMonoFilesUntouched(t *testing.T) {
	f := newTestFile(t, []float64{1, 1}, 1, 44100)

	p := processor.NewPan(processor.PanOptions{Value: -1})

	c := &testCollection{files: []*file.EditTrackedFile{f}}
	p.ProcessFiles(c.collection())

	if got := f.Audio().Interleaved[0]; got != 1 {
		t.Fatalf("mono sample changed to %v, want untouched 1", got)
	}
}
