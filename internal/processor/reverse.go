package processor

import (
	"github.com/SamWindell/signet/internal/file"
)

// Reverse reverses frame order in place (supplemented from
// code/signet/commands/reverse/reverse.cpp), a trivial representative of
// the "other processors" enumeration in §4.5.
type Reverse struct {
	base
}

// NewReverse returns a Reverse processor.
func NewReverse() *Reverse {
	return &Reverse{base: base{name: "reverse", allowsOutputFolder: true, allowsSingleOutputFile: false}}
}

// ProcessFiles implements FileProcessor.
func (r *Reverse) ProcessFiles(c *file.Collection) []Warning {
	for _, f := range c.Files() {
		if f.LoadFailed() {
			continue
		}

		s := f.AudioMut()

		frames := s.FrameCount()
		ch := s.ChannelCount

		for i, j := 0, frames-1; i < j; i, j = i+1, j-1 {
			for c := 0; c < ch; c++ {
				a, b := i*ch+c, j*ch+c
				s.Interleaved[a], s.Interleaved[b] = s.Interleaved[b], s.Interleaved[a]
			}
		}
	}

	return nil
}
