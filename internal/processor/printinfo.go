package processor

import (
	"log/slog"

	"github.com/SamWindell/signet/internal/file"
)

// PrintInfo is a read-only processor (supplemented from
// code/signet/commands/print_info/print_info.cpp) that logs a structured
// summary of each file's Metadata without mutating anything: a debugging
// pass that exercises the Processor interface's mutating hook as a no-op.
type PrintInfo struct {
	base
}

// NewPrintInfo returns a PrintInfo processor.
func NewPrintInfo() *PrintInfo {
	return &PrintInfo{base: base{name: "print-info", allowsOutputFolder: false, allowsSingleOutputFile: false}}
}

// ProcessFiles implements FileProcessor. It never sets a dirty bit, so the
// commit engine treats every file it touches as unchanged.
func (p *PrintInfo) ProcessFiles(c *file.Collection) []Warning {
	for _, f := range c.Files() {
		if f.LoadFailed() {
			slog.Warn("print-info: could not load file", "path", f.OriginalPath)
			continue
		}

		s := f.Audio()
		m := s.Metadata

		attrs := []any{
			"path", f.CurrentPath(),
			"frames", s.FrameCount(),
			"channels", s.ChannelCount,
			"sample_rate", s.SampleRate,
			"container", s.Container.String(),
			"loops", len(m.Loops),
			"markers", len(m.Markers),
			"regions", len(m.Regions),
		}

		if m.MidiMapping != nil {
			attrs = append(attrs, "root_midi_note", m.MidiMapping.RootMidiNote)
		}

		slog.Info("print-info", attrs...)
	}

	return nil
}
