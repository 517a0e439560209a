// Package processor implements the Processor interface (§4.5) and the
// representative edit operations that exercise it: gain, normalize, fade,
// trim, remove-silence, convert, tune, auto-tune, rename, folderise,
// sample-blend, seamless-loop, and fix-pitch-drift (§4.6), plus the
// auxiliary processors supplemented from original_source/ (print-info,
// zcross-offset, reverse, pan, embed-sampler-info).
package processor

import (
	"github.com/SamWindell/signet/internal/file"
)

// Processor is the capability every edit operation implements (§4.5). A
// concrete processor implements FileProcessor, GeneratorProcessor, or both;
// Name/AllowsOutputFolder/AllowsSingleOutputFile are shared by all of them.
type Processor interface {
	// Name identifies this processor in logs and in the subcommand chain.
	Name() string
	// AllowsOutputFolder reports whether the outer CLI may offer an
	// --output-folder flag for this processor. A hint for the CLI layer
	// only; the core never reads it.
	AllowsOutputFolder() bool
	// AllowsSingleOutputFile reports whether the outer CLI may offer a
	// single combined output file for this processor. Also CLI-only.
	AllowsSingleOutputFile() bool
}

// FileProcessor is a Processor with a mutating pass over an existing
// collection (§4.5's process_files).
type FileProcessor interface {
	Processor
	ProcessFiles(c *file.Collection) []Warning
}

// GeneratorProcessor is a Processor that creates new files rather than (or
// in addition to) mutating existing ones (§4.5's generate_files, e.g.
// sample-blend). Generated files are appended to the collection via
// c.Add and recorded on j so the commit engine backs them up as new
// writes rather than edits of an existing path.
type GeneratorProcessor interface {
	Processor
	GenerateFiles(c *file.Collection, j Journal) []Warning
}

// Journal receives one notification per file a GeneratorProcessor creates.
// internal/commit's Journal satisfies this; it is named here rather
// than imported to keep internal/processor from depending on internal/commit.
type Journal interface {
	RecordGenerated(path string)
}

// Warning is a non-fatal, per-file problem raised during a processor pass
// (§7: "processors must not throw across the processor boundary; they
// return via logged errors and flags on the file"). Callers typically both
// append it to the returned slice and call f.AddWarning so it travels with
// the file for any later report.
type Warning struct {
	File    string
	Message string
}

// base is embedded by every processor to supply the two CLI-hint flags
// without repeating the same two methods on every type.
type base struct {
	name                   string
	allowsOutputFolder     bool
	allowsSingleOutputFile bool
}

func (b base) Name() string                 { return b.name }
func (b base) AllowsOutputFolder() bool     { return b.allowsOutputFolder }
func (b base) AllowsSingleOutputFile() bool { return b.allowsSingleOutputFile }
