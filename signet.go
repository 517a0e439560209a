// Package signet orchestrates one batch-edit run: resolve the input tokens
// into a file.Collection, run the requested processors over it in their
// declared order, and commit the result. Per §5, the whole pipeline is
// single-threaded and synchronous; processors are visited in the order the
// caller supplied them, matching the order subcommands were chained on the
// command line.
package signet

import (
	"fmt"
	"log/slog"

	"github.com/SamWindell/signet/internal/commit"
	"github.com/SamWindell/signet/internal/fault"
	"github.com/SamWindell/signet/internal/file"
	"github.com/SamWindell/signet/internal/processor"
	"github.com/SamWindell/signet/internal/resolver"
	"github.com/SamWindell/signet/internal/undo"
)

// Options configures one Run.
type Options struct {
	// Tokens are the include/exclude path tokens from the command line
	// (§4.1): literal paths, directories, globs, and `-`-prefixed
	// exclusions.
	Tokens []string
	// Recursive controls whether a bare directory token descends into
	// subdirectories.
	Recursive bool
	// Processors runs in order over the resolved collection.
	Processors []processor.Processor
	// Journal is the backup/undo store commit writes to. Nil defaults to
	// commit.New(), rooted at the platform temp directory (§6).
	Journal *commit.Journal
}

// Run resolves Options.Tokens, runs every processor over the resulting
// collection in order, and commits the result (§4.1 -> §4.5 -> §4.8). It
// returns the first fatal error. Per §7, resolver/user-input errors abort
// before any processor runs; decode failures and per-file processor
// warnings are non-fatal and are only logged.
func Run(opts Options) error {
	j := opts.Journal
	if j == nil {
		j = commit.New()
	}

	set, err := resolver.Resolve(opts.Tokens, opts.Recursive)
	if err != nil {
		return err
	}

	c := file.NewCollection(set.Paths())

	for _, p := range opts.Processors {
		fp, isFileProcessor := p.(processor.FileProcessor)
		gp, isGenerator := p.(processor.GeneratorProcessor)

		if !isFileProcessor && !isGenerator {
			return fmt.Errorf("processor %q implements neither ProcessFiles nor GenerateFiles", p.Name())
		}

		if isFileProcessor {
			logWarnings(p.Name(), fp.ProcessFiles(c))
		}

		if isGenerator {
			logWarnings(p.Name(), gp.GenerateFiles(c, j))

			if err := j.Err(); err != nil {
				return fmt.Errorf("%w: %s: %w", fault.ErrWriteFailure, p.Name(), err)
			}
		}

		c.Reindex()
	}

	if err := commit.NewEngine(j).Run(c); err != nil {
		return err
	}

	return nil
}

func logWarnings(processorName string, warnings []processor.Warning) {
	for _, w := range warnings {
		slog.Warn(processorName, "path", w.File, "message", w.Message)
	}
}

// Undo reverses the last run's journal (§4.9). applied reports whether
// there was a journal to reverse; a nil journal defaults to commit.New().
func Undo(j *commit.Journal) (applied bool, warnings []string, err error) {
	if j == nil {
		j = commit.New()
	}

	return undo.New(j).Run()
}

// ClearBackup empties the backup journal and blob store without applying
// it first (the CLI's --clear-backup flag, §6). A nil journal defaults to
// commit.New().
func ClearBackup(j *commit.Journal) error {
	if j == nil {
		j = commit.New()
	}

	return j.ClearBackup()
}
