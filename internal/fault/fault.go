// Package fault defines the sentinel errors shared across Signet's core
// packages. Callers wrap one of these with the underlying cause
// (fmt.Errorf("%w: %w", fault.ErrReadFailure, err)) and check with errors.Is.
package fault

import "errors"

var (
	// ErrReadFailure marks a failed read of an audio file or journal entry.
	ErrReadFailure = errors.New("read failure")
	// ErrWriteFailure marks a failed write during encode or commit.
	ErrWriteFailure = errors.New("write failure")
	// ErrDecodeFailure marks a container parse failure (RIFF/FLAC).
	ErrDecodeFailure = errors.New("decode failure")
	// ErrEncodeFailure marks a container synthesis failure.
	ErrEncodeFailure = errors.New("encode failure")
	// ErrUnsupportedFormat marks a (container, bits-per-sample) pair that is
	// not in the documented support matrix.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrUnparseableToken marks a resolver token that is neither a file, a
	// directory, nor a glob.
	ErrUnparseableToken = errors.New("unparseable token")
	// ErrEmptySelection marks a resolver run that matched no files.
	ErrEmptySelection = errors.New("empty selection")
	// ErrWriteConflict marks two files resolving to the same current path.
	ErrWriteConflict = errors.New("write conflict")
	// ErrCommandFailure marks a failed external command invocation.
	ErrCommandFailure = errors.New("command failure")
	// ErrUnfit marks a processor that declines to act on a file (e.g. the
	// pitch-drift corrector when too few chunks carry a pitch).
	ErrUnfit = errors.New("processor unfit for file")
)
