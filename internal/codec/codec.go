// Package codec dispatches audio decode/encode to the container-specific
// implementation by file extension (§4.2.1/§4.2.2), presenting a single
// contract to internal/file regardless of whether the underlying container
// is WAV or FLAC.
package codec

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/SamWindell/signet/internal/audio"
	"github.com/SamWindell/signet/internal/codec/flac"
	"github.com/SamWindell/signet/internal/codec/wav"
	"github.com/SamWindell/signet/internal/fault"
)

// ValidExtensions are the lowercase, dot-prefixed extensions signet reads
// and writes (§4.1's inclusion filter).
var ValidExtensions = []string{".wav", ".flac"}

// Decode reads path's container (by its extension) from r into an
// audio.Samples, dispatching to the wav or flac codec.
func Decode(path string, r io.Reader) (*audio.Samples, []string, error) {
	ext, err := extensionOf(path)
	if err != nil {
		return nil, nil, err
	}

	switch ext {
	case ".wav":
		return wav.Decode(r)
	case ".flac":
		return flac.Decode(r)
	default:
		return nil, nil, fmt.Errorf("%w: unrecognized extension %q", fault.ErrDecodeFailure, ext)
	}
}

// Encode writes s to w in the container named by path's extension, at
// bitsPerSample.
func Encode(path string, w io.Writer, s *audio.Samples, bitsPerSample int) ([]string, error) {
	ext, err := extensionOf(path)
	if err != nil {
		return nil, err
	}

	switch ext {
	case ".wav":
		return wav.Encode(w, s, bitsPerSample)
	case ".flac":
		return flac.Encode(w, s, bitsPerSample)
	default:
		return nil, fmt.Errorf("%w: unrecognized extension %q", fault.ErrEncodeFailure, ext)
	}
}

// ValidBitDepths returns the bit depths the named container supports, for
// processors that need to validate a requested depth before committing to
// an edit.
func ValidBitDepths(path string) ([]int, error) {
	ext, err := extensionOf(path)
	if err != nil {
		return nil, err
	}

	switch ext {
	case ".wav":
		return wav.ValidBitDepths, nil
	case ".flac":
		return []int{8, 16, 20, 24}, nil
	default:
		return nil, fmt.Errorf("%w: unrecognized extension %q", fault.ErrUnsupportedFormat, ext)
	}
}

// extensionOf returns path's lowercase extension, rejecting dot-files and
// unrecognized extensions (§4.2.1: "Dispatch on the file's lowercase
// extension. Reject any filename beginning with '.'").
func extensionOf(path string) (string, error) {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return "", fmt.Errorf("%w: %q is a dot-file", fault.ErrDecodeFailure, base)
	}

	ext := strings.ToLower(filepath.Ext(base))

	for _, valid := range ValidExtensions {
		if ext == valid {
			return ext, nil
		}
	}

	return "", fmt.Errorf("%w: %q", fault.ErrUnsupportedFormat, ext)
}
