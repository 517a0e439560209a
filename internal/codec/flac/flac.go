// Package flac implements the FLAC codec (§4.2, §6): streaming decode and
// encode via pchchv/flac, and the lift/lower between an `APPLICATION
// "SGNT"` metadata block and the neutral metadata.Metadata record.
package flac

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/pchchv/flac"
	"github.com/pchchv/flac/frame"
	"github.com/pchchv/flac/meta"

	"github.com/SamWindell/signet/internal/audio"
	"github.com/SamWindell/signet/internal/fault"
	"github.com/SamWindell/signet/internal/metadata"
)

// sgntApplicationID is the four-byte FLAC APPLICATION id signet reserves
// for its own metadata block (§6).
const sgntApplicationID = 0x53474e54 // "SGNT" big-endian as a uint32

// sgntPayload is the JSON document stored inside the SGNT application
// block's data.
type sgntPayload struct {
	Metadata metadata.Metadata `json:"metadata"`
}

// Extra is the Opaque payload this codec stashes on audio.Samples for
// every preserved metadata block that isn't the SGNT application block
// (§6: PADDING, VORBIS_COMMENT, PICTURE, and any other APPLICATION id
// round-trip verbatim; CUESHEET and SEEKTABLE are dropped).
type Extra struct {
	Blocks []*meta.Block
}

// Decode reads a complete FLAC stream from r, lifting a signet SGNT
// application block (if present) into the returned Metadata and stashing
// every other preserved block in Extra.
func Decode(r io.Reader) (*audio.Samples, []string, error) {
	stream, err := flac.Parse(r)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", fault.ErrDecodeFailure, err)
	}

	var warnings []string
	var m metadata.Metadata
	var preserved []*meta.Block

	for _, block := range stream.Blocks {
		switch body := block.Body.(type) {
		case *meta.Application:
			if body.ID == sgntApplicationID {
				var payload sgntPayload
				if err := json.Unmarshal(body.Data, &payload); err != nil {
					warnings = append(warnings, "SGNT application block could not be parsed as JSON, ignoring it")
					continue
				}

				m = payload.Metadata
				continue
			}

			preserved = append(preserved, block)
		case *meta.CueSheet:
			warnings = append(warnings, "a CUESHEET block was dropped because edits would invalidate its byte offsets")
		case *meta.SeekTable:
			warnings = append(warnings, "a SEEKTABLE block was dropped because edits would invalidate its byte offsets")
		default:
			// PADDING, VORBIS_COMMENT, PICTURE, and anything else preserved verbatim.
			preserved = append(preserved, block)
		}
	}

	info := stream.Info
	bitsPerSample := int(info.BitsPerSample)
	channels := int(info.NChannels)

	var interleaved []float64

	for {
		f, err := stream.ParseNext()
		if err != nil {
			if err == io.EOF {
				break
			}

			return nil, nil, fmt.Errorf("%w: %w", fault.ErrDecodeFailure, err)
		}

		frameSamples, err := decodeFrame(f, channels, bitsPerSample)
		if err != nil {
			return nil, nil, err
		}

		interleaved = append(interleaved, frameSamples...)
	}

	s := &audio.Samples{
		Interleaved:   interleaved,
		ChannelCount:  channels,
		SampleRate:    int(info.SampleRate),
		BitsPerSample: bitsPerSample,
		Container:     audio.ContainerFLAC,
		Metadata:      m,
		Opaque:        &Extra{Blocks: preserved},
	}

	return s, warnings, nil
}

// decodeFrame un-interleaves one FLAC frame's per-channel int32 samples
// into a normalized, channel-interleaved []float64 in [-1, 1] (§4.2.1: each
// decoded int sample divided by 2^(bits_per_sample-1)).
func decodeFrame(f *frame.Frame, channels, bitsPerSample int) ([]float64, error) {
	if len(f.Subframes) != channels {
		return nil, fmt.Errorf("%w: frame has %d subframes, want %d", fault.ErrDecodeFailure, len(f.Subframes), channels)
	}

	blockSize := len(f.Subframes[0].Samples)
	out := make([]float64, blockSize*channels)
	divisor := math.Pow(2, float64(bitsPerSample-1))

	for ch, sub := range f.Subframes {
		for i, v := range sub.Samples {
			out[i*channels+ch] = float64(v) / divisor
		}
	}

	return out, nil
}

// Encode writes s to w as a FLAC stream at bitsPerSample, synthesizing an
// SGNT application block from s.Metadata when it carries anything (§4.2.2),
// and passing through every other preserved block from s.Opaque.
func Encode(w io.Writer, s *audio.Samples, bitsPerSample int) ([]string, error) {
	if !validBitDepth(bitsPerSample) {
		return nil, fmt.Errorf("%w: %d is not a valid FLAC bit depth", fault.ErrUnsupportedFormat, bitsPerSample)
	}

	extra, _ := s.Opaque.(*Extra)

	blocks, err := buildMetaBlocks(s, extra)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrEncodeFailure, err)
	}

	frames := int32Frames(s, bitsPerSample)

	info := &meta.StreamInfo{
		BlockSizeMin:  blockSize,
		BlockSizeMax:  blockSize,
		SampleRate:    uint32(s.SampleRate),
		NChannels:     uint8(s.ChannelCount),
		BitsPerSample: uint8(bitsPerSample),
		NSamples:      uint64(s.FrameCount()),
	}

	enc, err := flac.NewEncoder(w, info, blocks...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrEncodeFailure, err)
	}

	for i, chunk := range frames {
		f := verbatimFrame(chunk, s.ChannelCount, uint32(s.SampleRate), uint8(bitsPerSample), uint64(i)*uint64(blockSize))
		if err := enc.WriteFrame(f); err != nil {
			return nil, fmt.Errorf("%w: %w", fault.ErrEncodeFailure, err)
		}
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrEncodeFailure, err)
	}

	return nil, nil
}

func validBitDepth(bits int) bool {
	switch bits {
	case 8, 16, 20, 24:
		return true
	default:
		return false
	}
}

// buildMetaBlocks synthesizes the SGNT application block (if s.Metadata
// carries anything, §4.2.2) followed by every preserved block from the
// original decode. It does not set any block's IsLast flag.
func buildMetaBlocks(s *audio.Samples, extra *Extra) ([]*meta.Block, error) {
	var blocks []*meta.Block

	if !s.Metadata.IsEmpty() {
		payload, err := json.Marshal(sgntPayload{Metadata: s.Metadata})
		if err != nil {
			return nil, err
		}

		blocks = append(blocks, &meta.Block{
			Header: meta.Header{Type: meta.TypeApplication},
			Body:   &meta.Application{ID: sgntApplicationID, Data: payload},
		})
	}

	if extra != nil {
		blocks = append(blocks, extra.Blocks...)
	}

	return blocks, nil
}

// blockSize is the fixed frame size signet writes every FLAC frame at; a
// conservative, broadly-compatible size rather than one tuned per input.
const blockSize = 4096

// int32Frames quantizes s.Interleaved to bitsPerSample-wide signed integers
// and splits it into blockSize-frame chunks, one []int32 per channel, per
// chunk.
func int32Frames(s *audio.Samples, bitsPerSample int) [][]int32 {
	frameCount := s.FrameCount()
	if frameCount == 0 {
		return nil
	}

	scale := math.Pow(2, float64(bitsPerSample-1))
	clampMax := int32(scale - 1)
	clampMin := -int32(scale)

	var chunks [][]int32

	for start := 0; start < frameCount; start += blockSize {
		end := start + blockSize
		if end > frameCount {
			end = frameCount
		}

		n := end - start
		buf := make([]int32, n*s.ChannelCount)

		for f := start; f < end; f++ {
			for ch := 0; ch < s.ChannelCount; ch++ {
				v := int32(math.Round(s.Sample(ch, f) * scale))
				if v > clampMax {
					v = clampMax
				}
				if v < clampMin {
					v = clampMin
				}

				buf[(f-start)*s.ChannelCount+ch] = v
			}
		}

		chunks = append(chunks, buf)
	}

	return chunks
}

// verbatimFrame builds a FLAC frame holding interleaved's samples as
// verbatim subframes, one per channel, de-interleaving first. Verbatim
// encoding forgoes prediction entirely, which costs space but is always a
// legal encoding for any PCM content (§9 design note: signet favors
// correctness over compression ratio for its own re-encodes).
func verbatimFrame(interleaved []int32, channels int, sampleRate uint32, bitsPerSample uint8, firstSample uint64) *frame.Frame {
	blockN := len(interleaved) / channels

	subframes := make([]*frame.Subframe, channels)
	for ch := 0; ch < channels; ch++ {
		samples := make([]int32, blockN)
		for f := 0; f < blockN; f++ {
			samples[f] = interleaved[f*channels+ch]
		}

		subframes[ch] = &frame.Subframe{
			SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
			Samples:   samples,
		}
	}

	return &frame.Frame{
		Header: frame.Header{
			HasFixedBlockSize: true,
			BlockSize:         uint16(blockN),
			SampleRate:        sampleRate,
			Channels:          channelsFor(channels),
			BitsPerSample:     bitsPerSample,
			Num:               firstSample / blockSize,
		},
		Subframes: subframes,
	}
}

// channelsFor picks the plain (non-decorrelated) channel assignment for n
// channels; signet never writes the stereo mid/side variants since it has
// no compression-ratio requirement (§9).
func channelsFor(n int) frame.Channels {
	if n == 1 {
		return frame.ChannelsMono
	}

	return frame.ChannelsLR
}
