package wav

import (
	"bytes"
	"fmt"
	"math"

	"github.com/icza/bitio"

	"github.com/SamWindell/signet/internal/fault"
)

// scaleToAvoidClipping returns 1 if every sample already fits in [-1, 1],
// otherwise 1/peak so the loudest sample lands exactly on the boundary
// (§4.2.2, ported from the original drwav-backed writer).
func scaleToAvoidClipping(buf []float64) float64 {
	var peak float64

	for _, v := range buf {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}

	if peak <= 1 {
		return 1
	}

	return 1 / peak
}

func scaleToSignedInt(s float64, bits uint) int64 {
	negativeMax := math.Pow(2, float64(bits)) / 2
	positiveMax := negativeMax - 1

	if s < 0 {
		return int64(math.Round(s * negativeMax))
	}

	return int64(math.Round(s * positiveMax))
}

// quantize converts a float64 buffer to raw little-endian bytes at
// bitsPerSample. For the integer depths (8, 16, 24) it scales the whole
// buffer down if any sample falls outside [-1, 1] so the write never wraps
// around, and warns when it does (§4.2.2); 32- and 64-bit float samples are
// written unscaled and without a warning.
func quantize(buf []float64, bitsPerSample int) ([]byte, []string, error) {
	multiplier := scaleToAvoidClipping(buf)

	var warnings []string
	if multiplier != 1 {
		warnings = append(warnings, "one or more samples were outside the valid range; the whole file was scaled down in volume to avoid distortion")
	}

	switch bitsPerSample {
	case 8:
		out := make([]byte, len(buf))

		for i, s := range buf {
			s *= multiplier
			scaled := ((s + 1.0) / 2.0) * 255.0
			out[i] = byte(math.Round(scaled))
		}

		return out, warnings, nil
	case 16:
		out := make([]byte, len(buf)*2)

		for i, s := range buf {
			v := int16(scaleToSignedInt(s*multiplier, 16))
			out[i*2] = byte(v)
			out[i*2+1] = byte(v >> 8)
		}

		return out, warnings, nil
	case 24:
		// 24-bit samples are packed 3 bytes at a time with bitio rather than
		// shifted out by hand, the way pchchv/flac packs its own frame
		// subframes bit by bit. bitio writes each sample's bits out
		// most-significant-first, so the resulting triplets come out
		// big-endian; swapping the outer two bytes of each one gives the
		// little-endian layout WAV's data chunk requires.
		var packed bytes.Buffer

		bw := bitio.NewWriter(&packed)

		for _, s := range buf {
			v := scaleToSignedInt(s*multiplier, 24)
			if err := bw.WriteBits(uint64(v)&0xFFFFFF, 24); err != nil {
				return nil, nil, fmt.Errorf("%w: %w", fault.ErrEncodeFailure, err)
			}
		}

		if _, err := bw.Align(); err != nil {
			return nil, nil, fmt.Errorf("%w: %w", fault.ErrEncodeFailure, err)
		}

		out := packed.Bytes()
		for i := 0; i+2 < len(out); i += 3 {
			out[i], out[i+2] = out[i+2], out[i]
		}

		return out, warnings, nil
	case 32:
		out := make([]byte, len(buf)*4)

		for i, s := range buf {
			bits := math.Float32bits(float32(s))
			out[i*4] = byte(bits)
			out[i*4+1] = byte(bits >> 8)
			out[i*4+2] = byte(bits >> 16)
			out[i*4+3] = byte(bits >> 24)
		}

		return out, nil, nil
	case 64:
		out := make([]byte, len(buf)*8)

		for i, s := range buf {
			bits := math.Float64bits(s)
			for b := 0; b < 8; b++ {
				out[i*8+b] = byte(bits >> (8 * b))
			}
		}

		return out, nil, nil
	default:
		return nil, nil, fmt.Errorf("%w: %d is not a valid WAV bit depth", fault.ErrUnsupportedFormat, bitsPerSample)
	}
}
