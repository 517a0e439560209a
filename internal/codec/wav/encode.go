package wav

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/SamWindell/signet/internal/audio"
	"github.com/SamWindell/signet/internal/fault"
	"github.com/SamWindell/signet/internal/metadata"
)

func loopTypeFromRaw(t uint32) metadata.LoopType {
	switch t {
	case 1:
		return metadata.LoopBackward
	case 2:
		return metadata.LoopPingPong
	default:
		return metadata.LoopForward
	}
}

func loopTypeToRaw(t metadata.LoopType) uint32 {
	switch t {
	case metadata.LoopBackward:
		return 1
	case metadata.LoopPingPong:
		return 2
	default:
		return 0
	}
}

// Encode writes s to w as a RIFF/WAVE stream at bitsPerSample, implementing
// §4.2.2's write path: sample quantization with clip-avoidance scaling,
// then metadata synthesis from the neutral record in the documented chunk
// order (cue last, since loops and regions may still be allocating ids).
func Encode(w io.Writer, s *audio.Samples, bitsPerSample int) ([]string, error) {
	if !slices.Contains(ValidBitDepths, bitsPerSample) {
		return nil, fmt.Errorf("%w: %d is not a valid WAV bit depth", fault.ErrUnsupportedFormat, bitsPerSample)
	}

	sampleBytes, warnings, err := quantize(s.Interleaved, bitsPerSample)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrEncodeFailure, err)
	}

	extra, _ := s.Opaque.(*Extra)

	var chunks bytes.Buffer

	writeFmtChunk(&chunks, s, bitsPerSample)

	alloc := newCueAllocator()
	m := &s.Metadata

	rootNoteWritten := writeAcidAndInst(&chunks, m)

	var smplWritten bool
	if len(m.Loops) > 0 {
		writeSmplChunk(&chunks, s, m, alloc, bitsPerSample)
		smplWritten = true
		rootNoteWritten = true
	}

	var regions []writtenRegion
	if len(m.Regions) > 0 {
		regions = writeRegions(m, alloc)
	}

	if !rootNoteWritten && m.MidiMapping != nil && !smplWritten {
		writeSmplChunk(&chunks, s, m, alloc, bitsPerSample)
	}

	for _, mk := range m.Markers {
		alloc.add(mk.Name, mk.StartFrame)
	}

	bytesPerFrame := (bitsPerSample / 8) * s.ChannelCount
	writeCueAndLabels(&chunks, alloc, regions, bytesPerFrame, s.ChannelCount)

	if extra != nil {
		writeRawChunks(&chunks, extra.UnknownChunks)
		writeInfoList(&chunks, extra.InfoChunks)

		if len(extra.UnknownADTL) > 0 {
			var adtl bytes.Buffer
			adtl.WriteString("adtl")
			writeRawChunks(&adtl, extra.UnknownADTL)
			writeChunk(&chunks, [4]byte{'L', 'I', 'S', 'T'}, adtl.Bytes())
		}

		if extra.Bext != nil {
			writeChunk(&chunks, [4]byte{'b', 'e', 'x', 't'}, extra.Bext)
		}
	}

	writeChunk(&chunks, [4]byte{'d', 'a', 't', 'a'}, sampleBytes)

	riffSize := uint32(4 + chunks.Len()) // "WAVE" + all chunks

	if err := writeID(w, "RIFF"); err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrWriteFailure, err)
	}
	if err := binary.Write(w, binary.LittleEndian, riffSize); err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrWriteFailure, err)
	}
	if err := writeID(w, "WAVE"); err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrWriteFailure, err)
	}
	if _, err := w.Write(chunks.Bytes()); err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrWriteFailure, err)
	}

	return warnings, nil
}

func writeID(w io.Writer, id string) error {
	_, err := w.Write([]byte(id))
	return err
}

func writeChunk(buf *bytes.Buffer, id [4]byte, data []byte) {
	buf.Write(id[:])
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(data)))
	buf.Write(data)

	if len(data)%2 == 1 {
		buf.WriteByte(0)
	}
}

func writeRawChunks(buf *bytes.Buffer, raw []RawChunk) {
	for _, c := range raw {
		writeChunk(buf, c.ID, c.Data)
	}
}

func writeFmtChunk(buf *bytes.Buffer, s *audio.Samples, bitsPerSample int) {
	var body bytes.Buffer

	audioFormat := uint16(formatPCM)
	if bitsPerSample == 32 || bitsPerSample == 64 {
		audioFormat = formatIEEEFloat
	}

	channels := uint16(s.ChannelCount)
	blockAlign := uint16(bitsPerSample/8) * channels
	byteRate := uint32(s.SampleRate) * uint32(blockAlign)

	_ = binary.Write(&body, binary.LittleEndian, audioFormat)
	_ = binary.Write(&body, binary.LittleEndian, channels)
	_ = binary.Write(&body, binary.LittleEndian, uint32(s.SampleRate))
	_ = binary.Write(&body, binary.LittleEndian, byteRate)
	_ = binary.Write(&body, binary.LittleEndian, blockAlign)
	_ = binary.Write(&body, binary.LittleEndian, uint16(bitsPerSample))

	writeChunk(buf, [4]byte{'f', 'm', 't', ' '}, body.Bytes())
}

// writeAcidAndInst emits the acid and inst chunks from timing_info and
// sampler_mapping, per §4.2.2. Returns whether a root note was written by
// either.
func writeAcidAndInst(buf *bytes.Buffer, m *metadata.Metadata) bool {
	var rootNoteWritten bool

	if m.TimingInfo != nil {
		var body bytes.Buffer

		var flags uint32
		if m.TimingInfo.PlaybackType == metadata.PlaybackOneShot {
			flags |= acidFlagOneShot
		}

		rootNote := uint16(60)
		if m.MidiMapping != nil {
			flags |= acidFlagRootNoteSet
			rootNote = uint16(clampInt(m.MidiMapping.RootMidiNote, 0, 127))
			rootNoteWritten = true
		}

		_ = binary.Write(&body, binary.LittleEndian, flags)
		_ = binary.Write(&body, binary.LittleEndian, rootNote)
		_ = binary.Write(&body, binary.LittleEndian, uint16(0)) // unused
		_ = binary.Write(&body, binary.LittleEndian, float32(0))
		_ = binary.Write(&body, binary.LittleEndian, uint32(m.TimingInfo.NumBeats))
		_ = binary.Write(&body, binary.LittleEndian, uint16(m.TimingInfo.TimeSigDen))
		_ = binary.Write(&body, binary.LittleEndian, uint16(m.TimingInfo.TimeSigNum))
		_ = binary.Write(&body, binary.LittleEndian, float32(m.TimingInfo.TempoBpm))

		writeChunk(buf, [4]byte{'a', 'c', 'i', 'd'}, body.Bytes())
	}

	if m.MidiMapping != nil && m.MidiMapping.SamplerMapping != nil {
		sm := m.MidiMapping.SamplerMapping.Clamp()
		body := []byte{
			byte(clampInt(m.MidiMapping.RootMidiNote, 0, 127)),
			byte(int8(sm.FineTuneCents)),
			byte(int8(sm.GainDb)),
			byte(sm.LowNote),
			byte(sm.HighNote),
			byte(sm.LowVelocity),
			byte(sm.HighVelocity),
		}

		writeChunk(buf, [4]byte{'i', 'n', 's', 't'}, body)
		rootNoteWritten = true
	}

	return rootNoteWritten
}

func writeSmplChunk(buf *bytes.Buffer, s *audio.Samples, m *metadata.Metadata, alloc *cueAllocator, bitsPerSample int) {
	var body bytes.Buffer

	rootNote := uint32(60)
	if m.MidiMapping != nil {
		rootNote = uint32(clampInt(m.MidiMapping.RootMidiNote, 0, 127))
	}

	samplePeriodNs := uint32(0)
	if s.SampleRate > 0 {
		samplePeriodNs = uint32(math.Round(1e9 / float64(s.SampleRate)))
	}

	_ = binary.Write(&body, binary.LittleEndian, uint32(0))         // manufacturer
	_ = binary.Write(&body, binary.LittleEndian, uint32(0))         // product
	_ = binary.Write(&body, binary.LittleEndian, samplePeriodNs)
	_ = binary.Write(&body, binary.LittleEndian, rootNote)
	_ = binary.Write(&body, binary.LittleEndian, uint32(0))         // midi pitch fraction
	_ = binary.Write(&body, binary.LittleEndian, uint32(0))         // smpte format
	_ = binary.Write(&body, binary.LittleEndian, uint32(0))         // smpte offset
	_ = binary.Write(&body, binary.LittleEndian, uint32(len(m.Loops)))
	_ = binary.Write(&body, binary.LittleEndian, uint32(0))         // sampler-specific data size

	bytesPerFrame := (bitsPerSample / 8) * s.ChannelCount

	for _, l := range m.Loops {
		id := alloc.add(l.Name, l.StartFrame)

		last := l.StartFrame
		if l.NumFrames > 0 {
			last = l.StartFrame + l.NumFrames - 1
		}

		_ = binary.Write(&body, binary.LittleEndian, id)
		_ = binary.Write(&body, binary.LittleEndian, loopTypeToRaw(l.Type))
		_ = binary.Write(&body, binary.LittleEndian, uint32(l.StartFrame)*uint32(bytesPerFrame))
		_ = binary.Write(&body, binary.LittleEndian, uint32(last)*uint32(bytesPerFrame))
		_ = binary.Write(&body, binary.LittleEndian, uint32(0)) // sample fraction, discarded on read
		_ = binary.Write(&body, binary.LittleEndian, uint32(l.NumTimesToLoop))
	}

	writeChunk(buf, [4]byte{'s', 'm', 'p', 'l'}, body.Bytes())
}

type writtenRegion struct {
	cuePointID uint32
	numFrames  uint64
	name       string
}

func writeRegions(m *metadata.Metadata, alloc *cueAllocator) []writtenRegion {
	out := make([]writtenRegion, 0, len(m.Regions))

	for _, r := range m.Regions {
		id := alloc.add(r.InitialMarkerName, r.StartFrame)
		out = append(out, writtenRegion{cuePointID: id, numFrames: r.NumFrames, name: r.Name})
	}

	return out
}

// cueAllocator assigns monotonic cue-point ids across loops, regions, and
// markers in that order, matching §4.2.2's "cue is emitted last because
// every other synthesizer may have pushed into the cue-point buffer".
type cueAllocator struct {
	entries []cueEntry
}

type cueEntry struct {
	id         uint32
	name       string
	startFrame uint64
}

func newCueAllocator() *cueAllocator { return &cueAllocator{} }

func (a *cueAllocator) add(name string, startFrame uint64) uint32 {
	id := uint32(len(a.entries))
	a.entries = append(a.entries, cueEntry{id: id, name: name, startFrame: startFrame})

	return id
}

func writeCueAndLabels(buf *bytes.Buffer, alloc *cueAllocator, regions []writtenRegion, bytesPerFrame, channels int) {
	if len(alloc.entries) == 0 && len(regions) == 0 {
		return
	}

	if len(alloc.entries) > 0 {
		var body bytes.Buffer
		_ = binary.Write(&body, binary.LittleEndian, uint32(len(alloc.entries)))

		for _, e := range alloc.entries {
			_ = binary.Write(&body, binary.LittleEndian, e.id)
			_ = binary.Write(&body, binary.LittleEndian, uint32(0)) // play order position
			body.WriteString("data")
			_ = binary.Write(&body, binary.LittleEndian, uint32(0))                             // chunk start
			_ = binary.Write(&body, binary.LittleEndian, uint32(0))                             // block start
			_ = binary.Write(&body, binary.LittleEndian, uint32(e.startFrame)*uint32(bytesPerFrame)) // sample byte offset
		}

		writeChunk(buf, [4]byte{'c', 'u', 'e', ' '}, body.Bytes())
	}

	var adtl bytes.Buffer

	for _, e := range alloc.entries {
		if e.name == "" {
			continue
		}

		var sub bytes.Buffer
		_ = binary.Write(&sub, binary.LittleEndian, e.id)
		sub.WriteString(e.name)
		sub.WriteByte(0)

		writeChunk(&adtl, [4]byte{'l', 'a', 'b', 'l'}, sub.Bytes())
	}

	for _, r := range regions {
		var sub bytes.Buffer
		_ = binary.Write(&sub, binary.LittleEndian, r.cuePointID)
		_ = binary.Write(&sub, binary.LittleEndian, uint32(r.numFrames)*uint32(channels))
		sub.WriteString("beat") // purposeId
		_ = binary.Write(&sub, binary.LittleEndian, uint16(0)) // country
		_ = binary.Write(&sub, binary.LittleEndian, uint16(0)) // language
		_ = binary.Write(&sub, binary.LittleEndian, uint16(0)) // dialect
		_ = binary.Write(&sub, binary.LittleEndian, uint16(0)) // code page
		sub.WriteString(r.name)

		writeChunk(&adtl, [4]byte{'l', 't', 'x', 't'}, sub.Bytes())
	}

	if adtl.Len() > 0 {
		var listBody bytes.Buffer
		listBody.WriteString("adtl")
		listBody.Write(adtl.Bytes())

		writeChunk(buf, [4]byte{'L', 'I', 'S', 'T'}, listBody.Bytes())
	}
}

func writeInfoList(buf *bytes.Buffer, info []RawChunk) {
	if len(info) == 0 {
		return
	}

	var body bytes.Buffer
	body.WriteString("INFO")

	for _, c := range info {
		writeChunk(&body, c.ID, c.Data)
	}

	writeChunk(buf, [4]byte{'L', 'I', 'S', 'T'}, body.Bytes())
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}

	return v
}
