// Package wav implements the WAV codec (§4.2, §6): RIFF chunk parsing and
// synthesis, PCM/IEEE-float sample conversion at every supported bit depth,
// and the lift/lower between `smpl`/`inst`/`cue `/`acid`/`LIST:adtl` chunks
// and the neutral metadata.Metadata record.
package wav

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/SamWindell/signet/internal/audio"
	"github.com/SamWindell/signet/internal/fault"
	"github.com/SamWindell/signet/internal/metadata"
)

// ValidBitDepths are the bit depths signet can read and write in a WAV
// container (§9 design notes; matches the original drwav-backed tool).
var ValidBitDepths = []int{8, 16, 24, 32, 64}

const (
	formatPCM       = 1
	formatIEEEFloat = 3
)

// RawChunk is a top-level or sub-list chunk signet doesn't interpret, kept
// so it round-trips byte-for-byte on re-encode (§6: "unknown chunks inside
// INFO and adtl are preserved verbatim; unknown chunks elsewhere are passed
// through").
type RawChunk struct {
	ID   [4]byte
	Data []byte
}

// Extra is the Opaque payload this codec stashes on audio.Samples for
// anything that isn't represented in metadata.Metadata.
type Extra struct {
	InfoChunks    []RawChunk // LIST:INFO sub-chunks, preserved verbatim
	UnknownADTL   []RawChunk // LIST:adtl sub-chunks this codec doesn't parse
	UnknownChunks []RawChunk // top-level chunks outside fmt/data/smpl/inst/cue/acid/bext/LIST
	Bext          []byte     // raw bext chunk payload, if present
}

// Decode reads a complete RIFF/WAVE stream from r.
func Decode(r io.Reader) (*audio.Samples, []string, error) {
	br := &reader{r: r}

	var riffID, waveID [4]byte
	var riffSize uint32

	if err := br.readExact(riffID[:]); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", fault.ErrDecodeFailure, err)
	}
	if err := binary.Read(br, binary.LittleEndian, &riffSize); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", fault.ErrDecodeFailure, err)
	}
	if err := br.readExact(waveID[:]); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", fault.ErrDecodeFailure, err)
	}

	if string(riffID[:]) != "RIFF" || string(waveID[:]) != "WAVE" {
		return nil, nil, fmt.Errorf("%w: not a RIFF/WAVE stream", fault.ErrDecodeFailure)
	}

	dec := &decoder{extra: &Extra{}}

	for {
		var id [4]byte
		var size uint32

		if err := br.readExact(id[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, nil, fmt.Errorf("%w: %w", fault.ErrDecodeFailure, err)
		}
		if err := binary.Read(br, binary.LittleEndian, &size); err != nil {
			return nil, nil, fmt.Errorf("%w: %w", fault.ErrDecodeFailure, err)
		}

		body := make([]byte, size)
		if err := br.readExact(body); err != nil {
			return nil, nil, fmt.Errorf("%w: %w", fault.ErrDecodeFailure, err)
		}
		if size%2 == 1 {
			br.skipPad()
		}

		if err := dec.chunk(id, body); err != nil {
			return nil, nil, err
		}
	}

	return dec.finish()
}

// reader wraps an io.Reader to track a consistent error on truncated reads
// and to skip RIFF's word-alignment pad byte.
type reader struct {
	r io.Reader
}

func (rd *reader) Read(p []byte) (int, error) { return rd.r.Read(p) }

func (rd *reader) readExact(p []byte) error {
	_, err := io.ReadFull(rd.r, p)
	return err
}

func (rd *reader) skipPad() {
	var b [1]byte
	_, _ = io.ReadFull(rd.r, b[:])
}

// decoder accumulates chunk state while walking the RIFF stream.
type decoder struct {
	format       formatChunk
	haveFormat   bool
	data         []byte
	haveData     bool
	smpl         *smplChunk
	inst         *instChunk
	cue          []cuePoint
	acid         *acidChunk
	labels       map[uint32]string // cue point id -> label text (labl/note)
	regions      []regionChunk
	extra        *Extra
}

type formatChunk struct {
	audioFormat   uint16
	channels      uint16
	sampleRate    uint32
	bitsPerSample uint16
}

type smplLoopRaw struct {
	cuePointID        uint32
	loopType          uint32
	firstByteOffset   uint32
	lastByteOffset    uint32
	playCount         uint32
}

type smplChunk struct {
	midiUnityNote uint32
	loops         []smplLoopRaw
}

type instChunk struct {
	midiUnityNote int8
	fineTuneCents int8
	gainDB        int8
	lowNote       int8
	highNote      int8
	lowVelocity   int8
	highVelocity  int8
}

type cuePoint struct {
	id              uint32
	sampleByteOffset uint32
}

const (
	acidFlagOneShot     = 1 << 0
	acidFlagRootNoteSet = 1 << 1
)

type acidChunk struct {
	flags           uint32
	midiUnityNote   uint16
	numBeats        uint32
	meterDenom      uint16
	meterNum        uint16
	tempo           float32
}

type regionChunk struct {
	cuePointID uint32
	numSamples uint32
	name       string
}

func (d *decoder) chunk(id [4]byte, body []byte) error {
	switch string(id[:]) {
	case "fmt ":
		return d.readFormat(body)
	case "data":
		d.data = body
		d.haveData = true
	case "smpl":
		return d.readSmpl(body)
	case "inst":
		return d.readInst(body)
	case "cue ":
		return d.readCue(body)
	case "acid":
		return d.readAcid(body)
	case "bext":
		d.extra.Bext = body
	case "LIST":
		return d.readList(body)
	default:
		d.extra.UnknownChunks = append(d.extra.UnknownChunks, RawChunk{ID: id, Data: body})
	}

	return nil
}

func (d *decoder) readFormat(body []byte) error {
	if len(body) < 16 {
		return fmt.Errorf("%w: fmt chunk too short", fault.ErrDecodeFailure)
	}

	r := bytes.NewReader(body)
	_ = binary.Read(r, binary.LittleEndian, &d.format.audioFormat)
	_ = binary.Read(r, binary.LittleEndian, &d.format.channels)
	_ = binary.Read(r, binary.LittleEndian, &d.format.sampleRate)
	r.Seek(6, io.SeekCurrent) // byteRate (4) + blockAlign (2)
	_ = binary.Read(r, binary.LittleEndian, &d.format.bitsPerSample)
	d.haveFormat = true

	return nil
}

func (d *decoder) readSmpl(body []byte) error {
	if len(body) < 36 {
		return nil
	}

	r := bytes.NewReader(body)
	var manufacturer, product, samplePeriod, midiUnityNote, midiPitchFraction uint32
	var smpteFormat, smpteOffset, loopCount, samplerDataSize uint32

	_ = binary.Read(r, binary.LittleEndian, &manufacturer)
	_ = binary.Read(r, binary.LittleEndian, &product)
	_ = binary.Read(r, binary.LittleEndian, &samplePeriod)
	_ = binary.Read(r, binary.LittleEndian, &midiUnityNote)
	_ = binary.Read(r, binary.LittleEndian, &midiPitchFraction)
	_ = binary.Read(r, binary.LittleEndian, &smpteFormat)
	_ = binary.Read(r, binary.LittleEndian, &smpteOffset)
	_ = binary.Read(r, binary.LittleEndian, &loopCount)
	_ = binary.Read(r, binary.LittleEndian, &samplerDataSize)

	loops := make([]smplLoopRaw, 0, loopCount)

	for i := uint32(0); i < loopCount; i++ {
		var l smplLoopRaw
		var cuePointID, loopType, first, last, fraction, playCount uint32

		if err := binary.Read(r, binary.LittleEndian, &cuePointID); err != nil {
			break
		}
		_ = binary.Read(r, binary.LittleEndian, &loopType)
		_ = binary.Read(r, binary.LittleEndian, &first)
		_ = binary.Read(r, binary.LittleEndian, &last)
		_ = binary.Read(r, binary.LittleEndian, &fraction)
		_ = binary.Read(r, binary.LittleEndian, &playCount)

		l.cuePointID = cuePointID
		l.loopType = loopType
		l.firstByteOffset = first
		l.lastByteOffset = last
		l.playCount = playCount

		loops = append(loops, l)
	}

	d.smpl = &smplChunk{midiUnityNote: midiUnityNote, loops: loops}

	return nil
}

func (d *decoder) readInst(body []byte) error {
	if len(body) < 7 {
		return nil
	}

	d.inst = &instChunk{
		midiUnityNote: int8(body[0]),
		fineTuneCents: int8(body[1]),
		gainDB:        int8(body[2]),
		lowNote:       int8(body[3]),
		highNote:      int8(body[4]),
		lowVelocity:   int8(body[5]),
		highVelocity:  int8(body[6]),
	}

	return nil
}

func (d *decoder) readCue(body []byte) error {
	if len(body) < 4 {
		return nil
	}

	r := bytes.NewReader(body)
	var count uint32
	_ = binary.Read(r, binary.LittleEndian, &count)

	for i := uint32(0); i < count; i++ {
		var id, position, chunkStart, blockStart, sampleByteOffset uint32
		var dataChunkID [4]byte

		if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
			break
		}
		_ = binary.Read(r, binary.LittleEndian, &position)
		_ = binary.Read(r, binary.LittleEndian, &dataChunkID)
		_ = binary.Read(r, binary.LittleEndian, &chunkStart)
		_ = binary.Read(r, binary.LittleEndian, &blockStart)
		_ = binary.Read(r, binary.LittleEndian, &sampleByteOffset)

		d.cue = append(d.cue, cuePoint{id: id, sampleByteOffset: sampleByteOffset})
	}

	return nil
}

func (d *decoder) readAcid(body []byte) error {
	if len(body) < 24 {
		return nil
	}

	r := bytes.NewReader(body)
	a := &acidChunk{}

	_ = binary.Read(r, binary.LittleEndian, &a.flags)
	_ = binary.Read(r, binary.LittleEndian, &a.midiUnityNote)
	r.Seek(6, io.SeekCurrent) // unused u16 + unused f32, per the ACID chunk layout
	_ = binary.Read(r, binary.LittleEndian, &a.numBeats)
	_ = binary.Read(r, binary.LittleEndian, &a.meterDenom)
	_ = binary.Read(r, binary.LittleEndian, &a.meterNum)
	_ = binary.Read(r, binary.LittleEndian, &a.tempo)

	d.acid = a

	return nil
}

func (d *decoder) readList(body []byte) error {
	if len(body) < 4 {
		return nil
	}

	listType := string(body[0:4])
	body = body[4:]

	switch listType {
	case "adtl":
		return d.readADTL(body)
	case "INFO":
		return d.readINFO(body)
	default:
		d.extra.UnknownChunks = append(d.extra.UnknownChunks, RawChunk{ID: [4]byte{'L', 'I', 'S', 'T'}, Data: append([]byte(listType), body...)})
	}

	return nil
}

func (d *decoder) readADTL(body []byte) error {
	if d.labels == nil {
		d.labels = make(map[uint32]string)
	}

	r := bytes.NewReader(body)

	for r.Len() > 0 {
		var id [4]byte
		var size uint32

		if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
			break
		}
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			break
		}

		sub := make([]byte, size)
		if _, err := io.ReadFull(r, sub); err != nil {
			break
		}
		if size%2 == 1 && r.Len() > 0 {
			r.Seek(1, io.SeekCurrent)
		}

		switch string(id[:]) {
		case "labl", "note":
			if len(sub) < 4 {
				continue
			}

			cueID := binary.LittleEndian.Uint32(sub[0:4])
			text := trimNulString(sub[4:])
			d.labels[cueID] = text
		case "ltxt":
			if len(sub) < 20 {
				continue
			}

			cueID := binary.LittleEndian.Uint32(sub[0:4])
			sampleLen := binary.LittleEndian.Uint32(sub[4:8])
			// purposeId(4) + country(2) + language(2) + dialect(2) + codePage(2) = 12 bytes, then text
			name := ""
			if len(sub) > 20 {
				name = trimNulString(sub[20:])
			}

			d.regions = append(d.regions, regionChunk{cuePointID: cueID, numSamples: sampleLen, name: name})
		default:
			d.extra.UnknownADTL = append(d.extra.UnknownADTL, RawChunk{ID: id, Data: sub})
		}
	}

	return nil
}

func (d *decoder) readINFO(body []byte) error {
	r := bytes.NewReader(body)

	for r.Len() > 0 {
		var id [4]byte
		var size uint32

		if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
			break
		}
		if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
			break
		}

		sub := make([]byte, size)
		if _, err := io.ReadFull(r, sub); err != nil {
			break
		}
		if size%2 == 1 && r.Len() > 0 {
			r.Seek(1, io.SeekCurrent)
		}

		d.extra.InfoChunks = append(d.extra.InfoChunks, RawChunk{ID: id, Data: sub})
	}

	return nil
}

func trimNulString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}

	return string(b)
}

// finish assembles the decoded audio.Samples once every chunk has been
// walked, implementing the WAV reading algorithm of §4.2.1.
func (d *decoder) finish() (*audio.Samples, []string, error) {
	if !d.haveFormat {
		return nil, nil, fmt.Errorf("%w: missing fmt chunk", fault.ErrDecodeFailure)
	}
	if !d.haveData {
		return nil, nil, fmt.Errorf("%w: missing data chunk", fault.ErrDecodeFailure)
	}

	channels := int(d.format.channels)
	bitsPerSample := int(d.format.bitsPerSample)

	samples, err := decodeSamples(d.data, d.format.audioFormat, bitsPerSample)
	if err != nil {
		return nil, nil, err
	}

	s := &audio.Samples{
		Interleaved:   samples,
		ChannelCount:  channels,
		SampleRate:    int(d.format.sampleRate),
		BitsPerSample: bitsPerSample,
		Container:     audio.ContainerWAV,
		Opaque:        d.extra,
	}

	bytesPerFrame := (bitsPerSample / 8) * channels
	meta, warnings := d.liftMetadata(bytesPerFrame)
	s.Metadata = meta

	return s, warnings, nil
}

func decodeSamples(data []byte, audioFormat uint16, bitsPerSample int) ([]float64, error) {
	switch bitsPerSample {
	case 8:
		out := make([]float64, len(data))
		for i, b := range data {
			out[i] = float64(b)/127.5 - 1.0
		}

		return out, nil
	case 16:
		n := len(data) / 2
		out := make([]float64, n)

		for i := 0; i < n; i++ {
			v := int16(binary.LittleEndian.Uint16(data[i*2:]))
			out[i] = float64(v) / 32768.0
		}

		return out, nil
	case 24:
		n := len(data) / 3
		out := make([]float64, n)

		for i := 0; i < n; i++ {
			b0, b1, b2 := data[i*3], data[i*3+1], data[i*3+2]
			v := int32(b0) | int32(b1)<<8 | int32(b2)<<16
			if v&0x800000 != 0 {
				v |= ^0xFFFFFF
			}

			out[i] = float64(v) / 8388608.0
		}

		return out, nil
	case 32:
		n := len(data) / 4
		out := make([]float64, n)

		if audioFormat == formatIEEEFloat {
			for i := 0; i < n; i++ {
				bits := binary.LittleEndian.Uint32(data[i*4:])
				out[i] = float64(math.Float32frombits(bits))
			}
		} else {
			for i := 0; i < n; i++ {
				v := int32(binary.LittleEndian.Uint32(data[i*4:]))
				out[i] = float64(v) / 2147483648.0
			}
		}

		return out, nil
	case 64:
		n := len(data) / 8
		out := make([]float64, n)

		for i := 0; i < n; i++ {
			bits := binary.LittleEndian.Uint64(data[i*8:])
			out[i] = math.Float64frombits(bits)
		}

		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported WAV bit depth %d", fault.ErrUnsupportedFormat, bitsPerSample)
	}
}

// liftMetadata implements §4.2.1 steps 1-7: root note priority, loops from
// smpl, markers from cue/labl, regions from ltxt, timing info from acid.
func (d *decoder) liftMetadata(bytesPerFrame int) (metadata.Metadata, []string) {
	var m metadata.Metadata
	var warnings []string

	var rootNote *int
	if d.inst != nil {
		v := int(d.inst.midiUnityNote)
		rootNote = &v
	} else if d.smpl != nil {
		v := int(d.smpl.midiUnityNote)
		rootNote = &v
	} else if d.acid != nil && d.acid.flags&acidFlagRootNoteSet != 0 {
		v := int(d.acid.midiUnityNote)
		rootNote = &v
	}

	if rootNote != nil {
		m.MidiMapping = &metadata.MidiMapping{RootMidiNote: *rootNote}
	}

	if d.inst != nil && m.MidiMapping != nil {
		sm := metadata.SamplerMapping{
			FineTuneCents: int(d.inst.fineTuneCents),
			GainDb:        int(d.inst.gainDB),
			LowNote:       int(d.inst.lowNote),
			HighNote:      int(d.inst.highNote),
			LowVelocity:   int(d.inst.lowVelocity),
			HighVelocity:  int(d.inst.highVelocity),
		}
		m.MidiMapping.SamplerMapping = &sm
	}

	if d.smpl != nil {
		for _, l := range d.smpl.loops {
			if bytesPerFrame == 0 || l.firstByteOffset%uint32(bytesPerFrame) != 0 {
				warnings = append(warnings, "smpl loop byte offset is not frame-aligned, loop dropped")
				continue
			}

			start := uint64(l.firstByteOffset) / uint64(bytesPerFrame)
			end := uint64(l.lastByteOffset)/uint64(bytesPerFrame) + 1

			m.Loops = append(m.Loops, metadata.Loop{
				Name:           d.labels[l.cuePointID],
				Type:           loopTypeFromRaw(l.loopType),
				StartFrame:     start,
				NumFrames:      end - start,
				NumTimesToLoop: uint(l.playCount),
			})
		}
	}

	for _, c := range d.cue {
		if bytesPerFrame == 0 || c.sampleByteOffset%uint32(bytesPerFrame) != 0 {
			warnings = append(warnings, "cue point byte offset is not frame-aligned, marker dropped")
			continue
		}

		// Every cue point becomes a Marker regardless of whether a loop or
		// region also references its id (§4.2.1 step 5) — matching the
		// original reader, which treats the cue and smpl/ltxt chunks as
		// independent sources rather than deduplicating across them.
		m.Markers = append(m.Markers, metadata.Marker{
			Name:       d.labels[c.id],
			StartFrame: uint64(c.sampleByteOffset) / uint64(bytesPerFrame),
		})
	}

	for _, rg := range d.regions {
		var startFrame uint64
		found := false

		for _, c := range d.cue {
			if c.id == rg.cuePointID {
				if bytesPerFrame == 0 || c.sampleByteOffset%uint32(bytesPerFrame) != 0 {
					break
				}

				startFrame = uint64(c.sampleByteOffset) / uint64(bytesPerFrame)
				found = true

				break
			}
		}

		if !found {
			warnings = append(warnings, "labelled cue region refers to an unknown cue point, region dropped")
			continue
		}

		// numSamples in an ltxt chunk counts samples (frames * channels),
		// per §4.2.1.
		channels := uint64(d.format.channels)
		numFrames := uint64(rg.numSamples)
		if channels > 0 {
			numFrames /= channels
		}

		m.Regions = append(m.Regions, metadata.Region{
			InitialMarkerName: d.labels[rg.cuePointID],
			Name:              rg.name,
			StartFrame:        startFrame,
			NumFrames:         numFrames,
		})
	}

	if d.acid != nil {
		playback := metadata.PlaybackOneShot
		if d.acid.flags&acidFlagOneShot == 0 {
			playback = metadata.PlaybackLoop
		}

		m.TimingInfo = &metadata.TimingInfo{
			PlaybackType: playback,
			NumBeats:     uint(d.acid.numBeats),
			TimeSigNum:   uint(d.acid.meterNum),
			TimeSigDen:   uint(d.acid.meterDenom),
			TempoBpm:     float64(d.acid.tempo),
		}
	}

	return m, warnings
}

