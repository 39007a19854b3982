package patchmap

import (
	"bytes"

	"github.com/garretrieger/ift/ifterrors"
	"github.com/garretrieger/ift/internal/sfntio"
	"github.com/garretrieger/ift/sparsebitset"
)

// Bit positions within a patch-map entry's leading format byte. See
// SPEC_FULL.md §4.2.
const (
	entryFeaturesBit    = 1 << 0
	entryDesignSpaceBit = 1 << 1
	entryCopyMappingBit = 1 << 2
	entryIndexDeltaBit  = 1 << 3
	entryEncodingBit    = 1 << 4
	entryCodepointsBit  = 1 << 5
	entryIgnoreBit      = 1 << 6
)

const headerLength = 34 // bytes before the URI template

func encodingToByte(e Encoding) (byte, error) {
	switch e {
	case GlyphKeyedBrotli, TableKeyedSharedBrotli, PerTableSharedBrotli:
		return byte(e), nil
	default:
		return 0, ifterrors.New(ifterrors.UnknownEncoding, "encoding value outside {0,1,2}")
	}
}

func byteToEncoding(b byte) (Encoding, error) {
	switch b {
	case 0:
		return GlyphKeyedBrotli, nil
	case 1:
		return TableKeyedSharedBrotli, nil
	case 2:
		return PerTableSharedBrotli, nil
	default:
		return 0, ifterrors.New(ifterrors.UnknownEncoding, "encoding value outside {0,1,2}")
	}
}

// pickDefaultEncoding chooses the most common encoding across entries,
// breaking ties toward the lower numeric value. An empty entry list
// defaults to GlyphKeyedBrotli.
func pickDefaultEncoding(entries []Entry) Encoding {
	var counts [3]int
	for _, e := range entries {
		counts[e.Encoding]++
	}
	best := GlyphKeyedBrotli
	for _, e := range []Encoding{TableKeyedSharedBrotli, PerTableSharedBrotli} {
		if counts[e] > counts[best] {
			best = e
		}
	}
	return best
}

// Serialize encodes t's format 2 patch-map table bytes. Only entries whose
// IsExtension matches isExt are written, matching the requirement that
// extension and non-extension entries serialize into two independent
// tables. Serialize fails with ifterrors.LimitExceeded if the filtered
// entry count or the URI template length exceeds 0xFFFF.
func Serialize(t Table, isExt bool) ([]byte, error) {
	var entries []Entry
	for _, e := range t.Entries {
		if e.IsExtension == isExt {
			entries = append(entries, e)
		}
	}

	if len(entries) > 0xFFFF {
		return nil, ifterrors.New(ifterrors.LimitExceeded, "entry count exceeds 0xFFFF")
	}
	if len(t.URITemplate) > 0xFFFF {
		return nil, ifterrors.New(ifterrors.LimitExceeded, "URI template length exceeds 0xFFFF")
	}

	defaultEncoding := pickDefaultEncoding(entries)

	entryBytes, err := encodeEntries(entries, defaultEncoding)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	out.WriteByte(2) // format
	writeUint32(&out, 0)
	for _, v := range t.ID {
		writeUint32(&out, v)
	}
	defaultByte, err := encodingToByte(defaultEncoding)
	if err != nil {
		return nil, err
	}
	out.WriteByte(defaultByte)
	writeUint16(&out, uint16(len(entries)))
	entriesOffset := headerLength + len(t.URITemplate)
	writeUint32(&out, uint32(entriesOffset))
	writeUint32(&out, 0) // id_strings_offset, reserved
	writeUint16(&out, uint16(len(t.URITemplate)))
	out.WriteString(t.URITemplate)
	out.Write(entryBytes)

	return out.Bytes(), nil
}

// Deserialize parses a format 2 patch-map table. isExt marks every decoded
// entry's IsExtension field; the caller is expected to know, from which
// on-disk table ('IFT ' vs an extension table) the bytes came, whether
// isExt should be true.
func Deserialize(data []byte, isExt bool) (Table, error) {
	r := sfntio.NewReader("patch-map table", data)

	format, err := r.ReadUint8()
	if err != nil {
		return Table{}, err
	}
	if format != 2 {
		return Table{}, ifterrors.New(ifterrors.InvalidFormat, "format byte is not 2")
	}

	if err := r.Skip(4); err != nil { // reserved
		return Table{}, err
	}

	var id [4]uint32
	for i := range id {
		v, err := r.ReadUint32()
		if err != nil {
			return Table{}, err
		}
		id[i] = v
	}

	defaultEncodingByte, err := r.ReadUint8()
	if err != nil {
		return Table{}, err
	}
	defaultEncoding, err := byteToEncoding(defaultEncodingByte)
	if err != nil {
		return Table{}, err
	}

	entryCount, err := r.ReadUint16()
	if err != nil {
		return Table{}, err
	}
	entriesOffset, err := r.ReadUint32()
	if err != nil {
		return Table{}, err
	}
	if err := r.Skip(4); err != nil { // id_strings_offset, reserved
		return Table{}, err
	}

	uriLen, err := r.ReadUint16()
	if err != nil {
		return Table{}, err
	}
	uriBytes, err := r.ReadBytes(int(uriLen))
	if err != nil {
		return Table{}, err
	}

	if int(entriesOffset) > len(data) {
		return Table{}, ifterrors.New(ifterrors.NotEnoughInput, "entries_offset past end of table")
	}
	entries, err := decodeEntries(data[entriesOffset:], int(entryCount), defaultEncoding, isExt)
	if err != nil {
		return Table{}, err
	}

	return Table{ID: id, URITemplate: string(uriBytes), Entries: entries}, nil
}

func encodeEntries(entries []Entry, defaultEncoding Encoding) ([]byte, error) {
	var out bytes.Buffer
	runningIndex := uint32(0)
	for _, e := range entries {
		if err := encodeEntry(&out, e, runningIndex, defaultEncoding); err != nil {
			return nil, err
		}
		runningIndex = e.PatchIndex
	}
	return out.Bytes(), nil
}

func encodeEntry(out *bytes.Buffer, e Entry, runningIndex uint32, defaultEncoding Encoding) error {
	hasFeatures := len(e.Coverage.Features) > 0
	hasCodepoints := len(e.Coverage.Codepoints) > 0
	delta := int64(e.PatchIndex) - int64(runningIndex)
	hasDelta := delta != 1
	hasEncodingOverride := e.Encoding != defaultEncoding

	var format byte
	if hasFeatures {
		format |= entryFeaturesBit
	}
	if hasDelta {
		format |= entryIndexDeltaBit
	}
	if hasEncodingOverride {
		format |= entryEncodingBit
	}
	if hasCodepoints {
		format |= entryCodepointsBit
	}
	out.WriteByte(format)

	if hasFeatures {
		tags := e.Coverage.Features.Sorted()
		if len(tags) > 0xFF {
			return ifterrors.New(ifterrors.LimitExceeded, "feature tag count exceeds 0xFF")
		}
		out.WriteByte(byte(len(tags)))
		for _, tag := range tags {
			writeUint32(out, tag)
		}
	}

	if hasDelta {
		if delta > (1<<15-1) || delta < -(1<<15) {
			return ifterrors.New(ifterrors.LimitExceeded, "entry index delta exceeds int16 range")
		}
		writeUint16(out, uint16(int16(delta)))
	}

	if hasEncodingOverride {
		b, err := encodingToByte(e.Encoding)
		if err != nil {
			return err
		}
		out.WriteByte(b)
	}

	if hasCodepoints {
		bias := e.Coverage.SmallestCodepoint()
		biased := sparsebitset.Set{}
		for cp := range e.Coverage.Codepoints {
			biased.Add(cp - bias)
		}
		if bias > 0xFFFFFF {
			return ifterrors.New(ifterrors.LimitExceeded, "codepoint bias exceeds u24 range")
		}
		writeUint24(out, bias)
		out.Write(sparsebitset.Encode(biased))
	}

	return nil
}

func decodeEntries(data []byte, count int, defaultEncoding Encoding, isExt bool) ([]Entry, error) {
	r := sfntio.NewReader("patch-map entry", data)
	entries := make([]Entry, 0, count)
	runningIndex := uint32(0)

	for i := 0; i < count; i++ {
		format, err := r.ReadUint8()
		if err != nil {
			return nil, err
		}

		coverage := Coverage{Codepoints: CodepointSet{}, Features: FeatureSet{}}

		if format&entryFeaturesBit != 0 {
			n, err := r.ReadUint8()
			if err != nil {
				return nil, err
			}
			for j := 0; j < int(n); j++ {
				tag, err := r.ReadUint32()
				if err != nil {
					return nil, err
				}
				coverage.Features[tag] = true
			}
		}

		if format&entryDesignSpaceBit != 0 {
			n, err := r.ReadUint16()
			if err != nil {
				return nil, err
			}
			if err := r.Skip(int(n) * 12); err != nil {
				return nil, err
			}
		}

		if format&entryCopyMappingBit != 0 {
			n, err := r.ReadUint16()
			if err != nil {
				return nil, err
			}
			if err := r.Skip(int(n) * 2); err != nil {
				return nil, err
			}
		}

		delta := int64(1)
		if format&entryIndexDeltaBit != 0 {
			d, err := r.ReadInt16()
			if err != nil {
				return nil, err
			}
			delta = int64(d)
		}

		encoding := defaultEncoding
		if format&entryEncodingBit != 0 {
			b, err := r.ReadUint8()
			if err != nil {
				return nil, err
			}
			encoding, err = byteToEncoding(b)
			if err != nil {
				return nil, err
			}
		}

		if format&entryCodepointsBit != 0 {
			bias, err := r.ReadUint24()
			if err != nil {
				return nil, err
			}
			if r.Remaining() == 0 {
				return nil, ifterrors.New(ifterrors.NotEnoughInput, "patch-map entry: missing codepoint set")
			}
			set, n, err := sparsebitset.Decode(r.RemainingBytes())
			if err != nil {
				return nil, err
			}
			if err := r.Skip(n); err != nil {
				return nil, err
			}
			for cp := range set {
				coverage.Codepoints[cp+bias] = true
			}
		}

		runningIndex = uint32(int64(runningIndex) + delta)

		if format&entryIgnoreBit == 0 {
			entries = append(entries, Entry{
				Coverage:    coverage,
				PatchIndex:  runningIndex,
				Encoding:    encoding,
				IsExtension: isExt,
			})
		}
	}

	return entries, nil
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	buf.WriteByte(byte(v >> 8))
	buf.WriteByte(byte(v))
}

func writeUint24(buf *bytes.Buffer, v uint32) {
	buf.WriteByte(byte(v >> 16))
	buf.WriteByte(byte(v >> 8))
	buf.WriteByte(byte(v))
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	buf.WriteByte(byte(v >> 24))
	buf.WriteByte(byte(v >> 16))
	buf.WriteByte(byte(v >> 8))
	buf.WriteByte(byte(v))
}
