// Package sfntfont provides the minimal SFNT container support this module
// needs: parsing a font into its tagged tables, and rebuilding one from a
// table set with the checksum and ordering rules binary patch application
// depends on. It is grounded on seehuhn.de/go/pdf's sfnt/header.Write and
// font/sfnt's checksum helper, generalized to also read a font back apart
// and to the extra table-ordering constraints incremental font transfer
// imposes (see SPEC_FULL.md §4.3).
package sfntfont

import (
	"bytes"
	"encoding/binary"
	"math/bits"
	"sort"

	"github.com/garretrieger/ift/ifterrors"
	"github.com/garretrieger/ift/internal/sfntio"
)

// Font is an in-memory SFNT container: a scaler type tag and a set of
// 4-byte-tagged table blobs, keyed by tag string (e.g. "glyf", "IFT ").
type Font struct {
	ScalerType uint32
	Tables     map[string][]byte
}

// Parse reads an SFNT font's table directory and returns its tables keyed by
// tag. Table bodies alias data and must not be modified in place; use
// Clone or copy a table before mutating it.
func Parse(data []byte) (Font, error) {
	r := sfntio.NewReader("sfnt header", data)

	scalerType, err := r.ReadUint32()
	if err != nil {
		return Font{}, err
	}
	numTables, err := r.ReadUint16()
	if err != nil {
		return Font{}, err
	}
	if err := r.Skip(6); err != nil { // searchRange, entrySelector, rangeShift
		return Font{}, err
	}

	tables := make(map[string][]byte, numTables)
	for i := 0; i < int(numTables); i++ {
		tagBytes, err := r.ReadBytes(4)
		if err != nil {
			return Font{}, err
		}
		if err := r.Skip(4); err != nil { // checksum, not re-validated on read
			return Font{}, err
		}
		offset, err := r.ReadUint32()
		if err != nil {
			return Font{}, err
		}
		length, err := r.ReadUint32()
		if err != nil {
			return Font{}, err
		}
		if uint64(offset)+uint64(length) > uint64(len(data)) {
			return Font{}, ifterrors.New(ifterrors.NotEnoughInput, "table directory entry past end of file")
		}
		tables[string(tagBytes)] = data[offset : offset+length]
	}

	return Font{ScalerType: scalerType, Tables: tables}, nil
}

// Table returns the table with the given tag and whether it is present.
func (f Font) Table(tag string) ([]byte, bool) {
	b, ok := f.Tables[tag]
	return b, ok
}

// Clone returns a deep copy of f; table bodies are copied so callers may
// freely mutate the result.
func (f Font) Clone() Font {
	out := Font{ScalerType: f.ScalerType, Tables: make(map[string][]byte, len(f.Tables))}
	for tag, data := range f.Tables {
		cp := make([]byte, len(data))
		copy(cp, data)
		out.Tables[tag] = cp
	}
	return out
}

// tableOrder gives the recommended table ordering priority, higher first,
// per the OpenType optimized-table-ordering recommendation, extended with
// the glyph-outline ordering constraints incremental font transfer requires:
// gvar before glyf, glyf before loca, and loca/CFF/CFF2 placed last of all.
// Tables absent from this map (including "IFT " and any extension table)
// have priority 0: they sort after the positively prioritized tables and
// before loca/CFF /CFF2, in tag order.
var tableOrder = map[string]int{
	"head": 100,
	"hhea": 95,
	"maxp": 90,
	"OS/2": 85,
	"hmtx": 80,
	"LTSH": 75,
	"VDMX": 70,
	"hdmx": 65,
	"cmap": 60,
	"fpgm": 55,
	"prep": 50,
	"cvt ": 45,
	"fvar": 40,
	"gvar": 35,
	"glyf": 30,
	"kern": 25,
	"name": 20,
	"post": 15,
	"gasp": 10,
	"DSIG": 5,
	"loca": -5,
	"CFF ": -10,
	"CFF2": -15,
}

func sortedTableNames(tables map[string][]byte) []string {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		iPrio, jPrio := tableOrder[names[i]], tableOrder[names[j]]
		if iPrio != jPrio {
			return iPrio > jPrio
		}
		return names[i] < names[j]
	})
	return names
}

// Build serializes f into an SFNT binary, recomputing the table directory
// and the head table's checksum adjustment. Tables are written in the order
// tableOrder prescribes; within a priority tier, tags sort lexically.
func (f Font) Build() ([]byte, error) {
	names := sortedTableNames(f.Tables)
	numTables := len(names)

	if headData, ok := f.Tables["head"]; ok {
		if len(headData) < 12 {
			return nil, ifterrors.New(ifterrors.InvalidFormat, "head table shorter than 12 bytes")
		}
		clearChecksum(headData)
	}

	entrySelector := 0
	if numTables > 0 {
		entrySelector = bits.Len(uint(numTables)) - 1
	}

	var dir bytes.Buffer
	writeUint32(&dir, f.ScalerType)
	writeUint16(&dir, uint16(numTables))
	writeUint16(&dir, uint16(1<<(entrySelector+4)))
	writeUint16(&dir, uint16(entrySelector))
	writeUint16(&dir, uint16(16*(numTables-1<<entrySelector)))

	type record struct {
		tag      string
		checksum uint32
		offset   uint32
		length   uint32
	}
	records := make([]record, numTables)
	offset := uint32(12 + 16*numTables)
	var totalSum uint32
	for i, name := range names {
		body := f.Tables[name]
		sum := checksum(body)
		records[i] = record{tag: name, checksum: sum, offset: offset, length: uint32(len(body))}
		totalSum += sum
		offset += uint32(4 * ((len(body) + 3) / 4))
	}

	dirRecords := make([]record, numTables)
	copy(dirRecords, records)
	sort.Slice(dirRecords, func(i, j int) bool { return dirRecords[i].tag < dirRecords[j].tag })
	for _, r := range dirRecords {
		dir.WriteString(r.tag)
		writeUint32(&dir, r.checksum)
		writeUint32(&dir, r.offset)
		writeUint32(&dir, r.length)
	}

	totalSum += checksum(dir.Bytes())

	if headData, ok := f.Tables["head"]; ok {
		patchChecksum(headData, totalSum)
	}

	var out bytes.Buffer
	out.Write(dir.Bytes())
	var pad [3]byte
	for _, name := range names {
		body := f.Tables[name]
		out.Write(body)
		if k := len(body) % 4; k != 0 {
			out.Write(pad[:4-k])
		}
	}

	return out.Bytes(), nil
}

func clearChecksum(head []byte) {
	binary.BigEndian.PutUint32(head[8:12], 0)
}

func patchChecksum(head []byte, sum uint32) {
	binary.BigEndian.PutUint32(head[8:12], 0xB1B0AFBA-sum)
}

// checksum computes the SFNT table checksum: the sum, mod 2^32, of the
// table's bytes read as big-endian uint32 words, zero-padded to a multiple
// of 4.
func checksum(data []byte) uint32 {
	var sum uint32
	var buf [4]byte
	used := 0
	for _, b := range data {
		buf[used] = b
		used++
		if used == 4 {
			sum += binary.BigEndian.Uint32(buf[:])
			used = 0
		}
	}
	if used != 0 {
		for ; used < 4; used++ {
			buf[used] = 0
		}
		sum += binary.BigEndian.Uint32(buf[:])
	}
	return sum
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	buf.WriteByte(byte(v >> 8))
	buf.WriteByte(byte(v))
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	buf.WriteByte(byte(v >> 24))
	buf.WriteByte(byte(v >> 16))
	buf.WriteByte(byte(v >> 8))
	buf.WriteByte(byte(v))
}
