package glyfpatch

import (
	"encoding/binary"

	"github.com/garretrieger/ift/ifterrors"
	"github.com/garretrieger/ift/patchmap"
	"github.com/garretrieger/ift/sfntfont"
	"seehuhn.de/go/sfnt/glyf"
	"seehuhn.de/go/sfnt/glyph"
)

const patchMapTag = "IFT "

// Applier batch-applies glyph-keyed patches to a font. The zero value uses
// BrotliDecompressor; Decompressor is exposed so tests can substitute a
// plain-bytes stand-in.
type Applier struct {
	Decompressor Decompressor
}

func (a Applier) decompressor() Decompressor {
	if a.Decompressor != nil {
		return a.Decompressor
	}
	return BrotliDecompressor{}
}

// Patch applies the given batch of glyph-keyed patches to fontBytes and
// returns the resulting font, per SPEC_FULL.md §4.3's batch-application
// algorithm.
func (a Applier) Patch(fontBytes []byte, patches [][]byte) ([]byte, error) {
	font, err := sfntfont.Parse(fontBytes)
	if err != nil {
		return nil, err
	}

	tableData, ok := font.Table(patchMapTag)
	if !ok {
		return nil, ifterrors.New(ifterrors.NotFound, "font has no 'IFT ' table")
	}
	table, err := patchmap.Deserialize(tableData, false)
	if err != nil {
		return nil, err
	}

	headers := make([]header, len(patches))
	for i, p := range patches {
		h, err := parseHeader(p)
		if err != nil {
			return nil, err
		}
		if !idsEqual(h.id, table.ID) {
			return nil, ifterrors.New(ifterrors.IDMismatch, "patch id does not match font's patch-map id")
		}
		headers[i] = h
	}

	replacement := make(map[glyph.ID][]byte)
	consumed := make(map[uint32]bool, len(patches))
	for i, p := range patches {
		h := headers[i]
		consumed[h.chunkIndex] = true

		glyphData, err := decodeGlyphData(p, h, a.decompressor())
		if err != nil {
			return nil, err
		}
		for gid, data := range glyphData {
			if _, dup := replacement[gid]; dup {
				return nil, ifterrors.New(ifterrors.OverlappingPatches, "two patches in this batch claim the same gid")
			}
			replacement[gid] = data
		}
	}

	glyfData, hasGlyf := font.Table("glyf")
	locaData, hasLoca := font.Table("loca")
	if hasGlyf && hasLoca {
		newGlyf, newLoca, newLocaFormat, err := spliceGlyf(font, glyfData, locaData, replacement)
		if err != nil {
			return nil, err
		}
		font.Tables["glyf"] = newGlyf
		font.Tables["loca"] = newLoca
		if head, ok := font.Table("head"); ok && len(head) >= 52 {
			headCopy := make([]byte, len(head))
			copy(headCopy, head)
			binary.BigEndian.PutUint16(headCopy[50:52], uint16(newLocaFormat))
			font.Tables["head"] = headCopy
		}
	}
	// CFF/CFF2 glyph-keyed splicing is not implemented: no CFF codec is
	// wired into this module (see DESIGN.md), so CFF-flavored fonts pass
	// their outline tables through unmodified.

	font.Tables[patchMapTag], err = patchmap.Serialize(table.RemovePatches(consumed), false)
	if err != nil {
		return nil, err
	}

	return font.Build()
}

// locaFormat reports whether head's indexToLocFormat selects the long (1)
// or short (0) loca table format.
func locaFormat(font sfntfont.Font) int16 {
	head, ok := font.Table("head")
	if !ok || len(head) < 52 {
		return 1
	}
	return int16(binary.BigEndian.Uint16(head[50:52]))
}

// spliceGlyf rebuilds the glyf/loca tables, replacing every gid present in
// replacement with its new outline bytes and leaving every other gid's
// outline unchanged. Replacement gids beyond the font's current glyph count
// are dropped silently, per SPEC_FULL.md §4.3 rule 6 (a font previously
// subsetted to exclude a gid must not have it reintroduced by a patch that
// still names it).
func spliceGlyf(font sfntfont.Font, glyfData, locaData []byte, replacement map[glyph.ID][]byte) ([]byte, []byte, int16, error) {
	enc := &glyf.Encoded{
		GlyfData:   glyfData,
		LocaData:   locaData,
		LocaFormat: locaFormat(font),
	}
	glyphs, err := glyf.Decode(enc)
	if err != nil {
		return nil, nil, 0, ifterrors.Wrap(ifterrors.InvalidFormat, "glyf/loca", err)
	}

	numGlyphs := len(glyphs)
	for gid, data := range replacement {
		if int(gid) >= numGlyphs {
			continue
		}
		glyphs[gid] = decodeSplicedGlyph(data)
	}

	out := glyphs.Encode()
	return out.GlyfData, out.LocaData, out.LocaFormat, nil
}

// decodeSplicedGlyph turns a patch's raw glyf-table bytes for one gid into
// the *glyf.Glyph value the outline slice expects, reusing the same decode
// path glyf.Decode takes for every other glyph. A zero-length payload is a
// placeholder ("no outline yet") and decodes to nil, matching glyf.Decode's
// treatment of an empty glyf range.
func decodeSplicedGlyph(data []byte) *glyf.Glyph {
	g, err := glyf.Decode(&glyf.Encoded{
		GlyfData:   data,
		LocaData:   singleEntryLoca(len(data)),
		LocaFormat: 1,
	})
	if err != nil || len(g) == 0 {
		return nil
	}
	return g[0]
}

func singleEntryLoca(length int) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[4:8], uint32(length))
	return buf
}
