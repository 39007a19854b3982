// Package glyfpatch implements the glyph-keyed binary patch applier
// (component E): parsing an IFTB patch's header without inflating its
// payload, and splicing the glyph data it carries into a font's glyf/loca
// tables. The splice itself is grounded on seehuhn.de/go/sfnt/glyf's
// Decode/Encode pair, which already understands simple and composite glyph
// records; the container rebuild reuses the sfntfont package (component B).
package glyfpatch

import (
	"github.com/garretrieger/ift/ifterrors"
	"github.com/garretrieger/ift/internal/sfntio"
	"seehuhn.de/go/sfnt/glyph"
)

// magic is the 4-byte signature every IFTB patch begins with.
var magic = [4]byte{'i', 'f', 't', 'b'}

const (
	headerMagicLen  = 4
	headerIDLen     = 16 // 4 x uint32
	headerChunkLen  = 4
	headerGidCntLen = 4
	fixedHeaderLen  = headerMagicLen + headerIDLen + headerChunkLen + headerGidCntLen
)

// header holds the uncompressed prefix of an IFTB patch: everything needed
// to answer GidsInPatch and IdInPatch without inflating the payload.
type header struct {
	id         [4]uint32
	chunkIndex uint32
	gids       []glyph.ID
	// payloadStart is the byte offset at which the (possibly compressed)
	// per-glyph substitution payload begins.
	payloadStart int
}

func parseHeader(patch []byte) (header, error) {
	if len(patch) < fixedHeaderLen {
		return header{}, ifterrors.New(ifterrors.NotEnoughInput, "patch shorter than fixed header")
	}
	if patch[0] != magic[0] || patch[1] != magic[1] || patch[2] != magic[2] || patch[3] != magic[3] {
		return header{}, ifterrors.New(ifterrors.InvalidFormat, "missing 'iftb' magic")
	}

	r := sfntio.NewReader("iftb patch header", patch[headerMagicLen:])

	var id [4]uint32
	for i := range id {
		v, err := r.ReadUint32()
		if err != nil {
			return header{}, err
		}
		id[i] = v
	}

	chunkIndex, err := r.ReadUint32()
	if err != nil {
		return header{}, err
	}

	gidCount, err := r.ReadUint32()
	if err != nil {
		return header{}, err
	}

	gids := make([]glyph.ID, gidCount)
	for i := range gids {
		v, err := r.ReadUint32()
		if err != nil {
			return header{}, err
		}
		gids[i] = glyph.ID(v)
	}

	return header{
		id:           id,
		chunkIndex:   chunkIndex,
		gids:         gids,
		payloadStart: headerMagicLen + r.Pos(),
	}, nil
}

// GidsInPatch returns the set of glyph ids patch will install, without
// inflating its compressed payload: the gid list is carried in the
// uncompressed header.
func GidsInPatch(patch []byte) (map[glyph.ID]bool, error) {
	h, err := parseHeader(patch)
	if err != nil {
		return nil, err
	}
	out := make(map[glyph.ID]bool, len(h.gids))
	for _, g := range h.gids {
		out[g] = true
	}
	return out, nil
}

// IdInPatch returns the 16-byte identifier a patch was built against, used
// to confirm a patch targets the font currently loaded.
func IdInPatch(patch []byte) ([4]uint32, error) {
	h, err := parseHeader(patch)
	if err != nil {
		return [4]uint32{}, err
	}
	return h.id, nil
}

func idsEqual(a, b [4]uint32) bool {
	return a == b
}
