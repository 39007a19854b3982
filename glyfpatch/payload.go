package glyfpatch

import (
	"bytes"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/garretrieger/ift/ifterrors"
	"github.com/garretrieger/ift/internal/sfntio"
	"seehuhn.de/go/sfnt/glyph"
)

// Decompressor inflates a patch's payload bytes. The concrete collaborator
// is swappable so tests can exercise the splice logic with plain bytes.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
}

// BrotliDecompressor is the production Decompressor, backed by
// github.com/andybalholm/brotli.
type BrotliDecompressor struct{}

// Decompress inflates brotli-compressed data.
func (BrotliDecompressor) Decompress(data []byte) ([]byte, error) {
	out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
	if err != nil {
		return nil, ifterrors.Wrap(ifterrors.InvalidFormat, "brotli payload", err)
	}
	return out, nil
}

// decodeGlyphData inflates h's payload and returns, for each gid in
// h.gids (same order), the raw glyf-table bytes that should replace that
// gid's current outline.
func decodeGlyphData(patch []byte, h header, dec Decompressor) (map[glyph.ID][]byte, error) {
	compressed := patch[h.payloadStart:]
	inflated, err := dec.Decompress(compressed)
	if err != nil {
		return nil, err
	}

	r := sfntio.NewReader("iftb patch payload", inflated)
	out := make(map[glyph.ID][]byte, len(h.gids))
	for _, gid := range h.gids {
		length, err := r.ReadUint32()
		if err != nil {
			return nil, err
		}
		data, err := r.ReadBytes(int(length))
		if err != nil {
			return nil, err
		}
		cp := make([]byte, len(data))
		copy(cp, data)
		out[gid] = cp
	}
	return out, nil
}
