package ift

import (
	"github.com/garretrieger/ift/glyfpatch"
	"github.com/garretrieger/ift/ifterrors"
	"github.com/garretrieger/ift/patchmap"
	"github.com/garretrieger/ift/sfntfont"
)

const patchMapTag = "IFT "

// Table is a font's IFT patch-map, as read from its 'IFT ' table. It holds
// no reference to that font; AddToFont writes it into whichever font bytes
// it is given. It is the facade a client or encoder calls through; the sub-packages it
// wraps can also be used directly for finer control.
type Table struct {
	patchmap.Table
}

// FromFont reads the 'IFT ' table out of fontBytes and parses it. It
// returns ifterrors.NotFound if the font carries no such table.
func FromFont(fontBytes []byte) (Table, error) {
	font, err := sfntfont.Parse(fontBytes)
	if err != nil {
		return Table{}, err
	}
	data, ok := font.Table(patchMapTag)
	if !ok {
		return Table{}, ifterrors.New(ifterrors.NotFound, "font has no 'IFT ' table")
	}
	m, err := patchmap.Deserialize(data, false)
	if err != nil {
		return Table{}, err
	}
	return Table{m}, nil
}

// AddToFont returns a copy of fontBytes with t serialized into its 'IFT '
// table, replacing any table already present.
func (t Table) AddToFont(fontBytes []byte) ([]byte, error) {
	font, err := sfntfont.Parse(fontBytes)
	if err != nil {
		return nil, err
	}
	font = font.Clone()

	data, err := patchmap.Serialize(t.Table, false)
	if err != nil {
		return nil, err
	}
	font.Tables[patchMapTag] = data

	return font.Build()
}

// Match returns the entries of t whose coverage applies to def.
func (t Table) Match(def patchmap.SubsetDefinition) []patchmap.Entry {
	return t.Table.Match(def)
}

// RemovePatches returns a copy of t with every entry for the given patch
// indices removed.
func (t Table) RemovePatches(patchIndices map[uint32]bool) Table {
	return Table{t.Table.RemovePatches(patchIndices)}
}

// ApplyPatches batch-applies glyph-keyed patches to fontBytes using the
// default (brotli) decompressor, per SPEC_FULL.md §4.3.
func ApplyPatches(fontBytes []byte, patches [][]byte) ([]byte, error) {
	return (glyfpatch.Applier{}).Patch(fontBytes, patches)
}
