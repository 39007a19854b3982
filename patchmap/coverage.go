// Package patchmap implements the in-memory model of an IFT patch-map
// table (component C) and its format 2 on-disk codec (component D).
package patchmap

import (
	"sort"

	"golang.org/x/exp/maps"
)

// Encoding identifies which patch format a patch-map entry's patch is
// delivered in. The three values are a closed, stable wire enumeration;
// there is no open "default" value serialized on disk — a decoded Entry
// always carries one of these three concrete values (see format2.go).
type Encoding uint8

const (
	// GlyphKeyedBrotli patches carry per-glyph substitutions for outline
	// tables, brotli-compressed (component E consumes these).
	GlyphKeyedBrotli Encoding = 0
	// TableKeyedSharedBrotli patches carry whole replacement tables,
	// brotli-compressed against a shared dictionary.
	TableKeyedSharedBrotli Encoding = 1
	// PerTableSharedBrotli patches carry whole replacement tables, each
	// brotli-compressed against its own per-table shared dictionary.
	PerTableSharedBrotli Encoding = 2
)

// CodepointSet is a set of Unicode codepoints.
type CodepointSet map[uint32]bool

// Sorted returns the codepoints in s in ascending order.
func (s CodepointSet) Sorted() []uint32 {
	vals := maps.Keys(s)
	sort.Slice(vals, func(i, j int) bool { return vals[i] < vals[j] })
	return vals
}

// FeatureSet is a set of 4-byte OpenType feature tags, each treated as a
// big-endian uint32.
type FeatureSet map[uint32]bool

// Sorted returns the feature tags in s in ascending order.
func (s FeatureSet) Sorted() []uint32 {
	vals := maps.Keys(s)
	sort.Slice(vals, func(i, j int) bool { return vals[i] < vals[j] })
	return vals
}

// SubsetDefinition is a client's current rendering need: the codepoints and
// layout features it has encountered so far.
type SubsetDefinition struct {
	Codepoints CodepointSet
	Features   FeatureSet
}

// Coverage is the predicate carried by a patch-map Entry that determines
// whether the entry applies to a given SubsetDefinition. The design-space
// region is reserved by the wire format (format2.go bit 1) but is always
// empty in this core (see SPEC_FULL.md §9, open question 1).
type Coverage struct {
	Codepoints CodepointSet
	Features   FeatureSet
}

// Matches reports whether c applies to def:
//
//	(c.Codepoints ∩ def.Codepoints ≠ ∅ or c.Codepoints is empty) AND
//	(c.Features ⊆ def.Features or c.Features is empty)
func (c Coverage) Matches(def SubsetDefinition) bool {
	if len(c.Codepoints) > 0 {
		hit := false
		for cp := range c.Codepoints {
			if def.Codepoints[cp] {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}

	if len(c.Features) > 0 {
		for f := range c.Features {
			if !def.Features[f] {
				return false
			}
		}
	}

	return true
}

// SmallestCodepoint returns the minimum codepoint in c.Codepoints, used as
// the sparse-bit-set bias when encoding. It returns 0 if c.Codepoints is
// empty.
func (c Coverage) SmallestCodepoint() uint32 {
	min := uint32(0)
	first := true
	for cp := range c.Codepoints {
		if first || cp < min {
			min = cp
			first = false
		}
	}
	return min
}
