package patchmap

// Entry is a single patch-map mapping: a coverage predicate, the patch it
// selects, the encoding that patch is delivered in, and whether it belongs
// to the extension pass (see Table.Entries and format2.go's is_ext split).
//
// Invariant: PatchIndex is unique across the non-ignored entries that a
// single Table serializes.
type Entry struct {
	Coverage    Coverage
	PatchIndex  uint32
	Encoding    Encoding
	IsExtension bool
}

// Table is the in-memory representation of an IFT patch-map: an ordered
// list of entries, a URI template used to locate patch files, and a 4x
// uint32 identifier that must match the id[4] carried by any glyph-keyed
// patch applied to this font (see glyfpatch.Applier.Patch).
//
// Table does not store a "default encoding" field: the format 2 codec
// derives it from Entries at serialize time (the most common Encoding
// value, ties broken toward the lower numeric value), so two Tables with
// the same Entries always serialize identically regardless of how they
// were constructed. See SPEC_FULL.md §9 ("Global format constants").
type Table struct {
	ID          [4]uint32
	URITemplate string
	Entries     []Entry
}

// Clone returns a deep copy of t.
func (t Table) Clone() Table {
	out := Table{ID: t.ID, URITemplate: t.URITemplate}
	out.Entries = make([]Entry, len(t.Entries))
	for i, e := range t.Entries {
		out.Entries[i] = e.clone()
	}
	return out
}

func (e Entry) clone() Entry {
	out := e
	out.Coverage.Codepoints = make(CodepointSet, len(e.Coverage.Codepoints))
	for cp := range e.Coverage.Codepoints {
		out.Coverage.Codepoints[cp] = true
	}
	out.Coverage.Features = make(FeatureSet, len(e.Coverage.Features))
	for f := range e.Coverage.Features {
		out.Coverage.Features[f] = true
	}
	return out
}

// AddEntry appends a new mapping to t.
func (t *Table) AddEntry(coverage Coverage, patchIndex uint32, encoding Encoding) {
	t.Entries = append(t.Entries, Entry{
		Coverage:   coverage,
		PatchIndex: patchIndex,
		Encoding:   encoding,
	})
}

// RemovePatches returns a new Table with every entry whose PatchIndex is in
// patchIndices removed. Per SPEC_FULL.md §9 ("Mutation-during-iteration in
// RemovePatches"), this rebuilds rather than mutates the entry slice in
// place; in-place filtering buys nothing at the entry counts a patch-map
// table holds in practice.
func (t Table) RemovePatches(patchIndices map[uint32]bool) Table {
	out := Table{ID: t.ID, URITemplate: t.URITemplate}
	for _, e := range t.Entries {
		if patchIndices[e.PatchIndex] {
			continue
		}
		out.Entries = append(out.Entries, e.clone())
	}
	return out
}

// Match returns the entries whose coverage matches def, in table order.
func (t Table) Match(def SubsetDefinition) []Entry {
	var out []Entry
	for _, e := range t.Entries {
		if e.Coverage.Matches(def) {
			out = append(out, e)
		}
	}
	return out
}
