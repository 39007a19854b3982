package segmenter

import (
	"fmt"
	"sort"

	"github.com/garretrieger/ift/ifterrors"
	"github.com/garretrieger/ift/patchmap"
	"seehuhn.de/go/sfnt/glyph"
)

// Closure is the shaping-closure collaborator (SPEC_FULL.md §6.4): given a
// codepoint set, it returns the smallest glyph id set needed to render
// those codepoints under the face's layout rules. Implementations must be
// deterministic and side-effect free; the planner calls it at most once per
// distinct codepoint set it needs.
type Closure func(codepoints map[uint32]bool) (map[glyph.ID]bool, error)

// GlyphSegmentation is the planner's output: a set of patches (each a gid
// set), the activation condition that selects each one, the glyphs already
// present in the base font, and any glyphs the planner could not place.
type GlyphSegmentation struct {
	Patches        map[uint32]map[glyph.ID]bool
	Conditions     []ActivationCondition
	InitFontGlyphs map[glyph.ID]bool
	UnmappedGlyphs map[glyph.ID]bool
}

// Config bounds the planner's patch sizes. Size is estimated as
// len(gids) * BytesPerGlyph, since the planner runs before any patch is
// actually encoded; callers with a more accurate per-glyph byte estimate
// (e.g. from a prior encoding pass) should set it here.
type Config struct {
	MinPatchBytes int
	MaxPatchBytes int
	BytesPerGlyph int
	// UnmappableThreshold is the maximum number of UnmappedGlyphs the
	// planner tolerates before failing with ifterrors.Unmappable. Zero
	// means no limit.
	UnmappableThreshold int
}

func (c Config) bytesPerGlyph() int {
	if c.BytesPerGlyph <= 0 {
		return 64
	}
	return c.BytesPerGlyph
}

func unionCodepoints(sets ...map[uint32]bool) map[uint32]bool {
	out := map[uint32]bool{}
	for _, s := range sets {
		for cp := range s {
			out[cp] = true
		}
	}
	return out
}

func unionGids(sets ...map[glyph.ID]bool) map[glyph.ID]bool {
	out := map[glyph.ID]bool{}
	for _, s := range sets {
		for g := range s {
			out[g] = true
		}
	}
	return out
}

func diffGids(a map[glyph.ID]bool, bs ...map[glyph.ID]bool) map[glyph.ID]bool {
	out := map[glyph.ID]bool{}
	for g := range a {
		excluded := false
		for _, b := range bs {
			if b[g] {
				excluded = true
				break
			}
		}
		if !excluded {
			out[g] = true
		}
	}
	return out
}

type pairKey struct{ i, j int }

// CodepointToGlyphSegments runs the segmentation algorithm of
// SPEC_FULL.md §4.4: it closes the initial segment and each codepoint
// segment (solo and pairwise), groups the resulting glyphs by the minimal
// set of segments that produce them, and emits one patch plus one
// ActivationCondition per group.
func CodepointToGlyphSegments(closure Closure, initialSegment map[uint32]bool, segments []map[uint32]bool, cfg Config) (*GlyphSegmentation, error) {
	inner := closure
	memo := map[string]map[glyph.ID]bool{}
	closure = func(cps map[uint32]bool) (map[glyph.ID]bool, error) {
		key := fmt.Sprint(patchmap.CodepointSet(cps).Sorted())
		if g, ok := memo[key]; ok {
			return g, nil
		}
		g, err := inner(cps)
		if err == nil {
			memo[key] = g
		}
		return g, err
	}

	g0, err := closure(initialSegment)
	if err != nil {
		return nil, ifterrors.Wrap(ifterrors.ClosureFailed, "initial segment", err)
	}

	n := len(segments)
	exclusive := make([]map[glyph.ID]bool, n+1) // 1-indexed
	for i := 1; i <= n; i++ {
		full, err := closure(unionCodepoints(initialSegment, segments[i-1]))
		if err != nil {
			return nil, ifterrors.Wrap(ifterrors.ClosureFailed, "segment closure", err)
		}
		exclusive[i] = diffGids(full, g0)
	}

	interaction := make(map[pairKey]map[glyph.ID]bool)
	for i := 1; i <= n; i++ {
		for j := i + 1; j <= n; j++ {
			full, err := closure(unionCodepoints(initialSegment, segments[i-1], segments[j-1]))
			if err != nil {
				return nil, ifterrors.Wrap(ifterrors.ClosureFailed, "pairwise segment closure", err)
			}
			interaction[pairKey{i, j}] = diffGids(full, unionGids(g0, exclusive[i], exclusive[j]))
		}
	}

	// source[g] is the set of segments whose solo exclusive set contains g.
	source := make(map[glyph.ID]map[int]bool)
	for i := 1; i <= n; i++ {
		for g := range exclusive[i] {
			if source[g] == nil {
				source[g] = map[int]bool{}
			}
			source[g][i] = true
		}
	}

	// pairSource[g] is the set of interaction pairs that produce g.
	pairSource := make(map[glyph.ID][]pairKey)
	for key, gids := range interaction {
		for g := range gids {
			pairSource[g] = append(pairSource[g], key)
		}
	}

	type group struct {
		kind      Kind
		members   []int // segment indices (And: all required; Or/Exclusive: any one)
		gids      map[glyph.ID]bool
	}
	groupIndex := map[string]int{}
	var groups []*group
	unmapped := map[glyph.ID]bool{}

	keyFor := func(kind Kind, sortedMembers []int) string {
		return fmt.Sprintf("%d:%v", kind, sortedMembers)
	}

	addToGroup := func(kind Kind, members []int, g glyph.ID) {
		sorted := append([]int(nil), members...)
		sort.Ints(sorted)
		k := keyFor(kind, sorted)
		idx, ok := groupIndex[k]
		if !ok {
			groups = append(groups, &group{kind: kind, members: sorted, gids: map[glyph.ID]bool{}})
			idx = len(groups) - 1
			groupIndex[k] = idx
		}
		groups[idx].gids[g] = true
	}

	allGlyphs := map[glyph.ID]bool{}
	for i := 1; i <= n; i++ {
		for g := range exclusive[i] {
			allGlyphs[g] = true
		}
	}
	for _, gids := range interaction {
		for g := range gids {
			allGlyphs[g] = true
		}
	}

	for g := range allGlyphs {
		switch srcs := source[g]; {
		case len(srcs) == 1:
			var only int
			for s := range srcs {
				only = s
			}
			addToGroup(Exclusive, []int{only}, g)
		case len(srcs) > 1:
			addToGroup(Or, sortedInts(srcs), g)
		default:
			pairs := pairSource[g]
			if len(pairs) == 1 {
				p := pairs[0]
				addToGroup(And, []int{p.i, p.j}, g)
			} else {
				unmapped[g] = true
			}
		}
	}

	if cfg.UnmappableThreshold > 0 && len(unmapped) > cfg.UnmappableThreshold {
		return nil, ifterrors.New(ifterrors.Unmappable, "too many glyphs with an undetermined minimal segment set")
	}

	sort.Slice(groups, func(i, j int) bool {
		return compareClause(groups[i].members, groups[j].members) < 0
	})

	seg := &GlyphSegmentation{
		Patches:        map[uint32]map[glyph.ID]bool{},
		InitFontGlyphs: g0,
		UnmappedGlyphs: unmapped,
	}

	var patchID uint32 = 1
	for _, grp := range groups {
		cond := ActivationCondition{Activated: patchID}
		switch grp.kind {
		case Exclusive:
			cond.Kind = Exclusive
			cond.Conjuncts = [][]int{{grp.members[0]}}
		case Or:
			cond.Kind = Or
			cond.Conjuncts = [][]int{grp.members}
		case And:
			cond.Kind = And
			for _, m := range grp.members {
				cond.Conjuncts = append(cond.Conjuncts, []int{m})
			}
		}
		seg.Patches[patchID] = grp.gids
		seg.Conditions = append(seg.Conditions, cond)
		patchID++
	}

	applySizeBounds(seg, cfg, &patchID)
	addFallback(seg, n, &patchID)

	return seg, nil
}

// applySizeBounds merges undersized patches into a neighbor and splits
// oversized ones, per SPEC_FULL.md §4.4 step 6.
func applySizeBounds(seg *GlyphSegmentation, cfg Config, nextID *uint32) {
	bpg := cfg.bytesPerGlyph()

	if cfg.MaxPatchBytes > 0 {
		maxGids := cfg.MaxPatchBytes / bpg
		if maxGids > 0 {
			var conditions []ActivationCondition
			for _, cond := range seg.Conditions {
				gids := seg.Patches[cond.Activated]
				if len(gids) <= maxGids {
					conditions = append(conditions, cond)
					continue
				}
				sorted := sortedGids(gids)
				delete(seg.Patches, cond.Activated)
				for start := 0; start < len(sorted); start += maxGids {
					end := start + maxGids
					if end > len(sorted) {
						end = len(sorted)
					}
					chunk := map[glyph.ID]bool{}
					for _, g := range sorted[start:end] {
						chunk[g] = true
					}
					id := *nextID
					*nextID++
					seg.Patches[id] = chunk
					conditions = append(conditions, ActivationCondition{Kind: cond.Kind, Conjuncts: cond.Conjuncts, Activated: id})
				}
			}
			seg.Conditions = conditions
		}
	}

	if cfg.MinPatchBytes > 0 {
		minGids := cfg.MinPatchBytes / bpg
		var conditions []ActivationCondition
		var pendingMerge *ActivationCondition
		for i := range seg.Conditions {
			cond := seg.Conditions[i]
			gids := seg.Patches[cond.Activated]
			if len(gids) >= minGids || i == len(seg.Conditions)-1 {
				if pendingMerge != nil {
					merged := mergeConditions(*pendingMerge, cond, seg)
					conditions = append(conditions, merged)
					pendingMerge = nil
				} else {
					conditions = append(conditions, cond)
				}
				continue
			}
			if pendingMerge == nil {
				c := cond
				pendingMerge = &c
			} else {
				merged := mergeConditions(*pendingMerge, cond, seg)
				pendingMerge = &merged
			}
		}
		if pendingMerge != nil {
			conditions = append(conditions, *pendingMerge)
		}
		seg.Conditions = conditions
	}
}

// mergeConditions folds b's patch into a's, reusing a's condition shape
// when both conditions already share it and otherwise promoting to the
// disjunction of both, written in conjunctive form (an Or condition when
// that yields a single clause, a Composite condition otherwise), which is
// satisfied whenever either original condition is.
func mergeConditions(a, b ActivationCondition, seg *GlyphSegmentation) ActivationCondition {
	merged := unionGids(seg.Patches[a.Activated], seg.Patches[b.Activated])
	delete(seg.Patches, b.Activated)
	seg.Patches[a.Activated] = merged

	if a.Kind == b.Kind && compareConjuncts(a.Conjuncts, b.Conjuncts) == 0 {
		return a
	}

	var conjuncts [][]int // (∧ Ai) ∨ (∧ Bj) == ∧ (Ai ∨ Bj)
	for _, ca := range a.Conjuncts {
		for _, cb := range b.Conjuncts {
			members := map[int]bool{}
			for _, s := range append(append([]int(nil), ca...), cb...) {
				members[s] = true
			}
			conjuncts = append(conjuncts, sortedInts(members))
		}
	}
	kind := Composite
	if len(conjuncts) == 1 {
		kind = Or
	}
	return ActivationCondition{
		Kind:      kind,
		Conjuncts: conjuncts,
		Activated: a.Activated,
	}
}

// addFallback emits a patch covering UnmappedGlyphs, activated by any
// segment not referenced by an existing clause (or by any segment at all
// when every segment is already referenced), per step 7. Nothing is emitted
// when UnmappedGlyphs is empty.
func addFallback(seg *GlyphSegmentation, n int, nextID *uint32) {
	if len(seg.UnmappedGlyphs) == 0 {
		return
	}

	referenced := map[int]bool{}
	for _, c := range seg.Conditions {
		for _, clause := range c.Conjuncts {
			for _, s := range clause {
				referenced[s] = true
			}
		}
	}

	var unreferenced []int
	for i := 1; i <= n; i++ {
		if !referenced[i] {
			unreferenced = append(unreferenced, i)
		}
	}
	if len(unreferenced) == 0 {
		unreferenced = segRange(n)
	}

	id := *nextID
	*nextID++
	seg.Patches[id] = seg.UnmappedGlyphs
	seg.Conditions = append(seg.Conditions, ActivationCondition{
		Kind:      Fallback,
		Conjuncts: [][]int{unreferenced},
		Activated: id,
	})
}

func segRange(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func sortedGids(s map[glyph.ID]bool) []glyph.ID {
	out := make([]glyph.ID, 0, len(s))
	for g := range s {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ActivationConditionsToConditionEntries converts seg's activation
// conditions into patch-map entries, one per condition. Per SPEC_FULL.md
// §4.4 ("Conversion to wire entries"), this core emits the copy mechanism's
// auxiliary entries as a single redundant full entry instead: the entry's
// coverage is the union of the codepoints of every segment the condition
// references, at the cost of over-eager activation for And/Composite
// conditions that the unimplemented copy-index mechanism would otherwise
// have encoded precisely.
func ActivationConditionsToConditionEntries(seg *GlyphSegmentation, segments []map[uint32]bool) []patchmap.Entry {
	var entries []patchmap.Entry
	for _, cond := range seg.Conditions {
		cps := patchmap.CodepointSet{}
		for _, clause := range cond.Conjuncts {
			for _, s := range clause {
				if s < 1 || s > len(segments) {
					continue
				}
				for cp := range segments[s-1] {
					cps[cp] = true
				}
			}
		}
		entries = append(entries, patchmap.Entry{
			Coverage:   patchmap.Coverage{Codepoints: cps, Features: patchmap.FeatureSet{}},
			PatchIndex: cond.Activated,
			Encoding:   patchmap.GlyphKeyedBrotli,
		})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].PatchIndex < entries[j].PatchIndex })
	return entries
}
