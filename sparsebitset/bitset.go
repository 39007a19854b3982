// Package sparsebitset encodes and decodes sets of small non-negative
// integers as a breadth-first bit-tree byte string with a fixed branching
// factor of 8.
//
// Each emitted byte describes one tree node: bit k of the byte is set iff
// the node's k'th child subtree (covering a contiguous range of 8^(level-1)
// integers) contains at least one member of the set. At the bottom level
// (level 1) a node's children are individual integers, so a set bit there
// means the integer itself is a member. Nodes are emitted in breadth-first
// order and only for subtrees known (from the parent bit) to be non-empty,
// so the encoding is proportional to the number of internal nodes actually
// touched, not to the range of values covered.
//
// The first byte of a non-empty encoding is a header holding the tree
// height (the number of levels above the individual integers) as a whole
// byte. A height of 7 covers the full 21-bit Unicode codepoint range
// (8^7 = 1<<21). The empty set encodes to the empty byte string.
package sparsebitset

import (
	"sort"

	"golang.org/x/exp/maps"

	"github.com/garretrieger/ift/ifterrors"
)

const branchingFactor = 8

// Set is a set of non-negative integers, represented the way this module's
// other packages represent gid/codepoint/segment sets.
type Set map[uint32]bool

// Values returns the members of s in ascending order.
func (s Set) Values() []uint32 {
	vals := maps.Keys(s)
	sort.Slice(vals, func(i, j int) bool { return vals[i] < vals[j] })
	return vals
}

// Add inserts v into s.
func (s Set) Add(v uint32) {
	s[v] = true
}

type node struct {
	level uint
	base  uint32
}

func childSpan(level uint) uint32 {
	span := uint32(1)
	for i := uint(0); i < level; i++ {
		span *= branchingFactor
	}
	return span
}

func treeHeight(max uint32) uint {
	var h uint = 1
	for childSpan(h) <= max {
		h++
	}
	return h
}

// Encode serializes s deterministically. The empty set encodes to a
// zero-length byte string.
func Encode(s Set) []byte {
	if len(s) == 0 {
		return nil
	}

	values := s.Values()
	max := values[len(values)-1]
	height := treeHeight(max)

	out := []byte{byte(height)}
	queue := []node{{level: height, base: 0}}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		childRange := childSpan(n.level - 1)
		var b byte
		var toEnqueue []node
		for k := uint32(0); k < branchingFactor; k++ {
			lo := n.base + k*childRange
			hi := lo + childRange
			if !rangeHasMember(values, lo, hi) {
				continue
			}
			b |= 1 << k
			if n.level > 1 {
				toEnqueue = append(toEnqueue, node{level: n.level - 1, base: lo})
			}
		}
		out = append(out, b)
		queue = append(queue, toEnqueue...)
	}
	return out
}

// rangeHasMember reports whether any of the (ascending, deduplicated)
// values falls in [lo, hi). values is small enough in practice (codepoint
// or gid counts per patch-map entry) that a linear scan is fine; we binary
// search the lower bound to keep larger sets cheap too.
func rangeHasMember(values []uint32, lo, hi uint32) bool {
	i := sort.Search(len(values), func(i int) bool { return values[i] >= lo })
	return i < len(values) && values[i] < hi
}

// Decode parses a sparse bit set produced by Encode (or any equivalent
// valid encoding). It returns the decoded set and the number of bytes of
// data that were consumed, so callers such as the patch-map format 2 codec
// can resume reading immediately afterward.
func Decode(data []byte) (Set, int, error) {
	if len(data) == 0 {
		return Set{}, 0, nil
	}

	height := uint(data[0])
	if height == 0 {
		return nil, 0, ifterrors.New(ifterrors.InvalidFormat, "sparse bit set: height must be >= 1")
	}
	pos := 1

	result := Set{}
	queue := []node{{level: height, base: 0}}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		if pos >= len(data) {
			return nil, 0, ifterrors.New(ifterrors.NotEnoughInput, "sparse bit set: truncated node stream")
		}
		b := data[pos]
		pos++

		childRange := childSpan(n.level - 1)
		for k := uint32(0); k < branchingFactor; k++ {
			if b&(1<<k) == 0 {
				continue
			}
			lo := n.base + k*childRange
			if n.level == 1 {
				result.Add(lo)
				continue
			}
			queue = append(queue, node{level: n.level - 1, base: lo})
		}
	}
	return result, pos, nil
}
