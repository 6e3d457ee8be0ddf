package tokenizer

import (
	"cmp"

	heap "github.com/emirpasic/gods/v2/trees/binaryheap"
)

// node is one surviving span in the doubly-linked byte-range list used by
// the heap merge strategy.
type node struct {
	p, n   int
	start  int
	end    int
	active bool
}

// heapPair is a candidate merge, carrying a snapshot of the byte range each
// side covered when the pair was queued, so a pop can detect staleness
// (§4.3's merge invalidates candidates touching the merged span).
type heapPair struct {
	a, b         int
	rank         uint32
	aStart, aEnd int
	bStart, bEnd int
}

// bytePairMergeHeap is the O(n log n) alternative merge loop (§4.3 "MAY"),
// grounded on ollama-ollama/model/bytepairencoding.go's pairwise/merges/
// binaryheap loop, generalized from that file's per-rune merge nodes to
// per-byte spans since our rank table is keyed by raw bytes (§3), not
// GPT-2-remapped runes. Equal-rank candidates (the same byte pair occurring
// at several positions) are ordered by the left span's start offset, so the
// leftmost one is merged first, as in bytePairMerge (MergeScan).
func (b *coreBPE) bytePairMergeHeap(piece string) ([]part, func()) {
	n := len(piece)
	nodes := make([]node, n)
	for i := 0; i < n; i++ {
		nodes[i] = node{p: i - 1, n: i + 1, start: i, end: i + 1, active: true}
	}

	pairwise := func(a, bIdx int) *heapPair {
		if a < 0 || bIdx < 0 || bIdx >= n || a >= n {
			return nil
		}
		left, right := nodes[a], nodes[bIdx]
		rank, ok := b.enc[piece[left.start:right.end]]
		if !ok {
			return nil
		}
		return &heapPair{a: a, b: bIdx, rank: rank, aStart: left.start, aEnd: left.end, bStart: right.start, bEnd: right.end}
	}

	pairs := heap.NewWith(func(x, y *heapPair) int {
		if c := cmp.Compare(x.rank, y.rank); c != 0 {
			return c
		}
		return cmp.Compare(x.aStart, y.aStart)
	})
	for i := 0; i < n-1; i++ {
		if p := pairwise(i, i+1); p != nil {
			pairs.Push(p)
		}
	}

	for !pairs.Empty() {
		p, _ := pairs.Pop()
		left, right := nodes[p.a], nodes[p.b]
		if !left.active || !right.active ||
			left.start != p.aStart || left.end != p.aEnd ||
			right.start != p.bStart || right.end != p.bEnd {
			continue
		}

		nodes[p.a].end = right.end
		nodes[p.b].active = false
		nodes[p.a].n = right.n
		if right.n < n {
			nodes[right.n].p = p.a
		}

		if np := pairwise(nodes[p.a].p, p.a); np != nil {
			pairs.Push(np)
		}
		if np := pairwise(p.a, nodes[p.a].n); np != nil {
			pairs.Push(np)
		}
	}

	parts, release := b.acquireParts(n + 1)
	parts = parts[:0]
	for i := 0; i < n; i++ {
		if nodes[i].active {
			parts = append(parts, part{start: nodes[i].start})
		}
	}
	parts = append(parts, part{start: n})
	return parts, release
}
