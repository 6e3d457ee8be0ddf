package tokenizer

import (
	"context"
	"log/slog"
	"sort"
	"sync"
)

// Rank represents the priority/rank of a token pair in BPE encoding.
type Rank = uint32

// MergeStrategy selects the BPE merge-loop implementation. Both strategies
// are required to produce identical output for identical input (§8 property
// 7); the choice is a performance knob only.
type MergeStrategy int

const (
	// MergeScan is the O(n²) leftmost-tie-break pair scan (§4.3 primary algorithm).
	MergeScan MergeStrategy = iota
	// MergeHeap is the O(n log n) heap + doubly-linked-list alternative (§4.3 "MAY").
	MergeHeap
)

type coreBPE struct {
	enc           map[string]Rank // key: raw bytes as string
	dec           tokenStore
	specialEnc    map[string]Rank
	specialDec    map[Rank][]byte
	specialSorted []string // specialEnc keys, ascending by byte value, for parity matching
	seg           Segmenter
	matching      SpecialTokenMatching
	mergeStrategy MergeStrategy
	partsPool     sync.Pool
	tokenPool     sync.Pool
}

// SpecialTokenMatching selects the special-token scanning discipline (§4.2).
type SpecialTokenMatching int

const (
	// MatchParity sorts specials by UTF-8 byte value and takes the first hit
	// at a given position, matching the reference implementation's
	// unspecified-but-documented tiebreak.
	MatchParity SpecialTokenMatching = iota
	// MatchLongest always prefers the longest literal starting at a position.
	MatchLongest
)

func newCoreBPE(encoderPairs [][2]any, specials map[string]Rank, seg Segmenter, matching SpecialTokenMatching, strategy MergeStrategy) (*coreBPE, error) {
	enc := make(map[string]Rank, len(encoderPairs))
	for _, p := range encoderPairs {
		b, _ := p[0].([]byte)
		r, _ := p[1].(Rank)
		enc[string(b)] = r
	}
	dec, err := newTokenStore(encoderPairs)
	if err != nil {
		return nil, err
	}
	specialEnc := make(map[string]Rank, len(specials))
	specialDec := make(map[Rank][]byte, len(specials))
	sorted := make([]string, 0, len(specials))
	for k, v := range specials {
		specialEnc[k] = v
		specialDec[v] = []byte(k)
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)
	return &coreBPE{
		enc:           enc,
		dec:           dec,
		specialEnc:    specialEnc,
		specialDec:    specialDec,
		specialSorted: sorted,
		seg:           seg,
		matching:      matching,
		mergeStrategy: strategy,
		partsPool:     sync.Pool{New: func() any { b := make([]part, 0, 64); return &b }},
		tokenPool:     sync.Pool{New: func() any { b := make([]uint32, 0, 32); return &b }},
	}, nil
}

func (b *coreBPE) DecodeBytes(tokens []uint32) ([]byte, error) {
	var out []byte
	if err := b.DecodeBytesInto(&out, tokens); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *coreBPE) DecodeUTF8(tokens []uint32) (string, error) {
	bs, err := b.DecodeBytes(tokens)
	if err != nil {
		return "", err
	}
	return string(bs), nil
}

// DecodeBytesInto appends the decoded bytes for the provided tokens
// into dst, avoiding intermediate slice allocations.
func (b *coreBPE) DecodeBytesInto(dst *[]byte, tokens []uint32) error {
	buf := *dst
	for _, t := range tokens {
		if b.dec.AppendInto(&buf, t) {
			continue
		}
		if v, ok := b.specialDec[t]; ok {
			buf = append(buf, v...)
			continue
		}
		return &UnknownId{Value: t}
	}
	*dst = buf
	return nil
}

func (b *coreBPE) IsSpecialToken(id uint32) bool { _, ok := b.specialDec[id]; return ok }

func (b *coreBPE) EncodeWithSpecialTokens(text string) ([]uint32, error) {
	allowed := make(map[string]struct{}, len(b.specialEnc))
	for s := range b.specialEnc {
		allowed[s] = struct{}{}
	}
	return b.Encode(text, allowed)
}

func (b *coreBPE) EncodeOrdinary(text string) ([]uint32, error) {
	return b.Encode(text, nil)
}

// Encode scans text for special-token occurrences (per b.matching when
// allowedSpecial is non-empty), pre-tokenizes the ordinary runs between them
// via b.seg, and BPE-merges each piece. allowedSpecial == nil is equivalent
// to §4.2's allow=false: the whole input is treated as one ordinary segment.
func (b *coreBPE) Encode(text string, allowedSpecial map[string]struct{}) ([]uint32, error) {
	var out []uint32
	hasSpecials := len(allowedSpecial) > 0
	start := 0
	i := 0
	flushOrdinary := func(end int) error {
		if end <= start {
			return nil
		}
		pieces, err := b.seg.Split(text[start:end])
		if err != nil {
			return err
		}
		for _, piece := range pieces {
			if id, ok := b.enc[piece]; ok {
				out = append(out, id)
				continue
			}
			toks, release, err := b.bytePairEncode(piece)
			if err != nil {
				release()
				return err
			}
			out = append(out, toks...)
			release()
		}
		return nil
	}
	for i < len(text) {
		if !hasSpecials {
			break
		}
		tok, n := b.matchSpecialAt(text, i, allowedSpecial)
		if n == 0 {
			i++
			continue
		}
		if err := flushOrdinary(i); err != nil {
			return nil, err
		}
		out = append(out, tok)
		i += n
		start = i
	}
	if err := flushOrdinary(len(text)); err != nil {
		return nil, err
	}
	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		slog.Debug("encoded text", "textLen", len(text), "ids", tokenIDs(out))
	}
	return out, nil
}

// matchSpecialAt dispatches to the configured matching discipline.
func (b *coreBPE) matchSpecialAt(s string, i int, allowed map[string]struct{}) (uint32, int) {
	if b.matching == MatchLongest {
		return b.matchSpecialAtLongest(s, i, allowed)
	}
	return b.matchSpecialAtSorted(s, i, allowed)
}

// matchSpecialAtLongest implements §4.2's "longest" discipline: among all
// specials in allowed that occur at position i, the longest wins.
func (b *coreBPE) matchSpecialAtLongest(s string, i int, allowed map[string]struct{}) (uint32, int) {
	maxLen := 0
	var id uint32
	for lit, tok := range b.specialEnc {
		if _, ok := allowed[lit]; !ok {
			continue
		}
		if len(lit) > len(s)-i {
			continue
		}
		if len(lit) > maxLen && s[i:i+len(lit)] == lit {
			maxLen = len(lit)
			id = tok
		}
	}
	if maxLen == 0 {
		return 0, 0
	}
	return id, maxLen
}

// matchSpecialAtSorted implements §4.2's "parity" discipline: specials are
// probed in ascending UTF-8-byte-sorted order (precomputed at construction)
// and the first one found at i wins, per §4.2's documented valid tiebreak.
// Grounded on richardpark-msft-waza/internal/tokens/bpe/tokenizer.go's
// sort-specials-then-match idiom, reinterpreted as a direct probe rather
// than a compiled alternation since the tiebreak is about iteration order.
func (b *coreBPE) matchSpecialAtSorted(s string, i int, allowed map[string]struct{}) (uint32, int) {
	for _, lit := range b.specialSorted {
		if allowed != nil {
			if _, ok := allowed[lit]; !ok {
				continue
			}
		}
		if len(lit) > len(s)-i {
			continue
		}
		if s[i:i+len(lit)] == lit {
			return b.specialEnc[lit], len(lit)
		}
	}
	return 0, 0
}

// bytePairEncode merges a single pre-tokenized piece's bytes into minimum-
// rank token ids (§4.3). Callers have already checked that piece itself is
// not a whole rank-table entry (the §4.3 "single-token fast path"); it
// dispatches to the configured merge strategy. Returns UnencodableBytes if
// the rank table does not cover a span the merge loop settled on — this can
// only happen for a caller-supplied table missing one of the 256 single-byte
// entries, never for a complete Kimi rank table (§7).
func (b *coreBPE) bytePairEncode(piece string) ([]uint32, func(), error) {
	if len(piece) == 1 {
		id, ok := b.enc[piece]
		buf, release := b.acquireTokens(1)
		if !ok {
			return buf[:0], release, &UnencodableBytes{Offset: 0, Bytes: []byte(piece)}
		}
		buf = append(buf[:0], id)
		return buf, release, nil
	}
	var parts []part
	var releaseParts func()
	if b.mergeStrategy == MergeHeap {
		parts, releaseParts = b.bytePairMergeHeap(piece)
	} else {
		parts, releaseParts = b.bytePairMerge(piece)
	}
	toks, releaseTokens := b.acquireTokens(len(parts))
	toks = toks[:0]
	release := func() {
		releaseParts()
		releaseTokens()
	}
	for w := 0; w+1 < len(parts); w++ {
		span := piece[parts[w].start:parts[w+1].start]
		id, ok := b.enc[span]
		if !ok {
			return toks, release, &UnencodableBytes{Offset: parts[w].start, Bytes: []byte(span)}
		}
		toks = append(toks, id)
	}
	return toks, release, nil
}

type part struct {
	start int
	rank  uint32
}

func (b *coreBPE) getRank(piece string, parts []part, i int) uint32 {
	if i+3 < len(parts) {
		if r, ok := b.enc[piece[parts[i].start:parts[i+3].start]]; ok {
			return r
		}
	}
	return ^uint32(0)
}

// bytePairMerge is the classical O(n²) scan from §4.3: repeatedly find the
// minimum-rank adjacent pair (leftmost wins on ties, since the scan below
// only updates minRank on strict '<'), merge it, and recompute the ranks of
// its two neighbors.
func (b *coreBPE) bytePairMerge(piece string) ([]part, func()) {
	parts, release := b.acquireParts(len(piece) + 2)
	parts = parts[:0]
	minRank := struct {
		rank uint32
		idx  int
	}{rank: ^uint32(0), idx: -1}
	for i := 0; i < len(piece)-1; i++ {
		r, ok := b.enc[piece[i:i+2]]
		if !ok {
			r = ^uint32(0)
		}
		if r < minRank.rank {
			minRank = struct {
				rank uint32
				idx  int
			}{r, i}
		}
		parts = append(parts, part{start: i, rank: r})
	}
	parts = append(parts, part{start: len(piece) - 1, rank: ^uint32(0)})
	parts = append(parts, part{start: len(piece), rank: ^uint32(0)})

	for minRank.rank != ^uint32(0) {
		i := minRank.idx
		if i > 0 {
			parts[i-1].rank = b.getRank(piece, parts, i-1)
		}
		parts[i].rank = b.getRank(piece, parts, i)
		parts = append(parts[:i+1], parts[i+2:]...)
		minRank = struct {
			rank uint32
			idx  int
		}{rank: ^uint32(0), idx: -1}
		for j := 0; j < len(parts)-1; j++ {
			if parts[j].rank < minRank.rank {
				minRank = struct {
					rank uint32
					idx  int
				}{parts[j].rank, j}
			}
		}
	}
	return parts, release
}

func (b *coreBPE) acquireParts(capHint int) ([]part, func()) {
	var p *[]part
	if v := b.partsPool.Get(); v != nil {
		p = v.(*[]part)
		if cap(*p) < capHint {
			buf := make([]part, 0, capHint)
			p = &buf
		} else {
			*p = (*p)[:0]
		}
	} else {
		buf := make([]part, 0, capHint)
		p = &buf
	}
	release := func() {
		if cap(*p) > 1<<12 {
			return
		}
		*p = (*p)[:0]
		b.partsPool.Put(p)
	}
	return *p, release
}

func (b *coreBPE) acquireTokens(capHint int) ([]uint32, func()) {
	var p *[]uint32
	if v := b.tokenPool.Get(); v != nil {
		p = v.(*[]uint32)
		if cap(*p) < capHint {
			buf := make([]uint32, 0, capHint)
			p = &buf
		} else {
			*p = (*p)[:0]
		}
	} else {
		buf := make([]uint32, 0, capHint)
		p = &buf
	}
	release := func() {
		if cap(*p) > 1<<12 {
			return
		}
		*p = (*p)[:0]
		b.tokenPool.Put(p)
	}
	return *p, release
}
