package tokenizer

import (
	"context"
	"log/slog"
)

// Options configures the construction of an Encoding (§4.5, §6).
type Options struct {
	// PatternSource overrides the pre-tokenization pattern. Empty selects
	// the canonical, untranslated Kimi pattern (KimiPatternSource); either
	// way, TranslatePattern runs over the chosen source before it is
	// compiled, so callers may pass either the raw intersection-class form
	// or an already-translated pattern.
	PatternSource string
	// Ranks is the rank table: raw byte-string -> unique non-negative rank.
	Ranks map[string]Rank
	// Specials is the special-token table: literal -> unique id, disjoint
	// from the values of Ranks.
	Specials map[string]Rank
	// SpecialTokenMatching selects parity (default) or longest matching.
	SpecialTokenMatching SpecialTokenMatching
	// MergeStrategy selects the BPE merge-loop implementation. Defaults to
	// MergeScan.
	MergeStrategy MergeStrategy
}

// Encoding is the immutable, concurrency-safe façade over the pre-tokenizer,
// special-token scanner, and BPE engine (§4.5). Once constructed it may be
// shared across goroutines; encode/decode hold no mutable state on the
// receiver (§5).
type Encoding struct {
	core *coreBPE
}

// New constructs an Encoding from opts, validating pattern compilation and
// rank/special disjointness (§4.5).
func New(opts Options) (*Encoding, error) {
	patternSrc := opts.PatternSource
	if patternSrc == "" {
		patternSrc = KimiPatternSource
	}
	if patternSrc == "" {
		return nil, &InvalidPattern{Source: patternSrc, Message: "pattern source must not be empty"}
	}

	for id := range opts.Ranks {
		if r, ok := opts.Specials[id]; ok {
			return nil, &OverlappingIds{ID: r}
		}
	}
	rankValues := make(map[uint32]struct{}, len(opts.Ranks))
	for _, r := range opts.Ranks {
		if _, dup := rankValues[r]; dup {
			return nil, &OverlappingIds{ID: r}
		}
		rankValues[r] = struct{}{}
	}
	for _, r := range opts.Specials {
		if _, dup := rankValues[r]; dup {
			return nil, &OverlappingIds{ID: r}
		}
	}

	seg, err := NewSegmenter(TranslatePattern(patternSrc))
	if err != nil {
		return nil, err
	}

	pairs := make([][2]any, 0, len(opts.Ranks))
	for tok, rank := range opts.Ranks {
		pairs = append(pairs, [2]any{[]byte(tok), rank})
	}

	core, err := newCoreBPE(pairs, opts.Specials, seg, opts.SpecialTokenMatching, opts.MergeStrategy)
	if err != nil {
		return nil, err
	}
	slog.Info("encoding constructed", "ranks", len(opts.Ranks), "specials", len(opts.Specials), "matching", opts.SpecialTokenMatching, "mergeStrategy", opts.MergeStrategy)
	return &Encoding{core: core}, nil
}

// Encode applies §4.2 (special-token scanning) then §4.1+§4.3 (pre-tokenize
// and BPE-merge each ordinary segment), concatenating in source order.
// allowSpecial mirrors the allow_special_tokens configuration option: when
// false, the entire input is treated as ordinary text and any special-token
// literals inside it are encoded as plain bytes.
func (e *Encoding) Encode(text string, allowSpecial bool) ([]uint32, error) {
	if !allowSpecial {
		return e.core.EncodeOrdinary(text)
	}
	return e.core.EncodeWithSpecialTokens(text)
}

// Decode concatenates the byte sequence for each id, resolved from the rank
// table's decoder or the special-token decoder (§4.5).
func (e *Encoding) Decode(ids []uint32) ([]byte, error) {
	return e.core.DecodeBytes(ids)
}

// DecodeString is Decode, returning the result as a string rather than []byte.
func (e *Encoding) DecodeString(ids []uint32) (string, error) {
	return e.core.DecodeUTF8(ids)
}

// IsSpecialToken reports whether id names a special token rather than an
// ordinary rank-table entry.
func (e *Encoding) IsSpecialToken(id uint32) bool {
	return e.core.IsSpecialToken(id)
}

// BatchResult pairs one EncodeBatch input with its encoded ids, or the error
// encountered encoding it.
type BatchResult struct {
	Text string
	IDs  []uint32
	Err  error
}

// EncodeBatch encodes each of texts independently, checking ctx between
// texts so a caller can cancel a large fan-out without waiting for every
// text to finish (§5). A single text's encode error is reported on its own
// BatchResult rather than aborting the batch; ctx cancellation aborts the
// remainder and is returned directly.
func (e *Encoding) EncodeBatch(ctx context.Context, texts []string, allowSpecial bool) ([]BatchResult, error) {
	results := make([]BatchResult, 0, len(texts))
	for _, text := range texts {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		ids, err := e.Encode(text, allowSpecial)
		results = append(results, BatchResult{Text: text, IDs: ids, Err: err})
	}
	return results, nil
}

// DecodeIDs validates that every element of ids is a non-negative integer
// representable as a token id (§4.5: InvalidId{value} otherwise) before
// decoding. Use this at a JSON/dynamic-language boundary where ids arrive
// as signed integers; callers that already hold []uint32 should call
// Decode directly.
func (e *Encoding) DecodeIDs(ids []int64) ([]byte, error) {
	toks := make([]uint32, len(ids))
	for i, v := range ids {
		if v < 0 || v > int64(^uint32(0)) {
			return nil, &InvalidId{Value: v}
		}
		toks[i] = uint32(v)
	}
	return e.Decode(toks)
}
