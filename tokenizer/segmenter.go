package tokenizer

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dlclark/regexp2"
)

// Segmenter applies the pre-tokenization pattern to a string of ordinary
// text (already stripped of special-token occurrences) and returns the
// ordered, contiguous, non-empty pieces that cover it exactly, per §4.1.
type Segmenter interface {
	Split(s string) ([]string, error)
}

// kimiSegmenter compiles the (already-translated) Kimi pat_str with
// dlclark/regexp2 in Unicode+RE2 mode, the one engine in the retrieval pack
// that supports both \p{...} classes and negative lookahead. Grounded on
// ollama-ollama/model/process_text.go's split: repeatedly call
// FindStringMatch/FindNextMatch and collect m.String() for each match,
// rather than doing index arithmetic against regexp2's internal rune
// positions (which do not line up with Go's byte-indexed strings).
type kimiSegmenter struct {
	re *regexp2.Regexp
}

// NewSegmenter compiles pattern into a Segmenter. Callers pass the output of
// TranslatePattern unless they intend to supply a pattern already free of
// intersection classes.
func NewSegmenter(pattern string) (Segmenter, error) {
	re, err := regexp2.Compile(pattern, regexp2.RE2|regexp2.Unicode)
	if err != nil {
		return nil, &InvalidPattern{Source: pattern, Message: err.Error()}
	}
	return &kimiSegmenter{re: re}, nil
}

func (k *kimiSegmenter) Split(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var pieces []string
	covered := 0
	m, err := k.re.FindStringMatch(s)
	for m != nil {
		if err != nil {
			return nil, &InvalidPattern{Source: k.re.String(), Message: err.Error()}
		}
		piece := m.String()
		if piece == "" || !strings.HasPrefix(s[covered:], piece) {
			// The Kimi pattern always consumes at least one codepoint per
			// alternative and leaves no gaps; a zero-length match, or a match
			// that does not start where the previous one ended, only happens
			// for a caller pattern that does not, and is handled below.
			break
		}
		pieces = append(pieces, piece)
		covered += len(piece)
		m, err = k.re.FindNextMatch(m)
	}
	if err != nil {
		return nil, &InvalidPattern{Source: k.re.String(), Message: err.Error()}
	}
	if covered != len(s) {
		// The pattern left a gap or a caller-supplied pattern does not cover
		// every codepoint (§3 invariant 4). Fall back to treating the
		// remainder as a single trailing piece so encoding never silently
		// drops bytes.
		if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
			slog.Debug("segmenter pattern left a gap, falling back to trailing piece", "covered", covered, "length", len(s))
		}
		pieces = append(pieces, s[covered:])
	}
	return pieces, nil
}
