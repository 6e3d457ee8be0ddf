package tokenizer

import (
	"log/slog"
	"strings"
)

// patternSubstitutions rewrites the four `&&` intersection classes that appear
// in Kimi's pat_str into an equivalent negative-lookahead form, for regex
// engines (including dlclark/regexp2 in RE2 mode) that do not implement
// character-class intersection.
var patternSubstitutions = [...][2]string{
	{
		`[\p{Lu}\p{Lt}\p{Lm}\p{Lo}\p{M}&&[^\p{Han}]]*`,
		`(?:(?!\p{Han})[\p{Lu}\p{Lt}\p{Lm}\p{Lo}\p{M}])*`,
	},
	{
		`[\p{Ll}\p{Lm}\p{Lo}\p{M}&&[^\p{Han}]]+`,
		`(?:(?!\p{Han})[\p{Ll}\p{Lm}\p{Lo}\p{M}])+`,
	},
	{
		`[\p{Lu}\p{Lt}\p{Lm}\p{Lo}\p{M}&&[^\p{Han}]]+`,
		`(?:(?!\p{Han})[\p{Lu}\p{Lt}\p{Lm}\p{Lo}\p{M}])+`,
	},
	{
		`[\p{Ll}\p{Lm}\p{Lo}\p{M}&&[^\p{Han}]]*`,
		`(?:(?!\p{Han})[\p{Ll}\p{Lm}\p{Lo}\p{M}])*`,
	},
}

// TranslatePattern eliminates the PCRE/ECMA-incompatible character-class
// intersections in source by substituting each of the four fixed forms Kimi's
// pat_str is known to contain. It is not a general regex-AST rewriter: any
// occurrence of "&&" not matching one of these four literal substrings is
// left untouched.
func TranslatePattern(source string) string {
	out := source
	applied := 0
	for _, sub := range patternSubstitutions {
		if strings.Contains(out, sub[0]) {
			applied++
		}
		out = strings.ReplaceAll(out, sub[0], sub[1])
	}
	if applied > 0 {
		slog.Info("pattern translator rewrote intersection classes", "substitutions", applied)
	}
	return out
}

// KimiPatternSource is the canonical, untranslated Kimi-K2 pat_str, containing
// the four character-class intersections TranslatePattern rewrites.
const KimiPatternSource = `[\p{Han}]+|[^\r\n\p{L}\p{N}]?[\p{Lu}\p{Lt}\p{Lm}\p{Lo}\p{M}&&[^\p{Han}]]*[\p{Ll}\p{Lm}\p{Lo}\p{M}&&[^\p{Han}]]+(?i:'s|'t|'re|'ve|'m|'ll|'d)?|[^\r\n\p{L}\p{N}]?[\p{Lu}\p{Lt}\p{Lm}\p{Lo}\p{M}&&[^\p{Han}]]+[\p{Ll}\p{Lm}\p{Lo}\p{M}&&[^\p{Han}]]*(?i:'s|'t|'re|'ve|'m|'ll|'d)?|\p{N}{1,3}| ?[^\s\p{L}\p{N}]+[\r\n]*|\s*[\r\n]+|\s+(?!\S)|\s+`
