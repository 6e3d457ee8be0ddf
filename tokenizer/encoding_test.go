package tokenizer

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// worked-example rank table from §8: {"He":0,"ll":1,"llo":2,"H":10,"e":11,"l":12,"o":13}
func workedExampleRanks() map[string]Rank {
	return map[string]Rank{
		"He":  0,
		"ll":  1,
		"llo": 2,
		"H":   10,
		"e":   11,
		"l":   12,
		"o":   13,
	}
}

// workedExampleRanksFullByteCoverage extends the §8 worked-example table with
// every other single byte value, so scenarios mixing "Hello" with arbitrary
// ASCII punctuation (e.g. special-token literal bytes) still round-trip.
func workedExampleRanksFullByteCoverage() map[string]Rank {
	out := workedExampleRanks()
	next := Rank(1000)
	for b := 0; b < 256; b++ {
		s := string([]byte{byte(b)})
		if _, ok := out[s]; ok {
			continue
		}
		out[s] = next
		next++
	}
	return out
}

func TestNewEmptyPatternFallsBackToKimi(t *testing.T) {
	_, err := New(Options{PatternSource: "", Ranks: nil})
	// empty PatternSource falls back to KimiPatternSource, which is non-empty,
	// so construction with no ranks at all should still succeed.
	require.NoError(t, err)
}

func TestNewRejectsOverlappingRanksAndSpecials(t *testing.T) {
	_, err := New(Options{
		PatternSource: ".+",
		Ranks:         map[string]Rank{"a": 5},
		Specials:      map[string]Rank{"<|x|>": 5},
	})
	require.Error(t, err)
	var target *OverlappingIds
	require.ErrorAs(t, err, &target)
}

func TestNewRejectsDuplicateRankValues(t *testing.T) {
	_, err := New(Options{
		PatternSource: ".+",
		Ranks:         map[string]Rank{"a": 1, "b": 1},
	})
	require.Error(t, err)
	var target *OverlappingIds
	require.ErrorAs(t, err, &target)
}

func TestNewRejectsUncompilablePattern(t *testing.T) {
	_, err := New(Options{PatternSource: "(unclosed", Ranks: map[string]Rank{"a": 0}})
	require.Error(t, err)
	var target *InvalidPattern
	require.ErrorAs(t, err, &target)
}

func TestWorkedExampleHello(t *testing.T) {
	enc, err := New(Options{PatternSource: ".+", Ranks: workedExampleRanks()})
	require.NoError(t, err)

	ids, err := enc.Encode("Hello", true)
	require.NoError(t, err)
	require.Equal(t, []uint32{0, 2}, ids)

	decoded, err := enc.DecodeString(ids)
	require.NoError(t, err)
	require.Equal(t, "Hello", decoded)
}

func TestWorkedExampleEmptyString(t *testing.T) {
	enc, err := New(Options{PatternSource: ".+", Ranks: workedExampleRanks()})
	require.NoError(t, err)

	ids, err := enc.Encode("", true)
	require.NoError(t, err)
	require.Empty(t, ids)

	decoded, err := enc.DecodeString(ids)
	require.NoError(t, err)
	require.Equal(t, "", decoded)
}

func TestWorkedExampleSpecialTokenAllowed(t *testing.T) {
	enc, err := New(Options{
		PatternSource: ".+",
		Ranks:         workedExampleRanks(),
		Specials:      map[string]Rank{"<|bos|>": 14},
	})
	require.NoError(t, err)

	ids, err := enc.Encode("<|bos|>Hello", true)
	require.NoError(t, err)
	require.Equal(t, []uint32{14, 0, 2}, ids)

	decoded, err := enc.DecodeString(ids)
	require.NoError(t, err)
	require.Equal(t, "<|bos|>Hello", decoded)
}

func TestWorkedExampleSpecialTokenDisallowed(t *testing.T) {
	enc, err := New(Options{
		PatternSource: ".+",
		Ranks:         workedExampleRanksFullByteCoverage(),
		Specials:      map[string]Rank{"<|bos|>": 14},
	})
	require.NoError(t, err)

	ids, err := enc.Encode("<|bos|>Hello", false)
	require.NoError(t, err)
	require.NotContains(t, ids, uint32(14))

	decoded, err := enc.DecodeString(ids)
	require.NoError(t, err)
	require.Equal(t, "<|bos|>Hello", decoded)
}

func TestOverlappingSpecialsLongestMatching(t *testing.T) {
	enc, err := New(Options{
		PatternSource:        ".+",
		Ranks:                workedExampleRanks(),
		Specials:             map[string]Rank{"<|a|>": 100, "<|a|>b": 101},
		SpecialTokenMatching: MatchLongest,
	})
	require.NoError(t, err)

	ids, err := enc.Encode("<|a|>b", true)
	require.NoError(t, err)
	require.Equal(t, []uint32{101}, ids)

	decoded, err := enc.DecodeString(ids)
	require.NoError(t, err)
	require.Equal(t, "<|a|>b", decoded)
}

func TestOverlappingSpecialsParityMatchingIsOneOfDocumentedChoices(t *testing.T) {
	ranks := workedExampleRanksFullByteCoverage()
	enc, err := New(Options{
		PatternSource:        ".+",
		Ranks:                ranks,
		Specials:             map[string]Rank{"<|a|>": 100, "<|a|>b": 101},
		SpecialTokenMatching: MatchParity,
	})
	require.NoError(t, err)

	ids, err := enc.Encode("<|a|>b", true)
	require.NoError(t, err)

	// §8 property 2/row 6: under parity, either the longer literal wins
	// outright, or the shorter literal wins and "b" is BPE-encoded normally.
	bID := ranks["b"]
	valid := [][]uint32{{101}, {100, bID}}
	matched := false
	for _, v := range valid {
		if equalUint32(ids, v) {
			matched = true
			break
		}
	}
	require.True(t, matched, "ids %v must be one of the documented choices", ids)

	decoded, err := enc.DecodeString(ids)
	require.NoError(t, err)
	require.Equal(t, "<|a|>b", decoded)
}

func equalUint32(a, b []uint32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestMixedScriptStableUnderBothMatchingDisciplines(t *testing.T) {
	for _, matching := range []SpecialTokenMatching{MatchParity, MatchLongest} {
		enc, err := New(Options{
			Ranks:                syntheticFullRankTable(),
			SpecialTokenMatching: matching,
		})
		require.NoError(t, err)

		first, err := enc.Encode("Mix 汉字 and ASCII", true)
		require.NoError(t, err)
		second, err := enc.Encode("Mix 汉字 and ASCII", true)
		require.NoError(t, err)
		require.Equal(t, first, second)
	}
}

func TestLargeRepetitionDoesNotExplode(t *testing.T) {
	enc, err := New(Options{Ranks: syntheticFullRankTable()})
	require.NoError(t, err)

	text := strings.Repeat("a", 30000)
	ids, err := enc.Encode(text, true)
	require.NoError(t, err)
	require.NotEmpty(t, ids)

	decoded, err := enc.DecodeString(ids)
	require.NoError(t, err)
	require.Equal(t, text, decoded)
}

func TestCRLFBoundaries(t *testing.T) {
	enc, err := New(Options{Ranks: syntheticFullRankTable()})
	require.NoError(t, err)

	text := "line1\r\nline2\nline3\tend"
	ids, err := enc.Encode(text, true)
	require.NoError(t, err)

	decoded, err := enc.DecodeString(ids)
	require.NoError(t, err)
	require.Equal(t, text, decoded)
}

func TestSegmentConcatenationProperty(t *testing.T) {
	enc, err := New(Options{Ranks: syntheticFullRankTable()})
	require.NoError(t, err)

	a := "hello world, "
	b := "this is a separate sentence."

	idsAB, err := enc.Encode(a+b, true)
	require.NoError(t, err)

	idsA, err := enc.Encode(a, true)
	require.NoError(t, err)
	idsB, err := enc.Encode(b, true)
	require.NoError(t, err)

	require.Equal(t, idsAB, append(append([]uint32{}, idsA...), idsB...))
}

func TestEncodeUnencodableByteReturnsError(t *testing.T) {
	// A rank table missing coverage for the byte 'z' cannot encode it.
	ranks := map[string]Rank{"H": 0, "e": 1, "l": 2, "o": 3}
	enc, err := New(Options{PatternSource: ".+", Ranks: ranks})
	require.NoError(t, err)

	_, err = enc.Encode("Hz", true)
	require.Error(t, err)
	var target *UnencodableBytes
	require.ErrorAs(t, err, &target)
}

func TestDecodeUnknownId(t *testing.T) {
	enc, err := New(Options{Ranks: workedExampleRanks()})
	require.NoError(t, err)

	_, err = enc.Decode([]uint32{9999})
	require.Error(t, err)
	var target *UnknownId
	require.ErrorAs(t, err, &target)
}

func TestDecodeIDsRejectsNegative(t *testing.T) {
	enc, err := New(Options{Ranks: workedExampleRanks()})
	require.NoError(t, err)

	_, err = enc.DecodeIDs([]int64{-1})
	require.Error(t, err)
	var target *InvalidId
	require.ErrorAs(t, err, &target)
}

func TestIsSpecialToken(t *testing.T) {
	enc, err := New(Options{
		Ranks:    workedExampleRanks(),
		Specials: map[string]Rank{"<|bos|>": 14},
	})
	require.NoError(t, err)

	require.True(t, enc.IsSpecialToken(14))
	require.False(t, enc.IsSpecialToken(0))
}

func TestEncodeBatchMatchesIndividualEncode(t *testing.T) {
	enc, err := New(Options{Ranks: syntheticFullRankTable()})
	require.NoError(t, err)

	texts := []string{"hello world", "San Francisco weather", ""}
	results, err := enc.EncodeBatch(context.Background(), texts, true)
	require.NoError(t, err)
	require.Len(t, results, len(texts))

	for i, text := range texts {
		want, err := enc.Encode(text, true)
		require.NoError(t, err)
		require.Equal(t, text, results[i].Text)
		require.Equal(t, want, results[i].IDs)
		require.NoError(t, results[i].Err)
	}
}

func TestEncodeBatchStopsOnCancellation(t *testing.T) {
	enc, err := New(Options{Ranks: syntheticFullRankTable()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := enc.EncodeBatch(ctx, []string{"a", "b"}, true)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, results)
}

func TestMergeStrategyEquivalence(t *testing.T) {
	ranks := syntheticFullRankTable()
	scan, err := New(Options{Ranks: ranks, MergeStrategy: MergeScan})
	require.NoError(t, err)
	heap, err := New(Options{Ranks: ranks, MergeStrategy: MergeHeap})
	require.NoError(t, err)

	samples := []string{
		"hello world",
		"the weather forecast for tomorrow",
		"San Francisco itinerary: breakfast, museum, transit",
		strings.Repeat("ab", 50),
	}
	for _, s := range samples {
		scanIDs, err := scan.Encode(s, true)
		require.NoError(t, err)
		heapIDs, err := heap.Encode(s, true)
		require.NoError(t, err)
		require.Equal(t, scanIDs, heapIDs, "sample %q", s)
	}
}

// syntheticFullRankTable extends syntheticRankTable (bpe_bench_test.go),
// which already covers every single byte, with a few whole-word and CJK
// tokens that appear in the scenario tests above.
func syntheticFullRankTable() map[string]Rank {
	out := make(map[string]Rank)
	for _, p := range syntheticRankTable() {
		b, _ := p[0].([]byte)
		r, _ := p[1].(Rank)
		out[string(b)] = r
	}
	next := Rank(len(out))
	for _, s := range []string{"汉", "字", "Mix", "and", "ASCII", " ", "San", "Francisco"} {
		if _, ok := out[s]; !ok {
			out[s] = next
			next++
		}
	}
	return out
}
