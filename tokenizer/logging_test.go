package tokenizer

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

// withDebugLogger installs a slog.Logger writing to buf at Debug level as
// the package default for the duration of the test, restoring the previous
// default on cleanup.
func withDebugLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	prev := slog.Default()
	buf := &bytes.Buffer{}
	slog.SetDefault(slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return buf
}

func TestTokenIDsLogValue(t *testing.T) {
	var lv slog.LogValuer = tokenIDs{1, 2, 3}
	v := lv.LogValue()
	require.Equal(t, slog.KindAny, v.Kind())
	require.Equal(t, []uint32{1, 2, 3}, v.Any())
}

func TestEncodeLogsIdsAtDebugLevel(t *testing.T) {
	buf := withDebugLogger(t)

	enc, err := New(Options{Ranks: syntheticFullRankTable()})
	require.NoError(t, err)

	_, err = enc.Encode("hello", true)
	require.NoError(t, err)

	require.Contains(t, buf.String(), "encoded text")
}

func TestNewLogsConstructionAtInfoLevel(t *testing.T) {
	buf := withDebugLogger(t)

	_, err := New(Options{Ranks: syntheticFullRankTable()})
	require.NoError(t, err)

	require.Contains(t, buf.String(), "encoding constructed")
}
