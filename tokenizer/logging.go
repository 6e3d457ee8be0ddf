package tokenizer

import "log/slog"

// tokenIDs defers id-slice formatting until a slog handler actually consumes
// the record, per ollama-ollama/types/model/digest.go's LogValue idiom —
// Debug-level encode logging would otherwise pay string-formatting cost on
// every call even when no handler is listening.
type tokenIDs []uint32

func (ids tokenIDs) LogValue() slog.Value {
	return slog.AnyValue([]uint32(ids))
}

var _ slog.LogValuer = tokenIDs(nil)
