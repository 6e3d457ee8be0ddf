package tokenizer

import "fmt"

// InvalidPattern reports a pre-tokenization pattern that failed to compile.
type InvalidPattern struct {
	Source  string
	Message string
}

func (e *InvalidPattern) Error() string {
	return fmt.Sprintf("invalid pattern %q: %s", e.Source, e.Message)
}

// OverlappingIds reports a rank that also appears in the special-token table.
type OverlappingIds struct {
	ID uint32
}

func (e *OverlappingIds) Error() string {
	return fmt.Sprintf("id %d occurs in both the rank table and the special-token table", e.ID)
}

// EmptyModel reports an artifact file that parsed to zero entries.
type EmptyModel struct {
	Path string
}

func (e *EmptyModel) Error() string {
	return fmt.Sprintf("%s: parsed to zero rank entries", e.Path)
}

// InvalidModel reports a malformed tiktoken.model line.
type InvalidModel struct {
	Path   string
	Reason string
}

func (e *InvalidModel) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// InvalidJson reports a config file that is not valid JSON.
type InvalidJson struct {
	Path   string
	Reason string
}

func (e *InvalidJson) Error() string {
	return fmt.Sprintf("%s: invalid json: %s", e.Path, e.Reason)
}

// InvalidSpecialTokens reports a malformed special-token section.
type InvalidSpecialTokens struct {
	Reason string
}

func (e *InvalidSpecialTokens) Error() string {
	return fmt.Sprintf("invalid special tokens: %s", e.Reason)
}

// InvalidId reports a decode input that was not a non-negative integer.
type InvalidId struct {
	Value int64
}

func (e *InvalidId) Error() string {
	return fmt.Sprintf("invalid token id %d: must be a non-negative integer", e.Value)
}

// UnknownId reports a decode input not present in either decoder table.
type UnknownId struct {
	Value uint32
}

func (e *UnknownId) Error() string {
	return fmt.Sprintf("unknown token id %d", e.Value)
}

// UnencodableBytes reports a BPE piece that cannot be covered by the rank table.
type UnencodableBytes struct {
	Offset int
	Bytes  []byte
}

func (e *UnencodableBytes) Error() string {
	return fmt.Sprintf("unencodable bytes at offset %d: %x", e.Offset, e.Bytes)
}
