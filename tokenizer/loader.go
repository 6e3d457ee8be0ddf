package tokenizer

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// LoadTiktokenModel parses a tiktoken.model artifact (§4.6, §6): one record
// per line, "BASE64 WS+ DECIMAL". Lines that do not split into exactly two
// whitespace-separated fields are ignored; duplicate byte-strings let the
// last line win. Fetching the artifact itself (from a remote store, a local
// cache, or anywhere else) is a caller concern; this loader only turns an
// already-local path into encoder pairs.
func LoadTiktokenModel(path string) ([][2]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &InvalidModel{Path: path, Reason: err.Error()}
	}
	defer func() { _ = f.Close() }()

	r := bufio.NewReader(f)
	lineNo := 0
	seen := make(map[string]int) // byte-string -> index in pairs, for last-wins dedup
	var pairs [][2]any
	for {
		line, readErr := r.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return nil, &InvalidModel{Path: path, Reason: readErr.Error()}
		}
		lineNo++
		line = strings.TrimRight(line, "\r\n")
		line = strings.TrimSpace(line)
		if line == "" {
			if errors.Is(readErr, io.EOF) {
				break
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			if errors.Is(readErr, io.EOF) {
				break
			}
			continue
		}
		tok, decodeErr := base64.StdEncoding.DecodeString(fields[0])
		if decodeErr != nil {
			return nil, &InvalidModel{Path: path, Reason: fmt.Sprintf("line %d: base64 decode: %v", lineNo, decodeErr)}
		}
		rank, parseErr := strconv.ParseUint(fields[1], 10, 32)
		if parseErr != nil {
			return nil, &InvalidModel{Path: path, Reason: fmt.Sprintf("line %d: rank parse: %v", lineNo, parseErr)}
		}
		key := string(tok)
		pair := [2]any{tok, uint32(rank)}
		if idx, ok := seen[key]; ok {
			pairs[idx] = pair
		} else {
			seen[key] = len(pairs)
			pairs = append(pairs, pair)
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
	}
	if len(pairs) == 0 {
		return nil, &EmptyModel{Path: path}
	}
	return pairs, nil
}

// reservedTokenName is the default name for a reserved special token that
// tokenizer_config.json does not override (§4.6, §6).
func reservedTokenName(id int) string {
	return fmt.Sprintf("<|reserved_token_%d|>", id)
}

// extractTokenContent reads one value in added_tokens_decoder, which may be
// either a bare JSON string or an object carrying a "content" field.
// Grounded on 7blacky7-ollama-reverse/x/imagegen/tokenizer/config.go's
// extractTokenString, which tolerates the same two shapes for bos/eos/pad
// token fields elsewhere in the HuggingFace config family.
func extractTokenContent(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var obj struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Content != "" {
		return obj.Content, true
	}
	return "", false
}

// LoadSpecialTokens implements build_special_tokens (§4.6): for every id in
// [baseCount, baseCount+256), the token named by
// config["added_tokens_decoder"][id]["content"] (or by a bare string value
// at config["added_tokens_decoder"][id]) if present, else the default
// reserved name. The Python oracle
// (original_source/oracle/kimi_oracle.py's build_special_tokens) is the
// reference for this exact reserved-band iteration and default-name
// format; resulting map is content -> id, as §4.6 specifies.
func LoadSpecialTokens(configPath string, baseCount int) (map[string]uint32, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, &InvalidJson{Path: configPath, Reason: err.Error()}
	}

	var config struct {
		AddedTokensDecoder map[string]json.RawMessage `json:"added_tokens_decoder"`
	}
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, &InvalidJson{Path: configPath, Reason: err.Error()}
	}

	byID := make(map[int]string, len(config.AddedTokensDecoder))
	for key, raw := range config.AddedTokensDecoder {
		id, convErr := strconv.Atoi(key)
		if convErr != nil {
			return nil, &InvalidSpecialTokens{Reason: fmt.Sprintf("non-numeric added_tokens_decoder key %q", key)}
		}
		var entry struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal(raw, &entry); err != nil || entry.Content == "" {
			if content, ok := extractTokenContent(raw); ok {
				byID[id] = content
				continue
			}
			continue
		}
		byID[id] = entry.Content
	}

	out := make(map[string]uint32, 256)
	for id := baseCount; id < baseCount+256; id++ {
		name, ok := byID[id]
		if !ok || name == "" {
			name = reservedTokenName(id)
		}
		out[name] = uint32(id)
	}
	return out, nil
}
