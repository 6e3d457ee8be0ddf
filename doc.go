// Package tiktokenex provides a Kimi-K2-compatible, byte-level BPE
// tokenizer: pattern-driven pre-tokenization, special-token scanning under
// either parity or longest matching, and a configurable BPE merge engine.
//
// Construct an Encoding with tokenizer.New, then call Encode/Decode. A
// constructed Encoding is immutable and safe for concurrent use.
package tiktokenex
