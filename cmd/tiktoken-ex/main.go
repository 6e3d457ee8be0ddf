package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/North-Shore-AI/tiktoken-ex/tokenizer"
)

func die(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

type request struct {
	Texts              []string `json:"texts"`
	AllowSpecialTokens bool     `json:"allow_special_tokens"`
}

type result struct {
	Text    string   `json:"text"`
	IDs     []uint32 `json:"ids"`
	Decoded string   `json:"decoded"`
}

type response struct {
	AllowSpecialTokens bool     `json:"allow_special_tokens"`
	Results            []result `json:"results"`
}

func buildEncoding(modelPath, configPath string) (*tokenizer.Encoding, error) {
	pairs, err := tokenizer.LoadTiktokenModel(modelPath)
	if err != nil {
		return nil, err
	}
	ranks := make(map[string]tokenizer.Rank, len(pairs))
	for _, p := range pairs {
		b, _ := p[0].([]byte)
		r, _ := p[1].(tokenizer.Rank)
		ranks[string(b)] = r
	}
	specials, err := tokenizer.LoadSpecialTokens(configPath, len(ranks))
	if err != nil {
		return nil, err
	}
	return tokenizer.New(tokenizer.Options{
		Ranks:    ranks,
		Specials: specials,
	})
}

func runEncode(modelPath, configPath string) error {
	enc, err := buildEncoding(modelPath, configPath)
	if err != nil {
		return err
	}
	var req request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		return err
	}
	resp := response{AllowSpecialTokens: req.AllowSpecialTokens}
	for _, text := range req.Texts {
		ids, err := enc.Encode(text, req.AllowSpecialTokens)
		if err != nil {
			return err
		}
		decoded, err := enc.DecodeString(ids)
		if err != nil {
			return err
		}
		resp.Results = append(resp.Results, result{Text: text, IDs: ids, Decoded: decoded})
	}
	return json.NewEncoder(os.Stdout).Encode(resp)
}

type decodeRequest struct {
	IDs [][]int64 `json:"ids"`
}

type decodeResult struct {
	IDs     []int64 `json:"ids"`
	Decoded string  `json:"decoded"`
}

type decodeResponse struct {
	Results []decodeResult `json:"results"`
}

func runDecode(modelPath, configPath string) error {
	enc, err := buildEncoding(modelPath, configPath)
	if err != nil {
		return err
	}
	var req decodeRequest
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		return err
	}
	var resp decodeResponse
	for _, ids := range req.IDs {
		bs, err := enc.DecodeIDs(ids)
		if err != nil {
			return err
		}
		resp.Results = append(resp.Results, decodeResult{IDs: ids, Decoded: string(bs)})
	}
	return json.NewEncoder(os.Stdout).Encode(resp)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("tiktoken-ex [encode|decode] -model path/to/tiktoken.model -config path/to/tokenizer_config.json")
		return
	}

	fs := flag.NewFlagSet(os.Args[1], flag.ExitOnError)
	modelPath := fs.String("model", "tiktoken.model", "path to tiktoken.model")
	configPath := fs.String("config", "tokenizer_config.json", "path to tokenizer_config.json")
	_ = fs.Parse(os.Args[2:])

	var err error
	switch os.Args[1] {
	case "encode":
		err = runEncode(*modelPath, *configPath)
	case "decode":
		err = runDecode(*modelPath, *configPath)
	default:
		die(fmt.Errorf("unknown subcommand %q", os.Args[1]))
	}
	if err != nil {
		die(err)
	}
}
