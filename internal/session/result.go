package session

import (
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/samcharles93/tokenscope/internal/binding"
)

// Token is one entry of a tokenization, in encode order.
type Token struct {
	Raw     string `json:"raw"`
	Decoded string `json:"decoded"`
	ID      int    `json:"id"`
}

type Result struct {
	ID          uuid.UUID `json:"id"`
	Source      string    `json:"source,omitempty"`
	Decoded     string    `json:"decoded"`
	Tokens      []Token   `json:"tokens"`
	InputLength int       `json:"input_length"`
}

// Tokenize encodes text with special tokens, decodes the whole sequence and
// then each id on its own, skipping special tokens in both decodes. The
// per-token strings need not concatenate to Decoded. Any failure discards the
// partial result.
func Tokenize(tok binding.Tokenizer, text string) (*Result, error) {
	enc, err := tok.Encode(text, true)
	if err != nil {
		return nil, &TokenizeError{Stage: "encode", Err: err}
	}
	if len(enc.Tokens) != len(enc.IDs) {
		return nil, &TokenizeError{Stage: "encode", Err: fmt.Errorf("%d ids but %d tokens", len(enc.IDs), len(enc.Tokens))}
	}
	decoded, err := tok.Decode(enc.IDs, true)
	if err != nil {
		return nil, &TokenizeError{Stage: "decode", Err: err}
	}

	tokens := make([]Token, len(enc.IDs))
	for i, id := range enc.IDs {
		piece, err := tok.Decode([]int{id}, true)
		if err != nil {
			return nil, &TokenizeError{Stage: fmt.Sprintf("decode token %d", i), Err: err}
		}
		tokens[i] = Token{Raw: enc.Tokens[i], Decoded: piece, ID: id}
	}

	return &Result{
		ID:          uuid.New(),
		Decoded:     decoded,
		Tokens:      tokens,
		InputLength: utf8.RuneCountInString(text),
	}, nil
}
