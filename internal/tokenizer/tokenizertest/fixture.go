// Package tokenizertest builds small tokenizer.json documents for tests.
package tokenizertest

import (
	"github.com/goccy/go-json"

	"github.com/samcharles93/tokenscope/internal/tokenizer"
)

// Well-known ids in the fixture vocabulary. Ids 0-255 are the byte-level
// alphabet, indexed by byte value.
const (
	IDHello      = 259
	IDSpaceWorld = 264
	IDEndOfText  = 265
	IDImStart    = 266
)

var merges = [][2]string{
	{"H", "e"},
	{"l", "l"},
	{"He", "ll"},
	{"Hell", "o"},
	{"Ġ", "w"},
	{"o", "r"},
	{"Ġw", "or"},
	{"l", "d"},
	{"Ġwor", "ld"},
}

// Options tweaks the generated document.
type Options struct {
	// Template prepends <|im_start|> through a TemplateProcessing post-processor.
	Template bool
	// Lowercase adds a Lowercase normalizer.
	Lowercase bool
	// SplitPattern uses a Sequence[Split, ByteLevel(use_regex=false)]
	// pre-tokenizer with the given regex instead of plain ByteLevel.
	SplitPattern string
}

// JSON returns a byte-level BPE tokenizer.json whose merges spell out
// "Hello" and " world".
func JSON(opts Options) string {
	vocab := make(map[string]int, 270)
	for b := 0; b < 256; b++ {
		vocab[tokenizer.ByteLevelEncode([]byte{byte(b)})] = b
	}
	mergeList := make([]string, 0, len(merges))
	for i, m := range merges {
		vocab[m[0]+m[1]] = 256 + i
		mergeList = append(mergeList, m[0]+" "+m[1])
	}

	doc := map[string]any{
		"version": "1.0",
		"model": map[string]any{
			"type":   "BPE",
			"vocab":  vocab,
			"merges": mergeList,
		},
		"added_tokens": []map[string]any{
			{"id": IDEndOfText, "content": "<|endoftext|>", "special": true},
			{"id": IDImStart, "content": "<|im_start|>", "special": true},
		},
		"pre_tokenizer": map[string]any{"type": "ByteLevel", "add_prefix_space": false},
		"decoder":       map[string]any{"type": "ByteLevel"},
	}
	if opts.SplitPattern != "" {
		doc["pre_tokenizer"] = map[string]any{
			"type": "Sequence",
			"pretokenizers": []map[string]any{
				{"type": "Split", "pattern": map[string]any{"Regex": opts.SplitPattern}, "behavior": "Isolated", "invert": false},
				{"type": "ByteLevel", "add_prefix_space": false, "use_regex": false},
			},
		}
	}
	if opts.Lowercase {
		doc["normalizer"] = map[string]any{"type": "Lowercase"}
	}
	if opts.Template {
		doc["post_processor"] = map[string]any{
			"type": "TemplateProcessing",
			"single": []map[string]any{
				{"SpecialToken": map[string]any{"id": "<|im_start|>", "type_id": 0}},
				{"Sequence": map[string]any{"id": "A", "type_id": 0}},
			},
			"special_tokens": map[string]any{
				"<|im_start|>": map[string]any{"id": "<|im_start|>", "ids": []int{IDImStart}, "tokens": []string{"<|im_start|>"}},
			},
		}
	}
	out, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return string(out)
}
