package tokenizer

import (
	"fmt"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// GPT-2 pre-tokenizer pattern. regexp2 supports the trailing-whitespace
// lookahead that the standard library regexp cannot express.
const gpt2Pattern = `'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+(?!\S)|\s+`

// matchTimeout bounds a single pre-tokenizer regex match. Patterns come from
// fetched configs and may backtrack catastrophically.
const matchTimeout = time.Second

func compilePattern(pattern string) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = matchTimeout
	return re, nil
}

func mustCompilePattern(pattern string) *regexp2.Regexp {
	re, err := compilePattern(pattern)
	if err != nil {
		panic(err)
	}
	return re
}

// span is a pre-tokenized piece of a normalized text part. start is the byte
// offset of text within the part; synthetic counts leading bytes that were
// inserted by the pre-tokenizer and have no source position.
type span struct {
	text      string
	start     int
	synthetic int
}

type splitter func(span) ([]span, error)

type preTokenizer struct {
	steps     []splitter
	byteLevel bool
}

func (p *preTokenizer) run(text string) ([]span, error) {
	spans := []span{{text: text}}
	for _, step := range p.steps {
		next := make([]span, 0, len(spans))
		for _, s := range spans {
			out, err := step(s)
			if err != nil {
				return nil, err
			}
			next = append(next, out...)
		}
		spans = next
	}
	return spans, nil
}

func buildPreTokenizer(cfg *preTokenizerJSON) (*preTokenizer, error) {
	p := &preTokenizer{}
	if cfg == nil {
		// GPT-2 byte-level is the implicit default for BPE vocabularies.
		cfg = &preTokenizerJSON{Type: "ByteLevel"}
	}
	if err := p.add(cfg); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *preTokenizer) add(cfg *preTokenizerJSON) error {
	switch cfg.Type {
	case "Sequence":
		for i := range cfg.Pretokenizers {
			if err := p.add(&cfg.Pretokenizers[i]); err != nil {
				return err
			}
		}
		return nil
	case "ByteLevel":
		p.byteLevel = true
		if cfg.AddPrefixSpace {
			p.steps = append(p.steps, addPrefixSpace)
		}
		if cfg.UseRegex == nil || *cfg.UseRegex {
			re, err := compilePattern(gpt2Pattern)
			if err != nil {
				return fmt.Errorf("compile byte-level pattern: %w", err)
			}
			p.steps = append(p.steps, regexSplitter(re, "Isolated", false))
		}
		return nil
	case "Split":
		pattern := cfg.Pattern.Regex
		if pattern == "" {
			if cfg.Pattern.String == "" {
				return fmt.Errorf("split pre-tokenizer has no pattern")
			}
			pattern = regexp2.Escape(cfg.Pattern.String)
		}
		re, err := compilePattern(pattern)
		if err != nil {
			return fmt.Errorf("compile split pattern %q: %w", pattern, err)
		}
		p.steps = append(p.steps, regexSplitter(re, cfg.Behavior, cfg.Invert))
		return nil
	case "Digits":
		pattern := `\p{N}+`
		if cfg.IndividualDigits {
			pattern = `\p{N}`
		}
		re := mustCompilePattern(pattern)
		p.steps = append(p.steps, regexSplitter(re, "Isolated", false))
		return nil
	case "WhitespaceSplit":
		re := mustCompilePattern(`\S+`)
		p.steps = append(p.steps, regexSplitter(re, "Removed", true))
		return nil
	default:
		return fmt.Errorf("unsupported pre-tokenizer: %s", cfg.Type)
	}
}

func addPrefixSpace(s span) ([]span, error) {
	if s.start != 0 || strings.HasPrefix(s.text, " ") {
		return []span{s}, nil
	}
	return []span{{text: " " + s.text, start: 0, synthetic: s.synthetic + 1}}, nil
}

// regexSplitter cuts a span at regex matches. behavior follows the HF
// SplitDelimiterBehavior names; invert treats the matches as the content.
func regexSplitter(re *regexp2.Regexp, behavior string, invert bool) splitter {
	return func(s span) ([]span, error) {
		matches, err := findAll(re, s.text)
		if err != nil {
			return nil, err
		}
		pieces := cutPieces(s.text, matches, invert)
		merged := make([]piece, 0, len(pieces))
		for i := 0; i < len(pieces); i++ {
			pc := pieces[i]
			switch behavior {
			case "Removed":
				if pc.delim {
					continue
				}
			case "MergedWithPrevious":
				if pc.delim && len(merged) > 0 {
					merged[len(merged)-1].end = pc.end
					continue
				}
			case "MergedWithNext":
				if pc.delim && i+1 < len(pieces) {
					pieces[i+1].start = pc.start
					continue
				}
			}
			merged = append(merged, pc)
		}
		out := make([]span, 0, len(merged))
		for _, pc := range merged {
			out = append(out, s.sub(pc.start, pc.end))
		}
		return out, nil
	}
}

// sub returns the child span covering [from, to) of s.text, keeping the
// synthetic prefix attached to the first child only.
func (s span) sub(from, to int) span {
	child := span{text: s.text[from:to]}
	if from < s.synthetic {
		child.synthetic = s.synthetic - from
		child.start = s.start
		return child
	}
	child.start = s.start + from - s.synthetic
	return child
}

type piece struct {
	start, end int
	delim      bool
}

func cutPieces(text string, matches [][2]int, invert bool) []piece {
	pieces := make([]piece, 0, 2*len(matches)+1)
	prev := 0
	for _, m := range matches {
		if m[0] > prev {
			pieces = append(pieces, piece{start: prev, end: m[0], delim: invert})
		}
		pieces = append(pieces, piece{start: m[0], end: m[1], delim: !invert})
		prev = m[1]
	}
	if prev < len(text) {
		pieces = append(pieces, piece{start: prev, end: len(text), delim: invert})
	}
	return pieces
}

// findAll returns byte ranges of non-empty matches. regexp2 reports rune
// positions, so they are mapped back to byte offsets.
func findAll(re *regexp2.Regexp, text string) ([][2]int, error) {
	pos := make([]int, 0, len(text)+1)
	for i := range text {
		pos = append(pos, i)
	}
	pos = append(pos, len(text))

	var out [][2]int
	m, err := re.FindStringMatch(text)
	for m != nil && err == nil {
		start, end := m.Index, m.Index+m.Length
		if start < len(pos) && end < len(pos) && end > start {
			out = append(out, [2]int{pos[start], pos[end]})
		}
		m, err = re.FindNextMatch(m)
	}
	if err != nil {
		return nil, fmt.Errorf("pre-tokenizer match: %w", err)
	}
	return out, nil
}
