package tokenizer

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"
)

// ErrUnsupportedModel is returned for tokenizer.json files whose model is not BPE.
var ErrUnsupportedModel = errors.New("unsupported tokenizer model")

// HFTokenizer is a byte-level BPE tokenizer built from an HF tokenizer.json.
// It is safe for concurrent use.
type HFTokenizer struct {
	encoder      map[string]int
	decoder      map[int]string
	bpeRanks     map[Pair]int
	ignoreMerges bool
	unkID        int

	added      []addedToken
	addedByID  map[int]addedToken
	addedFirst [256]bool

	normalize normalizer
	pre       *preTokenizer
	post      *postProcessor
	byteLevel bool

	mu    sync.Mutex
	cache map[string][]string
}

type addedToken struct {
	id      int
	content string
	special bool
}

// LoadHFTokenizerBytes parses tokenizer.json content.
func LoadHFTokenizerBytes(data []byte) (*HFTokenizer, error) {
	var tj tokenizerJSON
	if err := json.Unmarshal(data, &tj); err != nil {
		return nil, fmt.Errorf("parse tokenizer.json: %w", err)
	}
	modelType := strings.ToUpper(tj.Model.Type)
	if modelType == "" && len(tj.Model.Merges) > 0 {
		modelType = "BPE"
	}
	if modelType != "BPE" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, tj.Model.Type)
	}
	if len(tj.Model.Vocab) == 0 {
		return nil, fmt.Errorf("tokenizer.json has an empty vocabulary")
	}

	// Ids may be sparse or arbitrarily large.
	encoder := make(map[string]int, len(tj.Model.Vocab)+len(tj.AddedTokens))
	decoder := make(map[int]string, len(tj.Model.Vocab)+len(tj.AddedTokens))
	for tok, id := range tj.Model.Vocab {
		if id < 0 {
			return nil, fmt.Errorf("negative id %d for token %q", id, tok)
		}
		encoder[tok] = id
		decoder[id] = tok
	}
	for _, at := range tj.AddedTokens {
		if at.ID < 0 {
			return nil, fmt.Errorf("negative id %d for added token %q", at.ID, at.Content)
		}
	}

	t := &HFTokenizer{
		encoder:      encoder,
		decoder:      decoder,
		bpeRanks:     parseMerges(tj.Model.Merges),
		ignoreMerges: tj.Model.IgnoreMerges,
		unkID:        -1,
		addedByID:    make(map[int]addedToken, len(tj.AddedTokens)),
		cache:        make(map[string][]string),
	}

	for _, at := range tj.AddedTokens {
		if at.Content == "" {
			continue
		}
		tok := addedToken{id: at.ID, content: at.Content, special: at.Special}
		decoder[at.ID] = at.Content
		encoder[at.Content] = at.ID
		t.added = append(t.added, tok)
		t.addedByID[at.ID] = tok
		t.addedFirst[at.Content[0]] = true
	}
	// longest-match first
	sort.SliceStable(t.added, func(i, j int) bool {
		return len(t.added[i].content) > len(t.added[j].content)
	})

	if tj.Model.UnkToken != nil {
		if id, ok := encoder[*tj.Model.UnkToken]; ok {
			t.unkID = id
		}
	}

	var err error
	if t.normalize, err = buildNormalizer(tj.Normalizer); err != nil {
		return nil, err
	}
	if t.pre, err = buildPreTokenizer(tj.PreTokenizer); err != nil {
		return nil, err
	}
	if t.post, err = buildPostProcessor(tj.PostProcessor, encoder); err != nil {
		return nil, err
	}
	t.byteLevel = t.pre.byteLevel || hasByteLevelDecoder(tj.Decoder)
	return t, nil
}

func hasByteLevelDecoder(d *decoderJSON) bool {
	if d == nil {
		return false
	}
	if d.Type == "ByteLevel" {
		return true
	}
	for i := range d.Decoders {
		if hasByteLevelDecoder(&d.Decoders[i]) {
			return true
		}
	}
	return false
}

// Encode tokenizes text with byte offsets. When addSpecialTokens is set the
// post-processor template (BOS/EOS, CLS/SEP) is applied.
func (t *HFTokenizer) Encode(text string, addSpecialTokens bool) (*Encoding, error) {
	return t.encode(text, addSpecialTokens, true)
}

// EncodeFast is Encode without offset tracking.
func (t *HFTokenizer) EncodeFast(text string, addSpecialTokens bool) (*Encoding, error) {
	return t.encode(text, addSpecialTokens, false)
}

func (t *HFTokenizer) encode(text string, addSpecialTokens, withOffsets bool) (*Encoding, error) {
	enc := newEncoding(len(text)/3+4, withOffsets)
	word := 0
	for _, part := range t.splitAdded(text) {
		if part.added != nil {
			special := 0
			if part.added.special {
				special = 1
			}
			enc.append(part.added.id, part.added.content, 0, [2]int{part.start, part.start + len(part.text)}, special, word, 0)
			word++
			continue
		}
		var err error
		if word, err = t.encodePart(enc, part.text, part.start, word); err != nil {
			return nil, err
		}
	}
	if addSpecialTokens {
		t.post.apply(enc)
	}
	return enc, nil
}

// encodePart appends the tokens of one text segment, numbering its words
// from word. It returns the next free word index.
func (t *HFTokenizer) encodePart(enc *Encoding, text string, base, word int) (int, error) {
	normalized := text
	if t.normalize != nil {
		normalized = t.normalize(text)
	}
	// Offsets are only exact when normalization left the text untouched.
	exact := normalized == text

	spans, err := t.pre.run(normalized)
	if err != nil {
		return word, err
	}
	for _, sp := range spans {
		piece := sp.text
		if t.byteLevel {
			piece = ByteLevelEncode([]byte(sp.text))
		}
		pos := sp.start - sp.synthetic
		for _, tok := range t.bpe(piece) {
			width := len(tok)
			if t.byteLevel {
				width = len(ByteLevelDecode(tok))
			}
			start, end := pos, pos+width
			pos = end

			id, ok := t.encoder[tok]
			if !ok {
				if t.unkID < 0 {
					return word, fmt.Errorf("unknown token: %q", tok)
				}
				id = t.unkID
			}
			off := [2]int{base, base + len(text)}
			if exact {
				off = [2]int{base + clamp(start, 0, len(text)), base + clamp(end, 0, len(text))}
			}
			enc.append(id, tok, 0, off, 0, word, 0)
		}
		word++
	}
	return word, nil
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

type textPart struct {
	text  string
	start int
	added *addedToken
}

// splitAdded cuts text around verbatim occurrences of added tokens.
func (t *HFTokenizer) splitAdded(text string) []textPart {
	if len(t.added) == 0 {
		return []textPart{{text: text}}
	}
	var parts []textPart
	last := 0
	for i := 0; i < len(text); {
		if !t.addedFirst[text[i]] {
			i++
			continue
		}
		var match *addedToken
		for k := range t.added {
			c := t.added[k].content
			if strings.HasPrefix(text[i:], c) {
				match = &t.added[k]
				break
			}
		}
		if match == nil {
			i++
			continue
		}
		if i > last {
			parts = append(parts, textPart{text: text[last:i], start: last})
		}
		parts = append(parts, textPart{text: match.content, start: i, added: match})
		i += len(match.content)
		last = i
	}
	if last < len(text) {
		parts = append(parts, textPart{text: text[last:], start: last})
	}
	return parts
}

// Decode joins the tokens for ids back into text. Special added tokens are
// dropped when skipSpecialTokens is set. Invalid UTF-8 produced by partial
// byte sequences is replaced with U+FFFD.
func (t *HFTokenizer) Decode(ids []int, skipSpecialTokens bool) (string, error) {
	var b []byte
	for _, id := range ids {
		if at, ok := t.addedByID[id]; ok {
			if at.special && skipSpecialTokens {
				continue
			}
			b = append(b, at.content...)
			continue
		}
		token, ok := t.decoder[id]
		if !ok {
			return "", fmt.Errorf("token id out of range: %d", id)
		}
		if t.byteLevel {
			b = append(b, ByteLevelDecode(token)...)
		} else {
			b = append(b, token...)
		}
	}
	return strings.ToValidUTF8(string(b), "�"), nil
}

func (t *HFTokenizer) bpe(token string) []string {
	t.mu.Lock()
	v, ok := t.cache[token]
	t.mu.Unlock()
	if ok {
		return v
	}

	word := t.merge(token)

	t.mu.Lock()
	t.cache[token] = word
	t.mu.Unlock()
	return word
}

func (t *HFTokenizer) merge(token string) []string {
	if t.ignoreMerges {
		if _, ok := t.encoder[token]; ok {
			return []string{token}
		}
	}
	word := splitRunes(token)
	pairs := getPairs(word)
	for len(pairs) > 0 {
		bestRank := int(^uint(0) >> 1)
		bestPair := Pair{}
		found := false
		for p := range pairs {
			if rank, ok := t.bpeRanks[p]; ok && rank < bestRank {
				bestRank = rank
				bestPair = p
				found = true
			}
		}
		if !found {
			break
		}
		word = mergePair(word, bestPair)
		if len(word) == 1 {
			break
		}
		pairs = getPairs(word)
	}
	return word
}
