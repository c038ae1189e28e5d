package tokenizer

// NoID marks a token that belongs to no word or no sequence, such as a
// template special token.
const NoID = -1

// Encoding is the result of encoding one text. All slices have the same
// length; Offsets is nil when offsets were not requested.
type Encoding struct {
	IDs               []int    `json:"ids"`
	Tokens            []string `json:"tokens"`
	TypeIDs           []int    `json:"type_ids"`
	Offsets           [][2]int `json:"offsets,omitempty"`
	SpecialTokensMask []int    `json:"special_tokens_mask"`
	AttentionMask     []int    `json:"attention_mask"`
	// WordIDs holds the index of the pre-tokenized word each token came
	// from, or NoID.
	WordIDs []int `json:"word_ids"`
	// SequenceIDs is 0 for tokens of the input and NoID for inserted
	// special tokens.
	SequenceIDs []int `json:"sequence_ids"`
}

// Len returns the number of tokens.
func (e *Encoding) Len() int {
	if e == nil {
		return 0
	}
	return len(e.IDs)
}

func newEncoding(capacity int, withOffsets bool) *Encoding {
	enc := &Encoding{
		IDs:               make([]int, 0, capacity),
		Tokens:            make([]string, 0, capacity),
		TypeIDs:           make([]int, 0, capacity),
		SpecialTokensMask: make([]int, 0, capacity),
		AttentionMask:     make([]int, 0, capacity),
		WordIDs:           make([]int, 0, capacity),
		SequenceIDs:       make([]int, 0, capacity),
	}
	if withOffsets {
		enc.Offsets = make([][2]int, 0, capacity)
	}
	return enc
}

func (e *Encoding) append(id int, token string, typeID int, off [2]int, special, word, seq int) {
	e.IDs = append(e.IDs, id)
	e.Tokens = append(e.Tokens, token)
	e.TypeIDs = append(e.TypeIDs, typeID)
	e.SpecialTokensMask = append(e.SpecialTokensMask, special)
	e.AttentionMask = append(e.AttentionMask, 1)
	e.WordIDs = append(e.WordIDs, word)
	e.SequenceIDs = append(e.SequenceIDs, seq)
	if e.Offsets != nil {
		e.Offsets = append(e.Offsets, off)
	}
}

func (e *Encoding) appendSpecial(sp specialPiece) {
	e.append(sp.id, sp.token, sp.typeID, [2]int{}, 1, NoID, NoID)
}
