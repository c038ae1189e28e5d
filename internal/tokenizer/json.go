package tokenizer

// tokenizerJSON is the subset of the HF tokenizer.json layout the engine reads.
type tokenizerJSON struct {
	Model struct {
		Type         string         `json:"type"`
		Vocab        map[string]int `json:"vocab"`
		Merges       []any          `json:"merges"`
		IgnoreMerges bool           `json:"ignore_merges"`
		UnkToken     *string        `json:"unk_token"`
	} `json:"model"`
	Normalizer    *normalizerJSON    `json:"normalizer"`
	PreTokenizer  *preTokenizerJSON  `json:"pre_tokenizer"`
	PostProcessor *postProcessorJSON `json:"post_processor"`
	Decoder       *decoderJSON       `json:"decoder"`
	AddedTokens   []struct {
		ID      int    `json:"id"`
		Content string `json:"content"`
		Special bool   `json:"special"`
	} `json:"added_tokens"`
}

type normalizerJSON struct {
	Type        string           `json:"type"`
	Normalizers []normalizerJSON `json:"normalizers"`
}

type patternJSON struct {
	Regex  string `json:"Regex"`
	String string `json:"String"`
}

type preTokenizerJSON struct {
	Type             string             `json:"type"`
	AddPrefixSpace   bool               `json:"add_prefix_space"`
	UseRegex         *bool              `json:"use_regex"`
	Pattern          patternJSON        `json:"pattern"`
	Behavior         string             `json:"behavior"`
	Invert           bool               `json:"invert"`
	IndividualDigits bool               `json:"individual_digits"`
	Pretokenizers    []preTokenizerJSON `json:"pretokenizers"`
}

type templatePieceJSON struct {
	SpecialToken *struct {
		ID     string `json:"id"`
		TypeID int    `json:"type_id"`
	} `json:"SpecialToken"`
	Sequence *struct {
		ID     string `json:"id"`
		TypeID int    `json:"type_id"`
	} `json:"Sequence"`
}

type postProcessorJSON struct {
	Type          string              `json:"type"`
	Single        []templatePieceJSON `json:"single"`
	SpecialTokens map[string]struct {
		ID     string   `json:"id"`
		IDs    []int    `json:"ids"`
		Tokens []string `json:"tokens"`
	} `json:"special_tokens"`
	CLS        []any               `json:"cls"`
	SEP        []any               `json:"sep"`
	Processors []postProcessorJSON `json:"processors"`
}

type decoderJSON struct {
	Type     string        `json:"type"`
	Decoders []decoderJSON `json:"decoders"`
}
