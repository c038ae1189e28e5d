package tokenizer

import "fmt"

// specialPiece is a token the post-processor inserts around a sequence.
type specialPiece struct {
	id     int
	token  string
	typeID int
}

// postProcessor wraps a single encoded sequence with special tokens.
type postProcessor struct {
	prefix    []specialPiece
	suffix    []specialPiece
	seqTypeID int
}

func (p *postProcessor) empty() bool {
	return p == nil || (len(p.prefix) == 0 && len(p.suffix) == 0)
}

func buildPostProcessor(cfg *postProcessorJSON, vocab map[string]int) (*postProcessor, error) {
	p := &postProcessor{}
	if cfg == nil {
		return p, nil
	}
	if err := p.add(cfg, vocab); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *postProcessor) add(cfg *postProcessorJSON, vocab map[string]int) error {
	switch cfg.Type {
	case "", "ByteLevel":
		return nil
	case "Sequence":
		for i := range cfg.Processors {
			if err := p.add(&cfg.Processors[i], vocab); err != nil {
				return err
			}
		}
		return nil
	case "TemplateProcessing":
		seen := false
		for _, item := range cfg.Single {
			switch {
			case item.Sequence != nil:
				seen = true
				p.seqTypeID = item.Sequence.TypeID
			case item.SpecialToken != nil:
				spec, ok := cfg.SpecialTokens[item.SpecialToken.ID]
				if !ok || len(spec.IDs) == 0 {
					return fmt.Errorf("template special token %q has no ids", item.SpecialToken.ID)
				}
				for i, id := range spec.IDs {
					tok := item.SpecialToken.ID
					if i < len(spec.Tokens) {
						tok = spec.Tokens[i]
					}
					sp := specialPiece{id: id, token: tok, typeID: item.SpecialToken.TypeID}
					if seen {
						p.suffix = append(p.suffix, sp)
					} else {
						p.prefix = append(p.prefix, sp)
					}
				}
			}
		}
		return nil
	case "RobertaProcessing", "BertProcessing":
		cls, err := tokenPair(cfg.CLS, vocab)
		if err != nil {
			return fmt.Errorf("%s cls: %w", cfg.Type, err)
		}
		sep, err := tokenPair(cfg.SEP, vocab)
		if err != nil {
			return fmt.Errorf("%s sep: %w", cfg.Type, err)
		}
		p.prefix = append(p.prefix, cls)
		p.suffix = append(p.suffix, sep)
		return nil
	default:
		return fmt.Errorf("unsupported post-processor: %s", cfg.Type)
	}
}

// tokenPair decodes the ["token", id] form used by Roberta/Bert processors.
func tokenPair(raw []any, vocab map[string]int) (specialPiece, error) {
	if len(raw) != 2 {
		return specialPiece{}, fmt.Errorf("expected [token, id]")
	}
	tok, ok := raw[0].(string)
	if !ok {
		return specialPiece{}, fmt.Errorf("token must be a string")
	}
	switch v := raw[1].(type) {
	case float64:
		return specialPiece{id: int(v), token: tok}, nil
	case int64:
		return specialPiece{id: int(v), token: tok}, nil
	case uint64:
		return specialPiece{id: int(v), token: tok}, nil
	}
	if id, ok := vocab[tok]; ok {
		return specialPiece{id: id, token: tok}, nil
	}
	return specialPiece{}, fmt.Errorf("id for %q is not a number", tok)
}

func (p *postProcessor) apply(enc *Encoding) {
	if p.empty() {
		return
	}
	n := len(p.prefix) + len(enc.IDs) + len(p.suffix)
	out := newEncoding(n, enc.Offsets != nil)
	for _, sp := range p.prefix {
		out.appendSpecial(sp)
	}
	for i := range enc.IDs {
		var off [2]int
		if enc.Offsets != nil {
			off = enc.Offsets[i]
		}
		out.append(enc.IDs[i], enc.Tokens[i], p.seqTypeID, off, enc.SpecialTokensMask[i], enc.WordIDs[i], enc.SequenceIDs[i])
	}
	for _, sp := range p.suffix {
		out.appendSpecial(sp)
	}
	*enc = *out
}
