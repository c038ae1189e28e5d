package binding

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/samcharles93/tokenscope/internal/tokenizer"
)

const HFModuleName = "hf"

// HFModule builds byte-level BPE tokenizers from HF tokenizer.json text.
// The engine is compiled in, so Load only verifies the byte-level tables.
type HFModule struct {
	loaded atomic.Bool
}

func NewHF() *HFModule {
	return &HFModule{}
}

func (m *HFModule) Name() string     { return HFModuleName }
func (m *HFModule) Artifact() string { return "" }

func (m *HFModule) Load(ctx context.Context, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := tokenizer.VerifyByteLevel(); err != nil {
		return err
	}
	m.loaded.Store(true)
	return nil
}

func (m *HFModule) NewTokenizer(config string) (Tokenizer, error) {
	if !m.loaded.Load() {
		return nil, ErrNotLoaded
	}
	tok, err := tokenizer.LoadHFTokenizerBytes([]byte(config))
	if err != nil {
		return nil, fmt.Errorf("hf: %w", err)
	}
	return tok, nil
}
