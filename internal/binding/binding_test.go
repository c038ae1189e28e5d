package binding_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samcharles93/tokenscope/internal/binding"
	"github.com/samcharles93/tokenscope/internal/tokenizer/tokenizertest"
)

func loadedHF(t *testing.T) binding.Tokenizer {
	t.Helper()
	mod := binding.NewHF()
	require.NoError(t, mod.Load(context.Background(), ""))
	tok, err := mod.NewTokenizer(tokenizertest.JSON(tokenizertest.Options{}))
	require.NoError(t, err)
	return tok
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"hf", "tiktoken"}, binding.Names())

	mod, err := binding.Lookup("hf")
	require.NoError(t, err)
	assert.Equal(t, "hf", mod.Name())
	assert.Empty(t, mod.Artifact())

	mod, err = binding.Lookup("tiktoken")
	require.NoError(t, err)
	assert.Equal(t, "encodings", mod.Artifact())

	_, err = binding.Lookup("sentencepiece")
	assert.Error(t, err)
}

func TestNewTokenizerRequiresLoad(t *testing.T) {
	t.Parallel()

	for _, name := range binding.Names() {
		mod, err := binding.Lookup(name)
		require.NoError(t, err)
		_, err = mod.NewTokenizer("anything")
		assert.ErrorIs(t, err, binding.ErrNotLoaded, name)
	}
}

func TestHFLoadHonoursCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mod := binding.NewHF()
	require.ErrorIs(t, mod.Load(ctx, ""), context.Canceled)
	_, err := mod.NewTokenizer(tokenizertest.JSON(tokenizertest.Options{}))
	assert.ErrorIs(t, err, binding.ErrNotLoaded)
}

func TestHFRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	mod := binding.NewHF()
	require.NoError(t, mod.Load(context.Background(), ""))
	_, err := mod.NewTokenizer("not json")
	assert.Error(t, err)
}

func TestEncodeBatchKeepsOrder(t *testing.T) {
	t.Parallel()

	tok := loadedHF(t)
	texts := make([]string, 32)
	for i := range texts {
		if i%2 == 0 {
			texts[i] = "Hello"
		} else {
			texts[i] = " world"
		}
	}
	encs, err := binding.EncodeBatch(context.Background(), tok, texts, false)
	require.NoError(t, err)
	require.Len(t, encs, len(texts))
	for i, enc := range encs {
		want := tokenizertest.IDHello
		if i%2 == 1 {
			want = tokenizertest.IDSpaceWorld
		}
		assert.Equal(t, []int{want}, enc.IDs, "item %d", i)
		assert.NotNil(t, enc.Offsets)
	}

	fast, err := binding.EncodeBatchFast(context.Background(), tok, texts[:2], false)
	require.NoError(t, err)
	assert.Nil(t, fast[0].Offsets)
}

func TestDecodeBatch(t *testing.T) {
	t.Parallel()

	tok := loadedHF(t)
	got, err := binding.DecodeBatch(context.Background(), tok, [][]int{
		{tokenizertest.IDHello, tokenizertest.IDSpaceWorld},
		{tokenizertest.IDEndOfText, tokenizertest.IDHello},
	}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello world", "Hello"}, got)

	_, err = binding.DecodeBatch(context.Background(), tok, [][]int{{1 << 20}}, true)
	assert.Error(t, err)
}

type failingTokenizer struct{ binding.Tokenizer }

var errBoom = errors.New("boom")

func (failingTokenizer) Encode(text string, _ bool) (*binding.Encoding, error) {
	if text == "bad" {
		return nil, errBoom
	}
	return &binding.Encoding{}, nil
}

func TestEncodeBatchReportsFailingItem(t *testing.T) {
	t.Parallel()

	_, err := binding.EncodeBatch(context.Background(), failingTokenizer{}, []string{"ok", "bad"}, true)
	require.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), fmt.Sprintf("item %d", 1))
}

func TestTiktokenEmbeddedRanks(t *testing.T) {
	t.Parallel()

	mod := binding.NewTiktoken()
	require.NoError(t, mod.Load(context.Background(), ""))

	tok, err := mod.NewTokenizer(" cl100k_base\n")
	require.NoError(t, err)

	enc, err := tok.Encode("Hello world<|endoftext|>", true)
	require.NoError(t, err)
	assert.Equal(t, []int{9906, 1917, 100257}, enc.IDs)
	assert.Equal(t, []int{0, 0, 1}, enc.SpecialTokensMask)
	assert.Equal(t, [2]int{5, 11}, enc.Offsets[1])
	assert.Equal(t, []int{binding.NoID, binding.NoID, binding.NoID}, enc.WordIDs)
	assert.Equal(t, []int{0, 0, 0}, enc.SequenceIDs)

	text, err := tok.Decode(enc.IDs, true)
	require.NoError(t, err)
	assert.Equal(t, "Hello world", text)

	_, err = mod.NewTokenizer("gpt-4")
	require.NoError(t, err)
	_, err = mod.NewTokenizer("no-such-encoding")
	assert.Error(t, err)
}
