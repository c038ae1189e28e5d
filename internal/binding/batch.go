package binding

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// EncodeBatch encodes texts concurrently. Results keep input order; the
// first error cancels the remaining work.
func EncodeBatch(ctx context.Context, tok Tokenizer, texts []string, addSpecialTokens bool) ([]*Encoding, error) {
	return encodeBatch(ctx, texts, func(text string) (*Encoding, error) {
		return tok.Encode(text, addSpecialTokens)
	})
}

// EncodeBatchFast is EncodeBatch without offsets.
func EncodeBatchFast(ctx context.Context, tok Tokenizer, texts []string, addSpecialTokens bool) ([]*Encoding, error) {
	return encodeBatch(ctx, texts, func(text string) (*Encoding, error) {
		return tok.EncodeFast(text, addSpecialTokens)
	})
}

func encodeBatch(ctx context.Context, texts []string, encode func(string) (*Encoding, error)) ([]*Encoding, error) {
	out := make([]*Encoding, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, text := range texts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			enc, err := encode(text)
			if err != nil {
				return fmt.Errorf("encode item %d: %w", i, err)
			}
			out[i] = enc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeBatch decodes each id sequence concurrently, preserving order.
func DecodeBatch(ctx context.Context, tok Tokenizer, batch [][]int, skipSpecialTokens bool) ([]string, error) {
	out := make([]string, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, ids := range batch {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			text, err := tok.Decode(ids, skipSpecialTokens)
			if err != nil {
				return fmt.Errorf("decode item %d: %w", i, err)
			}
			out[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
