// Package session drives the demo: it loads a tokenizer from a config
// source, runs tokenize requests against it and keeps the state a display
// layer renders.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/samcharles93/tokenscope/internal/binding"
	"github.com/samcharles93/tokenscope/internal/bootstrap"
	"github.com/samcharles93/tokenscope/internal/logger"
	"github.com/samcharles93/tokenscope/internal/metrics"
)

type Options struct {
	Fetcher Fetcher
	Logger  logger.Logger
	Metrics *metrics.Collector
}

// Controller owns at most one tokenizer instance. It guards its fields but
// does not serialize operations: overlapping loads are not cancelled and the
// last one to finish wins.
type Controller struct {
	boot    *bootstrap.Initializer
	fetcher Fetcher
	log     logger.Logger
	metrics *metrics.Collector
	id      uuid.UUID

	mu      sync.Mutex
	tok     binding.Tokenizer
	source  string
	loading int
	errMsg  string
	result  *Result
}

func NewController(boot *bootstrap.Initializer, opts Options) *Controller {
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = NewHTTPFetcher(FetcherOptions{})
	}
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	id := uuid.New()
	return &Controller{
		boot:    boot,
		fetcher: fetcher,
		log:     log.With("component", "session", "session_id", id.String()),
		metrics: opts.Metrics,
		id:      id,
	}
}

// LoadTokenizer initializes the module, fetches source and builds a new
// instance from it. On success the instance replaces the current one and
// results are cleared. On failure the current instance and results stay.
func (c *Controller) LoadTokenizer(ctx context.Context, source string) (binding.Tokenizer, error) {
	source = strings.TrimSpace(source)

	c.mu.Lock()
	c.loading++
	c.errMsg = ""
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.loading--
		c.mu.Unlock()
	}()

	tok, err := c.load(ctx, source)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.errMsg = Message(err)
		c.metrics.RecordTokenizerLoad(loadResult(err))
		c.log.Warn("tokenizer load failed", "source", source, "error", err)
		return nil, err
	}
	c.tok = tok
	c.source = source
	c.result = nil
	c.metrics.RecordTokenizerLoad("ok")
	c.log.Info("tokenizer loaded", "source", source)
	return tok, nil
}

func (c *Controller) load(ctx context.Context, source string) (binding.Tokenizer, error) {
	if source == "" {
		return nil, &LoadError{Kind: FetchFailed, Err: errors.New("empty source")}
	}
	if err := c.boot.Initialize(ctx); err != nil {
		return nil, err
	}
	config, err := c.fetcher.Fetch(ctx, source)
	if err != nil {
		return nil, &LoadError{Kind: FetchFailed, Source: source, Err: err}
	}
	tok, err := c.boot.Module().NewTokenizer(config)
	if err != nil {
		return nil, &LoadError{Kind: ConstructionFailed, Source: source, Err: err}
	}
	return tok, nil
}

func loadResult(err error) string {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Kind.String()
	}
	var initErr *bootstrap.InitError
	if errors.As(err, &initErr) {
		return "init_failed"
	}
	return "error"
}

// Tokenize runs text through the loaded instance and stores the result.
// Blank text or a missing instance is a no-op that returns the current
// result.
func (c *Controller) Tokenize(ctx context.Context, text string) (*Result, error) {
	c.mu.Lock()
	tok, source, current := c.tok, c.source, c.result
	c.mu.Unlock()

	if tok == nil || strings.TrimSpace(text) == "" {
		return current, nil
	}
	if err := ctx.Err(); err != nil {
		return current, err
	}

	res, err := Tokenize(tok, text)
	c.metrics.RecordTokenize(tokenCount(res), err)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.errMsg = Message(err)
		c.log.Warn("tokenize failed", "error", err)
		return nil, err
	}
	res.Source = source
	c.errMsg = ""
	c.result = res
	c.log.Debug("tokenized", "tokens", len(res.Tokens), "input_length", res.InputLength)
	return res, nil
}

func tokenCount(res *Result) int {
	if res == nil {
		return 0
	}
	return len(res.Tokens)
}

// EncodeBatch encodes texts with the loaded instance, concurrently and in
// input order. Offsets are computed only when withOffsets is set. The stored
// result is left alone.
func (c *Controller) EncodeBatch(ctx context.Context, texts []string, addSpecialTokens, withOffsets bool) ([]*binding.Encoding, error) {
	tok := c.Tokenizer()
	if tok == nil {
		return nil, ErrNoTokenizer
	}
	encode := binding.EncodeBatchFast
	if withOffsets {
		encode = binding.EncodeBatch
	}
	encs, err := encode(ctx, tok, texts, addSpecialTokens)
	if err != nil {
		return nil, &TokenizeError{Stage: "encode batch", Err: err}
	}
	return encs, nil
}

// DecodeBatch decodes each id sequence with the loaded instance.
func (c *Controller) DecodeBatch(ctx context.Context, batch [][]int, skipSpecialTokens bool) ([]string, error) {
	tok := c.Tokenizer()
	if tok == nil {
		return nil, ErrNoTokenizer
	}
	texts, err := binding.DecodeBatch(ctx, tok, batch, skipSpecialTokens)
	if err != nil {
		return nil, &TokenizeError{Stage: "decode batch", Err: err}
	}
	return texts, nil
}

// Tokenizer returns the loaded instance, or nil.
func (c *Controller) Tokenizer() binding.Tokenizer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tok
}

type Snapshot struct {
	SessionID   string  `json:"session_id"`
	Module      string  `json:"module"`
	Strategy    string  `json:"strategy"`
	ModuleState string  `json:"module_state"`
	ModuleError string  `json:"module_error,omitempty"`
	Source      string  `json:"source,omitempty"`
	Loading     bool    `json:"loading"`
	Loaded      bool    `json:"loaded"`
	Error       string  `json:"error,omitempty"`
	Result      *Result `json:"result,omitempty"`
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		SessionID:   c.id.String(),
		Module:      c.boot.Module().Name(),
		Strategy:    string(c.boot.Strategy()),
		ModuleState: c.boot.State().String(),
		ModuleError: Message(c.boot.Err()),
		Source:      c.source,
		Loading:     c.loading > 0,
		Loaded:      c.tok != nil,
		Error:       c.errMsg,
		Result:      c.result,
	}
}
