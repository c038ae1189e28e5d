package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultSources are the tokenizer configs offered by the demo.
var DefaultSources = []string{
	"https://huggingface.co/Qwen/Qwen2.5-0.5B/resolve/main/tokenizer.json",
	"https://hf-mirror.com/Qwen/Qwen2.5-0.5B/resolve/main/tokenizer.json",
}

const (
	DefaultMaxBytes = 64 << 20
	inlinePrefix    = "inline:"
)

// ErrLocalSource is returned for file:// and path sources when the fetcher
// does not allow local reads.
var ErrLocalSource = errors.New("local tokenizer sources are disabled")

// Fetcher retrieves tokenizer config text from a source.
type Fetcher interface {
	Fetch(ctx context.Context, source string) (string, error)
}

type FetcherOptions struct {
	Client  *http.Client
	Timeout time.Duration
	// RPS throttles outbound requests. Zero disables throttling.
	RPS      float64
	Burst    int
	MaxBytes int64
	// AllowLocal permits file:// URLs and bare filesystem paths.
	AllowLocal bool
}

// HTTPFetcher issues a plain GET for http(s) sources. With AllowLocal it also
// reads file:// URLs and bare paths from disk. An inline: prefix carries the
// config itself, which suits short configs such as a tiktoken encoding name.
// No auth, no retries.
type HTTPFetcher struct {
	client     *http.Client
	limiter    *rate.Limiter
	maxBytes   int64
	allowLocal bool
}

func NewHTTPFetcher(opts FetcherOptions) *HTTPFetcher {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RPS > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &HTTPFetcher{client: client, limiter: limiter, maxBytes: maxBytes, allowLocal: opts.AllowLocal}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, source string) (string, error) {
	switch {
	case strings.HasPrefix(source, inlinePrefix):
		return strings.TrimPrefix(source, inlinePrefix), nil
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return f.fetchHTTP(ctx, source)
	case !f.allowLocal:
		return "", fmt.Errorf("%w: %s", ErrLocalSource, source)
	case strings.HasPrefix(source, "file://"):
		u, err := url.Parse(source)
		if err != nil {
			return "", fmt.Errorf("parse %s: %w", source, err)
		}
		return f.readFile(u.Path)
	default:
		return f.readFile(source)
	}
}

func (f *HTTPFetcher) fetchHTTP(ctx context.Context, source string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return "", err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{URL: source, Status: resp.StatusCode}
	}
	return f.readAll(resp.Body)
}

func (f *HTTPFetcher) readFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = file.Close() }()
	return f.readAll(file)
}

func (f *HTTPFetcher) readAll(r io.Reader) (string, error) {
	body, err := io.ReadAll(io.LimitReader(r, f.maxBytes+1))
	if err != nil {
		return "", err
	}
	if int64(len(body)) > f.maxBytes {
		return "", fmt.Errorf("tokenizer config exceeds %d bytes", f.maxBytes)
	}
	return string(body), nil
}
