package session

import (
	"errors"
	"fmt"

	"github.com/samcharles93/tokenscope/internal/bootstrap"
)

// ErrNoTokenizer is returned by batch operations before any tokenizer has
// been loaded.
var ErrNoTokenizer = errors.New("no tokenizer loaded")

type LoadErrorKind int

const (
	FetchFailed LoadErrorKind = iota + 1
	ConstructionFailed
)

func (k LoadErrorKind) String() string {
	switch k {
	case FetchFailed:
		return "fetch_failed"
	case ConstructionFailed:
		return "construction_failed"
	default:
		return "unknown"
	}
}

// LoadError is returned by LoadTokenizer when the config could not be
// fetched or the module rejected it.
type LoadError struct {
	Kind   LoadErrorKind
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	switch e.Kind {
	case FetchFailed:
		return fmt.Sprintf("fetch tokenizer config %s: %v", e.Source, e.Err)
	default:
		return fmt.Sprintf("construct tokenizer from %s: %v", e.Source, e.Err)
	}
}

func (e *LoadError) Unwrap() error { return e.Err }

// TokenizeError wraps an encode or decode failure. Stage names the call
// that failed.
type TokenizeError struct {
	Stage string
	Err   error
}

func (e *TokenizeError) Error() string {
	return fmt.Sprintf("tokenize: %s: %v", e.Stage, e.Err)
}

func (e *TokenizeError) Unwrap() error { return e.Err }

// StatusError is a non-2xx response from a config source.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Status)
}

// Message renders err as the single line shown to the user.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var (
		initErr     *bootstrap.InitError
		loadErr     *LoadError
		tokenizeErr *TokenizeError
	)
	switch {
	case errors.As(err, &initErr):
		return "Failed to initialize tokenizer: " + initErr.Err.Error()
	case errors.As(err, &loadErr) && loadErr.Kind == FetchFailed:
		return "Failed to fetch tokenizer config: " + loadErr.Err.Error()
	case errors.As(err, &loadErr):
		return "Failed to initialize tokenizer: " + loadErr.Err.Error()
	case errors.As(err, &tokenizeErr):
		return "Tokenization failed: " + tokenizeErr.Err.Error()
	default:
		return err.Error()
	}
}
