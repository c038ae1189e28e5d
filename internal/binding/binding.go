// Package binding defines the capability boundary around a tokenizer engine:
// a Module that is loaded once and then constructs Tokenizer handles from
// configuration text. Callers depend only on these interfaces.
package binding

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/samcharles93/tokenscope/internal/tokenizer"
)

// Encoding is the output of a single encode call.
type Encoding = tokenizer.Encoding

// NoID marks Encoding word or sequence entries that have no value.
const NoID = tokenizer.NoID

// ErrNotLoaded is returned by NewTokenizer before Load has succeeded.
var ErrNotLoaded = errors.New("tokenizer module is not loaded")

// Tokenizer is an opaque handle built from a tokenizer configuration.
type Tokenizer interface {
	Encode(text string, addSpecialTokens bool) (*Encoding, error)
	EncodeFast(text string, addSpecialTokens bool) (*Encoding, error)
	Decode(ids []int, skipSpecialTokens bool) (string, error)
}

// Module is a loadable tokenizer engine.
type Module interface {
	// Name identifies the module in config and logs.
	Name() string
	// Artifact is the resource the module loads, relative to its install
	// directory. Empty when the module is self-contained.
	Artifact() string
	// Load prepares the module. An empty location asks the module to resolve
	// its own resources.
	Load(ctx context.Context, location string) error
	// NewTokenizer builds a tokenizer from configuration text.
	NewTokenizer(config string) (Tokenizer, error)
}

var registry = map[string]func() Module{
	HFModuleName:       func() Module { return NewHF() },
	TiktokenModuleName: func() Module { return NewTiktoken() },
}

// Lookup returns a fresh module by name.
func Lookup(name string) (Module, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown tokenizer module %q (available: %v)", name, Names())
	}
	return ctor(), nil
}

// Names lists registered module names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
