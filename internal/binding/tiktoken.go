package binding

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"

	"github.com/samcharles93/tokenscope/internal/tokenizer"
)

const (
	TiktokenModuleName = "tiktoken"
	tiktokenArtifact   = "encodings"
)

// TiktokenModule serves OpenAI BPE encodings through tiktoken-go. Load
// decides where rank files come from: the rank files embedded in the binary
// when the location is empty, a directory of <name>.tiktoken files, or an
// http(s) base URL.
type TiktokenModule struct {
	loaded atomic.Bool
}

func NewTiktoken() *TiktokenModule {
	return &TiktokenModule{}
}

func (m *TiktokenModule) Name() string     { return TiktokenModuleName }
func (m *TiktokenModule) Artifact() string { return tiktokenArtifact }

func (m *TiktokenModule) Load(ctx context.Context, location string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch {
	case location == "":
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	case strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://"):
		tiktoken.SetBpeLoader(mirrorRanks(strings.TrimSuffix(location, "/")))
	default:
		st, err := os.Stat(location)
		if err != nil {
			return fmt.Errorf("tiktoken encodings: %w", err)
		}
		if !st.IsDir() {
			return fmt.Errorf("tiktoken encodings path is not a directory: %s", location)
		}
		tiktoken.SetBpeLoader(dirRanks(location))
	}
	m.loaded.Store(true)
	return nil
}

// NewTokenizer accepts an encoding name ("cl100k_base") or a model name
// ("gpt-4o").
func (m *TiktokenModule) NewTokenizer(config string) (Tokenizer, error) {
	if !m.loaded.Load() {
		return nil, ErrNotLoaded
	}
	name := strings.TrimSpace(config)
	if name == "" {
		return nil, fmt.Errorf("tiktoken: empty encoding name")
	}
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		var modelErr error
		enc, modelErr = tiktoken.EncodingForModel(name)
		if modelErr != nil {
			return nil, fmt.Errorf("tiktoken: %q is neither an encoding nor a known model: %w", name, err)
		}
	}
	return &tiktokenTokenizer{enc: enc}, nil
}

type tiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

func (t *tiktokenTokenizer) Encode(text string, addSpecialTokens bool) (*Encoding, error) {
	return t.encode(text, addSpecialTokens, true)
}

func (t *tiktokenTokenizer) EncodeFast(text string, addSpecialTokens bool) (*Encoding, error) {
	return t.encode(text, addSpecialTokens, false)
}

// encode treats addSpecialTokens as permission to map special token text in
// the input to its reserved id; tiktoken encodings have no template tokens.
// tiktoken-go does not expose its pre-tokenizer splits, so word ids are NoID.
func (t *tiktokenTokenizer) encode(text string, addSpecialTokens, withOffsets bool) (*Encoding, error) {
	var allowed []string
	if addSpecialTokens {
		allowed = []string{"all"}
	}
	ids := t.enc.Encode(text, allowed, nil)
	enc := &Encoding{
		IDs:               ids,
		Tokens:            make([]string, len(ids)),
		TypeIDs:           make([]int, len(ids)),
		SpecialTokensMask: make([]int, len(ids)),
		AttentionMask:     make([]int, len(ids)),
		WordIDs:           make([]int, len(ids)),
		SequenceIDs:       make([]int, len(ids)),
	}
	if withOffsets {
		enc.Offsets = make([][2]int, len(ids))
	}
	pos := 0
	for i, id := range ids {
		raw := t.enc.Decode([]int{id})
		enc.Tokens[i] = tokenizer.ByteLevelEncode([]byte(raw))
		enc.AttentionMask[i] = 1
		enc.WordIDs[i] = tokenizer.NoID
		if addSpecialTokens && isSpecialText(raw) {
			enc.SpecialTokensMask[i] = 1
		}
		if withOffsets {
			enc.Offsets[i] = [2]int{pos, pos + len(raw)}
		}
		pos += len(raw)
	}
	return enc, nil
}

func (t *tiktokenTokenizer) Decode(ids []int, skipSpecialTokens bool) (string, error) {
	keep := make([]int, 0, len(ids))
	for _, id := range ids {
		raw := t.enc.Decode([]int{id})
		if raw == "" {
			return "", fmt.Errorf("token id out of range: %d", id)
		}
		if skipSpecialTokens && isSpecialText(raw) {
			continue
		}
		keep = append(keep, id)
	}
	return strings.ToValidUTF8(t.enc.Decode(keep), "�"), nil
}

// isSpecialText matches the <|name|> form every tiktoken special token uses.
func isSpecialText(s string) bool {
	return len(s) >= 4 && strings.HasPrefix(s, "<|") && strings.HasSuffix(s, "|>")
}

// dirRanks reads rank files from a local directory, keyed by the base name
// of the URL tiktoken-go asks for.
type dirRanks string

func (d dirRanks) LoadTiktokenBpe(tiktokenBpeFile string) (map[string]int, error) {
	return tiktoken.NewDefaultBpeLoader().LoadTiktokenBpe(filepath.Join(string(d), path.Base(tiktokenBpeFile)))
}

// mirrorRanks fetches rank files from a base URL instead of the OpenAI blob
// store.
type mirrorRanks string

func (m mirrorRanks) LoadTiktokenBpe(tiktokenBpeFile string) (map[string]int, error) {
	return tiktoken.NewDefaultBpeLoader().LoadTiktokenBpe(string(m) + "/" + path.Base(tiktokenBpeFile))
}
