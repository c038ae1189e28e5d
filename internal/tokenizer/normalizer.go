package tokenizer

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

type normalizer func(string) string

func buildNormalizer(cfg *normalizerJSON) (normalizer, error) {
	if cfg == nil {
		return nil, nil
	}
	switch cfg.Type {
	case "NFC":
		return norm.NFC.String, nil
	case "NFD":
		return norm.NFD.String, nil
	case "NFKC":
		return norm.NFKC.String, nil
	case "NFKD":
		return norm.NFKD.String, nil
	case "Lowercase":
		return strings.ToLower, nil
	case "Sequence":
		steps := make([]normalizer, 0, len(cfg.Normalizers))
		for i := range cfg.Normalizers {
			n, err := buildNormalizer(&cfg.Normalizers[i])
			if err != nil {
				return nil, err
			}
			if n != nil {
				steps = append(steps, n)
			}
		}
		return func(s string) string {
			for _, step := range steps {
				s = step(s)
			}
			return s
		}, nil
	default:
		return nil, fmt.Errorf("unsupported normalizer: %s", cfg.Type)
	}
}
