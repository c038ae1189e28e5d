package tokenizer

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"
)

// Pair represents a pair of BPE tokens.
type Pair struct {
	A string
	B string
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

func getPairs(word []string) map[Pair]struct{} {
	pairs := make(map[Pair]struct{})
	if len(word) < 2 {
		return pairs
	}
	prev := word[0]
	for _, w := range word[1:] {
		pairs[Pair{A: prev, B: w}] = struct{}{}
		prev = w
	}
	return pairs
}

func mergePair(word []string, pair Pair) []string {
	var out []string
	for i := 0; i < len(word); i++ {
		if i < len(word)-1 && word[i] == pair.A && word[i+1] == pair.B {
			out = append(out, word[i]+word[i+1])
			i++
			continue
		}
		out = append(out, word[i])
	}
	return out
}

// parseMerges accepts both the legacy "a b" string form and the [a, b] pair
// form used by newer tokenizer.json files. Ranks follow first occurrence.
func parseMerges(raw []any) map[Pair]int {
	ranks := make(map[Pair]int, len(raw))
	rank := 0
	for _, item := range raw {
		var p Pair
		switch v := item.(type) {
		case string:
			line := strings.TrimSpace(v)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			parts := strings.Split(line, " ")
			if len(parts) != 2 {
				continue
			}
			p = Pair{A: parts[0], B: parts[1]}
		case []any:
			if len(v) != 2 {
				continue
			}
			a, aok := v[0].(string)
			b, bok := v[1].(string)
			if !aok || !bok {
				continue
			}
			p = Pair{A: a, B: b}
		default:
			continue
		}
		if _, ok := ranks[p]; !ok {
			ranks[p] = rank
			rank++
		}
	}
	return ranks
}

var byteTables = sync.OnceValues(bytesToUnicode)

// bytesToUnicode maps bytes to unicode strings to make BPE reversible.
func bytesToUnicode() (map[byte]string, map[string]byte) {
	var bs []int
	for i := int('!'); i <= int('~'); i++ {
		bs = append(bs, i)
	}
	for i := int('¡'); i <= int('¬'); i++ {
		bs = append(bs, i)
	}
	for i := int('®'); i <= int('ÿ'); i++ {
		bs = append(bs, i)
	}

	cs := make([]int, len(bs))
	copy(cs, bs)
	n := 0
	for b := 0; b < 256; b++ {
		found := false
		for _, v := range bs {
			if v == b {
				found = true
				break
			}
		}
		if !found {
			bs = append(bs, b)
			cs = append(cs, 256+n)
			n++
		}
	}

	byteEncoder := make(map[byte]string, len(bs))
	byteDecoder := make(map[string]byte, len(bs))
	for i := 0; i < len(bs); i++ {
		b := byte(bs[i])
		s := string(rune(cs[i]))
		byteEncoder[b] = s
		byteDecoder[s] = b
	}
	return byteEncoder, byteDecoder
}

// ByteLevelEncode renders raw bytes in the printable byte-level alphabet used
// by GPT-2 style vocabularies.
func ByteLevelEncode(b []byte) string {
	enc, _ := byteTables()
	var sb strings.Builder
	for _, by := range b {
		sb.WriteString(enc[by])
	}
	return sb.String()
}

// ByteLevelDecode reverses ByteLevelEncode. Runes outside the alphabet are
// copied through as UTF-8.
func ByteLevelDecode(s string) []byte {
	_, dec := byteTables()
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if by, ok := dec[string(r)]; ok {
			out = append(out, by)
			continue
		}
		out = utf8.AppendRune(out, r)
	}
	return out
}

// VerifyByteLevel checks that every byte survives an encode/decode round trip.
func VerifyByteLevel() error {
	enc, dec := byteTables()
	if len(enc) != 256 || len(dec) != 256 {
		return fmt.Errorf("byte-level table size: got %d/%d want 256", len(enc), len(dec))
	}
	for b := 0; b < 256; b++ {
		s := enc[byte(b)]
		if got, ok := dec[s]; !ok || got != byte(b) {
			return fmt.Errorf("byte-level round trip failed for byte %d", b)
		}
	}
	return nil
}
