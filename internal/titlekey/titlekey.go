// Package titlekey derives the comparison key stored next to every ledger
// row. The key folds width and compatibility variants and drops punctuation,
// symbols, separators and control characters, so typographic noise in
// headlines does not hide duplicates from auditors.
package titlekey

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

const (
	RichName     = "rich"
	FallbackName = "fallback"
)

// Strategy computes the comparison key for a title. Implementations must be
// deterministic and map "" to "".
type Strategy interface {
	Name() string
	Key(title string) string
}

// Select returns the strategy configured by name; "" selects Rich.
func Select(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", RichName:
		return Rich{}, nil
	case FallbackName:
		return Fallback{}, nil
	default:
		return nil, fmt.Errorf("unknown title normalizer %q", name)
	}
}

// Rich removes every rune in Unicode categories P, S, Z and Cc after an NFKC
// and width fold. The Katakana prolonged sound mark is a letter (Lm) and stays.
type Rich struct{}

func (Rich) Name() string { return RichName }

func (Rich) Key(title string) string {
	if title == "" {
		return ""
	}
	s := fold(title)
	return strings.Map(func(r rune) rune {
		if unicode.In(r, unicode.P, unicode.S, unicode.Z, unicode.Cc) {
			return -1
		}
		return r
	}, s)
}

// Fallback strips a fixed blocklist instead of whole Unicode categories. Rare
// symbols survive; ASCII punctuation, CJK brackets and punctuation, dashes and
// long vowel marks do not.
type Fallback struct{}

func (Fallback) Name() string { return FallbackName }

func (Fallback) Key(title string) string {
	if title == "" {
		return ""
	}
	s := fold(title)
	return strings.Map(func(r rune) rune {
		if blocked(r) {
			return -1
		}
		return r
	}, s)
}

// fold turns full-width ASCII into ASCII and half-width Katakana into its
// canonical full-width form.
func fold(s string) string {
	return width.Fold.String(norm.NFKC.String(s))
}

const (
	asciiPunct = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
	quotes     = "“”‘’„‟«»‹›"
	cjkPunct   = "、。・，．…‥：；！？／＼｜＋＊〜～＝＿＃＆＠＄％"
	cjkBracket = "「」『』【】《》〈〉〔〕［］｛｝（）＜＞〘〙〚〛｢｣"
	dashes     = "-−‐‑‒–—―－ーｰ"
)

var blocklist = func() map[rune]struct{} {
	m := make(map[rune]struct{})
	for _, set := range []string{asciiPunct, quotes, cjkPunct, cjkBracket, dashes} {
		for _, r := range set {
			m[r] = struct{}{}
		}
	}
	return m
}()

func blocked(r rune) bool {
	if unicode.IsSpace(r) || r < 0x20 || r == 0x7f {
		return true
	}
	_, ok := blocklist[r]
	return ok
}
