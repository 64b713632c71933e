package match

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// honorifics stripped from the head or tail of normalized names. Roster
// pages frequently prefix titles that the canonical store does not carry.
var honorifics = []string{
	"mr.", "mr", "mrs.", "mrs", "ms.", "ms", "dr.", "dr",
	"hon.", "hon", "rep.", "rep", "sen.", "sen",
}

// normalizeChain folds width variants (full-width CJK forms), decomposes
// and strips diacritics, and recomposes. Applied before case folding so
// "Ｙａｍａｄａ" and "Yamáda" both land on "yamada".
var normalizeChain = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
	width.Fold,
)

// Normalize canonicalizes a name or affiliation for rule comparison:
// width/diacritic folding, case folding, separator unification, honorific
// stripping, whitespace collapse.
func Normalize(s string) string {
	out, _, err := transform.String(normalizeChain, s)
	if err != nil {
		out = s
	}
	out = cases.Fold().String(out)

	// Unify name separators (interpunct, commas) into spaces.
	out = strings.Map(func(r rune) rune {
		switch r {
		case '・', '･', ',', '、', '·':
			return ' '
		}
		return r
	}, out)

	fields := strings.Fields(out)
	kept := fields[:0]
	for _, f := range fields {
		if isHonorific(f) {
			continue
		}
		kept = append(kept, f)
	}

	return strings.Join(kept, " ")
}

func isHonorific(token string) bool {
	for _, h := range honorifics {
		if token == h {
			return true
		}
	}
	return false
}

// tokens splits a normalized string into comparison tokens.
func tokens(s string) []string {
	return strings.Fields(s)
}

// tokenOverlap returns |a ∩ b| / |a ∪ b| over token sets.
func tokenOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, t := range a {
		set[t] = true
	}
	union := len(set)
	inter := 0
	for _, t := range b {
		if set[t] {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
