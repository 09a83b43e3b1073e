package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Street suffix synonyms folded to their full form so that
// "123 Main St" and "123 Main Street" produce the same canonical address.
var suffixSynonyms = map[string]string{
	"st":   "street",
	"str":  "street",
	"rd":   "road",
	"ave":  "avenue",
	"av":   "avenue",
	"blvd": "boulevard",
	"dr":   "drive",
	"ln":   "lane",
	"ct":   "court",
	"pl":   "place",
	"sq":   "square",
	"cres": "crescent",
	"ter":  "terrace",
	"terr": "terrace",
	"pkwy": "parkway",
	"hwy":  "highway",
	"apt":  "apartment",
	"fl":   "floor",
	"ste":  "suite",
	"bldg": "building",
	"n":    "north",
	"s":    "south",
	"e":    "east",
	"w":    "west",
}

var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// CanonicalAddress lowercases, strips diacritics and punctuation, collapses
// whitespace and folds street-suffix abbreviations. It never fails: input that
// yields nothing after cleanup degrades to the lowercased trimmed original.
func CanonicalAddress(raw string) string {
	tokens := Tokens(raw)
	for i, tok := range tokens {
		if full, ok := suffixSynonyms[tok]; ok {
			tokens[i] = full
		}
	}
	canonical := strings.Join(tokens, " ")
	if canonical == "" {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	return canonical
}

// Tokens lowercases, removes diacritics and punctuation, and splits into
// whitespace-separated tokens. Punctuation becomes a token boundary so
// "gym,wifi" splits cleanly.
func Tokens(raw string) []string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return nil
	}
	if folded, _, err := transform.String(deaccent, s); err == nil {
		s = folded
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}

// TokenSet returns the deduplicated token set for a text field.
func TokenSet(raw string) map[string]struct{} {
	tokens := Tokens(raw)
	if len(tokens) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}

// Jaccard computes intersection-over-union of two token sets.
// Two empty sets score 0: absence of evidence is not similarity.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// JaccardText is Jaccard over the token sets of two raw strings.
func JaccardText(a, b string) float64 {
	return Jaccard(TokenSet(a), TokenSet(b))
}
