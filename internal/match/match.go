// Package match implements the approximate name matching used to resolve
// informally typed category and wallet names ("an uong", "vi tien mat")
// against the user's stored entities.
package match

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Candidate is one stored entity a query name can resolve to.
type Candidate struct {
	ID   int64
	Name string
}

// Normalize lowercases, strips diacritics, collapses every run of
// non-alphanumeric characters to a single space and trims. Both query and
// candidate names go through it before scoring, so "Ăn uống" and "an uong"
// normalize to the same string.
func Normalize(s string) string {
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range norm.NFD.String(s) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		// Vietnamese đ does not decompose under NFD.
		if r == 'đ' {
			r = 'd'
		}
		b.WriteRune(r)
	}

	var out strings.Builder
	space := false
	for _, r := range b.String() {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && out.Len() > 0 {
				out.WriteByte(' ')
			}
			space = false
			out.WriteRune(r)
		} else {
			space = true
		}
	}
	return out.String()
}

// Dice is the character-bigram Dice coefficient over the two strings with
// whitespace removed: 2×|intersection| / (|A|+|B|), counting the multiset
// intersection so each shared bigram is consumed once. Identical strings
// score 1 even when too short to produce a bigram.
func Dice(a, b string) float64 {
	if a == b {
		if a == "" {
			return 0
		}
		return 1
	}
	ga := bigrams(a)
	gb := bigrams(b)
	if len(ga) == 0 && len(gb) == 0 {
		return 0
	}

	counts := make(map[string]int, len(ga))
	total := 0
	for _, g := range ga {
		counts[g]++
		total++
	}
	shared := 0
	for _, g := range gb {
		total++
		if counts[g] > 0 {
			counts[g]--
			shared++
		}
	}
	return 2 * float64(shared) / float64(total)
}

// Score rates a normalized query against a normalized candidate name:
// exact match 1.0, substring containment either way 0.9, otherwise the
// bigram Dice coefficient.
func Score(query, candidate string) float64 {
	if query == "" || candidate == "" {
		return 0
	}
	if query == candidate {
		return 1.0
	}
	if strings.Contains(candidate, query) || strings.Contains(query, candidate) {
		return 0.9
	}
	return Dice(query, candidate)
}

// Best returns the highest-scoring candidate for the raw query name. The
// caller applies its own acceptance threshold; ok is false only when the
// candidate list is empty or the query normalizes to nothing.
func Best(rawQuery string, candidates []Candidate) (best Candidate, score float64, ok bool) {
	q := Normalize(rawQuery)
	if q == "" || len(candidates) == 0 {
		return Candidate{}, 0, false
	}
	score = -1
	for _, c := range candidates {
		if s := Score(q, Normalize(c.Name)); s > score {
			best, score = c, s
		}
	}
	return best, score, true
}

func bigrams(s string) []string {
	runes := make([]rune, 0, len(s))
	for _, r := range s {
		if !unicode.IsSpace(r) {
			runes = append(runes, r)
		}
	}
	if len(runes) < 2 {
		return nil
	}
	grams := make([]string, 0, len(runes)-1)
	for i := 0; i+1 < len(runes); i++ {
		grams = append(grams, string(runes[i:i+2]))
	}
	return grams
}
