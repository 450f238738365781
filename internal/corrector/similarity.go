package corrector

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Similarity corrects both values and returns their similarity in [0, 1].
func Similarity(a, b string) float64 {
	return Ratio(Correct(a), Correct(b))
}

// Ratio scores two already corrected values. It is the better of the plain
// edit-distance ratio and the ratio over token-sorted values, so that
// "yilmaz ayse" and "ayse yilmaz" score 1.
func Ratio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	direct := levenshteinRatio(a, b)
	sa, sb := sortTokens(a), sortTokens(b)
	if sa == a && sb == b {
		return direct
	}
	if sorted := levenshteinRatio(sa, sb); sorted > direct {
		return sorted
	}
	return direct
}

// RatioBound is an upper bound of Ratio derived from lengths alone. Token
// sorting keeps lengths, so the bound holds for both comparisons.
func RatioBound(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la == 0 || lb == 0 {
		return 0
	}
	if la > lb {
		la, lb = lb, la
	}
	return float64(la) / float64(lb)
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	if len(tokens) < 2 {
		return s
	}
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func levenshteinRatio(a, b string) float64 {
	ar, br := []rune(a), []rune(b)
	denom := len(ar)
	if len(br) > denom {
		denom = len(br)
	}
	if denom == 0 {
		return 1
	}
	r := 1 - float64(levenshtein(ar, br))/float64(denom)
	if r < 0 {
		return 0
	}
	return r
}

func levenshtein(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i, ca := range a {
		curr[0] = i + 1
		for j, cb := range b {
			sub := prev[j]
			if ca != cb {
				sub++
			}
			curr[j+1] = min(curr[j]+1, prev[j+1]+1, sub)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
