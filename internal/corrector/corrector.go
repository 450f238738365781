// Package corrector canonicalizes scan-noisy text before any identity
// comparison. Nothing here alters stored data; results are only compared.
package corrector

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// letterLookalikes maps digits that OCR commonly produces inside names back
// to the letter that was printed.
var letterLookalikes = map[rune]rune{
	'0': 'o',
	'1': 'i',
	'3': 'e',
	'4': 'a',
	'5': 's',
	'6': 'g',
	'8': 'b',
}

// digitLookalikes maps letters that OCR commonly produces inside numeric
// identifiers back to the digit that was printed.
var digitLookalikes = map[rune]rune{
	'O': '0', 'o': '0', 'Q': '0', 'D': '0',
	'I': '1', 'i': '1', 'l': '1', '|': '1',
	'Z': '2', 'z': '2',
	'S': '5', 's': '5',
	'G': '6',
	'B': '8',
}

// fold lowercases with Turkish rules, so that "İ" becomes "i" and "I"
// becomes "ı", then drops the dotted/dotless distinction and all combining
// marks. Casers and transformers are stateful, so each call builds its own.
func fold(s string) string {
	s = norm.NFC.String(s)
	s = cases.Lower(language.Turkish).String(s)
	s = strings.ReplaceAll(s, "ı", "i")

	strip := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(strip, s)
	if err != nil {
		return s
	}
	return out
}

// Correct canonicalizes a free-text value such as a student name: Turkish
// aware lowercasing, diacritic folding, digit look-alikes inside words
// replaced by letters, punctuation turned into spaces and whitespace
// collapsed.
func Correct(s string) string {
	s = fold(s)

	tokens := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, tok := range tokens {
		tokens[i] = fixLetters(tok)
	}
	return strings.Join(tokens, " ")
}

// fixLetters replaces look-alike digits in a token that already contains at
// least one letter. Purely numeric tokens are left alone.
func fixLetters(tok string) string {
	hasLetter := false
	for _, r := range tok {
		if unicode.IsLetter(r) {
			hasLetter = true
			break
		}
	}
	if !hasLetter {
		return tok
	}
	return strings.Map(func(r rune) rune {
		if l, ok := letterLookalikes[r]; ok {
			return l
		}
		return r
	}, tok)
}

// CorrectDigits removes whitespace from a numeric identifier and, when the
// value is mostly digits, replaces letter look-alikes with digits.
func CorrectDigits(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)

	var digits, others int
	for _, r := range s {
		if unicode.IsDigit(r) {
			digits++
		} else {
			others++
		}
	}
	if digits == 0 || digits < others {
		return s
	}
	return strings.Map(func(r rune) rune {
		if d, ok := digitLookalikes[r]; ok {
			return d
		}
		return r
	}, s)
}

// NormalizeStudentNumber corrects look-alikes and strips whitespace and
// leading zeros. A number made only of zeros normalizes to "0".
func NormalizeStudentNumber(s string) string {
	s = CorrectDigits(s)
	if s == "" {
		return ""
	}
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

// NormalizeNationalID keeps digits only.
func NormalizeNationalID(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// NormalizeClass folds a class label so that "8-A", "8 / a" and "8A"
// compare equal.
func NormalizeClass(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, fold(s))
}
