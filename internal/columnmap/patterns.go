package columnmap

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/stemsi/exstem-ingest/internal/corrector"
	"github.com/stemsi/exstem-ingest/internal/model"
)

// answerRunes are characters an optical reader writes into an answer
// string: choices plus the usual blank markers.
const answerRunes = "ABCDEabcde -*.?_"

var classPattern = regexp.MustCompile(`^\d{1,2}\s*[-/.]?\s*\p{L}{1,3}$`)

// matcher decides whether a single trimmed sample value fits a role.
type matcher func(v string, cfg Config) bool

// rolePatterns is exhaustive over model.AssignableRoles.
var rolePatterns = map[model.FieldRole]matcher{
	model.RoleStudentNumber: isStudentNumber,
	model.RoleNationalID:    isNationalID,
	model.RoleFullName:      isFullName,
	model.RoleClassName:     isClassName,
	model.RoleBooklet:       isBooklet,
	model.RoleAnswers:       isAnswers,
}

func isStudentNumber(v string, cfg Config) bool {
	d := corrector.CorrectDigits(v)
	return d != "" && len(d) < cfg.NationalIDLength && allDigits(d)
}

func isNationalID(v string, cfg Config) bool {
	d := strings.ReplaceAll(v, " ", "")
	return len(d) == cfg.NationalIDLength && allDigits(d)
}

func isFullName(v string, _ Config) bool {
	letters := 0
	for _, r := range v {
		switch {
		case unicode.IsLetter(r):
			letters++
		case r == ' ' || r == '.' || r == '\'' || r == '-':
		default:
			return false
		}
	}
	if letters < 2 {
		return false
	}
	// A bare run of answer letters is an answer string, not a name.
	return !onlyRunes(v, "ABCDE -")
}

func isClassName(v string, _ Config) bool {
	return classPattern.MatchString(v)
}

func isBooklet(v string, _ Config) bool {
	r := []rune(v)
	return len(r) == 1 && unicode.IsLetter(r[0]) && strings.ContainsRune("ABCDEabcde", r[0])
}

func isAnswers(v string, cfg Config) bool {
	if len([]rune(v)) < 2 || !onlyRunes(v, answerRunes) {
		return false
	}
	// Lowercase-and-space text is more likely a name in a short column.
	if strings.ContainsRune(v, ' ') && !strings.ContainsAny(v, "ABCDE") {
		return false
	}
	if cfg.QuestionCount > 0 {
		n := len([]rune(v))
		return n*2 >= cfg.QuestionCount && n <= cfg.QuestionCount*2
	}
	return true
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func onlyRunes(s, set string) bool {
	for _, r := range s {
		if !strings.ContainsRune(set, r) {
			return false
		}
	}
	return true
}
