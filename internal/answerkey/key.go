// Package answerkey holds an exam's canonical answer key together with the
// per-booklet permutation tables that map local question numbers onto the
// canonical numbering. Tables are validated once, when the key is built.
package answerkey

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stemsi/exstem-ingest/internal/model"
)

const (
	// DefaultValidAnswers is the choice alphabet when a profile sets none.
	DefaultValidAnswers = "ABCDE"
	// DefaultBlankMarkers are characters readers write for an empty bubble.
	DefaultBlankMarkers = " -*._"
	// DefaultSubject labels the single segment of an unsegmented key.
	DefaultSubject = "ALL"
	// Blank fills canonical positions that received no answer.
	Blank = ' '
)

// Key is an immutable, validated answer key. It is safe for concurrent use.
type Key struct {
	examID    string
	examType  model.ExamType
	canonical string
	answers   []rune
	subjects  []model.SubjectRange
	// tables[tag][local] is the 0-based canonical index of local question
	// local+1; inverse is its reverse.
	tables       map[string][]int
	inverse      map[string][]int
	validAnswers string
	blankMarkers string
	divisor      float64
}

// New validates p and builds its key. Any structural problem, including a
// booklet table that is not a bijection over 1..n, wraps
// model.ErrBookletConfig.
func New(p model.ExamProfile) (*Key, error) {
	answers := []rune(strings.ToUpper(strings.TrimSpace(p.Key)))
	n := len(answers)
	if n == 0 {
		return nil, configErr("answer key is empty")
	}

	valid := strings.ToUpper(p.ValidAnswers)
	if valid == "" {
		valid = DefaultValidAnswers
	}
	for i, a := range answers {
		if !strings.ContainsRune(valid, a) {
			return nil, configErr(fmt.Sprintf("key answer %q for question %d is outside %q", a, i+1, valid))
		}
	}

	blanks := p.BlankMarkers
	if blanks == "" {
		blanks = DefaultBlankMarkers
	}

	divisor := p.EffectiveDivisor()
	if divisor <= 0 {
		return nil, configErr("wrong-answer divisor must be positive")
	}

	canonical := NormalizeTag(p.CanonicalBooklet)
	if canonical == "" {
		return nil, configErr("canonical booklet is not set")
	}

	subjects, err := validateSubjects(p.Subjects, n)
	if err != nil {
		return nil, err
	}

	k := &Key{
		examID:       p.ID,
		examType:     p.Type,
		canonical:    canonical,
		answers:      answers,
		subjects:     subjects,
		tables:       make(map[string][]int, len(p.Booklets)+1),
		inverse:      make(map[string][]int, len(p.Booklets)+1),
		validAnswers: valid,
		blankMarkers: blanks,
		divisor:      divisor,
	}

	identity := make([]int, n)
	for i := range identity {
		identity[i] = i
	}
	k.tables[canonical] = identity
	k.inverse[canonical] = identity

	for _, b := range p.Booklets {
		tag := NormalizeTag(b.Tag)
		if tag == "" {
			return nil, configErr("booklet table without a tag")
		}
		if _, dup := k.tables[tag]; dup && tag != canonical {
			return nil, configErr(fmt.Sprintf("booklet %s defined twice", tag))
		}
		fwd, inv, err := validateTable(tag, b.Order, n)
		if err != nil {
			return nil, err
		}
		if tag == canonical && !isIdentity(fwd) {
			return nil, configErr(fmt.Sprintf("canonical booklet %s must not be permuted", tag))
		}
		k.tables[tag] = fwd
		k.inverse[tag] = inv
	}
	return k, nil
}

// validateTable checks that order is a bijection over 1..n and returns the
// 0-based forward and inverse tables.
func validateTable(tag string, order []int, n int) ([]int, []int, error) {
	if len(order) != n {
		return nil, nil, configErr(fmt.Sprintf("booklet %s maps %d questions, key has %d", tag, len(order), n))
	}
	fwd := make([]int, n)
	inv := make([]int, n)
	seen := make([]bool, n)
	for local, canon := range order {
		if canon < 1 || canon > n {
			return nil, nil, configErr(fmt.Sprintf("booklet %s question %d maps to %d, outside 1..%d", tag, local+1, canon, n))
		}
		if seen[canon-1] {
			return nil, nil, configErr(fmt.Sprintf("booklet %s maps two questions to canonical %d", tag, canon))
		}
		seen[canon-1] = true
		fwd[local] = canon - 1
		inv[canon-1] = local
	}
	return fwd, inv, nil
}

// validateSubjects sorts the segments and checks they tile 1..n exactly.
func validateSubjects(in []model.SubjectRange, n int) ([]model.SubjectRange, error) {
	if len(in) == 0 {
		return []model.SubjectRange{{Code: DefaultSubject, Start: 1, End: n}}, nil
	}
	subjects := make([]model.SubjectRange, len(in))
	copy(subjects, in)
	sort.SliceStable(subjects, func(i, j int) bool { return subjects[i].Start < subjects[j].Start })

	codes := make(map[string]bool, len(subjects))
	next := 1
	for _, s := range subjects {
		if s.Code == "" {
			return nil, configErr("subject without a code")
		}
		if codes[s.Code] {
			return nil, configErr(fmt.Sprintf("subject %s defined twice", s.Code))
		}
		codes[s.Code] = true
		if s.Start != next || s.End < s.Start {
			return nil, configErr(fmt.Sprintf("subject %s covers %d..%d, expected to start at %d", s.Code, s.Start, s.End, next))
		}
		next = s.End + 1
	}
	if next != n+1 {
		return nil, configErr(fmt.Sprintf("subjects cover 1..%d, key has %d questions", next-1, n))
	}
	return subjects, nil
}

func isIdentity(t []int) bool {
	for i, v := range t {
		if i != v {
			return false
		}
	}
	return true
}

func configErr(reason string) error {
	return fmt.Errorf("%w: %s", model.ErrBookletConfig, reason)
}

// NormalizeTag upper-cases and trims a booklet tag.
func NormalizeTag(tag string) string {
	return strings.ToUpper(strings.TrimSpace(tag))
}

// ExamID returns the profile id the key was built from.
func (k *Key) ExamID() string { return k.examID }

// ExamType returns the exam family.
func (k *Key) ExamType() model.ExamType { return k.examType }

// Len is the number of canonical questions.
func (k *Key) Len() int { return len(k.answers) }

// Divisor is the number of wrong answers that cancel one correct answer.
func (k *Key) Divisor() float64 { return k.divisor }

// Canonical is the tag of the booklet the key is written against.
func (k *Key) Canonical() string { return k.canonical }

// Answer returns the correct choice for the 0-based canonical index i.
func (k *Key) Answer(i int) rune { return k.answers[i] }

// Subjects returns the validated, sorted subject segments.
func (k *Key) Subjects() []model.SubjectRange {
	out := make([]model.SubjectRange, len(k.subjects))
	copy(out, k.subjects)
	return out
}

// ValidAnswers is the accepted choice alphabet.
func (k *Key) ValidAnswers() string { return k.validAnswers }

// IsBlankMarker reports whether r explicitly marks an empty answer.
func (k *Key) IsBlankMarker(r rune) bool {
	return strings.ContainsRune(k.blankMarkers, r)
}

// Booklets lists every known tag, canonical included, sorted.
func (k *Key) Booklets() []string {
	tags := make([]string, 0, len(k.tables))
	for t := range k.tables {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// Resolve maps a raw booklet tag onto a known one. An empty tag resolves to
// the canonical booklet.
func (k *Key) Resolve(tag string) (string, bool) {
	t := NormalizeTag(tag)
	if t == "" {
		return k.canonical, true
	}
	_, ok := k.tables[t]
	return t, ok
}
