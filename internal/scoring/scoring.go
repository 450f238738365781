// Package scoring computes per-subject and total nets from canonical-indexed
// answers.
package scoring

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/stemsi/exstem-ingest/internal/answerkey"
	"github.com/stemsi/exstem-ingest/internal/model"
)

// Rounding selects where nets are rounded.
type Rounding string

const (
	// RoundNone never rounds.
	RoundNone Rounding = "none"
	// RoundSubject rounds every subject net and sums the rounded values.
	RoundSubject Rounding = "subject"
	// RoundTotal keeps subject nets exact and rounds only the total.
	RoundTotal Rounding = "total"
)

// ParseRounding validates a rounding name.
func ParseRounding(s string) (Rounding, error) {
	switch r := Rounding(strings.ToLower(strings.TrimSpace(s))); r {
	case RoundNone, RoundSubject, RoundTotal:
		return r, nil
	case "":
		return RoundTotal, nil
	}
	return "", fmt.Errorf("unknown net rounding %q", s)
}

// Policy controls how nets are rounded and combined.
type Policy struct {
	Rounding  Rounding
	Precision int
	// ClampNegative raises negative subject nets to zero before summing.
	ClampNegative bool
}

// DefaultPolicy rounds the total to two decimals and leaves negative
// subject nets as they are.
func DefaultPolicy() Policy {
	return Policy{Rounding: RoundTotal, Precision: 2}
}

// Calculator scores answer sets under one policy. It is stateless and safe
// for concurrent use.
type Calculator struct {
	policy Policy
}

// New returns a Calculator for p.
func New(p Policy) *Calculator {
	if p.Rounding == "" {
		p.Rounding = RoundTotal
	}
	if p.Precision < 0 {
		p.Precision = 0
	}
	return &Calculator{policy: p}
}

// Policy returns the calculator's policy.
func (c *Calculator) Policy() Policy { return c.policy }

// ScoreSet transposes the set into canonical order and scores it. An unknown
// booklet wraps model.ErrUnknownBooklet.
func (c *Calculator) ScoreSet(key *answerkey.Key, set model.StudentAnswerSet) (model.ResultAnalysis, error) {
	canonical, err := key.Transpose(set.Booklet, set.Answers)
	if err != nil {
		return model.ResultAnalysis{}, err
	}
	return c.Score(key, canonical), nil
}

// Score tallies canonical-indexed answers against key. Positions past the
// end of answers are blank. A character outside the valid alphabet counts as
// blank; if it is not an explicit blank marker it is also counted as invalid.
func (c *Calculator) Score(key *answerkey.Key, canonical string) model.ResultAnalysis {
	answers := []rune(canonical)
	subjects := key.Subjects()

	res := model.ResultAnalysis{
		Subjects: make([]model.SubjectScore, 0, len(subjects)),
		Total:    model.SubjectScore{Subject: "TOTAL"},
	}
	valid := key.ValidAnswers()

	var totalNet float64
	for _, s := range subjects {
		score := model.SubjectScore{Subject: s.Code}
		for q := s.Start - 1; q < s.End; q++ {
			a := answerkey.Blank
			if q < len(answers) {
				a = unicode.ToUpper(answers[q])
			}
			switch {
			case strings.ContainsRune(valid, a):
				if a == key.Answer(q) {
					score.Correct++
				} else {
					score.Wrong++
				}
			default:
				score.Blank++
				if !unicode.IsSpace(a) && !key.IsBlankMarker(a) {
					score.Invalid++
				}
			}
		}

		net := float64(score.Correct) - float64(score.Wrong)/key.Divisor()
		if c.policy.ClampNegative && net < 0 {
			net = 0
		}
		if c.policy.Rounding == RoundSubject {
			net = round(net, c.policy.Precision)
		}
		score.Net = net
		totalNet += net

		res.Total.Correct += score.Correct
		res.Total.Wrong += score.Wrong
		res.Total.Blank += score.Blank
		res.Total.Invalid += score.Invalid
		res.Subjects = append(res.Subjects, score)
	}

	if c.policy.Rounding != RoundNone {
		totalNet = round(totalNet, c.policy.Precision)
	}
	res.Total.Net = totalNet
	return res
}

func round(v float64, precision int) float64 {
	p := math.Pow10(precision)
	return math.Round(v*p) / p
}
