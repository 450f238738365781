package model

import (
	"strings"
	"time"
)

// ExamType names an exam family. The family decides the default
// wrong-answer divisor.
type ExamType string

const (
	ExamLGS  ExamType = "LGS"
	ExamTYT  ExamType = "TYT"
	ExamAYT  ExamType = "AYT"
	ExamYKS  ExamType = "YKS"
	ExamKPSS ExamType = "KPSS"
	ExamALES ExamType = "ALES"
	ExamDGS  ExamType = "DGS"
)

// DefaultDivisor returns how many wrong answers cancel one correct answer
// for the family. Unknown families use 4.
func (t ExamType) DefaultDivisor() float64 {
	switch ExamType(strings.ToUpper(string(t))) {
	case ExamLGS:
		return 3
	default:
		return 4
	}
}

// SubjectRange tags the canonical questions Start..End (1-based, inclusive)
// with a subject code.
type SubjectRange struct {
	Code  string `json:"code" mapstructure:"code" validate:"required,max=32"`
	Start int    `json:"start" mapstructure:"start" validate:"required,min=1"`
	End   int    `json:"end" mapstructure:"end" validate:"required,gtefield=Start"`
}

// BookletTable maps a booklet's local numbering onto the canonical one:
// Order[i] is the canonical question number of local question i+1.
type BookletTable struct {
	Tag   string `json:"tag" mapstructure:"tag" validate:"required,max=8"`
	Order []int  `json:"order" mapstructure:"order" validate:"required,min=1"`
}

// ExamProfile is everything needed to score one exam: the canonical key,
// booklet tables, subject segmentation and an optional fixed-width layout.
type ExamProfile struct {
	ID               string         `json:"id" mapstructure:"id" validate:"required,max=64"`
	Title            string         `json:"title" mapstructure:"title" validate:"max=255"`
	Type             ExamType       `json:"type" mapstructure:"type" validate:"required,exam_type"`
	Divisor          float64        `json:"divisor,omitempty" mapstructure:"divisor" validate:"omitempty,gt=0"`
	CanonicalBooklet string         `json:"canonical_booklet" mapstructure:"canonical_booklet" validate:"required,max=8"`
	Key              string         `json:"key" mapstructure:"key" validate:"required"`
	ValidAnswers     string         `json:"valid_answers,omitempty" mapstructure:"valid_answers"`
	BlankMarkers     string         `json:"blank_markers,omitempty" mapstructure:"blank_markers"`
	Subjects         []SubjectRange `json:"subjects,omitempty" mapstructure:"subjects" validate:"dive"`
	Booklets         []BookletTable `json:"booklets,omitempty" mapstructure:"booklets" validate:"dive"`
	Layout           *Layout        `json:"layout,omitempty" mapstructure:"layout" validate:"omitempty"`
	UpdatedAt        time.Time      `json:"updated_at,omitempty" mapstructure:"-"`
}

// EffectiveDivisor returns the explicit divisor, or the family default.
func (p ExamProfile) EffectiveDivisor() float64 {
	if p.Divisor > 0 {
		return p.Divisor
	}
	return p.Type.DefaultDivisor()
}

// Valid reports whether t is a known exam family.
func (t ExamType) Valid() bool {
	switch ExamType(strings.ToUpper(string(t))) {
	case ExamLGS, ExamTYT, ExamAYT, ExamYKS, ExamKPSS, ExamALES, ExamDGS:
		return true
	}
	return false
}
