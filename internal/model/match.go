package model

import "math"

// MatchStatus is the outcome of identity resolution for one row.
type MatchStatus string

const (
	MatchExactNumber MatchStatus = "exact_number"
	MatchExactID     MatchStatus = "exact_id"
	MatchFuzzyName   MatchStatus = "fuzzy_name"
	MatchManual      MatchStatus = "manual"
	MatchUnmatched   MatchStatus = "unmatched"
)

// Rank orders statuses by trust. Higher is better; exact strategies share
// the top rank.
func (s MatchStatus) Rank() int {
	switch s {
	case MatchExactNumber, MatchExactID:
		return 3
	case MatchFuzzyName:
		return 2
	case MatchManual:
		return 1
	default:
		return 0
	}
}

// Confidence bands. Every status owns a disjoint range, so a fuzzy match
// never ties an exact one however similar the names are.
const (
	fuzzyFloor  = 0.5
	fuzzyCeil   = 0.99
	manualFloor = 0.01
	manualCeil  = 0.49
)

// Confidence places a similarity score in [0, 1] inside the status's band.
// Exact statuses are always 1 and unmatched is always 0.
func (s MatchStatus) Confidence(score float64) float64 {
	if math.IsNaN(score) {
		score = 0
	}
	score = math.Max(0, math.Min(1, score))
	switch s.Rank() {
	case 3:
		return 1
	case 2:
		return fuzzyFloor + (fuzzyCeil-fuzzyFloor)*score
	case 1:
		return manualFloor + (manualCeil-manualFloor)*score
	default:
		return 0
	}
}

// Resolved reports whether the row is bound to a roster student.
func (s MatchStatus) Resolved() bool {
	return s == MatchExactNumber || s == MatchExactID || s == MatchFuzzyName
}

// Candidate is an alternative roster student proposed for a row.
type Candidate struct {
	StudentID string  `json:"student_id"`
	FullName  string  `json:"full_name"`
	ClassName string  `json:"class_name,omitempty"`
	Score     float64 `json:"score"`
}

// MatchResult is the matcher's verdict for one row. Student points into the
// roster snapshot and is never copied or mutated.
type MatchResult struct {
	Status       MatchStatus    `json:"status"`
	Student      *RosterStudent `json:"student,omitempty"`
	Confidence   float64        `json:"confidence"`
	Alternatives []Candidate    `json:"alternatives,omitempty"`
	// Assigned is set when an operator bound the row by hand.
	Assigned bool `json:"assigned,omitempty"`
}

// Bound reports whether the row resolves to a student, automatically or by
// an operator.
func (m MatchResult) Bound() bool {
	return m.Student != nil && (m.Status.Resolved() || m.Assigned)
}
