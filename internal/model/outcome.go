package model

// RowOutcome carries one row through matching, scoring, preflight and
// commit.
type RowOutcome struct {
	Row        int               `json:"row"`
	Identifier StudentIdentifier `json:"identifier"`
	AnswerSet  StudentAnswerSet  `json:"answer_set"`
	Match      MatchResult       `json:"match"`
	// Analysis is nil when the row could not be scored.
	Analysis *ResultAnalysis `json:"analysis,omitempty"`
	// BookletError is set when the row names a booklet the key lacks.
	BookletError string `json:"booklet_error,omitempty"`
	Malformed    bool   `json:"malformed"`
	Problem      string `json:"problem,omitempty"`
}

// Scorable reports whether the row can contribute a result.
func (o RowOutcome) Scorable() bool {
	return !o.Malformed && o.BookletError == "" && o.Analysis != nil
}
