package model

// StudentAnswerSet is one row's answers in the booklet's local numbering.
// Answers[i] is the response to local question i+1.
type StudentAnswerSet struct {
	Identifier StudentIdentifier `json:"identifier"`
	Booklet    string            `json:"booklet"`
	Answers    string            `json:"answers"`
}

// SubjectScore is the tally for one subject segment or for the total.
type SubjectScore struct {
	Subject string  `json:"subject"`
	Correct int     `json:"correct"`
	Wrong   int     `json:"wrong"`
	Blank   int     `json:"blank"`
	Invalid int     `json:"invalid,omitempty"`
	Net     float64 `json:"net"`
}

// Questions is the number of questions counted in the tally.
func (s SubjectScore) Questions() int { return s.Correct + s.Wrong + s.Blank }

// ResultAnalysis is the scored outcome for one student.
type ResultAnalysis struct {
	Subjects []SubjectScore `json:"subjects"`
	Total    SubjectScore   `json:"total"`
}
