package model

import (
	"time"

	"github.com/google/uuid"
)

// MatchedResult is a scored row bound to a roster student.
type MatchedResult struct {
	Row        int            `json:"row"`
	StudentID  string         `json:"student_id"`
	Status     MatchStatus    `json:"status"`
	Confidence float64        `json:"confidence"`
	Booklet    string         `json:"booklet"`
	Answers    string         `json:"answers"`
	Analysis   ResultAnalysis `json:"analysis"`
}

// UnmatchedEntry is a row parked for later manual resolution.
type UnmatchedEntry struct {
	Row          int               `json:"row"`
	Identifier   StudentIdentifier `json:"identifier"`
	AnswerSet    StudentAnswerSet  `json:"answer_set"`
	Status       MatchStatus       `json:"status"`
	Alternatives []Candidate       `json:"alternatives"`
	Analysis     *ResultAnalysis   `json:"analysis,omitempty"`
}

// MalformedRow is a row kept for audit but excluded from scoring.
type MalformedRow struct {
	Row    int      `json:"row"`
	Line   int      `json:"line"`
	Cells  []string `json:"cells"`
	Reason string   `json:"reason"`
}

// CommitPayload partitions every parsed row into exactly one bucket.
type CommitPayload struct {
	BatchID     uuid.UUID        `json:"batch_id"`
	SessionID   uuid.UUID        `json:"session_id"`
	ExamID      string           `json:"exam_id"`
	SourceName  string           `json:"source_name,omitempty"`
	CommittedAt time.Time        `json:"committed_at"`
	Matched     []MatchedResult  `json:"matched_results"`
	Unmatched   []UnmatchedEntry `json:"unmatched_queue"`
	Malformed   []MalformedRow   `json:"malformed_rows"`
	Overrides   []IssueKind      `json:"overrides,omitempty"`
	// Attempts counts failed writes while the payload waits in the queue.
	Attempts int `json:"attempts,omitempty"`
}

// RowCount is the number of rows accounted for by the payload.
func (p CommitPayload) RowCount() int {
	return len(p.Matched) + len(p.Unmatched) + len(p.Malformed)
}
