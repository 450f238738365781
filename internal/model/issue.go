package model

// IssueKind is the closed taxonomy of problems an import can surface.
type IssueKind string

const (
	IssueFileUnreadable         IssueKind = "file_unreadable"
	IssueRowMalformed           IssueKind = "row_malformed"
	IssueColumnUnresolved       IssueKind = "column_unresolved"
	IssueDuplicateIdentity      IssueKind = "duplicate_identity"
	IssueAnswerLengthMismatch   IssueKind = "answer_length_mismatch"
	IssueBookletConfigInvalid   IssueKind = "booklet_config_invalid"
	IssueMatchAmbiguous         IssueKind = "match_ambiguous"
	IssueInvalidAnswerCharacter IssueKind = "invalid_answer_character"
)

// IssueKinds lists every kind in taxonomy order.
var IssueKinds = []IssueKind{
	IssueFileUnreadable,
	IssueRowMalformed,
	IssueColumnUnresolved,
	IssueDuplicateIdentity,
	IssueAnswerLengthMismatch,
	IssueBookletConfigInvalid,
	IssueMatchAmbiguous,
	IssueInvalidAnswerCharacter,
}

// Severity decides whether an issue stops the commit.
type Severity string

const (
	SeverityBlocking Severity = "blocking"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Overridable reports whether an operator may accept blocking issues of
// kind k and commit anyway.
func (k IssueKind) Overridable() bool {
	return k == IssueDuplicateIdentity || k == IssueBookletConfigInvalid
}

// Issue is one classified diagnostic with provenance. Row and Column are
// -1 when the issue is not tied to one.
type Issue struct {
	Kind     IssueKind `json:"kind"`
	Severity Severity  `json:"severity"`
	Row      int       `json:"row"`
	Column   int       `json:"column"`
	Message  string    `json:"message"`
	Remedy   string    `json:"remedy"`
	Detail   string    `json:"detail,omitempty"`
}

// Location pins an issue to a row and/or column.
type Location struct {
	Row    int
	Column int
}

// NoLocation marks an issue that applies to the whole import.
var NoLocation = Location{Row: -1, Column: -1}

// AtRow pins an issue to a row.
func AtRow(row int) Location { return Location{Row: row, Column: -1} }

// AtColumn pins an issue to a column.
func AtColumn(col int) Location { return Location{Row: -1, Column: col} }

// RowSummary is the per-row line of a preflight report.
type RowSummary struct {
	Row        int         `json:"row"`
	Status     MatchStatus `json:"status"`
	StudentID  string      `json:"student_id,omitempty"`
	Confidence float64     `json:"confidence"`
	Malformed  bool        `json:"malformed"`
	Scored     bool        `json:"scored"`
	Net        float64     `json:"net"`
	Issues     []IssueKind `json:"issues,omitempty"`
}

// PreflightResult is the go/no-go report produced before commit.
type PreflightResult struct {
	Errors    []Issue          `json:"errors"`
	Warnings  []Issue          `json:"warnings"`
	Rows      []RowSummary     `json:"rows"`
	Columns   []ColumnAnalysis `json:"columns"`
	MatchRate float64          `json:"match_rate"`
	Go        bool             `json:"go"`
}

// Blocking returns the errors of kind k.
func (p PreflightResult) Blocking(k IssueKind) []Issue {
	var out []Issue
	for _, e := range p.Errors {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}
