package importer

import (
	"time"

	"github.com/google/uuid"

	"github.com/stemsi/exstem-ingest/internal/model"
)

// TableSummary describes the parsed source without its rows.
type TableSummary struct {
	Format    string   `json:"format"`
	Encoding  string   `json:"encoding"`
	Delimiter string   `json:"delimiter,omitempty"`
	Header    []string `json:"header,omitempty"`
	Columns   int      `json:"columns"`
	Rows      int      `json:"rows"`
	Malformed int      `json:"malformed"`
}

// View is a read-only copy of a session for callers outside the package.
type View struct {
	ID         uuid.UUID              `json:"id"`
	ExamID     string                 `json:"exam_id"`
	SourceName string                 `json:"source_name,omitempty"`
	State      State                  `json:"state"`
	Table      *TableSummary          `json:"table,omitempty"`
	Mapping    *model.ColumnMapping   `json:"mapping,omitempty"`
	Outcomes   []model.RowOutcome     `json:"outcomes,omitempty"`
	Preflight  *model.PreflightResult `json:"preflight,omitempty"`
	Accepted   []model.IssueKind      `json:"accepted,omitempty"`
	Fatal      *model.Issue           `json:"fatal,omitempty"`
	Payload    *model.CommitPayload   `json:"payload,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// Snapshot copies the session state.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		ID:         s.id,
		ExamID:     s.examID,
		SourceName: s.sourceName,
		State:      s.state,
		Outcomes:   cloneOutcomes(s.outcomes),
		Fatal:      s.fatal,
		Payload:    s.payload,
		CreatedAt:  s.createdAt,
		UpdatedAt:  s.updatedAt,
	}
	if s.table != nil {
		v.Table = &TableSummary{
			Format:    string(s.table.Format),
			Encoding:  s.table.Encoding,
			Delimiter: s.table.Delimiter,
			Header:    s.table.Header,
			Columns:   s.table.Columns,
			Rows:      len(s.table.Rows),
			Malformed: s.table.Malformed(),
		}
	}
	if s.state.in(StateMapped, StateMatched, StateValidated, StateCommitted) {
		m := s.mapping.Clone()
		v.Mapping = &m
	}
	if s.preflight != nil {
		p := *s.preflight
		v.Preflight = &p
	}
	for _, k := range model.IssueKinds {
		if s.accepted[k] {
			v.Accepted = append(v.Accepted, k)
		}
	}
	return v
}
