package model

import "maps"

// MappingSource records who decided a column's role.
type MappingSource string

const (
	SourceAuto   MappingSource = "auto"
	SourceManual MappingSource = "manual"
	SourceLayout MappingSource = "layout"
)

// ColumnAssignment is the role chosen for one column.
type ColumnAssignment struct {
	Column     int           `json:"column"`
	Header     string        `json:"header,omitempty"`
	Role       FieldRole     `json:"role"`
	Confidence float64       `json:"confidence"`
	Source     MappingSource `json:"source"`
}

// ColumnAnalysis carries the per-role scores computed for one column.
type ColumnAnalysis struct {
	Column     int                   `json:"column"`
	Header     string                `json:"header,omitempty"`
	Scores     map[FieldRole]float64 `json:"scores"`
	BestRole   FieldRole             `json:"best_role"`
	BestScore  float64               `json:"best_score"`
	SampleSize int                   `json:"sample_size"`
	Demoted    bool                  `json:"demoted,omitempty"`
}

// ColumnMapping assigns a role to every column of a table. Every role other
// than ignore and unmapped appears on at most one column.
type ColumnMapping struct {
	Columns  []ColumnAssignment `json:"columns"`
	Analyses []ColumnAnalysis   `json:"analyses,omitempty"`
}

// ColumnFor returns the index of the column carrying role, or -1.
func (m ColumnMapping) ColumnFor(role FieldRole) int {
	for _, c := range m.Columns {
		if c.Role == role {
			return c.Column
		}
	}
	return -1
}

// Has reports whether some column carries role.
func (m ColumnMapping) Has(role FieldRole) bool {
	return m.ColumnFor(role) >= 0
}

// Unmapped returns the assignments still waiting for a role.
func (m ColumnMapping) Unmapped() []ColumnAssignment {
	var out []ColumnAssignment
	for _, c := range m.Columns {
		if c.Role == RoleUnmapped {
			out = append(out, c)
		}
	}
	return out
}

// Clone returns a deep copy so overrides never alias a previous mapping.
func (m ColumnMapping) Clone() ColumnMapping {
	out := ColumnMapping{Columns: make([]ColumnAssignment, len(m.Columns))}
	copy(out.Columns, m.Columns)
	if m.Analyses != nil {
		out.Analyses = make([]ColumnAnalysis, len(m.Analyses))
		copy(out.Analyses, m.Analyses)
		for i, a := range m.Analyses {
			out.Analyses[i].Scores = maps.Clone(a.Scores)
		}
	}
	return out
}
