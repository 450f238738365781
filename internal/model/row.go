package model

// RawRow is one visible data row of the source file. Cells keep source
// column order. A malformed row keeps whatever cells could be recovered.
type RawRow struct {
	Index     int      `json:"index"`
	Line      int      `json:"line"`
	Cells     []string `json:"cells"`
	Malformed bool     `json:"malformed"`
	Problem   string   `json:"problem,omitempty"`
}

// Cell returns the value at column i, or "" when the row is too short.
func (r RawRow) Cell(i int) string {
	if i < 0 || i >= len(r.Cells) {
		return ""
	}
	return r.Cells[i]
}

// LayoutField is a fixed-width field. Start and End are 1-based inclusive
// character positions within a line.
type LayoutField struct {
	Role  FieldRole `json:"role" mapstructure:"role" validate:"required,field_role"`
	Start int       `json:"start" mapstructure:"start" validate:"required,min=1"`
	End   int       `json:"end" mapstructure:"end" validate:"required,gtefield=Start"`
}

// Width is the number of characters covered by the field.
func (f LayoutField) Width() int { return f.End - f.Start + 1 }

// Layout describes an optical-reader line format. Each field becomes one
// column, in declaration order.
type Layout struct {
	Name   string        `json:"name" mapstructure:"name"`
	Fields []LayoutField `json:"fields" mapstructure:"fields" validate:"required,min=1,dive"`
}
