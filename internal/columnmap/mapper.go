// Package columnmap infers the role of every column from header text and
// sample values, and merges manual overrides on top of the inference.
package columnmap

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stemsi/exstem-ingest/internal/corrector"
	"github.com/stemsi/exstem-ingest/internal/model"
)

const (
	headerWeight  = 0.35
	patternWeight = 0.65
	// ignoreFloor is how close a header must be to a known noise column
	// (row number, score, date) before the column is ignored outright.
	ignoreFloor = 0.9
)

// Config tunes inference.
type Config struct {
	MinConfidence    float64
	SampleSize       int
	NationalIDLength int
	// QuestionCount is the expected answer width; 0 when unknown.
	QuestionCount int
}

// DefaultConfig mirrors the service defaults.
func DefaultConfig() Config {
	return Config{MinConfidence: 0.5, SampleSize: 50, NationalIDLength: 11}
}

// Mapper infers column mappings. It holds no state besides its config.
type Mapper struct {
	cfg Config
}

// New returns a Mapper, filling zero config values with defaults.
func New(cfg Config) *Mapper {
	def := DefaultConfig()
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = def.MinConfidence
	}
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = def.SampleSize
	}
	if cfg.NationalIDLength <= 0 {
		cfg.NationalIDLength = def.NationalIDLength
	}
	return &Mapper{cfg: cfg}
}

// WithQuestionCount returns a copy of the mapper tuned to the answer width.
func (m *Mapper) WithQuestionCount(n int) *Mapper {
	cfg := m.cfg
	cfg.QuestionCount = n
	return &Mapper{cfg: cfg}
}

// Infer scores every column against every role and assigns each column its
// best role at or above the minimum confidence. Each unique role ends up on
// at most one column; losers are demoted to unmapped.
func (m *Mapper) Infer(header []string, rows []model.RawRow, columns int) model.ColumnMapping {
	sample := sampleRows(rows, m.cfg.SampleSize)

	mapping := model.ColumnMapping{
		Columns:  make([]model.ColumnAssignment, columns),
		Analyses: make([]model.ColumnAnalysis, columns),
	}
	for col := 0; col < columns; col++ {
		h := ""
		if col < len(header) {
			h = header[col]
		}
		analysis := m.analyze(col, h, sample)
		mapping.Analyses[col] = analysis

		a := model.ColumnAssignment{
			Column:     col,
			Header:     h,
			Role:       model.RoleUnmapped,
			Confidence: analysis.BestScore,
			Source:     model.SourceAuto,
		}
		if analysis.BestScore >= m.cfg.MinConfidence {
			a.Role = analysis.BestRole
		}
		mapping.Columns[col] = a
	}

	resolveConflicts(&mapping)
	return mapping
}

func (m *Mapper) analyze(col int, header string, sample []model.RawRow) model.ColumnAnalysis {
	values := make([]string, 0, len(sample))
	for _, r := range sample {
		if v := strings.TrimSpace(r.Cell(col)); v != "" {
			values = append(values, v)
		}
	}

	folded := corrector.Correct(header)
	a := model.ColumnAnalysis{
		Column:     col,
		Header:     header,
		Scores:     make(map[model.FieldRole]float64, len(model.AssignableRoles)+1),
		BestRole:   model.RoleUnmapped,
		SampleSize: len(values),
	}
	for _, role := range model.AssignableRoles {
		p := patternRate(rolePatterns[role], values, m.cfg)
		score := p
		if folded != "" {
			score = headerWeight*headerScore(role, folded) + patternWeight*p
		}
		a.Scores[role] = score
		if score > a.BestScore {
			a.BestRole, a.BestScore = role, score
		}
	}

	if h := headerScore(model.RoleIgnore, folded); h >= ignoreFloor {
		a.Scores[model.RoleIgnore] = h
		if h > a.BestScore {
			a.BestRole, a.BestScore = model.RoleIgnore, h
		}
	}
	return a
}

// resolveConflicts keeps, for every unique role, the column with the highest
// confidence (lowest index on ties) and demotes the rest.
func resolveConflicts(mapping *model.ColumnMapping) {
	byRole := make(map[model.FieldRole][]int)
	for i, c := range mapping.Columns {
		if c.Role.Unique() {
			byRole[c.Role] = append(byRole[c.Role], i)
		}
	}
	for _, idxs := range byRole {
		if len(idxs) < 2 {
			continue
		}
		sort.SliceStable(idxs, func(a, b int) bool {
			ca, cb := mapping.Columns[idxs[a]], mapping.Columns[idxs[b]]
			if ca.Confidence != cb.Confidence {
				return ca.Confidence > cb.Confidence
			}
			return ca.Column < cb.Column
		})
		for _, loser := range idxs[1:] {
			mapping.Columns[loser].Role = model.RoleUnmapped
			if loser < len(mapping.Analyses) {
				mapping.Analyses[loser].Demoted = true
			}
		}
	}
}

// Merge applies manual overrides on top of base without re-running
// inference. An overridden column gets confidence 1; any other column that
// held the same unique role is demoted to unmapped.
func Merge(base model.ColumnMapping, overrides map[int]model.FieldRole) (model.ColumnMapping, error) {
	out := base.Clone()

	cols := make([]int, 0, len(overrides))
	for c := range overrides {
		cols = append(cols, c)
	}
	sort.Ints(cols)

	claimed := make(map[model.FieldRole]int)
	for _, c := range cols {
		role := overrides[c]
		if c < 0 || c >= len(out.Columns) {
			return base, fmt.Errorf("%w: %d (table has %d columns)", model.ErrColumnOutOfRange, c, len(out.Columns))
		}
		if !role.Valid() {
			return base, fmt.Errorf("unknown field role %q for column %d", role, c)
		}
		if prev, ok := claimed[role]; ok && role.Unique() {
			return base, fmt.Errorf("%w: %s on columns %d and %d", model.ErrDuplicateRole, role, prev, c)
		}
		claimed[role] = c
	}

	for _, c := range cols {
		role := overrides[c]
		out.Columns[c].Role = role
		out.Columns[c].Confidence = 1
		out.Columns[c].Source = model.SourceManual
		if !role.Unique() {
			continue
		}
		for i := range out.Columns {
			if i != c && out.Columns[i].Role == role {
				out.Columns[i].Role = model.RoleUnmapped
			}
		}
	}
	return out, nil
}

// FromLayout maps a fixed-width layout one column per field.
func FromLayout(layout *model.Layout) model.ColumnMapping {
	mapping := model.ColumnMapping{Columns: make([]model.ColumnAssignment, len(layout.Fields))}
	for i, f := range layout.Fields {
		mapping.Columns[i] = model.ColumnAssignment{
			Column:     i,
			Header:     string(f.Role),
			Role:       f.Role,
			Confidence: 1,
			Source:     model.SourceLayout,
		}
	}
	return mapping
}

func sampleRows(rows []model.RawRow, n int) []model.RawRow {
	out := make([]model.RawRow, 0, n)
	for _, r := range rows {
		if r.Malformed {
			continue
		}
		out = append(out, r)
		if len(out) == n {
			break
		}
	}
	return out
}

func patternRate(match matcher, values []string, cfg Config) float64 {
	if len(values) == 0 {
		return 0
	}
	hits := 0
	for _, v := range values {
		if match(v, cfg) {
			hits++
		}
	}
	return float64(hits) / float64(len(values))
}
