// Package matcher resolves row identities against a roster snapshot through
// a fixed cascade: exact student number, exact national id, fuzzy name.
package matcher

import (
	"context"
	"sort"

	"github.com/stemsi/exstem-ingest/internal/corrector"
	"github.com/stemsi/exstem-ingest/internal/model"
	"github.com/stemsi/exstem-ingest/internal/worker"
)

// Config holds the fuzzy-stage thresholds.
type Config struct {
	// AcceptThreshold is the minimum score for an automatic fuzzy match.
	AcceptThreshold float64
	// SeparationMargin is the minimum lead of the best candidate over the
	// runner-up.
	SeparationMargin float64
	// CandidateFloor drops candidates scoring below it.
	CandidateFloor float64
	// TopK bounds the alternatives kept for manual resolution.
	TopK    int
	Workers int
}

// DefaultConfig mirrors the service defaults.
func DefaultConfig() Config {
	return Config{
		AcceptThreshold:  0.85,
		SeparationMargin: 0.08,
		CandidateFloor:   0.55,
		TopK:             3,
		Workers:          4,
	}
}

type entry struct {
	student *model.RosterStudent
	name    string
}

// Matcher indexes one roster snapshot. It never mutates the roster and is
// safe for concurrent use once built.
type Matcher struct {
	cfg      Config
	roster   *model.Roster
	entries  []entry
	byNumber map[string][]int
	byID     map[string][]int
	byClass  map[string][]int
}

// New indexes roster by normalized number, national id and class.
func New(roster *model.Roster, cfg Config) *Matcher {
	if roster == nil {
		roster = model.NewRoster(nil)
	}
	def := DefaultConfig()
	if cfg.AcceptThreshold <= 0 {
		cfg.AcceptThreshold = def.AcceptThreshold
	}
	if cfg.CandidateFloor <= 0 {
		cfg.CandidateFloor = def.CandidateFloor
	}
	if cfg.SeparationMargin < 0 {
		cfg.SeparationMargin = 0
	}
	if cfg.TopK <= 0 {
		cfg.TopK = def.TopK
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}

	m := &Matcher{
		cfg:      cfg,
		roster:   roster,
		entries:  make([]entry, len(roster.Students)),
		byNumber: make(map[string][]int),
		byID:     make(map[string][]int),
		byClass:  make(map[string][]int),
	}
	for i := range roster.Students {
		s := &roster.Students[i]
		m.entries[i] = entry{student: s, name: corrector.Correct(s.FullName)}
		if n := corrector.NormalizeStudentNumber(s.StudentNumber); n != "" {
			m.byNumber[n] = append(m.byNumber[n], i)
		}
		if id := corrector.NormalizeNationalID(s.NationalID); id != "" {
			m.byID[id] = append(m.byID[id], i)
		}
		if c := corrector.NormalizeClass(s.ClassName); c != "" {
			m.byClass[c] = append(m.byClass[c], i)
		}
	}
	return m
}

// Roster returns the snapshot the matcher was built on.
func (m *Matcher) Roster() *model.Roster { return m.roster }

// Match resolves every identifier. The result has the same length and order
// as ids; identical input always yields identical output. The only error is
// cancellation of ctx.
func (m *Matcher) Match(ctx context.Context, ids []model.StudentIdentifier) ([]model.MatchResult, error) {
	return worker.OrderedMap(ctx, m.cfg.Workers, ids, func(_ context.Context, _ int, id model.StudentIdentifier) (model.MatchResult, error) {
		return m.MatchOne(id), nil
	})
}

// MatchOne runs the cascade for a single identifier.
func (m *Matcher) MatchOne(id model.StudentIdentifier) model.MatchResult {
	if n := corrector.NormalizeStudentNumber(id.StudentNumber); n != "" {
		if idx := m.byNumber[n]; len(idx) == 1 {
			return model.MatchResult{Status: model.MatchExactNumber, Student: m.entries[idx[0]].student, Confidence: model.MatchExactNumber.Confidence(1)}
		}
	}
	if nid := corrector.NormalizeNationalID(id.NationalID); nid != "" {
		if idx := m.byID[nid]; len(idx) == 1 {
			return model.MatchResult{Status: model.MatchExactID, Student: m.entries[idx[0]].student, Confidence: model.MatchExactID.Confidence(1)}
		}
	}
	return m.fuzzy(id)
}

type scored struct {
	idx   int
	score float64
}

func (m *Matcher) fuzzy(id model.StudentIdentifier) model.MatchResult {
	name := corrector.Correct(id.FullName)
	if name == "" {
		return model.MatchResult{Status: model.MatchUnmatched}
	}

	pool := m.candidatePool(id.ClassName)
	found := make([]scored, 0, 8)
	for _, i := range pool {
		e := m.entries[i]
		if corrector.RatioBound(name, e.name) < m.cfg.CandidateFloor {
			continue
		}
		if s := corrector.Ratio(name, e.name); s >= m.cfg.CandidateFloor {
			found = append(found, scored{idx: i, score: s})
		}
	}
	if len(found) == 0 {
		return model.MatchResult{Status: model.MatchUnmatched}
	}

	sort.Slice(found, func(a, b int) bool {
		ea, eb := m.entries[found[a].idx], m.entries[found[b].idx]
		if found[a].score != found[b].score {
			return found[a].score > found[b].score
		}
		if ea.name != eb.name {
			return ea.name < eb.name
		}
		return ea.student.ID < eb.student.ID
	})

	best := found[0]
	runnerUp := 0.0
	if len(found) > 1 {
		runnerUp = found[1].score
	}
	if best.score >= m.cfg.AcceptThreshold && best.score-runnerUp >= m.cfg.SeparationMargin {
		return model.MatchResult{
			Status:       model.MatchFuzzyName,
			Student:      m.entries[best.idx].student,
			Confidence:   model.MatchFuzzyName.Confidence(best.score),
			Alternatives: m.candidates(found[1:]),
		}
	}
	return model.MatchResult{
		Status:       model.MatchManual,
		Confidence:   model.MatchManual.Confidence(best.score),
		Alternatives: m.candidates(found),
	}
}

// candidatePool restricts the search to the row's class when the roster
// knows it; otherwise the whole roster is searched.
func (m *Matcher) candidatePool(class string) []int {
	if c := corrector.NormalizeClass(class); c != "" {
		if idx, ok := m.byClass[c]; ok {
			return idx
		}
	}
	all := make([]int, len(m.entries))
	for i := range all {
		all[i] = i
	}
	return all
}

func (m *Matcher) candidates(found []scored) []model.Candidate {
	if len(found) > m.cfg.TopK {
		found = found[:m.cfg.TopK]
	}
	if len(found) == 0 {
		return nil
	}
	out := make([]model.Candidate, len(found))
	for i, f := range found {
		s := m.entries[f.idx].student
		out[i] = model.Candidate{StudentID: s.ID, FullName: s.FullName, ClassName: s.ClassName, Score: f.score}
	}
	return out
}
