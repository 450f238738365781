// Package importer sequences one import session through an explicit state
// machine: parse, map columns, match and score, preflight, commit.
package importer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-ingest/internal/columnmap"
	"github.com/stemsi/exstem-ingest/internal/model"
	"github.com/stemsi/exstem-ingest/internal/parser"
	"github.com/stemsi/exstem-ingest/internal/preflight"
	"github.com/stemsi/exstem-ingest/internal/worker"
)

// Session is the only stateful part of the pipeline. All methods are safe
// for concurrent use; transitions are serialized.
type Session struct {
	mu sync.Mutex

	id         uuid.UUID
	examID     string
	sourceName string
	deps       Deps
	log        zerolog.Logger

	state     State
	layout    *model.Layout
	table     *parser.Table
	mapping   model.ColumnMapping
	outcomes  []model.RowOutcome
	preflight *model.PreflightResult
	accepted  map[model.IssueKind]bool
	fatal     *model.Issue
	payload   *model.CommitPayload

	createdAt time.Time
	updatedAt time.Time
}

// New returns an idle session for the exam the key was built from.
func New(deps Deps) (*Session, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Workers <= 0 {
		deps.Workers = 4
	}
	id := uuid.New()
	now := deps.Now()
	return &Session{
		id:        id,
		examID:    deps.Key.ExamID(),
		deps:      deps,
		log:       deps.Logger.With().Str("component", "import_session").Str("session_id", id.String()).Logger(),
		state:     StateIdle,
		accepted:  make(map[model.IssueKind]bool),
		createdAt: now,
		updatedAt: now,
	}, nil
}

// ID returns the session id.
func (s *Session) ID() uuid.UUID { return s.id }

// ExamID returns the exam the session scores against.
func (s *Session) ExamID() string { return s.examID }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// UpdatedAt returns the time of the last transition.
func (s *Session) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

func (s *Session) transition(to State) {
	s.log.Info().
		Str("from", string(s.state)).
		Str("to", string(to)).
		Int("rows", len(s.outcomes)).
		Msg("Session transition")
	s.state = to
	s.updatedAt = s.deps.Now()
}

func (s *Session) invalid(op string) error {
	return fmt.Errorf("%w: %s not allowed in state %s", model.ErrInvalidTransition, op, s.state)
}

// Parse reads the source. A file-level failure aborts the session and is
// returned; row-level problems stay on the rows.
func (s *Session) Parse(sourceName string, data []byte, opts parser.Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return s.invalid("parse")
	}
	table, err := s.deps.Parser.Parse(data, opts)
	if err != nil {
		if issue, ok := s.deps.Classifier.FromError(err); ok {
			s.fatal = &issue
		}
		s.log.Warn().Err(err).Msg("Parse failed, aborting session")
		s.transition(StateAborted)
		return err
	}

	s.sourceName = sourceName
	s.layout = opts.Layout
	s.table = table
	s.log.Info().
		Str("format", string(table.Format)).
		Str("encoding", table.Encoding).
		Int("rows", len(table.Rows)).
		Int("malformed", table.Malformed()).
		Msg("Source parsed")
	s.transition(StateParsed)
	return nil
}

// MapColumns infers the mapping on first use and merges overrides on top of
// the current mapping afterwards. Calling it after matching discards the
// downstream results and returns the session to Mapped.
func (s *Session) MapColumns(overrides map[int]model.FieldRole) (model.ColumnMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.in(StateParsed, StateMapped, StateMatched, StateValidated) {
		return model.ColumnMapping{}, s.invalid("map columns")
	}

	base := s.mapping
	if s.state == StateParsed {
		if s.table.Format == parser.FormatFixedWidth && s.layout != nil {
			base = columnmap.FromLayout(s.layout)
		} else {
			base = s.deps.Mapper.Infer(s.table.Header, s.table.Rows, s.table.Columns)
		}
	}
	mapping := base
	if len(overrides) > 0 {
		merged, err := columnmap.Merge(base, overrides)
		if err != nil {
			return model.ColumnMapping{}, err
		}
		mapping = merged
	}

	s.mapping = mapping
	s.outcomes = nil
	s.preflight = nil
	s.accepted = make(map[model.IssueKind]bool)
	s.transition(StateMapped)
	return mapping.Clone(), nil
}

// MatchStudents resolves identities and scores every row. Unmatched and
// unscorable rows are normal results; the only error is cancellation.
func (s *Session) MatchStudents(ctx context.Context) ([]model.RowOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateMapped {
		return nil, s.invalid("match students")
	}

	outcomes := make([]model.RowOutcome, len(s.table.Rows))
	var ids []model.StudentIdentifier
	var idRows []int
	for i, row := range s.table.Rows {
		o := s.extract(row)
		outcomes[i] = o
		if o.Malformed {
			continue
		}
		ids = append(ids, o.Identifier)
		idRows = append(idRows, i)
	}

	results, err := s.deps.Matcher.Match(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("match students: %w", err)
	}
	for j, res := range results {
		outcomes[idRows[j]].Match = res
	}

	hasAnswers := s.mapping.Has(model.RoleAnswers)
	scored, err := worker.OrderedMap(ctx, s.deps.Workers, outcomes, func(_ context.Context, _ int, o model.RowOutcome) (model.RowOutcome, error) {
		if o.Malformed || !hasAnswers {
			return o, nil
		}
		analysis, err := s.deps.Scorer.ScoreSet(s.deps.Key, o.AnswerSet)
		switch {
		case errors.Is(err, model.ErrUnknownBooklet):
			o.BookletError = err.Error()
		case err != nil:
			return o, err
		default:
			o.Analysis = &analysis
		}
		return o, nil
	})
	if err != nil {
		return nil, fmt.Errorf("score rows: %w", err)
	}

	s.outcomes = scored
	s.preflight = nil
	for _, o := range scored {
		s.log.Debug().Int("row", o.Row).Str("status", string(o.Match.Status)).Bool("scored", o.Scorable()).Msg("Row resolved")
	}
	s.transition(StateMatched)
	return cloneOutcomes(scored), nil
}

// extract reads a row through the mapping.
func (s *Session) extract(row model.RawRow) model.RowOutcome {
	cell := func(role model.FieldRole) string {
		col := s.mapping.ColumnFor(role)
		if col < 0 {
			return ""
		}
		return row.Cell(col)
	}
	id := model.StudentIdentifier{
		StudentNumber: strings.TrimSpace(cell(model.RoleStudentNumber)),
		NationalID:    strings.TrimSpace(cell(model.RoleNationalID)),
		FullName:      strings.TrimSpace(cell(model.RoleFullName)),
		ClassName:     strings.TrimSpace(cell(model.RoleClassName)),
	}
	return model.RowOutcome{
		Row:        row.Index,
		Identifier: id,
		AnswerSet: model.StudentAnswerSet{
			Identifier: id,
			Booklet:    strings.TrimSpace(cell(model.RoleBooklet)),
			Answers:    strings.TrimRight(cell(model.RoleAnswers), "\r\n"),
		},
		Match:     model.MatchResult{Status: model.MatchUnmatched},
		Malformed: row.Malformed,
		Problem:   row.Problem,
	}
}

// PreflightValidate produces the go/no-go report. It may be re-run while
// Validated.
func (s *Session) PreflightValidate() (model.PreflightResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.in(StateMatched, StateValidated) {
		return model.PreflightResult{}, s.invalid("preflight")
	}
	res := s.validate()
	s.log.Info().
		Int("errors", len(res.Errors)).
		Int("warnings", len(res.Warnings)).
		Float64("match_rate", res.MatchRate).
		Bool("go", res.Go).
		Msg("Preflight finished")
	s.transition(StateValidated)
	return res, nil
}

func (s *Session) validate() model.PreflightResult {
	accepted := make(map[model.IssueKind]bool, len(s.accepted))
	for k, v := range s.accepted {
		accepted[k] = v
	}
	res := s.deps.Validator.Validate(preflight.Input{
		Mapping:       s.mapping,
		QuestionCount: s.deps.Key.Len(),
		Booklets:      len(s.deps.Key.Booklets()),
		Outcomes:      s.outcomes,
		Accepted:      accepted,
	})
	s.preflight = &res
	return res
}

// Override accepts the blocking issues of an overridable kind. In Validated
// the report is recomputed at once.
func (s *Session) Override(kind model.IssueKind) (*model.PreflightResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !kind.Overridable() {
		return nil, fmt.Errorf("%w: %s", model.ErrNotOverridable, kind)
	}
	if !s.state.in(StateMatched, StateValidated) {
		return nil, s.invalid("override")
	}
	s.accepted[kind] = true
	s.log.Info().Str("kind", string(kind)).Msg("Blocking issues accepted by operator")
	if s.state != StateValidated {
		return nil, nil
	}
	res := s.validate()
	return &res, nil
}

// AssignStudent binds a row to a roster student by hand and returns the
// session to Matched so preflight must run again.
func (s *Session) AssignStudent(row int, studentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.in(StateMatched, StateValidated) {
		return s.invalid("assign student")
	}
	if row < 0 || row >= len(s.outcomes) {
		return fmt.Errorf("%w: %d", model.ErrRowOutOfRange, row)
	}
	if s.outcomes[row].Malformed {
		return fmt.Errorf("%w: row %d is malformed", model.ErrRowOutOfRange, row)
	}
	student, ok := s.deps.Matcher.Roster().Find(studentID)
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrStudentNotInRoster, studentID)
	}

	prev := s.outcomes[row].Match
	s.outcomes[row].Match = model.MatchResult{
		Status:       model.MatchManual,
		Student:      student,
		Confidence:   model.MatchManual.Confidence(1),
		Alternatives: prev.Alternatives,
		Assigned:     true,
	}
	s.preflight = nil
	s.log.Info().Int("row", row).Str("student_id", studentID).Msg("Row assigned manually")
	s.transition(StateMatched)
	return nil
}

// Commit partitions every row into matched, unmatched or malformed. It is
// legal once, from Validated, with no outstanding blocking issue.
func (s *Session) Commit() (*model.CommitPayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateValidated || s.preflight == nil {
		return nil, s.invalid("commit")
	}
	if n := len(s.preflight.Errors); n > 0 {
		return nil, fmt.Errorf("%w: %d blocking issues", model.ErrBlockingIssues, n)
	}

	payload := &model.CommitPayload{
		BatchID:     uuid.New(),
		SessionID:   s.id,
		ExamID:      s.examID,
		SourceName:  s.sourceName,
		CommittedAt: s.deps.Now().UTC(),
		Matched:     []model.MatchedResult{},
		Unmatched:   []model.UnmatchedEntry{},
		Malformed:   []model.MalformedRow{},
	}
	for k := range s.accepted {
		payload.Overrides = append(payload.Overrides, k)
	}
	sort.Slice(payload.Overrides, func(i, j int) bool { return payload.Overrides[i] < payload.Overrides[j] })

	for i, o := range s.outcomes {
		switch {
		case o.Malformed || o.BookletError != "":
			reason := o.Problem
			if o.BookletError != "" {
				reason = o.BookletError
			}
			raw := s.table.Rows[i]
			payload.Malformed = append(payload.Malformed, model.MalformedRow{
				Row:    o.Row,
				Line:   raw.Line,
				Cells:  append([]string(nil), raw.Cells...),
				Reason: reason,
			})
		case o.Match.Bound() && o.Analysis != nil:
			payload.Matched = append(payload.Matched, model.MatchedResult{
				Row:        o.Row,
				StudentID:  o.Match.Student.ID,
				Status:     o.Match.Status,
				Confidence: o.Match.Confidence,
				Booklet:    o.AnswerSet.Booklet,
				Answers:    o.AnswerSet.Answers,
				Analysis:   *o.Analysis,
			})
		default:
			alts := o.Match.Alternatives
			if alts == nil {
				alts = []model.Candidate{}
			}
			payload.Unmatched = append(payload.Unmatched, model.UnmatchedEntry{
				Row:          o.Row,
				Identifier:   o.Identifier,
				AnswerSet:    o.AnswerSet,
				Status:       o.Match.Status,
				Alternatives: alts,
				Analysis:     o.Analysis,
			})
		}
	}

	if payload.RowCount() != len(s.table.Rows) {
		return nil, fmt.Errorf("commit partition covers %d of %d rows", payload.RowCount(), len(s.table.Rows))
	}

	s.payload = payload
	s.log.Info().
		Str("batch_id", payload.BatchID.String()).
		Int("matched", len(payload.Matched)).
		Int("unmatched", len(payload.Unmatched)).
		Int("malformed", len(payload.Malformed)).
		Msg("Session committed")
	s.transition(StateCommitted)
	return payload, nil
}

// Abort discards all in-progress work. It is legal from any non-terminal
// state.
func (s *Session) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Terminal() {
		return s.invalid("abort")
	}
	s.table = nil
	s.mapping = model.ColumnMapping{}
	s.outcomes = nil
	s.preflight = nil
	s.transition(StateAborted)
	return nil
}

func cloneOutcomes(in []model.RowOutcome) []model.RowOutcome {
	if in == nil {
		return nil
	}
	out := make([]model.RowOutcome, len(in))
	copy(out, in)
	return out
}
