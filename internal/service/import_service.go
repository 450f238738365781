package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-ingest/internal/config"
	"github.com/stemsi/exstem-ingest/internal/diagnostic"
	"github.com/stemsi/exstem-ingest/internal/importer"
	"github.com/stemsi/exstem-ingest/internal/model"
	"github.com/stemsi/exstem-ingest/internal/parser"
)

// ErrLayoutMissing is returned for a fixed-width upload against an exam
// profile without a layout.
var ErrLayoutMissing = errors.New("exam profile has no fixed-width layout")

// RosterStore loads roster snapshots.
type RosterStore interface {
	ListRoster(ctx context.Context, classes []string) ([]model.RosterStudent, error)
}

// RosterCache keeps roster snapshots between uploads of the same exam. A miss
// is (nil, nil).
type RosterCache interface {
	Get(ctx context.Context, examID string, classes []string) ([]model.RosterStudent, error)
	Set(ctx context.Context, examID string, classes []string, students []model.RosterStudent) error
}

// CommitQueue hands committed payloads to the persistence worker.
type CommitQueue interface {
	Enqueue(ctx context.Context, p *model.CommitPayload) error
	Persisted(ctx context.Context, batchID uuid.UUID) (bool, error)
}

// CommitStore persists a payload synchronously when the queue is down.
type CommitStore interface {
	SaveCommit(ctx context.Context, p *model.CommitPayload) error
}

// CreateImportInput is one upload.
type CreateImportInput struct {
	ExamID     string
	SourceName string
	Data       []byte
	// Classes narrows the roster snapshot; empty means the whole school.
	Classes    []string
	Options    parser.Options
	FixedWidth bool
}

// ImportService hosts import sessions in memory. Sessions idle longer than
// the TTL are evicted by the janitor.
type ImportService struct {
	cfg        config.Import
	profiles   *ProfileService
	roster     RosterStore
	rosters    RosterCache
	queue      CommitQueue
	store      CommitStore
	classifier *diagnostic.Classifier
	log        zerolog.Logger
	now        func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*importer.Session
}

// NewImportService creates a new ImportService.
func NewImportService(
	cfg config.Import,
	profiles *ProfileService,
	roster RosterStore,
	queue CommitQueue,
	store CommitStore,
	log zerolog.Logger,
) (*ImportService, error) {
	cls, err := diagnostic.New(cfg.DiagnosticLang)
	if err != nil {
		return nil, fmt.Errorf("load diagnostics: %w", err)
	}
	return &ImportService{
		cfg:        cfg,
		profiles:   profiles,
		roster:     roster,
		queue:      queue,
		store:      store,
		classifier: cls,
		log:        log.With().Str("component", "import_service").Logger(),
		now:        time.Now,
		sessions:   make(map[uuid.UUID]*importer.Session),
	}, nil
}

// WithRosterCache makes Create read roster snapshots through cache.
func (s *ImportService) WithRosterCache(cache RosterCache) *ImportService {
	s.rosters = cache
	return s
}

// loadRoster reads the snapshot from the cache, falling back to the store.
// Cache failures only cost a database read.
func (s *ImportService) loadRoster(ctx context.Context, examID string, classes []string) ([]model.RosterStudent, error) {
	if s.rosters != nil {
		students, err := s.rosters.Get(ctx, examID, classes)
		if err != nil {
			s.log.Warn().Err(err).Str("exam_id", examID).Msg("Roster cache read failed")
		} else if students != nil {
			return students, nil
		}
	}

	students, err := s.roster.ListRoster(ctx, classes)
	if err != nil {
		return nil, err
	}
	if s.rosters != nil && len(students) > 0 {
		if err := s.rosters.Set(ctx, examID, classes, students); err != nil {
			s.log.Warn().Err(err).Str("exam_id", examID).Msg("Roster cache write failed")
		}
	}
	return students, nil
}

// Create opens a session for the upload and parses it. A session whose parse
// failed is still registered (Aborted, with its fatal issue) and returned
// together with the parse error.
func (s *ImportService) Create(ctx context.Context, in CreateImportInput) (importer.View, error) {
	key, prof, err := s.profiles.Key(ctx, in.ExamID)
	if err != nil {
		return importer.View{}, err
	}
	opts := in.Options
	if in.FixedWidth {
		if prof.Layout == nil {
			return importer.View{}, ErrLayoutMissing
		}
		opts.Layout = prof.Layout
	}

	students, err := s.loadRoster(ctx, in.ExamID, in.Classes)
	if err != nil {
		return importer.View{}, fmt.Errorf("load roster: %w", err)
	}

	sess, err := NewSession(s.cfg, key, students, s.classifier, s.log)
	if err != nil {
		return importer.View{}, err
	}
	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	s.mu.Unlock()

	s.log.Info().
		Str("session_id", sess.ID().String()).
		Str("exam_id", in.ExamID).
		Int("roster", len(students)).
		Int("bytes", len(in.Data)).
		Msg("Import session created")

	perr := sess.Parse(in.SourceName, in.Data, opts)
	return sess.Snapshot(), perr
}

// Session returns a registered session.
func (s *ImportService) Session(id uuid.UUID) (*importer.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, model.ErrSessionNotFound
	}
	return sess, nil
}

// View returns the session snapshot.
func (s *ImportService) View(id uuid.UUID) (importer.View, error) {
	sess, err := s.Session(id)
	if err != nil {
		return importer.View{}, err
	}
	return sess.Snapshot(), nil
}

// MapColumns applies overrides (or infers on first use).
func (s *ImportService) MapColumns(id uuid.UUID, overrides map[int]model.FieldRole) (model.ColumnMapping, error) {
	sess, err := s.Session(id)
	if err != nil {
		return model.ColumnMapping{}, err
	}
	return sess.MapColumns(overrides)
}

// Match runs matching and scoring.
func (s *ImportService) Match(ctx context.Context, id uuid.UUID) ([]model.RowOutcome, error) {
	sess, err := s.Session(id)
	if err != nil {
		return nil, err
	}
	return sess.MatchStudents(ctx)
}

// Validate runs preflight.
func (s *ImportService) Validate(id uuid.UUID) (model.PreflightResult, error) {
	sess, err := s.Session(id)
	if err != nil {
		return model.PreflightResult{}, err
	}
	return sess.PreflightValidate()
}

// Override accepts the blocking issues of kind.
func (s *ImportService) Override(id uuid.UUID, kind model.IssueKind) (*model.PreflightResult, error) {
	sess, err := s.Session(id)
	if err != nil {
		return nil, err
	}
	return sess.Override(kind)
}

// Assign binds a row to a roster student.
func (s *ImportService) Assign(id uuid.UUID, row int, studentID string) error {
	sess, err := s.Session(id)
	if err != nil {
		return err
	}
	return sess.AssignStudent(row, studentID)
}

// Commit finalizes the session and queues the payload for persistence. When
// the queue rejects it the payload is written directly.
func (s *ImportService) Commit(ctx context.Context, id uuid.UUID) (*model.CommitPayload, error) {
	sess, err := s.Session(id)
	if err != nil {
		return nil, err
	}
	payload, err := sess.Commit()
	if err != nil {
		return nil, err
	}
	return payload, s.handOff(ctx, payload)
}

// Persist hands a committed session's payload to persistence again. It
// recovers commits whose first hand-off failed. The store skips batch ids it
// already holds, so a replay never duplicates rows.
func (s *ImportService) Persist(ctx context.Context, id uuid.UUID) (*model.CommitPayload, error) {
	sess, err := s.Session(id)
	if err != nil {
		return nil, err
	}
	v := sess.Snapshot()
	if v.Payload == nil {
		return nil, fmt.Errorf("%w: persist not allowed in state %s", model.ErrInvalidTransition, v.State)
	}

	payload := *v.Payload
	payload.Attempts = 0
	s.log.Info().Str("session_id", id.String()).Str("batch_id", payload.BatchID.String()).Msg("Re-persisting committed payload")
	return &payload, s.handOff(ctx, &payload)
}

// handOff queues the payload, writing it directly when the queue rejects it.
func (s *ImportService) handOff(ctx context.Context, payload *model.CommitPayload) error {
	if s.queue != nil {
		qerr := s.queue.Enqueue(ctx, payload)
		if qerr == nil {
			return nil
		}
		s.log.Warn().Err(qerr).Str("batch_id", payload.BatchID.String()).Msg("Enqueue failed, persisting directly")
	}
	if s.store == nil {
		return errors.New("no commit sink configured")
	}
	if err := s.store.SaveCommit(ctx, payload); err != nil {
		return fmt.Errorf("persist commit: %w", err)
	}
	return nil
}

// Persisted reports whether the session's payload has reached the database.
func (s *ImportService) Persisted(ctx context.Context, id uuid.UUID) (bool, error) {
	sess, err := s.Session(id)
	if err != nil {
		return false, err
	}
	v := sess.Snapshot()
	if v.Payload == nil || s.queue == nil {
		return false, nil
	}
	return s.queue.Persisted(ctx, v.Payload.BatchID)
}

// Abort discards the session's work. The session stays registered until
// evicted so its final state can be read.
func (s *ImportService) Abort(id uuid.UUID) error {
	sess, err := s.Session(id)
	if err != nil {
		return err
	}
	return sess.Abort()
}

// Evict drops sessions untouched for longer than the TTL and returns how
// many were removed.
func (s *ImportService) Evict() int {
	cutoff := s.now().Add(-s.cfg.SessionTTL)

	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if sess.UpdatedAt().Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// StartJanitor evicts expired sessions every interval until ctx is done.
func (s *ImportService) StartJanitor(ctx context.Context, interval time.Duration) {
	s.log.Info().Dur("ttl", s.cfg.SessionTTL).Msg("Session janitor started")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Evict(); n > 0 {
				s.log.Info().Int("evicted", n).Msg("Expired import sessions evicted")
			}
		}
	}
}
