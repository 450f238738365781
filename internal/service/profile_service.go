package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-ingest/internal/answerkey"
	"github.com/stemsi/exstem-ingest/internal/model"
	"github.com/stemsi/exstem-ingest/internal/profile"
	"github.com/stemsi/exstem-ingest/internal/repository"
)

// ErrProfileNotFound is returned when no source knows the exam.
var ErrProfileNotFound = errors.New("exam profile not found")

// ProfileStore is the persistent profile source.
type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (*model.ExamProfile, error)
	SaveProfile(ctx context.Context, p *model.ExamProfile) error
	ListIDs(ctx context.Context) ([]string, error)
}

// ProfileCache holds profiles between requests. A miss is (nil, nil).
type ProfileCache interface {
	Get(ctx context.Context, id string) (*model.ExamProfile, error)
	Set(ctx context.Context, p *model.ExamProfile) error
}

// ProfileService resolves exam profiles: files shipped with the deployment
// first, then the cache, then the store.
type ProfileService struct {
	files map[string]model.ExamProfile
	store ProfileStore
	cache ProfileCache
	log   zerolog.Logger
}

// NewProfileService creates a new ProfileService. files may be nil.
func NewProfileService(files map[string]model.ExamProfile, store ProfileStore, cache ProfileCache, log zerolog.Logger) *ProfileService {
	return &ProfileService{
		files: files,
		store: store,
		cache: cache,
		log:   log.With().Str("component", "profile_service").Logger(),
	}
}

// Get returns the profile of examID.
func (s *ProfileService) Get(ctx context.Context, examID string) (*model.ExamProfile, error) {
	if p, ok := s.files[examID]; ok {
		return &p, nil
	}

	if s.cache != nil {
		p, err := s.cache.Get(ctx, examID)
		if err != nil {
			s.log.Warn().Err(err).Str("exam_id", examID).Msg("Profile cache read failed")
		} else if p != nil {
			return p, nil
		}
	}

	if s.store == nil {
		return nil, ErrProfileNotFound
	}
	p, err := s.store.GetProfile(ctx, examID)
	if err != nil {
		if errors.Is(err, repository.ErrExamNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("load profile: %w", err)
	}
	s.warm(ctx, p)
	return p, nil
}

// Key builds the answer key of examID.
func (s *ProfileService) Key(ctx context.Context, examID string) (*answerkey.Key, *model.ExamProfile, error) {
	p, err := s.Get(ctx, examID)
	if err != nil {
		return nil, nil, err
	}
	key, err := answerkey.New(*p)
	if err != nil {
		return nil, nil, err
	}
	return key, p, nil
}

// Save checks p, stores it and refreshes the cache.
func (s *ProfileService) Save(ctx context.Context, p *model.ExamProfile) error {
	if err := profile.Check(*p); err != nil {
		return err
	}
	if s.store == nil {
		return errors.New("no profile store configured")
	}
	if err := s.store.SaveProfile(ctx, p); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	s.warm(ctx, p)
	s.log.Info().Str("exam_id", p.ID).Int("questions", len(p.Key)).Msg("Profile saved")
	return nil
}

// PrewarmAll loads every stored profile into the cache on startup.
func (s *ProfileService) PrewarmAll(ctx context.Context) error {
	if s.store == nil || s.cache == nil {
		return nil
	}
	ids, err := s.store.ListIDs(ctx)
	if err != nil {
		return fmt.Errorf("list exams: %w", err)
	}
	if len(ids) == 0 {
		s.log.Info().Msg("No exam profiles to prewarm")
		return nil
	}

	warmed := 0
	for _, id := range ids {
		p, err := s.store.GetProfile(ctx, id)
		if err != nil {
			s.log.Warn().Err(err).Str("exam_id", id).Msg("Failed to load profile, skipping")
			continue
		}
		if err := s.cache.Set(ctx, p); err != nil {
			s.log.Warn().Err(err).Str("exam_id", id).Msg("Failed to cache profile, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(ids)).
		Msg("Prewarming complete")
	return nil
}

func (s *ProfileService) warm(ctx context.Context, p *model.ExamProfile) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, p); err != nil {
		s.log.Warn().Err(err).Str("exam_id", p.ID).Msg("Profile cache write failed")
	}
}
