package service

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-ingest/internal/answerkey"
	"github.com/stemsi/exstem-ingest/internal/columnmap"
	"github.com/stemsi/exstem-ingest/internal/config"
	"github.com/stemsi/exstem-ingest/internal/diagnostic"
	"github.com/stemsi/exstem-ingest/internal/importer"
	"github.com/stemsi/exstem-ingest/internal/matcher"
	"github.com/stemsi/exstem-ingest/internal/model"
	"github.com/stemsi/exstem-ingest/internal/parser"
	"github.com/stemsi/exstem-ingest/internal/preflight"
	"github.com/stemsi/exstem-ingest/internal/scoring"
)

// NewSession wires the pipeline components for one exam and roster snapshot.
// The HTTP service and the ingest CLI share it.
func NewSession(cfg config.Import, key *answerkey.Key, roster []model.RosterStudent, cls *diagnostic.Classifier, log zerolog.Logger) (*importer.Session, error) {
	rounding, err := scoring.ParseRounding(cfg.NetRounding)
	if err != nil {
		return nil, err
	}

	mapper := columnmap.New(columnmap.Config{
		MinConfidence:    cfg.MapperMinConfidence,
		SampleSize:       cfg.MapperSampleSize,
		NationalIDLength: cfg.NationalIDLength,
	}).WithQuestionCount(key.Len())

	m := matcher.New(model.NewRoster(roster), matcher.Config{
		AcceptThreshold:  cfg.MatchAcceptThreshold,
		SeparationMargin: cfg.MatchSeparationMargin,
		CandidateFloor:   cfg.MatchCandidateFloor,
		TopK:             cfg.MatchTopK,
		Workers:          cfg.RowWorkers,
	})

	s, err := importer.New(importer.Deps{
		Parser:     parser.New(parser.Options{FallbackEncoding: cfg.FallbackEncoding}),
		Mapper:     mapper,
		Matcher:    m,
		Scorer:     scoring.New(scoring.Policy{Rounding: rounding, Precision: cfg.NetPrecision, ClampNegative: cfg.NetClampNegative}),
		Validator:  preflight.New(cls),
		Classifier: cls,
		Key:        key,
		Logger:     log,
		Workers:    cfg.RowWorkers,
	})
	if err != nil {
		return nil, fmt.Errorf("build session: %w", err)
	}
	return s, nil
}
