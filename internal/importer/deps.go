package importer

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-ingest/internal/answerkey"
	"github.com/stemsi/exstem-ingest/internal/model"
	"github.com/stemsi/exstem-ingest/internal/parser"
	"github.com/stemsi/exstem-ingest/internal/preflight"
)

// Parser reads raw bytes into a table.
type Parser interface {
	Parse(data []byte, opts parser.Options) (*parser.Table, error)
}

// Mapper infers column roles.
type Mapper interface {
	Infer(header []string, rows []model.RawRow, columns int) model.ColumnMapping
}

// Matcher resolves identities against its roster snapshot.
type Matcher interface {
	Match(ctx context.Context, ids []model.StudentIdentifier) ([]model.MatchResult, error)
	Roster() *model.Roster
}

// Scorer transposes and scores one answer set.
type Scorer interface {
	ScoreSet(key *answerkey.Key, set model.StudentAnswerSet) (model.ResultAnalysis, error)
}

// Validator runs preflight.
type Validator interface {
	Validate(in preflight.Input) model.PreflightResult
}

// Classifier builds issues from kinds and errors.
type Classifier interface {
	New(kind model.IssueKind, loc model.Location, detail string) model.Issue
	FromError(err error) (model.Issue, bool)
}

// Deps are the collaborators a session is built with. All are required
// except Logger, Workers and Now.
type Deps struct {
	Parser     Parser
	Mapper     Mapper
	Matcher    Matcher
	Scorer     Scorer
	Validator  Validator
	Classifier Classifier
	Key        *answerkey.Key
	Logger     zerolog.Logger
	// Workers bounds parallel scoring; matching parallelism belongs to the
	// matcher.
	Workers int
	Now     func() time.Time
}

func (d Deps) validate() error {
	switch {
	case d.Parser == nil:
		return errors.New("importer: parser is required")
	case d.Mapper == nil:
		return errors.New("importer: mapper is required")
	case d.Matcher == nil:
		return errors.New("importer: matcher is required")
	case d.Scorer == nil:
		return errors.New("importer: scorer is required")
	case d.Validator == nil:
		return errors.New("importer: validator is required")
	case d.Classifier == nil:
		return errors.New("importer: classifier is required")
	case d.Key == nil:
		return errors.New("importer: answer key is required")
	}
	return nil
}
