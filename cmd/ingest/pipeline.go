package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-ingest/internal/answerkey"
	"github.com/stemsi/exstem-ingest/internal/config"
	"github.com/stemsi/exstem-ingest/internal/diagnostic"
	"github.com/stemsi/exstem-ingest/internal/model"
	"github.com/stemsi/exstem-ingest/internal/parser"
	"github.com/stemsi/exstem-ingest/internal/profile"
	"github.com/stemsi/exstem-ingest/internal/roster"
	"github.com/stemsi/exstem-ingest/internal/service"
)

type runOptions struct {
	Input       string
	Profile     string
	Roster      string
	Delimiter   string
	Header      string
	Sheet       string
	FixedWidth  bool
	Overrides   map[int]model.FieldRole
	Accept      []model.IssueKind
	Assignments map[int]string
	// Commit runs past validation; otherwise the run stops at preflight.
	Commit bool
}

type runResult struct {
	Preflight *model.PreflightResult
	Payload   *model.CommitPayload
	Fatal     *model.Issue
}

// runImport drives one session through the whole pipeline.
func runImport(ctx context.Context, cfg config.Import, opts runOptions, log zerolog.Logger) (runResult, error) {
	var res runResult

	prof, err := profile.Load(opts.Profile)
	if err != nil {
		return res, fmt.Errorf("load profile: %w", err)
	}
	key, err := answerkey.New(prof)
	if err != nil {
		return res, err
	}
	students, err := roster.ReadFile(opts.Roster)
	if err != nil {
		return res, fmt.Errorf("load roster: %w", err)
	}
	data, err := os.ReadFile(opts.Input)
	if err != nil {
		return res, fmt.Errorf("read input: %w", err)
	}

	cls, err := diagnostic.New(cfg.DiagnosticLang)
	if err != nil {
		return res, err
	}
	sess, err := service.NewSession(cfg, key, students, cls, log)
	if err != nil {
		return res, err
	}

	popts := parser.Options{
		Header: parser.HeaderMode(opts.Header),
		Sheet:  opts.Sheet,
	}
	if opts.Delimiter != "" {
		popts.Delimiter = []rune(opts.Delimiter)[0]
	}
	if opts.FixedWidth {
		if prof.Layout == nil {
			return res, service.ErrLayoutMissing
		}
		popts.Layout = prof.Layout
	}

	if err := sess.Parse(filepath.Base(opts.Input), data, popts); err != nil {
		res.Fatal = sess.Snapshot().Fatal
		return res, err
	}
	if _, err := sess.MapColumns(opts.Overrides); err != nil {
		return res, err
	}
	if _, err := sess.MatchStudents(ctx); err != nil {
		return res, err
	}
	for row, id := range opts.Assignments {
		if err := sess.AssignStudent(row, id); err != nil {
			return res, fmt.Errorf("assign row %d: %w", row, err)
		}
	}
	for _, kind := range opts.Accept {
		if _, err := sess.Override(kind); err != nil {
			return res, err
		}
	}

	pre, err := sess.PreflightValidate()
	if err != nil {
		return res, err
	}
	res.Preflight = &pre

	if !opts.Commit {
		return res, nil
	}
	payload, err := sess.Commit()
	if err != nil {
		return res, err
	}
	res.Payload = payload
	return res, nil
}

// parseOverrides reads col=role pairs. Columns are zero-based.
func parseOverrides(pairs []string) (map[int]model.FieldRole, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[int]model.FieldRole, len(pairs))
	for _, p := range pairs {
		col, val, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("override %q: want col=role", p)
		}
		c, err := strconv.Atoi(strings.TrimSpace(col))
		if err != nil {
			return nil, fmt.Errorf("override %q: bad column: %w", p, err)
		}
		role, err := model.ParseFieldRole(strings.TrimSpace(val))
		if err != nil {
			return nil, fmt.Errorf("override %q: %w", p, err)
		}
		out[c] = role
	}
	return out, nil
}

// parseAssignments reads row=student_id pairs.
func parseAssignments(pairs []string) (map[int]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[int]string, len(pairs))
	for _, p := range pairs {
		row, id, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("assignment %q: want row=student_id", p)
		}
		r, err := strconv.Atoi(strings.TrimSpace(row))
		if err != nil {
			return nil, fmt.Errorf("assignment %q: bad row: %w", p, err)
		}
		out[r] = strings.TrimSpace(id)
	}
	return out, nil
}
