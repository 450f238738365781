package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/exstem-ingest/internal/model"
)

// ImportBatch is the summary row of one persisted commit.
type ImportBatch struct {
	ID          uuid.UUID         `json:"id"`
	SessionID   uuid.UUID         `json:"session_id"`
	ExamID      string            `json:"exam_id"`
	SourceName  string            `json:"source_name"`
	Matched     int               `json:"matched"`
	Unmatched   int               `json:"unmatched"`
	Malformed   int               `json:"malformed"`
	Overrides   []model.IssueKind `json:"overrides"`
	CommittedAt time.Time         `json:"committed_at"`
	PersistedAt time.Time         `json:"persisted_at"`
}

// ImportRepository persists committed import payloads.
type ImportRepository struct {
	pool *pgxpool.Pool
}

// NewImportRepository creates a new ImportRepository.
func NewImportRepository(pool *pgxpool.Pool) *ImportRepository {
	return &ImportRepository{pool: pool}
}

// SaveBatch writes several payloads in one transaction. A payload whose batch
// id already exists is skipped, so requeued payloads are safe to replay.
func (r *ImportRepository) SaveBatch(ctx context.Context, payloads []*model.CommitPayload) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		for _, p := range payloads {
			if err := saveCommit(ctx, tx, p); err != nil {
				return fmt.Errorf("batch %s: %w", p.BatchID, err)
			}
		}
		return nil
	})
}

// SaveCommit writes a single payload in its own transaction.
func (r *ImportRepository) SaveCommit(ctx context.Context, p *model.CommitPayload) error {
	return r.SaveBatch(ctx, []*model.CommitPayload{p})
}

func saveCommit(ctx context.Context, tx pgx.Tx, p *model.CommitPayload) error {
	overrides := make([]string, len(p.Overrides))
	for i, k := range p.Overrides {
		overrides[i] = string(k)
	}

	tag, err := tx.Exec(ctx,
		`INSERT INTO import_batches (id, session_id, exam_id, source_name,
		                             matched_count, unmatched_count, malformed_count, overrides, committed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO NOTHING`,
		p.BatchID, p.SessionID, p.ExamID, p.SourceName,
		len(p.Matched), len(p.Unmatched), len(p.Malformed), overrides, p.CommittedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return nil
	}

	if err := insertResults(ctx, tx, p); err != nil {
		return fmt.Errorf("insert results: %w", err)
	}
	if err := insertUnmatched(ctx, tx, p); err != nil {
		return fmt.Errorf("insert unmatched: %w", err)
	}
	if err := insertMalformed(ctx, tx, p); err != nil {
		return fmt.Errorf("insert malformed: %w", err)
	}
	return nil
}

// ----------------------------------------------------------------
// BULK inserts using UNNEST
// ----------------------------------------------------------------

func insertResults(ctx context.Context, tx pgx.Tx, p *model.CommitPayload) error {
	n := len(p.Matched)
	if n == 0 {
		return nil
	}

	rows := make([]int, 0, n)
	students := make([]string, 0, n)
	statuses := make([]string, 0, n)
	confidences := make([]float64, 0, n)
	booklets := make([]string, 0, n)
	answers := make([]string, 0, n)
	corrects := make([]int, 0, n)
	wrongs := make([]int, 0, n)
	blanks := make([]int, 0, n)
	nets := make([]float64, 0, n)
	subjects := make([]string, 0, n)

	for _, m := range p.Matched {
		raw, err := json.Marshal(m.Analysis.Subjects)
		if err != nil {
			return err
		}
		rows = append(rows, m.Row)
		students = append(students, m.StudentID)
		statuses = append(statuses, string(m.Status))
		confidences = append(confidences, m.Confidence)
		booklets = append(booklets, m.Booklet)
		answers = append(answers, m.Answers)
		corrects = append(corrects, m.Analysis.Total.Correct)
		wrongs = append(wrongs, m.Analysis.Total.Wrong)
		blanks = append(blanks, m.Analysis.Total.Blank)
		nets = append(nets, m.Analysis.Total.Net)
		subjects = append(subjects, string(raw))
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO import_results (batch_id, row_index, student_id, match_status, confidence,
		                            booklet, answers, correct, wrong, blank, net, subjects)
		SELECT $1, u.row_index, u.student_id::uuid, u.match_status, u.confidence,
		       u.booklet, u.answers, u.correct, u.wrong, u.blank, u.net, u.subjects::jsonb
		FROM UNNEST(
			$2::int[],
			$3::text[],
			$4::text[],
			$5::float8[],
			$6::text[],
			$7::text[],
			$8::int[],
			$9::int[],
			$10::int[],
			$11::float8[],
			$12::text[]
		) AS u (row_index, student_id, match_status, confidence, booklet, answers,
		        correct, wrong, blank, net, subjects)`,
		p.BatchID, rows, students, statuses, confidences, booklets, answers,
		corrects, wrongs, blanks, nets, subjects)
	return err
}

func insertUnmatched(ctx context.Context, tx pgx.Tx, p *model.CommitPayload) error {
	n := len(p.Unmatched)
	if n == 0 {
		return nil
	}

	rows := make([]int, 0, n)
	numbers := make([]string, 0, n)
	nationalIDs := make([]string, 0, n)
	names := make([]string, 0, n)
	classes := make([]string, 0, n)
	booklets := make([]string, 0, n)
	answers := make([]string, 0, n)
	statuses := make([]string, 0, n)
	alternatives := make([]string, 0, n)
	nets := make([]*float64, 0, n)

	for _, u := range p.Unmatched {
		raw, err := json.Marshal(u.Alternatives)
		if err != nil {
			return err
		}
		var net *float64
		if u.Analysis != nil {
			v := u.Analysis.Total.Net
			net = &v
		}
		rows = append(rows, u.Row)
		numbers = append(numbers, u.Identifier.StudentNumber)
		nationalIDs = append(nationalIDs, u.Identifier.NationalID)
		names = append(names, u.Identifier.FullName)
		classes = append(classes, u.Identifier.ClassName)
		booklets = append(booklets, u.AnswerSet.Booklet)
		answers = append(answers, u.AnswerSet.Answers)
		statuses = append(statuses, string(u.Status))
		alternatives = append(alternatives, string(raw))
		nets = append(nets, net)
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO import_unmatched (batch_id, row_index, student_number, national_id, full_name,
		                              class_name, booklet, answers, match_status, alternatives, net)
		SELECT $1, u.row_index, u.student_number, u.national_id, u.full_name,
		       u.class_name, u.booklet, u.answers, u.match_status, u.alternatives::jsonb, u.net
		FROM UNNEST(
			$2::int[],
			$3::text[],
			$4::text[],
			$5::text[],
			$6::text[],
			$7::text[],
			$8::text[],
			$9::text[],
			$10::text[],
			$11::float8[]
		) AS u (row_index, student_number, national_id, full_name, class_name,
		        booklet, answers, match_status, alternatives, net)`,
		p.BatchID, rows, numbers, nationalIDs, names, classes, booklets, answers,
		statuses, alternatives, nets)
	return err
}

func insertMalformed(ctx context.Context, tx pgx.Tx, p *model.CommitPayload) error {
	n := len(p.Malformed)
	if n == 0 {
		return nil
	}

	rows := make([]int, 0, n)
	lines := make([]int, 0, n)
	cells := make([]string, 0, n)
	reasons := make([]string, 0, n)

	for _, m := range p.Malformed {
		c := m.Cells
		if c == nil {
			c = []string{}
		}
		raw, err := json.Marshal(c)
		if err != nil {
			return err
		}
		rows = append(rows, m.Row)
		lines = append(lines, m.Line)
		cells = append(cells, string(raw))
		reasons = append(reasons, m.Reason)
	}

	// Cells are ragged, so they travel as JSON and are unpacked per row.
	_, err := tx.Exec(ctx, `
		INSERT INTO import_malformed (batch_id, row_index, line, cells, reason)
		SELECT $1, u.row_index, u.line,
		       ARRAY(SELECT jsonb_array_elements_text(u.cells::jsonb)), u.reason
		FROM UNNEST(
			$2::int[],
			$3::int[],
			$4::text[],
			$5::text[]
		) AS u (row_index, line, cells, reason)`,
		p.BatchID, rows, lines, cells, reasons)
	return err
}

// ListBatches returns one page of an exam's persisted commits, newest first,
// along with the total number of commits.
func (r *ImportRepository) ListBatches(ctx context.Context, examID string, limit, offset int) ([]ImportBatch, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM import_batches WHERE exam_id = $1`, examID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, exam_id, source_name, matched_count, unmatched_count,
		        malformed_count, overrides, committed_at, persisted_at
		 FROM import_batches WHERE exam_id = $1
		 ORDER BY committed_at DESC LIMIT $2 OFFSET $3`, examID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var batches []ImportBatch
	for rows.Next() {
		var b ImportBatch
		var overrides []string
		if err := rows.Scan(&b.ID, &b.SessionID, &b.ExamID, &b.SourceName, &b.Matched, &b.Unmatched,
			&b.Malformed, &overrides, &b.CommittedAt, &b.PersistedAt); err != nil {
			return nil, 0, err
		}
		b.Overrides = make([]model.IssueKind, len(overrides))
		for i, o := range overrides {
			b.Overrides[i] = model.IssueKind(o)
		}
		batches = append(batches, b)
	}
	return batches, total, rows.Err()
}
