package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/exstem-ingest/internal/model"
)

var ErrExamNotFound = errors.New("exam profile not found")

// ExamRepository stores exam profiles: the exam row plus its subject ranges
// and booklet tables.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// GetProfile loads the full profile of one exam.
func (r *ExamRepository) GetProfile(ctx context.Context, id string) (*model.ExamProfile, error) {
	p := &model.ExamProfile{}
	var layout []byte
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, exam_type, divisor, canonical_booklet, answer_key,
		        valid_answers, blank_markers, layout, updated_at
		 FROM exams WHERE id = $1`, id,
	).Scan(&p.ID, &p.Title, &p.Type, &p.Divisor, &p.CanonicalBooklet, &p.Key,
		&p.ValidAnswers, &p.BlankMarkers, &layout, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, err
	}
	if len(layout) > 0 {
		p.Layout = &model.Layout{}
		if err := json.Unmarshal(layout, p.Layout); err != nil {
			return nil, fmt.Errorf("decode layout: %w", err)
		}
	}

	rows, err := r.pool.Query(ctx,
		`SELECT code, start_q, end_q FROM exam_subjects WHERE exam_id = $1 ORDER BY start_q`, id)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var s model.SubjectRange
		if err := rows.Scan(&s.Code, &s.Start, &s.End); err != nil {
			rows.Close()
			return nil, err
		}
		p.Subjects = append(p.Subjects, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = r.pool.Query(ctx,
		`SELECT tag, question_order FROM exam_booklets WHERE exam_id = $1 ORDER BY tag`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var b model.BookletTable
		if err := rows.Scan(&b.Tag, &b.Order); err != nil {
			return nil, err
		}
		p.Booklets = append(p.Booklets, b)
	}
	return p, rows.Err()
}

// ListIDs returns the ids of every stored exam.
func (r *ExamRepository) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM exams ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// SaveProfile upserts the exam and replaces its subjects and booklets in one
// transaction.
func (r *ExamRepository) SaveProfile(ctx context.Context, p *model.ExamProfile) error {
	var layout []byte
	if p.Layout != nil {
		raw, err := json.Marshal(p.Layout)
		if err != nil {
			return fmt.Errorf("encode layout: %w", err)
		}
		layout = raw
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO exams (id, title, exam_type, divisor, canonical_booklet, answer_key,
			                    valid_answers, blank_markers, layout)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (id) DO UPDATE SET
			     title = EXCLUDED.title,
			     exam_type = EXCLUDED.exam_type,
			     divisor = EXCLUDED.divisor,
			     canonical_booklet = EXCLUDED.canonical_booklet,
			     answer_key = EXCLUDED.answer_key,
			     valid_answers = EXCLUDED.valid_answers,
			     blank_markers = EXCLUDED.blank_markers,
			     layout = EXCLUDED.layout,
			     updated_at = CURRENT_TIMESTAMP
			 RETURNING updated_at`,
			p.ID, p.Title, string(p.Type), p.Divisor, p.CanonicalBooklet, p.Key,
			p.ValidAnswers, p.BlankMarkers, layout,
		).Scan(&p.UpdatedAt)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM exam_subjects WHERE exam_id = $1`, p.ID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM exam_booklets WHERE exam_id = $1`, p.ID); err != nil {
			return err
		}

		if len(p.Subjects) > 0 {
			codes := make([]string, len(p.Subjects))
			starts := make([]int, len(p.Subjects))
			ends := make([]int, len(p.Subjects))
			for i, s := range p.Subjects {
				codes[i], starts[i], ends[i] = s.Code, s.Start, s.End
			}
			_, err := tx.Exec(ctx,
				`INSERT INTO exam_subjects (exam_id, code, start_q, end_q)
				 SELECT $1, u.code, u.start_q, u.end_q
				 FROM UNNEST($2::text[], $3::int[], $4::int[]) AS u (code, start_q, end_q)`,
				p.ID, codes, starts, ends)
			if err != nil {
				return err
			}
		}

		for _, b := range p.Booklets {
			if _, err := tx.Exec(ctx,
				`INSERT INTO exam_booklets (exam_id, tag, question_order) VALUES ($1, $2, $3)`,
				p.ID, b.Tag, b.Order); err != nil {
				return err
			}
		}
		return nil
	})
}
