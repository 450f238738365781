package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/exstem-ingest/internal/model"
)

var ErrDuplicateNationalID = errors.New("student with this national id already exists")

// StudentRepository handles roster data access.
type StudentRepository struct {
	pool *pgxpool.Pool
}

// NewStudentRepository creates a new StudentRepository.
func NewStudentRepository(pool *pgxpool.Pool) *StudentRepository {
	return &StudentRepository{pool: pool}
}

// ListRoster loads the roster snapshot. An empty classes filter returns every
// student; otherwise only students of the named classes.
func (r *StudentRepository) ListRoster(ctx context.Context, classes []string) ([]model.RosterStudent, error) {
	query := `SELECT s.id::text, COALESCE(s.student_number, ''), COALESCE(s.national_id, ''),
	                 s.full_name, COALESCE(c.name, '')
	          FROM students s
	          LEFT JOIN classes c ON c.id = s.class_id`
	var args []interface{}
	if len(classes) > 0 {
		query += ` WHERE c.name = ANY($1)`
		args = append(args, classes)
	}
	query += ` ORDER BY c.name, s.full_name, s.id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []model.RosterStudent
	for rows.Next() {
		var s model.RosterStudent
		if err := rows.Scan(&s.ID, &s.StudentNumber, &s.NationalID, &s.FullName, &s.ClassName); err != nil {
			return nil, err
		}
		students = append(students, s)
	}
	return students, rows.Err()
}

// Create inserts a new student into classID and fills s.ID.
func (r *StudentRepository) Create(ctx context.Context, s *model.RosterStudent, classID int) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO students (student_number, national_id, full_name, class_id)
		 VALUES (NULLIF($1, ''), NULLIF($2, ''), $3, $4)
		 RETURNING id::text`,
		s.StudentNumber, s.NationalID, s.FullName, classID,
	).Scan(&s.ID)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateNationalID
		}
		return err
	}
	return nil
}
