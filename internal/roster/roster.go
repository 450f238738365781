// Package roster reads roster snapshots from CSV exports.
package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/stemsi/exstem-ingest/internal/model"
)

// ErrNoNameColumn is returned for a roster file without a full_name column.
var ErrNoNameColumn = errors.New("roster has no full_name column")

// ReadFile reads the roster CSV at path.
func ReadFile(path string) ([]model.RosterStudent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Read parses a header-led CSV with the columns id, student_number,
// national_id, full_name and class_name, in any order. Only full_name is
// required. Rows without an id get a random one.
func Read(r io.Reader) ([]model.RosterStudent, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read roster header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	if _, ok := idx["full_name"]; !ok {
		return nil, ErrNoNameColumn
	}

	var students []model.RosterStudent
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read roster: %w", err)
		}
		cell := func(name string) string {
			i, ok := idx[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}
		s := model.RosterStudent{
			ID:            cell("id"),
			StudentNumber: cell("student_number"),
			NationalID:    cell("national_id"),
			FullName:      cell("full_name"),
			ClassName:     cell("class_name"),
		}
		if s.FullName == "" && s.StudentNumber == "" && s.NationalID == "" {
			continue
		}
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		students = append(students, s)
	}
	return students, nil
}
