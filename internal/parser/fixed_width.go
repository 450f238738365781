package parser

import (
	"fmt"
	"strings"

	"github.com/stemsi/exstem-ingest/internal/model"
)

// parseFixedWidth cuts every line into the layout's fields. Answer fields
// keep their spaces because a space is a blank answer; other fields are
// trimmed.
func parseFixedWidth(lines []line, layout *model.Layout) (*Table, error) {
	if len(layout.Fields) == 0 {
		return nil, unreadable("layout has no fields")
	}

	// A line is recognized when it reaches the start of every field.
	reach := 0
	for _, f := range layout.Fields {
		if f.Start > reach {
			reach = f.Start
		}
	}
	recognized := 0
	for _, l := range lines {
		if !l.bad && len([]rune(l.text)) >= reach {
			recognized++
		}
	}
	if recognized == 0 {
		return nil, unreadable(fmt.Sprintf("no line matches layout %q", layout.Name))
	}

	header := make([]string, len(layout.Fields))
	for i, f := range layout.Fields {
		header[i] = string(f.Role)
	}

	rows := make([]model.RawRow, 0, len(lines))
	for i, l := range lines {
		row := model.RawRow{Index: i, Line: l.number}
		if l.bad {
			row.Cells = []string{l.text}
			row.Malformed = true
			row.Problem = "invalid byte sequence"
			rows = append(rows, row)
			continue
		}

		text := []rune(l.text)
		row.Cells = make([]string, len(layout.Fields))
		for j, f := range layout.Fields {
			if len(text) < f.Start {
				if !row.Malformed {
					row.Malformed = true
					row.Problem = fmt.Sprintf("line ends before field %s at position %d", f.Role, f.Start)
				}
				continue
			}
			end := f.End
			if end > len(text) {
				end = len(text)
			}
			cell := string(text[f.Start-1 : end])
			if f.Role != model.RoleAnswers {
				cell = strings.TrimSpace(cell)
			}
			row.Cells[j] = cell
		}
		rows = append(rows, row)
	}

	return &Table{
		Format:  FormatFixedWidth,
		Header:  header,
		Columns: len(layout.Fields),
		Rows:    rows,
	}, nil
}

func columnCountProblem(got, want int) string {
	return fmt.Sprintf("expected %d columns, found %d", want, got)
}
