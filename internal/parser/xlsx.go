package parser

import (
	"bytes"

	"github.com/xuri/excelize/v2"

	"github.com/stemsi/exstem-ingest/internal/model"
)

// parseXLSX reads one worksheet. Spreadsheet rows omit trailing empty cells,
// so short rows are padded rather than flagged.
func parseXLSX(data []byte, opts Options) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, unreadable("invalid spreadsheet: " + err.Error())
	}
	defer f.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, unreadable("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	grid, err := f.GetRows(sheet)
	if err != nil {
		return nil, unreadable("cannot read sheet " + sheet + ": " + err.Error())
	}

	records := make([]record, 0, len(grid))
	for i, cells := range grid {
		if allBlank(cells) {
			continue
		}
		records = append(records, record{src: line{number: i + 1}, cells: cells})
	}

	var header []string
	if len(records) > 0 && hasHeader(records, opts.Header) {
		header = trimAll(records[0].cells)
		records = records[1:]
	}
	width := len(header)
	for _, rec := range records {
		if header == nil && len(rec.cells) > width {
			width = len(rec.cells)
		}
	}

	rows := make([]model.RawRow, 0, len(records))
	for i, rec := range records {
		row := model.RawRow{Index: i, Line: rec.src.number}
		cells := rec.cells
		if len(cells) > width {
			if allBlank(cells[width:]) {
				cells = cells[:width]
			} else {
				row.Malformed = true
				row.Problem = columnCountProblem(len(cells), width)
			}
		}
		if len(cells) < width {
			padded := make([]string, width)
			copy(padded, cells)
			cells = padded
		}
		row.Cells = cells
		rows = append(rows, row)
	}

	return &Table{
		Format:  FormatXLSX,
		Header:  header,
		Columns: width,
		Rows:    rows,
	}, nil
}
