package parser

import (
	"encoding/csv"
	"sort"
	"strings"
	"unicode"

	"github.com/stemsi/exstem-ingest/internal/columnmap"
	"github.com/stemsi/exstem-ingest/internal/model"
)

// candidateDelimiters are tried in order; earlier wins ties.
var candidateDelimiters = []rune{',', ';', '\t', '|'}

// detectSample bounds how many lines delimiter detection looks at.
const detectSample = 50

type record struct {
	src   line
	cells []string
	err   string
}

func parseDelimited(lines []line, opts Options) (*Table, error) {
	delim := opts.Delimiter
	if delim == 0 {
		delim = detectDelimiter(lines)
	}

	padded := paddedSeparator(lines, delim)
	records := make([]record, len(lines))
	for i, l := range lines {
		records[i] = splitRecord(l, delim, padded)
	}

	var header []string
	if len(records) > 0 && records[0].err == "" && hasHeader(records, opts.Header) {
		header = trimAll(records[0].cells)
		records = records[1:]
	}

	width := len(header)
	if width == 0 {
		width = modalWidth(records)
	}

	rows := make([]model.RawRow, 0, len(records))
	for i, rec := range records {
		row := model.RawRow{Index: i, Line: rec.src.number, Cells: rec.cells}
		switch {
		case rec.err != "":
			row.Malformed = true
			row.Problem = rec.err
		case len(rec.cells) > width && allBlank(rec.cells[width:]):
			row.Cells = rec.cells[:width]
		case len(rec.cells) != width:
			row.Malformed = true
			row.Problem = columnCountProblem(len(rec.cells), width)
		}
		rows = append(rows, row)
	}

	return &Table{
		Format:    FormatDelimited,
		Delimiter: string(delim),
		Header:    header,
		Columns:   width,
		Rows:      rows,
	}, nil
}

// splitRecord parses one line on its own so that a broken quote can only
// damage that line.
func splitRecord(l line, delim rune, padded bool) record {
	if l.bad {
		return record{src: l, cells: []string{l.text}, err: "invalid byte sequence"}
	}
	r := csv.NewReader(strings.NewReader(l.text))
	r.Comma = delim
	r.TrimLeadingSpace = padded
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	cells, err := r.Read()
	if err != nil {
		return record{src: l, cells: []string{l.text}, err: "unparseable record: " + err.Error()}
	}
	return record{src: l, cells: cells}
}

// paddedSeparator reports whether every delimiter in the sample is followed by
// a space, as in "7, Ayşe Yılmaz, ABCD". Such files get the space stripped
// from the start of each field.
func paddedSeparator(lines []line, delim rune) bool {
	if delim == ' ' {
		return false
	}
	sep := string(delim)
	var seen int
	for i, l := range lines {
		if i >= detectSample {
			break
		}
		if l.bad {
			continue
		}
		n := strings.Count(l.text, sep)
		if n == 0 {
			continue
		}
		if strings.Count(l.text, sep+" ") != n {
			return false
		}
		seen += n
	}
	return seen > 0
}

// detectDelimiter picks the candidate that splits the most sample lines into
// the same number of fields.
func detectDelimiter(lines []line) rune {
	best, bestScore, bestWidth := candidateDelimiters[0], 0, 0
	for _, d := range candidateDelimiters {
		counts := make(map[int]int)
		for i, l := range lines {
			if i >= detectSample {
				break
			}
			if l.bad {
				continue
			}
			if n := strings.Count(l.text, string(d)); n > 0 {
				counts[n]++
			}
		}
		score, width := 0, 0
		for n, c := range counts {
			if c > score || (c == score && n > width) {
				score, width = c, n
			}
		}
		if score > bestScore || (score == bestScore && score > 0 && width > bestWidth) {
			best, bestScore, bestWidth = d, score, width
		}
	}
	return best
}

// hasHeader decides whether the first record names the columns. In auto mode
// the first record is a header when most of its cells are known column
// titles, or when some column's data values mostly carry digits while the
// first record's value carries none.
func hasHeader(records []record, mode HeaderMode) bool {
	switch mode {
	case HeaderPresent:
		return true
	case HeaderAbsent:
		return false
	}
	if len(records) == 0 {
		return false
	}
	first := records[0].cells
	if knownTitles(first) {
		return true
	}
	if len(records) < 2 {
		return false
	}
	for col, v := range first {
		if strings.TrimSpace(v) == "" || containsDigit(v) {
			continue
		}
		var seen, numeric int
		for _, rec := range records[1:] {
			if rec.err != "" || col >= len(rec.cells) {
				continue
			}
			cell := strings.TrimSpace(rec.cells[col])
			if cell == "" {
				continue
			}
			seen++
			if containsDigit(cell) {
				numeric++
			}
		}
		if seen > 0 && numeric*2 > seen {
			return true
		}
	}
	return false
}

// knownTitles reports whether a majority of the non-empty cells match known
// header spellings.
func knownTitles(cells []string) bool {
	var filled, titles int
	for _, c := range cells {
		if strings.TrimSpace(c) == "" {
			continue
		}
		filled++
		if columnmap.LooksLikeHeader(c) {
			titles++
		}
	}
	return filled > 0 && titles*2 > filled
}

// modalWidth returns the most common field count; ties go to the wider one.
func modalWidth(records []record) int {
	counts := make(map[int]int)
	for _, rec := range records {
		if rec.err == "" {
			counts[len(rec.cells)]++
		}
	}
	widths := make([]int, 0, len(counts))
	for w := range counts {
		widths = append(widths, w)
	}
	sort.Slice(widths, func(i, j int) bool {
		if counts[widths[i]] != counts[widths[j]] {
			return counts[widths[i]] > counts[widths[j]]
		}
		return widths[i] > widths[j]
	})
	if len(widths) == 0 {
		return 1
	}
	return widths[0]
}

func containsDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}

func allBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func trimAll(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(c)
	}
	return out
}
