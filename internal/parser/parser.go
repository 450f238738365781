// Package parser turns raw export bytes into an ordered sequence of rows.
// Row-level problems are recorded on the row; only file-level problems are
// returned as errors, wrapping model.ErrFileUnreadable.
package parser

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"

	"github.com/stemsi/exstem-ingest/internal/model"
)

// Format is the detected shape of the source.
type Format string

const (
	FormatDelimited  Format = "delimited"
	FormatFixedWidth Format = "fixed_width"
	FormatXLSX       Format = "xlsx"
)

// HeaderMode controls header handling for tabular sources.
type HeaderMode string

const (
	HeaderAuto    HeaderMode = "auto"
	HeaderPresent HeaderMode = "yes"
	HeaderAbsent  HeaderMode = "no"
)

// Options tune a single parse. The zero value auto-detects everything.
type Options struct {
	// Delimiter forces a separator; 0 auto-detects among , ; tab and |.
	Delimiter rune
	Header    HeaderMode
	// Layout switches to fixed-width parsing.
	Layout *model.Layout
	// Sheet picks the worksheet of an xlsx workbook; empty means the first.
	Sheet string
	// FallbackEncoding decodes sources that are not UTF-8.
	FallbackEncoding string
}

// Table is the parsed source. Rows exclude the header and keep source order.
type Table struct {
	Format    Format         `json:"format"`
	Encoding  string         `json:"encoding"`
	Delimiter string         `json:"delimiter,omitempty"`
	Header    []string       `json:"header,omitempty"`
	Columns   int            `json:"columns"`
	Rows      []model.RawRow `json:"rows"`
}

// Malformed counts the rows flagged as malformed.
func (t *Table) Malformed() int {
	n := 0
	for _, r := range t.Rows {
		if r.Malformed {
			n++
		}
	}
	return n
}

// Parser applies default options to every parse.
type Parser struct {
	defaults Options
}

// New returns a Parser whose zero-valued options fall back to defaults.
func New(defaults Options) *Parser {
	return &Parser{defaults: defaults}
}

// Parse merges opts over the parser defaults and parses data.
func (p *Parser) Parse(data []byte, opts Options) (*Table, error) {
	if opts.Delimiter == 0 {
		opts.Delimiter = p.defaults.Delimiter
	}
	if opts.Header == "" {
		opts.Header = p.defaults.Header
	}
	if opts.Layout == nil {
		opts.Layout = p.defaults.Layout
	}
	if opts.Sheet == "" {
		opts.Sheet = p.defaults.Sheet
	}
	if opts.FallbackEncoding == "" {
		opts.FallbackEncoding = p.defaults.FallbackEncoding
	}
	return Parse(data, opts)
}

var (
	zipMagic   = []byte("PK\x03\x04")
	utf8BOM    = []byte{0xEF, 0xBB, 0xBF}
	utf16LEBOM = []byte{0xFF, 0xFE}
	utf16BEBOM = []byte{0xFE, 0xFF}
)

// Parse reads data with opts. Parsing is deterministic: identical input
// always yields an identical table.
func Parse(data []byte, opts Options) (*Table, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, unreadable("empty file")
	}
	if opts.Header == "" {
		opts.Header = HeaderAuto
	}

	var (
		table *Table
		err   error
	)
	if bytes.HasPrefix(data, zipMagic) {
		if opts.Layout != nil {
			return nil, unreadable("spreadsheet given where a fixed-width layout was expected")
		}
		table, err = parseXLSX(data, opts)
		if err != nil {
			return nil, err
		}
		table.Encoding = "utf-8"
	} else {
		lines, encName, err := decodeLines(data, opts.FallbackEncoding)
		if err != nil {
			return nil, err
		}
		if opts.Layout != nil {
			table, err = parseFixedWidth(lines, opts.Layout)
		} else {
			table, err = parseDelimited(lines, opts)
		}
		if err != nil {
			return nil, err
		}
		table.Encoding = encName
	}
	if len(table.Rows) == 0 {
		return nil, unreadable("no data rows")
	}
	return table, nil
}

// line is one source line after decoding. Bad lines could not be decoded and
// become malformed rows.
type line struct {
	number int
	text   string
	bad    bool
}

// decodeLines splits data into lines and decodes them. When most non-empty
// lines are invalid UTF-8 the whole file is decoded with the fallback
// encoding; otherwise the few invalid lines are kept as bad.
func decodeLines(data []byte, fallback string) ([]line, string, error) {
	switch {
	case bytes.HasPrefix(data, utf16LEBOM), bytes.HasPrefix(data, utf16BEBOM):
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		out, err := dec.Bytes(data)
		if err != nil {
			return nil, "", unreadable("invalid UTF-16 content")
		}
		return splitLines(out, false), "utf-16", nil
	case bytes.IndexByte(data, 0) >= 0:
		return nil, "", unreadable("binary content")
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	raw := splitRaw(data)

	var nonEmpty, invalid int
	for _, l := range raw {
		if len(bytes.TrimSpace(l)) == 0 {
			continue
		}
		nonEmpty++
		if !utf8.Valid(l) {
			invalid++
		}
	}

	if invalid > 0 && invalid*2 >= nonEmpty {
		enc, name, err := lookupEncoding(fallback)
		if err != nil {
			return nil, "", err
		}
		out, err := enc.NewDecoder().Bytes(data)
		if err != nil {
			return nil, "", unreadable("cannot decode as " + name)
		}
		return splitLines(out, false), name, nil
	}
	return splitLines(data, true), "utf-8", nil
}

func splitRaw(data []byte) [][]byte {
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	data = bytes.ReplaceAll(data, []byte("\r"), []byte("\n"))
	return bytes.Split(data, []byte("\n"))
}

func splitLines(data []byte, checkUTF8 bool) []line {
	raw := splitRaw(data)
	out := make([]line, 0, len(raw))
	for i, l := range raw {
		if len(bytes.TrimSpace(l)) == 0 {
			continue
		}
		ln := line{number: i + 1}
		if checkUTF8 && !utf8.Valid(l) {
			ln.bad = true
			ln.text = strings.ToValidUTF8(string(l), "�")
		} else {
			ln.text = string(l)
		}
		out = append(out, ln)
	}
	return out
}

// lookupEncoding resolves an IANA encoding name. Empty selects Windows-1254,
// the code page most Turkish optical readers export in.
func lookupEncoding(name string) (encoding.Encoding, string, error) {
	if strings.TrimSpace(name) == "" {
		return charmap.Windows1254, "windows-1254", nil
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return nil, "", unreadable(fmt.Sprintf("unsupported fallback encoding %q", name))
	}
	return enc, strings.ToLower(name), nil
}

func unreadable(reason string) error {
	return fmt.Errorf("%w: %s", model.ErrFileUnreadable, reason)
}
