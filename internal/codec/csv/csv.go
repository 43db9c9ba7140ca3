// Package csv reads and writes delimited text as arrays of records.
package csv

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/mcncl/convertkit/internal/errors"
	"github.com/mcncl/convertkit/internal/models"
)

// Options controls parsing and generation
type Options struct {
	Delimiter      rune
	HasHeader      bool
	SkipEmptyLines bool
	// FlattenData turns nested objects and arrays into dotted columns on
	// generate. When false containers are written as compact JSON.
	FlattenData bool
}

// DefaultOptions returns comma-delimited options with a header row
func DefaultOptions() Options {
	return Options{
		Delimiter:      ',',
		HasHeader:      true,
		SkipEmptyLines: true,
		FlattenData:    true,
	}
}

type field struct {
	text   string
	quoted bool
}

// Parse converts delimited text into an array of objects
func Parse(text string, opts Options) (models.Value, error) {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	records, err := scan(text, opts.Delimiter)
	if err != nil {
		return models.Value{}, err
	}

	if opts.SkipEmptyLines {
		kept := records[:0]
		for _, rec := range records {
			if !isBlank(rec) {
				kept = append(kept, rec)
			}
		}
		records = kept
	}

	var headers []string
	if opts.HasHeader && len(records) > 0 {
		headers = headerNames(records[0])
		records = records[1:]
	}

	rows := make([]models.Value, 0, len(records))
	for _, rec := range records {
		obj := models.NewObject()
		for i, f := range rec {
			obj.Set(columnName(headers, i), cell(f))
		}
		for i := len(rec); i < len(headers); i++ {
			obj.Set(headers[i], models.String(""))
		}
		rows = append(rows, models.ObjectValue(obj))
	}
	return models.Array(rows...), nil
}

func cell(f field) models.Value {
	if f.quoted {
		return models.String(f.text)
	}
	return models.CoerceScalar(f.text, models.CSVRules)
}

func isBlank(rec []field) bool {
	return len(rec) == 1 && !rec[0].quoted && rec[0].text == ""
}

func columnName(headers []string, i int) string {
	if i < len(headers) {
		return headers[i]
	}
	return "column_" + strconv.Itoa(i+1)
}

func headerNames(rec []field) []string {
	names := make([]string, len(rec))
	seen := make(map[string]int, len(rec))
	for i, f := range rec {
		name := strings.TrimSpace(f.text)
		if name == "" {
			name = "column_" + strconv.Itoa(i+1)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
		} else {
			seen[name] = 1
		}
		names[i] = name
	}
	return names
}

// scan splits text into records. A quote opens a quoted field only at the
// start of a line, after the delimiter or after a space; inside quotes ""
// is a literal quote.
func scan(text string, delim rune) ([][]field, error) {
	var (
		records  [][]field
		record   []field
		buf      strings.Builder
		inQuotes bool
		quoted   bool
		closed   bool
		prev     rune = '\n'
		line          = 1
		openLine      = 0
	)

	endField := func() {
		s := buf.String()
		if !quoted {
			s = strings.TrimSpace(s)
		}
		record = append(record, field{text: s, quoted: quoted})
		buf.Reset()
		quoted, closed = false, false
	}
	endRecord := func() {
		endField()
		records = append(records, record)
		record = nil
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if inQuotes {
			if r == '"' {
				if i+1 < len(runes) && runes[i+1] == '"' {
					buf.WriteRune('"')
					i++
				} else {
					inQuotes = false
					closed = true
				}
			} else {
				if r == '\n' {
					line++
				}
				buf.WriteRune(r)
			}
			prev = r
			continue
		}

		switch {
		case r == delim:
			endField()
		case r == '\r':
			if i+1 < len(runes) && runes[i+1] == '\n' {
				i++
			}
			endRecord()
			line++
			r = '\n'
		case r == '\n':
			endRecord()
			line++
		case r == '"' && !closed && (prev == delim || prev == '\n' || prev == ' '):
			if strings.TrimSpace(buf.String()) == "" {
				buf.Reset()
			}
			inQuotes, quoted = true, true
			openLine = line
		case closed && unicode.IsSpace(r):
			// whitespace between a closing quote and the delimiter
		default:
			buf.WriteRune(r)
		}
		prev = r
	}

	if inQuotes {
		return nil, errors.NewSyntaxError(
			fmt.Sprintf("unterminated quoted field starting on line %d", openLine), nil)
	}
	if buf.Len() > 0 || len(record) > 0 || quoted {
		endRecord()
	}
	return records, nil
}

// Generate writes records as delimited text with a header row. It accepts an
// array, a single object, or an object holding exactly one array property.
func Generate(v models.Value, opts Options) (string, error) {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	rows, err := models.Rows(v)
	if err != nil {
		return "", err
	}
	if opts.FlattenData {
		for i, row := range rows {
			rows[i] = models.FlattenRecord(row)
		}
	}

	columns := models.Columns(rows)
	if len(columns) == 0 {
		return "", nil
	}

	var b strings.Builder
	writeLine(&b, columns, opts.Delimiter)
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, col := range columns {
			if val, ok := row.Get(col); ok {
				cells[i] = models.ScalarText(val)
			}
		}
		b.WriteByte('\n')
		writeLine(&b, cells, opts.Delimiter)
	}
	return b.String(), nil
}

func writeLine(b *strings.Builder, cells []string, delim rune) {
	for i, c := range cells {
		if i > 0 {
			b.WriteRune(delim)
		}
		b.WriteString(quote(c, delim))
	}
}

func quote(s string, delim rune) string {
	if !needsQuotes(s, delim) {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func needsQuotes(s string, delim rune) bool {
	if s == "" {
		return false
	}
	if strings.ContainsRune(s, delim) || strings.ContainsAny(s, "\"\r\n") {
		return true
	}
	return s != strings.TrimSpace(s)
}
