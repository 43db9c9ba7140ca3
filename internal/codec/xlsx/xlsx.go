// Package xlsx reads worksheets into rows and writes rows into a workbook.
package xlsx

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/mcncl/convertkit/internal/errors"
	"github.com/mcncl/convertkit/internal/models"
)

// Options selects the worksheet and how its first row is read.
type Options struct {
	// SheetIndex is zero based and ignored when SheetName is set.
	SheetIndex int
	SheetName  string
	HasHeaders bool
	// Range limits the cells read, e.g. "A1:C10".
	Range string
}

// DefaultOptions reads the first sheet with a header row
func DefaultOptions() Options {
	return Options{HasHeaders: true}
}

// DefaultSheet names the sheet written by Generate when none is given.
const DefaultSheet = "Sheet1"

func parseError(err error) error {
	return errors.NewSyntaxError("Excel parsing failed", err)
}

// Parse reads one worksheet of an .xlsx workbook into an array of objects.
func Parse(data []byte, opts Options) (models.Value, error) {
	if len(data) == 0 {
		return models.Value{}, errors.NewInputError("workbook is empty", errors.ErrEmptyInput)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return models.Value{}, parseError(err)
	}
	defer f.Close()

	sheet, err := pickSheet(f.GetSheetList(), opts)
	if err != nil {
		return models.Value{}, err
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return models.Value{}, parseError(err)
	}
	if opts.Range != "" {
		if rows, err = clip(rows, opts.Range); err != nil {
			return models.Value{}, parseError(err)
		}
	}
	return records(rows, opts.HasHeaders), nil
}

func pickSheet(sheets []string, opts Options) (string, error) {
	if len(sheets) == 0 {
		return "", parseError(fmt.Errorf("workbook has no sheets"))
	}
	if opts.SheetName != "" {
		for _, s := range sheets {
			if s == opts.SheetName {
				return s, nil
			}
		}
		return "", errors.NewInputError(
			fmt.Sprintf("sheet %q not found (available: %s)", opts.SheetName, strings.Join(sheets, ", ")), nil)
	}
	if opts.SheetIndex < 0 || opts.SheetIndex >= len(sheets) {
		return "", errors.NewInputError(
			fmt.Sprintf("sheet index %d out of range (workbook has %d sheets)", opts.SheetIndex, len(sheets)), nil)
	}
	return sheets[opts.SheetIndex], nil
}

// clip keeps the cells inside an A1-style range.
func clip(rows [][]string, ref string) ([][]string, error) {
	from, to, ok := strings.Cut(ref, ":")
	if !ok {
		to = from
	}
	c1, r1, err := excelize.CellNameToCoordinates(strings.TrimSpace(from))
	if err != nil {
		return nil, err
	}
	c2, r2, err := excelize.CellNameToCoordinates(strings.TrimSpace(to))
	if err != nil {
		return nil, err
	}
	c1, c2 = min(c1, c2), max(c1, c2)
	r1, r2 = min(r1, r2), max(r1, r2)

	var out [][]string
	for r := r1; r <= r2 && r <= len(rows); r++ {
		row := rows[r-1]
		cells := make([]string, 0, c2-c1+1)
		for c := c1; c <= c2; c++ {
			if c <= len(row) {
				cells = append(cells, row[c-1])
			} else {
				cells = append(cells, "")
			}
		}
		out = append(out, cells)
	}
	return out, nil
}

func records(rows [][]string, hasHeaders bool) models.Value {
	var header []string
	if hasHeaders && len(rows) > 0 {
		header = headerNames(rows[0])
		rows = rows[1:]
	}

	items := make([]models.Value, 0, len(rows))
	for _, row := range rows {
		if blank(row) {
			continue
		}
		obj := models.NewObject()
		width := max(len(header), len(row))
		for i := 0; i < width; i++ {
			name := fmt.Sprintf("column_%d", i+1)
			if i < len(header) {
				name = header[i]
			}
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			obj.Set(name, models.CoerceScalar(cell, models.CSVRules))
		}
		items = append(items, models.ObjectValue(obj))
	}
	return models.Array(items...)
}

func headerNames(row []string) []string {
	names := make([]string, len(row))
	seen := make(map[string]int)
	for i, cell := range row {
		name := strings.TrimSpace(cell)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s_%d", name, n)
		}
		names[i] = name
	}
	return names
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// Generate writes records to a single-sheet workbook with a bold header row.
// Nested values are flattened into dotted column names.
func Generate(v models.Value, opts Options) ([]byte, error) {
	objs, err := models.Rows(v)
	if err != nil {
		return nil, err
	}
	flat := make([]*models.Object, len(objs))
	for i, obj := range objs {
		flat[i] = models.FlattenRecord(obj)
	}
	columns := models.Columns(flat)

	f := excelize.NewFile()
	defer f.Close()

	sheet := DefaultSheet
	if opts.SheetName != "" && opts.SheetName != DefaultSheet {
		if err := f.SetSheetName(DefaultSheet, opts.SheetName); err != nil {
			return nil, errors.NewOutputError("failed to name worksheet", err)
		}
		sheet = opts.SheetName
	}

	first := 1
	if opts.HasHeaders && len(columns) > 0 {
		for i, col := range columns {
			if err := setCell(f, sheet, i+1, 1, col); err != nil {
				return nil, err
			}
		}
		style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return nil, errors.NewOutputError("failed to create header style", err)
		}
		last, _ := excelize.CoordinatesToCellName(len(columns), 1)
		if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
			return nil, errors.NewOutputError("failed to style header row", err)
		}
		first = 2
	}

	for r, row := range flat {
		for c, col := range columns {
			val, ok := row.Get(col)
			if !ok || val.IsNull() {
				continue
			}
			var cell any
			switch val.Kind() {
			case models.KindBool:
				cell = val.AsBool()
			case models.KindNumber:
				cell = val.AsNumber()
			default:
				cell = models.ScalarText(val)
			}
			if err := setCell(f, sheet, c+1, first+r, cell); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.NewOutputError("failed to write workbook", err)
	}
	return buf.Bytes(), nil
}

func setCell(f *excelize.File, sheet string, col, row int, value any) error {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return errors.NewOutputError("invalid cell position", err)
	}
	if err := f.SetCellValue(sheet, name, value); err != nil {
		return errors.NewOutputError(fmt.Sprintf("failed to write cell %s", name), err)
	}
	return nil
}
