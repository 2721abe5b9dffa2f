package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/buildsight/buildsight/internal/field"
	"github.com/buildsight/buildsight/internal/table"
)

const (
	maxSheetName = 31
	defaultSheet = "Sheet1"
)

var sheetNameReplacer = strings.NewReplacer("[", "", "]", "", ":", "", "*", "", "?", "", "/", "-", `\`, "-")

// Workbook writes one sheet per table. Cells that parse as plain numbers or
// currency are stored as numbers; everything else keeps its display string.
func Workbook(tables []table.Table) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, err
	}
	totalStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	used := make(map[string]bool)
	for i, t := range tables {
		name := sheetName(t, used)
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, name); err != nil {
				return nil, err
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
		if err := writeSheet(f, name, t, headerStyle, totalStyle); err != nil {
			return nil, fmt.Errorf("report: sheet %q: %w", name, err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeSheet(f *excelize.File, sheet string, t table.Table, headerStyle, totalStyle int) error {
	row := 1
	if len(t.Header) > 0 {
		if err := writeRow(f, sheet, row, t.Header, false); err != nil {
			return err
		}
		if err := styleRow(f, sheet, row, len(t.Header), headerStyle); err != nil {
			return err
		}
		row++
	}
	for _, cells := range t.Rows {
		if err := writeRow(f, sheet, row, cells, true); err != nil {
			return err
		}
		row++
	}
	if len(t.Totals) > 0 {
		if err := writeRow(f, sheet, row, t.Totals, true); err != nil {
			return err
		}
		if err := styleRow(f, sheet, row, len(t.Totals), totalStyle); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, cells []string, numeric bool) error {
	for col, value := range cells {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		var v any = value
		if numeric {
			if n, ok := field.ParseNumber(value); ok {
				v = n
			}
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

func styleRow(f *excelize.File, sheet string, row, width, style int) error {
	if width == 0 {
		return nil
	}
	first, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(width, row)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, first, last, style)
}

// sheetName derives a unique, valid sheet name from the table title.
func sheetName(t table.Table, used map[string]bool) string {
	base := strings.TrimSpace(sheetNameReplacer.Replace(t.Title))
	if base == "" {
		base = field.LabelFor(string(t.Source), nil)
	}
	if base == "" {
		base = "Table"
	}
	name := truncate(base, maxSheetName)
	for n := 2; used[strings.ToLower(name)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		name = truncate(base, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
