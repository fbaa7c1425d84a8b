package docio

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// SheetInfo names a sheet and its used extent.
type SheetInfo struct {
	Name string
	Rows int
	Cols int
}

// OpenXlsx opens the workbook at path. Callers own the Close.
func OpenXlsx(path string) (*excelize.File, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	return f, nil
}

// SheetInfos lists sheets with their used row/column counts.
func SheetInfos(f *excelize.File) ([]SheetInfo, error) {
	var infos []SheetInfo
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", name, err)
		}
		cols := 0
		for _, row := range rows {
			if len(row) > cols {
				cols = len(row)
			}
		}
		infos = append(infos, SheetInfo{Name: name, Rows: len(rows), Cols: cols})
	}
	return infos, nil
}

// ReadRows returns maxRows rows starting at startRow (1-based), plus the
// total row count of the sheet. maxRows <= 0 means all remaining rows.
func ReadRows(f *excelize.File, sheet string, startRow, maxRows int) ([][]string, int, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, 0, fmt.Errorf("sheet %s: %w", sheet, err)
	}
	total := len(rows)
	if startRow < 1 {
		startRow = 1
	}
	if startRow > total {
		return nil, total, nil
	}
	slice := rows[startRow-1:]
	if maxRows > 0 && maxRows < len(slice) {
		slice = slice[:maxRows]
	}
	return slice, total, nil
}

// SheetFormulas returns every formula cell of the sheet, keyed by cell
// reference.
func SheetFormulas(f *excelize.File, sheet string) (map[string]string, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("sheet %s: %w", sheet, err)
	}
	formulas := make(map[string]string)
	for r, row := range rows {
		for c := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, err
			}
			formula, err := f.GetCellFormula(sheet, cell)
			if err != nil {
				return nil, fmt.Errorf("cell %s!%s: %w", sheet, cell, err)
			}
			if formula != "" {
				formulas[cell] = formula
			}
		}
	}
	return formulas, nil
}

// SortedCellRefs orders cell references row-major (A1, B1, A2, ...).
func SortedCellRefs(refs []string) []string {
	sorted := append([]string(nil), refs...)
	sort.Slice(sorted, func(i, j int) bool {
		ci, ri, ei := excelize.CellNameToCoordinates(sorted[i])
		cj, rj, ej := excelize.CellNameToCoordinates(sorted[j])
		if ei != nil || ej != nil {
			return sorted[i] < sorted[j]
		}
		if ri != rj {
			return ri < rj
		}
		return ci < cj
	})
	return sorted
}

// ParseCellValue converts a string argument to the most specific scalar
// type so numbers land in cells as numbers, not text.
func ParseCellValue(s string) interface{} {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(strings.ToLower(s)); err == nil {
		return b
	}
	return s
}

// RangeCells expands a range reference like "A1:C3" into row-major cell
// names. A single cell reference expands to itself.
func RangeCells(ref string) ([]string, error) {
	parts := strings.SplitN(ref, ":", 2)
	c1, r1, err := excelize.CellNameToCoordinates(parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid range %q: %w", ref, err)
	}
	c2, r2 := c1, r1
	if len(parts) == 2 {
		c2, r2, err = excelize.CellNameToCoordinates(parts[1])
		if err != nil {
			return nil, fmt.Errorf("invalid range %q: %w", ref, err)
		}
	}
	if c2 < c1 {
		c1, c2 = c2, c1
	}
	if r2 < r1 {
		r1, r2 = r2, r1
	}

	var cells []string
	for r := r1; r <= r2; r++ {
		for c := c1; c <= c2; c++ {
			cell, err := excelize.CoordinatesToCellName(c, r)
			if err != nil {
				return nil, err
			}
			cells = append(cells, cell)
		}
	}
	return cells, nil
}

// CellSnapshot renders cells as canonical "Sheet!A1 = value" lines so
// structured edits diff as text. Formula cells render the formula.
func CellSnapshot(f *excelize.File, sheet string, cells []string) (string, error) {
	var b strings.Builder
	for _, cell := range cells {
		formula, err := f.GetCellFormula(sheet, cell)
		if err != nil {
			return "", fmt.Errorf("cell %s!%s: %w", sheet, cell, err)
		}
		if formula != "" {
			fmt.Fprintf(&b, "%s!%s = =%s\n", sheet, cell, strings.TrimPrefix(formula, "="))
			continue
		}
		value, err := f.GetCellValue(sheet, cell)
		if err != nil {
			return "", fmt.Errorf("cell %s!%s: %w", sheet, cell, err)
		}
		fmt.Fprintf(&b, "%s!%s = %s\n", sheet, cell, value)
	}
	return b.String(), nil
}

// RecalcReport summarizes a formula recalculation sweep.
type RecalcReport struct {
	Evaluated int
	Errors    map[string]string // cell ref -> error value or message
}

// Recalculate evaluates every formula cell in the workbook and reports
// cells whose evaluation failed or yielded an Excel error value.
func Recalculate(f *excelize.File) (RecalcReport, error) {
	report := RecalcReport{Errors: make(map[string]string)}
	for _, sheet := range f.GetSheetList() {
		formulas, err := SheetFormulas(f, sheet)
		if err != nil {
			return report, err
		}
		for cell := range formulas {
			ref := sheet + "!" + cell
			value, err := f.CalcCellValue(sheet, cell)
			report.Evaluated++
			switch {
			case err != nil:
				report.Errors[ref] = err.Error()
			case strings.HasPrefix(value, "#"):
				report.Errors[ref] = value
			}
		}
	}
	return report, nil
}
