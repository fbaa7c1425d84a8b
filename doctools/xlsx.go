package doctools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/docsage/docsage/agent"
	"github.com/docsage/docsage/docio"
	"github.com/docsage/docsage/llm"
	"github.com/docsage/docsage/mutate"
)

func (t *Toolset) registerXlsxTools(reg *agent.ToolRegistry) {
	reg.Register(agent.RegisteredTool{
		Definition: llm.ToolDefinition{
			Name:        "get_sheet_names",
			Description: "List the sheets of a workbook with their used row and column counts.",
			Parameters: objectSchema(map[string]interface{}{
				"path": stringProp("Workbook path relative to the workspace root."),
			}, "path"),
		},
		Executor: func(ctx context.Context, raw json.RawMessage) (string, error) {
			abs, err := t.resolvePathArg(raw)
			if err != nil {
				return "", err
			}
			f, err := docio.OpenXlsx(abs)
			if err != nil {
				return "", err
			}
			defer f.Close()

			infos, err := docio.SheetInfos(f)
			if err != nil {
				return "", err
			}
			var b strings.Builder
			fmt.Fprintf(&b, "%d sheet(s):\n", len(infos))
			for _, info := range infos {
				fmt.Fprintf(&b, "  %s: %d rows x %d columns\n", info.Name, info.Rows, info.Cols)
			}
			return b.String(), nil
		},
	})

	reg.Register(agent.RegisteredTool{
		Definition: llm.ToolDefinition{
			Name:        "read_sheet",
			Description: "Read sheet data as tab-separated rows. Use start_row and max_rows to paginate through large sheets.",
			Parameters: objectSchema(map[string]interface{}{
				"path":      stringProp("Workbook path relative to the workspace root."),
				"sheet":     stringProp("Sheet name; defaults to the first sheet."),
				"start_row": intProp("First row to read (1-based)."),
				"max_rows":  intProp("Number of rows to read; defaults to 100."),
			}, "path"),
		},
		Executor: func(ctx context.Context, raw json.RawMessage) (string, error) {
			args, err := agent.ParseToolArguments(raw)
			if err != nil {
				return "", err
			}
			path, err := agent.RequireStringArg(args, "path")
			if err != nil {
				return "", err
			}
			abs, err := t.guard.Resolve(path)
			if err != nil {
				return "", err
			}
			f, err := docio.OpenXlsx(abs)
			if err != nil {
				return "", err
			}
			defer f.Close()

			sheet, err := resolveSheet(f, args)
			if err != nil {
				return "", err
			}
			startRow, _ := agent.GetIntArg(args, "start_row")
			if startRow < 1 {
				startRow = 1
			}
			maxRows, ok := agent.GetIntArg(args, "max_rows")
			if !ok || maxRows <= 0 {
				maxRows = 100
			}

			rows, total, err := docio.ReadRows(f, sheet, startRow, maxRows)
			if err != nil {
				return "", err
			}
			var b strings.Builder
			fmt.Fprintf(&b, "sheet %s, rows %d-%d of %d:\n", sheet, startRow, startRow+len(rows)-1, total)
			for i, row := range rows {
				fmt.Fprintf(&b, "%d\t%s\n", startRow+i, strings.Join(row, "\t"))
			}
			if startRow+len(rows)-1 < total {
				fmt.Fprintf(&b, "(continue with start_row=%d)\n", startRow+len(rows))
			}
			return b.String(), nil
		},
	})

	reg.Register(agent.RegisteredTool{
		Definition: llm.ToolDefinition{
			Name:        "get_formulas",
			Description: "List every formula cell of a sheet with its formula.",
			Parameters: objectSchema(map[string]interface{}{
				"path":  stringProp("Workbook path relative to the workspace root."),
				"sheet": stringProp("Sheet name; defaults to the first sheet."),
			}, "path"),
		},
		Executor: func(ctx context.Context, raw json.RawMessage) (string, error) {
			args, err := agent.ParseToolArguments(raw)
			if err != nil {
				return "", err
			}
			path, err := agent.RequireStringArg(args, "path")
			if err != nil {
				return "", err
			}
			abs, err := t.guard.Resolve(path)
			if err != nil {
				return "", err
			}
			f, err := docio.OpenXlsx(abs)
			if err != nil {
				return "", err
			}
			defer f.Close()

			sheet, err := resolveSheet(f, args)
			if err != nil {
				return "", err
			}
			formulas, err := docio.SheetFormulas(f, sheet)
			if err != nil {
				return "", err
			}
			if len(formulas) == 0 {
				return fmt.Sprintf("Sheet %s has no formulas.", sheet), nil
			}
			refs := make([]string, 0, len(formulas))
			for ref := range formulas {
				refs = append(refs, ref)
			}
			var b strings.Builder
			fmt.Fprintf(&b, "%d formula(s) in %s:\n", len(formulas), sheet)
			for _, ref := range docio.SortedCellRefs(refs) {
				fmt.Fprintf(&b, "  %s = =%s\n", ref, strings.TrimPrefix(formulas[ref], "="))
			}
			return b.String(), nil
		},
	})

	reg.Register(agent.RegisteredTool{
		Definition: llm.ToolDefinition{
			Name:        "analyze_data",
			Description: "Compute summary statistics (count, min, max, sum, mean) for each numeric column of a sheet, treating the first row as headers.",
			Parameters: objectSchema(map[string]interface{}{
				"path":  stringProp("Workbook path relative to the workspace root."),
				"sheet": stringProp("Sheet name; defaults to the first sheet."),
			}, "path"),
		},
		Executor: func(ctx context.Context, raw json.RawMessage) (string, error) {
			args, err := agent.ParseToolArguments(raw)
			if err != nil {
				return "", err
			}
			path, err := agent.RequireStringArg(args, "path")
			if err != nil {
				return "", err
			}
			abs, err := t.guard.Resolve(path)
			if err != nil {
				return "", err
			}
			f, err := docio.OpenXlsx(abs)
			if err != nil {
				return "", err
			}
			defer f.Close()

			sheet, err := resolveSheet(f, args)
			if err != nil {
				return "", err
			}
			rows, _, err := docio.ReadRows(f, sheet, 1, 0)
			if err != nil {
				return "", err
			}
			return analyzeRows(sheet, rows), nil
		},
	})

	reg.Register(agent.RegisteredTool{
		Definition: llm.ToolDefinition{
			Name:        "search_sheet",
			Description: "Search workbook cells for text (case-insensitive). Returns cell references with values; searches all sheets unless one is given.",
			Parameters: objectSchema(map[string]interface{}{
				"path":  stringProp("Workbook path relative to the workspace root."),
				"query": stringProp("Text to search for."),
				"sheet": stringProp("Restrict the search to this sheet."),
			}, "path", "query"),
		},
		Executor: func(ctx context.Context, raw json.RawMessage) (string, error) {
			args, err := agent.ParseToolArguments(raw)
			if err != nil {
				return "", err
			}
			path, err := agent.RequireStringArg(args, "path")
			if err != nil {
				return "", err
			}
			query, err := agent.RequireStringArg(args, "query")
			if err != nil {
				return "", err
			}
			abs, err := t.guard.Resolve(path)
			if err != nil {
				return "", err
			}
			f, err := docio.OpenXlsx(abs)
			if err != nil {
				return "", err
			}
			defer f.Close()

			sheets := f.GetSheetList()
			if name, ok := agent.GetStringArg(args, "sheet"); ok && name != "" {
				sheets = []string{name}
			}

			needle := strings.ToLower(query)
			var b strings.Builder
			count := 0
			for _, sheet := range sheets {
				rows, _, err := docio.ReadRows(f, sheet, 1, 0)
				if err != nil {
					return "", err
				}
				for r, row := range rows {
					for c, value := range row {
						if !strings.Contains(strings.ToLower(value), needle) {
							continue
						}
						cell, err := excelize.CoordinatesToCellName(c+1, r+1)
						if err != nil {
							return "", err
						}
						fmt.Fprintf(&b, "  %s!%s (row %d): %s\n", sheet, cell, r+1, value)
						count++
					}
				}
			}
			if count == 0 {
				return fmt.Sprintf("No matches for %q.", query), nil
			}
			return fmt.Sprintf("%d match(es) for %q:\n%s", count, query, b.String()), nil
		},
	})

	reg.Register(agent.RegisteredTool{
		Definition: llm.ToolDefinition{
			Name:        "recalculate_formulas",
			Description: "Evaluate every formula in a workbook and report cells whose evaluation fails or yields an Excel error value. Does not modify the file.",
			Parameters: objectSchema(map[string]interface{}{
				"path": stringProp("Workbook path relative to the workspace root."),
			}, "path"),
		},
		Executor: func(ctx context.Context, raw json.RawMessage) (string, error) {
			abs, err := t.resolvePathArg(raw)
			if err != nil {
				return "", err
			}
			f, err := docio.OpenXlsx(abs)
			if err != nil {
				return "", err
			}
			defer f.Close()

			report, err := docio.Recalculate(f)
			if err != nil {
				return "", err
			}
			if len(report.Errors) == 0 {
				return fmt.Sprintf("Evaluated %d formula(s); all succeeded.", report.Evaluated), nil
			}
			refs := make([]string, 0, len(report.Errors))
			for ref := range report.Errors {
				refs = append(refs, ref)
			}
			sort.Strings(refs)
			var b strings.Builder
			fmt.Fprintf(&b, "Evaluated %d formula(s); %d with errors:\n", report.Evaluated, len(report.Errors))
			for _, ref := range refs {
				fmt.Fprintf(&b, "  %s: %s\n", ref, report.Errors[ref])
			}
			return b.String(), nil
		},
	})

	reg.Register(agent.RegisteredTool{
		Definition: llm.ToolDefinition{
			Name:        "update_xlsx_cell",
			Description: "Set one cell to a value. Numbers and booleans are written typed; everything else as text.",
			Parameters: objectSchema(map[string]interface{}{
				"path":  stringProp("Workbook path relative to the workspace root."),
				"sheet": stringProp("Sheet name."),
				"cell":  stringProp("Cell reference like B4."),
				"value": stringProp("Value to write."),
			}, "path", "sheet", "cell", "value"),
		},
		Mutating: true,
		Executor: t.xlsxEditExecutor("update_xlsx_cell",
			func(args map[string]interface{}) (xlsxEdit, error) {
				sheet, cell, err := sheetCellArgs(args)
				if err != nil {
					return xlsxEdit{}, err
				}
				value, err := agent.RequireStringArg(args, "value")
				if err != nil {
					return xlsxEdit{}, err
				}
				return xlsxEdit{
					sheet: sheet,
					cells: []string{cell},
					desc:  fmt.Sprintf("Set %s!%s to %q", sheet, cell, value),
					apply: func(f *excelize.File) error {
						return f.SetCellValue(sheet, cell, docio.ParseCellValue(value))
					},
				}, nil
			}),
	})

	reg.Register(agent.RegisteredTool{
		Definition: llm.ToolDefinition{
			Name:        "add_xlsx_formula",
			Description: "Set a formula on one cell, e.g. '=SUM(B2:B10)'.",
			Parameters: objectSchema(map[string]interface{}{
				"path":    stringProp("Workbook path relative to the workspace root."),
				"sheet":   stringProp("Sheet name."),
				"cell":    stringProp("Cell reference like B11."),
				"formula": stringProp("Formula, with or without the leading '='."),
			}, "path", "sheet", "cell", "formula"),
		},
		Mutating: true,
		Executor: t.xlsxEditExecutor("add_xlsx_formula",
			func(args map[string]interface{}) (xlsxEdit, error) {
				sheet, cell, err := sheetCellArgs(args)
				if err != nil {
					return xlsxEdit{}, err
				}
				formula, err := agent.RequireStringArg(args, "formula")
				if err != nil {
					return xlsxEdit{}, err
				}
				formula = strings.TrimPrefix(formula, "=")
				return xlsxEdit{
					sheet: sheet,
					cells: []string{cell},
					desc:  fmt.Sprintf("Set formula %s!%s to =%s", sheet, cell, formula),
					apply: func(f *excelize.File) error {
						return f.SetCellFormula(sheet, cell, formula)
					},
				}, nil
			}),
	})

	reg.Register(agent.RegisteredTool{
		Definition: llm.ToolDefinition{
			Name:        "update_xlsx_range",
			Description: "Write a rectangular block of values starting at the top-left of the given range. Values are rows of strings.",
			Parameters: objectSchema(map[string]interface{}{
				"path":  stringProp("Workbook path relative to the workspace root."),
				"sheet": stringProp("Sheet name."),
				"range": stringProp("Range reference like A2:C4."),
				"values": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
					"description": "Row-major grid of values; must match the range shape.",
				},
			}, "path", "sheet", "range", "values"),
		},
		Mutating: true,
		Executor: t.xlsxEditExecutor("update_xlsx_range",
			func(args map[string]interface{}) (xlsxEdit, error) {
				sheet, err := agent.RequireStringArg(args, "sheet")
				if err != nil {
					return xlsxEdit{}, err
				}
				rangeRef, err := agent.RequireStringArg(args, "range")
				if err != nil {
					return xlsxEdit{}, err
				}
				values := gridArg(args, "values")
				if len(values) == 0 {
					return xlsxEdit{}, fmt.Errorf("missing or invalid required argument %q", "values")
				}
				cells, err := docio.RangeCells(rangeRef)
				if err != nil {
					return xlsxEdit{}, err
				}
				flat := flattenGrid(values)
				if len(flat) != len(cells) {
					return xlsxEdit{}, fmt.Errorf("range %s has %d cells but values has %d entries", rangeRef, len(cells), len(flat))
				}
				return xlsxEdit{
					sheet: sheet,
					cells: cells,
					desc:  fmt.Sprintf("Write %d cells in %s!%s", len(cells), sheet, rangeRef),
					apply: func(f *excelize.File) error {
						for i, cell := range cells {
							if err := f.SetCellValue(sheet, cell, docio.ParseCellValue(flat[i])); err != nil {
								return err
							}
						}
						return nil
					},
				}, nil
			}),
	})
}

// xlsxEdit is one workbook change: the cells it touches (for the diff
// snapshot) and the function that applies it.
type xlsxEdit struct {
	sheet string
	cells []string
	desc  string
	apply func(f *excelize.File) error
}

// xlsxEditExecutor wires a workbook edit through the mutation pipeline,
// diffing only the affected cells in their canonical textual form.
func (t *Toolset) xlsxEditExecutor(op string, parse func(args map[string]interface{}) (xlsxEdit, error)) agent.ToolExecutor {
	return func(ctx context.Context, raw json.RawMessage) (string, error) {
		args, err := agent.ParseToolArguments(raw)
		if err != nil {
			return "", err
		}
		path, err := agent.RequireStringArg(args, "path")
		if err != nil {
			return "", err
		}
		edit, err := parse(args)
		if err != nil {
			return "", err
		}

		snapshot := func(abs string, mutated bool) (string, error) {
			f, err := docio.OpenXlsx(abs)
			if err != nil {
				return "", err
			}
			defer f.Close()
			if mutated {
				if err := edit.apply(f); err != nil {
					return "", err
				}
			}
			return docio.CellSnapshot(f, edit.sheet, edit.cells)
		}

		result, err := t.pipeline.Run(ctx, mutate.Mutation{
			Path:        path,
			Operation:   op,
			Description: edit.desc,
			Load:        func(abs string) (string, error) { return snapshot(abs, false) },
			Render:      func(abs string) (string, error) { return snapshot(abs, true) },
			Commit: func(abs string) error {
				f, err := docio.OpenXlsx(abs)
				if err != nil {
					return err
				}
				defer f.Close()
				if err := edit.apply(f); err != nil {
					return err
				}
				return f.Save()
			},
		})
		if err != nil {
			return "", err
		}
		return describeMutation(result, fmt.Sprintf("%s in %s.", edit.desc, result.Path)), nil
	}
}

func sheetCellArgs(args map[string]interface{}) (string, string, error) {
	sheet, err := agent.RequireStringArg(args, "sheet")
	if err != nil {
		return "", "", err
	}
	cell, err := agent.RequireStringArg(args, "cell")
	if err != nil {
		return "", "", err
	}
	return sheet, strings.ToUpper(cell), nil
}

// resolveSheet returns the sheet named in args, or the workbook's first
// sheet when absent.
func resolveSheet(f *excelize.File, args map[string]interface{}) (string, error) {
	if name, ok := agent.GetStringArg(args, "sheet"); ok && name != "" {
		for _, s := range f.GetSheetList() {
			if s == name {
				return name, nil
			}
		}
		return "", fmt.Errorf("sheet %q not found (available: %s)", name, strings.Join(f.GetSheetList(), ", "))
	}
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook has no sheets")
	}
	return sheets[0], nil
}

func gridArg(args map[string]interface{}, key string) [][]string {
	v, ok := args[key]
	if !ok {
		return nil
	}
	rows, ok := v.([]interface{})
	if !ok {
		return nil
	}
	grid := make([][]string, 0, len(rows))
	for _, row := range rows {
		items, ok := row.([]interface{})
		if !ok {
			return nil
		}
		cells := make([]string, 0, len(items))
		for _, item := range items {
			switch x := item.(type) {
			case string:
				cells = append(cells, x)
			case float64:
				cells = append(cells, strconv.FormatFloat(x, 'f', -1, 64))
			case bool:
				cells = append(cells, strconv.FormatBool(x))
			default:
				return nil
			}
		}
		grid = append(grid, cells)
	}
	return grid
}

func flattenGrid(grid [][]string) []string {
	var flat []string
	for _, row := range grid {
		flat = append(flat, row...)
	}
	return flat
}

// analyzeRows computes per-column numeric statistics, treating the first
// row as headers.
func analyzeRows(sheet string, rows [][]string) string {
	if len(rows) < 2 {
		return fmt.Sprintf("Sheet %s has no data rows to analyze.", sheet)
	}
	headers := rows[0]
	data := rows[1:]

	cols := len(headers)
	for _, row := range data {
		if len(row) > cols {
			cols = len(row)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "sheet %s: %d data row(s)\n", sheet, len(data))
	numericCols := 0
	for c := 0; c < cols; c++ {
		header := fmt.Sprintf("column %d", c+1)
		if c < len(headers) && headers[c] != "" {
			header = headers[c]
		}

		var nums []float64
		for _, row := range data {
			if c >= len(row) || row[c] == "" {
				continue
			}
			if n, err := strconv.ParseFloat(strings.ReplaceAll(row[c], ",", ""), 64); err == nil {
				nums = append(nums, n)
			}
		}
		if len(nums) == 0 {
			continue
		}
		numericCols++

		min, max, sum := nums[0], nums[0], 0.0
		for _, n := range nums {
			if n < min {
				min = n
			}
			if n > max {
				max = n
			}
			sum += n
		}
		fmt.Fprintf(&b, "  %s: count=%d min=%g max=%g sum=%g mean=%g\n",
			header, len(nums), min, max, sum, sum/float64(len(nums)))
	}
	if numericCols == 0 {
		fmt.Fprintf(&b, "  no numeric columns found\n")
	}
	return b.String()
}
