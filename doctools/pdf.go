package doctools

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/docsage/docsage/agent"
	"github.com/docsage/docsage/docio"
	"github.com/docsage/docsage/llm"
	"github.com/docsage/docsage/mutate"
)

func (t *Toolset) registerPDFTools(reg *agent.ToolRegistry) {
	reg.Register(agent.RegisteredTool{
		Definition: llm.ToolDefinition{
			Name:        "extract_pdf_text",
			Description: "Extract text from a PDF. Give specific pages, or start_page/max_pages to paginate; omit both for the whole document.",
			Parameters: objectSchema(map[string]interface{}{
				"path":       stringProp("PDF file path relative to the workspace root."),
				"pages":      intArrayProp("Specific 1-based page numbers to extract."),
				"start_page": intProp("First page of a contiguous range (1-based)."),
				"max_pages":  intProp("Number of pages to extract from start_page."),
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

			pages := intSliceArg(args, "pages")
			if len(pages) == 0 {
				if start, ok := agent.GetIntArg(args, "start_page"); ok {
					info, err := docio.OpenPDFInfo(abs)
					if err != nil {
						return "", err
					}
					count, _ := agent.GetIntArg(args, "max_pages")
					if count <= 0 {
						count = 20
					}
					for p := start; p < start+count && p <= info.PageCount; p++ {
						pages = append(pages, p)
					}
				}
			}

			extracted, err := docio.ExtractPDFPages(abs, pages)
			if err != nil {
				return "", err
			}
			var b strings.Builder
			for _, pg := range extracted {
				fmt.Fprintf(&b, "--- Page %d ---\n%s\n", pg.Page, strings.TrimSpace(pg.Text))
			}
			return b.String(), nil
		},
	})

	reg.Register(agent.RegisteredTool{
		Definition: llm.ToolDefinition{
			Name:        "get_pdf_metadata",
			Description: "Get PDF metadata: title, author, subject, creator, producer, and page count.",
			Parameters: objectSchema(map[string]interface{}{
				"path": stringProp("PDF file path relative to the workspace root."),
			}, "path"),
		},
		Executor: func(ctx context.Context, raw json.RawMessage) (string, error) {
			abs, err := t.resolvePathArg(raw)
			if err != nil {
				return "", err
			}
			info, err := docio.OpenPDFInfo(abs)
			if err != nil {
				return "", err
			}
			var b strings.Builder
			fmt.Fprintf(&b, "pages: %d\n", info.PageCount)
			for _, kv := range []struct{ k, v string }{
				{"title", info.Title},
				{"author", info.Author},
				{"subject", info.Subject},
				{"creator", info.Creator},
				{"producer", info.Producer},
			} {
				if kv.v != "" {
					fmt.Fprintf(&b, "%s: %s\n", kv.k, kv.v)
				}
			}
			return b.String(), nil
		},
	})

	reg.Register(agent.RegisteredTool{
		Definition: llm.ToolDefinition{
			Name:        "search_pdf_text",
			Description: "Search a PDF for text (case-insensitive). Returns page numbers with surrounding context, so you can extract just the relevant pages.",
			Parameters: objectSchema(map[string]interface{}{
				"path":  stringProp("PDF file path relative to the workspace root."),
				"query": stringProp("Text to search for."),
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
			matches, err := docio.SearchPDF(abs, query, 80)
			if err != nil {
				return "", err
			}
			if len(matches) == 0 {
				return fmt.Sprintf("No matches for %q.", query), nil
			}
			var b strings.Builder
			fmt.Fprintf(&b, "%d match(es) for %q:\n", len(matches), query)
			for _, m := range matches {
				fmt.Fprintf(&b, "  page %d: ...%s...\n", m.Page, m.Context)
			}
			return b.String(), nil
		},
	})

	reg.Register(agent.RegisteredTool{
		Definition: llm.ToolDefinition{
			Name:        "merge_pdfs",
			Description: "Merge two or more PDFs into one output file, in the given order.",
			Parameters: objectSchema(map[string]interface{}{
				"paths":       stringArrayProp("Input PDF paths in merge order, relative to the workspace root."),
				"output_path": stringProp("Destination path for the merged PDF."),
			}, "paths", "output_path"),
		},
		Mutating: true,
		Executor: func(ctx context.Context, raw json.RawMessage) (string, error) {
			args, err := agent.ParseToolArguments(raw)
			if err != nil {
				return "", err
			}
			outPath, err := agent.RequireStringArg(args, "output_path")
			if err != nil {
				return "", err
			}
			relPaths := stringSliceArg(args, "paths")
			if len(relPaths) < 2 {
				return "", fmt.Errorf("merge_pdfs needs at least two input paths")
			}

			absPaths := make([]string, len(relPaths))
			var plan strings.Builder
			for i, rel := range relPaths {
				abs, err := t.guard.Resolve(rel)
				if err != nil {
					return "", err
				}
				info, err := docio.OpenPDFInfo(abs)
				if err != nil {
					return "", fmt.Errorf("%s: %w", rel, err)
				}
				absPaths[i] = abs
				fmt.Fprintf(&plan, "%s (%d pages)\n", t.guard.Relative(abs), info.PageCount)
			}

			result, err := t.pipeline.Run(ctx, mutate.Mutation{
				Path:        outPath,
				Operation:   "merge_pdfs",
				Description: fmt.Sprintf("Merge %d PDFs", len(relPaths)),
				Load:        loadFileSummary,
				Render: func(abs string) (string, error) {
					return "merged PDF assembled from:\n" + plan.String(), nil
				},
				Commit: func(abs string) error {
					return docio.MergePDFs(absPaths, abs)
				},
			})
			if err != nil {
				return "", err
			}
			return describeMutation(result, fmt.Sprintf("Merged %d PDFs into %s.", len(relPaths), result.Path)), nil
		},
	})

	reg.Register(agent.RegisteredTool{
		Definition: llm.ToolDefinition{
			Name:        "split_pdf",
			Description: "Split a PDF into one file per page inside an output directory.",
			Parameters: objectSchema(map[string]interface{}{
				"path":       stringProp("PDF file path relative to the workspace root."),
				"output_dir": stringProp("Directory to write the single-page PDFs into."),
			}, "path", "output_dir"),
		},
		Mutating: true,
		Executor: func(ctx context.Context, raw json.RawMessage) (string, error) {
			args, err := agent.ParseToolArguments(raw)
			if err != nil {
				return "", err
			}
			path, err := agent.RequireStringArg(args, "path")
			if err != nil {
				return "", err
			}
			outDir, err := agent.RequireStringArg(args, "output_dir")
			if err != nil {
				return "", err
			}
			absIn, err := t.guard.Resolve(path)
			if err != nil {
				return "", err
			}
			info, err := docio.OpenPDFInfo(absIn)
			if err != nil {
				return "", err
			}

			var created []string
			result, err := t.pipeline.Run(ctx, mutate.Mutation{
				Path:        outDir,
				Operation:   "split_pdf",
				Description: fmt.Sprintf("Split %s into %d single-page files", t.guard.Relative(absIn), info.PageCount),
				Load:        func(abs string) (string, error) { return "", nil },
				Render: func(abs string) (string, error) {
					return fmt.Sprintf("%d single-page PDFs from %s\n", info.PageCount, t.guard.Relative(absIn)), nil
				},
				Commit: func(abs string) error {
					names, err := docio.SplitPDF(absIn, abs)
					created = names
					return err
				},
			})
			if err != nil {
				return "", err
			}
			return describeMutation(result,
				fmt.Sprintf("Split into %d files under %s: %s", len(created), result.Path, strings.Join(created, ", "))), nil
		},
	})
}

// loadFileSummary snapshots an output target that may already exist, so
// overwrites show up in the diff as replacing prior content.
func loadFileSummary(abs string) (string, error) {
	info, err := fileInfo(abs)
	if err != nil {
		return "", err
	}
	if info == "" {
		return "", nil
	}
	return fmt.Sprintf("existing file %s (%s)\n", filepath.Base(abs), info), nil
}
