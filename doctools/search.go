package doctools

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/docsage/docsage/agent"
	"github.com/docsage/docsage/docio"
	"github.com/docsage/docsage/llm"
)

func (t *Toolset) registerSearchTools(reg *agent.ToolRegistry) {
	reg.Register(agent.RegisteredTool{
		Definition: llm.ToolDefinition{
			Name:        "directed_search_document",
			Description: "Search any supported document (PDF, DOCX, XLSX) for text without knowing its format. Segments (pages, paragraphs, rows) are scored against the query terms and the best hits returned ranked, with a selector usable with retrieve_document_segments.",
			Parameters: objectSchema(map[string]interface{}{
				"path":  stringProp("Document path relative to the workspace root."),
				"query": stringProp("Text to search for; scored as a phrase and as individual terms."),
				"sheet": stringProp("Restrict workbook search to this sheet."),
				"top_k": intProp("Maximum ranked hits to return; defaults to 10."),
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
			topK, ok := agent.GetIntArg(args, "top_k")
			if !ok || topK < 1 {
				topK = 10
			}
			abs, err := t.guard.Resolve(path)
			if err != nil {
				return "", err
			}

			segments, err := collectSegments(abs, args)
			if err != nil {
				return "", err
			}

			type hit struct {
				seg   docSegment
				score float64
			}
			var hits []hit
			for _, seg := range segments {
				if score := scoreSegment(seg.text, query); score > 0 {
					hits = append(hits, hit{seg, score})
				}
			}
			if len(hits) == 0 {
				return fmt.Sprintf("No matches for %q.", query), nil
			}
			sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
			if len(hits) > topK {
				hits = hits[:topK]
			}

			var b strings.Builder
			fmt.Fprintf(&b, "%d ranked hit(s) for %q:\n", len(hits), query)
			for i, h := range hits {
				fmt.Fprintf(&b, "  %d. %s (score %.1f): %s\n", i+1, h.seg.location, h.score, searchSnippet(h.seg.text, query, 80))
			}
			return b.String(), nil
		},
	})

	reg.Register(agent.RegisteredTool{
		Definition: llm.ToolDefinition{
			Name:        "retrieve_document_segments",
			Description: "Retrieve specific segments of any supported document: pages of a PDF, paragraphs of a DOCX, or rows of a sheet. Use after a search to pull just the relevant parts.",
			Parameters: objectSchema(map[string]interface{}{
				"path":     stringProp("Document path relative to the workspace root."),
				"segments": intArrayProp("Segment numbers: 1-based pages or rows, 0-based paragraph indexes."),
				"sheet":    stringProp("Sheet name for workbooks; defaults to the first sheet."),
			}, "path", "segments"),
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
			segments := intSliceArg(args, "segments")
			if len(segments) == 0 {
				return "", fmt.Errorf("missing or invalid required argument %q", "segments")
			}
			abs, err := t.guard.Resolve(path)
			if err != nil {
				return "", err
			}

			switch strings.ToLower(filepath.Ext(abs)) {
			case ".pdf":
				pages, err := docio.ExtractPDFPages(abs, segments)
				if err != nil {
					return "", err
				}
				var b strings.Builder
				for _, pg := range pages {
					fmt.Fprintf(&b, "--- Page %d ---\n%s\n", pg.Page, strings.TrimSpace(pg.Text))
				}
				return b.String(), nil
			case ".docx":
				doc, err := docio.OpenDocx(abs)
				if err != nil {
					return "", err
				}
				paras := docio.DocxParagraphs(doc)
				var b strings.Builder
				for _, idx := range segments {
					if idx < 0 || idx >= len(paras) {
						return "", fmt.Errorf("paragraph index %d out of range (document has %d paragraphs)", idx, len(paras))
					}
					fmt.Fprintf(&b, "[%d] %s\n", idx, paras[idx].Text)
				}
				return b.String(), nil
			case ".xlsx", ".xlsm":
				f, err := docio.OpenXlsx(abs)
				if err != nil {
					return "", err
				}
				defer f.Close()
				sheet, err := resolveSheet(f, args)
				if err != nil {
					return "", err
				}
				rows, total, err := docio.ReadRows(f, sheet, 1, 0)
				if err != nil {
					return "", err
				}
				var b strings.Builder
				for _, n := range segments {
					if n < 1 || n > total {
						return "", fmt.Errorf("row %d out of range (sheet has %d rows)", n, total)
					}
					fmt.Fprintf(&b, "%s row %d\t%s\n", sheet, n, strings.Join(rows[n-1], "\t"))
				}
				return b.String(), nil
			default:
				return "", fmt.Errorf("unsupported document type %q", filepath.Ext(abs))
			}
		},
	})
}

// docSegment is one scoreable unit of a document: a PDF page, a DOCX
// paragraph or a sheet row, with a location string the model can feed to
// retrieve_document_segments.
type docSegment struct {
	location string
	text     string
}

func collectSegments(abs string, args map[string]interface{}) ([]docSegment, error) {
	switch strings.ToLower(filepath.Ext(abs)) {
	case ".pdf":
		pages, err := docio.ExtractPDFPages(abs, nil)
		if err != nil {
			return nil, err
		}
		segs := make([]docSegment, 0, len(pages))
		for _, pg := range pages {
			segs = append(segs, docSegment{
				location: fmt.Sprintf("page %d", pg.Page),
				text:     strings.Join(strings.Fields(pg.Text), " "),
			})
		}
		return segs, nil
	case ".docx":
		doc, err := docio.OpenDocx(abs)
		if err != nil {
			return nil, err
		}
		paras := docio.DocxParagraphs(doc)
		segs := make([]docSegment, 0, len(paras))
		for _, p := range paras {
			segs = append(segs, docSegment{
				location: fmt.Sprintf("paragraph %d", p.Index),
				text:     p.Text,
			})
		}
		return segs, nil
	case ".xlsx", ".xlsm":
		f, err := docio.OpenXlsx(abs)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		sheets := f.GetSheetList()
		if name, ok := agent.GetStringArg(args, "sheet"); ok && name != "" {
			sheets = []string{name}
		}
		var segs []docSegment
		for _, sheet := range sheets {
			rows, _, err := docio.ReadRows(f, sheet, 1, 0)
			if err != nil {
				return nil, err
			}
			for r, row := range rows {
				segs = append(segs, docSegment{
					location: fmt.Sprintf("%s row %d", sheet, r+1),
					text:     strings.Join(row, " "),
				})
			}
		}
		return segs, nil
	default:
		return nil, fmt.Errorf("unsupported document type %q", filepath.Ext(abs))
	}
}

func queryTerms(query string) []string {
	return strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// scoreSegment ranks a segment against the query: exact phrase matches
// dominate, then distinct-term coverage, then raw term frequency with a
// capped density bonus so short segments are not drowned out by long ones.
func scoreSegment(text, query string) float64 {
	haystack := strings.ToLower(text)
	needle := strings.ToLower(strings.TrimSpace(query))
	if haystack == "" || needle == "" {
		return 0
	}

	phraseHits := strings.Count(haystack, needle)
	termHits, uniqueHits := 0, 0
	for _, term := range queryTerms(query) {
		n := strings.Count(haystack, term)
		termHits += n
		if n > 0 {
			uniqueHits++
		}
	}

	density := float64(termHits) / float64(len(haystack)) * 1000
	if density > 5 {
		density = 5
	}
	return float64(phraseHits)*20 + float64(uniqueHits)*5 + float64(termHits) + density
}

// searchSnippet returns the segment text around the first phrase match,
// or its head when only individual terms matched.
func searchSnippet(text, query string, contextChars int) string {
	haystack := strings.ToLower(text)
	needle := strings.ToLower(query)
	pos := strings.Index(haystack, needle)
	if pos < 0 {
		if len(text) <= contextChars*2 {
			return text
		}
		return strings.TrimSpace(text[:contextChars*2]) + "..."
	}

	start := pos - contextChars
	if start < 0 {
		start = 0
	}
	end := pos + len(needle) + contextChars
	if end > len(text) {
		end = len(text)
	}
	snippet := strings.TrimSpace(text[start:end])
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(text) {
		snippet += "..."
	}
	return snippet
}
