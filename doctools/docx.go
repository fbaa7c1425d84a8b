package doctools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/docsage/docsage/agent"
	"github.com/docsage/docsage/docio"
	"github.com/docsage/docsage/llm"
	"github.com/docsage/docsage/mutate"
)

func (t *Toolset) registerDocxTools(reg *agent.ToolRegistry) {
	reg.Register(agent.RegisteredTool{
		Definition: llm.ToolDefinition{
			Name:        "extract_docx_text",
			Description: "Extract the plain text of a Word document, one line per paragraph with paragraph indexes.",
			Parameters: objectSchema(map[string]interface{}{
				"path": stringProp("DOCX file path relative to the workspace root."),
			}, "path"),
		},
		Executor: func(ctx context.Context, raw json.RawMessage) (string, error) {
			abs, err := t.resolvePathArg(raw)
			if err != nil {
				return "", err
			}
			doc, err := docio.OpenDocx(abs)
			if err != nil {
				return "", err
			}
			paras := docio.DocxParagraphs(doc)
			if len(paras) == 0 {
				return "The document has no paragraphs.", nil
			}
			var b strings.Builder
			for _, p := range paras {
				fmt.Fprintf(&b, "[%d] %s\n", p.Index, p.Text)
			}
			return b.String(), nil
		},
	})

	reg.Register(agent.RegisteredTool{
		Definition: llm.ToolDefinition{
			Name:        "get_docx_structure",
			Description: "Get the heading outline of a Word document: styled paragraphs with their indexes.",
			Parameters: objectSchema(map[string]interface{}{
				"path": stringProp("DOCX file path relative to the workspace root."),
			}, "path"),
		},
		Executor: func(ctx context.Context, raw json.RawMessage) (string, error) {
			abs, err := t.resolvePathArg(raw)
			if err != nil {
				return "", err
			}
			doc, err := docio.OpenDocx(abs)
			if err != nil {
				return "", err
			}
			var b strings.Builder
			count := 0
			for _, p := range docio.DocxParagraphs(doc) {
				if p.Style == "" || !strings.HasPrefix(strings.ToLower(p.Style), "heading") {
					continue
				}
				fmt.Fprintf(&b, "[%d] %s: %s\n", p.Index, p.Style, p.Text)
				count++
			}
			if count == 0 {
				return "The document has no heading paragraphs.", nil
			}
			return b.String(), nil
		},
	})

	reg.Register(agent.RegisteredTool{
		Definition: llm.ToolDefinition{
			Name:        "search_docx_text",
			Description: "Search a Word document for text (case-insensitive). Returns paragraph indexes with context.",
			Parameters: objectSchema(map[string]interface{}{
				"path":  stringProp("DOCX file path relative to the workspace root."),
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
			doc, err := docio.OpenDocx(abs)
			if err != nil {
				return "", err
			}

			needle := strings.ToLower(query)
			var b strings.Builder
			count := 0
			for _, p := range docio.DocxParagraphs(doc) {
				if !strings.Contains(strings.ToLower(p.Text), needle) {
					continue
				}
				fmt.Fprintf(&b, "  paragraph %d: %s\n", p.Index, p.Text)
				count++
			}
			if count == 0 {
				return fmt.Sprintf("No matches for %q.", query), nil
			}
			return fmt.Sprintf("%d match(es) for %q:\n%s", count, query, b.String()), nil
		},
	})

	reg.Register(agent.RegisteredTool{
		Definition: llm.ToolDefinition{
			Name:        "create_docx",
			Description: "Create a new Word document from plain-text paragraphs. Overwriting an existing file shows its current content in the diff.",
			Parameters: objectSchema(map[string]interface{}{
				"path":       stringProp("Destination path relative to the workspace root."),
				"paragraphs": stringArrayProp("Paragraph texts, in order."),
			}, "path", "paragraphs"),
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
			paragraphs := stringSliceArg(args, "paragraphs")

			result, err := t.pipeline.Run(ctx, mutate.Mutation{
				Path:        path,
				Operation:   "create_docx",
				Description: fmt.Sprintf("Create document with %d paragraphs", len(paragraphs)),
				Load:        loadDocxText,
				Render: func(abs string) (string, error) {
					return strings.Join(paragraphs, "\n"), nil
				},
				Commit: func(abs string) error {
					return docio.WriteDocx(docio.NewDocx(paragraphs), abs)
				},
			})
			if err != nil {
				return "", err
			}
			return describeMutation(result, fmt.Sprintf("Created %s with %d paragraphs.", result.Path, len(paragraphs))), nil
		},
	})

	reg.Register(agent.RegisteredTool{
		Definition: llm.ToolDefinition{
			Name:        "replace_docx_text",
			Description: "Replace the full text of one paragraph in a Word document, identified by its index from extract_docx_text.",
			Parameters: objectSchema(map[string]interface{}{
				"path":            stringProp("DOCX file path relative to the workspace root."),
				"paragraph_index": intProp("0-based paragraph index."),
				"new_text":        stringProp("Replacement paragraph text."),
			}, "path", "paragraph_index", "new_text"),
		},
		Mutating: true,
		Executor: t.docxEditExecutor("replace_docx_text",
			func(args map[string]interface{}) (docio.DocxEdit, string, error) {
				idx, ok := agent.GetIntArg(args, "paragraph_index")
				if !ok {
					return docio.DocxEdit{}, "", fmt.Errorf("missing or invalid required argument %q", "paragraph_index")
				}
				text, err := agent.RequireStringArg(args, "new_text")
				if err != nil {
					return docio.DocxEdit{}, "", err
				}
				edit := docio.DocxEdit{Kind: docio.DocxReplace, Index: idx, Text: text}
				return edit, fmt.Sprintf("Replace paragraph %d", idx), nil
			}),
	})

	reg.Register(agent.RegisteredTool{
		Definition: llm.ToolDefinition{
			Name:        "insert_docx_text",
			Description: "Insert a new paragraph into a Word document at the given index; existing paragraphs shift down.",
			Parameters: objectSchema(map[string]interface{}{
				"path":            stringProp("DOCX file path relative to the workspace root."),
				"paragraph_index": intProp("0-based index the new paragraph should occupy; the paragraph count appends."),
				"text":            stringProp("Paragraph text to insert."),
			}, "path", "paragraph_index", "text"),
		},
		Mutating: true,
		Executor: t.docxEditExecutor("insert_docx_text",
			func(args map[string]interface{}) (docio.DocxEdit, string, error) {
				idx, ok := agent.GetIntArg(args, "paragraph_index")
				if !ok {
					return docio.DocxEdit{}, "", fmt.Errorf("missing or invalid required argument %q", "paragraph_index")
				}
				text, err := agent.RequireStringArg(args, "text")
				if err != nil {
					return docio.DocxEdit{}, "", err
				}
				edit := docio.DocxEdit{Kind: docio.DocxInsert, Index: idx, Text: text}
				return edit, fmt.Sprintf("Insert paragraph at %d", idx), nil
			}),
	})

	reg.Register(agent.RegisteredTool{
		Definition: llm.ToolDefinition{
			Name:        "delete_docx_text",
			Description: "Delete one paragraph from a Word document, identified by its index from extract_docx_text.",
			Parameters: objectSchema(map[string]interface{}{
				"path":            stringProp("DOCX file path relative to the workspace root."),
				"paragraph_index": intProp("0-based paragraph index."),
			}, "path", "paragraph_index"),
		},
		Mutating: true,
		Executor: t.docxEditExecutor("delete_docx_text",
			func(args map[string]interface{}) (docio.DocxEdit, string, error) {
				idx, ok := agent.GetIntArg(args, "paragraph_index")
				if !ok {
					return docio.DocxEdit{}, "", fmt.Errorf("missing or invalid required argument %q", "paragraph_index")
				}
				edit := docio.DocxEdit{Kind: docio.DocxDelete, Index: idx}
				return edit, fmt.Sprintf("Delete paragraph %d", idx), nil
			}),
	})
}

// docxEditExecutor builds the shared pipeline wiring for the paragraph
// edit tools: parse arguments into a DocxEdit, preview it against the
// in-memory document, and re-apply it on commit.
func (t *Toolset) docxEditExecutor(op string, parse func(args map[string]interface{}) (docio.DocxEdit, string, error)) agent.ToolExecutor {
	return func(ctx context.Context, raw json.RawMessage) (string, error) {
		args, err := agent.ParseToolArguments(raw)
		if err != nil {
			return "", err
		}
		path, err := agent.RequireStringArg(args, "path")
		if err != nil {
			return "", err
		}
		edit, desc, err := parse(args)
		if err != nil {
			return "", err
		}

		result, err := t.pipeline.Run(ctx, mutate.Mutation{
			Path:        path,
			Operation:   op,
			Description: desc,
			Load:        loadDocxText,
			Render: func(abs string) (string, error) {
				doc, err := docio.OpenDocx(abs)
				if err != nil {
					return "", err
				}
				if err := docio.ApplyDocxEdit(doc, edit); err != nil {
					return "", err
				}
				return docio.DocxText(doc), nil
			},
			Commit: func(abs string) error {
				doc, err := docio.OpenDocx(abs)
				if err != nil {
					return err
				}
				if err := docio.ApplyDocxEdit(doc, edit); err != nil {
					return err
				}
				return docio.WriteDocx(doc, abs)
			},
		})
		if err != nil {
			return "", err
		}
		return describeMutation(result, fmt.Sprintf("%s in %s.", desc, result.Path)), nil
	}
}

// loadDocxText snapshots a document's plain text, or "" if the file does
// not exist yet.
func loadDocxText(abs string) (string, error) {
	if _, err := os.Stat(abs); os.IsNotExist(err) {
		return "", nil
	}
	doc, err := docio.OpenDocx(abs)
	if err != nil {
		return "", err
	}
	return docio.DocxText(doc), nil
}
