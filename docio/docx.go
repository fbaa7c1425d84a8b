package docio

import (
	"fmt"
	"os"
	"strings"

	"github.com/fumiama/go-docx"
)

// DocxParagraph is one paragraph with its position and style.
type DocxParagraph struct {
	Index int
	Style string
	Text  string
}

// OpenDocx parses the document at path.
func OpenDocx(path string) (*docx.Docx, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	doc, err := docx.Parse(f, fi.Size())
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}
	return doc, nil
}

// DocxParagraphs returns the paragraphs of the document in order. Tables
// and other non-paragraph body items are skipped.
func DocxParagraphs(doc *docx.Docx) []DocxParagraph {
	var out []DocxParagraph
	for _, item := range doc.Document.Body.Items {
		p, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		out = append(out, DocxParagraph{
			Index: len(out),
			Style: paragraphStyle(p),
			Text:  paragraphText(p),
		})
	}
	return out
}

func paragraphStyle(p *docx.Paragraph) string {
	if p.Properties != nil && p.Properties.Style != nil {
		return p.Properties.Style.Val
	}
	return ""
}

func paragraphText(p *docx.Paragraph) string {
	var b strings.Builder
	for _, child := range p.Children {
		r, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range r.Children {
			switch t := rc.(type) {
			case *docx.Text:
				b.WriteString(t.Text)
			case *docx.Tab:
				b.WriteString("\t")
			}
		}
	}
	return b.String()
}

// DocxText joins all paragraph texts with newlines.
func DocxText(doc *docx.Docx) string {
	paras := DocxParagraphs(doc)
	lines := make([]string, len(paras))
	for i, p := range paras {
		lines[i] = p.Text
	}
	return strings.Join(lines, "\n")
}

// NewDocx builds a fresh document from plain-text paragraphs.
func NewDocx(paragraphs []string) *docx.Docx {
	doc := docx.New().WithDefaultTheme()
	for _, text := range paragraphs {
		doc.AddParagraph().AddText(text)
	}
	return doc
}

// WriteDocx serializes the document to path.
func WriteDocx(doc *docx.Docx, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write docx: %w", err)
	}
	defer f.Close()
	if _, err := doc.WriteTo(f); err != nil {
		return fmt.Errorf("write docx: %w", err)
	}
	return nil
}

// paragraphItemIndex maps a paragraph index to its position in Body.Items.
func paragraphItemIndex(doc *docx.Docx, paraIndex int) (int, error) {
	count := 0
	for i, item := range doc.Document.Body.Items {
		if _, ok := item.(*docx.Paragraph); !ok {
			continue
		}
		if count == paraIndex {
			return i, nil
		}
		count++
	}
	return 0, fmt.Errorf("paragraph index %d out of range (document has %d paragraphs)", paraIndex, count)
}

// SetParagraphText replaces the full text of the paragraph at paraIndex,
// discarding its runs but keeping paragraph-level properties.
func SetParagraphText(doc *docx.Docx, paraIndex int, text string) error {
	i, err := paragraphItemIndex(doc, paraIndex)
	if err != nil {
		return err
	}
	p := doc.Document.Body.Items[i].(*docx.Paragraph)
	p.Children = nil
	p.AddText(text)
	return nil
}

// InsertParagraph inserts a new plain-text paragraph so it becomes the
// paragraph at paraIndex. paraIndex equal to the paragraph count appends.
func InsertParagraph(doc *docx.Docx, paraIndex int, text string) error {
	paras := DocxParagraphs(doc)
	if paraIndex < 0 || paraIndex > len(paras) {
		return fmt.Errorf("paragraph index %d out of range (document has %d paragraphs)", paraIndex, len(paras))
	}

	// AddParagraph appends to Body.Items; relocate it to the target slot.
	doc.AddParagraph().AddText(text)
	items := doc.Document.Body.Items
	added := items[len(items)-1]
	items = items[:len(items)-1]

	pos := len(items)
	if paraIndex < len(paras) {
		p, err := paragraphItemIndexIn(items, paraIndex)
		if err != nil {
			return err
		}
		pos = p
	}
	items = append(items[:pos], append([]interface{}{added}, items[pos:]...)...)
	doc.Document.Body.Items = items
	return nil
}

func paragraphItemIndexIn(items []interface{}, paraIndex int) (int, error) {
	count := 0
	for i, item := range items {
		if _, ok := item.(*docx.Paragraph); !ok {
			continue
		}
		if count == paraIndex {
			return i, nil
		}
		count++
	}
	return 0, fmt.Errorf("paragraph index %d out of range", paraIndex)
}

// DocxEditKind selects a paragraph edit operation.
type DocxEditKind string

const (
	DocxReplace DocxEditKind = "replace"
	DocxInsert  DocxEditKind = "insert"
	DocxDelete  DocxEditKind = "delete"
)

// DocxEdit is one paragraph-level edit.
type DocxEdit struct {
	Kind  DocxEditKind
	Index int
	Text  string
}

// ApplyDocxEdit applies the edit to the in-memory document.
func ApplyDocxEdit(doc *docx.Docx, e DocxEdit) error {
	switch e.Kind {
	case DocxReplace:
		return SetParagraphText(doc, e.Index, e.Text)
	case DocxInsert:
		return InsertParagraph(doc, e.Index, e.Text)
	case DocxDelete:
		return DeleteParagraph(doc, e.Index)
	default:
		return fmt.Errorf("unknown docx edit kind %q", e.Kind)
	}
}

// DeleteParagraph removes the paragraph at paraIndex.
func DeleteParagraph(doc *docx.Docx, paraIndex int) error {
	i, err := paragraphItemIndex(doc, paraIndex)
	if err != nil {
		return err
	}
	items := doc.Document.Body.Items
	doc.Document.Body.Items = append(items[:i], items[i+1:]...)
	return nil
}
