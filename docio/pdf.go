// Package docio wraps the document format libraries behind small typed
// helpers so the tool layer never touches library APIs directly. All
// functions take absolute paths already resolved by the workspace guard.
package docio

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PDFInfo holds document-level PDF metadata.
type PDFInfo struct {
	Title     string
	Author    string
	Subject   string
	Creator   string
	Producer  string
	PageCount int
}

// PDFPageText is the extracted text of one page.
type PDFPageText struct {
	Page int
	Text string
}

// OpenPDFInfo reads metadata from the document information dictionary.
func OpenPDFInfo(path string) (PDFInfo, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return PDFInfo{}, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	info := PDFInfo{PageCount: r.NumPage()}
	dict := r.Trailer().Key("Info")
	if !dict.IsNull() {
		info.Title = dict.Key("Title").Text()
		info.Author = dict.Key("Author").Text()
		info.Subject = dict.Key("Subject").Text()
		info.Creator = dict.Key("Creator").Text()
		info.Producer = dict.Key("Producer").Text()
	}
	return info, nil
}

// ExtractPDFPages extracts plain text per page. A nil or empty pages slice
// means all pages; out-of-range page numbers are reported, not skipped.
func ExtractPDFPages(path string, pages []int) ([]PDFPageText, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	total := r.NumPage()
	if len(pages) == 0 {
		pages = make([]int, total)
		for i := range pages {
			pages[i] = i + 1
		}
	}
	sort.Ints(pages)

	out := make([]PDFPageText, 0, len(pages))
	for _, n := range pages {
		if n < 1 || n > total {
			return nil, fmt.Errorf("page %d out of range (document has %d pages)", n, total)
		}
		p := r.Page(n)
		if p.V.IsNull() {
			out = append(out, PDFPageText{Page: n})
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", n, err)
		}
		out = append(out, PDFPageText{Page: n, Text: text})
	}
	return out, nil
}

// PDFMatch is one search hit with its page and surrounding context.
type PDFMatch struct {
	Page    int
	Context string
}

// SearchPDF scans every page for query (case-insensitive) and returns
// matches with a context window around each hit.
func SearchPDF(path, query string, contextChars int) ([]PDFMatch, error) {
	if contextChars <= 0 {
		contextChars = 80
	}
	pages, err := ExtractPDFPages(path, nil)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	var matches []PDFMatch
	for _, pg := range pages {
		lower := strings.ToLower(pg.Text)
		offset := 0
		for {
			idx := strings.Index(lower[offset:], needle)
			if idx < 0 {
				break
			}
			idx += offset
			start := idx - contextChars
			if start < 0 {
				start = 0
			}
			end := idx + len(needle) + contextChars
			if end > len(pg.Text) {
				end = len(pg.Text)
			}
			ctx := strings.Join(strings.Fields(pg.Text[start:end]), " ")
			matches = append(matches, PDFMatch{Page: pg.Page, Context: ctx})
			offset = idx + len(needle)
		}
	}
	return matches, nil
}

// MergePDFs concatenates the input files into outPath in order.
func MergePDFs(inPaths []string, outPath string) error {
	if len(inPaths) < 2 {
		return fmt.Errorf("merge needs at least two input files")
	}
	if err := api.MergeCreateFile(inPaths, outPath, false, nil); err != nil {
		return fmt.Errorf("merge pdfs: %w", err)
	}
	return nil
}

// SplitPDF writes each page of the input as a standalone PDF into outDir
// and returns the created file names.
func SplitPDF(inPath, outDir string) ([]string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("split pdf: %w", err)
	}
	if err := api.SplitFile(inPath, outDir, 1, nil); err != nil {
		return nil, fmt.Errorf("split pdf: %w", err)
	}
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, fmt.Errorf("split pdf: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
