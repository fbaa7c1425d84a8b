package workspace

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DocumentExtensions are the file extensions the agent knows how to open.
var DocumentExtensions = []string{".pdf", ".docx", ".xlsx", ".xlsm"}

// DocumentInfo describes one discovered document.
type DocumentInfo struct {
	Path string // relative to the workspace root
	Size int64
}

// ListDocuments walks the workspace root and returns documents matching the
// doublestar pattern (e.g. "**/*.xlsx"). An empty pattern matches every
// known document extension.
func (g *Guard) ListDocuments(pattern string) ([]DocumentInfo, error) {
	if g == nil || g.root == "" {
		return nil, fmt.Errorf("no workspace root configured")
	}
	if pattern != "" {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid glob pattern: %s", pattern)
		}
	}

	var docs []DocumentInfo
	err := filepath.WalkDir(g.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, not fatal.
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != g.root {
				return filepath.SkipDir
			}
			return nil
		}
		rel := g.Relative(path)
		if pattern != "" {
			ok, err := doublestar.Match(pattern, rel)
			if err != nil || !ok {
				return nil
			}
		} else if !hasDocumentExtension(path) {
			return nil
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil
		}
		docs = append(docs, DocumentInfo{Path: rel, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Path < docs[j].Path })
	return docs, nil
}

func hasDocumentExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, known := range DocumentExtensions {
		if ext == known {
			return true
		}
	}
	return false
}
