package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestGuard(t *testing.T) (*Guard, string) {
	t.Helper()
	root := t.TempDir()
	g, err := NewGuard(root)
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}
	return g, g.Root()
}

func TestResolveRelativePath(t *testing.T) {
	g, root := newTestGuard(t)

	abs, err := g.Resolve("reports/q1.xlsx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if abs != filepath.Join(root, "reports", "q1.xlsx") {
		t.Errorf("unexpected resolution %q", abs)
	}
}

func TestResolveRejectsTraversal(t *testing.T) {
	g, _ := newTestGuard(t)

	for _, candidate := range []string{
		"../outside.pdf",
		"a/../../outside.pdf",
		"/etc/passwd",
		"reports/../../etc/passwd",
	} {
		if _, err := g.Resolve(candidate); err == nil {
			t.Errorf("expected rejection for %q", candidate)
		} else if !strings.Contains(err.Error(), ErrOutsideRoot) {
			t.Errorf("%q: expected confinement error, got %v", candidate, err)
		}
	}
}

func TestResolveAllowsDotDotInsideRoot(t *testing.T) {
	g, root := newTestGuard(t)

	abs, err := g.Resolve("reports/../data.xlsx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if abs != filepath.Join(root, "data.xlsx") {
		t.Errorf("unexpected resolution %q", abs)
	}
}

func TestResolveRejectsEscapingSymlink(t *testing.T) {
	g, root := newTestGuard(t)

	outside := t.TempDir()
	link := filepath.Join(root, "escape")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("cannot create symlink: %v", err)
	}

	if _, err := g.Resolve("escape/secret.pdf"); err == nil {
		t.Error("expected rejection through escaping symlink")
	}
}

func TestResolveNonexistentTargetInsideRoot(t *testing.T) {
	g, root := newTestGuard(t)

	// Output paths that do not exist yet must still resolve.
	abs, err := g.Resolve("new/merged.pdf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(abs, root) {
		t.Errorf("resolved outside root: %q", abs)
	}
}

func TestZeroGuardFailsClosed(t *testing.T) {
	var g Guard
	if _, err := g.Resolve("anything.pdf"); err == nil {
		t.Error("expected zero guard to reject")
	}
}

func TestRelative(t *testing.T) {
	g, root := newTestGuard(t)
	if rel := g.Relative(filepath.Join(root, "a", "b.pdf")); rel != "a/b.pdf" {
		t.Errorf("unexpected relative path %q", rel)
	}
}

func TestListDocuments(t *testing.T) {
	g, root := newTestGuard(t)

	mustWrite := func(rel string) {
		t.Helper()
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	mustWrite("a.pdf")
	mustWrite("reports/q1.xlsx")
	mustWrite("reports/notes.txt")
	mustWrite(".hidden/secret.pdf")

	docs, err := g.ListDocuments("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var paths []string
	for _, d := range docs {
		paths = append(paths, d.Path)
	}
	if len(paths) != 2 || paths[0] != "a.pdf" || paths[1] != "reports/q1.xlsx" {
		t.Errorf("unexpected documents: %v", paths)
	}

	docs, err = g.ListDocuments("**/*.xlsx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 1 || docs[0].Path != "reports/q1.xlsx" {
		t.Errorf("unexpected glob result: %v", docs)
	}
}

func TestListDocumentsInvalidPattern(t *testing.T) {
	g, _ := newTestGuard(t)
	if _, err := g.ListDocuments("[bad"); err == nil {
		t.Error("expected invalid pattern error")
	}
}
