// Package workspace confines document operations to a configured root
// directory and discovers documents inside it.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideRoot is the reason string used for confinement violations.
const ErrOutsideRoot = "path resolves outside the workspace root"

// Guard validates that candidate paths resolve inside a fixed root.
// The zero value (empty root) rejects everything, so a tool that requires
// confinement fails closed when no root was configured.
type Guard struct {
	root string
}

// NewGuard creates a Guard for the given root directory. The root itself is
// normalized once; symlinked roots are followed so later comparisons agree.
func NewGuard(root string) (*Guard, error) {
	if root == "" {
		return &Guard{}, nil
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return &Guard{root: abs}, nil
}

// Root returns the normalized workspace root, or "" when unconfigured.
func (g *Guard) Root() string {
	return g.root
}

// Resolve normalizes candidate (resolving "..", symlinks in existing
// ancestors) relative to the root and returns the absolute path. It returns
// an error when no root is configured or the normalized path is not a
// descendant of the root. Confinement violations are hard rejections.
func (g *Guard) Resolve(candidate string) (string, error) {
	if g == nil || g.root == "" {
		return "", fmt.Errorf("no workspace root configured: %s", ErrOutsideRoot)
	}
	if candidate == "" {
		return "", fmt.Errorf("empty path")
	}

	target := candidate
	if !filepath.IsAbs(target) {
		target = filepath.Join(g.root, target)
	}
	target = filepath.Clean(target)
	target = resolveExistingSymlinks(target)

	if !isDescendant(g.root, target) {
		return "", fmt.Errorf("%s: %s", candidate, ErrOutsideRoot)
	}
	return target, nil
}

// Relative returns the path relative to the root for display; falls back to
// the input when it cannot be made relative.
func (g *Guard) Relative(path string) string {
	if g == nil || g.root == "" {
		return path
	}
	rel, err := filepath.Rel(g.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

// resolveExistingSymlinks evaluates symlinks on the deepest existing
// ancestor of path so not-yet-created output paths still normalize. The
// check-then-use race against concurrent external mutation is accepted for
// a single-user interactive tool.
func resolveExistingSymlinks(path string) string {
	remainder := ""
	current := path
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			if remainder == "" {
				return resolved
			}
			return filepath.Join(resolved, remainder)
		}
		if !os.IsNotExist(err) {
			return path
		}
		parent := filepath.Dir(current)
		if parent == current {
			return path
		}
		if remainder == "" {
			remainder = filepath.Base(current)
		} else {
			remainder = filepath.Join(filepath.Base(current), remainder)
		}
		current = parent
	}
}

// isDescendant reports whether target equals root or lives under it.
func isDescendant(root, target string) bool {
	if target == root {
		return true
	}
	return strings.HasPrefix(target, root+string(filepath.Separator))
}
