// Package diffview turns before/after text snapshots into unified diffs and
// renders them for terminal approval prompts. Structured targets (cells,
// ranges) are diffed through the same path: callers render them to a
// canonical textual form first.
package diffview

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Diff is the result of comparing a before snapshot against a proposed
// after snapshot.
type Diff struct {
	Unified string `json:"unified"`
	Summary string `json:"summary"`
}

// Compute produces a unified diff and a one-line summary for the given
// snapshots. It is total: an empty before is a creation, an empty after a
// deletion, and identical snapshots yield an empty unified diff.
func Compute(before, after string) (Diff, error) {
	ud := difflib.UnifiedDiff{
		A:        splitLines(before),
		B:        splitLines(after),
		FromFile: "before",
		ToFile:   "after",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return Diff{}, fmt.Errorf("compute diff: %w", err)
	}

	added, removed := countChanges(text)
	summary := fmt.Sprintf("+%d -%d lines", added, removed)
	switch {
	case before == "" && after != "":
		summary = fmt.Sprintf("created (+%d lines)", added)
	case before != "" && after == "":
		summary = fmt.Sprintf("deleted (-%d lines)", removed)
	case text == "":
		summary = "no changes"
	}

	return Diff{Unified: text, Summary: summary}, nil
}

// splitLines splits keeping line terminators, treating "" as zero lines so
// creations and deletions diff cleanly.
func splitLines(s string) []string {
	if s == "" {
		return []string{}
	}
	return difflib.SplitLines(s)
}

func countChanges(unified string) (added, removed int) {
	for _, line := range strings.Split(unified, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			removed++
		}
	}
	return added, removed
}
