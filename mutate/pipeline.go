// Package mutate runs every document-changing operation through a single
// pipeline: resolve the path inside the workspace, snapshot the affected
// content, compute the proposed result, diff the two, ask the approval
// gate, and only then perform the one write. No tool writes a file any
// other way.
package mutate

import (
	"context"
	"fmt"

	"github.com/docsage/docsage/approval"
	"github.com/docsage/docsage/diffview"
	"github.com/docsage/docsage/workspace"
)

// Mutation describes one proposed change. The callbacks receive the
// guard-resolved absolute path; Load and Render must not modify anything,
// and Commit performs the single write.
type Mutation struct {
	// Path is the caller-supplied target, resolved by the guard before any
	// file is touched.
	Path        string
	Operation   string
	Description string

	// Load returns the textual snapshot of the content the change affects,
	// or "" when the target does not exist yet.
	Load func(abs string) (string, error)
	// Render returns the snapshot as it would look after the change,
	// without writing anything.
	Render func(abs string) (string, error)
	// Commit applies the change to disk.
	Commit func(abs string) error
}

// Result reports how a mutation ended. Exactly one of the three outcomes
// holds: committed, rejected, or skipped because nothing would change.
type Result struct {
	Verdict   approval.Verdict
	Path      string // workspace-relative, for display
	Diff      diffview.Diff
	Committed bool
}

// Pipeline binds a workspace guard to an approval gate.
type Pipeline struct {
	Guard *workspace.Guard
	Gate  approval.Gate
}

// Run executes the mutation. The target file is untouched unless the gate
// approves; a guard rejection fails before any read happens.
func (p *Pipeline) Run(ctx context.Context, m Mutation) (Result, error) {
	abs, err := p.Guard.Resolve(m.Path)
	if err != nil {
		return Result{}, err
	}
	rel := p.Guard.Relative(abs)

	before, err := m.Load(abs)
	if err != nil {
		return Result{}, fmt.Errorf("%s: read current state: %w", rel, err)
	}
	after, err := m.Render(abs)
	if err != nil {
		return Result{}, fmt.Errorf("%s: compute proposed state: %w", rel, err)
	}

	d, err := diffview.Compute(before, after)
	if err != nil {
		return Result{}, err
	}
	res := Result{Path: rel, Diff: d}

	if before == after {
		res.Verdict = approval.Approved
		return res, nil
	}

	desc := approval.NewChangeDescriptor(rel, m.Operation, m.Description, d)
	verdict, err := p.Gate.Decide(ctx, desc)
	if err != nil {
		// The gate failed to produce a decision; treat it as a rejection
		// and surface the failure.
		res.Verdict = approval.Rejected
		return res, fmt.Errorf("%s: approval gate: %w", rel, err)
	}
	res.Verdict = verdict
	if verdict != approval.Approved {
		return res, nil
	}

	if err := m.Commit(abs); err != nil {
		return res, fmt.Errorf("%s: apply change: %w", rel, err)
	}
	res.Committed = true
	return res, nil
}
