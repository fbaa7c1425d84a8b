package mutate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsage/docsage/approval"
	"github.com/docsage/docsage/workspace"
)

// recordingGate resolves every descriptor with a fixed verdict and keeps
// what it saw.
type recordingGate struct {
	verdict approval.Verdict
	err     error
	seen    []*approval.ChangeDescriptor
}

func (g *recordingGate) Decide(ctx context.Context, c *approval.ChangeDescriptor) (approval.Verdict, error) {
	g.seen = append(g.seen, c)
	if g.err != nil {
		return approval.Rejected, g.err
	}
	return g.verdict, nil
}

func newTestPipeline(t *testing.T, gate approval.Gate) (*Pipeline, string) {
	t.Helper()
	root := t.TempDir()
	guard, err := workspace.NewGuard(root)
	require.NoError(t, err)
	return &Pipeline{Guard: guard, Gate: gate}, guard.Root()
}

func textFileMutation(path, newContent string) Mutation {
	return Mutation{
		Path:        path,
		Operation:   "edit",
		Description: "test edit",
		Load: func(abs string) (string, error) {
			data, err := os.ReadFile(abs)
			if os.IsNotExist(err) {
				return "", nil
			}
			return string(data), err
		},
		Render: func(abs string) (string, error) {
			return newContent, nil
		},
		Commit: func(abs string) error {
			return os.WriteFile(abs, []byte(newContent), 0o644)
		},
	}
}

func TestRunApprovedCommits(t *testing.T) {
	gate := &recordingGate{verdict: approval.Approved}
	p, root := newTestPipeline(t, gate)

	target := filepath.Join(root, "note.txt")
	require.NoError(t, os.WriteFile(target, []byte("before\n"), 0o644))

	result, err := p.Run(context.Background(), textFileMutation("note.txt", "after\n"))
	require.NoError(t, err)
	assert.Equal(t, approval.Approved, result.Verdict)
	assert.True(t, result.Committed)
	assert.Equal(t, "note.txt", result.Path)
	assert.Contains(t, result.Diff.Unified, "+after")

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "after\n", string(data))
}

func TestRunRejectedLeavesFileUntouched(t *testing.T) {
	gate := &recordingGate{verdict: approval.Rejected}
	p, root := newTestPipeline(t, gate)

	target := filepath.Join(root, "note.txt")
	require.NoError(t, os.WriteFile(target, []byte("before\n"), 0o644))

	result, err := p.Run(context.Background(), textFileMutation("note.txt", "after\n"))
	require.NoError(t, err)
	assert.Equal(t, approval.Rejected, result.Verdict)
	assert.False(t, result.Committed)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "before\n", string(data), "rejected change must not modify the file")
}

func TestRunGuardRejectionBeforeRead(t *testing.T) {
	gate := &recordingGate{verdict: approval.Approved}
	p, _ := newTestPipeline(t, gate)

	loaded := false
	m := Mutation{
		Path:      "../outside.txt",
		Operation: "edit",
		Load: func(abs string) (string, error) {
			loaded = true
			return "", nil
		},
		Render: func(abs string) (string, error) { return "", nil },
		Commit: func(abs string) error { return nil },
	}

	_, err := p.Run(context.Background(), m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), workspace.ErrOutsideRoot)
	assert.False(t, loaded, "guard rejection must happen before any read")
	assert.Empty(t, gate.seen, "guard rejection must not reach the gate")
}

func TestRunNoChangeSkipsGate(t *testing.T) {
	gate := &recordingGate{verdict: approval.Rejected}
	p, root := newTestPipeline(t, gate)

	target := filepath.Join(root, "note.txt")
	require.NoError(t, os.WriteFile(target, []byte("same\n"), 0o644))

	result, err := p.Run(context.Background(), textFileMutation("note.txt", "same\n"))
	require.NoError(t, err)
	assert.Equal(t, approval.Approved, result.Verdict)
	assert.False(t, result.Committed)
	assert.Empty(t, gate.seen, "identical content must not prompt")
}

func TestRunGateErrorIsRejection(t *testing.T) {
	gate := &recordingGate{err: errors.New("prompt device lost")}
	p, root := newTestPipeline(t, gate)

	target := filepath.Join(root, "note.txt")
	require.NoError(t, os.WriteFile(target, []byte("before\n"), 0o644))

	result, err := p.Run(context.Background(), textFileMutation("note.txt", "after\n"))
	require.Error(t, err)
	assert.Equal(t, approval.Rejected, result.Verdict)

	data, readErr := os.ReadFile(target)
	require.NoError(t, readErr)
	assert.Equal(t, "before\n", string(data))
}

func TestRunCommitErrorSurfaces(t *testing.T) {
	gate := &recordingGate{verdict: approval.Approved}
	p, root := newTestPipeline(t, gate)

	target := filepath.Join(root, "note.txt")
	require.NoError(t, os.WriteFile(target, []byte("before\n"), 0o644))

	m := textFileMutation("note.txt", "after\n")
	m.Commit = func(abs string) error { return errors.New("disk full") }

	result, err := p.Run(context.Background(), m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.False(t, result.Committed)
}
