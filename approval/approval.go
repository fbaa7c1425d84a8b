// Package approval decides whether proposed document mutations may be
// committed. Every mutation is described by a ChangeDescriptor and resolved
// by a Gate exactly once; anything other than an explicit approval is a
// rejection.
package approval

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/docsage/docsage/diffview"
)

// Verdict is the terminal state of a change descriptor.
type Verdict string

const (
	Pending  Verdict = "pending"
	Approved Verdict = "approved"
	Rejected Verdict = "rejected"
)

// ChangeDescriptor captures one proposed mutation: what file, what
// operation, and the full diff of what would change. A descriptor resolves
// at most once; later resolution attempts are ignored.
type ChangeDescriptor struct {
	ID          string
	Path        string
	Operation   string
	Description string
	Diff        diffview.Diff
	CreatedAt   time.Time

	mu       sync.Mutex
	verdict  Verdict
	resolved bool
}

// NewChangeDescriptor builds a pending descriptor for the given change.
func NewChangeDescriptor(path, operation, description string, d diffview.Diff) *ChangeDescriptor {
	return &ChangeDescriptor{
		ID:          ulid.Make().String(),
		Path:        path,
		Operation:   operation,
		Description: description,
		Diff:        d,
		CreatedAt:   time.Now().UTC(),
		verdict:     Pending,
	}
}

// Verdict returns the current state of the descriptor.
func (c *ChangeDescriptor) Verdict() Verdict {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.verdict
}

// resolve records the verdict if the descriptor is still pending and
// reports whether this call performed the transition.
func (c *ChangeDescriptor) resolve(v Verdict) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resolved {
		return false
	}
	c.resolved = true
	c.verdict = v
	return true
}

// Gate resolves pending change descriptors. Implementations must resolve
// the descriptor before returning, must treat cancellation as rejection,
// and must never leave a descriptor pending.
type Gate interface {
	Decide(ctx context.Context, c *ChangeDescriptor) (Verdict, error)
}

// AutoGate approves or rejects every change without prompting. The
// approve=false form is the fail-closed gate used when no interactive
// terminal is available. When Out is set, approved changes still render
// their diff panel so the user sees what was written.
type AutoGate struct {
	Approve bool
	Out     io.Writer
}

func (g AutoGate) Decide(ctx context.Context, c *ChangeDescriptor) (Verdict, error) {
	if err := ctx.Err(); err != nil {
		c.resolve(Rejected)
		return Rejected, nil
	}
	v := Rejected
	if g.Approve {
		v = Approved
		if g.Out != nil {
			fmt.Fprintln(g.Out, diffview.RenderPanel(c.Operation, c.Path, c.Description, c.Diff))
			fmt.Fprintln(g.Out, "Auto-approved.")
		}
	}
	c.resolve(v)
	return c.Verdict(), nil
}

// lineResult is one line (or terminal error) read from a LineSource.
type lineResult struct {
	text string
	err  error
}

// LineSource owns an input stream behind a single reader goroutine so a
// prompt and a REPL can share stdin. A consumer that gives up on a line
// (cancelled prompt) does not strand it: the line stays queued and the
// next ReadLine call receives it.
type LineSource struct {
	reader *bufio.Reader
	lines  chan lineResult
	once   sync.Once
}

// NewLineSource wraps r. The reader goroutine starts on first ReadLine.
func NewLineSource(r io.Reader) *LineSource {
	return &LineSource{reader: bufio.NewReader(r), lines: make(chan lineResult)}
}

func (s *LineSource) start() {
	go func() {
		for {
			line, err := s.reader.ReadString('\n')
			s.lines <- lineResult{text: line, err: err}
			if err != nil {
				close(s.lines)
				return
			}
		}
	}()
}

// ReadLine returns the next input line, or the context error if the
// caller stops waiting first. After the stream ends it keeps returning
// io.EOF.
func (s *LineSource) ReadLine(ctx context.Context) (string, error) {
	s.once.Do(s.start)
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-s.lines:
		if !ok {
			return "", io.EOF
		}
		return res.text, res.err
	}
}

// TerminalGate prompts a human on the terminal. Only an explicit yes
// approves; empty input, EOF, read errors, and context cancellation all
// reject.
type TerminalGate struct {
	In  io.Reader
	Out io.Writer

	// Lines, when set, is the shared input source; a REPL passing its own
	// LineSource here keeps a single goroutine reading stdin, so a line
	// typed after an abandoned prompt is never lost. When nil, a private
	// source is built from In.
	Lines *LineSource

	// Tracker, when set, lets previously approved identical changes pass
	// without a fresh prompt.
	Tracker *Tracker

	once sync.Once
}

func (g *TerminalGate) source() *LineSource {
	g.once.Do(func() {
		if g.Lines == nil {
			g.Lines = NewLineSource(g.In)
		}
	})
	return g.Lines
}

func (g *TerminalGate) Decide(ctx context.Context, c *ChangeDescriptor) (Verdict, error) {
	fp := Fingerprint(c.Path, c.Operation, c.Diff.Unified)
	if g.Tracker != nil && g.Tracker.IsApproved(fp) {
		c.resolve(Approved)
		return Approved, nil
	}

	fmt.Fprintln(g.Out, diffview.RenderPanel(c.Operation, c.Path, c.Description, c.Diff))
	fmt.Fprint(g.Out, "Apply this edit? [y/N]: ")

	line, err := g.source().ReadLine(ctx)
	if ctx.Err() != nil {
		c.resolve(Rejected)
		return Rejected, nil
	}
	if err != nil && line == "" {
		c.resolve(Rejected)
		return Rejected, nil
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		c.resolve(Approved)
		if g.Tracker != nil {
			g.Tracker.Approve(fp)
		}
		return Approved, nil
	default:
		c.resolve(Rejected)
		return Rejected, nil
	}
}
