package approval

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/docsage/docsage/diffview"
)

func testDescriptor() *ChangeDescriptor {
	d, _ := diffview.Compute("old\n", "new\n")
	return NewChangeDescriptor("doc.docx", "replace_docx_text", "Replace paragraph 2", d)
}

func TestDescriptorStartsPending(t *testing.T) {
	c := testDescriptor()
	if c.Verdict() != Pending {
		t.Errorf("expected pending, got %s", c.Verdict())
	}
	if c.ID == "" {
		t.Error("expected a generated id")
	}
}

func TestDescriptorResolvesOnce(t *testing.T) {
	c := testDescriptor()
	if !c.resolve(Rejected) {
		t.Fatal("first resolve should succeed")
	}
	if c.resolve(Approved) {
		t.Error("second resolve should be ignored")
	}
	if c.Verdict() != Rejected {
		t.Errorf("verdict changed after resolution: %s", c.Verdict())
	}
}

func TestAutoGateApprove(t *testing.T) {
	c := testDescriptor()
	v, err := AutoGate{Approve: true}.Decide(context.Background(), c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != Approved || c.Verdict() != Approved {
		t.Errorf("expected approval, got %s", v)
	}
}

func TestAutoGateReject(t *testing.T) {
	c := testDescriptor()
	v, _ := AutoGate{Approve: false}.Decide(context.Background(), c)
	if v != Rejected || c.Verdict() != Rejected {
		t.Errorf("expected rejection, got %s", v)
	}
}

func TestAutoGateApproveRendersPanelWhenOutSet(t *testing.T) {
	c := testDescriptor()
	var out strings.Builder
	v, err := AutoGate{Approve: true, Out: &out}.Decide(context.Background(), c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != Approved {
		t.Fatalf("expected approval, got %s", v)
	}
	if !strings.Contains(out.String(), "Proposed Edit") {
		t.Error("expected the diff panel to be shown")
	}
	if !strings.Contains(out.String(), "Auto-approved.") {
		t.Error("expected the auto-approval notice")
	}
}

func TestAutoGateApproveSilentWithoutOut(t *testing.T) {
	c := testDescriptor()
	v, err := AutoGate{Approve: true}.Decide(context.Background(), c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != Approved {
		t.Errorf("expected approval, got %s", v)
	}
}

func TestAutoGateCancelledContextRejects(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := testDescriptor()
	v, err := AutoGate{Approve: true}.Decide(ctx, c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != Rejected {
		t.Errorf("cancelled context must reject, got %s", v)
	}
}

func TestTerminalGateApprovesOnYes(t *testing.T) {
	for _, input := range []string{"y\n", "yes\n", "  Y  \n", "YES\n"} {
		c := testDescriptor()
		var out strings.Builder
		g := &TerminalGate{In: strings.NewReader(input), Out: &out}

		v, err := g.Decide(context.Background(), c)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != Approved {
			t.Errorf("input %q: expected approval, got %s", input, v)
		}
		if !strings.Contains(out.String(), "Proposed Edit") {
			t.Error("expected the diff panel to be shown")
		}
	}
}

func TestTerminalGateRejectsEverythingElse(t *testing.T) {
	for _, input := range []string{"n\n", "no\n", "\n", "maybe\n", "yess\n"} {
		c := testDescriptor()
		var out strings.Builder
		g := &TerminalGate{In: strings.NewReader(input), Out: &out}

		v, err := g.Decide(context.Background(), c)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v != Rejected {
			t.Errorf("input %q: expected rejection, got %s", input, v)
		}
	}
}

func TestTerminalGateRejectsOnEOF(t *testing.T) {
	c := testDescriptor()
	var out strings.Builder
	g := &TerminalGate{In: strings.NewReader(""), Out: &out}

	v, err := g.Decide(context.Background(), c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != Rejected {
		t.Errorf("EOF must fail closed, got %s", v)
	}
}

func TestTerminalGateRejectsOnCancellation(t *testing.T) {
	c := testDescriptor()
	var out strings.Builder
	// A reader that never produces input.
	g := &TerminalGate{In: blockingReader{}, Out: &out}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	v, err := g.Decide(ctx, c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != Rejected || c.Verdict() != Rejected {
		t.Errorf("cancellation must reject, got %s", v)
	}
}

func TestTerminalGateTrackerSkipsRepeatPrompt(t *testing.T) {
	tracker := NewTracker()
	d, _ := diffview.Compute("old\n", "new\n")

	first := NewChangeDescriptor("doc.docx", "replace_docx_text", "edit", d)
	var out strings.Builder
	g := &TerminalGate{In: strings.NewReader("y\n"), Out: &out, Tracker: tracker}
	if v, _ := g.Decide(context.Background(), first); v != Approved {
		t.Fatalf("expected approval, got %s", v)
	}

	// Same change again: no input available, but the tracker remembers.
	second := NewChangeDescriptor("doc.docx", "replace_docx_text", "edit", d)
	g2 := &TerminalGate{In: strings.NewReader(""), Out: &out, Tracker: tracker}
	if v, _ := g2.Decide(context.Background(), second); v != Approved {
		t.Errorf("expected remembered approval, got %s", v)
	}
}

func TestFingerprintSensitivity(t *testing.T) {
	a := Fingerprint("doc.docx", "replace_docx_text", "-old\n+new\n")
	b := Fingerprint("doc.docx", "replace_docx_text", "-old\n+newer\n")
	c := Fingerprint("other.docx", "replace_docx_text", "-old\n+new\n")

	if a == b {
		t.Error("different diffs must have different fingerprints")
	}
	if a == c {
		t.Error("different paths must have different fingerprints")
	}
	if a != Fingerprint("doc.docx", "replace_docx_text", "-old\n+new\n") {
		t.Error("identical changes must share a fingerprint")
	}
}

func TestTrackerClear(t *testing.T) {
	tr := NewTracker()
	tr.Approve("fp")
	if !tr.IsApproved("fp") {
		t.Fatal("expected approval to be recorded")
	}
	tr.Clear()
	if tr.IsApproved("fp") {
		t.Error("expected clear to forget approvals")
	}
}

func TestLineSourceKeepsLineAfterCancelledRead(t *testing.T) {
	pr, pw := io.Pipe()
	src := NewLineSource(pr)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.ReadLine(cancelled); err == nil {
		t.Fatal("expected context error from abandoned read")
	}

	go func() {
		pw.Write([]byte("hello\n"))
		pw.Close()
	}()

	line, err := src.ReadLine(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(line) != "hello" {
		t.Errorf("line typed after an abandoned read must reach the next reader, got %q", line)
	}
	if _, err := src.ReadLine(context.Background()); err != io.EOF {
		t.Errorf("expected io.EOF after the stream ends, got %v", err)
	}
}

func TestTerminalGateAbandonedPromptDoesNotSwallowNextLine(t *testing.T) {
	pr, pw := io.Pipe()
	lines := NewLineSource(pr)

	var out strings.Builder
	g := &TerminalGate{Lines: lines, Out: &out}

	// First prompt is abandoned before any input arrives.
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if v, _ := g.Decide(cancelled, testDescriptor()); v != Rejected {
		t.Fatalf("abandoned prompt must reject, got %s", v)
	}

	// The next typed line answers the next consumer, not a stale reader.
	go func() {
		pw.Write([]byte("y\n"))
		pw.Close()
	}()
	if v, _ := g.Decide(context.Background(), testDescriptor()); v != Approved {
		t.Errorf("expected the later line to answer the live prompt, got rejection")
	}
}

// blockingReader never produces input and never returns.
type blockingReader struct{}

func (blockingReader) Read(p []byte) (int, error) {
	select {}
}
