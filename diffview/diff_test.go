package diffview

import (
	"strings"
	"testing"
)

func TestComputeIdentical(t *testing.T) {
	d, err := Compute("same\ncontent\n", "same\ncontent\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Unified != "" {
		t.Errorf("expected empty diff, got %q", d.Unified)
	}
	if d.Summary != "no changes" {
		t.Errorf("unexpected summary %q", d.Summary)
	}
}

func TestComputeCreation(t *testing.T) {
	d, err := Compute("", "first line\nsecond line\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(d.Unified, "+first line") {
		t.Errorf("expected addition lines, got %q", d.Unified)
	}
	if !strings.HasPrefix(d.Summary, "created") {
		t.Errorf("unexpected summary %q", d.Summary)
	}
}

func TestComputeDeletion(t *testing.T) {
	d, err := Compute("only line\n", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(d.Unified, "-only line") {
		t.Errorf("expected removal lines, got %q", d.Unified)
	}
	if !strings.HasPrefix(d.Summary, "deleted") {
		t.Errorf("unexpected summary %q", d.Summary)
	}
}

func TestComputeModification(t *testing.T) {
	before := "alpha\nbeta\ngamma\n"
	after := "alpha\nBETA\ngamma\n"

	d, err := Compute(before, after)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(d.Unified, "-beta") || !strings.Contains(d.Unified, "+BETA") {
		t.Errorf("expected change hunk, got %q", d.Unified)
	}
	if d.Summary != "+1 -1 lines" {
		t.Errorf("unexpected summary %q", d.Summary)
	}
	// Context lines must carry through unchanged so the hunk is readable.
	if !strings.Contains(d.Unified, " alpha") || !strings.Contains(d.Unified, " gamma") {
		t.Errorf("expected context lines, got %q", d.Unified)
	}
}

func TestComputeCellSnapshotStyle(t *testing.T) {
	before := "Q1!B4 = 100\n"
	after := "Q1!B4 = 250\n"

	d, err := Compute(before, after)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(d.Unified, "-Q1!B4 = 100") || !strings.Contains(d.Unified, "+Q1!B4 = 250") {
		t.Errorf("cell change not visible in diff: %q", d.Unified)
	}
}

func TestRenderPanelContainsParts(t *testing.T) {
	d, err := Compute("old\n", "new\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	panel := RenderPanel("update_xlsx_cell", "budget.xlsx", "Set B4 to 250", d)
	for _, want := range []string{"Proposed Edit", "budget.xlsx", "update_xlsx_cell", "Set B4 to 250"} {
		if !strings.Contains(panel, want) {
			t.Errorf("panel missing %q", want)
		}
	}
}
