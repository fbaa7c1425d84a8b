package doctools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsage/docsage/approval"
)

func TestDirectedSearchDocx(t *testing.T) {
	reg, root := newTestToolset(t, approval.AutoGate{Approve: true})
	writeDoc(t, root, []string{"Intro", "The warranty covers two years."})

	out, err := runTool(t, reg, "directed_search_document",
		`{"path":"notes.docx","query":"warranty"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "1 ranked hit(s)")
	assert.Contains(t, out, "paragraph 1")
	assert.Contains(t, out, "warranty covers two years")
}

func TestDirectedSearchRanking(t *testing.T) {
	reg, root := newTestToolset(t, approval.AutoGate{Approve: true})
	writeDoc(t, root, []string{
		"Renewal terms are listed in the appendix.",
		"The renewal fee is due when the renewal notice arrives.",
		"Unrelated closing remarks.",
	})

	out, err := runTool(t, reg, "directed_search_document",
		`{"path":"notes.docx","query":"renewal fee"}`)
	require.NoError(t, err)
	// Paragraph 1 contains the exact phrase and must outrank paragraph 0.
	assert.Contains(t, out, "1. paragraph 1")
	assert.Contains(t, out, "2. paragraph 0")
	assert.NotContains(t, out, "paragraph 2")
}

func TestDirectedSearchTopK(t *testing.T) {
	reg, root := newTestToolset(t, approval.AutoGate{Approve: true})
	writeDoc(t, root, []string{"fee one", "fee two", "fee three"})

	out, err := runTool(t, reg, "directed_search_document",
		`{"path":"notes.docx","query":"fee","top_k":2}`)
	require.NoError(t, err)
	assert.Contains(t, out, "2 ranked hit(s)")
}

func TestDirectedSearchXlsx(t *testing.T) {
	reg, root := newTestToolset(t, approval.AutoGate{Approve: true})
	writeWorkbook(t, root)

	out, err := runTool(t, reg, "directed_search_document",
		`{"path":"budget.xlsx","query":"desk"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "Budget row 3")
	assert.Contains(t, out, "Desk")
}

func TestDirectedSearchUnsupportedExtension(t *testing.T) {
	reg, _ := newTestToolset(t, approval.AutoGate{Approve: true})

	_, err := runTool(t, reg, "directed_search_document",
		`{"path":"readme.txt","query":"x"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported document type")
}

func TestRetrieveDocxSegments(t *testing.T) {
	reg, root := newTestToolset(t, approval.AutoGate{Approve: true})
	writeDoc(t, root, []string{"zero", "one", "two", "three"})

	out, err := runTool(t, reg, "retrieve_document_segments",
		`{"path":"notes.docx","segments":[1,3]}`)
	require.NoError(t, err)
	assert.Contains(t, out, "one")
	assert.Contains(t, out, "three")
	assert.NotContains(t, out, "two")
}

func TestRetrieveSheetSegments(t *testing.T) {
	reg, root := newTestToolset(t, approval.AutoGate{Approve: true})
	writeWorkbook(t, root)

	out, err := runTool(t, reg, "retrieve_document_segments",
		`{"path":"budget.xlsx","segments":[1,3],"sheet":"Budget"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "Item")
	assert.Contains(t, out, "Desk")
	assert.NotContains(t, out, "Printer")
}
