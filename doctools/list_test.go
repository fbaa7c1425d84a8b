package doctools

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsage/docsage/approval"
	"github.com/docsage/docsage/mutate"
)

func TestListDocuments(t *testing.T) {
	reg, root := newTestToolset(t, approval.AutoGate{Approve: true})
	writeWorkbook(t, root)
	writeDoc(t, root, []string{"hello"})
	require.NoError(t, os.MkdirAll(filepath.Join(root, "reports"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "reports", "summary.pdf"), []byte("%PDF-1.4"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "ignore.txt"), []byte("not a document"), 0o644))

	out, err := runTool(t, reg, "list_documents", `{}`)
	require.NoError(t, err)
	assert.Contains(t, out, "3 document(s)")
	assert.Contains(t, out, "budget.xlsx")
	assert.Contains(t, out, "notes.docx")
	assert.Contains(t, out, filepath.Join("reports", "summary.pdf"))
	assert.NotContains(t, out, "ignore.txt")
}

func TestListDocumentsPattern(t *testing.T) {
	reg, root := newTestToolset(t, approval.AutoGate{Approve: true})
	writeWorkbook(t, root)
	writeDoc(t, root, []string{"hello"})

	out, err := runTool(t, reg, "list_documents", `{"pattern":"*.xlsx"}`)
	require.NoError(t, err)
	assert.Contains(t, out, "budget.xlsx")
	assert.NotContains(t, out, "notes.docx")
}

func TestListDocumentsEmpty(t *testing.T) {
	reg, _ := newTestToolset(t, approval.AutoGate{Approve: true})

	out, err := runTool(t, reg, "list_documents", `{}`)
	require.NoError(t, err)
	assert.Equal(t, "No documents found.", out)
}

func TestDescribeMutation(t *testing.T) {
	rejected := mutate.Result{Verdict: approval.Rejected, Path: "a.docx"}
	msg := describeMutation(rejected, "done")
	assert.Contains(t, msg, "The user rejected the proposed change to a.docx")
	assert.Contains(t, msg, "Do not retry")

	unchanged := mutate.Result{Verdict: approval.Approved, Path: "a.docx", Committed: false}
	assert.Contains(t, describeMutation(unchanged, "done"), "No changes needed")

	committed := mutate.Result{Verdict: approval.Approved, Path: "a.docx", Committed: true}
	assert.Equal(t, "done", describeMutation(committed, "done"))
}

func TestToolsetRegistersAllTools(t *testing.T) {
	reg, _ := newTestToolset(t, approval.AutoGate{Approve: true})

	expected := []string{
		"list_documents",
		"extract_pdf_text", "get_pdf_metadata", "search_pdf_text", "merge_pdfs", "split_pdf",
		"extract_docx_text", "get_docx_structure", "search_docx_text",
		"create_docx", "replace_docx_text", "insert_docx_text", "delete_docx_text",
		"get_sheet_names", "read_sheet", "get_formulas", "analyze_data",
		"search_sheet", "recalculate_formulas",
		"update_xlsx_cell", "add_xlsx_formula", "update_xlsx_range",
		"directed_search_document", "retrieve_document_segments",
	}
	for _, name := range expected {
		assert.NotNil(t, reg.Get(name), "tool %s must be registered", name)
	}

	// Editing tools must be flagged mutating so they never run in parallel.
	for _, name := range []string{"create_docx", "replace_docx_text", "insert_docx_text",
		"delete_docx_text", "update_xlsx_cell", "add_xlsx_formula", "update_xlsx_range",
		"merge_pdfs", "split_pdf"} {
		require.NotNil(t, reg.Get(name))
		assert.True(t, reg.Get(name).Mutating, "%s must be mutating", name)
	}
	for _, name := range []string{"list_documents", "read_sheet", "extract_docx_text",
		"search_sheet", "recalculate_formulas"} {
		require.NotNil(t, reg.Get(name))
		assert.False(t, reg.Get(name).Mutating, "%s must not be mutating", name)
	}
}
