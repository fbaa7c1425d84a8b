package agent

import (
	"fmt"
	"strings"
)

// TruncationMode specifies how oversized tool output is cut down.
type TruncationMode string

const (
	TruncateHeadTail TruncationMode = "head_tail"
	TruncateTail     TruncationMode = "tail"
)

// Default character limits per tool. Extraction tools get generous limits;
// mutation tools return short confirmations and need little.
var DefaultToolCharLimits = map[string]int{
	"extract_pdf_text":           50000,
	"extract_docx_text":          50000,
	"read_sheet":                 40000,
	"get_formulas":               30000,
	"search_pdf_text":            20000,
	"search_docx_text":           20000,
	"search_sheet":               20000,
	"directed_search_document":   20000,
	"retrieve_document_segments": 40000,
	"analyze_data":               20000,
	"get_docx_structure":         20000,
	"list_documents":             10000,
}

// Default truncation modes per tool.
var DefaultTruncationModes = map[string]TruncationMode{
	"extract_pdf_text":           TruncateHeadTail,
	"extract_docx_text":          TruncateHeadTail,
	"read_sheet":                 TruncateHeadTail,
	"retrieve_document_segments": TruncateHeadTail,
	"search_pdf_text":            TruncateTail,
	"search_docx_text":           TruncateTail,
	"search_sheet":               TruncateTail,
	"directed_search_document":   TruncateTail,
	"list_documents":             TruncateTail,
}

// Default line limits per tool, applied after character truncation.
var DefaultToolLineLimits = map[string]int{
	"search_pdf_text":  200,
	"search_docx_text": 200,
	"search_sheet":     200,
	"list_documents":   500,
}

// TruncateOutput applies character-based truncation to output.
func TruncateOutput(output string, maxChars int, mode TruncationMode) string {
	if len(output) <= maxChars {
		return output
	}

	switch mode {
	case TruncateTail:
		removed := len(output) - maxChars
		return fmt.Sprintf("[WARNING: Tool output was truncated. First %d characters were removed.]\n\n",
			removed) +
			output[len(output)-maxChars:]
	default:
		half := maxChars / 2
		removed := len(output) - maxChars
		return output[:half] +
			fmt.Sprintf("\n\n[WARNING: Tool output was truncated. %d characters were removed from the middle. "+
				"Re-run the tool with more targeted parameters to see specific parts.]\n\n",
				removed) +
			output[len(output)-half:]
	}
}

// TruncateLines applies line-based truncation using a head/tail split.
func TruncateLines(output string, maxLines int) string {
	lines := strings.Split(output, "\n")
	if len(lines) <= maxLines {
		return output
	}

	headCount := maxLines / 2
	tailCount := maxLines - headCount
	omitted := len(lines) - headCount - tailCount

	return strings.Join(lines[:headCount], "\n") +
		fmt.Sprintf("\n[... %d lines omitted ...]\n", omitted) +
		strings.Join(lines[len(lines)-tailCount:], "\n")
}

// TruncateToolOutput applies character truncation first (the hard cap),
// then line truncation for readability.
func TruncateToolOutput(output string, toolName string, charLimits map[string]int, lineLimits map[string]int) string {
	maxChars, ok := charLimits[toolName]
	if !ok {
		maxChars, ok = DefaultToolCharLimits[toolName]
		if !ok {
			maxChars = 30000
		}
	}

	mode, ok := DefaultTruncationModes[toolName]
	if !ok {
		mode = TruncateHeadTail
	}

	result := TruncateOutput(output, maxChars, mode)

	maxLines := 0
	if lineLimits != nil {
		if ml, ok := lineLimits[toolName]; ok {
			maxLines = ml
		}
	}
	if maxLines == 0 {
		if ml, ok := DefaultToolLineLimits[toolName]; ok {
			maxLines = ml
		}
	}
	if maxLines > 0 {
		result = TruncateLines(result, maxLines)
	}

	return result
}
