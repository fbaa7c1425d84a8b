package doctools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/docsage/docsage/agent"
	"github.com/docsage/docsage/llm"
)

func (t *Toolset) registerListTools(reg *agent.ToolRegistry) {
	reg.Register(agent.RegisteredTool{
		Definition: llm.ToolDefinition{
			Name:        "list_documents",
			Description: "List document files (PDF, DOCX, XLSX) in the workspace. Optionally filter with a glob pattern like 'reports/**/*.pdf'.",
			Parameters: objectSchema(map[string]interface{}{
				"pattern": stringProp("Optional glob pattern relative to the workspace root."),
			}),
		},
		Executor: func(ctx context.Context, raw json.RawMessage) (string, error) {
			args, err := agent.ParseToolArguments(raw)
			if err != nil {
				return "", err
			}
			pattern, _ := agent.GetStringArg(args, "pattern")

			docs, err := t.guard.ListDocuments(pattern)
			if err != nil {
				return "", err
			}
			if len(docs) == 0 {
				return "No documents found.", nil
			}
			var b strings.Builder
			fmt.Fprintf(&b, "%d document(s):\n", len(docs))
			for _, d := range docs {
				fmt.Fprintf(&b, "  %s (%d bytes)\n", d.Path, d.Size)
			}
			return b.String(), nil
		},
	})
}
