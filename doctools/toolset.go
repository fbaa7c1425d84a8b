// Package doctools registers the document analysis and editing tools.
// Read tools resolve paths through the workspace guard and format results
// as plain text for the model; editing tools go through the mutation
// pipeline so every change is diffed and gated before it touches disk.
package doctools

import (
	"github.com/docsage/docsage/agent"
	"github.com/docsage/docsage/mutate"
	"github.com/docsage/docsage/workspace"
)

// Toolset binds the document tools to a workspace and mutation pipeline.
type Toolset struct {
	guard    *workspace.Guard
	pipeline *mutate.Pipeline
}

// NewToolset creates a toolset rooted at the guard's workspace.
func NewToolset(guard *workspace.Guard, pipeline *mutate.Pipeline) *Toolset {
	return &Toolset{guard: guard, pipeline: pipeline}
}

// Register adds every document tool to the registry.
func (t *Toolset) Register(reg *agent.ToolRegistry) {
	t.registerListTools(reg)
	t.registerPDFTools(reg)
	t.registerDocxTools(reg)
	t.registerXlsxTools(reg)
	t.registerSearchTools(reg)
}

// objectSchema builds a JSON schema object for tool parameters.
func objectSchema(props map[string]interface{}, required ...string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func intProp(description string) map[string]interface{} {
	return map[string]interface{}{"type": "integer", "description": description}
}

func stringArrayProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"items":       map[string]interface{}{"type": "string"},
		"description": description,
	}
}

func intArrayProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"items":       map[string]interface{}{"type": "integer"},
		"description": description,
	}
}
