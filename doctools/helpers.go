package doctools

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/docsage/docsage/agent"
	"github.com/docsage/docsage/approval"
	"github.com/docsage/docsage/mutate"
)

// resolvePathArg handles the common single-argument case: parse, pull the
// "path" field, and resolve it against the workspace.
func (t *Toolset) resolvePathArg(raw json.RawMessage) (string, error) {
	args, err := agent.ParseToolArguments(raw)
	if err != nil {
		return "", err
	}
	path, err := agent.RequireStringArg(args, "path")
	if err != nil {
		return "", err
	}
	return t.guard.Resolve(path)
}

func stringSliceArg(args map[string]interface{}, key string) []string {
	v, ok := args[key]
	if !ok {
		return nil
	}
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func intSliceArg(args map[string]interface{}, key string) []int {
	v, ok := args[key]
	if !ok {
		return nil
	}
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		if f, ok := item.(float64); ok {
			out = append(out, int(f))
		}
	}
	return out
}

// describeMutation turns a pipeline result into the message the model
// sees: a rejection is reported as the user's decision, not an error, so
// the model does not retry the same change.
func describeMutation(result mutate.Result, success string) string {
	switch {
	case result.Verdict == approval.Rejected:
		return fmt.Sprintf("The user rejected the proposed change to %s. The file was not modified. Do not retry unless the user asks for something different.", result.Path)
	case !result.Committed:
		return fmt.Sprintf("No changes needed for %s; the content is already as requested.", result.Path)
	default:
		return success
	}
}

// fileInfo returns a short size description for an existing file, "" when
// the path does not exist.
func fileInfo(abs string) (string, error) {
	fi, err := os.Stat(abs)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if fi.IsDir() {
		return "directory", nil
	}
	return fmt.Sprintf("%d bytes", fi.Size()), nil
}
