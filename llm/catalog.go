package llm

import "strings"

// ProviderForModel infers the provider from a model identifier prefix.
// Returns "" when the model is unknown.
func ProviderForModel(model string) string {
	switch {
	case model == "":
		return ""
	case strings.HasPrefix(model, "gpt-"), strings.HasPrefix(model, "o1"),
		strings.HasPrefix(model, "o3"), strings.HasPrefix(model, "o4"):
		return "openai"
	case strings.HasPrefix(model, "claude-"):
		return "anthropic"
	default:
		return ""
	}
}

// DefaultModel returns the default model for a provider.
func DefaultModel(provider string) string {
	switch provider {
	case "anthropic":
		return "claude-sonnet-4-5"
	default:
		return "gpt-4o"
	}
}

// ContextWindow returns an approximate context window size in tokens for a
// model, used for usage warnings only.
func ContextWindow(model string) int {
	switch {
	case strings.HasPrefix(model, "claude-"):
		return 200000
	case strings.HasPrefix(model, "gpt-4o"):
		return 128000
	case strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"):
		return 200000
	default:
		return 128000
	}
}
