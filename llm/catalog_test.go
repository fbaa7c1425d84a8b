package llm

import "testing"

func TestProviderForModel(t *testing.T) {
	cases := []struct {
		model    string
		expected string
	}{
		{"gpt-4o", "openai"},
		{"gpt-4o-mini", "openai"},
		{"o1-preview", "openai"},
		{"o3-mini", "openai"},
		{"claude-sonnet-4-5", "anthropic"},
		{"claude-opus-4-1", "anthropic"},
		{"llama-3", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := ProviderForModel(tc.model); got != tc.expected {
			t.Errorf("ProviderForModel(%q) = %q, expected %q", tc.model, got, tc.expected)
		}
	}
}

func TestDefaultModel(t *testing.T) {
	if got := DefaultModel("anthropic"); got != "claude-sonnet-4-5" {
		t.Errorf("unexpected anthropic default %q", got)
	}
	if got := DefaultModel("openai"); got != "gpt-4o" {
		t.Errorf("unexpected openai default %q", got)
	}
}

func TestContextWindow(t *testing.T) {
	if ContextWindow("claude-sonnet-4-5") != 200000 {
		t.Error("expected 200k window for claude models")
	}
	if ContextWindow("gpt-4o") != 128000 {
		t.Error("expected 128k window for gpt-4o")
	}
	if ContextWindow("something-else") != 128000 {
		t.Error("expected conservative default window")
	}
}
