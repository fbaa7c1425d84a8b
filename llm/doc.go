// Package llm is a thin provider-agnostic client for chat completion with
// tool calling. It wraps gollm behind a small Provider interface so the
// agent loop can stream text deltas and extract tool-call requests without
// caring which vendor is on the wire.
package llm
