package agent

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/docsage/docsage/llm"
	"github.com/docsage/docsage/store"
)

// scriptedProvider returns canned responses in order, then repeats the
// last one.
type scriptedProvider struct {
	responses []*llm.Response
	calls     int
}

func (p *scriptedProvider) Name() string { return "openai" }

func (p *scriptedProvider) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	return p.next(), nil
}

func (p *scriptedProvider) Stream(ctx context.Context, req llm.Request) (<-chan llm.StreamEvent, error) {
	resp := p.next()
	ch := make(chan llm.StreamEvent, 4)
	ch <- llm.StreamEvent{Type: llm.StreamStart}
	if text := resp.Text(); text != "" {
		ch <- llm.StreamEvent{Type: llm.TextDelta, Delta: text}
	}
	ch <- llm.StreamEvent{Type: llm.StreamFinish, Response: resp}
	close(ch)
	return ch, nil
}

func (p *scriptedProvider) next() *llm.Response {
	idx := p.calls
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}
	p.calls++
	return p.responses[idx]
}

func textOnlyResponse(text string) *llm.Response {
	return &llm.Response{
		ID:           "resp_text",
		Provider:     "openai",
		Message:      llm.AssistantMessage(text),
		FinishReason: llm.FinishReason{Reason: "stop"},
	}
}

func toolCallResponse(name string, args string) *llm.Response {
	msg := llm.AssistantMessage("")
	msg.Content = append(msg.Content, llm.ToolCallPart("call_1", name, json.RawMessage(args)))
	return &llm.Response{
		ID:           "resp_tool",
		Provider:     "openai",
		Message:      msg,
		FinishReason: llm.FinishReason{Reason: "tool_calls"},
	}
}

func newTestClient(responses ...*llm.Response) *llm.Client {
	c := llm.NewClient()
	c.RegisterProvider(&scriptedProvider{responses: responses})
	return c
}

func echoRegistry() *ToolRegistry {
	reg := NewToolRegistry()
	reg.Register(RegisteredTool{
		Definition: llm.ToolDefinition{
			Name:        "echo",
			Description: "echo the input",
			Parameters:  map[string]interface{}{"type": "object"},
		},
		Executor: func(ctx context.Context, raw json.RawMessage) (string, error) {
			return "echo: " + string(raw), nil
		},
	})
	return reg
}

func TestSubmitToolRoundOrdering(t *testing.T) {
	client := newTestClient(
		toolCallResponse("echo", `{"text":"hi"}`),
		textOnlyResponse("done"),
	)

	s, err := NewSession(context.Background(), client, echoRegistry(), nil, "", nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer s.Close()

	if err := s.Submit(context.Background(), "please echo hi"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	history := s.History()
	kinds := make([]TurnKind, len(history))
	for i, turn := range history {
		kinds[i] = turn.Kind
	}
	expected := []TurnKind{TurnUser, TurnAssistant, TurnToolResults, TurnAssistant}
	if len(kinds) != len(expected) {
		t.Fatalf("expected %d turns, got %d (%v)", len(expected), len(kinds), kinds)
	}
	for i := range expected {
		if kinds[i] != expected[i] {
			t.Errorf("turn %d: expected %s, got %s", i, expected[i], kinds[i])
		}
	}

	results := history[2].ToolResults.Results
	if len(results) != 1 || results[0].IsError {
		t.Fatalf("unexpected tool results: %+v", results)
	}
	if results[0].ToolCallID != "call_1" {
		t.Errorf("result not paired with its call: %q", results[0].ToolCallID)
	}
	if history[3].TextContent() != "done" {
		t.Errorf("unexpected final answer %q", history[3].TextContent())
	}
}

func TestSubmitUnknownToolReturnsErrorResult(t *testing.T) {
	client := newTestClient(
		toolCallResponse("no_such_tool", `{}`),
		textOnlyResponse("ok"),
	)

	s, err := NewSession(context.Background(), client, NewToolRegistry(), nil, "", nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer s.Close()

	if err := s.Submit(context.Background(), "try it"); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	history := s.History()
	if len(history) < 3 {
		t.Fatalf("expected tool results turn, got %d turns", len(history))
	}
	results := history[2].ToolResults.Results
	if len(results) != 1 || !results[0].IsError {
		t.Errorf("unknown tool must yield an error result: %+v", results)
	}
}

func TestSubmitPersistsAndResumes(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()

	client := newTestClient(textOnlyResponse("hello there"))
	s, err := NewSession(context.Background(), client, NewToolRegistry(), st, "sess-42", nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := s.Submit(context.Background(), "hi"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	s.Close()

	resumed, err := NewSession(context.Background(), newTestClient(textOnlyResponse("again")), NewToolRegistry(), st, "sess-42", nil)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	defer resumed.Close()

	history := resumed.History()
	if len(history) != 2 {
		t.Fatalf("expected 2 resumed turns, got %d", len(history))
	}
	if history[0].Kind != TurnUser || history[0].TextContent() != "hi" {
		t.Errorf("unexpected first resumed turn: %+v", history[0])
	}
	if history[1].Kind != TurnAssistant || history[1].TextContent() != "hello there" {
		t.Errorf("unexpected second resumed turn: %+v", history[1])
	}
}

// stallingProvider blocks until the context is cancelled.
type stallingProvider struct{}

func (stallingProvider) Name() string { return "openai" }

func (stallingProvider) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	<-ctx.Done()
	return nil, &llm.AbortError{ClientError: llm.ClientError{Message: "cancelled", Cause: ctx.Err()}}
}

func (stallingProvider) Stream(ctx context.Context, req llm.Request) (<-chan llm.StreamEvent, error) {
	ch := make(chan llm.StreamEvent)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func TestSubmitCancellation(t *testing.T) {
	client := llm.NewClient()
	client.RegisterProvider(stallingProvider{})

	s, err := NewSession(context.Background(), client, NewToolRegistry(), nil, "", nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err = s.Submit(ctx, "long task")
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if ctx.Err() == nil {
		t.Fatal("test setup: context should be cancelled")
	}
	if s.State() == StateProcessing {
		t.Error("session must leave processing state after cancellation")
	}

	cancelled := 0
	for _, turn := range s.History() {
		if turn.Kind == TurnSystem {
			cancelled++
		}
	}
	if cancelled != 1 {
		t.Errorf("expected exactly one cancelled turn, got %d", cancelled)
	}
}

// flakyProvider fails the first n Stream calls with a retryable server
// error, then behaves like the wrapped provider.
type flakyProvider struct {
	inner    *scriptedProvider
	failures int
	calls    int
}

func (p *flakyProvider) Name() string { return "openai" }

func (p *flakyProvider) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	return p.inner.Complete(ctx, req)
}

func (p *flakyProvider) Stream(ctx context.Context, req llm.Request) (<-chan llm.StreamEvent, error) {
	p.calls++
	if p.failures > 0 {
		p.failures--
		return nil, &llm.ServerError{ProviderError: llm.ProviderError{
			ClientError: llm.ClientError{Message: "upstream hiccup"}, Retryable: true,
		}}
	}
	return p.inner.Stream(ctx, req)
}

func fastRetryPolicy() llm.RetryPolicy {
	return llm.RetryPolicy{MaxRetries: 2, BaseDelay: 0.001, BackoffMultiplier: 1, MaxDelay: 1}
}

func TestSubmitRetriesRetryableStreamFailure(t *testing.T) {
	provider := &flakyProvider{
		inner:    &scriptedProvider{responses: []*llm.Response{textOnlyResponse("made it")}},
		failures: 1,
	}
	client := llm.NewClient()
	client.RegisterProvider(provider)

	s, err := NewSession(context.Background(), client, NewToolRegistry(), nil, "", nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	s.retryPolicy = fastRetryPolicy()

	if err := s.Submit(context.Background(), "hi"); err != nil {
		t.Fatalf("Submit should survive one retryable failure: %v", err)
	}
	if provider.calls != 2 {
		t.Errorf("expected 2 stream attempts, got %d", provider.calls)
	}

	history := s.History()
	last := history[len(history)-1]
	if last.TextContent() != "made it" {
		t.Errorf("unexpected final answer %q", last.TextContent())
	}

	s.Close()
	warned := false
	for ev := range s.Events() {
		if ev.Kind == EventWarning {
			warned = true
		}
	}
	if !warned {
		t.Error("expected a retry warning event")
	}
}

// partialStreamProvider emits some text and then fails mid-stream.
type partialStreamProvider struct {
	calls int
}

func (p *partialStreamProvider) Name() string { return "openai" }

func (p *partialStreamProvider) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	return nil, &llm.ServerError{ProviderError: llm.ProviderError{
		ClientError: llm.ClientError{Message: "broken"}, Retryable: true,
	}}
}

func (p *partialStreamProvider) Stream(ctx context.Context, req llm.Request) (<-chan llm.StreamEvent, error) {
	p.calls++
	ch := make(chan llm.StreamEvent, 4)
	ch <- llm.StreamEvent{Type: llm.StreamStart}
	ch <- llm.StreamEvent{Type: llm.TextDelta, Delta: "partial answer"}
	ch <- llm.StreamEvent{Type: llm.StreamError, Error: &llm.ServerError{ProviderError: llm.ProviderError{
		ClientError: llm.ClientError{Message: "connection dropped"}, Retryable: true,
	}}}
	close(ch)
	return ch, nil
}

func TestSubmitDoesNotRetryAfterPartialOutput(t *testing.T) {
	provider := &partialStreamProvider{}
	client := llm.NewClient()
	client.RegisterProvider(provider)

	s, err := NewSession(context.Background(), client, NewToolRegistry(), nil, "", nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	defer s.Close()
	s.retryPolicy = fastRetryPolicy()

	if err := s.Submit(context.Background(), "hi"); err == nil {
		t.Fatal("expected the mid-stream failure to surface")
	}
	if provider.calls != 1 {
		t.Errorf("text already reached the user; expected 1 attempt, got %d", provider.calls)
	}
}

func TestSubmitWarnsNearContextWindow(t *testing.T) {
	resp := textOnlyResponse("short answer")
	resp.Usage = llm.Usage{InputTokens: 110000, OutputTokens: 10000, TotalTokens: 120000}

	client := newTestClient(resp)
	s, err := NewSession(context.Background(), client, NewToolRegistry(), nil, "", nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	if err := s.Submit(context.Background(), "hi"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	s.Close()

	warned := false
	for ev := range s.Events() {
		if ev.Kind != EventWarning {
			continue
		}
		if msg, ok := ev.Data["message"].(string); ok && strings.Contains(msg, "context tokens") {
			warned = true
		}
	}
	if !warned {
		t.Error("expected a context window warning")
	}
}

func TestRoundMutatesDetection(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register(RegisteredTool{
		Definition: llm.ToolDefinition{Name: "read_tool"},
		Executor:   func(ctx context.Context, raw json.RawMessage) (string, error) { return "", nil },
	})
	reg.Register(RegisteredTool{
		Definition: llm.ToolDefinition{Name: "write_tool"},
		Mutating:   true,
		Executor:   func(ctx context.Context, raw json.RawMessage) (string, error) { return "", nil },
	})

	s := &Session{registry: reg}

	readOnly := []llm.ToolCall{{Name: "read_tool"}, {Name: "read_tool"}}
	if s.roundMutates(readOnly) {
		t.Error("read-only round must be eligible for parallel execution")
	}

	mixed := []llm.ToolCall{{Name: "read_tool"}, {Name: "write_tool"}}
	if !s.roundMutates(mixed) {
		t.Error("a mutating call must force sequential execution")
	}

	unknown := []llm.ToolCall{{Name: "ghost"}}
	if !s.roundMutates(unknown) {
		t.Error("unknown tools must be treated as mutating")
	}
}

func TestSubmitWhileClosed(t *testing.T) {
	client := newTestClient(textOnlyResponse("x"))
	s, err := NewSession(context.Background(), client, NewToolRegistry(), nil, "", nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	s.Close()

	if err := s.Submit(context.Background(), "hi"); err == nil {
		t.Error("expected error submitting to a closed session")
	}
}
