package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/docsage/docsage/llm"
	"github.com/docsage/docsage/store"
)

// ErrStorePersist marks a failure to append turns to the durable log.
// Callers should treat it as fatal: the log can no longer be trusted to
// match the conversation.
var ErrStorePersist = errors.New("session store append failed")

// SessionState represents the current lifecycle state of a session.
type SessionState string

const (
	StateIdle       SessionState = "idle"
	StateProcessing SessionState = "processing"
	StateClosed     SessionState = "closed"
)

// SessionConfig holds configuration for a session.
type SessionConfig struct {
	Model                 string         `json:"model"`
	MaxToolRoundsPerInput int            `json:"max_tool_rounds_per_input"`
	MaxRetries            int            `json:"max_retries,omitempty"`
	ReasoningEffort       string         `json:"reasoning_effort,omitempty"`
	Temperature           *float64       `json:"temperature,omitempty"`
	ToolOutputLimits      map[string]int `json:"tool_output_limits,omitempty"`
	ToolLineLimits        map[string]int `json:"tool_line_limits,omitempty"`
	EnableLoopDetection   bool           `json:"enable_loop_detection"`
	LoopDetectionWindow   int            `json:"loop_detection_window"`
	UserInstructions      string         `json:"user_instructions,omitempty"`
}

// DefaultSessionConfig returns the default configuration.
func DefaultSessionConfig() SessionConfig {
	temp := 0.7
	return SessionConfig{
		MaxToolRoundsPerInput: 50,
		Temperature:           &temp,
		EnableLoopDetection:   true,
		LoopDetectionWindow:   10,
	}
}

// Session is the central orchestrator for the conversation loop. One
// Submit runs at a time; Events delivers progress to the host UI.
type Session struct {
	id            string
	registry      *ToolRegistry
	client        *llm.Client
	store         *store.Store
	emitter       *EventEmitter
	history       []Turn
	config        SessionConfig
	retryPolicy   llm.RetryPolicy
	state         SessionState
	abortSignaled bool
	mu            sync.Mutex
}

// NewSession creates a session. A non-empty sessionID resumes prior
// history from the store; an empty one starts fresh under a new id.
func NewSession(ctx context.Context, client *llm.Client, registry *ToolRegistry, st *store.Store, sessionID string, config *SessionConfig) (*Session, error) {
	cfg := DefaultSessionConfig()
	if config != nil {
		cfg = *config
	}
	if sessionID == "" {
		sessionID = ulid.Make().String()
	}

	rp := llm.DefaultRetryPolicy()
	if cfg.MaxRetries > 0 {
		rp.MaxRetries = cfg.MaxRetries
	}

	s := &Session{
		id:          sessionID,
		registry:    registry,
		client:      client,
		store:       st,
		emitter:     NewEventEmitter(sessionID, 256),
		config:      cfg,
		retryPolicy: rp,
		state:       StateIdle,
	}

	if st != nil {
		records, err := st.History(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		history, err := decodeTurns(records)
		if err != nil {
			return nil, fmt.Errorf("session %s: %w", sessionID, err)
		}
		s.history = history
		if err := st.EnsureSession(ctx, sessionID); err != nil {
			return nil, err
		}
	}

	s.emitter.Emit(EventSessionStart, map[string]interface{}{
		"resumed_turns": len(s.history),
	})
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// History returns a copy of the conversation history.
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := make([]Turn, len(s.history))
	copy(h, s.history)
	return h
}

// Events returns the event channel for the host application.
func (s *Session) Events() <-chan SessionEvent {
	return s.emitter.Events()
}

// Abort signals the session to stop after the current step.
func (s *Session) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abortSignaled = true
}

// Close terminates the session and closes the event channel.
func (s *Session) Close() {
	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
	s.emitter.Emit(EventSessionEnd, map[string]interface{}{
		"state": string(StateClosed),
	})
	s.emitter.Close()
}

// Submit processes one user input through the loop: model call, tool
// execution, repeat until the model answers without tool calls. It
// returns once the final answer is recorded or the context is cancelled.
func (s *Session) Submit(ctx context.Context, userInput string) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return fmt.Errorf("session is closed")
	}
	if s.state == StateProcessing {
		s.mu.Unlock()
		return fmt.Errorf("session is already processing an input")
	}
	s.state = StateProcessing
	s.abortSignaled = false
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.state == StateProcessing {
			s.state = StateIdle
		}
		s.mu.Unlock()
	}()

	return s.processInput(ctx, userInput)
}

func (s *Session) processInput(ctx context.Context, userInput string) error {
	if err := s.appendTurns(NewUserTurn(userInput)); err != nil {
		return err
	}
	s.emitter.Emit(EventUserInput, map[string]interface{}{
		"content": userInput,
	})

	roundCount := 0

	for {
		s.mu.Lock()
		maxRounds := s.config.MaxToolRoundsPerInput
		aborted := s.abortSignaled
		s.mu.Unlock()

		if maxRounds > 0 && roundCount >= maxRounds {
			s.emitter.Emit(EventRoundLimit, map[string]interface{}{
				"round": roundCount,
			})
			break
		}
		if aborted {
			break
		}
		select {
		case <-ctx.Done():
			return s.recordCancellation(ctx)
		default:
		}

		response, err := s.callModel(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return s.recordCancellation(ctx)
			}
			s.emitter.Emit(EventError, map[string]interface{}{
				"error": err.Error(),
			})
			return err
		}

		toolCalls := response.ToolCalls()
		if err := s.appendTurns(NewAssistantTurn(
			response.Text(),
			toolCalls,
			response.Reasoning(),
			response.Usage,
			response.ID,
		)); err != nil {
			return err
		}
		s.emitter.Emit(EventAssistantTextEnd, map[string]interface{}{
			"text":      response.Text(),
			"reasoning": response.Reasoning(),
		})

		if len(toolCalls) == 0 {
			break
		}

		roundCount++
		results := s.executeToolCalls(ctx, toolCalls)
		if err := s.appendTurns(NewToolResultsTurn(results)); err != nil {
			return err
		}

		s.mu.Lock()
		enableLoop := s.config.EnableLoopDetection
		loopWindow := s.config.LoopDetectionWindow
		historyCopy := make([]Turn, len(s.history))
		copy(historyCopy, s.history)
		s.mu.Unlock()

		if enableLoop && DetectLoop(historyCopy, loopWindow) {
			warning := fmt.Sprintf("Loop detected: the last %d tool calls follow a repeating pattern. Try a different approach.", loopWindow)
			if err := s.appendTurns(NewSystemTurn(warning)); err != nil {
				return err
			}
			s.emitter.Emit(EventLoopDetection, map[string]interface{}{
				"message": warning,
			})
		}
	}

	return nil
}

// recordCancellation appends exactly one cancelled turn and surfaces the
// context error.
func (s *Session) recordCancellation(ctx context.Context) error {
	if err := s.appendTurns(NewSystemTurn("Turn cancelled by user.")); err != nil {
		return err
	}
	s.emitter.Emit(EventError, map[string]interface{}{
		"error": "cancelled",
	})
	return ctx.Err()
}

// callModel streams one model response, forwarding deltas as events, and
// returns the final response collected from the stream. Retryable provider
// failures are retried with backoff, but only while nothing has been shown
// to the user yet; once deltas are on screen a failure surfaces directly.
func (s *Session) callModel(ctx context.Context) (*llm.Response, error) {
	s.mu.Lock()
	systemPrompt := BuildSystemPrompt(s.registry, s.config.UserInstructions)
	model := s.config.Model
	effort := s.config.ReasoningEffort
	temp := s.config.Temperature
	s.mu.Unlock()

	messages := ConvertHistoryToMessages(s.History())
	request := llm.Request{
		Model:           model,
		Messages:        append([]llm.Message{llm.SystemMessage(systemPrompt)}, messages...),
		ToolDefs:        s.registry.Definitions(),
		ToolChoice:      &llm.ToolChoice{Mode: "auto"},
		Temperature:     temp,
		ReasoningEffort: effort,
	}

	s.emitter.Emit(EventAssistantTextStart, nil)

	forwarded := false
	policy := s.retryPolicy
	policy.RetryIf = func(err error) bool {
		return !forwarded && ctx.Err() == nil && llm.IsRetryable(err)
	}
	policy.OnRetry = func(err error, attempt int, delay time.Duration) {
		s.emitter.Emit(EventWarning, map[string]interface{}{
			"message": fmt.Sprintf("provider error: %v; retry %d in %s", err, attempt, delay.Round(time.Millisecond)),
		})
	}

	response, err := llm.Retry(ctx, policy, func(ctx context.Context) (*llm.Response, error) {
		return s.streamOnce(ctx, request, &forwarded)
	})
	if err != nil {
		return nil, err
	}

	// The reported usage covers the whole conversation so far; warn when
	// it closes in on the model's window.
	if window := llm.ContextWindow(model); window > 0 && response.Usage.TotalTokens*10 >= window*8 {
		s.emitter.Emit(EventWarning, map[string]interface{}{
			"message": fmt.Sprintf("conversation is using %d of roughly %d context tokens; clear starts a fresh session", response.Usage.TotalTokens, window),
		})
	}
	return response, nil
}

// streamOnce runs a single streaming attempt. It flips forwarded as soon
// as any delta is emitted, which disarms retries for this call.
func (s *Session) streamOnce(ctx context.Context, request llm.Request, forwarded *bool) (*llm.Response, error) {
	events, err := s.client.Stream(ctx, request)
	if err != nil {
		return nil, err
	}

	var response *llm.Response
	for ev := range events {
		switch ev.Type {
		case llm.TextDelta:
			*forwarded = true
			s.emitter.Emit(EventAssistantTextDelta, map[string]interface{}{
				"delta": ev.Delta,
			})
		case llm.ReasoningDelta:
			*forwarded = true
			s.emitter.Emit(EventReasoningDelta, map[string]interface{}{
				"delta": ev.Delta,
			})
		case llm.StreamFinish:
			response = ev.Response
		case llm.StreamError:
			return nil, ev.Error
		}
	}
	if response == nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("stream ended without a final response")
	}
	return response, nil
}

// executeToolCalls dispatches a round of tool calls. Read-only calls may
// run concurrently; as soon as a round contains a mutating tool the whole
// round runs sequentially so approval prompts never interleave.
func (s *Session) executeToolCalls(ctx context.Context, toolCalls []llm.ToolCall) []llm.ToolResult {
	if len(toolCalls) > 1 && !s.roundMutates(toolCalls) {
		return s.executeParallel(ctx, toolCalls)
	}
	results := make([]llm.ToolResult, len(toolCalls))
	for i, tc := range toolCalls {
		results[i] = s.executeSingleTool(ctx, tc)
	}
	return results
}

func (s *Session) roundMutates(toolCalls []llm.ToolCall) bool {
	for _, tc := range toolCalls {
		if t := s.registry.Get(tc.Name); t == nil || t.Mutating {
			return true
		}
	}
	return false
}

func (s *Session) executeParallel(ctx context.Context, toolCalls []llm.ToolCall) []llm.ToolResult {
	results := make([]llm.ToolResult, len(toolCalls))
	var wg sync.WaitGroup
	for i, tc := range toolCalls {
		wg.Add(1)
		go func(idx int, call llm.ToolCall) {
			defer wg.Done()
			results[idx] = s.executeSingleTool(ctx, call)
		}(i, tc)
	}
	wg.Wait()
	return results
}

// executeSingleTool handles lookup, execution, truncation, and events for
// one tool call. Failures become error results, never loop failures.
func (s *Session) executeSingleTool(ctx context.Context, toolCall llm.ToolCall) llm.ToolResult {
	s.emitter.Emit(EventToolCallStart, map[string]interface{}{
		"tool_name": toolCall.Name,
		"call_id":   toolCall.ID,
	})

	registered := s.registry.Get(toolCall.Name)
	if registered == nil {
		errorMsg := fmt.Sprintf("Unknown tool: %s", toolCall.Name)
		s.emitter.Emit(EventToolCallEnd, map[string]interface{}{
			"call_id": toolCall.ID,
			"error":   errorMsg,
		})
		return llm.ToolResult{ToolCallID: toolCall.ID, Content: errorMsg, IsError: true}
	}

	rawOutput, err := registered.Executor(ctx, toolCall.Arguments)
	if err != nil {
		errorMsg := fmt.Sprintf("Tool error (%s): %v", toolCall.Name, err)
		s.emitter.Emit(EventToolCallEnd, map[string]interface{}{
			"call_id": toolCall.ID,
			"error":   errorMsg,
		})
		return llm.ToolResult{ToolCallID: toolCall.ID, Content: errorMsg, IsError: true}
	}

	s.mu.Lock()
	charLimits := s.config.ToolOutputLimits
	lineLimits := s.config.ToolLineLimits
	s.mu.Unlock()
	truncated := TruncateToolOutput(rawOutput, toolCall.Name, charLimits, lineLimits)

	// Events carry the full output; only the model sees the truncated form.
	s.emitter.Emit(EventToolCallEnd, map[string]interface{}{
		"call_id": toolCall.ID,
		"output":  rawOutput,
	})
	return llm.ToolResult{ToolCallID: toolCall.ID, Content: truncated, IsError: false}
}

// appendTurns records turns in memory and in the durable log. The append
// runs under its own context so cancelling a turn never loses its record.
// A failed append means the durable log has diverged from the
// conversation and cannot be locally repaired, so it is the one error the
// loop does not swallow.
func (s *Session) appendTurns(turns ...Turn) error {
	s.mu.Lock()
	s.history = append(s.history, turns...)
	s.mu.Unlock()

	if s.store == nil {
		return nil
	}
	records := make([]json.RawMessage, 0, len(turns))
	for _, t := range turns {
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("%w: encode turn: %v", ErrStorePersist, err)
		}
		records = append(records, data)
	}
	if err := s.store.Append(context.Background(), s.id, records); err != nil {
		return fmt.Errorf("%w: %v", ErrStorePersist, err)
	}
	return nil
}

func decodeTurns(records []json.RawMessage) ([]Turn, error) {
	turns := make([]Turn, 0, len(records))
	for _, rec := range records {
		var t Turn
		if err := json.Unmarshal(rec, &t); err != nil {
			return nil, fmt.Errorf("decode stored turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}
