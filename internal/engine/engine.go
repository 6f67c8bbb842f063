// Package engine implements the single-turn orchestration loop.
//
// A turn assembles context in a fixed order, makes exactly one backend
// call, and records the exchange in the session only when that call
// succeeds:
//
//	persona → instructions → tool results → history → user input → backend
//
// The engine never retries and never appends partial turns.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"turnstile/internal/reasoner"
	"turnstile/internal/types"
)

var (
	// ErrEmptyInput rejects a turn whose input is empty or whitespace.
	ErrEmptyInput = errors.New("empty input")

	// ErrNoReasoner rejects a turn when no backend is configured.
	ErrNoReasoner = errors.New("no reasoner configured")
)

// Engine orchestrates one reasoning turn at a time.
type Engine struct {
	reasoner reasoner.Reasoner
	persona  string
	logger   *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithPersona sets the persona text sent as the leading system message.
func WithPersona(text string) Option {
	return func(e *Engine) { e.persona = text }
}

// WithLogger routes engine logs to the given logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New builds an Engine around the given backend.
func New(r reasoner.Reasoner, opts ...Option) *Engine {
	e := &Engine{reasoner: r, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// TurnRequest carries everything one turn needs. Session is optional;
// when present, the completed exchange is appended to it and its prior
// messages ride along as context.
type TurnRequest struct {
	Input        string
	Session      *types.Session
	Instructions []string
	ToolResults  []types.ToolResult
}

// Execute runs one turn: validate, assemble, one backend call, record.
// A backend failure returns the wrapped error and leaves the session
// untouched.
func (e *Engine) Execute(ctx context.Context, req TurnRequest) (*types.Response, error) {
	if err := e.validate(req); err != nil {
		return nil, err
	}

	messages := e.assemble(req)
	e.logger.Debug("executing turn",
		zap.String("backend", e.reasoner.ID()),
		zap.Int("messages", len(messages)))

	resp, err := e.reasoner.Reason(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("reasoning failed: %w", err)
	}

	e.record(req, resp.Content)
	e.logger.Debug("turn complete",
		zap.String("backend", resp.Backend),
		zap.Int("content_chars", len(resp.Content)))
	return resp, nil
}

// ExecuteStream runs one streaming turn with the same assembly and
// exactly-once rules as Execute. Validation failures arrive on the final
// channel. The session is appended only after the stream completes with a
// response; a cancelled or broken stream leaves it untouched.
func (e *Engine) ExecuteStream(ctx context.Context, req TurnRequest) (<-chan string, <-chan reasoner.Final) {
	if err := e.validate(req); err != nil {
		tokens := make(chan string)
		final := make(chan reasoner.Final, 1)
		close(tokens)
		final <- reasoner.Final{Err: err}
		close(final)
		return tokens, final
	}

	messages := e.assemble(req)
	e.logger.Debug("executing streaming turn",
		zap.String("backend", e.reasoner.ID()),
		zap.Int("messages", len(messages)))

	tokens, upstream := reasoner.AsStreamer(e.reasoner).ReasonStream(ctx, messages)

	final := make(chan reasoner.Final, 1)
	go func() {
		defer close(final)
		out := <-upstream
		if out.Err != nil {
			out.Err = fmt.Errorf("reasoning failed: %w", out.Err)
		} else if out.Response != nil {
			e.record(req, out.Response.Content)
		}
		final <- out
	}()

	return tokens, final
}

func (e *Engine) validate(req TurnRequest) error {
	if e.reasoner == nil {
		return ErrNoReasoner
	}
	if strings.TrimSpace(req.Input) == "" {
		return ErrEmptyInput
	}
	return nil
}

// assemble builds the backend context in the fixed turn order.
func (e *Engine) assemble(req TurnRequest) []types.Message {
	var messages []types.Message

	if e.persona != "" {
		messages = append(messages, types.NewMessage(types.RoleSystem, e.persona))
	}
	for _, text := range req.Instructions {
		if strings.TrimSpace(text) == "" {
			continue
		}
		messages = append(messages, types.NewMessage(types.RoleInstruction, text))
	}
	for _, r := range req.ToolResults {
		messages = append(messages, types.NewMessage(types.RoleToolResult, renderToolResult(r)))
	}
	if req.Session != nil {
		messages = append(messages, req.Session.Messages...)
	}
	messages = append(messages, types.NewMessage(types.RoleUser, req.Input))

	return messages
}

// record appends the completed exchange to the session. User and
// assistant are the only roles ever recorded.
func (e *Engine) record(req TurnRequest, content string) {
	if req.Session == nil {
		return
	}
	_ = req.Session.Append(types.NewMessage(types.RoleUser, req.Input))
	_ = req.Session.Append(types.NewMessage(types.RoleAssistant, content))
}

// renderToolResult flattens a capability result into prompt text.
func renderToolResult(r types.ToolResult) string {
	if r.OK() {
		return fmt.Sprintf("%s: %s", r.Tool, r.Output)
	}
	return fmt.Sprintf("%s (failed): %s", r.Tool, r.Output)
}
