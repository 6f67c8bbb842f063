// Package reasoner defines the backend contract for single-shot reasoning
// and its streaming variant, plus the concrete clients for Ollama, DeepSeek
// and Gemini. A backend receives the fully assembled turn context and is
// called exactly once per turn; retries and loops are the caller's business,
// and no client here performs them.
package reasoner

import (
	"context"
	"errors"

	"turnstile/internal/types"
)

// Backend errors.
var (
	// ErrMissingAPIKey is returned when a hosted backend has no credential.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrEmptyResponse is returned when a backend replies without content.
	ErrEmptyResponse = errors.New("backend returned an empty response")

	// ErrNoModels is returned when model discovery finds nothing installed.
	ErrNoModels = errors.New("no models available")
)

// Reasoner is the single-shot backend contract: one assembled context in,
// one structured response out.
type Reasoner interface {
	// ID identifies the backing model, carried into Response.Backend.
	ID() string

	// Reason performs exactly one backend call.
	Reason(ctx context.Context, messages []types.Message) (*types.Response, error)
}

// Final carries the terminal outcome of a streamed call: exactly one of
// Response or Err, delivered after the token channel closes.
type Final struct {
	Response *types.Response
	Err      error
}

// Streamer is implemented by backends with native incremental output. The
// token channel yields text fragments in order; the final channel yields
// exactly one Final and closes.
type Streamer interface {
	Reasoner

	ReasonStream(ctx context.Context, messages []types.Message) (<-chan string, <-chan Final)
}

// AsStreamer adapts a single-shot backend into the streaming contract,
// emitting the complete response as one chunk. A backend that already
// streams is returned unchanged.
func AsStreamer(r Reasoner) Streamer {
	if s, ok := r.(Streamer); ok {
		return s
	}
	return &oneChunkStreamer{r}
}

type oneChunkStreamer struct {
	Reasoner
}

func (s *oneChunkStreamer) ReasonStream(ctx context.Context, messages []types.Message) (<-chan string, <-chan Final) {
	tokens := make(chan string, 1)
	final := make(chan Final, 1)

	// Both channels are buffered so the goroutine cannot leak even when the
	// caller abandons the stream.
	go func() {
		defer close(final)

		resp, err := s.Reason(ctx, messages)
		if err != nil {
			close(tokens)
			final <- Final{Err: err}
			return
		}
		tokens <- resp.Content
		close(tokens)
		final <- Final{Response: resp}
	}()

	return tokens, final
}

// wireRole maps turn-scoped roles onto the provider vocabulary: instruction
// text travels as system content, capability results as user content. The
// assembled order is preserved by the callers.
func wireRole(r types.Role) string {
	switch r {
	case types.RoleInstruction:
		return "system"
	case types.RoleToolResult:
		return "user"
	default:
		return string(r)
	}
}
