package reasoner

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/goleak"

	"turnstile/internal/types"
)

// opencensus, linked in transitively through the gemini backend's client
// libraries, starts a permanent stats worker at init. Ignore it so the
// leak check sees only goroutines created by the code under test.
var ignoreOpenCensus = goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start")

type fakeReasoner struct {
	response *types.Response
	err      error
	calls    int
}

func (f *fakeReasoner) ID() string { return "fake-model" }

func (f *fakeReasoner) Reason(_ context.Context, _ []types.Message) (*types.Response, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

type fakeStreamer struct {
	fakeReasoner
}

func (f *fakeStreamer) ReasonStream(_ context.Context, _ []types.Message) (<-chan string, <-chan Final) {
	tokens := make(chan string)
	final := make(chan Final, 1)
	close(tokens)
	final <- Final{Response: f.response}
	close(final)
	return tokens, final
}

func TestAsStreamerEmitsOneChunk(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreOpenCensus)

	fake := &fakeReasoner{response: types.NewResponse("complete answer", "fake-model", nil)}
	s := AsStreamer(fake)

	tokens, final := s.ReasonStream(context.Background(), nil)

	var got []string
	for tok := range tokens {
		got = append(got, tok)
	}
	out := <-final

	if out.Err != nil {
		t.Fatalf("final error: %v", out.Err)
	}
	if out.Response == nil || out.Response.Content != "complete answer" {
		t.Fatalf("final response = %+v", out.Response)
	}
	if len(got) != 1 || got[0] != "complete answer" {
		t.Errorf("tokens = %v, want the whole content as one chunk", got)
	}
	if fake.calls != 1 {
		t.Errorf("backend called %d times, want exactly 1", fake.calls)
	}
}

func TestAsStreamerPropagatesError(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreOpenCensus)

	wantErr := errors.New("backend down")
	s := AsStreamer(&fakeReasoner{err: wantErr})

	tokens, final := s.ReasonStream(context.Background(), nil)

	for range tokens {
		t.Error("no tokens expected on failure")
	}
	out := <-final
	if !errors.Is(out.Err, wantErr) {
		t.Errorf("final error = %v, want %v", out.Err, wantErr)
	}
	if out.Response != nil {
		t.Errorf("final carries a response alongside the error: %+v", out.Response)
	}
}

func TestAsStreamerDoesNotLeakWhenAbandoned(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreOpenCensus)

	s := AsStreamer(&fakeReasoner{response: types.NewResponse("ignored", "fake-model", nil)})
	s.ReasonStream(context.Background(), nil)
	// The caller walks away without reading either channel; buffering must
	// let the goroutine finish anyway.
}

func TestAsStreamerKeepsNativeStreamer(t *testing.T) {
	native := &fakeStreamer{fakeReasoner{response: types.NewResponse("native", "fake-model", nil)}}
	if got := AsStreamer(native); got != Streamer(native) {
		t.Error("native streamer should pass through unchanged")
	}
}

func TestWireRole(t *testing.T) {
	tests := []struct {
		role types.Role
		want string
	}{
		{types.RoleSystem, "system"},
		{types.RoleUser, "user"},
		{types.RoleAssistant, "assistant"},
		{types.RoleInstruction, "system"},
		{types.RoleToolResult, "user"},
	}

	for _, tt := range tests {
		if got := wireRole(tt.role); got != tt.want {
			t.Errorf("wireRole(%s) = %q, want %q", tt.role, got, tt.want)
		}
	}
}
