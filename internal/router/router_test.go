package router

import (
	"strings"
	"testing"
)

func echoTarget() Target {
	return Target{
		Name:        "echo",
		Kind:        KindTool,
		Description: "Echo the arguments back",
		Hints:       []string{"echo", "repeat"},
	}
}

func readFileTarget() Target {
	return Target{
		Name:        "read-file",
		Kind:        KindTool,
		Description: "Read a file from disk",
		Hints:       []string{"read file", "open file", "show file"},
	}
}

func TestRouteMatchesTool(t *testing.T) {
	r := Default()
	d := r.Route("echo hello", []Target{echoTarget()})

	if !d.Matched() {
		t.Fatalf("expected a match, got fallback: %s", d.Reasoning)
	}
	if d.Target != "echo" || d.Kind != KindTool {
		t.Errorf("routed to %s %q", d.Kind, d.Target)
	}
	if d.Confidence < DefaultThreshold {
		t.Errorf("confidence %.2f below threshold", d.Confidence)
	}
	if d.ID == "" || d.Timestamp.IsZero() {
		t.Error("decision missing identity or timestamp")
	}
	if !strings.Contains(d.Reasoning, "echo") {
		t.Errorf("reasoning %q does not name the winning hint", d.Reasoning)
	}
}

func TestRouteSpecificityWins(t *testing.T) {
	r := Default()
	d := r.Route("please read file notes.txt", []Target{echoTarget(), readFileTarget()})

	if d.Target != "read-file" {
		t.Fatalf("routed to %q, want read-file (%s)", d.Target, d.Reasoning)
	}
	if d.Confidence < 0.9 {
		t.Errorf("exact hint match scored %.2f", d.Confidence)
	}
}

func TestRouteFallbacks(t *testing.T) {
	r := Default()

	tests := []struct {
		name    string
		text    string
		targets []Target
		reason  string
	}{
		{"no match", "what's the weather like", []Target{echoTarget()}, "no hint matched"},
		{"empty prompt", "", []Target{echoTarget()}, "empty input"},
		{"whitespace prompt", "   \t  ", []Target{echoTarget()}, "empty input"},
		{"no targets", "echo hello", nil, "no targets available"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := r.Route(tt.text, tt.targets)
			if d.Matched() {
				t.Fatalf("expected fallback, routed to %q", d.Target)
			}
			if d.Target != "" {
				t.Errorf("fallback carries target %q", d.Target)
			}
			if d.Confidence != 0 {
				t.Errorf("fallback confidence = %.2f, want 0", d.Confidence)
			}
			if !strings.Contains(d.Reasoning, tt.reason) {
				t.Errorf("reasoning %q, want mention of %q", d.Reasoning, tt.reason)
			}
		})
	}
}

func TestRouteBelowThreshold(t *testing.T) {
	r := New(0.9)
	d := r.Route("echo hello", []Target{echoTarget()})

	if d.Matched() {
		t.Fatalf("expected threshold fallback, routed to %q", d.Target)
	}
	if d.Confidence <= 0 || d.Confidence >= 0.9 {
		t.Errorf("fallback should carry the losing score, got %.2f", d.Confidence)
	}
	if !strings.Contains(d.Reasoning, "threshold") || !strings.Contains(d.Reasoning, "echo") {
		t.Errorf("reasoning %q should name the candidate and the threshold", d.Reasoning)
	}
}

func TestRouteTieKeepsFirstTarget(t *testing.T) {
	alpha := Target{Name: "alpha", Kind: KindTool, Hints: []string{"ping"}}
	beta := Target{Name: "beta", Kind: KindSkill, Hints: []string{"ping"}}
	r := Default()

	if d := r.Route("ping the host", []Target{alpha, beta}); d.Target != "alpha" {
		t.Errorf("tie routed to %q, want alpha", d.Target)
	}
	if d := r.Route("ping the host", []Target{beta, alpha}); d.Target != "beta" {
		t.Errorf("tie routed to %q, want beta after reorder", d.Target)
	}
}

func TestRouteExtraMatchingHintBreaksNearTie(t *testing.T) {
	// The unmatched long hint widens the normalization base so the bonus
	// is visible below the cap.
	anchor := Target{Name: "anchor", Kind: KindTool, Hints: []string{"immeasurable"}}
	single := Target{Name: "single", Kind: KindTool, Hints: []string{"quick"}}
	double := Target{Name: "double", Kind: KindTool, Hints: []string{"quick", "brown"}}

	r := New(0.3)
	d := r.Route("the quick brown fox", []Target{anchor, single, double})
	if d.Target != "double" {
		t.Fatalf("routed to %q, want double (%s)", d.Target, d.Reasoning)
	}
}

func TestRouteCaseInsensitive(t *testing.T) {
	r := Default()
	d := r.Route("ECHO This Back", []Target{echoTarget()})
	if d.Target != "echo" {
		t.Fatalf("case-insensitive match failed: %s", d.Reasoning)
	}
}

func TestRouteDeterministicOutcome(t *testing.T) {
	r := Default()
	targets := []Target{echoTarget(), readFileTarget()}

	a := r.Route("echo hello", targets)
	b := r.Route("echo hello", targets)

	if a.Target != b.Target || a.Kind != b.Kind || a.Confidence != b.Confidence || a.Reasoning != b.Reasoning {
		t.Errorf("same inputs produced different outcomes: %+v vs %+v", a, b)
	}
	if a.ID == b.ID {
		t.Error("decisions should carry fresh identities")
	}
}

func TestRouteDoesNotMutateTargets(t *testing.T) {
	targets := []Target{echoTarget(), readFileTarget()}
	wantHints := [][]string{
		append([]string(nil), targets[0].Hints...),
		append([]string(nil), targets[1].Hints...),
	}

	Default().Route("echo hello", targets)

	for i, want := range wantHints {
		if len(targets[i].Hints) != len(want) {
			t.Fatalf("target %d hints changed: %v", i, targets[i].Hints)
		}
		for j := range want {
			if targets[i].Hints[j] != want[j] {
				t.Errorf("target %d hint %d changed to %q", i, j, targets[i].Hints[j])
			}
		}
	}
}

func TestNewClampsThreshold(t *testing.T) {
	if got := New(-1).Threshold(); got != 0 {
		t.Errorf("threshold = %.2f, want 0", got)
	}
	if got := New(2).Threshold(); got != 1 {
		t.Errorf("threshold = %.2f, want 1", got)
	}
}
