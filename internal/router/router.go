// Package router provides deterministic rule-based intent routing. A router
// scores candidate targets by matching their hint phrases against the input
// text and either picks the best target or falls back when nothing clears
// the confidence threshold. Routing is a pure function of its arguments:
// same text, targets and threshold always produce the same outcome.
package router

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind classifies what a routing target refers to.
type Kind string

const (
	KindTool     Kind = "tool"
	KindSkill    Kind = "skill"
	KindFallback Kind = "fallback"
)

// DefaultThreshold is the minimum confidence a candidate needs to win.
const DefaultThreshold = 0.5

// extraMatchBonus rewards targets with more than one matching hint.
const extraMatchBonus = 0.05

// Target is one routable destination and the hint phrases that select it.
type Target struct {
	Name        string
	Kind        Kind
	Description string
	Hints       []string
}

// Decision is the outcome of one routing call. Identity and timestamp are
// stamped fresh per call; equality of outcomes is defined over the target,
// kind, confidence and reasoning fields.
type Decision struct {
	Target     string
	Kind       Kind
	Confidence float64
	Reasoning  string
	ID         string
	Timestamp  time.Time
}

// Matched reports whether the decision selected a real target.
func (d Decision) Matched() bool {
	return d.Kind != KindFallback
}

// Router scores targets by case-insensitive hint matching.
type Router struct {
	threshold float64
}

// New builds a router with the given confidence threshold, clamped to [0,1].
func New(threshold float64) *Router {
	if threshold < 0 {
		threshold = 0
	}
	if threshold > 1 {
		threshold = 1
	}
	return &Router{threshold: threshold}
}

// Default builds a router with DefaultThreshold.
func Default() *Router {
	return New(DefaultThreshold)
}

// Threshold returns the configured confidence threshold.
func (r *Router) Threshold() float64 {
	return r.threshold
}

// Route picks the best target for the text. Scoring favors specificity: the
// longest matching hint, normalized by the longest hint across all supplied
// targets, plus a small bonus per additional matching hint, capped at 1.0.
// Equal scores keep the earliest target in the given order. When no hint
// matches, the text is blank, the target list is empty, or the best score
// sits below the threshold, the decision falls back with a reasoning that
// says why.
func (r *Router) Route(text string, targets []Target) Decision {
	if len(targets) == 0 {
		return fallback(0, "no targets available")
	}

	prompt := strings.ToLower(strings.TrimSpace(text))
	if prompt == "" {
		return fallback(0, "empty input")
	}

	// Normalization base: the longest hint over every target, so scores are
	// comparable across the whole candidate set.
	maxHintLen := 0
	for _, t := range targets {
		for _, h := range t.Hints {
			if n := len(strings.TrimSpace(h)); n > maxHintLen {
				maxHintLen = n
			}
		}
	}

	bestIdx := -1
	bestScore := 0.0
	bestHint := ""
	for i := range targets {
		score, hint := scoreHints(prompt, targets[i].Hints, maxHintLen)
		// Strictly greater keeps the earliest target on ties.
		if score > bestScore {
			bestIdx, bestScore, bestHint = i, score, hint
		}
	}

	if bestIdx < 0 {
		return fallback(0, "no hint matched the input")
	}
	if bestScore < r.threshold {
		return fallback(bestScore, fmt.Sprintf(
			"best candidate %q scored %.2f, below threshold %.2f",
			targets[bestIdx].Name, bestScore, r.threshold))
	}

	winner := targets[bestIdx]
	return Decision{
		Target:     winner.Name,
		Kind:       winner.Kind,
		Confidence: bestScore,
		Reasoning:  fmt.Sprintf("matched hint %q for %s %q", bestHint, winner.Kind, winner.Name),
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
	}
}

func scoreHints(prompt string, hints []string, maxHintLen int) (float64, string) {
	longest := ""
	matches := 0
	for _, h := range hints {
		h = strings.ToLower(strings.TrimSpace(h))
		if h == "" {
			continue
		}
		if strings.Contains(prompt, h) {
			matches++
			if len(h) > len(longest) {
				longest = h
			}
		}
	}
	if matches == 0 || maxHintLen == 0 {
		return 0, ""
	}

	score := float64(len(longest))/float64(maxHintLen) + extraMatchBonus*float64(matches-1)
	if score > 1 {
		score = 1
	}
	return score, longest
}

func fallback(confidence float64, reasoning string) Decision {
	return Decision{
		Kind:       KindFallback,
		Confidence: confidence,
		Reasoning:  reasoning,
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
	}
}
