// Package record implements the portable execution record: a versioned
// JSON snapshot of one completed turn that can be stored, inspected, and
// used to seed a later turn. Continuation is always explicit in the
// record, never inferred from the response text.
package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"turnstile/internal/types"
)

// SchemaVersion is the version stamped on records written by this build.
const SchemaVersion = "1.0"

// SupportedVersions lists the schema versions Decode accepts.
var SupportedVersions = []string{SchemaVersion}

var (
	// ErrMalformed marks a record that cannot be parsed or is missing
	// required fields.
	ErrMalformed = errors.New("malformed record")

	// ErrUnsupportedVersion marks a record from an incompatible schema.
	ErrUnsupportedVersion = errors.New("unsupported record version")
)

// VersionError reports the unsupported version a record declared.
type VersionError struct {
	Version string
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("record version %q is not supported (supported: %s)",
		e.Version, strings.Join(SupportedVersions, ", "))
}

func (e *VersionError) Unwrap() error { return ErrUnsupportedVersion }

// RoutedTo captures where the intent router sent a turn.
type RoutedTo struct {
	Target     string  `json:"target"`
	Kind       string  `json:"kind"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// Input is the per-turn input block: the prompt plus the provenance of
// how the turn was set up.
type Input struct {
	Prompt  string    `json:"prompt"`
	Backend string    `json:"backend"`
	Mode    string    `json:"mode,omitempty"`
	Routing *RoutedTo `json:"routing,omitempty"`
	Skills  []string  `json:"skills,omitempty"`
	Tools   []string  `json:"tools,omitempty"`
}

// Output mirrors the backend response.
type Output struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Backend   string         `json:"backend"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Continuation states whether the turn asked for a follow-up turn.
type Continuation struct {
	Requested bool   `json:"requested"`
	Reason    string `json:"reason,omitempty"`
}

// Record is one completed turn in portable form.
type Record struct {
	SchemaVersion string       `json:"schema_version"`
	ID            string       `json:"id"`
	Timestamp     time.Time    `json:"timestamp"`
	Input         Input        `json:"input"`
	Output        Output       `json:"output"`
	Continuation  Continuation `json:"continuation"`
}

// FromTurn builds a record from a completed turn, stamping the current
// schema version, a fresh ID, and the capture time.
func FromTurn(input Input, resp *types.Response, cont Continuation) *Record {
	rec := &Record{
		SchemaVersion: SchemaVersion,
		ID:            uuid.NewString(),
		Timestamp:     time.Now().UTC(),
		Input:         input,
		Continuation:  cont,
	}
	if resp != nil {
		rec.Output = Output{
			ID:        resp.ID,
			Content:   resp.Content,
			Backend:   resp.Backend,
			Timestamp: resp.Timestamp,
			Metadata:  resp.Metadata,
		}
	}
	return rec
}

// Encode renders the record as indented JSON. Map keys marshal in sorted
// order, so equal records encode to equal bytes.
func (r *Record) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return data, nil
}

// Decode parses and validates a record. Unknown fields are ignored so
// newer minor schemas stay readable. A recognized but unsupported version
// is a hard error; the caller must not guess at its semantics.
func Decode(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if rec.SchemaVersion == "" {
		return nil, fmt.Errorf("%w: missing schema_version", ErrMalformed)
	}
	if !versionSupported(rec.SchemaVersion) {
		return nil, &VersionError{Version: rec.SchemaVersion}
	}
	if rec.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrMalformed)
	}
	if rec.Input.Prompt == "" {
		return nil, fmt.Errorf("%w: missing input.prompt", ErrMalformed)
	}
	if rec.Output.Content == "" {
		return nil, fmt.Errorf("%w: missing output.content", ErrMalformed)
	}

	return &rec, nil
}

func versionSupported(v string) bool {
	for _, s := range SupportedVersions {
		if v == s {
			return true
		}
	}
	return false
}
