package skills

import "errors"

// Bundle loading errors.
var (
	// ErrSkillNotFound is returned when no bundle carries the requested name.
	ErrSkillNotFound = errors.New("skill not found")

	// ErrMalformedBundle is returned when a SKILL.md file cannot be parsed
	// or misses required frontmatter fields.
	ErrMalformedBundle = errors.New("malformed skill bundle")

	// ErrPathEscapes is returned when a resource path points outside the
	// bundle's resources directory. The check runs before any read.
	ErrPathEscapes = errors.New("resource path escapes the bundle")
)
