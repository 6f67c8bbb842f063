package tools

import "errors"

// Capability registry errors.
var (
	// ErrToolNotFound is returned when a capability is not registered.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolNameEmpty is returned when a capability has no name.
	ErrToolNameEmpty = errors.New("tool name cannot be empty")

	// ErrToolExecuteNil is returned when a capability has no execute function.
	ErrToolExecuteNil = errors.New("tool execute function cannot be nil")

	// ErrToolAlreadyRegistered is returned when registering a duplicate name.
	ErrToolAlreadyRegistered = errors.New("tool already registered")

	// ErrMissingRequiredArg is returned when a required argument is absent.
	ErrMissingRequiredArg = errors.New("missing required argument")

	// ErrPathOutside is returned when a file argument escapes the working
	// directory. The check runs before any filesystem access.
	ErrPathOutside = errors.New("path escapes the working directory")
)
