package payment

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration is the sentinel behind every ConfigurationError.
	ErrInvalidConfiguration = errors.New("invalid payment configuration")

	// ErrUnknownKind is returned by ParseKind for strings outside the closed set.
	ErrUnknownKind = errors.New("unknown payment model")
)

// ConfigurationError reports a configuration that breaks its kind's structural
// rules. Message is user-facing and names the offending value and the bound.
type ConfigurationError struct {
	Kind    Kind
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string { return e.Message }

func (e *ConfigurationError) Unwrap() error { return ErrInvalidConfiguration }

func invalid(kind Kind, field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Kind: kind, Field: field, Message: fmt.Sprintf(format, args...)}
}

// unreachableKind is raised when dispatch sees a kind outside the closed set.
// ParseKind guards every boundary, so reaching this is a programming defect.
func unreachableKind(k Kind) string {
	return fmt.Sprintf("payment: dispatch on unknown kind %q", string(k))
}
