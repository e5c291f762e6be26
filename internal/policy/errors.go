package policy

import (
	"fmt"
)

// ConfigurationError reports a missing or malformed policy annotation.
type ConfigurationError struct {
	Annotation string
	Value      string
	Reason     string
}

func (e *ConfigurationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid annotation %s: %s", e.Annotation, e.Reason)
	}
	return fmt.Sprintf("invalid annotation %s=%q: %s", e.Annotation, e.Value, e.Reason)
}

// PolicyErrorKind classifies PolicyError values.
type PolicyErrorKind string

const (
	InvalidPattern     PolicyErrorKind = "InvalidPattern"
	UnparseableVersion PolicyErrorKind = "UnparseableVersion"
)

// PolicyError is returned by the engine when a decision cannot be made.
type PolicyError struct {
	Kind   PolicyErrorKind
	Value  string
	Reason string
}

func (e *PolicyError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %q", e.Kind, e.Value)
	}
	return fmt.Sprintf("%s: %q: %s", e.Kind, e.Value, e.Reason)
}
