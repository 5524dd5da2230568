package config

import "fmt"

// ErrorKind classifies a structural problem in a configuration document.
type ErrorKind string

const (
	// MissingField marks a required attribute that is absent.
	MissingField ErrorKind = "missing_field"
	// DuplicateKey marks a name collision (data key, step name, pass name).
	DuplicateKey ErrorKind = "duplicate_key"
	// UnknownReference marks a reference to an undeclared data node,
	// parameter or step.
	UnknownReference ErrorKind = "unknown_reference"
	// TypeMismatch marks a value whose type is incompatible with its slot.
	TypeMismatch ErrorKind = "type_mismatch"
	// InvalidChain marks a chain binding naming an unknown template step,
	// output flag or input.
	InvalidChain ErrorKind = "invalid_chain"
	// EmptyPasses marks a multipass group with no pass blocks.
	EmptyPasses ErrorKind = "empty_passes"
)

// ConfigError reports a structural problem in a configuration document. It is
// fatal: nothing is expanded or executed after one is returned.
type ConfigError struct {
	Kind    ErrorKind
	Subject string
	Detail  string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("config: %s: %s", e.Kind, e.Subject)
	}
	return fmt.Sprintf("config: %s: %s: %s", e.Kind, e.Subject, e.Detail)
}

func errf(kind ErrorKind, subject, format string, args ...any) *ConfigError {
	return &ConfigError{Kind: kind, Subject: subject, Detail: fmt.Sprintf(format, args...)}
}
