package dag

import (
	"fmt"
	"strings"
)

// ValidationKind classifies a structural defect found while building the
// graph from an expanded pipeline.
type ValidationKind string

const (
	// DuplicateProducer marks two steps declaring the same output data key.
	DuplicateProducer ValidationKind = "duplicate_producer"
	// UnknownReference marks a step referencing a data key absent from the
	// expanded pipeline's data table.
	UnknownReference ValidationKind = "unknown_reference"
)

// ValidationError is fatal: it aborts the run before any process spawns.
type ValidationError struct {
	Kind    ValidationKind
	Subject string
	Detail  string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("validation: %s: %s", e.Kind, e.Subject)
	}
	return fmt.Sprintf("validation: %s: %s: %s", e.Kind, e.Subject, e.Detail)
}

// CycleError reports a dependency cycle, naming its participants in
// deterministic order.
type CycleError struct {
	Participants []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return "dependency cycle: " + strings.Join(e.Participants, " -> ")
}
