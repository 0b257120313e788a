package reconcile

import (
	"errors"
	"fmt"
)

// Sentinel errors of the engine. Callers branch with errors.Is.
var (
	// ErrRunAborted is returned when the operator exits the decision loop.
	// Everything applied before the exit stays applied.
	ErrRunAborted = errors.New("reconciliation run aborted by operator")

	// ErrUnknownKind is returned for a record kind the dispatch table
	// does not carry.
	ErrUnknownKind = errors.New("unknown record kind")

	// ErrNotFound is returned by stores for lookups of absent rows.
	ErrNotFound = errors.New("record not found")
)

// RuleError wraps a failure of one deterministic link rule with enough
// context to tell which rule of which chain broke.
type RuleError struct {
	Kind RecordKind
	Rule string
	Err  error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %q for %s: %v", e.Rule, e.Kind, e.Err)
}

func (e *RuleError) Unwrap() error { return e.Err }

// IsAborted reports whether err means the operator chose to exit.
func IsAborted(err error) bool {
	return errors.Is(err, ErrRunAborted)
}
