/*
Package apperr provides the centralized error taxonomy shared by the pricing
and claims engines, generalized from the teacher engine's errors.go.

ERROR CATEGORIES (§7 of SPEC_FULL.md):
  ValidationError   - caller input violates a documented precondition. 400.
  NotFound          - config/member/factor/option missing. 404.
  StateError        - operation illegal in current status. 409.
  ConcurrencyError  - unique-constraint collision. 409. No engine or store in
                      this module returns it; numbering collisions are not
                      retried.
  RuleFailure       - a single validation rule errored; never propagates.
  DependencyError   - catalog/reference data missing a required row. 500.

USAGE:
  Domain packages return these directly, or wrap them with errors.Is-
  compatible structured types for additional context (see ValidationDetail,
  StateConflict below).

SEE ALSO:
  - pricing/engine.go: raises ValidationError/NotFound/StateError
  - claims/engine.go: turns a panicking rule into a FAILED result rather
    than an error (never propagated)
*/
package apperr

import (
	"errors"
	"fmt"
)

// Sentinel errors usable with errors.Is().
var (
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrState           = errors.New("illegal state transition")
	ErrConcurrency     = errors.New("concurrent modification")
	ErrRuleFailure     = errors.New("rule evaluation failed")
	ErrDependency      = errors.New("missing dependency data")
)

// ValidationDetail carries the offending rule/field for a 400 response.
type ValidationDetail struct {
	Field   string
	Message string
}

func (e *ValidationDetail) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationDetail) Unwrap() error { return ErrValidation }

// NewValidation builds a ValidationDetail error.
func NewValidation(field, format string, args ...any) error {
	return &ValidationDetail{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundDetail carries the missing resource kind and key for a 404.
type NotFoundDetail struct {
	Kind string
	Key  string
}

func (e *NotFoundDetail) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

func (e *NotFoundDetail) Unwrap() error { return ErrNotFound }

func NewNotFound(kind, key string) error {
	return &NotFoundDetail{Kind: kind, Key: key}
}

// StateConflict carries the illegal transition for a 409.
type StateConflict struct {
	Entity  string
	Current string
	Message string
}

func (e *StateConflict) Error() string {
	return fmt.Sprintf("%s in state %s: %s", e.Entity, e.Current, e.Message)
}

func (e *StateConflict) Unwrap() error { return ErrState }

func NewStateConflict(entity, current, format string, args ...any) error {
	return &StateConflict{Entity: entity, Current: current, Message: fmt.Sprintf(format, args...)}
}

// ConcurrencyConflict carries the colliding key for a retried-then-surfaced
// uniqueness violation (quote/policy numbering, workflow step races).
type ConcurrencyConflict struct {
	Resource string
	Key      string
	Attempts int
}

func (e *ConcurrencyConflict) Error() string {
	return fmt.Sprintf("concurrency conflict on %s=%s after %d attempts", e.Resource, e.Key, e.Attempts)
}

func (e *ConcurrencyConflict) Unwrap() error { return ErrConcurrency }

// DependencyMissing carries the missing catalog key for a 500.
type DependencyMissing struct {
	Kind string
	Key  string
}

func (e *DependencyMissing) Error() string {
	return fmt.Sprintf("dependency data missing: %s %s", e.Kind, e.Key)
}

func (e *DependencyMissing) Unwrap() error { return ErrDependency }

func NewDependencyMissing(kind, key string) error {
	return &DependencyMissing{Kind: kind, Key: key}
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrency)
}

// IsClientError returns true if the error is due to invalid client input or
// an illegal state transition requested by the client.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrState)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDependencyError returns true if the error indicates missing reference
// data rather than bad caller input — an operator data-setup bug (§7).
func IsDependencyError(err error) bool {
	return errors.Is(err, ErrDependency)
}

// StatusCode maps an apperr-family error to the HTTP status the API layer
// should return.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return 400
	case errors.Is(err, ErrNotFound):
		return 404
	case errors.Is(err, ErrState):
		return 409
	case errors.Is(err, ErrConcurrency):
		return 409
	case errors.Is(err, ErrDependency):
		return 500
	default:
		return 500
	}
}
