/*
errors.go - Centralized error types for the inventory engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers classify failures with errors.Is against the sentinels and
  pull details out of the structured errors with errors.As.

ERROR CATEGORIES:
  1. Validation        - Malformed input, business rule violations
  2. NotFound          - Unknown item, vendor, transaction line
  3. InsufficientStock - Issue quantity exceeds current stock
  4. Conflict          - Optimistic version check lost repeatedly
  5. Persistence       - Storage-level failures

USAGE:
  var stockErr *inventory.InsufficientStockError
  if errors.As(err, &stockErr) {
      // stockErr.Available, stockErr.Requested
  }

SEE ALSO:
  - stock.go: Raises InsufficientStock and Conflict
  - validate.go: Builds ValidationError from struct tags
  - api/handlers.go: Maps categories to HTTP status codes
*/
package inventory

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned when input violates field limits or rules.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientStock is returned when an issue exceeds current stock.
	// Issues are never partially applied.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrConflict is returned when the version check on an item keeps failing.
	ErrConflict = errors.New("concurrent modification detected")

	// ErrPersistence is returned when the storage layer fails.
	ErrPersistence = errors.New("persistence failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// FieldProblem describes one invalid field.
type FieldProblem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every field problem found in one input.
type ValidationError struct {
	Problems []FieldProblem
}

// NewValidationError builds a ValidationError with a single problem.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Problems: []FieldProblem{{Field: field, Message: message}}}
}

// Add appends a problem.
func (e *ValidationError) Add(field, message string) {
	e.Problems = append(e.Problems, FieldProblem{Field: field, Message: message})
}

// OrNil returns nil when no problems were recorded.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Problems) == 0 {
		return nil
	}
	sort.SliceStable(e.Problems, func(i, j int) bool { return e.Problems[i].Field < e.Problems[j].Field })
	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.Field + ": " + p.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string // "item", "vendor", "purchase line", ...
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// InsufficientStockError provides details about a stock shortage.
type InsufficientStockError struct {
	ItemID    ItemID
	ItemName  string
	Available decimal.Decimal
	Requested decimal.Decimal
	Shortfall decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %s, requested %s, shortfall %s",
		e.ItemName, e.Available, e.Requested, e.Shortfall)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// PersistenceError wraps a storage failure with the operation that failed.
type PersistenceError struct {
	Op  string
	Err error
}

// Persistence wraps err unless it already carries a domain category.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrValidation) || errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrPersistence) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientStock)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
