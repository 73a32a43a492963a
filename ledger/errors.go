/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Subsystem packages wrap these with additional context.

ERROR CATEGORIES:
  1. Conflict errors  - uniqueness violations (expected, designed-for)
  2. Not-found errors - missing rows
  3. Store errors     - database-level failures (infrastructure)

PROPAGATION POLICY:
  Conflicts are expected outcomes: a duplicate statement is the idempotency
  mechanism working, not a failure. Components translate conflicts into
  structured results (IsDuplicate, SkippedExisting) and only propagate
  infrastructure failures to callers.

USAGE:
    if errors.Is(err, ledger.ErrDuplicateStatement) {
        // second upload of the same bytes - fall back to the duplicate path
    }
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateStatement is returned when a statement with the same content
	// hash already exists. This is the at-most-once ingestion guarantee firing.
	ErrDuplicateStatement = errors.New("statement already ingested")

	// ErrDuplicateTransaction is returned when a transaction ID already exists.
	ErrDuplicateTransaction = errors.New("transaction already exists")

	// ErrDuplicateLineage is returned when the pair already carries an edge.
	ErrDuplicateLineage = errors.New("lineage edge already exists")

	// ErrStatementNotFound is returned when a referenced statement is missing.
	ErrStatementNotFound = errors.New("statement not found")

	// ErrTransactionNotFound is returned when a referenced transaction is missing.
	ErrTransactionNotFound = errors.New("transaction not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConflictError reports which row collided on a uniqueness constraint.
type ConflictError struct {
	Entity string // "statement", "transaction", "lineage"
	ID     string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s violates uniqueness", e.Entity, e.ID)
}

func (e *ConflictError) Unwrap() error {
	switch e.Entity {
	case "statement":
		return ErrDuplicateStatement
	case "lineage":
		return ErrDuplicateLineage
	default:
		return ErrDuplicateTransaction
	}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConflict returns true if the error is a uniqueness violation,
// i.e. an expected designed-for outcome rather than an infrastructure failure.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateStatement) ||
		errors.Is(err, ErrDuplicateTransaction) ||
		errors.Is(err, ErrDuplicateLineage)
}

// IsNotFound returns true if the error indicates a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrStatementNotFound) ||
		errors.Is(err, ErrTransactionNotFound)
}
