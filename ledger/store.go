/*
store.go - Persistence interface for the ledger

PURPOSE:
  Defines the interface between the domain logic and the database.
  Different implementations back it with SQLite or in-memory maps.

KEY GUARANTEES THE STORE MUST PROVIDE:
  - Uniqueness on Statement.ID and Transaction.ID (the idempotency anchors)
  - At most one lineage edge per unordered transaction pair
  - WithTx: serializable all-or-nothing units, used so that
      * one ingest (statement + transactions + logs) commits atomically
      * one detection pass's edges commit atomically
      * one archive file's row deletion commits atomically

MUTATION SURFACE:
  Statements, lineage edges and log entries are insert-only. Transactions
  are insert-only with one exception: DeleteTransactions, reserved for the
  archival write-then-delete path. There is no Update anywhere.

IMPLEMENTATIONS:
  - store/sqlite:     production store
  - ledger/store:     in-memory store for tests and dev

SEE ALSO:
  - store/sqlite/sqlite.go
  - ledger/store/memory.go
*/
package ledger

import "context"

// =============================================================================
// QUERY FILTER
// =============================================================================

// TransactionFilter narrows ListTransactions. Zero values mean "no filter".
type TransactionFilter struct {
	From        *Date
	To          *Date
	Source      string
	StatementID StatementID
	Limit       int
}

// =============================================================================
// STORE
// =============================================================================

type Store interface {
	// --- Statements ---

	// InsertStatement persists a statement row.
	// Returns ErrDuplicateStatement if the content hash already exists.
	InsertStatement(ctx context.Context, st Statement) error

	// GetStatement returns ErrStatementNotFound when missing.
	GetStatement(ctx context.Context, id StatementID) (Statement, error)

	StatementExists(ctx context.Context, id StatementID) (bool, error)

	ListStatements(ctx context.Context) ([]Statement, error)

	// --- Transactions ---

	// InsertTransactions persists rows atomically.
	// Returns ErrDuplicateTransaction if any ID already exists.
	InsertTransactions(ctx context.Context, txs []Transaction) error

	// GetTransaction returns ErrTransactionNotFound when missing.
	GetTransaction(ctx context.Context, id TransactionID) (Transaction, error)

	TransactionExists(ctx context.Context, id TransactionID) (bool, error)

	// ListTransactions returns rows matching the filter, ordered by date.
	ListTransactions(ctx context.Context, f TransactionFilter) ([]Transaction, error)

	CountTransactions(ctx context.Context) (int, error)

	// DeleteTransactions removes rows from the live ledger.
	// ONLY the archival manager calls this, and only after the corresponding
	// cold-storage file is durably written.
	DeleteTransactions(ctx context.Context, ids []TransactionID) error

	// --- Lineage ---

	// InsertLineage persists one edge.
	// Returns ErrDuplicateLineage if the unordered pair already has an edge.
	InsertLineage(ctx context.Context, edge Lineage) error

	// PairLinked reports whether an edge exists between a and b in either
	// direction, of any type.
	PairLinked(ctx context.Context, a, b TransactionID) (bool, error)

	// LineageFor returns all edges touching the transaction, both directions.
	LineageFor(ctx context.Context, id TransactionID) ([]Lineage, error)

	// UnlinkedTransactions returns transactions with no inbound or outbound
	// edges - the lineage detector's candidate set.
	UnlinkedTransactions(ctx context.Context) ([]Transaction, error)

	// --- Ingestion log ---

	// AppendLog appends audit entries. Append-only, never pruned.
	AppendLog(ctx context.Context, entries []LogEntry) error

	LogsForStatement(ctx context.Context, id StatementID) ([]LogEntry, error)

	// --- Atomic units ---

	// WithTx executes fn within a transaction. If fn returns an error the
	// whole unit rolls back; no partial state is ever visible to readers.
	WithTx(ctx context.Context, fn func(Store) error) error
}
