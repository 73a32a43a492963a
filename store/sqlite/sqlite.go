/*
Package sqlite provides the SQLite-backed implementation of ledger.Store.

PURPOSE:
  Production persistence for the ledger engine. In production the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

UNIQUENESS ENFORCEMENT:
  The schema is the enforcement mechanism for the core invariants:
  - statements.statement_id PRIMARY KEY    -> at-most-once ingestion
  - transactions.transaction_id PRIMARY KEY -> deterministic identity
  - lineage.pair_key UNIQUE                 -> one edge per unordered pair
  A second concurrent writer observes a constraint violation, which the
  store translates into the corresponding ledger conflict error. Callers
  fall back to the duplicate path instead of failing.

KEY TABLES:
  statements:     One row per ingested source document
  transactions:   Immutable ledger lines (deleted only by archival)
  lineage:        Inferred relationships, append-only
  ingestion_log:  Append-only audit trail

INDEXES:
  - idx_transactions_date_source: lineage candidate scans, archival cutoffs
  - idx_transactions_statement:   per-statement lookups
  - idx_lineage_from / idx_lineage_to: unlinked-transaction query

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

CONCURRENCY:
  Uses sync.RWMutex so one WithTx unit is a single logical writer. With
  PostgreSQL, database-level concurrency control handles this instead.

USAGE:
  store, err := sqlite.New("./data/fintrack.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - ledger/store.go: interface definition
  - ledger/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/fintrack/ledger-engine/ledger"
)

// Store implements ledger.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Statements (one per unique source-byte content)
	CREATE TABLE IF NOT EXISTS statements (
		statement_id TEXT PRIMARY KEY,
		source_type TEXT NOT NULL,
		source TEXT NOT NULL,
		account TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		parse_status TEXT NOT NULL,
		transaction_count INTEGER NOT NULL DEFAULT 0,
		ingested_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_statements_source_period
		ON statements(source, period_start, period_end);

	-- Transactions (immutable; removed only by archival, write-then-delete)
	CREATE TABLE IF NOT EXISTS transactions (
		transaction_id TEXT PRIMARY KEY,
		statement_id TEXT NOT NULL,
		tx_date TEXT NOT NULL,
		description TEXT NOT NULL,
		debit TEXT,
		credit TEXT,
		balance TEXT,
		currency TEXT NOT NULL DEFAULT 'INR',
		source TEXT NOT NULL,
		raw_line TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_date_source
		ON transactions(tx_date, source);
	CREATE INDEX IF NOT EXISTS idx_transactions_statement
		ON transactions(statement_id);

	-- Lineage (append-only; pair_key = sorted endpoint IDs, so an unordered
	-- pair can never carry two edges regardless of direction or type)
	CREATE TABLE IF NOT EXISTS lineage (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		from_transaction_id TEXT NOT NULL,
		to_transaction_id TEXT NOT NULL,
		pair_key TEXT NOT NULL UNIQUE,
		relationship_type TEXT NOT NULL,
		confidence REAL NOT NULL,
		evidence_json TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_lineage_from
		ON lineage(from_transaction_id);
	CREATE INDEX IF NOT EXISTS idx_lineage_to
		ON lineage(to_transaction_id);
	CREATE INDEX IF NOT EXISTS idx_lineage_type_confidence
		ON lineage(relationship_type, confidence);

	-- Ingestion log (append-only audit trail)
	CREATE TABLE IF NOT EXISTS ingestion_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		statement_id TEXT NOT NULL,
		level TEXT NOT NULL,
		message TEXT NOT NULL,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_log_statement
		ON ingestion_log(statement_id);
	CREATE INDEX IF NOT EXISTS idx_log_level
		ON ingestion_log(level);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// STATEMENTS
// =============================================================================

func (s *Store) InsertStatement(ctx context.Context, st ledger.Statement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertStatement(ctx, s.db, st)
}

func insertStatement(ctx context.Context, db dbtx, st ledger.Statement) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO statements
		(statement_id, source_type, source, account, period_start, period_end,
		 parse_status, transaction_count, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.SourceType, st.Source, st.Account,
		st.PeriodStart.String(), st.PeriodEnd.String(),
		st.ParseStatus, st.TransactionCount,
		st.IngestedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &ledger.ConflictError{Entity: "statement", ID: string(st.ID)}
		}
		return fmt.Errorf("failed to insert statement: %w", err)
	}
	return nil
}

func (s *Store) GetStatement(ctx context.Context, id ledger.StatementID) (ledger.Statement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getStatement(ctx, s.db, id)
}

func getStatement(ctx context.Context, db dbtx, id ledger.StatementID) (ledger.Statement, error) {
	row := db.QueryRowContext(ctx, `
		SELECT statement_id, source_type, source, account, period_start, period_end,
		       parse_status, transaction_count, ingested_at
		FROM statements WHERE statement_id = ?`, id)
	st, err := scanStatement(row)
	if err == sql.ErrNoRows {
		return ledger.Statement{}, ledger.ErrStatementNotFound
	}
	return st, err
}

func (s *Store) StatementExists(ctx context.Context, id ledger.StatementID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return statementExists(ctx, s.db, id)
}

func statementExists(ctx context.Context, db dbtx, id ledger.StatementID) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM statements WHERE statement_id = ?`, id).Scan(&n)
	return n > 0, err
}

func (s *Store) ListStatements(ctx context.Context) ([]ledger.Statement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listStatements(ctx, s.db)
}

func listStatements(ctx context.Context, db dbtx) ([]ledger.Statement, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT statement_id, source_type, source, account, period_start, period_end,
		       parse_status, transaction_count, ingested_at
		FROM statements ORDER BY ingested_at ASC, statement_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ledger.Statement
	for rows.Next() {
		st, err := scanStatement(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, st)
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStatement(sc scanner) (ledger.Statement, error) {
	var st ledger.Statement
	var periodStart, periodEnd, ingestedAt string
	err := sc.Scan(&st.ID, &st.SourceType, &st.Source, &st.Account,
		&periodStart, &periodEnd, &st.ParseStatus, &st.TransactionCount, &ingestedAt)
	if err != nil {
		return ledger.Statement{}, err
	}
	if st.PeriodStart, err = ledger.ParseDate(periodStart); err != nil {
		return ledger.Statement{}, fmt.Errorf("bad period_start: %w", err)
	}
	if st.PeriodEnd, err = ledger.ParseDate(periodEnd); err != nil {
		return ledger.Statement{}, fmt.Errorf("bad period_end: %w", err)
	}
	st.IngestedAt, _ = time.Parse(time.RFC3339, ingestedAt)
	return st, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (s *Store) InsertTransactions(ctx context.Context, txs []ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := insertTransactions(ctx, sqlTx, txs); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func insertTransactions(ctx context.Context, db dbtx, txs []ledger.Transaction) error {
	for _, tx := range txs {
		_, err := db.ExecContext(ctx, `
			INSERT INTO transactions
			(transaction_id, statement_id, tx_date, description, debit, credit,
			 balance, currency, source, raw_line, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			tx.ID, tx.StatementID, tx.Date.String(), tx.Description,
			nullAmount(tx.Debit), nullAmount(tx.Credit), nullAmount(tx.Balance),
			tx.Currency, tx.Source, tx.RawLine,
			tx.CreatedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return &ledger.ConflictError{Entity: "transaction", ID: string(tx.ID)}
			}
			return fmt.Errorf("failed to insert transaction: %w", err)
		}
	}
	return nil
}

func (s *Store) GetTransaction(ctx context.Context, id ledger.TransactionID) (ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getTransaction(ctx, s.db, id)
}

func getTransaction(ctx context.Context, db dbtx, id ledger.TransactionID) (ledger.Transaction, error) {
	row := db.QueryRowContext(ctx, selectTransaction+` WHERE transaction_id = ?`, id)
	tx, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return ledger.Transaction{}, ledger.ErrTransactionNotFound
	}
	return tx, err
}

func (s *Store) TransactionExists(ctx context.Context, id ledger.TransactionID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return transactionExists(ctx, s.db, id)
}

func transactionExists(ctx context.Context, db dbtx, id ledger.TransactionID) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM transactions WHERE transaction_id = ?`, id).Scan(&n)
	return n > 0, err
}

const selectTransaction = `
	SELECT transaction_id, statement_id, tx_date, description, debit, credit,
	       balance, currency, source, raw_line, created_at
	FROM transactions`

func (s *Store) ListTransactions(ctx context.Context, f ledger.TransactionFilter) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listTransactions(ctx, s.db, f)
}

func listTransactions(ctx context.Context, db dbtx, f ledger.TransactionFilter) ([]ledger.Transaction, error) {
	query := selectTransaction
	var conds []string
	var args []any

	if f.From != nil {
		conds = append(conds, "tx_date >= ?")
		args = append(args, f.From.String())
	}
	if f.To != nil {
		conds = append(conds, "tx_date <= ?")
		args = append(args, f.To.String())
	}
	if f.Source != "" {
		conds = append(conds, "source = ?")
		args = append(args, f.Source)
	}
	if f.StatementID != "" {
		conds = append(conds, "statement_id = ?")
		args = append(args, f.StatementID)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY tx_date ASC, transaction_id ASC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	return queryTransactions(ctx, db, query, args...)
}

func queryTransactions(ctx context.Context, db dbtx, query string, args ...any) ([]ledger.Transaction, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tx)
	}
	return result, rows.Err()
}

func scanTransaction(sc scanner) (ledger.Transaction, error) {
	var tx ledger.Transaction
	var txDate, createdAt string
	var debit, credit, balance, rawLine sql.NullString
	err := sc.Scan(&tx.ID, &tx.StatementID, &txDate, &tx.Description,
		&debit, &credit, &balance, &tx.Currency, &tx.Source, &rawLine, &createdAt)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if tx.Date, err = ledger.ParseDate(txDate); err != nil {
		return ledger.Transaction{}, fmt.Errorf("bad tx_date: %w", err)
	}
	if tx.Debit, err = parseAmount(debit); err != nil {
		return ledger.Transaction{}, err
	}
	if tx.Credit, err = parseAmount(credit); err != nil {
		return ledger.Transaction{}, err
	}
	if tx.Balance, err = parseAmount(balance); err != nil {
		return ledger.Transaction{}, err
	}
	tx.RawLine = rawLine.String
	tx.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return tx, nil
}

func (s *Store) CountTransactions(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return countTransactions(ctx, s.db)
}

func countTransactions(ctx context.Context, db dbtx) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(1) FROM transactions`).Scan(&n)
	return n, err
}

func (s *Store) DeleteTransactions(ctx context.Context, ids []ledger.TransactionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := deleteTransactions(ctx, sqlTx, ids); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func deleteTransactions(ctx context.Context, db dbtx, ids []ledger.TransactionID) error {
	for _, id := range ids {
		if _, err := db.ExecContext(ctx,
			`DELETE FROM transactions WHERE transaction_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete transaction %s: %w", id, err)
		}
	}
	return nil
}

// =============================================================================
// LINEAGE
// =============================================================================

func (s *Store) InsertLineage(ctx context.Context, edge ledger.Lineage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertLineage(ctx, s.db, edge)
}

func insertLineage(ctx context.Context, db dbtx, edge ledger.Lineage) error {
	evidenceJSON, _ := json.Marshal(edge.Evidence)
	_, err := db.ExecContext(ctx, `
		INSERT INTO lineage
		(from_transaction_id, to_transaction_id, pair_key, relationship_type,
		 confidence, evidence_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		edge.FromID, edge.ToID, pairKey(edge.FromID, edge.ToID),
		edge.Type, edge.Confidence, string(evidenceJSON),
		edge.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &ledger.ConflictError{
				Entity: "lineage",
				ID:     string(edge.FromID) + "->" + string(edge.ToID),
			}
		}
		return fmt.Errorf("failed to insert lineage: %w", err)
	}
	return nil
}

// pairKey normalizes an edge's endpoints so the UNIQUE index catches the
// reversed direction too.
func pairKey(a, b ledger.TransactionID) string {
	if a < b {
		return string(a) + "|" + string(b)
	}
	return string(b) + "|" + string(a)
}

func (s *Store) PairLinked(ctx context.Context, a, b ledger.TransactionID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lineagePairLinked(ctx, s.db, a, b)
}

func lineagePairLinked(ctx context.Context, db dbtx, a, b ledger.TransactionID) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM lineage WHERE pair_key = ?`, pairKey(a, b)).Scan(&n)
	return n > 0, err
}

func (s *Store) LineageFor(ctx context.Context, id ledger.TransactionID) ([]ledger.Lineage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lineageFor(ctx, s.db, id)
}

func lineageFor(ctx context.Context, db dbtx, id ledger.TransactionID) ([]ledger.Lineage, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT from_transaction_id, to_transaction_id, relationship_type,
		       confidence, evidence_json, created_at
		FROM lineage
		WHERE from_transaction_id = ? OR to_transaction_id = ?
		ORDER BY id ASC`, id, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ledger.Lineage
	for rows.Next() {
		var e ledger.Lineage
		var evidenceJSON sql.NullString
		var createdAt string
		if err := rows.Scan(&e.FromID, &e.ToID, &e.Type, &e.Confidence,
			&evidenceJSON, &createdAt); err != nil {
			return nil, err
		}
		if evidenceJSON.Valid {
			_ = json.Unmarshal([]byte(evidenceJSON.String), &e.Evidence)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		result = append(result, e)
	}
	return result, rows.Err()
}

func (s *Store) UnlinkedTransactions(ctx context.Context) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return unlinkedTransactions(ctx, s.db)
}

func unlinkedTransactions(ctx context.Context, db dbtx) ([]ledger.Transaction, error) {
	return queryTransactions(ctx, db, selectTransaction+`
		WHERE NOT EXISTS (
			SELECT 1 FROM lineage l
			WHERE l.from_transaction_id = transactions.transaction_id
			   OR l.to_transaction_id = transactions.transaction_id
		)
		ORDER BY tx_date ASC, transaction_id ASC`)
}

// =============================================================================
// INGESTION LOG
// =============================================================================

func (s *Store) AppendLog(ctx context.Context, entries []ledger.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendLog(ctx, s.db, entries)
}

func appendLog(ctx context.Context, db dbtx, entries []ledger.LogEntry) error {
	for _, e := range entries {
		_, err := db.ExecContext(ctx, `
			INSERT INTO ingestion_log (statement_id, level, message, timestamp)
			VALUES (?, ?, ?, ?)`,
			e.StatementID, e.Level, e.Message,
			e.Timestamp.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("failed to append log entry: %w", err)
		}
	}
	return nil
}

func (s *Store) LogsForStatement(ctx context.Context, id ledger.StatementID) ([]ledger.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return logsForStatement(ctx, s.db, id)
}

func logsForStatement(ctx context.Context, db dbtx, id ledger.StatementID) ([]ledger.LogEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT statement_id, level, message, timestamp
		FROM ingestion_log WHERE statement_id = ? ORDER BY id ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ledger.LogEntry
	for rows.Next() {
		var e ledger.LogEntry
		var ts string
		if err := rows.Scan(&e.StatementID, &e.Level, &e.Message, &ts); err != nil {
			return nil, err
		}
		e.Timestamp, _ = time.Parse(time.RFC3339, ts)
		result = append(result, e)
	}
	return result, rows.Err()
}

// =============================================================================
// ATOMIC UNITS
// =============================================================================

// WithTx executes fn within a database transaction. The store mutex is held
// for the whole unit, so one ingest (or one detection pass) is a single
// logical writer.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore is the transactional view handed to WithTx callbacks.
// The parent mutex is already held; no further locking.
type txStore struct {
	tx *sql.Tx
}

func (t *txStore) InsertStatement(ctx context.Context, st ledger.Statement) error {
	return insertStatement(ctx, t.tx, st)
}

func (t *txStore) GetStatement(ctx context.Context, id ledger.StatementID) (ledger.Statement, error) {
	return getStatement(ctx, t.tx, id)
}

func (t *txStore) StatementExists(ctx context.Context, id ledger.StatementID) (bool, error) {
	return statementExists(ctx, t.tx, id)
}

func (t *txStore) ListStatements(ctx context.Context) ([]ledger.Statement, error) {
	return listStatements(ctx, t.tx)
}

func (t *txStore) InsertTransactions(ctx context.Context, txs []ledger.Transaction) error {
	return insertTransactions(ctx, t.tx, txs)
}

func (t *txStore) GetTransaction(ctx context.Context, id ledger.TransactionID) (ledger.Transaction, error) {
	return getTransaction(ctx, t.tx, id)
}

func (t *txStore) TransactionExists(ctx context.Context, id ledger.TransactionID) (bool, error) {
	return transactionExists(ctx, t.tx, id)
}

func (t *txStore) ListTransactions(ctx context.Context, f ledger.TransactionFilter) ([]ledger.Transaction, error) {
	return listTransactions(ctx, t.tx, f)
}

func (t *txStore) CountTransactions(ctx context.Context) (int, error) {
	return countTransactions(ctx, t.tx)
}

func (t *txStore) DeleteTransactions(ctx context.Context, ids []ledger.TransactionID) error {
	return deleteTransactions(ctx, t.tx, ids)
}

func (t *txStore) InsertLineage(ctx context.Context, edge ledger.Lineage) error {
	return insertLineage(ctx, t.tx, edge)
}

func (t *txStore) PairLinked(ctx context.Context, a, b ledger.TransactionID) (bool, error) {
	return lineagePairLinked(ctx, t.tx, a, b)
}

func (t *txStore) LineageFor(ctx context.Context, id ledger.TransactionID) ([]ledger.Lineage, error) {
	return lineageFor(ctx, t.tx, id)
}

func (t *txStore) UnlinkedTransactions(ctx context.Context) ([]ledger.Transaction, error) {
	return unlinkedTransactions(ctx, t.tx)
}

func (t *txStore) AppendLog(ctx context.Context, entries []ledger.LogEntry) error {
	return appendLog(ctx, t.tx, entries)
}

func (t *txStore) LogsForStatement(ctx context.Context, id ledger.StatementID) ([]ledger.LogEntry, error) {
	return logsForStatement(ctx, t.tx, id)
}

// WithTx on a transactional view runs fn directly: the outer unit already
// owns the database transaction.
func (t *txStore) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	return fn(t)
}

// =============================================================================
// HELPERS
// =============================================================================

func nullAmount(d decimal.NullDecimal) sql.NullString {
	if !d.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: d.Decimal.String(), Valid: true}
}

func parseAmount(s sql.NullString) (decimal.NullDecimal, error) {
	if !s.Valid {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("bad amount %q: %w", s.String, err)
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
