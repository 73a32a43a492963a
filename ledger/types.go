/*
Package ledger provides the core entities of the FinTrack ledger engine.

PURPOSE:
  This package contains the durable entities shared by every subsystem:
  Statements (one per ingested source document), Transactions (one per
  ledger line), Lineage edges (inferred relationships between transactions)
  and the append-only IngestionLog.

KEY CONCEPTS IN THIS FILE (types.go):
  - Statement: provenance + idempotency anchor for one source document
  - Transaction: immutable ledger line with content-derived identity
  - Lineage: directed, typed, confidence-scored edge between transactions
  - Date: calendar-day time abstraction (statement data is day-granular)

DESIGN PRINCIPLES:
  1. Immutability: Transactions and Lineage edges are never modified
  2. Precision: decimal.Decimal for money, never float64
  3. Determinism: identity is a pure function of content (see identity.go)
  4. Auditability: every ingestion decision lands in the IngestionLog

SEE ALSO:
  - identity.go: content-hash identity computation
  - store.go: persistence interface
  - errors.go: sentinel and structured errors
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// StatementID is the sha256 hex digest of the raw source document bytes.
type StatementID string

// TransactionID is the sha256 hex digest of the transaction's defining fields.
type TransactionID string

// =============================================================================
// DATE - Calendar-day granularity (statement rows carry no time of day)
// =============================================================================

type Date struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses the canonical YYYY-MM-DD form used in storage and archives.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), now.Month(), now.Day())
}

// Comparison
func (d Date) Before(other Date) bool { return d.normalize().Before(other.normalize()) }
func (d Date) Equal(other Date) bool  { return d.normalize().Equal(other.normalize()) }
func (d Date) After(other Date) bool  { return d.normalize().After(other.normalize()) }
func (d Date) IsZero() bool           { return d.Time.IsZero() }

func (d Date) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{Time: d.Time.AddDate(0, 0, n)} }

// DaysApart returns the absolute distance in calendar days between two dates.
func DaysApart(a, b Date) int {
	delta := int(a.normalize().Sub(b.normalize()).Hours() / 24)
	if delta < 0 {
		delta = -delta
	}
	return delta
}

// MonthKey returns the YYYY-MM bucket used for archive file naming.
func (d Date) MonthKey() string { return d.Time.Format("2006-01") }

func (d Date) String() string { return d.normalize().Format("2006-01-02") }

// =============================================================================
// STATEMENT - One ingested source document
// =============================================================================

type SourceType string

const (
	SourceBank SourceType = "bank"
	SourceCard SourceType = "card"
)

type ParseStatus string

const (
	ParseSuccess ParseStatus = "success"
	ParsePartial ParseStatus = "partial"
	ParseFailed  ParseStatus = "failed"
)

// Statement tracks provenance and enforces at-most-once ingestion: its ID is
// a content hash of the source bytes, and the store rejects a second insert.
type Statement struct {
	ID               StatementID
	SourceType       SourceType
	Source           string // issuer code, e.g. "SBI", "AMEX"
	Account          string // masked account reference
	PeriodStart      Date
	PeriodEnd        Date
	ParseStatus      ParseStatus
	TransactionCount int
	IngestedAt       time.Time
}

// =============================================================================
// TRANSACTION - One immutable ledger line
// =============================================================================

type Transaction struct {
	ID          TransactionID
	StatementID StatementID
	Date        Date
	Description string
	Debit       decimal.NullDecimal
	Credit      decimal.NullDecimal
	Balance     decimal.NullDecimal
	Currency    string
	Source      string
	RawLine     string // verbatim source text, preserved for audit
	CreatedAt   time.Time
}

// IsDebit reports whether the row moves money out of the account.
// Rows with both sides set (balance adjustments) are neither.
func (t Transaction) IsDebit() bool { return t.Debit.Valid && !t.Credit.Valid }

// IsCredit reports whether the row moves money into the account.
func (t Transaction) IsCredit() bool { return t.Credit.Valid && !t.Debit.Valid }

// Magnitude returns the row's amount irrespective of direction.
// For both-sides-set rows the debit side wins. ok is false when the row
// carries no amount at all.
func (t Transaction) Magnitude() (decimal.Decimal, bool) {
	if t.Debit.Valid {
		return t.Debit.Decimal, true
	}
	if t.Credit.Valid {
		return t.Credit.Decimal, true
	}
	return decimal.Zero, false
}

// =============================================================================
// LINEAGE - Inferred relationship between two transactions
// =============================================================================

type RelationType string

const (
	RelationDuplicate RelationType = "duplicate"
	RelationCCPayment RelationType = "cc_payment"
	RelationRefund    RelationType = "refund"
	RelationTransfer  RelationType = "transfer"
)

// Evidence captures why an edge was inferred. Stored alongside the edge so
// a reviewer can audit the match without replaying detection.
type Evidence struct {
	Amount        decimal.Decimal `json:"amount"`
	DateDeltaDays int             `json:"date_delta_days"`
	Similarity    float64         `json:"similarity"`
	Reason        string          `json:"reason,omitempty"`
}

// Lineage is a directed edge: money flows From the debit side To the credit
// side. Edges are created once and never mutated or retracted.
type Lineage struct {
	FromID     TransactionID
	ToID       TransactionID
	Type       RelationType
	Confidence float64
	Evidence   Evidence
	CreatedAt  time.Time
}

// =============================================================================
// INGESTION LOG - Append-only audit trail
// =============================================================================

type LogLevel string

const (
	LevelDebug   LogLevel = "debug"
	LevelInfo    LogLevel = "info"
	LevelWarning LogLevel = "warning"
	LevelError   LogLevel = "error"
)

type LogEntry struct {
	StatementID StatementID
	Level       LogLevel
	Message     string
	Timestamp   time.Time
}
