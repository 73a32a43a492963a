/*
Package ingest turns one parsed statement into durable ledger rows,
exactly once per unique source content.

PURPOSE:
  The ingestor owns the write path for statements and transactions:

  1. Idempotency check: statement identity is a content hash of the raw
     source bytes; re-uploading byte-identical content is a no-op.
  2. Identity assignment: every candidate gets a deterministic transaction
     ID; identical defining fields within one statement collapse to one row
     (keep first, warn on the rest).
  3. Atomic insert: statement + transactions + audit log commit as one
     unit; readers never observe a partial statement.
  4. Audit logging: every parser issue and every collision decision is
     appended to the ingestion log tagged with the statement ID.
  5. Lineage trigger: after a successful commit the detector runs over the
     unlinked pool, scoped to pairs involving the new rows.

PROPAGATION POLICY:
  Expected conditions (duplicate statement, malformed parse) come back as
  structured Results, never as errors. Only storage failures propagate.

SEE ALSO:
  - parser/parser.go: the collaborator contract this consumes
  - lineage/detector.go: invoked after each successful commit
*/
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fintrack/ledger-engine/ledger"
	"github.com/fintrack/ledger-engine/lineage"
	"github.com/fintrack/ledger-engine/parser"
)

// Detector is the post-commit lineage hook. *lineage.Detector satisfies it;
// tests may substitute their own.
type Detector interface {
	Detect(ctx context.Context, added []ledger.Transaction) (lineage.Report, error)
}

// Result is the structured outcome of one ingestion attempt.
type Result struct {
	Statement            ledger.Statement
	TransactionsIngested int
	IsDuplicate          bool
	EdgesDetected        int
	Issues               []string
}

// Ingestor writes parsed statements into the ledger.
type Ingestor struct {
	store    ledger.Store
	detector Detector // nil disables the lineage trigger
	log      zerolog.Logger
}

func New(store ledger.Store, detector Detector, log zerolog.Logger) *Ingestor {
	return &Ingestor{store: store, detector: detector, log: log}
}

// Ingest persists one parsed statement. rawBytes is the original source
// document, used only for identity. Returns an error only for storage
// failures; duplicates and malformed parses are designed-for outcomes.
func (in *Ingestor) Ingest(ctx context.Context, rawBytes []byte, parsed parser.Parsed) (Result, error) {
	stmtID := ledger.ComputeStatementID(rawBytes)
	log := in.log.With().Str("statement_id", string(stmtID)).Logger()

	// Step 1 - idempotency check. Byte-identical content is a no-op.
	if existing, err := in.store.GetStatement(ctx, stmtID); err == nil {
		log.Info().Str("source", existing.Source).Msg("statement already ingested, skipping")
		return Result{Statement: existing, IsDuplicate: true}, nil
	} else if !ledger.IsNotFound(err) {
		return Result{}, fmt.Errorf("idempotency check failed: %w", err)
	}

	now := time.Now().UTC()
	var issues []string
	var entries []ledger.LogEntry
	for _, iss := range parsed.Issues {
		issues = append(issues, iss.Message)
		entries = append(entries, ledger.LogEntry{
			StatementID: stmtID, Level: iss.Level, Message: iss.Message, Timestamp: now,
		})
	}

	// Malformed statements are still recorded, with zero transactions, so the
	// attempt is auditable and a retry of the same bytes stays a no-op.
	if reason := validate(parsed); reason != "" {
		return in.commitFailed(ctx, log, stmtID, parsed, reason, now, issues, entries)
	}

	// Step 2 - identity assignment with intra-statement dedup (keep first).
	txs, collisions := buildTransactions(stmtID, parsed, now)
	for _, msg := range collisions {
		issues = append(issues, msg)
		entries = append(entries, ledger.LogEntry{
			StatementID: stmtID, Level: ledger.LevelWarning, Message: msg, Timestamp: now,
		})
	}

	status := ledger.ParseSuccess
	if len(txs) == 0 || len(parsed.Issues) > 0 {
		status = ledger.ParsePartial
	}
	st := ledger.Statement{
		ID:               stmtID,
		SourceType:       parsed.SourceType,
		Source:           parsed.Source,
		Account:          parsed.Account,
		PeriodStart:      parsed.PeriodStart,
		PeriodEnd:        parsed.PeriodEnd,
		ParseStatus:      status,
		TransactionCount: len(txs),
		IngestedAt:       now,
	}
	entries = append(entries, ledger.LogEntry{
		StatementID: stmtID,
		Level:       ledger.LevelInfo,
		Message:     fmt.Sprintf("ingested %d transactions from %s", len(txs), parsed.Source),
		Timestamp:   now,
	})

	// Step 3+4 - all-or-nothing commit of statement, transactions and log.
	err := in.store.WithTx(ctx, func(s ledger.Store) error {
		if err := s.InsertStatement(ctx, st); err != nil {
			return err
		}
		if len(txs) > 0 {
			if err := s.InsertTransactions(ctx, txs); err != nil {
				return err
			}
		}
		return s.AppendLog(ctx, entries)
	})
	if err != nil {
		// A concurrent writer beat us to the same content hash. Fall back to
		// the duplicate path instead of surfacing a conflict.
		if ledger.IsConflict(err) {
			existing, getErr := in.store.GetStatement(ctx, stmtID)
			if getErr != nil {
				return Result{}, fmt.Errorf("duplicate fallback read failed: %w", getErr)
			}
			log.Info().Msg("lost ingestion race, statement already present")
			return Result{Statement: existing, IsDuplicate: true, Issues: issues}, nil
		}
		return Result{}, fmt.Errorf("ingestion commit failed: %w", err)
	}

	log.Info().
		Str("source", parsed.Source).
		Int("transactions", len(txs)).
		Str("parse_status", string(status)).
		Msg("statement ingested")

	result := Result{Statement: st, TransactionsIngested: len(txs), Issues: issues}

	// Step 5 - lineage trigger, scoped to pairs touching the new rows. The
	// statement is already committed; a detection failure is reported, not
	// allowed to undo the ingest.
	if in.detector != nil && len(txs) > 0 {
		report, err := in.detector.Detect(ctx, txs)
		if err != nil {
			log.Error().Err(err).Msg("lineage detection failed")
			result.Issues = append(result.Issues, fmt.Sprintf("lineage detection failed: %v", err))
		} else {
			result.EdgesDetected = report.EdgesCreated
		}
	}
	return result, nil
}

// validate reports why a parsed statement is unusable, or "" when it is fine.
func validate(parsed parser.Parsed) string {
	switch {
	case parsed.Source == "":
		return "parsed statement missing source"
	case parsed.Account == "":
		return "parsed statement missing account reference"
	case parsed.PeriodStart.IsZero() || parsed.PeriodEnd.IsZero():
		return "parsed statement missing covered period"
	case parsed.PeriodEnd.Before(parsed.PeriodStart):
		return "parsed statement period ends before it starts"
	default:
		return ""
	}
}

func (in *Ingestor) commitFailed(ctx context.Context, log zerolog.Logger, stmtID ledger.StatementID,
	parsed parser.Parsed, reason string, now time.Time, issues []string, entries []ledger.LogEntry) (Result, error) {

	issues = append(issues, reason)
	entries = append(entries, ledger.LogEntry{
		StatementID: stmtID, Level: ledger.LevelError, Message: reason, Timestamp: now,
	})
	st := ledger.Statement{
		ID:          stmtID,
		SourceType:  parsed.SourceType,
		Source:      parsed.Source,
		Account:     parsed.Account,
		PeriodStart: parsed.PeriodStart,
		PeriodEnd:   parsed.PeriodEnd,
		ParseStatus: ledger.ParseFailed,
		IngestedAt:  now,
	}
	// Failed statements may lack a period; store sentinel day zero dates.
	if st.PeriodStart.IsZero() {
		st.PeriodStart = ledger.NewDate(1, time.January, 1)
	}
	if st.PeriodEnd.IsZero() {
		st.PeriodEnd = st.PeriodStart
	}

	err := in.store.WithTx(ctx, func(s ledger.Store) error {
		if err := s.InsertStatement(ctx, st); err != nil {
			return err
		}
		return s.AppendLog(ctx, entries)
	})
	if err != nil {
		if ledger.IsConflict(err) {
			existing, getErr := in.store.GetStatement(ctx, stmtID)
			if getErr != nil {
				return Result{}, fmt.Errorf("duplicate fallback read failed: %w", getErr)
			}
			return Result{Statement: existing, IsDuplicate: true, Issues: issues}, nil
		}
		return Result{}, fmt.Errorf("failed-statement commit failed: %w", err)
	}

	log.Error().Str("reason", reason).Msg("statement recorded as parse failure")
	return Result{Statement: st, Issues: issues}, nil
}

// buildTransactions assigns deterministic IDs and collapses candidates whose
// defining fields are identical within the statement.
func buildTransactions(stmtID ledger.StatementID, parsed parser.Parsed, now time.Time) ([]ledger.Transaction, []string) {
	var txs []ledger.Transaction
	var collisions []string
	seen := make(map[ledger.TransactionID]int) // ID -> first occurrence index

	for i, c := range parsed.Candidates {
		id := ledger.ComputeTransactionID(stmtID, c.Date, c.Description, c.Debit, c.Credit)
		if first, ok := seen[id]; ok {
			collisions = append(collisions, fmt.Sprintf(
				"candidate %d collides with candidate %d (%s %q), keeping first",
				i, first, c.Date, c.Description))
			continue
		}
		seen[id] = i
		txs = append(txs, ledger.Transaction{
			ID:          id,
			StatementID: stmtID,
			Date:        c.Date,
			Description: c.Description,
			Debit:       c.Debit,
			Credit:      c.Credit,
			Balance:     c.Balance,
			Currency:    "INR",
			Source:      parsed.Source,
			RawLine:     c.RawLine,
			CreatedAt:   now,
		})
	}
	return txs, collisions
}
