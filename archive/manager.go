/*
Package archive moves old transactions into flat cold-storage files and
restores them, without duplicating or losing data.

PURPOSE:
  Archive(cutoff) exports transactions dated before the cutoff into one
  CSV file per calendar month, records a manifest entry, and only then
  removes the exported rows from the live ledger. Restore(path) reads
  such a file back, skipping rows that already exist, preserving the
  original identity fields exactly.

ORDERING GUARANTEE:
  Write-then-delete, per file. A month's rows are removed from the live
  ledger only after its CSV is durably on disk (temp file + fsync +
  rename). If one month's file fails, its rows stay live and the error
  is reported; other months proceed independently.

IDEMPOTENCE:
  Restore is always safe to re-run: rows whose transaction_id is already
  live are skipped and counted, never duplicated. IDs are restored
  verbatim - never re-derived - so an archive/restore round trip leaves
  the visible transaction set identical.

FILE FORMAT:
  Human-inspectable CSV, one row per transaction, all fields. Companion
  archive_manifest.json lists runs, timestamps and per-file row counts.

SEE ALSO:
  - archive/manifest.go: manifest schema and durable writes
  - ledger/store.go: DeleteTransactions is reserved for this package
*/
package archive

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/fintrack/ledger-engine/ledger"
)

var csvHeader = []string{
	"transaction_id", "statement_id", "date", "description",
	"debit", "credit", "balance", "currency", "source", "raw_line", "created_at",
}

// Config carries the archival settings. An explicit value object - there is
// no process-wide archive state.
type Config struct {
	Dir string // cold-storage directory; created on first use
}

// ArchiveResult is the structured outcome of one Archive run.
type ArchiveResult struct {
	ExportedCount int
	ManifestPath  string
	Files         []Entry
	Errors        []string
}

// RestoreResult is the structured outcome of one Restore run.
type RestoreResult struct {
	Restored        int
	SkippedExisting int
	Errors          []string
}

// Manager exports and restores cold transactions.
type Manager struct {
	store ledger.Store
	dir   string
	log   zerolog.Logger
}

func New(store ledger.Store, cfg Config, log zerolog.Logger) *Manager {
	return &Manager{store: store, dir: cfg.Dir, log: log}
}

// =============================================================================
// ARCHIVE
// =============================================================================

// Archive exports all transactions dated strictly before cutoff, one CSV per
// calendar month, then removes the exported rows. Per-file transactional:
// a failed month leaves its rows live and is reported in Errors.
func (m *Manager) Archive(ctx context.Context, cutoff ledger.Date) (ArchiveResult, error) {
	result := ArchiveResult{ManifestPath: filepath.Join(m.dir, ManifestName)}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return result, fmt.Errorf("failed to create archive directory: %w", err)
	}

	// date < cutoff, i.e. everything up to and including the previous day.
	last := cutoff.AddDays(-1)
	txs, err := m.store.ListTransactions(ctx, ledger.TransactionFilter{To: &last})
	if err != nil {
		return result, fmt.Errorf("failed to select archivable transactions: %w", err)
	}
	if len(txs) == 0 {
		m.log.Info().Str("cutoff", cutoff.String()).Msg("nothing to archive")
		return result, nil
	}

	byMonth := make(map[string][]ledger.Transaction)
	for _, tx := range txs {
		key := tx.Date.MonthKey()
		byMonth[key] = append(byMonth[key], tx)
	}
	months := make([]string, 0, len(byMonth))
	for key := range byMonth {
		months = append(months, key)
	}
	sort.Strings(months)

	run := Run{
		RunID:      uuid.NewString(),
		ArchivedAt: time.Now().UTC(),
		Cutoff:     cutoff.String(),
	}

	for _, month := range months {
		rows := byMonth[month]
		filename := month + "-transactions.csv"

		if err := m.writeMonthFile(filepath.Join(m.dir, filename), rows); err != nil {
			msg := fmt.Sprintf("failed to archive %s: %v", month, err)
			m.log.Error().Str("month", month).Err(err).Msg("archive file write failed")
			result.Errors = append(result.Errors, msg)
			continue
		}

		// The file is durable; only now do the rows leave the live ledger.
		ids := make([]ledger.TransactionID, len(rows))
		for i, tx := range rows {
			ids[i] = tx.ID
		}
		err := m.store.WithTx(ctx, func(s ledger.Store) error {
			return s.DeleteTransactions(ctx, ids)
		})
		if err != nil {
			msg := fmt.Sprintf("archived %s but failed to remove live rows: %v", month, err)
			m.log.Error().Str("month", month).Err(err).Msg("post-archive delete failed")
			result.Errors = append(result.Errors, msg)
			continue
		}

		entry := Entry{Month: month, File: filename, Rows: len(rows)}
		run.Entries = append(run.Entries, entry)
		result.Files = append(result.Files, entry)
		result.ExportedCount += len(rows)
		m.log.Info().Str("month", month).Int("rows", len(rows)).Msg("month archived")
	}

	if len(run.Entries) > 0 {
		manifest, err := loadManifest(result.ManifestPath)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			return result, nil
		}
		manifest.Runs = append(manifest.Runs, run)
		if err := manifest.save(result.ManifestPath); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to write manifest: %v", err))
		}
	}
	return result, nil
}

// writeMonthFile writes rows to a temp file, syncs, and renames into place,
// so a crash never leaves a half-written archive behind.
func (m *Manager) writeMonthFile(path string, rows []ledger.Transaction) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".archive-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(csvHeader); err != nil {
		tmp.Close()
		return err
	}
	for _, tx := range rows {
		record := []string{
			string(tx.ID),
			string(tx.StatementID),
			tx.Date.String(),
			tx.Description,
			amountField(tx.Debit),
			amountField(tx.Credit),
			amountField(tx.Balance),
			tx.Currency,
			tx.Source,
			tx.RawLine,
			tx.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			tmp.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// =============================================================================
// RESTORE
// =============================================================================

// Restore reads an archive file back into the live ledger. Rows whose
// transaction_id already exists are skipped; restored rows keep their
// original identity fields exactly. Restored transactions re-enter the
// unlinked pool and become eligible for the next detection pass.
func (m *Manager) Restore(ctx context.Context, path string) (RestoreResult, error) {
	var result RestoreResult

	f, err := os.Open(path)
	if err != nil {
		return result, fmt.Errorf("failed to open archive file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return result, fmt.Errorf("failed to read archive header: %w", err)
	}
	cols, err := columnIndex(header)
	if err != nil {
		return result, err
	}

	var rows []ledger.Transaction
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return result, fmt.Errorf("failed to read archive row: %w", err)
		}
		tx, err := parseRow(record, cols)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		rows = append(rows, tx)
	}

	err = m.store.WithTx(ctx, func(s ledger.Store) error {
		for _, tx := range rows {
			exists, err := s.TransactionExists(ctx, tx.ID)
			if err != nil {
				return err
			}
			if exists {
				result.SkippedExisting++
				continue
			}
			if err := s.InsertTransactions(ctx, []ledger.Transaction{tx}); err != nil {
				return err
			}
			result.Restored++
		}
		return nil
	})
	if err != nil {
		result.Restored = 0
		result.SkippedExisting = 0
		return result, fmt.Errorf("failed to restore rows: %w", err)
	}

	m.log.Info().
		Str("file", filepath.Base(path)).
		Int("restored", result.Restored).
		Int("skipped", result.SkippedExisting).
		Msg("archive restored")
	return result, nil
}

func columnIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	for _, required := range csvHeader[:4] {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("archive file missing %q column", required)
		}
	}
	return cols, nil
}

func parseRow(record []string, cols map[string]int) (ledger.Transaction, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	id := field("transaction_id")
	if id == "" {
		return ledger.Transaction{}, fmt.Errorf("missing transaction_id")
	}
	date, err := ledger.ParseDate(field("date"))
	if err != nil {
		return ledger.Transaction{}, fmt.Errorf("bad date %q: %w", field("date"), err)
	}
	debit, err := parseAmountField(field("debit"))
	if err != nil {
		return ledger.Transaction{}, err
	}
	credit, err := parseAmountField(field("credit"))
	if err != nil {
		return ledger.Transaction{}, err
	}
	balance, err := parseAmountField(field("balance"))
	if err != nil {
		return ledger.Transaction{}, err
	}
	createdAt, _ := time.Parse(time.RFC3339, field("created_at"))

	return ledger.Transaction{
		ID:          ledger.TransactionID(id),
		StatementID: ledger.StatementID(field("statement_id")),
		Date:        date,
		Description: field("description"),
		Debit:       debit,
		Credit:      credit,
		Balance:     balance,
		Currency:    field("currency"),
		Source:      field("source"),
		RawLine:     field("raw_line"),
		CreatedAt:   createdAt,
	}, nil
}

func amountField(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

func parseAmountField(s string) (decimal.NullDecimal, error) {
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("bad amount %q: %w", s, err)
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}
