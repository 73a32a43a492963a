package archive_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintrack/ledger-engine/archive"
	"github.com/fintrack/ledger-engine/ledger"
	"github.com/fintrack/ledger-engine/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newManager(t *testing.T) (*archive.Manager, *store.Memory, string) {
	t.Helper()
	dir := t.TempDir()
	mem := store.NewMemory()
	return archive.New(mem, archive.Config{Dir: dir}, zerolog.Nop()), mem, dir
}

func amt(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(s), Valid: true}
}

func coldTx(id string, date ledger.Date, desc string) ledger.Transaction {
	return ledger.Transaction{
		ID:          ledger.TransactionID(id),
		StatementID: "stmt-1",
		Date:        date,
		Description: desc,
		Debit:       amt("250.00"),
		Currency:    "INR",
		Source:      "SBI",
		RawLine:     "raw " + desc,
		CreatedAt:   time.Date(2024, time.January, 2, 10, 0, 0, 0, time.UTC),
	}
}

// =============================================================================
// ARCHIVE
// =============================================================================

func TestArchive_ExportsMonthsBeforeCutoff(t *testing.T) {
	// GIVEN: transactions on both sides of the cutoff
	// WHEN: archiving before 2024-01-01
	// THEN: only the December rows go cold, in one monthly file, and the
	//       manifest records the run

	mgr, mem, dir := newManager(t)
	ctx := context.Background()

	require.NoError(t, mem.InsertTransactions(ctx, []ledger.Transaction{
		coldTx("tx-dec-1", ledger.NewDate(2023, time.December, 10), "Old grocery"),
		coldTx("tx-dec-2", ledger.NewDate(2023, time.December, 28), "Old fuel"),
		coldTx("tx-feb", ledger.NewDate(2024, time.February, 5), "Recent rent"),
	}))

	result, err := mgr.Archive(ctx, ledger.NewDate(2024, time.January, 1))
	require.NoError(t, err)

	assert.Equal(t, 2, result.ExportedCount)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Files, 1)
	assert.Equal(t, "2023-12", result.Files[0].Month)
	assert.Equal(t, "2023-12-transactions.csv", result.Files[0].File)
	assert.Equal(t, 2, result.Files[0].Rows)

	// Exported rows left the live ledger; recent rows stayed.
	count, err := mem.CountTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	_, err = mem.GetTransaction(ctx, "tx-feb")
	assert.NoError(t, err)

	// The monthly file and the manifest are on disk.
	assert.FileExists(t, filepath.Join(dir, "2023-12-transactions.csv"))
	data, err := os.ReadFile(filepath.Join(dir, archive.ManifestName))
	require.NoError(t, err)
	var manifest archive.Manifest
	require.NoError(t, json.Unmarshal(data, &manifest))
	require.Len(t, manifest.Runs, 1)
	assert.NotEmpty(t, manifest.Runs[0].RunID)
	assert.Equal(t, "2024-01-01", manifest.Runs[0].Cutoff)
	require.Len(t, manifest.Runs[0].Entries, 1)
	assert.Equal(t, 2, manifest.Runs[0].Entries[0].Rows)
}

func TestArchive_CutoffIsExclusive(t *testing.T) {
	// A transaction dated exactly on the cutoff day stays live.

	mgr, mem, _ := newManager(t)
	ctx := context.Background()

	require.NoError(t, mem.InsertTransactions(ctx, []ledger.Transaction{
		coldTx("tx-on-cutoff", ledger.NewDate(2024, time.January, 1), "Boundary row"),
		coldTx("tx-before", ledger.NewDate(2023, time.December, 31), "Cold row"),
	}))

	result, err := mgr.Archive(ctx, ledger.NewDate(2024, time.January, 1))
	require.NoError(t, err)

	assert.Equal(t, 1, result.ExportedCount)
	_, err = mem.GetTransaction(ctx, "tx-on-cutoff")
	assert.NoError(t, err, "cutoff-day row must stay live")
}

func TestArchive_NothingToDo(t *testing.T) {
	mgr, _, dir := newManager(t)

	result, err := mgr.Archive(context.Background(), ledger.NewDate(2024, time.January, 1))
	require.NoError(t, err)

	assert.Zero(t, result.ExportedCount)
	assert.Empty(t, result.Files)
	assert.NoFileExists(t, filepath.Join(dir, archive.ManifestName), "empty runs write no manifest")
}

func TestArchive_SplitsByMonth(t *testing.T) {
	mgr, mem, dir := newManager(t)
	ctx := context.Background()

	require.NoError(t, mem.InsertTransactions(ctx, []ledger.Transaction{
		coldTx("tx-nov", ledger.NewDate(2023, time.November, 15), "November row"),
		coldTx("tx-dec", ledger.NewDate(2023, time.December, 15), "December row"),
	}))

	result, err := mgr.Archive(ctx, ledger.NewDate(2024, time.January, 1))
	require.NoError(t, err)

	require.Len(t, result.Files, 2)
	assert.Equal(t, "2023-11", result.Files[0].Month, "months are emitted in order")
	assert.Equal(t, "2023-12", result.Files[1].Month)
	assert.FileExists(t, filepath.Join(dir, "2023-11-transactions.csv"))
	assert.FileExists(t, filepath.Join(dir, "2023-12-transactions.csv"))
}

func TestArchive_FailedMonthIsIsolated(t *testing.T) {
	// GIVEN: two archivable months, one of whose target files cannot be written
	// THEN: the other month still goes cold, the failed month's rows stay live,
	//       and the manifest lists only the month that succeeded

	mgr, mem, dir := newManager(t)
	ctx := context.Background()

	require.NoError(t, mem.InsertTransactions(ctx, []ledger.Transaction{
		coldTx("tx-nov", ledger.NewDate(2023, time.November, 15), "November row"),
		coldTx("tx-dec", ledger.NewDate(2023, time.December, 15), "December row"),
	}))

	// A directory squatting on the December target path makes the rename fail.
	require.NoError(t, os.Mkdir(filepath.Join(dir, "2023-12-transactions.csv"), 0o755))

	result, err := mgr.Archive(ctx, ledger.NewDate(2024, time.January, 1))
	require.NoError(t, err, "a failed month is reported, not raised")

	assert.Equal(t, 1, result.ExportedCount)
	require.Len(t, result.Files, 1)
	assert.Equal(t, "2023-11", result.Files[0].Month)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "2023-12")

	// December's rows never left the live ledger; November's did.
	_, err = mem.GetTransaction(ctx, "tx-dec")
	assert.NoError(t, err)
	_, err = mem.GetTransaction(ctx, "tx-nov")
	assert.ErrorIs(t, err, ledger.ErrTransactionNotFound)
	assert.FileExists(t, filepath.Join(dir, "2023-11-transactions.csv"))

	data, err := os.ReadFile(filepath.Join(dir, archive.ManifestName))
	require.NoError(t, err)
	var manifest archive.Manifest
	require.NoError(t, json.Unmarshal(data, &manifest))
	require.Len(t, manifest.Runs, 1)
	require.Len(t, manifest.Runs[0].Entries, 1)
	assert.Equal(t, "2023-11", manifest.Runs[0].Entries[0].Month)
}

// =============================================================================
// RESTORE - Archive round trip
// =============================================================================

func TestArchiveRestore_RoundTrip(t *testing.T) {
	// GIVEN: an archived month
	// WHEN: the file is restored
	// THEN: the visible transaction set is identical to before the archive,
	//       identity fields preserved verbatim

	mgr, mem, dir := newManager(t)
	ctx := context.Background()

	original := coldTx("tx-dec-1", ledger.NewDate(2023, time.December, 10), "Old grocery")
	original.Balance = amt("10500.50")
	require.NoError(t, mem.InsertTransactions(ctx, []ledger.Transaction{original}))

	_, err := mgr.Archive(ctx, ledger.NewDate(2024, time.January, 1))
	require.NoError(t, err)
	count, err := mem.CountTransactions(ctx)
	require.NoError(t, err)
	require.Zero(t, count, "archived row left the live ledger")

	result, err := mgr.Restore(ctx, filepath.Join(dir, "2023-12-transactions.csv"))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Restored)
	assert.Zero(t, result.SkippedExisting)
	assert.Empty(t, result.Errors)

	restored, err := mem.GetTransaction(ctx, original.ID)
	require.NoError(t, err)
	assert.Equal(t, original.ID, restored.ID, "identity is restored, never re-derived")
	assert.Equal(t, original.StatementID, restored.StatementID)
	assert.True(t, original.Date.Equal(restored.Date))
	assert.Equal(t, original.Description, restored.Description)
	assert.True(t, restored.Debit.Valid)
	assert.True(t, original.Debit.Decimal.Equal(restored.Debit.Decimal))
	assert.True(t, restored.Balance.Valid)
	assert.True(t, original.Balance.Decimal.Equal(restored.Balance.Decimal))
	assert.Equal(t, original.RawLine, restored.RawLine)
}

func TestRestore_SkipsExistingRows(t *testing.T) {
	// Restore is always safe to re-run.

	mgr, mem, dir := newManager(t)
	ctx := context.Background()

	require.NoError(t, mem.InsertTransactions(ctx, []ledger.Transaction{
		coldTx("tx-dec-1", ledger.NewDate(2023, time.December, 10), "Old grocery"),
		coldTx("tx-dec-2", ledger.NewDate(2023, time.December, 11), "Old fuel"),
	}))
	_, err := mgr.Archive(ctx, ledger.NewDate(2024, time.January, 1))
	require.NoError(t, err)

	path := filepath.Join(dir, "2023-12-transactions.csv")
	first, err := mgr.Restore(ctx, path)
	require.NoError(t, err)
	require.Equal(t, 2, first.Restored)

	second, err := mgr.Restore(ctx, path)
	require.NoError(t, err)
	assert.Zero(t, second.Restored)
	assert.Equal(t, 2, second.SkippedExisting)

	count, err := mem.CountTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "re-restore never duplicates")
}

func TestRestore_ReenteredRowsAreUnlinked(t *testing.T) {
	mgr, mem, dir := newManager(t)
	ctx := context.Background()

	require.NoError(t, mem.InsertTransactions(ctx, []ledger.Transaction{
		coldTx("tx-dec-1", ledger.NewDate(2023, time.December, 10), "Old grocery"),
	}))
	_, err := mgr.Archive(ctx, ledger.NewDate(2024, time.January, 1))
	require.NoError(t, err)

	_, err = mgr.Restore(ctx, filepath.Join(dir, "2023-12-transactions.csv"))
	require.NoError(t, err)

	unlinked, err := mem.UnlinkedTransactions(ctx)
	require.NoError(t, err)
	assert.Len(t, unlinked, 1, "restored rows re-enter the detection pool")
}

func TestRestore_BadRowsAreReportedNotFatal(t *testing.T) {
	// One corrupt line must not block the rest of the file.

	mgr, mem, _ := newManager(t)
	ctx := context.Background()

	dir := t.TempDir()
	path := filepath.Join(dir, "2023-12-transactions.csv")
	content := "transaction_id,statement_id,date,description,debit,credit,balance,currency,source,raw_line,created_at\n" +
		"tx-good,stmt-1,2023-12-10,Old grocery,250.00,,,INR,SBI,raw,2024-01-02T10:00:00Z\n" +
		"tx-bad,stmt-1,not-a-date,Broken row,250.00,,,INR,SBI,raw,2024-01-02T10:00:00Z\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	result, err := mgr.Restore(ctx, path)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Restored)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "line 3")

	_, err = mem.GetTransaction(ctx, "tx-good")
	assert.NoError(t, err)
}

func TestRestore_MissingFile(t *testing.T) {
	mgr, _, _ := newManager(t)

	_, err := mgr.Restore(context.Background(), filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, err)
}
