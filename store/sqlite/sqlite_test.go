package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintrack/ledger-engine/ledger"
	"github.com/fintrack/ledger-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func amt(s string) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: decimal.RequireFromString(s), Valid: true}
}

func sampleStatement(id string) ledger.Statement {
	return ledger.Statement{
		ID:               ledger.StatementID(id),
		SourceType:       ledger.SourceBank,
		Source:           "SBI",
		Account:          "XXXX1234",
		PeriodStart:      ledger.NewDate(2024, time.March, 1),
		PeriodEnd:        ledger.NewDate(2024, time.March, 31),
		ParseStatus:      ledger.ParseSuccess,
		TransactionCount: 2,
		IngestedAt:       time.Date(2024, time.April, 1, 9, 0, 0, 0, time.UTC),
	}
}

func sampleTx(id, stmt string, date ledger.Date) ledger.Transaction {
	return ledger.Transaction{
		ID:          ledger.TransactionID(id),
		StatementID: ledger.StatementID(stmt),
		Date:        date,
		Description: "POS Grocery Mart",
		Debit:       amt("120.00"),
		Balance:     amt("10500.50"),
		Currency:    "INR",
		Source:      "SBI",
		RawLine:     "5-Mar-2024 POS Grocery Mart 120.00",
		CreatedAt:   time.Date(2024, time.April, 1, 9, 0, 0, 0, time.UTC),
	}
}

// =============================================================================
// STATEMENTS
// =============================================================================

func TestStatement_RoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	st := sampleStatement("stmt-1")
	require.NoError(t, s.InsertStatement(ctx, st))

	got, err := s.GetStatement(ctx, st.ID)
	require.NoError(t, err)
	assert.Equal(t, st.ID, got.ID)
	assert.Equal(t, st.SourceType, got.SourceType)
	assert.Equal(t, st.Source, got.Source)
	assert.Equal(t, st.Account, got.Account)
	assert.True(t, st.PeriodStart.Equal(got.PeriodStart))
	assert.True(t, st.PeriodEnd.Equal(got.PeriodEnd))
	assert.Equal(t, st.ParseStatus, got.ParseStatus)
	assert.Equal(t, st.TransactionCount, got.TransactionCount)
	assert.True(t, st.IngestedAt.Equal(got.IngestedAt))

	exists, err := s.StatementExists(ctx, st.ID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestStatement_SecondInsertIsConflict(t *testing.T) {
	// The primary key is the enforcement mechanism for at-most-once ingestion.

	s := newStore(t)
	ctx := context.Background()

	st := sampleStatement("stmt-1")
	require.NoError(t, s.InsertStatement(ctx, st))

	err := s.InsertStatement(ctx, st)
	require.Error(t, err)
	assert.True(t, ledger.IsConflict(err))
	assert.ErrorIs(t, err, ledger.ErrDuplicateStatement)

	var conflict *ledger.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, "statement", conflict.Entity)
	assert.Equal(t, "stmt-1", conflict.ID)
}

func TestStatement_NotFound(t *testing.T) {
	s := newStore(t)

	_, err := s.GetStatement(context.Background(), "absent")
	assert.ErrorIs(t, err, ledger.ErrStatementNotFound)
	assert.True(t, ledger.IsNotFound(err))
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestTransaction_RoundTripPreservesNullAmounts(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	tx := sampleTx("tx-1", "stmt-1", ledger.NewDate(2024, time.March, 5))
	require.NoError(t, s.InsertTransactions(ctx, []ledger.Transaction{tx}))

	got, err := s.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, tx.Description, got.Description)
	assert.True(t, got.Debit.Valid)
	assert.True(t, tx.Debit.Decimal.Equal(got.Debit.Decimal))
	assert.False(t, got.Credit.Valid, "absent credit stays null, not zero")
	assert.True(t, got.Balance.Valid)
	assert.True(t, tx.Balance.Decimal.Equal(got.Balance.Decimal))
	assert.Equal(t, tx.RawLine, got.RawLine)
	assert.Equal(t, tx.Currency, got.Currency)
}

func TestTransaction_BatchInsertIsAllOrNothing(t *testing.T) {
	// GIVEN: a batch whose second row collides with an existing ID
	// THEN: the whole batch rolls back

	s := newStore(t)
	ctx := context.Background()

	existing := sampleTx("tx-dup", "stmt-1", ledger.NewDate(2024, time.March, 5))
	require.NoError(t, s.InsertTransactions(ctx, []ledger.Transaction{existing}))

	fresh := sampleTx("tx-fresh", "stmt-2", ledger.NewDate(2024, time.March, 6))
	err := s.InsertTransactions(ctx, []ledger.Transaction{fresh, existing})
	require.Error(t, err)
	assert.True(t, ledger.IsConflict(err))
	assert.ErrorIs(t, err, ledger.ErrDuplicateTransaction)

	_, err = s.GetTransaction(ctx, fresh.ID)
	assert.ErrorIs(t, err, ledger.ErrTransactionNotFound, "no partial batch")
}

func TestListTransactions_Filters(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	txs := []ledger.Transaction{
		sampleTx("tx-1", "stmt-1", ledger.NewDate(2024, time.January, 10)),
		sampleTx("tx-2", "stmt-1", ledger.NewDate(2024, time.February, 10)),
		sampleTx("tx-3", "stmt-2", ledger.NewDate(2024, time.March, 10)),
	}
	txs[2].Source = "AMEX"
	require.NoError(t, s.InsertTransactions(ctx, txs))

	// Date range is inclusive on both ends.
	from := ledger.NewDate(2024, time.February, 1)
	to := ledger.NewDate(2024, time.February, 10)
	got, err := s.ListTransactions(ctx, ledger.TransactionFilter{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ledger.TransactionID("tx-2"), got[0].ID)

	got, err = s.ListTransactions(ctx, ledger.TransactionFilter{Source: "AMEX"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ledger.TransactionID("tx-3"), got[0].ID)

	got, err = s.ListTransactions(ctx, ledger.TransactionFilter{StatementID: "stmt-1"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.ListTransactions(ctx, ledger.TransactionFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ledger.TransactionID("tx-1"), got[0].ID, "date order")

	count, err := s.CountTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestDeleteTransactions(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertTransactions(ctx, []ledger.Transaction{
		sampleTx("tx-1", "stmt-1", ledger.NewDate(2024, time.January, 10)),
		sampleTx("tx-2", "stmt-1", ledger.NewDate(2024, time.January, 11)),
	}))

	require.NoError(t, s.DeleteTransactions(ctx, []ledger.TransactionID{"tx-1"}))

	count, err := s.CountTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	_, err = s.GetTransaction(ctx, "tx-2")
	assert.NoError(t, err)
}

// =============================================================================
// LINEAGE
// =============================================================================

func TestLineage_RoundTripWithEvidence(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	edge := ledger.Lineage{
		FromID:     "tx-bank",
		ToID:       "tx-card",
		Type:       ledger.RelationCCPayment,
		Confidence: 0.95,
		Evidence: ledger.Evidence{
			Amount:        decimal.RequireFromString("500.00"),
			DateDeltaDays: 1,
			Reason:        "BANK debit matches CARD credit",
		},
		CreatedAt: time.Date(2024, time.April, 1, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.InsertLineage(ctx, edge))

	edges, err := s.LineageFor(ctx, "tx-card")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, edge.FromID, edges[0].FromID)
	assert.Equal(t, edge.Type, edges[0].Type)
	assert.Equal(t, edge.Confidence, edges[0].Confidence)
	assert.Equal(t, edge.Evidence.DateDeltaDays, edges[0].Evidence.DateDeltaDays)
	assert.Equal(t, edge.Evidence.Reason, edges[0].Evidence.Reason)
	assert.True(t, edge.Evidence.Amount.Equal(edges[0].Evidence.Amount))
}

func TestLineage_OneEdgePerUnorderedPair(t *testing.T) {
	// The pair_key UNIQUE index rejects a second edge even when the direction
	// or the relationship type differs.

	s := newStore(t)
	ctx := context.Background()

	edge := ledger.Lineage{
		FromID: "tx-a", ToID: "tx-b",
		Type: ledger.RelationRefund, Confidence: 0.80,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.InsertLineage(ctx, edge))

	reversed := ledger.Lineage{
		FromID: "tx-b", ToID: "tx-a",
		Type: ledger.RelationTransfer, Confidence: 0.60,
		CreatedAt: time.Now().UTC(),
	}
	err := s.InsertLineage(ctx, reversed)
	require.Error(t, err)
	assert.True(t, ledger.IsConflict(err))
	assert.ErrorIs(t, err, ledger.ErrDuplicateLineage)

	linked, err := s.PairLinked(ctx, "tx-a", "tx-b")
	require.NoError(t, err)
	assert.True(t, linked)
	linked, err = s.PairLinked(ctx, "tx-b", "tx-a")
	require.NoError(t, err)
	assert.True(t, linked, "pair check ignores direction")
}

func TestUnlinkedTransactions(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertTransactions(ctx, []ledger.Transaction{
		sampleTx("tx-linked-1", "stmt-1", ledger.NewDate(2024, time.January, 10)),
		sampleTx("tx-linked-2", "stmt-2", ledger.NewDate(2024, time.January, 11)),
		sampleTx("tx-loose", "stmt-3", ledger.NewDate(2024, time.January, 12)),
	}))
	require.NoError(t, s.InsertLineage(ctx, ledger.Lineage{
		FromID: "tx-linked-1", ToID: "tx-linked-2",
		Type: ledger.RelationDuplicate, Confidence: 1.0,
		CreatedAt: time.Now().UTC(),
	}))

	unlinked, err := s.UnlinkedTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, unlinked, 1)
	assert.Equal(t, ledger.TransactionID("tx-loose"), unlinked[0].ID)
}

// =============================================================================
// INGESTION LOG
// =============================================================================

func TestIngestionLog_AppendAndRead(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	now := time.Date(2024, time.April, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.AppendLog(ctx, []ledger.LogEntry{
		{StatementID: "stmt-1", Level: ledger.LevelWarning, Message: "skipped row", Timestamp: now},
		{StatementID: "stmt-1", Level: ledger.LevelInfo, Message: "ingested 2 transactions", Timestamp: now},
		{StatementID: "stmt-2", Level: ledger.LevelError, Message: "unrelated", Timestamp: now},
	}))

	logs, err := s.LogsForStatement(ctx, "stmt-1")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, ledger.LevelWarning, logs[0].Level, "insertion order preserved")
	assert.Equal(t, "ingested 2 transactions", logs[1].Message)
}

// =============================================================================
// ATOMIC UNITS
// =============================================================================

func TestWithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: a unit that writes a statement and its transactions, then fails
	// THEN: nothing is visible afterwards

	s := newStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(txs ledger.Store) error {
		if err := txs.InsertStatement(ctx, sampleStatement("stmt-1")); err != nil {
			return err
		}
		if err := txs.InsertTransactions(ctx, []ledger.Transaction{
			sampleTx("tx-1", "stmt-1", ledger.NewDate(2024, time.March, 5)),
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	exists, err := s.StatementExists(ctx, "stmt-1")
	require.NoError(t, err)
	assert.False(t, exists)
	count, err := s.CountTransactions(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestWithTx_CommitsAsOneUnit(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(txs ledger.Store) error {
		if err := txs.InsertStatement(ctx, sampleStatement("stmt-1")); err != nil {
			return err
		}
		if err := txs.InsertTransactions(ctx, []ledger.Transaction{
			sampleTx("tx-1", "stmt-1", ledger.NewDate(2024, time.March, 5)),
		}); err != nil {
			return err
		}
		return txs.AppendLog(ctx, []ledger.LogEntry{
			{StatementID: "stmt-1", Level: ledger.LevelInfo, Message: "ingested", Timestamp: time.Now().UTC()},
		})
	})
	require.NoError(t, err)

	exists, err := s.StatementExists(ctx, "stmt-1")
	require.NoError(t, err)
	assert.True(t, exists)
	logs, err := s.LogsForStatement(ctx, "stmt-1")
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}
