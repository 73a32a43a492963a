// Package store provides an in-memory ledger.Store implementation
// for testing and development.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/fintrack/ledger-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	statements   map[ledger.StatementID]ledger.Statement
	transactions map[ledger.TransactionID]ledger.Transaction
	lineage      []ledger.Lineage
	linked       map[ledger.TransactionID]int // edge count per endpoint
	logs         map[ledger.StatementID][]ledger.LogEntry
}

func NewMemory() *Memory {
	return &Memory{
		statements:   make(map[ledger.StatementID]ledger.Statement),
		transactions: make(map[ledger.TransactionID]ledger.Transaction),
		linked:       make(map[ledger.TransactionID]int),
		logs:         make(map[ledger.StatementID][]ledger.LogEntry),
	}
}

// --- Statements ---

func (m *Memory) InsertStatement(_ context.Context, st ledger.Statement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertStatementLocked(st)
}

func (m *Memory) insertStatementLocked(st ledger.Statement) error {
	if _, ok := m.statements[st.ID]; ok {
		return &ledger.ConflictError{Entity: "statement", ID: string(st.ID)}
	}
	m.statements[st.ID] = st
	return nil
}

func (m *Memory) GetStatement(_ context.Context, id ledger.StatementID) (ledger.Statement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.statements[id]
	if !ok {
		return ledger.Statement{}, ledger.ErrStatementNotFound
	}
	return st, nil
}

func (m *Memory) StatementExists(_ context.Context, id ledger.StatementID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.statements[id]
	return ok, nil
}

func (m *Memory) ListStatements(_ context.Context) ([]ledger.Statement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]ledger.Statement, 0, len(m.statements))
	for _, st := range m.statements {
		result = append(result, st)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// --- Transactions ---

func (m *Memory) InsertTransactions(_ context.Context, txs []ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertTransactionsLocked(txs)
}

func (m *Memory) insertTransactionsLocked(txs []ledger.Transaction) error {
	// Check all IDs first so the batch is all-or-nothing.
	for _, tx := range txs {
		if _, ok := m.transactions[tx.ID]; ok {
			return &ledger.ConflictError{Entity: "transaction", ID: string(tx.ID)}
		}
	}
	for _, tx := range txs {
		m.transactions[tx.ID] = tx
	}
	return nil
}

func (m *Memory) GetTransaction(_ context.Context, id ledger.TransactionID) (ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.transactions[id]
	if !ok {
		return ledger.Transaction{}, ledger.ErrTransactionNotFound
	}
	return tx, nil
}

func (m *Memory) TransactionExists(_ context.Context, id ledger.TransactionID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.transactions[id]
	return ok, nil
}

func (m *Memory) ListTransactions(_ context.Context, f ledger.TransactionFilter) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Transaction
	for _, tx := range m.transactions {
		if !matches(tx, f) {
			continue
		}
		result = append(result, tx)
	}
	sortByDate(result)
	if f.Limit > 0 && len(result) > f.Limit {
		result = result[:f.Limit]
	}
	return result, nil
}

func matches(tx ledger.Transaction, f ledger.TransactionFilter) bool {
	if f.From != nil && tx.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && tx.Date.After(*f.To) {
		return false
	}
	if f.Source != "" && tx.Source != f.Source {
		return false
	}
	if f.StatementID != "" && tx.StatementID != f.StatementID {
		return false
	}
	return true
}

func sortByDate(txs []ledger.Transaction) {
	sort.Slice(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.Before(txs[j].Date)
		}
		return txs[i].ID < txs[j].ID
	})
}

func (m *Memory) CountTransactions(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.transactions), nil
}

func (m *Memory) DeleteTransactions(_ context.Context, ids []ledger.TransactionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteTransactionsLocked(ids)
}

func (m *Memory) deleteTransactionsLocked(ids []ledger.TransactionID) error {
	for _, id := range ids {
		delete(m.transactions, id)
	}
	return nil
}

// --- Lineage ---

func (m *Memory) InsertLineage(_ context.Context, edge ledger.Lineage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLineageLocked(edge)
}

func (m *Memory) insertLineageLocked(edge ledger.Lineage) error {
	if m.pairLinkedLocked(edge.FromID, edge.ToID) {
		return &ledger.ConflictError{Entity: "lineage", ID: string(edge.FromID) + "->" + string(edge.ToID)}
	}
	m.lineage = append(m.lineage, edge)
	m.linked[edge.FromID]++
	m.linked[edge.ToID]++
	return nil
}

func (m *Memory) PairLinked(_ context.Context, a, b ledger.TransactionID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pairLinkedLocked(a, b), nil
}

func (m *Memory) pairLinkedLocked(a, b ledger.TransactionID) bool {
	for _, e := range m.lineage {
		if (e.FromID == a && e.ToID == b) || (e.FromID == b && e.ToID == a) {
			return true
		}
	}
	return false
}

func (m *Memory) LineageFor(_ context.Context, id ledger.TransactionID) ([]ledger.Lineage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []ledger.Lineage
	for _, e := range m.lineage {
		if e.FromID == id || e.ToID == id {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *Memory) UnlinkedTransactions(_ context.Context) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []ledger.Transaction
	for id, tx := range m.transactions {
		if m.linked[id] == 0 {
			result = append(result, tx)
		}
	}
	sortByDate(result)
	return result, nil
}

// --- Ingestion log ---

func (m *Memory) AppendLog(_ context.Context, entries []ledger.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLogLocked(entries)
}

func (m *Memory) appendLogLocked(entries []ledger.LogEntry) error {
	for _, e := range entries {
		m.logs[e.StatementID] = append(m.logs[e.StatementID], e)
	}
	return nil
}

func (m *Memory) LogsForStatement(_ context.Context, id ledger.StatementID) ([]ledger.LogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]ledger.LogEntry, len(m.logs[id]))
	copy(result, m.logs[id])
	return result, nil
}

// --- Atomic units ---

// WithTx executes fn against a transactional view. For the memory store this
// is simulated with a snapshot + rollback on error, matching the all-or-nothing
// semantics of the SQLite implementation.
func (m *Memory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	view := &txView{parent: m}
	if err := fn(view); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	statements   map[ledger.StatementID]ledger.Statement
	transactions map[ledger.TransactionID]ledger.Transaction
	lineage      []ledger.Lineage
	linked       map[ledger.TransactionID]int
	logs         map[ledger.StatementID][]ledger.LogEntry
}

func (m *Memory) snapshot() memorySnapshot {
	s := memorySnapshot{
		statements:   make(map[ledger.StatementID]ledger.Statement, len(m.statements)),
		transactions: make(map[ledger.TransactionID]ledger.Transaction, len(m.transactions)),
		lineage:      append([]ledger.Lineage(nil), m.lineage...),
		linked:       make(map[ledger.TransactionID]int, len(m.linked)),
		logs:         make(map[ledger.StatementID][]ledger.LogEntry, len(m.logs)),
	}
	for k, v := range m.statements {
		s.statements[k] = v
	}
	for k, v := range m.transactions {
		s.transactions[k] = v
	}
	for k, v := range m.linked {
		s.linked[k] = v
	}
	for k, v := range m.logs {
		s.logs[k] = append([]ledger.LogEntry(nil), v...)
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.statements = s.statements
	m.transactions = s.transactions
	m.lineage = s.lineage
	m.linked = s.linked
	m.logs = s.logs
}

// txView exposes the parent's locked internals as a ledger.Store.
// The parent mutex is held for the whole WithTx call.
type txView struct {
	parent *Memory
}

func (v *txView) InsertStatement(_ context.Context, st ledger.Statement) error {
	return v.parent.insertStatementLocked(st)
}

func (v *txView) GetStatement(_ context.Context, id ledger.StatementID) (ledger.Statement, error) {
	st, ok := v.parent.statements[id]
	if !ok {
		return ledger.Statement{}, ledger.ErrStatementNotFound
	}
	return st, nil
}

func (v *txView) StatementExists(_ context.Context, id ledger.StatementID) (bool, error) {
	_, ok := v.parent.statements[id]
	return ok, nil
}

func (v *txView) ListStatements(_ context.Context) ([]ledger.Statement, error) {
	result := make([]ledger.Statement, 0, len(v.parent.statements))
	for _, st := range v.parent.statements {
		result = append(result, st)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (v *txView) InsertTransactions(_ context.Context, txs []ledger.Transaction) error {
	return v.parent.insertTransactionsLocked(txs)
}

func (v *txView) GetTransaction(_ context.Context, id ledger.TransactionID) (ledger.Transaction, error) {
	tx, ok := v.parent.transactions[id]
	if !ok {
		return ledger.Transaction{}, ledger.ErrTransactionNotFound
	}
	return tx, nil
}

func (v *txView) TransactionExists(_ context.Context, id ledger.TransactionID) (bool, error) {
	_, ok := v.parent.transactions[id]
	return ok, nil
}

func (v *txView) ListTransactions(_ context.Context, f ledger.TransactionFilter) ([]ledger.Transaction, error) {
	var result []ledger.Transaction
	for _, tx := range v.parent.transactions {
		if matches(tx, f) {
			result = append(result, tx)
		}
	}
	sortByDate(result)
	if f.Limit > 0 && len(result) > f.Limit {
		result = result[:f.Limit]
	}
	return result, nil
}

func (v *txView) CountTransactions(_ context.Context) (int, error) {
	return len(v.parent.transactions), nil
}

func (v *txView) DeleteTransactions(_ context.Context, ids []ledger.TransactionID) error {
	return v.parent.deleteTransactionsLocked(ids)
}

func (v *txView) InsertLineage(_ context.Context, edge ledger.Lineage) error {
	return v.parent.insertLineageLocked(edge)
}

func (v *txView) PairLinked(_ context.Context, a, b ledger.TransactionID) (bool, error) {
	return v.parent.pairLinkedLocked(a, b), nil
}

func (v *txView) LineageFor(_ context.Context, id ledger.TransactionID) ([]ledger.Lineage, error) {
	var result []ledger.Lineage
	for _, e := range v.parent.lineage {
		if e.FromID == id || e.ToID == id {
			result = append(result, e)
		}
	}
	return result, nil
}

func (v *txView) UnlinkedTransactions(_ context.Context) ([]ledger.Transaction, error) {
	var result []ledger.Transaction
	for id, tx := range v.parent.transactions {
		if v.parent.linked[id] == 0 {
			result = append(result, tx)
		}
	}
	sortByDate(result)
	return result, nil
}

func (v *txView) AppendLog(_ context.Context, entries []ledger.LogEntry) error {
	return v.parent.appendLogLocked(entries)
}

func (v *txView) LogsForStatement(_ context.Context, id ledger.StatementID) ([]ledger.LogEntry, error) {
	return append([]ledger.LogEntry(nil), v.parent.logs[id]...), nil
}

// WithTx on a view runs fn directly: the outer transaction already owns the lock.
func (v *txView) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	return fn(v)
}
