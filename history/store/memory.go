// Package store provides in-memory history.Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/driver-pay/history"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	histories map[history.EmployeeID]history.Sequence
}

func NewMemory() *Memory {
	return &Memory{histories: make(map[history.EmployeeID]history.Sequence)}
}

func (m *Memory) LoadHistory(_ context.Context, employeeID history.EmployeeID) ([]history.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadLocked(employeeID), nil
}

// SaveHistory replaces the employee's history. Append-only in spirit: the
// ledger always passes every existing record back.
func (m *Memory) SaveHistory(_ context.Context, employeeID history.EmployeeID, records []history.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveLocked(employeeID, records)
	return nil
}

func (m *Memory) loadLocked(employeeID history.EmployeeID) []history.Record {
	return m.histories[employeeID].Clone()
}

func (m *Memory) saveLocked(employeeID history.EmployeeID, records []history.Record) {
	seq := history.Sequence(records).Clone()
	seq.Sort()
	m.histories[employeeID] = seq
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(history.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()

	if err := fn(&txMemoryView{parent: tm}); err != nil {
		tm.histories = snapshot
		return err
	}
	return nil
}

func (tm *TxMemory) snapshot() map[history.EmployeeID]history.Sequence {
	cp := make(map[history.EmployeeID]history.Sequence, len(tm.histories))
	for k, v := range tm.histories {
		cp[k] = v.Clone()
	}
	return cp
}

// txMemoryView is the Store handed to WithTx callbacks. The parent lock is
// already held, so it uses the *Locked helpers.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) LoadHistory(_ context.Context, employeeID history.EmployeeID) ([]history.Record, error) {
	return tv.parent.loadLocked(employeeID), nil
}

func (tv *txMemoryView) SaveHistory(_ context.Context, employeeID history.EmployeeID, records []history.Record) error {
	tv.parent.saveLocked(employeeID, records)
	return nil
}

var (
	_ history.Store   = (*Memory)(nil)
	_ history.TxStore = (*TxMemory)(nil)
)
