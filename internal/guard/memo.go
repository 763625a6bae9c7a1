package guard

import "sync"

// UnsettleableMemo remembers ledger references the contract has proven it
// cannot settle (legacy owned-object bets), so the retry loop stops
// resubmitting transactions that are structurally impossible.
type UnsettleableMemo struct {
	mu   sync.Mutex
	refs map[string]bool
}

// NewUnsettleableMemo creates an empty memo set.
func NewUnsettleableMemo() *UnsettleableMemo {
	return &UnsettleableMemo{refs: make(map[string]bool)}
}

// Add records a ledger reference as unsettleable.
func (m *UnsettleableMemo) Add(ledgerRef string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refs[ledgerRef] = true
}

// Contains reports whether the reference is known unsettleable.
func (m *UnsettleableMemo) Contains(ledgerRef string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refs[ledgerRef]
}
