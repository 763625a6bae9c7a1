package guard

import (
	"context"
	"sync"

	"github.com/oddsline/platform/internal/domain"
)

// SessionSet tracks wagers and events already processed in this process
// lifetime, so a wager is never settled twice within a session even if
// duplicate triggers arrive. Durable dedup across restarts is the store's
// conditional transition; this set is the cheap first line.
type SessionSet struct {
	mu     sync.Mutex
	wagers map[string]bool
	events map[string]bool
}

// NewSessionSet creates an empty session set.
func NewSessionSet() *SessionSet {
	return &SessionSet{
		wagers: make(map[string]bool),
		events: make(map[string]bool),
	}
}

// CheckWager returns whether the wager may be settled, marking it processed
// when allowed.
func (s *SessionSet) CheckWager(_ context.Context, wagerID string) domain.GuardResult {
	if wagerID == "" {
		return domain.GuardResult{Allowed: true}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.wagers[wagerID] {
		return domain.GuardResult{
			Allowed: false,
			Reason:  "wager already settled this session",
			Guard:   "session_set",
		}
	}
	s.wagers[wagerID] = true
	return domain.GuardResult{Allowed: true}
}

// ReleaseWager removes a wager from the set so a transient failure can be
// retried next cycle.
func (s *SessionSet) ReleaseWager(wagerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.wagers, wagerID)
}

// MarkEvent records an external event as settled this session.
func (s *SessionSet) MarkEvent(externalEventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[externalEventID] = true
}

// EventSettled reports whether the event was already settled this session
// (including entries rebuilt from the journal at startup).
func (s *SessionSet) EventSettled(externalEventID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[externalEventID]
}

// EventCount returns the number of settled events tracked.
func (s *SessionSet) EventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// WagerCount returns the number of wagers processed this session.
func (s *SessionSet) WagerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.wagers)
}
