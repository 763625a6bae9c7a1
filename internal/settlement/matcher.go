package settlement

import (
	"strings"

	"github.com/oddsline/platform/internal/domain"
)

// Wager-to-event matching is tiered, strictest guarantee first. A wager is
// associated with a finished match by the first tier that hits:
//
//  1. external event id equality (authoritative);
//  2. team names equal or substring-contained in either direction,
//     case-insensitive (wagers recorded before external ids were captured);
//  3. legacy internal event id equality.
//
// Free-text matching against the prediction string is deliberately absent:
// it settled a future fixture once because its prediction text shared a team
// name with an unrelated finished match. Do not add it back without checking
// the fixture's start time has passed.

// MatchWagersToEvent returns the wagers that belong to the finished match.
func MatchWagersToEvent(wagers []domain.Wager, m domain.FinishedMatch) []domain.Wager {
	var matched []domain.Wager
	for _, w := range wagers {
		if wagerMatchesEvent(&w, m) {
			matched = append(matched, w)
		}
	}
	return matched
}

func wagerMatchesEvent(w *domain.Wager, m domain.FinishedMatch) bool {
	// Tier 1: external event id.
	if domain.EventIDMatches(w.ExternalEventID, m.EventID) {
		return true
	}

	// Tier 2: team names, both sides required.
	if teamNamesMatch(w.HomeTeam, m.HomeTeam) && teamNamesMatch(w.AwayTeam, m.AwayTeam) {
		return true
	}

	// Tier 3: legacy internal event id.
	if w.InternalEventID != nil && *w.InternalEventID != "" && *w.InternalEventID == m.EventID {
		return true
	}

	return false
}

// teamNamesMatch compares stored and feed team names: equality or
// containment in either direction, case-insensitive. Short names are
// rejected so noise like "FC" never bridges two different fixtures.
func teamNamesMatch(stored, feed string) bool {
	stored = strings.ToLower(strings.TrimSpace(stored))
	feed = strings.ToLower(strings.TrimSpace(feed))
	if len(stored) < 3 || len(feed) < 3 {
		return false
	}
	return stored == feed || strings.Contains(stored, feed) || strings.Contains(feed, stored)
}
