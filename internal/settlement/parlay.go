package settlement

import (
	"context"

	"github.com/oddsline/platform/internal/domain"
)

// settleParlay settles a multi-leg wager. Leg lookups beyond the current
// batch come from cache snapshots only, so a parlay never triggers extra
// provider calls.
func (e *Engine) settleParlay(ctx context.Context, w domain.Wager, matches []domain.FinishedMatch) error {
	pred, err := domain.DecodePrediction(&w)
	if err != nil {
		return err
	}
	parlay, ok := pred.(domain.ParlayPrediction)
	if !ok || len(parlay.Legs) == 0 {
		e.logger.Warn("parlay wager decoded without legs, skipping", "wager_id", w.ID)
		return nil
	}

	byEvent := make(map[string]domain.FinishedMatch, len(matches))
	for _, m := range matches {
		byEvent[m.EventID] = m
	}

	anyLost := false
	unresolved := 0
	for i, leg := range parlay.Legs {
		m := resolveLeg(byEvent, leg)
		if m == nil {
			m = e.resolver.LookupEvent(ctx, leg.Sport, leg.EventID)
		}
		if m == nil {
			e.logger.Debug("parlay leg unresolved",
				"wager_id", w.ID, "leg", i, "event_id", leg.EventID)
			unresolved++
			continue
		}
		if !EvaluateOutcome(leg.Prediction, *m, leg.MarketID, leg.OutcomeID) {
			anyLost = true
		}
	}

	// Nothing is decided until every leg's event has finished: a fixture
	// can still be voided or corrected while its siblings are in play, so
	// even a known-lost leg waits for the full set.
	if unresolved > 0 {
		return nil
	}
	return e.settleWager(ctx, w, nil, !anyLost)
}

// resolveLeg finds the leg's event in the current batch, tolerating sport
// slug prefixes on either side.
func resolveLeg(byEvent map[string]domain.FinishedMatch, leg domain.ParlayLeg) *domain.FinishedMatch {
	if m, ok := byEvent[leg.EventID]; ok {
		return &m
	}
	for id, m := range byEvent {
		if domain.EventIDMatches(leg.EventID, id) {
			return &m
		}
	}
	return nil
}
