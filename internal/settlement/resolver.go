package settlement

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oddsline/platform/internal/cache"
	"github.com/oddsline/platform/internal/domain"
	"github.com/oddsline/platform/internal/guard"
	"github.com/oddsline/platform/internal/infra"
	"github.com/oddsline/platform/internal/provider"
)

// MatchResolver fetches finished matches for the sports that currently have
// outstanding wagers. Results are cached for a short TTL keyed by the sport
// set so scheduler ticks inside the window cost no provider quota. Sports
// whose live endpoint fails fall back to the nightly snapshot, read-only.
type MatchResolver struct {
	provider     provider.ResultsProvider
	cache        cache.MatchCache
	breaker      *guard.CircuitBreaker
	metrics      *infra.Metrics
	logger       *slog.Logger
	ttl          time.Duration
	primarySport string
}

// NewMatchResolver creates a resolver. The primary sport is always queried;
// secondary sports only when a wager's event id carries that sport's slug.
func NewMatchResolver(p provider.ResultsProvider, c cache.MatchCache, metrics *infra.Metrics, logger *slog.Logger, ttl time.Duration, primarySport string) *MatchResolver {
	return &MatchResolver{
		provider:     p,
		cache:        c,
		breaker:      guard.NewCircuitBreaker(3, 10*time.Minute),
		metrics:      metrics,
		logger:       logger,
		ttl:          ttl,
		primarySport: primarySport,
	}
}

// FinishedMatches returns the finished matches relevant to the open wagers.
// Partial results are acceptable: a provider outage for one sport degrades
// settlement latency for that sport only.
func (r *MatchResolver) FinishedMatches(ctx context.Context, wagers []domain.Wager) []domain.FinishedMatch {
	sports := r.sportsInPlay(wagers)
	key := strings.Join(sports, ",")

	if cached, err := r.cache.GetBatch(ctx, key); err != nil {
		r.logger.Warn("results batch cache read failed", "error", err)
	} else if cached != nil {
		r.logger.Debug("results batch served from cache", "sports", key, "matches", len(cached))
		return cached
	}

	var mu sync.Mutex
	var all []domain.FinishedMatch
	merge := func(matches []domain.FinishedMatch) {
		mu.Lock()
		all = append(all, matches...)
		mu.Unlock()
	}

	// Finished fixtures straddle midnight, so query today and yesterday.
	days := []time.Time{time.Now().UTC(), time.Now().UTC().AddDate(0, 0, -1)}

	g, gctx := errgroup.WithContext(ctx)
	for _, sport := range sports {
		if !r.breaker.Check(ctx, sport).Allowed {
			r.logger.Warn("results provider circuit open, using nightly snapshot", "sport", sport)
			merge(r.nightly(ctx, sport))
			continue
		}

		g.Go(func() error {
			var fetched []domain.FinishedMatch
			failed := false
			for _, day := range days {
				matches, err := r.provider.FetchFinished(gctx, sport, day)
				if err != nil {
					r.logger.Warn("results fetch failed", "sport", sport, "error", err)
					r.metrics.RecordProviderError(sport)
					r.breaker.RecordFailure(sport)
					failed = true
					break
				}
				fetched = append(fetched, matches...)
			}
			if failed {
				merge(r.nightly(ctx, sport))
				return nil
			}
			r.breaker.RecordSuccess(sport)
			merge(fetched)
			return nil
		})
	}
	_ = g.Wait()

	if err := r.cache.SetBatch(ctx, key, all, r.ttl); err != nil {
		r.logger.Warn("results batch cache write failed", "error", err)
	}
	if err := r.cache.IndexEvents(ctx, all, 24*time.Hour); err != nil {
		r.logger.Warn("event index write failed", "error", err)
	}

	return all
}

// LookupEvent resolves a single finished match from the event index or the
// nightly snapshot. Cache-only: parlay legs never trigger a live API call.
func (r *MatchResolver) LookupEvent(ctx context.Context, sport, eventID string) *domain.FinishedMatch {
	if m, err := r.cache.GetEvent(ctx, eventID); err == nil && m != nil {
		return m
	}
	if sport == "" {
		return nil
	}
	for _, m := range r.nightly(ctx, sport) {
		if domain.EventIDMatches(m.EventID, eventID) {
			return &m
		}
	}
	return nil
}

func (r *MatchResolver) nightly(ctx context.Context, sport string) []domain.FinishedMatch {
	matches, err := r.cache.GetNightly(ctx, sport)
	if err != nil {
		r.logger.Warn("nightly snapshot read failed", "sport", sport, "error", err)
		return nil
	}
	return matches
}

// sportsInPlay derives the sport set worth spending quota on: the primary
// sport always, secondary sports only when an open wager's event id names
// them.
func (r *MatchResolver) sportsInPlay(wagers []domain.Wager) []string {
	set := map[string]bool{r.primarySport: true}
	for i := range wagers {
		for _, ref := range domain.SplitCompositeEventID(wagers[i].ExternalEventID) {
			if ref.Sport != "" && domain.KnownSport(ref.Sport) {
				set[ref.Sport] = true
			}
		}
	}

	sports := make([]string, 0, len(set))
	for s := range set {
		sports = append(sports, s)
	}
	sort.Strings(sports)
	return sports
}
