package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/oddsline/platform/internal/cache"
	"github.com/oddsline/platform/internal/chain"
	"github.com/oddsline/platform/internal/domain"
	"github.com/oddsline/platform/internal/guard"
	"github.com/oddsline/platform/internal/infra"
	"github.com/oddsline/platform/internal/provider"
	"github.com/oddsline/platform/internal/repository"
)

// Publisher publishes settlement events. infra.KafkaProducer satisfies it;
// a nil Publisher disables publishing.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Options tune the reconciliation engine.
type Options struct {
	Interval        time.Duration
	ResultsTTL      time.Duration
	SubmissionDelay time.Duration
	SettledLookback time.Duration
	FeeBps          int64
	RetryCeiling    int
	SignerFloor     int64
	PrimarySport    string
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = 3 * time.Minute
	}
	if o.ResultsTTL <= 0 {
		o.ResultsTTL = 3 * time.Minute
	}
	if o.SettledLookback <= 0 {
		o.SettledLookback = 14 * 24 * time.Hour
	}
	if o.FeeBps <= 0 {
		o.FeeBps = 100
	}
	if o.RetryCeiling <= 0 {
		o.RetryCeiling = 8
	}
	if o.PrimarySport == "" {
		o.PrimarySport = "soccer"
	}
	return o
}

// Deps are the engine's collaborators.
type Deps struct {
	DB        repository.DBTX
	Wagers    repository.WagerRepository
	Journal   repository.SettledEventRepository
	Provider  provider.ResultsProvider
	Cache     cache.MatchCache
	Bridge    chain.Bridge
	Publisher Publisher
	Metrics   *infra.Metrics
	Blocklist *guard.WalletBlocklist
	Logger    *slog.Logger
}

// Engine drives the settlement reconciliation loop. All mutable state lives
// on the instance; passes run one at a time (a tick that fires mid-pass is
// skipped), and within a pass wagers settle sequentially so the signing key
// never races itself on shared ledger objects.
type Engine struct {
	db        repository.DBTX
	wagers    repository.WagerRepository
	journal   repository.SettledEventRepository
	resolver  *MatchResolver
	cache     cache.MatchCache
	bridge    chain.Bridge
	publisher Publisher
	metrics   *infra.Metrics
	logger    *slog.Logger

	session   *guard.SessionSet
	blocklist *guard.WalletBlocklist
	memo      *guard.UnsettleableMemo

	opts    Options
	running atomic.Bool

	mu             sync.Mutex
	lastPassAt     time.Time
	lastPassError  string
	settledSession int
}

// NewEngine wires a reconciliation engine.
func NewEngine(deps Deps, opts Options) *Engine {
	opts = opts.withDefaults()
	blocklist := deps.Blocklist
	if blocklist == nil {
		blocklist = guard.NewWalletBlocklist(nil)
	}
	return &Engine{
		db:        deps.DB,
		wagers:    deps.Wagers,
		journal:   deps.Journal,
		resolver:  NewMatchResolver(deps.Provider, deps.Cache, deps.Metrics, deps.Logger, opts.ResultsTTL, opts.PrimarySport),
		cache:     deps.Cache,
		bridge:    deps.Bridge,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		session:   guard.NewSessionSet(),
		blocklist: blocklist,
		memo:      guard.NewUnsettleableMemo(),
		opts:      opts,
	}
}

// Run rebuilds the settled-event set, executes a startup pass, then ticks on
// the configured interval until ctx is cancelled. Cancellation stops future
// ticks only; an in-flight pass completes.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.rebuildSettledSet(ctx); err != nil {
		return fmt.Errorf("rebuild settled set: %w", err)
	}

	e.logger.Info("reconciliation engine starting",
		"interval", e.opts.Interval, "primary_sport", e.opts.PrimarySport)

	if err := e.RunReconciliationPass(ctx); err != nil {
		e.logger.Error("startup reconciliation pass failed", "error", err)
	}

	ticker := time.NewTicker(e.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("reconciliation engine stopping")
			return nil
		case <-ticker.C:
			if err := e.RunReconciliationPass(ctx); err != nil {
				e.logger.Error("reconciliation pass failed", "error", err)
			}
		}
	}
}

// RunReconciliationPass executes one full reconciliation pass. Idempotent
// and safe to invoke manually; if a pass is already running the call is a
// recorded no-op.
func (e *Engine) RunReconciliationPass(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		e.logger.Warn("reconciliation pass already running, skipping")
		e.metrics.RecordSkippedPass()
		return nil
	}
	defer e.running.Store(false)

	err := e.pass(ctx)

	e.mu.Lock()
	e.lastPassAt = time.Now()
	e.lastPassError = ""
	if err != nil {
		e.lastPassError = err.Error()
	}
	e.mu.Unlock()

	e.metrics.RecordPass()
	e.metrics.SetSettledInMemory(e.session.EventCount())
	return err
}

func (e *Engine) pass(ctx context.Context) error {
	wagers, err := e.wagers.ListByStatus(ctx, e.db, domain.WagerPending, domain.WagerConfirmed, domain.WagerWon)
	if err != nil {
		return fmt.Errorf("list wagers: %w", err)
	}

	var open, wonUnpaid []domain.Wager
	for _, w := range wagers {
		switch {
		case w.Status == domain.WagerWon && !w.Paid():
			wonUnpaid = append(wonUnpaid, w)
		case w.Status == domain.WagerPending || w.Status == domain.WagerConfirmed:
			open = append(open, w)
		}
	}

	if len(open) > 0 {
		matches := e.resolver.FinishedMatches(ctx, open)
		e.settleAgainst(ctx, open, matches)
	}

	e.runPayoutRetry(ctx, wonUnpaid)
	return nil
}

// ProcessExternalResultsBatch accepts finished matches pushed by the
// out-of-band nightly fetch job: it refreshes the snapshot caches and runs a
// settlement pass against the batch without spending provider quota.
func (e *Engine) ProcessExternalResultsBatch(ctx context.Context, results []domain.FinishedMatch) error {
	if len(results) == 0 {
		return nil
	}

	bySport := make(map[string][]domain.FinishedMatch)
	for _, m := range results {
		bySport[m.Sport] = append(bySport[m.Sport], m)
	}
	for sport, matches := range bySport {
		if err := e.cache.SetNightly(ctx, sport, matches); err != nil {
			e.logger.Warn("nightly snapshot write failed", "sport", sport, "error", err)
		}
	}
	if err := e.cache.IndexEvents(ctx, results, e.opts.SettledLookback); err != nil {
		e.logger.Warn("event index write failed", "error", err)
	}

	open, err := e.wagers.ListByStatus(ctx, e.db, domain.WagerPending, domain.WagerConfirmed)
	if err != nil {
		return fmt.Errorf("list wagers: %w", err)
	}
	e.settleAgainst(ctx, open, results)
	return nil
}

// ManualSettle is the administrative override: it settles a wager with a
// fixed outcome ("won", "lost" or "void"), bypassing automatic outcome
// determination but not the commit path.
func (e *Engine) ManualSettle(ctx context.Context, wagerID uuid.UUID, outcome string) error {
	w, err := e.wagers.FindByID(ctx, e.db, wagerID)
	if err != nil {
		return err
	}
	if w == nil {
		return domain.ErrNotFound("wager", wagerID.String())
	}
	if w.Status.Terminal() {
		return domain.ErrConflict(fmt.Sprintf("wager %s already %s", wagerID, w.Status))
	}

	// Operator action overrides the per-session dedup.
	e.session.ReleaseWager(w.ID.String())

	switch outcome {
	case "won", "lost":
		return e.settleWager(ctx, *w, nil, outcome == "won")
	case "void":
		return e.voidWager(ctx, *w)
	default:
		return domain.ErrValidation("outcome must be won, lost or void")
	}
}

// ForceOnChainSettlement is the administrative override that submits the
// ledger settlement transaction regardless of off-chain state.
func (e *Engine) ForceOnChainSettlement(ctx context.Context, wagerID uuid.UUID, outcome string) error {
	if outcome != "won" && outcome != "lost" {
		return domain.ErrValidation("outcome must be won or lost")
	}
	w, err := e.wagers.FindByID(ctx, e.db, wagerID)
	if err != nil {
		return err
	}
	if w == nil {
		return domain.ErrNotFound("wager", wagerID.String())
	}
	if !w.HasLedgerRef() {
		return domain.ErrValidation("wager has no ledger reference")
	}
	if !e.bridge.SigningConfigured() {
		return domain.ErrValidation("signing is not configured")
	}

	won := outcome == "won"
	fee, net := domain.SettlementFee(w.StakeMinor, w.PotentialMinor, e.opts.FeeBps)

	// Forcing bypasses off-chain state, not solvency.
	if won {
		if bal, err := e.bridge.TreasuryBalance(ctx, w.Currency); err == nil && bal < net {
			return domain.ErrInsufficientTreasury(w.Currency, net, bal)
		}
	}

	res, err := e.bridge.SettleBet(ctx, *w.LedgerRef, won)
	if err != nil {
		return fmt.Errorf("force settle %s: %w", wagerID, err)
	}
	if !res.Success {
		return domain.ErrInternal("force settle rejected", fmt.Errorf("%s", res.Error))
	}
	if won && w.Status == domain.WagerWon {
		// Already committed as won off chain; the forced transaction was
		// the payout, so only the paid_out hop remains.
		if ok, err := e.wagers.ConditionalUpdateStatus(ctx, e.db, w.ID, domain.WagerWon, domain.WagerPaidOut, net, &res.TxHash); err != nil {
			return err
		} else if ok {
			e.publishPayout(ctx, *w, res.TxHash, net)
		}
		return nil
	}
	e.commitOutcome(ctx, *w, won, fee, net, &res.TxHash, won)
	return nil
}

// Status is the operational snapshot exposed to admin surfaces.
type Status struct {
	Running           bool          `json:"running"`
	PollInterval      time.Duration `json:"poll_interval"`
	LastPassAt        time.Time     `json:"last_pass_at"`
	LastPassError     string        `json:"last_pass_error,omitempty"`
	SettledEvents     int           `json:"settled_events_in_memory"`
	WagersThisSession int           `json:"wagers_settled_this_session"`
	WagersTracked     int           `json:"wagers_tracked_this_session"`
}

// Status reports the engine's running state and in-memory counters.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		Running:           e.running.Load(),
		PollInterval:      e.opts.Interval,
		LastPassAt:        e.lastPassAt,
		LastPassError:     e.lastPassError,
		SettledEvents:     e.session.EventCount(),
		WagersThisSession: e.settledSession,
		WagersTracked:     e.session.WagerCount(),
	}
}

// rebuildSettledSet loads the recent journal so events settled before a
// restart are not reprocessed.
func (e *Engine) rebuildSettledSet(ctx context.Context) error {
	cutoff := time.Now().Add(-e.opts.SettledLookback)
	settled, err := e.journal.ListSince(ctx, e.db, cutoff)
	if err != nil {
		return err
	}
	for _, ev := range settled {
		e.session.MarkEvent(ev.ExternalEventID)
	}
	e.logger.Info("settled event set rebuilt", "events", len(settled), "lookback", e.opts.SettledLookback)
	return nil
}

func (e *Engine) publish(ctx context.Context, topic string, key string, payload []byte) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, topic, []byte(key), payload); err != nil {
		e.logger.Warn("event publish failed", "topic", topic, "error", err)
	}
}

func (e *Engine) recordSettled(outcome string) {
	e.metrics.RecordSettled(outcome)
	e.mu.Lock()
	e.settledSession++
	e.mu.Unlock()
}

// sleepCtx waits for d unless the context ends first. Used to space out
// consecutive on-chain submissions so the prior transaction's object version
// propagates before the next reads it.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
