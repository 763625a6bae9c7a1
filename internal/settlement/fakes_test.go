package settlement

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oddsline/platform/internal/cache"
	"github.com/oddsline/platform/internal/chain"
	"github.com/oddsline/platform/internal/domain"
	"github.com/oddsline/platform/internal/guard"
	"github.com/oddsline/platform/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// fakeWagerRepo is an in-memory WagerRepository that enforces the same
// conditional-transition semantics as the SQL implementation.
type fakeWagerRepo struct {
	mu        sync.Mutex
	wagers    map[uuid.UUID]*domain.Wager
	balances  map[uuid.UUID]int64
	revenue   map[string]int64
	creditErr error
}

func newFakeWagerRepo(wagers ...domain.Wager) *fakeWagerRepo {
	r := &fakeWagerRepo{
		wagers:   make(map[uuid.UUID]*domain.Wager),
		balances: make(map[uuid.UUID]int64),
		revenue:  make(map[string]int64),
	}
	for i := range wagers {
		w := wagers[i]
		r.wagers[w.ID] = &w
	}
	return r
}

func (r *fakeWagerRepo) get(id uuid.UUID) domain.Wager {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.wagers[id]
}

func (r *fakeWagerRepo) FindByID(_ context.Context, _ repository.DBTX, id uuid.UUID) (*domain.Wager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wagers[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *fakeWagerRepo) ListByStatus(_ context.Context, _ repository.DBTX, statuses ...domain.WagerStatus) ([]domain.Wager, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Wager
	for _, w := range r.wagers {
		for _, s := range statuses {
			if w.Status == s {
				out = append(out, *w)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeWagerRepo) ConditionalUpdateStatus(_ context.Context, _ repository.DBTX, id uuid.UUID, expected, next domain.WagerStatus, payoutMinor int64, txHash *string) (bool, error) {
	if !expected.CanTransitionTo(next) {
		return false, domain.ErrInvalidTransition(expected, next)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wagers[id]
	if !ok || w.Status != expected {
		return false, nil
	}
	w.Status = next
	w.PayoutMinor = payoutMinor
	if txHash != nil {
		w.SettlementTxHash = txHash
	}
	now := time.Now()
	w.SettledAt = &now
	return true, nil
}

func (r *fakeWagerRepo) IncrementPayoutAttempts(_ context.Context, _ repository.DBTX, id uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wagers[id]
	if !ok {
		return 0, domain.ErrNotFound("wager", id.String())
	}
	w.PayoutAttempts++
	return w.PayoutAttempts, nil
}

func (r *fakeWagerRepo) MarkManualReview(_ context.Context, _ repository.DBTX, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.wagers[id]; ok {
		w.ManualReview = true
	}
	return nil
}

func (r *fakeWagerRepo) CreditBalance(_ context.Context, _ repository.DBTX, userID uuid.UUID, amountMinor int64, _ domain.Currency) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.creditErr != nil {
		return r.creditErr
	}
	r.balances[userID] += amountMinor
	return nil
}

func (r *fakeWagerRepo) RecordPlatformRevenue(_ context.Context, _ repository.DBTX, wagerID uuid.UUID, amountMinor int64, _ domain.Currency, source string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revenue[wagerID.String()+":"+source] += amountMinor
	return nil
}

// fakeEventRepo is an in-memory SettledEventRepository.
type fakeEventRepo struct {
	mu     sync.Mutex
	events map[string]*domain.SettledEvent
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{events: make(map[string]*domain.SettledEvent)}
}

func (r *fakeEventRepo) Find(_ context.Context, _ repository.DBTX, externalEventID string) (*domain.SettledEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, ok := r.events[externalEventID]
	if !ok {
		return nil, nil
	}
	cp := *ev
	return &cp, nil
}

func (r *fakeEventRepo) Upsert(_ context.Context, _ repository.DBTX, ev domain.SettledEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.events[ev.ExternalEventID]; ok {
		existing.BetsSettled += ev.BetsSettled
		return nil
	}
	cp := ev
	r.events[ev.ExternalEventID] = &cp
	return nil
}

func (r *fakeEventRepo) ListSince(_ context.Context, _ repository.DBTX, cutoff time.Time) ([]domain.SettledEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.SettledEvent
	for _, ev := range r.events {
		if ev.SettledAt.After(cutoff) {
			out = append(out, *ev)
		}
	}
	return out, nil
}

// fakeBridge is a scriptable chain.Bridge.
type fakeBridge struct {
	mu      sync.Mutex
	signing bool

	treasury   int64
	signer     int64
	balanceErr error

	bets map[string]*chain.BetInfo

	// When set, SettleBet and Transfer fail with this error string.
	settleErrMsg   string
	transferErrMsg string

	settleCalls   int
	transferCalls int
	voidCalls     int
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{
		signing:  true,
		treasury: 1 << 40,
		signer:   1 << 40,
		bets:     make(map[string]*chain.BetInfo),
	}
}

func (b *fakeBridge) SigningConfigured() bool { return b.signing }

func (b *fakeBridge) TreasuryBalance(_ context.Context, _ domain.Currency) (int64, error) {
	return b.treasury, b.balanceErr
}

func (b *fakeBridge) SignerBalance(_ context.Context) (int64, error) {
	return b.signer, b.balanceErr
}

func (b *fakeBridge) BetInfo(_ context.Context, ledgerRef string) (*chain.BetInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	info, ok := b.bets[ledgerRef]
	if !ok {
		return nil, nil
	}
	cp := *info
	return &cp, nil
}

func (b *fakeBridge) SettleBet(_ context.Context, ledgerRef string, won bool) (*chain.TxResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.settleCalls++
	if b.settleErrMsg != "" {
		return &chain.TxResult{Success: false, Error: b.settleErrMsg}, nil
	}
	b.bets[ledgerRef] = &chain.BetInfo{Settled: true, Won: won, Status: "settled"}
	return &chain.TxResult{Success: true, TxHash: fmt.Sprintf("0xsettle%d", b.settleCalls)}, nil
}

func (b *fakeBridge) VoidBet(_ context.Context, ledgerRef string) (*chain.TxResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.voidCalls++
	b.bets[ledgerRef] = &chain.BetInfo{Settled: true, Status: "void"}
	return &chain.TxResult{Success: true, TxHash: fmt.Sprintf("0xvoid%d", b.voidCalls)}, nil
}

func (b *fakeBridge) Transfer(_ context.Context, _ string, _ int64, _ domain.Currency) (*chain.TxResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transferCalls++
	if b.transferErrMsg != "" {
		return &chain.TxResult{Success: false, Error: b.transferErrMsg}, nil
	}
	return &chain.TxResult{Success: true, TxHash: fmt.Sprintf("0xpay%d", b.transferCalls)}, nil
}

// fakeProvider serves canned finished matches per sport.
type fakeProvider struct {
	mu      sync.Mutex
	matches map[string][]domain.FinishedMatch
	err     error
	calls   int
}

func (p *fakeProvider) FetchFinished(_ context.Context, sport string, day time.Time) ([]domain.FinishedMatch, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	// Matches surface on the "today" query only so merged day results hold
	// no duplicates.
	if day.Before(time.Now().UTC().Add(-time.Hour)) {
		return nil, nil
	}
	return p.matches[sport], nil
}

type testEnv struct {
	engine   *Engine
	wagers   *fakeWagerRepo
	journal  *fakeEventRepo
	bridge   *fakeBridge
	provider *fakeProvider
	cache    *cache.MemoryMatchCache
}

func newTestEnv(wagers ...domain.Wager) *testEnv {
	env := &testEnv{
		wagers:   newFakeWagerRepo(wagers...),
		journal:  newFakeEventRepo(),
		bridge:   newFakeBridge(),
		provider: &fakeProvider{matches: make(map[string][]domain.FinishedMatch)},
		cache:    cache.NewMemoryMatchCache(),
	}
	env.engine = NewEngine(Deps{
		Wagers:    env.wagers,
		Journal:   env.journal,
		Provider:  env.provider,
		Cache:     env.cache,
		Bridge:    env.bridge,
		Blocklist: guard.NewWalletBlocklist(nil),
		Logger:    testLogger(),
	}, Options{
		Interval:     time.Minute,
		ResultsTTL:   time.Minute,
		FeeBps:       100,
		RetryCeiling: 3,
		SignerFloor:  1,
		PrimarySport: "soccer",
	})
	return env
}

const testWallet = "0x" + "ab12cd34ef56ab12cd34ef56ab12cd34ef56ab12cd34ef56ab12cd34ef56ab12"

func testWager(status domain.WagerStatus) domain.Wager {
	return domain.Wager{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		WalletAddress:   testWallet,
		ExternalEventID: "198772",
		HomeTeam:        "Arsenal",
		AwayTeam:        "Chelsea",
		Prediction:      "home",
		OddsDecimal:     200,
		StakeMinor:      500,
		PotentialMinor:  1000,
		Currency:        domain.CurrencySUI,
		Status:          status,
		PlacedAt:        time.Now().Add(-time.Hour),
	}
}

func finishedArsenalWin() domain.FinishedMatch {
	return domain.FinishedMatch{
		EventID:   "198772",
		Sport:     "soccer",
		HomeTeam:  "Arsenal",
		AwayTeam:  "Chelsea",
		HomeScore: 2,
		AwayScore: 0,
		Winner:    domain.WinnerHome,
		Status:    "FT",
	}
}
