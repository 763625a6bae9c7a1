package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddsline/platform/internal/chain"
	"github.com/oddsline/platform/internal/domain"
)

func TestSettleWagerOffChainWinnerPaysNetOfFee(t *testing.T) {
	w := testWager(domain.WagerConfirmed)
	env := newTestEnv(w)

	err := env.engine.settleWager(context.Background(), w, nil, true)
	require.NoError(t, err)

	got := env.wagers.get(w.ID)
	assert.Equal(t, domain.WagerPaidOut, got.Status)
	assert.Equal(t, int64(995), got.PayoutMinor, "1 percent fee on 500 profit")
	require.NotNil(t, got.SettlementTxHash)
	assert.Equal(t, 1, env.bridge.transferCalls)
	assert.Equal(t, int64(5), env.wagers.revenue[w.ID.String()+":winner_fee"])
}

func TestSettleWagerOffChainLoserKeepsStakeAsRevenue(t *testing.T) {
	w := testWager(domain.WagerConfirmed)
	env := newTestEnv(w)

	require.NoError(t, env.engine.settleWager(context.Background(), w, nil, false))

	got := env.wagers.get(w.ID)
	assert.Equal(t, domain.WagerLost, got.Status)
	assert.Zero(t, got.PayoutMinor)
	assert.Equal(t, int64(500), env.wagers.revenue[w.ID.String()+":losing_stake"])
	assert.Zero(t, env.bridge.transferCalls)
}

func TestSettleWagerUSDWinnerCreditedInternally(t *testing.T) {
	w := testWager(domain.WagerConfirmed)
	w.Currency = domain.CurrencyUSD
	env := newTestEnv(w)

	require.NoError(t, env.engine.settleWager(context.Background(), w, nil, true))

	got := env.wagers.get(w.ID)
	assert.Equal(t, domain.WagerPaidOut, got.Status)
	assert.Equal(t, int64(995), env.wagers.balances[w.UserID])
	assert.Zero(t, env.bridge.transferCalls, "USD payouts never touch the chain")
}

func TestSettleWagerSecondCallSameSessionIsNoop(t *testing.T) {
	w := testWager(domain.WagerConfirmed)
	env := newTestEnv(w)

	require.NoError(t, env.engine.settleWager(context.Background(), w, nil, true))
	require.NoError(t, env.engine.settleWager(context.Background(), w, nil, true))

	assert.Equal(t, 1, env.bridge.transferCalls, "duplicate trigger must not pay twice")
}

func TestSettleWagerPlaceholderDataNeverSettles(t *testing.T) {
	w := testWager(domain.WagerConfirmed)
	w.HomeTeam = "Unknown"
	env := newTestEnv(w)

	require.NoError(t, env.engine.settleWager(context.Background(), w, nil, true))

	assert.Equal(t, domain.WagerConfirmed, env.wagers.get(w.ID).Status)
	assert.Zero(t, env.bridge.transferCalls)
}

func TestSettleWagerOnChainWinnerPaidInTransaction(t *testing.T) {
	w := testWager(domain.WagerConfirmed)
	w.LedgerRef = strPtr("0xbet1")
	env := newTestEnv(w)

	require.NoError(t, env.engine.settleWager(context.Background(), w, nil, true))

	got := env.wagers.get(w.ID)
	assert.Equal(t, domain.WagerPaidOut, got.Status)
	assert.Equal(t, 1, env.bridge.settleCalls)
	assert.Zero(t, env.bridge.transferCalls, "the settlement transaction carries the payout")
	require.NotNil(t, got.SettlementTxHash)
}

func TestSettleWagerOnChainAlreadySettledReconciles(t *testing.T) {
	w := testWager(domain.WagerConfirmed)
	w.LedgerRef = strPtr("0xbet1")
	env := newTestEnv(w)
	env.bridge.bets["0xbet1"] = &chain.BetInfo{Settled: true, Won: false}

	// Our evaluation says won; the chain's recorded loss wins.
	require.NoError(t, env.engine.settleWager(context.Background(), w, nil, true))

	got := env.wagers.get(w.ID)
	assert.Equal(t, domain.WagerLost, got.Status)
	assert.Zero(t, env.bridge.settleCalls, "no transaction for an already settled bet")
}

func TestSettleWagerInsufficientTreasuryDefersPayout(t *testing.T) {
	w := testWager(domain.WagerConfirmed)
	w.LedgerRef = strPtr("0xbet1")
	env := newTestEnv(w)
	env.bridge.treasury = 10

	require.NoError(t, env.engine.settleWager(context.Background(), w, nil, true))

	got := env.wagers.get(w.ID)
	assert.Equal(t, domain.WagerWon, got.Status, "won but unpaid until the treasury is topped up")
	assert.Nil(t, got.SettlementTxHash)
	assert.Zero(t, env.bridge.settleCalls)
}

func TestSettleWagerLegacyObjectFallsBackOffChain(t *testing.T) {
	w := testWager(domain.WagerConfirmed)
	w.LedgerRef = strPtr("0xbet1")
	env := newTestEnv(w)
	env.bridge.settleErrMsg = `object "0xbet1" is owned by account and cannot be used`

	require.NoError(t, env.engine.settleWager(context.Background(), w, nil, true))

	got := env.wagers.get(w.ID)
	assert.Equal(t, domain.WagerPaidOut, got.Status)
	assert.Equal(t, 1, env.bridge.transferCalls, "paid by direct transfer instead")
}

func TestSettleWagerUnknownChainErrorReleasedForRetry(t *testing.T) {
	w := testWager(domain.WagerConfirmed)
	w.LedgerRef = strPtr("0xbet1")
	env := newTestEnv(w)
	env.bridge.settleErrMsg = "rpc timeout"

	err := env.engine.settleWager(context.Background(), w, nil, true)
	require.Error(t, err)
	assert.Equal(t, domain.WagerConfirmed, env.wagers.get(w.ID).Status)

	// Released from the session set: the next pass may try again.
	env.bridge.settleErrMsg = ""
	require.NoError(t, env.engine.settleWager(context.Background(), w, nil, true))
	assert.Equal(t, domain.WagerPaidOut, env.wagers.get(w.ID).Status)
}

func TestSettleWagerConcurrentSettlementStandsDown(t *testing.T) {
	w := testWager(domain.WagerConfirmed)
	env := newTestEnv(w)

	// Another process settles the wager between list and commit.
	ok, err := env.wagers.ConditionalUpdateStatus(context.Background(), nil, w.ID, domain.WagerConfirmed, domain.WagerLost, 0, nil)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, env.engine.settleWager(context.Background(), w, nil, true))

	assert.Equal(t, domain.WagerLost, env.wagers.get(w.ID).Status, "the earlier settlement stands")
	assert.Zero(t, env.bridge.transferCalls)
}

func TestVoidWagerRefundsStake(t *testing.T) {
	w := testWager(domain.WagerConfirmed)
	w.Currency = domain.CurrencyUSD
	env := newTestEnv(w)

	require.NoError(t, env.engine.voidWager(context.Background(), w))

	got := env.wagers.get(w.ID)
	assert.Equal(t, domain.WagerVoid, got.Status)
	assert.Equal(t, int64(500), got.PayoutMinor)
	assert.Equal(t, int64(500), env.wagers.balances[w.UserID], "stake refunded in full, no fee")
}

func TestVoidWagerOnChainUsesVoidTransaction(t *testing.T) {
	w := testWager(domain.WagerConfirmed)
	w.LedgerRef = strPtr("0xbet1")
	env := newTestEnv(w)

	require.NoError(t, env.engine.voidWager(context.Background(), w))

	got := env.wagers.get(w.ID)
	assert.Equal(t, domain.WagerVoid, got.Status)
	assert.Equal(t, 1, env.bridge.voidCalls)
	assert.Zero(t, env.wagers.balances[w.UserID], "the void transaction refunds, not the balance")
}

func TestSettleAgainstJournalsEvent(t *testing.T) {
	w := testWager(domain.WagerConfirmed)
	env := newTestEnv(w)

	env.engine.settleAgainst(context.Background(), []domain.Wager{w}, []domain.FinishedMatch{finishedArsenalWin()})

	ev, err := env.journal.Find(context.Background(), nil, "198772")
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, 1, ev.BetsSettled)
	assert.Equal(t, "home", ev.Winner)
	assert.Equal(t, "2-0", ev.Score)

}

func TestSettleAgainstSkipsEventAlreadyJournaled(t *testing.T) {
	first := testWager(domain.WagerConfirmed)
	env := newTestEnv(first)

	env.engine.settleAgainst(context.Background(), []domain.Wager{first}, []domain.FinishedMatch{finishedArsenalWin()})
	require.Equal(t, domain.WagerPaidOut, env.wagers.get(first.ID).Status)

	// A wager surfacing later for a settled event waits for an operator.
	late := testWager(domain.WagerConfirmed)
	env.wagers.mu.Lock()
	cp := late
	env.wagers.wagers[late.ID] = &cp
	env.wagers.mu.Unlock()

	env.engine.settleAgainst(context.Background(), []domain.Wager{late}, []domain.FinishedMatch{finishedArsenalWin()})
	assert.Equal(t, domain.WagerConfirmed, env.wagers.get(late.ID).Status)
}

func TestSettleAgainstChecksJournalBeyondLookbackWindow(t *testing.T) {
	w := testWager(domain.WagerConfirmed)
	env := newTestEnv(w)

	// Settled months ago: present in the journal but too old for the
	// in-memory rebuild.
	require.NoError(t, env.journal.Upsert(context.Background(), nil, domain.SettledEvent{
		ExternalEventID: "198772",
		BetsSettled:     4,
		SettledAt:       time.Now().Add(-90 * 24 * time.Hour),
	}))
	require.NoError(t, env.engine.rebuildSettledSet(context.Background()))

	env.engine.settleAgainst(context.Background(), []domain.Wager{w}, []domain.FinishedMatch{finishedArsenalWin()})

	assert.Equal(t, domain.WagerConfirmed, env.wagers.get(w.ID).Status)
	ev, err := env.journal.Find(context.Background(), nil, "198772")
	require.NoError(t, err)
	assert.Equal(t, 4, ev.BetsSettled, "no duplicate settlement accumulated")
}
