package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/oddsline/platform/internal/chain"
	"github.com/oddsline/platform/internal/domain"
	"github.com/oddsline/platform/internal/events"
)

// settleAgainst runs one settlement sweep of the open wagers against a set
// of finished matches. Singles settle per event; parlays resolve each leg
// independently (from cache only) and settle as a unit.
func (e *Engine) settleAgainst(ctx context.Context, wagers []domain.Wager, matches []domain.FinishedMatch) {
	if len(wagers) == 0 || len(matches) == 0 {
		return
	}

	var singles, parlays []domain.Wager
	for _, w := range wagers {
		pred, err := domain.DecodePrediction(&w)
		if err != nil {
			e.logger.Warn("undecodable prediction, skipping wager",
				"wager_id", w.ID, "error", err)
			continue
		}
		if _, ok := pred.(domain.ParlayPrediction); ok {
			parlays = append(parlays, w)
		} else {
			singles = append(singles, w)
		}
	}

	for _, m := range matches {
		if ctx.Err() != nil {
			return
		}
		if e.session.EventSettled(m.EventID) {
			continue
		}

		batch := MatchWagersToEvent(singles, m)
		if len(batch) == 0 {
			continue
		}

		// The in-memory set only covers the journal lookback window; an
		// event settled before that still has its durable row.
		if ev, err := e.journal.Find(ctx, e.db, m.EventID); err == nil && ev != nil {
			e.session.MarkEvent(m.EventID)
			continue
		}

		settled := 0
		for _, w := range batch {
			single, _ := domain.DecodePrediction(&w)
			sp, ok := single.(domain.SinglePrediction)
			if !ok {
				continue
			}
			won := EvaluateOutcome(sp.Text, m, sp.MarketID, sp.OutcomeID)
			if err := e.settleWager(ctx, w, &m, won); err != nil {
				e.logger.Error("wager settlement failed",
					"wager_id", w.ID, "event_id", m.EventID, "error", err)
				continue
			}
			settled++
		}

		if settled > 0 {
			e.journalEvent(ctx, m, settled)
		}
	}

	for _, w := range parlays {
		if ctx.Err() != nil {
			return
		}
		if err := e.settleParlay(ctx, w, matches); err != nil {
			e.logger.Error("parlay settlement failed", "wager_id", w.ID, "error", err)
		}
	}
}

// journalEvent records the processed event durably and in memory, and emits
// the event-settled notification.
func (e *Engine) journalEvent(ctx context.Context, m domain.FinishedMatch, settled int) {
	ev := domain.SettledEvent{
		ExternalEventID: m.EventID,
		HomeTeam:        m.HomeTeam,
		AwayTeam:        m.AwayTeam,
		Score:           fmt.Sprintf("%d-%d", m.HomeScore, m.AwayScore),
		Winner:          string(m.Winner),
		BetsSettled:     settled,
		SettledAt:       time.Now(),
	}
	if err := e.journal.Upsert(ctx, e.db, ev); err != nil {
		e.logger.Error("settled event journal write failed",
			"event_id", m.EventID, "error", err)
		// Not marked in memory either: next pass retries the journal write.
		// The per-wager conditional transitions keep the retry harmless.
		return
	}
	e.session.MarkEvent(m.EventID)

	e.publish(ctx, events.TopicEventSettled, m.EventID, events.Marshal(&events.EventSettled{
		ExternalEventID: m.EventID,
		Winner:          string(m.Winner),
		Score:           fmt.Sprintf("%d-%d", m.HomeScore, m.AwayScore),
		BetsSettled:     settled,
	}))
}

// settleWager drives one wager through the settlement state machine for an
// already-determined outcome. m may be nil for manual settlement. Returning
// an error means the wager was released for retry on a later pass; a nil
// return means the wager's disposition is decided (settled, deferred to the
// payout loop, or intentionally skipped).
func (e *Engine) settleWager(ctx context.Context, w domain.Wager, m *domain.FinishedMatch, won bool) error {
	if res := e.session.CheckWager(ctx, w.ID.String()); !res.Allowed {
		return nil
	}

	if w.HasPlaceholderData() {
		e.logger.Warn("wager carries placeholder data, not settling",
			"wager_id", w.ID, "home", w.HomeTeam, "away", w.AwayTeam)
		return nil
	}

	fee, net := domain.SettlementFee(w.StakeMinor, w.PotentialMinor, e.opts.FeeBps)

	if w.HasLedgerRef() && e.bridge.SigningConfigured() {
		return e.settleOnChain(ctx, w, won, fee, net)
	}
	return e.settleOffChain(ctx, w, won, fee, net)
}

// settleOnChain submits the ledger settlement transaction, classifying
// failures into reconcile, defer, off-chain fallback and retry.
func (e *Engine) settleOnChain(ctx context.Context, w domain.Wager, won bool, fee, net int64) error {
	// Read before write: the bet object may have been settled out of band.
	if info, err := e.bridge.BetInfo(ctx, *w.LedgerRef); err == nil && info != nil && info.Settled {
		e.logger.Info("bet already settled on chain, reconciling",
			"wager_id", w.ID, "ledger_ref", *w.LedgerRef, "won", info.Won)
		e.reconcileChainSettled(ctx, w, info.Won, fee, net)
		return nil
	}

	if won {
		bal, err := e.bridge.TreasuryBalance(ctx, w.Currency)
		if err != nil {
			e.logger.Warn("treasury balance check failed, proceeding",
				"wager_id", w.ID, "error", err)
		} else if bal < net {
			e.logger.Warn("treasury cannot cover payout, deferring",
				"wager_id", w.ID, "need", net, "have", bal)
			e.commitOutcome(ctx, w, true, fee, net, nil, false)
			return nil
		}
	}

	res, err := e.bridge.SettleBet(ctx, *w.LedgerRef, won)
	if err != nil {
		e.session.ReleaseWager(w.ID.String())
		return fmt.Errorf("settle bet %s: %w", *w.LedgerRef, err)
	}

	if res.Success {
		// A winning settlement pays the bettor inside the transaction.
		e.commitOutcome(ctx, w, won, fee, net, &res.TxHash, won)
		sleepCtx(ctx, e.opts.SubmissionDelay)
		return nil
	}

	switch kind := chain.Classify(res.Error); kind {
	case chain.FailureAlreadySettled:
		if info, err := e.bridge.BetInfo(ctx, *w.LedgerRef); err == nil && info != nil {
			e.reconcileChainSettled(ctx, w, info.Won, fee, net)
		} else {
			e.commitOutcome(ctx, w, won, fee, net, nil, false)
		}
		return nil

	case chain.FailureInsufficientTreasury:
		e.logger.Warn("treasury rejected settlement, deferring payout", "wager_id", w.ID)
		e.commitOutcome(ctx, w, won, fee, net, nil, false)
		return nil

	case chain.FailureLegacyObject:
		e.logger.Info("legacy ledger object, settling off chain",
			"wager_id", w.ID, "ledger_ref", *w.LedgerRef)
		return e.settleOffChain(ctx, w, won, fee, net)

	default:
		e.session.ReleaseWager(w.ID.String())
		return fmt.Errorf("settle bet %s rejected (%s): %s", *w.LedgerRef, kind, res.Error)
	}
}

// reconcileChainSettled aligns the store with a bet the chain reports as
// already settled. The chain's recorded outcome wins over our evaluation.
func (e *Engine) reconcileChainSettled(ctx context.Context, w domain.Wager, chainWon bool, fee, net int64) {
	e.commitOutcome(ctx, w, chainWon, fee, net, nil, chainWon)
}

// settleOffChain settles through the store and internal balances, paying
// crypto wagers by direct wallet transfer when possible.
func (e *Engine) settleOffChain(ctx context.Context, w domain.Wager, won bool, fee, net int64) error {
	if !won {
		e.commitOutcome(ctx, w, false, 0, 0, nil, false)
		return nil
	}

	ok, err := e.wagers.ConditionalUpdateStatus(ctx, e.db, w.ID, w.Status, domain.WagerWon, net, nil)
	if err != nil {
		e.session.ReleaseWager(w.ID.String())
		return fmt.Errorf("mark wager won: %w", err)
	}
	if !ok {
		// Another process transitioned the wager first. Its settlement
		// stands; this one must not also pay.
		e.logger.Warn("concurrent settlement detected, standing down", "wager_id", w.ID)
		return nil
	}

	if fee > 0 {
		if err := e.wagers.RecordPlatformRevenue(ctx, e.db, w.ID, fee, w.Currency, "winner_fee"); err != nil {
			e.logger.Error("platform revenue record failed", "wager_id", w.ID, "error", err)
		}
	}

	e.recordSettled("won")
	e.publishWagerSettled(ctx, w, "won", net, fee, false)

	// Payout. Failure past this point never reverts the won status: the
	// wager stays won/unpaid and the payout loop owns it from here.
	e.payWonWager(ctx, w, net)
	return nil
}

// payWonWager executes the payout for a wager already committed as won.
// SUI wagers with a plausible wallet are paid by direct transfer; everything
// else is credited to the user's internal balance.
func (e *Engine) payWonWager(ctx context.Context, w domain.Wager, net int64) {
	if w.Currency == domain.CurrencySUI && domain.PlausibleWallet(w.WalletAddress) && e.bridge.SigningConfigured() {
		res, err := e.bridge.Transfer(ctx, w.WalletAddress, net, w.Currency)
		if err != nil || !res.Success {
			e.logger.Warn("payout transfer failed, leaving for retry",
				"wager_id", w.ID, "error", transferError(res, err))
			return
		}
		if ok, err := e.wagers.ConditionalUpdateStatus(ctx, e.db, w.ID, domain.WagerWon, domain.WagerPaidOut, net, &res.TxHash); err != nil || !ok {
			e.logger.Error("paid wager failed to transition to paid_out",
				"wager_id", w.ID, "tx_hash", res.TxHash, "error", err)
			return
		}
		e.publishPayout(ctx, w, res.TxHash, net)
		sleepCtx(ctx, e.opts.SubmissionDelay)
		return
	}

	if err := e.wagers.CreditBalance(ctx, e.db, w.UserID, net, w.Currency); err != nil {
		e.logger.Error("balance credit failed, leaving for retry",
			"wager_id", w.ID, "error", err)
		return
	}
	if ok, err := e.wagers.ConditionalUpdateStatus(ctx, e.db, w.ID, domain.WagerWon, domain.WagerPaidOut, net, nil); err != nil || !ok {
		e.logger.Error("credited wager failed to transition to paid_out",
			"wager_id", w.ID, "error", err)
		return
	}
	e.publishPayout(ctx, w, "", net)
}

// commitOutcome applies a fully-decided outcome to the store: the won/lost
// transition, revenue capture for losing stakes, and the immediate
// won->paid_out hop when the payout already happened on chain.
func (e *Engine) commitOutcome(ctx context.Context, w domain.Wager, won bool, fee, net int64, txHash *string, paid bool) {
	next := domain.WagerLost
	payout := int64(0)
	if won {
		next = domain.WagerWon
		payout = net
	}

	ok, err := e.wagers.ConditionalUpdateStatus(ctx, e.db, w.ID, w.Status, next, payout, txHash)
	if err != nil {
		e.logger.Error("settlement commit failed", "wager_id", w.ID, "error", err)
		e.session.ReleaseWager(w.ID.String())
		return
	}
	if !ok {
		e.logger.Warn("concurrent settlement detected, standing down", "wager_id", w.ID)
		return
	}

	outcome := "lost"
	if won {
		outcome = "won"
	}
	if !won && w.StakeMinor > 0 {
		if err := e.wagers.RecordPlatformRevenue(ctx, e.db, w.ID, w.StakeMinor, w.Currency, "losing_stake"); err != nil {
			e.logger.Error("platform revenue record failed", "wager_id", w.ID, "error", err)
		}
	}
	if won && fee > 0 {
		if err := e.wagers.RecordPlatformRevenue(ctx, e.db, w.ID, fee, w.Currency, "winner_fee"); err != nil {
			e.logger.Error("platform revenue record failed", "wager_id", w.ID, "error", err)
		}
	}

	e.recordSettled(outcome)
	e.publishWagerSettled(ctx, w, outcome, payout, fee, txHash != nil)

	if won && paid {
		if ok, err := e.wagers.ConditionalUpdateStatus(ctx, e.db, w.ID, domain.WagerWon, domain.WagerPaidOut, payout, txHash); err != nil || !ok {
			e.logger.Error("paid wager failed to transition to paid_out", "wager_id", w.ID, "error", err)
			return
		}
		hash := ""
		if txHash != nil {
			hash = *txHash
		}
		e.publishPayout(ctx, w, hash, payout)
	}
}

// voidWager refunds the stake and closes the wager, on chain when the bet
// object is reachable.
func (e *Engine) voidWager(ctx context.Context, w domain.Wager) error {
	if res := e.session.CheckWager(ctx, w.ID.String()); !res.Allowed {
		return nil
	}

	var txHash *string
	if w.HasLedgerRef() && e.bridge.SigningConfigured() {
		res, err := e.bridge.VoidBet(ctx, *w.LedgerRef)
		if err != nil {
			e.session.ReleaseWager(w.ID.String())
			return fmt.Errorf("void bet %s: %w", *w.LedgerRef, err)
		}
		if !res.Success && chain.Classify(res.Error) == chain.FailureUnknown {
			e.session.ReleaseWager(w.ID.String())
			return fmt.Errorf("void bet %s rejected: %s", *w.LedgerRef, res.Error)
		}
		if res.Success {
			txHash = &res.TxHash
		}
	}

	ok, err := e.wagers.ConditionalUpdateStatus(ctx, e.db, w.ID, w.Status, domain.WagerVoid, w.StakeMinor, txHash)
	if err != nil {
		e.session.ReleaseWager(w.ID.String())
		return fmt.Errorf("mark wager void: %w", err)
	}
	if !ok {
		e.logger.Warn("concurrent settlement detected, standing down", "wager_id", w.ID)
		return nil
	}

	// A chain void refunds in the transaction; off-chain voids refund the
	// internal balance.
	if txHash == nil {
		if err := e.wagers.CreditBalance(ctx, e.db, w.UserID, w.StakeMinor, w.Currency); err != nil {
			e.logger.Error("void refund credit failed", "wager_id", w.ID, "error", err)
		}
	}

	e.recordSettled("void")
	e.publishWagerSettled(ctx, w, "void", w.StakeMinor, 0, txHash != nil)
	return nil
}

func (e *Engine) publishWagerSettled(ctx context.Context, w domain.Wager, outcome string, payout, fee int64, onChain bool) {
	e.publish(ctx, events.TopicWagerSettled, w.ID.String(), events.Marshal(&events.WagerSettled{
		WagerID:     w.ID.String(),
		UserID:      w.UserID.String(),
		Outcome:     outcome,
		PayoutMinor: payout,
		FeeMinor:    fee,
		Currency:    string(w.Currency),
		OnChain:     onChain,
	}))
}

func (e *Engine) publishPayout(ctx context.Context, w domain.Wager, txHash string, net int64) {
	e.publish(ctx, events.TopicPayoutCompleted, w.ID.String(), events.Marshal(&events.PayoutCompleted{
		WagerID:  w.ID.String(),
		Wallet:   w.WalletAddress,
		TxHash:   txHash,
		Currency: string(w.Currency),
		NetMinor: net,
	}))
}

func transferError(res *chain.TxResult, err error) string {
	if err != nil {
		return err.Error()
	}
	if res != nil {
		return res.Error
	}
	return "unknown"
}
