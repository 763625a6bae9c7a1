package settlement

import (
	"context"

	"github.com/oddsline/platform/internal/chain"
	"github.com/oddsline/platform/internal/domain"
)

// runPayoutRetry sweeps won-but-unpaid wagers. It runs inside every
// reconciliation pass, after settlement, and is the only place payouts are
// retried: the settlement path hands off here the moment a first payout
// attempt fails.
func (e *Engine) runPayoutRetry(ctx context.Context, wonUnpaid []domain.Wager) {
	if len(wonUnpaid) == 0 {
		return
	}

	signing := e.bridge.SigningConfigured()
	if signing {
		bal, err := e.bridge.SignerBalance(ctx)
		if err != nil {
			e.logger.Warn("signer balance check failed, skipping payout sweep", "error", err)
			return
		}
		if bal < e.opts.SignerFloor {
			e.logger.Warn("signer balance below floor, skipping payout sweep",
				"balance", bal, "floor", e.opts.SignerFloor)
			return
		}
	}

	for _, w := range wonUnpaid {
		if ctx.Err() != nil {
			return
		}
		e.retryPayout(ctx, w, signing)
	}
}

func (e *Engine) retryPayout(ctx context.Context, w domain.Wager, signing bool) {
	if w.ManualReview {
		return
	}
	if res := e.blocklist.Check(ctx, w.WalletAddress); !res.Allowed {
		e.logger.Warn("payout blocked", "wager_id", w.ID,
			"wallet", w.WalletAddress, "reason", res.Reason)
		return
	}
	if w.PayoutAttempts >= e.opts.RetryCeiling {
		e.logger.Error("payout retry ceiling reached, flagging for manual review",
			"wager_id", w.ID, "attempts", w.PayoutAttempts)
		if err := e.wagers.MarkManualReview(ctx, e.db, w.ID); err != nil {
			e.logger.Error("manual review flag failed", "wager_id", w.ID, "error", err)
		}
		return
	}

	e.metrics.RecordPayoutRetry()

	_, net := domain.SettlementFee(w.StakeMinor, w.PotentialMinor, e.opts.FeeBps)
	if w.PayoutMinor > 0 {
		net = w.PayoutMinor
	}

	switch {
	case w.HasLedgerRef() && signing && !e.memo.Contains(*w.LedgerRef):
		e.retryChainPayout(ctx, w, net)
	case w.Currency == domain.CurrencySUI && domain.PlausibleWallet(w.WalletAddress) && signing:
		res, err := e.bridge.Transfer(ctx, w.WalletAddress, net, w.Currency)
		if err != nil || !res.Success {
			e.logger.Warn("payout transfer retry failed",
				"wager_id", w.ID, "error", transferError(res, err))
			e.bumpAttempts(ctx, w)
			return
		}
		e.markPaid(ctx, w, res.TxHash, net)
		sleepCtx(ctx, e.opts.SubmissionDelay)
	default:
		if err := e.wagers.CreditBalance(ctx, e.db, w.UserID, net, w.Currency); err != nil {
			e.logger.Warn("balance credit retry failed", "wager_id", w.ID, "error", err)
			e.bumpAttempts(ctx, w)
			return
		}
		e.markPaid(ctx, w, "", net)
	}
}

// retryChainPayout re-submits the settlement transaction for a winner whose
// original submission failed.
func (e *Engine) retryChainPayout(ctx context.Context, w domain.Wager, net int64) {
	res, err := e.bridge.SettleBet(ctx, *w.LedgerRef, true)
	if err != nil {
		e.logger.Warn("on-chain payout retry failed", "wager_id", w.ID, "error", err)
		e.bumpAttempts(ctx, w)
		return
	}
	if res.Success {
		e.markPaid(ctx, w, res.TxHash, net)
		sleepCtx(ctx, e.opts.SubmissionDelay)
		return
	}

	switch chain.Classify(res.Error) {
	case chain.FailureAlreadySettled:
		// The original submission landed after all.
		e.logger.Info("bet settled on chain by earlier attempt",
			"wager_id", w.ID, "ledger_ref", *w.LedgerRef)
		e.markPaid(ctx, w, "", net)
	case chain.FailureLegacyObject:
		// Permanently unpayable through the contract. Memoized so the
		// sweep stops burning gas on it; the wallet transfer path takes
		// over next pass.
		e.memo.Add(*w.LedgerRef)
		e.logger.Warn("ledger object unsettleable, memoized",
			"wager_id", w.ID, "ledger_ref", *w.LedgerRef)
		e.bumpAttempts(ctx, w)
	default:
		e.logger.Warn("on-chain payout retry rejected",
			"wager_id", w.ID, "error", res.Error)
		e.bumpAttempts(ctx, w)
	}
}

func (e *Engine) bumpAttempts(ctx context.Context, w domain.Wager) {
	if _, err := e.wagers.IncrementPayoutAttempts(ctx, e.db, w.ID); err != nil {
		e.logger.Error("payout attempt counter update failed", "wager_id", w.ID, "error", err)
	}
}

func (e *Engine) markPaid(ctx context.Context, w domain.Wager, txHash string, net int64) {
	var hash *string
	if txHash != "" {
		hash = &txHash
	}
	ok, err := e.wagers.ConditionalUpdateStatus(ctx, e.db, w.ID, domain.WagerWon, domain.WagerPaidOut, net, hash)
	if err != nil || !ok {
		e.logger.Error("paid wager failed to transition to paid_out",
			"wager_id", w.ID, "tx_hash", txHash, "error", err)
		return
	}
	e.publishPayout(ctx, w, txHash, net)
}
