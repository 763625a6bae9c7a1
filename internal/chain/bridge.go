package chain

import (
	"context"

	"github.com/oddsline/platform/internal/domain"
)

// BetInfo is the ledger's view of an on-chain bet object.
type BetInfo struct {
	Settled     bool   `json:"settled"`
	Won         bool   `json:"won"`
	Status      string `json:"status"`
	AmountMinor int64  `json:"amount_minor"`
}

// TxResult is the outcome of a submitted ledger transaction.
type TxResult struct {
	Success bool   `json:"success"`
	TxHash  string `json:"tx_hash,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Bridge executes and verifies on-chain settlement against the betting
// contract. The reconciler consumes this interface; the gateway client in
// this package is the production implementation.
type Bridge interface {
	// SigningConfigured reports whether a signing key is available. When
	// false the on-chain settlement path is skipped entirely.
	SigningConfigured() bool

	// TreasuryBalance returns the contract treasury's spendable balance
	// for the given currency, in minor units.
	TreasuryBalance(ctx context.Context, currency domain.Currency) (int64, error)

	// SignerBalance returns the gas balance of the signing wallet.
	SignerBalance(ctx context.Context) (int64, error)

	// BetInfo reads the on-chain state of a bet object.
	BetInfo(ctx context.Context, ledgerRef string) (*BetInfo, error)

	// SettleBet submits the settlement transaction. A winning settlement
	// pays the bettor from the treasury inside the same transaction.
	SettleBet(ctx context.Context, ledgerRef string, won bool) (*TxResult, error)

	// VoidBet refunds the stake and closes the bet object.
	VoidBet(ctx context.Context, ledgerRef string) (*TxResult, error)

	// Transfer sends funds from the signing wallet directly to a user
	// wallet, used for off-chain-ledger payouts.
	Transfer(ctx context.Context, wallet string, amountMinor int64, currency domain.Currency) (*TxResult, error)
}
