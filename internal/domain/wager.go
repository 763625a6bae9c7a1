package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Currency is one of the two fungible units wagers are denominated in.
type Currency string

const (
	CurrencySUI Currency = "SUI"
	CurrencyUSD Currency = "USD"
)

// ValidCurrency reports whether c is a supported currency.
func ValidCurrency(c Currency) bool {
	return c == CurrencySUI || c == CurrencyUSD
}

// WagerStatus tracks the settlement lifecycle of a wager.
//
// pending/confirmed are pre-settlement. won is transient: the wager is a
// resolved winner whose payout has not been confirmed yet, and it must be
// retried until it reaches paid_out. lost, void and paid_out are terminal.
type WagerStatus string

const (
	WagerPending   WagerStatus = "pending"
	WagerConfirmed WagerStatus = "confirmed"
	WagerWon       WagerStatus = "won"
	WagerLost      WagerStatus = "lost"
	WagerPaidOut   WagerStatus = "paid_out"
	WagerVoid      WagerStatus = "void"
)

var wagerTransitions = map[WagerStatus][]WagerStatus{
	WagerPending:   {WagerConfirmed, WagerWon, WagerLost, WagerVoid},
	WagerConfirmed: {WagerWon, WagerLost, WagerVoid},
	WagerWon:       {WagerPaidOut, WagerVoid},
}

// CanTransitionTo reports whether the status change s -> next is legal.
func (s WagerStatus) CanTransitionTo(next WagerStatus) bool {
	for _, allowed := range wagerTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s WagerStatus) Terminal() bool {
	return len(wagerTransitions[s]) == 0
}

// Wager is the unit of settlement. Amounts are int64 minor units (MIST for
// SUI, cents for USD); odds are decimal odds times 100 (2.00 -> 200).
type Wager struct {
	ID               uuid.UUID   `json:"id"`
	UserID           uuid.UUID   `json:"user_id"`
	WalletAddress    string      `json:"wallet_address,omitempty"`
	LedgerRef        *string     `json:"ledger_ref,omitempty"`
	ExternalEventID  string      `json:"external_event_id,omitempty"`
	InternalEventID  *string     `json:"internal_event_id,omitempty"`
	HomeTeam         string      `json:"home_team"`
	AwayTeam         string      `json:"away_team"`
	Prediction       string      `json:"prediction"`
	OddsDecimal      int         `json:"odds_decimal"`
	StakeMinor       int64       `json:"stake_minor"`
	PotentialMinor   int64       `json:"potential_payout_minor"`
	PayoutMinor      int64       `json:"payout_minor"`
	Currency         Currency    `json:"currency"`
	Status           WagerStatus `json:"status"`
	SettlementTxHash *string     `json:"settlement_tx_hash,omitempty"`
	PayoutAttempts   int         `json:"payout_attempts"`
	ManualReview     bool        `json:"manual_review"`
	PlacedAt         time.Time   `json:"placed_at"`
	SettledAt        *time.Time  `json:"settled_at,omitempty"`
}

// HasLedgerRef reports whether the wager was placed through the on-chain
// contract and carries a ledger object reference.
func (w *Wager) HasLedgerRef() bool {
	return w.LedgerRef != nil && *w.LedgerRef != ""
}

// Paid reports whether a settlement transaction has been confirmed.
func (w *Wager) Paid() bool {
	return w.SettlementTxHash != nil && *w.SettlementTxHash != ""
}

var placeholderNames = []string{"unknown", "tbd", "n/a", "placeholder"}

// HasPlaceholderData reports whether identifying fields hold placeholder
// values. Such wagers are never settled automatically (anti-exploit guard:
// fabricated wagers were observed with "Unknown" teams and empty events).
func (w *Wager) HasPlaceholderData() bool {
	if w.HomeTeam == "" || w.AwayTeam == "" {
		return true
	}
	for _, p := range placeholderNames {
		if strings.EqualFold(w.HomeTeam, p) || strings.EqualFold(w.AwayTeam, p) {
			return true
		}
	}
	return w.ExternalEventID == "" && w.InternalEventID == nil
}

// PlausibleWallet reports whether addr looks like an address funds can be
// transferred to. Hex 0x-prefixed, 66 chars for a 32-byte account.
func PlausibleWallet(addr string) bool {
	if !strings.HasPrefix(addr, "0x") || len(addr) != 66 {
		return false
	}
	for _, c := range addr[2:] {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// SettlementFee computes the platform fee and net payout for a winning
// wager. The fee applies to profit only, never to the returned stake.
func SettlementFee(stakeMinor, grossMinor int64, feeBps int64) (feeMinor, netMinor int64) {
	profit := grossMinor - stakeMinor
	if profit < 0 {
		profit = 0
	}
	feeMinor = profit * feeBps / 10000
	return feeMinor, grossMinor - feeMinor
}
