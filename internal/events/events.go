// Package events defines the settlement event contracts published to kafka.
package events

import (
	"encoding/json"
	"time"
)

// Topics published by the reconciler.
const (
	TopicWagerSettled    = "settlement.wager-settled"
	TopicPayoutCompleted = "settlement.payout-completed"
	TopicEventSettled    = "settlement.event-settled"
)

// WagerSettled is emitted when a wager reaches won, lost or void.
type WagerSettled struct {
	WagerID     string `json:"wager_id"`
	UserID      string `json:"user_id"`
	Outcome     string `json:"outcome"`
	PayoutMinor int64  `json:"payout_minor"`
	FeeMinor    int64  `json:"fee_minor"`
	Currency    string `json:"currency"`
	OnChain     bool   `json:"on_chain"`
	TsUnixMs    int64  `json:"ts_unix_ms"`
}

// PayoutCompleted is emitted when a payout transaction confirms.
type PayoutCompleted struct {
	WagerID  string `json:"wager_id"`
	Wallet   string `json:"wallet,omitempty"`
	TxHash   string `json:"tx_hash"`
	Currency string `json:"currency"`
	NetMinor int64  `json:"net_minor"`
	TsUnixMs int64  `json:"ts_unix_ms"`
}

// EventSettled is emitted once per finished event after its wager batch is
// processed.
type EventSettled struct {
	ExternalEventID string `json:"external_event_id"`
	Winner          string `json:"winner"`
	Score           string `json:"score"`
	BetsSettled     int    `json:"bets_settled"`
	TsUnixMs        int64  `json:"ts_unix_ms"`
}

// Marshal stamps the event time and encodes to JSON, ignoring marshal errors
// the way the publishers in this codebase treat fire-and-forget events.
func Marshal(v any) []byte {
	switch e := v.(type) {
	case *WagerSettled:
		e.TsUnixMs = time.Now().UnixMilli()
	case *PayoutCompleted:
		e.TsUnixMs = time.Now().UnixMilli()
	case *EventSettled:
		e.TsUnixMs = time.Now().UnixMilli()
	}
	b, _ := json.Marshal(v)
	return b
}
