package guard

import (
	"context"
	"strings"
	"sync"

	"github.com/oddsline/platform/internal/domain"
)

// WalletBlocklist blocks payouts to wallets flagged during exploit
// investigations. Seeded from config; wallets can be added at runtime by
// an operator action.
type WalletBlocklist struct {
	mu      sync.RWMutex
	blocked map[string]bool
}

// NewWalletBlocklist creates a blocklist from the seed wallets.
func NewWalletBlocklist(wallets []string) *WalletBlocklist {
	blocked := make(map[string]bool, len(wallets))
	for _, w := range wallets {
		blocked[strings.ToLower(w)] = true
	}
	return &WalletBlocklist{blocked: blocked}
}

// Check returns whether a payout to the wallet is allowed.
func (b *WalletBlocklist) Check(_ context.Context, wallet string) domain.GuardResult {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.blocked[strings.ToLower(wallet)] {
		return domain.GuardResult{
			Allowed: false,
			Reason:  "wallet is blocklisted",
			Guard:   "wallet_blocklist",
		}
	}
	return domain.GuardResult{Allowed: true}
}

// Add blocks a wallet.
func (b *WalletBlocklist) Add(wallet string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blocked[strings.ToLower(wallet)] = true
}
