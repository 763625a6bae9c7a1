package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/oddsline/platform/internal/domain"
)

// GatewayClient is the production Bridge, talking to the chain gateway
// service that holds the signing key and submits transactions.
type GatewayClient struct {
	baseURL   string
	signerKey string
	logger    *slog.Logger
	client    *http.Client
}

// NewGatewayClient creates a Bridge backed by the chain gateway. An empty
// signerKey leaves the client in read-only mode (SigningConfigured false).
func NewGatewayClient(baseURL, signerKey string, logger *slog.Logger) *GatewayClient {
	return &GatewayClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		signerKey: signerKey,
		logger:    logger,
		client:    &http.Client{Timeout: 60 * time.Second},
	}
}

func (g *GatewayClient) SigningConfigured() bool {
	return g.signerKey != ""
}

// ── HTTP helpers ──

func (g *GatewayClient) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.signerKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	g.logger.Debug("gateway request", "path", path, "status", resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, string(respBody[:min(300, len(respBody))]))
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (g *GatewayClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", g.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.signerKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, string(respBody[:min(300, len(respBody))]))
	}
	return json.Unmarshal(respBody, out)
}

// ── Bridge implementation ──

func (g *GatewayClient) TreasuryBalance(ctx context.Context, currency domain.Currency) (int64, error) {
	if !domain.ValidCurrency(currency) {
		return 0, domain.ErrValidation("unsupported currency " + string(currency))
	}
	var out struct {
		BalanceMinor int64 `json:"balance_minor"`
	}
	if err := g.get(ctx, "/v1/treasury/balance?currency="+string(currency), &out); err != nil {
		return 0, fmt.Errorf("treasury balance: %w", err)
	}
	return out.BalanceMinor, nil
}

func (g *GatewayClient) SignerBalance(ctx context.Context) (int64, error) {
	var out struct {
		BalanceMinor int64 `json:"balance_minor"`
	}
	if err := g.get(ctx, "/v1/signer/balance", &out); err != nil {
		return 0, fmt.Errorf("signer balance: %w", err)
	}
	return out.BalanceMinor, nil
}

func (g *GatewayClient) BetInfo(ctx context.Context, ledgerRef string) (*BetInfo, error) {
	var out BetInfo
	if err := g.get(ctx, "/v1/bets/"+ledgerRef, &out); err != nil {
		return nil, fmt.Errorf("bet info %s: %w", ledgerRef, err)
	}
	return &out, nil
}

func (g *GatewayClient) SettleBet(ctx context.Context, ledgerRef string, won bool) (*TxResult, error) {
	var out TxResult
	payload := map[string]any{"ledger_ref": ledgerRef, "won": won}
	if err := g.post(ctx, "/v1/bets/settle", payload, &out); err != nil {
		return nil, fmt.Errorf("settle bet %s: %w", ledgerRef, err)
	}
	return &out, nil
}

func (g *GatewayClient) VoidBet(ctx context.Context, ledgerRef string) (*TxResult, error) {
	var out TxResult
	payload := map[string]any{"ledger_ref": ledgerRef}
	if err := g.post(ctx, "/v1/bets/void", payload, &out); err != nil {
		return nil, fmt.Errorf("void bet %s: %w", ledgerRef, err)
	}
	return &out, nil
}

func (g *GatewayClient) Transfer(ctx context.Context, wallet string, amountMinor int64, currency domain.Currency) (*TxResult, error) {
	if !domain.ValidCurrency(currency) {
		return nil, domain.ErrValidation("unsupported currency " + string(currency))
	}
	var out TxResult
	payload := map[string]any{
		"wallet":       wallet,
		"amount_minor": amountMinor,
		"currency":     string(currency),
	}
	if err := g.post(ctx, "/v1/transfer", payload, &out); err != nil {
		return nil, fmt.Errorf("transfer to %s: %w", wallet, err)
	}
	return &out, nil
}
