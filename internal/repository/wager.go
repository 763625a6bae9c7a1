package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/oddsline/platform/internal/domain"
)

type wagerRepo struct{}

// NewWagerRepository returns a pgx-backed WagerRepository.
func NewWagerRepository() WagerRepository {
	return &wagerRepo{}
}

const wagerColumns = `id, user_id, wallet_address, ledger_ref, external_event_id, internal_event_id,
	home_team, away_team, prediction, odds_decimal, stake_minor, potential_payout_minor,
	payout_minor, currency, status, settlement_tx_hash, payout_attempts, manual_review, placed_at, settled_at`

func scanWager(row pgx.Row) (*domain.Wager, error) {
	var w domain.Wager
	err := row.Scan(
		&w.ID, &w.UserID, &w.WalletAddress, &w.LedgerRef, &w.ExternalEventID, &w.InternalEventID,
		&w.HomeTeam, &w.AwayTeam, &w.Prediction, &w.OddsDecimal, &w.StakeMinor, &w.PotentialMinor,
		&w.PayoutMinor, &w.Currency, &w.Status, &w.SettlementTxHash, &w.PayoutAttempts, &w.ManualReview, &w.PlacedAt, &w.SettledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan wager: %w", err)
	}
	return &w, nil
}

func (r *wagerRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Wager, error) {
	row := db.QueryRow(ctx, `SELECT `+wagerColumns+` FROM wagers WHERE id = $1`, id)
	return scanWager(row)
}

func (r *wagerRepo) ListByStatus(ctx context.Context, db DBTX, statuses ...domain.WagerStatus) ([]domain.Wager, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	vals := make([]string, len(statuses))
	for i, s := range statuses {
		vals[i] = string(s)
	}

	rows, err := db.Query(ctx,
		`SELECT `+wagerColumns+` FROM wagers WHERE status = ANY($1) ORDER BY placed_at ASC`, vals)
	if err != nil {
		return nil, fmt.Errorf("query wagers: %w", err)
	}
	defer rows.Close()

	var wagers []domain.Wager
	for rows.Next() {
		w, err := scanWager(rows)
		if err != nil {
			return nil, err
		}
		wagers = append(wagers, *w)
	}
	return wagers, rows.Err()
}

func (r *wagerRepo) ConditionalUpdateStatus(ctx context.Context, db DBTX, id uuid.UUID, expected, next domain.WagerStatus, payoutMinor int64, txHash *string) (bool, error) {
	if !expected.CanTransitionTo(next) {
		return false, domain.ErrInvalidTransition(expected, next)
	}

	tag, err := db.Exec(ctx, `
		UPDATE wagers
		SET status = $3,
		    payout_minor = $4,
		    settlement_tx_hash = COALESCE($5, settlement_tx_hash),
		    settled_at = CASE WHEN $3 IN ('won','lost','void','paid_out') THEN now() ELSE settled_at END
		WHERE id = $1 AND status = $2`,
		id, string(expected), string(next), payoutMinor, txHash)
	if err != nil {
		return false, fmt.Errorf("conditional update wager %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *wagerRepo) IncrementPayoutAttempts(ctx context.Context, db DBTX, id uuid.UUID) (int, error) {
	var attempts int
	err := db.QueryRow(ctx, `
		UPDATE wagers SET payout_attempts = payout_attempts + 1
		WHERE id = $1
		RETURNING payout_attempts`, id).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("increment payout attempts %s: %w", id, err)
	}
	return attempts, nil
}

func (r *wagerRepo) MarkManualReview(ctx context.Context, db DBTX, id uuid.UUID) error {
	_, err := db.Exec(ctx, `UPDATE wagers SET manual_review = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark manual review %s: %w", id, err)
	}
	return nil
}

func (r *wagerRepo) CreditBalance(ctx context.Context, db DBTX, userID uuid.UUID, amountMinor int64, currency domain.Currency) error {
	tag, err := db.Exec(ctx, `
		UPDATE user_balances SET balance_minor = balance_minor + $2, updated_at = now()
		WHERE user_id = $1 AND currency = $3`,
		userID, amountMinor, string(currency))
	if err != nil {
		return fmt.Errorf("credit balance user %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		_, err = db.Exec(ctx, `
			INSERT INTO user_balances (user_id, currency, balance_minor)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, currency)
			DO UPDATE SET balance_minor = user_balances.balance_minor + EXCLUDED.balance_minor,
			              updated_at = now()`,
			userID, string(currency), amountMinor)
		if err != nil {
			return fmt.Errorf("insert balance user %s: %w", userID, err)
		}
	}
	return nil
}

func (r *wagerRepo) RecordPlatformRevenue(ctx context.Context, db DBTX, wagerID uuid.UUID, amountMinor int64, currency domain.Currency, source string) error {
	_, err := db.Exec(ctx, `
		INSERT INTO platform_revenue (wager_id, amount_minor, currency, source)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (wager_id, source) DO NOTHING`,
		wagerID, amountMinor, string(currency), source)
	if err != nil {
		return fmt.Errorf("record revenue wager %s: %w", wagerID, err)
	}
	return nil
}
