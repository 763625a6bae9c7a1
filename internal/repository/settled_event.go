package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/oddsline/platform/internal/domain"
)

type settledEventRepo struct{}

// NewSettledEventRepository returns a pgx-backed SettledEventRepository.
func NewSettledEventRepository() SettledEventRepository {
	return &settledEventRepo{}
}

func (r *settledEventRepo) Find(ctx context.Context, db DBTX, externalEventID string) (*domain.SettledEvent, error) {
	row := db.QueryRow(ctx, `
		SELECT external_event_id, home_team, away_team, score, winner, bets_settled, settled_at
		FROM settled_events WHERE external_event_id = $1`, externalEventID)

	var ev domain.SettledEvent
	err := row.Scan(&ev.ExternalEventID, &ev.HomeTeam, &ev.AwayTeam, &ev.Score, &ev.Winner, &ev.BetsSettled, &ev.SettledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan settled event: %w", err)
	}
	return &ev, nil
}

func (r *settledEventRepo) Upsert(ctx context.Context, db DBTX, ev domain.SettledEvent) error {
	_, err := db.Exec(ctx, `
		INSERT INTO settled_events (external_event_id, home_team, away_team, score, winner, bets_settled, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (external_event_id) DO UPDATE SET
			bets_settled = settled_events.bets_settled + EXCLUDED.bets_settled,
			settled_at = now()`,
		ev.ExternalEventID, ev.HomeTeam, ev.AwayTeam, ev.Score, ev.Winner, ev.BetsSettled)
	if err != nil {
		return fmt.Errorf("upsert settled event %s: %w", ev.ExternalEventID, err)
	}
	return nil
}

func (r *settledEventRepo) ListSince(ctx context.Context, db DBTX, cutoff time.Time) ([]domain.SettledEvent, error) {
	rows, err := db.Query(ctx, `
		SELECT external_event_id, home_team, away_team, score, winner, bets_settled, settled_at
		FROM settled_events WHERE settled_at >= $1 ORDER BY settled_at ASC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query settled events: %w", err)
	}
	defer rows.Close()

	var events []domain.SettledEvent
	for rows.Next() {
		var ev domain.SettledEvent
		if err := rows.Scan(&ev.ExternalEventID, &ev.HomeTeam, &ev.AwayTeam, &ev.Score, &ev.Winner, &ev.BetsSettled, &ev.SettledAt); err != nil {
			return nil, fmt.Errorf("scan settled event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
