package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oddsline/platform/internal/domain"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// WagerRepository provides access to the wagers table.
type WagerRepository interface {
	// FindByID returns a wager by ID.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Wager, error)

	// ListByStatus returns wagers in any of the given statuses,
	// oldest first.
	ListByStatus(ctx context.Context, db DBTX, statuses ...domain.WagerStatus) ([]domain.Wager, error)

	// ConditionalUpdateStatus transitions a wager's status only if its
	// current status matches expected. Returns false when the precondition
	// failed (another process settled the wager first). This is the single
	// primitive through which status ever changes.
	ConditionalUpdateStatus(ctx context.Context, db DBTX, id uuid.UUID, expected, next domain.WagerStatus, payoutMinor int64, txHash *string) (bool, error)

	// IncrementPayoutAttempts bumps the persisted retry counter and
	// returns the new value.
	IncrementPayoutAttempts(ctx context.Context, db DBTX, id uuid.UUID) (int, error)

	// MarkManualReview flags a wager the retry loop has given up on.
	MarkManualReview(ctx context.Context, db DBTX, id uuid.UUID) error

	// CreditBalance adds a settled payout to the user's internal balance.
	CreditBalance(ctx context.Context, db DBTX, userID uuid.UUID, amountMinor int64, currency domain.Currency) error

	// RecordPlatformRevenue records fee income (winner fee or full losing
	// stake) attributed to a wager.
	RecordPlatformRevenue(ctx context.Context, db DBTX, wagerID uuid.UUID, amountMinor int64, currency domain.Currency, source string) error
}

// SettledEventRepository provides access to the settled_events journal.
type SettledEventRepository interface {
	// Find returns the journal row for an external event id, or nil.
	Find(ctx context.Context, db DBTX, externalEventID string) (*domain.SettledEvent, error)

	// Upsert inserts the journal row or accumulates bets_settled onto the
	// existing one. A given external event id appears at most once.
	Upsert(ctx context.Context, db DBTX, ev domain.SettledEvent) error

	// ListSince returns journal rows settled after the cutoff, used to
	// rebuild the in-memory settled set at startup.
	ListSince(ctx context.Context, db DBTX, cutoff time.Time) ([]domain.SettledEvent, error)
}
