package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oddsline/platform/internal/domain"
)

// MatchCache stores finished-match data between reconciliation passes:
// short-TTL batches keyed by sport set, nightly per-sport snapshots, and a
// per-event index that parlay leg resolution reads instead of the live API.
// A miss is (nil, nil): callers fall through to the provider or skip.
type MatchCache interface {
	GetBatch(ctx context.Context, key string) ([]domain.FinishedMatch, error)
	SetBatch(ctx context.Context, key string, matches []domain.FinishedMatch, ttl time.Duration) error

	GetNightly(ctx context.Context, sport string) ([]domain.FinishedMatch, error)
	SetNightly(ctx context.Context, sport string, matches []domain.FinishedMatch) error

	GetEvent(ctx context.Context, eventID string) (*domain.FinishedMatch, error)
	IndexEvents(ctx context.Context, matches []domain.FinishedMatch, ttl time.Duration) error
}

const (
	batchPrefix   = "results:batch:"
	nightlyPrefix = "results:nightly:"
	eventPrefix   = "results:event:"

	// nightly snapshots are refreshed by the out-of-band fetch job; keep
	// them long enough to bridge a weekend of provider outage.
	nightlyTTL = 72 * time.Hour
)

// ── Redis implementation ──

// RedisMatchCache is the production MatchCache backed by redis.
type RedisMatchCache struct {
	client *redis.Client
}

// NewRedisMatchCache wraps a redis client as a MatchCache.
func NewRedisMatchCache(client *redis.Client) *RedisMatchCache {
	return &RedisMatchCache{client: client}
}

func (c *RedisMatchCache) getSlice(ctx context.Context, key string) ([]domain.FinishedMatch, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var matches []domain.FinishedMatch
	if err := json.Unmarshal(b, &matches); err != nil {
		return nil, err
	}
	return matches, nil
}

func (c *RedisMatchCache) setSlice(ctx context.Context, key string, matches []domain.FinishedMatch, ttl time.Duration) error {
	// A nil slice marshals to JSON null, which reads back as a miss.
	// Empty batches are real results (no finished fixtures right now)
	// and must be cached as such.
	if matches == nil {
		matches = []domain.FinishedMatch{}
	}
	b, err := json.Marshal(matches)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, b, ttl).Err()
}

func (c *RedisMatchCache) GetBatch(ctx context.Context, key string) ([]domain.FinishedMatch, error) {
	return c.getSlice(ctx, batchPrefix+key)
}

func (c *RedisMatchCache) SetBatch(ctx context.Context, key string, matches []domain.FinishedMatch, ttl time.Duration) error {
	return c.setSlice(ctx, batchPrefix+key, matches, ttl)
}

func (c *RedisMatchCache) GetNightly(ctx context.Context, sport string) ([]domain.FinishedMatch, error) {
	return c.getSlice(ctx, nightlyPrefix+sport)
}

func (c *RedisMatchCache) SetNightly(ctx context.Context, sport string, matches []domain.FinishedMatch) error {
	return c.setSlice(ctx, nightlyPrefix+sport, matches, nightlyTTL)
}

func (c *RedisMatchCache) GetEvent(ctx context.Context, eventID string) (*domain.FinishedMatch, error) {
	b, err := c.client.Get(ctx, eventPrefix+eventID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var m domain.FinishedMatch
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *RedisMatchCache) IndexEvents(ctx context.Context, matches []domain.FinishedMatch, ttl time.Duration) error {
	pipe := c.client.Pipeline()
	for _, m := range matches {
		b, err := json.Marshal(m)
		if err != nil {
			return err
		}
		pipe.Set(ctx, eventPrefix+m.EventID, b, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}
