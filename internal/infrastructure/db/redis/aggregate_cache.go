package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/conteo/inventory-sync/internal/core/domain"
)

const defaultAggregateTTL = 3 * time.Second

// AggregateCache keeps computed session balances for a short TTL so that
// many participants polling the same session share one ledger scan.
// Key format: aggregates:<session_id>
type AggregateCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAggregateCache creates an AggregateCache wrapping the given Redis client.
func NewAggregateCache(client *redis.Client, ttl time.Duration) *AggregateCache {
	if ttl <= 0 {
		ttl = defaultAggregateTTL
	}
	return &AggregateCache{client: client, ttl: ttl}
}

// Get returns cached balances and whether the key was present.
func (c *AggregateCache) Get(ctx context.Context, sessionID string) ([]domain.Balance, bool, error) {
	raw, err := c.client.Get(ctx, c.key(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("aggregate cache get: %w", err)
	}

	var balances []domain.Balance
	if err := json.Unmarshal(raw, &balances); err != nil {
		return nil, false, fmt.Errorf("aggregate cache decode: %w", err)
	}
	return balances, true, nil
}

func (c *AggregateCache) Set(ctx context.Context, sessionID string, balances []domain.Balance) error {
	if balances == nil {
		balances = []domain.Balance{}
	}
	raw, err := json.Marshal(balances)
	if err != nil {
		return fmt.Errorf("aggregate cache encode: %w", err)
	}
	return c.client.Set(ctx, c.key(sessionID), raw, c.ttl).Err()
}

// Invalidate drops the cached balances after the ledger changed.
func (c *AggregateCache) Invalidate(ctx context.Context, sessionID string) error {
	return c.client.Del(ctx, c.key(sessionID)).Err()
}

func (c *AggregateCache) key(sessionID string) string {
	return key("aggregates", sessionID)
}
