package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/astrohelm/natalchart/internal/domain"
)

const defaultChartTTL = 24 * time.Hour

// ChartCache implements domain.ChartCache using JSON values keyed by the
// birth-input fingerprint.
//
// Key schema:
//
//	chart:{fingerprint} - JSON-serialized ChartResult
type ChartCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewChartCache creates a ChartCache backed by the given Client. A zero ttl
// selects the 24-hour default; chart results for a fixed birth moment never
// change, the TTL only bounds memory.
func NewChartCache(c *Client, ttl time.Duration) *ChartCache {
	if ttl <= 0 {
		ttl = defaultChartTTL
	}
	return &ChartCache{rdb: c.Underlying(), ttl: ttl}
}

func chartKey(fingerprint string) string { return "chart:" + fingerprint }

// Set stores a chart result.
func (cc *ChartCache) Set(ctx context.Context, fingerprint string, result domain.ChartResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("redis: marshal chart %s: %w", fingerprint, err)
	}
	if err := cc.rdb.Set(ctx, chartKey(fingerprint), data, cc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set chart %s: %w", fingerprint, err)
	}
	return nil
}

// Get retrieves a cached chart result. A missing key returns ErrNotFound; a
// value that no longer deserializes is deleted and reported as absent, so a
// stale layout never breaks a computation.
func (cc *ChartCache) Get(ctx context.Context, fingerprint string) (domain.ChartResult, error) {
	data, err := cc.rdb.Get(ctx, chartKey(fingerprint)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ChartResult{}, domain.ErrNotFound
		}
		return domain.ChartResult{}, fmt.Errorf("redis: get chart %s: %w", fingerprint, err)
	}

	var result domain.ChartResult
	if err := json.Unmarshal(data, &result); err != nil {
		_ = cc.rdb.Del(ctx, chartKey(fingerprint)).Err()
		return domain.ChartResult{}, domain.ErrNotFound
	}
	return result, nil
}

// Compile-time interface check.
var _ domain.ChartCache = (*ChartCache)(nil)
