package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/astrohelm/natalchart/internal/domain"
)

// BirthInputCache implements domain.BirthInputCache. It remembers the last
// submitted birth input per client key so the input form can be prefilled;
// entries have no TTL.
//
// Key schema:
//
//	birth:{clientKey} - JSON-serialized BirthInput
type BirthInputCache struct {
	rdb *redis.Client
}

// NewBirthInputCache creates a BirthInputCache backed by the given Client.
func NewBirthInputCache(c *Client) *BirthInputCache {
	return &BirthInputCache{rdb: c.Underlying()}
}

func birthKey(clientKey string) string { return "birth:" + clientKey }

// Set stores the last birth input for a client.
func (bc *BirthInputCache) Set(ctx context.Context, clientKey string, in domain.BirthInput) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("redis: marshal birth input: %w", err)
	}
	if err := bc.rdb.Set(ctx, birthKey(clientKey), data, 0).Err(); err != nil {
		return fmt.Errorf("redis: set birth input %s: %w", clientKey, err)
	}
	return nil
}

// Get retrieves the last birth input for a client. Missing and undecodable
// values both return ErrNotFound; a first-time visitor and a corrupt cache
// look the same to the caller.
func (bc *BirthInputCache) Get(ctx context.Context, clientKey string) (domain.BirthInput, error) {
	data, err := bc.rdb.Get(ctx, birthKey(clientKey)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.BirthInput{}, domain.ErrNotFound
		}
		return domain.BirthInput{}, fmt.Errorf("redis: get birth input %s: %w", clientKey, err)
	}

	var in domain.BirthInput
	if err := json.Unmarshal(data, &in); err != nil {
		_ = bc.rdb.Del(ctx, birthKey(clientKey)).Err()
		return domain.BirthInput{}, domain.ErrNotFound
	}
	return in, nil
}

// Compile-time interface check.
var _ domain.BirthInputCache = (*BirthInputCache)(nil)
