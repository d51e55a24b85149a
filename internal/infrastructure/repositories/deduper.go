package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/you/otpsvc/domain"
)

// DeduperImpl implements domain.Deduper with Redis SETNX markers, shared
// across saga replicas
type DeduperImpl struct {
	client *redis.Client
	prefix string
}

// NewDeduper creates a new Redis-backed deduper
func NewDeduper(client *redis.Client) domain.Deduper {
	return &DeduperImpl{client: client, prefix: "dedupe:"}
}

// Once implements domain.Deduper
func (r *DeduperImpl) Once(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	first, err := r.client.SetNX(ctx, r.prefix+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark work key: %w", err)
	}
	return first, nil
}

// Forget implements domain.Deduper
func (r *DeduperImpl) Forget(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}
