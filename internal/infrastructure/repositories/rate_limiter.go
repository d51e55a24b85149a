package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/you/otpsvc/domain"
)

// RateLimiterConfig controls the issuance guards
type RateLimiterConfig struct {
	// Cooldown is the minimum gap between issuances per (subject, purpose)
	Cooldown time.Duration
	// CooldownOverrides replaces Cooldown for specific purposes
	CooldownOverrides map[domain.Purpose]time.Duration
	// LimitCount caps issuances per subject within LimitWindow
	LimitCount  int
	LimitWindow time.Duration
}

// RateLimiterImpl implements domain.RateLimiter on Redis so the guard
// holds across all service instances
type RateLimiterImpl struct {
	client *redis.Client
	config RateLimiterConfig
}

// NewRateLimiter creates a new Redis-backed issuance rate limiter
func NewRateLimiter(client *redis.Client, config RateLimiterConfig) domain.RateLimiter {
	return &RateLimiterImpl{client: client, config: config}
}

func (r *RateLimiterImpl) cooldownFor(purpose domain.Purpose) time.Duration {
	if d, ok := r.config.CooldownOverrides[purpose]; ok {
		return d
	}
	return r.config.Cooldown
}

// ReserveIssue implements domain.RateLimiter
func (r *RateLimiterImpl) ReserveIssue(ctx context.Context, subjectID string, purpose domain.Purpose) error {
	cooldownKey := fmt.Sprintf("cooldown:%s:%s", subjectID, purpose)
	windowKey := fmt.Sprintf("reqcount:%s:%s", subjectID, purpose)

	// Reissue cooldown
	ok, err := r.client.SetNX(ctx, cooldownKey, 1, r.cooldownFor(purpose)).Result()
	if err != nil {
		return fmt.Errorf("failed to check reissue cooldown: %w", err)
	}
	if !ok {
		ttl, err := r.client.TTL(ctx, cooldownKey).Result()
		if err != nil {
			return fmt.Errorf("failed to read cooldown TTL: %w", err)
		}
		return &domain.RateLimitedError{RetryAfter: clampRetryAfter(ttl)}
	}

	// Windowed request counter
	count, err := r.client.Incr(ctx, windowKey).Result()
	if err != nil {
		return fmt.Errorf("failed to count requests: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, windowKey, r.config.LimitWindow).Err(); err != nil {
			return fmt.Errorf("failed to start request window: %w", err)
		}
	}
	if r.config.LimitCount > 0 && count > int64(r.config.LimitCount) {
		ttl, err := r.client.TTL(ctx, windowKey).Result()
		if err != nil {
			return fmt.Errorf("failed to read window TTL: %w", err)
		}
		return &domain.RateLimitedError{RetryAfter: clampRetryAfter(ttl)}
	}

	return nil
}

// clampRetryAfter floors a TTL read at zero. The guard key can expire
// between the reservation attempt and the TTL read, in which case Redis
// reports -2 and the caller may retry immediately.
func clampRetryAfter(ttl time.Duration) time.Duration {
	if ttl < 0 {
		return 0
	}
	return ttl
}
