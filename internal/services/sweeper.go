package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/you/otpsvc/domain"
)

// Sweeper actively expires stale challenges in the background. It is a
// liveness optimization only: every command path re-checks expiry, so
// correctness never depends on the sweep running.
type Sweeper struct {
	client     *redis.Client
	challenges domain.ChallengeService
	interval   time.Duration

	now func() time.Time
}

// NewSweeper creates a new expiry sweeper
func NewSweeper(client *redis.Client, challenges domain.ChallengeService, interval time.Duration) *Sweeper {
	return &Sweeper{
		client:     client,
		challenges: challenges,
		interval:   interval,
		now:        time.Now,
	}
}

// Run sweeps on the configured interval until ctx is cancelled
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	var cursor uint64
	swept := 0

	for {
		keys, next, err := s.client.Scan(ctx, cursor, "challenge:*", 64).Result()
		if err != nil {
			log.Printf("sweeper: scan failed: %v", err)
			return
		}

		for _, key := range keys {
			if s.sweepKey(ctx, key) {
				swept++
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	if swept > 0 {
		log.Printf("sweeper: expired %d stale challenges", swept)
	}
}

func (s *Sweeper) sweepKey(ctx context.Context, key string) bool {
	vals, err := s.client.HMGet(ctx, key, "id", "state", "expires_at").Result()
	if err != nil || len(vals) != 3 {
		return false
	}
	id, _ := vals[0].(string)
	state, _ := vals[1].(string)
	expiresAt, _ := vals[2].(string)
	if id == "" || domain.ChallengeState(state).Terminal() {
		return false
	}

	deadline, err := time.Parse(time.RFC3339Nano, expiresAt)
	if err != nil || s.now().Before(deadline) {
		return false
	}

	if _, err := s.challenges.ExpireChallenge(ctx, id); err != nil {
		if !errors.Is(err, domain.ErrChallengeNotFound) {
			log.Printf("sweeper: failed to expire challenge %s: %v", id, err)
		}
		return false
	}
	return true
}
