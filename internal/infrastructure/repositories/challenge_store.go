package repositories

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/you/otpsvc/domain"
)

// casScript atomically applies a state mutation iff the stored version
// matches the expected one. -1: missing, 0: conflict, 1: applied.
var casScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'version')
if not cur then return -1 end
if cur ~= ARGV[1] then return 0 end
redis.call('HSET', KEYS[1], 'state', ARGV[2], 'attempt_count', ARGV[3], 'version', ARGV[4])
return 1
`)

// releaseLiveScript deletes the live index only while it still points at
// the given challenge, so a superseding issuance is never clobbered.
var releaseLiveScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then return redis.call('DEL', KEYS[1]) end
return 0
`)

// ChallengeStoreImpl implements domain.ChallengeStore on Redis. The hash
// per challenge is the single source of truth shared by all instances;
// TTL keeps terminal entries readable for a retention window.
type ChallengeStoreImpl struct {
	client    *redis.Client
	prefix    string
	retention time.Duration
}

// NewChallengeStore creates a new Redis-backed challenge store
func NewChallengeStore(client *redis.Client, retention time.Duration) domain.ChallengeStore {
	return &ChallengeStoreImpl{
		client:    client,
		prefix:    "challenge:",
		retention: retention,
	}
}

func (r *ChallengeStoreImpl) challengeKey(id string) string {
	return r.prefix + id
}

func liveKey(subjectID string, purpose domain.Purpose) string {
	return fmt.Sprintf("live:%s:%s", subjectID, purpose)
}

// Put implements domain.ChallengeStore
func (r *ChallengeStoreImpl) Put(ctx context.Context, ch *domain.Challenge) error {
	key := r.challengeKey(ch.ID)
	deadline := ch.ExpiresAt.Add(r.retention)

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"id":            ch.ID,
		"subject_id":    ch.SubjectID,
		"purpose":       string(ch.Purpose),
		"code_hash":     ch.CodeHash,
		"channel":       string(ch.Channel),
		"destination":   ch.Destination,
		"state":         string(ch.State),
		"attempt_count": ch.AttemptCount,
		"max_attempts":  ch.MaxAttempts,
		"issued_at":     ch.IssuedAt.UTC().Format(time.RFC3339Nano),
		"expires_at":    ch.ExpiresAt.UTC().Format(time.RFC3339Nano),
		"version":       ch.Version,
	})
	pipe.PExpireAt(ctx, key, deadline)
	if liveTTL := time.Until(ch.ExpiresAt); liveTTL > 0 {
		pipe.Set(ctx, liveKey(ch.SubjectID, ch.Purpose), ch.ID, liveTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store challenge: %w", err)
	}
	return nil
}

// Get implements domain.ChallengeStore
func (r *ChallengeStoreImpl) Get(ctx context.Context, challengeID string) (*domain.Challenge, error) {
	fields, err := r.client.HGetAll(ctx, r.challengeKey(challengeID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read challenge: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrChallengeNotFound
	}
	return parseChallenge(fields)
}

// GetLive implements domain.ChallengeStore
func (r *ChallengeStoreImpl) GetLive(ctx context.Context, subjectID string, purpose domain.Purpose) (*domain.Challenge, error) {
	id, err := r.client.Get(ctx, liveKey(subjectID, purpose)).Result()
	if err == redis.Nil {
		return nil, domain.ErrChallengeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read live index: %w", err)
	}

	ch, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ch.Live() {
		return nil, domain.ErrChallengeNotFound
	}
	return ch, nil
}

// CompareAndSwap implements domain.ChallengeStore
func (r *ChallengeStoreImpl) CompareAndSwap(ctx context.Context, ch *domain.Challenge, expectedVersion int64) error {
	newVersion := expectedVersion + 1
	res, err := casScript.Run(ctx, r.client,
		[]string{r.challengeKey(ch.ID)},
		expectedVersion, string(ch.State), ch.AttemptCount, newVersion,
	).Int()
	if err != nil {
		return fmt.Errorf("failed to swap challenge state: %w", err)
	}

	switch res {
	case -1:
		return domain.ErrChallengeNotFound
	case 0:
		return domain.ErrVersionConflict
	}

	ch.Version = newVersion

	// Terminal challenges no longer occupy the live slot
	if ch.State.Terminal() {
		if err := releaseLiveScript.Run(ctx, r.client,
			[]string{liveKey(ch.SubjectID, ch.Purpose)}, ch.ID).Err(); err != nil && err != redis.Nil {
			return fmt.Errorf("failed to release live index: %w", err)
		}
	}
	return nil
}

func parseChallenge(fields map[string]string) (*domain.Challenge, error) {
	attempts, err := strconv.Atoi(fields["attempt_count"])
	if err != nil {
		return nil, fmt.Errorf("corrupt attempt_count: %w", err)
	}
	maxAttempts, err := strconv.Atoi(fields["max_attempts"])
	if err != nil {
		return nil, fmt.Errorf("corrupt max_attempts: %w", err)
	}
	version, err := strconv.ParseInt(fields["version"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt version: %w", err)
	}
	issuedAt, err := time.Parse(time.RFC3339Nano, fields["issued_at"])
	if err != nil {
		return nil, fmt.Errorf("corrupt issued_at: %w", err)
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, fields["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("corrupt expires_at: %w", err)
	}

	return &domain.Challenge{
		ID:           fields["id"],
		SubjectID:    fields["subject_id"],
		Purpose:      domain.Purpose(fields["purpose"]),
		CodeHash:     fields["code_hash"],
		Channel:      domain.Channel(fields["channel"]),
		Destination:  fields["destination"],
		State:        domain.ChallengeState(fields["state"]),
		AttemptCount: attempts,
		MaxAttempts:  maxAttempts,
		IssuedAt:     issuedAt,
		ExpiresAt:    expiresAt,
		Version:      version,
	}, nil
}
