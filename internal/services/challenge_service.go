package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/you/otpsvc/domain"
)

// casRetries bounds the optimistic retry loop for commands that carry no
// explicit version expectation
const casRetries = 3

// PurposePolicy is the effective challenge policy for one purpose
type PurposePolicy struct {
	CodeLength  int
	TTL         time.Duration
	MaxAttempts int
}

// ChallengeConfig configures the challenge service
type ChallengeConfig struct {
	CodeLength       int
	TTL              time.Duration
	MaxAttempts      int
	RequireDelivery  bool
	PurposeOverrides map[domain.Purpose]PurposePolicy
}

// ChallengeServiceImpl implements domain.ChallengeService. It owns every
// state transition of a challenge; all concurrency control goes through
// the store's compare-and-swap, never in-process locks, because multiple
// instances serve the same challenge.
type ChallengeServiceImpl struct {
	store     domain.ChallengeStore
	limiter   domain.RateLimiter
	generator domain.CodeGenerator
	publisher domain.EventPublisher
	journal   domain.EventJournal
	config    ChallengeConfig

	now func() time.Time
}

// NewChallengeService creates a new challenge service
func NewChallengeService(
	store domain.ChallengeStore,
	limiter domain.RateLimiter,
	generator domain.CodeGenerator,
	publisher domain.EventPublisher,
	journal domain.EventJournal,
	config ChallengeConfig,
) *ChallengeServiceImpl {
	return &ChallengeServiceImpl{
		store:     store,
		limiter:   limiter,
		generator: generator,
		publisher: publisher,
		journal:   journal,
		config:    config,
		now:       time.Now,
	}
}

func (s *ChallengeServiceImpl) policyFor(purpose domain.Purpose) PurposePolicy {
	if p, ok := s.config.PurposeOverrides[purpose]; ok {
		return p
	}
	return PurposePolicy{
		CodeLength:  s.config.CodeLength,
		TTL:         s.config.TTL,
		MaxAttempts: s.config.MaxAttempts,
	}
}

// RequestChallenge implements domain.ChallengeService
func (s *ChallengeServiceImpl) RequestChallenge(ctx context.Context, subjectID string, purpose domain.Purpose, channel domain.Channel, destination string) (*domain.Challenge, error) {
	if subjectID == "" {
		return nil, fmt.Errorf("subject id is required")
	}
	if !purpose.Valid() {
		return nil, fmt.Errorf("unsupported purpose: %s", purpose)
	}
	if !channel.Valid() {
		return nil, fmt.Errorf("unsupported channel: %s", channel)
	}
	if destination == "" {
		return nil, fmt.Errorf("destination is required")
	}

	if err := s.limiter.ReserveIssue(ctx, subjectID, purpose); err != nil {
		return nil, err
	}

	// A new issuance supersedes any live challenge for the pair
	prior, err := s.store.GetLive(ctx, subjectID, purpose)
	if err != nil && !errors.Is(err, domain.ErrChallengeNotFound) {
		return nil, err
	}
	if prior != nil {
		if err := s.forceExpire(ctx, prior, "superseded"); err != nil {
			return nil, err
		}
	}

	policy := s.policyFor(purpose)
	code, hash, err := s.generator.Generate(policy.CodeLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}

	now := s.now()
	ch := &domain.Challenge{
		ID:          uuid.NewString(),
		SubjectID:   subjectID,
		Purpose:     purpose,
		CodeHash:    hash,
		Channel:     channel,
		Destination: destination,
		State:       domain.StateIssued,
		MaxAttempts: policy.MaxAttempts,
		IssuedAt:    now,
		ExpiresAt:   now.Add(policy.TTL),
		Version:     1,
	}

	if err := s.store.Put(ctx, ch); err != nil {
		return nil, err
	}

	// The plaintext code rides only on this event, for the saga to deliver
	event := domain.NewChallengeEvent(domain.EventChallengeIssued, ch).
		WithDelivery(channel, destination, code, ch.ExpiresAt)
	if err := s.emit(ctx, event); err != nil {
		return nil, err
	}

	return ch, nil
}

// MarkDelivered implements domain.ChallengeService
func (s *ChallengeServiceImpl) MarkDelivered(ctx context.Context, challengeID string) (*domain.Challenge, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		ch, err := s.store.Get(ctx, challengeID)
		if err != nil {
			return nil, err
		}
		if ch.State == domain.StateDelivered {
			return ch, nil
		}
		if ch.State.Terminal() {
			return nil, terminalError(ch)
		}
		if ch.ExpiredAt(s.now()) {
			if err := s.forceExpire(ctx, ch, "ttl elapsed"); err != nil {
				return nil, err
			}
			return nil, domain.ErrChallengeExpired
		}

		ch.State = domain.StateDelivered
		err = s.store.CompareAndSwap(ctx, ch, ch.Version)
		if errors.Is(err, domain.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		if err := s.emit(ctx, domain.NewChallengeEvent(domain.EventChallengeDelivered, ch)); err != nil {
			return nil, err
		}
		return ch, nil
	}
	return nil, domain.ErrVersionConflict
}

// SubmitCode implements domain.ChallengeService. On a code mismatch the
// returned result still carries the remaining attempts, alongside
// ErrCodeInvalid.
func (s *ChallengeServiceImpl) SubmitCode(ctx context.Context, challengeID, code string, expectedVersion int64) (*domain.SubmitResult, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		ch, err := s.store.Get(ctx, challengeID)
		if err != nil {
			return nil, err
		}
		if expectedVersion > 0 && ch.Version != expectedVersion {
			return nil, domain.ErrVersionConflict
		}
		if ch.State.Terminal() {
			return nil, terminalError(ch)
		}
		if ch.ExpiredAt(s.now()) {
			if err := s.forceExpire(ctx, ch, "ttl elapsed"); err != nil {
				return nil, err
			}
			return nil, domain.ErrChallengeExpired
		}
		if s.config.RequireDelivery && ch.State == domain.StateIssued {
			return nil, domain.ErrDeliveryPending
		}

		if s.generator.Compare(ch.CodeHash, code) {
			ch.State = domain.StateVerified
			err = s.store.CompareAndSwap(ctx, ch, ch.Version)
			if errors.Is(err, domain.ErrVersionConflict) {
				if expectedVersion > 0 {
					return nil, domain.ErrVersionConflict
				}
				continue
			}
			if err != nil {
				return nil, err
			}

			if err := s.emit(ctx, domain.NewChallengeEvent(domain.EventChallengeVerified, ch)); err != nil {
				return nil, err
			}
			return &domain.SubmitResult{
				Challenge:         ch,
				Verified:          true,
				RemainingAttempts: ch.RemainingAttempts(),
			}, nil
		}

		// Wrong code: the attempt increment and the limit check ride on one
		// compare-and-swap, so two racing submissions can never both pass
		// the limit from the same base count
		ch.AttemptCount++
		locked := ch.AttemptCount >= ch.MaxAttempts
		if locked {
			ch.State = domain.StateLocked
		}
		err = s.store.CompareAndSwap(ctx, ch, ch.Version)
		if errors.Is(err, domain.ErrVersionConflict) {
			if expectedVersion > 0 {
				return nil, domain.ErrVersionConflict
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		if locked {
			event := domain.NewChallengeEvent(domain.EventChallengeLocked, ch).
				WithReason("attempt limit reached")
			if err := s.emit(ctx, event); err != nil {
				return nil, err
			}
			return nil, domain.ErrChallengeLocked
		}

		event := domain.NewChallengeEvent(domain.EventChallengeFailed, ch).
			WithRemainingAttempts(ch.RemainingAttempts())
		if err := s.emit(ctx, event); err != nil {
			return nil, err
		}
		return &domain.SubmitResult{
			Challenge:         ch,
			Verified:          false,
			RemainingAttempts: ch.RemainingAttempts(),
		}, domain.ErrCodeInvalid
	}
	return nil, domain.ErrVersionConflict
}

// ExpireChallenge implements domain.ChallengeService. It only transitions
// challenges whose TTL has actually elapsed; calling it early is a no-op.
func (s *ChallengeServiceImpl) ExpireChallenge(ctx context.Context, challengeID string) (*domain.Challenge, error) {
	ch, err := s.store.Get(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if !ch.Live() || !ch.ExpiredAt(s.now()) {
		return ch, nil
	}
	if err := s.forceExpire(ctx, ch, "ttl elapsed"); err != nil {
		return nil, err
	}
	return ch, nil
}

// FailChallenge implements domain.ChallengeService
func (s *ChallengeServiceImpl) FailChallenge(ctx context.Context, challengeID, reason string) (*domain.Challenge, error) {
	for attempt := 0; attempt < casRetries; attempt++ {
		ch, err := s.store.Get(ctx, challengeID)
		if err != nil {
			return nil, err
		}
		if !ch.Live() {
			return ch, nil
		}

		ch.State = domain.StateFailed
		err = s.store.CompareAndSwap(ctx, ch, ch.Version)
		if errors.Is(err, domain.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		event := domain.NewChallengeEvent(domain.EventChallengeFailed, ch).WithReason(reason)
		if err := s.emit(ctx, event); err != nil {
			return nil, err
		}
		return ch, nil
	}
	return nil, domain.ErrVersionConflict
}

// GetChallenge implements domain.ChallengeService
func (s *ChallengeServiceImpl) GetChallenge(ctx context.Context, challengeID string) (*domain.Challenge, error) {
	return s.store.Get(ctx, challengeID)
}

// forceExpire moves a live challenge to EXPIRED regardless of its TTL,
// used for supersession and lazy expiry
func (s *ChallengeServiceImpl) forceExpire(ctx context.Context, ch *domain.Challenge, reason string) error {
	for attempt := 0; attempt < casRetries; attempt++ {
		if !ch.Live() {
			return nil
		}

		ch.State = domain.StateExpired
		err := s.store.CompareAndSwap(ctx, ch, ch.Version)
		if errors.Is(err, domain.ErrVersionConflict) {
			fresh, err := s.store.Get(ctx, ch.ID)
			if err != nil {
				if errors.Is(err, domain.ErrChallengeNotFound) {
					return nil
				}
				return err
			}
			*ch = *fresh
			continue
		}
		if err != nil {
			return err
		}

		event := domain.NewChallengeEvent(domain.EventChallengeExpired, ch).WithReason(reason)
		return s.emit(ctx, event)
	}
	return domain.ErrVersionConflict
}

// emit journals the event, then publishes it to the live stream. The
// journal row stays unpublished until the stream write is confirmed, so
// a transient publish failure only delays the event until the relay
// drains it. Issued events are the exception: their code never reaches
// the journal, so a failed publish surfaces to the caller for a retry.
func (s *ChallengeServiceImpl) emit(ctx context.Context, event *domain.ChallengeEvent) error {
	event.ID = uuid.NewString()

	journalErr := s.journal.Append(ctx, event)
	if journalErr != nil {
		log.Printf("failed to journal %s for challenge %s: %v", event.Type, event.ChallengeID, journalErr)
	}

	if err := s.publisher.Publish(ctx, event); err != nil {
		if event.Type == domain.EventChallengeIssued || journalErr != nil {
			return fmt.Errorf("failed to publish %s: %w", event.Type, err)
		}
		log.Printf("publish of %s for challenge %s failed, leaving it to the relay: %v", event.Type, event.ChallengeID, err)
		return nil
	}

	if journalErr == nil {
		if err := s.journal.MarkPublished(ctx, event.ID); err != nil {
			log.Printf("failed to mark %s published for challenge %s: %v", event.Type, event.ChallengeID, err)
		}
	}
	return nil
}

func terminalError(ch *domain.Challenge) error {
	switch ch.State {
	case domain.StateVerified:
		return domain.ErrChallengeVerified
	case domain.StateLocked:
		return domain.ErrChallengeLocked
	case domain.StateExpired:
		return domain.ErrChallengeExpired
	case domain.StateFailed:
		return domain.ErrChallengeFailed
	}
	return nil
}
