package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/you/otpsvc/domain"
)

// dedupeTTL keeps handled-event markers around long enough to absorb any
// realistic redelivery window
const dedupeTTL = 24 * time.Hour

// SagaConfig configures the orchestrator's delivery retry behavior
type SagaConfig struct {
	DeliveryMaxRetries int
	DeliveryBackoff    time.Duration
}

// SagaOrchestrator reacts to challenge events and drives the cross-service
// effects: code delivery on issuance, credential issuance on verification.
// It holds no authoritative state of its own, so replicas can run in
// parallel; idempotency comes from the deduper and the aggregate's version
// guard.
type SagaOrchestrator struct {
	challenges domain.ChallengeService
	notifier   domain.Notifier
	issuer     domain.CredentialIssuer
	vault      domain.CredentialVault
	dedupe     domain.Deduper
	config     SagaConfig
}

// NewSagaOrchestrator creates a new saga orchestrator
func NewSagaOrchestrator(
	challenges domain.ChallengeService,
	notifier domain.Notifier,
	issuer domain.CredentialIssuer,
	vault domain.CredentialVault,
	dedupe domain.Deduper,
	config SagaConfig,
) *SagaOrchestrator {
	return &SagaOrchestrator{
		challenges: challenges,
		notifier:   notifier,
		issuer:     issuer,
		vault:      vault,
		dedupe:     dedupe,
		config:     config,
	}
}

// Run consumes the event stream until ctx is cancelled
func (o *SagaOrchestrator) Run(ctx context.Context, subscriber domain.EventSubscriber, consumer string) error {
	return subscriber.Subscribe(ctx, "otp-saga", consumer, o.HandleEvent)
}

// HandleEvent implements domain.EventHandler. A non-nil return leaves the
// event pending for redelivery.
func (o *SagaOrchestrator) HandleEvent(ctx context.Context, event *domain.ChallengeEvent) error {
	dedupeKey := "saga:" + event.DedupeKey()
	first, err := o.dedupe.Once(ctx, dedupeKey, dedupeTTL)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}

	if err := o.process(ctx, event); err != nil {
		// Release the marker so redelivery is not skipped
		if ferr := o.dedupe.Forget(ctx, dedupeKey); ferr != nil {
			log.Printf("saga: failed to release dedupe key %s: %v", dedupeKey, ferr)
		}
		return err
	}
	return nil
}

func (o *SagaOrchestrator) process(ctx context.Context, event *domain.ChallengeEvent) error {
	switch event.Type {
	case domain.EventChallengeIssued:
		return o.handleIssued(ctx, event)
	case domain.EventChallengeVerified:
		return o.handleVerified(ctx, event)
	case domain.EventChallengeLocked:
		log.Printf("saga: challenge %s locked for subject %s", event.ChallengeID, event.SubjectID)
		return nil
	case domain.EventChallengeExpired:
		log.Printf("saga: challenge %s expired (%s)", event.ChallengeID, event.Reason)
		return nil
	case domain.EventChallengeFailed:
		if event.Terminal {
			log.Printf("saga: challenge %s failed terminally: %s", event.ChallengeID, event.Reason)
		}
		return nil
	case domain.EventChallengeDelivered:
		return nil
	}

	log.Printf("saga: ignoring unknown event type %s", event.Type)
	return nil
}

// handleIssued delivers the code with bounded backoff. Exhausted retries
// fail the challenge terminally so the client is not left waiting.
func (o *SagaOrchestrator) handleIssued(ctx context.Context, event *domain.ChallengeEvent) error {
	req := &domain.DeliveryRequest{
		ChallengeID: event.ChallengeID,
		Channel:     event.Channel,
		Destination: event.Destination,
		Code:        event.Code,
		Purpose:     event.Purpose,
		ExpiresAt:   event.ExpiresAt,
	}

	var lastErr error
	for attempt := 0; attempt < o.config.DeliveryMaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, o.config.DeliveryBackoff*time.Duration(1<<(attempt-1))); err != nil {
				return err
			}
		}

		result, err := o.notifier.Send(ctx, req)
		if err == nil && result.Acked {
			if _, err := o.challenges.MarkDelivered(ctx, event.ChallengeID); err != nil {
				// The challenge may have concluded while delivery was in
				// flight; that is not a delivery failure
				if !isConcluded(err) {
					log.Printf("saga: mark delivered failed for %s: %v", event.ChallengeID, err)
				}
			}
			return nil
		}
		if err == nil {
			err = domain.ErrDeliveryFailed
		}
		lastErr = err
		log.Printf("saga: delivery attempt %d for %s failed: %v", attempt+1, event.ChallengeID, err)
	}

	if _, err := o.challenges.FailChallenge(ctx, event.ChallengeID, "delivery failed"); err != nil {
		return fmt.Errorf("failed to conclude undeliverable challenge %s: %w", event.ChallengeID, err)
	}
	log.Printf("saga: challenge %s failed after %d delivery attempts: %v",
		event.ChallengeID, o.config.DeliveryMaxRetries, lastErr)
	return nil
}

// handleVerified mints the session credential and parks it for pickup
func (o *SagaOrchestrator) handleVerified(ctx context.Context, event *domain.ChallengeEvent) error {
	cred, err := o.issuer.Issue(ctx, event.SubjectID, event.Purpose)
	if err != nil {
		// Surface for redelivery rather than retrying silently here
		return fmt.Errorf("%w: %v", domain.ErrIssuanceFailed, err)
	}

	if err := o.vault.Put(ctx, event.ChallengeID, cred); err != nil {
		return fmt.Errorf("failed to park credential for %s: %w", event.ChallengeID, err)
	}

	log.Printf("saga: credential issued for subject %s (challenge %s)", event.SubjectID, event.ChallengeID)
	return nil
}

func isConcluded(err error) bool {
	return errors.Is(err, domain.ErrChallengeVerified) ||
		errors.Is(err, domain.ErrChallengeLocked) ||
		errors.Is(err, domain.ErrChallengeExpired) ||
		errors.Is(err, domain.ErrChallengeFailed) ||
		errors.Is(err, domain.ErrChallengeNotFound)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
