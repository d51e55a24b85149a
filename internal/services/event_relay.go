package services

import (
	"context"
	"log"
	"time"

	"github.com/you/otpsvc/domain"
)

const relayBatchSize = 64

// EventRelay drains journal rows whose stream publish never succeeded.
// Consumers dedupe on the event itself, so replaying a row that was in
// fact published is harmless.
type EventRelay struct {
	journal   domain.EventJournal
	publisher domain.EventPublisher
	interval  time.Duration
}

// NewEventRelay creates a new outbox relay
func NewEventRelay(journal domain.EventJournal, publisher domain.EventPublisher, interval time.Duration) *EventRelay {
	return &EventRelay{
		journal:   journal,
		publisher: publisher,
		interval:  interval,
	}
}

// Run relays on the configured interval until ctx is cancelled
func (r *EventRelay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.relay(ctx)
		}
	}
}

func (r *EventRelay) relay(ctx context.Context) {
	for {
		events, err := r.journal.ListUnpublished(ctx, relayBatchSize)
		if err != nil {
			log.Printf("relay: failed to list pending events: %v", err)
			return
		}
		if len(events) == 0 {
			return
		}

		for _, event := range events {
			if err := r.publisher.Publish(ctx, event); err != nil {
				log.Printf("relay: failed to publish %s for challenge %s: %v", event.Type, event.ChallengeID, err)
				return
			}
			if err := r.journal.MarkPublished(ctx, event.ID); err != nil {
				log.Printf("relay: failed to mark event %s published: %v", event.ID, err)
				return
			}
		}

		if len(events) < relayBatchSize {
			return
		}
	}
}
