package mocks

import (
	"context"
	"sync"

	"github.com/you/otpsvc/domain"
)

// MockEventPublisher implements domain.EventPublisher interface for testing.
// Published events are recorded for assertion.
type MockEventPublisher struct {
	PublishFunc func(ctx context.Context, event *domain.ChallengeEvent) error

	mu        sync.Mutex
	Published []*domain.ChallengeEvent
}

// NewMockEventPublisher creates a new MockEventPublisher with default behaviors
func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

// Publish appends an event to the stream
func (m *MockEventPublisher) Publish(ctx context.Context, event *domain.ChallengeEvent) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, event)
	}
	// Default behavior: record the event
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Published = append(m.Published, event)
	return nil
}

// Compile-time interface compliance verification
var _ domain.EventPublisher = (*MockEventPublisher)(nil)

// MockEventJournal implements domain.EventJournal interface for testing.
// The default behavior keeps an in-memory outbox so publish-state
// round-trips can be asserted without a database.
type MockEventJournal struct {
	AppendFunc          func(ctx context.Context, event *domain.ChallengeEvent) error
	MarkPublishedFunc   func(ctx context.Context, eventID string) error
	ListUnpublishedFunc func(ctx context.Context, limit int) ([]*domain.ChallengeEvent, error)
	ListByChallengeFunc func(ctx context.Context, challengeID string) ([]*domain.ChallengeEvent, error)

	mu        sync.Mutex
	entries   []*domain.ChallengeEvent
	published map[string]bool
}

// NewMockEventJournal creates a new MockEventJournal with default behaviors
func NewMockEventJournal() *MockEventJournal {
	return &MockEventJournal{
		published: make(map[string]bool),
	}
}

// Append records an event in the journal
func (m *MockEventJournal) Append(ctx context.Context, event *domain.ChallengeEvent) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, event)
	}
	// Default behavior: record the redacted event as unpublished
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, event.Redacted())
	return nil
}

// MarkPublished flags a journaled event as confirmed on the stream
func (m *MockEventJournal) MarkPublished(ctx context.Context, eventID string) error {
	if m.MarkPublishedFunc != nil {
		return m.MarkPublishedFunc(ctx, eventID)
	}
	// Default behavior: flag the entry
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published[eventID] = true
	return nil
}

// ListUnpublished returns journaled events still awaiting a stream publish
func (m *MockEventJournal) ListUnpublished(ctx context.Context, limit int) ([]*domain.ChallengeEvent, error) {
	if m.ListUnpublishedFunc != nil {
		return m.ListUnpublishedFunc(ctx, limit)
	}
	// Default behavior: unpublished entries in append order, issued excluded
	m.mu.Lock()
	defer m.mu.Unlock()
	var pending []*domain.ChallengeEvent
	for _, event := range m.entries {
		if event.Type == domain.EventChallengeIssued || m.published[event.ID] {
			continue
		}
		pending = append(pending, event)
		if len(pending) == limit {
			break
		}
	}
	return pending, nil
}

// ListByChallenge returns the journaled events for a challenge
func (m *MockEventJournal) ListByChallenge(ctx context.Context, challengeID string) ([]*domain.ChallengeEvent, error) {
	if m.ListByChallengeFunc != nil {
		return m.ListByChallengeFunc(ctx, challengeID)
	}
	// Default behavior: recorded entries for the challenge
	m.mu.Lock()
	defer m.mu.Unlock()
	var events []*domain.ChallengeEvent
	for _, event := range m.entries {
		if event.ChallengeID == challengeID {
			events = append(events, event)
		}
	}
	return events, nil
}

// Compile-time interface compliance verification
var _ domain.EventJournal = (*MockEventJournal)(nil)
