package mocks

import (
	"context"

	"github.com/you/otpsvc/domain"
)

// MockChallengeStore implements domain.ChallengeStore interface for testing
type MockChallengeStore struct {
	PutFunc            func(ctx context.Context, ch *domain.Challenge) error
	GetFunc            func(ctx context.Context, challengeID string) (*domain.Challenge, error)
	GetLiveFunc        func(ctx context.Context, subjectID string, purpose domain.Purpose) (*domain.Challenge, error)
	CompareAndSwapFunc func(ctx context.Context, ch *domain.Challenge, expectedVersion int64) error
}

// NewMockChallengeStore creates a new MockChallengeStore with default behaviors
func NewMockChallengeStore() *MockChallengeStore {
	return &MockChallengeStore{}
}

// Put creates a new challenge
func (m *MockChallengeStore) Put(ctx context.Context, ch *domain.Challenge) error {
	if m.PutFunc != nil {
		return m.PutFunc(ctx, ch)
	}
	// Default behavior: success
	return nil
}

// Get finds a challenge by ID
func (m *MockChallengeStore) Get(ctx context.Context, challengeID string) (*domain.Challenge, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, challengeID)
	}
	// Default behavior: not found
	return nil, domain.ErrChallengeNotFound
}

// GetLive finds the live challenge for a subject and purpose
func (m *MockChallengeStore) GetLive(ctx context.Context, subjectID string, purpose domain.Purpose) (*domain.Challenge, error) {
	if m.GetLiveFunc != nil {
		return m.GetLiveFunc(ctx, subjectID, purpose)
	}
	// Default behavior: not found
	return nil, domain.ErrChallengeNotFound
}

// CompareAndSwap writes the challenge if the stored version matches
func (m *MockChallengeStore) CompareAndSwap(ctx context.Context, ch *domain.Challenge, expectedVersion int64) error {
	if m.CompareAndSwapFunc != nil {
		return m.CompareAndSwapFunc(ctx, ch, expectedVersion)
	}
	// Default behavior: apply and bump version
	ch.Version = expectedVersion + 1
	return nil
}

// Compile-time interface compliance verification
var _ domain.ChallengeStore = (*MockChallengeStore)(nil)
