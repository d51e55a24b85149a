package mocks

import (
	"context"

	"github.com/you/otpsvc/domain"
)

// MockChallengeService implements domain.ChallengeService interface for testing
type MockChallengeService struct {
	RequestChallengeFunc func(ctx context.Context, subjectID string, purpose domain.Purpose, channel domain.Channel, destination string) (*domain.Challenge, error)
	MarkDeliveredFunc    func(ctx context.Context, challengeID string) (*domain.Challenge, error)
	SubmitCodeFunc       func(ctx context.Context, challengeID, code string, expectedVersion int64) (*domain.SubmitResult, error)
	ExpireChallengeFunc  func(ctx context.Context, challengeID string) (*domain.Challenge, error)
	FailChallengeFunc    func(ctx context.Context, challengeID, reason string) (*domain.Challenge, error)
	GetChallengeFunc     func(ctx context.Context, challengeID string) (*domain.Challenge, error)
}

// NewMockChallengeService creates a new MockChallengeService with default behaviors
func NewMockChallengeService() *MockChallengeService {
	return &MockChallengeService{}
}

// RequestChallenge issues a new challenge
func (m *MockChallengeService) RequestChallenge(ctx context.Context, subjectID string, purpose domain.Purpose, channel domain.Channel, destination string) (*domain.Challenge, error) {
	if m.RequestChallengeFunc != nil {
		return m.RequestChallengeFunc(ctx, subjectID, purpose, channel, destination)
	}
	// Default behavior: not found
	return nil, domain.ErrChallengeNotFound
}

// MarkDelivered records delivery acknowledgment
func (m *MockChallengeService) MarkDelivered(ctx context.Context, challengeID string) (*domain.Challenge, error) {
	if m.MarkDeliveredFunc != nil {
		return m.MarkDeliveredFunc(ctx, challengeID)
	}
	return nil, domain.ErrChallengeNotFound
}

// SubmitCode verifies a submitted code
func (m *MockChallengeService) SubmitCode(ctx context.Context, challengeID, code string, expectedVersion int64) (*domain.SubmitResult, error) {
	if m.SubmitCodeFunc != nil {
		return m.SubmitCodeFunc(ctx, challengeID, code, expectedVersion)
	}
	return nil, domain.ErrChallengeNotFound
}

// ExpireChallenge expires a challenge past its TTL
func (m *MockChallengeService) ExpireChallenge(ctx context.Context, challengeID string) (*domain.Challenge, error) {
	if m.ExpireChallengeFunc != nil {
		return m.ExpireChallengeFunc(ctx, challengeID)
	}
	return nil, domain.ErrChallengeNotFound
}

// FailChallenge terminally fails a live challenge
func (m *MockChallengeService) FailChallenge(ctx context.Context, challengeID, reason string) (*domain.Challenge, error) {
	if m.FailChallengeFunc != nil {
		return m.FailChallengeFunc(ctx, challengeID, reason)
	}
	return nil, domain.ErrChallengeNotFound
}

// GetChallenge returns a challenge by ID
func (m *MockChallengeService) GetChallenge(ctx context.Context, challengeID string) (*domain.Challenge, error) {
	if m.GetChallengeFunc != nil {
		return m.GetChallengeFunc(ctx, challengeID)
	}
	return nil, domain.ErrChallengeNotFound
}

// Compile-time interface compliance verification
var _ domain.ChallengeService = (*MockChallengeService)(nil)
