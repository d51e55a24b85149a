package mocks

import (
	"context"

	"github.com/you/otpsvc/domain"
)

// MockRateLimiter implements domain.RateLimiter interface for testing
type MockRateLimiter struct {
	ReserveIssueFunc func(ctx context.Context, subjectID string, purpose domain.Purpose) error
}

// NewMockRateLimiter creates a new MockRateLimiter with default behaviors
func NewMockRateLimiter() *MockRateLimiter {
	return &MockRateLimiter{}
}

// ReserveIssue records an issuance attempt
func (m *MockRateLimiter) ReserveIssue(ctx context.Context, subjectID string, purpose domain.Purpose) error {
	if m.ReserveIssueFunc != nil {
		return m.ReserveIssueFunc(ctx, subjectID, purpose)
	}
	// Default behavior: not limited
	return nil
}

// Compile-time interface compliance verification
var _ domain.RateLimiter = (*MockRateLimiter)(nil)
