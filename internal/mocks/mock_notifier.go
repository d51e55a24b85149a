package mocks

import (
	"context"

	"github.com/you/otpsvc/domain"
)

// MockNotifier implements domain.Notifier interface for testing
type MockNotifier struct {
	SendFunc func(ctx context.Context, req *domain.DeliveryRequest) (*domain.DeliveryResult, error)
}

// NewMockNotifier creates a new MockNotifier with default behaviors
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// Send delivers a code over an external channel
func (m *MockNotifier) Send(ctx context.Context, req *domain.DeliveryRequest) (*domain.DeliveryResult, error) {
	if m.SendFunc != nil {
		return m.SendFunc(ctx, req)
	}
	// Default behavior: success (no actual message sent in tests)
	return &domain.DeliveryResult{Acked: true, ProviderID: "mock_delivery"}, nil
}

// Compile-time interface compliance verification
var _ domain.Notifier = (*MockNotifier)(nil)
