package mocks

import (
	"context"
	"sync"

	"github.com/you/otpsvc/domain"
)

// MockCredentialVault implements domain.CredentialVault interface for testing.
// The default behavior is an in-memory one-shot store.
type MockCredentialVault struct {
	PutFunc  func(ctx context.Context, challengeID string, cred *domain.SignedCredential) error
	TakeFunc func(ctx context.Context, challengeID string) (*domain.SignedCredential, error)

	mu    sync.Mutex
	creds map[string]*domain.SignedCredential
}

// NewMockCredentialVault creates a new MockCredentialVault with default behaviors
func NewMockCredentialVault() *MockCredentialVault {
	return &MockCredentialVault{creds: make(map[string]*domain.SignedCredential)}
}

// Put parks a credential for pickup
func (m *MockCredentialVault) Put(ctx context.Context, challengeID string, cred *domain.SignedCredential) error {
	if m.PutFunc != nil {
		return m.PutFunc(ctx, challengeID, cred)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[challengeID] = cred
	return nil
}

// Take returns and removes a parked credential
func (m *MockCredentialVault) Take(ctx context.Context, challengeID string) (*domain.SignedCredential, error) {
	if m.TakeFunc != nil {
		return m.TakeFunc(ctx, challengeID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cred, ok := m.creds[challengeID]
	if !ok {
		return nil, domain.ErrCredentialNotFound
	}
	delete(m.creds, challengeID)
	return cred, nil
}

// Compile-time interface compliance verification
var _ domain.CredentialVault = (*MockCredentialVault)(nil)
