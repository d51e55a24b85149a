package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/you/otpsvc/domain"
)

// MockDeduper implements domain.Deduper interface for testing.
// The default behavior is an in-memory key set, ignoring TTLs.
type MockDeduper struct {
	OnceFunc   func(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ForgetFunc func(ctx context.Context, key string) error

	mu   sync.Mutex
	seen map[string]bool
}

// NewMockDeduper creates a new MockDeduper with default behaviors
func NewMockDeduper() *MockDeduper {
	return &MockDeduper{seen: make(map[string]bool)}
}

// Once returns true the first time key is seen
func (m *MockDeduper) Once(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if m.OnceFunc != nil {
		return m.OnceFunc(ctx, key, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

// Forget releases a claimed key
func (m *MockDeduper) Forget(ctx context.Context, key string) error {
	if m.ForgetFunc != nil {
		return m.ForgetFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seen, key)
	return nil
}

// Compile-time interface compliance verification
var _ domain.Deduper = (*MockDeduper)(nil)
