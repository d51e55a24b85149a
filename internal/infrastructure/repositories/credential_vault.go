package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/you/otpsvc/domain"
)

// CredentialVaultImpl implements domain.CredentialVault using Redis.
// A credential is held only until the gateway collects it or it expires.
type CredentialVaultImpl struct {
	client *redis.Client
	prefix string
}

// NewCredentialVault creates a new credential vault
func NewCredentialVault(client *redis.Client) domain.CredentialVault {
	return &CredentialVaultImpl{
		client: client,
		prefix: "credential:",
	}
}

// Put implements domain.CredentialVault
func (r *CredentialVaultImpl) Put(ctx context.Context, challengeID string, cred *domain.SignedCredential) error {
	key := r.prefix + challengeID
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}

	ttl := time.Until(cred.ExpiresAt)
	if ttl <= 0 {
		return domain.ErrCredentialExpired
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

// Take implements domain.CredentialVault. The credential is removed on
// read so it can be collected exactly once.
func (r *CredentialVaultImpl) Take(ctx context.Context, challengeID string) (*domain.SignedCredential, error) {
	key := r.prefix + challengeID
	data, err := r.client.GetDel(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, domain.ErrCredentialNotFound
		}
		return nil, err
	}

	var cred domain.SignedCredential
	if err := json.Unmarshal([]byte(data), &cred); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential: %w", err)
	}

	if cred.ExpiresAt.Before(time.Now()) {
		return nil, domain.ErrCredentialExpired
	}

	return &cred, nil
}
