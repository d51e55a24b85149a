package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/you/otpsvc/domain"
)

func testCredential() *domain.SignedCredential {
	now := time.Now()
	return &domain.SignedCredential{
		Token:     "signed.jwt.token",
		SubjectID: "user-1",
		Purpose:   domain.PurposeLogin,
		IssuedAt:  now,
		ExpiresAt: now.Add(15 * time.Minute),
	}
}

func TestCredentialVaultImpl(t *testing.T) {
	client := testRedisClient(t)
	vault := NewCredentialVault(client)
	ctx := context.Background()

	t.Run("one-shot pickup", func(t *testing.T) {
		cred := testCredential()
		if err := vault.Put(ctx, "ch-1", cred); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got, err := vault.Take(ctx, "ch-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Token != cred.Token || got.SubjectID != cred.SubjectID {
			t.Errorf("round trip mismatch: %+v", got)
		}

		if _, err := vault.Take(ctx, "ch-1"); !errors.Is(err, domain.ErrCredentialNotFound) {
			t.Errorf("expected ErrCredentialNotFound on second pickup, got %v", err)
		}
	})

	t.Run("unknown challenge", func(t *testing.T) {
		if _, err := vault.Take(ctx, "missing"); !errors.Is(err, domain.ErrCredentialNotFound) {
			t.Errorf("expected ErrCredentialNotFound, got %v", err)
		}
	})

	t.Run("expired credential is refused on store", func(t *testing.T) {
		cred := testCredential()
		cred.ExpiresAt = time.Now().Add(-time.Minute)
		if err := vault.Put(ctx, "ch-2", cred); !errors.Is(err, domain.ErrCredentialExpired) {
			t.Errorf("expected ErrCredentialExpired, got %v", err)
		}
	})
}
