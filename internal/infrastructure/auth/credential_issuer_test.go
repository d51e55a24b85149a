package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/you/otpsvc/domain"
)

func TestCredentialIssuerImpl_IssueValidate(t *testing.T) {
	issuer := NewCredentialIssuer("test-secret", "otpsvc-test", 15*time.Minute)
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		cred, err := issuer.Issue(ctx, "user-1", domain.PurposeLogin)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cred.Token == "" {
			t.Fatal("expected a signed token")
		}
		if cred.SubjectID != "user-1" || cred.Purpose != domain.PurposeLogin {
			t.Errorf("unexpected credential: %+v", cred)
		}

		claims, err := issuer.Validate(cred.Token)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if claims.SubjectID != "user-1" {
			t.Errorf("expected subject user-1, got %s", claims.SubjectID)
		}
		if claims.Purpose != domain.PurposeLogin {
			t.Errorf("expected purpose %s, got %s", domain.PurposeLogin, claims.Purpose)
		}
		if claims.ExpiresAt <= claims.IssuedAt {
			t.Error("expected exp after iat")
		}
	})

	t.Run("tokens are unique per issuance", func(t *testing.T) {
		first, _ := issuer.Issue(ctx, "user-1", domain.PurposeLogin)
		second, _ := issuer.Issue(ctx, "user-1", domain.PurposeLogin)
		if first.Token == second.Token {
			t.Error("expected distinct tokens")
		}
	})

	t.Run("wrong key is rejected", func(t *testing.T) {
		other := NewCredentialIssuer("other-secret", "otpsvc-test", 15*time.Minute)
		cred, _ := other.Issue(ctx, "user-1", domain.PurposeLogin)

		if _, err := issuer.Validate(cred.Token); !errors.Is(err, domain.ErrCredentialInvalid) {
			t.Errorf("expected ErrCredentialInvalid, got %v", err)
		}
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		if _, err := issuer.Validate("not.a.token"); !errors.Is(err, domain.ErrCredentialInvalid) {
			t.Errorf("expected ErrCredentialInvalid, got %v", err)
		}
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		shortLived := NewCredentialIssuer("test-secret", "otpsvc-test", -time.Minute)
		cred, _ := shortLived.Issue(ctx, "user-1", domain.PurposeLogin)

		_, err := issuer.Validate(cred.Token)
		if err == nil {
			t.Fatal("expected an error for an expired token")
		}
		if !errors.Is(err, domain.ErrCredentialInvalid) && !errors.Is(err, domain.ErrCredentialExpired) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
