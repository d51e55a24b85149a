package mocks

import (
	"context"
	"time"

	"github.com/you/otpsvc/domain"
)

// MockCredentialIssuer implements domain.CredentialIssuer interface for testing
type MockCredentialIssuer struct {
	IssueFunc    func(ctx context.Context, subjectID string, purpose domain.Purpose) (*domain.SignedCredential, error)
	ValidateFunc func(token string) (*domain.CredentialClaims, error)
}

// NewMockCredentialIssuer creates a new MockCredentialIssuer with default behaviors
func NewMockCredentialIssuer() *MockCredentialIssuer {
	return &MockCredentialIssuer{}
}

// Issue mints a signed credential
func (m *MockCredentialIssuer) Issue(ctx context.Context, subjectID string, purpose domain.Purpose) (*domain.SignedCredential, error) {
	if m.IssueFunc != nil {
		return m.IssueFunc(ctx, subjectID, purpose)
	}
	// Default behavior: a recognizable fake credential
	now := time.Now()
	return &domain.SignedCredential{
		Token:     "mock_credential_token",
		SubjectID: subjectID,
		Purpose:   purpose,
		IssuedAt:  now,
		ExpiresAt: now.Add(15 * time.Minute),
	}, nil
}

// Validate parses and verifies a credential token
func (m *MockCredentialIssuer) Validate(token string) (*domain.CredentialClaims, error) {
	if m.ValidateFunc != nil {
		return m.ValidateFunc(token)
	}
	if token != "mock_credential_token" {
		return nil, domain.ErrCredentialInvalid
	}
	now := time.Now()
	return &domain.CredentialClaims{
		SubjectID: "mock_subject",
		Purpose:   domain.PurposeLogin,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(15 * time.Minute).Unix(),
	}, nil
}

// Compile-time interface compliance verification
var _ domain.CredentialIssuer = (*MockCredentialIssuer)(nil)
