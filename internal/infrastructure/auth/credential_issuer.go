package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/you/otpsvc/domain"
)

// CredentialIssuerImpl implements domain.CredentialIssuer with HMAC-signed JWTs
type CredentialIssuerImpl struct {
	secretKey     []byte
	issuer        string
	credentialTTL time.Duration
}

// NewCredentialIssuer creates a new JWT credential issuer
func NewCredentialIssuer(secretKey, issuer string, credentialTTL time.Duration) domain.CredentialIssuer {
	return &CredentialIssuerImpl{
		secretKey:     []byte(secretKey),
		issuer:        issuer,
		credentialTTL: credentialTTL,
	}
}

// generateJTI creates a unique JWT ID
func (j *CredentialIssuerImpl) generateJTI() string {
	bytes := make([]byte, 16)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// Issue implements domain.CredentialIssuer
func (j *CredentialIssuerImpl) Issue(_ context.Context, subjectID string, purpose domain.Purpose) (*domain.SignedCredential, error) {
	now := time.Now()
	expiresAt := now.Add(j.credentialTTL)
	claims := jwt.MapClaims{
		"sub":     subjectID,
		"purpose": string(purpose),
		"iss":     j.issuer,
		"iat":     now.Unix(),
		"exp":     expiresAt.Unix(),
		"jti":     j.generateJTI(), // Unique JWT ID ensures token uniqueness
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.secretKey)
	if err != nil {
		return nil, domain.ErrIssuanceFailed
	}

	return &domain.SignedCredential{
		Token:     signed,
		SubjectID: subjectID,
		Purpose:   purpose,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}, nil
}

// Validate implements domain.CredentialIssuer
func (j *CredentialIssuerImpl) Validate(tokenString string) (*domain.CredentialClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, domain.ErrCredentialMalformed
		}
		return j.secretKey, nil
	})

	if err != nil || !token.Valid {
		return nil, domain.ErrCredentialInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, domain.ErrCredentialMalformed
	}

	subjectID, ok := claims["sub"].(string)
	if !ok {
		return nil, domain.ErrCredentialMalformed
	}

	iat, ok := claims["iat"].(float64)
	if !ok {
		return nil, domain.ErrCredentialMalformed
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return nil, domain.ErrCredentialMalformed
	}

	if time.Unix(int64(exp), 0).Before(time.Now()) {
		return nil, domain.ErrCredentialExpired
	}

	credClaims := &domain.CredentialClaims{
		SubjectID: subjectID,
		IssuedAt:  int64(iat),
		ExpiresAt: int64(exp),
	}

	if purpose, ok := claims["purpose"].(string); ok {
		credClaims.Purpose = domain.Purpose(purpose)
	}
	// Role is present only on operator tokens minted out of band
	if role, ok := claims["role"].(string); ok {
		credClaims.Role = role
	}

	return credClaims, nil
}
