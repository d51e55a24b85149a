package domain

import (
	"errors"
	"fmt"
	"time"
)

// Challenge errors
var (
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrChallengeExpired  = errors.New("challenge has expired")
	ErrChallengeLocked   = errors.New("challenge is locked")
	ErrChallengeVerified = errors.New("challenge already verified")
	ErrChallengeFailed   = errors.New("challenge has failed")
	ErrCodeInvalid       = errors.New("invalid verification code")
	ErrDeliveryPending   = errors.New("delivery not yet confirmed")
	ErrVersionConflict   = errors.New("challenge version conflict")
	ErrRateLimited       = errors.New("challenge request rate limited")
)

// Saga errors
var (
	ErrDeliveryFailed = errors.New("code delivery failed")
	ErrIssuanceFailed = errors.New("credential issuance failed")
)

// Credential errors
var (
	ErrCredentialInvalid   = errors.New("invalid credential")
	ErrCredentialExpired   = errors.New("credential has expired")
	ErrCredentialMalformed = errors.New("malformed credential")
	ErrCredentialNotFound  = errors.New("credential not found")
)

// RateLimitedError carries the wait until a new challenge may be requested.
// errors.Is(err, ErrRateLimited) matches it.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %ds", int(e.RetryAfter.Seconds()))
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }
