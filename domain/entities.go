package domain

import "time"

// ChallengeState is the lifecycle state of an OTP challenge
type ChallengeState string

const (
	StateIssued    ChallengeState = "ISSUED"
	StateDelivered ChallengeState = "DELIVERED"
	StateVerified  ChallengeState = "VERIFIED"
	StateFailed    ChallengeState = "FAILED"
	StateLocked    ChallengeState = "LOCKED"
	StateExpired   ChallengeState = "EXPIRED"
)

// Terminal reports whether no further transition is allowed from the state
func (s ChallengeState) Terminal() bool {
	switch s {
	case StateVerified, StateFailed, StateLocked, StateExpired:
		return true
	}
	return false
}

// Purpose is the reason a challenge was requested
type Purpose string

const (
	PurposeLogin         Purpose = "login"
	PurposeRegistration  Purpose = "registration"
	PurposeStepUp        Purpose = "step_up"
	PurposePasswordReset Purpose = "password_reset"
)

// Valid reports whether the purpose is one of the known values
func (p Purpose) Valid() bool {
	switch p {
	case PurposeLogin, PurposeRegistration, PurposeStepUp, PurposePasswordReset:
		return true
	}
	return false
}

// Channel is the delivery channel for the code
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Valid reports whether the channel is one of the known values
func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelSMS
}

// Challenge is one OTP verification context. The raw code is never stored,
// only its salted hash. Version increases on every mutation and guards
// optimistic concurrency in the store.
type Challenge struct {
	ID           string
	SubjectID    string
	Purpose      Purpose
	CodeHash     string
	Channel      Channel
	Destination  string
	State        ChallengeState
	AttemptCount int
	MaxAttempts  int
	IssuedAt     time.Time
	ExpiresAt    time.Time
	Version      int64
}

// Live reports whether the challenge is still open for verification
func (c *Challenge) Live() bool {
	return !c.State.Terminal()
}

// ExpiredAt reports whether the challenge TTL has elapsed at the given time
func (c *Challenge) ExpiredAt(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// RemainingAttempts returns how many verification attempts are left
func (c *Challenge) RemainingAttempts() int {
	rem := c.MaxAttempts - c.AttemptCount
	if rem < 0 {
		return 0
	}
	return rem
}

// SubmitResult is the outcome of a SubmitCode command
type SubmitResult struct {
	Challenge         *Challenge
	Verified          bool
	RemainingAttempts int
}

// DeliveryRequest is the payload handed to the Notifier. Code exists only
// in this in-flight message, never at rest.
type DeliveryRequest struct {
	ChallengeID string
	Channel     Channel
	Destination string
	Code        string
	Purpose     Purpose
	ExpiresAt   time.Time
}

// DeliveryResult is the Notifier acknowledgment
type DeliveryResult struct {
	Acked      bool
	ProviderID string
}

// SignedCredential is the session credential minted after verification
type SignedCredential struct {
	Token     string    `json:"token"`
	SubjectID string    `json:"subject_id"`
	Purpose   Purpose   `json:"purpose"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CredentialClaims are the claims extracted from a validated credential
type CredentialClaims struct {
	SubjectID string
	Purpose   Purpose
	Role      string
	IssuedAt  int64
	ExpiresAt int64
}
