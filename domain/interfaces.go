package domain

import (
	"context"
	"time"
)

// ChallengeStore defines challenge persistence. Implementations must back
// all mutation with an atomic compare-and-swap keyed on Version, because
// multiple service instances mutate the same challenge concurrently.
type ChallengeStore interface {
	// Put creates a new challenge. The entry stays readable for a retention
	// window past ExpiresAt so terminal outcomes remain observable.
	Put(ctx context.Context, ch *Challenge) error
	Get(ctx context.Context, challengeID string) (*Challenge, error)
	// GetLive returns the live challenge for a (subject, purpose) pair, or
	// ErrChallengeNotFound when none exists.
	GetLive(ctx context.Context, subjectID string, purpose Purpose) (*Challenge, error)
	// CompareAndSwap writes the mutable fields of ch if the stored version
	// equals expectedVersion, bumping ch.Version. Returns ErrVersionConflict
	// when another writer got there first.
	CompareAndSwap(ctx context.Context, ch *Challenge, expectedVersion int64) error
}

// RateLimiter guards challenge issuance per (subject, purpose)
type RateLimiter interface {
	// ReserveIssue records an issuance attempt. A non-nil error wrapping
	// ErrRateLimited means the cooldown or request window is exhausted.
	ReserveIssue(ctx context.Context, subjectID string, purpose Purpose) error
}

// CodeGenerator produces verification codes and their validation material
type CodeGenerator interface {
	// Generate returns the plaintext code (for delivery only) and its
	// salted hash (for storage).
	Generate(length int) (code string, hash string, err error)
	Compare(hash, code string) bool
}

// EventPublisher appends challenge events to the shared stream
type EventPublisher interface {
	Publish(ctx context.Context, event *ChallengeEvent) error
}

// EventHandler processes one event; a non-nil error leaves the event
// pending for redelivery
type EventHandler func(ctx context.Context, event *ChallengeEvent) error

// EventSubscriber delivers events at least once, in per-challenge order
type EventSubscriber interface {
	Subscribe(ctx context.Context, group, consumer string, handler EventHandler) error
}

// EventJournal is the durable, append-only record of events. It doubles
// as the outbox for the live stream: entries stay unpublished until the
// stream write is confirmed, and a relay drains whatever the command
// path could not publish.
type EventJournal interface {
	Append(ctx context.Context, event *ChallengeEvent) error
	MarkPublished(ctx context.Context, eventID string) error
	ListUnpublished(ctx context.Context, limit int) ([]*ChallengeEvent, error)
	ListByChallenge(ctx context.Context, challengeID string) ([]*ChallengeEvent, error)
}

// Notifier sends the code over an external channel
type Notifier interface {
	Send(ctx context.Context, req *DeliveryRequest) (*DeliveryResult, error)
}

// CredentialIssuer mints a signed session credential after verification
type CredentialIssuer interface {
	Issue(ctx context.Context, subjectID string, purpose Purpose) (*SignedCredential, error)
	Validate(token string) (*CredentialClaims, error)
}

// CredentialVault parks an issued credential for one-shot pickup by the gateway
type CredentialVault interface {
	Put(ctx context.Context, challengeID string, cred *SignedCredential) error
	// Take returns and removes the credential, or ErrCredentialNotFound.
	Take(ctx context.Context, challengeID string) (*SignedCredential, error)
}

// Deduper tracks processed work keys for idempotent event handling
type Deduper interface {
	// Once returns true the first time key is seen within ttl.
	Once(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Forget releases a key claimed by Once, so a failed handling can be
	// redelivered.
	Forget(ctx context.Context, key string) error
}

// ChallengeService is the command surface of the OTP aggregate
type ChallengeService interface {
	RequestChallenge(ctx context.Context, subjectID string, purpose Purpose, channel Channel, destination string) (*Challenge, error)
	MarkDelivered(ctx context.Context, challengeID string) (*Challenge, error)
	// SubmitCode verifies a code. expectedVersion 0 means no expectation;
	// a stale non-zero expectedVersion yields ErrVersionConflict.
	SubmitCode(ctx context.Context, challengeID, code string, expectedVersion int64) (*SubmitResult, error)
	ExpireChallenge(ctx context.Context, challengeID string) (*Challenge, error)
	// FailChallenge terminally fails a live challenge, e.g. after delivery
	// retries are exhausted.
	FailChallenge(ctx context.Context, challengeID, reason string) (*Challenge, error)
	GetChallenge(ctx context.Context, challengeID string) (*Challenge, error)
}

// PolicyService defines authorization policy operations
type PolicyService interface {
	AddPolicy(role, resource, action string) error
	RemovePolicy(role, resource, action string) error
	CheckPermission(role, resource, action string) (bool, error)
	GetPolicies() [][]string
}

// CasbinEnforcer interface defines the methods we need from Casbin enforcer
type CasbinEnforcer interface {
	AddPolicy(params ...interface{}) (bool, error)
	RemovePolicy(params ...interface{}) (bool, error)
	Enforce(rvals ...interface{}) (bool, error)
	GetPolicy() ([][]string, error)
	SavePolicy() error
}
