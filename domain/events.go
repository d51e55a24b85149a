package domain

import (
	"fmt"
	"time"
)

// EventType identifies a challenge lifecycle event
type EventType string

const (
	EventChallengeIssued    EventType = "CHALLENGE_ISSUED"
	EventChallengeDelivered EventType = "CHALLENGE_DELIVERED"
	EventChallengeVerified  EventType = "CHALLENGE_VERIFIED"
	EventChallengeFailed    EventType = "CHALLENGE_FAILED"
	EventChallengeLocked    EventType = "CHALLENGE_LOCKED"
	EventChallengeExpired   EventType = "CHALLENGE_EXPIRED"
)

// ChallengeEvent is the record appended for every challenge state change.
// Events for one challenge carry strictly increasing versions; consumers
// dedupe on ChallengeID+Type+Version.
//
// Code is set only on CHALLENGE_ISSUED and only while the event is in
// flight to the saga; the journal never persists it.
type ChallengeEvent struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	ChallengeID string    `json:"challenge_id"`
	SubjectID   string    `json:"subject_id"`
	Purpose     Purpose   `json:"purpose"`
	Version     int64     `json:"version"`
	OccurredAt  time.Time `json:"occurred_at"`

	Channel           Channel   `json:"channel,omitempty"`
	Destination       string    `json:"destination,omitempty"`
	Code              string    `json:"code,omitempty"`
	ExpiresAt         time.Time `json:"expires_at,omitempty"`
	RemainingAttempts int       `json:"remaining_attempts,omitempty"`
	Terminal          bool      `json:"terminal,omitempty"`
	Reason            string    `json:"reason,omitempty"`
}

// NewChallengeEvent creates an event with common fields taken from the challenge
func NewChallengeEvent(eventType EventType, ch *Challenge) *ChallengeEvent {
	return &ChallengeEvent{
		Type:        eventType,
		ChallengeID: ch.ID,
		SubjectID:   ch.SubjectID,
		Purpose:     ch.Purpose,
		Version:     ch.Version,
		OccurredAt:  time.Now().UTC(),
	}
}

// WithDelivery sets the delivery fields needed by the saga on issuance
func (e *ChallengeEvent) WithDelivery(channel Channel, destination, code string, expiresAt time.Time) *ChallengeEvent {
	e.Channel = channel
	e.Destination = destination
	e.Code = code
	e.ExpiresAt = expiresAt
	return e
}

// WithRemainingAttempts sets the attempts left after a failed submission
func (e *ChallengeEvent) WithRemainingAttempts(n int) *ChallengeEvent {
	e.RemainingAttempts = n
	return e
}

// WithReason marks the event terminal with a cause
func (e *ChallengeEvent) WithReason(reason string) *ChallengeEvent {
	e.Terminal = true
	e.Reason = reason
	return e
}

// DedupeKey identifies this event for idempotent downstream handling
func (e *ChallengeEvent) DedupeKey() string {
	return fmt.Sprintf("%s:%s:%d", e.ChallengeID, e.Type, e.Version)
}

// Redacted returns a copy safe for persistence, with the raw code stripped
func (e *ChallengeEvent) Redacted() *ChallengeEvent {
	cp := *e
	cp.Code = ""
	return &cp
}
