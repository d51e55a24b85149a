package domain

import (
	"errors"
	"testing"
	"time"
)

func TestChallengeState_Terminal(t *testing.T) {
	tests := []struct {
		state    ChallengeState
		terminal bool
	}{
		{StateIssued, false},
		{StateDelivered, false},
		{StateVerified, true},
		{StateFailed, true},
		{StateLocked, true},
		{StateExpired, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.Terminal(); got != tt.terminal {
				t.Errorf("Terminal() = %v, want %v", got, tt.terminal)
			}
		})
	}
}

func TestPurpose_Valid(t *testing.T) {
	tests := []struct {
		purpose Purpose
		valid   bool
	}{
		{PurposeLogin, true},
		{PurposeRegistration, true},
		{PurposeStepUp, true},
		{PurposePasswordReset, true},
		{Purpose(""), false},
		{Purpose("admin_login"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.purpose), func(t *testing.T) {
			if got := tt.purpose.Valid(); got != tt.valid {
				t.Errorf("Valid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestChannel_Valid(t *testing.T) {
	if !ChannelEmail.Valid() || !ChannelSMS.Valid() {
		t.Error("known channels should be valid")
	}
	if Channel("carrier_pigeon").Valid() {
		t.Error("unknown channel should be invalid")
	}
}

func TestChallenge_ExpiredAt(t *testing.T) {
	now := time.Now()
	ch := &Challenge{
		IssuedAt:  now,
		ExpiresAt: now.Add(60 * time.Second),
	}

	if ch.ExpiredAt(now.Add(59 * time.Second)) {
		t.Error("challenge should not be expired before TTL")
	}
	if !ch.ExpiredAt(now.Add(61 * time.Second)) {
		t.Error("challenge should be expired past TTL")
	}
}

func TestChallenge_RemainingAttempts(t *testing.T) {
	tests := []struct {
		name     string
		attempts int
		max      int
		want     int
	}{
		{"fresh", 0, 3, 3},
		{"one used", 1, 3, 2},
		{"exhausted", 3, 3, 0},
		{"over limit clamps to zero", 4, 3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := &Challenge{AttemptCount: tt.attempts, MaxAttempts: tt.max}
			if got := ch.RemainingAttempts(); got != tt.want {
				t.Errorf("RemainingAttempts() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestChallengeEvent_DedupeKey(t *testing.T) {
	ch := &Challenge{ID: "ch-1", SubjectID: "sub-1", Purpose: PurposeLogin, Version: 3}
	ev := NewChallengeEvent(EventChallengeFailed, ch)

	if ev.DedupeKey() != "ch-1:CHALLENGE_FAILED:3" {
		t.Errorf("unexpected dedupe key: %s", ev.DedupeKey())
	}
}

func TestChallengeEvent_Redacted(t *testing.T) {
	ch := &Challenge{ID: "ch-1", SubjectID: "sub-1", Purpose: PurposeLogin, Version: 1}
	ev := NewChallengeEvent(EventChallengeIssued, ch).
		WithDelivery(ChannelSMS, "+15550001111", "123456", time.Now().Add(time.Minute))

	red := ev.Redacted()
	if red.Code != "" {
		t.Error("redacted event must not carry the code")
	}
	if ev.Code != "123456" {
		t.Error("redaction must not mutate the original event")
	}
	if red.Destination != ev.Destination || red.Version != ev.Version {
		t.Error("redaction should preserve all other fields")
	}
}

func TestRateLimitedError_Is(t *testing.T) {
	var err error = &RateLimitedError{RetryAfter: 30 * time.Second}
	if !errors.Is(err, ErrRateLimited) {
		t.Error("RateLimitedError should match ErrRateLimited")
	}
	if err.Error() != "rate limited, retry after 30s" {
		t.Errorf("unexpected message: %s", err.Error())
	}
}
