package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/otpsvc/domain"
	"github.com/you/otpsvc/internal/mocks"
)

func setupHandlers(t *testing.T) (*ChallengeHandlers, *mocks.MockChallengeService, *mocks.MockCredentialVault, *mocks.MockEventJournal) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	challengeSvc := mocks.NewMockChallengeService()
	vault := mocks.NewMockCredentialVault()
	journal := mocks.NewMockEventJournal()
	return NewChallengeHandlers(challengeSvc, vault, journal), challengeSvc, vault, journal
}

func performJSON(t *testing.T, handler gin.HandlerFunc, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	w := httptest.NewRecorder()
	router := gin.New()
	router.Handle(method, path, handler)

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func performParam(t *testing.T, handler gin.HandlerFunc, method, route, url string) *httptest.ResponseRecorder {
	t.Helper()

	w := httptest.NewRecorder()
	router := gin.New()
	router.Handle(method, route, handler)
	router.ServeHTTP(w, httptest.NewRequest(method, url, nil))
	return w
}

func TestChallengeHandlers_Request(t *testing.T) {
	t.Run("issues a challenge", func(t *testing.T) {
		h, svc, _, _ := setupHandlers(t)
		svc.RequestChallengeFunc = func(ctx context.Context, subjectID string, purpose domain.Purpose, channel domain.Channel, destination string) (*domain.Challenge, error) {
			assert.Equal(t, "user-1", subjectID)
			assert.Equal(t, domain.PurposeLogin, purpose)
			return &domain.Challenge{
				ID:        "ch-1",
				State:     domain.StateIssued,
				ExpiresAt: time.Now().Add(5 * time.Minute),
				Version:   1,
			}, nil
		}

		w := performJSON(t, h.Request, http.MethodPost, "/otp/request", gin.H{
			"subject_id":  "user-1",
			"purpose":     "login",
			"channel":     "sms",
			"destination": "+551199",
		})

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), "ch-1")
	})

	t.Run("missing fields are rejected", func(t *testing.T) {
		h, _, _, _ := setupHandlers(t)
		w := performJSON(t, h.Request, http.MethodPost, "/otp/request", gin.H{"subject_id": "user-1"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rate limit maps to 429 with Retry-After", func(t *testing.T) {
		h, svc, _, _ := setupHandlers(t)
		svc.RequestChallengeFunc = func(ctx context.Context, subjectID string, purpose domain.Purpose, channel domain.Channel, destination string) (*domain.Challenge, error) {
			return nil, &domain.RateLimitedError{RetryAfter: 42 * time.Second}
		}

		w := performJSON(t, h.Request, http.MethodPost, "/otp/request", gin.H{
			"subject_id":  "user-1",
			"purpose":     "login",
			"channel":     "sms",
			"destination": "+551199",
		})

		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "42", w.Header().Get("Retry-After"))
	})
}

func TestChallengeHandlers_Verify(t *testing.T) {
	submitBody := gin.H{"challenge_id": "ch-1", "code": "123456"}

	t.Run("verified", func(t *testing.T) {
		h, svc, _, _ := setupHandlers(t)
		svc.SubmitCodeFunc = func(ctx context.Context, challengeID, code string, expectedVersion int64) (*domain.SubmitResult, error) {
			return &domain.SubmitResult{
				Challenge: &domain.Challenge{ID: challengeID, State: domain.StateVerified, Version: 2},
				Verified:  true,
			}, nil
		}

		w := performJSON(t, h.Verify, http.MethodPost, "/otp/verify", submitBody)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"verified":true`)
	})

	t.Run("wrong code reports remaining attempts", func(t *testing.T) {
		h, svc, _, _ := setupHandlers(t)
		svc.SubmitCodeFunc = func(ctx context.Context, challengeID, code string, expectedVersion int64) (*domain.SubmitResult, error) {
			return &domain.SubmitResult{
				Challenge:         &domain.Challenge{ID: challengeID, State: domain.StateDelivered},
				RemainingAttempts: 2,
			}, domain.ErrCodeInvalid
		}

		w := performJSON(t, h.Verify, http.MethodPost, "/otp/verify", submitBody)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), `"remaining_attempts":2`)
	})

	t.Run("error mapping", func(t *testing.T) {
		tests := []struct {
			name   string
			err    error
			status int
		}{
			{"not found", domain.ErrChallengeNotFound, http.StatusNotFound},
			{"expired", domain.ErrChallengeExpired, http.StatusGone},
			{"locked", domain.ErrChallengeLocked, http.StatusLocked},
			{"already verified", domain.ErrChallengeVerified, http.StatusConflict},
			{"version conflict", domain.ErrVersionConflict, http.StatusConflict},
			{"delivery pending", domain.ErrDeliveryPending, http.StatusConflict},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				h, svc, _, _ := setupHandlers(t)
				svc.SubmitCodeFunc = func(ctx context.Context, challengeID, code string, expectedVersion int64) (*domain.SubmitResult, error) {
					return nil, tt.err
				}

				w := performJSON(t, h.Verify, http.MethodPost, "/otp/verify", submitBody)
				assert.Equal(t, tt.status, w.Code)
			})
		}
	})
}

func TestChallengeHandlers_Delivered(t *testing.T) {
	h, svc, _, _ := setupHandlers(t)
	svc.MarkDeliveredFunc = func(ctx context.Context, challengeID string) (*domain.Challenge, error) {
		return &domain.Challenge{ID: challengeID, State: domain.StateDelivered, Version: 2}, nil
	}

	w := performJSON(t, h.Delivered, http.MethodPost, "/otp/delivered", gin.H{"challenge_id": "ch-1"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), string(domain.StateDelivered))
}

func TestChallengeHandlers_Credential(t *testing.T) {
	t.Run("one-shot pickup", func(t *testing.T) {
		h, _, vault, _ := setupHandlers(t)
		require.NoError(t, vault.Put(context.Background(), "ch-1", &domain.SignedCredential{
			Token:     "signed.jwt",
			SubjectID: "user-1",
		}))

		w := performParam(t, h.Credential, http.MethodGet, "/otp/credential/:id", "/otp/credential/ch-1")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "signed.jwt")

		w = performParam(t, h.Credential, http.MethodGet, "/otp/credential/:id", "/otp/credential/ch-1")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("missing credential", func(t *testing.T) {
		h, _, _, _ := setupHandlers(t)
		w := performParam(t, h.Credential, http.MethodGet, "/otp/credential/:id", "/otp/credential/ghost")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestChallengeHandlers_GetChallenge(t *testing.T) {
	h, svc, _, journal := setupHandlers(t)
	svc.GetChallengeFunc = func(ctx context.Context, challengeID string) (*domain.Challenge, error) {
		return &domain.Challenge{
			ID:        challengeID,
			SubjectID: "user-1",
			Purpose:   domain.PurposeLogin,
			CodeHash:  "$2a$10$secret",
			State:     domain.StateVerified,
			Version:   3,
		}, nil
	}
	journal.ListByChallengeFunc = func(ctx context.Context, challengeID string) ([]*domain.ChallengeEvent, error) {
		return []*domain.ChallengeEvent{
			{Type: domain.EventChallengeIssued, ChallengeID: challengeID, Version: 1},
			{Type: domain.EventChallengeVerified, ChallengeID: challengeID, Version: 2},
		}, nil
	}

	w := performParam(t, h.GetChallenge, http.MethodGet, "/admin/challenges/:id", "/admin/challenges/ch-1")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), string(domain.EventChallengeVerified))
	// The stored hash never leaves the service
	assert.NotContains(t, w.Body.String(), "$2a$10$secret")
}
