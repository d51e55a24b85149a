package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/you/otpsvc/domain"
)

// ChallengeHandlers is the inbound command channel for the OTP aggregate
type ChallengeHandlers struct {
	challengeSvc domain.ChallengeService
	vault        domain.CredentialVault
	journal      domain.EventJournal
}

// NewChallengeHandlers creates new challenge handlers
func NewChallengeHandlers(challengeSvc domain.ChallengeService, vault domain.CredentialVault, journal domain.EventJournal) *ChallengeHandlers {
	return &ChallengeHandlers{
		challengeSvc: challengeSvc,
		vault:        vault,
		journal:      journal,
	}
}

// RequestChallengeRequest represents a challenge issuance request
type RequestChallengeRequest struct {
	SubjectID   string `json:"subject_id" binding:"required"`
	Purpose     string `json:"purpose" binding:"required"`
	Channel     string `json:"channel" binding:"required"`
	Destination string `json:"destination" binding:"required"`
}

// SubmitCodeRequest represents a code verification request
type SubmitCodeRequest struct {
	ChallengeID     string `json:"challenge_id" binding:"required"`
	Code            string `json:"code" binding:"required"`
	ExpectedVersion int64  `json:"expected_version,omitempty"`
}

// MarkDeliveredRequest represents a delivery acknowledgment callback
type MarkDeliveredRequest struct {
	ChallengeID string `json:"challenge_id" binding:"required"`
}

// Request handles challenge issuance
func (h *ChallengeHandlers) Request(c *gin.Context) {
	var req RequestChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ch, err := h.challengeSvc.RequestChallenge(
		c.Request.Context(),
		req.SubjectID,
		domain.Purpose(req.Purpose),
		domain.Channel(req.Channel),
		req.Destination,
	)
	if err != nil {
		var rl *domain.RateLimitedError
		if errors.As(err, &rl) {
			c.Header("Retry-After", fmt.Sprintf("%d", int(rl.RetryAfter.Seconds())))
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many challenge requests"})
			return
		}
		if errors.Is(err, domain.ErrRateLimited) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many challenge requests"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"data": gin.H{
			"challenge_id": ch.ID,
			"state":        ch.State,
			"expires_at":   ch.ExpiresAt,
			"version":      ch.Version,
		},
	})
}

// Verify handles code submission
func (h *ChallengeHandlers) Verify(c *gin.Context) {
	var req SubmitCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.challengeSvc.SubmitCode(c.Request.Context(), req.ChallengeID, req.Code, req.ExpectedVersion)
	if err != nil {
		if errors.Is(err, domain.ErrCodeInvalid) {
			body := gin.H{"error": "Invalid verification code"}
			if result != nil {
				body["remaining_attempts"] = result.RemainingAttempts
			}
			c.JSON(http.StatusUnauthorized, body)
			return
		}
		h.renderChallengeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"challenge_id": result.Challenge.ID,
			"verified":     result.Verified,
			"state":        result.Challenge.State,
			"version":      result.Challenge.Version,
		},
	})
}

// Delivered handles the delivery acknowledgment callback
func (h *ChallengeHandlers) Delivered(c *gin.Context) {
	var req MarkDeliveredRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ch, err := h.challengeSvc.MarkDelivered(c.Request.Context(), req.ChallengeID)
	if err != nil {
		h.renderChallengeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"challenge_id": ch.ID,
			"state":        ch.State,
			"version":      ch.Version,
		},
	})
}

// Credential hands out the parked session credential, exactly once
func (h *ChallengeHandlers) Credential(c *gin.Context) {
	challengeID := c.Param("id")

	cred, err := h.vault.Take(c.Request.Context(), challengeID)
	if err != nil {
		if errors.Is(err, domain.ErrCredentialNotFound) || errors.Is(err, domain.ErrCredentialExpired) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Credential not available"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch credential"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": cred})
}

// GetChallenge returns a challenge and its event history (admin only)
func (h *ChallengeHandlers) GetChallenge(c *gin.Context) {
	challengeID := c.Param("id")

	ch, err := h.challengeSvc.GetChallenge(c.Request.Context(), challengeID)
	if err != nil {
		h.renderChallengeError(c, err)
		return
	}

	events, err := h.journal.ListByChallenge(c.Request.Context(), challengeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read event history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"challenge_id":  ch.ID,
			"subject_id":    ch.SubjectID,
			"purpose":       ch.Purpose,
			"channel":       ch.Channel,
			"state":         ch.State,
			"attempt_count": ch.AttemptCount,
			"max_attempts":  ch.MaxAttempts,
			"issued_at":     ch.IssuedAt,
			"expires_at":    ch.ExpiresAt,
			"version":       ch.Version,
			"events":        events,
		},
	})
}

// Expire forces a lazy expiry check on a challenge (admin only)
func (h *ChallengeHandlers) Expire(c *gin.Context) {
	challengeID := c.Param("id")

	ch, err := h.challengeSvc.ExpireChallenge(c.Request.Context(), challengeID)
	if err != nil {
		h.renderChallengeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"challenge_id": ch.ID,
			"state":        ch.State,
			"version":      ch.Version,
		},
	})
}

func (h *ChallengeHandlers) renderChallengeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrChallengeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Challenge not found"})
	case errors.Is(err, domain.ErrChallengeExpired):
		c.JSON(http.StatusGone, gin.H{"error": "Challenge has expired"})
	case errors.Is(err, domain.ErrChallengeLocked):
		c.JSON(http.StatusLocked, gin.H{"error": "Challenge is locked"})
	case errors.Is(err, domain.ErrChallengeVerified):
		c.JSON(http.StatusConflict, gin.H{"error": "Challenge already verified"})
	case errors.Is(err, domain.ErrChallengeFailed):
		c.JSON(http.StatusConflict, gin.H{"error": "Challenge has failed"})
	case errors.Is(err, domain.ErrVersionConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Concurrent update, retry with current version"})
	case errors.Is(err, domain.ErrDeliveryPending):
		c.JSON(http.StatusConflict, gin.H{"error": "Delivery not yet confirmed"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Command failed"})
	}
}
