package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/you/otpsvc/domain"
	"github.com/you/otpsvc/internal/mocks"
)

type authContext struct {
	subjectID string
	role      string
}

func performWithAuth(t *testing.T, mw gin.HandlerFunc, header string) (*httptest.ResponseRecorder, *authContext) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	captured := &authContext{}
	router := gin.New()
	router.GET("/protected", mw, func(c *gin.Context) {
		captured.subjectID = c.GetString("subject_id")
		captured.role = c.GetString("user_role")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	router.ServeHTTP(w, req)
	return w, captured
}

func TestAuthMW_WithJWT(t *testing.T) {
	t.Run("valid token passes and sets identity", func(t *testing.T) {
		issuer := mocks.NewMockCredentialIssuer()
		issuer.ValidateFunc = func(token string) (*domain.CredentialClaims, error) {
			assert.Equal(t, "good-token", token)
			return &domain.CredentialClaims{SubjectID: "user-1", Role: "admin"}, nil
		}
		mw := NewAuthMW(issuer)

		w, c := performWithAuth(t, mw.WithJWT(), "Bearer good-token")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "user-1", c.subjectID)
		assert.Equal(t, "admin", c.role)
	})

	t.Run("missing header", func(t *testing.T) {
		mw := NewAuthMW(mocks.NewMockCredentialIssuer())
		w, _ := performWithAuth(t, mw.WithJWT(), "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		mw := NewAuthMW(mocks.NewMockCredentialIssuer())
		w, _ := performWithAuth(t, mw.WithJWT(), "Token abc")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		issuer := mocks.NewMockCredentialIssuer()
		issuer.ValidateFunc = func(token string) (*domain.CredentialClaims, error) {
			return nil, domain.ErrCredentialExpired
		}
		mw := NewAuthMW(issuer)

		w, _ := performWithAuth(t, mw.WithJWT(), "Bearer stale")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Token expired")
	})

	t.Run("invalid token", func(t *testing.T) {
		issuer := mocks.NewMockCredentialIssuer()
		issuer.ValidateFunc = func(token string) (*domain.CredentialClaims, error) {
			return nil, domain.ErrCredentialInvalid
		}
		mw := NewAuthMW(issuer)

		w, _ := performWithAuth(t, mw.WithJWT(), "Bearer forged")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "Invalid token")
	})
}
