package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/you/otpsvc/domain"
)

// AuthMW wraps the credential issuer for middleware
type AuthMW struct {
	issuer domain.CredentialIssuer
}

// NewAuthMW creates new auth middleware wrapper
func NewAuthMW(issuer domain.CredentialIssuer) *AuthMW {
	return &AuthMW{issuer: issuer}
}

// WithJWT returns the JWT middleware function
func (mw *AuthMW) WithJWT() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		tokenParts := strings.SplitN(authHeader, " ", 2)
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := mw.issuer.Validate(tokenParts[1])
		if err != nil {
			switch err {
			case domain.ErrCredentialExpired:
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Token expired"})
			case domain.ErrCredentialInvalid, domain.ErrCredentialMalformed:
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			default:
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Token validation failed"})
			}
			c.Abort()
			return
		}

		c.Set("subject_id", claims.SubjectID)
		c.Set("user_role", claims.Role)

		c.Next()
	})
}
