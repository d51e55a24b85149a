package httpx

import (
	"github.com/gin-gonic/gin"

	"github.com/you/otpsvc/internal/http/handlers"
	"github.com/you/otpsvc/internal/http/middleware"
)

func BuildRouter(ch *handlers.ChallengeHandlers, ph *handlers.PolicyHandlers, jwtmw *middleware.AuthMW, cb *middleware.CasbinMW) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	// Inbound command channel for the gateway
	otp := r.Group("/otp")
	otp.POST("/request", ch.Request)
	otp.POST("/verify", ch.Verify)
	otp.POST("/delivered", ch.Delivered)
	otp.GET("/credential/:id", ch.Credential)

	adm := r.Group("/admin").Use(jwtmw.WithJWT(), cb.Enforce())
	adm.GET("/challenges/:id", ch.GetChallenge)
	adm.POST("/challenges/:id/expire", ch.Expire)
	adm.GET("/policies", ph.List)
	adm.POST("/policies", ph.Add)
	adm.DELETE("/policies", ph.Remove)

	return r
}
