package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/you/otpsvc/internal/config"
	httpx "github.com/you/otpsvc/internal/http"
	"github.com/you/otpsvc/internal/http/handlers"
	"github.com/you/otpsvc/internal/http/middleware"
	"github.com/you/otpsvc/internal/infrastructure/auth"
	"github.com/you/otpsvc/internal/services"
)

func Run(cfg *config.Config) error {
	container, err := NewContainer(cfg)
	if err != nil {
		return err
	}
	defer container.Close()

	if err := container.RedisClient.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("redis unreachable: %w", err)
	}

	cas, err := auth.NewCasbinService(container.DB, cfg.CasbinModelPath)
	if err != nil {
		return err
	}

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	// Handlers and middleware
	chH := handlers.NewChallengeHandlers(container.ChallengeSvc, container.Vault, container.Journal)
	polH := &handlers.PolicyHandlers{Policies: services.NewPolicyService(cas.E)}
	jwtMW := middleware.NewAuthMW(container.Issuer)
	casbinMW := middleware.NewCasbinMW(cas.E)

	r := httpx.BuildRouter(chH, polH, jwtMW, casbinMW)

	policies, _ := cas.E.GetPolicy()
	if len(policies) == 0 {
		cas.E.AddPolicy("role_admin", "/admin/*", "(GET|POST|PUT|DELETE)")
		_ = cas.E.SavePolicy()
		log.Println("casbin: seeded default policies")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer, err := os.Hostname()
	if err != nil || consumer == "" {
		consumer = "otpsvc"
	}
	go func() {
		if err := container.Saga.Run(ctx, container.EventBus, consumer); err != nil && ctx.Err() == nil {
			log.Printf("saga stopped: %v", err)
		}
	}()
	go container.Sweeper.Run(ctx)
	go container.Relay.Run(ctx)

	addr := ":" + cfg.Port
	log.Printf("listening on %s", addr)
	return http.ListenAndServe(addr, r)
}
