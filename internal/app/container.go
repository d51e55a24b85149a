package app

import (
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/you/otpsvc/domain"
	"github.com/you/otpsvc/internal/config"
	"github.com/you/otpsvc/internal/events"
	"github.com/you/otpsvc/internal/infrastructure/auth"
	"github.com/you/otpsvc/internal/infrastructure/database"
	"github.com/you/otpsvc/internal/infrastructure/notifications"
	"github.com/you/otpsvc/internal/infrastructure/repositories"
	"github.com/you/otpsvc/internal/services"
)

// Container holds all dependencies
type Container struct {
	// Config
	Config *config.Config

	// Infrastructure
	DB          *gorm.DB
	RedisClient *redis.Client
	EventBus    *events.RedisEventBus

	// Repositories
	ChallengeStore domain.ChallengeStore
	RateLimiter    domain.RateLimiter
	Journal        domain.EventJournal
	Vault          domain.CredentialVault
	Deduper        domain.Deduper

	// Services
	CodeGen      domain.CodeGenerator
	Issuer       domain.CredentialIssuer
	Notifier     domain.Notifier
	ChallengeSvc domain.ChallengeService
	Saga         *services.SagaOrchestrator
	Sweeper      *services.Sweeper
	Relay        *services.EventRelay
}

// NewContainer creates and initializes all dependencies
func NewContainer(cfg *config.Config) (*Container, error) {
	container := &Container{Config: cfg}

	if err := container.initDatabase(); err != nil {
		return nil, err
	}
	if err := container.initRedis(); err != nil {
		return nil, err
	}

	container.initRepositories()
	container.initServices()

	return container, nil
}

func (c *Container) initDatabase() error {
	db, err := database.Open(c.Config.DSN)
	if err != nil {
		return err
	}
	if err := database.AutoMigrate(db); err != nil {
		return err
	}
	c.DB = db
	return nil
}

func (c *Container) initRedis() error {
	c.RedisClient = database.NewRedis(c.Config.RedisAddr, c.Config.RedisPassword, c.Config.RedisDB).Client
	c.EventBus = events.NewRedisEventBus(c.RedisClient)
	return nil
}

func (c *Container) initRepositories() {
	c.ChallengeStore = repositories.NewChallengeStore(c.RedisClient, c.Config.Retention)
	c.Journal = repositories.NewEventJournal(c.DB)
	c.Vault = repositories.NewCredentialVault(c.RedisClient)
	c.Deduper = repositories.NewDeduper(c.RedisClient)

	overrides := make(map[domain.Purpose]time.Duration, len(c.Config.PurposePolicies))
	for purpose, policy := range c.Config.PurposePolicies {
		overrides[purpose] = policy.ReissueCooldown
	}
	c.RateLimiter = repositories.NewRateLimiter(c.RedisClient, repositories.RateLimiterConfig{
		Cooldown:          c.Config.ReissueCooldown,
		CooldownOverrides: overrides,
		LimitCount:        c.Config.RateLimitCount,
		LimitWindow:       c.Config.RateLimitWindow,
	})
}

func (c *Container) initServices() {
	c.CodeGen = services.NewCodeGenerator()
	c.Issuer = auth.NewCredentialIssuer(c.Config.JWTSecret, c.Config.JWTIssuer, c.Config.CredentialTTL)
	c.Notifier = notifications.NewTwilioNotifier(
		c.Config.TwilioSID,
		c.Config.TwilioToken,
		c.Config.TwilioFrom,
		c.Config.MessageTemplate,
	)

	purposeOverrides := make(map[domain.Purpose]services.PurposePolicy, len(c.Config.PurposePolicies))
	for purpose, policy := range c.Config.PurposePolicies {
		purposeOverrides[purpose] = services.PurposePolicy{
			CodeLength:  policy.CodeLength,
			TTL:         policy.TTL,
			MaxAttempts: policy.MaxAttempts,
		}
	}
	c.ChallengeSvc = services.NewChallengeService(
		c.ChallengeStore,
		c.RateLimiter,
		c.CodeGen,
		c.EventBus,
		c.Journal,
		services.ChallengeConfig{
			CodeLength:       c.Config.CodeLength,
			TTL:              c.Config.ChallengeTTL,
			MaxAttempts:      c.Config.MaxAttempts,
			RequireDelivery:  c.Config.RequireDelivery,
			PurposeOverrides: purposeOverrides,
		},
	)

	c.Saga = services.NewSagaOrchestrator(
		c.ChallengeSvc,
		c.Notifier,
		c.Issuer,
		c.Vault,
		c.Deduper,
		services.SagaConfig{
			DeliveryMaxRetries: c.Config.DeliveryMaxRetries,
			DeliveryBackoff:    c.Config.DeliveryBackoff,
		},
	)

	c.Sweeper = services.NewSweeper(c.RedisClient, c.ChallengeSvc, c.Config.SweepInterval)
	c.Relay = services.NewEventRelay(c.Journal, c.EventBus, c.Config.RelayInterval)
}

// Close closes all connections
func (c *Container) Close() error {
	if c.RedisClient != nil {
		c.RedisClient.Close()
	}

	if c.DB != nil {
		sqlDB, err := c.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}

	return nil
}
