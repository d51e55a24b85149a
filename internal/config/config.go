package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/you/otpsvc/domain"
)

type AppConfig struct {
	Port    int    `yaml:"port"`
	GinMode string `yaml:"gin_mode"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type JWTConfig struct {
	Secret        string `yaml:"secret"`
	Issuer        string `yaml:"issuer"`
	CredentialTTL string `yaml:"credential_ttl"`
}

type ChallengeFileConfig struct {
	CodeLength      int    `yaml:"code_length"`
	TTL             string `yaml:"ttl"`
	MaxAttempts     int    `yaml:"max_attempts"`
	ReissueCooldown string `yaml:"reissue_cooldown"`
	RateLimitCount  int    `yaml:"rate_limit_count"`
	RateLimitWindow string `yaml:"rate_limit_window"`
	Retention       string `yaml:"retention"`
	RequireDelivery bool   `yaml:"require_delivery"`

	Purposes map[string]PurposeFileOverride `yaml:"purposes"`
}

type PurposeFileOverride struct {
	CodeLength      int    `yaml:"code_length"`
	TTL             string `yaml:"ttl"`
	MaxAttempts     int    `yaml:"max_attempts"`
	ReissueCooldown string `yaml:"reissue_cooldown"`
}

type SagaFileConfig struct {
	DeliveryMaxRetries int    `yaml:"delivery_max_retries"`
	DeliveryBackoff    string `yaml:"delivery_backoff"`
	SweepInterval      string `yaml:"sweep_interval"`
	RelayInterval      string `yaml:"relay_interval"`
	MessageTemplate    string `yaml:"message_template"`
}

type TwilioConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	FromNumber string `yaml:"from_number"`
}

type CasbinConfig struct {
	ModelPath string `yaml:"model_path"`
}

type ConfigFile struct {
	App       AppConfig           `yaml:"app"`
	Database  DatabaseConfig      `yaml:"database"`
	Redis     RedisConfig         `yaml:"redis"`
	JWT       JWTConfig           `yaml:"jwt"`
	Challenge ChallengeFileConfig `yaml:"challenge"`
	Saga      SagaFileConfig      `yaml:"saga"`
	Twilio    TwilioConfig        `yaml:"twilio"`
	Casbin    CasbinConfig        `yaml:"casbin"`
}

// PurposePolicy is the effective per-purpose challenge policy after
// applying overrides on top of the defaults
type PurposePolicy struct {
	CodeLength      int
	TTL             time.Duration
	MaxAttempts     int
	ReissueCooldown time.Duration
}

type Config struct {
	Port    string
	GinMode string

	DSN           string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret     string
	JWTIssuer     string
	CredentialTTL time.Duration

	CodeLength      int
	ChallengeTTL    time.Duration
	MaxAttempts     int
	ReissueCooldown time.Duration
	RateLimitCount  int
	RateLimitWindow time.Duration
	Retention       time.Duration
	RequireDelivery bool
	PurposePolicies map[domain.Purpose]PurposePolicy

	DeliveryMaxRetries int
	DeliveryBackoff    time.Duration
	SweepInterval      time.Duration
	RelayInterval      time.Duration
	MessageTemplate    string

	TwilioSID   string
	TwilioToken string
	TwilioFrom  string

	CasbinModelPath string
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func Load() (*Config, error) {
	return LoadFrom(env("OTPSVC_CONFIG", "config/config.yml"))
}

func LoadFrom(path string) (*Config, error) {
	configFile, err := loadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	credTTL, err := parseDuration(configFile.JWT.CredentialTTL, 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid credential TTL: %w", err)
	}
	challengeTTL, err := parseDuration(configFile.Challenge.TTL, 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid challenge TTL: %w", err)
	}
	cooldown, err := parseDuration(configFile.Challenge.ReissueCooldown, 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid reissue cooldown: %w", err)
	}
	rateWindow, err := parseDuration(configFile.Challenge.RateLimitWindow, time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit window: %w", err)
	}
	retention, err := parseDuration(configFile.Challenge.Retention, 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid retention: %w", err)
	}
	backoff, err := parseDuration(configFile.Saga.DeliveryBackoff, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid delivery backoff: %w", err)
	}
	sweep, err := parseDuration(configFile.Saga.SweepInterval, time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep interval: %w", err)
	}
	relay, err := parseDuration(configFile.Saga.RelayInterval, 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid relay interval: %w", err)
	}

	cfg := &Config{
		Port:    fmt.Sprintf("%d", configFile.App.Port),
		GinMode: configFile.App.GinMode,

		DSN:           configFile.Database.DSN,
		RedisAddr:     configFile.Redis.Addr,
		RedisPassword: configFile.Redis.Password,
		RedisDB:       configFile.Redis.DB,

		JWTSecret:     env("OTPSVC_JWT_SECRET", configFile.JWT.Secret),
		JWTIssuer:     configFile.JWT.Issuer,
		CredentialTTL: credTTL,

		CodeLength:      defaultInt(configFile.Challenge.CodeLength, 6),
		ChallengeTTL:    challengeTTL,
		MaxAttempts:     defaultInt(configFile.Challenge.MaxAttempts, 3),
		ReissueCooldown: cooldown,
		RateLimitCount:  defaultInt(configFile.Challenge.RateLimitCount, 10),
		RateLimitWindow: rateWindow,
		Retention:       retention,
		RequireDelivery: configFile.Challenge.RequireDelivery,

		DeliveryMaxRetries: defaultInt(configFile.Saga.DeliveryMaxRetries, 3),
		DeliveryBackoff:    backoff,
		SweepInterval:      sweep,
		RelayInterval:      relay,
		MessageTemplate:    configFile.Saga.MessageTemplate,

		TwilioSID:   env("TWILIO_ACCOUNT_SID", configFile.Twilio.AccountSID),
		TwilioToken: env("TWILIO_AUTH_TOKEN", configFile.Twilio.AuthToken),
		TwilioFrom:  configFile.Twilio.FromNumber,

		CasbinModelPath: configFile.Casbin.ModelPath,
	}

	cfg.PurposePolicies = make(map[domain.Purpose]PurposePolicy)
	for name, ov := range configFile.Challenge.Purposes {
		purpose := domain.Purpose(name)
		if !purpose.Valid() {
			return nil, fmt.Errorf("unknown purpose in config: %s", name)
		}
		policy := PurposePolicy{
			CodeLength:      defaultInt(ov.CodeLength, cfg.CodeLength),
			TTL:             cfg.ChallengeTTL,
			MaxAttempts:     defaultInt(ov.MaxAttempts, cfg.MaxAttempts),
			ReissueCooldown: cfg.ReissueCooldown,
		}
		if ov.TTL != "" {
			if policy.TTL, err = time.ParseDuration(ov.TTL); err != nil {
				return nil, fmt.Errorf("invalid TTL for purpose %s: %w", name, err)
			}
		}
		if ov.ReissueCooldown != "" {
			if policy.ReissueCooldown, err = time.ParseDuration(ov.ReissueCooldown); err != nil {
				return nil, fmt.Errorf("invalid cooldown for purpose %s: %w", name, err)
			}
		}
		cfg.PurposePolicies[purpose] = policy
	}

	return cfg, nil
}

// PolicyFor returns the effective challenge policy for a purpose
func (c *Config) PolicyFor(purpose domain.Purpose) PurposePolicy {
	if p, ok := c.PurposePolicies[purpose]; ok {
		return p
	}
	return PurposePolicy{
		CodeLength:      c.CodeLength,
		TTL:             c.ChallengeTTL,
		MaxAttempts:     c.MaxAttempts,
		ReissueCooldown: c.ReissueCooldown,
	}
}

func loadConfigFile(path string) (*ConfigFile, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config file at %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(bytes, &config); err != nil {
		return nil, fmt.Errorf("could not parse config yaml: %w", err)
	}

	return &config, nil
}

func parseDuration(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}

func defaultInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
