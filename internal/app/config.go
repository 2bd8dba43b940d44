package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (BOUTIQUE_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (BOUTIQUE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string `usage:"HMAC pepper for admin API key hashing" flag:"api-key-pepper"`
	Gateway      GatewayConfig
	SMTP         SMTPConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// GatewayConfig holds the payment gateway credentials. Credentials are
// injected at construction; there is no module-level gateway singleton.
type GatewayConfig struct {
	KeyID     string `usage:"Payment gateway key id" flag:"gateway-key-id"`
	KeySecret string `usage:"Payment gateway key secret" flag:"gateway-key-secret"`
	BaseURL   string `default:"" usage:"Override gateway API base URL (testing)" flag:"gateway-base-url"`
}

// SMTPConfig controls the order confirmation sender. An empty Host disables
// notifications entirely.
type SMTPConfig struct {
	Host     string `default:"" usage:"SMTP server host:port; empty disables email"`
	Username string `usage:"SMTP username"`
	Password string `usage:"SMTP password"`
	From     string `default:"orders@pasheon.example" usage:"Confirmation sender address"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "BOUTIQUE",
		Files:     []string{"config.yaml", "/etc/boutique/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set BOUTIQUE_DATABASE_URL or DATABASE_URL")
	}
	if cfg.Gateway.KeyID == "" || cfg.Gateway.KeySecret == "" {
		return nil, errors.New("payment gateway credentials are required: set BOUTIQUE_GATEWAY_KEY_ID and BOUTIQUE_GATEWAY_KEY_SECRET")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (Railway, Render, etc.) that use standard names like DATABASE_URL and
// PORT to the application's BOUTIQUE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
