package config

import (
	"errors"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"megatrade-web/database"
)

type Config struct {
	Server   ServerConfig
	API      APIConfig
	PayPal   PayPalConfig
	Session  SessionConfig
	Database database.DatabaseConfig
	Redis    RedisConfig
	Forms    FormsConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port           string `env:"SERVER_PORT,default=8080"`
	SignInURL      string `env:"SIGN_IN_URL,default=/sign-in"`
	DashboardURL   string `env:"DASHBOARD_URL,default=/dashboard"`
	InternalSecret string `env:"INTERNAL_API_SECRET"`
}

// APIConfig points at the upstream platform API that owns all business data.
type APIConfig struct {
	BaseURL string        `env:"PLATFORM_API_URL,default=http://localhost:4000/api"`
	Timeout time.Duration `env:"PLATFORM_API_TIMEOUT,default=15s"`
}

type PayPalConfig struct {
	ClientID     string `env:"PAYPAL_CLIENT_ID"`
	ClientSecret string `env:"PAYPAL_CLIENT_SECRET"`
	Environment  string `env:"PAYPAL_ENVIRONMENT,default=sandbox"`
}

type SessionConfig struct {
	CookieKey    string        `env:"SESSION_COOKIE_KEY"`
	CSRFKey      string        `env:"CSRF_KEY"`
	JWTSecret    string        `env:"SESSION_JWT_SECRET"`
	Issuer       string        `env:"SESSION_JWT_ISSUER,default=megatrade-web"`
	TokenTTL     time.Duration `env:"SESSION_TOKEN_TTL,default=12h"`
	SecureCookie bool          `env:"SESSION_SECURE_COOKIE,default=true"`
}

type RedisConfig struct {
	URL               string `env:"REDIS_URL,default=redis://localhost:6379/0"`
	WorkerConcurrency int    `env:"WORKER_CONCURRENCY,default=2"`
}

type FormsConfig struct {
	ImageMaxLength int `env:"FORM_IMAGE_MAX_LENGTH,default=2800000"`
}

type LogConfig struct {
	Level string `env:"LOG_LEVEL,default=info"`
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	dir, err := os.Getwd()
	if err != nil {
		log.Printf("Error getting current directory: %v", err)
	}
	log.Printf("Current directory: %s", dir)

	cfg := &Config{}
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		log.Fatalf("Failed to decode configuration: %v", err)
	}

	if cfg.Redis.WorkerConcurrency < 2 {
		cfg.Redis.WorkerConcurrency = 2
	} else if cfg.Redis.WorkerConcurrency > 8 {
		cfg.Redis.WorkerConcurrency = 8
	}

	if cfg.Session.JWTSecret == "" {
		log.Printf("Warning: SESSION_JWT_SECRET not set, session tokens use an ephemeral key")
	}
	if cfg.Server.InternalSecret == "" {
		log.Printf("Warning: INTERNAL_API_SECRET not set, internal endpoints are disabled")
	}

	log.WithFields(log.Fields{
		"port":       cfg.Server.Port,
		"api":        cfg.API.BaseURL,
		"paypal_env": cfg.PayPal.Environment,
		"redis":      cfg.Redis.URL,
		"workers":    cfg.Redis.WorkerConcurrency,
	}).Info("Config loaded")

	return cfg
}

// ConfigureLogging applies the configured level and formatter to the global logger.
func (c *Config) ConfigureLogging() {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		log.Printf("Warning: invalid LOG_LEVEL %q, using info", c.Log.Level)
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000000Z07:00",
	})
}
