package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Common errors
var (
	ErrMissingDatabaseURL = errors.New("DATABASE_URL environment variable is required")
	ErrUnknownTimezone    = errors.New("EVENT_TIMEZONE is not a known IANA time zone")
	ErrMissingAlertSecret = errors.New("ALERT_WEBHOOK_SECRET is required when ALERT_WEBHOOK_URL is set")
)

// AppConfig holds the server configuration. Every field can be set from the
// environment; .env.local is loaded first when present.
type AppConfig struct {
	Port           string        `env:"PORT" env-default:"5050"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	AllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:5173,http://localhost:8080"`
	Timezone       string        `env:"EVENT_TIMEZONE" env-default:"UTC"`
	SessionTTL     time.Duration `env:"SESSION_TTL" env-default:"6h"`
	CookieSecure   bool          `env:"COOKIE_SECURE" env-default:"false"`

	Log        LogConfig
	Audio      AudioConfig
	Classifier ClassifierConfig
	Realtime   RealtimeConfig
	Feed       FeedConfig
	Alerts     AlertConfig
}

type LogConfig struct {
	Level string `env:"LOG_LEVEL" env-default:"info"`
	Dev   bool   `env:"LOG_DEV" env-default:"false"`
}

// AudioConfig controls where uploaded report audio is kept and how it is
// addressed publicly.
type AudioConfig struct {
	StorageDir    string `env:"AUDIO_STORAGE_DIR" env-default:"data/audio"`
	PublicBaseURL string `env:"AUDIO_PUBLIC_BASE_URL" env-default:"/audio/files"`
	MaxBytes      int64  `env:"AUDIO_MAX_BYTES" env-default:"10485760"`
}

// ClassifierConfig configures the /analyze proxy.
type ClassifierConfig struct {
	GeminiAPIKey  string        `env:"GEMINI_API_KEY"`
	Model         string        `env:"GEMINI_MODEL" env-default:"gemini-2.5-flash"`
	Timeout       time.Duration `env:"ANALYZE_TIMEOUT" env-default:"8s"`
	SharedKey     string        `env:"ANALYZE_API_KEY"`
	RatePerMinute int           `env:"ANALYZE_RATE_PER_MINUTE" env-default:"30"`
}

type RealtimeConfig struct {
	PGListen bool `env:"REALTIME_PG_LISTEN" env-default:"true"`
}

// FeedConfig bounds the dashboard's in-memory report list.
type FeedConfig struct {
	Window        time.Duration `env:"FEED_WINDOW" env-default:"24h"`
	PruneSchedule string        `env:"FEED_PRUNE_SCHEDULE" env-default:"@every 1m"`
}

// AlertConfig enables signed webhook alerts for high-urgency reports. An
// empty URL disables them.
type AlertConfig struct {
	WebhookURL string        `env:"ALERT_WEBHOOK_URL"`
	Secret     string        `env:"ALERT_WEBHOOK_SECRET"`
	Timeout    time.Duration `env:"ALERT_WEBHOOK_TIMEOUT" env-default:"5s"`
}

// Load reads .env.local (if any) and the process environment.
func Load() (*AppConfig, error) {
	_ = godotenv.Load(".env.local")

	var cfg AppConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *AppConfig) Validate() error {
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownTimezone, c.Timezone)
	}
	if c.Alerts.WebhookURL != "" && c.Alerts.Secret == "" {
		return ErrMissingAlertSecret
	}
	return nil
}

// Location returns the event's time zone, used for calendar-day analytics.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
