package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Mode string

const (
	ModeLocal Mode = "local"
	ModeProd  Mode = "prod"
)

type Config struct {
	Mode Mode

	Port string

	// Storage: "memory", "sqlite" or "firestore"
	StorageBackend string
	SQLitePath     string
	GCPProjectID   string
	GCPLocation    string

	// Agents
	UseMockLLM       bool
	OpenAIAPIKey     string
	AssistantModel   string
	ContentBackend   string // "openai" o "vertex"
	ContentModel     string
	RunTimeout       time.Duration
	PollMaxInterval  time.Duration
	MutationTimeout  time.Duration
	SessionCacheSize int

	// Reminders
	Timezone        *time.Location
	DispatchTimeout time.Duration
	MailBackend     string // "outbox" o "smtp"
	MailFrom        string
	SMTPHost        string
	SMTPPort        int
	SMTPUsername    string
	SMTPPassword    string

	// Deep links
	JWTSecret   string
	LinkBaseURL string
	LinkTTL     time.Duration

	CORSOrigins []string
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if v == "1" || v == "true" || v == "TRUE" {
		return true
	}
	return false
}

func getIntEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getDurationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// Load reads all env vars and builds the config
func Load() (*Config, error) {
	var mode Mode
	switch getEnv("AMIKA_MODE", "local") {
	case "prod":
		mode = ModeProd
	default:
		mode = ModeLocal
	}

	cfg := &Config{
		Mode: mode,

		Port: getEnv("AMIKA_PORT", getEnv("PORT", "8080")),

		StorageBackend: getEnv("AMIKA_STORAGE_BACKEND", "memory"),
		SQLitePath:     getEnv("AMIKA_SQLITE_PATH", "amika.db"),
		GCPProjectID:   getEnv("AMIKA_GCP_PROJECT", ""),
		GCPLocation:    getEnv("AMIKA_GCP_LOCATION", "us-central1"),

		UseMockLLM:     getBoolEnv("AMIKA_USE_MOCK_LLM", mode == ModeLocal),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		AssistantModel: getEnv("AMIKA_ASSISTANT_MODEL", "gpt-4o"),
		ContentBackend: getEnv("AMIKA_CONTENT_BACKEND", "openai"),
		ContentModel:   getEnv("AMIKA_CONTENT_MODEL", ""),

		MailBackend:  getEnv("AMIKA_MAIL_BACKEND", "outbox"),
		MailFrom:     getEnv("AMIKA_MAIL_FROM", "amika@localhost"),
		SMTPHost:     getEnv("AMIKA_SMTP_HOST", "smtp.gmail.com"),
		SMTPUsername: getEnv("AMIKA_SMTP_USERNAME", ""),
		SMTPPassword: getEnv("AMIKA_SMTP_PASSWORD", ""),

		JWTSecret:   getEnv("AMIKA_JWT_SECRET", ""),
		LinkBaseURL: strings.TrimRight(getEnv("AMIKA_LINK_BASE_URL", "http://localhost:5173"), "/"),
	}

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	var err error
	cfg.RunTimeout, err = getDurationEnv("AMIKA_RUN_TIMEOUT", 2*time.Minute)
	collect(err)
	cfg.PollMaxInterval, err = getDurationEnv("AMIKA_POLL_MAX_INTERVAL", time.Second)
	collect(err)
	cfg.MutationTimeout, err = getDurationEnv("AMIKA_MUTATION_TIMEOUT", 3*time.Minute)
	collect(err)
	cfg.DispatchTimeout, err = getDurationEnv("AMIKA_DISPATCH_TIMEOUT", time.Minute)
	collect(err)
	cfg.LinkTTL, err = getDurationEnv("AMIKA_LINK_TTL", 5*time.Hour)
	collect(err)
	cfg.SessionCacheSize, err = getIntEnv("AMIKA_SESSION_CACHE_SIZE", 1024)
	collect(err)
	cfg.SMTPPort, err = getIntEnv("AMIKA_SMTP_PORT", 587)
	collect(err)

	cfg.Timezone, err = time.LoadLocation(getEnv("AMIKA_TIMEZONE", "Local"))
	collect(err)

	for _, origin := range strings.Split(getEnv("AMIKA_CORS_ORIGINS", "*"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
		}
	}

	collect(cfg.validate())
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	switch c.StorageBackend {
	case "memory", "sqlite":
	case "firestore":
		if c.GCPProjectID == "" {
			errs = append(errs, errors.New("AMIKA_GCP_PROJECT is required for the firestore storage backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AMIKA_STORAGE_BACKEND %q", c.StorageBackend))
	}

	if !c.UseMockLLM {
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY must be set unless AMIKA_USE_MOCK_LLM is on"))
		}
		switch c.ContentBackend {
		case "openai":
		case "vertex":
			if c.GCPProjectID == "" {
				errs = append(errs, errors.New("AMIKA_GCP_PROJECT is required for the vertex content backend"))
			}
		default:
			errs = append(errs, fmt.Errorf("unknown AMIKA_CONTENT_BACKEND %q", c.ContentBackend))
		}
	}

	switch c.MailBackend {
	case "outbox":
	case "smtp":
		if c.SMTPUsername == "" || c.SMTPPassword == "" {
			errs = append(errs, errors.New("AMIKA_SMTP_USERNAME and AMIKA_SMTP_PASSWORD are required for smtp mail"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AMIKA_MAIL_BACKEND %q", c.MailBackend))
	}

	// Minimal validation in prod mode
	if c.Mode == ModeProd && c.JWTSecret == "" {
		errs = append(errs, errors.New("AMIKA_JWT_SECRET must be set in prod mode"))
	}
	if c.JWTSecret == "" {
		c.JWTSecret = "amika-local-secret"
	}
	return errors.Join(errs...)
}
