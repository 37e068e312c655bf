package config

import (
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"
)

// Config holds all runtime configuration for the textback server.
// Precedence: CLI flags > env vars > defaults.
type Config struct {
	DataDir     string
	HTTPPort    int
	PublicURL   string // externally reachable base URL used in webhook callbacks
	LogLevel    string
	LogFormat   string // log output format: "text" or "json"
	RingTimeout int    // seconds a forwarded call rings before the disposition fires

	// Message delivery gateway (Twilio-compatible REST API).
	SMSBaseURL   string
	SMSAccount   string
	SMSAuthToken string

	// Generation service.
	AnthropicAPIKey string
	AnthropicModel  string
	GenTimeout      time.Duration // hard deadline for the AI stage

	// Caller rate limiting.
	RateWindow time.Duration // fixed-window size per caller
	RateMax    int           // max triggering events per caller per window

	// Tracking store. Empty means the embedded SQLite database.
	TrackingDSN string

	// Owner notifications.
	FCMCredentialsFile string
	SMTPHost           string
	SMTPPort           string
	SMTPFrom           string
	SMTPUsername       string
	SMTPPassword       string
	SMTPTLS            string // "none", "starttls", "tls"
}

// defaults
const (
	defaultDataDir     = "./data"
	defaultHTTPPort    = 8080
	defaultLogLevel    = "info"
	defaultLogFormat   = "text"
	defaultRingTimeout = 25
	defaultGenTimeout  = 4 * time.Second
	defaultRateWindow  = 10 * time.Minute
	defaultRateMax     = 3
	defaultModel       = "claude-sonnet-4.6"
	defaultSMSBaseURL  = "https://api.twilio.com"
)

// maxRingTimeout caps the <Dial> timeout so the provider's own webhook
// deadline is never exceeded.
const maxRingTimeout = 55

// envPrefix is the prefix for all textback environment variables.
const envPrefix = "TEXTBACK_"

// Load parses configuration from CLI flags and environment variables.
// Precedence: CLI flags > env vars > defaults.
func Load() (*Config, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	cfg := &Config{}

	fs := flag.NewFlagSet("textback", flag.ContinueOnError)

	fs.StringVar(&cfg.DataDir, "data-dir", defaultDataDir, "data directory for the embedded database")
	fs.IntVar(&cfg.HTTPPort, "http-port", defaultHTTPPort, "HTTP server listen port")
	fs.StringVar(&cfg.PublicURL, "public-url", "", "externally reachable base URL for webhook callbacks (e.g. https://router.example.com)")
	fs.StringVar(&cfg.LogLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", defaultLogFormat, "log output format (text, json)")
	fs.IntVar(&cfg.RingTimeout, "ring-timeout", defaultRingTimeout, "seconds a forwarded call rings before the no-answer disposition fires")
	fs.StringVar(&cfg.SMSBaseURL, "sms-base-url", defaultSMSBaseURL, "base URL of the Twilio-compatible message delivery gateway")
	fs.StringVar(&cfg.SMSAccount, "sms-account", "", "message gateway account SID")
	fs.StringVar(&cfg.SMSAuthToken, "sms-auth-token", "", "message gateway auth token")
	fs.StringVar(&cfg.AnthropicAPIKey, "anthropic-api-key", "", "API key for the generation service (AI stage disabled if empty)")
	fs.StringVar(&cfg.AnthropicModel, "anthropic-model", defaultModel, "model used by the generation service")
	fs.DurationVar(&cfg.GenTimeout, "gen-timeout", defaultGenTimeout, "hard deadline for the AI generation stage")
	fs.DurationVar(&cfg.RateWindow, "rate-window", defaultRateWindow, "per-caller rate limit window")
	fs.IntVar(&cfg.RateMax, "rate-max", defaultRateMax, "max auto-replies per caller per window")
	fs.StringVar(&cfg.TrackingDSN, "tracking-dsn", "", "PostgreSQL DSN for the tracking store (embedded SQLite if empty)")
	fs.StringVar(&cfg.FCMCredentialsFile, "fcm-credentials", "", "Firebase service account JSON for owner push notifications")
	fs.StringVar(&cfg.SMTPHost, "smtp-host", "", "SMTP server for owner email notifications")
	fs.StringVar(&cfg.SMTPPort, "smtp-port", "587", "SMTP port")
	fs.StringVar(&cfg.SMTPFrom, "smtp-from", "", "From address for owner email notifications")
	fs.StringVar(&cfg.SMTPUsername, "smtp-username", "", "SMTP auth username")
	fs.StringVar(&cfg.SMTPPassword, "smtp-password", "", "SMTP auth password")
	fs.StringVar(&cfg.SMTPTLS, "smtp-tls", "starttls", "SMTP TLS mode (none, starttls, tls)")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	// Apply env var overrides for any flags not explicitly set on the command line.
	// CLI flags take precedence over env vars.
	applyEnvOverrides(fs)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides checks environment variables for any flag that was not
// explicitly provided on the command line. Flag names map to env vars by
// upper-casing and replacing dashes: -sms-base-url -> TEXTBACK_SMS_BASE_URL.
func applyEnvOverrides(fs *flag.FlagSet) {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	fs.VisitAll(func(f *flag.Flag) {
		if set[f.Name] {
			return
		}
		envVar := envPrefix + strings.ReplaceAll(strings.ToUpper(f.Name), "-", "_")
		val, ok := os.LookupEnv(envVar)
		if !ok || val == "" {
			return
		}
		if err := fs.Set(f.Name, val); err != nil {
			slog.Warn("ignoring invalid environment override", "var", envVar, "error", err)
		}
	})
}

// validate checks that the config values are sane.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("http-port must be between 1 and 65535, got %d", c.HTTPPort)
	}
	if c.RingTimeout < 5 || c.RingTimeout > maxRingTimeout {
		return fmt.Errorf("ring-timeout must be between 5 and %d seconds, got %d", maxRingTimeout, c.RingTimeout)
	}
	if c.RateMax < 1 {
		return fmt.Errorf("rate-max must be at least 1, got %d", c.RateMax)
	}
	if c.RateWindow < time.Second {
		return fmt.Errorf("rate-window must be at least 1s, got %s", c.RateWindow)
	}
	if c.GenTimeout < 500*time.Millisecond {
		return fmt.Errorf("gen-timeout must be at least 500ms, got %s", c.GenTimeout)
	}

	if c.PublicURL != "" {
		u, err := url.Parse(c.PublicURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("public-url must be an absolute URL, got %q", c.PublicURL)
		}
		c.PublicURL = strings.TrimRight(c.PublicURL, "/")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log-level must be one of debug, info, warn, error; got %q", c.LogLevel)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.LogFormat)] {
		return fmt.Errorf("log-format must be one of text, json; got %q", c.LogFormat)
	}
	c.LogFormat = strings.ToLower(c.LogFormat)

	validTLS := map[string]bool{"none": true, "starttls": true, "tls": true}
	if !validTLS[strings.ToLower(c.SMTPTLS)] {
		return fmt.Errorf("smtp-tls must be one of none, starttls, tls; got %q", c.SMTPTLS)
	}
	c.SMTPTLS = strings.ToLower(c.SMTPTLS)

	// Gateway credentials must be set together.
	if (c.SMSAccount == "") != (c.SMSAuthToken == "") {
		return fmt.Errorf("sms-account and sms-auth-token must both be provided or both be omitted")
	}

	return nil
}

// StatusCallbackURL returns the absolute disposition callback URL the voice
// webhook embeds in its <Dial action>. Falls back to a relative path when no
// public URL is configured; providers resolve relative action URLs against
// the webhook they just called.
func (c *Config) StatusCallbackURL() string {
	if c.PublicURL == "" {
		return "/webhooks/voice/status"
	}
	return c.PublicURL + "/webhooks/voice/status"
}

// SlogHandler returns a slog.Handler configured with the appropriate format
// (text or json) and log level.
func (c *Config) SlogHandler(w *os.File) slog.Handler {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.LogFormat == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SlogLevel returns the slog.Level corresponding to the configured log level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
