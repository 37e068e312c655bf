package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := load(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DataDir != defaultDataDir {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir, defaultDataDir)
	}
	if cfg.HTTPPort != defaultHTTPPort {
		t.Errorf("HTTPPort = %d, want %d", cfg.HTTPPort, defaultHTTPPort)
	}
	if cfg.RingTimeout != defaultRingTimeout {
		t.Errorf("RingTimeout = %d, want %d", cfg.RingTimeout, defaultRingTimeout)
	}
	if cfg.RateWindow != defaultRateWindow {
		t.Errorf("RateWindow = %s, want %s", cfg.RateWindow, defaultRateWindow)
	}
	if cfg.RateMax != defaultRateMax {
		t.Errorf("RateMax = %d, want %d", cfg.RateMax, defaultRateMax)
	}
	if cfg.AnthropicModel != defaultModel {
		t.Errorf("AnthropicModel = %q, want %q", cfg.AnthropicModel, defaultModel)
	}
	if cfg.SMSBaseURL != defaultSMSBaseURL {
		t.Errorf("SMSBaseURL = %q, want %q", cfg.SMSBaseURL, defaultSMSBaseURL)
	}
}

func TestEnvVarOverride(t *testing.T) {
	t.Setenv("TEXTBACK_HTTP_PORT", "9090")
	t.Setenv("TEXTBACK_DATA_DIR", "/tmp/textback-test")
	t.Setenv("TEXTBACK_RATE_WINDOW", "5m")

	cfg, err := load(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPPort != 9090 {
		t.Errorf("HTTPPort = %d, want 9090", cfg.HTTPPort)
	}
	if cfg.DataDir != "/tmp/textback-test" {
		t.Errorf("DataDir = %q, want /tmp/textback-test", cfg.DataDir)
	}
	if cfg.RateWindow != 5*time.Minute {
		t.Errorf("RateWindow = %s, want 5m", cfg.RateWindow)
	}
}

func TestCLIFlagsPrecedence(t *testing.T) {
	// CLI flags should override env vars.
	t.Setenv("TEXTBACK_HTTP_PORT", "9090")
	t.Setenv("TEXTBACK_LOG_LEVEL", "debug")

	cfg, err := load([]string{"--http-port", "3000", "--log-level", "warn"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTPPort != 3000 {
		t.Errorf("HTTPPort = %d, want 3000", cfg.HTTPPort)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad port", []string{"--http-port", "70000"}},
		{"ring timeout too long", []string{"--ring-timeout", "90"}},
		{"ring timeout too short", []string{"--ring-timeout", "1"}},
		{"bad log level", []string{"--log-level", "verbose"}},
		{"bad log format", []string{"--log-format", "xml"}},
		{"relative public url", []string{"--public-url", "router.example.com"}},
		{"zero rate max", []string{"--rate-max", "0"}},
		{"lone sms account", []string{"--sms-account", "AC123"}},
		{"bad smtp tls", []string{"--smtp-tls", "ssl3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := load(tt.args); err == nil {
				t.Errorf("load(%v) succeeded, want error", tt.args)
			}
		})
	}
}

func TestStatusCallbackURL(t *testing.T) {
	cfg, err := load([]string{"--public-url", "https://router.example.com/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cfg.StatusCallbackURL(); got != "https://router.example.com/webhooks/voice/status" {
		t.Errorf("StatusCallbackURL() = %q", got)
	}

	cfg, err = load(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := cfg.StatusCallbackURL(); got != "/webhooks/voice/status" {
		t.Errorf("StatusCallbackURL() = %q, want relative path", got)
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}

	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.level}
		if got := cfg.SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}
