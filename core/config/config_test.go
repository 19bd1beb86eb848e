package config

import (
	"strings"
	"testing"
)

func baseConfig() *Config {
	return &Config{Telegram: TelegramConfig{Token: "123:abc"}}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := baseConfig()
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run_mode = %q, want %q", cfg.Telegram.RunMode, RunModeLongpoll)
	}
}

func TestNormalizeErrors(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing token",
			mutate:  func(c *Config) { c.Telegram.Token = "" },
			wantErr: "telegram token",
		},
		{
			name:    "unknown run mode",
			mutate:  func(c *Config) { c.Telegram.RunMode = "carrier-pigeon" },
			wantErr: "invalid telegram.run_mode",
		},
		{
			name:    "webhook without url",
			mutate:  func(c *Config) { c.Telegram.RunMode = RunModeWebhook },
			wantErr: "webhook.url is required",
		},
		{
			name: "webhook without port",
			mutate: func(c *Config) {
				c.Telegram.RunMode = RunModeWebhook
				c.Webhook.URL = "https://bot.example.com/hook"
				c.Webhook.Listen = "0.0.0.0"
			},
			wantErr: "webhook.port",
		},
		{
			name:    "negative longpoll timeout",
			mutate:  func(c *Config) { c.Telegram.LongPollTimeoutSeconds = -1 },
			wantErr: "longpoll_timeout_seconds",
		},
		{
			name:    "bad exclude update",
			mutate:  func(c *Config) { c.RateLimit.ExcludeUpdates = []string{"edited_message"} },
			wantErr: "exclude_updates",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := baseConfig()
			tc.mutate(cfg)
			err := Normalize(cfg)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestNormalizeAliasesAndCasing(t *testing.T) {
	cfg := baseConfig()
	cfg.Telegram.RunMode = " Polling "
	cfg.RateLimit.ExcludeUpdates = []string{" Callback ", "MESSAGE"}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run_mode = %q, want %q", cfg.Telegram.RunMode, RunModeLongpoll)
	}
	if cfg.RateLimit.ExcludeUpdates[0] != UpdateCallback || cfg.RateLimit.ExcludeUpdates[1] != UpdateMessage {
		t.Fatalf("exclude_updates not normalized: %v", cfg.RateLimit.ExcludeUpdates)
	}
}

func TestNormalizeWebhookComplete(t *testing.T) {
	cfg := baseConfig()
	cfg.Telegram.RunMode = "Webhook"
	cfg.Webhook.URL = "https://bot.example.com/hook"
	cfg.Webhook.Listen = "0.0.0.0"
	cfg.Webhook.Port = 8443
	if err := Normalize(cfg); err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeWebhook {
		t.Fatalf("run_mode = %q, want %q", cfg.Telegram.RunMode, RunModeWebhook)
	}
}
