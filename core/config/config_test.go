package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNormalizeDefaultsToLongpoll(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "123:abc", RunMode: "Polling"}}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run mode = %q, want %q", cfg.Telegram.RunMode, RunModeLongpoll)
	}
}

func TestNormalizeRequiresToken(t *testing.T) {
	if err := Normalize(&Config{}); err == nil {
		t.Fatal("expected error for missing token")
	}
}

func TestNormalizeWebhookRequiresURL(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "t", RunMode: "webhook"}}
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for webhook without url")
	}
}

func TestNormalizeRejectsUnknownRateLimitExclusion(t *testing.T) {
	cfg := &Config{
		Telegram:  TelegramConfig{Token: "t"},
		RateLimit: RateLimitConfig{ExcludeUpdates: []string{" Callback ", "inline_query"}},
	}
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for inline_query exclusion")
	}
}

func TestLoadIntoOverlaysEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := "telegram:\n  token: from-file\n  run_mode: longpoll\nlogging:\n  level: debug\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("BOT_TOKEN", "from-env")

	var cfg Config
	if err := LoadInto(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "from-env" {
		t.Fatalf("token = %q, want env override", cfg.Telegram.Token)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("level = %q, want debug", cfg.Logging.Level)
	}
}

func TestNormalizeFillsTransportDefaults(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "t", APIURL: " http://botapi:8081/ "}}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Telegram.APIURL != "http://botapi:8081" {
		t.Fatalf("api url = %q", cfg.Telegram.APIURL)
	}
	if cfg.Telegram.LongPollTimeout() != DefaultLongPollTimeout {
		t.Fatalf("timeout = %v", cfg.Telegram.LongPollTimeout())
	}

	cfg = &Config{Telegram: TelegramConfig{Token: "t", LongPollTimeoutSeconds: 50}}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Telegram.APIURL != DefaultAPIURL || cfg.Telegram.LongPollTimeout().Seconds() != 50 {
		t.Fatalf("telegram = %+v", cfg.Telegram)
	}
}

func TestNormalizeCleansRateLimitExclusions(t *testing.T) {
	cfg := &Config{
		Telegram:  TelegramConfig{Token: "t"},
		RateLimit: RateLimitConfig{ExcludeUpdates: []string{" Callback ", "", "MESSAGE"}},
	}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	got := cfg.RateLimit.ExcludeUpdates
	if len(got) != 2 || got[0] != UpdateCallback || got[1] != UpdateMessage {
		t.Fatalf("exclusions = %q", got)
	}
}

func TestWebhookAddr(t *testing.T) {
	w := WebhookConfig{URL: "https://bot.example.org/hook", Listen: "0.0.0.0", Port: 8443}
	if got := w.Addr(); got != "0.0.0.0:8443" {
		t.Fatalf("addr = %q", got)
	}
	cfg := &Config{Telegram: TelegramConfig{Token: "t", RunMode: "webhook"}, Webhook: w}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	cfg.Webhook.Port = 70000
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for out of range port")
	}
}
