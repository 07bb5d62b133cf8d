package config

import (
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	raw := []byte(`
bot:
  token: "abc"
  chat_id: 42
listing:
  url: "https://example.com/jobs"
  timeout: 10s
`)
	cfg, err := parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Bot.Token != "abc" || cfg.Bot.ChatID != 42 {
		t.Fatalf("unexpected bot config %+v", cfg.Bot)
	}
	if cfg.Listing.Timeout != 10*time.Second {
		t.Fatalf("timeout = %s", cfg.Listing.Timeout)
	}
	if cfg.Sqlite.Datasource != defaultDatasource {
		t.Fatalf("datasource = %q", cfg.Sqlite.Datasource)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("log level = %q", cfg.Log.Level)
	}
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("BOT_TOKEN", "from-env")
	t.Setenv("LISTING_URL", "https://env.example.com/jobs")
	cfg, err := parse([]byte("bot:\n  chat_id: 1\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Bot.Token != "from-env" {
		t.Fatalf("token = %q", cfg.Bot.Token)
	}
	if cfg.Listing.URL != "https://env.example.com/jobs" {
		t.Fatalf("url = %q", cfg.Listing.URL)
	}
}

func TestParse_MissingToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	if _, err := parse([]byte("listing:\n  url: x\n")); err == nil {
		t.Fatal("expected error for missing token")
	}
}

func TestParse_MissingURL(t *testing.T) {
	t.Setenv("LISTING_URL", "")
	if _, err := parse([]byte("bot:\n  token: abc\n")); err == nil {
		t.Fatal("expected error for missing listing url")
	}
}

func TestParse_MissingChatID(t *testing.T) {
	if _, err := parse([]byte("bot:\n  token: abc\nlisting:\n  url: x\n")); err == nil {
		t.Fatal("expected error for missing chat id")
	}
}

func TestParse_NegativeTimeout(t *testing.T) {
	raw := []byte("bot:\n  token: abc\n  chat_id: 1\nlisting:\n  url: x\n  timeout: -1s\n")
	if _, err := parse(raw); err == nil {
		t.Fatal("expected error for negative timeout")
	}
}
