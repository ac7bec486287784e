package config

import "testing"

func TestLoad_requires_cdn_endpoint(t *testing.T) {
	t.Setenv("CDN_ENDPOINT", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error when CDN_ENDPOINT is unset")
	}
}

func TestLoad_defaults(t *testing.T) {
	t.Setenv("CDN_ENDPOINT", "cdn.example.com")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("port: got %s", cfg.Server.Port)
	}
	if cfg.Merge.FetchTimeoutSec != 30 {
		t.Errorf("fetch timeout: got %d", cfg.Merge.FetchTimeoutSec)
	}
	if cfg.Merge.Environment != "production" {
		t.Errorf("environment: got %s", cfg.Merge.Environment)
	}
}

func TestDSN(t *testing.T) {
	t.Run("from_components", func(t *testing.T) {
		c := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "vodstitch", SSLMode: "disable"}
		want := "postgres://u:p@db:5432/vodstitch?sslmode=disable"
		if got := c.DSN(); got != want {
			t.Errorf("DSN: got %s, want %s", got, want)
		}
	})
	t.Run("url_wins", func(t *testing.T) {
		c := DatabaseConfig{URL: "postgres://localhost/x", Host: "ignored"}
		if got := c.DSN(); got != "postgres://localhost/x" {
			t.Errorf("DSN: got %s", got)
		}
	})
}
