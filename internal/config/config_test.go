package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AI.Provider != "openai" {
		t.Errorf("AI.Provider = %q, expected %q", cfg.AI.Provider, "openai")
	}
	if cfg.AI.Temperature != 0.1 {
		t.Errorf("AI.Temperature = %v, expected 0.1", cfg.AI.Temperature)
	}
	if cfg.AI.MaxTokens != 1500 {
		t.Errorf("AI.MaxTokens = %d, expected 1500", cfg.AI.MaxTokens)
	}
	if cfg.RateLimit.PerHour != 10 {
		t.Errorf("RateLimit.PerHour = %d, expected 10", cfg.RateLimit.PerHour)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("ai:\n  provider: stub\n  timeout: 5s\nworker:\n  stale_after: 10m\n")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AI.Provider != "stub" {
		t.Errorf("AI.Provider = %q, expected %q", cfg.AI.Provider, "stub")
	}
	if cfg.AI.Timeout != 5*time.Second {
		t.Errorf("AI.Timeout = %v, expected 5s", cfg.AI.Timeout)
	}
	if cfg.Worker.StaleAfter != 10*time.Minute {
		t.Errorf("Worker.StaleAfter = %v, expected 10m", cfg.Worker.StaleAfter)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, expected default 8080", cfg.Server.Port)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SECRET_TOKEN", "s3cret")
	t.Setenv("AI_TIMEOUT", "15s")
	t.Setenv("RATE_LIMIT_PER_HOUR", "30")
	t.Setenv("WORKER_CONCURRENCY", "0")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.SecretToken != "s3cret" {
		t.Errorf("Auth.SecretToken = %q, expected %q", cfg.Auth.SecretToken, "s3cret")
	}
	if cfg.AI.Timeout != 15*time.Second {
		t.Errorf("AI.Timeout = %v, expected 15s", cfg.AI.Timeout)
	}
	if cfg.RateLimit.PerHour != 30 {
		t.Errorf("RateLimit.PerHour = %d, expected 30", cfg.RateLimit.PerHour)
	}
	if cfg.Worker.Concurrency != 1 {
		t.Errorf("Worker.Concurrency = %d, expected floor of 1", cfg.Worker.Concurrency)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example.com" {
		t.Errorf("Server.CORSOrigins = %q, expected two trimmed origins", cfg.Server.CORSOrigins)
	}
}

func TestParseRedisURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		addr     string
		password string
		db       int
	}{
		{"host only", "redis://localhost:6379", "localhost:6379", "", 0},
		{"password and db", "redis://:pw@redis:6380/2", "redis:6380", "pw", 2},
		{"user and password", "redis://user:pw@redis:6379/0", "redis:6379", "pw", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			c.parseRedisURL(tt.url)
			if c.Redis.Addr != tt.addr {
				t.Errorf("Addr = %q, expected %q", c.Redis.Addr, tt.addr)
			}
			if c.Redis.Password != tt.password {
				t.Errorf("Password = %q, expected %q", c.Redis.Password, tt.password)
			}
			if c.Redis.DB != tt.db {
				t.Errorf("DB = %d, expected %d", c.Redis.DB, tt.db)
			}
		})
	}
}

func TestApplyFloors_StaleAfterCoversEngineTimeout(t *testing.T) {
	tests := []struct {
		name       string
		timeout    time.Duration
		staleAfter time.Duration
		expected   time.Duration
	}{
		{"shorter than timeout", 60 * time.Second, 30 * time.Second, 60*time.Second + StaleMargin},
		{"inside the margin", 60 * time.Second, 70 * time.Second, 60*time.Second + StaleMargin},
		{"already long enough", 60 * time.Second, 10 * time.Minute, 10 * time.Minute},
		{"sweep disabled", 60 * time.Second, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			c.AI.Timeout = tt.timeout
			c.Worker.StaleAfter = tt.staleAfter
			c.applyFloors()
			if c.Worker.StaleAfter != tt.expected {
				t.Errorf("Worker.StaleAfter = %v, expected %v", c.Worker.StaleAfter, tt.expected)
			}
		})
	}
}

func TestLoad_AuthAndDailyLimit(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Auth.SecretToken != "" || cfg.Auth.AllowAnonymous {
		t.Errorf("Auth = %+v, expected no secret and anonymous access off", cfg.Auth)
	}
	if cfg.RateLimit.PerDay != 240 {
		t.Errorf("RateLimit.PerDay = %d, expected 240", cfg.RateLimit.PerDay)
	}

	t.Setenv("AUTH_ALLOW_ANONYMOUS", "true")
	t.Setenv("RATE_LIMIT_PER_DAY", "0")
	cfg, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Auth.AllowAnonymous {
		t.Error("AUTH_ALLOW_ANONYMOUS=true should enable anonymous access")
	}
	if cfg.RateLimit.PerDay != 0 {
		t.Errorf("RateLimit.PerDay = %d, expected 0", cfg.RateLimit.PerDay)
	}
}
