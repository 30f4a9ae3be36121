package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	AI        AIConfig        `yaml:"ai"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Redis     RedisConfig     `yaml:"redis"`
	Worker    WorkerConfig    `yaml:"worker"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release, test
	// CORSOrigins lists the browser origins allowed to call the API. Empty or "*" allows all.
	CORSOrigins []string `yaml:"cors_origins"`
}

type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, mysql, postgres
	DSN    string `yaml:"dsn"`
}

// AIConfig selects and configures the review engine provider.
type AIConfig struct {
	Provider    string        `yaml:"provider"` // openai, azure, anthropic, ollama, gemini, stub
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

type AuthConfig struct {
	// SecretToken is compared against the X-Token header. With no secret every protected
	// request is rejected unless AllowAnonymous is set.
	SecretToken string `yaml:"secret_token"`
	// AllowAnonymous opens the protected routes when SecretToken is empty. Local development only.
	AllowAnonymous bool `yaml:"allow_anonymous"`
}

// RateLimitConfig holds per-client-IP limits. PerDay covers every /api route, PerHour only
// review submissions. A non-positive value disables that bucket.
type RateLimitConfig struct {
	PerDay  int `yaml:"per_day"`
	PerHour int `yaml:"per_hour"`
	Burst   int `yaml:"burst"`
}

// RedisConfig for optional async task queue
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type WorkerConfig struct {
	Concurrency int `yaml:"concurrency"`
	QueueSize   int `yaml:"queue_size"`
	// StaleAfter enables the stale-review sweep when positive. It is raised to at least
	// ai.timeout plus StaleMargin so the sweep never fails a review whose engine call is live.
	StaleAfter time.Duration `yaml:"stale_after"`
}

// StaleMargin is the slack between the engine timeout and the stale-review cutoff. It covers
// the store writes on either side of the engine call.
const StaleMargin = 30 * time.Second

func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, err
		}
		// Unmarshal over the defaults so a partial file keeps the remaining values.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	cfg.overrideFromEnv()
	cfg.applyFloors()
	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "8080",
			Mode: "debug",
		},
		Log: LogConfig{
			Level: "info",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "codecritic.db",
		},
		AI: AIConfig{
			// Empty base_url and model select the provider's defaults.
			Provider:    "openai",
			Temperature: 0.1,
			MaxTokens:   1500,
			Timeout:     60 * time.Second,
		},
		RateLimit: RateLimitConfig{
			PerDay:  240,
			PerHour: 10,
			Burst:   10,
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
		},
		Worker: WorkerConfig{
			Concurrency: 4,
			QueueSize:   100,
		},
	}
}

func (c *Config) overrideFromEnv() {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		c.Server.Port = port
	}
	if mode := os.Getenv("SERVER_MODE"); mode != "" {
		c.Server.Mode = mode
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.Server.CORSOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.Server.CORSOrigins = append(c.Server.CORSOrigins, o)
			}
		}
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.Level = level
	}
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		c.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}
	if provider := os.Getenv("AI_PROVIDER"); provider != "" {
		c.AI.Provider = provider
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		c.AI.BaseURL = baseURL
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		c.AI.APIKey = apiKey
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		c.AI.Model = model
	}
	if timeout := os.Getenv("AI_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			c.AI.Timeout = d
		}
	}
	if token := os.Getenv("SECRET_TOKEN"); token != "" {
		c.Auth.SecretToken = token
	}
	if allow := os.Getenv("AUTH_ALLOW_ANONYMOUS"); allow != "" {
		if b, err := strconv.ParseBool(allow); err == nil {
			c.Auth.AllowAnonymous = b
		}
	}
	if perDay := os.Getenv("RATE_LIMIT_PER_DAY"); perDay != "" {
		if n, err := strconv.Atoi(perDay); err == nil {
			c.RateLimit.PerDay = n
		}
	}
	if perHour := os.Getenv("RATE_LIMIT_PER_HOUR"); perHour != "" {
		if n, err := strconv.Atoi(perHour); err == nil {
			c.RateLimit.PerHour = n
		}
	}
	if concurrency := os.Getenv("WORKER_CONCURRENCY"); concurrency != "" {
		if n, err := strconv.Atoi(concurrency); err == nil {
			c.Worker.Concurrency = n
		}
	}
	// Redis URL override (format: redis://:password@host:port/db)
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		c.Redis.Enabled = true
		c.parseRedisURL(redisURL)
	}
}

// applyFloors replaces values that would leave a component unusable.
func (c *Config) applyFloors() {
	if c.AI.Timeout <= 0 {
		c.AI.Timeout = 60 * time.Second
	}
	if c.AI.MaxTokens <= 0 {
		c.AI.MaxTokens = 1500
	}
	if c.Worker.Concurrency <= 0 {
		c.Worker.Concurrency = 1
	}
	if c.Worker.QueueSize <= 0 {
		c.Worker.QueueSize = 1
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 1
	}
	if floor := c.AI.Timeout + StaleMargin; c.Worker.StaleAfter > 0 && c.Worker.StaleAfter < floor {
		c.Worker.StaleAfter = floor
	}
}

// parseRedisURL parses a Redis URL and sets config values
// Format: redis://:password@host:port/db
func (c *Config) parseRedisURL(redisURL string) {
	url := strings.TrimPrefix(redisURL, "redis://")

	if atIdx := strings.Index(url, "@"); atIdx != -1 {
		authPart := url[:atIdx]
		url = url[atIdx+1:]
		// :password or user:password
		if colonIdx := strings.Index(authPart, ":"); colonIdx != -1 {
			c.Redis.Password = authPart[colonIdx+1:]
		}
	}

	if slashIdx := strings.LastIndex(url, "/"); slashIdx != -1 {
		dbStr := url[slashIdx+1:]
		url = url[:slashIdx]
		if db, err := strconv.Atoi(dbStr); err == nil {
			c.Redis.DB = db
		}
	}

	c.Redis.Addr = url
}

// Addr returns the host:port the HTTP server listens on.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}
