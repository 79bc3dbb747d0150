package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Jobexec  JobexecConfig
	Hosting  HostingConfig
	Slack    SlackConfig
	Stream   StreamConfig
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string //nolint:gosec // G117: DB connection config
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
}

// JobexecConfig holds job-execution backend settings.
type JobexecConfig struct {
	BaseURL     string
	Token       string //nolint:gosec // G117: backend auth config
	WorkflowURL string
	Timeout     time.Duration
}

// HostingConfig holds source-hosting platform credentials.
type HostingConfig struct {
	GitHubToken  string //nolint:gosec // G117: hosting API token config
	GiteaBaseURL string
	GiteaToken   string //nolint:gosec // G117: hosting API token config
	HTTPTimeout  time.Duration
}

// SlackConfig holds Slack notification settings.
type SlackConfig struct {
	BotToken string
	Channel  string
}

// StreamConfig holds stream monitoring settings.
type StreamConfig struct {
	MaxChunks  int
	PollActive time.Duration
	PollIdle   time.Duration
}

// Load reads configuration from environment variables. Defaults are
// safe for local development only.
func Load() (*Config, error) {
	dbPort, err := getEnvInt("AGENTDESK_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("AGENTDESK_DB_MAX_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("AGENTDESK_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readTimeout, err := getEnvDuration("AGENTDESK_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("AGENTDESK_SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	rateLimitRPS, err := getEnvFloat("AGENTDESK_SERVER_RATE_LIMIT_RPS", 50)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	rateLimitBurst, err := getEnvInt("AGENTDESK_SERVER_RATE_LIMIT_BURST", 100)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	jobexecTimeout, err := getEnvDuration("AGENTDESK_JOBEXEC_TIMEOUT", 30*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	hostingTimeout, err := getEnvDuration("AGENTDESK_HOSTING_HTTP_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	maxChunks, err := getEnvInt("AGENTDESK_STREAM_MAX_CHUNKS", 1000)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	pollActive, err := getEnvDuration("AGENTDESK_STREAM_POLL_ACTIVE", 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	pollIdle, err := getEnvDuration("AGENTDESK_STREAM_POLL_IDLE", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	corsOrigins := getEnvList("AGENTDESK_CORS_ORIGINS", []string{"http://localhost:5173"})

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("AGENTDESK_DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("AGENTDESK_DB_USER", "agentdesk"),
			Password: getEnv("AGENTDESK_DB_PASSWORD", ""),
			DBName:   getEnv("AGENTDESK_DB_NAME", "agentdesk_dev"),
			SSLMode:  getEnv("AGENTDESK_DB_SSLMODE", "disable"),
			MaxConns: dbMaxConns,
		},
		Redis: RedisConfig{
			Addr:     getEnv("AGENTDESK_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("AGENTDESK_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Server: ServerConfig{
			Addr:           getEnv("AGENTDESK_SERVER_ADDR", ":8080"),
			ReadTimeout:    readTimeout,
			WriteTimeout:   writeTimeout,
			CORSOrigins:    corsOrigins,
			RateLimitRPS:   rateLimitRPS,
			RateLimitBurst: rateLimitBurst,
		},
		Jobexec: JobexecConfig{
			BaseURL:     getEnv("AGENTDESK_JOBEXEC_BASE_URL", "http://localhost:9090"),
			Token:       getEnv("AGENTDESK_JOBEXEC_TOKEN", ""),
			WorkflowURL: getEnv("AGENTDESK_JOBEXEC_WORKFLOW_URL", ""),
			Timeout:     jobexecTimeout,
		},
		Hosting: HostingConfig{
			GitHubToken:  getEnv("AGENTDESK_GITHUB_TOKEN", ""),
			GiteaBaseURL: getEnv("AGENTDESK_GITEA_BASE_URL", ""),
			GiteaToken:   getEnv("AGENTDESK_GITEA_TOKEN", ""),
			HTTPTimeout:  hostingTimeout,
		},
		Slack: SlackConfig{
			BotToken: getEnv("AGENTDESK_SLACK_BOT_TOKEN", ""),
			Channel:  getEnv("AGENTDESK_SLACK_CHANNEL", ""),
		},
		Stream: StreamConfig{
			MaxChunks:  maxChunks,
			PollActive: pollActive,
			PollIdle:   pollIdle,
		},
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	if c.Jobexec.WorkflowURL == "" {
		return errors.New("AGENTDESK_JOBEXEC_WORKFLOW_URL is required")
	}

	// Bounds checks.
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("AGENTDESK_DB_PORT must be 1-65535, got %d", c.Database.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("AGENTDESK_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("AGENTDESK_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("AGENTDESK_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Server.RateLimitRPS <= 0 {
		return fmt.Errorf("AGENTDESK_SERVER_RATE_LIMIT_RPS must be positive, got %g", c.Server.RateLimitRPS)
	}
	if c.Server.RateLimitBurst < 1 {
		return fmt.Errorf("AGENTDESK_SERVER_RATE_LIMIT_BURST must be >= 1, got %d", c.Server.RateLimitBurst)
	}
	if c.Jobexec.Timeout <= 0 {
		return fmt.Errorf("AGENTDESK_JOBEXEC_TIMEOUT must be positive, got %s", c.Jobexec.Timeout)
	}
	if c.Stream.MaxChunks < 1 {
		return fmt.Errorf("AGENTDESK_STREAM_MAX_CHUNKS must be >= 1, got %d", c.Stream.MaxChunks)
	}
	if c.Stream.PollActive <= 0 || c.Stream.PollIdle <= 0 {
		return errors.New("AGENTDESK_STREAM_POLL_ACTIVE and AGENTDESK_STREAM_POLL_IDLE must be positive")
	}
	if c.Stream.PollActive > c.Stream.PollIdle {
		return fmt.Errorf("AGENTDESK_STREAM_POLL_ACTIVE (%s) must not exceed AGENTDESK_STREAM_POLL_IDLE (%s)",
			c.Stream.PollActive, c.Stream.PollIdle)
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
