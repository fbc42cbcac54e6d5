// Package config provides configuration management for the application.
// It supports YAML configuration files with environment variable overrides.
package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pullsense/pullsense/pkg/errors"
	"github.com/pullsense/pullsense/pkg/logger"
)

// Default configuration values
const (
	defaultHost              = "0.0.0.0"
	defaultPort              = 8000
	defaultRedisURL          = "redis://localhost:6379/0"
	defaultModel             = "gpt-3.5-turbo"
	defaultMaxTokens         = 500
	defaultAnalysisTimeout   = 300
	defaultMaxRetries        = 3
	defaultWorkerConcurrency = 4
	defaultRetentionDays     = 90
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Broker    BrokerConfig    `yaml:"broker"`
	Cache     CacheConfig     `yaml:"cache"`
	GitHub    GitHubConfig    `yaml:"github"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Retention RetentionConfig `yaml:"retention"`
	Logging   logger.Config   `yaml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	Debug       bool     `yaml:"debug"`
	CORSOrigins []string `yaml:"cors_origins"` // Allowed CORS origins whitelist
}

// BrokerConfig holds job queue broker configuration
type BrokerConfig struct {
	RedisURL string `yaml:"redis_url"` // Redis connection URL for jobs and events
}

// CacheConfig holds diff cache configuration
type CacheConfig struct {
	RedisURL string `yaml:"redis_url"` // empty disables caching entirely
}

// GitHubConfig holds GitHub API configuration
type GitHubConfig struct {
	Token string `yaml:"token"` // empty means anonymous (rate-limited) access
}

// AnalysisConfig holds analysis pipeline configuration
type AnalysisConfig struct {
	OpenAIAPIKey   string `yaml:"openai_api_key"`  // empty enables mock mode
	Model          string `yaml:"model"`           // completion model name
	MaxTokens      int    `yaml:"max_tokens"`      // completion output ceiling
	TimeoutSeconds int    `yaml:"timeout_seconds"` // per-job deadline
	MaxRetries     int    `yaml:"max_retries"`     // broker redelivery limit
	Concurrency    int    `yaml:"concurrency"`     // worker pool size
}

// RetentionConfig holds data retention configuration
type RetentionConfig struct {
	Days int `yaml:"days"` // PRs and reviews older than this are purged
}

// Default returns a default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:  defaultHost,
			Port:  defaultPort,
			Debug: false,
			CORSOrigins: []string{
				"http://localhost:3000",
				"http://localhost:5173",
			},
		},
		Broker: BrokerConfig{
			RedisURL: defaultRedisURL,
		},
		Cache: CacheConfig{
			RedisURL: defaultRedisURL,
		},
		GitHub: GitHubConfig{},
		Analysis: AnalysisConfig{
			Model:          defaultModel,
			MaxTokens:      defaultMaxTokens,
			TimeoutSeconds: defaultAnalysisTimeout,
			MaxRetries:     defaultMaxRetries,
			Concurrency:    defaultWorkerConcurrency,
		},
		Retention: RetentionConfig{
			Days: defaultRetentionDays,
		},
		Logging: logger.Config{
			Level:      "info",
			Format:     "text",
			File:       "",
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 5,
			Compress:   false,
		},
	}
}

// Load loads configuration from a YAML file with environment variable expansion
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigNotFound, "failed to read config file", err)
	}

	expanded := expandEnvVars(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfigInvalid, "failed to parse config file", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with environment variable values.
// Only the ${VAR_NAME} form is matched; bare $VAR_NAME stays untouched so
// tokens containing dollar signs survive.
func expandEnvVars(content string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(content, func(match string) string {
		varName := match[2 : len(match)-1]

		// Support default values: ${VAR_NAME:-default}
		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]

		if value := os.Getenv(varName); value != "" {
			return value
		}

		if len(parts) > 1 {
			return parts[1]
		}

		return ""
	})
}

// Address returns the server address string
func (c *ServerConfig) Address() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
