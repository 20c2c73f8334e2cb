package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/omnigate/omnigate/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort             = "8080"
	defaultCatalogPath      = "config/models.yaml"
	defaultRetryAttempts    = 3
	defaultRetryBaseDelayMs = 500
	defaultAttemptTimeoutMs = 30000
)

// Config represents the complete application configuration
type Config struct {
	Server    models.ServerConfig              `yaml:"server"`
	Database  models.DatabaseConfig            `yaml:"database"`
	Providers map[string]models.ProviderConfig `yaml:"providers"`
	Retry     models.RetryConfig               `yaml:"retry"`
	Catalog   string                           `yaml:"catalog"`
}

// LoadFromFile loads configuration from a YAML file with environment variable substitution
func LoadFromFile(configPath string) (*Config, error) {
	cleanPath := filepath.Clean(configPath)

	if strings.Contains(cleanPath, "..") {
		return nil, fmt.Errorf("invalid config path: path traversal not allowed")
	}

	ext := filepath.Ext(cleanPath)
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("invalid config file: only .yaml and .yml files are allowed")
	}

	data, err := os.ReadFile(cleanPath) // #nosec G304 - path is validated above
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	content := substituteEnvVars(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(content), &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	// Normalize provider map keys to lowercase for case-insensitive lookups
	if config.Providers != nil {
		normalized := make(map[string]models.ProviderConfig, len(config.Providers))
		for key, value := range config.Providers {
			normalized[strings.ToLower(key)] = value
		}
		config.Providers = normalized
	}

	config.applyDefaults()

	return &config, nil
}

// LoadEnvFiles loads environment variables from .env files in order of precedence.
// Loads files in the order provided (first has highest priority).
func LoadEnvFiles(envFiles []string) {
	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err == nil {
				fmt.Printf("Loaded environment variables from %s\n", envFile)
			}
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = defaultPort
	}
	if c.Catalog == "" {
		c.Catalog = defaultCatalogPath
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = defaultRetryAttempts
	}
	if c.Retry.BaseDelayMs <= 0 {
		c.Retry.BaseDelayMs = defaultRetryBaseDelayMs
	}
	if c.Retry.AttemptTimeoutMs <= 0 {
		c.Retry.AttemptTimeoutMs = defaultAttemptTimeoutMs
	}
	if c.Database.Type == "" {
		c.Database.Type = models.SQLite
		c.Database.FilePath = "data/usage.db"
	}
}

// Validate verifies that the configuration is usable
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one provider must be configured")
	}
	for name := range c.Providers {
		if !models.Provider(name).Valid() {
			return fmt.Errorf("unknown provider %q: expected one of openai, anthropic, google", name)
		}
	}
	switch c.Database.Type {
	case models.SQLite:
		if c.Database.FilePath == "" {
			return fmt.Errorf("database.file_path is required for sqlite")
		}
	case models.PostgreSQL, models.MySQL:
		if c.Database.DSN == "" && c.Database.Host == "" {
			return fmt.Errorf("database.dsn or database.host is required for %s", c.Database.Type)
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	return nil
}

// GetProviderConfig returns the configuration for the named provider
func (c *Config) GetProviderConfig(name string) (models.ProviderConfig, bool) {
	pc, ok := c.Providers[strings.ToLower(name)]
	return pc, ok
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

// substituteEnvVars replaces ${VAR_NAME} and ${VAR_NAME:-default} patterns with environment variables
func substituteEnvVars(content string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::(-[^}]*))?\}`)

	return re.ReplaceAllStringFunc(content, func(match string) string {
		submatches := re.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		defaultValue := ""

		if len(submatches) > 2 && submatches[2] != "" {
			defaultValue = strings.TrimPrefix(submatches[2], "-")
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}
