package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// Config is the process configuration, loaded from the environment.
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" default:""`
	DBMaxConns  int    `envconfig:"DB_MAX_CONNS" default:"16"`

	ServerHost string `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	ServerPort int    `envconfig:"SERVER_PORT" default:"8080"`

	// Detection engine knobs.
	CandidateRadiusM  float64 `envconfig:"CANDIDATE_RADIUS_M" default:"150"`
	AddressPrefixLen  int     `envconfig:"ADDRESS_PREFIX_LEN" default:"12"`
	MaxCandidates     int     `envconfig:"MAX_CANDIDATES" default:"200"`
	DetectWorkers     int     `envconfig:"DETECT_WORKERS" default:"4"`
	FullScanWorkers   int     `envconfig:"FULL_SCAN_WORKERS" default:"8"`
	ScoringConfigFile string  `envconfig:"SCORING_CONFIG_FILE" default:""`

	CORSAllowedOrigins string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// Load reads and validates configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate rejects out-of-range settings early.
func (c *Config) Validate() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("SERVER_PORT must be in 1..65535, got %d", c.ServerPort)
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be >= 1")
	}
	if c.CandidateRadiusM <= 0 {
		return fmt.Errorf("CANDIDATE_RADIUS_M must be positive")
	}
	if c.AddressPrefixLen < 1 {
		return fmt.Errorf("ADDRESS_PREFIX_LEN must be >= 1")
	}
	if c.DetectWorkers < 1 || c.FullScanWorkers < 1 {
		return fmt.Errorf("worker counts must be >= 1")
	}
	return nil
}

// RequireDatabase fails when no DSN was configured; commands that touch
// Postgres call this up front.
func (c *Config) RequireDatabase() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}
