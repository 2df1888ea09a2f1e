// Package container provides dependency injection and lifecycle management
// for the forms workflow service following Clean Architecture principles.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Directory and form catalog files
	Catalog CatalogConfig

	// External orchestrator notifier
	Orchestrator OrchestratorConfig

	// Background workers
	Worker WorkerConfig

	// Server configuration
	Server ServerConfig
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	// CatalogReloadInterval enables file polling for the catalogs when positive
	CatalogReloadInterval time.Duration
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int

	// ConnMaxLifetime is the maximum connection lifetime
	ConnMaxLifetime time.Duration

	// MigrationsDir replaces the embedded migrations when set
	MigrationsDir string
}

// CatalogConfig locates the YAML files loaded at startup.
type CatalogConfig struct {
	DirectoryPath string
	FormsPath     string
}

// OrchestratorConfig selects the process notifier transport.
type OrchestratorConfig struct {
	// Transport is one of none, http or redis
	Transport string

	BaseURL string
	Timeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisStream   string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	AllowedOrigins []string

	JWTSecret           string
	JWTIssuer           string
	AllowIdentityHeader bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/forms.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Catalog: CatalogConfig{
			DirectoryPath: "configs/directory.yaml",
			FormsPath:     "configs/forms.yaml",
		},
		Orchestrator: OrchestratorConfig{
			Transport:   "none",
			Timeout:     5 * time.Second,
			RedisAddr:   "localhost:6379",
			RedisStream: "workflow:process-started",
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Catalog.DirectoryPath == "" {
		return fmt.Errorf("directory.path is required")
	}
	if c.Catalog.FormsPath == "" {
		return fmt.Errorf("forms.path is required")
	}
	if c.Worker.CatalogReloadInterval < 0 {
		return fmt.Errorf("worker.catalog_reload_interval must not be negative")
	}

	switch c.Orchestrator.Transport {
	case "", "none":
	case "http":
		if c.Orchestrator.BaseURL == "" {
			return fmt.Errorf("orchestrator.base_url is required for the http transport")
		}
	case "redis":
		if c.Orchestrator.RedisAddr == "" {
			return fmt.Errorf("orchestrator.redis.addr is required for the redis transport")
		}
	default:
		return fmt.Errorf("unknown orchestrator transport %q", c.Orchestrator.Transport)
	}

	return nil
}
