package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Orchestrator transports
const (
	TransportNone  = "none"
	TransportHTTP  = "http"
	TransportRedis = "redis"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Logger       LoggerConfig       `mapstructure:"logger"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Directory    DirectoryConfig    `mapstructure:"directory"`
	Forms        FormsConfig        `mapstructure:"forms"`
	CORS         CORSConfig         `mapstructure:"cors"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Worker       WorkerConfig       `mapstructure:"worker"`
}

// WorkerConfig holds background worker settings
type WorkerConfig struct {
	// CatalogReloadInterval polls the directory and form files; zero disables
	CatalogReloadInterval time.Duration `mapstructure:"catalog_reload_interval"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	// MigrationsDir overrides the embedded migrations when set
	MigrationsDir string `mapstructure:"migrations_dir"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// AuthConfig holds request authentication settings
type AuthConfig struct {
	JWTSecret           string `mapstructure:"jwt_secret"`
	Issuer              string `mapstructure:"issuer"`
	AllowIdentityHeader bool   `mapstructure:"allow_identity_header"`
}

// DirectoryConfig points at the user directory file
type DirectoryConfig struct {
	Path string `mapstructure:"path"`
}

// FormsConfig points at the form catalog file
type FormsConfig struct {
	Path string `mapstructure:"path"`
}

// CORSConfig lists browser origins allowed to call the API
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// OrchestratorConfig selects and configures the process notifier
type OrchestratorConfig struct {
	Transport string        `mapstructure:"transport"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Redis     RedisConfig   `mapstructure:"redis"`
}

// RedisConfig holds the Redis stream transport settings
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Stream   string `mapstructure:"stream"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	v.SetDefault("database.path", "data/forms.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.migrations_dir", "")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	v.SetDefault("auth.allow_identity_header", false)

	v.SetDefault("directory.path", "configs/directory.yaml")
	v.SetDefault("forms.path", "configs/forms.yaml")

	v.SetDefault("orchestrator.transport", TransportNone)
	v.SetDefault("orchestrator.timeout", 5*time.Second)
	v.SetDefault("orchestrator.redis.addr", "localhost:6379")
	v.SetDefault("orchestrator.redis.stream", "workflow:process-started")

	v.SetDefault("worker.catalog_reload_interval", 0)
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) {
	// Sensitive credentials from environment
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("orchestrator.base_url", "ORCHESTRATOR_URL")
	v.BindEnv("orchestrator.redis.password", "ORCHESTRATOR_REDIS_PASSWORD")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Directory.Path == "" {
		return fmt.Errorf("directory.path is required")
	}
	if c.Forms.Path == "" {
		return fmt.Errorf("forms.path is required")
	}
	if c.Auth.JWTSecret == "" && !c.Auth.AllowIdentityHeader {
		return fmt.Errorf("auth.jwt_secret is required unless auth.allow_identity_header is set")
	}

	switch c.Orchestrator.Transport {
	case TransportNone:
	case TransportHTTP:
		if c.Orchestrator.BaseURL == "" {
			return fmt.Errorf("orchestrator.base_url is required for the http transport")
		}
	case TransportRedis:
		if c.Orchestrator.Redis.Addr == "" {
			return fmt.Errorf("orchestrator.redis.addr is required for the redis transport")
		}
	default:
		return fmt.Errorf("unknown orchestrator.transport %q", c.Orchestrator.Transport)
	}

	return nil
}
