package config

import (
	"github.com/garyjia/forms-workflow/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
			MigrationsDir:   c.Database.MigrationsDir,
		},
		Catalog: container.CatalogConfig{
			DirectoryPath: c.Directory.Path,
			FormsPath:     c.Forms.Path,
		},
		Worker: container.WorkerConfig{
			CatalogReloadInterval: c.Worker.CatalogReloadInterval,
		},
		Orchestrator: container.OrchestratorConfig{
			Transport:     c.Orchestrator.Transport,
			BaseURL:       c.Orchestrator.BaseURL,
			Timeout:       c.Orchestrator.Timeout,
			RedisAddr:     c.Orchestrator.Redis.Addr,
			RedisPassword: c.Orchestrator.Redis.Password,
			RedisDB:       c.Orchestrator.Redis.DB,
			RedisStream:   c.Orchestrator.Redis.Stream,
		},
		Server: container.ServerConfig{
			Host:                c.Server.Host,
			Port:                c.Server.Port,
			ReadTimeout:         c.Server.ReadTimeout,
			WriteTimeout:        c.Server.WriteTimeout,
			AllowedOrigins:      c.CORS.AllowedOrigins,
			JWTSecret:           c.Auth.JWTSecret,
			JWTIssuer:           c.Auth.Issuer,
			AllowIdentityHeader: c.Auth.AllowIdentityHeader,
		},
	}
}
