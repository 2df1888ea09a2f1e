package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/subosito/gotenv"
	"go.uber.org/zap"

	"github.com/garyjia/forms-workflow/internal/config"
	"github.com/garyjia/forms-workflow/internal/container"
	httpserver "github.com/garyjia/forms-workflow/internal/interfaces/http"
	"github.com/garyjia/forms-workflow/pkg/utils"
)

func main() {
	// .env is optional; real environment variables take precedence
	_ = gotenv.Load()

	configPath := "configs/config.yaml"
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		configPath = p
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting forms workflow service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port),
		zap.String("orchestrator_transport", cfg.Orchestrator.Transport))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Wire dependencies
	containerCfg := cfg.ToContainerConfig()
	c, err := container.NewContainer(containerCfg, logger)
	if err != nil {
		logger.Fatal("Failed to create container", zap.Error(err))
	}
	if err := c.Start(ctx); err != nil {
		logger.Fatal("Failed to start container", zap.Error(err))
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Container close failed", zap.Error(err))
		}
	}()

	sc := containerCfg.Server
	serverCfg := httpserver.ServerConfig{
		Host:           sc.Host,
		Port:           sc.Port,
		ReadTimeout:    sc.ReadTimeout,
		WriteTimeout:   sc.WriteTimeout,
		AllowedOrigins: sc.AllowedOrigins,
		Auth: httpserver.AuthConfig{
			JWTSecret:           sc.JWTSecret,
			Issuer:              sc.JWTIssuer,
			AllowIdentityHeader: sc.AllowIdentityHeader,
		},
	}

	server := httpserver.NewServer(serverCfg, httpserver.ServerDeps{
		Queries:  c.Services().Queries,
		Intake:   c.Services().Intake,
		Engine:   c.WorkflowEngine(),
		Notifier: c.Notifier(),
		Health: func(ctx context.Context) (bool, interface{}) {
			status := c.Health(ctx)
			return status.Overall, status.Components
		},
		Logger: c.KeyValueLogger("http"),
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start(ctx)
	}()

	// SIGHUP reloads the directory and form catalog, SIGINT/SIGTERM shut down
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		select {
		case sig := <-signals:
			if sig == syscall.SIGHUP {
				if err := c.ReloadCatalogs(); err != nil {
					logger.Error("Catalog reload failed, keeping previous contents", zap.Error(err))
				}
				continue
			}

			logger.Info("Shutting down server...", zap.String("signal", sig.String()))
			cancel()

			select {
			case err := <-serverErr:
				if err != nil {
					logger.Error("Server forced to shutdown", zap.Error(err))
				}
			case <-time.After(30 * time.Second):
				logger.Error("Server shutdown timed out")
			}

			logger.Info("Server exited successfully")
			return

		case err := <-serverErr:
			if err != nil {
				logger.Error("HTTP server failed", zap.Error(err))
			}
			return
		}
	}
}
