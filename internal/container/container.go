package container

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/forms-workflow/internal/application/dispatcher"
	"github.com/garyjia/forms-workflow/internal/application/port"
	"github.com/garyjia/forms-workflow/internal/application/service"
	"github.com/garyjia/forms-workflow/internal/application/workflow"
	"github.com/garyjia/forms-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/forms-workflow/internal/infrastructure/worker"
	"github.com/garyjia/forms-workflow/pkg/database"
)

// Container manages all application dependencies and lifecycle.
// It follows Clean Architecture principles with ordered initialization
// and reverse-order teardown.
type Container struct {
	config *Config
	logger *zap.Logger

	// Infrastructure - Data
	db           *database.DB
	txManager    *sqlite.TxManager
	repositories *RepositoryBundle

	// Infrastructure - Catalogs and external
	catalogs *CatalogBundle
	notifier port.ProcessNotifier

	// Application
	dispatcher dispatcher.Dispatcher
	workflow   workflow.WorkflowEngine
	services   *ServiceBundle

	// Workers
	workers *worker.WorkerManager

	// Lifecycle
	mu     sync.RWMutex
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Submissions port.SubmissionRepository
	Steps       port.ApprovalStepRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Queries service.QueryService
	Intake  service.IntakeService
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components in dependency order:
// 1. Database, migrations and repositories
// 2. Directory and form catalog
// 3. Orchestrator notifier
// 4. Event dispatcher and workflow engine
// 5. Application services
// 6. Background workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	// Step 1: Initialize database and repositories
	if err := c.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	// Step 2: Load directory and forms
	catalogs, err := ProvideCatalogs(&c.config.Catalog, c.logger)
	if err != nil {
		c.teardown()
		return fmt.Errorf("failed to load catalogs: %w", err)
	}
	c.catalogs = catalogs

	// Step 3: Initialize notifier
	notifier, err := ProvideNotifier(&c.config.Orchestrator, c.logger)
	if err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize notifier: %w", err)
	}
	c.notifier = notifier
	c.logger.Info("Orchestrator notifier initialized",
		zap.String("transport", c.config.Orchestrator.Transport),
		zap.String("gateway", notifier.Gateway()))

	// Step 4: Initialize dispatcher and workflow engine
	if err := c.initDispatcherAndWorkflow(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize dispatcher and workflow: %w", err)
	}
	c.logger.Info("Dispatcher and workflow engine initialized")

	// Step 5: Initialize application services
	services, err := ProvideServices(&ServiceDeps{
		Repos:     c.repositories,
		TxManager: c.txManager,
		Catalogs:  c.catalogs,
		Engine:    c.workflow,
		Logger:    c.logger,
	})
	if err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.services = services

	// Step 6: Start workers
	workers, err := ProvideWorkers(&c.config.Worker, &c.config.Catalog, c.catalogs, c.logger)
	if err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize workers: %w", err)
	}
	if err := workers.StartAll(ctx); err != nil {
		c.teardown()
		return fmt.Errorf("failed to start workers: %w", err)
	}
	c.workers = workers
	c.logger.Info("Workers started", zap.Int("count", workers.Count()))

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	errs := c.teardown()

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// teardown releases whatever has been initialized so far.
func (c *Container) teardown() []error {
	var errs []error

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
		c.workers = nil
	}

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
		c.dispatcher = nil
	}

	if closer, ok := c.notifier.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			c.logger.Error("Failed to close notifier", zap.Error(err))
			errs = append(errs, fmt.Errorf("close notifier: %w", err))
		} else {
			c.logger.Info("Notifier closed")
		}
	}
	c.notifier = nil

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
		c.db = nil
	}

	return errs
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components. The orchestrator is
// reported but does not affect Overall.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	// Check database
	if c.db != nil {
		if err := c.db.PingContext(ctx); err != nil {
			status.Components["database"] = ComponentHealth{
				Healthy: false,
				Message: fmt.Sprintf("ping failed: %v", err),
			}
			status.Overall = false
		} else {
			status.Components["database"] = ComponentHealth{Healthy: true}
		}
	} else {
		status.Components["database"] = ComponentHealth{
			Healthy: false,
			Message: "not initialized",
		}
		status.Overall = false
	}

	// Check dispatcher
	if c.dispatcher != nil {
		status.Components["dispatcher"] = ComponentHealth{Healthy: true}
	} else {
		status.Components["dispatcher"] = ComponentHealth{
			Healthy: false,
			Message: "not initialized",
		}
		status.Overall = false
	}

	// Check directory
	if c.catalogs != nil {
		status.Components["directory"] = ComponentHealth{
			Healthy: true,
			Message: fmt.Sprintf("users: %d, forms: %d", c.catalogs.Directory.Len(), len(c.catalogs.Forms.List())),
		}
	} else {
		status.Components["directory"] = ComponentHealth{
			Healthy: false,
			Message: "not initialized",
		}
		status.Overall = false
	}

	// Check workers
	if c.workers != nil {
		for _, w := range c.workers.Statuses() {
			status.Components["worker:"+w.Name] = ComponentHealth{Healthy: w.Running, Message: w.Detail}
			if !w.Running {
				status.Overall = false
			}
		}
	}

	// Check orchestrator
	if c.notifier != nil {
		gateway := c.notifier.Gateway()
		if gateway == "" {
			status.Components["orchestrator"] = ComponentHealth{Healthy: false, Message: "disabled"}
		} else if c.notifier.HealthCheck(ctx) {
			status.Components["orchestrator"] = ComponentHealth{Healthy: true, Message: gateway}
		} else {
			status.Components["orchestrator"] = ComponentHealth{Healthy: false, Message: "unreachable: " + gateway}
		}
	}

	return status
}

// ReloadCatalogs re-reads the directory and form files. A file that fails
// validation keeps its previous contents.
func (c *Container) ReloadCatalogs() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.catalogs == nil {
		return fmt.Errorf("container not started")
	}

	if err := c.catalogs.Directory.Sync(); err != nil {
		c.logger.Error("Failed to reload directory", zap.Error(err))
		return fmt.Errorf("reload directory: %w", err)
	}
	if err := c.catalogs.Forms.Sync(); err != nil {
		c.logger.Error("Failed to reload forms", zap.Error(err))
		return fmt.Errorf("reload forms: %w", err)
	}

	c.logger.Info("Catalogs reloaded",
		zap.Int("users", c.catalogs.Directory.Len()),
		zap.Int("forms", len(c.catalogs.Forms.List())))
	return nil
}

// initDatabase initializes the database and all repositories using providers.
func (c *Container) initDatabase(ctx context.Context) error {
	dbBundle, err := ProvideDatabase(ctx, &c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.db = dbBundle.DB
	c.txManager = dbBundle.TransactionMgr

	repos, err := ProvideRepositories(c.db.DB, c.logger)
	if err != nil {
		c.teardown()
		return err
	}

	c.repositories = repos
	return nil
}

// initDispatcherAndWorkflow initializes the event dispatcher and workflow engine using providers.
func (c *Container) initDispatcherAndWorkflow() error {
	disp, err := ProvideDispatcher(c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp

	engine, err := ProvideWorkflowEngine(&WorkflowDeps{
		Repos:      c.repositories,
		TxManager:  c.txManager,
		Directory:  c.catalogs.Directory,
		Notifier:   c.notifier,
		Dispatcher: c.dispatcher,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.workflow = engine

	return nil
}

// Getters for accessing container components

// TxManager returns the transaction manager.
func (c *Container) TxManager() port.TransactionManager {
	return c.txManager
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Catalogs returns the directory and form catalog.
func (c *Container) Catalogs() *CatalogBundle {
	return c.catalogs
}

// Notifier returns the orchestrator notifier.
func (c *Container) Notifier() port.ProcessNotifier {
	return c.notifier
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// WorkflowEngine returns the workflow engine.
func (c *Container) WorkflowEngine() workflow.WorkflowEngine {
	return c.workflow
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *Config {
	return c.config
}

// zapLoggerAdapter adapts zap.Logger to the service.Logger interface.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	fields := convertToZapFields(keysAndValues...)
	a.logger.Info(msg, fields...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	fields := convertToZapFields(keysAndValues...)
	a.logger.Error(msg, fields...)
}

// dispatcherLoggerAdapter adapts zap.Logger to the dispatcher.Logger interface.
type dispatcherLoggerAdapter struct {
	logger *zap.Logger
}

func (a *dispatcherLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	fields := convertToZapFields(keysAndValues...)
	a.logger.Info(msg, fields...)
}

func (a *dispatcherLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	fields := convertToZapFields(keysAndValues...)
	a.logger.Error(msg, fields...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

// KeyValueLogger returns a named key-value logger for components that take
// the service.Logger interface.
func (c *Container) KeyValueLogger(name string) service.Logger {
	return &zapLoggerAdapter{logger: c.logger.Named(name)}
}
