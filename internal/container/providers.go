package container

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/garyjia/forms-workflow/internal/application/dispatcher"
	"github.com/garyjia/forms-workflow/internal/application/port"
	"github.com/garyjia/forms-workflow/internal/application/service"
	"github.com/garyjia/forms-workflow/internal/application/workflow"
	"github.com/garyjia/forms-workflow/internal/infrastructure/directory"
	"github.com/garyjia/forms-workflow/internal/infrastructure/external/orchestrator"
	"github.com/garyjia/forms-workflow/internal/infrastructure/forms"
	"github.com/garyjia/forms-workflow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/forms-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/forms-workflow/internal/infrastructure/rules"
	"github.com/garyjia/forms-workflow/internal/infrastructure/worker"
	"github.com/garyjia/forms-workflow/migrations"
	"github.com/garyjia/forms-workflow/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.TxManager
}

// CatalogBundle holds the YAML-backed lookups.
type CatalogBundle struct {
	Directory  *directory.Static
	Forms      *forms.Catalog
	Conditions *rules.ExprEvaluator
}

// ProvideDatabase opens the database, applies pending migrations and creates
// the transaction manager.
func ProvideDatabase(ctx context.Context, cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(ctx, database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	var source fs.FS = migrations.FS
	if cfg.MigrationsDir != "" {
		source = os.DirFS(cfg.MigrationsDir)
	}

	applied, err := database.NewMigrator(db, logger).Run(ctx, source)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.Info("Migrations applied", zap.Int("count", applied))

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewTxManager(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Submissions: repository.NewSubmissionRepository(sqlDB, logger),
		Steps:       repository.NewApprovalStepRepository(sqlDB, logger),
	}, nil
}

// ProvideCatalogs loads the user directory and the form catalog. Form
// conditions are compiled at load time so bad expressions fail startup.
func ProvideCatalogs(cfg *CatalogConfig, logger *zap.Logger) (*CatalogBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("catalog config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	dir, err := directory.Load(cfg.DirectoryPath)
	if err != nil {
		return nil, err
	}

	conditions := rules.NewExprEvaluator()
	catalog, err := forms.Load(cfg.FormsPath, forms.WithConditionCompiler(conditions))
	if err != nil {
		return nil, err
	}

	logger.Info("Catalogs loaded",
		zap.Int("users", dir.Len()),
		zap.Int("forms", len(catalog.List())))

	return &CatalogBundle{
		Directory:  dir,
		Forms:      catalog,
		Conditions: conditions,
	}, nil
}

// ProvideNotifier creates the process notifier for the configured transport.
func ProvideNotifier(cfg *OrchestratorConfig, logger *zap.Logger) (port.ProcessNotifier, error) {
	if cfg == nil {
		return nil, fmt.Errorf("orchestrator config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	named := logger.Named("orchestrator")

	switch cfg.Transport {
	case "", "none":
		return orchestrator.NopNotifier{}, nil
	case "http":
		return orchestrator.NewHTTPNotifier(cfg.BaseURL, cfg.Timeout, named), nil
	case "redis":
		return orchestrator.NewRedisNotifier(orchestrator.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Stream:   cfg.RedisStream,
			Timeout:  cfg.Timeout,
		}, named), nil
	default:
		return nil, fmt.Errorf("unknown orchestrator transport %q", cfg.Transport)
	}
}

// ProvideDispatcher creates the event dispatcher and subscribes the audit log.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	disp := dispatcher.NewDispatcher(
		dispatcher.WithLogger(&dispatcherLoggerAdapter{logger: logger.Named("dispatcher")}),
	)
	disp.Subscribe(dispatcher.AllEvents, "audit_log", workflow.NewAuditHandler(logger))

	return disp, nil
}

// WorkflowDeps holds dependencies required for creating the workflow engine.
type WorkflowDeps struct {
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Directory  port.Directory
	Notifier   port.ProcessNotifier
	Dispatcher dispatcher.Dispatcher
	Logger     *zap.Logger
}

// ProvideWorkflowEngine creates the workflow engine.
func ProvideWorkflowEngine(deps *WorkflowDeps) (workflow.WorkflowEngine, error) {
	if deps == nil {
		return nil, fmt.Errorf("workflow dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Directory == nil {
		return nil, fmt.Errorf("directory is required")
	}
	if deps.Notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return workflow.NewEngine(
		deps.Repos.Submissions,
		deps.Repos.Steps,
		deps.TxManager,
		deps.Directory,
		deps.Notifier,
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithLogger(deps.Logger.Named("workflow")),
	), nil
}

// ServiceDeps holds dependencies required for creating application services.
type ServiceDeps struct {
	Repos     *RepositoryBundle
	TxManager port.TransactionManager
	Catalogs  *CatalogBundle
	Engine    workflow.WorkflowEngine
	Logger    *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil || deps.TxManager == nil || deps.Catalogs == nil || deps.Engine == nil || deps.Logger == nil {
		return nil, fmt.Errorf("repositories, transaction manager, catalogs, engine and logger are required")
	}

	serviceLogger := &zapLoggerAdapter{logger: deps.Logger.Named("service")}

	return &ServiceBundle{
		Queries: service.NewQueryService(
			deps.Engine,
			deps.Repos.Submissions,
			deps.Repos.Steps,
			deps.Catalogs.Directory,
			deps.Catalogs.Forms,
			serviceLogger,
		),
		Intake: service.NewIntakeService(
			deps.Catalogs.Forms,
			deps.Repos.Submissions,
			deps.TxManager,
			deps.Catalogs.Directory,
			deps.Engine,
			deps.Catalogs.Conditions,
			serviceLogger,
		),
	}, nil
}

// ProvideWorkers registers the background workers enabled by cfg. Workers are
// not started here.
func ProvideWorkers(cfg *WorkerConfig, catalogCfg *CatalogConfig, catalogs *CatalogBundle, logger *zap.Logger) (*worker.WorkerManager, error) {
	if cfg == nil || catalogCfg == nil || catalogs == nil {
		return nil, fmt.Errorf("worker config and catalogs are required")
	}

	manager := worker.NewWorkerManager(logger.Named("worker"))

	if cfg.CatalogReloadInterval > 0 {
		manager.Register(worker.NewCatalogReloader(cfg.CatalogReloadInterval, []worker.WatchedFile{
			{Path: catalogCfg.DirectoryPath, Target: catalogs.Directory},
			{Path: catalogCfg.FormsPath, Target: catalogs.Forms},
		}, logger.Named("catalog_reloader")))
	}

	return manager, nil
}
