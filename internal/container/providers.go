package container

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/garyjia/ethics-review/internal/application/dispatcher"
	"github.com/garyjia/ethics-review/internal/application/port"
	"github.com/garyjia/ethics-review/internal/application/service"
	"github.com/garyjia/ethics-review/internal/application/workflow"
	domainwf "github.com/garyjia/ethics-review/internal/domain/workflow"
	infraLark "github.com/garyjia/ethics-review/internal/infrastructure/external/lark"
	"github.com/garyjia/ethics-review/internal/infrastructure/external/logchannel"
	"github.com/garyjia/ethics-review/internal/infrastructure/persistence/repository"
	"github.com/garyjia/ethics-review/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/ethics-review/internal/infrastructure/report"
	"github.com/garyjia/ethics-review/internal/infrastructure/storage"
	"github.com/garyjia/ethics-review/internal/infrastructure/telemetry"
	"github.com/garyjia/ethics-review/internal/infrastructure/worker"
	"github.com/garyjia/ethics-review/pkg/database"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Conn      *database.DB
	TxManager *sqldb.DB
}

// ProvideDatabase opens the configured database, applies pending migrations
// and wraps the connection in a transaction manager.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	conn, err := database.New(database.Config{
		Driver:          cfg.Driver,
		Path:            cfg.Path,
		DSN:             cfg.DSN,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(conn, logger).Run(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		Conn:      conn,
		TxManager: sqldb.NewDB(conn, logger),
	}, nil
}

// ProvideRepositories creates all repositories on the transaction manager.
func ProvideRepositories(db *sqldb.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Templates:     repository.NewTemplateRepository(db, logger),
		States:        repository.NewProcessStateRepository(db, logger),
		Transitions:   repository.NewTransitionRepository(db, logger),
		Notifications: repository.NewNotificationRepository(db, logger),
		Applications:  repository.NewApplicationRepository(db, logger),
		Users:         repository.NewUserRepository(db, logger),
	}, nil
}

// ProvideRoleMap builds the stage to role binding.
func ProvideRoleMap(cfg *WorkflowConfig) *domainwf.RoleMap {
	stageRoles := cfg.StageRoles
	if len(stageRoles) == 0 {
		stageRoles = domainwf.DefaultStageRoles()
	}
	return domainwf.NewRoleMap(stageRoles, cfg.OverrideRole)
}

// ProvideDeliveryChannel creates the configured notification channel.
func ProvideDeliveryChannel(cfg *Config, logger *zap.Logger) (port.DeliveryChannel, error) {
	switch cfg.Delivery.Channel {
	case ChannelLark:
		client := infraLark.NewClient(infraLark.Config{
			AppID:     cfg.Lark.AppID,
			AppSecret: cfg.Lark.AppSecret,
			BaseURL:   cfg.Lark.BaseURL,
			Timeout:   cfg.Lark.APITimeout,
		}, logger)
		return infraLark.NewMessenger(client, logger), nil
	case ChannelLog, "":
		return logchannel.New(logger), nil
	default:
		return nil, fmt.Errorf("unknown delivery channel: %s", cfg.Delivery.Channel)
	}
}

// ProvideMetrics creates the workflow counters. A nil provider means the otel
// global one, which stays a no-op until the process installs an SDK.
func ProvideMetrics(provider metric.MeterProvider) (port.Metrics, error) {
	return telemetry.NewMetrics(provider)
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(&zapLoggerAdapter{logger: logger}),
	), nil
}

// ServiceDeps holds dependencies for creating services.
type ServiceDeps struct {
	Config     *Config
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Roles      *domainwf.RoleMap
	Channel    port.DeliveryChannel
	Dispatcher dispatcher.Dispatcher
	Metrics    port.Metrics
	Logger     *zap.Logger
}

// ProvideServices creates all application services and subscribes the
// notification service to workflow events.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil || deps.Repos == nil || deps.Config == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	log := &zapLoggerAdapter{logger: deps.Logger}
	cfg := deps.Config

	notifications := service.NewNotificationService(
		deps.Repos.Notifications,
		deps.Repos.Users,
		deps.Roles,
		deps.Channel,
		deps.TxManager,
		log,
		service.WithOversightRole(cfg.Workflow.OversightRole),
		service.WithDeliveryTimeout(cfg.Delivery.Timeout),
		service.WithNotificationMetrics(deps.Metrics),
	)
	notifications.Register(deps.Dispatcher)

	escalation := service.NewEscalationService(
		deps.Repos.States,
		deps.Repos.Applications,
		deps.Roles,
		deps.Dispatcher,
		deps.TxManager,
		log,
		service.WithConcurrency(cfg.Sweeper.Concurrency),
		service.WithEscalationMetrics(deps.Metrics),
	)

	var archive port.ReportStorage
	if cfg.Storage.ReportDir != "" {
		archive = storage.NewLocalFileStorage(cfg.Storage.ReportDir, deps.Logger)
	}

	return &ServiceBundle{
		Templates:     service.NewTemplateService(deps.Repos.Templates, deps.Roles, deps.TxManager, log),
		Notifications: notifications,
		Escalation:    escalation,
		Reports: service.NewReportService(
			escalation,
			report.NewExcelRenderer(),
			archive,
			report.StallReportName,
			log,
		),
	}, nil
}

// WorkflowDeps holds dependencies for creating the workflow engine.
type WorkflowDeps struct {
	Config     *WorkflowConfig
	Repos      *RepositoryBundle
	TxManager  port.TransactionManager
	Roles      *domainwf.RoleMap
	Dispatcher dispatcher.Dispatcher
	Metrics    port.Metrics
	Logger     *zap.Logger
}

// ProvideWorkflowEngine creates the workflow engine.
func ProvideWorkflowEngine(deps *WorkflowDeps) (workflow.Engine, error) {
	if deps == nil || deps.Repos == nil {
		return nil, fmt.Errorf("workflow dependencies are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	opts := []workflow.EngineOption{
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithLogger(&zapLoggerAdapter{logger: deps.Logger}),
		workflow.WithMetrics(deps.Metrics),
	}
	if deps.Config != nil && deps.Config.CacheExpiry > 0 {
		opts = append(opts, workflow.WithCacheExpiry(deps.Config.CacheExpiry))
	}

	return workflow.NewEngine(
		deps.Repos.Templates,
		deps.Repos.States,
		deps.Repos.Transitions,
		deps.Repos.Applications,
		deps.Repos.Users,
		deps.TxManager,
		deps.Roles,
		opts...,
	), nil
}

// ProvideWorkers creates the worker manager with the escalation worker
// registered when the sweeper is enabled.
func ProvideWorkers(cfg *SweeperConfig, sweeper worker.Sweeper, logger *zap.Logger) (*worker.WorkerManager, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	manager := worker.NewWorkerManager(logger)
	if cfg.Enabled {
		manager.Register(worker.NewEscalationWorker(worker.EscalationWorkerConfig{
			Interval:   cfg.Interval,
			Threshold:  cfg.Threshold,
			RunOnStart: cfg.RunOnStart,
		}, sweeper, logger))
	}
	return manager, nil
}
