package container

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/garyjia/ethics-review/internal/application/dispatcher"
	"github.com/garyjia/ethics-review/internal/application/port"
	"github.com/garyjia/ethics-review/internal/application/service"
	"github.com/garyjia/ethics-review/internal/application/workflow"
	"github.com/garyjia/ethics-review/internal/domain/event"
	domainwf "github.com/garyjia/ethics-review/internal/domain/workflow"
	"github.com/garyjia/ethics-review/internal/infrastructure/persistence/repository"
	"github.com/garyjia/ethics-review/internal/infrastructure/persistence/sqldb"
	"github.com/garyjia/ethics-review/internal/infrastructure/worker"
	httpif "github.com/garyjia/ethics-review/internal/interfaces/http"
	"github.com/garyjia/ethics-review/pkg/database"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger
	meters metric.MeterProvider

	// Infrastructure
	conn         *database.DB
	db           *sqldb.DB
	repositories *RepositoryBundle
	channel      port.DeliveryChannel
	metrics      port.Metrics

	// Application
	roles      *domainwf.RoleMap
	dispatcher dispatcher.Dispatcher
	engine     workflow.Engine
	services   *ServiceBundle

	// Workers
	workers *worker.WorkerManager

	// Lifecycle
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Templates     *repository.TemplateRepository
	States        *repository.ProcessStateRepository
	Transitions   *repository.TransitionRepository
	Notifications *repository.NotificationRepository
	Applications  *repository.ApplicationRepository
	Users         *repository.UserRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Templates     service.TemplateService
	Notifications service.NotificationService
	Escalation    service.EscalationService
	Reports       service.ReportService
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

// Option customizes a container before Start.
type Option func(*Container)

// WithMeterProvider records workflow counters on the given provider instead
// of the otel global one. The caller owns the provider and its exporter.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(c *Container) {
		c.meters = provider
	}
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Container{
		config: cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Start initializes all components and begins processing.
// Components are initialized in dependency order:
// 1. Database, migrations and repositories
// 2. Delivery channel and metrics
// 3. Dispatcher and application services
// 4. Workflow engine
// 5. Workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized", zap.String("driver", string(c.conn.Dialect)))

	if err := c.initExternal(); err != nil {
		return fmt.Errorf("failed to initialize external clients: %w", err)
	}
	c.logger.Info("External clients initialized", zap.String("channel", c.channel.Name()))

	if err := c.initServices(); err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Application services initialized")

	if err := c.initWorkflow(); err != nil {
		return fmt.Errorf("failed to initialize workflow engine: %w", err)
	}
	c.logger.Info("Workflow engine initialized")

	if err := c.initWorkers(); err != nil {
		return fmt.Errorf("failed to initialize workers: %w", err)
	}
	c.logger.Info("Workers initialized and started",
		zap.Int("worker_count", c.workers.GetWorkerCount()))

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

	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		} else {
			c.logger.Info("Workers stopped")
		}
	}

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health() *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	if c.conn != nil {
		if err := c.conn.Ping(); err != nil {
			status.Components["database"] = ComponentHealth{
				Healthy: false,
				Message: fmt.Sprintf("ping failed: %v", err),
			}
			status.Overall = false
		} else {
			status.Components["database"] = ComponentHealth{Healthy: true}
		}
	} else {
		status.Components["database"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	if c.workers != nil {
		healthy := c.workers.IsRunning() || c.workers.GetWorkerCount() == 0
		status.Components["workers"] = ComponentHealth{
			Healthy: healthy,
			Message: fmt.Sprintf("worker count: %d", c.workers.GetWorkerCount()),
		}
		if !healthy {
			status.Overall = false
		}
	} else {
		status.Components["workers"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	if c.dispatcher != nil {
		var unhandled []string
		for _, t := range event.AllTypes() {
			if len(c.dispatcher.ListHandlers(t)) == 0 {
				unhandled = append(unhandled, t.String())
			}
		}
		if len(unhandled) > 0 {
			status.Components["dispatcher"] = ComponentHealth{
				Healthy: false,
				Message: fmt.Sprintf("no handler for: %s", strings.Join(unhandled, ", ")),
			}
			status.Overall = false
		} else {
			status.Components["dispatcher"] = ComponentHealth{Healthy: true}
		}
	} else {
		status.Components["dispatcher"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	if c.engine != nil {
		status.Components["workflow"] = ComponentHealth{Healthy: true}
	} else {
		status.Components["workflow"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	}

	return status
}

func (c *Container) initDatabase() error {
	bundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.conn = bundle.Conn
	c.db = bundle.TxManager

	repos, err := ProvideRepositories(c.db, c.logger)
	if err != nil {
		_ = c.conn.Close()
		return err
	}
	c.repositories = repos
	return nil
}

func (c *Container) initExternal() error {
	channel, err := ProvideDeliveryChannel(c.config, c.logger)
	if err != nil {
		return err
	}
	c.channel = channel

	metrics, err := ProvideMetrics(c.meters)
	if err != nil {
		return err
	}
	c.metrics = metrics
	return nil
}

func (c *Container) initServices() error {
	disp, err := ProvideDispatcher(c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp
	c.roles = ProvideRoleMap(&c.config.Workflow)

	services, err := ProvideServices(&ServiceDeps{
		Config:     c.config,
		Repos:      c.repositories,
		TxManager:  c.db,
		Roles:      c.roles,
		Channel:    c.channel,
		Dispatcher: c.dispatcher,
		Metrics:    c.metrics,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.services = services
	return nil
}

func (c *Container) initWorkflow() error {
	engine, err := ProvideWorkflowEngine(&WorkflowDeps{
		Config:     &c.config.Workflow,
		Repos:      c.repositories,
		TxManager:  c.db,
		Roles:      c.roles,
		Dispatcher: c.dispatcher,
		Metrics:    c.metrics,
		Logger:     c.logger,
	})
	if err != nil {
		return err
	}
	c.engine = engine
	return nil
}

func (c *Container) initWorkers() error {
	workers, err := ProvideWorkers(&c.config.Sweeper, c.services.Escalation, c.logger)
	if err != nil {
		return err
	}
	c.workers = workers

	if workers.GetWorkerCount() == 0 {
		return nil
	}
	if err := c.workers.StartAll(c.ctx); err != nil {
		return fmt.Errorf("failed to start workers: %w", err)
	}
	return nil
}

// HTTPServer builds the HTTP adapter over the container's services.
func (c *Container) HTTPServer() *httpif.Server {
	return httpif.NewServer(httpif.ServerConfig{
		Host:           c.config.Server.Host,
		Port:           c.config.Server.Port,
		ReadTimeout:    c.config.Server.ReadTimeout,
		WriteTimeout:   c.config.Server.WriteTimeout,
		SweepThreshold: c.config.Sweeper.Threshold,
	}, httpif.Services{
		Engine:        c.engine,
		Templates:     c.services.Templates,
		Notifications: c.services.Notifications,
		Escalation:    c.services.Escalation,
		Reports:       c.services.Reports,
		Users:         c.repositories.Users,
		Roles:         c.roles,
	}, &zapLoggerAdapter{logger: c.logger})
}

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// WorkflowEngine returns the workflow engine.
func (c *Container) WorkflowEngine() workflow.Engine {
	return c.engine
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Roles returns the stage to role binding.
func (c *Container) Roles() *domainwf.RoleMap {
	return c.roles
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

// zapLoggerAdapter adapts zap.Logger to the small Logger interfaces of the
// application and interface layers.
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *zapLoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
