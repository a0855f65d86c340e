// Package container provides dependency injection and lifecycle management
// for the ethics review workflow engine.
package container

import (
	"fmt"
	"time"

	"github.com/garyjia/ethics-review/internal/domain/workflow"
)

// Delivery channel names
const (
	ChannelLog  = "log"
	ChannelLark = "lark"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	Database DatabaseConfig
	Lark     LarkConfig
	Delivery DeliveryConfig
	Workflow WorkflowConfig
	Sweeper  SweeperConfig
	Storage  StorageConfig
	Server   ServerConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Driver is sqlite3 or pgx
	Driver string

	// Path to the SQLite database file
	Path string

	// DSN is the Postgres connection string
	DSN string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// LarkConfig holds Lark API settings.
type LarkConfig struct {
	AppID      string
	AppSecret  string
	BaseURL    string
	APITimeout time.Duration
}

// DeliveryConfig selects how notifications leave the system.
type DeliveryConfig struct {
	// Channel is "log" or "lark"
	Channel string

	// Timeout bounds one delivery attempt
	Timeout time.Duration
}

// WorkflowConfig holds the stage to role binding.
type WorkflowConfig struct {
	StageRoles    map[string]string
	OverrideRole  string
	OversightRole string

	// CacheExpiry bounds how long the engine keeps an unused template
	CacheExpiry time.Duration
}

// SweeperConfig holds escalation sweep settings.
type SweeperConfig struct {
	Enabled     bool
	Interval    time.Duration
	Threshold   time.Duration
	Concurrency int
	RunOnStart  bool
}

// StorageConfig holds report archive settings.
type StorageConfig struct {
	// ReportDir is where generated reports are archived. Empty disables archiving.
	ReportDir string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          "sqlite3",
			Path:            "data/ethics.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Lark: LarkConfig{
			APITimeout: 30 * time.Second,
		},
		Delivery: DeliveryConfig{
			Channel: ChannelLog,
			Timeout: 10 * time.Second,
		},
		Workflow: WorkflowConfig{
			StageRoles:   workflow.DefaultStageRoles(),
			OverrideRole: "admin",
			CacheExpiry:  30 * time.Minute,
		},
		Sweeper: SweeperConfig{
			Enabled:     true,
			Interval:    time.Hour,
			Threshold:   72 * time.Hour,
			Concurrency: 4,
		},
		Storage: StorageConfig{
			ReportDir: "reports",
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
	switch c.Database.Driver {
	case "", "sqlite3":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite3")
		}
	case "pgx":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for pgx")
		}
	default:
		return fmt.Errorf("database.driver must be sqlite3 or pgx, got %q", c.Database.Driver)
	}

	switch c.Delivery.Channel {
	case ChannelLog:
	case ChannelLark:
		if c.Lark.AppID == "" {
			return fmt.Errorf("lark.app_id is required for the lark channel")
		}
		if c.Lark.AppSecret == "" {
			return fmt.Errorf("lark.app_secret is required for the lark channel")
		}
	default:
		return fmt.Errorf("delivery.channel must be log or lark, got %q", c.Delivery.Channel)
	}

	if len(c.Workflow.StageRoles) == 0 {
		return fmt.Errorf("workflow.stage_roles must bind at least one stage")
	}
	for stage, role := range c.Workflow.StageRoles {
		if role == "" {
			return fmt.Errorf("workflow.stage_roles.%s has no role", stage)
		}
	}

	if c.Sweeper.Enabled {
		if c.Sweeper.Interval <= 0 {
			return fmt.Errorf("sweeper.interval must be positive")
		}
		if c.Sweeper.Threshold <= 0 {
			return fmt.Errorf("sweeper.threshold must be positive")
		}
	}

	return nil
}
