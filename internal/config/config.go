package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/garyjia/ethics-review/internal/domain/workflow"
)

// EnvPrefix prefixes every environment override, e.g. ETHICS_SERVER_PORT
const EnvPrefix = "ETHICS"

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Lark     LarkConfig     `mapstructure:"lark"`
	Delivery DeliveryConfig `mapstructure:"delivery"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Sweeper  SweeperConfig  `mapstructure:"sweeper"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logger   LoggerConfig   `mapstructure:"logger"`
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
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LarkConfig holds Lark API configuration
type LarkConfig struct {
	AppID      string        `mapstructure:"app_id"`
	AppSecret  string        `mapstructure:"app_secret"`
	BaseURL    string        `mapstructure:"base_url"`
	APITimeout time.Duration `mapstructure:"api_timeout"`
}

// DeliveryConfig selects the notification channel
type DeliveryConfig struct {
	Channel string        `mapstructure:"channel"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// WorkflowConfig binds stages to roles
type WorkflowConfig struct {
	StageRoles    map[string]string `mapstructure:"stage_roles"`
	OverrideRole  string            `mapstructure:"override_role"`
	OversightRole string            `mapstructure:"oversight_role"`
	CacheExpiry   time.Duration     `mapstructure:"cache_expiry"`
}

// SweeperConfig holds escalation sweep configuration
type SweeperConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Interval    time.Duration `mapstructure:"interval"`
	Threshold   time.Duration `mapstructure:"threshold"`
	Concurrency int           `mapstructure:"concurrency"`
	RunOnStart  bool          `mapstructure:"run_on_start"`
}

// StorageConfig holds report archive configuration
type StorageConfig struct {
	ReportDir string `mapstructure:"report_dir"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load reads an optional .env file, the YAML config file when configPath is
// set, and ETHICS_* environment overrides, in increasing precedence.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	// a configured binding replaces the default one instead of merging into it
	if len(cfg.Workflow.StageRoles) == 0 {
		cfg.Workflow.StageRoles = workflow.DefaultStageRoles()
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

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.path", "data/ethics.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("lark.base_url", "")
	v.SetDefault("lark.api_timeout", 30*time.Second)

	v.SetDefault("delivery.channel", "log")
	v.SetDefault("delivery.timeout", 10*time.Second)

	v.SetDefault("workflow.override_role", "admin")
	v.SetDefault("workflow.oversight_role", "")
	v.SetDefault("workflow.cache_expiry", 30*time.Minute)

	v.SetDefault("sweeper.enabled", true)
	v.SetDefault("sweeper.interval", time.Hour)
	v.SetDefault("sweeper.threshold", 72*time.Hour)
	v.SetDefault("sweeper.concurrency", 4)
	v.SetDefault("sweeper.run_on_start", false)

	v.SetDefault("storage.report_dir", "reports")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds the unprefixed variables deployments commonly set for
// credentials
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string][]string{
		"lark.app_id":     {"ETHICS_LARK_APP_ID", "LARK_APP_ID"},
		"lark.app_secret": {"ETHICS_LARK_APP_SECRET", "LARK_APP_SECRET"},
		"database.dsn":    {"ETHICS_DATABASE_DSN", "DATABASE_URL"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return err
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	switch c.Logger.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logger.format must be json or console, got %q", c.Logger.Format)
	}

	if c.Sweeper.Concurrency < 0 {
		return fmt.Errorf("sweeper.concurrency must not be negative")
	}

	// The remaining sections are checked by the container
	return c.ToContainerConfig().Validate()
}
