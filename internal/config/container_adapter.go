package config

import (
	"github.com/garyjia/ethics-review/internal/container"
	"github.com/garyjia/ethics-review/pkg/utils"
)

// ToContainerConfig converts the application Config to a container.Config.
// This provides a bridge between the file-based config loaded by viper
// and the container's configuration structure.
func (c *Config) ToContainerConfig() *container.Config {
	return &container.Config{
		Database: container.DatabaseConfig{
			Driver:          c.Database.Driver,
			Path:            c.Database.Path,
			DSN:             c.Database.DSN,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Lark: container.LarkConfig{
			AppID:      c.Lark.AppID,
			AppSecret:  c.Lark.AppSecret,
			BaseURL:    c.Lark.BaseURL,
			APITimeout: c.Lark.APITimeout,
		},
		Delivery: container.DeliveryConfig{
			Channel: c.Delivery.Channel,
			Timeout: c.Delivery.Timeout,
		},
		Workflow: container.WorkflowConfig{
			StageRoles:    c.Workflow.StageRoles,
			OverrideRole:  c.Workflow.OverrideRole,
			OversightRole: c.Workflow.OversightRole,
			CacheExpiry:   c.Workflow.CacheExpiry,
		},
		Sweeper: container.SweeperConfig{
			Enabled:     c.Sweeper.Enabled,
			Interval:    c.Sweeper.Interval,
			Threshold:   c.Sweeper.Threshold,
			Concurrency: c.Sweeper.Concurrency,
			RunOnStart:  c.Sweeper.RunOnStart,
		},
		Storage: container.StorageConfig{
			ReportDir: c.Storage.ReportDir,
		},
		Server: container.ServerConfig{
			Host:         c.Server.Host,
			Port:         c.Server.Port,
			ReadTimeout:  c.Server.ReadTimeout,
			WriteTimeout: c.Server.WriteTimeout,
		},
	}
}

// ToLoggerConfig converts the logger section for utils.NewLogger
func (c *Config) ToLoggerConfig() utils.LoggerConfig {
	return utils.LoggerConfig{
		Level:      c.Logger.Level,
		OutputPath: c.Logger.OutputPath,
		Format:     c.Logger.Format,
	}
}
