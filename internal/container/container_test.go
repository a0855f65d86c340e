package container

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/garyjia/ethics-review/internal/domain/entity"
	domainwf "github.com/garyjia/ethics-review/internal/domain/workflow"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"sqlite without path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"pgx without dsn", func(c *Config) { c.Database.Driver = "pgx" }, "database.dsn"},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"lark without credentials", func(c *Config) { c.Delivery.Channel = ChannelLark }, "lark.app_id"},
		{"lark without secret", func(c *Config) {
			c.Delivery.Channel = ChannelLark
			c.Lark.AppID = "cli_x"
		}, "lark.app_secret"},
		{"unknown channel", func(c *Config) { c.Delivery.Channel = "smtp" }, "delivery.channel"},
		{"no stage roles", func(c *Config) { c.Workflow.StageRoles = nil }, "workflow.stage_roles"},
		{"blank role", func(c *Config) { c.Workflow.StageRoles["ethics"] = "" }, "workflow.stage_roles.ethics"},
		{"zero threshold", func(c *Config) { c.Sweeper.Threshold = 0 }, "sweeper.threshold"},
		{"disabled sweeper ignores interval", func(c *Config) {
			c.Sweeper.Enabled = false
			c.Sweeper.Interval = 0
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewContainer_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Delivery.Channel = "carrier-pigeon"

	_, err := NewContainer(cfg, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(nil, zap.NewNop())
	assert.Error(t, err)
}

func testConfig(t *testing.T) *Config {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Database.Path = filepath.Join(dir, "ethics.db")
	cfg.Storage.ReportDir = filepath.Join(dir, "reports")
	cfg.Sweeper.Enabled = false
	return cfg
}

func TestContainer_StartServeClose(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(ctx), "second start must fail")

	health := c.Health()
	assert.True(t, health.Overall, "%+v", health.Components)
	assert.True(t, health.Components["dispatcher"].Healthy, "every event type has the notification handler")

	repos := c.Repositories()
	require.NoError(t, repos.Users.Upsert(ctx, &entity.User{ID: "ada", Name: "Ada", Email: "ada@uni.example", Role: "researcher"}))
	require.NoError(t, repos.Users.Upsert(ctx, &entity.User{ID: "fac", Name: "Fac", Email: "fac@uni.example", Role: "faculty_admin"}))
	app := &entity.Application{OwnerUserID: "ada", Title: "Sleep study", Status: entity.ApplicationStatusSubmitted}
	require.NoError(t, repos.Applications.Create(ctx, app))

	_, err = c.Services().Templates.Create(ctx, "default", []string{"faculty", "committee"}, true)
	require.NoError(t, err)

	state, err := c.WorkflowEngine().Initialize(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, domainwf.Stage("faculty"), state.CurrentStage)

	router := c.HTTPServer().Router()
	req := httptest.NewRequest(http.MethodPost, "/api/applications/"+strconv.FormatInt(app.ID, 10)+"/advance",
		strings.NewReader(`{"decision":"approve"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "fac")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close(), "second close must fail")
}

func TestContainer_StartsSweeperWhenEnabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sweeper.Enabled = true

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	assert.Equal(t, 1, c.Workers().GetWorkerCount())
	assert.True(t, c.Workers().IsRunning())
}

type recordingMeterProvider struct {
	noop.MeterProvider
	names []string
}

func (p *recordingMeterProvider) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	p.names = append(p.names, name)
	return p.MeterProvider.Meter(name, opts...)
}

func TestContainer_UsesGivenMeterProvider(t *testing.T) {
	provider := &recordingMeterProvider{}

	c, err := NewContainer(testConfig(t), zap.NewNop(), WithMeterProvider(provider))
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	assert.NotEmpty(t, provider.names, "workflow counters are created on the supplied provider")
}

func TestConvertToZapFields(t *testing.T) {
	fields := convertToZapFields("a", 1, 2, "skipped", "err", assert.AnError, "dangling")

	require.Len(t, fields, 2)
	assert.Equal(t, "a", fields[0].Key)
	assert.Equal(t, "err", fields[1].Key)
}
