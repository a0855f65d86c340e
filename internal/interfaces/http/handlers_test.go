package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/ethics-review/internal/application/service"
	"github.com/garyjia/ethics-review/internal/application/workflow"
	"github.com/garyjia/ethics-review/internal/domain/entity"
	domainwf "github.com/garyjia/ethics-review/internal/domain/workflow"
)

type noopLogger struct{}

func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}

type stubEngine struct {
	advanceErr   error
	lastActor    string
	lastDecision domainwf.Trigger
	lastOpts     int
}

func (e *stubEngine) Initialize(ctx context.Context, id int64) (*entity.ProcessState, error) {
	if id == 404 {
		return nil, fmt.Errorf("application %d: %w", id, domainwf.ErrNotFound)
	}
	if id == 503 {
		return nil, fmt.Errorf("no current template: %w", domainwf.ErrUnavailable)
	}
	next := domainwf.Stage("committee")
	return &entity.ProcessState{ApplicationID: id, TemplateID: 1, CurrentStage: "faculty", NextStage: &next}, nil
}

func (e *stubEngine) Advance(ctx context.Context, id int64, actor string, decision domainwf.Trigger, opts ...workflow.AdvanceOption) (*workflow.AdvanceResult, error) {
	e.lastActor, e.lastDecision, e.lastOpts = actor, decision, len(opts)
	if e.advanceErr != nil {
		return nil, e.advanceErr
	}
	return &workflow.AdvanceResult{
		State:             &entity.ProcessState{ApplicationID: id, CurrentStage: domainwf.StageDone},
		Decision:          decision,
		FromStage:         "rectorate",
		ApplicationStatus: entity.ApplicationStatusApproved,
		Archived:          true,
	}, nil
}

func (e *stubEngine) Resubmit(ctx context.Context, id int64, actor string) (*entity.ProcessState, error) {
	return nil, fmt.Errorf("only the owner may resubmit: %w", domainwf.ErrForbidden)
}

func (e *stubEngine) GetState(ctx context.Context, id int64) (*entity.ProcessState, error) {
	return nil, fmt.Errorf("process state for application %d: %w", id, domainwf.ErrNotFound)
}

func (e *stubEngine) Decisions(ctx context.Context, id int64, actor string) (*workflow.DecisionSet, error) {
	if id == 404 {
		return nil, fmt.Errorf("process state for application %d: %w", id, domainwf.ErrNotFound)
	}
	set := &workflow.DecisionSet{Stage: "faculty", Decisions: []domainwf.Trigger{}}
	if actor == "root" {
		set.Decisions = []domainwf.Trigger{domainwf.TriggerApprove, domainwf.TriggerReject, domainwf.TriggerRequestRevision}
		set.StageRequired = true
	}
	return set, nil
}

func (e *stubEngine) History(ctx context.Context, id int64) ([]*entity.Transition, error) {
	return []*entity.Transition{{ApplicationID: id, FromStage: "faculty", ToStage: "committee", Decision: "approve"}}, nil
}

type stubTemplates struct {
	service.TemplateService
	created []string
}

func (s *stubTemplates) Create(ctx context.Context, name string, stages []string, promote bool) (*entity.WorkflowTemplate, error) {
	parsed, err := domainwf.ParseStages(stages)
	if err != nil {
		return nil, err
	}
	s.created = append(s.created, name)
	return &entity.WorkflowTemplate{ID: 2, Name: name, Stages: parsed, Status: entity.TemplateStatusDraft}, nil
}

func (s *stubTemplates) Current(ctx context.Context) (*entity.WorkflowTemplate, error) {
	return nil, fmt.Errorf("no current template: %w", domainwf.ErrUnavailable)
}

type stubNotifications struct {
	service.NotificationService
	listedFor string
	unread    bool
}

func (s *stubNotifications) ListForUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*entity.NotificationEvent, error) {
	s.listedFor, s.unread = userID, unreadOnly
	return []*entity.NotificationEvent{{ID: 1, UserID: userID, Message: "advanced"}}, nil
}

func (s *stubNotifications) MarkRead(ctx context.Context, userID string, id int64) error {
	if id != 1 {
		return fmt.Errorf("notification %d: %w", id, domainwf.ErrNotFound)
	}
	return nil
}

type stubEscalation struct {
	service.EscalationService
	threshold time.Duration
}

func (s *stubEscalation) Sweep(ctx context.Context, threshold time.Duration) (*service.SweepResult, error) {
	s.threshold = threshold
	return &service.SweepResult{Scanned: 3, Notified: 3}, nil
}

type stubReports struct{}

func (stubReports) StallReport(ctx context.Context, threshold time.Duration) (*service.StallReport, error) {
	return &service.StallReport{Name: "stalled.xlsx", Content: []byte("PK-xlsx"), Items: 1}, nil
}

type stubUsers struct {
	roles map[string]string
}

func (u *stubUsers) GetRole(ctx context.Context, userID string) (string, error) {
	return u.roles[userID], nil
}

func (u *stubUsers) ListUsersWithRole(ctx context.Context, role string) ([]*entity.User, error) {
	return nil, nil
}

func (u *stubUsers) GetContact(ctx context.Context, userID string) (*entity.Recipient, error) {
	return nil, nil
}

type testServer struct {
	engine        *stubEngine
	templates     *stubTemplates
	notifications *stubNotifications
	escalation    *stubEscalation
	router        http.Handler
}

func newTestServer() *testServer {
	ts := &testServer{
		engine:        &stubEngine{},
		templates:     &stubTemplates{},
		notifications: &stubNotifications{},
		escalation:    &stubEscalation{},
	}
	cfg := DefaultServerConfig()
	srv := NewServer(cfg, Services{
		Engine:        ts.engine,
		Templates:     ts.templates,
		Notifications: ts.notifications,
		Escalation:    ts.escalation,
		Reports:       stubReports{},
		Users:         &stubUsers{roles: map[string]string{"root": "Admin", "rec": "rector"}},
		Roles:         domainwf.NewRoleMap(domainwf.DefaultStageRoles(), "admin"),
	}, noopLogger{})
	ts.router = srv.Router()
	return ts
}

func (ts *testServer) do(method, path, user, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(actorHeader, user)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer()

	w := ts.do(http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode(t, w).Success)
}

func TestAPI_RequiresActor(t *testing.T) {
	ts := newTestServer()

	w := ts.do(http.MethodGet, "/api/applications/1/workflow", "", "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdvance(t *testing.T) {
	ts := newTestServer()

	w := ts.do(http.MethodPost, "/api/applications/7/advance", "rec",
		`{"decision":"Approved","expected_stage":"rectorate","comment":"fine"}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "rec", ts.engine.lastActor)
	assert.Equal(t, domainwf.TriggerApprove, ts.engine.lastDecision)
	assert.Equal(t, 2, ts.engine.lastOpts)

	data := decode(t, w).Data.(map[string]interface{})
	assert.Equal(t, true, data["archived"])
	state := data["state"].(map[string]interface{})
	assert.Equal(t, "done", state["current_stage"])
	assert.Nil(t, state["next_stage"])
}

func TestAdvance_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("x: %w", domainwf.ErrNotFound), http.StatusNotFound},
		{"forbidden", fmt.Errorf("x: %w", domainwf.ErrForbidden), http.StatusForbidden},
		{"conflict", fmt.Errorf("x: %w", domainwf.ErrConflict), http.StatusConflict},
		{"unavailable", fmt.Errorf("x: %w", domainwf.ErrUnavailable), http.StatusServiceUnavailable},
		{"internal", fmt.Errorf("disk I/O error"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer()
			ts.engine.advanceErr = tt.err

			w := ts.do(http.MethodPost, "/api/applications/7/advance", "rec", `{"decision":"approve"}`)

			assert.Equal(t, tt.want, w.Code)
			resp := decode(t, w)
			assert.False(t, resp.Success)
			if tt.want == http.StatusInternalServerError {
				assert.Equal(t, "internal error", resp.Error)
			}
		})
	}
}

func TestAdvance_BadInput(t *testing.T) {
	ts := newTestServer()

	tests := []struct {
		path string
		body string
	}{
		{"/api/applications/abc/advance", `{"decision":"approve"}`},
		{"/api/applications/0/advance", `{"decision":"approve"}`},
		{"/api/applications/7/advance", `{}`},
		{"/api/applications/7/advance", `not json`},
		{"/api/applications/7/advance", `{"decision":"skip"}`},
	}

	for _, tt := range tests {
		w := ts.do(http.MethodPost, tt.path, "rec", tt.body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "%s %s", tt.path, tt.body)
	}
	assert.Empty(t, ts.engine.lastActor, "engine must not be called")
}

func TestWorkflowRoutes(t *testing.T) {
	ts := newTestServer()

	assert.Equal(t, http.StatusOK, ts.do(http.MethodPost, "/api/applications/7/workflow", "ada", "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodPost, "/api/applications/404/workflow", "ada", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, ts.do(http.MethodPost, "/api/applications/503/workflow", "ada", "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/applications/7/workflow", "ada", "").Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/applications/7/workflow/history", "ada", "").Code)
	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodPost, "/api/applications/7/resubmit", "rec", "").Code)

	w := ts.do(http.MethodGet, "/api/applications/7/workflow/decisions", "root", "")
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w).Data.(map[string]interface{})
	assert.Equal(t, "faculty", data["stage"])
	assert.Equal(t, []interface{}{"approve", "reject", "request_revision"}, data["decisions"])
	assert.Equal(t, true, data["stage_required"])
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/applications/404/workflow/decisions", "ada", "").Code)
}

func TestTemplateRoutes(t *testing.T) {
	ts := newTestServer()

	w := ts.do(http.MethodPost, "/api/templates", "rec", `{"name":"v2","stages":["faculty"]}`)
	assert.Equal(t, http.StatusForbidden, w.Code, "only administrators manage templates")

	w = ts.do(http.MethodPost, "/api/templates", "root", `{"name":"v2","stages":["faculty","committee"]}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, []string{"v2"}, ts.templates.created)

	w = ts.do(http.MethodPost, "/api/templates", "root", `{"name":"bad","stages":["faculty","Faculty"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodGet, "/api/templates/current", "rec", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestNotificationRoutes(t *testing.T) {
	ts := newTestServer()

	w := ts.do(http.MethodGet, "/api/notifications?unread=true", "ada", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ada", ts.notifications.listedFor)
	assert.True(t, ts.notifications.unread)

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/api/notifications?limit=0", "ada", "").Code)
	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodPost, "/api/notifications/1/read", "ada", "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodPost, "/api/notifications/2/read", "ada", "").Code)
}

func TestAdminRoutes(t *testing.T) {
	ts := newTestServer()

	assert.Equal(t, http.StatusForbidden, ts.do(http.MethodPost, "/api/admin/sweep", "rec", "").Code)

	w := ts.do(http.MethodPost, "/api/admin/sweep?threshold=48h", "root", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 48*time.Hour, ts.escalation.threshold)

	w = ts.do(http.MethodPost, "/api/admin/sweep", "root", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 72*time.Hour, ts.escalation.threshold)

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/admin/sweep?threshold=soon", "root", "").Code)

	w = ts.do(http.MethodGet, "/api/reports/stalled.xlsx", "root", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "spreadsheetml")
	assert.Equal(t, "PK-xlsx", w.Body.String())
}
