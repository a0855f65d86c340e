package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/garyjia/ethics-review/internal/domain/entity"
	"github.com/garyjia/ethics-review/internal/domain/workflow"
)

type mockNotificationRepo struct {
	mu      sync.Mutex
	records []*entity.NotificationEvent
	nextID  int64
}

func (m *mockNotificationRepo) Create(ctx context.Context, n *entity.NotificationEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	n.ID = m.nextID
	c := *n
	m.records = append(m.records, &c)
	return nil
}

func (m *mockNotificationRepo) MarkDelivered(ctx context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ID == id {
			r.Delivered = true
			r.DeliveredAt = &at
		}
	}
	return nil
}

func (m *mockNotificationRepo) MarkRead(ctx context.Context, userID string, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ID == id && r.UserID == userID {
			r.Read = true
			return true, nil
		}
	}
	return false, nil
}

func (m *mockNotificationRepo) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*entity.NotificationEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.NotificationEvent
	for _, r := range m.records {
		if r.UserID == userID && (!unreadOnly || !r.Read) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockNotificationRepo) ListByApplicationID(ctx context.Context, applicationID int64) ([]*entity.NotificationEvent, error) {
	return nil, nil
}

func (m *mockNotificationRepo) all() []*entity.NotificationEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.NotificationEvent, len(m.records))
	copy(out, m.records)
	return out
}

func (m *mockNotificationRepo) recipients() []string {
	var ids []string
	for _, r := range m.all() {
		ids = append(ids, r.UserID)
	}
	sort.Strings(ids)
	return ids
}

type mockUserDir struct {
	users []*entity.User
}

func (m *mockUserDir) GetRole(ctx context.Context, userID string) (string, error) {
	for _, u := range m.users {
		if u.ID == userID {
			return u.Role, nil
		}
	}
	return "", nil
}

func (m *mockUserDir) ListUsersWithRole(ctx context.Context, role string) ([]*entity.User, error) {
	var out []*entity.User
	for _, u := range m.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockUserDir) GetContact(ctx context.Context, userID string) (*entity.Recipient, error) {
	for _, u := range m.users {
		if u.ID == userID {
			return &entity.Recipient{UserID: u.ID, Name: u.Name, Email: u.Email}, nil
		}
	}
	return nil, nil
}

type mockChannel struct {
	mu   sync.Mutex
	sent []entity.Recipient
	err  error
}

func (m *mockChannel) Name() string { return "mock" }

func (m *mockChannel) Send(ctx context.Context, to entity.Recipient, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to)
	return nil
}

func (m *mockChannel) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type hookList struct {
	hooks []func()
}

type txKey struct{}

// mockTxManager runs after-commit hooks only when fn succeeds
type mockTxManager struct{}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*hookList); ok {
		return fn(ctx)
	}
	list := &hookList{}
	if err := fn(context.WithValue(ctx, txKey{}, list)); err != nil {
		return err
	}
	for _, h := range list.hooks {
		h()
	}
	return nil
}

func (m *mockTxManager) AfterCommit(ctx context.Context, fn func()) {
	if list, ok := ctx.Value(txKey{}).(*hookList); ok {
		list.hooks = append(list.hooks, fn)
		return
	}
	fn()
}

type mockMetrics struct {
	mu        sync.Mutex
	delivered map[bool]int
	stalled   int
}

func (m *mockMetrics) TransitionRecorded(ctx context.Context, decision, stage string) {}

func (m *mockMetrics) NotificationDelivered(ctx context.Context, channel string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.delivered == nil {
		m.delivered = make(map[bool]int)
	}
	m.delivered[ok]++
}

func (m *mockMetrics) StalledDetected(ctx context.Context, count int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stalled += count
}

type mockTemplateRepo struct {
	templates map[int64]*entity.WorkflowTemplate
	nextID    int64
}

func newMockTemplateRepo() *mockTemplateRepo {
	return &mockTemplateRepo{templates: make(map[int64]*entity.WorkflowTemplate)}
}

func (m *mockTemplateRepo) Create(ctx context.Context, tpl *entity.WorkflowTemplate) error {
	m.nextID++
	tpl.ID = m.nextID
	c := *tpl
	m.templates[tpl.ID] = &c
	return nil
}

func (m *mockTemplateRepo) GetByID(ctx context.Context, id int64) (*entity.WorkflowTemplate, error) {
	if tpl, ok := m.templates[id]; ok {
		c := *tpl
		return &c, nil
	}
	return nil, nil
}

func (m *mockTemplateRepo) GetCurrent(ctx context.Context) (*entity.WorkflowTemplate, error) {
	for id, tpl := range m.templates {
		if tpl.IsCurrent() {
			return m.GetByID(ctx, id)
		}
	}
	return nil, nil
}

func (m *mockTemplateRepo) List(ctx context.Context) ([]*entity.WorkflowTemplate, error) {
	var out []*entity.WorkflowTemplate
	for i := int64(1); i <= m.nextID; i++ {
		if tpl, ok := m.templates[i]; ok {
			out = append(out, tpl)
		}
	}
	return out, nil
}

func (m *mockTemplateRepo) RetireCurrent(ctx context.Context) error {
	for _, tpl := range m.templates {
		if tpl.IsCurrent() {
			tpl.Status = entity.TemplateStatusRetired
		}
	}
	return nil
}

func (m *mockTemplateRepo) SetStatus(ctx context.Context, id int64, status string) error {
	tpl, ok := m.templates[id]
	if !ok {
		return errors.New("template not found")
	}
	tpl.Status = status
	return nil
}

type mockStateRepo struct {
	states []*entity.ProcessState
	err    error
}

func (m *mockStateRepo) Create(ctx context.Context, ps *entity.ProcessState) error { return nil }

func (m *mockStateRepo) GetByApplicationID(ctx context.Context, id int64) (*entity.ProcessState, error) {
	return nil, nil
}

func (m *mockStateRepo) GetForUpdate(ctx context.Context, id int64) (*entity.ProcessState, error) {
	return nil, nil
}

func (m *mockStateRepo) UpdateStage(ctx context.Context, ps *entity.ProcessState, expected workflow.Stage) (bool, error) {
	return false, nil
}

func (m *mockStateRepo) Touch(ctx context.Context, id int64, at time.Time) error { return nil }

func (m *mockStateRepo) ListStalled(ctx context.Context, cutoff time.Time) ([]*entity.ProcessState, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []*entity.ProcessState
	for _, ps := range m.states {
		if !ps.IsDone() && ps.UpdatedAt.Before(cutoff) {
			out = append(out, ps)
		}
	}
	return out, nil
}

type mockAppStore struct {
	apps map[int64]*entity.Application
}

func (m *mockAppStore) GetApplication(ctx context.Context, id int64) (*entity.Application, error) {
	return m.apps[id], nil
}

func (m *mockAppStore) SetStatus(ctx context.Context, id int64, status string) error { return nil }

func (m *mockAppStore) SetArchived(ctx context.Context, id int64, archived bool) error { return nil }
