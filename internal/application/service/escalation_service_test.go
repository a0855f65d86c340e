package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/ethics-review/internal/application/dispatcher"
	"github.com/garyjia/ethics-review/internal/domain/entity"
	"github.com/garyjia/ethics-review/internal/domain/event"
	"github.com/garyjia/ethics-review/internal/domain/workflow"
)

var sweepNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func stalledState(appID int64, stage workflow.Stage, idle time.Duration) *entity.ProcessState {
	return &entity.ProcessState{
		ApplicationID: appID,
		TemplateID:    1,
		CurrentStage:  stage,
		UpdatedAt:     sweepNow.Add(-idle),
	}
}

type escalationFixture struct {
	states  *mockStateRepo
	apps    *mockAppStore
	events  *eventRecorder
	metrics *mockMetrics
	service EscalationService
}

type eventRecorder struct {
	mu     sync.Mutex
	events []*event.Event
	failOn int64
}

func (r *eventRecorder) handle(ctx context.Context, evt *event.Event) error {
	if evt.ApplicationID == r.failOn {
		return errors.New("notification store unavailable")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *eventRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newEscalationFixture(t *testing.T) *escalationFixture {
	t.Helper()
	f := &escalationFixture{
		states: &mockStateRepo{states: []*entity.ProcessState{
			stalledState(1, "faculty", 96*time.Hour),
			stalledState(2, "committee", 80*time.Hour),
			stalledState(3, "rectorate", 2*time.Hour),
			stalledState(4, workflow.StageDone, 200*time.Hour),
			stalledState(5, "committee", 100*time.Hour),
		}},
		apps: &mockAppStore{apps: map[int64]*entity.Application{
			1: {ID: 1, OwnerUserID: "a", Title: "One", Status: entity.ApplicationStatusUnderReview},
			2: {ID: 2, OwnerUserID: "b", Title: "Two", Status: entity.ApplicationStatusUnderReview},
			3: {ID: 3, OwnerUserID: "c", Title: "Three", Status: entity.ApplicationStatusUnderReview},
			4: {ID: 4, OwnerUserID: "d", Title: "Four", Status: entity.ApplicationStatusApproved},
			5: {ID: 5, OwnerUserID: "e", Title: "Five", Status: entity.ApplicationStatusRejected},
		}},
		events:  &eventRecorder{},
		metrics: &mockMetrics{},
	}

	d := dispatcher.NewDispatcher()
	t.Cleanup(func() { _ = d.Close() })
	d.SubscribeNamed(event.TypeStalled, "recorder", f.events.handle)

	f.service = NewEscalationService(
		f.states, f.apps,
		workflow.NewRoleMap(workflow.DefaultStageRoles(), "admin"),
		d, &mockTxManager{}, nil,
		WithConcurrency(2),
		WithEscalationMetrics(f.metrics),
		WithEscalationClock(func() time.Time { return sweepNow }),
	)
	return f
}

func TestEscalationService_ListStalled(t *testing.T) {
	f := newEscalationFixture(t)

	items, err := f.service.ListStalled(context.Background(), 72*time.Hour)

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(1), items[0].ApplicationID)
	assert.Equal(t, "faculty", items[0].Stage)
	assert.Equal(t, "faculty_admin", items[0].Role)
	assert.Equal(t, 96*time.Hour, items[0].Idle)
	assert.Equal(t, "Two", items[1].Title)
}

func TestEscalationService_ListStalledSkipsRevisionRequested(t *testing.T) {
	f := newEscalationFixture(t)
	f.apps.apps[2].Status = entity.ApplicationStatusRevisionRequested

	items, err := f.service.ListStalled(context.Background(), 72*time.Hour)

	require.NoError(t, err)
	require.Len(t, items, 1, "the owner holds a revision_requested application, not the reviewer")
	assert.Equal(t, int64(1), items[0].ApplicationID)
}

func TestEscalationService_SweepRaisesStalledEvents(t *testing.T) {
	f := newEscalationFixture(t)

	result, err := f.service.Sweep(context.Background(), 72*time.Hour)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Scanned)
	assert.Equal(t, 2, result.Notified)
	assert.Equal(t, 0, result.Failed)
	require.NotEmpty(t, result.SweepID)
	assert.Equal(t, 2, f.events.count())
	assert.Equal(t, 2, f.metrics.stalled)

	for _, evt := range f.events.events {
		assert.Equal(t, event.TypeStalled, evt.Type)
		assert.Equal(t, result.SweepID, evt.CorrelationID)
		assert.NotEqual(t, evt.ID, evt.CorrelationID)
		assert.NotEmpty(t, evt.GetPayloadString(event.KeyStage))
		assert.GreaterOrEqual(t, evt.GetPayloadFloat(event.KeyIdleHours), 72.0)
	}
}

func TestEscalationService_SweepRepeatsWithoutSuppression(t *testing.T) {
	f := newEscalationFixture(t)
	ctx := context.Background()

	first, err := f.service.Sweep(ctx, 72*time.Hour)
	require.NoError(t, err)
	second, err := f.service.Sweep(ctx, 72*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 4, f.events.count())
	assert.NotEqual(t, first.SweepID, second.SweepID)
}

func TestEscalationService_SweepItemsAreIndependent(t *testing.T) {
	f := newEscalationFixture(t)
	f.events.failOn = 1

	result, err := f.service.Sweep(context.Background(), 72*time.Hour)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Scanned)
	assert.Equal(t, 1, result.Notified)
	assert.Equal(t, 1, result.Failed)
	require.Equal(t, 1, f.events.count())
	assert.Equal(t, int64(2), f.events.events[0].ApplicationID)
}

func TestEscalationService_Errors(t *testing.T) {
	f := newEscalationFixture(t)

	_, err := f.service.Sweep(context.Background(), 0)
	assert.ErrorIs(t, err, ErrInvalidThreshold)

	f.states.err = errors.New("db locked")
	_, err = f.service.Sweep(context.Background(), time.Hour)
	assert.Error(t, err)
}
