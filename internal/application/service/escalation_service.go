package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/garyjia/ethics-review/internal/application/dispatcher"
	"github.com/garyjia/ethics-review/internal/application/port"
	"github.com/garyjia/ethics-review/internal/domain/entity"
	"github.com/garyjia/ethics-review/internal/domain/event"
	"github.com/garyjia/ethics-review/internal/domain/workflow"
)

// ErrInvalidThreshold is returned for a non-positive stall threshold
var ErrInvalidThreshold = errors.New("stall threshold must be positive")

// SweepResult summarizes one escalation sweep
type SweepResult struct {
	// SweepID is the correlation ID shared by every stalled event of the sweep
	SweepID  string `json:"sweep_id"`
	Scanned  int    `json:"scanned"`
	Notified int    `json:"notified"`
	Failed   int    `json:"failed"`
}

// EscalationService detects applications idle at one stage for too long
type EscalationService interface {
	// Sweep raises a stalled event for every stalled application. Items are
	// handled independently; one failure does not stop the rest.
	Sweep(ctx context.Context, threshold time.Duration) (*SweepResult, error)

	// ListStalled returns the applications Sweep would escalate
	ListStalled(ctx context.Context, threshold time.Duration) ([]*entity.StalledItem, error)
}

type escalationServiceImpl struct {
	states     port.ProcessStateRepository
	apps       port.ApplicationStore
	roles      *workflow.RoleMap
	dispatcher dispatcher.Dispatcher
	txManager  port.TransactionManager
	metrics    port.Metrics
	logger     Logger

	concurrency int
	now         func() time.Time
}

// EscalationOption configures the escalation service
type EscalationOption func(*escalationServiceImpl)

// WithConcurrency bounds how many stalled items are handled at once
func WithConcurrency(n int) EscalationOption {
	return func(s *escalationServiceImpl) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithEscalationMetrics sets the metrics recorder
func WithEscalationMetrics(m port.Metrics) EscalationOption {
	return func(s *escalationServiceImpl) {
		s.metrics = m
	}
}

// WithEscalationClock overrides the time source
func WithEscalationClock(now func() time.Time) EscalationOption {
	return func(s *escalationServiceImpl) {
		s.now = now
	}
}

// NewEscalationService creates a new EscalationService
func NewEscalationService(
	states port.ProcessStateRepository,
	apps port.ApplicationStore,
	roles *workflow.RoleMap,
	d dispatcher.Dispatcher,
	txManager port.TransactionManager,
	logger Logger,
	opts ...EscalationOption,
) EscalationService {
	if logger == nil {
		logger = nopLogger{}
	}
	s := &escalationServiceImpl{
		states:      states,
		apps:        apps,
		roles:       roles,
		dispatcher:  d,
		txManager:   txManager,
		logger:      logger,
		concurrency: 4,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep escalates every stalled application
func (s *escalationServiceImpl) Sweep(ctx context.Context, threshold time.Duration) (*SweepResult, error) {
	items, err := s.ListStalled(ctx, threshold)
	if err != nil {
		return nil, err
	}

	sweepID := uuid.NewString()

	var notified, failed atomic.Int64
	p := pool.New().WithMaxGoroutines(s.concurrency)
	for _, item := range items {
		p.Go(func() {
			if err := s.raise(ctx, sweepID, item); err != nil {
				failed.Add(1)
				s.logger.Error("Failed to escalate stalled application",
					"application_id", item.ApplicationID,
					"stage", item.Stage,
					"error", err,
				)
				return
			}
			notified.Add(1)
		})
	}
	p.Wait()

	result := &SweepResult{
		SweepID:  sweepID,
		Scanned:  len(items),
		Notified: int(notified.Load()),
		Failed:   int(failed.Load()),
	}

	if s.metrics != nil {
		s.metrics.StalledDetected(ctx, result.Notified)
	}

	s.logger.Info("Escalation sweep finished",
		"sweep_id", sweepID,
		"threshold", threshold.String(),
		"scanned", result.Scanned,
		"notified", result.Notified,
		"failed", result.Failed,
	)
	return result, nil
}

// raise emits the stalled event for one item in its own transaction
func (s *escalationServiceImpl) raise(ctx context.Context, sweepID string, item *entity.StalledItem) error {
	evt := event.NewEventWithCorrelation(event.TypeStalled, item.ApplicationID, map[string]interface{}{
		event.KeyOwnerUserID: item.OwnerUserID,
		event.KeyTitle:       item.Title,
		event.KeyStage:       item.Stage,
		event.KeyIdleHours:   item.Idle.Hours(),
	}, sweepID)

	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.dispatcher.Dispatch(txCtx, evt); err != nil {
			return fmt.Errorf("dispatch %s: %w", evt.Type, err)
		}
		return nil
	})
}

// ListStalled returns unfinished applications idle longer than threshold.
// Applications waiting on their owner or already rejected are left out.
func (s *escalationServiceImpl) ListStalled(ctx context.Context, threshold time.Duration) ([]*entity.StalledItem, error) {
	if threshold <= 0 {
		return nil, ErrInvalidThreshold
	}

	now := s.now()
	states, err := s.states.ListStalled(ctx, now.Add(-threshold))
	if err != nil {
		return nil, fmt.Errorf("list stalled process states: %w", err)
	}

	items := make([]*entity.StalledItem, 0, len(states))
	for _, ps := range states {
		app, err := s.apps.GetApplication(ctx, ps.ApplicationID)
		if err != nil {
			return nil, fmt.Errorf("get application %d: %w", ps.ApplicationID, err)
		}
		if app == nil {
			continue
		}
		// Rejected applications are closed and revision_requested ones wait on
		// their owner, so no reviewer is holding either of them up
		if app.Status == entity.ApplicationStatusRejected || app.Status == entity.ApplicationStatusRevisionRequested {
			continue
		}

		role, _ := s.roles.RoleFor(ps.CurrentStage)
		items = append(items, &entity.StalledItem{
			ApplicationID: ps.ApplicationID,
			OwnerUserID:   app.OwnerUserID,
			Title:         app.Title,
			Stage:         ps.CurrentStage.String(),
			Role:          role.String(),
			UpdatedAt:     ps.UpdatedAt,
			Idle:          now.Sub(ps.UpdatedAt),
		})
	}
	return items, nil
}
