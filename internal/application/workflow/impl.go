package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/garyjia/ethics-review/internal/application/dispatcher"
	"github.com/garyjia/ethics-review/internal/application/port"
	"github.com/garyjia/ethics-review/internal/domain/entity"
	"github.com/garyjia/ethics-review/internal/domain/event"
	domainwf "github.com/garyjia/ethics-review/internal/domain/workflow"
)

// engineImpl is the concrete implementation of Engine
type engineImpl struct {
	templates   port.TemplateRepository
	states      port.ProcessStateRepository
	transitions port.TransitionRepository
	apps        port.ApplicationStore
	users       port.UserDirectory
	txManager   port.TransactionManager
	roles       *domainwf.RoleMap

	dispatcher dispatcher.Dispatcher
	metrics    port.Metrics
	logger     Logger
	now        func() time.Time

	// Templates are immutable once referenced, so cached copies stay valid
	mu          sync.RWMutex
	cache       map[int64]*entity.WorkflowTemplate
	lastAccess  map[int64]time.Time
	cacheExpiry time.Duration
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher. Events are dispatched
// synchronously inside the transition's transaction.
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithLogger sets the engine logger
func WithLogger(l Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = l
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(m port.Metrics) EngineOption {
	return func(e *engineImpl) {
		e.metrics = m
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// WithCacheExpiry sets how long a loaded template stays cached
func WithCacheExpiry(expiry time.Duration) EngineOption {
	return func(e *engineImpl) {
		e.cacheExpiry = expiry
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	templates port.TemplateRepository,
	states port.ProcessStateRepository,
	transitions port.TransitionRepository,
	apps port.ApplicationStore,
	users port.UserDirectory,
	txManager port.TransactionManager,
	roles *domainwf.RoleMap,
	opts ...EngineOption,
) Engine {
	e := &engineImpl{
		templates:   templates,
		states:      states,
		transitions: transitions,
		apps:        apps,
		users:       users,
		txManager:   txManager,
		roles:       roles,
		logger:      nopLogger{},
		now:         time.Now,
		cache:       make(map[int64]*entity.WorkflowTemplate),
		lastAccess:  make(map[int64]time.Time),
		cacheExpiry: 30 * time.Minute,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Initialize positions the application at the first stage of the current template
func (e *engineImpl) Initialize(ctx context.Context, applicationID int64) (*entity.ProcessState, error) {
	var state *entity.ProcessState
	created := false

	err := e.txManager.WithTransaction(context.WithoutCancel(ctx), func(txCtx context.Context) error {
		app, err := e.apps.GetApplication(txCtx, applicationID)
		if err != nil {
			return fmt.Errorf("get application: %w", err)
		}
		if app == nil {
			return fmt.Errorf("application %d: %w", applicationID, domainwf.ErrNotFound)
		}

		existing, err := e.states.GetByApplicationID(txCtx, applicationID)
		if err != nil {
			return fmt.Errorf("get process state: %w", err)
		}
		if existing != nil {
			state = existing
			return nil
		}

		tpl, err := e.templates.GetCurrent(txCtx)
		if err != nil {
			return fmt.Errorf("get current template: %w", err)
		}
		if tpl == nil {
			return fmt.Errorf("no current template: %w", domainwf.ErrUnavailable)
		}

		state = entity.NewProcessState(applicationID, tpl, e.now())
		if err := e.states.Create(txCtx, state); err != nil {
			return fmt.Errorf("create process state: %w", err)
		}

		if err := e.apps.SetStatus(txCtx, applicationID, entity.ApplicationStatusUnderReview); err != nil {
			return fmt.Errorf("set application status: %w", err)
		}

		created = true
		return e.emit(txCtx, event.NewEvent(event.TypeSubmitted, applicationID, map[string]interface{}{
			event.KeyOwnerUserID: app.OwnerUserID,
			event.KeyTitle:       app.Title,
			event.KeyStage:       state.CurrentStage.String(),
			event.KeyToStage:     state.CurrentStage.String(),
		}))
	})
	if err != nil {
		e.logger.Error("Failed to initialize workflow", "application_id", applicationID, "error", err)
		return nil, err
	}

	if created {
		e.logger.Info("Workflow initialized",
			"application_id", applicationID,
			"template_id", state.TemplateID,
			"current_stage", state.CurrentStage,
		)
	}

	return state, nil
}

// Advance applies a reviewer decision to the current stage
func (e *engineImpl) Advance(ctx context.Context, applicationID int64, actorUserID string, decision domainwf.Trigger, opts ...AdvanceOption) (*AdvanceResult, error) {
	if !decision.IsValid() {
		return nil, fmt.Errorf("%w: %q", domainwf.ErrInvalidDecision, decision)
	}

	o := advanceOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	var result *AdvanceResult

	// Once the row is locked the transition runs to completion
	err := e.txManager.WithTransaction(context.WithoutCancel(ctx), func(txCtx context.Context) error {
		ps, err := e.states.GetForUpdate(txCtx, applicationID)
		if err != nil {
			return fmt.Errorf("get process state: %w", err)
		}
		if ps == nil {
			return fmt.Errorf("process state for application %d: %w", applicationID, domainwf.ErrNotFound)
		}

		if ps.IsDone() {
			return fmt.Errorf("application %d already completed review: %w", applicationID, domainwf.ErrConflict)
		}
		if o.expectedStage != "" && o.expectedStage != ps.CurrentStage {
			return fmt.Errorf("application %d is at %s, not %s: %w", applicationID, ps.CurrentStage, o.expectedStage, domainwf.ErrConflict)
		}

		role, err := e.users.GetRole(txCtx, actorUserID)
		if err != nil {
			return fmt.Errorf("get actor role: %w", err)
		}
		// The override role passes every stage guard, so two overriding
		// approvals would otherwise both land, one stage apart
		if o.expectedStage == "" && e.roles.ActsByOverride(role, ps.CurrentStage) {
			return fmt.Errorf("user %q acts through the override role and must name the stage: %w", actorUserID, domainwf.ErrConflict)
		}

		app, err := e.apps.GetApplication(txCtx, applicationID)
		if err != nil {
			return fmt.Errorf("get application: %w", err)
		}
		if app == nil {
			return fmt.Errorf("application %d: %w", applicationID, domainwf.ErrNotFound)
		}

		tpl, err := e.template(txCtx, ps.TemplateID)
		if err != nil {
			return err
		}

		authorized := func(context.Context) bool {
			return e.roles.Authorizes(role, ps.CurrentStage)
		}
		machine, err := domainwf.BuildStageMachine(tpl.Stages, ps.CurrentStage, authorized)
		if err != nil {
			return fmt.Errorf("build stage machine for template %d: %w", tpl.ID, err)
		}

		if err := machine.Fire(txCtx, decision); err != nil {
			switch {
			case errors.Is(err, domainwf.ErrGuardFailed):
				return fmt.Errorf("user %q (role %q) cannot act on stage %s: %w", actorUserID, role, ps.CurrentStage, domainwf.ErrForbidden)
			case errors.Is(err, domainwf.ErrInvalidTransition):
				return fmt.Errorf("%v: %w", err, domainwf.ErrConflict)
			default:
				return err
			}
		}

		if app.Status == entity.ApplicationStatusRevisionRequested || app.Status == entity.ApplicationStatusRejected {
			return fmt.Errorf("application %d is %s: %w", applicationID, app.Status, domainwf.ErrConflict)
		}

		result, err = e.apply(txCtx, app, ps, tpl, machine.State(), actorUserID, decision, o.comment)
		return err
	})
	if err != nil {
		e.logger.Error("Advance failed",
			"application_id", applicationID,
			"actor_user_id", actorUserID,
			"decision", decision,
			"error", err,
		)
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.TransitionRecorded(ctx, decision.String(), result.FromStage.String())
	}

	e.logger.Info("Advance recorded",
		"application_id", applicationID,
		"actor_user_id", actorUserID,
		"decision", decision,
		"from_stage", result.FromStage,
		"current_stage", result.State.CurrentStage,
		"application_status", result.ApplicationStatus,
	)

	return result, nil
}

// apply writes the decision's effects. Runs inside the advance transaction.
func (e *engineImpl) apply(
	ctx context.Context,
	app *entity.Application,
	ps *entity.ProcessState,
	tpl *entity.WorkflowTemplate,
	target domainwf.Stage,
	actorUserID string,
	decision domainwf.Trigger,
	comment string,
) (*AdvanceResult, error) {
	now := e.now()
	from := ps.CurrentStage
	result := &AdvanceResult{
		State:     ps,
		Decision:  decision,
		FromStage: from,
	}

	payload := map[string]interface{}{
		event.KeyOwnerUserID: app.OwnerUserID,
		event.KeyTitle:       app.Title,
		event.KeyActorUserID: actorUserID,
		event.KeyFromStage:   from.String(),
		event.KeyStage:       from.String(),
		event.KeyComment:     comment,
	}

	var evt *event.Event
	switch decision {
	case domainwf.TriggerApprove:
		updated := ps.Clone()
		updated.SetStage(tpl.Stages, target)
		updated.UpdatedAt = now

		ok, err := e.states.UpdateStage(ctx, updated, from)
		if err != nil {
			return nil, fmt.Errorf("update process state: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("application %d moved concurrently: %w", app.ID, domainwf.ErrConflict)
		}
		result.State = updated

		result.ApplicationStatus = entity.ApplicationStatusUnderReview
		if updated.IsDone() {
			result.ApplicationStatus = entity.ApplicationStatusApproved
			result.Archived = true
			if err := e.apps.SetArchived(ctx, app.ID, true); err != nil {
				return nil, fmt.Errorf("archive application: %w", err)
			}
		}

		payload[event.KeyToStage] = updated.CurrentStage.String()
		evt = event.NewEvent(event.TypeAdvanced, app.ID, payload)

	case domainwf.TriggerReject:
		result.ApplicationStatus = entity.ApplicationStatusRejected
		payload[event.KeyToStage] = from.String()
		evt = event.NewEvent(event.TypeRejected, app.ID, payload)

	case domainwf.TriggerRequestRevision:
		result.ApplicationStatus = entity.ApplicationStatusRevisionRequested
		payload[event.KeyToStage] = from.String()
		evt = event.NewEvent(event.TypeRevisionRequested, app.ID, payload)
	}

	if err := e.apps.SetStatus(ctx, app.ID, result.ApplicationStatus); err != nil {
		return nil, fmt.Errorf("set application status: %w", err)
	}

	if err := e.transitions.Create(ctx, &entity.Transition{
		ApplicationID: app.ID,
		FromStage:     from.String(),
		ToStage:       result.State.CurrentStage.String(),
		Decision:      decision.String(),
		ActorUserID:   actorUserID,
		Comment:       comment,
		CreatedAt:     now,
	}); err != nil {
		return nil, fmt.Errorf("record transition: %w", err)
	}

	if err := e.emit(ctx, evt); err != nil {
		return nil, err
	}

	return result, nil
}

// Resubmit returns an application sent back for revision to review
func (e *engineImpl) Resubmit(ctx context.Context, applicationID int64, actorUserID string) (*entity.ProcessState, error) {
	var state *entity.ProcessState

	err := e.txManager.WithTransaction(context.WithoutCancel(ctx), func(txCtx context.Context) error {
		ps, err := e.states.GetForUpdate(txCtx, applicationID)
		if err != nil {
			return fmt.Errorf("get process state: %w", err)
		}
		if ps == nil {
			return fmt.Errorf("process state for application %d: %w", applicationID, domainwf.ErrNotFound)
		}

		app, err := e.apps.GetApplication(txCtx, applicationID)
		if err != nil {
			return fmt.Errorf("get application: %w", err)
		}
		if app == nil {
			return fmt.Errorf("application %d: %w", applicationID, domainwf.ErrNotFound)
		}
		if app.OwnerUserID != actorUserID {
			return fmt.Errorf("only the owner may resubmit application %d: %w", applicationID, domainwf.ErrForbidden)
		}
		if app.Status != entity.ApplicationStatusRevisionRequested {
			return fmt.Errorf("application %d is %s, not awaiting revision: %w", applicationID, app.Status, domainwf.ErrConflict)
		}

		now := e.now()
		if err := e.states.Touch(txCtx, applicationID, now); err != nil {
			return fmt.Errorf("touch process state: %w", err)
		}
		if err := e.apps.SetStatus(txCtx, applicationID, entity.ApplicationStatusUnderReview); err != nil {
			return fmt.Errorf("set application status: %w", err)
		}
		if err := e.transitions.Create(txCtx, &entity.Transition{
			ApplicationID: applicationID,
			FromStage:     ps.CurrentStage.String(),
			ToStage:       ps.CurrentStage.String(),
			Decision:      "resubmit",
			ActorUserID:   actorUserID,
			CreatedAt:     now,
		}); err != nil {
			return fmt.Errorf("record transition: %w", err)
		}

		ps.UpdatedAt = now
		state = ps

		return e.emit(txCtx, event.NewEvent(event.TypeResubmitted, applicationID, map[string]interface{}{
			event.KeyOwnerUserID: app.OwnerUserID,
			event.KeyTitle:       app.Title,
			event.KeyActorUserID: actorUserID,
			event.KeyStage:       ps.CurrentStage.String(),
			event.KeyToStage:     ps.CurrentStage.String(),
		}))
	})
	if err != nil {
		e.logger.Error("Resubmit failed", "application_id", applicationID, "error", err)
		return nil, err
	}

	e.logger.Info("Application resubmitted", "application_id", applicationID, "current_stage", state.CurrentStage)
	return state, nil
}

// Decisions evaluates the stage guard for the actor without changing anything
func (e *engineImpl) Decisions(ctx context.Context, applicationID int64, actorUserID string) (*DecisionSet, error) {
	ps, err := e.GetState(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	set := &DecisionSet{Stage: ps.CurrentStage, Decisions: []domainwf.Trigger{}}
	if ps.IsDone() {
		return set, nil
	}

	app, err := e.apps.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("get application: %w", err)
	}
	if app == nil {
		return nil, fmt.Errorf("application %d: %w", applicationID, domainwf.ErrNotFound)
	}
	if app.Status == entity.ApplicationStatusRevisionRequested || app.Status == entity.ApplicationStatusRejected {
		return set, nil
	}

	role, err := e.users.GetRole(ctx, actorUserID)
	if err != nil {
		return nil, fmt.Errorf("get actor role: %w", err)
	}
	tpl, err := e.template(ctx, ps.TemplateID)
	if err != nil {
		return nil, err
	}

	machine, err := domainwf.BuildStageMachine(tpl.Stages, ps.CurrentStage, func(context.Context) bool {
		return e.roles.Authorizes(role, ps.CurrentStage)
	})
	if err != nil {
		return nil, fmt.Errorf("build stage machine for template %d: %w", tpl.ID, err)
	}

	set.Decisions = machine.PermittedTriggers(ctx)
	set.StageRequired = len(set.Decisions) > 0 && e.roles.ActsByOverride(role, ps.CurrentStage)
	return set, nil
}

// GetState returns the application's process state
func (e *engineImpl) GetState(ctx context.Context, applicationID int64) (*entity.ProcessState, error) {
	ps, err := e.states.GetByApplicationID(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("get process state: %w", err)
	}
	if ps == nil {
		return nil, fmt.Errorf("process state for application %d: %w", applicationID, domainwf.ErrNotFound)
	}
	return ps, nil
}

// History returns the recorded decisions for an application
func (e *engineImpl) History(ctx context.Context, applicationID int64) ([]*entity.Transition, error) {
	if _, err := e.GetState(ctx, applicationID); err != nil {
		return nil, err
	}
	history, err := e.transitions.ListByApplicationID(ctx, applicationID)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	return history, nil
}

// template loads a template by ID, serving repeated reads from the cache
func (e *engineImpl) template(ctx context.Context, id int64) (*entity.WorkflowTemplate, error) {
	now := e.now()

	e.mu.RLock()
	tpl, ok := e.cache[id]
	last := e.lastAccess[id]
	e.mu.RUnlock()

	if ok && now.Sub(last) < e.cacheExpiry {
		e.mu.Lock()
		e.lastAccess[id] = now
		e.mu.Unlock()
		return tpl, nil
	}

	tpl, err := e.templates.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get template %d: %w", id, err)
	}
	if tpl == nil {
		return nil, fmt.Errorf("template %d: %w", id, domainwf.ErrNotFound)
	}

	e.mu.Lock()
	e.cache[id] = tpl
	e.lastAccess[id] = now
	e.mu.Unlock()

	return tpl, nil
}

// emit hands the event to subscribers within the caller's transaction
func (e *engineImpl) emit(ctx context.Context, evt *event.Event) error {
	if e.dispatcher == nil {
		return nil
	}
	if err := e.dispatcher.Dispatch(ctx, evt); err != nil {
		return fmt.Errorf("dispatch %s: %w", evt.Type, err)
	}
	return nil
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
