package port

import (
	"context"
	"time"

	"github.com/garyjia/ethics-review/internal/domain/entity"
	"github.com/garyjia/ethics-review/internal/domain/workflow"
)

// TemplateRepository defines persistence operations for WorkflowTemplate.
// Stages are written once at creation and never updated.
type TemplateRepository interface {
	Create(ctx context.Context, tpl *entity.WorkflowTemplate) error
	GetByID(ctx context.Context, id int64) (*entity.WorkflowTemplate, error)
	GetCurrent(ctx context.Context) (*entity.WorkflowTemplate, error)
	List(ctx context.Context) ([]*entity.WorkflowTemplate, error)

	// RetireCurrent demotes the current template, if any, to retired
	RetireCurrent(ctx context.Context) error

	// SetStatus changes the lifecycle status of a template
	SetStatus(ctx context.Context, id int64, status string) error
}

// ProcessStateRepository defines persistence operations for ProcessState
type ProcessStateRepository interface {
	Create(ctx context.Context, ps *entity.ProcessState) error
	GetByApplicationID(ctx context.Context, applicationID int64) (*entity.ProcessState, error)

	// GetForUpdate reads the state and locks the row until the surrounding
	// transaction ends, where the database supports row locks
	GetForUpdate(ctx context.Context, applicationID int64) (*entity.ProcessState, error)

	// UpdateStage writes current/next/updated_at only if the stored
	// current_stage still equals expected. Returns false when no row matched.
	UpdateStage(ctx context.Context, ps *entity.ProcessState, expected workflow.Stage) (bool, error)

	// Touch refreshes updated_at without moving the stage
	Touch(ctx context.Context, applicationID int64, at time.Time) error

	// ListStalled returns unfinished states not updated since cutoff
	ListStalled(ctx context.Context, cutoff time.Time) ([]*entity.ProcessState, error)
}

// TransitionRepository defines persistence operations for the decision history
type TransitionRepository interface {
	Create(ctx context.Context, tr *entity.Transition) error
	ListByApplicationID(ctx context.Context, applicationID int64) ([]*entity.Transition, error)
}

// NotificationRepository defines persistence operations for NotificationEvent
type NotificationRepository interface {
	Create(ctx context.Context, n *entity.NotificationEvent) error
	MarkDelivered(ctx context.Context, id int64, at time.Time) error
	MarkRead(ctx context.Context, userID string, id int64) (bool, error)
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*entity.NotificationEvent, error)
	ListByApplicationID(ctx context.Context, applicationID int64) ([]*entity.NotificationEvent, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	// WithTransaction runs fn in a transaction carried by the context passed to fn
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// AfterCommit defers fn until the transaction in ctx commits. It is dropped
	// on rollback and runs immediately when ctx carries no transaction.
	AfterCommit(ctx context.Context, fn func())
}
