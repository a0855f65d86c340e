package workflow

import (
	"context"

	"github.com/garyjia/ethics-review/internal/domain/entity"
	domainwf "github.com/garyjia/ethics-review/internal/domain/workflow"
)

// Engine moves applications through their frozen review template
type Engine interface {
	// Initialize positions a submitted application at the first stage of the
	// current template. An application that already has a process state gets
	// it back unchanged.
	Initialize(ctx context.Context, applicationID int64) (*entity.ProcessState, error)

	// Advance applies a reviewer decision to the application's current stage
	Advance(ctx context.Context, applicationID int64, actorUserID string, decision domainwf.Trigger, opts ...AdvanceOption) (*AdvanceResult, error)

	// Resubmit returns an application sent back for revision to review at
	// the stage that requested it
	Resubmit(ctx context.Context, applicationID int64, actorUserID string) (*entity.ProcessState, error)

	// Decisions returns what the actor may decide at the application's
	// current stage
	Decisions(ctx context.Context, applicationID int64, actorUserID string) (*DecisionSet, error)

	// GetState returns the application's process state
	GetState(ctx context.Context, applicationID int64) (*entity.ProcessState, error)

	// History returns the recorded decisions, oldest first
	History(ctx context.Context, applicationID int64) ([]*entity.Transition, error)
}

// AdvanceResult describes the outcome of a successful Advance
type AdvanceResult struct {
	State             *entity.ProcessState `json:"state"`
	Decision          domainwf.Trigger     `json:"decision"`
	FromStage         domainwf.Stage       `json:"from_stage"`
	ApplicationStatus string               `json:"application_status"`
	Archived          bool                 `json:"archived"`
}

// DecisionSet lists the decisions open to one actor
type DecisionSet struct {
	Stage     domainwf.Stage     `json:"stage"`
	Decisions []domainwf.Trigger `json:"decisions"`

	// StageRequired is set for override-role actors, whose advance must name
	// the stage with WithExpectedStage
	StageRequired bool `json:"stage_required"`
}

// AdvanceOption tunes a single Advance call
type AdvanceOption func(*advanceOptions)

type advanceOptions struct {
	expectedStage domainwf.Stage
	comment       string
}

// WithExpectedStage fails the advance with ErrConflict unless the application
// is still at the stage the reviewer acted on. Required for actors that only
// reach the stage through the override role.
func WithExpectedStage(stage string) AdvanceOption {
	return func(o *advanceOptions) {
		o.expectedStage = domainwf.NewStage(stage)
	}
}

// WithComment attaches a reviewer comment to the decision
func WithComment(comment string) AdvanceOption {
	return func(o *advanceOptions) {
		o.comment = comment
	}
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}
