package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/ethics-review/internal/application/port"
	"github.com/garyjia/ethics-review/internal/domain/entity"
	"github.com/garyjia/ethics-review/internal/domain/workflow"
)

// TemplateService manages workflow templates. Stage lists are fixed at
// creation; a template only changes status afterwards.
type TemplateService interface {
	// Create stores a draft template, or a current one when promote is set
	Create(ctx context.Context, name string, stages []string, promote bool) (*entity.WorkflowTemplate, error)

	// Promote makes the template current and retires the previous current one
	Promote(ctx context.Context, id int64) (*entity.WorkflowTemplate, error)

	Get(ctx context.Context, id int64) (*entity.WorkflowTemplate, error)
	Current(ctx context.Context) (*entity.WorkflowTemplate, error)
	List(ctx context.Context) ([]*entity.WorkflowTemplate, error)
}

type templateServiceImpl struct {
	templates port.TemplateRepository
	roles     *workflow.RoleMap
	txManager port.TransactionManager
	logger    Logger
	now       func() time.Time
}

// NewTemplateService creates a new TemplateService
func NewTemplateService(
	templates port.TemplateRepository,
	roles *workflow.RoleMap,
	txManager port.TransactionManager,
	logger Logger,
) TemplateService {
	if logger == nil {
		logger = nopLogger{}
	}
	return &templateServiceImpl{
		templates: templates,
		roles:     roles,
		txManager: txManager,
		logger:    logger,
		now:       time.Now,
	}
}

// Create validates and stores a new template
func (s *templateServiceImpl) Create(ctx context.Context, name string, labels []string, promote bool) (*entity.WorkflowTemplate, error) {
	stages, err := workflow.ParseStages(labels)
	if err != nil {
		return nil, err
	}
	if missing, ok := s.roles.Covers(stages); !ok {
		return nil, fmt.Errorf("%w: no role authorizes stage %q", workflow.ErrInvalidTemplate, missing)
	}

	now := s.now()
	tpl := &entity.WorkflowTemplate{
		Name:      name,
		Stages:    stages,
		Status:    entity.TemplateStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if promote {
			if err := s.templates.RetireCurrent(txCtx); err != nil {
				return fmt.Errorf("retire current template: %w", err)
			}
			tpl.Status = entity.TemplateStatusCurrent
		}
		if err := s.templates.Create(txCtx, tpl); err != nil {
			return fmt.Errorf("create template: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create template", "name", name, "error", err)
		return nil, err
	}

	s.logger.Info("Template created",
		"template_id", tpl.ID,
		"name", tpl.Name,
		"stages", tpl.Stages.Strings(),
		"status", tpl.Status,
	)
	return tpl, nil
}

// Promote makes a template the one new applications start on
func (s *templateServiceImpl) Promote(ctx context.Context, id int64) (*entity.WorkflowTemplate, error) {
	var tpl *entity.WorkflowTemplate

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		tpl, err = s.templates.GetByID(txCtx, id)
		if err != nil {
			return fmt.Errorf("get template: %w", err)
		}
		if tpl == nil {
			return fmt.Errorf("template %d: %w", id, workflow.ErrNotFound)
		}
		if tpl.IsCurrent() {
			return nil
		}
		if tpl.Status == entity.TemplateStatusRetired {
			return fmt.Errorf("template %d is retired: %w", id, workflow.ErrConflict)
		}

		if err := s.templates.RetireCurrent(txCtx); err != nil {
			return fmt.Errorf("retire current template: %w", err)
		}
		if err := s.templates.SetStatus(txCtx, id, entity.TemplateStatusCurrent); err != nil {
			return fmt.Errorf("promote template: %w", err)
		}
		tpl.Status = entity.TemplateStatusCurrent
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to promote template", "template_id", id, "error", err)
		return nil, err
	}

	s.logger.Info("Template promoted", "template_id", id)
	return tpl, nil
}

// Get returns a template by ID
func (s *templateServiceImpl) Get(ctx context.Context, id int64) (*entity.WorkflowTemplate, error) {
	tpl, err := s.templates.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	if tpl == nil {
		return nil, fmt.Errorf("template %d: %w", id, workflow.ErrNotFound)
	}
	return tpl, nil
}

// Current returns the template new applications start on
func (s *templateServiceImpl) Current(ctx context.Context) (*entity.WorkflowTemplate, error) {
	tpl, err := s.templates.GetCurrent(ctx)
	if err != nil {
		return nil, fmt.Errorf("get current template: %w", err)
	}
	if tpl == nil {
		return nil, fmt.Errorf("no current template: %w", workflow.ErrUnavailable)
	}
	return tpl, nil
}

// List returns all templates
func (s *templateServiceImpl) List(ctx context.Context) ([]*entity.WorkflowTemplate, error) {
	list, err := s.templates.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return list, nil
}
