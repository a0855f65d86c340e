package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/ethics-review/internal/application/port"
	"github.com/garyjia/ethics-review/internal/domain/entity"
	"github.com/garyjia/ethics-review/internal/domain/workflow"
	"github.com/garyjia/ethics-review/internal/infrastructure/persistence/sqldb"
)

// TemplateRepository implements port.TemplateRepository
type TemplateRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewTemplateRepository creates a new template repository
func NewTemplateRepository(db *sqldb.DB, logger *zap.Logger) *TemplateRepository {
	return &TemplateRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts the template and its ordered stages
func (r *TemplateRepository) Create(ctx context.Context, tpl *entity.WorkflowTemplate) error {
	now := dbTime(time.Now())
	if tpl.Status == "" {
		tpl.Status = entity.TemplateStatusDraft
	}

	return r.db.WithTransaction(ctx, func(ctx context.Context) error {
		exec := r.db.Executor(ctx)

		query := r.db.Rebind(`
			INSERT INTO workflow_templates (name, status, created_at, updated_at)
			VALUES (?, ?, ?, ?)
			RETURNING id
		`)
		if err := exec.QueryRowContext(ctx, query, tpl.Name, tpl.Status, now, now).Scan(&tpl.ID); err != nil {
			r.logger.Error("Failed to create template", zap.String("name", tpl.Name), zap.Error(err))
			return fmt.Errorf("failed to create template: %w", err)
		}

		stageQuery := r.db.Rebind(`INSERT INTO workflow_template_stages (template_id, position, name) VALUES (?, ?, ?)`)
		for i, s := range tpl.Stages {
			if _, err := exec.ExecContext(ctx, stageQuery, tpl.ID, i, string(s)); err != nil {
				r.logger.Error("Failed to create template stage",
					zap.Int64("template_id", tpl.ID),
					zap.String("stage", string(s)),
					zap.Error(err))
				return fmt.Errorf("failed to create template stage: %w", err)
			}
		}

		tpl.CreatedAt = now
		tpl.UpdatedAt = now
		return nil
	})
}

// GetByID retrieves a template with its stages
func (r *TemplateRepository) GetByID(ctx context.Context, id int64) (*entity.WorkflowTemplate, error) {
	return r.getOne(ctx, "id = ?", id)
}

// GetCurrent retrieves the current template, nil when none is current
func (r *TemplateRepository) GetCurrent(ctx context.Context) (*entity.WorkflowTemplate, error) {
	return r.getOne(ctx, "status = ?", entity.TemplateStatusCurrent)
}

func (r *TemplateRepository) getOne(ctx context.Context, where string, arg interface{}) (*entity.WorkflowTemplate, error) {
	query := r.db.Rebind(`
		SELECT id, name, status, created_at, updated_at
		FROM workflow_templates
		WHERE ` + where)

	var tpl entity.WorkflowTemplate
	err := r.db.Executor(ctx).QueryRowContext(ctx, query, arg).Scan(
		&tpl.ID,
		&tpl.Name,
		&tpl.Status,
		&tpl.CreatedAt,
		&tpl.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get template", zap.Any("key", arg), zap.Error(err))
		return nil, fmt.Errorf("failed to get template: %w", err)
	}

	stages, err := r.loadStages(ctx, tpl.ID)
	if err != nil {
		return nil, err
	}
	tpl.Stages = stages

	return &tpl, nil
}

// List returns all templates, newest first
func (r *TemplateRepository) List(ctx context.Context) ([]*entity.WorkflowTemplate, error) {
	query := `
		SELECT id, name, status, created_at, updated_at
		FROM workflow_templates
		ORDER BY id DESC
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list templates", zap.Error(err))
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var templates []*entity.WorkflowTemplate
	for rows.Next() {
		var tpl entity.WorkflowTemplate
		if err := rows.Scan(&tpl.ID, &tpl.Name, &tpl.Status, &tpl.CreatedAt, &tpl.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, &tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate templates: %w", err)
	}

	for _, tpl := range templates {
		stages, err := r.loadStages(ctx, tpl.ID)
		if err != nil {
			return nil, err
		}
		tpl.Stages = stages
	}

	return templates, nil
}

func (r *TemplateRepository) loadStages(ctx context.Context, templateID int64) (workflow.Stages, error) {
	query := r.db.Rebind(`
		SELECT name FROM workflow_template_stages
		WHERE template_id = ?
		ORDER BY position
	`)

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to load template stages: %w", err)
	}
	defer rows.Close()

	var stages workflow.Stages
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan template stage: %w", err)
		}
		stages = append(stages, workflow.Stage(name))
	}
	return stages, rows.Err()
}

// RetireCurrent demotes the current template, if any, to retired
func (r *TemplateRepository) RetireCurrent(ctx context.Context) error {
	query := r.db.Rebind(`UPDATE workflow_templates SET status = ?, updated_at = ? WHERE status = ?`)

	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		entity.TemplateStatusRetired, dbTime(time.Now()), entity.TemplateStatusCurrent)
	if err != nil {
		r.logger.Error("Failed to retire current template", zap.Error(err))
		return fmt.Errorf("failed to retire current template: %w", err)
	}
	return nil
}

// SetStatus changes the lifecycle status of a template
func (r *TemplateRepository) SetStatus(ctx context.Context, id int64, status string) error {
	query := r.db.Rebind(`UPDATE workflow_templates SET status = ?, updated_at = ? WHERE id = ?`)

	res, err := r.db.Executor(ctx).ExecContext(ctx, query, status, dbTime(time.Now()), id)
	if err != nil {
		r.logger.Error("Failed to set template status",
			zap.Int64("id", id),
			zap.String("status", status),
			zap.Error(err))
		return fmt.Errorf("failed to set template status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("template %d: %w", id, workflow.ErrNotFound)
	}
	return nil
}

var _ port.TemplateRepository = (*TemplateRepository)(nil)
