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

// ApplicationRepository implements port.ApplicationStore over the applications table
type ApplicationRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewApplicationRepository creates a new application repository
func NewApplicationRepository(db *sqldb.DB, logger *zap.Logger) *ApplicationRepository {
	return &ApplicationRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts an application
func (r *ApplicationRepository) Create(ctx context.Context, app *entity.Application) error {
	now := dbTime(time.Now())
	if app.Status == "" {
		app.Status = entity.ApplicationStatusSubmitted
	}

	query := r.db.Rebind(`
		INSERT INTO applications (owner_user_id, title, status, is_archived, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	err := r.db.Executor(ctx).QueryRowContext(ctx, query,
		app.OwnerUserID,
		app.Title,
		app.Status,
		app.IsArchived,
		now,
		now,
	).Scan(&app.ID)
	if err != nil {
		r.logger.Error("Failed to create application", zap.String("owner_user_id", app.OwnerUserID), zap.Error(err))
		return fmt.Errorf("failed to create application: %w", err)
	}

	app.CreatedAt = now
	app.UpdatedAt = now
	return nil
}

// GetApplication retrieves an application, nil when absent
func (r *ApplicationRepository) GetApplication(ctx context.Context, id int64) (*entity.Application, error) {
	query := r.db.Rebind(`
		SELECT id, owner_user_id, title, status, is_archived, created_at, updated_at
		FROM applications
		WHERE id = ?
	`)

	var app entity.Application
	err := r.db.Executor(ctx).QueryRowContext(ctx, query, id).Scan(
		&app.ID,
		&app.OwnerUserID,
		&app.Title,
		&app.Status,
		&app.IsArchived,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get application", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	return &app, nil
}

// SetStatus updates the application status
func (r *ApplicationRepository) SetStatus(ctx context.Context, id int64, status string) error {
	query := r.db.Rebind(`UPDATE applications SET status = ?, updated_at = ? WHERE id = ?`)
	return r.update(ctx, id, "status", query, status, dbTime(time.Now()), id)
}

// SetArchived flips the archive flag
func (r *ApplicationRepository) SetArchived(ctx context.Context, id int64, archived bool) error {
	query := r.db.Rebind(`UPDATE applications SET is_archived = ?, updated_at = ? WHERE id = ?`)
	return r.update(ctx, id, "archive flag", query, archived, dbTime(time.Now()), id)
}

func (r *ApplicationRepository) update(ctx context.Context, id int64, what, query string, args ...interface{}) error {
	res, err := r.db.Executor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update application", zap.Int64("id", id), zap.String("field", what), zap.Error(err))
		return fmt.Errorf("failed to update application %s: %w", what, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("application %d: %w", id, workflow.ErrNotFound)
	}
	return nil
}

var _ port.ApplicationStore = (*ApplicationRepository)(nil)
