package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/ethics-review/internal/application/port"
	"github.com/garyjia/ethics-review/internal/domain/entity"
	"github.com/garyjia/ethics-review/internal/infrastructure/persistence/sqldb"
)

// TransitionRepository implements port.TransitionRepository
type TransitionRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewTransitionRepository creates a new transition history repository
func NewTransitionRepository(db *sqldb.DB, logger *zap.Logger) *TransitionRepository {
	return &TransitionRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a decision to the history
func (r *TransitionRepository) Create(ctx context.Context, tr *entity.Transition) error {
	tr.CreatedAt = dbTime(tr.CreatedAt)

	query := r.db.Rebind(`
		INSERT INTO process_transitions (
			application_id, from_stage, to_stage, decision, actor_user_id, comment, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	err := r.db.Executor(ctx).QueryRowContext(ctx, query,
		tr.ApplicationID,
		tr.FromStage,
		tr.ToStage,
		tr.Decision,
		tr.ActorUserID,
		tr.Comment,
		tr.CreatedAt,
	).Scan(&tr.ID)
	if err != nil {
		r.logger.Error("Failed to record transition", zap.Int64("application_id", tr.ApplicationID), zap.Error(err))
		return fmt.Errorf("failed to record transition: %w", err)
	}
	return nil
}

// ListByApplicationID returns the decision history in order
func (r *TransitionRepository) ListByApplicationID(ctx context.Context, applicationID int64) ([]*entity.Transition, error) {
	query := r.db.Rebind(`
		SELECT id, application_id, from_stage, to_stage, decision, actor_user_id, comment, created_at
		FROM process_transitions
		WHERE application_id = ?
		ORDER BY id
	`)

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, applicationID)
	if err != nil {
		r.logger.Error("Failed to list transitions", zap.Int64("application_id", applicationID), zap.Error(err))
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}
	defer rows.Close()

	var history []*entity.Transition
	for rows.Next() {
		var tr entity.Transition
		if err := rows.Scan(
			&tr.ID,
			&tr.ApplicationID,
			&tr.FromStage,
			&tr.ToStage,
			&tr.Decision,
			&tr.ActorUserID,
			&tr.Comment,
			&tr.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		history = append(history, &tr)
	}
	return history, rows.Err()
}

var _ port.TransitionRepository = (*TransitionRepository)(nil)
