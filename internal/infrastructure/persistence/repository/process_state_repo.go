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

// ProcessStateRepository implements port.ProcessStateRepository
type ProcessStateRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewProcessStateRepository creates a new process state repository
func NewProcessStateRepository(db *sqldb.DB, logger *zap.Logger) *ProcessStateRepository {
	return &ProcessStateRepository{
		db:     db,
		logger: logger,
	}
}

const processStateColumns = `application_id, template_id, current_stage, next_stage, created_at, updated_at`

// Create inserts a new process state
func (r *ProcessStateRepository) Create(ctx context.Context, ps *entity.ProcessState) error {
	ps.CreatedAt = dbTime(ps.CreatedAt)
	ps.UpdatedAt = dbTime(ps.UpdatedAt)

	query := r.db.Rebind(`
		INSERT INTO process_states (` + processStateColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		ps.ApplicationID,
		ps.TemplateID,
		string(ps.CurrentStage),
		nullString(ps.Next()),
		ps.CreatedAt,
		ps.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create process state", zap.Int64("application_id", ps.ApplicationID), zap.Error(err))
		return fmt.Errorf("failed to create process state: %w", err)
	}
	return nil
}

// GetByApplicationID retrieves the process state of an application
func (r *ProcessStateRepository) GetByApplicationID(ctx context.Context, applicationID int64) (*entity.ProcessState, error) {
	return r.get(ctx, applicationID, "")
}

// GetForUpdate retrieves the process state and locks the row on dialects with row locks
func (r *ProcessStateRepository) GetForUpdate(ctx context.Context, applicationID int64) (*entity.ProcessState, error) {
	return r.get(ctx, applicationID, r.db.Dialect().LockClause())
}

func (r *ProcessStateRepository) get(ctx context.Context, applicationID int64, lock string) (*entity.ProcessState, error) {
	query := r.db.Rebind(`SELECT ` + processStateColumns + ` FROM process_states WHERE application_id = ?` + lock)

	ps, err := scanProcessState(r.db.Executor(ctx).QueryRowContext(ctx, query, applicationID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get process state", zap.Int64("application_id", applicationID), zap.Error(err))
		return nil, fmt.Errorf("failed to get process state: %w", err)
	}
	return ps, nil
}

// UpdateStage writes the new position if the stored stage still equals expected
func (r *ProcessStateRepository) UpdateStage(ctx context.Context, ps *entity.ProcessState, expected workflow.Stage) (bool, error) {
	ps.UpdatedAt = dbTime(ps.UpdatedAt)

	query := r.db.Rebind(`
		UPDATE process_states
		SET current_stage = ?, next_stage = ?, updated_at = ?
		WHERE application_id = ? AND current_stage = ?
	`)

	res, err := r.db.Executor(ctx).ExecContext(ctx, query,
		string(ps.CurrentStage),
		nullString(ps.Next()),
		ps.UpdatedAt,
		ps.ApplicationID,
		string(expected),
	)
	if err != nil {
		r.logger.Error("Failed to update process state", zap.Int64("application_id", ps.ApplicationID), zap.Error(err))
		return false, fmt.Errorf("failed to update process state: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

// Touch refreshes updated_at without moving the stage
func (r *ProcessStateRepository) Touch(ctx context.Context, applicationID int64, at time.Time) error {
	query := r.db.Rebind(`UPDATE process_states SET updated_at = ? WHERE application_id = ?`)

	if _, err := r.db.Executor(ctx).ExecContext(ctx, query, dbTime(at), applicationID); err != nil {
		r.logger.Error("Failed to touch process state", zap.Int64("application_id", applicationID), zap.Error(err))
		return fmt.Errorf("failed to touch process state: %w", err)
	}
	return nil
}

// ListStalled returns unfinished states not updated since cutoff, oldest first
func (r *ProcessStateRepository) ListStalled(ctx context.Context, cutoff time.Time) ([]*entity.ProcessState, error) {
	query := r.db.Rebind(`
		SELECT ` + processStateColumns + `
		FROM process_states
		WHERE current_stage <> ? AND updated_at < ?
		ORDER BY updated_at, application_id
	`)

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, string(workflow.StageDone), dbTime(cutoff))
	if err != nil {
		r.logger.Error("Failed to list stalled process states", zap.Error(err))
		return nil, fmt.Errorf("failed to list stalled process states: %w", err)
	}
	defer rows.Close()

	var states []*entity.ProcessState
	for rows.Next() {
		ps, err := scanProcessState(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan process state: %w", err)
		}
		states = append(states, ps)
	}
	return states, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProcessState(row rowScanner) (*entity.ProcessState, error) {
	var ps entity.ProcessState
	var current string
	var next sql.NullString

	if err := row.Scan(
		&ps.ApplicationID,
		&ps.TemplateID,
		&current,
		&next,
		&ps.CreatedAt,
		&ps.UpdatedAt,
	); err != nil {
		return nil, err
	}

	ps.CurrentStage = workflow.Stage(current)
	if next.Valid {
		n := workflow.Stage(next.String)
		ps.NextStage = &n
	}
	ps.CreatedAt = ps.CreatedAt.UTC()
	ps.UpdatedAt = ps.UpdatedAt.UTC()

	return &ps, nil
}

var _ port.ProcessStateRepository = (*ProcessStateRepository)(nil)
