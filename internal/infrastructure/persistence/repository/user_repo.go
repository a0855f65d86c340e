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

// UserRepository implements port.UserDirectory over the users table.
// Roles are stored normalized.
type UserRepository struct {
	db     *sqldb.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqldb.DB, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert inserts or replaces a user
func (r *UserRepository) Upsert(ctx context.Context, u *entity.User) error {
	u.Role = workflow.Normalize(u.Role)
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	u.CreatedAt = dbTime(u.CreatedAt)

	query := r.db.Rebind(`
		INSERT INTO users (id, name, email, lark_user_id, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			lark_user_id = excluded.lark_user_id,
			role = excluded.role
	`)

	_, err := r.db.Executor(ctx).ExecContext(ctx, query, u.ID, u.Name, u.Email, u.LarkUserID, u.Role, u.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to upsert user", zap.String("user_id", u.ID), zap.Error(err))
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// GetByID retrieves a user, nil when absent
func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	query := r.db.Rebind(`SELECT id, name, email, lark_user_id, role, created_at FROM users WHERE id = ?`)

	var u entity.User
	err := r.db.Executor(ctx).QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.Name, &u.Email, &u.LarkUserID, &u.Role, &u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.String("user_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

// GetRole returns the user's role, empty for unknown users
func (r *UserRepository) GetRole(ctx context.Context, userID string) (string, error) {
	u, err := r.GetByID(ctx, userID)
	if err != nil || u == nil {
		return "", err
	}
	return u.Role, nil
}

// ListUsersWithRole returns every user holding the role
func (r *UserRepository) ListUsersWithRole(ctx context.Context, role string) ([]*entity.User, error) {
	query := r.db.Rebind(`
		SELECT id, name, email, lark_user_id, role, created_at
		FROM users
		WHERE role = ?
		ORDER BY id
	`)

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, workflow.Normalize(role))
	if err != nil {
		r.logger.Error("Failed to list users by role", zap.String("role", role), zap.Error(err))
		return nil, fmt.Errorf("failed to list users by role: %w", err)
	}
	defer rows.Close()

	var users []*entity.User
	for rows.Next() {
		var u entity.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.LarkUserID, &u.Role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

// GetContact returns addressing details for delivery, nil for unknown users
func (r *UserRepository) GetContact(ctx context.Context, userID string) (*entity.Recipient, error) {
	u, err := r.GetByID(ctx, userID)
	if err != nil || u == nil {
		return nil, err
	}
	return &entity.Recipient{
		UserID:     u.ID,
		Name:       u.Name,
		Email:      u.Email,
		LarkUserID: u.LarkUserID,
	}, nil
}

var _ port.UserDirectory = (*UserRepository)(nil)
