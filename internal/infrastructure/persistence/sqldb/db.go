package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/garyjia/ethics-review/internal/application/port"
	"github.com/garyjia/ethics-review/pkg/database"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const txKey contextKey = "tx"

// txState is the transaction carried in a context plus its commit hooks
type txState struct {
	tx *sql.Tx

	mu    sync.Mutex
	after []func()
	done  bool
}

func (s *txState) finish() []func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	hooks := s.after
	s.after = nil
	s.done = true
	return hooks
}

// DB wraps the database connection and implements port.TransactionManager.
// Repositories take a *DB and run every statement through Executor so they
// join the caller's transaction.
type DB struct {
	*sql.DB
	dialect database.Dialect
	logger  *zap.Logger
}

// NewDB creates a new transaction-aware database wrapper
func NewDB(db *database.DB, logger *zap.Logger) *DB {
	return &DB{
		DB:      db.DB,
		dialect: db.Dialect,
		logger:  logger,
	}
}

// Dialect returns the SQL flavor of the connection
func (db *DB) Dialect() database.Dialect {
	return db.dialect
}

// Rebind rewrites ? placeholders for the connection's dialect
func (db *DB) Rebind(query string) string {
	return db.dialect.Rebind(query)
}

// WithTransaction executes fn within a transaction. Nested calls reuse the
// outer transaction.
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if extractTx(ctx) != nil {
		return fn(ctx)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		db.logger.Error("Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	state := &txState{tx: tx}
	txCtx := context.WithValue(ctx, txKey, state)

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			state.finish()
			db.logger.Error("Transaction panicked, rolled back", zap.Any("panic", p))
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		state.finish()
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		state.finish()
		db.logger.Error("Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	// Hooks see a finished state, so their statements go to the pool
	for _, hook := range state.finish() {
		hook()
	}

	return nil
}

// AfterCommit implements port.TransactionManager
func (db *DB) AfterCommit(ctx context.Context, fn func()) {
	state := extractTx(ctx)
	if state == nil {
		fn()
		return
	}

	state.mu.Lock()
	state.after = append(state.after, fn)
	state.mu.Unlock()
}

// InTransaction reports whether ctx carries a transaction
func InTransaction(ctx context.Context) bool {
	return extractTx(ctx) != nil
}

func extractTx(ctx context.Context) *txState {
	state, ok := ctx.Value(txKey).(*txState)
	if !ok {
		return nil
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	if state.done {
		return nil
	}
	return state
}

// Executor returns the transaction in ctx, or the pool when there is none
func (db *DB) Executor(ctx context.Context) Executor {
	if state := extractTx(ctx); state != nil {
		return state.tx
	}
	return db.DB
}

// Executor covers both *sql.DB and *sql.Tx
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Verify interface compliance
var _ port.TransactionManager = (*DB)(nil)
