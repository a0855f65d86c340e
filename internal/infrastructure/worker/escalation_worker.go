package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/ethics-review/internal/application/service"
)

// Sweeper runs one escalation pass
type Sweeper interface {
	Sweep(ctx context.Context, threshold time.Duration) (*service.SweepResult, error)
}

// EscalationWorkerConfig holds configuration for the escalation worker
type EscalationWorkerConfig struct {
	Interval   time.Duration
	Threshold  time.Duration
	RunOnStart bool
}

// DefaultEscalationWorkerConfig returns default configuration
func DefaultEscalationWorkerConfig() EscalationWorkerConfig {
	return EscalationWorkerConfig{
		Interval:  time.Hour,
		Threshold: 72 * time.Hour,
	}
}

// EscalationStatus is a snapshot of the worker's progress
type EscalationStatus struct {
	Running    bool                 `json:"running"`
	Sweeps     int                  `json:"sweeps"`
	LastRun    time.Time            `json:"last_run,omitempty"`
	LastResult *service.SweepResult `json:"last_result,omitempty"`
	LastError  string               `json:"last_error,omitempty"`
}

// EscalationWorker runs the escalation sweep on a fixed interval
type EscalationWorker struct {
	config  EscalationWorkerConfig
	sweeper Sweeper
	logger  *zap.Logger

	mu        sync.RWMutex
	cancel    context.CancelFunc
	done      chan struct{}
	isRunning bool
	status    EscalationStatus
}

// NewEscalationWorker creates a new escalation worker
func NewEscalationWorker(config EscalationWorkerConfig, sweeper Sweeper, logger *zap.Logger) *EscalationWorker {
	defaults := DefaultEscalationWorkerConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.Threshold <= 0 {
		config.Threshold = defaults.Threshold
	}
	return &EscalationWorker{
		config:  config,
		sweeper: sweeper,
		logger:  logger,
	}
}

// Start begins the sweep loop
func (w *EscalationWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("escalation worker already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.isRunning = true
	w.status.Running = true
	w.mu.Unlock()

	w.logger.Info("EscalationWorker started",
		zap.Duration("interval", w.config.Interval),
		zap.Duration("threshold", w.config.Threshold))

	go w.loop(loopCtx, w.done)

	return nil
}

// Stop cancels the loop and waits for an in-flight sweep to return
func (w *EscalationWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	w.status.Running = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.logger.Info("EscalationWorker stopped", zap.Int("sweeps", w.Status().Sweeps))
	return nil
}

// Name returns the worker name for identification
func (w *EscalationWorker) Name() string {
	return "EscalationWorker"
}

// Status returns a snapshot of the worker's progress
func (w *EscalationWorker) Status() EscalationStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status
}

func (w *EscalationWorker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	if w.config.RunOnStart {
		w.runOnce(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Escalation loop context cancelled")
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// runOnce performs one sweep, recording the outcome
func (w *EscalationWorker) runOnce(ctx context.Context) {
	result, err := w.sweeper.Sweep(ctx, w.config.Threshold)

	w.mu.Lock()
	w.status.Sweeps++
	w.status.LastRun = time.Now()
	if err != nil {
		w.status.LastError = err.Error()
	} else {
		w.status.LastError = ""
		w.status.LastResult = result
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("Escalation sweep failed", zap.Error(err))
		return
	}
	if result.Scanned > 0 {
		w.logger.Info("Escalation sweep completed",
			zap.Int("scanned", result.Scanned),
			zap.Int("notified", result.Notified),
			zap.Int("failed", result.Failed))
	}
}
