package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"montage/internal/config"
	"montage/internal/logging"
	"montage/internal/queue"
	"montage/internal/services"
)

// Runner executes one pipeline attempt for a claimed job.
type Runner interface {
	Run(ctx context.Context, job *queue.Job) error
}

// Manager owns the worker pool that drains the job queue. Each worker claims
// one pending job at a time, runs it under the per-job timeout, and applies
// the bounded retry policy before leaving the job failed.
type Manager struct {
	store  *queue.Store
	runner Runner
	logger *slog.Logger

	workers            int
	pollInterval       time.Duration
	errorRetryInterval time.Duration
	jobTimeout         time.Duration
	retryAttempts      int
	retryBackoff       time.Duration
	retryBackoffMax    time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// ManagerOption overrides config-derived timing, used by tests.
type ManagerOption func(*Manager)

// WithJobTimeout overrides the per-job wall-clock timeout.
func WithJobTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) { m.jobTimeout = d }
}

// WithRetryBackoff overrides the retry backoff base and cap.
func WithRetryBackoff(base, max time.Duration) ManagerOption {
	return func(m *Manager) {
		m.retryBackoff = base
		m.retryBackoffMax = max
	}
}

// WithPollInterval overrides the idle queue poll interval.
func WithPollInterval(d time.Duration) ManagerOption {
	return func(m *Manager) { m.pollInterval = d }
}

// NewManager constructs a worker manager from the workflow config section.
func NewManager(cfg *config.Config, store *queue.Store, runner Runner, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		store:              store,
		runner:             runner,
		logger:             logger,
		workers:            cfg.Workflow.Workers,
		pollInterval:       time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		errorRetryInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		jobTimeout:         time.Duration(cfg.Workflow.JobTimeout) * time.Second,
		retryAttempts:      cfg.Workflow.RetryAttempts,
		retryBackoff:       time.Duration(cfg.Workflow.RetryBackoff) * time.Second,
		retryBackoffMax:    time.Duration(cfg.Workflow.RetryBackoffMax) * time.Second,
	}
	if m.workers <= 0 {
		m.workers = 1
	}
	if m.pollInterval <= 0 {
		m.pollInterval = time.Second
	}
	if m.errorRetryInterval <= 0 {
		m.errorRetryInterval = m.pollInterval
	}
	if m.retryAttempts <= 0 {
		m.retryAttempts = 1
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the worker pool.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return errors.New("worker pool already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	m.wg.Add(m.workers)
	for i := 0; i < m.workers; i++ {
		go m.runWorker(runCtx, m.logger.With(slog.Int("worker", i+1)))
	}
	m.logger.Info("worker pool started", slog.Int("workers", m.workers))
	return nil
}

// Stop terminates the pool and waits for in-flight jobs to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("worker pool stopped")
}

func (m *Manager) runWorker(ctx context.Context, logger *slog.Logger) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := m.store.ClaimNextPending(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("failed to claim next job", logging.Error(err))
			m.sleep(ctx, m.errorRetryInterval)
			continue
		}
		if job == nil {
			m.sleep(ctx, m.pollInterval)
			continue
		}

		if err := m.processJob(ctx, logger, job); err != nil && errors.Is(err, context.Canceled) {
			return
		}
	}
}

// processJob runs pipeline attempts for one claimed job until it completes,
// exhausts the retry budget, or hits a non-retryable failure. Each retry
// resets the job to the first stage and re-runs the whole pipeline.
func (m *Manager) processJob(ctx context.Context, logger *slog.Logger, job *queue.Job) error {
	jobLogger := logger.With(slog.Int64(logging.FieldJobID, job.ID))
	backoff := m.retryBackoff

	for attempt := 1; ; attempt++ {
		err := m.runAttempt(ctx, job)
		if err == nil {
			return nil
		}

		// The orchestrator persists its own failures; a timed-out or crashed
		// attempt may not have gotten that far, so enforce the terminal state
		// here before deciding on a retry.
		m.ensureFailed(job.ID, jobLogger, err)

		retryable := services.IsRetryable(err) && ctx.Err() == nil
		if !retryable || attempt >= m.retryAttempts {
			jobLogger.Error("job failed permanently",
				slog.Int(logging.FieldAttempt, attempt),
				slog.Bool("retryable", retryable),
				logging.Error(err))
			return err
		}

		jobLogger.Warn("job attempt failed, retrying",
			slog.Int(logging.FieldAttempt, attempt),
			slog.Duration("backoff", backoff),
			logging.Error(err))

		m.sleep(ctx, backoff)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		backoff *= 2
		if m.retryBackoffMax > 0 && backoff > m.retryBackoffMax {
			backoff = m.retryBackoffMax
		}

		reset, resetErr := m.store.ResetForRetry(ctx, job.ID)
		if resetErr != nil {
			jobLogger.Error("failed to reset job for retry", logging.Error(resetErr))
			return err
		}
		job = reset
	}
}

// runAttempt wraps one pipeline run in the per-job wall-clock timeout and
// classifies a deadline hit as a timeout failure.
func (m *Manager) runAttempt(ctx context.Context, job *queue.Job) error {
	attemptCtx := ctx
	cancel := context.CancelFunc(func() {})
	if m.jobTimeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, m.jobTimeout)
	}
	defer cancel()

	err := m.runner.Run(attemptCtx, job)
	if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, services.ErrTimeout) {
		return services.Wrap(services.ErrTimeout, "", "job attempt",
			fmt.Sprintf("exceeded %s wall-clock budget", m.jobTimeout), err)
	}
	return err
}

// ensureFailed guarantees the job row is terminal after a failed attempt.
func (m *Manager) ensureFailed(jobID int64, logger *slog.Logger, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stored, err := m.store.GetByID(ctx, jobID)
	if err != nil {
		logger.Error("failed to load job after failed attempt", logging.Error(err))
		return
	}
	if stored.IsTerminal() {
		return
	}
	stored.SetFailed(services.Details(cause).Message)
	if err := m.store.Update(ctx, stored); err != nil {
		logger.Error("failed to mark job failed", logging.Error(err))
	}
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
