package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Worker is a background task owned by the manager
type Worker interface {
	Start(ctx context.Context) error
	Stop() error
	Name() string
}

// Reporter is implemented by workers that can describe their progress for health output
type Reporter interface {
	Report() string
}

// Status is a point-in-time view of one worker
type Status struct {
	Name    string
	Running bool
	Detail  string
}

type slot struct {
	worker   Worker
	running  bool
	startErr error
}

// WorkerManager starts, stops and reports on the catalog workers
type WorkerManager struct {
	logger *zap.Logger

	mu      sync.RWMutex
	slots   []*slot
	started bool
	cancel  context.CancelFunc
}

// NewWorkerManager creates an empty manager
func NewWorkerManager(logger *zap.Logger) *WorkerManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkerManager{logger: logger}
}

// Register adds w. Workers registered after StartAll stay idle until the next start.
func (m *WorkerManager) Register(w Worker) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		m.logger.Warn("Worker registered after start, it will not run", zap.String("worker_name", w.Name()))
	}
	m.slots = append(m.slots, &slot{worker: w})
	m.logger.Info("Worker registered",
		zap.String("worker_name", w.Name()),
		zap.Int("total_workers", len(m.slots)))
}

// StartAll starts every registered worker. A worker that fails to start is
// recorded in its status and does not stop the others.
func (m *WorkerManager) StartAll(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("workers already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.started, m.cancel = true, cancel
	slots := append([]*slot(nil), m.slots...)
	m.mu.Unlock()

	var failed int
	for _, s := range slots {
		err := s.worker.Start(runCtx)

		m.mu.Lock()
		s.running, s.startErr = err == nil, err
		m.mu.Unlock()

		if err != nil {
			failed++
			m.logger.Error("Failed to start worker", zap.String("worker_name", s.worker.Name()), zap.Error(err))
			continue
		}
		m.logger.Info("Worker started", zap.String("worker_name", s.worker.Name()))
	}

	m.logger.Info("Workers started", zap.Int("count", len(slots)-failed), zap.Int("failed", failed))
	return nil
}

// StopAll stops the running workers in reverse registration order
func (m *WorkerManager) StopAll() error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = false
	cancel := m.cancel
	m.cancel = nil
	slots := append([]*slot(nil), m.slots...)
	m.mu.Unlock()

	cancel()

	var errs []error
	for i := len(slots) - 1; i >= 0; i-- {
		s := slots[i]
		m.mu.RLock()
		running := s.running
		m.mu.RUnlock()
		if !running {
			continue
		}

		err := s.worker.Stop()
		m.mu.Lock()
		s.running = false
		m.mu.Unlock()

		if err != nil {
			m.logger.Error("Failed to stop worker", zap.String("worker_name", s.worker.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.worker.Name(), err))
			continue
		}
		m.logger.Info("Worker stopped", zap.String("worker_name", s.worker.Name()))
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to stop %d workers: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// Count returns the number of registered workers
func (m *WorkerManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.slots)
}

// IsRunning reports whether StartAll has run without a matching StopAll
func (m *WorkerManager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.started
}

// Statuses returns one entry per registered worker, in registration order
func (m *WorkerManager) Statuses() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Status, 0, len(m.slots))
	for _, s := range m.slots {
		st := Status{Name: s.worker.Name(), Running: s.running}
		switch {
		case s.startErr != nil:
			st.Detail = "start failed: " + s.startErr.Error()
		case !s.running:
			st.Detail = "stopped"
		default:
			st.Detail = "running"
			if r, ok := s.worker.(Reporter); ok {
				st.Detail = r.Report()
			}
		}
		out = append(out, st)
	}
	return out
}
