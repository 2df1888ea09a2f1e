package worker

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Syncer re-reads a file-backed catalog, keeping the old contents on error
type Syncer interface {
	Sync() error
}

// WatchedFile pairs a catalog with the file it is loaded from
type WatchedFile struct {
	Path   string
	Target Syncer
}

// CatalogReloader polls file modification times and re-syncs catalogs
// whose file changed since the last successful load.
type CatalogReloader struct {
	interval time.Duration
	files    []WatchedFile
	logger   *zap.Logger

	mu        sync.Mutex
	modTimes  map[string]time.Time
	cancel    context.CancelFunc
	done      chan struct{}
	reloads   int
	failures  int
	lastError error
}

// NewCatalogReloader creates a reloader polling every interval
func NewCatalogReloader(interval time.Duration, files []WatchedFile, logger *zap.Logger) *CatalogReloader {
	return &CatalogReloader{
		interval: interval,
		files:    files,
		logger:   logger,
		modTimes: make(map[string]time.Time, len(files)),
	}
}

// Name implements Worker
func (r *CatalogReloader) Name() string {
	return "catalog_reloader"
}

// Start records the current modification times and begins polling
func (r *CatalogReloader) Start(ctx context.Context) error {
	if r.interval <= 0 {
		return fmt.Errorf("reload interval must be positive")
	}

	r.mu.Lock()
	if r.done != nil {
		r.mu.Unlock()
		return fmt.Errorf("catalog reloader already running")
	}
	for _, f := range r.files {
		if mt, err := modTime(f.Path); err == nil {
			r.modTimes[f.Path] = mt
		}
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	done := r.done
	r.mu.Unlock()

	go r.run(ctx, done)
	return nil
}

// Stop halts polling and waits for the loop to exit
func (r *CatalogReloader) Stop() error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// Stats returns the number of successful reloads and failures so far
func (r *CatalogReloader) Stats() (reloads, failures int, lastErr error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reloads, r.failures, r.lastError
}

// Report implements Reporter
func (r *CatalogReloader) Report() string {
	reloads, failures, lastErr := r.Stats()
	msg := fmt.Sprintf("reloads: %d, failures: %d", reloads, failures)
	if lastErr != nil {
		msg += ", last error: " + lastErr.Error()
	}
	return msg
}

func (r *CatalogReloader) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Poll()
		}
	}
}

// Poll checks every watched file once and syncs the ones that changed
func (r *CatalogReloader) Poll() {
	for _, f := range r.files {
		mt, err := modTime(f.Path)
		if err != nil {
			r.logger.Warn("Cannot stat catalog file", zap.String("path", f.Path), zap.Error(err))
			continue
		}

		r.mu.Lock()
		changed := !mt.Equal(r.modTimes[f.Path])
		r.mu.Unlock()
		if !changed {
			continue
		}

		err = f.Target.Sync()

		// a failed file is retried only after it changes again
		r.mu.Lock()
		r.modTimes[f.Path] = mt
		if err != nil {
			r.failures++
			r.lastError = err
		} else {
			r.reloads++
		}
		r.mu.Unlock()

		if err != nil {
			r.logger.Error("Catalog reload failed, keeping previous contents",
				zap.String("path", f.Path), zap.Error(err))
			continue
		}
		r.logger.Info("Catalog reloaded", zap.String("path", f.Path))
	}
}

func modTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}
