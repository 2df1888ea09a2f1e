package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWorker struct {
	name     string
	startErr error
	stopErr  error
	log      *[]string
}

func (w *fakeWorker) Name() string { return w.name }

func (w *fakeWorker) Start(ctx context.Context) error {
	*w.log = append(*w.log, "start:"+w.name)
	return w.startErr
}

func (w *fakeWorker) Stop() error {
	*w.log = append(*w.log, "stop:"+w.name)
	return w.stopErr
}

func TestWorkerManager_Lifecycle(t *testing.T) {
	var log []string
	m := NewWorkerManager(zap.NewNop())
	m.Register(&fakeWorker{name: "a", log: &log})
	m.Register(&fakeWorker{name: "b", startErr: errors.New("boom"), log: &log})
	m.Register(&fakeWorker{name: "c", log: &log})

	require.NoError(t, m.StartAll(context.Background()))
	assert.True(t, m.IsRunning())
	assert.Equal(t, 3, m.Count())
	assert.Error(t, m.StartAll(context.Background()))

	assert.Equal(t, []Status{
		{Name: "a", Running: true, Detail: "running"},
		{Name: "b", Running: false, Detail: "start failed: boom"},
		{Name: "c", Running: true, Detail: "running"},
	}, m.Statuses())

	require.NoError(t, m.StopAll())
	assert.False(t, m.IsRunning())
	assert.Equal(t, []string{"start:a", "start:b", "start:c", "stop:c", "stop:a"}, log, "a worker that never started is not stopped")
	for _, st := range m.Statuses() {
		assert.False(t, st.Running, st.Name)
	}

	assert.NoError(t, m.StopAll(), "stopping twice is a no-op")
}

func TestWorkerManager_StopErrors(t *testing.T) {
	var log []string
	m := NewWorkerManager(zap.NewNop())
	m.Register(&fakeWorker{name: "a", stopErr: errors.New("stuck"), log: &log})

	require.NoError(t, m.StartAll(context.Background()))
	err := m.StopAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to stop 1 workers")
	assert.Contains(t, err.Error(), "a: stuck")
}

func TestWorkerManager_StatusesUseReporter(t *testing.T) {
	dir := t.TempDir()
	forms := filepath.Join(dir, "forms.yaml")
	require.NoError(t, os.WriteFile(forms, []byte("forms: []\n"), 0o600))
	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	touch(t, forms, base)

	syncer := &countingSyncer{err: errors.New("bad yaml")}
	reloader := NewCatalogReloader(time.Hour, []WatchedFile{{Path: forms, Target: syncer}}, zap.NewNop())

	m := NewWorkerManager(zap.NewNop())
	m.Register(reloader)
	assert.Equal(t, []Status{{Name: "catalog_reloader", Detail: "stopped"}}, m.Statuses())

	require.NoError(t, m.StartAll(context.Background()))
	defer m.StopAll()
	assert.Equal(t, "reloads: 0, failures: 0", m.Statuses()[0].Detail)

	touch(t, forms, base.Add(time.Minute))
	reloader.Poll()
	st := m.Statuses()[0]
	assert.True(t, st.Running)
	assert.Equal(t, "reloads: 0, failures: 1, last error: bad yaml", st.Detail)
}

type countingSyncer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *countingSyncer) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.err
}

func (s *countingSyncer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func touch(t *testing.T, path string, at time.Time) {
	t.Helper()
	require.NoError(t, os.Chtimes(path, at, at))
}

func TestCatalogReloader_Poll(t *testing.T) {
	dir := t.TempDir()
	forms := filepath.Join(dir, "forms.yaml")
	users := filepath.Join(dir, "directory.yaml")
	require.NoError(t, os.WriteFile(forms, []byte("forms: []\n"), 0o600))
	require.NoError(t, os.WriteFile(users, []byte("users: []\n"), 0o600))

	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	touch(t, forms, base)
	touch(t, users, base)

	formSync := &countingSyncer{}
	userSync := &countingSyncer{err: errors.New("invalid directory")}
	r := NewCatalogReloader(time.Hour, []WatchedFile{
		{Path: forms, Target: formSync},
		{Path: users, Target: userSync},
	}, zap.NewNop())

	require.NoError(t, r.Start(context.Background()))
	defer r.Stop()

	r.Poll()
	assert.Equal(t, 0, formSync.count(), "unchanged files are not reloaded")

	touch(t, forms, base.Add(time.Minute))
	touch(t, users, base.Add(time.Minute))
	r.Poll()
	assert.Equal(t, 1, formSync.count())
	assert.Equal(t, 1, userSync.count())

	r.Poll()
	assert.Equal(t, 1, formSync.count())
	assert.Equal(t, 1, userSync.count(), "a failed file waits for the next change")

	reloads, failures, lastErr := r.Stats()
	assert.Equal(t, 1, reloads)
	assert.Equal(t, 1, failures)
	assert.EqualError(t, lastErr, "invalid directory")
}

func TestCatalogReloader_StartStop(t *testing.T) {
	r := NewCatalogReloader(0, nil, zap.NewNop())
	assert.Error(t, r.Start(context.Background()))

	r = NewCatalogReloader(10*time.Millisecond, nil, zap.NewNop())
	require.NoError(t, r.Start(context.Background()))
	assert.Error(t, r.Start(context.Background()))
	require.NoError(t, r.Stop())
	require.NoError(t, r.Stop())
	assert.Equal(t, "catalog_reloader", r.Name())
}
