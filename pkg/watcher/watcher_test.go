package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) record(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
	return nil
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func testWatcher(t *testing.T, dir string, rec *recorder) *Watcher {
	t.Helper()
	w, err := New(Config{
		Dir:        dir,
		Debounce:   20 * time.Millisecond,
		OnDocument: rec.record,
		Logger:     zerolog.New(os.Stdout).Level(zerolog.Disabled),
	})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	t.Cleanup(func() { w.Stop() })
	return w
}

func TestNew_RequiresDir(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestStart_CreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ingest")
	rec := &recorder{}
	testWatcher(t, dir, rec)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestWatcher_DeliversNewFile(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	testWatcher(t, dir, rec)

	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("meeting notes"), 0o644))

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, path, rec.snapshot()[0])
}

func TestWatcher_DebouncesWriteBurst(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	testWatcher(t, dir, rec)

	path := filepath.Join(dir, "draft.md")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("revision"), 0o644))
		time.Sleep(2 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) >= 1
	}, 2*time.Second, 10*time.Millisecond)

	// The burst settles into a single delivery
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, rec.snapshot(), 1)
}

func TestWatcher_IgnoresHiddenAndTempFiles(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	testWatcher(t, dir, rec)

	for _, name := range []string{".hidden.txt", "draft.md~", "upload.part", "buffer.swp", "scratch.tmp"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "real.txt"), []byte("kept"), 0o644))

	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, filepath.Join(dir, "real.txt"), rec.snapshot()[0])
}

func TestStop_CancelsPendingDeliveries(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := testWatcher(t, dir, rec)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "late.txt"), []byte("x"), 0o644))
	require.NoError(t, w.Stop())

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, rec.snapshot())

	// Stop is idempotent
	assert.NoError(t, w.Stop())
}
