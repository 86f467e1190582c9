package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitSignal(t *testing.T, n *Notifier) bool {
	t.Helper()
	select {
	case <-n.C():
		return true
	case <-time.After(2 * time.Second):
		return false
	}
}

func TestNotifier_SignalsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "np.txt")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0644))

	n, err := NewNotifier(path, nil)
	require.NoError(t, err)
	require.NoError(t, n.Start(context.Background()))
	defer n.Stop()

	require.NoError(t, os.WriteFile(path, []byte("Artist - Title"), 0644))
	assert.True(t, waitSignal(t, n), "expected a change signal")
}

func TestNotifier_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "np.txt")

	n, err := NewNotifier(path, nil)
	require.NoError(t, err)
	require.NoError(t, n.Start(context.Background()))
	defer n.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0644))

	select {
	case <-n.C():
		t.Fatal("unexpected signal for unrelated file")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestNotifier_SignalsCoalesce(t *testing.T) {
	n, err := NewNotifier(filepath.Join(t.TempDir(), "np.txt"), nil)
	require.NoError(t, err)
	defer n.Stop()

	n.signal()
	n.signal()
	n.signal()

	assert.Len(t, n.ch, 1)
}

func TestNotifier_StopIsIdempotent(t *testing.T) {
	n, err := NewNotifier(filepath.Join(t.TempDir(), "np.txt"), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, n.Start(ctx))
	cancel()

	require.NoError(t, n.Stop())
	assert.NoError(t, n.Stop())
}

func TestNotifier_StopWithoutStartClosesWatcher(t *testing.T) {
	dir := t.TempDir()
	n, err := NewNotifier(filepath.Join(dir, "np.txt"), nil)
	require.NoError(t, err)

	require.NoError(t, n.Stop())
	assert.NoError(t, n.Stop())

	// A closed fsnotify watcher refuses new paths
	assert.Error(t, n.watcher.Add(dir))
	// And the notifier cannot be started again
	assert.ErrorIs(t, n.Start(context.Background()), ErrClosed)
	assert.False(t, n.running)
}

func TestNotifier_StartFailsForMissingDir(t *testing.T) {
	n, err := NewNotifier(filepath.Join(t.TempDir(), "missing", "np.txt"), nil)
	require.NoError(t, err)
	defer n.Stop()

	assert.Error(t, n.Start(context.Background()))
}
