package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
	fail  map[string]bool
}

func (r *recorder) handle(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, filepath.Base(path))
	if r.fail[filepath.Base(path)] {
		return errors.New("transcription failed")
	}
	return nil
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func startWatcher(t *testing.T, opts Options) (context.CancelFunc, <-chan error) {
	t.Helper()

	w, err := New(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return cancel, done
}

func TestWatcherHandlesSettledAudioFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, Options{Dir: dir, Delay: 50 * time.Millisecond, Handler: rec.handle})

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "meeting.mp3"), []byte("id3"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	require.Eventually(t, func() bool { return len(rec.seen()) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, []string{"meeting.mp3"}, rec.seen())

	time.Sleep(150 * time.Millisecond)
	require.Len(t, rec.seen(), 1)
}

func TestWatcherPicksUpExistingFilesAndDeletesAfter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "backlog.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF"), 0o644))

	rec := &recorder{}
	startWatcher(t, Options{Dir: dir, Delay: 20 * time.Millisecond, DeleteAfter: true, Handler: rec.handle})

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return errors.Is(err, os.ErrNotExist)
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, []string{"backlog.wav"}, rec.seen())
}

func TestWatcherKeepsRunningAfterHandlerFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	rec := &recorder{fail: map[string]bool{"bad.wav": true}}
	startWatcher(t, Options{Dir: dir, Delay: 20 * time.Millisecond, DeleteAfter: true, Handler: rec.handle})

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.wav"), []byte("x"), 0o644))
	require.Eventually(t, func() bool { return len(rec.seen()) == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.wav"), []byte("x"), 0o644))
	require.Eventually(t, func() bool { return len(rec.seen()) == 2 }, 2*time.Second, 10*time.Millisecond)

	require.FileExists(t, filepath.Join(dir, "bad.wav"))
}

func TestWatcherStopsOnCancel(t *testing.T) {
	t.Parallel()

	w, err := New(Options{Dir: t.TempDir(), Handler: (&recorder{}).handle})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestNewAndRunValidateOptions(t *testing.T) {
	t.Parallel()

	_, err := New(Options{Handler: (&recorder{}).handle})
	require.ErrorContains(t, err, "directory")

	_, err = New(Options{Dir: t.TempDir()})
	require.ErrorContains(t, err, "handler")

	file := filepath.Join(t.TempDir(), "f.wav")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	w, err := New(Options{Dir: file, Handler: (&recorder{}).handle})
	require.NoError(t, err)
	require.ErrorContains(t, w.Run(context.Background()), "not a directory")
}
