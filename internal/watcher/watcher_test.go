package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twiced-technology-gmbh/dirwatch/internal/fsevent"
	"github.com/twiced-technology-gmbh/dirwatch/internal/stream"
	"github.com/twiced-technology-gmbh/dirwatch/internal/stream/streamtest"
)

// recorder collects callback events. The callback runs on the pump
// goroutine; streamtest.Stream.Sync orders reads after it.
type recorder struct {
	mu     sync.Mutex
	events []fsevent.ChangeEvent
}

func (r *recorder) callback(ev *fsevent.ChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *ev)
}

func (r *recorder) snapshot() []fsevent.ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]fsevent.ChangeEvent(nil), r.events...)
}

func (r *recorder) paths() []string {
	var out []string
	for _, ev := range r.snapshot() {
		out = append(out, ev.Path)
	}
	return out
}

func alwaysDir(string) bool { return true }

func newManual(t *testing.T, rec *recorder) (*Watcher, *streamtest.Stream) {
	t.Helper()
	s := streamtest.New()
	w := New("/watched", fsevent.DefaultMask, rec.callback,
		WithFactory(s.Factory()),
		WithDirExists(alwaysDir),
	)
	require.True(t, w.IsActive())
	t.Cleanup(func() { _ = w.Close() })
	return w, s
}

func TestNewEmptyRootIsInert(t *testing.T) {
	before := Registered()
	called := false
	w := New("", fsevent.DefaultMask, func(*fsevent.ChangeEvent) { called = true })

	assert.False(t, w.IsActive())
	assert.Equal(t, StateInert, w.State())
	assert.ErrorIs(t, w.Err(), ErrInvalidRoot)
	assert.Equal(t, before, Registered())

	select {
	case <-w.Done():
	default:
		t.Fatal("inert watcher should be done immediately")
	}

	w.Pause()
	assert.False(t, w.IsPaused())
	w.Resume()
	w.Stop()
	w.Stop()
	assert.False(t, w.IsStopped())
	assert.Equal(t, StateInert, w.State())
	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())
	assert.False(t, called)
}

func TestNewMissingRootIsInert(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nonexistent")
	w := NewFileWatcher(root, func(*fsevent.ChangeEvent) {
		t.Error("callback on inert watcher")
	})
	defer w.Close()

	assert.False(t, w.IsActive())
	assert.ErrorIs(t, w.Err(), ErrNotDirectory)
	assert.Equal(t, root, w.Root())
}

func TestNewFileRootIsInert(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plain.txt")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	w := NewFileWatcher(file, nil)
	defer w.Close()

	assert.ErrorIs(t, w.Err(), ErrNotDirectory)
	assert.Equal(t, StateInert, w.State())
}

func TestNewStreamFailureIsInert(t *testing.T) {
	backend := errors.New("backend exploded")
	w := NewFileWatcher("/watched", nil,
		WithFactory(streamtest.FailingFactory(backend)),
		WithDirExists(alwaysDir),
	)
	defer w.Close()

	assert.False(t, w.IsActive())
	assert.ErrorIs(t, w.Err(), ErrStreamCreate)
	assert.ErrorIs(t, w.Err(), backend)
}

func TestNewRelativeRootIsAbsolute(t *testing.T) {
	s := streamtest.New()
	w := New("some/dir", fsevent.CreateFileEvents|fsevent.CreateWatchRoot, nil,
		WithFactory(s.Factory()),
		WithDirExists(alwaysDir),
	)
	defer w.Close()

	assert.True(t, filepath.IsAbs(w.Root()))
	assert.Equal(t, w.Root(), s.Root())
	assert.Equal(t, fsevent.CreateFileEvents|fsevent.CreateWatchRoot, s.Mask())
	assert.Equal(t, s.Mask(), w.Mask())
}

func TestWatcherStartsStream(t *testing.T) {
	var rec recorder
	w, s := newManual(t, &rec)

	require.True(t, s.Sync())
	assert.True(t, s.Started())
	assert.Equal(t, StateActive, w.State())
	assert.NoError(t, w.Err())
}

func TestWatcherDeliversInOrder(t *testing.T) {
	var rec recorder
	w, s := newManual(t, &rec)

	require.True(t, s.Emit(
		streamtest.Event{Path: "/watched/a", Flags: fsevent.FlagItemCreated | fsevent.FlagItemIsFile},
		streamtest.Event{Path: "/watched/b", Flags: fsevent.FlagItemRemoved | fsevent.FlagItemIsDir},
	))
	require.True(t, s.Emit(
		streamtest.Event{Path: "/watched/c", Flags: fsevent.FlagItemModified | fsevent.FlagItemXattrMod},
	))
	require.True(t, s.Sync())

	got := rec.snapshot()
	require.Len(t, got, 3)
	assert.Equal(t, []string{"/watched/a", "/watched/b", "/watched/c"}, rec.paths())
	assert.Equal(t, fsevent.FlagItemCreated|fsevent.FlagItemIsFile, got[0].Flags)
	assert.Equal(t, fsevent.FlagItemRemoved|fsevent.FlagItemIsDir, got[1].Flags)
	assert.Equal(t, fsevent.FlagItemModified|fsevent.FlagItemXattrMod, got[2].Flags)
	assert.Less(t, got[0].ID, got[1].ID)
	assert.Less(t, got[1].ID, got[2].ID)

	m := w.Metrics()
	assert.Equal(t, uint64(3), m.Delivered)
	assert.Zero(t, m.Dropped)
	// The sync batch is counted once the pump has handled it.
	require.Eventually(t, func() bool { return w.Metrics().Batches == 3 }, 2*time.Second, time.Millisecond)
}

func TestWatcherPauseDropsEvents(t *testing.T) {
	var rec recorder
	w, s := newManual(t, &rec)

	w.Pause()
	assert.True(t, w.IsPaused())
	assert.Equal(t, StatePaused, w.State())
	w.Pause()
	assert.True(t, w.IsPaused())

	require.True(t, s.Emit(
		streamtest.Event{Path: "/watched/b1", Flags: fsevent.FlagItemCreated},
		streamtest.Event{Path: "/watched/b2", Flags: fsevent.FlagItemCreated},
	))
	require.True(t, s.Sync())
	assert.Empty(t, rec.snapshot())
	assert.Equal(t, uint64(2), w.Metrics().Dropped)

	w.Resume()
	assert.False(t, w.IsPaused())
	assert.Equal(t, StateActive, w.State())

	require.True(t, s.Emit(streamtest.Event{Path: "/watched/c", Flags: fsevent.FlagItemCreated}))
	require.True(t, s.Sync())
	assert.Equal(t, []string{"/watched/c"}, rec.paths())
}

func TestWatcherResumeWithoutPause(t *testing.T) {
	var rec recorder
	w, _ := newManual(t, &rec)

	w.Resume()
	assert.Equal(t, StateActive, w.State())
}

func TestWatcherStopEndsDelivery(t *testing.T) {
	var rec recorder
	w, s := newManual(t, &rec)

	require.True(t, s.Emit(streamtest.Event{Path: "/watched/before"}))
	require.True(t, s.Sync())

	w.Stop()
	w.Stop()
	assert.True(t, w.IsStopped())
	assert.Equal(t, StateStopped, w.State())

	w.Pause()
	w.Resume()
	assert.Equal(t, StateStopped, w.State())

	// The pump may or may not take this batch, but it must not deliver it.
	s.Emit(streamtest.Event{Path: "/watched/after"})

	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not exit after Stop")
	}
	assert.True(t, s.Stopped())
	assert.True(t, s.Released())
	assert.Equal(t, []string{"/watched/before"}, rec.paths())
}

func TestWatcherStopFromCallbackFinishesBatch(t *testing.T) {
	var (
		rec recorder
		w   *Watcher
	)
	s := streamtest.New()
	w = New("/watched", fsevent.DefaultMask, func(ev *fsevent.ChangeEvent) {
		rec.callback(ev)
		w.Stop()
	}, WithFactory(s.Factory()), WithDirExists(alwaysDir))

	require.True(t, s.Emit(
		streamtest.Event{Path: "/watched/1"},
		streamtest.Event{Path: "/watched/2"},
		streamtest.Event{Path: "/watched/3"},
	))
	s.Emit(streamtest.Event{Path: "/watched/4"})
	require.NoError(t, w.Close())

	assert.Equal(t, []string{"/watched/1", "/watched/2", "/watched/3"}, rec.paths())
}

func TestWatcherCloseIsIdempotent(t *testing.T) {
	before := Registered()
	var rec recorder
	s := streamtest.New()
	w := NewFileWatcher("/watched", rec.callback, WithFactory(s.Factory()), WithDirExists(alwaysDir))
	assert.Equal(t, before+1, Registered())

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.Equal(t, before, Registered())
	assert.True(t, s.Released())
	assert.True(t, w.IsStopped())
}

func TestWatcherCloseUnderConcurrentDelivery(t *testing.T) {
	var rec recorder
	s := streamtest.New()
	w := NewFileWatcher("/watched", rec.callback, WithFactory(s.Factory()), WithDirExists(alwaysDir))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s.Emit(streamtest.Event{Path: "/watched/busy", Flags: fsevent.FlagItemModified}) {
			}
		}()
	}

	require.Eventually(t, func() bool {
		return w.Metrics().Delivered > 10
	}, 2*time.Second, time.Millisecond)

	closed := make(chan error, 1)
	go func() { closed <- w.Close() }()
	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return under concurrent delivery")
	}
	wg.Wait()

	delivered := w.Metrics().Delivered
	assert.Equal(t, delivered, uint64(len(rec.snapshot())))
}

func TestWatcherIgnoresUnknownStream(t *testing.T) {
	var rec recorder
	w, s := newManual(t, &rec)

	require.True(t, s.EmitAs(stream.ID(1<<62), streamtest.Event{Path: "/elsewhere"}))
	require.True(t, s.Sync())

	assert.Empty(t, rec.snapshot())
	// Only the sync batch reaches this watcher.
	require.Eventually(t, func() bool { return w.Metrics().Batches == 1 }, 2*time.Second, time.Millisecond)
	assert.Zero(t, w.Metrics().Delivered)
}

func TestWatcherRoutesByStreamIdentity(t *testing.T) {
	var recA, recB recorder
	_, sa := newManual(t, &recA)
	_, sb := newManual(t, &recB)

	// A batch tagged with B's identity reaches B's callback even when it
	// arrives on A's channel.
	require.True(t, sa.EmitAs(sb.ID(), streamtest.Event{Path: "/watched/routed"}))
	require.True(t, sa.Sync())

	assert.Empty(t, recA.snapshot())
	assert.Equal(t, []string{"/watched/routed"}, recB.paths())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "inert", StateInert.String())
	assert.Equal(t, "active", StateActive.String())
	assert.Equal(t, "paused", StatePaused.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "state(9)", State(9).String())
}
