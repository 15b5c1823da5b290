// Package watcher subscribes to change notifications for a directory subtree
// and forwards every change to a callback on a dedicated goroutine.
//
// A Watcher starts on construction. Pause, Resume and Stop may be called
// from any goroutine; Close stops the watcher, waits for the pump goroutine
// to exit and releases the native stream.
package watcher

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/twiced-technology-gmbh/dirwatch/internal/fsevent"
	"github.com/twiced-technology-gmbh/dirwatch/internal/stream"
)

var (
	// ErrInvalidRoot is reported by Err when the root path is empty.
	ErrInvalidRoot = errors.New("invalid root")
	// ErrNotDirectory is reported by Err when the root is not an existing directory.
	ErrNotDirectory = errors.New("root is not a directory")
	// ErrStreamCreate wraps the backend error when the native stream could not be created.
	ErrStreamCreate = errors.New("create stream")
)

// Callback receives one change event. It runs on the watcher's pump
// goroutine, never concurrently with itself. It must not call Close on the
// watcher that invoked it; Stop is fine.
type Callback func(ev *fsevent.ChangeEvent)

// State is the lifecycle state of a watcher.
type State int32

const (
	// StateInert watchers never started: the root was invalid or the stream
	// could not be created.
	StateInert State = iota
	StateActive
	StatePaused
	// StateStopped is terminal.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInert:
		return "inert"
	case StateActive:
		return "active"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Metrics are cumulative counters of a watcher's pump.
type Metrics struct {
	// Batches dispatched to this watcher.
	Batches uint64 `json:"batches"`
	// Delivered events handed to the callback.
	Delivered uint64 `json:"delivered"`
	// Dropped events discarded while paused.
	Dropped uint64 `json:"dropped"`
}

// Watcher watches one directory subtree.
type Watcher struct {
	root     string
	mask     fsevent.CreateFlags
	callback Callback
	logger   *slog.Logger

	// Set during construction, read-only afterwards.
	err      error
	active   bool
	streamID stream.ID

	state atomic.Int32

	quit     chan struct{}
	quitOnce sync.Once
	started  chan struct{}
	done     chan struct{}
	// releaseErr is written by the pump before done is closed.
	releaseErr error

	closeOnce sync.Once

	batches   atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// New creates a watcher for root and starts it. It never fails: a watcher
// whose root is invalid or whose stream could not be created is inert, and
// Err reports why.
func New(root string, mask fsevent.CreateFlags, callback Callback, opts ...Option) *Watcher {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if callback == nil {
		callback = func(*fsevent.ChangeEvent) {}
	}
	w := &Watcher{
		root:     root,
		mask:     mask,
		callback: callback,
		logger:   o.logger,
		quit:     make(chan struct{}),
		started:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	w.state.Store(int32(StateInert))

	if root == "" {
		w.fail(ErrInvalidRoot)
		return w
	}
	if abs, err := filepath.Abs(root); err == nil {
		w.root = abs
	}
	if !o.dirExists(w.root) {
		w.fail(fmt.Errorf("%w: %s", ErrNotDirectory, w.root))
		return w
	}

	s, err := o.factory(w.root, mask, stream.Options{Latency: o.latency, Logger: o.logger})
	if err != nil {
		w.fail(fmt.Errorf("%w: %w", ErrStreamCreate, err))
		return w
	}

	w.active = true
	w.streamID = s.ID()
	w.state.Store(int32(StateActive))
	register(w.streamID, w)

	w.logger.Debug("watcher: started",
		slog.String("root", w.root),
		slog.String("mask", mask.String()),
		slog.Uint64("stream", uint64(w.streamID)),
	)
	go w.pump(s)
	return w
}

// NewFileWatcher creates a watcher reporting file-level events.
func NewFileWatcher(root string, callback Callback, opts ...Option) *Watcher {
	return New(root, fsevent.DefaultMask, callback, opts...)
}

func (w *Watcher) fail(err error) {
	w.err = err
	close(w.started)
	close(w.done)
	w.logger.Warn("watcher: inert", slog.String("root", w.root), slog.Any("error", err))
}

// Root returns the absolute root path.
func (w *Watcher) Root() string { return w.root }

// Mask returns the stream creation flags.
func (w *Watcher) Mask() fsevent.CreateFlags { return w.mask }

// Err returns why the watcher is inert, or nil.
func (w *Watcher) Err() error { return w.err }

// IsActive reports whether a native stream was created.
func (w *Watcher) IsActive() bool { return w.active }

// State returns the current lifecycle state.
func (w *Watcher) State() State {
	if !w.active {
		return StateInert
	}
	return State(w.state.Load())
}

// Pause drops incoming events until Resume. It has no effect unless the
// watcher is active.
func (w *Watcher) Pause() {
	if w.state.CompareAndSwap(int32(StateActive), int32(StatePaused)) {
		w.logger.Debug("watcher: paused", slog.String("root", w.root))
	}
}

// Resume undoes Pause.
func (w *Watcher) Resume() {
	if w.state.CompareAndSwap(int32(StatePaused), int32(StateActive)) {
		w.logger.Debug("watcher: resumed", slog.String("root", w.root))
	}
}

// IsPaused reports whether delivery is paused. An inert watcher is never paused.
func (w *Watcher) IsPaused() bool {
	return w.State() == StatePaused
}

// Stop requests the pump to exit. It does not wait; the batch in flight, if
// any, is still delivered in full. Stop is idempotent.
func (w *Watcher) Stop() {
	w.state.Store(int32(StateStopped))
	w.quitOnce.Do(func() {
		close(w.quit)
		if w.active {
			w.logger.Debug("watcher: stop requested", slog.String("root", w.root))
		}
	})
}

// IsStopped reports whether an active watcher has been stopped. An inert
// watcher reports false, matching State.
func (w *Watcher) IsStopped() bool {
	return w.State() == StateStopped
}

// Done is closed once the pump goroutine has exited. It is closed from the
// start for inert watchers.
func (w *Watcher) Done() <-chan struct{} { return w.done }

// Close stops the watcher and waits for the pump to release the stream.
// It returns the release error, if any, and may be called more than once.
func (w *Watcher) Close() error {
	w.Stop()
	<-w.done
	w.closeOnce.Do(func() {
		if !w.active {
			return
		}
		deregister(w.streamID)
		w.logger.Debug("watcher: closed",
			slog.String("root", w.root),
			slog.Uint64("delivered", w.delivered.Load()),
			slog.Uint64("dropped", w.dropped.Load()),
		)
	})
	return w.releaseErr
}

// Metrics returns a snapshot of the pump counters.
func (w *Watcher) Metrics() Metrics {
	return Metrics{
		Batches:   w.batches.Load(),
		Delivered: w.delivered.Load(),
		Dropped:   w.dropped.Load(),
	}
}
