// Package streamtest provides an in-memory stream.Stream for tests that need
// deterministic control over what the native facility delivers.
package streamtest

import (
	"sync"
	"sync/atomic"

	"github.com/twiced-technology-gmbh/dirwatch/internal/fsevent"
	"github.com/twiced-technology-gmbh/dirwatch/internal/stream"
)

// Event is one raw event to emit.
type Event struct {
	Path  string
	Flags fsevent.Flags
}

// Stream is a manual stream. Batches are handed over on an unbuffered
// channel, so Emit returns only once the consumer has taken the batch.
type Stream struct {
	id      stream.ID
	batches chan stream.Batch
	closed  chan struct{}

	closeOnce sync.Once
	eventSeq  atomic.Uint64
	started   atomic.Bool
	stopped   atomic.Bool
	released  atomic.Bool

	mu   sync.Mutex
	root string
	mask fsevent.CreateFlags
}

// New returns a stream with a fresh identity.
func New() *Stream {
	return &Stream{
		id:      stream.NextID(),
		batches: make(chan stream.Batch),
		closed:  make(chan struct{}),
	}
}

// Factory returns a stream.Factory that hands out s and records the root
// and mask it was asked for.
func (s *Stream) Factory() stream.Factory {
	return func(root string, mask fsevent.CreateFlags, _ stream.Options) (stream.Stream, error) {
		s.mu.Lock()
		s.root = root
		s.mask = mask
		s.mu.Unlock()
		return s, nil
	}
}

// FailingFactory returns a factory whose stream creation always fails.
func FailingFactory(err error) stream.Factory {
	return func(string, fsevent.CreateFlags, stream.Options) (stream.Stream, error) {
		return nil, err
	}
}

func (s *Stream) ID() stream.ID { return s.id }

func (s *Stream) Start() error {
	s.started.Store(true)
	return nil
}

func (s *Stream) Batches() <-chan stream.Batch { return s.batches }

func (s *Stream) Stop() {
	s.stopped.Store(true)
}

func (s *Stream) Close() error {
	s.Stop()
	s.released.Store(true)
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

// Emit delivers one batch tagged with this stream's identity. It reports
// false if the stream was released before the batch was taken.
func (s *Stream) Emit(events ...Event) bool {
	return s.EmitAs(s.id, events...)
}

// EmitAs delivers a batch tagged with an arbitrary stream identity.
func (s *Stream) EmitAs(id stream.ID, events ...Event) bool {
	b := stream.Batch{Stream: id}
	for _, ev := range events {
		b.Paths = append(b.Paths, ev.Path)
		b.Flags = append(b.Flags, ev.Flags)
		b.IDs = append(b.IDs, s.eventSeq.Add(1))
	}
	select {
	case s.batches <- b:
		return true
	case <-s.closed:
		return false
	}
}

// Sync returns once the consumer has taken an empty batch. The consumer
// handles one batch at a time, so every batch emitted earlier is fully
// handled by then. Handling of the empty batch itself may still be running.
func (s *Stream) Sync() bool {
	return s.Emit()
}

// Started reports whether Start was called.
func (s *Stream) Started() bool { return s.started.Load() }

// Stopped reports whether Stop was called.
func (s *Stream) Stopped() bool { return s.stopped.Load() }

// Released reports whether Close was called.
func (s *Stream) Released() bool { return s.released.Load() }

// Root returns the root the factory was called with.
func (s *Stream) Root() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.root
}

// Mask returns the mask the factory was called with.
func (s *Stream) Mask() fsevent.CreateFlags {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mask
}
