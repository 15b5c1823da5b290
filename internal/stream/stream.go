// Package stream is the native change-notification facility used by the
// watcher. A Stream is one OS-level subscription to a directory subtree; it
// delivers raw batches tagged with its own identity.
//
// Platform files register a constructor via init():
//
//	stream_darwin.go  (//go:build darwin)  FSEvents
//	stream_notify.go  (//go:build !darwin) fsnotify
//
// Streams always start from "events since now"; history is never replayed.
package stream

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/twiced-technology-gmbh/dirwatch/internal/fsevent"
)

// ID identifies a stream for the lifetime of the process.
type ID uint64

// Batch is one native delivery: parallel arrays of paths, flags and ids.
type Batch struct {
	Stream ID
	Paths  []string
	Flags  []fsevent.Flags
	IDs    []uint64
}

// Len returns the number of raw events in the batch.
func (b Batch) Len() int { return len(b.Paths) }

// Stream is one native notification subscription.
//
// Start, Batches, Stop and Close are called from a single goroutine (the
// watcher's pump). Close implies Stop and releases every native resource.
type Stream interface {
	ID() ID
	// Start tells the native facility to begin delivering batches.
	Start() error
	// Batches returns the channel batches are delivered on. It may be
	// closed by the stream when delivery ends for good.
	Batches() <-chan Batch
	// Stop tells the native facility to stop delivering.
	Stop()
	// Close invalidates the stream and releases it.
	Close() error
}

// Options tune stream creation.
type Options struct {
	// Latency is how long the facility may hold events to coalesce them.
	// Zero delivers every event as soon as it is seen.
	Latency time.Duration
	Logger  *slog.Logger
}

// Factory creates a stream bound to root and mask.
type Factory func(root string, mask fsevent.CreateFlags, opts Options) (Stream, error)

// ErrUnsupported is returned by New when no platform factory is registered.
var ErrUnsupported = errors.New("no native notification facility")

var (
	platformFactory Factory
	lastID          atomic.Uint64
)

// RegisterFactory installs the platform constructor used by New.
func RegisterFactory(fn Factory) {
	platformFactory = fn
}

// New creates a stream with the registered platform factory.
func New(root string, mask fsevent.CreateFlags, opts Options) (Stream, error) {
	if platformFactory == nil {
		return nil, fmt.Errorf("%w on %s", ErrUnsupported, runtime.GOOS)
	}
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	return platformFactory(root, mask, opts)
}

// NextID allocates a process-unique stream identity.
func NextID() ID {
	return ID(lastID.Add(1))
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
