package watcher

import (
	"log/slog"
	"time"

	"github.com/twiced-technology-gmbh/dirwatch/internal/fsutil"
	"github.com/twiced-technology-gmbh/dirwatch/internal/stream"
)

// Option configures a Watcher.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	latency   time.Duration
	factory   stream.Factory
	dirExists func(string) bool
}

func defaultOptions() options {
	return options{
		logger:    slog.New(slog.DiscardHandler),
		factory:   stream.New,
		dirExists: fsutil.DirExists,
	}
}

// WithLogger sets the logger used by the watcher and its stream.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithLatency lets the native facility hold events for d to coalesce them.
func WithLatency(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.latency = d
		}
	}
}

// WithFactory replaces the platform stream constructor.
func WithFactory(f stream.Factory) Option {
	return func(o *options) {
		if f != nil {
			o.factory = f
		}
	}
}

// WithDirExists replaces the directory-existence predicate.
func WithDirExists(fn func(string) bool) Option {
	return func(o *options) {
		if fn != nil {
			o.dirExists = fn
		}
	}
}
