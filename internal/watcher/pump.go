package watcher

import (
	"log/slog"

	"github.com/twiced-technology-gmbh/dirwatch/internal/fsevent"
	"github.com/twiced-technology-gmbh/dirwatch/internal/stream"
)

// pump is the only goroutine that touches s after construction.
func (w *Watcher) pump(s stream.Stream) {
	defer close(w.done)

	batches := s.Batches()
	err := s.Start()
	close(w.started)
	if err != nil {
		w.logger.Error("watcher: stream start failed",
			slog.String("root", w.root),
			slog.Any("error", err),
		)
	} else {
		w.run(batches)
	}

	s.Stop()
	w.releaseErr = s.Close()
	w.logger.Debug("watcher: stream released", slog.Uint64("stream", uint64(s.ID())))
}

func (w *Watcher) run(batches <-chan stream.Batch) {
	for {
		select {
		case <-w.quit:
			return
		case b, ok := <-batches:
			if !ok {
				w.logger.Debug("watcher: stream closed", slog.String("root", w.root))
				return
			}
			if !dispatch(b) {
				return
			}
		}
	}
}

// dispatch routes a batch to the watcher registered for its stream and
// reports whether the pump should keep running.
func dispatch(b stream.Batch) bool {
	target := lookup(b.Stream)
	if target == nil {
		slog.Default().Debug("watcher: batch for unknown stream dropped",
			slog.Uint64("stream", uint64(b.Stream)),
			slog.Int("events", b.Len()),
		)
		return true
	}
	return target.deliver(b)
}

func (w *Watcher) deliver(b stream.Batch) bool {
	switch State(w.state.Load()) {
	case StateStopped:
		return false
	case StatePaused:
		w.batches.Add(1)
		w.dropped.Add(uint64(b.Len()))
		return true
	}

	w.batches.Add(1)
	events := fsevent.Translate(b.Paths, b.Flags, b.IDs)
	for i := range events {
		w.callback(&events[i])
		w.delivered.Add(1)
	}
	return true
}
