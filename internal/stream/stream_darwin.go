//go:build darwin

package stream

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/fsnotify/fsevents"

	"github.com/twiced-technology-gmbh/dirwatch/internal/fsevent"
)

func init() {
	RegisterFactory(newFSEventsStream)
}

// fseventsStream wraps an FSEvents stream. Flag and mask values are native,
// so batches are forwarded without touching the bits.
type fseventsStream struct {
	id     ID
	logger *slog.Logger
	es     *fsevents.EventStream

	out       chan Batch
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
	started   bool
}

func newFSEventsStream(root string, mask fsevent.CreateFlags, opts Options) (Stream, error) {
	if _, err := fsevents.DeviceForPath(root); err != nil {
		return nil, fmt.Errorf("fsevents: device for %s: %w", root, err)
	}
	return &fseventsStream{
		id:     NextID(),
		logger: opts.Logger,
		es: &fsevents.EventStream{
			Events:  make(chan []fsevents.Event),
			Paths:   []string{root},
			Flags:   fsevents.CreateFlags(mask),
			Latency: opts.Latency,
		},
		out:  make(chan Batch),
		done: make(chan struct{}),
	}, nil
}

func (s *fseventsStream) ID() ID { return s.id }

func (s *fseventsStream) Batches() <-chan Batch { return s.out }

func (s *fseventsStream) Start() error {
	var err error
	s.startOnce.Do(func() {
		if err = s.es.Start(); err != nil {
			err = fmt.Errorf("fsevents: start: %w", err)
			return
		}
		s.started = true
		s.wg.Add(1)
		go s.forward()
	})
	return err
}

func (s *fseventsStream) forward() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case events, ok := <-s.es.Events:
			if !ok {
				return
			}
			b := Batch{
				Stream: s.id,
				Paths:  make([]string, len(events)),
				Flags:  make([]fsevent.Flags, len(events)),
				IDs:    make([]uint64, len(events)),
			}
			for i, ev := range events {
				b.Paths[i] = absolute(ev.Path)
				b.Flags[i] = fsevent.Flags(ev.Flags)
				b.IDs[i] = ev.ID
			}
			select {
			case s.out <- b:
			case <-s.done:
				return
			}
		}
	}
}

func (s *fseventsStream) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		if !s.started {
			return
		}
		// The run loop may be blocked handing us a batch; keep draining
		// until the native stream is down.
		drained := make(chan struct{})
		go func() {
			for {
				select {
				case <-s.es.Events:
				case <-drained:
					return
				}
			}
		}()
		s.es.Stop()
		close(drained)
		s.logger.Debug("fsevents: stream stopped", slog.Uint64("stream", uint64(s.id)))
	})
}

func (s *fseventsStream) Close() error {
	s.Stop()
	return nil
}

func absolute(path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	return "/" + path
}
