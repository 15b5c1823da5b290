package watcher

import (
	"sync"

	"github.com/twiced-technology-gmbh/dirwatch/internal/stream"
)

// registry maps a live stream to the watcher that owns it. Batches carry
// only their stream identity, so dispatch resolves the target here.
var registry struct {
	mu       sync.Mutex
	watchers map[stream.ID]*Watcher
}

func register(id stream.ID, w *Watcher) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if registry.watchers == nil {
		registry.watchers = make(map[stream.ID]*Watcher)
	}
	registry.watchers[id] = w
}

func deregister(id stream.ID) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	delete(registry.watchers, id)
	if len(registry.watchers) == 0 {
		registry.watchers = nil
	}
}

func lookup(id stream.ID) *Watcher {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	return registry.watchers[id]
}

// Registered returns the number of watchers holding a live stream.
func Registered() int {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	return len(registry.watchers)
}
