package server

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/twiced-technology-gmbh/dirwatch/internal/journal"
)

const defaultBufSize = 64

// Message is the JSON envelope pushed to websocket clients.
type Message struct {
	Type string        `json:"type"`
	Data journal.Entry `json:"data"`
}

// Client is one connected websocket subscriber.
type Client struct {
	id   string
	send chan []byte
	// Dropped counts frames discarded because the send buffer was full.
	Dropped atomic.Int64
}

// ID returns the client's identifier.
func (c *Client) ID() string { return c.id }

// Send delivers encoded frames. It is closed on Unregister or Close.
func (c *Client) Send() <-chan []byte { return c.send }

// Broadcaster fans events out to websocket clients. A slow client never
// blocks the publisher: when its buffer is full the frame is dropped for
// that client only.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[string]*Client
	closed  bool

	bufSize int
	logger  *slog.Logger
}

// NewBroadcaster creates a Broadcaster. bufSize <= 0 selects 64.
func NewBroadcaster(logger *slog.Logger, bufSize int) *Broadcaster {
	if bufSize <= 0 {
		bufSize = defaultBufSize
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Broadcaster{
		clients: make(map[string]*Client),
		bufSize: bufSize,
		logger:  logger,
	}
}

// Register adds a client. After Close the returned client's channel is
// already closed.
func (b *Broadcaster) Register(id string) *Client {
	c := &Client{id: id, send: make(chan []byte, b.bufSize)}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(c.send)
		return c
	}
	b.clients[id] = c
	return c
}

// Unregister removes the client and closes its channel. Unknown ids are a no-op.
func (b *Broadcaster) Unregister(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.clients[id]; ok {
		delete(b.clients, id)
		close(c.send)
	}
}

// ClientCount returns the number of registered clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Broadcast encodes e once and offers it to every client.
func (b *Broadcaster) Broadcast(e journal.Entry) {
	raw, err := json.Marshal(Message{Type: "event", Data: e})
	if err != nil {
		b.logger.Error("broadcaster: marshal failed", slog.Any("error", err))
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, c := range b.clients {
		select {
		case c.send <- raw:
		default:
			c.Dropped.Add(1)
			b.logger.Warn("broadcaster: client buffer full, dropping event",
				slog.String("client_id", c.id),
			)
		}
	}
}

// Close unregisters every client. Later broadcasts are ignored.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, c := range b.clients {
		delete(b.clients, id)
		close(c.send)
	}
}
