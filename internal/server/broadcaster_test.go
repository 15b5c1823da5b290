package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twiced-technology-gmbh/dirwatch/internal/journal"
)

func TestBroadcastDeliversToEveryClient(t *testing.T) {
	bc := NewBroadcaster(nil, 4)
	a := bc.Register("a")
	b := bc.Register("b")
	assert.Equal(t, 2, bc.ClientCount())

	bc.Broadcast(journal.Entry{ID: 1, Path: "/x"})

	for _, c := range []*Client{a, b} {
		raw := <-c.Send()
		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		assert.Equal(t, "event", msg.Type)
		assert.Equal(t, "/x", msg.Data.Path)
	}
}

func TestBroadcastDropsForFullClient(t *testing.T) {
	bc := NewBroadcaster(nil, 1)
	c := bc.Register("slow")

	bc.Broadcast(journal.Entry{ID: 1})
	bc.Broadcast(journal.Entry{ID: 2})

	assert.Equal(t, int64(1), c.Dropped.Load())
	assert.Len(t, c.Send(), 1)
}

func TestUnregisterClosesChannel(t *testing.T) {
	bc := NewBroadcaster(nil, 1)
	c := bc.Register("a")
	bc.Unregister("a")
	bc.Unregister("a")
	bc.Unregister("unknown")

	_, ok := <-c.Send()
	assert.False(t, ok)
	assert.Zero(t, bc.ClientCount())
}

func TestCloseShutsEveryClient(t *testing.T) {
	bc := NewBroadcaster(nil, 1)
	c := bc.Register("a")
	bc.Close()
	bc.Close()

	_, ok := <-c.Send()
	assert.False(t, ok)

	late := bc.Register("late")
	_, ok = <-late.Send()
	assert.False(t, ok)
	assert.Zero(t, bc.ClientCount())

	bc.Broadcast(journal.Entry{ID: 1})
}
