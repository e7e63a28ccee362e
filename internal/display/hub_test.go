package display

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(c *Client) [][]byte {
	var got [][]byte
	for {
		select {
		case payload := <-c.Send:
			got = append(got, payload)
		default:
			return got
		}
	}
}

func TestBroadcastFiltersByDepartment(t *testing.T) {
	hub := NewHub(4, nil)
	deptA := hub.Register("c-1", "dep-a")
	deptB := hub.Register("c-2", "dep-b")
	all := hub.Register("c-3", "")

	hub.Broadcast("dep-a", []byte("event-a"))

	require.Len(t, drain(deptA), 1)
	assert.Empty(t, drain(deptB))
	require.Len(t, drain(all), 1)
}

func TestBroadcastToAll(t *testing.T) {
	hub := NewHub(4, nil)
	deptA := hub.Register("c-1", "dep-a")
	deptB := hub.Register("c-2", "dep-b")

	hub.Broadcast("", []byte("system"))

	assert.Len(t, drain(deptA), 1)
	assert.Len(t, drain(deptB), 1)
}

func TestBroadcastDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(2, nil)
	slow := hub.Register("c-1", "dep-a")

	for i := 0; i < 5; i++ {
		hub.Broadcast("dep-a", []byte("event"))
	}

	// the two buffered events survive, the rest are dropped
	assert.Len(t, drain(slow), 2)
}

func TestUnregisterClosesChannel(t *testing.T) {
	hub := NewHub(4, nil)
	client := hub.Register("c-1", "dep-a")
	assert.Equal(t, 1, hub.ClientCount())

	hub.Unregister("c-1")
	assert.Equal(t, 0, hub.ClientCount())
	_, open := <-client.Send
	assert.False(t, open)

	// a second unregister of the same id is a no-op
	hub.Unregister("c-1")
}
