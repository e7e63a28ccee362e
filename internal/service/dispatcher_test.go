package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muni-digital/turnos-api/internal/display"
	"github.com/muni-digital/turnos-api/internal/models"
	"github.com/muni-digital/turnos-api/pkg/config"
	"github.com/muni-digital/turnos-api/pkg/jobs"
)

func TestDispatcherLocalFallback(t *testing.T) {
	hub := display.NewHub(4, nil)
	client := hub.Register("c-1", "dep-a")
	other := hub.Register("c-2", "dep-b")
	dispatcher := NewDispatcher(hub, nil, config.DispatchConfig{Workers: 1, BufferSize: 8}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	dispatcher.Start(ctx)

	dispatcher.Dispatch([]models.TurnEvent{{
		Kind:         models.EventTurnCalled,
		TurnID:       "turn-1",
		Code:         "REG001",
		DepartmentID: "dep-a",
	}})

	select {
	case payload := <-client.Send:
		var event models.TurnEvent
		require.NoError(t, json.Unmarshal(payload, &event))
		assert.Equal(t, models.EventTurnCalled, event.Kind)
		assert.Equal(t, "REG001", event.Code)
	case <-time.After(2 * time.Second):
		t.Fatal("display did not receive the event")
	}

	select {
	case <-other.Send:
		t.Fatal("event leaked to another department's display")
	default:
	}

	dispatcher.Stop()
}

func TestDispatcherRejectsForeignPayload(t *testing.T) {
	hub := display.NewHub(4, nil)
	dispatcher := NewDispatcher(hub, nil, config.DispatchConfig{}, nil)

	err := dispatcher.handle(context.Background(), jobs.Job{ID: "x", Payload: "not an event"})
	assert.Error(t, err)
}

func TestDispatcherChannelNaming(t *testing.T) {
	hub := display.NewHub(4, nil)
	dispatcher := NewDispatcher(hub, nil, config.DispatchConfig{ChannelPrefix: "turnos"}, nil)
	assert.Equal(t, "turnos:dep-a", dispatcher.channelFor("dep-a"))

	fallback := NewDispatcher(hub, nil, config.DispatchConfig{}, nil)
	assert.Equal(t, "display:dep-a", fallback.channelFor("dep-a"))
}
