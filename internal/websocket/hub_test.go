package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHub_PublishReachesRegisteredClients(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := &Client{Hub: hub, Send: make(chan []byte, 4)}
	hub.register <- client
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Publish("stock.updated", map[string]int{"quantity": 7})

	select {
	case msg := <-client.Send:
		var ev struct {
			Event string         `json:"event"`
			Data  map[string]int `json:"data"`
		}
		require.NoError(t, json.Unmarshal(msg, &ev))
		assert.Equal(t, "stock.updated", ev.Event)
		assert.Equal(t, 7, ev.Data["quantity"])
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestHub_PublishNeverBlocksWithoutRunLoop(t *testing.T) {
	hub := NewHub(zap.NewNop())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.Publish("sale.completed", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full queue")
	}
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := &Client{Hub: hub, Send: make(chan []byte, 1)}
	hub.register <- client
	hub.unregister <- client

	select {
	case _, ok := <-client.Send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_StoppedHubDoesNotBlockClients(t *testing.T) {
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	live := &Client{Hub: hub, Send: make(chan []byte, 1)}
	require.True(t, hub.Register(live))
	cancel()

	select {
	case _, ok := <-live.Send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("live client not closed on shutdown")
	}

	done := make(chan bool)
	go func() {
		hub.Unregister(live)
		done <- hub.Register(&Client{Hub: hub, Send: make(chan []byte, 1)})
	}()

	select {
	case registered := <-done:
		assert.False(t, registered)
	case <-time.After(time.Second):
		t.Fatal("register/unregister blocked after shutdown")
	}
	assert.Equal(t, 0, hub.ClientCount())
}
