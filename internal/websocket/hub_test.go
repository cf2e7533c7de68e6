package websocket

import (
	"context"
	"testing"
	"time"

	"court-advisor-be/internal/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
		return nil
	}
}

func TestHub_DeliversToSessionWatchersOnly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil, logger.NewNopLogger())
	go hub.Run(ctx)

	a := &Client{Hub: hub, SessionKey: "a", Send: make(chan []byte, 4)}
	b := &Client{Hub: hub, SessionKey: "b", Send: make(chan []byte, 4)}
	hub.register <- a
	hub.register <- b
	require.Eventually(t, func() bool { return hub.Watchers("a") == 1 && hub.Watchers("b") == 1 }, time.Second, 10*time.Millisecond)

	hub.Send("a", []byte(`{"type":"answer"}`))

	assert.Equal(t, `{"type":"answer"}`, string(receive(t, a.Send)))
	assert.Empty(t, b.Send)

	hub.unregister <- a
	require.Eventually(t, func() bool { return hub.Watchers("a") == 0 }, time.Second, 10*time.Millisecond)
	_, open := <-a.Send
	assert.False(t, open)
}

func TestHub_DropsSlowClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil, logger.NewNopLogger())
	go hub.Run(ctx)

	slow := &Client{Hub: hub, SessionKey: "s", Send: make(chan []byte)}
	hub.register <- slow
	require.Eventually(t, func() bool { return hub.Watchers("s") == 1 }, time.Second, 10*time.Millisecond)

	hub.Send("s", []byte("x"))
	assert.Zero(t, hub.Watchers("s"))
}

func TestHub_RelaysAcrossInstancesViaRedis(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mr := miniredis.RunT(t)
	newClient := func() *redis.Client {
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { rdb.Close() })
		return rdb
	}

	origin := NewHub(newClient(), logger.NewNopLogger())
	remote := NewHub(newClient(), logger.NewNopLogger())
	go origin.Run(ctx)
	go remote.Run(ctx)

	local := &Client{Hub: origin, SessionKey: "k", Send: make(chan []byte, 4)}
	far := &Client{Hub: remote, SessionKey: "k", Send: make(chan []byte, 4)}
	origin.register <- local
	remote.register <- far
	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(clusterChannel)[clusterChannel] == 2
	}, 2*time.Second, 10*time.Millisecond)

	origin.Send("k", []byte(`{"n":1}`))

	assert.JSONEq(t, `{"n":1}`, string(receive(t, far.Send)))
	assert.JSONEq(t, `{"n":1}`, string(receive(t, local.Send)))
	// The origin must not receive its own frame a second time.
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, local.Send)
}
