package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nextEvent(t *testing.T, e Endpoint) Event {
	t.Helper()
	select {
	case ev, ok := <-e.Events():
		require.True(t, ok, "event channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func pair(t *testing.T) (*Network, *MemoryEndpoint, *MemoryEndpoint) {
	t.Helper()
	n := NewNetwork()
	a, err := n.Endpoint("peer-aaaaaa")
	require.NoError(t, err)
	b, err := n.Endpoint("peer-bbbbbb")
	require.NoError(t, err)
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return n, a, b
}

func TestNetwork_DuplicateEndpoint(t *testing.T) {
	n := NewNetwork()
	_, err := n.Endpoint("x")
	require.NoError(t, err)
	_, err = n.Endpoint("x")
	assert.Error(t, err)
}

func TestMemoryEndpoint_ConnectAndSend(t *testing.T) {
	_, a, b := pair(t)
	ctx := context.Background()

	require.NoError(t, b.Connect(ctx, a.ID()))

	ev := nextEvent(t, a)
	assert.Equal(t, EventOpen, ev.Kind)
	assert.Equal(t, b.ID(), ev.Peer)
	ev = nextEvent(t, b)
	assert.Equal(t, EventOpen, ev.Kind)
	assert.Equal(t, a.ID(), ev.Peer)

	for _, msg := range []string{"one", "two", "three"} {
		require.NoError(t, b.Send(a.ID(), []byte(msg)))
	}
	for _, want := range []string{"one", "two", "three"} {
		ev := nextEvent(t, a)
		assert.Equal(t, EventData, ev.Kind)
		assert.Equal(t, b.ID(), ev.Peer)
		assert.Equal(t, want, string(ev.Data))
	}
}

func TestMemoryEndpoint_SendCopiesPayload(t *testing.T) {
	_, a, b := pair(t)
	require.NoError(t, a.Connect(context.Background(), b.ID()))
	nextEvent(t, a)
	nextEvent(t, b)

	buf := []byte("ball")
	require.NoError(t, a.Send(b.ID(), buf))
	buf[0] = 'w'
	assert.Equal(t, "ball", string(nextEvent(t, b).Data))
}

func TestMemoryEndpoint_Errors(t *testing.T) {
	_, a, b := pair(t)
	ctx := context.Background()

	assert.ErrorIs(t, a.Connect(ctx, "nobody"), ErrPeerUnavailable)
	assert.ErrorIs(t, a.Connect(ctx, a.ID()), ErrPeerUnavailable)
	assert.ErrorIs(t, a.Send(b.ID(), []byte("x")), ErrNotConnected)

	_, err := a.Resolve(ctx, "ZZZZZZ")
	assert.ErrorIs(t, err, ErrInvalidJoinCode)
}

func TestMemoryEndpoint_Resolve(t *testing.T) {
	_, a, _ := pair(t)

	id, err := a.Resolve(context.Background(), " bbbbbb ")
	require.NoError(t, err)
	assert.Equal(t, "peer-bbbbbb", id)
}

func TestMemoryEndpoint_Disconnect(t *testing.T) {
	_, a, b := pair(t)
	require.NoError(t, a.Connect(context.Background(), b.ID()))
	nextEvent(t, a)
	nextEvent(t, b)

	require.NoError(t, b.Disconnect(a.ID()))
	ev := nextEvent(t, a)
	assert.Equal(t, EventClose, ev.Kind)
	assert.Equal(t, b.ID(), ev.Peer)
	ev = nextEvent(t, b)
	assert.Equal(t, EventClose, ev.Kind)

	assert.ErrorIs(t, a.Send(b.ID(), []byte("x")), ErrNotConnected)
}

func TestMemoryEndpoint_CloseNotifiesPeers(t *testing.T) {
	n, a, b := pair(t)
	c, err := n.Endpoint("peer-cccccc")
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, b.Connect(ctx, a.ID()))
	require.NoError(t, c.Connect(ctx, a.ID()))
	nextEvent(t, b)
	nextEvent(t, c)

	require.NoError(t, a.Close())

	for _, peer := range []*MemoryEndpoint{b, c} {
		ev := nextEvent(t, peer)
		assert.Equal(t, EventClose, ev.Kind)
		assert.Equal(t, a.ID(), ev.Peer)
	}

	assert.ErrorIs(t, a.Send(b.ID(), nil), ErrClosed)
	assert.ErrorIs(t, b.Connect(ctx, a.ID()), ErrPeerUnavailable)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-a.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("events channel not closed")
		}
	}
}
