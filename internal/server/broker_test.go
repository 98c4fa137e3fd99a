package server

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/saschahuberzh/SeoulChat/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receiveEnvelope(t *testing.T, b Broker) Envelope {
	t.Helper()

	select {
	case env := <-b.Envelopes():
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for envelope")
		return Envelope{}
	}
}

func TestLocalBroker(t *testing.T) {
	b := NewLocalBroker()
	ctx := context.Background()

	require.NoError(t, b.Publish(ctx, Envelope{Kind: KindDropRoom, RoomId: "chat-1"}))
	env := receiveEnvelope(t, b)
	assert.Equal(t, KindDropRoom, env.Kind)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.ErrorIs(t, b.Publish(ctx, Envelope{}), ErrBrokerClosed)
}

func TestRedisBroker(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	client, err := NewRedisClient(ctx, "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	first, err := NewRedisBroker(ctx, client, "", testutil.TestLogger(t))
	require.NoError(t, err)
	defer first.Close()
	second, err := NewRedisBroker(ctx, client, DefaultRedisChannel, testutil.TestLogger(t))
	require.NoError(t, err)
	defer second.Close()

	err = first.Publish(ctx, Envelope{
		Kind:    KindDeliver,
		RoomId:  "chat-1",
		Message: NewEvent(EventChatDeleted, ChatDeleted{ChatId: "chat-1"}),
	})
	require.NoError(t, err)

	for _, b := range []Broker{first, second} {
		env := receiveEnvelope(t, b)
		assert.Equal(t, KindDeliver, env.Kind)
		assert.Equal(t, "chat-1", env.RoomId)
		require.NotNil(t, env.Message)
		assert.Equal(t, EventChatDeleted, env.Message.Event)
		assert.Equal(t, map[string]any{"chat_id": "chat-1"}, env.Message.Data)
	}
}

func TestNewRedisClient_Errors(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not a url")
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = NewRedisClient(ctx, "redis://"+addr)
	assert.Error(t, err)
}
