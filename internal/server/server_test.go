package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/saschahuberzh/SeoulChat/internal/database"
	"github.com/saschahuberzh/SeoulChat/internal/stats"
	"github.com/saschahuberzh/SeoulChat/internal/testutil"
	"github.com/saschahuberzh/SeoulChat/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newMockStats() *stats.MockStatsUpdater {
	su := &stats.MockStatsUpdater{}
	su.On("RegisterMetric", mock.Anything).Return()
	su.On("Incr", mock.Anything).Return().Maybe()
	su.On("Decr", mock.Anything).Return().Maybe()
	return su
}

// newTestChatServer creates a ChatServer whose loop is not running, so
// tests can drive its handlers directly.
func newTestChatServer(t *testing.T, store Store) *ChatServer {
	if store == nil {
		store = database.NewMemorySeoulChatRepository()
	}
	return NewChatServer(testutil.TestLogger(t), store, NewLocalBroker(), newMockStats())
}

func newTestClient(t *testing.T, cs *ChatServer, userId string) *Client {
	return NewClient(userId, nil, cs, testutil.TestLogger(t))
}

func drain(c *Client) []*ServerMessage {
	var msgs []*ServerMessage
	for {
		select {
		case msg := <-c.send:
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

func TestNewChatServer(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("RegisterMetric", mock.Anything).Return().Times(6)

	cs := NewChatServer(testutil.TestLogger(t), database.NewMemorySeoulChatRepository(), nil, su)
	assert.NotNil(t, cs.broker, "expected a local broker by default")
	assert.NotNil(t, cs.clients, "expected clients map to be initialized")
	assert.NotNil(t, cs.userMap, "expected userMap to be initialized")
	assert.NotNil(t, cs.rooms, "expected rooms map to be initialized")
}

func TestAddAndRemoveClient(t *testing.T) {
	cs := newTestChatServer(t, nil)

	first := newTestClient(t, cs, "user-1")
	second := newTestClient(t, cs, "user-1")

	cs.addClient(&registration{client: first, rooms: []string{"user-1", "chat-1"}})
	cs.addClient(&registration{client: second, rooms: []string{"user-1"}})

	assert.Len(t, cs.userMap["user-1"], 2)
	assert.True(t, cs.rooms["chat-1"].has(first))
	assert.True(t, cs.rooms["user-1"].has(second))

	cs.removeClient(first)
	assert.NotContains(t, cs.rooms, "chat-1", "empty rooms are dropped")
	assert.Contains(t, cs.userMap, "user-1")

	select {
	case <-first.stop:
	default:
		t.Error("expected removed client to be stopped")
	}

	cs.removeClient(second)
	assert.NotContains(t, cs.userMap, "user-1")
	assert.Empty(t, cs.rooms)

	// removing twice is a no-op
	cs.removeClient(second)

	var updates []presenceUpdate
	for len(cs.presenceChan) > 0 {
		updates = append(updates, <-cs.presenceChan)
	}
	require.Len(t, updates, 3)
	assert.Equal(t, types.StatusOnline, updates[0].status)
	assert.Equal(t, types.StatusOnline, updates[1].status)
	assert.Equal(t, types.StatusAway, updates[2].status, "away only after the last connection closed")
}

func TestHandleRoomRequest(t *testing.T) {
	cs := newTestChatServer(t, nil)
	c := newTestClient(t, cs, "user-1")
	cs.addClient(&registration{client: c, rooms: []string{"user-1"}})

	cs.handleRoomRequest(&roomRequest{client: c, id: 1, chatId: "chat-1", join: true})
	cs.handleRoomRequest(&roomRequest{client: c, id: 2, chatId: "chat-1", join: true})
	assert.True(t, cs.rooms["chat-1"].has(c))

	cs.handleRoomRequest(&roomRequest{client: c, id: 3, chatId: "chat-1"})
	cs.handleRoomRequest(&roomRequest{client: c, id: 4, chatId: "chat-1"})
	assert.NotContains(t, cs.rooms, "chat-1")

	msgs := drain(c)
	require.Len(t, msgs, 4)
	for i, msg := range msgs {
		assert.Equal(t, i+1, msg.Id)
		assert.Equal(t, 200, msg.Response.ResponseCode)
		assert.Equal(t, "chat-1", msg.Response.Data["chat_id"])
	}

	stale := newTestClient(t, cs, "user-2")
	cs.handleRoomRequest(&roomRequest{client: stale, id: 5, chatId: "chat-1", join: true})
	assert.NotContains(t, cs.rooms, "chat-1", "unregistered connections are ignored")
	assert.Empty(t, drain(stale))
}

func TestHandleEnvelope(t *testing.T) {
	cs := newTestChatServer(t, nil)
	alice := newTestClient(t, cs, "alice")
	bob := newTestClient(t, cs, "bob")
	carol := newTestClient(t, cs, "carol")
	cs.addClient(&registration{client: alice, rooms: []string{"alice"}})
	cs.addClient(&registration{client: bob, rooms: []string{"bob"}})
	cs.addClient(&registration{client: carol, rooms: []string{"carol"}})

	cs.handleEnvelope(Envelope{Kind: KindAddMembers, RoomId: "chat-1", UserIds: []string{"alice", "bob", "offline"}})
	assert.Len(t, cs.rooms["chat-1"].clients, 2)

	cs.handleEnvelope(Envelope{Kind: KindDeliver, RoomId: "chat-1", Message: NewEvent(EventNewMessage, "hi")})
	assert.Len(t, drain(alice), 1)
	assert.Len(t, drain(bob), 1)
	assert.Empty(t, drain(carol))

	cs.handleEnvelope(Envelope{Kind: KindRemoveMembers, RoomId: "chat-1", UserIds: []string{"alice"}})
	cs.handleEnvelope(Envelope{Kind: KindDeliver, RoomId: "chat-1", Message: NewEvent(EventNewMessage, "again")})
	assert.Empty(t, drain(alice))
	assert.Len(t, drain(bob), 1)

	cs.handleEnvelope(Envelope{Kind: KindDropRoom, RoomId: "chat-1"})
	assert.NotContains(t, cs.rooms, "chat-1")
	assert.NotContains(t, bob.rooms, "chat-1")

	// delivering to an unknown room is a no-op
	cs.handleEnvelope(Envelope{Kind: KindDeliver, RoomId: "chat-1", Message: NewEvent(EventNewMessage, "gone")})
	assert.Empty(t, drain(bob))
	cs.handleEnvelope(Envelope{Kind: "bogus"})
}

func TestHandleEnvelope_FullBufferDropsFrame(t *testing.T) {
	su := newMockStats()
	cs := NewChatServer(testutil.TestLogger(t), database.NewMemorySeoulChatRepository(), NewLocalBroker(), su)
	c := newTestClient(t, cs, "alice")
	cs.addClient(&registration{client: c, rooms: []string{"alice"}})

	for i := 0; i < sendBufferSize; i++ {
		require.True(t, c.queueMessage(&ServerMessage{}))
	}

	cs.handleEnvelope(Envelope{Kind: KindDeliver, RoomId: "alice", Message: NewEvent(EventNewMessage, "x")})
	su.AssertCalled(t, "Incr", stats.FramesDropped)
}

func TestConnect(t *testing.T) {
	t.Run("store error", func(t *testing.T) {
		repo := &database.MockSeoulChatRepository{}
		defer repo.AssertExpectations(t)
		repo.On("ListChatIdsForUser", mock.Anything, "user-1").Return(nil, errors.New("db down")).Once()

		cs := newTestChatServer(t, repo)
		err := cs.Connect(context.Background(), newTestClient(t, cs, "user-1"))
		assert.EqualError(t, err, "db down")
	})

	t.Run("server closed", func(t *testing.T) {
		cs := newTestChatServer(t, nil)
		close(cs.stop)

		err := cs.Connect(context.Background(), newTestClient(t, cs, "user-1"))
		assert.ErrorIs(t, err, ErrServerClosed)
	})
}

func TestRunAndShutdown(t *testing.T) {
	repo := database.NewMemorySeoulChatRepository()
	ctx := context.Background()
	alice, err := repo.CreateUser(ctx, database.CreateUserParams{Username: "alice", PasswordHash: "x"})
	require.NoError(t, err)
	bob, err := repo.CreateUser(ctx, database.CreateUserParams{Username: "bob", PasswordHash: "x"})
	require.NoError(t, err)
	chat, _, err := repo.GetOrCreatePrivateChat(ctx, alice.Id, bob.Id)
	require.NoError(t, err)

	cs := newTestChatServer(t, repo)
	go cs.Run()

	c := newTestClient(t, cs, alice.Id)
	require.NoError(t, cs.Connect(ctx, c))

	var connectedAt time.Time
	assert.Eventually(t, func() bool {
		u, err := repo.GetUserById(ctx, alice.Id)
		if err != nil || u.Status != types.StatusOnline || u.LastSeenAt == nil {
			return false
		}
		connectedAt = *u.LastSeenAt
		return true
	}, time.Second, 10*time.Millisecond)
	require.False(t, connectedAt.IsZero(), "expected lastSeenAt to be set on connect")

	cs.NewMessage(ctx, types.Message{Id: "m1", ChatId: chat.Id, Content: "hello"})

	select {
	case msg := <-c.send:
		assert.Equal(t, EventNewMessage, msg.Event)
		assert.Equal(t, "hello", msg.Data.(types.Message).Content)
	case <-time.After(time.Second):
		t.Fatal("expected newMessage to be delivered")
	}

	time.Sleep(5 * time.Millisecond)
	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, cs.Shutdown(shutdownCtx))

	u, err := repo.GetUserById(ctx, alice.Id)
	require.NoError(t, err)
	assert.Equal(t, types.StatusAway, u.Status)
	require.NotNil(t, u.LastSeenAt)
	assert.True(t, u.LastSeenAt.After(connectedAt), "expected lastSeenAt to advance on disconnect")

	select {
	case <-c.stop:
	default:
		t.Error("expected client to be stopped on shutdown")
	}

	// a second shutdown returns immediately
	assert.NoError(t, cs.Shutdown(shutdownCtx))
}

func TestShutdown_ContextDeadline(t *testing.T) {
	cs := newTestChatServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	// the loop is not running, so nothing acknowledges the stop
	assert.ErrorIs(t, cs.Shutdown(ctx), context.DeadlineExceeded)
}
