package chat

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/saschahuberzh/SeoulChat/internal/database"
	"github.com/saschahuberzh/SeoulChat/internal/testutil"
	"github.com/saschahuberzh/SeoulChat/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type publishedEvent struct {
	name        string
	chatId      string
	userId      string
	memberIds   []string
	chatDeleted bool
	message     types.Message
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) record(e publishedEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) ChatCreated(_ context.Context, chat types.Chat, memberIds []string) {
	p.record(publishedEvent{name: "chatCreated", chatId: chat.Id, memberIds: memberIds})
}

func (p *recordingPublisher) ChatDeleted(_ context.Context, chatId string, memberIds []string) {
	p.record(publishedEvent{name: "chatDeleted", chatId: chatId, memberIds: memberIds})
}

func (p *recordingPublisher) MemberLeft(_ context.Context, chatId, userId string, chatDeleted bool) {
	p.record(publishedEvent{name: "memberLeft", chatId: chatId, userId: userId, chatDeleted: chatDeleted})
}

func (p *recordingPublisher) NewMessage(_ context.Context, msg types.Message) {
	p.record(publishedEvent{name: "newMessage", chatId: msg.ChatId, message: msg})
}

func (p *recordingPublisher) Events() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}

type fixture struct {
	repo     *database.MemorySeoulChatRepository
	pub      *recordingPublisher
	manager  *Manager
	messages *Messages
	alice    database.User
	bob      database.User
	carol    database.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := database.NewMemorySeoulChatRepository()
	pub := &recordingPublisher{}
	f := &fixture{
		repo:     repo,
		pub:      pub,
		manager:  NewManager(repo, pub, testutil.TestLogger(t)),
		messages: NewMessages(repo, pub, testutil.TestLogger(t)),
	}

	for _, name := range []string{"alice", "bob", "carol"} {
		u, err := repo.CreateUser(context.Background(), database.CreateUserParams{Username: name, PasswordHash: "x"})
		require.NoError(t, err)
		switch name {
		case "alice":
			f.alice = u
		case "bob":
			f.bob = u
		case "carol":
			f.carol = u
		}
	}

	return f
}

func TestGetOrCreatePrivateChat(t *testing.T) {
	ctx := context.Background()

	t.Run("idempotent and symmetric", func(t *testing.T) {
		f := newFixture(t)

		chat, created, err := f.manager.GetOrCreatePrivateChat(ctx, f.alice.Id, "bob")
		require.NoError(t, err)
		assert.True(t, created)
		assert.True(t, chat.IsPrivateChat)
		assert.Len(t, chat.Users, 2)

		again, created, err := f.manager.GetOrCreatePrivateChat(ctx, f.bob.Id, "alice")
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, chat.Id, again.Id)

		events := f.pub.Events()
		require.Len(t, events, 1)
		assert.Equal(t, "chatCreated", events[0].name)
		assert.ElementsMatch(t, []string{f.alice.Id, f.bob.Id}, events[0].memberIds)
	})

	tcases := []struct {
		name    string
		partner string
		wantErr error
	}{
		{name: "empty username", partner: "  ", wantErr: ErrInvalidInput},
		{name: "unknown partner", partner: "mallory", wantErr: database.ErrNotFound},
		{name: "self chat", partner: "alice", wantErr: ErrSelfChat},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			_, _, err := f.manager.GetOrCreatePrivateChat(ctx, f.alice.Id, tc.partner)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Empty(t, f.pub.Events())
		})
	}
}

func TestListChatsFor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ab, _, err := f.manager.GetOrCreatePrivateChat(ctx, f.alice.Id, "bob")
	require.NoError(t, err)
	_, _, err = f.manager.GetOrCreatePrivateChat(ctx, f.bob.Id, "carol")
	require.NoError(t, err)
	_, err = f.messages.Send(ctx, f.bob.Id, ab.Id, "hello alice")
	require.NoError(t, err)

	chats, err := f.manager.ListChatsFor(ctx, f.alice.Id)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, ab.Id, chats[0].Id)
	require.NotNil(t, chats[0].LastMessage)
	assert.Equal(t, "hello alice", chats[0].LastMessage.Content)
	assert.Equal(t, "bob", chats[0].LastMessage.Sender.Username)

	chats, err = f.manager.ListChatsFor(ctx, f.bob.Id)
	require.NoError(t, err)
	assert.Len(t, chats, 2)
}

func TestLeave(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	chat, _, err := f.manager.GetOrCreatePrivateChat(ctx, f.alice.Id, "bob")
	require.NoError(t, err)

	deleted, err := f.manager.Leave(ctx, f.alice.Id, chat.Id)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = f.manager.Leave(ctx, f.alice.Id, chat.Id)
	assert.ErrorIs(t, err, ErrNotMember)

	_, err = f.manager.Leave(ctx, f.carol.Id, chat.Id)
	assert.ErrorIs(t, err, ErrNotMember)

	deleted, err = f.manager.Leave(ctx, f.bob.Id, chat.Id)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = f.repo.GetChat(ctx, chat.Id)
	assert.ErrorIs(t, err, database.ErrNotFound)

	events := f.pub.Events()
	require.Len(t, events, 3)
	assert.Equal(t, publishedEvent{name: "memberLeft", chatId: chat.Id, userId: f.alice.Id}, events[1])
	assert.Equal(t, publishedEvent{name: "memberLeft", chatId: chat.Id, userId: f.bob.Id, chatDeleted: true}, events[2])
}

func TestDeleteChat(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	chat, _, err := f.manager.GetOrCreatePrivateChat(ctx, f.alice.Id, "bob")
	require.NoError(t, err)

	assert.ErrorIs(t, f.manager.DeleteChat(ctx, f.carol.Id, chat.Id), ErrForbidden)
	assert.ErrorIs(t, f.manager.DeleteChat(ctx, f.alice.Id, "unknown"), database.ErrNotFound)

	require.NoError(t, f.manager.DeleteChat(ctx, f.bob.Id, chat.Id))
	_, err = f.repo.GetChat(ctx, chat.Id)
	assert.ErrorIs(t, err, database.ErrNotFound)

	events := f.pub.Events()
	last := events[len(events)-1]
	assert.Equal(t, "chatDeleted", last.name)
	assert.ElementsMatch(t, []string{f.alice.Id, f.bob.Id}, last.memberIds)

	assert.ErrorIs(t, f.manager.DeleteChatUnchecked(ctx, chat.Id), database.ErrNotFound)
}

func TestIsMember(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	chat, _, err := f.manager.GetOrCreatePrivateChat(ctx, f.alice.Id, "bob")
	require.NoError(t, err)

	tests := []struct {
		name   string
		userId string
		chatId string
		want   bool
	}{
		{"creator", f.alice.Id, chat.Id, true},
		{"partner", f.bob.Id, chat.Id, true},
		{"outsider", f.carol.Id, chat.Id, false},
		{"unknown chat", f.alice.Id, "unknown", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := f.manager.IsMember(ctx, tc.userId, tc.chatId)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}
}

func TestSearchUsers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.manager.SearchUsers(ctx, f.alice.Id, "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	users, err := f.manager.SearchUsers(ctx, f.alice.Id, "A")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "carol", users[0].Username)
}

func TestSendAndListMessages(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	chat, _, err := f.manager.GetOrCreatePrivateChat(ctx, f.alice.Id, "bob")
	require.NoError(t, err)

	tcases := []struct {
		name    string
		userId  string
		content string
		wantErr error
	}{
		{name: "blank content", userId: f.alice.Id, content: " \n", wantErr: ErrInvalidInput},
		{name: "too long", userId: f.alice.Id, content: strings.Repeat("x", MaxMessageLength+1), wantErr: ErrInvalidInput},
		{name: "non member", userId: f.carol.Id, content: "hi", wantErr: ErrForbidden},
		{name: "member", userId: f.alice.Id, content: "hi bob"},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := f.messages.Send(ctx, tc.userId, chat.Id, tc.content)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.content, msg.Content)
			assert.Equal(t, "alice", msg.Sender.Username)
		})
	}

	_, err = f.messages.Send(ctx, f.bob.Id, chat.Id, "hi alice")
	require.NoError(t, err)

	msgs, err := f.messages.List(ctx, f.bob.Id, chat.Id)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi bob", msgs[0].Content)
	assert.Equal(t, "hi alice", msgs[1].Content)

	_, err = f.messages.List(ctx, f.carol.Id, chat.Id)
	assert.ErrorIs(t, err, ErrForbidden)

	var published int
	for _, e := range f.pub.Events() {
		if e.name == "newMessage" {
			published++
			assert.Equal(t, chat.Id, e.chatId)
		}
	}
	assert.Equal(t, 2, published)
}
