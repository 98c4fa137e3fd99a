package server

import (
	"context"

	"github.com/saschahuberzh/SeoulChat/internal/stats"
	"github.com/saschahuberzh/SeoulChat/internal/types"
)

func (cs *ChatServer) publish(ctx context.Context, env Envelope) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := cs.broker.Publish(ctx, env); err != nil {
		cs.log.Error().Err(err).Str("kind", env.Kind).Str("room_id", env.RoomId).Msg("failed to publish envelope")
		return
	}
	cs.stats.Incr(stats.EventsPublished)
}

func (cs *ChatServer) deliver(ctx context.Context, roomId string, msg *ServerMessage) {
	cs.publish(ctx, Envelope{Kind: KindDeliver, RoomId: roomId, Message: msg})
}

// ChatCreated subscribes the members' live connections to the new chat room
// and notifies each member on their personal room.
func (cs *ChatServer) ChatCreated(ctx context.Context, chat types.Chat, memberIds []string) {
	cs.publish(ctx, Envelope{Kind: KindAddMembers, RoomId: chat.Id, UserIds: memberIds})

	msg := NewEvent(EventChatCreated, chat)
	for _, userId := range memberIds {
		cs.deliver(ctx, userId, msg)
	}
}

func (cs *ChatServer) ChatDeleted(ctx context.Context, chatId string, memberIds []string) {
	msg := NewEvent(EventChatDeleted, ChatDeleted{ChatId: chatId})
	for _, userId := range memberIds {
		cs.deliver(ctx, userId, msg)
	}

	cs.publish(ctx, Envelope{Kind: KindDropRoom, RoomId: chatId})
}

func (cs *ChatServer) MemberLeft(ctx context.Context, chatId, userId string, chatDeleted bool) {
	cs.publish(ctx, Envelope{Kind: KindRemoveMembers, RoomId: chatId, UserIds: []string{userId}})

	msg := NewEvent(EventMemberLeft, MemberLeft{ChatId: chatId, UserId: userId, ChatDeleted: chatDeleted})
	cs.deliver(ctx, userId, msg)

	if chatDeleted {
		cs.publish(ctx, Envelope{Kind: KindDropRoom, RoomId: chatId})
		return
	}
	cs.deliver(ctx, chatId, msg)
}

func (cs *ChatServer) NewMessage(ctx context.Context, msg types.Message) {
	cs.deliver(ctx, msg.ChatId, NewEvent(EventNewMessage, msg))
}
