package chat

import (
	"context"

	"github.com/saschahuberzh/SeoulChat/internal/types"
)

// Publisher delivers chat events to live connections. Calls are made after
// the change was persisted and are best-effort.
type Publisher interface {
	ChatCreated(ctx context.Context, chat types.Chat, memberIds []string)
	ChatDeleted(ctx context.Context, chatId string, memberIds []string)
	MemberLeft(ctx context.Context, chatId, userId string, chatDeleted bool)
	NewMessage(ctx context.Context, msg types.Message)
}

type nopPublisher struct{}

func (nopPublisher) ChatCreated(context.Context, types.Chat, []string) {}
func (nopPublisher) ChatDeleted(context.Context, string, []string) {}
func (nopPublisher) MemberLeft(context.Context, string, string, bool) {}
func (nopPublisher) NewMessage(context.Context, types.Message) {}
