package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/saschahuberzh/SeoulChat/internal/database"
	"github.com/saschahuberzh/SeoulChat/internal/types"
)

// MaxMessageLength is the longest accepted message content in bytes.
const MaxMessageLength = 4000

type Messages struct {
	store     Store
	publisher Publisher
	log       zerolog.Logger
}

func NewMessages(store Store, publisher Publisher, logger zerolog.Logger) *Messages {
	if publisher == nil {
		publisher = nopPublisher{}
	}

	return &Messages{
		store:     store,
		publisher: publisher,
		log:       logger.With().Str("component", "messages").Logger(),
	}
}

// Send persists a message from userId and publishes it to the chat room.
func (s *Messages) Send(ctx context.Context, userId, chatId, content string) (types.Message, error) {
	if strings.TrimSpace(content) == "" {
		return types.Message{}, fmt.Errorf("%w: message content is required", ErrInvalidInput)
	}
	if len(content) > MaxMessageLength {
		return types.Message{}, fmt.Errorf("%w: message content exceeds %d bytes", ErrInvalidInput, MaxMessageLength)
	}

	if err := s.requireMember(ctx, userId, chatId); err != nil {
		return types.Message{}, err
	}

	dbMsg, err := s.store.CreateMessage(ctx, database.CreateMessageParams{
		ChatId:   chatId,
		SenderId: userId,
		Content:  content,
	})
	if err != nil {
		return types.Message{}, fmt.Errorf("create message: %w", err)
	}

	msg := Message(dbMsg)
	s.log.Debug().Str("chat_id", chatId).Str("message_id", msg.Id).Msg("message stored")
	s.publisher.NewMessage(ctx, msg)

	return msg, nil
}

// List returns the chat history oldest first.
func (s *Messages) List(ctx context.Context, userId, chatId string) ([]types.Message, error) {
	if err := s.requireMember(ctx, userId, chatId); err != nil {
		return nil, err
	}

	dbMsgs, err := s.store.ListMessages(ctx, chatId)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	msgs := make([]types.Message, 0, len(dbMsgs))
	for _, m := range dbMsgs {
		msgs = append(msgs, Message(m))
	}

	return msgs, nil
}

func (s *Messages) requireMember(ctx context.Context, userId, chatId string) error {
	ok, err := s.store.MembershipExists(ctx, userId, chatId)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}
