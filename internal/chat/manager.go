package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/saschahuberzh/SeoulChat/internal/database"
	"github.com/saschahuberzh/SeoulChat/internal/types"
)

// Store is the persistence needed by the chat services.
type Store interface {
	database.UserRepository
	database.ChatRepository
	database.MessageRepository
}

// Manager owns chat lifecycle and membership.
type Manager struct {
	store     Store
	publisher Publisher
	log       zerolog.Logger
}

func NewManager(store Store, publisher Publisher, logger zerolog.Logger) *Manager {
	if publisher == nil {
		publisher = nopPublisher{}
	}

	return &Manager{
		store:     store,
		publisher: publisher,
		log:       logger.With().Str("component", "chat_manager").Logger(),
	}
}

// GetOrCreatePrivateChat returns the private chat between userId and the user
// named partnerUsername. The boolean reports whether the chat was created.
func (m *Manager) GetOrCreatePrivateChat(ctx context.Context, userId, partnerUsername string) (types.Chat, bool, error) {
	partnerUsername = strings.TrimSpace(partnerUsername)
	if partnerUsername == "" {
		return types.Chat{}, false, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}

	partner, err := m.store.GetUserByUsername(ctx, partnerUsername)
	if err != nil {
		return types.Chat{}, false, fmt.Errorf("get partner: %w", err)
	}

	if partner.Id == userId {
		return types.Chat{}, false, ErrSelfChat
	}

	c, created, err := m.store.GetOrCreatePrivateChat(ctx, userId, partner.Id)
	if err != nil {
		return types.Chat{}, false, fmt.Errorf("get or create private chat: %w", err)
	}

	details, err := m.store.GetChatDetails(ctx, c.Id)
	if err != nil {
		return types.Chat{}, false, fmt.Errorf("get chat details: %w", err)
	}

	chat := Chat(details)
	if created {
		m.log.Debug().
			Str("chat_id", chat.Id).
			Str("user_id", userId).
			Str("partner_id", partner.Id).
			Msg("private chat created")
		m.publisher.ChatCreated(ctx, chat, memberIds(details))
	}

	return chat, created, nil
}

func (m *Manager) ListChatsFor(ctx context.Context, userId string) ([]types.Chat, error) {
	details, err := m.store.ListChatsForUser(ctx, userId)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}

	chats := make([]types.Chat, 0, len(details))
	for _, d := range details {
		chats = append(chats, Chat(d))
	}

	return chats, nil
}

// Leave removes userId from the chat and deletes the chat once nobody is
// left in it.
func (m *Manager) Leave(ctx context.Context, userId, chatId string) (bool, error) {
	chatDeleted, err := m.store.LeaveChat(ctx, userId, chatId)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return false, ErrNotMember
		}
		return false, fmt.Errorf("leave chat: %w", err)
	}

	m.publisher.MemberLeft(ctx, chatId, userId, chatDeleted)

	return chatDeleted, nil
}

// DeleteChat deletes a chat on behalf of one of its members.
func (m *Manager) DeleteChat(ctx context.Context, userId, chatId string) error {
	if _, err := m.store.GetChat(ctx, chatId); err != nil {
		return fmt.Errorf("get chat: %w", err)
	}

	ok, err := m.store.MembershipExists(ctx, userId, chatId)
	if err != nil {
		return fmt.Errorf("check membership: %w", err)
	}
	if !ok {
		return ErrForbidden
	}

	return m.DeleteChatUnchecked(ctx, chatId)
}

// DeleteChatUnchecked deletes a chat without an authorization check.
func (m *Manager) DeleteChatUnchecked(ctx context.Context, chatId string) error {
	members, err := m.store.ListMemberIds(ctx, chatId)
	if err != nil {
		return fmt.Errorf("list members: %w", err)
	}

	if err := m.store.DeleteChat(ctx, chatId); err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}

	m.publisher.ChatDeleted(ctx, chatId, members)

	return nil
}

func (m *Manager) IsMember(ctx context.Context, userId, chatId string) (bool, error) {
	return m.store.MembershipExists(ctx, userId, chatId)
}

func (m *Manager) SearchUsers(ctx context.Context, userId, query string) ([]types.UserSummary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: username query is required", ErrInvalidInput)
	}

	users, err := m.store.SearchUsers(ctx, query, userId)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}

	summaries := make([]types.UserSummary, 0, len(users))
	for _, u := range users {
		summaries = append(summaries, UserSummary(u))
	}

	return summaries, nil
}
