package database

import (
	"context"
	"time"

	"github.com/saschahuberzh/SeoulChat/internal/types"
	"github.com/stretchr/testify/mock"
)

type MockSeoulChatRepository struct {
	mock.Mock
}

func (m *MockSeoulChatRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockSeoulChatRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockSeoulChatRepository) GetUserById(ctx context.Context, id string) (User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockSeoulChatRepository) GetUserByUsername(ctx context.Context, username string) (User, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockSeoulChatRepository) SearchUsers(ctx context.Context, query, excludeId string) ([]User, error) {
	args := m.Called(ctx, query, excludeId)
	if users, ok := args.Get(0).([]User); ok {
		return users, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockSeoulChatRepository) UpdatePresence(ctx context.Context, userId string, status types.Status, lastSeen time.Time) error {
	args := m.Called(ctx, userId, status, lastSeen)
	return args.Error(0)
}
func (m *MockSeoulChatRepository) CreateRefreshToken(ctx context.Context, userId, tokenHash string) error {
	args := m.Called(ctx, userId, tokenHash)
	return args.Error(0)
}
func (m *MockSeoulChatRepository) GetRefreshToken(ctx context.Context, tokenHash string) (RefreshToken, error) {
	args := m.Called(ctx, tokenHash)
	return args.Get(0).(RefreshToken), args.Error(1)
}
func (m *MockSeoulChatRepository) RotateRefreshToken(ctx context.Context, userId, oldHash, newHash string) error {
	args := m.Called(ctx, userId, oldHash, newHash)
	return args.Error(0)
}
func (m *MockSeoulChatRepository) DeleteRefreshToken(ctx context.Context, tokenHash string) error {
	args := m.Called(ctx, tokenHash)
	return args.Error(0)
}
func (m *MockSeoulChatRepository) DeleteRefreshTokensForUser(ctx context.Context, userId string) (int64, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockSeoulChatRepository) GetOrCreatePrivateChat(ctx context.Context, userA, userB string) (Chat, bool, error) {
	args := m.Called(ctx, userA, userB)
	return args.Get(0).(Chat), args.Bool(1), args.Error(2)
}
func (m *MockSeoulChatRepository) GetChat(ctx context.Context, chatId string) (Chat, error) {
	args := m.Called(ctx, chatId)
	return args.Get(0).(Chat), args.Error(1)
}
func (m *MockSeoulChatRepository) GetChatDetails(ctx context.Context, chatId string) (ChatDetails, error) {
	args := m.Called(ctx, chatId)
	return args.Get(0).(ChatDetails), args.Error(1)
}
func (m *MockSeoulChatRepository) ListChatsForUser(ctx context.Context, userId string) ([]ChatDetails, error) {
	args := m.Called(ctx, userId)
	if chats, ok := args.Get(0).([]ChatDetails); ok {
		return chats, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockSeoulChatRepository) ListChatIdsForUser(ctx context.Context, userId string) ([]string, error) {
	args := m.Called(ctx, userId)
	if ids, ok := args.Get(0).([]string); ok {
		return ids, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockSeoulChatRepository) ListMemberIds(ctx context.Context, chatId string) ([]string, error) {
	args := m.Called(ctx, chatId)
	if ids, ok := args.Get(0).([]string); ok {
		return ids, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockSeoulChatRepository) MembershipExists(ctx context.Context, userId, chatId string) (bool, error) {
	args := m.Called(ctx, userId, chatId)
	return args.Bool(0), args.Error(1)
}
func (m *MockSeoulChatRepository) LeaveChat(ctx context.Context, userId, chatId string) (bool, error) {
	args := m.Called(ctx, userId, chatId)
	return args.Bool(0), args.Error(1)
}
func (m *MockSeoulChatRepository) DeleteChat(ctx context.Context, chatId string) error {
	args := m.Called(ctx, chatId)
	return args.Error(0)
}
func (m *MockSeoulChatRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockSeoulChatRepository) ListMessages(ctx context.Context, chatId string) ([]Message, error) {
	args := m.Called(ctx, chatId)
	if msgs, ok := args.Get(0).([]Message); ok {
		return msgs, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockSeoulChatRepository) CreateAccessLog(ctx context.Context, entry AccessLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}
