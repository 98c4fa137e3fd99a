package database

import (
	"context"
	"time"

	"github.com/saschahuberzh/SeoulChat/internal/types"
)

// privateChatName is stored on every private chat; clients render the
// partner's name instead.
const privateChatName = "Private Chat"

// SearchLimit caps the number of users returned by SearchUsers.
const SearchLimit = 20

type UserRepository interface {
	// CreateUser returns ErrConflict when the username is taken.
	CreateUser(ctx context.Context, params CreateUserParams) (User, error)
	GetUserById(ctx context.Context, id string) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	// SearchUsers matches a case-insensitive substring of the username,
	// skipping excludeId, at most SearchLimit results ordered by username.
	SearchUsers(ctx context.Context, query, excludeId string) ([]User, error)
	UpdatePresence(ctx context.Context, userId string, status types.Status, lastSeen time.Time) error
}

type RefreshTokenRepository interface {
	CreateRefreshToken(ctx context.Context, userId, tokenHash string) error
	GetRefreshToken(ctx context.Context, tokenHash string) (RefreshToken, error)
	// RotateRefreshToken deletes the row for oldHash owned by userId and
	// inserts newHash in one transaction. It returns ErrNotFound when the
	// old row is already gone, which makes a token rotatable only once.
	RotateRefreshToken(ctx context.Context, userId, oldHash, newHash string) error
	DeleteRefreshToken(ctx context.Context, tokenHash string) error
	DeleteRefreshTokensForUser(ctx context.Context, userId string) (int64, error)
}

type ChatRepository interface {
	// GetOrCreatePrivateChat returns the private chat between the two users,
	// creating it with both memberships when none exists. The boolean is
	// true when the chat was created by this call.
	GetOrCreatePrivateChat(ctx context.Context, userA, userB string) (Chat, bool, error)
	GetChat(ctx context.Context, chatId string) (Chat, error)
	GetChatDetails(ctx context.Context, chatId string) (ChatDetails, error)
	ListChatsForUser(ctx context.Context, userId string) ([]ChatDetails, error)
	ListChatIdsForUser(ctx context.Context, userId string) ([]string, error)
	ListMemberIds(ctx context.Context, chatId string) ([]string, error)
	MembershipExists(ctx context.Context, userId, chatId string) (bool, error)
	// LeaveChat removes the membership and deletes the chat once it has no
	// members left. It returns ErrNotFound if the user was not a member.
	LeaveChat(ctx context.Context, userId, chatId string) (chatDeleted bool, err error)
	DeleteChat(ctx context.Context, chatId string) error
}

type MessageRepository interface {
	CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error)
	// ListMessages returns every message of the chat, oldest first.
	ListMessages(ctx context.Context, chatId string) ([]Message, error)
}

type AccessLogRepository interface {
	CreateAccessLog(ctx context.Context, entry AccessLog) error
}

type SeoulChatRepository interface {
	Ping(ctx context.Context) error
	UserRepository
	RefreshTokenRepository
	ChatRepository
	MessageRepository
	AccessLogRepository
}

// PrivatePairKey identifies the private chat of two users regardless of
// argument order.
func PrivatePairKey(userA, userB string) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return userA + ":" + userB
}
