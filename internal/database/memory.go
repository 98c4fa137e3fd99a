package database

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/saschahuberzh/SeoulChat/internal/types"
)

type memoryChat struct {
	Chat
	pairKey string
}

// MemorySeoulChatRepository keeps all records in process memory. It backs
// local development without postgres and the behavioural tests.
type MemorySeoulChatRepository struct {
	mu            sync.Mutex
	users         map[string]User
	refreshTokens map[string]RefreshToken
	chats         map[string]*memoryChat
	members       map[string][]Membership
	messages      map[string][]Message
	accessLogs    []AccessLog
	seq           int64
	now           func() time.Time
}

func NewMemorySeoulChatRepository() *MemorySeoulChatRepository {
	return &MemorySeoulChatRepository{
		users:         make(map[string]User),
		refreshTokens: make(map[string]RefreshToken),
		chats:         make(map[string]*memoryChat),
		members:       make(map[string][]Membership),
		messages:      make(map[string][]Message),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemorySeoulChatRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemorySeoulChatRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Username == params.Username {
			return User{}, ErrConflict
		}
	}

	now := m.now()
	u := User{
		Id:           uuid.NewString(),
		Username:     params.Username,
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		DisplayName:  params.DisplayName,
		Status:       types.StatusOffline,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.users[u.Id] = u

	return u, nil
}

func (m *MemorySeoulChatRepository) GetUserById(ctx context.Context, id string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *MemorySeoulChatRepository) GetUserByUsername(ctx context.Context, username string) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *MemorySeoulChatRepository) SearchUsers(ctx context.Context, query, excludeId string) ([]User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	needle := strings.ToLower(query)
	users := make([]User, 0)
	for _, u := range m.users {
		if u.Id != excludeId && strings.Contains(strings.ToLower(u.Username), needle) {
			users = append(users, u)
		}
	}

	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	if len(users) > SearchLimit {
		users = users[:SearchLimit]
	}

	return users, nil
}

func (m *MemorySeoulChatRepository) UpdatePresence(ctx context.Context, userId string, status types.Status, lastSeen time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userId]
	if !ok {
		return ErrNotFound
	}

	seen := lastSeen.UTC()
	u.Status = status
	u.LastSeenAt = &seen
	u.UpdatedAt = seen
	m.users[userId] = u

	return nil
}

func (m *MemorySeoulChatRepository) CreateRefreshToken(ctx context.Context, userId, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.refreshTokens[tokenHash]; ok {
		return ErrConflict
	}
	m.refreshTokens[tokenHash] = RefreshToken{TokenHash: tokenHash, UserId: userId, CreatedAt: m.now()}

	return nil
}

func (m *MemorySeoulChatRepository) GetRefreshToken(ctx context.Context, tokenHash string) (RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rt, ok := m.refreshTokens[tokenHash]
	if !ok {
		return RefreshToken{}, ErrNotFound
	}
	return rt, nil
}

func (m *MemorySeoulChatRepository) RotateRefreshToken(ctx context.Context, userId, oldHash, newHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rt, ok := m.refreshTokens[oldHash]
	if !ok || rt.UserId != userId {
		return ErrNotFound
	}
	if _, ok := m.refreshTokens[newHash]; ok {
		return ErrConflict
	}

	delete(m.refreshTokens, oldHash)
	m.refreshTokens[newHash] = RefreshToken{TokenHash: newHash, UserId: userId, CreatedAt: m.now()}

	return nil
}

func (m *MemorySeoulChatRepository) DeleteRefreshToken(ctx context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.refreshTokens, tokenHash)
	return nil
}

func (m *MemorySeoulChatRepository) DeleteRefreshTokensForUser(ctx context.Context, userId string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for hash, rt := range m.refreshTokens {
		if rt.UserId == userId {
			delete(m.refreshTokens, hash)
			n++
		}
	}
	return n, nil
}

func (m *MemorySeoulChatRepository) GetOrCreatePrivateChat(ctx context.Context, userA, userB string) (Chat, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[userA]; !ok {
		return Chat{}, false, ErrNotFound
	}
	if _, ok := m.users[userB]; !ok {
		return Chat{}, false, ErrNotFound
	}

	var (
		chat    *memoryChat
		created bool
	)

	pairKey := PrivatePairKey(userA, userB)
	for _, c := range m.chats {
		if c.pairKey == pairKey {
			chat = c
			break
		}
	}

	now := m.now()
	if chat == nil {
		chat = &memoryChat{
			Chat: Chat{
				Id:            uuid.NewString(),
				Name:          privateChatName,
				IsPrivateChat: true,
				CreatedAt:     now,
				UpdatedAt:     now,
			},
			pairKey: pairKey,
		}
		m.chats[chat.Id] = chat
		created = true
	}

	for _, userId := range []string{userA, userB} {
		if !m.isMemberLocked(userId, chat.Id) {
			m.members[chat.Id] = append(m.members[chat.Id], Membership{UserId: userId, ChatId: chat.Id, JoinedAt: now})
			created = true
		}
	}

	return chat.Chat, created, nil
}

func (m *MemorySeoulChatRepository) GetChat(ctx context.Context, chatId string) (Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.chats[chatId]
	if !ok {
		return Chat{}, ErrNotFound
	}
	return c.Chat, nil
}

func (m *MemorySeoulChatRepository) GetChatDetails(ctx context.Context, chatId string) (ChatDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.chats[chatId]
	if !ok {
		return ChatDetails{}, ErrNotFound
	}
	return m.detailsLocked(c.Chat), nil
}

func (m *MemorySeoulChatRepository) ListChatsForUser(ctx context.Context, userId string) ([]ChatDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	chats := make([]ChatDetails, 0)
	for _, c := range m.chats {
		if m.isMemberLocked(userId, c.Id) {
			chats = append(chats, m.detailsLocked(c.Chat))
		}
	}

	sort.Slice(chats, func(i, j int) bool {
		if !chats[i].UpdatedAt.Equal(chats[j].UpdatedAt) {
			return chats[i].UpdatedAt.After(chats[j].UpdatedAt)
		}
		return chats[i].Id < chats[j].Id
	})

	return chats, nil
}

func (m *MemorySeoulChatRepository) detailsLocked(c Chat) ChatDetails {
	members := append([]Membership(nil), m.members[c.Id]...)
	sort.SliceStable(members, func(i, j int) bool {
		if !members[i].JoinedAt.Equal(members[j].JoinedAt) {
			return members[i].JoinedAt.Before(members[j].JoinedAt)
		}
		return m.users[members[i].UserId].Username < m.users[members[j].UserId].Username
	})

	details := ChatDetails{Chat: c, Members: make([]User, 0, len(members))}
	for _, mem := range members {
		details.Members = append(details.Members, m.users[mem.UserId])
	}

	// Messages are stored in insertion order.
	if msgs := m.messages[c.Id]; len(msgs) > 0 {
		last := msgs[len(msgs)-1]
		last.Sender = m.users[last.SenderId]
		details.LastMessage = &last
	}

	return details
}

func (m *MemorySeoulChatRepository) ListChatIdsForUser(ctx context.Context, userId string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0)
	for chatId, members := range m.members {
		for _, mem := range members {
			if mem.UserId == userId {
				ids = append(ids, chatId)
				break
			}
		}
	}
	sort.Strings(ids)

	return ids, nil
}

func (m *MemorySeoulChatRepository) ListMemberIds(ctx context.Context, chatId string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.members[chatId]))
	for _, mem := range m.members[chatId] {
		ids = append(ids, mem.UserId)
	}
	return ids, nil
}

func (m *MemorySeoulChatRepository) MembershipExists(ctx context.Context, userId, chatId string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.isMemberLocked(userId, chatId), nil
}

func (m *MemorySeoulChatRepository) isMemberLocked(userId, chatId string) bool {
	for _, mem := range m.members[chatId] {
		if mem.UserId == userId {
			return true
		}
	}
	return false
}

func (m *MemorySeoulChatRepository) LeaveChat(ctx context.Context, userId, chatId string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	members := m.members[chatId]
	for i, mem := range members {
		if mem.UserId != userId {
			continue
		}

		members = append(members[:i:i], members[i+1:]...)
		if len(members) > 0 {
			m.members[chatId] = members
			return false, nil
		}

		m.deleteChatLocked(chatId)
		return true, nil
	}

	return false, ErrNotFound
}

func (m *MemorySeoulChatRepository) DeleteChat(ctx context.Context, chatId string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.chats[chatId]; !ok {
		return ErrNotFound
	}
	m.deleteChatLocked(chatId)

	return nil
}

func (m *MemorySeoulChatRepository) deleteChatLocked(chatId string) {
	delete(m.chats, chatId)
	delete(m.members, chatId)
	delete(m.messages, chatId)
}

func (m *MemorySeoulChatRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	chat, ok := m.chats[params.ChatId]
	if !ok {
		return Message{}, ErrNotFound
	}
	sender, ok := m.users[params.SenderId]
	if !ok {
		return Message{}, ErrNotFound
	}

	m.seq++
	msg := Message{
		Id:        uuid.NewString(),
		Seq:       m.seq,
		Content:   params.Content,
		SenderId:  params.SenderId,
		ChatId:    params.ChatId,
		CreatedAt: m.now(),
	}
	m.messages[params.ChatId] = append(m.messages[params.ChatId], msg)
	chat.UpdatedAt = msg.CreatedAt

	msg.Sender = sender
	return msg, nil
}

func (m *MemorySeoulChatRepository) ListMessages(ctx context.Context, chatId string) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	msgs := make([]Message, 0, len(m.messages[chatId]))
	for _, msg := range m.messages[chatId] {
		msg.Sender = m.users[msg.SenderId]
		msgs = append(msgs, msg)
	}

	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].Seq < msgs[j].Seq
	})

	return msgs, nil
}

func (m *MemorySeoulChatRepository) CreateAccessLog(ctx context.Context, entry AccessLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.accessLogs = append(m.accessLogs, entry)
	return nil
}

// AccessLogs returns a copy of the recorded access log entries.
func (m *MemorySeoulChatRepository) AccessLogs() []AccessLog {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]AccessLog(nil), m.accessLogs...)
}
