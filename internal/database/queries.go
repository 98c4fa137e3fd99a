package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/saschahuberzh/SeoulChat/internal/types"
)

const (
	userColumns = "u.id, u.username, u.email, u.password_hash, u.display_name, u.avatar_url, u.status, u.last_seen_at, u.created_at, u.updated_at"
	chatColumns = "c.id, c.name, c.is_private_chat, c.created_at, c.updated_at"

	createMembershipQuery = "INSERT INTO chat_members (user_id, chat_id, joined_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type scanner interface {
	Scan(dest ...any) error
}

// userScan collects the destinations of userColumns so a user can be
// scanned next to other columns of the same row.
type userScan struct {
	user     User
	status   string
	lastSeen sql.NullTime
}

func (s *userScan) dest() []any {
	return []any{
		&s.user.Id,
		&s.user.Username,
		&s.user.Email,
		&s.user.PasswordHash,
		&s.user.DisplayName,
		&s.user.AvatarUrl,
		&s.status,
		&s.lastSeen,
		&s.user.CreatedAt,
		&s.user.UpdatedAt,
	}
}

func (s *userScan) result() User {
	u := s.user
	u.Status = types.Status(s.status)
	if s.lastSeen.Valid {
		t := s.lastSeen.Time
		u.LastSeenAt = &t
	}
	return u
}

func scanUser(row scanner, extra ...any) (User, error) {
	var s userScan
	if err := row.Scan(append(s.dest(), extra...)...); err != nil {
		return User{}, err
	}
	return s.result(), nil
}

func scanChat(row scanner) (Chat, error) {
	var c Chat
	err := row.Scan(
		&c.Id,
		&c.Name,
		&c.IsPrivateChat,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

func (db *PgSeoulChatRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	now := time.Now().UTC()
	row := db.conn.QueryRowContext(ctx,
		"INSERT INTO users AS u (id, username, email, password_hash, display_name, status, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $7) RETURNING "+userColumns,
		uuid.NewString(),
		params.Username,
		params.Email,
		params.PasswordHash,
		params.DisplayName,
		string(types.StatusOffline),
		now,
	)

	u, err := scanUser(row)
	return u, translateError(err)
}

func (db *PgSeoulChatRepository) GetUserById(ctx context.Context, id string) (User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return User{}, ErrNotFound
	}

	row := db.conn.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users u WHERE u.id = $1 LIMIT 1",
		id,
	)

	u, err := scanUser(row)
	return u, translateError(err)
}

func (db *PgSeoulChatRepository) GetUserByUsername(ctx context.Context, username string) (User, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users u WHERE u.username = $1 LIMIT 1",
		username,
	)

	u, err := scanUser(row)
	return u, translateError(err)
}

func (db *PgSeoulChatRepository) SearchUsers(ctx context.Context, query, excludeId string) ([]User, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users u "+
			`WHERE u.username ILIKE '%' || $1 || '%' ESCAPE '\' AND u.id::text <> $2 `+
			"ORDER BY u.username LIMIT $3",
		likeEscaper.Replace(query),
		excludeId,
		SearchLimit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

func (db *PgSeoulChatRepository) UpdatePresence(ctx context.Context, userId string, status types.Status, lastSeen time.Time) error {
	res, err := db.conn.ExecContext(ctx,
		"UPDATE users SET status = $2, last_seen_at = $3, updated_at = $3 WHERE id = $1",
		userId,
		string(status),
		lastSeen.UTC(),
	)
	if err != nil {
		return err
	}

	return expectAffected(res)
}

func (db *PgSeoulChatRepository) CreateRefreshToken(ctx context.Context, userId, tokenHash string) error {
	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO refresh_tokens (token_hash, user_id, created_at) VALUES ($1, $2, $3)",
		tokenHash,
		userId,
		time.Now().UTC(),
	)

	return translateError(err)
}

func (db *PgSeoulChatRepository) GetRefreshToken(ctx context.Context, tokenHash string) (RefreshToken, error) {
	row := db.conn.QueryRowContext(ctx,
		"SELECT token_hash, user_id, created_at FROM refresh_tokens WHERE token_hash = $1",
		tokenHash,
	)

	var rt RefreshToken
	err := row.Scan(&rt.TokenHash, &rt.UserId, &rt.CreatedAt)

	return rt, translateError(err)
}

func (db *PgSeoulChatRepository) RotateRefreshToken(ctx context.Context, userId, oldHash, newHash string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"DELETE FROM refresh_tokens WHERE token_hash = $1 AND user_id = $2",
			oldHash,
			userId,
		)
		if err != nil {
			return err
		}
		if err := expectAffected(res); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO refresh_tokens (token_hash, user_id, created_at) VALUES ($1, $2, $3)",
			newHash,
			userId,
			time.Now().UTC(),
		)

		return translateError(err)
	})
}

func (db *PgSeoulChatRepository) DeleteRefreshToken(ctx context.Context, tokenHash string) error {
	_, err := db.conn.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE token_hash = $1", tokenHash)
	return err
}

func (db *PgSeoulChatRepository) DeleteRefreshTokensForUser(ctx context.Context, userId string) (int64, error) {
	res, err := db.conn.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE user_id = $1", userId)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (db *PgSeoulChatRepository) GetOrCreatePrivateChat(ctx context.Context, userA, userB string) (Chat, bool, error) {
	var (
		chat    Chat
		created bool
	)

	pairKey := PrivatePairKey(userA, userB)
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		row := tx.QueryRowContext(ctx,
			"INSERT INTO chats AS c (id, name, is_private_chat, private_pair_key, created_at, updated_at) "+
				"VALUES ($1, $2, TRUE, $3, $4, $4) ON CONFLICT (private_pair_key) DO NOTHING RETURNING "+chatColumns,
			uuid.NewString(),
			privateChatName,
			pairKey,
			now,
		)

		var err error
		chat, err = scanChat(row)
		switch {
		case err == nil:
			created = true
		case errors.Is(err, sql.ErrNoRows):
			// Another transaction owns the pair key.
			chat, err = scanChat(tx.QueryRowContext(ctx,
				"SELECT "+chatColumns+" FROM chats c WHERE c.private_pair_key = $1",
				pairKey,
			))
			if err != nil {
				return err
			}
		default:
			return err
		}

		// Memberships are restored for a member that left the chat earlier.
		for _, userId := range []string{userA, userB} {
			res, err := tx.ExecContext(ctx, createMembershipQuery, userId, chat.Id, now)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n > 0 {
				created = true
			}
		}

		return nil
	})
	if err != nil {
		return Chat{}, false, translateError(err)
	}

	return chat, created, nil
}

func (db *PgSeoulChatRepository) GetChat(ctx context.Context, chatId string) (Chat, error) {
	if _, err := uuid.Parse(chatId); err != nil {
		return Chat{}, ErrNotFound
	}

	chat, err := scanChat(db.conn.QueryRowContext(ctx,
		"SELECT "+chatColumns+" FROM chats c WHERE c.id = $1",
		chatId,
	))

	return chat, translateError(err)
}

func (db *PgSeoulChatRepository) GetChatDetails(ctx context.Context, chatId string) (ChatDetails, error) {
	chat, err := db.GetChat(ctx, chatId)
	if err != nil {
		return ChatDetails{}, err
	}

	details, err := db.attachDetails(ctx, []Chat{chat})
	if err != nil {
		return ChatDetails{}, err
	}

	return details[0], nil
}

func (db *PgSeoulChatRepository) ListChatsForUser(ctx context.Context, userId string) ([]ChatDetails, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT "+chatColumns+" FROM chats c "+
			"JOIN chat_members m ON m.chat_id = c.id "+
			"WHERE m.user_id = $1 ORDER BY c.updated_at DESC, c.id",
		userId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return db.attachDetails(ctx, chats)
}

// attachDetails loads the members and the latest message of each chat with
// one query per relation.
func (db *PgSeoulChatRepository) attachDetails(ctx context.Context, chats []Chat) ([]ChatDetails, error) {
	details := make([]ChatDetails, len(chats))
	if len(chats) == 0 {
		return details, nil
	}

	ids := make([]string, len(chats))
	index := make(map[string]int, len(chats))
	for i, c := range chats {
		ids[i] = c.Id
		index[c.Id] = i
		details[i] = ChatDetails{Chat: c, Members: make([]User, 0, 2)}
	}

	memberRows, err := db.conn.QueryContext(ctx,
		"SELECT "+userColumns+", m.chat_id FROM chat_members m "+
			"JOIN users u ON u.id = m.user_id "+
			"WHERE m.chat_id::text = ANY($1) ORDER BY m.joined_at, u.username",
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("fetch members: %w", err)
	}
	defer memberRows.Close()

	for memberRows.Next() {
		var chatId string
		u, err := scanUser(memberRows, &chatId)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		i := index[chatId]
		details[i].Members = append(details[i].Members, u)
	}
	if err := memberRows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	msgRows, err := db.conn.QueryContext(ctx,
		"SELECT DISTINCT ON (msg.chat_id) msg.id, msg.seq, msg.content, msg.sender_id, msg.chat_id, msg.created_at, "+userColumns+
			" FROM messages msg JOIN users u ON u.id = msg.sender_id "+
			"WHERE msg.chat_id::text = ANY($1) ORDER BY msg.chat_id, msg.created_at DESC, msg.seq DESC",
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("fetch last messages: %w", err)
	}
	defer msgRows.Close()

	for msgRows.Next() {
		msg, err := scanMessage(msgRows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		details[index[msg.ChatId]].LastMessage = &msg
	}

	return details, msgRows.Err()
}

func (db *PgSeoulChatRepository) ListChatIdsForUser(ctx context.Context, userId string) ([]string, error) {
	return db.queryIds(ctx, "SELECT chat_id FROM chat_members WHERE user_id = $1", userId)
}

func (db *PgSeoulChatRepository) ListMemberIds(ctx context.Context, chatId string) ([]string, error) {
	return db.queryIds(ctx, "SELECT user_id FROM chat_members WHERE chat_id = $1 ORDER BY joined_at", chatId)
}

func (db *PgSeoulChatRepository) queryIds(ctx context.Context, query, arg string) ([]string, error) {
	if _, err := uuid.Parse(arg); err != nil {
		return []string{}, nil
	}

	rows, err := db.conn.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (db *PgSeoulChatRepository) MembershipExists(ctx context.Context, userId, chatId string) (bool, error) {
	if _, err := uuid.Parse(chatId); err != nil {
		return false, nil
	}

	var exists bool
	err := db.conn.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM chat_members WHERE user_id = $1 AND chat_id = $2)",
		userId,
		chatId,
	).Scan(&exists)

	return exists, err
}

func (db *PgSeoulChatRepository) LeaveChat(ctx context.Context, userId, chatId string) (bool, error) {
	if _, err := uuid.Parse(chatId); err != nil {
		return false, ErrNotFound
	}

	var chatDeleted bool
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		// Leaves of one chat are serialized on the chat row, otherwise two
		// concurrent leaves each see the other member and keep an empty chat.
		var lockedId string
		err := tx.QueryRowContext(ctx, "SELECT id FROM chats WHERE id = $1 FOR UPDATE", chatId).Scan(&lockedId)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			"DELETE FROM chat_members WHERE user_id = $1 AND chat_id = $2",
			userId,
			chatId,
		)
		if err != nil {
			return err
		}
		if err := expectAffected(res); err != nil {
			return err
		}

		res, err = tx.ExecContext(ctx,
			"DELETE FROM chats WHERE id = $1 AND NOT EXISTS (SELECT 1 FROM chat_members WHERE chat_id = $1)",
			chatId,
		)
		if err != nil {
			return err
		}

		n, err := res.RowsAffected()
		chatDeleted = n > 0
		return err
	})

	return chatDeleted, err
}

func (db *PgSeoulChatRepository) DeleteChat(ctx context.Context, chatId string) error {
	if _, err := uuid.Parse(chatId); err != nil {
		return ErrNotFound
	}

	res, err := db.conn.ExecContext(ctx, "DELETE FROM chats WHERE id = $1", chatId)
	if err != nil {
		return err
	}

	return expectAffected(res)
}

func scanMessage(row scanner) (Message, error) {
	var (
		msg    Message
		sender userScan
	)

	dest := append([]any{
		&msg.Id,
		&msg.Seq,
		&msg.Content,
		&msg.SenderId,
		&msg.ChatId,
		&msg.CreatedAt,
	}, sender.dest()...)
	if err := row.Scan(dest...); err != nil {
		return Message{}, err
	}

	msg.Sender = sender.result()
	return msg, nil
}

func (db *PgSeoulChatRepository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	var msg Message
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		row := tx.QueryRowContext(ctx,
			"WITH msg AS ("+
				"INSERT INTO messages (id, content, sender_id, chat_id, created_at) "+
				"VALUES ($1, $2, $3, $4, $5) RETURNING id, seq, content, sender_id, chat_id, created_at"+
				") SELECT msg.id, msg.seq, msg.content, msg.sender_id, msg.chat_id, msg.created_at, "+userColumns+
				" FROM msg JOIN users u ON u.id = msg.sender_id",
			uuid.NewString(),
			params.Content,
			params.SenderId,
			params.ChatId,
			now,
		)

		var err error
		if msg, err = scanMessage(row); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, "UPDATE chats SET updated_at = $2 WHERE id = $1", params.ChatId, now)
		return err
	})

	return msg, translateError(err)
}

func (db *PgSeoulChatRepository) ListMessages(ctx context.Context, chatId string) ([]Message, error) {
	messages := make([]Message, 0)
	if _, err := uuid.Parse(chatId); err != nil {
		return messages, nil
	}

	rows, err := db.conn.QueryContext(ctx,
		"SELECT msg.id, msg.seq, msg.content, msg.sender_id, msg.chat_id, msg.created_at, "+userColumns+
			" FROM messages msg JOIN users u ON u.id = msg.sender_id "+
			"WHERE msg.chat_id = $1 ORDER BY msg.created_at, msg.seq",
		chatId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func (db *PgSeoulChatRepository) CreateAccessLog(ctx context.Context, entry AccessLog) error {
	var userId sql.NullString
	if entry.UserId != "" {
		userId = sql.NullString{String: entry.UserId, Valid: true}
	}

	_, err := db.conn.ExecContext(ctx,
		"INSERT INTO access_logs (method, url, status, response_time_ms, user_agent, ip_address, user_id, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		entry.Method,
		entry.Url,
		entry.Status,
		float64(entry.ResponseTime)/float64(time.Millisecond),
		entry.UserAgent,
		entry.IpAddress,
		userId,
		entry.CreatedAt.UTC(),
	)

	return err
}

// expectAffected reports ErrNotFound when a statement touched no rows.
func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
