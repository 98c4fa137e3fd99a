package database

import (
	"time"

	"github.com/saschahuberzh/SeoulChat/internal/types"
)

type User struct {
	Id           string
	Username     string
	Email        string
	PasswordHash string
	DisplayName  string
	AvatarUrl    string
	Status       types.Status
	LastSeenAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Chat struct {
	Id            string
	Name          string
	IsPrivateChat bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ChatDetails is a chat together with its members and latest message.
type ChatDetails struct {
	Chat
	Members     []User
	LastMessage *Message
}

type Membership struct {
	UserId   string
	ChatId   string
	JoinedAt time.Time
}

type Message struct {
	Id        string
	Seq       int64
	Content   string
	SenderId  string
	ChatId    string
	CreatedAt time.Time
	Sender    User
}

type RefreshToken struct {
	TokenHash string
	UserId    string
	CreatedAt time.Time
}

type AccessLog struct {
	Method       string
	Url          string
	Status       int
	ResponseTime time.Duration
	UserAgent    string
	IpAddress    string
	UserId       string
	CreatedAt    time.Time
}

type CreateUserParams struct {
	Username     string
	Email        string
	PasswordHash string
	DisplayName  string
}

type CreateMessageParams struct {
	ChatId   string
	SenderId string
	Content  string
}
