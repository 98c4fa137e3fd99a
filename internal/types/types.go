package types

import (
	"time"
)

type User struct {
	Id          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email,omitempty"`
	DisplayName string     `json:"display_name,omitempty"`
	AvatarUrl   string     `json:"avatar_url,omitempty"`
	Status      Status     `json:"status"`
	LastSeenAt  *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at,omitempty"`
}

// UserSummary is the public view of another user, as shown in search
// results, member lists and message senders.
type UserSummary struct {
	Id          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarUrl   string `json:"avatar_url,omitempty"`
	Status      Status `json:"status,omitempty"`
}

type Chat struct {
	Id            string        `json:"id"`
	Name          string        `json:"name"`
	IsPrivateChat bool          `json:"is_private_chat"`
	Users         []UserSummary `json:"users"`
	LastMessage   *Message      `json:"last_message,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

type Message struct {
	Id        string      `json:"id"`
	Content   string      `json:"content"`
	SenderId  string      `json:"sender_id"`
	ChatId    string      `json:"chat_id"`
	CreatedAt time.Time   `json:"created_at"`
	Sender    UserSummary `json:"sender"`
}
