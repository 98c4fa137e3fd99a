package chat

import (
	"github.com/saschahuberzh/SeoulChat/internal/database"
	"github.com/saschahuberzh/SeoulChat/internal/types"
)

// Profile is the view of a user on their own account.
func Profile(u database.User) types.User {
	return types.User{
		Id:          u.Id,
		Username:    u.Username,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		AvatarUrl:   u.AvatarUrl,
		Status:      u.Status,
		LastSeenAt:  u.LastSeenAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func UserSummary(u database.User) types.UserSummary {
	return types.UserSummary{
		Id:          u.Id,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarUrl:   u.AvatarUrl,
		Status:      u.Status,
	}
}

func Message(m database.Message) types.Message {
	return types.Message{
		Id:        m.Id,
		Content:   m.Content,
		SenderId:  m.SenderId,
		ChatId:    m.ChatId,
		CreatedAt: m.CreatedAt,
		Sender:    UserSummary(m.Sender),
	}
}

func Chat(d database.ChatDetails) types.Chat {
	c := types.Chat{
		Id:            d.Id,
		Name:          d.Name,
		IsPrivateChat: d.IsPrivateChat,
		Users:         make([]types.UserSummary, 0, len(d.Members)),
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}

	for _, m := range d.Members {
		c.Users = append(c.Users, UserSummary(m))
	}

	if d.LastMessage != nil {
		msg := Message(*d.LastMessage)
		c.LastMessage = &msg
	}

	return c
}

func memberIds(d database.ChatDetails) []string {
	ids := make([]string, 0, len(d.Members))
	for _, m := range d.Members {
		ids = append(ids, m.Id)
	}
	return ids
}
