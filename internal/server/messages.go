package server

import (
	"net/http"
	"time"
)

// Client events.
const (
	EventJoinChat  = "joinChat"
	EventLeaveChat = "leaveChat"
)

// Server events.
const (
	EventNewMessage  = "newMessage"
	EventChatCreated = "chatCreated"
	EventChatDeleted = "chatDeleted"
	EventMemberLeft  = "memberLeft"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ClientMessage struct {
	BaseMessage
	Event  string `json:"event"`
	ChatId string `json:"chat_id"`
}

type ServerMessage struct {
	BaseMessage
	Response *Response `json:"response,omitempty"`
	Event    string    `json:"event,omitempty"`
	Data     any       `json:"data,omitempty"`
}

type Response struct {
	ResponseCode int            `json:"response_code"`
	Error        string         `json:"error,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

type ChatDeleted struct {
	ChatId string `json:"chat_id"`
}

type MemberLeft struct {
	ChatId      string `json:"chat_id"`
	UserId      string `json:"user_id"`
	ChatDeleted bool   `json:"chat_deleted"`
}

func NewEvent(event string, data any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Event: event,
		Data:  data,
	}
}

func NoErrOK(id int, data map[string]any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusServiceUnavailable,
			Error:        "service unavailable",
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func ErrUnknownEvent(id int, event string) *ServerMessage {
	msg := ErrInvalidMessage(id)
	msg.Response.Error = "unknown event " + event
	return msg
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
