package chat

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrSelfChat     = errors.New("cannot create a chat with yourself")
	ErrNotMember    = errors.New("not a member of this chat")
	ErrForbidden    = errors.New("forbidden")
)
