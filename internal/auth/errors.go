package auth

import "errors"

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrTokenInvalid    = errors.New("token invalid")
	ErrTokenExpired    = errors.New("token expired")
	ErrTokenMismatched = errors.New("token does not belong to user")
)
