package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/saschahuberzh/SeoulChat/internal/auth"
	"github.com/saschahuberzh/SeoulChat/internal/chat"
	"github.com/saschahuberzh/SeoulChat/internal/database"
	"github.com/saschahuberzh/SeoulChat/internal/types"
	"github.com/saschahuberzh/SeoulChat/internal/validator"
)

type RegisterRequest struct {
	Username    string `json:"username" validate:"required,max=50"`
	Password    string `json:"password" validate:"required,max=72"`
	Email       string `json:"email" validate:"omitempty,email,max=255"`
	DisplayName string `json:"display_name" validate:"omitempty,max=100"`
}

func (r *RegisterRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
	r.DisplayName = strings.TrimSpace(r.DisplayName)
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (r *LoginRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
}

type CreatePrivateChatRequest struct {
	Username string `json:"username" validate:"required"`
}

func (r *CreatePrivateChatRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
}

type SendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

type AuthResponse struct {
	Message string     `json:"message"`
	User    types.User `json:"user"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type LogoutAllResponse struct {
	Message string `json:"message"`
	Revoked int64  `json:"revoked"`
}

type LeaveChatResponse struct {
	Message     string `json:"message"`
	ChatDeleted bool   `json:"chat_deleted"`
}

func (s *SeoulChatApp) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.log.Error().Err(err).Msg("health check failed")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("Service Unavailable"))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *SeoulChatApp) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		s.writeError(w, NewValidationError(err))
		return
	}

	pwdHash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.writeError(w, NewInternalServerError(err))
		return
	}

	user, err := s.db.CreateUser(r.Context(), database.CreateUserParams{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: pwdHash,
		DisplayName:  req.DisplayName,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	pair, err := s.tokens.IssueTokenPair(r.Context(), user.Id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.log.Info().Str("user_id", user.Id).Msg("user registered")
	s.setTokenCookies(w, pair)
	s.writeJson(w, http.StatusCreated, AuthResponse{
		Message: "user registered successfully",
		User:    chat.Profile(user),
	})
}

func (s *SeoulChatApp) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		s.writeError(w, NewValidationError(err))
		return
	}

	user, err := s.db.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.writeError(w, NewUnauthorizedError())
			return
		}
		s.writeError(w, err)
		return
	}

	if !auth.VerifyPassword(user.PasswordHash, req.Password) {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	pair, err := s.tokens.IssueTokenPair(r.Context(), user.Id)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.setTokenCookies(w, pair)
	s.writeJson(w, http.StatusOK, AuthResponse{
		Message: "login successful",
		User:    chat.Profile(user),
	})
}

func (s *SeoulChatApp) me(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	user, err := s.db.GetUserById(r.Context(), userId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, chat.Profile(user))
}

// logout revokes the presented refresh token, if any. It never fails.
func (s *SeoulChatApp) logout(w http.ResponseWriter, r *http.Request) {
	if refresh := cookieValue(r, refreshTokenCookie); refresh != "" {
		if err := s.tokens.Revoke(r.Context(), refresh); err != nil {
			s.log.Warn().Err(err).Msg("failed to revoke refresh token")
		}
	}

	s.clearTokenCookies(w)
	s.writeJson(w, http.StatusOK, MessageResponse{Message: "logout successful"})
}

func (s *SeoulChatApp) logoutAll(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	// A rotation still in flight would outlive the revocation.
	dropPendingRotation(r.Context())

	n, err := s.tokens.RevokeAll(r.Context(), userId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.log.Info().Str("user_id", userId).Int64("revoked", n).Msg("revoked all sessions")
	s.clearTokenCookies(w)
	s.writeJson(w, http.StatusOK, LogoutAllResponse{Message: "logged out everywhere", Revoked: n})
}

func (s *SeoulChatApp) createPrivateChat(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	var req CreatePrivateChatRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		s.writeError(w, NewValidationError(err))
		return
	}

	c, created, err := s.chats.GetOrCreatePrivateChat(r.Context(), userId, req.Username)
	if err != nil {
		s.writeError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}

	s.writeJson(w, status, c)
}

func (s *SeoulChatApp) listChats(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	chats, err := s.chats.ListChatsFor(r.Context(), userId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, chats)
}

func (s *SeoulChatApp) searchUsers(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	users, err := s.chats.SearchUsers(r.Context(), userId, r.URL.Query().Get("username"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, users)
}

func (s *SeoulChatApp) deleteChat(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	if err := s.chats.DeleteChat(r.Context(), userId, r.PathValue("chatId")); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, MessageResponse{Message: "chat deleted"})
}

func (s *SeoulChatApp) leaveChat(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	chatDeleted, err := s.chats.Leave(r.Context(), userId, r.PathValue("chatId"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := LeaveChatResponse{Message: "left chat", ChatDeleted: chatDeleted}
	if chatDeleted {
		resp.Message = "left chat and chat deleted as it became empty"
	}

	s.writeJson(w, http.StatusOK, resp)
}

func (s *SeoulChatApp) sendMessage(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	var req SendMessageRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		s.writeError(w, NewValidationError(err))
		return
	}

	msg, err := s.messages.Send(r.Context(), userId, r.PathValue("chatId"), req.Content)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusCreated, msg)
}

func (s *SeoulChatApp) listMessages(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		s.writeError(w, NewUnauthorizedError())
		return
	}

	msgs, err := s.messages.List(r.Context(), userId, r.PathValue("chatId"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, msgs)
}
