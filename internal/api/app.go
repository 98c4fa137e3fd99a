package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/rs/zerolog"
	"github.com/saschahuberzh/SeoulChat/internal/auth"
	"github.com/saschahuberzh/SeoulChat/internal/chat"
	"github.com/saschahuberzh/SeoulChat/internal/config"
	"github.com/saschahuberzh/SeoulChat/internal/database"
	"github.com/saschahuberzh/SeoulChat/internal/server"
	"golang.org/x/time/rate"
)

type SeoulChatApp struct {
	log            zerolog.Logger
	db             database.SeoulChatRepository
	srv            *http.Server
	cs             *server.ChatServer
	tokens         *auth.TokenService
	authn          *auth.Authenticator
	chats          *chat.Manager
	messages       *chat.Messages
	limiter        *rateLimiter
	metrics        *httpMetrics
	allowedOrigins []string
	secureCookies  bool
}

// NewSeoulChatApp wires the REST and websocket routes onto mux. cs may be
// nil, in which case no realtime events are published and /ws is not served.
func NewSeoulChatApp(mux *http.ServeMux, logger zerolog.Logger, cs *server.ChatServer, db database.SeoulChatRepository, su StatsReader, cfg *config.Config) (*SeoulChatApp, error) {
	tokens, err := auth.NewTokenService(db, auth.TokenConfig{
		AccessSecret:  cfg.AccessSigningKey,
		RefreshSecret: cfg.RefreshSigningKey,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("token service: %w", err)
	}

	var publisher chat.Publisher
	if cs != nil {
		publisher = cs
	}

	s := &SeoulChatApp{
		log:            logger.With().Str("component", "api").Logger(),
		db:             db,
		cs:             cs,
		tokens:         tokens,
		authn:          auth.NewAuthenticator(tokens, logger),
		chats:          chat.NewManager(db, publisher, logger),
		messages:       chat.NewMessages(db, publisher, logger),
		limiter:        newRateLimiter(rate.Limit(cfg.AuthRateLimit), cfg.AuthRateBurst, limiterTTL),
		metrics:        newHttpMetrics(su),
		allowedOrigins: cfg.AllowedOrigins,
		secureCookies:  cfg.IsProduction(),
	}

	mux.HandleFunc("GET /health", s.healthCheck)
	mux.Handle("GET /metrics", s.metrics.handler())

	mux.HandleFunc("POST /auth/register", s.rateLimit(s.register))
	mux.HandleFunc("POST /auth/login", s.rateLimit(s.login))
	mux.HandleFunc("GET /auth/me", s.sessionMiddleware(s.me))
	mux.HandleFunc("POST /auth/logout", s.logout)
	mux.HandleFunc("POST /auth/logout-all", s.sessionMiddleware(s.logoutAll))

	mux.HandleFunc("POST /chats/private", s.sessionMiddleware(s.createPrivateChat))
	mux.HandleFunc("GET /chats", s.sessionMiddleware(s.listChats))
	mux.HandleFunc("GET /chats/users/search", s.sessionMiddleware(s.searchUsers))
	mux.HandleFunc("DELETE /chats/{chatId}", s.sessionMiddleware(s.deleteChat))
	mux.HandleFunc("DELETE /chats/{chatId}/leave", s.sessionMiddleware(s.leaveChat))
	mux.HandleFunc("POST /chats/{chatId}/messages", s.sessionMiddleware(s.sendMessage))
	mux.HandleFunc("GET /chats/{chatId}/messages", s.sessionMiddleware(s.listMessages))

	if cs != nil {
		mux.HandleFunc("GET /ws", s.serveWs)
	}

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)
	h = s.accessLog(h)
	h = s.metrics.middleware(h)

	s.srv = &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Handler returns the fully wrapped handler, for serving without Start.
func (s *SeoulChatApp) Handler() http.Handler {
	return s.srv.Handler
}

func (s *SeoulChatApp) Start() error {
	go s.limiter.gc()

	s.log.Info().Str("addr", s.srv.Addr).Msg("starting server")
	return s.srv.ListenAndServe()
}

func (s *SeoulChatApp) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server...")
	s.limiter.Stop()

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

func (s *SeoulChatApp) writeJson(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("json encode")
	}
}

// writeError writes the response for err. Causes of internal errors are
// logged and never returned to the client.
func (s *SeoulChatApp) writeError(w http.ResponseWriter, err error) {
	errResp := toApiError(err)
	if errResp.StatusCode >= http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}

	s.writeJson(w, errResp.StatusCode, errResp)
}
