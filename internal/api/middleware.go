package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/handlers"
	"github.com/saschahuberzh/SeoulChat/internal/auth"
	"github.com/saschahuberzh/SeoulChat/internal/database"
)

const accessLogTimeout = 2 * time.Second

func (s *SeoulChatApp) errorHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				var panicError error
				switch e := err.(type) {
				case error:
					panicError = e
				default:
					panicError = fmt.Errorf("%v", e)
				}
				s.log.Error().Err(panicError).Str("path", r.URL.Path).Msg("panic")
				errResp := NewInternalServerError(panicError)
				w.Header().Set("Connection", "close")
				s.writeJson(w, errResp.StatusCode, errResp)
				return
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// authenticate resolves the session behind the request cookies. On failure
// the 401 response, with cleared cookies, has already been written.
func (s *SeoulChatApp) authenticate(w http.ResponseWriter, r *http.Request) (auth.Session, bool) {
	sess, err := s.authn.Authenticate(r.Context(), credentialsFromRequest(r))
	if err != nil {
		s.log.Debug().Err(err).Str("path", r.URL.Path).Msg("authentication failed")
		s.clearTokenCookies(w)
		s.writeError(w, NewUnauthorizedError())
		return auth.Session{}, false
	}

	return sess, true
}

func (s *SeoulChatApp) sessionMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.authenticate(w, r)
		if !ok {
			return
		}

		if sess.Rotated != nil {
			s.setTokenCookies(w, *sess.Rotated)
		}

		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
		ctx := WithUserId(r.Context(), sess.UserId)

		if sess.Refresh == nil {
			next(w, r.WithContext(ctx))
			return
		}

		pending := &pendingRotation{rotation: sess.Refresh}
		rw, attach := s.withRotatedCookies(w, r.Context(), pending)
		next(rw, r.WithContext(withPendingRotation(ctx, pending)))
		attach()
	}
}

// withRotatedCookies wraps w so that the outcome of a background rotation is
// waited for, and its cookies added, right before the headers are sent.
// The returned func does the same for handlers that never write. Nothing is
// attached once the handler dropped the rotation.
func (s *SeoulChatApp) withRotatedCookies(w http.ResponseWriter, ctx context.Context, pending *pendingRotation) (http.ResponseWriter, func()) {
	var once sync.Once
	attach := func() {
		once.Do(func() {
			if pending.dropped.Load() {
				return
			}
			pair, err := pending.rotation.Wait(ctx)
			if err != nil {
				s.log.Debug().Err(err).Msg("background rotation not applied")
				return
			}
			if pending.dropped.Load() {
				return
			}
			s.setTokenCookies(w, pair)
		})
	}

	rw := httpsnoop.Wrap(w, httpsnoop.Hooks{
		WriteHeader: func(next httpsnoop.WriteHeaderFunc) httpsnoop.WriteHeaderFunc {
			return func(code int) {
				attach()
				next(code)
			}
		},
		Write: func(next httpsnoop.WriteFunc) httpsnoop.WriteFunc {
			return func(b []byte) (int, error) {
				attach()
				return next(b)
			}
		},
		ReadFrom: func(next httpsnoop.ReadFromFunc) httpsnoop.ReadFromFunc {
			return func(src io.Reader) (int64, error) {
				attach()
				return next(src)
			}
		},
	})

	return rw, attach
}

// accessLog persists one AccessLog row per request. The user is taken from
// the access cookie, expired or not.
func (s *SeoulChatApp) accessLog(next http.Handler) http.Handler {
	return handlers.CustomLoggingHandler(io.Discard, next, func(_ io.Writer, params handlers.LogFormatterParams) {
		req := params.Request

		entry := database.AccessLog{
			Method:       req.Method,
			Url:          params.URL.RequestURI(),
			Status:       params.StatusCode,
			ResponseTime: time.Since(params.TimeStamp),
			UserAgent:    req.UserAgent(),
			IpAddress:    clientIP(req.RemoteAddr),
			CreatedAt:    params.TimeStamp,
		}
		if userId, ok := s.tokens.AccessTokenOwner(cookieValue(req, accessTokenCookie)); ok {
			entry.UserId = userId
		}

		ctx, cancel := context.WithTimeout(context.WithoutCancel(req.Context()), accessLogTimeout)
		defer cancel()

		if err := s.db.CreateAccessLog(ctx, entry); err != nil {
			s.log.Warn().Err(err).Str("url", entry.Url).Msg("failed to store access log")
		}
	})
}
