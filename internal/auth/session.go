package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultRefreshWindow is the remaining access token lifetime below
	// which a request triggers a proactive rotation.
	DefaultRefreshWindow = 5 * time.Minute
	// DefaultRotationTimeout bounds a background rotation.
	DefaultRotationTimeout = 5 * time.Second
)

// Credentials are the raw tokens presented by a client. Either may be empty.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// Session is the result of a successful authentication.
type Session struct {
	UserId string
	// Rotated is set when the request could only be authenticated by
	// rotating the refresh token. The client must receive the new pair.
	Rotated *TokenPair
	// Refresh is set when a proactive rotation was started in the
	// background for a still valid access token.
	Refresh *Rotation
}

// Rotation is a refresh token rotation running in the background.
type Rotation struct {
	done chan struct{}
	pair TokenPair
	err  error
}

// Wait blocks until the rotation finished or ctx is done.
func (r *Rotation) Wait(ctx context.Context) (TokenPair, error) {
	select {
	case <-r.done:
		return r.pair, r.err
	case <-ctx.Done():
		return TokenPair{}, ctx.Err()
	}
}

type Authenticator struct {
	tokens          *TokenService
	log             zerolog.Logger
	refreshWindow   time.Duration
	rotationTimeout time.Duration
}

func NewAuthenticator(tokens *TokenService, logger zerolog.Logger) *Authenticator {
	return &Authenticator{
		tokens:          tokens,
		log:             logger.With().Str("component", "authenticator").Logger(),
		refreshWindow:   DefaultRefreshWindow,
		rotationTimeout: DefaultRotationTimeout,
	}
}

// Authenticate resolves the user behind creds. It falls back to rotating
// the refresh token when the access token is missing or expired, and starts
// a background rotation when the access token is about to expire.
func (a *Authenticator) Authenticate(ctx context.Context, creds Credentials) (Session, error) {
	if creds.AccessToken == "" && creds.RefreshToken == "" {
		return Session{}, ErrUnauthenticated
	}

	if creds.AccessToken == "" {
		return a.rotate(ctx, creds.RefreshToken)
	}

	claims, err := a.tokens.VerifyAccess(creds.AccessToken)
	switch {
	case err == nil:
		sess := Session{UserId: claims.UserId}
		if creds.RefreshToken != "" && claims.Expiry().Sub(a.tokens.now()) <= a.refreshWindow {
			// A refresh token of another user is left alone.
			if rc, err := a.tokens.VerifyRefresh(creds.RefreshToken); err == nil && rc.UserId == claims.UserId {
				sess.Refresh = a.rotateInBackground(ctx, claims.UserId, creds.RefreshToken)
			}
		}
		return sess, nil
	case errors.Is(err, ErrTokenExpired) && creds.RefreshToken != "":
		return a.rotate(ctx, creds.RefreshToken)
	default:
		return Session{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}
}

func (a *Authenticator) rotate(ctx context.Context, refresh string) (Session, error) {
	pair, err := a.tokens.Rotate(ctx, refresh)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	return Session{UserId: pair.UserId, Rotated: &pair}, nil
}

// rotateInBackground rotates refresh on its own goroutine. The rotation
// outlives ctx but is bounded by rotationTimeout; an unfinished rotation
// rolls back and leaves the old refresh token valid.
func (a *Authenticator) rotateInBackground(ctx context.Context, userId, refresh string) *Rotation {
	r := &Rotation{done: make(chan struct{})}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.rotationTimeout)

	go func() {
		defer close(r.done)
		defer cancel()

		r.pair, r.err = a.tokens.Rotate(rctx, refresh)
		if r.err != nil {
			a.log.Warn().Err(r.err).Str("user_id", userId).Msg("background token rotation failed")
		}
	}()

	return r
}
