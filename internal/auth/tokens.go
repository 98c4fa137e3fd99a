package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"github.com/saschahuberzh/SeoulChat/internal/database"
)

const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

type Claims struct {
	UserId string `json:"user_id"`
	jwt.StandardClaims
}

// Expiry returns the expiry of the token the claims were read from.
func (c Claims) Expiry() time.Time {
	return time.Unix(c.ExpiresAt, 0)
}

type TokenPair struct {
	UserId           string
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// TokenService signs and verifies access and refresh tokens. Refresh tokens
// are only honoured while their hash is present in the store.
type TokenService struct {
	store         database.RefreshTokenRepository
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenService(store database.RefreshTokenRepository, cfg TokenConfig) (*TokenService, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("token secrets must not be empty")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}

	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}

	return &TokenService{
		store:         store,
		accessSecret:  cfg.AccessSecret,
		refreshSecret: cfg.RefreshSecret,
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
	}, nil
}

func (ts *TokenService) AccessTTL() time.Duration  { return ts.accessTTL }
func (ts *TokenService) RefreshTTL() time.Duration { return ts.refreshTTL }

// HashToken returns the hex encoded SHA-256 digest under which a refresh
// token is stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// IssueTokenPair signs a new pair for userId and persists the refresh token.
func (ts *TokenService) IssueTokenPair(ctx context.Context, userId string) (TokenPair, error) {
	pair, err := ts.signPair(userId)
	if err != nil {
		return TokenPair{}, err
	}

	if err := ts.store.CreateRefreshToken(ctx, userId, HashToken(pair.RefreshToken)); err != nil {
		return TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}

	return pair, nil
}

func (ts *TokenService) signPair(userId string) (TokenPair, error) {
	now := ts.now()
	pair := TokenPair{
		UserId:           userId,
		AccessExpiresAt:  now.Add(ts.accessTTL),
		RefreshExpiresAt: now.Add(ts.refreshTTL),
	}

	var err error
	pair.AccessToken, err = sign(ts.accessSecret, userId, now, pair.AccessExpiresAt)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}

	pair.RefreshToken, err = sign(ts.refreshSecret, userId, now, pair.RefreshExpiresAt)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	return pair, nil
}

func sign(secret []byte, userId string, issuedAt, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserId: userId,
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.NewString(),
			Subject:   userId,
			IssuedAt:  issuedAt.Unix(),
			ExpiresAt: expiresAt.Unix(),
		},
	})

	return token.SignedString(secret)
}

// parse verifies the signature and expiry of tokenString. An expired token
// with a valid signature yields its claims together with ErrTokenExpired.
func parse(secret []byte, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) && ve.Errors == jwt.ValidationErrorExpired {
			return claims, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if !token.Valid || claims.UserId == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

func (ts *TokenService) VerifyAccess(tokenString string) (*Claims, error) {
	claims, err := parse(ts.accessSecret, tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyRefresh checks the refresh token without consulting the store.
func (ts *TokenService) VerifyRefresh(tokenString string) (*Claims, error) {
	claims, err := parse(ts.refreshSecret, tokenString)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
		}
		return nil, err
	}
	return claims, nil
}

// AccessTokenOwner returns the user of a correctly signed access token,
// expired or not.
func (ts *TokenService) AccessTokenOwner(tokenString string) (string, bool) {
	claims, err := parse(ts.accessSecret, tokenString)
	if err != nil && !errors.Is(err, ErrTokenExpired) {
		return "", false
	}
	return claims.UserId, claims.UserId != ""
}

// Rotate exchanges a stored refresh token for a new pair. The old token is
// consumed: of two concurrent rotations of the same token only one succeeds.
func (ts *TokenService) Rotate(ctx context.Context, oldRefresh string) (TokenPair, error) {
	claims, err := parse(ts.refreshSecret, oldRefresh)
	if err != nil {
		return TokenPair{}, err
	}

	oldHash := HashToken(oldRefresh)
	stored, err := ts.store.GetRefreshToken(ctx, oldHash)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return TokenPair{}, ErrTokenInvalid
		}
		return TokenPair{}, fmt.Errorf("get refresh token: %w", err)
	}

	if stored.UserId != claims.UserId {
		return TokenPair{}, ErrTokenMismatched
	}

	pair, err := ts.signPair(claims.UserId)
	if err != nil {
		return TokenPair{}, err
	}

	err = ts.store.RotateRefreshToken(ctx, claims.UserId, oldHash, HashToken(pair.RefreshToken))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return TokenPair{}, ErrTokenInvalid
		}
		return TokenPair{}, fmt.Errorf("rotate refresh token: %w", err)
	}

	return pair, nil
}

// Revoke deletes the stored refresh token. Tokens that were not signed by
// this service are ignored.
func (ts *TokenService) Revoke(ctx context.Context, refresh string) error {
	if _, err := parse(ts.refreshSecret, refresh); err != nil && !errors.Is(err, ErrTokenExpired) {
		return nil
	}

	return ts.store.DeleteRefreshToken(ctx, HashToken(refresh))
}

func (ts *TokenService) RevokeAll(ctx context.Context, userId string) (int64, error) {
	return ts.store.DeleteRefreshTokensForUser(ctx, userId)
}
