package api

import (
	"net/http"
	"time"

	"github.com/saschahuberzh/SeoulChat/internal/auth"
)

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
)

func (s *SeoulChatApp) tokenCookie(name, value string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteStrictMode,
	}

	if value == "" {
		// instruct browser to delete the cookie
		c.Expires = time.Unix(0, 0)
		c.MaxAge = -1
	} else {
		c.Expires = expires
		c.MaxAge = int(time.Until(expires).Seconds())
	}

	return c
}

func (s *SeoulChatApp) tokenCookies(pair auth.TokenPair) []*http.Cookie {
	return []*http.Cookie{
		s.tokenCookie(accessTokenCookie, pair.AccessToken, pair.AccessExpiresAt),
		s.tokenCookie(refreshTokenCookie, pair.RefreshToken, pair.RefreshExpiresAt),
	}
}

func (s *SeoulChatApp) setTokenCookies(w http.ResponseWriter, pair auth.TokenPair) {
	for _, c := range s.tokenCookies(pair) {
		http.SetCookie(w, c)
	}
}

func (s *SeoulChatApp) clearTokenCookies(w http.ResponseWriter) {
	s.setTokenCookies(w, auth.TokenPair{})
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func credentialsFromRequest(r *http.Request) auth.Credentials {
	return auth.Credentials{
		AccessToken:  cookieValue(r, accessTokenCookie),
		RefreshToken: cookieValue(r, refreshTokenCookie),
	}
}
