package auth

import (
	"net/http"
	"time"
)

const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// CookieOptions controls how session cookies are written.
type CookieOptions struct {
	Secure     bool
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// SetAuthCookies stores both tokens in HttpOnly cookies.
func (o CookieOptions) SetAuthCookies(w http.ResponseWriter, tokens *AuthTokens) {
	http.SetCookie(w, o.cookie(AccessTokenCookie, tokens.AccessToken, o.AccessTTL))
	http.SetCookie(w, o.cookie(RefreshTokenCookie, tokens.RefreshToken, o.RefreshTTL))
}

// ClearAuthCookies expires both session cookies.
func (o CookieOptions) ClearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		c := o.cookie(name, "", 0)
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
		http.SetCookie(w, c)
	}
}

func (o CookieOptions) cookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func tokenFromCookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
