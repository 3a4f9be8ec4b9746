package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/redmonkez12/taskmanager-auth/internal/httputil"
	"github.com/redmonkez12/taskmanager-auth/internal/logging"
	"github.com/redmonkez12/taskmanager-auth/internal/user"
)

type contextKey string

const userContextKey contextKey = "user"

// Middleware handles authentication for protected routes
type Middleware struct {
	tokens   *TokenIssuer
	service  *Service
	boundary *httputil.Boundary
}

func NewMiddleware(tokens *TokenIssuer, service *Service, boundary *httputil.Boundary) *Middleware {
	return &Middleware{tokens: tokens, service: service, boundary: boundary}
}

// RequireAuth validates the access token from the Authorization header or,
// failing that, the accessToken cookie, and attaches the user to the context.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := m.authenticate(r)
		if err != nil {
			m.boundary.Render(w, r, err)
			return
		}

		ctx := WithUser(r.Context(), u)
		ctx = logging.WithLogger(ctx, logging.GetLoggerFromContext(ctx).WithFields(map[string]any{"user_id": u.ID}))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) authenticate(r *http.Request) (*user.User, error) {
	var token string

	// Priority 1: Authorization header
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return nil, httputil.NewError(http.StatusUnauthorized, httputil.CodeUnauthorized, "invalid authorization header format")
		}
		token = parts[1]
	}

	// Priority 2: Cookie (fallback)
	if token == "" {
		token = tokenFromCookie(r, AccessTokenCookie)
	}
	if token == "" {
		return nil, httputil.NewError(http.StatusUnauthorized, httputil.CodeUnauthorized, "unauthorized request")
	}

	claims, err := m.tokens.VerifyAccessToken(token)
	if err != nil {
		return nil, httputil.Wrap(err, http.StatusUnauthorized, httputil.CodeUnauthorized, "invalid access token")
	}

	u, err := m.service.CurrentUser(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, httputil.Wrap(err, http.StatusUnauthorized, httputil.CodeUnauthorized, "invalid access token")
		}
		return nil, err
	}

	return u, nil
}

// WithUser returns a copy of ctx carrying the authenticated user.
func WithUser(ctx context.Context, u *user.User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

// UserFromContext returns the user attached by RequireAuth.
func UserFromContext(ctx context.Context) (*user.User, bool) {
	u, ok := ctx.Value(userContextKey).(*user.User)
	return u, ok && u != nil
}
