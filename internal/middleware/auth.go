package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/vidtube-org/vidtube/backend/internal/httpx"
	"github.com/vidtube-org/vidtube/backend/internal/models"
	"github.com/vidtube-org/vidtube/backend/internal/token"
)

// Cookie names shared by the gate and the auth handlers.
const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

type userKey struct{}

// UserLoader resolves a sanitized account by id.
type UserLoader interface {
	SanitizedByID(ctx context.Context, id string) (*models.User, error)
}

// RequireAuth validates the access token from the accessToken cookie or the
// Authorization bearer header, resolves the account, and injects it into the
// request context. Missing, expired, and forged tokens all render the same
// 401 so clients fall back to the refresh path uniformly; a token whose
// account no longer exists is rejected the same way.
func RequireAuth(tokens *token.Manager, users UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractToken(r)
			if raw == "" {
				unauthorized(w)
				return
			}

			claims, err := tokens.Verify(raw)
			if err != nil {
				unauthorized(w)
				return
			}

			u, err := users.SanitizedByID(r.Context(), claims.UserID)
			if err != nil {
				unauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// WithUser returns a context carrying the authenticated account.
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFrom returns the authenticated account injected by RequireAuth.
func UserFrom(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey{}).(*models.User)
	return u, ok
}

func extractToken(r *http.Request) string {
	if c, err := r.Cookie(AccessCookie); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}

func unauthorized(w http.ResponseWriter) {
	httpx.Fail(w, http.StatusUnauthorized, "unauthorized request")
}
