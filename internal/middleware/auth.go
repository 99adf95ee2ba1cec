package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Cryptoprojectsfun/advisorhub/internal/auth"
	apperrors "github.com/Cryptoprojectsfun/advisorhub/internal/errors"
	"github.com/Cryptoprojectsfun/advisorhub/internal/logger"
	"github.com/Cryptoprojectsfun/advisorhub/internal/models"
)

type ContextKey string

const (
	ActorKey  ContextKey = "actor"
	ClaimsKey ContextKey = "claims"
	TokenKey  ContextKey = "token"
)

// Authenticator resolves a bearer token to the actor of a live session.
type Authenticator interface {
	Authenticate(accessToken string) (models.User, *auth.Claims, error)
}

type AuthMiddleware struct {
	auth   Authenticator
	errors *ErrorWriter
}

func NewAuthMiddleware(a Authenticator, errs *ErrorWriter) *AuthMiddleware {
	return &AuthMiddleware{auth: a, errors: errs}
}

// Authenticate rejects requests without a valid access token bound to a
// logged-in session and puts the actor in the request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ExtractToken(r)
		if token == "" {
			m.errors.Write(w, r, apperrors.NewAuthenticationError("No token provided", nil))
			return
		}

		user, claims, err := m.auth.Authenticate(token)
		if err != nil {
			m.errors.Write(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withActor(r.Context(), &user, claims, token)))
	})
}

// Identify puts the actor in the context when the request carries a valid
// token and passes anonymous requests through untouched.
func (m *AuthMiddleware) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := ExtractToken(r)
		if token != "" {
			if user, claims, err := m.auth.Authenticate(token); err == nil {
				r = r.WithContext(withActor(r.Context(), &user, claims, token))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func withActor(ctx context.Context, user *models.User, claims *auth.Claims, token string) context.Context {
	ctx = context.WithValue(ctx, ActorKey, user)
	ctx = context.WithValue(ctx, ClaimsKey, claims)
	ctx = context.WithValue(ctx, TokenKey, token)
	return logger.ContextWithUserID(ctx, user.ID)
}

func (m *AuthMiddleware) RequireRole(role models.Role, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			m.errors.Write(w, r, apperrors.NewAuthenticationError("No role information", nil))
			return
		}
		if actor.Role != role {
			m.errors.Write(w, r, apperrors.NewForbiddenError("Insufficient permissions"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *AuthMiddleware) RequireMainAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok || !actor.IsMainAdmin {
			m.errors.Write(w, r, apperrors.NewForbiddenError("Main admin only"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ActorFromContext returns the user set by Authenticate.
func ActorFromContext(ctx context.Context) (*models.User, bool) {
	actor, ok := ctx.Value(ActorKey).(*models.User)
	return actor, ok && actor != nil
}

func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*auth.Claims)
	return claims, ok && claims != nil
}

func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(TokenKey).(string)
	return token
}

// ExtractToken reads a bearer token from the Authorization header, then
// from the token query parameter used by websocket clients.
func ExtractToken(r *http.Request) string {
	bearer := r.Header.Get("Authorization")
	if parts := strings.SplitN(bearer, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return r.URL.Query().Get("token")
}
