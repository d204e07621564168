package middleware

import (
	"context"
	"net/http"
	"strings"

	"pestops-bknd/internal/auth"
	"pestops-bknd/internal/models"

	"go.uber.org/zap"
)

// TokenChecker confirms a token version is still current for a user.
type TokenChecker interface {
	CheckTokenVersion(ctx context.Context, userID string, tokenVersion int) (bool, error)
}

type AuthMiddleware struct {
	jwt     *auth.JWTManager
	checker TokenChecker
	logr    *zap.Logger
}

type contextKey string

const (
	ContextPrincipalKey contextKey = "principal"
	ContextAuthMethod   contextKey = "authMethod"
)

// NewAuthMiddleware creates a reusable JWT auth middleware instance
func NewAuthMiddleware(jwt *auth.JWTManager, checker TokenChecker, logr *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt, checker: checker, logr: logr}
}

// JWTAuth validates the access token and attaches the caller's principal to
// the request context.
func (m *AuthMiddleware) JWTAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "missing authorization header", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			http.Error(w, "invalid token format", http.StatusUnauthorized)
			return
		}

		claims, err := m.jwt.VerifyToken(tokenString)
		if err != nil {
			m.logr.Warn("token parse error", zap.Error(err))
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}
		if claims.Kind != auth.AccessToken {
			http.Error(w, "invalid or expired token", http.StatusUnauthorized)
			return
		}

		valid, err := m.checker.CheckTokenVersion(r.Context(), claims.UserID, claims.TokenVersion)
		if err != nil {
			m.logr.Error("failed checking token version", zap.Error(err), zap.String("user_id", claims.UserID))
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if !valid {
			m.logr.Warn("token version invalid", zap.String("user_id", claims.UserID))
			http.Error(w, "token revoked or invalid", http.StatusUnauthorized)
			return
		}

		p := auth.Principal{UserID: claims.UserID, Role: models.Role(claims.Role)}
		ctx := context.WithValue(r.Context(), ContextPrincipalKey, p)
		ctx = context.WithValue(ctx, ContextAuthMethod, claims.AuthMethod)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// PrincipalFromContext returns the authenticated caller, if any.
func PrincipalFromContext(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(ContextPrincipalKey).(auth.Principal)
	return p, ok
}

// WithPrincipal is used by tests and internal callers that bypass JWTAuth.
func WithPrincipal(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, ContextPrincipalKey, p)
}

// RequireCapability rejects callers whose role cannot perform action on any
// resource of that kind. Ownership checks happen in the handlers.
func RequireCapability(action auth.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthenticated", http.StatusUnauthorized)
				return
			}
			if !auth.Can(p, action, auth.Resource{OwnerID: p.UserID}) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
