// Package auth resolves the bearer token of a request into verified claims.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"digitalbank/internal/identity"
	dErrors "digitalbank/pkg/domain-errors"
	"digitalbank/pkg/platform/httputil"
	"digitalbank/pkg/requestcontext"
)

// TokenVerifier checks a bearer token and returns its claims.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (identity.Claims, error)
}

type contextKeyToken struct{}

// GetToken returns the raw bearer token of the request, if one was verified.
func GetToken(ctx context.Context) string {
	token, _ := ctx.Value(contextKeyToken{}).(string)
	return token
}

// WithToken stores the verified bearer token in ctx.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, contextKeyToken{}, token)
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Authenticate verifies the bearer token when one is present. A request
// without an Authorization header continues as the anonymous principal; a
// present but unverifiable token is rejected.
func Authenticate(verifier TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r.WithContext(identity.WithPrincipal(ctx, identity.Anonymous())))
				return
			}

			token, ok := BearerToken(r)
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - malformed authorization header",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeTokenInvalid, "malformed authorization header"))
				return
			}

			claims, err := verifier.Verify(ctx, token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - token rejected",
					"error", err,
					"code", string(dErrors.CodeOf(err)),
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, err)
				return
			}

			ctx = identity.WithClaims(ctx, claims)
			ctx = WithToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects anonymous requests. It must run after Authenticate.
func RequireAuth(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if _, ok := identity.ClaimsFromContext(ctx); !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
