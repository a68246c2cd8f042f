package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// SessionCookie is the name of the HttpOnly cookie holding the session JWT.
const SessionCookie = "token"

// contextKey is unexported so no other package can read or shadow our values.
type contextKey string

const (
	userIDKey      contextKey = "userID"
	githubTokenKey contextKey = "githubToken"
)

// RequireAuth rejects requests without a valid session with 401.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}` + "\n"))
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth records the user ID when a valid session cookie is present
// and lets every request through. Handlers check UserIDFromContext.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID, err := extractUserID(r, tokens); err == nil && userID != "" {
				r = r.WithContext(context.WithValue(r.Context(), userIDKey, userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserIDFromContext returns the signed-in user's ID, or ("", false).
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// WithGitHubToken returns a context carrying the caller's GitHub token.
func WithGitHubToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, githubTokenKey, token)
}

// GitHubToken returns the caller's GitHub token, or "" for anonymous
// requests. Its signature fits the catalog client's TokenFromContext hook.
func GitHubToken(ctx context.Context) string {
	t, _ := ctx.Value(githubTokenKey).(string)
	return t
}

// TokenLookup returns a user's usable GitHub access token.
type TokenLookup func(ctx context.Context, userID string) (string, error)

// ResolveGitHubToken puts the caller's GitHub token into the request context.
//
// An "Authorization: Bearer <token>" header wins, so API clients can call
// without a session. Otherwise the signed-in user's stored token is looked
// up (run after OptionalAuth). A failed lookup is logged and the request
// continues anonymously, on the server token.
func ResolveGitHubToken(lookup TokenLookup, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if token := BearerToken(r); token != "" {
				next.ServeHTTP(w, r.WithContext(WithGitHubToken(ctx, token)))
				return
			}

			if userID, ok := UserIDFromContext(ctx); ok && lookup != nil {
				token, err := lookup(ctx, userID)
				switch {
				case err != nil:
					logger.Warn("github token unavailable, continuing anonymously",
						slog.String("userID", userID),
						slog.String("error", err.Error()),
					)
				case token != "":
					r = r.WithContext(WithGitHubToken(ctx, token))
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// extractUserID validates the session cookie. http.ErrNoCookie just means
// the request is anonymous.
func extractUserID(r *http.Request, tokens *TokenService) (string, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return "", err
	}
	return tokens.Validate(cookie.Value)
}
