package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"
	"golang.org/x/oauth2"

	"github.com/sakif/petithub/internal/apperror"
	"github.com/sakif/petithub/internal/auth"
	"github.com/sakif/petithub/internal/model"
	"github.com/sakif/petithub/internal/service"
)

const oauthStateCookie = "oauth_state"

// OAuthProvider is the part of auth.GitHubProvider the login flow uses.
type OAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubUser, *oauth2.Token, error)
}

// AuthService is what AuthHandler needs from service.AuthService.
type AuthService interface {
	LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser, ghToken *oauth2.Token) (*service.AuthResult, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// AuthHandler manages the GitHub OAuth login flow and session management.
//
// HANDLER RESPONSIBILITIES:
//   - HandleGitHubLogin    → redirect the browser to GitHub's authorization page
//   - HandleGitHubCallback → receive the code, exchange it, store the user, issue JWT
//   - HandleLogout         → clear the JWT cookie
//   - HandleMe             → return the currently logged-in user's profile
//
// The GitHub token obtained at login is stored with the user; later
// requests carrying the session cookie make their GitHub calls with it.
type AuthHandler struct {
	github     OAuthProvider
	auth       AuthService
	sessionTTL time.Duration
	logger     *slog.Logger
}

// NewAuthHandler creates an AuthHandler. sessionTTL should match the JWT
// lifetime so the cookie and the token expire together.
func NewAuthHandler(github OAuthProvider, authSvc AuthService, sessionTTL time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		github:     github,
		auth:       authSvc,
		sessionTTL: sessionTTL,
		logger:     logger,
	}
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// A random state goes into a short-lived HttpOnly cookie and into the
// authorization URL. The callback only proceeds when both match, which
// proves this server started the flow.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth login flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub token and user profile
//  3. Upsert the user with its token and issue a session JWT
//  4. Set the session cookie and redirect to /api/me
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || query.Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: invalid state", slog.Bool("cookiePresent", err == nil))
		writeError(w, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}

	// Single use.
	http.SetCookie(w, &http.Cookie{
		Name:   oauthStateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := query.Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		writeError(w, apperror.Unauthorized("GitHub authorization was denied"))
		return
	}

	code := query.Get("code")
	if code == "" {
		writeError(w, apperror.ValidationFailed("code", "missing OAuth code"))
		return
	}

	ghUser, ghToken, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		writeError(w, apperror.Unauthorized("authentication failed"))
		return
	}

	result, err := h.auth.LoginOrRegisterGitHub(r.Context(), ghUser, ghToken)
	if err != nil {
		h.logger.Error("auth callback: login failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	// HttpOnly keeps the JWT away from scripts. Secure belongs in production
	// behind HTTPS; local development runs on plain HTTP.
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    result.Token,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, "/api/me", http.StatusSeeOther)
}

// HandleLogout clears the JWT cookie, effectively logging the user out.
//
// HTTP: POST /auth/logout
//
// Sessions are stateless, so this only drops the cookie. The stored GitHub
// token stays until the next login replaces it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the currently authenticated user's profile.
//
// HTTP: GET /api/me
// Auth: Required (RequireAuth middleware sets userID in context)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	user, err := h.auth.GetUserByID(r.Context(), userID)
	if err != nil {
		logError(h.logger, r, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
