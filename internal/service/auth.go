package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/sakif/petithub/internal/apperror"
	"github.com/sakif/petithub/internal/auth"
	"github.com/sakif/petithub/internal/model"
	"github.com/sakif/petithub/internal/repository"
)

// TokenRefresher renews an expired GitHub user token.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// AuthService handles the authentication business logic.
//
// DEPENDENCIES (injected via NewAuthService):
//   - users     repository.UserRepository → read/write user records
//   - tokens    *auth.TokenService        → generate/validate session JWTs
//   - refresher TokenRefresher            → renew expiring GitHub tokens (may be nil)
//   - logger    *slog.Logger              → structured logging
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	refresher TokenRefresher
	logger    *slog.Logger
	now       func() time.Time
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	refresher TokenRefresher,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		refresher: refresher,
		logger:    logger,
		now:       time.Now,
	}
}

// AuthResult bundles the user and the issued session JWT so the handler can
// set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// LoginOrRegisterGitHub handles the OAuth callback once the code has been
// exchanged: it upserts the user together with their GitHub token and
// issues a session JWT.
//
// GitHub IDs are stable, so the upsert keys on github_id: first login
// inserts, later logins refresh profile fields and the token.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser, ghToken *oauth2.Token) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}
	if ghToken == nil || ghToken.AccessToken == "" {
		return nil, fmt.Errorf("service/auth: GitHub token must not be empty")
	}

	user := &model.User{
		GitHubID:       ghUser.ID,
		Login:          ghUser.Login,
		Email:          ghUser.Email,
		AvatarURL:      ghUser.AvatarURL,
		AccessToken:    ghToken.AccessToken,
		RefreshToken:   ghToken.RefreshToken,
		TokenExpiresAt: ghToken.Expiry,
	}

	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user (githubID=%d): %w", ghUser.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("login", user.Login),
	)

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	return &AuthResult{
		User:  user,
		Token: token,
	}, nil
}

// GetUserByID returns the user for the given internal ID.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user ID must not be empty")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}

	return user, nil
}

// GitHubToken returns a usable GitHub access token for the user, refreshing
// it first when it has expired and a refresh token is on file.
//
// Its signature matches auth.TokenLookup.
func (s *AuthService) GitHubToken(ctx context.Context, userID string) (string, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.HasValidToken(s.now()) {
		return user.AccessToken, nil
	}
	if user.RefreshToken == "" || s.refresher == nil {
		return "", apperror.Unauthorized("GitHub authorization expired, sign in again")
	}

	fresh, err := s.refresher.Refresh(ctx, user.RefreshToken)
	if err != nil {
		s.logger.Warn("GitHub token refresh failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return "", apperror.Unauthorized("GitHub authorization could not be renewed, sign in again")
	}

	user.AccessToken = fresh.AccessToken
	user.TokenExpiresAt = fresh.Expiry
	if fresh.RefreshToken != "" {
		user.RefreshToken = fresh.RefreshToken
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		// The fresh token still works for this request.
		s.logger.Warn("failed to store refreshed GitHub token",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("GitHub token refreshed", slog.String("userID", userID))
	return user.AccessToken, nil
}

// ValidateToken validates a session JWT and returns the user ID it encodes.
func (s *AuthService) ValidateToken(tokenStr string) (string, error) {
	userID, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return "", fmt.Errorf("service/auth: %w", err)
	}
	return userID, nil
}
