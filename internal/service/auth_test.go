package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/sakif/petithub/internal/apperror"
	"github.com/sakif/petithub/internal/auth"
	"github.com/sakif/petithub/internal/model"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeUserRepo is an in-memory repository.UserRepository.
type fakeUserRepo struct {
	users  map[string]*model.User // keyed by internal ID
	byGHID map[int64]*model.User
	nextID int
	// set to a non-nil error to simulate a database failure
	upsertErr error
	upserts   int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:  make(map[string]*model.User),
		byGHID: make(map[int64]*model.User),
		nextID: 1,
	}
}

func (f *fakeUserRepo) Upsert(_ context.Context, user *model.User) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts++
	if existing, ok := f.byGHID[user.GitHubID]; ok {
		user.ID = existing.ID
		user.CreatedAt = existing.CreatedAt
	} else {
		user.ID = fmt.Sprintf("user-fake-id-%d", f.nextID)
		f.nextID++
		user.CreatedAt = time.Now()
	}
	user.UpdatedAt = time.Now()

	copied := *user
	f.users[user.ID] = &copied
	f.byGHID[user.GitHubID] = &copied
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

// fakeRefresher hands out a fixed token, or fails.
type fakeRefresher struct {
	token *oauth2.Token
	err   error
	calls int
}

func (f *fakeRefresher) Refresh(context.Context, string) (*oauth2.Token, error) {
	f.calls++
	return f.token, f.err
}

func newTestAuthService(t *testing.T, repo *fakeUserRepo, refresher TokenRefresher) *AuthService {
	t.Helper()

	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return NewAuthService(repo, ts, refresher, testLogger)
}

func ghToken(access string) *oauth2.Token {
	return &oauth2.Token{AccessToken: access, TokenType: "bearer"}
}

// =========================================================================
// LoginOrRegisterGitHub TESTS
// =========================================================================

func TestLoginOrRegisterGitHub_NewUser(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo, nil)

	ghUser := &auth.GitHubUser{
		ID:        42,
		Login:     "octocat",
		Email:     "octocat@github.com",
		AvatarURL: "https://avatars.githubusercontent.com/u/42",
	}

	result, err := svc.LoginOrRegisterGitHub(context.Background(), ghUser, ghToken("gho_first"))
	if err != nil {
		t.Fatalf("LoginOrRegisterGitHub() error = %v", err)
	}

	if result.Token == "" {
		t.Fatal("LoginOrRegisterGitHub() returned empty Token")
	}
	if result.User.ID == "" {
		t.Error("User.ID should be set after upsert")
	}
	if stored := repo.users[result.User.ID]; stored.AccessToken != "gho_first" {
		t.Errorf("stored AccessToken = %q, want %q", stored.AccessToken, "gho_first")
	}
}

func TestLoginOrRegisterGitHub_ExistingUserGetsUpdatedProfile(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo, nil)
	ctx := context.Background()

	first, err := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 99, Login: "old-login"}, ghToken("gho_old"))
	if err != nil {
		t.Fatalf("first login error: %v", err)
	}

	second, err := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 99, Login: "new-login"}, ghToken("gho_new"))
	if err != nil {
		t.Fatalf("second login error: %v", err)
	}

	if second.User.ID != first.User.ID {
		t.Errorf("User.ID changed across logins: %q → %q", first.User.ID, second.User.ID)
	}
	if second.User.Login != "new-login" {
		t.Errorf("User.Login after update = %q, want %q", second.User.Login, "new-login")
	}
	if repo.users[first.User.ID].AccessToken != "gho_new" {
		t.Error("second login did not replace the stored GitHub token")
	}
}

func TestLoginOrRegisterGitHub_SessionIsValidJWT(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo(), nil)

	result, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{ID: 1, Login: "testuser"}, ghToken("gho"))
	if err != nil {
		t.Fatalf("LoginOrRegisterGitHub() error = %v", err)
	}

	userID, err := svc.ValidateToken(result.Token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if userID != result.User.ID {
		t.Errorf("token subject = %q, want %q", userID, result.User.ID)
	}
}

func TestLoginOrRegisterGitHub_InvalidInput(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo(), nil)
	ctx := context.Background()

	if _, err := svc.LoginOrRegisterGitHub(ctx, nil, ghToken("gho")); err == nil {
		t.Error("expected error for nil GitHubUser")
	}
	if _, err := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 1}, nil); err == nil {
		t.Error("expected error for nil token")
	}
	if _, err := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 1}, ghToken("")); err == nil {
		t.Error("expected error for empty access token")
	}
}

func TestLoginOrRegisterGitHub_RepositoryError(t *testing.T) {
	repo := newFakeUserRepo()
	repo.upsertErr = errors.New("database is on fire")
	svc := newTestAuthService(t, repo, nil)

	_, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{ID: 1, Login: "user"}, ghToken("gho"))
	if err == nil {
		t.Fatal("LoginOrRegisterGitHub() should propagate repository errors")
	}
}

// =========================================================================
// GetUserByID TESTS
// =========================================================================

func TestGetUserByID(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo(), nil)
	ctx := context.Background()

	result, err := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 7, Login: "findme"}, ghToken("gho"))
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	user, err := svc.GetUserByID(ctx, result.User.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if user.Login != "findme" {
		t.Errorf("user.Login = %q, want %q", user.Login, "findme")
	}

	if _, err := svc.GetUserByID(ctx, ""); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("empty ID: expected ErrValidation, got %v", err)
	}
	if _, err := svc.GetUserByID(ctx, "non-existent-id"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("unknown ID: expected ErrNotFound, got %v", err)
	}
}

// =========================================================================
// GitHubToken TESTS
// =========================================================================

func TestGitHubToken(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name        string
		stored      *oauth2.Token
		refresher   *fakeRefresher
		want        string
		wantErr     error
		wantRefresh bool
	}{
		{
			name:   "non-expiring token",
			stored: ghToken("gho_forever"),
			want:   "gho_forever",
		},
		{
			name:   "unexpired token",
			stored: &oauth2.Token{AccessToken: "gho_live", Expiry: now.Add(time.Hour)},
			want:   "gho_live",
		},
		{
			name:    "expired without refresh token",
			stored:  &oauth2.Token{AccessToken: "gho_dead", Expiry: now.Add(-time.Minute)},
			wantErr: apperror.ErrUnauthorized,
		},
		{
			name:        "expired and refreshed",
			stored:      &oauth2.Token{AccessToken: "gho_dead", RefreshToken: "ghr", Expiry: now.Add(-time.Minute)},
			refresher:   &fakeRefresher{token: &oauth2.Token{AccessToken: "gho_fresh", Expiry: now.Add(8 * time.Hour)}},
			want:        "gho_fresh",
			wantRefresh: true,
		},
		{
			name:        "refresh rejected",
			stored:      &oauth2.Token{AccessToken: "gho_dead", RefreshToken: "ghr", Expiry: now.Add(-time.Minute)},
			refresher:   &fakeRefresher{err: errors.New("bad_refresh_token")},
			wantErr:     apperror.ErrUnauthorized,
			wantRefresh: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeUserRepo()
			var refresher TokenRefresher
			if tt.refresher != nil {
				refresher = tt.refresher
			}
			svc := newTestAuthService(t, repo, refresher)
			svc.now = func() time.Time { return now }
			ctx := context.Background()

			result, err := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 1, Login: "u"}, tt.stored)
			if err != nil {
				t.Fatalf("setup: %v", err)
			}

			got, err := svc.GitHubToken(ctx, result.User.ID)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("GitHubToken() error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("GitHubToken() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("GitHubToken() = %q, want %q", got, tt.want)
			}

			if tt.wantRefresh && tt.refresher.calls != 1 {
				t.Errorf("refresher called %d times, want 1", tt.refresher.calls)
			}
			if tt.wantRefresh && tt.wantErr == nil {
				if stored := repo.users[result.User.ID]; stored.AccessToken != tt.want {
					t.Errorf("refreshed token not stored: got %q", stored.AccessToken)
				}
			}
		})
	}
}
