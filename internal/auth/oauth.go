package auth

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// GitHubUser is the part of the authenticated user's profile we keep.
type GitHubUser struct {
	ID        int64  `json:"id"`         // stable numeric ID
	Login     string `json:"login"`      // username, e.g. "octocat"
	Email     string `json:"email"`      // empty when hidden in GitHub settings
	AvatarURL string `json:"avatar_url"` // profile picture URL
}

// GitHubProvider runs the OAuth Authorization Code flow against GitHub.
//
// The code-for-token exchange is server-to-server and uses the client
// secret; the access token never reaches the browser.
type GitHubProvider struct {
	config     *oauth2.Config
	apiBaseURL string // empty means api.github.com
}

// ProviderOption customises a GitHubProvider.
type ProviderOption func(*GitHubProvider)

// WithEndpoint replaces the OAuth endpoints (GitHub Enterprise, tests).
func WithEndpoint(e oauth2.Endpoint) ProviderOption {
	return func(p *GitHubProvider) { p.config.Endpoint = e }
}

// WithAPIBaseURL replaces the REST API base URL used to read the profile.
func WithAPIBaseURL(u string) ProviderOption {
	return func(p *GitHubProvider) { p.apiBaseURL = u }
}

// NewGitHubProvider creates a provider for a registered OAuth App.
//
// callbackURL must match the app's "Authorization callback URL" exactly.
// Only "read:user" is requested: discovery reads public data, the token just
// lifts the visitor onto their own, far larger, rate limit.
func NewGitHubProvider(clientID, clientSecret, callbackURL string, opts ...ProviderOption) *GitHubProvider {
	p := &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  callbackURL,
			Scopes:       []string{"read:user"},
			Endpoint:     github.Endpoint,
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AuthURL returns GitHub's authorization URL carrying state. The callback
// must see the same state in its cookie, which defeats login CSRF.
func (p *GitHubProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for an OAuth token, then reads the
// user's profile with it. Both are returned: the token is stored so later
// API calls can run on the visitor's behalf.
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*GitHubUser, *oauth2.Token, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	client, err := p.apiClient(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	u, _, err := client.Users.Get(ctx, "")
	if err != nil {
		return nil, nil, fmt.Errorf("auth: calling GitHub /user API: %w", err)
	}
	if u.GetID() == 0 {
		return nil, nil, fmt.Errorf("auth: GitHub returned an invalid user (ID = 0)")
	}

	return &GitHubUser{
		ID:        u.GetID(),
		Login:     u.GetLogin(),
		Email:     u.GetEmail(),
		AvatarURL: u.GetAvatarURL(),
	}, token, nil
}

// Refresh exchanges a refresh token for a new access token. GitHub only
// issues refresh tokens to apps with expiring user tokens enabled.
func (p *GitHubProvider) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("auth: no refresh token")
	}
	// An already-expired token forces the source to hit the token endpoint.
	stale := &oauth2.Token{RefreshToken: refreshToken, Expiry: time.Unix(1, 0)}
	token, err := p.config.TokenSource(ctx, stale).Token()
	if err != nil {
		return nil, fmt.Errorf("auth: refreshing OAuth token: %w", err)
	}
	return token, nil
}

func (p *GitHubProvider) apiClient(ctx context.Context, token *oauth2.Token) (*gh.Client, error) {
	client := gh.NewClient(p.config.Client(ctx, token))
	if p.apiBaseURL == "" {
		return client, nil
	}

	base := p.apiBaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("auth: parsing API base URL: %w", err)
	}
	client.BaseURL = u
	return client, nil
}
