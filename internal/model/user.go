package model

import "time"

// User represents a visitor who signed in with GitHub.
//
// We use GitHub OAuth as the identity provider, so the primary external
// identifier is the GitHub user ID (an integer). We still generate our own
// internal string ID (xid) so our primary keys are not tied to a third-party's
// numbering scheme.
//
// WHY STORE THE ACCESS TOKEN?
// Discovery calls the GitHub API on the visitor's behalf. An authenticated
// client gets 5000 requests/hour instead of 60, which matters because one
// frontier search alone can take ~60 calls. The token never leaves the server:
// it is tagged json:"-" and the session cookie only carries the internal ID.
type User struct {
	ID             string    `json:"id"        db:"id"`
	GitHubID       int64     `json:"githubId"  db:"github_id"`  // GitHub's numeric user ID
	Login          string    `json:"login"     db:"login"`      // GitHub username, e.g. "octocat"
	Email          string    `json:"email"     db:"email"`      // Primary public email (may be empty)
	AvatarURL      string    `json:"avatarUrl" db:"avatar_url"` // Profile picture URL
	AccessToken    string    `json:"-"         db:"access_token"`
	RefreshToken   string    `json:"-"         db:"refresh_token"` // only for apps with expiring user tokens
	TokenExpiresAt time.Time `json:"-"         db:"token_expires_at"` // zero when GitHub issued a non-expiring token
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
}

// HasValidToken reports whether the stored GitHub token can still be used.
func (u *User) HasValidToken(now time.Time) bool {
	if u == nil || u.AccessToken == "" {
		return false
	}
	return u.TokenExpiresAt.IsZero() || now.Before(u.TokenExpiresAt)
}
