// Package model defines the data structures used throughout the application.
//
// Repository types mirror the GitHub REST API shapes closely: the JSON tags use
// GitHub's snake_case names so a RepositoryDetail can be served back to API
// clients exactly as GitHub describes it.
package model

import "time"

// Owner is the account a repository belongs to.
type Owner struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url,omitempty"`
	HTMLURL   string `json:"html_url,omitempty"`
}

// RepositoryStub is the minimal record returned by "list repositories since".
// It is enough to filter forks and to fetch the full detail, nothing more.
type RepositoryStub struct {
	ID    int64  `json:"id"`
	Owner Owner  `json:"owner"`
	Name  string `json:"name"`
	Fork  bool   `json:"fork"`
}

// License is the SPDX summary GitHub attaches to a repository.
type License struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	SPDXID string `json:"spdx_id"`
}

// RepositoryDetail is the full repository record with stats, fetched by
// owner/name. It is fetched per request and never persisted.
type RepositoryDetail struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	FullName         string    `json:"full_name"`
	Owner            Owner     `json:"owner"`
	Description      string    `json:"description"`
	HTMLURL          string    `json:"html_url"`
	Fork             bool      `json:"fork"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	PushedAt         time.Time `json:"pushed_at"`
	StargazersCount  int       `json:"stargazers_count"`
	WatchersCount    int       `json:"watchers_count"`
	ForksCount       int       `json:"forks_count"`
	SubscribersCount int       `json:"subscribers_count"`
	Size             int       `json:"size"` // kilobytes
	Language         string    `json:"language"`
	License          *License  `json:"license"`
	Topics           []string  `json:"topics"`
	Visibility       string    `json:"visibility"`
	DefaultBranch    string    `json:"default_branch"`
}

// Qualifies reports whether the repository is "interesting": an original
// (non-fork) repository nobody has starred yet that actually has content.
func (d *RepositoryDetail) Qualifies() bool {
	return d != nil && !d.Fork && d.StargazersCount == 0 && d.Size > 0
}
