// Package github implements catalog.Catalog on top of go-github.
//
// Two REST endpoints are used:
//
//	GET /repositories?since={cursor}   → ListSince
//	GET /repos/{owner}/{repo}           → GetByOwnerRepo
//
// Authentication is per request: if the request context carries a visitor's
// GitHub token (see Config.TokenFromContext) it is sent as the bearer token,
// otherwise the server-wide token is used. Requests are throttled
// proactively with a token bucket; rate-limit responses from GitHub are still
// surfaced as ordinary apperror.ErrUpstream errors, never retried here.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v80/github"
	"golang.org/x/time/rate"

	"github.com/sakif/petithub/internal/apperror"
	"github.com/sakif/petithub/internal/catalog"
	"github.com/sakif/petithub/internal/model"
)

const (
	// DefaultTimeout bounds a single upstream HTTP call.
	DefaultTimeout = 30 * time.Second

	// DefaultRequestsPerSecond keeps a single process under the authenticated
	// limit of 5000 requests/hour (~1.4 req/s) with bursts allowed.
	DefaultRequestsPerSecond = 1.2

	// DefaultBurst lets one sampling page fetch a handful of details at once.
	DefaultBurst = 10

	// lowRateThreshold is the remaining quota below which we warn.
	lowRateThreshold = 100
)

var _ catalog.Catalog = (*Client)(nil)

// Config configures a Client.
type Config struct {
	// Token is the server-wide GitHub token used when the request context
	// carries none. Empty means anonymous requests (60/hour).
	Token string

	// BaseURL overrides https://api.github.com/ (tests, GitHub Enterprise).
	BaseURL string

	// RequestsPerSecond and Burst configure proactive throttling.
	// RequestsPerSecond <= 0 disables throttling.
	RequestsPerSecond float64
	Burst             int

	// Timeout bounds a single HTTP call. Zero means DefaultTimeout.
	Timeout time.Duration

	// TokenFromContext returns the visitor's token for a request, if any.
	TokenFromContext func(ctx context.Context) string
}

// Client wraps the go-github client.
type Client struct {
	gh      *gh.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a Client.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: newTokenTransport(http.DefaultTransport, cfg.Token, cfg.TokenFromContext),
	}
	client := gh.NewClient(httpClient)

	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("github: parsing base URL %q: %w", cfg.BaseURL, err)
		}
		client.BaseURL = u
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = DefaultBurst
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &Client{
		gh:      client,
		limiter: limiter,
		logger:  logger,
	}, nil
}

// ListSince lists one page of public repositories with IDs greater than cursor.
func (c *Client) ListSince(ctx context.Context, cursor int64) (*catalog.Page, error) {
	op := fmt.Sprintf("listing repositories since %d", cursor)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperror.Upstream(op, err)
	}

	repos, resp, err := c.gh.Repositories.ListAll(ctx, &gh.RepositoryListAllOptions{Since: cursor})
	if err != nil {
		return nil, c.wrapError(err, op, false)
	}
	c.observeRate(resp)

	page := &catalog.Page{
		Items: make([]model.RepositoryStub, 0, len(repos)),
	}
	if resp != nil && resp.Response != nil {
		page.Status = resp.StatusCode
	}
	for _, r := range repos {
		page.Items = append(page.Items, model.RepositoryStub{
			ID:    r.GetID(),
			Owner: model.Owner{Login: r.GetOwner().GetLogin()},
			Name:  r.GetName(),
			Fork:  r.GetFork(),
		})
	}
	if !page.Empty() {
		page.NextCursor = page.Last().ID
	}

	return page, nil
}

// GetByOwnerRepo fetches the full repository record.
// A 404 (renamed, moved, deleted or private) maps to apperror.ErrNotFound.
func (c *Client) GetByOwnerRepo(ctx context.Context, owner, name string) (*model.RepositoryDetail, error) {
	op := fmt.Sprintf("getting repository %s/%s", owner, name)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperror.Upstream(op, err)
	}

	repo, resp, err := c.gh.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, c.wrapError(err, op, true)
	}
	c.observeRate(resp)

	detail := detailFromGitHub(repo)
	return &detail, nil
}

// observeRate warns when the remaining quota gets low. Backing off is left to
// whoever schedules the calls.
func (c *Client) observeRate(resp *gh.Response) {
	if resp == nil || c.logger == nil {
		return
	}
	if resp.Rate.Limit > 0 && resp.Rate.Remaining < lowRateThreshold {
		c.logger.Warn("github rate limit running low",
			slog.Int("remaining", resp.Rate.Remaining),
			slog.Int("limit", resp.Rate.Limit),
			slog.Time("reset", resp.Rate.Reset.Time),
		)
	}
}

// wrapError converts go-github errors into the apperror taxonomy.
func (c *Client) wrapError(err error, operation string, notFoundAllowed bool) error {
	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return apperror.Upstream(operation+": rate limited", err)
	}

	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return apperror.Upstream(operation+": secondary rate limit", err)
	}

	var ghErr *gh.ErrorResponse
	if notFoundAllowed && errors.As(err, &ghErr) &&
		ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound {
		return &apperror.AppError{
			Err:     apperror.ErrNotFound,
			Cause:   err,
			Message: operation + ": not found",
		}
	}

	return apperror.Upstream(operation, err)
}

func detailFromGitHub(r *gh.Repository) model.RepositoryDetail {
	d := model.RepositoryDetail{
		ID:       r.GetID(),
		Name:     r.GetName(),
		FullName: r.GetFullName(),
		Owner: model.Owner{
			Login:     r.GetOwner().GetLogin(),
			AvatarURL: r.GetOwner().GetAvatarURL(),
			HTMLURL:   r.GetOwner().GetHTMLURL(),
		},
		Description:      r.GetDescription(),
		HTMLURL:          r.GetHTMLURL(),
		Fork:             r.GetFork(),
		CreatedAt:        r.GetCreatedAt().Time,
		UpdatedAt:        r.GetUpdatedAt().Time,
		PushedAt:         r.GetPushedAt().Time,
		StargazersCount:  r.GetStargazersCount(),
		WatchersCount:    r.GetWatchersCount(),
		ForksCount:       r.GetForksCount(),
		SubscribersCount: r.GetSubscribersCount(),
		Size:             r.GetSize(),
		Language:         r.GetLanguage(),
		Topics:           r.Topics,
		Visibility:       r.GetVisibility(),
		DefaultBranch:    r.GetDefaultBranch(),
	}
	if l := r.GetLicense(); l != nil {
		d.License = &model.License{
			Key:    l.GetKey(),
			Name:   l.GetName(),
			SPDXID: l.GetSPDXID(),
		}
	}
	return d
}
