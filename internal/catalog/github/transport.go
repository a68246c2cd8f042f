package github

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
)

// tokenTransport authenticates each request with the visitor's token when the
// request context carries one, and with the server token otherwise.
type tokenTransport struct {
	base        http.RoundTripper
	fallback    http.RoundTripper
	fromContext func(ctx context.Context) string
}

func newTokenTransport(base http.RoundTripper, serverToken string, fromContext func(ctx context.Context) string) *tokenTransport {
	t := &tokenTransport{
		base:        base,
		fallback:    base,
		fromContext: fromContext,
	}
	if serverToken != "" {
		t.fallback = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: serverToken}),
			Base:   base,
		}
	}
	return t
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.fromContext != nil {
		if token := t.fromContext(req.Context()); token != "" {
			// RoundTrippers must not modify the caller's request.
			r := req.Clone(req.Context())
			(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}).SetAuthHeader(r)
			return t.base.RoundTrip(r)
		}
	}
	return t.fallback.RoundTrip(req)
}
