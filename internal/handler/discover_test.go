package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/petithub/internal/apperror"
	"github.com/sakif/petithub/internal/auth"
	"github.com/sakif/petithub/internal/discovery"
	"github.com/sakif/petithub/internal/handler"
	"github.com/sakif/petithub/internal/model"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// MockDiscovery records the arguments it was called with and returns canned results.
type MockDiscovery struct {
	Frontier     *model.Frontier
	RefreshErr   error
	RefreshSeeds []int64
	CurrentCalls int

	HistoryRes   []model.Frontier
	HistoryLimit int

	RandomRes   *model.RepositoryDetail
	RandomErr   error
	RandomMaxID int64

	LookupRes *discovery.LookupResult
	LookupErr error
	LookupID  int64
}

func (m *MockDiscovery) RefreshFrontier(_ context.Context, seed int64) (*model.Frontier, error) {
	m.RefreshSeeds = append(m.RefreshSeeds, seed)
	if m.RefreshErr != nil {
		return nil, m.RefreshErr
	}
	return m.Frontier, nil
}

func (m *MockDiscovery) CurrentFrontier(context.Context) *model.Frontier {
	m.CurrentCalls++
	return m.Frontier
}

func (m *MockDiscovery) History(_ context.Context, limit int) ([]model.Frontier, error) {
	m.HistoryLimit = limit
	return m.HistoryRes, nil
}

func (m *MockDiscovery) Random(_ context.Context, maxID int64) (*model.RepositoryDetail, error) {
	m.RandomMaxID = maxID
	return m.RandomRes, m.RandomErr
}

func (m *MockDiscovery) Lookup(_ context.Context, id int64) (*discovery.LookupResult, error) {
	m.LookupID = id
	return m.LookupRes, m.LookupErr
}

func newDiscoverRouter(m *MockDiscovery) http.Handler {
	h := handler.NewDiscoverHandler(m, testLogger)
	r := chi.NewRouter()
	r.Get("/discover/random", h.HandleRandom)
	r.Get("/discover/frontier", h.HandleFrontier)
	r.Get("/discover/frontier/history", h.HandleHistory)
	r.Get("/discover/{id}", h.HandleLookup)
	return r
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var body handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body
}

func TestDiscoverHandler_HandleRandom(t *testing.T) {
	repo := &model.RepositoryDetail{ID: 101, FullName: "owner101/repo101", Size: 10}

	tests := []struct {
		name      string
		target    string
		cookie    string
		wantMaxID int64
	}{
		{name: "query wins", target: "/discover/random?maxId=500", cookie: "900", wantMaxID: 500},
		{name: "cookie when no query", target: "/discover/random", cookie: "900", wantMaxID: 900},
		{name: "service default without either", target: "/discover/random", wantMaxID: 0},
		{name: "garbage cookie is ignored", target: "/discover/random", cookie: "abc", wantMaxID: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &MockDiscovery{RandomRes: repo}
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: handler.MaxIDCookie, Value: tt.cookie})
			}
			rr := httptest.NewRecorder()

			newDiscoverRouter(m).ServeHTTP(rr, req)

			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			assert.Equal(t, tt.wantMaxID, m.RandomMaxID)

			var got model.RepositoryDetail
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
			assert.Equal(t, int64(101), got.ID)
		})
	}
}

func TestDiscoverHandler_HandleRandom_Errors(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		err        error
		wantStatus int
		wantType   string
	}{
		{name: "non-numeric maxId", target: "/discover/random?maxId=ten", wantStatus: http.StatusBadRequest, wantType: "validation_error"},
		{
			name:       "nothing qualified",
			target:     "/discover/random?maxId=10",
			err:        fmt.Errorf("service/discovery: %w", apperror.Exhausted("no qualifying repository after 10 draws")),
			wantStatus: http.StatusNotFound,
			wantType:   "not_found",
		},
		{
			name:       "upstream failure",
			target:     "/discover/random?maxId=10",
			err:        apperror.Upstream("listing repositories since 3", errors.New("GET https://api.github.com/repositories: 502")),
			wantStatus: http.StatusInternalServerError,
			wantType:   "upstream_error",
		},
		{name: "unknown error", target: "/discover/random?maxId=10", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantType: "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &MockDiscovery{RandomErr: tt.err}
			rr := httptest.NewRecorder()

			newDiscoverRouter(m).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.target, nil))

			assert.Equal(t, tt.wantStatus, rr.Code)
			body := decodeError(t, rr)
			assert.Equal(t, tt.wantType, body.Error)
			assert.NotContains(t, body.Message, "api.github.com", "upstream details stay in the logs")
		})
	}
}

func TestDiscoverHandler_HandleLookup(t *testing.T) {
	t.Run("exact match", func(t *testing.T) {
		m := &MockDiscovery{LookupRes: &discovery.LookupResult{Repository: &model.RepositoryDetail{ID: 10}}}
		rr := httptest.NewRecorder()

		newDiscoverRouter(m).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/discover/10", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, int64(10), m.LookupID)
	})

	t.Run("gone id redirects to the next one", func(t *testing.T) {
		m := &MockDiscovery{LookupRes: &discovery.LookupResult{RedirectTo: 15}}
		rr := httptest.NewRecorder()

		newDiscoverRouter(m).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/discover/11", nil))

		assert.Equal(t, http.StatusFound, rr.Code)
		assert.Equal(t, "/discover/15", rr.Header().Get("Location"))

		var body handler.RedirectResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		assert.Equal(t, int64(15), body.NextID)
	})

	t.Run("not found", func(t *testing.T) {
		m := &MockDiscovery{LookupErr: apperror.NotFound("repository", "99")}
		rr := httptest.NewRecorder()

		newDiscoverRouter(m).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/discover/99", nil))

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	for _, id := range []string{"abc", "0", "-4"} {
		t.Run("invalid id "+id, func(t *testing.T) {
			m := &MockDiscovery{}
			rr := httptest.NewRecorder()

			newDiscoverRouter(m).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/discover/"+id, nil))

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Zero(t, m.LookupID, "service is not called")
		})
	}
}

func TestDiscoverHandler_HandleFrontier(t *testing.T) {
	ts := time.UnixMilli(1_760_000_000_000)
	frontier := &model.Frontier{ID: 1_000_000_000, Seed: 999_000_000, Timestamp: ts}

	t.Run("anonymous callers get the cached frontier", func(t *testing.T) {
		m := &MockDiscovery{Frontier: frontier}
		rr := httptest.NewRecorder()

		newDiscoverRouter(m).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/discover/frontier?seed=5", nil))

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, 1, m.CurrentCalls)
		assert.Empty(t, m.RefreshSeeds)

		var body handler.FrontierResponse
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		assert.Equal(t, frontier.ID, body.ID)
		assert.Equal(t, ts.UnixMilli(), body.Timestamp)

		cookie := findCookie(rr, handler.MaxIDCookie)
		require.NotNil(t, cookie)
		assert.Equal(t, "1000000000", cookie.Value)
		assert.Equal(t, 600, cookie.MaxAge)
	})

	t.Run("authenticated callers search from the seed", func(t *testing.T) {
		m := &MockDiscovery{Frontier: frontier}
		req := httptest.NewRequest(http.MethodGet, "/discover/frontier?seed=5", nil)
		req = req.WithContext(auth.WithGitHubToken(req.Context(), "gho_user"))
		rr := httptest.NewRecorder()

		newDiscoverRouter(m).ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, []int64{5}, m.RefreshSeeds)
		assert.Zero(t, m.CurrentCalls)
		assert.Equal(t, 86400, findCookie(rr, handler.MaxIDCookie).MaxAge)
	})

	t.Run("authenticated seed falls back to the cookie", func(t *testing.T) {
		m := &MockDiscovery{Frontier: frontier}
		req := httptest.NewRequest(http.MethodGet, "/discover/frontier", nil)
		req.AddCookie(&http.Cookie{Name: handler.MaxIDCookie, Value: "777"})
		req = req.WithContext(auth.WithGitHubToken(req.Context(), "gho_user"))
		rr := httptest.NewRecorder()

		newDiscoverRouter(m).ServeHTTP(rr, req)

		assert.Equal(t, []int64{777}, m.RefreshSeeds)
	})

	t.Run("authenticated search failure", func(t *testing.T) {
		m := &MockDiscovery{RefreshErr: apperror.Upstream("frontier search", errors.New("rate limited"))}
		req := httptest.NewRequest(http.MethodGet, "/discover/frontier", nil)
		req = req.WithContext(auth.WithGitHubToken(req.Context(), "gho_user"))
		rr := httptest.NewRecorder()

		newDiscoverRouter(m).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Nil(t, findCookie(rr, handler.MaxIDCookie))
	})

	t.Run("invalid seed", func(t *testing.T) {
		m := &MockDiscovery{Frontier: frontier}
		rr := httptest.NewRecorder()

		newDiscoverRouter(m).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/discover/frontier?seed=x", nil))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Zero(t, m.CurrentCalls)
	})

	t.Run("negative seed from an anonymous visitor", func(t *testing.T) {
		m := &MockDiscovery{Frontier: frontier}
		rr := httptest.NewRecorder()

		newDiscoverRouter(m).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/discover/frontier?seed=-5", nil))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "validation_error", decodeError(t, rr).Error)
		assert.Zero(t, m.CurrentCalls)
		assert.Empty(t, m.RefreshSeeds)
		assert.Nil(t, findCookie(rr, handler.MaxIDCookie))
	})
}

func TestDiscoverHandler_HandleHistory(t *testing.T) {
	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantLimit  int
	}{
		{name: "default limit", target: "/discover/frontier/history", wantStatus: http.StatusOK, wantLimit: 20},
		{name: "explicit limit", target: "/discover/frontier/history?limit=5", wantStatus: http.StatusOK, wantLimit: 5},
		{name: "limit too large", target: "/discover/frontier/history?limit=1000", wantStatus: http.StatusBadRequest},
		{name: "negative limit", target: "/discover/frontier/history?limit=-1", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &MockDiscovery{}
			rr := httptest.NewRecorder()

			newDiscoverRouter(m).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.target, nil))

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantLimit, m.HistoryLimit)
		})
	}

	t.Run("empty history is an empty array", func(t *testing.T) {
		rr := httptest.NewRecorder()
		newDiscoverRouter(&MockDiscovery{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/discover/frontier/history", nil))
		assert.JSONEq(t, "[]", rr.Body.String())
	})
}

func findCookie(rr *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rr.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
