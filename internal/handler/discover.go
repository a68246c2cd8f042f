// Package handler contains the HTTP handlers of the discovery API.
//
// Handlers are glue: they parse the request (path, query, cookies), call a
// service and write JSON. Business rules live in internal/service and
// internal/discovery; status codes live here and in writeError.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/petithub/internal/apperror"
	"github.com/sakif/petithub/internal/auth"
	"github.com/sakif/petithub/internal/discovery"
	"github.com/sakif/petithub/internal/model"
)

// MaxIDCookie carries the caller's last known frontier between requests.
const MaxIDCookie = "max_id"

const (
	authenticatedMaxIDAge = 24 * time.Hour
	anonymousMaxIDAge     = 10 * time.Minute

	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// DiscoveryService is what DiscoverHandler needs from service.DiscoveryService.
type DiscoveryService interface {
	RefreshFrontier(ctx context.Context, seed int64) (*model.Frontier, error)
	CurrentFrontier(ctx context.Context) *model.Frontier
	History(ctx context.Context, limit int) ([]model.Frontier, error)
	Random(ctx context.Context, maxID int64) (*model.RepositoryDetail, error)
	Lookup(ctx context.Context, id int64) (*discovery.LookupResult, error)
}

// DiscoverHandler serves the /discover routes.
type DiscoverHandler struct {
	discovery DiscoveryService
	logger    *slog.Logger
}

// NewDiscoverHandler creates a DiscoverHandler.
func NewDiscoverHandler(discovery DiscoveryService, logger *slog.Logger) *DiscoverHandler {
	return &DiscoverHandler{
		discovery: discovery,
		logger:    logger,
	}
}

// FrontierResponse is the body of GET /discover/frontier.
type FrontierResponse struct {
	ID        int64 `json:"id"`
	Timestamp int64 `json:"timestamp"` // Unix milliseconds
}

// RedirectResponse is the body sent with a 302 when a looked-up ID is gone.
type RedirectResponse struct {
	NextID int64 `json:"nextId"`
}

// HandleRandom returns a random qualifying repository.
//
// HTTP: GET /discover/random?maxId=N
//
// The upper bound comes from the query, then the max_id cookie, then the
// cached frontier (maxID 0 tells the service to use it).
func (h *DiscoverHandler) HandleRandom(w http.ResponseWriter, r *http.Request) {
	maxID, err := queryInt(r, "maxId")
	if err != nil {
		writeError(w, err)
		return
	}
	if maxID == 0 {
		maxID = cookieMaxID(r)
	}

	repo, err := h.discovery.Random(r.Context(), maxID)
	if err != nil {
		logError(h.logger, r, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, repo)
}

// HandleLookup returns the repository with the given ID.
//
// HTTP: GET /discover/{id}
//
// When the ID is no longer allocated the next one in use is reported with a
// 302 rather than followed, so the client sees that it moved.
func (h *DiscoverHandler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, apperror.ValidationFailed("id", "repository id must be a positive integer"))
		return
	}

	res, err := h.discovery.Lookup(r.Context(), id)
	if err != nil {
		logError(h.logger, r, err)
		writeError(w, err)
		return
	}

	if res.Redirected() {
		w.Header().Set("Location", "/discover/"+strconv.FormatInt(res.RedirectTo, 10))
		writeJSON(w, http.StatusFound, RedirectResponse{NextID: res.RedirectTo})
		return
	}

	writeJSON(w, http.StatusOK, res.Repository)
}

// HandleFrontier reports the highest known repository ID and remembers it in
// the max_id cookie.
//
// HTTP: GET /discover/frontier?seed=N
//
// A caller with a GitHub token gets a fresh search (from seed, then the
// max_id cookie, then the cache). Anonymous callers share the cached value
// so they don't spend the server's rate limit.
func (h *DiscoverHandler) HandleFrontier(w http.ResponseWriter, r *http.Request) {
	seed, err := queryInt(r, "seed")
	if err != nil {
		writeError(w, err)
		return
	}
	if seed < 0 {
		writeError(w, apperror.ValidationFailed("seed", "seed must not be negative"))
		return
	}

	authenticated := auth.GitHubToken(r.Context()) != ""

	var f *model.Frontier
	if authenticated {
		if seed == 0 {
			seed = cookieMaxID(r)
		}
		f, err = h.discovery.RefreshFrontier(r.Context(), seed)
		if err != nil {
			logError(h.logger, r, err)
			writeError(w, err)
			return
		}
	} else {
		f = h.discovery.CurrentFrontier(r.Context())
	}

	maxAge := anonymousMaxIDAge
	if authenticated {
		maxAge = authenticatedMaxIDAge
	}
	http.SetCookie(w, &http.Cookie{
		Name:     MaxIDCookie,
		Value:    strconv.FormatInt(f.ID, 10),
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		SameSite: http.SameSiteStrictMode,
	})

	writeJSON(w, http.StatusOK, FrontierResponse{
		ID:        f.ID,
		Timestamp: f.Timestamp.UnixMilli(),
	})
}

// HandleHistory lists stored frontier snapshots, newest first.
//
// HTTP: GET /discover/frontier/history?limit=N
func (h *DiscoverHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	switch {
	case limit == 0:
		limit = defaultHistoryLimit
	case limit < 0 || limit > maxHistoryLimit:
		writeError(w, apperror.ValidationFailed("limit", "limit must be between 1 and 100"))
		return
	}

	history, err := h.discovery.History(r.Context(), int(limit))
	if err != nil {
		logError(h.logger, r, err)
		writeError(w, err)
		return
	}
	if history == nil {
		history = []model.Frontier{}
	}

	writeJSON(w, http.StatusOK, history)
}

// queryInt parses an optional integer query parameter. Absent means 0.
func queryInt(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperror.ValidationFailed(name, name+" must be an integer")
	}
	return v, nil
}

// cookieMaxID returns the max_id cookie, or 0 when it is missing or garbage.
// A cookie is client state; a bad one is ignored rather than rejected.
func cookieMaxID(r *http.Request) int64 {
	c, err := r.Cookie(MaxIDCookie)
	if err != nil {
		return 0
	}
	v, err := strconv.ParseInt(c.Value, 10, 64)
	if err != nil || v <= 0 {
		return 0
	}
	return v
}
