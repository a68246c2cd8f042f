package discovery

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sakif/petithub/internal/apperror"
	"github.com/sakif/petithub/internal/model"
)

// LookupResult is either the requested repository or, when that ID is no
// longer in use, the next ID that is. Exactly one field is set.
type LookupResult struct {
	Repository *model.RepositoryDetail
	RedirectTo int64
}

// Redirected reports whether the requested ID was skipped.
func (r *LookupResult) Redirected() bool {
	return r != nil && r.Repository == nil && r.RedirectTo > 0
}

// LookupByID resolves a repository ID.
//
// GitHub has no "get repository by id" in the REST catalog, so we list since
// id-1: the first stub on that page is the repository with the requested ID
// if it still exists, and its successor otherwise. A successor is reported as
// a redirect, never followed; the caller decides.
func (e *Engine) LookupByID(ctx context.Context, id int64) (*LookupResult, error) {
	if id <= 0 {
		return nil, apperror.ValidationFailed("id", "repository id must be a positive integer")
	}

	cursor := id - 1
	page, err := e.catalog.ListSince(ctx, cursor)
	if err != nil {
		if !apperror.IsUpstream(err) {
			err = apperror.Upstream(fmt.Sprintf("listing repositories since %d", cursor), err)
		}
		return nil, err
	}
	if page.Empty() {
		return nil, apperror.NotFound("repository", strconv.FormatInt(id, 10))
	}

	first := page.Items[0]
	if first.ID != id {
		e.observer.Observe(ctx, Event{Kind: EventLookupRedirect, Cursor: cursor, Result: first.ID})
		return &LookupResult{RedirectTo: first.ID}, nil
	}

	detail, err := e.catalog.GetByOwnerRepo(ctx, first.Owner.Login, first.Name)
	if err != nil {
		return nil, fmt.Errorf("looking up repository %d: %w", id, err)
	}
	// The name was reused by a different repository since it was listed.
	if detail == nil || detail.ID != id {
		return nil, apperror.NotFound("repository", strconv.FormatInt(id, 10))
	}
	return &LookupResult{Repository: detail}, nil
}
