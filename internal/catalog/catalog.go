// Package catalog describes the two read operations the discovery engine needs
// from GitHub's public repository catalog.
//
// The engine depends on the Catalog interface, never on go-github directly.
// The production implementation lives in catalog/github; tests use the
// in-memory fake in catalog/catalogtest.
package catalog

import (
	"context"

	"github.com/sakif/petithub/internal/model"
)

// Page is one page of "list repositories since cursor".
//
// Items are ordered by ascending ID and every ID is greater than the cursor
// the page was requested with. The page size is decided upstream (GitHub
// currently returns up to 100 stubs).
type Page struct {
	Items      []model.RepositoryStub
	Status     int   // HTTP status of the upstream response
	NextCursor int64 // cursor for the following page; 0 when Items is empty
}

// Empty reports whether the page carries no repositories.
func (p *Page) Empty() bool {
	return p == nil || len(p.Items) == 0
}

// Last returns the stub with the highest ID on the page.
// Callers must check Empty first.
func (p *Page) Last() model.RepositoryStub {
	return p.Items[len(p.Items)-1]
}

// Catalog is the upstream capability consumed by the discovery engine.
//
// ListSince returns the repositories whose IDs follow cursor. GetByOwnerRepo
// returns the full record; it fails with apperror.ErrNotFound when the
// repository was renamed, moved or deleted, and with apperror.ErrUpstream for
// any other failure.
type Catalog interface {
	ListSince(ctx context.Context, cursor int64) (*Page, error)
	GetByOwnerRepo(ctx context.Context, owner, name string) (*model.RepositoryDetail, error)
}
