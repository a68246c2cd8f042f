// Package catalogtest provides an in-memory catalog.Catalog for tests.
//
// The fake honours the listing contract of the real GitHub endpoint: pages are
// ordered by ascending ID, every ID is strictly greater than the cursor, and
// a page holds at most PageSize stubs. It also records every call so tests can
// assert how many upstream requests an algorithm made.
package catalogtest

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/sakif/petithub/internal/apperror"
	"github.com/sakif/petithub/internal/catalog"
	"github.com/sakif/petithub/internal/model"
)

// DefaultPageSize matches GitHub's page size for GET /repositories.
const DefaultPageSize = 100

var _ catalog.Catalog = (*Catalog)(nil)

// Catalog is an in-memory catalog.Catalog. It is safe for concurrent use.
type Catalog struct {
	PageSize int

	mu      sync.Mutex
	repos   []model.RepositoryDetail // sorted by ID
	ceiling int64                    // >0: IDs 1..ceiling exist in addition to repos
	listErr error
	getErrs map[string]error

	listCalls []int64
	getCalls  []string
}

// New returns a catalog holding exactly the given repositories.
func New(repos ...model.RepositoryDetail) *Catalog {
	c := &Catalog{
		PageSize: DefaultPageSize,
		getErrs:  make(map[string]error),
	}
	c.Add(repos...)
	return c
}

// NewDense returns a catalog where every ID from 1 to ceiling is allocated.
// Synthesized repositories are starred, so none of them qualify.
func NewDense(ceiling int64) *Catalog {
	c := New()
	c.ceiling = ceiling
	return c
}

// Repository builds a detail with a predictable owner and name.
func Repository(id int64, stars, size int, fork bool) model.RepositoryDetail {
	owner := fmt.Sprintf("owner%d", id)
	name := fmt.Sprintf("repo%d", id)
	return model.RepositoryDetail{
		ID:              id,
		Name:            name,
		FullName:        owner + "/" + name,
		Owner:           model.Owner{Login: owner},
		HTMLURL:         "https://github.com/" + owner + "/" + name,
		Fork:            fork,
		StargazersCount: stars,
		Size:            size,
		Visibility:      "public",
		DefaultBranch:   "main",
	}
}

// Add inserts repositories, keeping the catalog sorted by ID.
func (c *Catalog) Add(repos ...model.RepositoryDetail) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.repos = append(c.repos, repos...)
	sort.Slice(c.repos, func(i, j int) bool { return c.repos[i].ID < c.repos[j].ID })
}

// FailListing makes every ListSince call return err (nil restores normal behaviour).
func (c *Catalog) FailListing(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listErr = err
}

// FailGet makes GetByOwnerRepo fail for the given "owner/name".
func (c *Catalog) FailGet(fullName string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getErrs[fullName] = err
}

// ListCalls returns the cursors of every ListSince call, in call order.
func (c *Catalog) ListCalls() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int64(nil), c.listCalls...)
}

// GetCalls returns the "owner/name" of every GetByOwnerRepo call.
// With concurrent fetches the order is completion order.
func (c *Catalog) GetCalls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.getCalls...)
}

// Calls returns the total number of upstream calls made.
func (c *Catalog) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listCalls) + len(c.getCalls)
}

// ListSince returns up to PageSize stubs with IDs greater than cursor.
func (c *Catalog) ListSince(ctx context.Context, cursor int64) (*catalog.Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.listCalls = append(c.listCalls, cursor)
	if err := ctx.Err(); err != nil {
		return nil, apperror.Upstream(fmt.Sprintf("listing repositories since %d", cursor), err)
	}
	if c.listErr != nil {
		return nil, c.listErr
	}

	size := c.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}

	page := &catalog.Page{Status: http.StatusOK}
	i := sort.Search(len(c.repos), func(i int) bool { return c.repos[i].ID > cursor })
	next := cursor + 1

	for len(page.Items) < size {
		var explicit *model.RepositoryDetail
		if i < len(c.repos) {
			explicit = &c.repos[i]
		}

		switch {
		case c.ceiling > 0 && next <= c.ceiling && (explicit == nil || next < explicit.ID):
			page.Items = append(page.Items, stub(Repository(next, 1, 1, false)))
			next++
		case explicit != nil:
			page.Items = append(page.Items, stub(*explicit))
			next = explicit.ID + 1
			i++
		default:
			size = 0 // nothing left
		}
	}

	if !page.Empty() {
		page.NextCursor = page.Last().ID
	}
	return page, nil
}

// GetByOwnerRepo returns the detail for owner/name or apperror.ErrNotFound.
func (c *Catalog) GetByOwnerRepo(ctx context.Context, owner, name string) (*model.RepositoryDetail, error) {
	fullName := owner + "/" + name

	c.mu.Lock()
	defer c.mu.Unlock()

	c.getCalls = append(c.getCalls, fullName)
	if err := ctx.Err(); err != nil {
		return nil, apperror.Upstream("getting repository "+fullName, err)
	}
	if err, ok := c.getErrs[fullName]; ok {
		return nil, err
	}

	for i := range c.repos {
		if c.repos[i].FullName == fullName {
			d := c.repos[i]
			return &d, nil
		}
	}

	var id int64
	if c.ceiling > 0 {
		if _, err := fmt.Sscanf(owner, "owner%d", &id); err == nil && id >= 1 && id <= c.ceiling {
			d := Repository(id, 1, 1, false)
			if d.FullName == fullName {
				return &d, nil
			}
		}
	}

	return nil, apperror.NotFound("repository", fullName)
}

func stub(d model.RepositoryDetail) model.RepositoryStub {
	return model.RepositoryStub{
		ID:    d.ID,
		Owner: model.Owner{Login: d.Owner.Login},
		Name:  d.Name,
		Fork:  d.Fork,
	}
}
