package discovery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sakif/petithub/internal/catalog"
	"github.com/sakif/petithub/internal/catalog/catalogtest"
	"github.com/sakif/petithub/internal/model"
)

// fixedRand replays draws in order, then repeats the last one.
type fixedRand struct {
	mu    sync.Mutex
	draws []int64
	seen  []int64 // the n passed to each Int64N call
}

func drawing(draws ...int64) *fixedRand {
	return &fixedRand{draws: draws}
}

func (r *fixedRand) Int64N(n int64) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, n)
	v := r.draws[0]
	if len(r.draws) > 1 {
		r.draws = r.draws[1:]
	}
	return v
}

// recorder keeps every event it observes.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Observe(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds(kind EventKind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// failAfter lets the first n listings through, then fails every call.
type failAfter struct {
	*catalogtest.Catalog
	mu    sync.Mutex
	n     int
	calls int
	err   error
}

func (f *failAfter) ListSince(ctx context.Context, cursor int64) (*catalog.Page, error) {
	f.mu.Lock()
	f.calls++
	fail := f.calls > f.n
	f.mu.Unlock()
	if fail {
		return nil, f.err
	}
	return f.Catalog.ListSince(ctx, cursor)
}

// slowGets delays detail fetches for selected repositories.
type slowGets struct {
	*catalogtest.Catalog
	delay map[string]time.Duration
}

func (s *slowGets) GetByOwnerRepo(ctx context.Context, owner, name string) (*model.RepositoryDetail, error) {
	if d, ok := s.delay[owner+"/"+name]; ok {
		time.Sleep(d)
	}
	return s.Catalog.GetByOwnerRepo(ctx, owner, name)
}

func newTestEngine(t *testing.T, c catalog.Catalog, opts ...Option) *Engine {
	t.Helper()
	e, err := New(c, DefaultConfig(), opts...)
	require.NoError(t, err)
	return e
}
