package discovery

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/petithub/internal/apperror"
	"github.com/sakif/petithub/internal/model"
)

// SampleQualifying returns a random qualifying repository with an ID at or
// below roughly maxID (see model.RepositoryDetail.Qualifies).
//
// Each iteration draws a cursor uniformly from [0, maxID), lists the page
// after it, drops forks and fetches the remaining candidates' details. The
// first qualifying candidate in page order wins, so the same draw always
// yields the same repository. Details are fetched Concurrency at a time; a
// chunk is only inspected once all of its fetches have finished.
//
// A failed detail fetch rejects that candidate, and a failed page listing
// spends that iteration; the search goes on either way. After MaxIterations
// draws without a match the search fails with apperror.ErrNotFound, unless
// every listing failed, in which case the last upstream error is returned.
//
// Draws are uniform over cursors, not over repositories: dense regions of
// the ID space are over-represented.
func (e *Engine) SampleQualifying(ctx context.Context, maxID int64) (*model.RepositoryDetail, error) {
	if maxID <= 0 {
		return nil, apperror.ValidationFailed("maxId", "maxId must be a positive repository id")
	}

	iterations := e.config.MaxIterations
	var (
		listErr  error
		listings int
	)
	for it := 0; it < iterations; it++ {
		if err := ctx.Err(); err != nil {
			return nil, apperror.Upstream("sampling interrupted", err)
		}

		since := e.rand.Int64N(maxID)
		page, err := e.catalog.ListSince(ctx, since)
		if err != nil {
			if !apperror.IsUpstream(err) {
				err = apperror.Upstream(fmt.Sprintf("listing repositories since %d", since), err)
			}
			e.observer.Observe(ctx, Event{Kind: EventPageFailed, Round: it, Cursor: since, Err: err})
			listErr = err
			continue
		}
		listings++

		var size int
		if page != nil {
			size = len(page.Items)
		}
		e.observer.Observe(ctx, Event{Kind: EventDraw, Round: it, Cursor: since, PageSize: size})
		if page == nil {
			continue
		}

		detail, err := e.evaluatePage(ctx, originals(page.Items))
		if err != nil {
			return nil, err
		}
		if detail != nil {
			return detail, nil
		}
	}

	if listings == 0 && listErr != nil {
		return nil, listErr
	}
	e.observer.Observe(ctx, Event{Kind: EventSampleExhausted, Round: iterations})
	return nil, apperror.Exhausted(
		fmt.Sprintf("no qualifying repository found after %d iterations", iterations))
}

// originals drops forks, keeping page order.
func originals(stubs []model.RepositoryStub) []model.RepositoryStub {
	out := make([]model.RepositoryStub, 0, len(stubs))
	for _, s := range stubs {
		if !s.Fork {
			out = append(out, s)
		}
	}
	return out
}

type evaluation struct {
	detail *model.RepositoryDetail
	err    error
}

// evaluatePage fetches candidates in chunks and returns the first qualifying
// detail in page order, or nil when none qualifies. It only fails when ctx
// is done.
func (e *Engine) evaluatePage(ctx context.Context, candidates []model.RepositoryStub) (*model.RepositoryDetail, error) {
	chunkSize := e.config.Concurrency

	for start := 0; start < len(candidates); start += chunkSize {
		if err := ctx.Err(); err != nil {
			return nil, apperror.Upstream("sampling interrupted", err)
		}

		chunk := candidates[start:min(start+chunkSize, len(candidates))]
		results := make([]evaluation, len(chunk))

		// Fetch errors are per-candidate results, never group errors: one
		// failing candidate must not cancel its siblings.
		var g errgroup.Group
		g.SetLimit(chunkSize)
		for i, stub := range chunk {
			g.Go(func() error {
				d, err := e.catalog.GetByOwnerRepo(ctx, stub.Owner.Login, stub.Name)
				if err == nil && d == nil {
					err = fmt.Errorf("repository %s/%s: empty response", stub.Owner.Login, stub.Name)
				}
				if err == nil && d.ID != stub.ID {
					err = fmt.Errorf("repository %s/%s now has id %d, listed as %d",
						stub.Owner.Login, stub.Name, d.ID, stub.ID)
				}
				results[i] = evaluation{detail: d, err: err}
				return nil
			})
		}
		_ = g.Wait()

		for i, stub := range chunk {
			r := results[i]
			ev := Event{Kind: EventCandidate, Candidate: stub}

			switch {
			case r.err != nil:
				ev.Outcome, ev.Err = OutcomeErrored, r.err
			case r.detail.Qualifies():
				ev.Outcome = OutcomeQualifies
			default:
				ev.Outcome = OutcomeRejected
			}
			if r.detail != nil {
				ev.Stars, ev.Size = r.detail.StargazersCount, r.detail.Size
			}
			e.observer.Observe(ctx, ev)

			if ev.Outcome == OutcomeQualifies {
				return r.detail, nil
			}
		}
	}

	return nil, nil
}
