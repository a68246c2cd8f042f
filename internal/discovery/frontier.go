package discovery

import (
	"context"
	"fmt"
	"math"

	"github.com/sakif/petithub/internal/apperror"
	"github.com/sakif/petithub/internal/catalog"
)

// FindFrontier returns a recent upper bound on allocated repository IDs.
//
// The search has three phases:
//
//  1. Exponential probe: list since seed+100, +1000, +10000, ... until a page
//     comes back empty. The frontier is then bracketed by [prev, next].
//  2. Binary search the bracket until it is no wider than one page.
//  3. List since the last midpoint; the highest ID on that page is the
//     frontier (or prev, when that page is empty).
//
// If the page at seed itself is empty the frontier is at or below seed and
// the search collapses to seed.
//
// Any upstream error aborts the search: bracketing is only correct when every
// read is. No partial result is returned. The caller should retry later or
// keep using its previous frontier.
func (e *Engine) FindFrontier(ctx context.Context, seed int64) (int64, error) {
	if seed < 0 {
		return 0, apperror.ValidationFailed("seed", "seed must not be negative")
	}

	cfg := e.config

	page, err := e.listForFrontier(ctx, seed)
	if err != nil {
		return 0, err
	}

	prev, next := seed, seed
	if !page.Empty() {
		increment := cfg.InitialIncrement
		for round := 0; round < cfg.MaxProbeRounds; round++ {
			if err := e.checkFrontierContext(ctx, next); err != nil {
				return 0, err
			}

			prev = next
			next = addCapped(next, increment)

			page, err = e.listForFrontier(ctx, next)
			if err != nil {
				return 0, err
			}
			e.observer.Observe(ctx, Event{
				Kind:     EventProbe,
				Round:    round,
				Cursor:   next,
				Prev:     prev,
				Next:     next,
				PageSize: len(page.Items),
			})

			if page.Empty() {
				break
			}
			increment = mulCapped(increment, cfg.IncrementFactor)
		}
	}

	middle := prev
	for round := 0; round < cfg.MaxBinaryRounds && next-prev > cfg.PageGranularity; round++ {
		if err := e.checkFrontierContext(ctx, middle); err != nil {
			return 0, err
		}

		middle = prev + (next-prev)/2
		page, err = e.listForFrontier(ctx, middle)
		if err != nil {
			return 0, err
		}

		if page.Empty() {
			next = middle
		} else {
			prev = middle
		}
		e.observer.Observe(ctx, Event{
			Kind:     EventBisect,
			Round:    round,
			Cursor:   middle,
			Prev:     prev,
			Next:     next,
			Middle:   middle,
			PageSize: len(page.Items),
		})
	}

	last, err := e.listForFrontier(ctx, middle)
	if err != nil {
		return 0, err
	}

	frontier := prev
	if !last.Empty() {
		frontier = last.Last().ID
	}

	e.observer.Observe(ctx, Event{
		Kind:     EventFrontierResolved,
		Cursor:   middle,
		Prev:     prev,
		Next:     next,
		Middle:   middle,
		PageSize: len(last.Items),
		Result:   frontier,
	})
	return frontier, nil
}

// listForFrontier lists one page, turning every failure into an upstream error.
func (e *Engine) listForFrontier(ctx context.Context, cursor int64) (*catalog.Page, error) {
	page, err := e.catalog.ListSince(ctx, cursor)
	if err == nil && page == nil {
		page = &catalog.Page{}
	}
	if err != nil {
		if !apperror.IsUpstream(err) {
			err = apperror.Upstream(fmt.Sprintf("listing repositories since %d", cursor), err)
		}
		e.observer.Observe(ctx, Event{Kind: EventFrontierFailed, Cursor: cursor, Err: err})
		return nil, err
	}
	return page, nil
}

func (e *Engine) checkFrontierContext(ctx context.Context, cursor int64) error {
	if err := ctx.Err(); err != nil {
		err = apperror.Upstream("frontier search interrupted", err)
		e.observer.Observe(ctx, Event{Kind: EventFrontierFailed, Cursor: cursor, Err: err})
		return err
	}
	return nil
}

func addCapped(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}

func mulCapped(a, b int64) int64 {
	if a > math.MaxInt64/b {
		return math.MaxInt64
	}
	return a * b
}
