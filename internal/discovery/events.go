package discovery

import (
	"context"
	"log/slog"

	"github.com/sakif/petithub/internal/model"
)

// EventKind names a step of a discovery algorithm.
type EventKind string

const (
	EventProbe            EventKind = "probe"             // one exponential probe round
	EventBisect           EventKind = "bisect"            // one binary search round
	EventFrontierResolved EventKind = "frontier_resolved" // FindFrontier returned
	EventFrontierFailed   EventKind = "frontier_failed"   // FindFrontier aborted
	EventDraw             EventKind = "draw"              // sampler drew a cursor and listed its page
	EventPageFailed       EventKind = "page_failed"       // sampler could not list a page
	EventCandidate        EventKind = "candidate"         // sampler evaluated one candidate
	EventSampleExhausted  EventKind = "sample_exhausted"  // sampler ran out of iterations
	EventLookupRedirect   EventKind = "lookup_redirect"   // exact ID no longer exists
)

// Outcome is the verdict on one sampling candidate. Errored counts as
// Rejected for control flow but stays distinct in diagnostics.
type Outcome string

const (
	OutcomeQualifies Outcome = "qualifies"
	OutcomeRejected  Outcome = "rejected"
	OutcomeErrored   Outcome = "errored"
)

// Event is one diagnostic record. Only the fields relevant to Kind are set.
type Event struct {
	Kind EventKind

	Round  int   // probe/bisect round or sampler iteration (0-based)
	Cursor int64 // "since" cursor that was listed

	// Frontier bracket after the round.
	Prev   int64
	Next   int64
	Middle int64

	PageSize int // stubs on the listed page

	Candidate model.RepositoryStub
	Outcome   Outcome
	Stars     int
	Size      int

	Result int64 // resolved frontier or redirect target
	Err    error
}

// Observer receives diagnostic events. Implementations must be safe for
// concurrent use and must not block for long: events are delivered inline.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) Observe(ctx context.Context, ev Event) { f(ctx, ev) }

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) Observe(context.Context, Event) {}

type multiObserver []Observer

func (m multiObserver) Observe(ctx context.Context, ev Event) {
	for _, o := range m {
		o.Observe(ctx, ev)
	}
}

// Observers fans events out to every non-nil observer, in order.
func Observers(obs ...Observer) Observer {
	var m multiObserver
	for _, o := range obs {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}

// LogObserver turns events into structured log lines.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver logs search rounds at Debug, results at Info and failures
// at Warn.
func NewLogObserver(logger *slog.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (o *LogObserver) Observe(ctx context.Context, ev Event) {
	switch ev.Kind {
	case EventProbe, EventBisect:
		o.logger.LogAttrs(ctx, slog.LevelDebug, "frontier search round",
			slog.String("phase", string(ev.Kind)),
			slog.Int("round", ev.Round),
			slog.Int64("cursor", ev.Cursor),
			slog.Int64("prev", ev.Prev),
			slog.Int64("next", ev.Next),
			slog.Int("pageSize", ev.PageSize),
		)
	case EventFrontierResolved:
		o.logger.LogAttrs(ctx, slog.LevelInfo, "frontier resolved",
			slog.Int64("frontier", ev.Result),
			slog.Int64("middle", ev.Middle),
			slog.Int("pageSize", ev.PageSize),
		)
	case EventFrontierFailed:
		o.logger.LogAttrs(ctx, slog.LevelWarn, "frontier search aborted",
			slog.Int64("cursor", ev.Cursor),
			slog.String("error", errString(ev.Err)),
		)
	case EventDraw:
		o.logger.LogAttrs(ctx, slog.LevelDebug, "sampling page",
			slog.Int("iteration", ev.Round),
			slog.Int64("since", ev.Cursor),
			slog.Int("pageSize", ev.PageSize),
		)
	case EventPageFailed:
		o.logger.LogAttrs(ctx, slog.LevelWarn, "sampling page failed",
			slog.Int("iteration", ev.Round),
			slog.Int64("since", ev.Cursor),
			slog.String("error", errString(ev.Err)),
		)
	case EventCandidate:
		attrs := []slog.Attr{
			slog.String("repository", ev.Candidate.Owner.Login+"/"+ev.Candidate.Name),
			slog.Int64("id", ev.Candidate.ID),
			slog.String("outcome", string(ev.Outcome)),
		}
		if ev.Outcome == OutcomeErrored {
			o.logger.LogAttrs(ctx, slog.LevelWarn, "candidate fetch failed",
				append(attrs, slog.String("error", errString(ev.Err)))...)
			return
		}
		o.logger.LogAttrs(ctx, slog.LevelDebug, "candidate evaluated",
			append(attrs, slog.Int("stars", ev.Stars), slog.Int("size", ev.Size))...)
	case EventSampleExhausted:
		o.logger.LogAttrs(ctx, slog.LevelInfo, "no qualifying repository found",
			slog.Int("iterations", ev.Round),
		)
	case EventLookupRedirect:
		o.logger.LogAttrs(ctx, slog.LevelDebug, "repository id skipped",
			slog.Int64("requested", ev.Cursor+1),
			slog.Int64("next", ev.Result),
		)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
