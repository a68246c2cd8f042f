package discovery

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/petithub/internal/model"
)

func TestObservers_FanOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	var calls int
	fn := ObserverFunc(func(context.Context, Event) { calls++ })

	o := Observers(a, nil, b, fn)
	o.Observe(context.Background(), Event{Kind: EventDraw})
	o.Observe(context.Background(), Event{Kind: EventProbe})

	assert.Len(t, a.events, 2)
	assert.Len(t, b.events, 2)
	assert.Equal(t, 2, calls)
}

func TestLogObserver(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	o := NewLogObserver(logger)
	ctx := context.Background()

	o.Observe(ctx, Event{Kind: EventProbe, Cursor: 101})
	assert.Empty(t, buf.String(), "search rounds are debug output")

	o.Observe(ctx, Event{Kind: EventFrontierResolved, Result: 815471592})
	assert.Contains(t, buf.String(), `"msg":"frontier resolved"`)
	assert.Contains(t, buf.String(), `"frontier":815471592`)
	buf.Reset()

	o.Observe(ctx, Event{
		Kind:      EventCandidate,
		Candidate: model.RepositoryStub{ID: 9, Owner: model.Owner{Login: "octo"}, Name: "cat"},
		Outcome:   OutcomeErrored,
		Err:       errors.New("boom"),
	})
	out := buf.String()
	require.NotEmpty(t, out)
	assert.Contains(t, out, `"level":"WARN"`)
	assert.Contains(t, out, `"repository":"octo/cat"`)
	assert.Contains(t, out, `"error":"boom"`)
}
