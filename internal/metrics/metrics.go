// Package metrics exposes Prometheus metrics for the discovery engine and the
// HTTP surface.
//
// Metrics live on a private registry rather than the global default one, so
// tests can build as many instances as they like.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/petithub/internal/discovery"
)

const namespace = "petithub"

// Metrics holds every collector. It implements discovery.Observer.
type Metrics struct {
	registry *prometheus.Registry

	// FrontierRounds counts frontier search rounds. Labels: phase (probe, bisect)
	FrontierRounds *prometheus.CounterVec
	// FrontierSearches counts finished searches. Labels: result (resolved, failed)
	FrontierSearches *prometheus.CounterVec
	// Frontier is the most recently resolved frontier.
	Frontier prometheus.Gauge

	// Draws counts sampler cursor draws.
	Draws prometheus.Counter
	// PageFailures counts sampler listings that failed.
	PageFailures prometheus.Counter
	// Candidates counts evaluated candidates. Labels: outcome
	Candidates *prometheus.CounterVec
	// Exhausted counts sampling runs that found nothing.
	Exhausted prometheus.Counter
	// Redirects counts lookups that landed on a later ID.
	Redirects prometheus.Counter

	// HTTPRequests counts served requests. Labels: method, route, status
	HTTPRequests *prometheus.CounterVec
	// HTTPDuration measures request latency. Labels: method, route
	HTTPDuration *prometheus.HistogramVec
}

// New creates a Metrics with its own registry, including the Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		FrontierRounds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frontier",
			Name:      "rounds_total",
			Help:      "Frontier search rounds by phase",
		}, []string{"phase"}),
		FrontierSearches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frontier",
			Name:      "searches_total",
			Help:      "Finished frontier searches by result",
		}, []string{"result"}),
		Frontier: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "frontier",
			Name:      "repository_id",
			Help:      "Most recently resolved repository ID frontier",
		}),

		Draws: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sampler",
			Name:      "draws_total",
			Help:      "Random cursors drawn by the sampler",
		}),
		PageFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sampler",
			Name:      "page_failures_total",
			Help:      "Sampler page listings that failed",
		}),
		Candidates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sampler",
			Name:      "candidates_total",
			Help:      "Evaluated candidates by outcome",
		}, []string{"outcome"}),
		Exhausted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sampler",
			Name:      "exhausted_total",
			Help:      "Sampling runs that found no qualifying repository",
		}),
		Redirects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lookup",
			Name:      "redirects_total",
			Help:      "Lookups whose ID no longer exists",
		}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "route"}),
	}
}

var _ discovery.Observer = (*Metrics)(nil)

// Observe records one discovery event.
func (m *Metrics) Observe(_ context.Context, ev discovery.Event) {
	switch ev.Kind {
	case discovery.EventProbe, discovery.EventBisect:
		m.FrontierRounds.WithLabelValues(string(ev.Kind)).Inc()
	case discovery.EventFrontierResolved:
		m.FrontierSearches.WithLabelValues("resolved").Inc()
		m.Frontier.Set(float64(ev.Result))
	case discovery.EventFrontierFailed:
		m.FrontierSearches.WithLabelValues("failed").Inc()
	case discovery.EventDraw:
		m.Draws.Inc()
	case discovery.EventPageFailed:
		m.PageFailures.Inc()
	case discovery.EventCandidate:
		m.Candidates.WithLabelValues(string(ev.Outcome)).Inc()
	case discovery.EventSampleExhausted:
		m.Exhausted.Inc()
	case discovery.EventLookupRedirect:
		m.Redirects.Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts and latency, labelled by chi route
// pattern so path parameters don't explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
