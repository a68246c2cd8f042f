// Package discovery finds "interesting" GitHub repositories: original
// (non-fork) repositories with zero stargazers and some content.
//
// The Engine offers three operations over a catalog.Catalog:
//
//	FindFrontier      → the highest repository ID currently allocated
//	SampleQualifying  → a random qualifying repository below a given frontier
//	LookupByID        → the repository with an exact ID, or the next ID in use
//
// The Engine is stateless. The frontier is owned by the caller and passed in
// on every call; configuration is fixed at construction. Every upstream call
// carries the caller's context, and the loops check for cancellation between
// rounds and between candidates.
//
// The Engine never logs. It reports what it does as Events to an Observer
// (see events.go), and the caller decides whether those become log lines,
// metrics, or nothing.
package discovery

import (
	"fmt"
	"math/rand/v2"

	"github.com/sakif/petithub/internal/catalog"
)

// Config holds the search budgets. Exact values are a policy choice, not a
// correctness requirement.
type Config struct {
	// Frontier Finder
	InitialIncrement int64 // first probe step beyond the seed
	IncrementFactor  int64 // step multiplier after each non-empty probe
	MaxProbeRounds   int   // exponential probe budget
	MaxBinaryRounds  int   // binary search budget
	PageGranularity  int64 // stop bisecting once the bracket is this narrow

	// Qualifying Sampler
	MaxIterations int // random cursor draws before giving up
	Concurrency   int // detail fetches in flight per page
}

// DefaultConfig returns the default budgets.
func DefaultConfig() Config {
	return Config{
		InitialIncrement: 100,
		IncrementFactor:  10,
		MaxProbeRounds:   10,
		MaxBinaryRounds:  50,
		PageGranularity:  100,
		MaxIterations:    10,
		Concurrency:      4,
	}
}

// Validate checks that every budget is usable.
func (c Config) Validate() error {
	switch {
	case c.InitialIncrement <= 0:
		return fmt.Errorf("discovery: InitialIncrement must be positive, got %d", c.InitialIncrement)
	case c.IncrementFactor < 2:
		return fmt.Errorf("discovery: IncrementFactor must be at least 2, got %d", c.IncrementFactor)
	case c.MaxProbeRounds <= 0:
		return fmt.Errorf("discovery: MaxProbeRounds must be positive, got %d", c.MaxProbeRounds)
	case c.MaxBinaryRounds <= 0:
		return fmt.Errorf("discovery: MaxBinaryRounds must be positive, got %d", c.MaxBinaryRounds)
	case c.PageGranularity <= 0:
		return fmt.Errorf("discovery: PageGranularity must be positive, got %d", c.PageGranularity)
	case c.MaxIterations <= 0:
		return fmt.Errorf("discovery: MaxIterations must be positive, got %d", c.MaxIterations)
	case c.Concurrency <= 0:
		return fmt.Errorf("discovery: Concurrency must be positive, got %d", c.Concurrency)
	}
	return nil
}

// MaxFrontierCalls is the upper bound on upstream calls made by FindFrontier.
func (c Config) MaxFrontierCalls() int {
	return c.MaxProbeRounds + c.MaxBinaryRounds + 2
}

// Rand draws sampling cursors. Implementations must be safe for concurrent
// use, since one Engine serves concurrent requests.
type Rand interface {
	// Int64N returns a uniform value in [0, n). n is always positive.
	Int64N(n int64) int64
}

type globalRand struct{}

func (globalRand) Int64N(n int64) int64 { return rand.Int64N(n) }

// Engine runs the discovery algorithms against a catalog.
type Engine struct {
	catalog  catalog.Catalog
	config   Config
	rand     Rand
	observer Observer
}

// Option customises an Engine.
type Option func(*Engine)

// WithRand replaces the random source used to draw sampling cursors.
func WithRand(r Rand) Option {
	return func(e *Engine) { e.rand = r }
}

// WithObserver sets the receiver of diagnostic events.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// New creates an Engine. It fails only on an invalid Config.
func New(c catalog.Catalog, cfg Config, opts ...Option) (*Engine, error) {
	if c == nil {
		return nil, fmt.Errorf("discovery: catalog must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		catalog:  c,
		config:   cfg,
		rand:     globalRand{},
		observer: NopObserver{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.observer == nil {
		e.observer = NopObserver{}
	}
	if e.rand == nil {
		e.rand = globalRand{}
	}
	return e, nil
}

// Config returns the engine's budgets.
func (e *Engine) Config() Config {
	return e.config
}
