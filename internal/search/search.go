// Package search finds the instant of minimal Sun-Moon angular separation
// within a one-day window at one-second resolution.
//
// Two strategies are provided. Scan is the exhaustive per-second baseline.
// Refine does a coarse scan followed by a per-second scan around the best
// coarse instant; for a separation curve with a single minimum near the
// coarse best it returns the same instant as Scan.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/star/umbra/internal/metrics"
)

// SeparationFunc returns the angular separation in degrees at a UTC instant.
type SeparationFunc func(ctx context.Context, utc time.Time) (float64, error)

// Strategy selects the search algorithm.
type Strategy string

const (
	StrategyExhaustive Strategy = "exhaustive"
	StrategyRefine     Strategy = "refine"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyExhaustive, StrategyRefine:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("%w %q (want %q or %q)", ErrUnknownStrategy, s, StrategyExhaustive, StrategyRefine)
}

// ErrUnknownStrategy is returned for a strategy name other than exhaustive or refine.
var ErrUnknownStrategy = errors.New("unknown search strategy")

// ErrCanceled is returned when the caller's context ends before the search completes.
var ErrCanceled = errors.New("search canceled")

const (
	defaultCoarseStep = 60 * time.Second
	refineHalfSpan    = 2 // coarse steps scanned on each side of the coarse best
)

// Result is the best instant found and its separation.
type Result struct {
	Instant       time.Time // in the window's location
	SeparationDeg float64
	Queries       int      // oracle queries issued
	Strategy      Strategy // algorithm that produced the result
}

// Config holds searcher configuration.
type Config struct {
	Workers    int           // parallel ranges (default: runtime.NumCPU())
	CoarseStep time.Duration // Refine coarse step (default: 60s), whole seconds
	Strategy   Strategy      // default: exhaustive
}

// Searcher runs minimal-separation searches over a Window.
// Safe for concurrent use.
type Searcher struct {
	cfg    Config
	logger *slog.Logger
}

// NewSearcher creates a Searcher, filling in defaults for zero config values.
func NewSearcher(cfg Config, logger *slog.Logger) *Searcher {
	if cfg.Workers < 1 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.CoarseStep < time.Second {
		cfg.CoarseStep = defaultCoarseStep
	}
	cfg.CoarseStep = cfg.CoarseStep.Truncate(time.Second)
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyExhaustive
	}
	return &Searcher{
		cfg:    cfg,
		logger: logger.With("component", "search"),
	}
}

// Config returns the effective configuration.
func (s *Searcher) Config() Config {
	return s.cfg
}

// Search runs strategy over w; an empty strategy selects the configured one.
func (s *Searcher) Search(ctx context.Context, w Window, strategy Strategy, fn SeparationFunc) (Result, error) {
	if strategy == "" {
		strategy = s.cfg.Strategy
	}
	switch strategy {
	case StrategyExhaustive:
		return s.Scan(ctx, w, fn)
	case StrategyRefine:
		return s.Refine(ctx, w, fn)
	}
	_, err := ParseStrategy(string(strategy))
	return Result{}, err
}

// Scan queries every second of the window, both ends included, and returns
// the instant with the smallest separation. The earliest instant wins ties.
func (s *Searcher) Scan(ctx context.Context, w Window, fn SeparationFunc) (Result, error) {
	start := time.Now()
	n := w.Seconds()

	best, err := s.reduce(ctx, w, fn, n, func(k int) int { return k })
	if err != nil {
		return Result{}, err
	}

	best.Strategy = StrategyExhaustive
	s.finish(StrategyExhaustive, w, best, time.Since(start))
	return best, nil
}

// Refine scans the window every CoarseStep seconds (window end included),
// then scans each second within refineHalfSpan coarse steps of the coarse best.
func (s *Searcher) Refine(ctx context.Context, w Window, fn SeparationFunc) (Result, error) {
	start := time.Now()
	n := w.Seconds()
	step := int(s.cfg.CoarseStep / time.Second)

	coarseCount := (n-1)/step + 1
	if (n-1)%step != 0 {
		coarseCount++
	}
	coarse, err := s.reduce(ctx, w, fn, coarseCount, func(k int) int {
		return min(k*step, n-1)
	})
	if err != nil {
		return Result{}, err
	}

	c := w.Index(coarse.Instant)
	lo := max(0, c-refineHalfSpan*step)
	hi := min(n-1, c+refineHalfSpan*step)

	fine, err := s.reduce(ctx, w, fn, hi-lo+1, func(k int) int { return lo + k })
	if err != nil {
		return Result{}, err
	}
	fine.Queries += coarse.Queries
	fine.Strategy = StrategyRefine

	s.logger.Debug("coarse scan",
		"coarse_step_seconds", step,
		"coarse_best", coarse.Instant.Format(time.RFC3339),
		"fine_range_start", w.At(lo).Format(time.RFC3339),
		"fine_range_end", w.At(hi).Format(time.RFC3339),
	)

	s.finish(StrategyRefine, w, fine, time.Since(start))
	return fine, nil
}

func (s *Searcher) finish(strategy Strategy, w Window, r Result, d time.Duration) {
	metrics.RecordSearch(string(strategy), d, r.Queries)
	s.logger.Debug("search complete",
		"strategy", string(strategy),
		"window_start", w.Start.Format(time.RFC3339),
		"best_instant", r.Instant.Format(time.RFC3339),
		"separation_deg", r.SeparationDeg,
		"queries", r.Queries,
		"duration_ms", d.Milliseconds(),
	)
}

// partial is the best sample of one contiguous range of query indices.
type partial struct {
	second  int
	sep     float64
	found   bool
	queries int
}

// reduce evaluates fn at the window seconds at(0) .. at(count-1), which must
// be increasing, and returns the minimum. The index space is split into
// contiguous ranges, one per worker; partial bests are combined in range
// order with strict <, so the result matches a sequential scan exactly.
func (s *Searcher) reduce(ctx context.Context, w Window, fn SeparationFunc, count int, at func(k int) int) (Result, error) {
	if count <= 0 {
		return Result{}, fmt.Errorf("empty search window")
	}

	workers := min(s.cfg.Workers, count)
	size := (count + workers - 1) / workers
	parts := make([]partial, workers)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		lo := i * size
		hi := min(lo+size, count)
		if lo >= hi {
			continue
		}
		g.Go(func() error {
			p, err := scanRange(gctx, w, fn, lo, hi, at)
			parts[i] = p
			return err
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return Result{}, fmt.Errorf("%w: %w", ErrCanceled, ctx.Err())
		}
		return Result{}, err
	}

	var (
		best    partial
		queries int
	)
	for _, p := range parts {
		queries += p.queries
		if p.found && (!best.found || p.sep < best.sep) {
			best = p
		}
	}

	return Result{
		Instant:       w.At(best.second),
		SeparationDeg: best.sep,
		Queries:       queries,
	}, nil
}

// scanRange evaluates indices [lo, hi) in order, keeping the first strict minimum.
func scanRange(ctx context.Context, w Window, fn SeparationFunc, lo, hi int, at func(k int) int) (partial, error) {
	var p partial
	for k := lo; k < hi; k++ {
		if err := ctx.Err(); err != nil {
			return p, err
		}

		sec := at(k)
		t := w.At(sec)
		sep, err := fn(ctx, t.UTC())
		if err != nil {
			return p, fmt.Errorf("separation at %s: %w", t.Format(time.RFC3339), err)
		}
		p.queries++

		if !p.found || sep < p.sep {
			p.second = sec
			p.sep = sep
			p.found = true
		}
	}
	return p, nil
}
