// Package overlap estimates the fraction of one disc covered by another by
// sampling points of the integer lattice uniformly at random.
//
// The occluder sits at the origin and the target at (0, d). Each draw that
// lands in the target increments either Both (also in the occluder) or
// TargetOnly; the coverage estimate is 1 - TargetOnly/(Both+TargetOnly).
// Draws outside the target do not enter the ratio.
package overlap

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/star/umbra/internal/metrics"
)

// DefaultSamples is the number of draws used when none is configured.
const DefaultSamples = 10_000_000

// chunkDraws is the number of draws per random stream. Chunk k always uses
// the stream keyed by (seed, k), so a seeded estimate does not depend on
// the number of workers.
const chunkDraws = 1 << 16

var (
	ErrInvalidGeometry  = errors.New("invalid disc geometry")
	ErrInvalidSamples   = errors.New("sample count must be positive")
	ErrDegenerateSample = errors.New("insufficient informative samples: no draw landed inside the target disc")
	ErrCanceled         = errors.New("estimation canceled")
)

// Region selects the lattice rectangle draws are taken from.
type Region string

const (
	// RegionBounding samples the square [-h, h]² with h >= r_o + r_t + d.
	RegionBounding Region = "bounding"
	// RegionTarget samples the smallest lattice rectangle holding the target
	// disc. Conditioned on landing in the target the draw distribution is
	// the same as for RegionBounding, so the estimator is unchanged; far
	// fewer draws are discarded.
	RegionTarget Region = "target"
)

// ParseRegion validates a region name.
func ParseRegion(s string) (Region, error) {
	switch Region(s) {
	case RegionBounding, RegionTarget:
		return Region(s), nil
	}
	return "", fmt.Errorf("unknown sampling region %q (want %q or %q)", s, RegionBounding, RegionTarget)
}

// Disc is a circle in the sampling plane.
type Disc struct {
	X, Y, R float64
}

// Contains reports whether (x, y) lies inside or on the circle.
func (d Disc) Contains(x, y float64) bool {
	dx := x - d.X
	dy := y - d.Y
	return dx*dx+dy*dy <= d.R*d.R
}

// Params describes one estimation. Radii and separation share one unit.
type Params struct {
	OccluderRadius float64
	TargetRadius   float64
	Separation     float64
	Samples        int64
	// HalfExtent overrides the bounding half extent; 0 selects
	// DefaultHalfExtent. Ignored for RegionTarget.
	HalfExtent int64
	Region     Region  // default: RegionBounding
	Seed       *uint64 // nil draws a random base seed
}

// Estimate is the outcome of one estimation.
type Estimate struct {
	Coverage   float64 `json:"coverage" yaml:"coverage"`
	StdErr     float64 `json:"std_err" yaml:"std_err"`
	Both       int64   `json:"both" yaml:"both"`
	TargetOnly int64   `json:"target_only" yaml:"target_only"`
	Discarded  int64   `json:"discarded" yaml:"discarded"` // draws in neither tally
	Draws      int64   `json:"draws" yaml:"draws"`
	HalfExtent int64   `json:"half_extent" yaml:"half_extent"`
	Region     Region  `json:"region" yaml:"region"`
	Seed       uint64  `json:"seed" yaml:"seed"`
}

// maxGeometry bounds r_o + r_t + d so that every half extent, and the
// lattice width 2h + 1 drawn from, fits in an int64 after float rounding.
const maxGeometry = math.MaxInt64 / 8

// DefaultHalfExtent returns the conservative bounding half extent
// ceil(d + 2(r_o + r_t)), which always exceeds r_o + r_t + d. Callers
// keep r_o + r_t + d at or below maxGeometry; Estimate enforces it.
func DefaultHalfExtent(occluderRadius, targetRadius, separation float64) int64 {
	h := int64(math.Ceil(separation + 2*(occluderRadius+targetRadius)))
	return max(h, 1)
}

// Estimator runs overlap estimations on a pool of workers.
// Safe for concurrent use.
type Estimator struct {
	workers int
	logger  *slog.Logger
}

// NewEstimator creates an Estimator. workers < 1 selects runtime.NumCPU().
func NewEstimator(workers int, logger *slog.Logger) *Estimator {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	return &Estimator{
		workers: workers,
		logger:  logger.With("component", "overlap"),
	}
}

// lattice is an inclusive integer rectangle.
type lattice struct {
	x0, x1, y0, y1 int64
}

func (l lattice) draw(r *rand.Rand) (float64, float64) {
	x := l.x0 + r.Int64N(l.x1-l.x0+1)
	y := l.y0 + r.Int64N(l.y1-l.y0+1)
	return float64(x), float64(y)
}

func validate(p Params) error {
	for _, v := range []struct {
		name string
		val  float64
	}{
		{"occluder radius", p.OccluderRadius},
		{"target radius", p.TargetRadius},
		{"separation", p.Separation},
	} {
		if math.IsNaN(v.val) || math.IsInf(v.val, 0) || v.val < 0 {
			return fmt.Errorf("%w: %s %v must be finite and >= 0", ErrInvalidGeometry, v.name, v.val)
		}
	}
	if reach := p.OccluderRadius + p.TargetRadius + p.Separation; reach > maxGeometry {
		return fmt.Errorf("%w: r_o + r_t + d = %v exceeds %d", ErrInvalidGeometry, reach, int64(maxGeometry))
	}
	if p.Samples <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidSamples, p.Samples)
	}
	if p.HalfExtent < 0 || p.HalfExtent > 2*maxGeometry {
		return fmt.Errorf("%w: half extent %d outside [0, %d]", ErrInvalidGeometry, p.HalfExtent, int64(2*maxGeometry))
	}
	if p.HalfExtent > 0 && float64(p.HalfExtent) < p.OccluderRadius+p.TargetRadius+p.Separation {
		return fmt.Errorf("%w: half extent %d smaller than r_o + r_t + d = %v",
			ErrInvalidGeometry, p.HalfExtent, p.OccluderRadius+p.TargetRadius+p.Separation)
	}
	return nil
}

// Estimate draws p.Samples lattice points and returns the covered fraction
// of the target disc.
func (e *Estimator) Estimate(ctx context.Context, p Params) (Estimate, error) {
	if err := validate(p); err != nil {
		return Estimate{}, err
	}
	if p.Region == "" {
		p.Region = RegionBounding
	}
	if _, err := ParseRegion(string(p.Region)); err != nil {
		return Estimate{}, err
	}

	seed := rand.Uint64()
	if p.Seed != nil {
		seed = *p.Seed
	}

	occluder := Disc{X: 0, Y: 0, R: p.OccluderRadius}
	target := Disc{X: 0, Y: p.Separation, R: p.TargetRadius}

	var (
		box  lattice
		half int64
	)
	switch p.Region {
	case RegionTarget:
		box = lattice{
			x0: int64(math.Floor(-target.R)),
			x1: int64(math.Ceil(target.R)),
			y0: int64(math.Floor(target.Y - target.R)),
			y1: int64(math.Ceil(target.Y + target.R)),
		}
	default:
		half = p.HalfExtent
		if half == 0 {
			half = DefaultHalfExtent(p.OccluderRadius, p.TargetRadius, p.Separation)
		}
		box = lattice{x0: -half, x1: half, y0: -half, y1: half}
	}

	start := time.Now()
	both, targetOnly, err := e.sample(ctx, occluder, target, box, p.Samples, seed)
	if err != nil {
		return Estimate{}, err
	}
	duration := time.Since(start)

	est := Estimate{
		Both:       both,
		TargetOnly: targetOnly,
		Discarded:  p.Samples - both - targetOnly,
		Draws:      p.Samples,
		HalfExtent: half,
		Region:     p.Region,
		Seed:       seed,
	}
	metrics.RecordOverlap(duration, est.Both, est.TargetOnly, est.Discarded)

	informative := both + targetOnly
	if informative == 0 {
		metrics.RecordDegenerate()
		return est, fmt.Errorf("%w (draws=%d, half extent=%d, target radius=%v)",
			ErrDegenerateSample, p.Samples, half, p.TargetRadius)
	}

	frac := float64(targetOnly) / float64(informative)
	est.Coverage = 1 - frac
	est.StdErr = math.Sqrt(frac * (1 - frac) / float64(informative))

	e.logger.Debug("overlap estimated",
		"coverage", est.Coverage,
		"std_err", est.StdErr,
		"both", both,
		"target_only", targetOnly,
		"draws", p.Samples,
		"region", string(p.Region),
		"duration_ms", duration.Milliseconds(),
	)

	return est, nil
}

// sample distributes the draws over chunks pulled by the workers and sums
// the per-worker tallies.
func (e *Estimator) sample(ctx context.Context, occluder, target Disc, box lattice, n int64, seed uint64) (int64, int64, error) {
	chunks := (n + chunkDraws - 1) / chunkDraws
	workers := int(min(int64(e.workers), chunks))

	var (
		next          atomic.Int64
		both, tgtOnly atomic.Int64
	)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			var b, t int64
			defer func() {
				both.Add(b)
				tgtOnly.Add(t)
			}()

			for {
				if err := gctx.Err(); err != nil {
					return err
				}
				k := next.Add(1) - 1
				if k >= chunks {
					return nil
				}

				draws := min(int64(chunkDraws), n-k*chunkDraws)
				r := rand.New(rand.NewChaCha8(chunkSeed(seed, uint64(k))))
				for j := int64(0); j < draws; j++ {
					x, y := box.draw(r)
					if !target.Contains(x, y) {
						continue
					}
					if occluder.Contains(x, y) {
						b++
					} else {
						t++
					}
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrCanceled, err)
	}
	return both.Load(), tgtOnly.Load(), nil
}

// chunkSeed derives the ChaCha8 key for chunk k of a run.
func chunkSeed(seed, k uint64) [32]byte {
	var key [32]byte
	binary.LittleEndian.PutUint64(key[0:8], seed)
	binary.LittleEndian.PutUint64(key[8:16], k)
	copy(key[16:], "umbra/overlap/v1")
	return key
}
