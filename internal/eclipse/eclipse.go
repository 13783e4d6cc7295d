// Package eclipse runs the viewing computation for one observer and one
// local calendar day: find the instant of closest Sun-Moon approach, measure
// both discs at that instant and estimate how much of the Sun is covered.
package eclipse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/star/umbra/internal/ephemeris"
	"github.com/star/umbra/internal/overlap"
	"github.com/star/umbra/internal/search"
	"github.com/star/umbra/internal/timezone"
	"github.com/star/umbra/internal/transform"
)

// ErrInvalidObserver is returned for coordinates outside their valid range.
var ErrInvalidObserver = errors.New("invalid observer")

// Observer is a ground observer. Offset is the whole-hour UTC offset the
// calendar day and the reported local time are expressed in.
type Observer struct {
	Lat        float64 `json:"lat" yaml:"lat"`
	Lon        float64 `json:"lon" yaml:"lon"`
	Offset     int     `json:"utc_offset" yaml:"utc_offset"`
	ElevationM float64 `json:"elevation_m" yaml:"elevation_m"`
}

// Validate checks coordinate ranges and the UTC offset.
func (o Observer) Validate() error {
	switch {
	case math.IsNaN(o.Lat) || o.Lat < -90 || o.Lat > 90:
		return fmt.Errorf("%w: latitude %v outside [-90, 90]", ErrInvalidObserver, o.Lat)
	case math.IsNaN(o.Lon) || o.Lon < -180 || o.Lon > 180:
		return fmt.Errorf("%w: longitude %v outside [-180, 180]", ErrInvalidObserver, o.Lon)
	case math.IsNaN(o.ElevationM) || math.IsInf(o.ElevationM, 0):
		return fmt.Errorf("%w: elevation %v is not finite", ErrInvalidObserver, o.ElevationM)
	}
	return timezone.Validate(o.Offset)
}

func (o Observer) position() transform.ObserverPosition {
	return transform.NewObserverPosition(o.Lat, o.Lon, o.ElevationM)
}

// Request is one computation.
type Request struct {
	Observer Observer
	Year     int
	Month    time.Month
	Day      int

	// Samples is the number of estimator draws; 0 skips the estimate.
	Samples int64
	Seed    *uint64
	Region  overlap.Region

	// Strategy overrides the searcher's configured strategy when set.
	Strategy search.Strategy
}

// Oracle is the ephemeris surface the pipeline needs.
type Oracle interface {
	SeparationFunc(obs transform.ObserverPosition) func(context.Context, time.Time) (float64, error)
	ApparentSize(ctx context.Context, b ephemeris.Body, obs transform.ObserverPosition, utc time.Time) (float64, error)
	LookAngles(b ephemeris.Body, obs transform.ObserverPosition, utc time.Time) (transform.LookAngles, error)
}

// Calculator runs requests. Safe for concurrent use.
type Calculator struct {
	oracle    Oracle
	searcher  *search.Searcher
	estimator *overlap.Estimator
	logger    *slog.Logger
}

// NewCalculator wires a Calculator.
func NewCalculator(oracle Oracle, searcher *search.Searcher, estimator *overlap.Estimator, logger *slog.Logger) *Calculator {
	return &Calculator{
		oracle:    oracle,
		searcher:  searcher,
		estimator: estimator,
		logger:    logger.With("component", "eclipse"),
	}
}

// Calculate runs the full pipeline for req.
func (c *Calculator) Calculate(ctx context.Context, req Request) (*Report, error) {
	if err := req.Observer.Validate(); err != nil {
		return nil, err
	}
	if req.Samples < 0 {
		return nil, fmt.Errorf("%w: got %d", overlap.ErrInvalidSamples, req.Samples)
	}

	label, err := timezone.Label(req.Observer.Offset)
	if err != nil {
		return nil, err
	}
	loc, err := timezone.Location(req.Observer.Offset)
	if err != nil {
		return nil, err
	}
	window, err := search.DayWindow(req.Year, req.Month, req.Day, loc)
	if err != nil {
		return nil, err
	}

	obs := req.Observer.position()
	fn := search.SeparationFunc(c.oracle.SeparationFunc(obs))

	best, err := c.searcher.Search(ctx, window, req.Strategy, fn)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", window.Start.Format(time.DateOnly), err)
	}

	bestUTC := best.Instant.UTC()
	sun, err := c.oracle.ApparentSize(ctx, ephemeris.Sun, obs, bestUTC)
	if err != nil {
		return nil, fmt.Errorf("sun size: %w", err)
	}
	moon, err := c.oracle.ApparentSize(ctx, ephemeris.Moon, obs, bestUTC)
	if err != nil {
		return nil, fmt.Errorf("moon size: %w", err)
	}
	sunPos, err := c.oracle.LookAngles(ephemeris.Sun, obs, bestUTC)
	if err != nil {
		return nil, fmt.Errorf("sun position: %w", err)
	}
	moonPos, err := c.oracle.LookAngles(ephemeris.Moon, obs, bestUTC)
	if err != nil {
		return nil, fmt.Errorf("moon position: %w", err)
	}

	report := &Report{
		Observer:           req.Observer,
		Date:               window.Start.Format(time.DateOnly),
		Zone:               label,
		BestLocal:          best.Instant,
		BestUTC:            bestUTC,
		SeparationDeg:      best.SeparationDeg,
		SunDiameterArcsec:  sun,
		MoonDiameterArcsec: moon,
		SunAltitudeDeg:     ephemeris.SunAltitude(req.Observer.Lat, req.Observer.Lon, bestUTC),
		SunPosition:        sunPos,
		MoonPosition:       moonPos,
		Strategy:           best.Strategy,
		Queries:            best.Queries,
	}

	if req.Samples > 0 {
		// Radii and separation must share a unit: arcseconds.
		est, err := c.estimator.Estimate(ctx, overlap.Params{
			OccluderRadius: moon / 2,
			TargetRadius:   sun / 2,
			Separation:     best.SeparationDeg * 3600,
			Samples:        req.Samples,
			Region:         req.Region,
			Seed:           req.Seed,
		})
		if err != nil {
			return nil, fmt.Errorf("estimate coverage: %w", err)
		}
		pct := est.Coverage * 100
		report.Overlap = &est
		report.CoveragePercent = &pct
	}

	c.logger.Info("eclipse computed",
		"date", report.Date,
		"offset", req.Observer.Offset,
		"best_local", report.BestLocal.Format(time.DateTime),
		"separation_deg", report.SeparationDeg,
		"queries", report.Queries,
		"samples", req.Samples,
	)
	return report, nil
}
