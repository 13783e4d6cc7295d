// Package ephemeris computes topocentric positions of the Sun and the Moon
// for a ground observer, and derives the Sun-Moon angular separation and the
// apparent sizes of both discs.
//
// Positions are apparent (nutation and solar aberration applied) in the
// equatorial frame of date. Parallax (up to a degree for the Moon) comes from
// subtracting the observer's position vector from the geocentric one.
package ephemeris

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/sixdouglas/suncalc"

	"github.com/star/umbra/internal/transform"
)

// ErrOutOfRange is returned for instants outside [MinYear, MaxYear].
var ErrOutOfRange = errors.New("instant outside supported ephemeris range")

// Mean radii in kilometers.
const (
	SunRadiusKm  = 696000.0
	MoonRadiusKm = 1737.4
)

// Body identifies a disc the oracle can place.
type Body int

const (
	Sun Body = iota
	Moon
)

func (b Body) String() string {
	switch b {
	case Sun:
		return "sun"
	case Moon:
		return "moon"
	}
	return fmt.Sprintf("body(%d)", int(b))
}

func (b Body) radiusKm() float64 {
	if b == Sun {
		return SunRadiusKm
	}
	return MoonRadiusKm
}

// Oracle answers position queries. It holds no mutable state and is safe for
// concurrent use by search workers.
type Oracle struct {
	logger *slog.Logger
}

// NewOracle creates an Oracle.
func NewOracle(logger *slog.Logger) *Oracle {
	return &Oracle{logger: logger.With("component", "ephemeris")}
}

// frame bundles the per-instant quantities shared between both bodies.
type frame struct {
	T    float64 // Julian centuries of TT from J2000.0
	nut  nutation
	gast float64 // Greenwich apparent sidereal time (radians)
}

func newFrame(utc time.Time) (frame, error) {
	utc = utc.UTC()
	if y := utc.Year(); y < MinYear || y > MaxYear {
		return frame{}, fmt.Errorf("%s: %w", utc.Format(time.RFC3339), ErrOutOfRange)
	}
	T := transform.JulianCenturies(transform.JulianDate(terrestrialTime(utc)))
	nut := nutationAt(T)
	return frame{
		T:    T,
		nut:  nut,
		gast: transform.ApparentSidereal(utc, nut.dPsi, nut.trueObliq),
	}, nil
}

// geocentric returns the body's apparent geocentric equatorial vector (km).
func (f frame) geocentric(b Body) transform.Vector {
	var lon, lat, dist float64
	if b == Sun {
		lon, lat, dist = sunPosition(f.T)
	} else {
		lon, lat, dist = moonPosition(f.T)
	}
	return transform.EclipticToEquatorial(lon+f.nut.dPsi, lat, dist, f.nut.trueObliq)
}

// topocentric returns the vector from the observer to the body (km).
func (f frame) topocentric(b Body, obs transform.ObserverPosition) transform.Vector {
	return f.geocentric(b).Sub(obs.ECEFKm().RotateZ(f.gast))
}

// Separation returns the topocentric angular distance between the Sun and
// Moon centers in degrees.
func (o *Oracle) Separation(ctx context.Context, obs transform.ObserverPosition, utc time.Time) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f, err := newFrame(utc)
	if err != nil {
		return 0, err
	}
	sep := transform.AngleBetween(f.topocentric(Sun, obs), f.topocentric(Moon, obs))
	return sep / deg2rad, nil
}

// SeparationFunc binds an observer, producing the function the time search
// consumes.
func (o *Oracle) SeparationFunc(obs transform.ObserverPosition) func(context.Context, time.Time) (float64, error) {
	return func(ctx context.Context, utc time.Time) (float64, error) {
		return o.Separation(ctx, obs, utc)
	}
}

// ApparentSize returns the apparent angular diameter of the body in
// arcseconds as seen by the observer.
func (o *Oracle) ApparentSize(ctx context.Context, b Body, obs transform.ObserverPosition, utc time.Time) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	f, err := newFrame(utc)
	if err != nil {
		return 0, err
	}
	dist := f.topocentric(b, obs).Norm()
	size := 2 * math.Asin(b.radiusKm()/dist) / arcsec2rad

	o.logger.Debug("apparent size",
		"body", b.String(),
		"utc", utc.UTC().Format(time.RFC3339),
		"distance_km", dist,
		"arcsec", size,
	)
	return size, nil
}

// LookAngles returns azimuth, elevation and range of the body for the
// observer. Refraction is not applied.
func (o *Oracle) LookAngles(b Body, obs transform.ObserverPosition, utc time.Time) (transform.LookAngles, error) {
	f, err := newFrame(utc)
	if err != nil {
		return transform.LookAngles{}, err
	}
	return transform.ECEFToLookAngles(obs, f.geocentric(b).RotateZ(-f.gast)), nil
}

// SunAltitude returns the Sun's altitude above the horizon in degrees
// (suncalc model, refraction ignored).
func SunAltitude(latDeg, lonDeg float64, utc time.Time) float64 {
	pos := suncalc.GetPosition(utc.UTC(), latDeg, lonDeg)
	return pos.Altitude / deg2rad
}
