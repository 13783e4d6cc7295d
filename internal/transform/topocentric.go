// Package transform provides the coordinate frames used to place the Sun and
// the Moon relative to a ground observer.
//
// Frames: geodetic (WGS-84), ECEF (Earth-Centered Earth-Fixed) and the
// geocentric equatorial frame of date. ECEF and equatorial-of-date differ by
// a rotation about Z through the apparent sidereal angle; polar motion is
// ignored.
package transform

import "math"

// WGS-84 ellipsoid parameters.
const (
	wgs84A  = 6378137.0             // semi-major axis (meters)
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// ObserverPosition is a ground observer, geodetic and ECEF. The ECEF vector
// is computed once and reused for every instant of a search.
type ObserverPosition struct {
	LatRad, LonRad float64
	AltM           float64 // above the ellipsoid
	ECEF           Vector  // km
}

// LookAngles holds azimuth, elevation, and range from observer to a body.
type LookAngles struct {
	AzimuthDeg   float64 `json:"azimuth_deg" yaml:"azimuth_deg"`     // 0 = North, clockwise
	ElevationDeg float64 `json:"elevation_deg" yaml:"elevation_deg"` // 0 = horizon, 90 = zenith
	RangeKm      float64 `json:"range_km" yaml:"range_km"`
}

// NewObserverPosition places an observer given in degrees and meters on the
// WGS-84 ellipsoid.
func NewObserverPosition(latDeg, lonDeg, altM float64) ObserverPosition {
	lat := latDeg * math.Pi / 180
	lon := lonDeg * math.Pi / 180
	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)

	// Prime-vertical radius of curvature.
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	return ObserverPosition{
		LatRad: lat,
		LonRad: lon,
		AltM:   altM,
		ECEF: Vector{
			X: (n + altM) * cosLat * cosLon,
			Y: (n + altM) * cosLat * sinLon,
			Z: (n*(1-wgs84E2) + altM) * sinLat,
		}.Scale(1e-3),
	}
}

// ECEFKm returns the observer's ECEF position in kilometers.
func (o ObserverPosition) ECEFKm() Vector {
	return o.ECEF
}

// enu returns the local east, north and up unit vectors in ECEF.
func (o ObserverPosition) enu() (east, north, up Vector) {
	sinLat, cosLat := math.Sincos(o.LatRad)
	sinLon, cosLon := math.Sincos(o.LonRad)
	east = Vector{X: -sinLon, Y: cosLon}
	north = Vector{X: -sinLat * cosLon, Y: -sinLat * sinLon, Z: cosLat}
	up = Vector{X: cosLat * cosLon, Y: cosLat * sinLon, Z: sinLat}
	return east, north, up
}

// ECEFToLookAngles returns azimuth, elevation and range from obs to a body
// at target (ECEF, km). Up is the ellipsoid normal; refraction is ignored.
func ECEFToLookAngles(obs ObserverPosition, target Vector) LookAngles {
	r := target.Sub(obs.ECEF)
	east, north, up := obs.enu()
	e, n, u := r.Dot(east), r.Dot(north), r.Dot(up)

	dist := r.Norm()
	az := math.Atan2(e, n)
	if az < 0 {
		az += 2 * math.Pi
	}
	return LookAngles{
		AzimuthDeg:   az * 180 / math.Pi,
		ElevationDeg: math.Asin(u/dist) * 180 / math.Pi,
		RangeKm:      dist,
	}
}
