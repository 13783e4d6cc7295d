package transform

import "math"

// Vector is a Cartesian 3-vector. Units depend on the caller (km here).
type Vector struct {
	X, Y, Z float64
}

func (v Vector) Add(w Vector) Vector {
	return Vector{X: v.X + w.X, Y: v.Y + w.Y, Z: v.Z + w.Z}
}

func (v Vector) Sub(w Vector) Vector {
	return Vector{X: v.X - w.X, Y: v.Y - w.Y, Z: v.Z - w.Z}
}

func (v Vector) Scale(k float64) Vector {
	return Vector{X: v.X * k, Y: v.Y * k, Z: v.Z * k}
}

func (v Vector) Dot(w Vector) float64 {
	return v.X*w.X + v.Y*w.Y + v.Z*w.Z
}

func (v Vector) Cross(w Vector) Vector {
	return Vector{
		X: v.Y*w.Z - v.Z*w.Y,
		Y: v.Z*w.X - v.X*w.Z,
		Z: v.X*w.Y - v.Y*w.X,
	}
}

func (v Vector) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// RotateZ rotates v counter-clockwise about the Z axis by angle radians.
func (v Vector) RotateZ(angle float64) Vector {
	s, c := math.Sincos(angle)
	return Vector{
		X: c*v.X - s*v.Y,
		Y: s*v.X + c*v.Y,
		Z: v.Z,
	}
}

// AngleBetween returns the angle between a and b in radians. The atan2 form
// stays accurate for nearly parallel vectors, where acos loses precision.
func AngleBetween(a, b Vector) float64 {
	return math.Atan2(a.Cross(b).Norm(), a.Dot(b))
}

// EclipticToEquatorial converts ecliptic longitude/latitude (radians) and a
// distance into a rectangular equatorial vector for the given obliquity.
func EclipticToEquatorial(lon, lat, dist, obliquity float64) Vector {
	sinLon, cosLon := math.Sincos(lon)
	sinLat, cosLat := math.Sincos(lat)
	sinEps, cosEps := math.Sincos(obliquity)

	return Vector{
		X: dist * cosLat * cosLon,
		Y: dist * (cosLat*sinLon*cosEps - sinLat*sinEps),
		Z: dist * (cosLat*sinLon*sinEps + sinLat*cosEps),
	}
}

// RightAscensionDeclination returns the spherical angles (radians) of an
// equatorial vector, right ascension in [0, 2π).
func RightAscensionDeclination(v Vector) (ra, dec float64) {
	ra = normalizeRad(math.Atan2(v.Y, v.X))
	dec = math.Asin(v.Z / v.Norm())
	return ra, dec
}
