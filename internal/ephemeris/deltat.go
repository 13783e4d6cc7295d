package ephemeris

import (
	"math"
	"time"
)

// Supported calendar years, inclusive.
const (
	MinYear = 1900
	MaxYear = 2100
)

// DeltaT returns TT - UT in seconds for a UTC instant, using the
// Espenak-Meeus polynomial fits. UT1 - UTC (under one second) is ignored.
func DeltaT(t time.Time) float64 {
	t = t.UTC()
	y := float64(t.Year()) + (float64(t.Month())-0.5)/12

	switch {
	case y < 1920:
		u := y - 1900
		return -2.79 + 1.494119*u - 0.0598939*u*u + 0.0061966*u*u*u - 0.000197*u*u*u*u
	case y < 1941:
		u := y - 1920
		return 21.20 + 0.84493*u - 0.076100*u*u + 0.0020936*u*u*u
	case y < 1961:
		u := y - 1950
		return 29.07 + 0.407*u - u*u/233 + u*u*u/2547
	case y < 1986:
		u := y - 1975
		return 45.45 + 1.067*u - u*u/260 - u*u*u/718
	case y < 2005:
		u := y - 2000
		return 63.86 + 0.3345*u - 0.060374*u*u + 0.0017275*u*u*u +
			0.000651814*math.Pow(u, 4) + 0.00002373599*math.Pow(u, 5)
	case y < 2050:
		u := y - 2000
		return 62.92 + 0.32217*u + 0.005589*u*u
	case y < 2150:
		u := (y - 1820) / 100
		return -20 + 32*u*u - 0.5628*(2150-y)
	default:
		u := (y - 1820) / 100
		return -20 + 32*u*u
	}
}

// terrestrialTime shifts a UTC instant onto the TT scale.
func terrestrialTime(t time.Time) time.Time {
	return t.UTC().Add(time.Duration(DeltaT(t) * float64(time.Second)))
}
