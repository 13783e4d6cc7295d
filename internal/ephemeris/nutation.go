package ephemeris

import "math"

const (
	deg2rad    = math.Pi / 180
	arcsec2rad = deg2rad / 3600
)

// nutation holds nutation in longitude and obliquity plus the mean and
// true obliquity of the ecliptic, all in radians.
type nutation struct {
	dPsi, dEps float64
	meanObliq  float64
	trueObliq  float64
}

// nutationAt evaluates the low-accuracy nutation series (about 0.5" in Δψ,
// 0.1" in Δε) for T Julian centuries of TT from J2000.0.
func nutationAt(T float64) nutation {
	omega := (125.04452 - 1934.136261*T + 0.0020708*T*T + T*T*T/450000) * deg2rad
	sunL := (280.4665 + 36000.7698*T) * deg2rad
	moonL := (218.3165 + 481267.8813*T) * deg2rad

	dPsi := -17.20*math.Sin(omega) - 1.32*math.Sin(2*sunL) -
		0.23*math.Sin(2*moonL) + 0.21*math.Sin(2*omega)
	dEps := 9.20*math.Cos(omega) + 0.57*math.Cos(2*sunL) +
		0.10*math.Cos(2*moonL) - 0.09*math.Cos(2*omega)

	eps0 := 23*3600 + 26*60 + 21.448 - 46.8150*T - 0.00059*T*T + 0.001813*T*T*T

	n := nutation{
		dPsi:      dPsi * arcsec2rad,
		dEps:      dEps * arcsec2rad,
		meanObliq: eps0 * arcsec2rad,
	}
	n.trueObliq = n.meanObliq + n.dEps
	return n
}
