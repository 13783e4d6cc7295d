package ephemeris

import "math"

// auKm is the astronomical unit in kilometers.
const auKm = 149597870.7

// sunPosition returns the Sun's apparent ecliptic longitude (radians, of
// date, aberration included, nutation excluded), latitude (zero at this
// accuracy) and distance in kilometers.
//
// Meeus, Astronomical Algorithms, chapter 25 (low accuracy, ~0.01 deg).
func sunPosition(T float64) (lon, lat, distKm float64) {
	L0 := 280.46646 + 36000.76983*T + 0.0003032*T*T
	M := (357.52911 + 35999.05029*T - 0.0001537*T*T) * deg2rad
	e := 0.016708634 - 0.000042037*T - 0.0000001267*T*T

	C := (1.914602-0.004817*T-0.000014*T*T)*math.Sin(M) +
		(0.019993-0.000101*T)*math.Sin(2*M) +
		0.000289*math.Sin(3*M)

	trueLon := L0 + C
	nu := M + C*deg2rad
	R := 1.000001018 * (1 - e*e) / (1 + e*math.Cos(nu))

	// Annual aberration, 20.5" at this accuracy.
	lon = normalizeDeg(trueLon-0.00569) * deg2rad
	return lon, 0, R * auKm
}

func normalizeDeg(d float64) float64 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	return d
}
