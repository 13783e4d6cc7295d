package ephemeris

import "math"

// lunarTerm is one periodic term of the lunar theory: integer multiples of
// the fundamental arguments D, M, M', F and the sine/cosine coefficients.
type lunarTerm struct {
	d, m, mp, f int
	sin, cos    float64
}

// Longitude (units of 1e-6 deg) and distance (units of 1e-3 km) terms.
var lonDistTerms = [...]lunarTerm{
	{0, 0, 1, 0, 6288774, -20905355},
	{2, 0, -1, 0, 1274027, -3699111},
	{2, 0, 0, 0, 658314, -2955968},
	{0, 0, 2, 0, 213618, -569925},
	{0, 1, 0, 0, -185116, 48888},
	{0, 0, 0, 2, -114332, -3149},
	{2, 0, -2, 0, 58793, 246158},
	{2, -1, -1, 0, 57066, -152138},
	{2, 0, 1, 0, 53322, -170733},
	{2, -1, 0, 0, 45758, -204586},
	{0, 1, -1, 0, -40923, -129620},
	{1, 0, 0, 0, -34720, 108743},
	{0, 1, 1, 0, -30383, 104755},
	{2, 0, 0, -2, 15327, 10321},
	{0, 0, 1, 2, -12528, 0},
	{0, 0, 1, -2, 10980, 79661},
	{4, 0, -1, 0, 10675, -34782},
	{0, 0, 3, 0, 10034, -23210},
	{4, 0, -2, 0, 8548, -21636},
	{2, 1, -1, 0, -7888, 24208},
	{2, 1, 0, 0, -6766, 30824},
	{1, 0, -1, 0, -5163, -8379},
	{1, 1, 0, 0, 4987, -16675},
	{2, -1, 1, 0, 4036, -12831},
	{2, 0, 2, 0, 3994, -10445},
	{4, 0, 0, 0, 3861, -11650},
	{2, 0, -3, 0, 3665, 14403},
	{0, 1, -2, 0, -2689, -7003},
	{2, 0, -1, 2, -2602, 0},
	{2, -1, -2, 0, 2390, 10056},
	{1, 0, 1, 0, -2348, 6322},
	{2, -2, 0, 0, 2236, -9884},
	{0, 1, 2, 0, -2120, 5751},
	{0, 2, 0, 0, -2069, 0},
	{2, -2, -1, 0, 2048, -4950},
	{2, 0, 1, -2, -1773, 4130},
	{2, 0, 0, 2, -1595, 0},
	{4, -1, -1, 0, 1215, -3958},
	{0, 0, 2, 2, -1110, 0},
	{3, 0, -1, 0, -892, 3258},
	{2, 1, 1, 0, -810, 2616},
	{4, -1, -2, 0, 759, -1897},
	{0, 2, -1, 0, -713, -2117},
	{2, 2, -1, 0, -700, 2354},
	{2, 1, -2, 0, 691, 0},
	{2, -1, 0, -2, 596, 0},
	{4, 0, 1, 0, 549, -1423},
	{0, 0, 4, 0, 537, -1117},
	{4, -1, 0, 0, 520, -1571},
	{1, 0, -2, 0, -487, -1739},
	{2, 1, 0, -2, -399, 0},
	{0, 0, 2, -2, -381, -4421},
	{1, 1, 1, 0, 351, 0},
	{3, 0, -2, 0, -340, 0},
	{4, 0, -3, 0, 330, 0},
	{2, -1, 2, 0, 327, 0},
	{0, 2, 1, 0, -323, 1165},
	{1, 1, -1, 0, 299, 0},
	{2, 0, 3, 0, 294, 0},
	{2, 0, -1, -2, 0, 8752},
}

// Latitude terms (units of 1e-6 deg); only the sine coefficient is used.
var latTerms = [...]lunarTerm{
	{0, 0, 0, 1, 5128122, 0},
	{0, 0, 1, 1, 280602, 0},
	{0, 0, 1, -1, 277693, 0},
	{2, 0, 0, -1, 173237, 0},
	{2, 0, -1, 1, 55413, 0},
	{2, 0, -1, -1, 46271, 0},
	{2, 0, 0, 1, 32573, 0},
	{0, 0, 2, 1, 17198, 0},
	{2, 0, 1, -1, 9266, 0},
	{0, 0, 2, -1, 8822, 0},
	{2, -1, 0, -1, 8216, 0},
	{2, 0, -2, -1, 4324, 0},
	{2, 0, 1, 1, 4200, 0},
	{2, 1, 0, -1, -3359, 0},
	{2, -1, -1, 1, 2463, 0},
	{2, -1, 0, 1, 2211, 0},
	{2, -1, -1, -1, 2065, 0},
	{0, 1, -1, -1, -1870, 0},
	{4, 0, -1, -1, 1828, 0},
	{0, 1, 0, 1, -1794, 0},
	{0, 0, 0, 3, -1749, 0},
	{0, 1, -1, 1, -1565, 0},
	{1, 0, 0, 1, -1491, 0},
	{0, 1, 1, 1, -1475, 0},
	{0, 1, 1, -1, -1410, 0},
	{0, 1, 0, -1, -1344, 0},
	{1, 0, 0, -1, -1335, 0},
	{0, 0, 3, 1, 1107, 0},
	{4, 0, 0, -1, 1021, 0},
	{4, 0, -1, 1, 833, 0},
	{0, 0, 1, -3, 777, 0},
	{4, 0, -2, 1, 671, 0},
	{2, 0, 0, -3, 607, 0},
	{2, 0, 2, -1, 596, 0},
	{2, -1, 1, -1, 491, 0},
	{2, 0, -2, 1, -451, 0},
	{0, 0, 3, -1, 439, 0},
	{2, 0, 2, 1, 422, 0},
	{2, 0, -3, -1, 421, 0},
	{2, 1, -1, 1, -366, 0},
	{2, 1, 0, 1, -351, 0},
	{4, 0, 0, 1, 331, 0},
	{2, -1, 1, 1, 315, 0},
	{2, -2, 0, -1, 302, 0},
	{0, 0, 1, 3, -283, 0},
	{2, 1, 1, -1, -229, 0},
	{1, 1, 0, -1, 223, 0},
	{1, 1, 0, 1, 223, 0},
	{0, 1, -2, -1, -220, 0},
	{2, 1, -1, -1, -220, 0},
	{1, 0, 1, 1, -185, 0},
	{2, -1, -2, -1, 181, 0},
	{0, 1, 2, 1, -177, 0},
	{4, 0, -2, -1, 176, 0},
	{4, -1, -1, -1, 166, 0},
	{1, 0, 1, -1, -164, 0},
	{4, 0, 1, -1, 132, 0},
	{1, 0, -1, -1, -119, 0},
	{4, -1, 0, -1, 115, 0},
	{2, -2, 0, 1, 107, 0},
}

// lunarArgs are the fundamental arguments of the lunar theory in degrees.
type lunarArgs struct {
	Lp, D, M, Mp, F float64
}

func lunarArguments(T float64) lunarArgs {
	T2, T3, T4 := T*T, T*T*T, T*T*T*T
	return lunarArgs{
		Lp: normalizeDeg(218.3164477 + 481267.88123421*T - 0.0015786*T2 + T3/538841 - T4/65194000),
		D:  normalizeDeg(297.8501921 + 445267.1114034*T - 0.0018819*T2 + T3/545868 - T4/113065000),
		M:  normalizeDeg(357.5291092 + 35999.0502909*T - 0.0001536*T2 + T3/24490000),
		Mp: normalizeDeg(134.9633964 + 477198.8675055*T + 0.0087414*T2 + T3/69699 - T4/14712000),
		F:  normalizeDeg(93.2720950 + 483202.0175233*T - 0.0036539*T2 - T3/3526000 + T4/863310000),
	}
}

// moonPosition returns the Moon's geometric geocentric ecliptic longitude
// and latitude (radians, mean equinox of date) and its distance in km.
//
// Meeus, Astronomical Algorithms, chapter 47 (~10" in longitude).
func moonPosition(T float64) (lon, lat, distKm float64) {
	a := lunarArguments(T)
	sumL, sumB, sumR := lunarSums(T, a)
	lon = normalizeDeg(a.Lp+sumL/1e6) * deg2rad
	lat = sumB / 1e6 * deg2rad
	distKm = 385000.56 + sumR/1000
	return lon, lat, distKm
}

// lunarSums returns Σl, Σb (1e-6 deg) and Σr (1e-3 km), additive terms
// included.
func lunarSums(T float64, a lunarArgs) (sumL, sumB, sumR float64) {
	D, M, Mp, F := a.D*deg2rad, a.M*deg2rad, a.Mp*deg2rad, a.F*deg2rad
	Lp := a.Lp * deg2rad

	// Eccentricity of the Earth's orbit scales terms that contain M.
	E := 1 - 0.002516*T - 0.0000074*T*T
	ecc := func(m int) float64 {
		switch m {
		case 1, -1:
			return E
		case 2, -2:
			return E * E
		}
		return 1
	}

	for _, t := range lonDistTerms {
		arg := float64(t.d)*D + float64(t.m)*M + float64(t.mp)*Mp + float64(t.f)*F
		s, c := math.Sincos(arg)
		k := ecc(t.m)
		sumL += t.sin * k * s
		sumR += t.cos * k * c
	}
	for _, t := range latTerms {
		arg := float64(t.d)*D + float64(t.m)*M + float64(t.mp)*Mp + float64(t.f)*F
		sumB += t.sin * ecc(t.m) * math.Sin(arg)
	}

	// Planetary and flattening perturbations.
	A1 := (119.75 + 131.849*T) * deg2rad
	A2 := (53.09 + 479264.290*T) * deg2rad
	A3 := (313.45 + 481266.484*T) * deg2rad

	sumL += 3958*math.Sin(A1) + 1962*math.Sin(Lp-F) + 318*math.Sin(A2)
	sumB += -2235*math.Sin(Lp) + 382*math.Sin(A3) +
		175*math.Sin(A1-F) + 175*math.Sin(A1+F) +
		127*math.Sin(Lp-Mp) - 115*math.Sin(Lp+Mp)
	return sumL, sumB, sumR
}
