package transform

import (
	"math"
	"testing"
	"time"
)

// TestJulianDate verifies the Julian Date calculation against known values.
func TestJulianDate(t *testing.T) {
	tests := []struct {
		name     string
		time     time.Time
		expected float64
	}{
		{
			name:     "J2000.0 epoch",
			time:     time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC),
			expected: 2451545.0,
		},
		{
			name:     "Unix epoch",
			time:     time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
			expected: 2440587.5,
		},
		{
			// Meeus Example 7.a: 1957 October 4.81.
			name:     "Sputnik launch",
			time:     time.Date(1957, 10, 4, 19, 26, 24, 0, time.UTC),
			expected: 2436116.31,
		},
		{
			name:     "fixed-offset input is converted to UTC",
			time:     time.Date(2000, 1, 1, 20, 0, 0, 0, time.FixedZone("UTC+8", 8*3600)),
			expected: 2451545.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := JulianDate(tt.time)
			diff := math.Abs(got - tt.expected)
			if diff > 1e-6 {
				t.Errorf("JulianDate(%v) = %.10f, want %.10f (diff=%.2e)", tt.time, got, tt.expected, diff)
			}
		})
	}
}

// referenceGMST is an independent IAU-82 evaluation (Vallado Eq 3-47):
//
//	θ_GMST = 67310.54841 + (876600h + 8640184.812866)*T + 0.093104*T² - 6.2e-6*T³
//
// where T is Julian centuries of UT1 from J2000.0, result in seconds of time.
func referenceGMST(t time.Time) float64 {
	tUT1 := JulianCenturies(JulianDate(t))
	gmstSec := 67310.54841 +
		(3155760000.0+8640184.812866)*tUT1 +
		0.093104*tUT1*tUT1 -
		6.2e-6*tUT1*tUT1*tUT1

	gmstSec = math.Mod(gmstSec, 86400.0)
	if gmstSec < 0 {
		gmstSec += 86400.0
	}
	return gmstSec / 86400.0 * 2.0 * math.Pi
}

// TestGMST validates the go-satellite backed GMST against the reference
// formula and a published value.
func TestGMST(t *testing.T) {
	tests := []struct {
		name string
		time time.Time
	}{
		{"J2000.0 epoch", time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)},
		{"Vallado example date", time.Date(2004, 4, 6, 7, 51, 28, 0, time.UTC)},
		{"2024 eclipse", time.Date(2024, 4, 8, 18, 42, 0, 0, time.UTC)},
		{"late century", time.Date(2090, 9, 23, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			our := GMST(tt.time)
			ref := referenceGMST(tt.time)

			diff := math.Abs(our - ref)
			if diff > math.Pi {
				diff = 2*math.Pi - diff
			}
			// 1e-8 radians ≈ 0.002 arcsec.
			if diff > 1e-8 {
				t.Errorf("GMST(%v) = %.12f rad, reference = %.12f rad (diff=%.2e)", tt.time, our, ref, diff)
			}
			if our < 0 || our >= 2*math.Pi {
				t.Errorf("GMST(%v) = %v outside [0, 2π)", tt.time, our)
			}
		})
	}

	// Meeus Example 12.a: 1987 April 10, 0h UT, GMST = 13h10m46.3668s.
	want := (13 + 10.0/60 + 46.3668/3600) * 15 * math.Pi / 180
	got := GMST(time.Date(1987, 4, 10, 0, 0, 0, 0, time.UTC))
	if math.Abs(got-want) > 1e-6 {
		t.Errorf("GMST(1987-04-10) = %.8f rad, want %.8f rad", got, want)
	}
}

func TestApparentSidereal(t *testing.T) {
	tm := time.Date(1987, 4, 10, 0, 0, 0, 0, time.UTC)
	// Meeus Example 12.a: Δψ = -3.788", ε = 23°26'36.85".
	nut := -3.788 / 3600 * math.Pi / 180
	eps := (23 + 26.0/60 + 36.85/3600) * math.Pi / 180

	got := ApparentSidereal(tm, nut, eps)
	// Apparent sidereal time 13h10m46.1351s.
	want := (13 + 10.0/60 + 46.1351/3600) * 15 * math.Pi / 180
	if math.Abs(got-want) > 1e-6 {
		t.Errorf("ApparentSidereal = %.8f rad, want %.8f rad", got, want)
	}
}
