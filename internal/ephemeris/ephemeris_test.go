package ephemeris

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/star/umbra/internal/transform"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func deg(rad float64) float64 { return rad / deg2rad }

// Meeus Example 47.a: 1992 April 12, 0h TD.
func TestMoonPosition_Meeus47a(t *testing.T) {
	T := transform.JulianCenturies(2448724.5)

	a := lunarArguments(T)
	args := []struct {
		name      string
		got, want float64
	}{
		{"L'", a.Lp, 134.290182},
		{"D", a.D, 113.842304},
		{"M", a.M, 97.643514},
		{"M'", a.Mp, 5.150833},
		{"F", a.F, 219.889721},
	}
	for _, tt := range args {
		if math.Abs(tt.got-tt.want) > 1e-5 {
			t.Errorf("%s = %.6f, want %.6f", tt.name, tt.got, tt.want)
		}
	}

	sumL, _, sumR := lunarSums(T, a)
	if math.Abs(sumL-(-1127527)) > 2 {
		t.Errorf("Σl = %.1f, want -1127527", sumL)
	}
	if math.Abs(sumR-(-16590875)) > 2 {
		t.Errorf("Σr = %.1f, want -16590875", sumR)
	}

	lon, lat, dist := moonPosition(T)
	if math.Abs(deg(lon)-133.162655) > 1e-5 {
		t.Errorf("λ = %.6f, want 133.162655", deg(lon))
	}
	if math.Abs(deg(lat)-(-3.229126)) > 1e-5 {
		t.Errorf("β = %.6f, want -3.229126", deg(lat))
	}
	if math.Abs(dist-368409.7) > 0.5 {
		t.Errorf("Δ = %.1f km, want 368409.7", dist)
	}

	// Apparent place, with the low-accuracy nutation series.
	nut := nutationAt(T)
	ra, dec := transform.RightAscensionDeclination(
		transform.EclipticToEquatorial(lon+nut.dPsi, lat, dist, nut.trueObliq))
	if math.Abs(deg(ra)-134.688470) > 1e-3 {
		t.Errorf("α = %.6f, want 134.688470", deg(ra))
	}
	if math.Abs(deg(dec)-13.768368) > 1e-3 {
		t.Errorf("δ = %.6f, want 13.768368", deg(dec))
	}
}

// Meeus Example 25.a: 1992 October 13, 0h TD.
func TestSunPosition_Meeus25a(t *testing.T) {
	T := transform.JulianCenturies(2448908.5)
	lon, lat, dist := sunPosition(T)
	nut := nutationAt(T)

	if got := deg(lon + nut.dPsi); math.Abs(got-199.90895) > 1e-3 {
		t.Errorf("apparent λ = %.5f, want 199.90895", got)
	}
	if lat != 0 {
		t.Errorf("β = %v, want 0", lat)
	}
	if au := dist / auKm; math.Abs(au-0.99766) > 1e-5 {
		t.Errorf("R = %.5f AU, want 0.99766", au)
	}

	ra, dec := transform.RightAscensionDeclination(
		transform.EclipticToEquatorial(lon+nut.dPsi, lat, dist, nut.trueObliq))
	if math.Abs(deg(ra)-198.38083) > 2e-3 {
		t.Errorf("α = %.5f, want 198.38083", deg(ra))
	}
	if math.Abs(deg(dec)-(-7.78507)) > 2e-3 {
		t.Errorf("δ = %.5f, want -7.78507", deg(dec))
	}
}

func TestNutation_Meeus22a(t *testing.T) {
	// 1987 April 10, 0h TD: Δψ = -3.788", Δε = +9.443", ε = 23°26'36.850".
	n := nutationAt(transform.JulianCenturies(2446895.5))

	if got := n.dPsi / arcsec2rad; math.Abs(got-(-3.788)) > 0.5 {
		t.Errorf("Δψ = %.3f\", want -3.788\"", got)
	}
	if got := n.dEps / arcsec2rad; math.Abs(got-9.443) > 0.1 {
		t.Errorf("Δε = %.3f\", want 9.443\"", got)
	}
	want := (23 + 26.0/60 + 36.850/3600) * deg2rad
	if math.Abs(n.trueObliq-want)/arcsec2rad > 0.1 {
		t.Errorf("ε = %.6f deg, want %.6f deg", deg(n.trueObliq), deg(want))
	}
}

func TestDeltaT(t *testing.T) {
	at := func(y int, m time.Month) float64 {
		return DeltaT(time.Date(y, m, 1, 0, 0, 0, 0, time.UTC))
	}

	if got := at(2000, time.January); math.Abs(got-63.9) > 0.2 {
		t.Errorf("ΔT(2000) = %.2f s, want ~63.9 s", got)
	}
	if got := at(2024, time.April); got < 60 || got > 80 {
		t.Errorf("ΔT(2024) = %.2f s, want between 60 and 80 s", got)
	}

	// Adjacent polynomial segments join without jumps.
	for _, y := range []int{1920, 1941, 1961, 1986, 2005, 2050} {
		before, after := at(y-1, time.December), at(y, time.January)
		if math.Abs(after-before) > 1 {
			t.Errorf("ΔT jumps at %d: %.2f -> %.2f", y, before, after)
		}
	}
}

var (
	dallas       = transform.NewObserverPosition(32.7767, -96.7970, 140)
	dallasMaxUTC = time.Date(2024, 4, 8, 18, 42, 40, 0, time.UTC)
)

func TestApparentSize_TotalEclipse2024(t *testing.T) {
	o := NewOracle(testLogger())
	ctx := context.Background()

	sun, err := o.ApparentSize(ctx, Sun, dallas, dallasMaxUTC)
	if err != nil {
		t.Fatalf("ApparentSize(Sun): %v", err)
	}
	moon, err := o.ApparentSize(ctx, Moon, dallas, dallasMaxUTC)
	if err != nil {
		t.Fatalf("ApparentSize(Moon): %v", err)
	}

	if sun < 1900 || sun > 1930 {
		t.Errorf("Sun diameter = %.1f\", want 1900-1930\"", sun)
	}
	if moon < 1990 || moon > 2060 {
		t.Errorf("Moon diameter = %.1f\", want 1990-2060\"", moon)
	}
}

func TestSeparation_TotalEclipse2024(t *testing.T) {
	o := NewOracle(testLogger())
	ctx := context.Background()
	sep := o.SeparationFunc(dallas)

	best, bestSep := time.Time{}, math.Inf(1)
	for ts := dallasMaxUTC.Add(-15 * time.Minute); !ts.After(dallasMaxUTC.Add(15 * time.Minute)); ts = ts.Add(time.Second) {
		s, err := sep(ctx, ts)
		if err != nil {
			t.Fatalf("Separation(%v): %v", ts, err)
		}
		if s < bestSep {
			best, bestSep = ts, s
		}
	}

	if d := best.Sub(dallasMaxUTC); d < -2*time.Minute || d > 2*time.Minute {
		t.Errorf("closest approach at %v, want within 2m of %v", best, dallasMaxUTC)
	}

	sun, _ := o.ApparentSize(ctx, Sun, dallas, best)
	moon, _ := o.ApparentSize(ctx, Moon, dallas, best)
	// Totality: the Sun's disc lies inside the Moon's.
	if sepArcsec := bestSep * 3600; sepArcsec > (moon-sun)/2 {
		t.Errorf("min separation %.1f\" exceeds radius difference %.1f\"; eclipse not total", sepArcsec, (moon-sun)/2)
	}

	// Half a day later the bodies are far apart.
	far, err := sep(ctx, dallasMaxUTC.Add(-12*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if far < 2 {
		t.Errorf("separation 12h earlier = %.3f deg, want > 2", far)
	}
}

func TestSeparation_OutOfRange(t *testing.T) {
	o := NewOracle(testLogger())
	ctx := context.Background()

	tests := []struct {
		name    string
		utc     time.Time
		wantErr bool
	}{
		{"before range", time.Date(1899, 12, 31, 23, 59, 59, 0, time.UTC), true},
		{"first instant", time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC), false},
		{"last instant", time.Date(2100, 12, 31, 23, 59, 59, 0, time.UTC), false},
		{"after range", time.Date(2101, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{"local time inside, UTC outside", time.Date(1900, 1, 1, 5, 0, 0, 0, time.FixedZone("UTC+12", 12*3600)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.Separation(ctx, dallas, tt.utc)
			if got := errors.Is(err, ErrOutOfRange); got != tt.wantErr {
				t.Errorf("errors.Is(err, ErrOutOfRange) = %v, want %v (err=%v)", got, tt.wantErr, err)
			}
			_, err = o.ApparentSize(ctx, Moon, dallas, tt.utc)
			if got := errors.Is(err, ErrOutOfRange); got != tt.wantErr {
				t.Errorf("ApparentSize: errors.Is(err, ErrOutOfRange) = %v, want %v", got, tt.wantErr)
			}
		})
	}
}

func TestSeparation_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewOracle(testLogger()).Separation(ctx, dallas, dallasMaxUTC)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestApparentSize_SunAnnualVariation(t *testing.T) {
	o := NewOracle(testLogger())
	ctx := context.Background()
	obs := transform.NewObserverPosition(0, 0, 0)

	peri, err := o.ApparentSize(ctx, Sun, obs, time.Date(2023, 1, 4, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	aph, err := o.ApparentSize(ctx, Sun, obs, time.Date(2023, 7, 6, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	if peri <= aph {
		t.Errorf("perihelion diameter %.1f\" not larger than aphelion %.1f\"", peri, aph)
	}
	if math.Abs(peri-1951) > 3 || math.Abs(aph-1887) > 3 {
		t.Errorf("diameters = %.1f\", %.1f\", want ~1951\", ~1887\"", peri, aph)
	}
}

// The Sun's elevation agrees with the independent suncalc model.
func TestLookAngles_MatchesSuncalc(t *testing.T) {
	o := NewOracle(testLogger())

	tests := []struct {
		name     string
		lat, lon float64
		utc      time.Time
	}{
		{"Dallas eclipse", 32.7767, -96.7970, dallasMaxUTC},
		{"London solstice noon", 51.5072, -0.1275, time.Date(2014, 6, 21, 12, 0, 0, 0, time.UTC)},
		{"Sydney morning", -33.8688, 151.2093, time.Date(2019, 3, 1, 22, 30, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			la, err := o.LookAngles(Sun, transform.NewObserverPosition(tt.lat, tt.lon, 0), tt.utc)
			if err != nil {
				t.Fatal(err)
			}
			want := SunAltitude(tt.lat, tt.lon, tt.utc)
			if math.Abs(la.ElevationDeg-want) > 0.5 {
				t.Errorf("elevation = %.3f deg, suncalc = %.3f deg", la.ElevationDeg, want)
			}
		})
	}
}

func TestLookAngles_EclipseBodiesColocated(t *testing.T) {
	o := NewOracle(testLogger())

	sun, err := o.LookAngles(Sun, dallas, dallasMaxUTC)
	if err != nil {
		t.Fatal(err)
	}
	moon, err := o.LookAngles(Moon, dallas, dallasMaxUTC)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(sun.ElevationDeg-moon.ElevationDeg) > 0.1 {
		t.Errorf("elevations differ: sun %.3f, moon %.3f", sun.ElevationDeg, moon.ElevationDeg)
	}
	if sun.ElevationDeg < 60 || sun.ElevationDeg > 72 {
		t.Errorf("sun elevation = %.2f deg, want ~67", sun.ElevationDeg)
	}
	if moon.RangeKm < 350000 || moon.RangeKm > 365000 {
		t.Errorf("moon range = %.0f km, want ~355,000", moon.RangeKm)
	}
}

func TestBodyString(t *testing.T) {
	if Sun.String() != "sun" || Moon.String() != "moon" {
		t.Errorf("String() = %q, %q", Sun.String(), Moon.String())
	}
	if got := Body(7).String(); got != "body(7)" {
		t.Errorf("Body(7).String() = %q", got)
	}
}
