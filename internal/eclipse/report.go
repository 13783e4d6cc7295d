package eclipse

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/star/umbra/internal/overlap"
	"github.com/star/umbra/internal/search"
	"github.com/star/umbra/internal/transform"
)

// Report is the outcome of one computation.
type Report struct {
	Observer           Observer             `json:"observer" yaml:"observer"`
	Date               string               `json:"date" yaml:"date"`
	Zone               string               `json:"zone" yaml:"zone"`
	BestLocal          time.Time            `json:"best_local" yaml:"best_local"`
	BestUTC            time.Time            `json:"best_utc" yaml:"best_utc"`
	SeparationDeg      float64              `json:"min_separation_deg" yaml:"min_separation_deg"`
	SunDiameterArcsec  float64              `json:"sun_diameter_arcsec" yaml:"sun_diameter_arcsec"`
	MoonDiameterArcsec float64              `json:"moon_diameter_arcsec" yaml:"moon_diameter_arcsec"`
	SunAltitudeDeg     float64              `json:"sun_altitude_deg" yaml:"sun_altitude_deg"`
	SunPosition        transform.LookAngles `json:"sun_position" yaml:"sun_position"`
	MoonPosition       transform.LookAngles `json:"moon_position" yaml:"moon_position"`
	Strategy           search.Strategy      `json:"strategy" yaml:"strategy"`
	Queries            int                  `json:"queries" yaml:"queries"`
	Overlap            *overlap.Estimate    `json:"overlap,omitempty" yaml:"overlap,omitempty"`
	CoveragePercent    *float64             `json:"coverage_percent,omitempty" yaml:"coverage_percent,omitempty"`
}

// Format is an output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates an output format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatText, FormatJSON, FormatYAML:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown output format %q (want text, json or yaml)", s)
}

// Render writes r to w in the given format.
func (r *Report) Render(w io.Writer, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case FormatText, "":
		return r.WriteText(w)
	}
	return fmt.Errorf("unknown output format %q", f)
}

// WriteText writes the human-readable report.
func (r *Report) WriteText(w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("Best time to see eclipse: %s (%s)\n", r.BestLocal.Format(time.DateTime), r.Zone)
	ew.printf("Minimum angle of separation between sun and moon centroids (degrees): %.12f\n", r.SeparationDeg)
	ew.printf("Apparent size of Sun (arcseconds): %.4f\n", r.SunDiameterArcsec)
	ew.printf("Apparent size of Moon (arcseconds): %.4f\n", r.MoonDiameterArcsec)
	if r.SunAltitudeDeg < 0 {
		ew.printf("Note: the Sun is below the horizon at this time (altitude %.2f degrees).\n", r.SunAltitudeDeg)
	}

	if r.Overlap != nil && r.CoveragePercent != nil {
		ew.printf("\nPerforming Monte Carlo sampling to determine the percentage of the Sun that will be covered by the Moon at the best viewing time...\n\n")
		ew.printf("Samples drawn: %s (%s inside the Sun's disc)\n",
			humanize.Comma(r.Overlap.Draws),
			humanize.Comma(r.Overlap.Both+r.Overlap.TargetOnly))
		ew.printf("Estimated percentage of Sun obscured by Moon: %.4f (±%.4f)\n", *r.CoveragePercent, r.Overlap.StdErr*100)
	}
	return ew.err
}

// errWriter keeps the first write error and drops later writes.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
