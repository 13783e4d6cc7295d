// Package cli implements the umbra command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/star/umbra/internal/config"
	"github.com/star/umbra/internal/eclipse"
	"github.com/star/umbra/internal/ephemeris"
	"github.com/star/umbra/internal/logging"
	"github.com/star/umbra/internal/overlap"
	"github.com/star/umbra/internal/search"
)

// computeFlags are the root command's observer and date inputs.
type computeFlags struct {
	lat, lon   float64
	elevation  float64
	offset     int
	day, month int
	year       int
	format     string
}

// NewRootCmd builds the umbra command tree.
func NewRootCmd() *cobra.Command {
	var f computeFlags

	root := &cobra.Command{
		Use:   "umbra",
		Short: "Find the best time to watch a solar eclipse",
		Long: `Finds the second of a local calendar day at which the Moon's centre passes
closest to the Sun's centre as seen from the given location, reports the apparent
sizes of both discs at that instant and estimates the fraction of the Sun covered.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCompute(cmd, f)
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "path to a config file (yaml, json or toml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "json", "log format: json or text")

	fl := root.Flags()
	fl.Float64VarP(&f.lat, "lat", "l", 0, "latitude of the observation location in degrees")
	fl.Float64VarP(&f.lon, "long", "k", 0, "longitude of the observation location in degrees, east positive")
	fl.IntVarP(&f.offset, "utcoffset", "t", 0, "whole-hour UTC offset of your timezone, e.g. -5 for Central Daylight Time")
	fl.IntVarP(&f.day, "day", "d", 0, "day of the month of the eclipse")
	fl.IntVarP(&f.month, "month", "m", 0, "month of the eclipse (1-12)")
	fl.IntVarP(&f.year, "year", "y", 0, "year of the eclipse")
	fl.Int64P("nsamples", "n", overlap.DefaultSamples, "Monte Carlo draws for the coverage estimate, 0 to skip")
	fl.Float64Var(&f.elevation, "elevation", 0, "observer height above the ellipsoid in metres")
	fl.String("seed", "", "seed for a reproducible coverage estimate")
	fl.Int("workers", 0, "parallel workers (0: one per CPU)")
	fl.String("strategy", string(search.StrategyExhaustive), "search strategy: exhaustive or refine")
	fl.String("region", string(overlap.RegionBounding), "sampling region: bounding or target")
	fl.StringVar(&f.format, "format", string(eclipse.FormatText), "output format: text, json or yaml")

	for _, name := range []string{"lat", "long", "day", "month", "year"} {
		_ = root.MarkFlagRequired(name)
	}

	root.AddCommand(newZonesCmd(), newServeCmd(), newVersionCmd())
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		return 1
	}
	return 0
}

// setup loads and validates configuration and builds the logger.
func setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// newCalculator wires the searcher and estimator from cfg around oracle.
func newCalculator(cfg *config.Config, oracle eclipse.Oracle, logger *slog.Logger) (*eclipse.Calculator, error) {
	strategy, err := search.ParseStrategy(cfg.Search.Strategy)
	if err != nil {
		return nil, err
	}
	searcher := search.NewSearcher(search.Config{
		Workers:    cfg.Search.Workers,
		CoarseStep: cfg.Search.CoarseStep,
		Strategy:   strategy,
	}, logger)
	estimator := overlap.NewEstimator(cfg.Overlap.Workers, logger)
	sc := searcher.Config()
	logger.Debug("calculator configured",
		"strategy", string(sc.Strategy),
		"search_workers", sc.Workers,
		"coarse_step_seconds", sc.CoarseStep.Seconds(),
	)
	return eclipse.NewCalculator(oracle, searcher, estimator, logger), nil
}

func runCompute(cmd *cobra.Command, f computeFlags) error {
	format, err := eclipse.ParseFormat(f.format)
	if err != nil {
		return err
	}
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	calc, err := newCalculator(cfg, ephemeris.NewOracle(logger), logger)
	if err != nil {
		return err
	}
	seed, err := cfg.Overlap.SeedValue()
	if err != nil {
		return err
	}

	req := eclipse.Request{
		Observer: eclipse.Observer{Lat: f.lat, Lon: f.lon, Offset: f.offset, ElevationM: f.elevation},
		Year:     f.year,
		Month:    time.Month(f.month),
		Day:      f.day,
		Samples:  cfg.Overlap.Samples,
		Seed:     seed,
		Region:   overlap.Region(cfg.Overlap.Region),
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	report, err := calc.Calculate(ctx, req)
	if err != nil {
		if errors.Is(err, search.ErrCanceled) || errors.Is(err, overlap.ErrCanceled) {
			return fmt.Errorf("interrupted: %w", err)
		}
		return err
	}

	out := cmd.OutOrStdout()
	if err := report.Render(out, format); err != nil {
		return err
	}
	if format == eclipse.FormatText {
		fmt.Fprint(out, "\nProgram completed.\n")
	}
	return nil
}
