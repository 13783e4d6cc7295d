package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/star/umbra/internal/api"
	"github.com/star/umbra/internal/auth"
	"github.com/star/umbra/internal/cache"
	"github.com/star/umbra/internal/ephemeris"
	"github.com/star/umbra/internal/health"
	"github.com/star/umbra/internal/transform"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve eclipse computations over HTTP",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().Int64("max-samples", 1_000_000, "per-request cap on Monte Carlo draws")
	cmd.Flags().Bool("trust-proxy", false, "take client IPs from X-Forwarded-For and X-Real-IP")
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	oracle := ephemeris.NewOracle(logger)
	calc, err := newCalculator(cfg, oracle, logger)
	if err != nil {
		return err
	}
	origin := transform.NewObserverPosition(0, 0, 0)
	ephemerisReady := func(ctx context.Context) error {
		_, err := oracle.Separation(ctx, origin, time.Now().UTC())
		return err
	}

	srv := api.NewServer(api.Config{
		Addr:           cfg.Server.Addr,
		Auth:           auth.Config{Enabled: cfg.Server.AuthEnabled, Token: cfg.Server.AuthToken},
		MaxSamples:     cfg.Server.MaxSamples,
		DefaultSamples: cfg.Overlap.Samples,
		RequestTimeout: cfg.Server.RequestTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxPerIP:       cfg.Server.MaxPerIP,
		MaxTotal:       cfg.Server.MaxTotal,
		TrustProxy:     cfg.Server.TrustProxy,
		Cache:          cache.Config{MaxEntries: cfg.Server.CacheEntries, TTL: cfg.Server.CacheTTL},
		ReadyChecks:    []health.Check{ephemerisReady},
	}, calc, logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			"addr", cfg.Server.Addr,
			"auth_enabled", cfg.Server.AuthEnabled,
			"max_samples", cfg.Server.MaxSamples,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server listen error", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		return err
	}

	logger.Info("server stopped")
	return nil
}
