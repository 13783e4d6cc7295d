package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/star/umbra/internal/auth"
	"github.com/star/umbra/internal/cache"
	"github.com/star/umbra/internal/eclipse"
	"github.com/star/umbra/internal/ephemeris"
	"github.com/star/umbra/internal/health"
	"github.com/star/umbra/internal/httputil"
	"github.com/star/umbra/internal/metrics"
	"github.com/star/umbra/internal/overlap"
	"github.com/star/umbra/internal/search"
	"github.com/star/umbra/internal/timezone"
)

// Calculator runs one eclipse computation.
type Calculator interface {
	Calculate(ctx context.Context, req eclipse.Request) (*eclipse.Report, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Addr           string
	Auth           auth.Config
	MaxSamples     int64 // per-request cap on estimator draws
	DefaultSamples int64 // used when the request omits samples
	RequestTimeout time.Duration
	WriteTimeout   time.Duration
	MaxPerIP       int // concurrent computations per client IP
	MaxTotal       int // concurrent computations overall
	TrustProxy     bool
	Cache          cache.Config
	ReadyChecks    []health.Check
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(cfg Config, calc Calculator, logger *slog.Logger) *Server {
	logger = logger.With("component", "api")
	if cfg.Cache.ComputeTimeout <= 0 {
		cfg.Cache.ComputeTimeout = cfg.RequestTimeout
	}
	reports := cache.New[*eclipse.Report](cfg.Cache, logger)
	limiter := newComputeLimiter(cfg.MaxPerIP, cfg.MaxTotal)

	mux := http.NewServeMux()

	// Register routes.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(5*time.Second, cfg.ReadyChecks...))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/v1/eclipse", eclipseHandler(cfg, calc, reports, limiter, logger))
	mux.HandleFunc("GET /api/v1/zones", zonesHandler)
	mux.HandleFunc("GET /api/v1/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"cache": reports.Stats()})
	})

	// Build middleware chain: metrics -> request ID -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(cfg.Auth)(handler)
	handler = loggingMiddleware(logger, cfg.TrustProxy)(handler)
	handler = requestIDMiddleware(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      cfg.WriteTimeout,
			IdleTimeout:       120 * time.Second,
		},
		handler: handler,
		logger:  logger,
	}
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// errSamplesCap marks a request asking for more draws than the server allows.
var errSamplesCap = errors.New("samples exceeds server limit")

// parseRequest builds a computation request from query parameters.
func parseRequest(r *http.Request, cfg Config) (eclipse.Request, error) {
	q := r.URL.Query()
	var req eclipse.Request

	var err error
	if req.Observer.Lat, err = requiredFloat(q.Get("lat"), "lat"); err != nil {
		return req, err
	}
	if req.Observer.Lon, err = requiredFloat(q.Get("lon"), "lon"); err != nil {
		return req, err
	}
	if v := q.Get("elevation"); v != "" {
		if req.Observer.ElevationM, err = strconv.ParseFloat(v, 64); err != nil {
			return req, fmt.Errorf("elevation must be a number: %q", v)
		}
	}
	if v := q.Get("offset"); v != "" {
		if req.Observer.Offset, err = strconv.Atoi(v); err != nil {
			return req, fmt.Errorf("offset must be an integer: %q", v)
		}
	}

	date := q.Get("date")
	if date == "" {
		return req, errors.New("date is required (YYYY-MM-DD)")
	}
	day, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return req, fmt.Errorf("%w: %q is not YYYY-MM-DD", search.ErrInvalidDate, date)
	}
	req.Year, req.Month, req.Day = day.Date()

	req.Samples = min(cfg.DefaultSamples, cfg.MaxSamples)
	if v := q.Get("samples"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			return req, fmt.Errorf("samples must be a non-negative integer: %q", v)
		}
		if n > cfg.MaxSamples {
			return req, fmt.Errorf("%w: %d > %d", errSamplesCap, n, cfg.MaxSamples)
		}
		req.Samples = n
	}

	if v := q.Get("seed"); v != "" {
		s, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return req, fmt.Errorf("seed must be an unsigned integer: %q", v)
		}
		req.Seed = &s
	}
	if v := q.Get("strategy"); v != "" {
		if req.Strategy, err = search.ParseStrategy(v); err != nil {
			return req, err
		}
	}
	if v := q.Get("region"); v != "" {
		if req.Region, err = overlap.ParseRegion(v); err != nil {
			return req, err
		}
	}
	return req, nil
}

func requiredFloat(v, name string) (float64, error) {
	if v == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %q", name, v)
	}
	return f, nil
}

// cacheKey identifies repeatable requests. Unseeded estimates are not
// repeatable and get no key.
func cacheKey(req eclipse.Request) (string, bool) {
	if req.Samples > 0 && req.Seed == nil {
		return "", false
	}
	var seed uint64
	if req.Seed != nil {
		seed = *req.Seed
	}
	return fmt.Sprintf("%g|%g|%g|%d|%04d-%02d-%02d|%d|%d|%s|%s",
		req.Observer.Lat, req.Observer.Lon, req.Observer.ElevationM, req.Observer.Offset,
		req.Year, req.Month, req.Day, req.Samples, seed, req.Strategy, req.Region), true
}

func eclipseHandler(cfg Config, calc Calculator, reports *cache.Cache[*eclipse.Report], limiter *computeLimiter, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := parseRequest(r, cfg)
		if err != nil {
			if errors.Is(err, errSamplesCap) {
				writeJSON(w, http.StatusBadRequest, map[string]any{
					"error":       err.Error(),
					"max_samples": cfg.MaxSamples,
				})
				return
			}
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		ip := httputil.ClientIP(r, cfg.TrustProxy)
		if !limiter.acquire(ip) {
			metrics.IncComputationsRejected()
			logger.Warn("computation limit reached",
				"remote_ip", ip,
				"current_count", limiter.count(ip),
			)
			writeError(w, http.StatusTooManyRequests, "too many concurrent computations")
			return
		}
		metrics.IncComputationsActive()
		defer func() {
			limiter.release(ip)
			metrics.DecComputationsActive()
		}()

		ctx, cancel := context.WithTimeout(r.Context(), cfg.RequestTimeout)
		defer cancel()

		compute := func(ctx context.Context) (*eclipse.Report, error) {
			return calc.Calculate(ctx, req)
		}

		var report *eclipse.Report
		if key, ok := cacheKey(req); ok {
			var shared bool
			report, shared, err = reports.GetOrCompute(ctx, key, compute)
			if shared {
				w.Header().Set("X-Cache", "hit")
			} else {
				w.Header().Set("X-Cache", "miss")
			}
		} else {
			report, err = compute(ctx)
		}
		if err != nil {
			status := statusFor(err)
			if status == http.StatusInternalServerError {
				logger.Error("eclipse computation failed", "error", err)
			}
			writeError(w, status, err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := report.Render(w, eclipse.FormatJSON); err != nil {
			logger.Error("encode report", "error", err)
		}
	}
}

// statusFor maps a computation error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, eclipse.ErrInvalidObserver),
		errors.Is(err, timezone.ErrInvalidOffset),
		errors.Is(err, search.ErrInvalidDate),
		errors.Is(err, search.ErrUnknownStrategy),
		errors.Is(err, overlap.ErrInvalidSamples),
		errors.Is(err, overlap.ErrInvalidGeometry):
		return http.StatusBadRequest
	case errors.Is(err, ephemeris.ErrOutOfRange),
		errors.Is(err, overlap.ErrDegenerateSample):
		return http.StatusUnprocessableEntity
	case errors.Is(err, search.ErrCanceled),
		errors.Is(err, overlap.ErrCanceled),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func zonesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"zones": timezone.Zones()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// requestIDMiddleware propagates an incoming X-Request-ID or assigns one.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		r.Header.Set("X-Request-ID", id)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"request_id", r.Header.Get("X-Request-ID"),
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
