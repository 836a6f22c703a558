// Package server wires the portfolio API routes onto a chi router and runs
// the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/portpushpesh/portfolio-api/internal/config"
	"github.com/portpushpesh/portfolio-api/internal/httpkit"
	"github.com/portpushpesh/portfolio-api/internal/mailer"
	"github.com/portpushpesh/portfolio-api/internal/ratelimit"
	"github.com/portpushpesh/portfolio-api/internal/ratelimit/store"
)

// Version is reported by GET /api.
const Version = "1.0.0"

// Dispatcher sends the resume. *mailer.Dispatcher implements it.
type Dispatcher interface {
	Dispatch(ctx context.Context, email string, strategy config.Strategy) (*mailer.Result, error)
}

// Server holds the handlers' dependencies.
type Server struct {
	cfg           *config.Config
	dispatcher    Dispatcher
	resumeLimiter *ratelimit.Limiter
	apiLimiter    *ratelimit.Limiter
	resume        *mailer.ResumeSource
	logger        *slog.Logger
	now           func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the process logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithClock replaces time.Now for health timestamps and link checks.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// New builds a Server. The store backs both limiters; the caller owns it
// and closes it after Run returns.
func New(cfg *config.Config, d Dispatcher, st store.Store, opts ...Option) *Server {
	s := &Server{
		cfg:        cfg,
		dispatcher: d,
		logger:     slog.Default(),
		now:        time.Now,
		resume:     &mailer.ResumeSource{Paths: cfg.Resume.Paths},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.resumeLimiter = ratelimit.New(st, cfg.RateLimit.Max, cfg.RateLimit.Window,
		ratelimit.WithName("resume"),
		ratelimit.WithClientIP(),
	)
	if cfg.RateLimit.APIMax > 0 {
		s.apiLimiter = ratelimit.New(st, cfg.RateLimit.APIMax, cfg.RateLimit.APIWindow,
			ratelimit.WithName("api"),
			ratelimit.WithClientIP(),
			ratelimit.WithMessage("Too many requests from this IP, please try again later."),
		)
	}
	return s
}

// Router returns the HTTP handler for every route.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(httpkit.Handler(
		httpkit.WithCanonlog(),
		httpkit.WithSLOs(),
		httpkit.WithRequestID(),
	))
	r.Use(httpkit.ClientIP())

	r.NotFound(s.notFound)
	r.MethodNotAllowed(s.methodNotAllowed)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if s.apiLimiter != nil {
				r.Use(s.apiLimiter.Handler)
			}
			r.With(httpkit.SLO(httpkit.SLOHighFast)).Get("/", s.root)
			r.With(httpkit.SLO(httpkit.SLOHighFast)).Get("/health", s.health)
			r.With(httpkit.SLO(httpkit.SLOHighSlow)).Get("/download-resume", s.downloadResume)
		})

		// CORS precedes both limiters; limited responses carry CORS headers.
		r.Route("/send-resume", func(r chi.Router) {
			r.Use(httpkit.CORS(httpkit.CORSAllowOrigins(s.cfg.Origins()...)))
			if s.apiLimiter != nil {
				r.Use(s.apiLimiter.Handler)
			}
			r.Use(httpkit.MaxBodySize(s.cfg.MaxBodyBytes))

			r.Options("/", s.preflight)
			r.With(
				httpkit.SLO(httpkit.SLOMailDelivery),
				s.resumeLimiter.Handler,
			).Post("/", s.sendResume)
		})
	})

	return r
}

// OpenStore creates the limiter store selected by cfg.
func OpenStore(cfg *config.Config) (store.Store, error) {
	rl := cfg.RateLimit
	switch rl.Store {
	case "", "memory":
		return store.NewMemory(store.WithSweepInterval(rl.Window)), nil
	case "redis":
		st, err := store.NewRedis(store.RedisConfig{
			URL:      rl.RedisURL,
			Password: rl.RedisPassword,
			DB:       rl.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unsupported rate limit store: %s", rl.Store)
	}
}

// Run serves on cfg.Addr() until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      s.cfg.Mail.Timeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening",
			"addr", srv.Addr,
			"env", s.cfg.Env,
			"rate_limit", s.resumeLimiter.Limit(),
			"rate_limit_window", s.resumeLimiter.Window(),
		)
		if err := srv.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
