// =============================================================================
// Pay Equity Processor - Web Adapter
// =============================================================================
//
// This module exposes the pipeline behind a small HTTP API:
//
//   GET  /health               liveness check
//   GET  /metrics              Prometheus metrics
//   POST /api/v1/process       multipart upload, runs the pipeline
//   GET  /api/v1/files/:name   downloads a published artifact
//
// Every upload is an independent pipeline run. The /api group is guarded
// by a global token bucket; requests beyond it get 429.
//
// =============================================================================

package web

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ginjaninja78/payequity/internal/config"
	"github.com/ginjaninja78/payequity/internal/pipeline"
	"github.com/ginjaninja78/payequity/pkg/logger"
	"github.com/ginjaninja78/payequity/pkg/utils"
)

// shutdownTimeout bounds the wait for in-flight requests on shutdown.
const shutdownTimeout = 10 * time.Second

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Server is the HTTP adapter over one pipeline.
type Server struct {
	cfg      config.HTTPConfig
	pipeline *pipeline.Pipeline
	metrics  *Metrics
	log      *logger.Logger
	app      *fiber.App
}

// New builds the fiber application and registers the routes.
func New(cfg config.HTTPConfig, p *pipeline.Pipeline, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}

	s := &Server{
		cfg:      cfg,
		pipeline: p,
		metrics:  NewMetrics(),
		log:      log,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "payequity",
		BodyLimit:             cfg.MaxUploadMB * 1024 * 1024,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		IdleTimeout:           60 * time.Second,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(recover.New())

	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))

	burst := cfg.RateLimitBurst
	if burst < 1 {
		burst = 1
	}
	api := s.app.Group("/api/v1", rateLimit(rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst), log))
	api.Post("/process", s.process)
	api.Get("/files/:name", s.download)

	return s
}

// App exposes the fiber application, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves until ctx is cancelled, then shuts down gracefully. When
// FileRetention is set, old artifacts are pruned hourly meanwhile.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info().Str("addr", s.cfg.Addr).Msg("HTTP server listening")
		return s.app.Listen(s.cfg.Addr)
	})

	g.Go(func() error {
		<-ctx.Done()
		s.log.Info().Msg("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.app.ShutdownWithContext(shutdownCtx)
	})

	if s.cfg.FileRetention > 0 {
		g.Go(func() error {
			s.janitor(ctx, time.Hour)
			return nil
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// janitor removes expired artifacts from the output directory until ctx ends.
func (s *Server) janitor(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := utils.CleanOldFiles(s.pipeline.Files().OutputDir, s.cfg.FileRetention)
			if err != nil {
				s.log.Warn().Err(err).Msg("Output cleanup failed")
				continue
			}
			if removed > 0 {
				s.log.Info().Int("removed", removed).Msg("Expired artifacts removed")
			}
		}
	}
}

// handleError renders errors that escaped a handler, including fiber's own
// (body too large, unknown route).
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", c.Path()).Msg("Request failed")
	}
	return c.Status(code).JSON(ErrorResponse{Code: codeName(code), Message: err.Error()})
}

func codeName(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "BAD_REQUEST"
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusRequestEntityTooLarge:
		return "TOO_LARGE"
	case fiber.StatusUnprocessableEntity:
		return "DECRYPTION"
	case fiber.StatusTooManyRequests:
		return "RATE_LIMITED"
	}
	return "INTERNAL"
}

// rateLimit rejects requests once the shared token bucket is empty.
func rateLimit(limiter *rate.Limiter, log *logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !limiter.Allow() {
			log.Warn().Str("ip", c.IP()).Str("path", c.Path()).Msg("Rate limit exceeded")
			c.Set(fiber.HeaderRetryAfter, "1")
			return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{
				Code:    codeName(fiber.StatusTooManyRequests),
				Message: "rate limit exceeded, retry later",
			})
		}
		return c.Next()
	}
}
