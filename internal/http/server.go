// Package http exposes the mediation engine over a JSON API.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/mediatord/internal/analyzer"
	"github.com/fyrsmithlabs/mediatord/internal/engine"
	"github.com/fyrsmithlabs/mediatord/internal/logging"
	"github.com/fyrsmithlabs/mediatord/internal/policy"
	"github.com/fyrsmithlabs/mediatord/internal/profile"
	"github.com/fyrsmithlabs/mediatord/internal/rewrite"
)

// Mediator is the engine surface served over HTTP.
type Mediator interface {
	Process(ctx context.Context, req engine.Request) (engine.Decision, error)
	RecordFeedback(ctx context.Context, fb engine.Feedback) (engine.FeedbackResult, error)
	Profile(ctx context.Context, userID string) (*profile.Decayed, error)
}

// Server provides HTTP endpoints for mediatord.
type Server struct {
	echo     *echo.Echo
	mediator Mediator
	logger   *zap.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// BodyLimit caps request bodies, e.g. "64K" (default: 64K).
	BodyLimit string

	// RateLimit is the per-client request rate in requests per second.
	// Zero disables rate limiting.
	RateLimit float64
}

// NewServer creates a new HTTP server.
func NewServer(mediator Mediator, logger *zap.Logger, cfg *Config) (*Server, error) {
	if mediator == nil {
		return nil, fmt.Errorf("mediator cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8080,
		}
	}
	if cfg.BodyLimit == "" {
		cfg.BodyLimit = "64K"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())
	if cfg.RateLimit > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.RateLimit))))
	}
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			ctx := logging.WithRequestID(c.Request().Context(), c.Response().Header().Get(echo.HeaderXRequestID))
			c.SetRequest(c.Request().WithContext(ctx))
			err := next(c)
			logger.Info("http request", append(logging.ContextFields(ctx),
				zap.String("method", c.Request().Method),
				zap.String("route", c.Path()),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)...)
			return err
		}
	})

	s := &Server{
		echo:     e,
		mediator: mediator,
		logger:   logger,
		config:   cfg,
	}
	s.registerRoutes()
	return s, nil
}

// Echo exposes the router for additional routes.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/mediate", s.handleMediate)
	v1.POST("/feedback", s.handleFeedback)
	v1.POST("/analyze", s.handleAnalyze)
	v1.POST("/validate", s.handleValidate)
	v1.GET("/profiles/:id", s.handleProfile)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleMediate(c echo.Context) error {
	var req engine.Request
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid mediate request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	d, err := s.mediator.Process(c.Request().Context(), req)
	if err != nil {
		return s.engineError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (s *Server) handleFeedback(c echo.Context) error {
	var fb engine.Feedback
	if err := c.Bind(&fb); err != nil {
		s.logger.Warn("invalid feedback request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	res, err := s.mediator.RecordFeedback(c.Request().Context(), fb)
	if err != nil {
		return s.engineError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleAnalyze(c echo.Context) error {
	var req AnalyzeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return c.JSON(http.StatusOK, AnalyzeResponse{
		Analysis:   analyzer.Analyze(req.Text, analyzer.Options{ChildNames: req.ChildNames}),
		QuickCheck: analyzer.QuickCheck(req.Text),
	})
}

func (s *Server) handleValidate(c echo.Context) error {
	var req ValidateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	switch {
	case req.Rewrite1 != "" || req.Rewrite2 != "":
		r := rewrite.ValidateIntervention(rewrite.Candidate{Rewrite1: req.Rewrite1, Rewrite2: req.Rewrite2})
		return c.JSON(http.StatusOK, ValidateResponse{Intervention: &r})
	case strings.TrimSpace(req.Text) != "":
		r := rewrite.ValidateRewritePerspective(req.Text)
		return c.JSON(http.StatusOK, ValidateResponse{Result: &r})
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "text or rewrite1/rewrite2 is required")
	}
}

func (s *Server) handleProfile(c echo.Context) error {
	d, err := s.mediator.Profile(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.engineError(err)
	}
	if d == nil {
		return echo.NewHTTPError(http.StatusNotFound, "profile not found")
	}
	return c.JSON(http.StatusOK, d)
}

// engineError maps engine errors to HTTP errors. Input errors are 400;
// anything else is logged and reported as 500.
func (s *Server) engineError(err error) error {
	switch {
	case errors.Is(err, engine.ErrEmptyRoomID),
		errors.Is(err, engine.ErrEmptySenderID),
		errors.Is(err, policy.ErrInvalidOutcome),
		errors.Is(err, profile.ErrEmptyUserID):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("mediation request failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
