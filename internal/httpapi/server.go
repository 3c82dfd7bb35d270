// Package httpapi exposes the MemoryCore operations over HTTP, grounded on
// contextd's internal/http server: an echo.Echo with recover/request-id
// middleware, a JSON v1 API group, a /health endpoint, and a /metrics
// endpoint wrapping promhttp.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/memcore/internal/blockstore"
	"github.com/fyrsmithlabs/memcore/internal/decay"
	"github.com/fyrsmithlabs/memcore/internal/memcore"
	"github.com/fyrsmithlabs/memcore/internal/memerr"
	"github.com/fyrsmithlabs/memcore/internal/retriever"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server provides HTTP endpoints over a *memcore.MemoryCore.
type Server struct {
	echo   *echo.Echo
	core   *memcore.MemoryCore
	logger *zap.Logger
	config *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Port            int
	ShutdownTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 9090
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

// NewServer wires an echo.Echo around core and registers routes.
func NewServer(core *memcore.MemoryCore, logger *zap.Logger, cfg *Config) (*Server, error) {
	if core == nil {
		return nil, fmt.Errorf("httpapi: core cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.applyDefaults()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return err
		}
	})

	s := &Server{echo: e, core: core, logger: logger, config: cfg}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/blocks", s.handleRecord)
	v1.POST("/blocks/:id/encode", s.handleEncode)
	v1.POST("/links", s.handleLink)
	v1.POST("/retrieve", s.handleRetrieve)
	v1.POST("/blocks/:id/reflect", s.handleReflect)
	v1.POST("/compress", s.handleCompress)
	v1.POST("/decay", s.handleDecay)
	v1.POST("/materialize-context", s.handleMaterialize)
	v1.GET("/blocks", s.handleListBlocks)
	v1.POST("/reindex-all", s.handleReindexAll)
	v1.POST("/reset-vectors", s.handleResetVectors)
}

// Echo exposes the underlying echo.Echo for additional route registration.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start starts the HTTP server and blocks until ctx is cancelled, then
// performs a graceful shutdown bounded by cfg.ShutdownTimeout.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Port)

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("httpapi: server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("httpapi: server shutdown: %w", err)
		}
		return http.ErrServerClosed
	}
}

type healthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{Status: "ok"})
}

type recordRequest struct {
	Title    string                 `json:"title"`
	Body     string                 `json:"body"`
	Tags     []string               `json:"tags,omitempty"`
	InfoType string                 `json:"information_type"`
	Extra    map[string]interface{} `json:"extra,omitempty"`
}

func (s *Server) handleRecord(c echo.Context) error {
	var req recordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	id, err := s.core.Record(c.Request().Context(), req.Title, req.Body, req.Tags, blockstore.InformationType(req.InfoType), req.Extra)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleEncode(c echo.Context) error {
	if err := s.core.Encode(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type linkRequest struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Kind   string  `json:"kind"`
	Weight float64 `json:"weight"`
}

func (s *Server) handleLink(c echo.Context) error {
	var req linkRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := s.core.Link(c.Request().Context(), req.Source, req.Target, req.Kind, req.Weight); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleRetrieve(c echo.Context) error {
	var req retriever.Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	results, err := s.core.Retrieve(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, results)
}

func (s *Server) handleReflect(c echo.Context) error {
	out, err := s.core.Reflect(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

type compressRequest struct {
	BlockIDs  []string `json:"block_ids"`
	MaxTokens int      `json:"max_tokens"`
}

func (s *Server) handleCompress(c echo.Context) error {
	var req compressRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := s.core.Compress(c.Request().Context(), req.BlockIDs, req.MaxTokens)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

type decayRequest struct {
	Policy         string  `json:"policy"`
	ThresholdDays  int     `json:"threshold_days,omitempty"`
	UsageThreshold float64 `json:"usage_threshold,omitempty"`
}

func (s *Server) handleDecay(c echo.Context) error {
	var req decayRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	out, err := s.core.DecayRun(c.Request().Context(), decay.Policy(req.Policy), decay.Params{
		ThresholdDays:  req.ThresholdDays,
		UsageThreshold: req.UsageThreshold,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

type materializeRequest struct {
	Goal      string `json:"goal"`
	MaxTokens int    `json:"max_tokens"`
}

func (s *Server) handleMaterialize(c echo.Context) error {
	var req materializeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := s.core.MaterializeContext(c.Request().Context(), req.Goal, req.MaxTokens)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleListBlocks(c echo.Context) error {
	includeArchived := c.QueryParam("include_archived") == "true"
	blocks, err := s.core.ListBlocks(c.Request().Context(), includeArchived)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, blocks)
}

func (s *Server) handleReindexAll(c echo.Context) error {
	if err := s.core.ReindexAll(c.Request().Context()); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleResetVectors(c echo.Context) error {
	if err := s.core.ResetVectors(c.Request().Context()); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// httpError maps memerr.Kind to the matching HTTP status code.
func httpError(err error) error {
	switch {
	case memerr.Is(err, memerr.NotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case memerr.Is(err, memerr.AlreadyExists):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case memerr.Is(err, memerr.Invalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case memerr.Is(err, memerr.Timeout):
		return echo.NewHTTPError(http.StatusGatewayTimeout, err.Error())
	case memerr.Is(err, memerr.Unavailable), memerr.Is(err, memerr.EmbeddingUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
