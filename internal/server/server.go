// Package server exposes the analysis pipeline over HTTP.
package server

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/quizstat/internal/answers"
	"github.com/ZanzyTHEbar/quizstat/internal/cache"
	"github.com/ZanzyTHEbar/quizstat/internal/config"
	"github.com/ZanzyTHEbar/quizstat/internal/database"
	"github.com/ZanzyTHEbar/quizstat/internal/encoding"
	"github.com/ZanzyTHEbar/quizstat/internal/errors"
	"github.com/ZanzyTHEbar/quizstat/internal/middleware"
	"github.com/ZanzyTHEbar/quizstat/internal/monitoring"
	"github.com/ZanzyTHEbar/quizstat/internal/pipeline"
	"github.com/ZanzyTHEbar/quizstat/internal/ratelimit"
	"github.com/ZanzyTHEbar/quizstat/internal/report"
	"github.com/ZanzyTHEbar/quizstat/internal/security"
	"github.com/ZanzyTHEbar/quizstat/internal/types"
)

const shutdownTimeout = 30 * time.Second

// Server wires the pipeline behind a gin router.
type Server struct {
	cfg      config.ServerConfig
	version  string
	logger   *monitoring.Logger
	metrics  *monitoring.Metrics
	pipeline *pipeline.Pipeline

	history *database.Repository

	cache       *cache.Cache
	limiter     *ratelimit.RateLimiter
	compression *middleware.Compression
	router      *gin.Engine
}

// Option customises a Server.
type Option func(*Server)

// WithHistory records every analyze run and serves the /runs endpoints.
func WithHistory(repo *database.Repository) Option {
	return func(s *Server) { s.history = repo }
}

// New builds the server and its router. Close releases the background
// workers of the cache and rate limiter.
func New(cfg *config.Config, logger *monitoring.Logger, version string, opts ...Option) *Server {
	if logger == nil {
		logger = monitoring.Discard()
	}
	metrics := monitoring.NewMetrics()

	s := &Server{
		cfg:     cfg.Server,
		version: version,
		logger:  logger,
		metrics: metrics,
		pipeline: pipeline.New(pipeline.Config{
			Tolerance:      cfg.Analysis.Tolerance,
			MaxCycleLength: cfg.Analysis.MaxCycleLength,
		}, logger, pipeline.WithMetrics(metrics)),
		limiter: ratelimit.NewRateLimiter(ratelimit.Config{
			PerMinute: cfg.Server.RateLimitPerMinute,
		}, metrics),
		compression: middleware.NewCompression(middleware.DefaultCompressionConfig()),
	}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.Server.CacheTTL > 0 {
		s.cache = cache.NewCache(cfg.Server.CacheTTL)
	}
	s.router = s.setupRouter()
	return s
}

func (s *Server) setupRouter() *gin.Engine {
	r := gin.New()

	secCfg := security.Config{
		EnableHSTS:     s.cfg.EnableHSTS,
		MaxBodyBytes:   s.cfg.MaxBodyBytes,
		RequestTimeout: s.cfg.RequestTimeout,
	}

	r.Use(monitoring.MonitoringMiddleware(s.metrics, s.logger))
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig(s.cfg.AllowedOrigins)))
	r.Use(security.SecurityHeadersMiddleware(secCfg))
	r.Use(s.limiter.IPRateLimitMiddleware())
	r.Use(s.compression.Handler())
	r.Use(errors.ErrorHandler())
	r.Use(security.RequestTimeout(secCfg))
	r.Use(security.ValidateContentType())
	r.Use(security.BodyLimit(secCfg))
	if s.cache != nil {
		r.Use(s.cache.Middleware(s.metrics, "/analyze", "/series/:kind"))
	}

	r.GET("/health", s.health)
	r.POST("/extract", s.extract)
	r.POST("/analyze", s.analyze)
	r.POST("/series/:kind", s.series)
	if s.history != nil {
		r.GET("/runs", s.listRuns)
		r.GET("/runs/:id", s.getRun)
	}

	return r
}

// corsConfig allows the listed origins; an empty list or "*" allows any.
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept-Encoding"},
		ExposeHeaders: []string{"X-Cache", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Metrics returns the server's counters.
func (s *Server) Metrics() *monitoring.Metrics { return s.metrics }

// Close stops background workers.
func (s *Server) Close() {
	if s.cache != nil {
		s.cache.Close()
	}
	s.limiter.Close()
}

// ListenAndServe serves on the configured port until ctx is done, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return errors.NewNetworkError(fmt.Sprintf("cannot listen on port %d", s.cfg.Port), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		s.logger.SystemLogger("server_start", "listening on "+ln.Addr().String())
		serveErr <- srv.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return errors.NewNetworkError("server stopped", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.SystemLogger("server_shutdown", "draining connections")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.NewTimeoutError("server forced to shutdown", err)
	}
	<-serveErr
	return nil
}

func (s *Server) health(c *gin.Context) {
	resp := types.HealthResponse{
		Status:      "ok",
		Timestamp:   time.Now().Format(time.RFC3339),
		Version:     s.version,
		Metrics:     s.metrics.Stats(),
		RateLimit:   s.limiter.Stats(),
		Compression: s.compression.Stats(),
	}
	if s.cache != nil {
		resp.Cache = s.cache.Stats()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) extract(c *gin.Context) {
	var text string
	if isPlainText(c) {
		body, err := c.GetRawData()
		if err != nil {
			_ = c.Error(errors.NewFormatError("request body", "unreadable", err))
			return
		}
		text = string(body)
	} else {
		var req types.ExtractRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			_ = c.Error(errors.NewValidationError("invalid extract request", err.Error()))
			return
		}
		text = req.Text
	}

	v := answers.Extract(text)
	s.logger.ExtractionLogger("request", v.Answered())
	c.JSON(http.StatusOK, types.NewExtractResponse(v))
}

func (s *Server) analyze(c *gin.Context) {
	res, ok := s.run(c)
	if !ok {
		return
	}

	format := c.DefaultQuery("format", "json")
	if format == "text" {
		var buf bytes.Buffer
		if err := report.WriteText(&buf, res); err != nil {
			_ = c.Error(err)
			return
		}
		c.Data(http.StatusOK, "text/plain; charset=utf-8", buf.Bytes())
		return
	}
	s.render(c, format, res)
}

func (s *Server) series(c *gin.Context) {
	kind, err := report.ParseChartKind(c.Param("kind"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	res, ok := s.run(c)
	if !ok {
		return
	}

	series, err := report.BuildSeries(kind, res)
	if err != nil {
		_ = c.Error(err)
		return
	}
	s.render(c, c.DefaultQuery("format", "json"), series)
}

// run turns the request body into pipeline input and runs it. Failures are
// attached to c for the error handler.
func (s *Server) run(c *gin.Context) (*pipeline.Results, bool) {
	in, err := input(c)
	if err != nil {
		_ = c.Error(err)
		return nil, false
	}

	res, err := s.pipeline.Run(c.Request.Context(), in)
	if s.history != nil && res != nil {
		if herr := s.history.SaveRun(c.Request.Context(), res); herr != nil {
			s.logger.Warn("Run not recorded", "run_id", res.RunID, "error", herr)
		}
	}
	if err != nil {
		_ = c.Error(err)
		return nil, false
	}
	return res, true
}

func (s *Server) listRuns(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil {
		_ = c.Error(errors.NewValidationError("limit must be an integer", c.Query("limit")))
		return
	}
	runs, err := s.history.ListRuns(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) getRun(c *gin.Context) {
	res, err := s.history.GetResults(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	s.render(c, c.DefaultQuery("format", "json"), res)
}

func (s *Server) render(c *gin.Context, format string, v any) {
	f, err := encoding.ParseFormat(format)
	if err != nil {
		_ = c.Error(err)
		return
	}
	data, err := encoding.Marshal(f, v)
	if err != nil {
		_ = c.Error(errors.NewInternalError("cannot encode response", err))
		return
	}
	c.Data(http.StatusOK, f.ContentType(), data)
}

// input reads either a collated text/plain document or a JSON list of
// respondent texts.
func input(c *gin.Context) (pipeline.Input, error) {
	if isPlainText(c) {
		body, err := c.GetRawData()
		if err != nil {
			return pipeline.Input{}, errors.NewFormatError("request body", "unreadable", err)
		}
		return pipeline.Input{Collated: string(body)}, nil
	}

	var req types.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return pipeline.Input{}, errors.NewValidationError("invalid analyze request", err.Error())
	}
	sources := make([]pipeline.Source, len(req.Respondents))
	for i, text := range req.Respondents {
		sources[i] = pipeline.Source{Text: text}
	}
	return pipeline.Input{Texts: sources}, nil
}

func isPlainText(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "text/plain")
}
