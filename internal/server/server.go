// Package server exposes optimization runs over HTTP: a server-sent event
// stream per run, run history, health and metrics.
package server

import (
	"log/slog"
	"net/http"
	"slices"
	"sync/atomic"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"coverga/internal/evo"
	"coverga/internal/platform"
	"coverga/internal/problem"
)

type Options struct {
	Coordinator *platform.Coordinator
	// Defaults are the engine settings a /run request starts from.
	Defaults evo.Config
	Selector string
	// CORSOrigins lists allowed browser origins; "*" allows any.
	CORSOrigins []string
	// RunRatePerSecond of zero disables rate limiting of /run.
	RunRatePerSecond float64
	RunBurst         int
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

type Server struct {
	coordinator *platform.Coordinator
	defaults    evo.Config
	selector    string
	limiter     *rate.Limiter
	logger      *slog.Logger
	instance    atomic.Pointer[problem.Instance]
	router      *gin.Engine
}

func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		coordinator: opts.Coordinator,
		defaults:    opts.Defaults,
		selector:    opts.Selector,
		logger:      logger,
	}
	if opts.RunRatePerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(opts.RunRatePerSecond), max(opts.RunBurst, 1))
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("coverga"))
	router.Use(requestLogger(logger))
	router.Use(corsMiddleware(opts.CORSOrigins))

	router.GET("/healthcheck", s.handleHealth)
	router.GET("/run", s.handleRun)
	runs := router.Group("/runs")
	runs.GET("", s.handleListRuns)
	runs.GET("/:id", s.handleGetRun)
	runs.GET("/:id/progress", s.handleRunProgress)
	runs.GET("/:id/diagnostics", s.handleRunDiagnostics)
	runs.POST("/:id/stop", s.handleStopRun)
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics))
	}
	s.router = router
	return s
}

// SetInstance swaps the problem instance used by subsequent runs. Runs
// already in progress keep the instance they started with.
func (s *Server) SetInstance(instance *problem.Instance) {
	s.instance.Store(instance)
}

func (s *Server) Instance() *problem.Instance {
	return s.instance.Load()
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Cache-Control"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		level := slog.LevelInfo
		switch c.FullPath() {
		case "/healthcheck", "/metrics":
			level = slog.LevelDebug
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
