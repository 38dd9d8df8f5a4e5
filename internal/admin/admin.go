// Package admin serves the gateway's operational HTTP endpoints.
package admin

import (
	"context"
	"errors"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/sirupsen/logrus"

	"dev.helix.gateway/internal/usage"
)

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// UsageSummarizer aggregates recorded usage per application.
type UsageSummarizer interface {
	Summarize(ctx context.Context, appID string, since time.Time) (*usage.Summary, error)
}

// Config configures the admin server.
type Config struct {
	Address      string
	Version      string
	CheckTimeout time.Duration
	Gatherer     prometheus.Gatherer
}

type namedCheck struct {
	name  string
	check Check
}

// Server is the admin HTTP server.
type Server struct {
	config    Config
	router    *gin.Engine
	http      *http.Server
	log       *logrus.Logger
	startTime time.Time

	mu      sync.RWMutex
	checks  []namedCheck
	info    func() map[string]any
	summary UsageSummarizer
}

// New creates the admin server and its routes.
func New(cfg Config, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.New()
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = 2 * time.Second
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		config:    cfg,
		router:    router,
		log:       log,
		startTime: time.Now(),
	}
	s.http = &http.Server{
		Addr:              cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	router.GET("/healthz", s.handleHealthz)
	router.GET("/readyz", s.handleReadyz)
	router.GET("/status", s.handleStatus)
	router.GET("/usage/:application_id", s.handleUsage)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))

	return s
}

// AddCheck registers a readiness check.
func (s *Server) AddCheck(name string, check Check) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks = append(s.checks, namedCheck{name: name, check: check})
}

// SetInfo sets a function whose output is included in /status.
func (s *Server) SetInfo(info func() map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.info = info
}

// SetUsageSummarizer enables /usage/:application_id.
func (s *Server) SetUsageSummarizer(summarizer UsageSummarizer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = summarizer
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown.
func (s *Server) Start() error {
	s.log.WithField("address", s.config.Address).Info("Admin server listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleReadyz(c *gin.Context) {
	s.mu.RLock()
	checks := append([]namedCheck(nil), s.checks...)
	s.mu.RUnlock()

	results := make(map[string]string, len(checks))
	ready := true
	for _, nc := range checks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), s.config.CheckTimeout)
		err := nc.check(ctx)
		cancel()

		if err != nil {
			ready = false
			results[nc.name] = err.Error()
			s.log.WithError(err).WithField("check", nc.name).Warn("Readiness check failed")
			continue
		}
		results[nc.name] = "ok"
	}

	code := http.StatusOK
	statusText := "ready"
	if !ready {
		code = http.StatusServiceUnavailable
		statusText = "not ready"
	}
	c.JSON(code, gin.H{"status": statusText, "checks": results})
}

func (s *Server) handleStatus(c *gin.Context) {
	body := gin.H{
		"version":        s.config.Version,
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		"goroutines":     runtime.NumGoroutine(),
		"go_version":     runtime.Version(),
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		stats := gin.H{}
		if mem, err := proc.MemoryInfo(); err == nil {
			stats["rss_bytes"] = mem.RSS
		}
		if cpu, err := proc.CPUPercent(); err == nil {
			stats["cpu_percent"] = cpu
		}
		if threads, err := proc.NumThreads(); err == nil {
			stats["threads"] = threads
		}
		body["process"] = stats
	} else {
		s.log.WithError(err).Debug("Failed to inspect process")
	}

	s.mu.RLock()
	info := s.info
	s.mu.RUnlock()
	if info != nil {
		body["grpc"] = info()
	}

	c.JSON(http.StatusOK, body)
}

func (s *Server) handleUsage(c *gin.Context) {
	s.mu.RLock()
	summarizer := s.summary
	s.mu.RUnlock()

	if summarizer == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "usage summaries are not enabled"})
		return
	}

	window := 24 * time.Hour
	if raw := c.Query("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid window"})
			return
		}
		window = parsed
	}

	summary, err := summarizer.Summarize(c.Request.Context(), c.Param("application_id"), time.Now().Add(-window))
	if err != nil {
		s.log.WithError(err).Error("Failed to summarize usage")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to summarize usage"})
		return
	}
	c.JSON(http.StatusOK, summary)
}
