// Package api serves the read and trigger HTTP endpoints.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/jobharvest/harvester/internal/domain"
	"github.com/jobharvest/harvester/internal/monitoring"
)

// JobReader lists persisted postings.
type JobReader interface {
	ListJobs(ctx context.Context, q domain.JobQuery) ([]domain.JobPosting, error)
	Ping(ctx context.Context) error
}

// RunReports returns stored run outcomes.
type RunReports interface {
	LatestRunReport(ctx context.Context) (*domain.RunReport, error)
	RunReport(ctx context.Context, id string) (*domain.RunReport, error)
	Ping(ctx context.Context) error
}

// Trigger starts a scraping run in the background and returns its id.
type Trigger func() string

// Server holds the dependencies for the HTTP server.
type Server struct {
	addr       string
	router     http.Handler
	httpServer *http.Server
	jobs       JobReader
	runs       RunReports
	trigger    Trigger
	metrics    *monitoring.Metrics
	logger     *zap.Logger
}

func NewServer(addr string, jobs JobReader, runs RunReports, trigger Trigger, m *monitoring.Metrics, gatherer prometheus.Gatherer, l *zap.Logger) *Server {
	s := &Server{
		addr:    addr,
		jobs:    jobs,
		runs:    runs,
		trigger: trigger,
		metrics: m,
		logger:  l,
	}
	s.router = s.setupRouter(gatherer)
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
