package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jobharvest/harvester/internal/domain"
	"github.com/jobharvest/harvester/internal/storage"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

type listJobsResponse struct {
	Jobs  []domain.JobPosting `json:"jobs"`
	Total int                 `json:"total"`
}

type triggerResponse struct {
	Message string `json:"message"`
	RunID   string `json:"run_id"`
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	q, err := parseJobQuery(r)
	if err != nil {
		s.respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobs, err := s.jobs.ListJobs(r.Context(), q)
	if err != nil {
		s.logger.Error("failed to list jobs", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not retrieve jobs")
		return
	}
	if jobs == nil {
		jobs = []domain.JobPosting{}
	}
	// total counts the returned page.
	s.respondWithJSON(w, http.StatusOK, listJobsResponse{Jobs: jobs, Total: len(jobs)})
}

func (s *Server) handleTriggerScrape(w http.ResponseWriter, r *http.Request) {
	id := s.trigger()
	s.logger.Info("scraping run triggered via API", zap.String("run_id", id))
	s.respondWithJSON(w, http.StatusAccepted, triggerResponse{
		Message: "Scraping triggered successfully",
		RunID:   id,
	})
}

func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	report, err := s.runs.LatestRunReport(r.Context())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondWithError(w, http.StatusNotFound, "No run has completed yet")
			return
		}
		s.logger.Error("failed to load latest run report", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not retrieve run report")
		return
	}
	s.respondWithJSON(w, http.StatusOK, report)
}

// handleGetRun looks up a report by the id returned from POST /scrape. Reports
// expire with their Redis TTL.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	report, err := s.runs.RunReport(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondWithError(w, http.StatusNotFound, "Run not found")
			return
		}
		s.logger.Error("failed to load run report", zap.String("run_id", id), zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not retrieve run report")
		return
	}
	s.respondWithJSON(w, http.StatusOK, report)
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	healthStatus := make(map[string]string)

	if err := s.jobs.Ping(ctx); err != nil {
		healthStatus["postgres"] = "unhealthy"
		s.logger.Error("health check failed for postgres", zap.Error(err))
	} else {
		healthStatus["postgres"] = "healthy"
	}

	if err := s.runs.Ping(ctx); err != nil {
		healthStatus["redis"] = "unhealthy"
		s.logger.Error("health check failed for redis", zap.Error(err))
	} else {
		healthStatus["redis"] = "healthy"
	}

	isHealthy := healthStatus["postgres"] == "healthy" && healthStatus["redis"] == "healthy"
	if !isHealthy {
		s.respondWithJSON(w, http.StatusServiceUnavailable, healthStatus)
		return
	}
	s.respondWithJSON(w, http.StatusOK, healthStatus)
}

func parseJobQuery(r *http.Request) (domain.JobQuery, error) {
	v := r.URL.Query()
	q := domain.JobQuery{
		Title:    strings.TrimSpace(v.Get("title")),
		Platform: strings.TrimSpace(v.Get("platform")),
		Page:     1,
		Limit:    defaultLimit,
	}
	if raw := v.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return q, errors.New("page must be a positive integer")
		}
		q.Page = n
	}
	if raw := v.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return q, errors.New("limit must be a positive integer")
		}
		q.Limit = min(n, maxLimit)
	}
	return q, nil
}

// --- Helper Functions ---

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to encode JSON response", zap.Error(err))
		code = http.StatusInternalServerError
		response = []byte(`{"error":"internal error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}
