package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jobharvest/harvester/internal/domain"
	"github.com/jobharvest/harvester/internal/monitoring"
	"github.com/jobharvest/harvester/internal/storage"
)

type fakeJobs struct {
	jobs    []domain.JobPosting
	err     error
	pingErr error
	last    domain.JobQuery
}

func (f *fakeJobs) ListJobs(_ context.Context, q domain.JobQuery) ([]domain.JobPosting, error) {
	f.last = q
	return f.jobs, f.err
}

func (f *fakeJobs) Ping(context.Context) error { return f.pingErr }

type fakeRuns struct {
	report  *domain.RunReport
	byID    map[string]*domain.RunReport
	err     error
	pingErr error
}

func (f *fakeRuns) LatestRunReport(context.Context) (*domain.RunReport, error) {
	return f.report, f.err
}

func (f *fakeRuns) RunReport(_ context.Context, id string) (*domain.RunReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.byID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return r, nil
}

func (f *fakeRuns) Ping(context.Context) error { return f.pingErr }

func newTestServer(jobs *fakeJobs, runs *fakeRuns, trigger Trigger) (*Server, *monitoring.Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	m := monitoring.NewMetrics(reg)
	if trigger == nil {
		trigger = func() string { return "run-id" }
	}
	return NewServer(":0", jobs, runs, trigger, m, reg, zap.NewNop()), m, reg
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestListJobs(t *testing.T) {
	company := "Acme"
	jobs := &fakeJobs{jobs: []domain.JobPosting{{
		ID:        1,
		Platform:  "LinkedIn",
		Company:   &company,
		Title:     "Software Engineer",
		URL:       "https://linkedin.example/jobs/1",
		ScrapedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}}}
	s, _, _ := newTestServer(jobs, &fakeRuns{}, nil)

	rec := do(t, s.Handler(), http.MethodGet, "/jobs?page=2&limit=10&title=engineer&platform=LinkedIn")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, domain.JobQuery{Title: "engineer", Platform: "LinkedIn", Page: 2, Limit: 10}, jobs.last)

	var body struct {
		Jobs  []map[string]any `json:"jobs"`
		Total int              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Total)
	require.Len(t, body.Jobs, 1)
	assert.Equal(t, "Acme", body.Jobs[0]["company"])
	assert.Nil(t, body.Jobs[0]["date_posted"])
	assert.Equal(t, "2024-05-01T10:00:00Z", body.Jobs[0]["scraped_at"])
}

func TestListJobs_Query(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		wantCode  int
		wantQuery domain.JobQuery
	}{
		{"defaults", "/jobs", http.StatusOK, domain.JobQuery{Page: 1, Limit: 50}},
		{"limit capped", "/jobs?limit=1000", http.StatusOK, domain.JobQuery{Page: 1, Limit: 200}},
		{"zero page", "/jobs?page=0", http.StatusBadRequest, domain.JobQuery{}},
		{"bad limit", "/jobs?limit=abc", http.StatusBadRequest, domain.JobQuery{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs := &fakeJobs{}
			s, _, _ := newTestServer(jobs, &fakeRuns{}, nil)
			rec := do(t, s.Handler(), http.MethodGet, tt.target)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantQuery, jobs.last)
			if tt.wantCode == http.StatusOK {
				assert.JSONEq(t, `{"jobs":[],"total":0}`, rec.Body.String())
			}
		})
	}
}

func TestListJobs_StoreError(t *testing.T) {
	s, _, _ := newTestServer(&fakeJobs{err: errors.New("db down")}, &fakeRuns{}, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/jobs")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestTriggerScrape(t *testing.T) {
	calls := 0
	s, _, _ := newTestServer(&fakeJobs{}, &fakeRuns{}, func() string {
		calls++
		return "abc-123"
	})

	rec := do(t, s.Handler(), http.MethodPost, "/scrape")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"message":"Scraping triggered successfully","run_id":"abc-123"}`, rec.Body.String())
	assert.Equal(t, 1, calls)

	rec = do(t, s.Handler(), http.MethodGet, "/scrape")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, 1, calls)
}

func TestLatestRun(t *testing.T) {
	s, _, _ := newTestServer(&fakeJobs{}, &fakeRuns{err: storage.ErrNotFound}, nil)
	assert.Equal(t, http.StatusNotFound, do(t, s.Handler(), http.MethodGet, "/runs/latest").Code)

	report := &domain.RunReport{ID: "r1", State: domain.RunCompletedWithFailures}
	s, _, _ = newTestServer(&fakeJobs{}, &fakeRuns{report: report}, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/runs/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"completed_with_failures"`)
}

func TestGetRun(t *testing.T) {
	runs := &fakeRuns{
		report: &domain.RunReport{ID: "newest", State: domain.RunRunning},
		byID: map[string]*domain.RunReport{
			"r1": {ID: "r1", State: domain.RunCompleted},
		},
	}
	s, _, _ := newTestServer(&fakeJobs{}, runs, nil)

	rec := do(t, s.Handler(), http.MethodGet, "/runs/r1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"r1"`)

	assert.Equal(t, http.StatusNotFound, do(t, s.Handler(), http.MethodGet, "/runs/missing").Code)

	// The static route wins over the id pattern.
	rec = do(t, s.Handler(), http.MethodGet, "/runs/latest")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"newest"`)

	s, _, _ = newTestServer(&fakeJobs{}, &fakeRuns{err: errors.New("redis down")}, nil)
	assert.Equal(t, http.StatusInternalServerError, do(t, s.Handler(), http.MethodGet, "/runs/r1").Code)
}

func TestHealthCheck(t *testing.T) {
	s, _, _ := newTestServer(&fakeJobs{}, &fakeRuns{}, nil)
	rec := do(t, s.Handler(), http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"postgres":"healthy","redis":"healthy"}`, rec.Body.String())

	s, _, _ = newTestServer(&fakeJobs{}, &fakeRuns{pingErr: errors.New("refused")}, nil)
	rec = do(t, s.Handler(), http.MethodGet, "/api/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"postgres":"healthy","redis":"unhealthy"}`, rec.Body.String())
}

func TestMetricsEndpointAndMiddleware(t *testing.T) {
	s, m, _ := newTestServer(&fakeJobs{}, &fakeRuns{}, nil)
	do(t, s.Handler(), http.MethodGet, "/jobs")
	do(t, s.Handler(), http.MethodGet, "/jobs?page=-1")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/jobs", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/jobs", "400")))

	rec := do(t, s.Handler(), http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "http_requests_total"))
}
