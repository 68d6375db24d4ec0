package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jobharvest/harvester/internal/domain"
)

type memReports struct {
	mu      sync.Mutex
	reports []*domain.RunReport
	err     error
}

func (m *memReports) SaveRunReport(_ context.Context, r *domain.RunReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, r)
	return m.err
}

func TestRunner_TriggerRunsInBackground(t *testing.T) {
	release := make(chan struct{})
	run := func(_ context.Context, id string) (*domain.RunReport, error) {
		<-release
		return &domain.RunReport{ID: id, State: domain.RunCompleted}, nil
	}
	reports := &memReports{}
	r := NewRunner(context.Background(), run, reports, zap.NewNop())

	id := r.Trigger()
	assert.NotEmpty(t, id)

	close(release)
	r.Wait()

	require.Len(t, reports.reports, 1)
	assert.Equal(t, id, reports.reports[0].ID)
}

func TestRunner_SavesAbortedReport(t *testing.T) {
	initErr := &domain.SessionInitError{Err: errors.New("no chrome")}
	run := func(_ context.Context, id string) (*domain.RunReport, error) {
		return &domain.RunReport{ID: id, State: domain.RunAborted, Error: initErr.Error()}, initErr
	}
	reports := &memReports{err: errors.New("redis down")}
	r := NewRunner(context.Background(), run, reports, zap.NewNop())

	report, err := r.RunNow(context.Background())
	require.ErrorAs(t, err, new(*domain.SessionInitError))
	assert.Equal(t, domain.RunAborted, report.State)
	assert.Len(t, reports.reports, 1)
}

func TestRunner_NilReportStore(t *testing.T) {
	run := func(_ context.Context, id string) (*domain.RunReport, error) {
		return &domain.RunReport{ID: id}, nil
	}
	r := NewRunner(context.Background(), run, nil, zap.NewNop())
	report, err := r.RunNow(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, report.ID)
}
