package pipeline

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jobharvest/harvester/internal/domain"
)

// RunFunc performs one run under the given id.
type RunFunc func(ctx context.Context, runID string) (*domain.RunReport, error)

// ReportStore keeps the outcome of finished runs.
type ReportStore interface {
	SaveRunReport(ctx context.Context, r *domain.RunReport) error
}

// Runner starts runs in the background. Overlapping runs are allowed; the
// store's uniqueness constraint is what keeps them from duplicating rows.
type Runner struct {
	run     RunFunc
	reports ReportStore
	logger  *zap.Logger

	baseCtx context.Context
	wg      sync.WaitGroup
}

// NewRunner ties background runs to baseCtx. Cancelling it stops them after
// the URL each one is working on.
func NewRunner(baseCtx context.Context, run RunFunc, reports ReportStore, logger *zap.Logger) *Runner {
	return &Runner{
		run:     run,
		reports: reports,
		logger:  logger,
		baseCtx: baseCtx,
	}
}

// Trigger starts a run and returns its id without waiting for it.
func (r *Runner) Trigger() string {
	id := uuid.NewString()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.execute(r.baseCtx, id)
	}()
	return id
}

// RunNow performs a run in the caller's goroutine.
func (r *Runner) RunNow(ctx context.Context) (*domain.RunReport, error) {
	return r.execute(ctx, uuid.NewString())
}

// Wait blocks until every triggered run has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) execute(ctx context.Context, id string) (*domain.RunReport, error) {
	report, err := r.run(ctx, id)
	if err != nil {
		r.logger.Error("scraping run failed", zap.String("run_id", id), zap.Error(err))
	}
	if report != nil && r.reports != nil {
		if serr := r.reports.SaveRunReport(context.WithoutCancel(ctx), report); serr != nil {
			r.logger.Warn("failed to save run report", zap.String("run_id", id), zap.Error(serr))
		}
	}
	return report, err
}
