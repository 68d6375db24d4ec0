// Package pipeline drives one scraping run across every configured source.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jobharvest/harvester/internal/browser"
	"github.com/jobharvest/harvester/internal/domain"
	"github.com/jobharvest/harvester/internal/extractor"
	"github.com/jobharvest/harvester/internal/monitoring"
	"github.com/jobharvest/harvester/internal/relevance"
)

// JobStore persists accepted postings. InsertIfNew must be atomic per call.
type JobStore interface {
	InsertIfNew(ctx context.Context, p *domain.JobPosting) (domain.InsertOutcome, error)
}

// Scorer rates a description against the keyword profile.
type Scorer interface {
	Score(ctx context.Context, description string) (float64, error)
}

// Options configures an Orchestrator.
type Options struct {
	Sources     []domain.Source
	Concurrency int // browser sessions, one source each at a time
	Fetch       browser.FetchOptions
}

// Orchestrator runs the fetch, extract, score and persist flow for all sources.
type Orchestrator struct {
	opts      Options
	launcher  browser.Launcher
	extractor *extractor.Extractor
	scorer    Scorer
	store     JobStore
	metrics   *monitoring.Metrics
	logger    *zap.Logger

	now func() time.Time
}

func NewOrchestrator(
	opts Options,
	launcher browser.Launcher,
	ext *extractor.Extractor,
	scorer Scorer,
	store JobStore,
	m *monitoring.Metrics,
	logger *zap.Logger,
) *Orchestrator {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Orchestrator{
		opts:      opts,
		launcher:  launcher,
		extractor: ext,
		scorer:    scorer,
		store:     store,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Run performs one complete pass over the sources and returns its report.
// The only error returned is *domain.SessionInitError; every other failure
// ends up in the per-source results. Cancelling ctx stops the run after the
// URL in flight completes, and the report is marked aborted. An empty runID
// gets a fresh one.
func (o *Orchestrator) Run(ctx context.Context, runID string) (*domain.RunReport, error) {
	if runID == "" {
		runID = uuid.NewString()
	}
	report := &domain.RunReport{
		ID:        runID,
		State:     domain.RunRunning,
		StartedAt: o.now().UTC(),
	}
	log := o.logger.With(zap.String("run_id", report.ID))
	log.Info("scraping run started", zap.Int("sources", len(o.opts.Sources)))

	if len(o.opts.Sources) == 0 {
		report.Results = []domain.RunResult{}
		o.finish(report, domain.RunCompleted, nil)
		log.Warn("no sources configured, nothing to scrape")
		return report, nil
	}

	sessions, err := o.launchSessions(ctx)
	if err != nil {
		initErr := &domain.SessionInitError{Err: err}
		o.finish(report, domain.RunAborted, initErr)
		log.Error("scraping run aborted", zap.Error(initErr))
		return report, initErr
	}
	defer o.closeSessions(sessions)

	scrapedAt := report.StartedAt.Truncate(time.Second)
	results := make([]domain.RunResult, len(o.opts.Sources))
	started := make([]bool, len(o.opts.Sources))
	for i, src := range o.opts.Sources {
		results[i].SourceName = src.Name
	}

	queue := make(chan int)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(queue)
		for i := range o.opts.Sources {
			select {
			case queue <- i:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})
	for _, s := range sessions {
		fetcher := browser.NewFetcher(s, o.opts.Fetch, o.metrics, log)
		g.Go(func() error {
			for i := range queue {
				started[i] = o.runSource(ctx, fetcher, o.opts.Sources[i], scrapedAt, &results[i], log)
			}
			return nil
		})
	}
	_ = g.Wait()
	report.Results = results

	state := domain.RunCompleted
	var runErr error
	switch {
	case ctx.Err() != nil:
		state = domain.RunAborted
		runErr = fmt.Errorf("run cancelled: %w", context.Cause(ctx))
		for i := range results {
			if !started[i] {
				markFailed(&results[i], errors.New("not processed: run cancelled"))
			}
		}
	case anyFailed(results):
		state = domain.RunCompletedWithFailures
	}
	o.finish(report, state, runErr)

	log.Info("scraping run finished",
		zap.String("state", string(report.State)),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

// launchSessions opens one session per worker. A single failure closes the
// sessions already opened and fails the run.
func (o *Orchestrator) launchSessions(ctx context.Context) ([]browser.Session, error) {
	n := min(o.opts.Concurrency, len(o.opts.Sources))
	sessions := make([]browser.Session, 0, n)
	for range n {
		s, err := o.launcher.Launch(ctx)
		if err != nil {
			o.closeSessions(sessions)
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

func (o *Orchestrator) closeSessions(sessions []browser.Session) {
	for _, s := range sessions {
		if err := s.Close(); err != nil {
			o.logger.Warn("failed to close browser session", zap.Error(err))
		}
	}
}

// runSource processes one source with the worker's own fetcher. It reports
// false when the run was cancelled before the source was started.
func (o *Orchestrator) runSource(
	ctx context.Context,
	fetcher *browser.Fetcher,
	src domain.Source,
	scrapedAt time.Time,
	res *domain.RunResult,
	log *zap.Logger,
) bool {
	log = log.With(zap.String("source", src.Name))
	if ctx.Err() != nil {
		return false
	}
	log.Info("scraping source", zap.String("listing_url", src.ListingURL))

	page, err := fetcher.Fetch(ctx, src.ListingURL)
	if err != nil {
		markFailed(res, err)
		o.metrics.IncSource("failed")
		log.Error("listing fetch failed", zap.Error(err))
		return true
	}

	candidates, err := o.extractor.Listing(page.HTML, src)
	if err != nil {
		markFailed(res, err)
		o.metrics.IncSource("failed")
		log.Error("listing extraction failed", zap.Error(err))
		return true
	}

	for ref := range candidates {
		if ctx.Err() != nil {
			setLastError(res, fmt.Errorf("stopped early: %w", context.Cause(ctx)))
			break
		}
		res.Attempted++
		o.processCandidate(ctx, fetcher, src, ref, scrapedAt, res, log)
	}

	o.metrics.IncSource("ok")
	log.Info("source done",
		zap.Int("attempted", res.Attempted),
		zap.Int("inserted", res.Inserted),
		zap.Int("skipped_duplicate", res.SkippedDuplicate),
		zap.Int("skipped_irrelevant", res.SkippedIrrelevant),
		zap.Int("persist_errors", res.PersistErrors),
	)
	return true
}

func (o *Orchestrator) processCandidate(
	ctx context.Context,
	fetcher *browser.Fetcher,
	src domain.Source,
	ref domain.CandidateRef,
	scrapedAt time.Time,
	res *domain.RunResult,
	log *zap.Logger,
) {
	log = log.With(zap.String("url", ref.URL))

	// Detail pages are best effort.
	var description *string
	page, err := fetcher.Fetch(ctx, ref.URL)
	if err != nil {
		log.Warn("detail fetch failed", zap.Error(err))
	} else {
		description = o.extractor.Description(page.HTML)
	}

	if description == nil {
		res.SkippedIrrelevant++
		o.metrics.IncCandidate("skipped_irrelevant")
		log.Debug("rejected: no description")
		return
	}

	// Once a description is in hand the candidate is finished even if the
	// run is being cancelled.
	work := context.WithoutCancel(ctx)
	score, err := o.scorer.Score(work, *description)
	if err != nil {
		res.SkippedIrrelevant++
		o.metrics.IncCandidate("skipped_irrelevant")
		log.Warn("rejected: scoring failed", zap.Error(err))
		return
	}
	o.metrics.ObserveScore(score)
	if !relevance.Accept(score) {
		res.SkippedIrrelevant++
		o.metrics.IncCandidate("skipped_irrelevant")
		log.Debug("rejected: below threshold", zap.Float64("score", score))
		return
	}

	posting := &domain.JobPosting{
		Platform:    src.Name,
		Company:     ref.Company,
		Title:       ref.Title,
		URL:         ref.URL,
		DatePosted:  ref.DatePosted,
		Description: description,
		ScrapedAt:   scrapedAt,
	}
	outcome, err := o.store.InsertIfNew(work, posting)
	if err != nil {
		res.PersistErrors++
		setLastError(res, err)
		o.metrics.IncCandidate("persist_error")
		log.Error("failed to persist posting", zap.Error(err))
		return
	}
	switch outcome {
	case domain.Inserted:
		res.Inserted++
	case domain.SkippedDuplicate:
		res.SkippedDuplicate++
	}
	o.metrics.IncCandidate(outcome.String())
	log.Info("posting stored", zap.String("outcome", outcome.String()), zap.Float64("score", score))
}

func (o *Orchestrator) finish(report *domain.RunReport, state domain.RunState, err error) {
	finished := o.now().UTC()
	report.State = state
	report.FinishedAt = &finished
	if err != nil {
		report.Error = err.Error()
	}
	o.metrics.IncRun(string(state))
	o.metrics.ObserveRunDuration(finished.Sub(report.StartedAt))
}

func markFailed(res *domain.RunResult, err error) {
	res.Failed = true
	setLastError(res, err)
}

func setLastError(res *domain.RunResult, err error) {
	msg := err.Error()
	res.LastError = &msg
}

func anyFailed(results []domain.RunResult) bool {
	for _, r := range results {
		if r.Failed {
			return true
		}
	}
	return false
}
