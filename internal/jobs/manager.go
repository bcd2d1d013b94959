package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maltedev/preciosjustos-scraper/internal/metrics"
	"github.com/maltedev/preciosjustos-scraper/internal/models"
	"github.com/maltedev/preciosjustos-scraper/internal/queue"
	"github.com/maltedev/preciosjustos-scraper/internal/scraper"
	"github.com/maltedev/preciosjustos-scraper/internal/storage"
)

// RegionScraper scrapes one region to completion.
type RegionScraper interface {
	Scrape(ctx context.Context, region models.Region) (*scraper.Scrape, error)
}

// Manager runs one job per region on a bounded pool of workers and writes
// each region's records as soon as its job finishes.
type Manager struct {
	scraper RegionScraper
	sink    storage.Sink
	runLog  *storage.RunLog
	metrics *metrics.Metrics
	workers int
	logger  *slog.Logger
}

// Result is the outcome of one region. Err is nil when the region was
// scraped and written.
type Result struct {
	Region   models.Region
	Records  int
	Pages    int
	Files    []string
	Duration time.Duration
	Err      error
}

func (r Result) Failed() bool {
	return r.Err != nil
}

// PanicError carries a panic recovered from a region job.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("region job panicked: %v", e.Value)
}

func NewManager(s RegionScraper, sink storage.Sink, runLog *storage.RunLog, m *metrics.Metrics, workers int, logger *slog.Logger) *Manager {
	return &Manager{
		scraper: s,
		sink:    sink,
		runLog:  runLog,
		metrics: m,
		workers: max(workers, 1),
		logger:  logger.With("component", "job_manager"),
	}
}

// RunAll scrapes every region and returns one Result per region in
// completion order. A failing region never stops the others. Regions still
// queued when ctx is done are reported with the context error.
func (m *Manager) RunAll(ctx context.Context, regions []models.Region) []Result {
	q := queue.NewInMemoryQueue()
	if err := q.PushAll(regions, func(r models.Region) string { return r.Code }); err != nil {
		m.logger.Error("failed to queue regions", "error", err)
		return nil
	}
	q.Close()

	workers := min(m.workers, len(regions))
	m.logger.Info("run started", "regions", len(regions), "workers", workers)

	var (
		mu      sync.Mutex
		results = make([]Result, 0, len(regions))
		wg      sync.WaitGroup
	)
	collect := func(r Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}

	for i := 1; i <= workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			m.worker(ctx, id, q, collect)
		}(i)
	}
	wg.Wait()

	for q.Size() > 0 {
		task, err := q.Pop(context.Background())
		if err != nil {
			break
		}
		cause := fmt.Errorf("region %s not started: %w", task.Region.Code, context.Cause(ctx))
		m.recordFailure(task.Region, cause)
		collect(Result{Region: task.Region, Err: cause})
	}

	m.logSummary(results)
	return results
}

func (m *Manager) logSummary(results []Result) {
	var failed []string
	records := 0
	for _, r := range results {
		if r.Failed() {
			failed = append(failed, r.Region.Code)
			continue
		}
		records += r.Records
	}

	if len(failed) > 0 {
		m.logger.Warn("run finished with failures",
			"regions", len(results),
			"failed", len(failed),
			"failed_regions", failed,
			"records", records)
		return
	}
	m.logger.Info("run finished", "regions", len(results), "records", records)
}

// ErrorType classifies a region failure for metrics and the run log.
func ErrorType(err error) string {
	if err == nil {
		return "none"
	}

	// Context expiry wins over the step that happened to be running.
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}

	var sessionErr *scraper.SessionError
	if errors.As(err, &sessionErr) {
		return "session"
	}
	var navErr *scraper.NavigationError
	if errors.As(err, &navErr) {
		return "navigation"
	}
	var outErr *storage.OutputError
	if errors.As(err, &outErr) {
		return "output"
	}
	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		return "panic"
	}
	return "other"
}
