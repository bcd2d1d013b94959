package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/maltedev/preciosjustos-scraper/internal/models"
	"github.com/maltedev/preciosjustos-scraper/internal/queue"
	"github.com/maltedev/preciosjustos-scraper/internal/storage"
)

// worker takes regions off the queue until it is drained or ctx is done.
func (m *Manager) worker(ctx context.Context, id int, q queue.Queue, collect func(Result)) {
	logger := m.logger.With("worker", id)
	logger.Debug("worker started")

	for {
		if ctx.Err() != nil {
			logger.Debug("worker stopping", "reason", ctx.Err())
			return
		}

		task, err := q.Pop(ctx)
		if err != nil {
			if !errors.Is(err, queue.ErrQueueClosed) {
				logger.Debug("worker stopping", "reason", err)
			}
			return
		}

		collect(m.processRegion(ctx, task.Region))
	}
}

// processRegion scrapes one region and hands its records to the sink.
func (m *Manager) processRegion(ctx context.Context, region models.Region) (result Result) {
	logger := m.logger.With("region", region.Code)
	start := time.Now()
	result.Region = region

	m.metrics.JobStarted()
	m.markStarted(region.Code)

	defer func() {
		if v := recover(); v != nil {
			result.Err = &PanicError{Value: v}
		}
		result.Duration = time.Since(start)

		if result.Err != nil {
			logger.Error("region failed",
				"error", result.Err,
				"error_type", ErrorType(result.Err),
				"duration", result.Duration)
			m.metrics.JobFinished(storage.StatusFailed, result.Duration)
			m.recordFailure(region, result.Err)
			return
		}

		logger.Info("region completed",
			"records", result.Records,
			"pages", result.Pages,
			"files", result.Files,
			"duration", result.Duration)
		m.metrics.JobFinished(storage.StatusCompleted, result.Duration)
		if m.runLog != nil {
			if err := m.runLog.Complete(region.Code, result.Records, result.Pages, result.Files); err != nil {
				logger.Warn("failed to update run log", "error", err)
			}
		}
	}()

	scrape, err := m.scraper.Scrape(ctx, region)
	if err != nil {
		result.Err = err
		return result
	}
	result.Records = len(scrape.Records)
	result.Pages = scrape.Pages

	files, err := m.sink.Write(region, scrape.Records)
	result.Files = files
	if err != nil {
		result.Err = err
		return result
	}

	logger.Info("items saved", "records", result.Records, "files", files)
	return result
}

func (m *Manager) markStarted(code string) {
	if m.runLog == nil {
		return
	}
	if err := m.runLog.Start(code); err != nil {
		m.logger.Warn("failed to update run log", "region", code, "error", err)
	}
}

func (m *Manager) recordFailure(region models.Region, cause error) {
	m.metrics.IncError(ErrorType(cause))
	if m.runLog == nil {
		return
	}
	if err := m.runLog.Fail(region.Code, cause); err != nil {
		m.logger.Warn("failed to update run log", "region", region.Code, "error", err)
	}
}
