package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maltedev/preciosjustos-scraper/internal/browser"
	"github.com/maltedev/preciosjustos-scraper/internal/metrics"
	"github.com/maltedev/preciosjustos-scraper/internal/models"
	"github.com/maltedev/preciosjustos-scraper/internal/parser"
)

// RegionJob scrapes every page of one region with a session of its own.
type RegionJob struct {
	launcher  browser.Launcher
	parser    parser.Parser
	selectors Selectors
	opts      Options
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Scrape is the outcome of a finished region job.
type Scrape struct {
	Region   models.Region
	Records  []models.ProductRecord
	Pages    int
	Duration time.Duration
}

func NewRegionJob(launcher browser.Launcher, p parser.Parser, selectors Selectors, opts Options, m *metrics.Metrics, logger *slog.Logger) *RegionJob {
	return &RegionJob{
		launcher:  launcher,
		parser:    p,
		selectors: selectors,
		opts:      opts,
		metrics:   m,
		logger:    logger,
	}
}

// Run returns the region's records in page order.
func (j *RegionJob) Run(ctx context.Context, region models.Region) ([]models.ProductRecord, error) {
	s, err := j.Scrape(ctx, region)
	if err != nil {
		return nil, err
	}
	return s.Records, nil
}

func (j *RegionJob) Scrape(ctx context.Context, region models.Region) (*Scrape, error) {
	start := time.Now()
	logger := j.logger.With("component", "region_job", "region", region.Code)

	if j.opts.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.opts.JobTimeout)
		defer cancel()
	}

	logger.Info("starting region", "description", region.Description, "url", region.URL)

	session, err := j.launcher.Start(ctx)
	if err != nil {
		return nil, &SessionError{Region: region.Code, Err: err}
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("failed to close session", "error", err)
		}
	}()

	if err := session.Navigate(ctx, region.URL); err != nil {
		return nil, &NavigationError{Region: region.Code, URL: region.URL, Err: err}
	}

	ps := NewPageScraper(session, j.parser, region, j.selectors, j.opts, j.logger)

	var records []models.ProductRecord
	page := 0
	for {
		page++
		logger.Info("scraping page", "page", page)

		rows, err := ps.ScrapeCurrentPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("region %s: %w", region.Code, err)
		}
		records = append(records, rows...)
		j.metrics.ObservePage(region.Code, len(rows))
		logger.Info("page scraped", "page", page, "rows", len(rows))

		if !ps.HasNextPage(ctx) {
			break
		}

		if err := ps.AdvanceToNextPage(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			logger.Warn("could not advance pagination, stopping", "page", page, "error", err)
			break
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("region %s stopped on page %d: %w", region.Code, page, err)
	}

	s := &Scrape{
		Region:   region,
		Records:  records,
		Pages:    page,
		Duration: time.Since(start),
	}
	logger.Info("region scraped", "pages", s.Pages, "records", len(s.Records), "duration", s.Duration)
	return s, nil
}
