package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/maltedev/preciosjustos-scraper/internal/browser"
	"github.com/maltedev/preciosjustos-scraper/internal/config"
	"github.com/maltedev/preciosjustos-scraper/internal/models"
	"github.com/maltedev/preciosjustos-scraper/internal/parser"
	"github.com/maltedev/preciosjustos-scraper/internal/regions"
	"github.com/maltedev/preciosjustos-scraper/internal/scraper"
	"github.com/maltedev/preciosjustos-scraper/pkg/logger"
)

func main() {
	var (
		code     = flag.String("region", "AMBA", "Region code to inspect")
		url      = flag.String("url", "", "Inspect this URL instead of the region's")
		html     = flag.String("html", "debug.html", "HTML output filename")
		dialect  = flag.String("dialect", "", "Locator dialect: xpath, css (default from config)")
		samples  = flag.Int("samples", 3, "Rows to print")
		headless = flag.Bool("headless", false, "Run browser in headless mode")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *dialect != "" && *dialect != cfg.Selectors.Dialect {
		cfg.Selectors = config.DefaultSelectors(*dialect)
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Starting Debug Mode")

	selected, err := regions.Select(regions.Default(), []string{*code})
	if err != nil {
		logger.Error("Unknown region", "error", err)
		os.Exit(1)
	}
	region := selected[0]
	if *url != "" {
		region.URL = *url
	}

	p, err := parser.New(cfg.Selectors.Dialect)
	if err != nil {
		logger.Error("Failed to set up parser", "error", err)
		os.Exit(1)
	}

	opts := browser.DefaultOptions()
	opts.Headless = *headless
	opts.Timeout = cfg.Browser.Timeout
	opts.SlowMo = cfg.Browser.SlowMo
	opts.Logger = logger

	launcher, err := browser.NewLauncher(cfg.Browser.Engine, opts)
	if err != nil {
		logger.Error("Failed to initialize browser", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	session, err := launcher.Start(ctx)
	if err != nil {
		logger.Error("Failed to start browser", "error", err)
		os.Exit(1)
	}
	defer session.Close()

	logger.Info("Navigating to URL", "region", region.Code, "url", region.URL)
	if err := session.Navigate(ctx, region.URL); err != nil {
		logger.Error("Failed to navigate", "error", err)
		os.Exit(1)
	}

	sel := scraper.Selectors{
		Rows:        cfg.Selectors.Rows,
		EAN:         cfg.Selectors.EAN,
		Description: cfg.Selectors.Description,
		Price:       cfg.Selectors.Price,
		NextPage:    cfg.Selectors.NextPage,
	}
	report, err := inspect(ctx, session, p, region, sel, logger)
	if err != nil {
		logger.Error("Failed to inspect page", "error", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*html, []byte(report.Content), 0644); err != nil {
		logger.Error("Failed to save HTML", "error", err)
	} else {
		logger.Info("HTML saved", "file", *html)
	}

	logger.Info("Found rows", "selector", sel.Rows, "count", len(report.Records))
	for i, r := range report.Records {
		if i >= *samples {
			break
		}
		logger.Info("Sample row", "index", i, "ean", r.EAN, "description", r.Description, "price", r.Price)
	}
	if report.HasNext {
		logger.Info("Next page control found", "selector", sel.NextPage)
	} else {
		logger.Warn("No next page control", "selector", sel.NextPage)
	}

	fmt.Printf("\n%s: %d rows on first page, next page: %t\n", region.Code, len(report.Records), report.HasNext)
}

// Report is what the first page of a region shows.
type Report struct {
	Content string
	Records []models.ProductRecord
	HasNext bool
}

func inspect(ctx context.Context, session browser.Session, p parser.Parser, region models.Region, sel scraper.Selectors, logger *slog.Logger) (*Report, error) {
	content, err := session.Content(ctx)
	if err != nil {
		return nil, err
	}

	opts := scraper.DefaultOptions()
	opts.NextPageAttempts = 1
	ps := scraper.NewPageScraper(session, p, region, sel, opts, logger)

	records, err := ps.ScrapeCurrentPage(ctx)
	if err != nil {
		return nil, err
	}

	return &Report{
		Content: content,
		Records: records,
		HasNext: ps.HasNextPage(ctx),
	}, nil
}
