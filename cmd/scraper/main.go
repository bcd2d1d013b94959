package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/maltedev/preciosjustos-scraper/internal/api"
	"github.com/maltedev/preciosjustos-scraper/internal/browser"
	"github.com/maltedev/preciosjustos-scraper/internal/config"
	"github.com/maltedev/preciosjustos-scraper/internal/jobs"
	"github.com/maltedev/preciosjustos-scraper/internal/metrics"
	"github.com/maltedev/preciosjustos-scraper/internal/models"
	"github.com/maltedev/preciosjustos-scraper/internal/parser"
	"github.com/maltedev/preciosjustos-scraper/internal/regions"
	"github.com/maltedev/preciosjustos-scraper/internal/scraper"
	"github.com/maltedev/preciosjustos-scraper/internal/storage"
	"github.com/maltedev/preciosjustos-scraper/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var (
		regionCodes = flag.String("regions", strings.Join(cfg.Scraper.Regions, ","), "Comma-separated region codes to scrape (default: all)")
		regionsFile = flag.String("regions-file", cfg.Scraper.RegionsFile, "YAML file or http(s) URL replacing the built-in region table")
		workers     = flag.Int("workers", cfg.Scraper.Workers, "Regions scraped concurrently")
		engine      = flag.String("engine", cfg.Browser.Engine, "Browser engine: playwright, chromedp")
		dialect     = flag.String("dialect", cfg.Selectors.Dialect, "Locator dialect: xpath, css")
		outputDir   = flag.String("output", cfg.Output.Dir, "Output directory")
		format      = flag.String("format", cfg.Output.Format, "Output format: csv, json, dual")
		headless    = flag.Bool("headless", cfg.Browser.Headless, "Run browser in headless mode")
		settle      = flag.String("settle", cfg.Scraper.SettleMode, "Wait after a page change: mutation, delay")
		missing     = flag.String("missing", cfg.Scraper.MissingValue, "Value written for fields missing from a row")
		addr        = flag.String("addr", cfg.Server.Addr, "Serve run status and metrics on this address while scraping")
		logLevel    = flag.String("log-level", cfg.Logging.Level, "Log level: debug, info, warn, error")
		logFormat   = flag.String("log-format", cfg.Logging.Format, "Log format: text, json")
		strict      = flag.Bool("strict", false, "Exit with status 1 when any region fails")
		summary     = flag.Bool("summary", true, "Print a per-region summary table when the run ends")
	)
	flag.Parse()

	cfg.Scraper.Regions = config.SplitList(*regionCodes)
	cfg.Scraper.RegionsFile = *regionsFile
	cfg.Scraper.Workers = *workers
	cfg.Scraper.SettleMode = *settle
	cfg.Scraper.MissingValue = *missing
	cfg.Browser.Engine = *engine
	cfg.Browser.Headless = *headless
	if *dialect != cfg.Selectors.Dialect {
		cfg.Selectors = config.DefaultSelectors(*dialect)
		cfg.Selectors.Dialect = *dialect
	}
	cfg.Output.Dir = *outputDir
	cfg.Output.Format = *format
	cfg.Server.Addr = *addr
	cfg.Logging.Level = *logLevel
	cfg.Logging.Format = *logFormat

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Starting Precios Justos scraper")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	targets, err := loadRegions(ctx, cfg.Scraper, regions.NewClient(cfg.Browser.Timeout))
	if err != nil {
		logger.Error("Failed to load regions", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	os.Exit(run(ctx, cfg, targets, *strict, *summary, logger))
}

func run(ctx context.Context, cfg *config.Config, targets []models.Region, strict, summary bool, logger *slog.Logger) int {
	runDate := time.Now()

	opts := browserOptions(cfg.Browser)
	opts.Logger = logger
	launcher, err := browser.NewLauncher(cfg.Browser.Engine, opts)
	if err != nil {
		logger.Error("Failed to set up browser", "error", err)
		return 1
	}

	p, err := parser.New(cfg.Selectors.Dialect)
	if err != nil {
		logger.Error("Failed to set up parser", "error", err)
		return 1
	}

	sink, err := storage.NewSink(cfg.Output.Format, cfg.Output.Dir, runDate)
	if err != nil {
		logger.Error("Failed to set up output", "error", err)
		return 1
	}

	runLog, err := storage.NewRunLog(cfg.Output.Dir, runDate, targets)
	if err != nil {
		logger.Error("Failed to create run log", "error", err)
		return 1
	}

	m := metrics.New()

	if cfg.Server.Addr != "" {
		server := startServer(cfg.Server.Addr, api.NewRouter(api.NewHandlers(runLog, logger), m.Registry, logger), logger)
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer shutdownCancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("Server shutdown failed", "error", err)
			}
		}()
	}

	job := scraper.NewRegionJob(launcher, p, selectors(cfg.Selectors), scraperOptions(cfg.Scraper), m, logger)
	manager := jobs.NewManager(job, sink, runLog, m, cfg.Scraper.Workers, logger)

	logger.Info("Starting scraping",
		"run_id", runLog.ID(),
		"regions", len(targets),
		"workers", cfg.Scraper.Workers,
		"engine", cfg.Browser.Engine,
		"dialect", cfg.Selectors.Dialect,
		"output", cfg.Output.Dir)

	results := manager.RunAll(ctx, targets)

	if err := runLog.Finish(); err != nil {
		logger.Warn("Failed to finalize run log", "error", err)
	}

	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
		}
	}
	logger.Info("Scraping completed",
		"run_id", runLog.ID(),
		"succeeded", len(results)-failed,
		"failed", failed,
		"run_log", runLog.Filename())

	if summary {
		printSummary(os.Stdout, results)
	}

	if strict && failed > 0 {
		return 1
	}
	return 0
}

func loadRegions(ctx context.Context, cfg config.ScraperConfig, client *resty.Client) ([]models.Region, error) {
	all := regions.Default()
	if cfg.RegionsFile != "" {
		loaded, err := regions.LoadSource(ctx, client, cfg.RegionsFile)
		if err != nil {
			return nil, err
		}
		all = loaded
	}
	return regions.Select(all, cfg.Regions)
}

func browserOptions(cfg config.BrowserConfig) *browser.Options {
	opts := browser.DefaultOptions()
	opts.Headless = cfg.Headless
	opts.Timeout = cfg.Timeout
	opts.SlowMo = cfg.SlowMo
	opts.UserAgent = cfg.UserAgent
	opts.ViewportWidth = cfg.ViewportWidth
	opts.ViewportHeight = cfg.ViewportHeight
	opts.Locale = cfg.Locale
	opts.TimezoneID = cfg.TimezoneID
	return opts
}

func selectors(cfg config.SelectorConfig) scraper.Selectors {
	return scraper.Selectors{
		Rows:        cfg.Rows,
		EAN:         cfg.EAN,
		Description: cfg.Description,
		Price:       cfg.Price,
		NextPage:    cfg.NextPage,
	}
}

func scraperOptions(cfg config.ScraperConfig) scraper.Options {
	return scraper.Options{
		NextPageTimeout:  cfg.NextPageTimeout,
		NextPageAttempts: cfg.NextPageAttempts,
		SettleMode:       cfg.SettleMode,
		SettleDelay:      cfg.SettleDelay,
		SettleTimeout:    cfg.SettleTimeout,
		SettlePoll:       cfg.SettlePoll,
		JobTimeout:       cfg.JobTimeout,
		MissingValue:     cfg.MissingValue,
	}
}

func startServer(addr string, handler http.Handler, logger *slog.Logger) *http.Server {
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Status server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Status server failed", "error", fmt.Errorf("listen on %s: %w", addr, err))
		}
	}()

	return server
}
