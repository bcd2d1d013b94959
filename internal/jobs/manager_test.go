package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/preciosjustos-scraper/internal/browser/browsertest"
	"github.com/maltedev/preciosjustos-scraper/internal/metrics"
	"github.com/maltedev/preciosjustos-scraper/internal/models"
	"github.com/maltedev/preciosjustos-scraper/internal/parser"
	"github.com/maltedev/preciosjustos-scraper/internal/scraper"
	"github.com/maltedev/preciosjustos-scraper/internal/storage"
)

var (
	runDate   = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	selectors = scraper.Selectors{
		Rows:        "//table[@id='ponchoTable']/tbody/tr",
		EAN:         "./td[@data-title='EAN']/p",
		Description: "./td[@data-title='Descripción']/p",
		Price:       "./td[@data-title='Precio']/p",
		NextPage:    "//li[@class='paginate_button next']/a",
	}
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRegions() []models.Region {
	return []models.Region{
		{Code: "AMBA", Description: "Area Metropolitana", URL: "https://example.test/amba"},
		{Code: "CAT", Description: "Catamarca", URL: "https://example.test/cat"},
		{Code: "SAL", Description: "Salta", URL: "https://example.test/sal"},
	}
}

func newRegionJob(launcher *browsertest.Launcher, m *metrics.Metrics) *scraper.RegionJob {
	opts := scraper.DefaultOptions()
	opts.NextPageTimeout = time.Millisecond
	opts.SettlePoll = time.Millisecond
	opts.SettleTimeout = 100 * time.Millisecond
	return scraper.NewRegionJob(launcher, parser.XPath{}, selectors, opts, m, testLogger())
}

func TestRunAllIsolatesFailingRegion(t *testing.T) {
	dir := t.TempDir()
	regions := testRegions()

	launcher := browsertest.NewLauncher(map[string]browsertest.Script{
		"https://example.test/amba": {
			Pages: []string{
				browsertest.TablePage([3]string{"1", "Arroz", "$500"}, [3]string{"2", "Azucar", "$450"}),
				browsertest.TablePage([3]string{"3", "Leche", "$700"}),
			},
		},
		"https://example.test/cat": {NavigateErr: errors.New("net::ERR_CONNECTION_RESET")},
		"https://example.test/sal": {
			Pages: []string{browsertest.TablePage([3]string{"4", "Yerba", "$900"})},
		},
	})

	m := metrics.New()
	runLog, err := storage.NewRunLog(dir, runDate, regions)
	require.NoError(t, err)

	manager := NewManager(newRegionJob(launcher, m), storage.NewCSVSink(dir, runDate), runLog, m, 2, testLogger())
	results := manager.RunAll(context.Background(), regions)
	require.Len(t, results, 3)

	byCode := map[string]Result{}
	for _, r := range results {
		byCode[r.Region.Code] = r
	}

	require.True(t, byCode["CAT"].Failed())
	assert.Equal(t, "navigation", ErrorType(byCode["CAT"].Err))
	_, err = os.Stat(filepath.Join(dir, "csv", "CAT_products_2026-10-19.csv"))
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, byCode["AMBA"].Err)
	assert.Equal(t, 3, byCode["AMBA"].Records)
	assert.Equal(t, 2, byCode["AMBA"].Pages)
	assert.FileExists(t, filepath.Join(dir, "csv", "AMBA_products_2026-10-19.csv"))

	require.NoError(t, byCode["SAL"].Err)
	assert.Equal(t, []string{filepath.Join(dir, "csv", "SAL_products_2026-10-19.csv")}, byCode["SAL"].Files)

	for _, s := range launcher.Sessions() {
		assert.True(t, s.Closed(), "session for %s left open", s.URL())
	}

	stats := runLog.GetStats()
	assert.Equal(t, 2, stats[storage.StatusCompleted])
	assert.Equal(t, 1, stats[storage.StatusFailed])

	cat, _ := runLog.Get("CAT")
	assert.Contains(t, cat.Error, "ERR_CONNECTION_RESET")
}

// stubScraper returns canned scrapes and tracks how many run at once.
type stubScraper struct {
	delay   time.Duration
	fail    map[string]error
	panics  map[string]bool
	running atomic.Int32
	peak    atomic.Int32
}

func (s *stubScraper) Scrape(ctx context.Context, region models.Region) (*scraper.Scrape, error) {
	n := s.running.Add(1)
	defer s.running.Add(-1)
	for {
		peak := s.peak.Load()
		if n <= peak || s.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	if s.panics[region.Code] {
		panic("selector table corrupted")
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.delay):
	}

	if err := s.fail[region.Code]; err != nil {
		return nil, err
	}
	return &scraper.Scrape{
		Region:  region,
		Records: []models.ProductRecord{{EAN: "1", Region: region.Code}},
		Pages:   1,
	}, nil
}

func manyRegions(n int) []models.Region {
	regions := make([]models.Region, 0, n)
	for i := 0; i < n; i++ {
		regions = append(regions, models.Region{
			Code:        fmt.Sprintf("R%02d", i),
			Description: fmt.Sprintf("Region %d", i),
			URL:         fmt.Sprintf("https://example.test/r%02d", i),
		})
	}
	return regions
}

func TestRunAllLabelsNavigationTimeout(t *testing.T) {
	regions := testRegions()[1:2]
	launcher := browsertest.NewLauncher(map[string]browsertest.Script{
		"https://example.test/cat": {NavigateDelay: time.Minute},
	})

	opts := scraper.DefaultOptions()
	opts.JobTimeout = 20 * time.Millisecond
	job := scraper.NewRegionJob(launcher, parser.XPath{}, selectors, opts, nil, testLogger())

	manager := NewManager(job, storage.NewCSVSink(t.TempDir(), runDate), nil, nil, 1, testLogger())
	results := manager.RunAll(context.Background(), regions)
	require.Len(t, results, 1)

	require.True(t, results[0].Failed())
	var navErr *scraper.NavigationError
	assert.ErrorAs(t, results[0].Err, &navErr)
	assert.Equal(t, "timeout", ErrorType(results[0].Err))
}

func TestRunAllBoundsConcurrency(t *testing.T) {
	stub := &stubScraper{delay: 20 * time.Millisecond}
	manager := NewManager(stub, storage.NewCSVSink(t.TempDir(), runDate), nil, nil, 3, testLogger())

	results := manager.RunAll(context.Background(), manyRegions(10))

	require.Len(t, results, 10)
	for _, r := range results {
		assert.NoError(t, r.Err)
	}
	assert.LessOrEqual(t, stub.peak.Load(), int32(3))
	assert.Greater(t, stub.peak.Load(), int32(1))
}

func TestRunAllRecoversPanics(t *testing.T) {
	stub := &stubScraper{panics: map[string]bool{"R01": true}}
	m := metrics.New()
	manager := NewManager(stub, storage.NewCSVSink(t.TempDir(), runDate), nil, m, 2, testLogger())

	results := manager.RunAll(context.Background(), manyRegions(3))
	require.Len(t, results, 3)

	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
			assert.Equal(t, "R01", r.Region.Code)
			assert.Equal(t, "panic", ErrorType(r.Err))
		}
	}
	assert.Equal(t, 1, failed)
}

type failingSink struct {
	mu      sync.Mutex
	written []string
	failFor string
}

func (s *failingSink) Write(region models.Region, records []models.ProductRecord) ([]string, error) {
	if region.Code == s.failFor {
		return nil, &storage.OutputError{Region: region.Code, Path: "/readonly", Err: os.ErrPermission}
	}
	s.mu.Lock()
	s.written = append(s.written, region.Code)
	s.mu.Unlock()
	return []string{region.Code + ".csv"}, nil
}

func TestRunAllOutputFailureFailsOnlyThatRegion(t *testing.T) {
	sink := &failingSink{failFor: "R00"}
	manager := NewManager(&stubScraper{}, sink, nil, nil, 2, testLogger())

	results := manager.RunAll(context.Background(), manyRegions(3))
	require.Len(t, results, 3)

	for _, r := range results {
		if r.Region.Code == "R00" {
			assert.Equal(t, "output", ErrorType(r.Err))
			assert.ErrorIs(t, r.Err, os.ErrPermission)
			continue
		}
		assert.NoError(t, r.Err)
	}
	assert.ElementsMatch(t, []string{"R01", "R02"}, sink.written)
}

func TestRunAllCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runLog, err := storage.NewRunLog("", runDate, manyRegions(4))
	require.NoError(t, err)
	manager := NewManager(&stubScraper{delay: time.Second}, storage.NewCSVSink(t.TempDir(), runDate), runLog, nil, 2, testLogger())

	results := manager.RunAll(ctx, manyRegions(4))
	require.Len(t, results, 4)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
	assert.Equal(t, 4, runLog.GetStats()[storage.StatusFailed])
}

func TestRunAllNoRegions(t *testing.T) {
	manager := NewManager(&stubScraper{}, storage.NewCSVSink(t.TempDir(), runDate), nil, nil, 5, testLogger())
	assert.Empty(t, manager.RunAll(context.Background(), nil))
}

func TestErrorType(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "none"},
		{&scraper.SessionError{Region: "CAT", Err: errors.New("no chromium")}, "session"},
		{fmt.Errorf("wrapped: %w", &scraper.NavigationError{Region: "CAT", Err: errors.New("net::ERR_NAME_NOT_RESOLVED")}), "navigation"},
		{&scraper.NavigationError{Region: "CAT", Err: context.DeadlineExceeded}, "timeout"},
		{&scraper.SessionError{Region: "CAT", Err: context.Canceled}, "canceled"},
		{&storage.OutputError{Region: "CAT", Err: os.ErrPermission}, "output"},
		{&PanicError{Value: "boom"}, "panic"},
		{fmt.Errorf("region CAT stopped on page 3: %w", context.DeadlineExceeded), "timeout"},
		{context.Canceled, "canceled"},
		{errors.New("parse failed"), "other"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorType(tt.err))
		})
	}
}
