package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5, cfg.Scraper.Workers)
	assert.Equal(t, 10*time.Second, cfg.Scraper.NextPageTimeout)
	assert.Equal(t, SettleMutation, cfg.Scraper.SettleMode)
	assert.Equal(t, 500*time.Millisecond, cfg.Scraper.SettleDelay)
	assert.Equal(t, "", cfg.Scraper.MissingValue)
	assert.Equal(t, EnginePlaywright, cfg.Browser.Engine)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, DialectXPath, cfg.Selectors.Dialect)
	assert.Equal(t, "//table[@id='ponchoTable']/tbody/tr", cfg.Selectors.Rows)
	assert.Equal(t, "output", cfg.Output.Dir)
	assert.Equal(t, "csv", cfg.Output.Format)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SCRAPER_WORKERS", "12")
	t.Setenv("SCRAPER_NEXT_PAGE_TIMEOUT", "3s")
	t.Setenv("SCRAPER_MISSING_VALUE", "NOT_AVAILABLE")
	t.Setenv("SCRAPER_REGIONS", "AMBA, CAT,,")
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("SELECTOR_DIALECT", "css")
	t.Setenv("SELECTOR_PRICE", "td.price")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Scraper.Workers)
	assert.Equal(t, 3*time.Second, cfg.Scraper.NextPageTimeout)
	assert.Equal(t, "NOT_AVAILABLE", cfg.Scraper.MissingValue)
	assert.Equal(t, []string{"AMBA", "CAT"}, cfg.Scraper.Regions)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, DialectCSS, cfg.Selectors.Dialect)
	assert.Equal(t, "table#ponchoTable > tbody > tr", cfg.Selectors.Rows)
	assert.Equal(t, "td.price", cfg.Selectors.Price)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("SCRAPER_WORKERS", "many")
	t.Setenv("SCRAPER_SETTLE_DELAY", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Scraper.Workers)
	assert.Equal(t, 500*time.Millisecond, cfg.Scraper.SettleDelay)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"zero workers", func(c *Config) { c.Scraper.Workers = 0 }, "SCRAPER_WORKERS"},
		{"zero next page timeout", func(c *Config) { c.Scraper.NextPageTimeout = 0 }, "SCRAPER_NEXT_PAGE_TIMEOUT"},
		{"zero attempts", func(c *Config) { c.Scraper.NextPageAttempts = 0 }, "SCRAPER_NEXT_PAGE_ATTEMPTS"},
		{"unknown settle mode", func(c *Config) { c.Scraper.SettleMode = "sleep" }, "SCRAPER_SETTLE_MODE"},
		{"mutation without poll", func(c *Config) { c.Scraper.SettlePoll = 0 }, "SCRAPER_SETTLE_POLL"},
		{"negative delay", func(c *Config) {
			c.Scraper.SettleMode = SettleDelay
			c.Scraper.SettleDelay = -time.Second
		}, "SCRAPER_SETTLE_DELAY"},
		{"negative job timeout", func(c *Config) { c.Scraper.JobTimeout = -time.Second }, "SCRAPER_JOB_TIMEOUT"},
		{"unknown engine", func(c *Config) { c.Browser.Engine = "firefox" }, "BROWSER_ENGINE"},
		{"unknown dialect", func(c *Config) { c.Selectors.Dialect = "jsonpath" }, "SELECTOR_DIALECT"},
		{"missing rows selector", func(c *Config) { c.Selectors.Rows = "" }, "selectors are required"},
		{"empty output dir", func(c *Config) { c.Output.Dir = "" }, "OUTPUT_DIR"},
		{"unknown format", func(c *Config) { c.Output.Format = "xml" }, "OUTPUT_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestDefaultSelectorsCSSSkipsDisabledNext(t *testing.T) {
	sel := DefaultSelectors(DialectCSS)
	assert.Contains(t, sel.NextPage, ":not(.disabled)")

	sel = DefaultSelectors("anything else")
	assert.Equal(t, DialectXPath, sel.Dialect)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitList(" a ,b, "))
	assert.Nil(t, SplitList(" , "))
}
