package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	EnginePlaywright = "playwright"
	EngineChromedp   = "chromedp"

	DialectXPath = "xpath"
	DialectCSS   = "css"

	SettleMutation = "mutation"
	SettleDelay    = "delay"
)

type Config struct {
	Scraper   ScraperConfig
	Browser   BrowserConfig
	Selectors SelectorConfig
	Output    OutputConfig
	Server    ServerConfig
	Logging   LoggingConfig
}

type ScraperConfig struct {
	Workers          int
	NextPageTimeout  time.Duration
	NextPageAttempts int
	SettleMode       string
	SettleDelay      time.Duration
	SettleTimeout    time.Duration
	SettlePoll       time.Duration
	JobTimeout       time.Duration
	MissingValue     string
	RegionsFile      string
	Regions          []string
}

type BrowserConfig struct {
	Engine         string
	Headless       bool
	Timeout        time.Duration
	SlowMo         time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	Locale         string
	TimezoneID     string
}

// SelectorConfig holds the locators for the product table. Rows, EAN,
// Description and Price are evaluated against parsed page content;
// NextPage is evaluated by the browser engine against the live page.
type SelectorConfig struct {
	Dialect     string
	Rows        string
	EAN         string
	Description string
	Price       string
	NextPage    string
}

type OutputConfig struct {
	Dir    string
	Format string
}

type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	dialect := getEnvOrDefault("SELECTOR_DIALECT", DialectXPath)
	defaults := DefaultSelectors(dialect)

	cfg := &Config{
		Scraper: ScraperConfig{
			Workers:          getIntOrDefault("SCRAPER_WORKERS", 5),
			NextPageTimeout:  getDurationOrDefault("SCRAPER_NEXT_PAGE_TIMEOUT", 10*time.Second),
			NextPageAttempts: getIntOrDefault("SCRAPER_NEXT_PAGE_ATTEMPTS", 2),
			SettleMode:       getEnvOrDefault("SCRAPER_SETTLE_MODE", SettleMutation),
			SettleDelay:      getDurationOrDefault("SCRAPER_SETTLE_DELAY", 500*time.Millisecond),
			SettleTimeout:    getDurationOrDefault("SCRAPER_SETTLE_TIMEOUT", 10*time.Second),
			SettlePoll:       getDurationOrDefault("SCRAPER_SETTLE_POLL", 100*time.Millisecond),
			JobTimeout:       getDurationOrDefault("SCRAPER_JOB_TIMEOUT", 0),
			MissingValue:     os.Getenv("SCRAPER_MISSING_VALUE"),
			RegionsFile:      getEnvOrDefault("SCRAPER_REGIONS_FILE", ""),
			Regions:          getStringSliceOrDefault("SCRAPER_REGIONS", nil),
		},
		Browser: BrowserConfig{
			Engine:         getEnvOrDefault("BROWSER_ENGINE", EnginePlaywright),
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			SlowMo:         getDurationOrDefault("BROWSER_SLOW_MO", 50*time.Millisecond),
			UserAgent:      getEnvOrDefault("BROWSER_USER_AGENT", defaultUserAgent),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "es-AR"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "America/Argentina/Buenos_Aires"),
		},
		Selectors: SelectorConfig{
			Dialect:     dialect,
			Rows:        getEnvOrDefault("SELECTOR_ROWS", defaults.Rows),
			EAN:         getEnvOrDefault("SELECTOR_EAN", defaults.EAN),
			Description: getEnvOrDefault("SELECTOR_DESCRIPTION", defaults.Description),
			Price:       getEnvOrDefault("SELECTOR_PRICE", defaults.Price),
			NextPage:    getEnvOrDefault("SELECTOR_NEXT_PAGE", defaults.NextPage),
		},
		Output: OutputConfig{
			Dir:    getEnvOrDefault("OUTPUT_DIR", "output"),
			Format: getEnvOrDefault("OUTPUT_FORMAT", "csv"),
		},
		Server: ServerConfig{
			Addr:            getEnvOrDefault("SERVER_ADDR", ""),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "text"),
		},
	}

	return cfg, nil
}

// DefaultSelectors returns the locators of the price table for a dialect.
// The CSS next-page selector excludes the disabled button DataTables keeps
// on the last page; the XPath form gets that for free by matching the
// class attribute exactly.
func DefaultSelectors(dialect string) SelectorConfig {
	if dialect == DialectCSS {
		return SelectorConfig{
			Dialect:     DialectCSS,
			Rows:        "table#ponchoTable > tbody > tr",
			EAN:         "td[data-title='EAN'] > p",
			Description: "td[data-title='Descripción'] > p",
			Price:       "td[data-title='Precio'] > p",
			NextPage:    "li.paginate_button.next:not(.disabled) > a",
		}
	}

	return SelectorConfig{
		Dialect:     DialectXPath,
		Rows:        "//table[@id='ponchoTable']/tbody/tr",
		EAN:         "./td[@data-title='EAN']/p",
		Description: "./td[@data-title='Descripción']/p",
		Price:       "./td[@data-title='Precio']/p",
		NextPage:    "//li[@class='paginate_button next']/a",
	}
}

func (c *Config) Validate() error {
	if c.Scraper.Workers < 1 {
		return fmt.Errorf("SCRAPER_WORKERS must be at least 1")
	}

	if c.Scraper.NextPageTimeout <= 0 {
		return fmt.Errorf("SCRAPER_NEXT_PAGE_TIMEOUT must be positive")
	}

	if c.Scraper.NextPageAttempts < 1 {
		return fmt.Errorf("SCRAPER_NEXT_PAGE_ATTEMPTS must be at least 1")
	}

	switch c.Scraper.SettleMode {
	case SettleMutation:
		if c.Scraper.SettleTimeout <= 0 || c.Scraper.SettlePoll <= 0 {
			return fmt.Errorf("SCRAPER_SETTLE_TIMEOUT and SCRAPER_SETTLE_POLL must be positive in mutation mode")
		}
	case SettleDelay:
		if c.Scraper.SettleDelay < 0 {
			return fmt.Errorf("SCRAPER_SETTLE_DELAY cannot be negative")
		}
	default:
		return fmt.Errorf("SCRAPER_SETTLE_MODE must be %q or %q", SettleMutation, SettleDelay)
	}

	if c.Scraper.JobTimeout < 0 {
		return fmt.Errorf("SCRAPER_JOB_TIMEOUT cannot be negative")
	}

	if c.Browser.Engine != EnginePlaywright && c.Browser.Engine != EngineChromedp {
		return fmt.Errorf("BROWSER_ENGINE must be %q or %q", EnginePlaywright, EngineChromedp)
	}

	if c.Browser.Timeout <= 0 {
		return fmt.Errorf("BROWSER_TIMEOUT must be positive")
	}

	if c.Selectors.Dialect != DialectXPath && c.Selectors.Dialect != DialectCSS {
		return fmt.Errorf("SELECTOR_DIALECT must be %q or %q", DialectXPath, DialectCSS)
	}

	if c.Selectors.Rows == "" || c.Selectors.NextPage == "" {
		return fmt.Errorf("row and next page selectors are required")
	}

	if c.Output.Dir == "" {
		return fmt.Errorf("OUTPUT_DIR cannot be empty")
	}

	switch c.Output.Format {
	case "csv", "json", "dual":
	default:
		return fmt.Errorf("OUTPUT_FORMAT must be csv, json, or dual")
	}

	return nil
}

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return SplitList(value)
	}
	return defaultValue
}

// SplitList splits a comma separated value, dropping blanks.
func SplitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
