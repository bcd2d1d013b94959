package browser

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var (
	// ErrControlNotFound is returned by FindNextPage when no matching
	// control appeared within the wait.
	ErrControlNotFound = errors.New("control not found")
	ErrSessionClosed   = errors.New("session closed")
)

// Session is one browser page owned by a single region job.
type Session interface {
	Navigate(ctx context.Context, url string) error
	Content(ctx context.Context) (string, error)
	FindNextPage(ctx context.Context, selector string, timeout time.Duration) (Control, error)
	Activate(ctx context.Context, control Control) error
	// Close releases the page, browser and driver process. It must be
	// safe to call after a failed Navigate.
	Close() error
}

// Launcher starts isolated sessions.
type Launcher interface {
	Start(ctx context.Context) (Session, error)
}

// Control is a handle to an element located in a live page.
type Control interface {
	Selector() string
}

type Options struct {
	Headless       bool
	Timeout        time.Duration
	SlowMo         time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	Locale         string
	TimezoneID     string
	ExtraHeaders   map[string]string

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		SlowMo:         50 * time.Millisecond,
		UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		Locale:         "es-AR",
		TimezoneID:     "America/Argentina/Buenos_Aires",
		ExtraHeaders: map[string]string{
			"Accept-Language": "es-AR,es;q=0.9,en;q=0.8",
		},
	}
}

// NewLauncher returns the launcher for an engine name.
func NewLauncher(engine string, opts *Options) (Launcher, error) {
	switch engine {
	case "playwright", "":
		return NewPlaywrightLauncher(opts), nil
	case "chromedp":
		return NewChromedpLauncher(opts), nil
	default:
		return nil, errors.New("unknown browser engine: " + engine)
	}
}

func (o *Options) logger(engine string) *slog.Logger {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", "browser", "engine", engine)
}

type control struct {
	selector string
}

func (c control) Selector() string { return c.selector }

func timeoutMillis(d time.Duration) *float64 {
	ms := float64(d.Milliseconds())
	return &ms
}
