package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightLauncher starts one Chromium process per session so that
// regions never share browser state.
type PlaywrightLauncher struct {
	opts   *Options
	logger *slog.Logger
}

func NewPlaywrightLauncher(opts *Options) *PlaywrightLauncher {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &PlaywrightLauncher{
		opts:   opts,
		logger: opts.logger("playwright"),
	}
}

func (l *PlaywrightLauncher) Start(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	s := &PlaywrightSession{pw: pw, opts: l.opts, logger: l.logger}

	s.browser, err = pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(l.opts.Headless),
		SlowMo:   playwright.Float(float64(l.opts.SlowMo.Milliseconds())),
		Args: []string{
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	s.context, err = s.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:        playwright.String(l.opts.UserAgent),
		AcceptDownloads:  playwright.Bool(false),
		Locale:           playwright.String(l.opts.Locale),
		TimezoneId:       playwright.String(l.opts.TimezoneID),
		ExtraHttpHeaders: l.opts.ExtraHeaders,
		Viewport: &playwright.Size{
			Width:  l.opts.ViewportWidth,
			Height: l.opts.ViewportHeight,
		},
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	s.page, err = s.context.NewPage()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}
	s.page.SetDefaultTimeout(float64(l.opts.Timeout.Milliseconds()))

	return s, nil
}

type PlaywrightSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	opts    *Options
	logger  *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

func (s *PlaywrightSession) Navigate(ctx context.Context, url string) error {
	if s.page == nil {
		return ErrSessionClosed
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateLoad,
			Timeout:   timeoutMillis(s.opts.Timeout),
		})
		done <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to navigate to %s: %w", url, err)
		}
		return nil
	}
}

func (s *PlaywrightSession) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.page == nil {
		return "", ErrSessionClosed
	}
	content, err := s.page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to get page content: %w", err)
	}
	return content, nil
}

func (s *PlaywrightSession) FindNextPage(ctx context.Context, selector string, timeout time.Duration) (Control, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.page == nil {
		return nil, ErrSessionClosed
	}

	locator := s.page.Locator(selector).First()
	err := locator.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: timeoutMillis(timeout),
	})
	if err != nil {
		if errors.Is(err, playwright.ErrTimeout) {
			return nil, fmt.Errorf("%w: %s", ErrControlNotFound, selector)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrControlNotFound, selector, err)
	}

	return playwrightControl{control: control{selector: selector}, locator: locator}, nil
}

func (s *PlaywrightSession) Activate(ctx context.Context, c Control) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	pc, ok := c.(playwrightControl)
	if !ok {
		return fmt.Errorf("control %q was not located by this session", c.Selector())
	}

	if err := pc.locator.Click(); err != nil {
		return fmt.Errorf("failed to click %s: %w", c.Selector(), err)
	}
	return nil
}

func (s *PlaywrightSession) Close() error {
	s.closeOnce.Do(func() {
		var errs []error

		if s.page != nil {
			if err := s.page.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close page: %w", err))
			}
		}

		if s.context != nil {
			if err := s.context.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close context: %w", err))
			}
		}

		if s.browser != nil {
			if err := s.browser.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
			}
		}

		if s.pw != nil {
			if err := s.pw.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
			}
		}

		s.closeErr = errors.Join(errs...)
		if s.closeErr != nil {
			s.logger.Warn("errors during close", "error", s.closeErr)
		}
	})
	return s.closeErr
}

type playwrightControl struct {
	control
	locator playwright.Locator
}
