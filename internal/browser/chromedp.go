package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// ChromedpLauncher drives Chrome over the DevTools protocol directly. Each
// session gets its own allocator, so its own browser process.
type ChromedpLauncher struct {
	opts   *Options
	logger *slog.Logger
}

func NewChromedpLauncher(opts *Options) *ChromedpLauncher {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &ChromedpLauncher{
		opts:   opts,
		logger: opts.logger("chromedp"),
	}
}

func (l *ChromedpLauncher) Start(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", l.opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(l.opts.UserAgent),
		chromedp.WindowSize(l.opts.ViewportWidth, l.opts.ViewportHeight),
	)

	// The browser lives as long as the session, not as long as the caller's
	// context; Close tears it down.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		l.logger.Debug(fmt.Sprintf(format, args...))
	}))

	s := &ChromedpSession{
		tab:         tabCtx,
		tabCancel:   tabCancel,
		allocCancel: allocCancel,
		opts:        l.opts,
		logger:      l.logger,
	}

	headers := network.Headers{}
	for k, v := range l.opts.ExtraHeaders {
		headers[k] = v
	}

	// The first Run allocates the browser and ties it to the context it
	// receives, so it must be the tab context itself and not a timeout child.
	if err := chromedp.Run(tabCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	if err := s.run(ctx, l.opts.Timeout, network.Enable(), network.SetExtraHTTPHeaders(headers)); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to configure browser: %w", err)
	}

	return s, nil
}

type ChromedpSession struct {
	tab         context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
	opts        *Options
	logger      *slog.Logger

	closeOnce sync.Once
}

// run executes actions on the tab, bounded by timeout and by the caller's
// context.
func (s *ChromedpSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.tab, timeout)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *ChromedpSession) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, s.opts.Timeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (s *ChromedpSession) Content(ctx context.Context) (string, error) {
	var content string
	if err := s.run(ctx, s.opts.Timeout, chromedp.OuterHTML("html", &content, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to get page content: %w", err)
	}
	return content, nil
}

// FindNextPage accepts XPath or CSS selectors; chromedp's BySearch hands
// both to DOM.performSearch.
func (s *ChromedpSession) FindNextPage(ctx context.Context, selector string, timeout time.Duration) (Control, error) {
	var nodes []*cdp.Node
	err := s.run(ctx, timeout, chromedp.Nodes(selector, &nodes, chromedp.BySearch, chromedp.NodeVisible))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrControlNotFound, selector)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrControlNotFound, selector, err)
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrControlNotFound, selector)
	}

	return chromedpControl{control: control{selector: selector}, node: nodes[0]}, nil
}

func (s *ChromedpSession) Activate(ctx context.Context, c Control) error {
	cc, ok := c.(chromedpControl)
	if !ok {
		return fmt.Errorf("control %q was not located by this session", c.Selector())
	}

	if err := s.run(ctx, s.opts.Timeout, chromedp.MouseClickNode(cc.node)); err != nil {
		return fmt.Errorf("failed to click %s: %w", c.Selector(), err)
	}
	return nil
}

func (s *ChromedpSession) Close() error {
	s.closeOnce.Do(func() {
		if s.tabCancel != nil {
			s.tabCancel()
		}
		if s.allocCancel != nil {
			s.allocCancel()
		}
	})
	return nil
}

type chromedpControl struct {
	control
	node *cdp.Node
}
