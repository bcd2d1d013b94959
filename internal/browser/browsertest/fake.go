// Package browsertest provides a scripted browser for exercising the
// scraping loop without a real browser.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/maltedev/preciosjustos-scraper/internal/browser"
)

// Omit leaves a cell out of a row built by TablePage.
const Omit = "\x00omit"

// Script describes what a session shows after navigating to one URL.
type Script struct {
	// Pages is the content of each result page, in pagination order. A
	// next page control exists on every page but the last.
	Pages []string

	NavigateErr   error
	NavigateDelay time.Duration

	// ContentErr is returned when reading page ContentErrPage (1-based).
	ContentErr     error
	ContentErrPage int

	ActivateErr error

	// NextMisses is how many lookups on each page fail before the control
	// is found.
	NextMisses int
}

type Launcher struct {
	mu       sync.Mutex
	scripts  map[string]Script
	sessions []*Session

	StartErr error
}

func NewLauncher(scripts map[string]Script) *Launcher {
	return &Launcher{scripts: scripts}
}

func (l *Launcher) Start(ctx context.Context) (browser.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.StartErr != nil {
		return nil, l.StartErr
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	s := &Session{launcher: l}
	l.sessions = append(l.sessions, s)
	return s, nil
}

func (l *Launcher) Sessions() []*Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Session(nil), l.sessions...)
}

// Session is a scripted browser.Session.
type Session struct {
	launcher *Launcher

	mu        sync.Mutex
	script    Script
	url       string
	current   int
	misses    int
	finds     int
	activates int
	closed    bool
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	s.launcher.mu.Lock()
	script, ok := s.launcher.scripts[url]
	s.launcher.mu.Unlock()

	s.mu.Lock()
	s.url = url
	s.script = script
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("no script for %s", url)
	}

	if script.NavigateDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(script.NavigateDelay):
		}
	}
	return script.NavigateErr
}

func (s *Session) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", browser.ErrSessionClosed
	}
	if s.script.ContentErr != nil && s.current+1 == s.script.ContentErrPage {
		return "", s.script.ContentErr
	}
	if s.current >= len(s.script.Pages) {
		return "", nil
	}
	return s.script.Pages[s.current], nil
}

func (s *Session) FindNextPage(ctx context.Context, selector string, timeout time.Duration) (browser.Control, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.finds++
	if s.current >= len(s.script.Pages)-1 {
		return nil, fmt.Errorf("%w: %s", browser.ErrControlNotFound, selector)
	}
	if s.misses < s.script.NextMisses {
		s.misses++
		return nil, fmt.Errorf("%w: %s", browser.ErrControlNotFound, selector)
	}
	return control{selector: selector, page: s.current}, nil
}

func (s *Session) Activate(ctx context.Context, c browser.Control) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.activates++
	if s.script.ActivateErr != nil {
		return s.script.ActivateErr
	}

	ctl, ok := c.(control)
	if !ok || ctl.page != s.current {
		return errors.New("stale control")
	}
	s.current++
	s.misses = 0
	return nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// FindCalls counts FindNextPage calls.
func (s *Session) FindCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finds
}

// Activations counts Activate calls.
func (s *Session) Activations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activates
}

type control struct {
	selector string
	page     int
}

func (c control) Selector() string { return c.selector }

// TablePage renders a page holding the product table with one row per
// entry: EAN, description, price. Cells equal to Omit are left out.
func TablePage(rows ...[3]string) string {
	titles := [3]string{"EAN", "Descripción", "Precio"}

	var b strings.Builder
	b.WriteString(`<html><body><table id="ponchoTable"><thead><tr><th>EAN</th><th>Descripción</th><th>Precio</th></tr></thead><tbody>`)
	for _, row := range rows {
		b.WriteString("<tr>")
		for i, value := range row {
			if value == Omit {
				continue
			}
			fmt.Fprintf(&b, `<td data-title="%s"><p>%s</p></td>`, titles[i], value)
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table></body></html>")
	return b.String()
}
