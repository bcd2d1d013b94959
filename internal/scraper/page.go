package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maltedev/preciosjustos-scraper/internal/browser"
	"github.com/maltedev/preciosjustos-scraper/internal/models"
	"github.com/maltedev/preciosjustos-scraper/internal/parser"
)

// PageScraper reads product rows from the page a session currently shows
// and moves that session through the table's pagination.
type PageScraper struct {
	session   browser.Session
	parser    parser.Parser
	region    models.Region
	selectors Selectors
	opts      Options
	logger    *slog.Logger

	page        int
	next        browser.Control
	lastContent string
}

func NewPageScraper(session browser.Session, p parser.Parser, region models.Region, selectors Selectors, opts Options, logger *slog.Logger) *PageScraper {
	return &PageScraper{
		session:   session,
		parser:    p,
		region:    region,
		selectors: selectors,
		opts:      opts,
		logger:    logger.With("component", "page_scraper", "region", region.Code),
		page:      1,
	}
}

// ScrapeCurrentPage extracts one record per table row in document order. A
// page without matching rows gives an empty slice.
func (ps *PageScraper) ScrapeCurrentPage(ctx context.Context) ([]models.ProductRecord, error) {
	content, err := ps.session.Content(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read page %d: %w", ps.page, err)
	}
	ps.lastContent = content

	records := []models.ProductRecord{}
	if strings.TrimSpace(content) == "" {
		ps.logger.Warn("page has no content", "page", ps.page)
		return records, nil
	}

	doc, err := ps.parser.Parse(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page %d: %w", ps.page, err)
	}

	rows, err := doc.Query(ps.selectors.Rows)
	if err != nil {
		return nil, fmt.Errorf("failed to locate rows on page %d: %w", ps.page, err)
	}

	def := ps.opts.MissingValue
	for _, row := range rows {
		record := models.ProductRecord{
			EAN:         ExtractField(row, ps.selectors.EAN, def),
			Description: ExtractField(row, ps.selectors.Description, def),
			Price:       ExtractField(row, ps.selectors.Price, def),
			Region:      ps.region.Code,
		}
		records = append(records, record)

		ps.logger.Debug("product",
			"page", ps.page,
			"ean", record.EAN,
			"description", record.Description,
			"price", record.Price)
	}

	return records, nil
}

// HasNextPage looks for the next page control, waiting at most
// NextPageTimeout per attempt. Every failure to find it reads as "no next
// page", which is what ends a region.
func (ps *PageScraper) HasNextPage(ctx context.Context) bool {
	ps.next = nil

	attempts := max(ps.opts.NextPageAttempts, 1)
	for attempt := 1; attempt <= attempts; attempt++ {
		control, err := ps.session.FindNextPage(ctx, ps.selectors.NextPage, ps.opts.NextPageTimeout)
		if err == nil {
			ps.next = control
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		ps.logger.Debug("next page control not found", "page", ps.page, "attempt", attempt, "error", err)
	}

	ps.logger.Info("pagination finished, there is no next button", "page", ps.page)
	return false
}

// AdvanceToNextPage clicks the control found by the last HasNextPage call
// and waits for the table to settle.
func (ps *PageScraper) AdvanceToNextPage(ctx context.Context) error {
	if ps.next == nil {
		return ErrNoNextControl
	}
	control := ps.next
	ps.next = nil

	before := ps.lastContent
	if err := ps.session.Activate(ctx, control); err != nil {
		return err
	}
	ps.page++

	if ps.opts.SettleMode == SettleDelay {
		return sleep(ctx, ps.opts.SettleDelay)
	}
	return ps.waitForChange(ctx, before)
}

// waitForChange polls the page until its content differs from before. A
// table that does not change within SettleTimeout is scraped anyway.
func (ps *PageScraper) waitForChange(ctx context.Context, before string) error {
	deadline := time.NewTimer(ps.opts.SettleTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(ps.opts.SettlePoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			ps.logger.Warn("page content unchanged after next click", "page", ps.page, "waited", ps.opts.SettleTimeout)
			return nil
		case <-ticker.C:
			content, err := ps.session.Content(ctx)
			if err != nil {
				ps.logger.Debug("content poll failed", "error", err)
				continue
			}
			if content != before {
				return nil
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
