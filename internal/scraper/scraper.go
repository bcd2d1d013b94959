package scraper

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoNextControl = errors.New("no next page control located")
)

// SessionError means a browser session could not be started for a region.
type SessionError struct {
	Region string
	Err    error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session for %s: %v", e.Region, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// NavigationError means the region page could not be loaded.
type NavigationError struct {
	Region string
	URL    string
	Err    error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation for %s to %s: %v", e.Region, e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// Selectors locate the product table. Rows is evaluated against the page
// document, the field locators against each row, and NextPage by the
// browser against the live page.
type Selectors struct {
	Rows        string
	EAN         string
	Description string
	Price       string
	NextPage    string
}

const (
	SettleMutation = "mutation"
	SettleDelay    = "delay"
)

type Options struct {
	NextPageTimeout  time.Duration
	NextPageAttempts int

	// SettleMode picks how AdvanceToNextPage waits for the table to
	// redraw: poll content until it changes, or sleep SettleDelay.
	SettleMode    string
	SettleDelay   time.Duration
	SettleTimeout time.Duration
	SettlePoll    time.Duration

	// JobTimeout bounds a whole region job. Zero disables it.
	JobTimeout time.Duration

	MissingValue string
}

func DefaultOptions() Options {
	return Options{
		NextPageTimeout:  10 * time.Second,
		NextPageAttempts: 2,
		SettleMode:       SettleMutation,
		SettleDelay:      500 * time.Millisecond,
		SettleTimeout:    10 * time.Second,
		SettlePoll:       100 * time.Millisecond,
	}
}
