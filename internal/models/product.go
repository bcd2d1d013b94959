package models

import (
	"fmt"
	"net/url"
	"strings"
)

// Region identifies one scrape target: a price table published for one
// geographic area.
type Region struct {
	Code        string `json:"code" yaml:"code"`
	Description string `json:"description" yaml:"description"`
	URL         string `json:"url" yaml:"url"`
}

// ProductRecord is one scraped table row.
type ProductRecord struct {
	EAN         string `json:"ean"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Region      string `json:"region"`
}

func (r Region) String() string {
	return r.Code
}

func (r Region) Validate() []string {
	var errors []string

	if strings.TrimSpace(r.Code) == "" {
		errors = append(errors, "code is required")
	}

	if r.URL == "" {
		errors = append(errors, "url is required")
	} else if u, err := url.Parse(r.URL); err != nil || u.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid url %q", r.URL))
	}

	return errors
}
