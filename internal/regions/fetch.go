package regions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/maltedev/preciosjustos-scraper/internal/models"
)

// NewClient returns the HTTP client used to fetch remote region tables.
func NewClient(timeout time.Duration) *resty.Client {
	return resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/yaml, text/yaml, text/plain, */*")
}

// Fetch downloads a region table in the embedded table's YAML layout.
func Fetch(ctx context.Context, client *resty.Client, url string) ([]models.Region, error) {
	resp, err := client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch regions: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("failed to fetch regions from %s: %s", url, resp.Status())
	}

	regions, err := Parse(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", url, err)
	}
	return regions, nil
}

// LoadSource reads a region table from a local path or an http(s) URL.
func LoadSource(ctx context.Context, client *resty.Client, source string) ([]models.Region, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return Fetch(ctx, client, source)
	}
	return Load(source)
}
