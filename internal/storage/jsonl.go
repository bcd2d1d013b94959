package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/maltedev/preciosjustos-scraper/internal/models"
)

// jsonProduct mirrors a CSV row.
type jsonProduct struct {
	BranchRegion       string `json:"branch_region"`
	RegionDescription  string `json:"region_description"`
	Created            string `json:"created"`
	EAN                string `json:"ean"`
	ProductPrice       string `json:"product_price"`
	ProductCatalogName string `json:"product_catalog_name"`
}

// JSONLSink writes newline-delimited JSON to
// <dir>/json/{code}_products_{date}.jsonl.
type JSONLSink struct {
	dir  string
	date string
}

func NewJSONLSink(dir string, runDate time.Time) *JSONLSink {
	return &JSONLSink{dir: dir, date: runDate.Format(DateLayout)}
}

func (s *JSONLSink) Path(region models.Region) string {
	return productsFile(s.dir, "json", region, s.date, "jsonl")
}

func (s *JSONLSink) Write(region models.Region, records []models.ProductRecord) ([]string, error) {
	path := s.Path(region)

	err := writeAtomic(path, func(f *os.File) error {
		buffer := bufio.NewWriter(f)
		encoder := json.NewEncoder(buffer)

		for _, r := range records {
			product := jsonProduct{
				BranchRegion:       region.Code,
				RegionDescription:  region.Description,
				Created:            s.date,
				EAN:                r.EAN,
				ProductPrice:       r.Price,
				ProductCatalogName: r.Description,
			}
			if err := encoder.Encode(product); err != nil {
				return fmt.Errorf("encode json record: %w", err)
			}
		}

		if err := buffer.Flush(); err != nil {
			return fmt.Errorf("flush json writer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, &OutputError{Region: region.Code, Path: path, Err: err}
	}

	return []string{path}, nil
}
