package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"

	"github.com/maltedev/preciosjustos-scraper/internal/models"
)

var CSVHeader = []string{"branch_region", "region_description", "created", "ean", "product_price", "product_catalog_name"}

// CSVSink writes <dir>/csv/{code}_products_{date}.csv, one row per record
// in scrape order.
type CSVSink struct {
	dir  string
	date string
}

func NewCSVSink(dir string, runDate time.Time) *CSVSink {
	return &CSVSink{dir: dir, date: runDate.Format(DateLayout)}
}

// Path is the file a region's records go to.
func (s *CSVSink) Path(region models.Region) string {
	return productsFile(s.dir, "csv", region, s.date, "csv")
}

func (s *CSVSink) Write(region models.Region, records []models.ProductRecord) ([]string, error) {
	path := s.Path(region)

	err := writeAtomic(path, func(f *os.File) error {
		writer := csv.NewWriter(f)
		if err := writer.Write(CSVHeader); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}

		for _, r := range records {
			row := []string{
				region.Code,
				region.Description,
				s.date,
				r.EAN,
				r.Price,
				r.Description,
			}
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("write csv record: %w", err)
			}
		}

		writer.Flush()
		if err := writer.Error(); err != nil {
			return fmt.Errorf("flush csv records: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, &OutputError{Region: region.Code, Path: path, Err: err}
	}

	return []string{path}, nil
}
