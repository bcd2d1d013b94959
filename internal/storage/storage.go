package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/maltedev/preciosjustos-scraper/internal/models"
)

const DateLayout = "2006-01-02"

const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatDual = "dual"
)

var ErrUnknownFormat = errors.New("unknown output format")

// Sink stores the records of one finished region and returns the files it
// wrote.
type Sink interface {
	Write(region models.Region, records []models.ProductRecord) ([]string, error)
}

// OutputError means a region's records could not be written. It fails that
// region only.
type OutputError struct {
	Region string
	Path   string
	Err    error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("output for %s to %s: %v", e.Region, e.Path, e.Err)
}

func (e *OutputError) Unwrap() error { return e.Err }

// NewSink builds the sink for an output format. All files carry the run
// date so a run that crosses midnight still writes one date.
func NewSink(format, dir string, runDate time.Time) (Sink, error) {
	switch strings.ToLower(format) {
	case FormatCSV:
		return NewCSVSink(dir, runDate), nil
	case FormatJSON:
		return NewJSONLSink(dir, runDate), nil
	case FormatDual:
		return MultiSink{NewCSVSink(dir, runDate), NewJSONLSink(dir, runDate)}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// MultiSink writes to every sink in order and stops at the first failure.
type MultiSink []Sink

func (m MultiSink) Write(region models.Region, records []models.ProductRecord) ([]string, error) {
	var files []string
	for _, sink := range m {
		written, err := sink.Write(region, records)
		files = append(files, written...)
		if err != nil {
			return files, err
		}
	}
	return files, nil
}

func productsFile(dir, kind string, region models.Region, date, ext string) string {
	return filepath.Join(dir, kind, fmt.Sprintf("%s_products_%s.%s", region.Code, date, ext))
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}

// writeAtomic writes through a temp file and renames it into place, so a
// failed write never leaves a truncated file behind.
func writeAtomic(filename string, write func(f *os.File) error) error {
	if err := ensureDir(filename); err != nil {
		return err
	}

	tmpFile := filename + ".tmp"
	f, err := os.Create(tmpFile)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmpFile, err)
	}

	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmpFile)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("close %s: %w", tmpFile, err)
	}

	return os.Rename(tmpFile, filename)
}
