package regions

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/maltedev/preciosjustos-scraper/internal/models"
	"gopkg.in/yaml.v3"
)

var (
	ErrNoRegions     = errors.New("no regions configured")
	ErrUnknownRegion = errors.New("unknown region code")
)

//go:embed regions.yaml
var defaultTable []byte

type file struct {
	Regions []models.Region `yaml:"regions"`
}

// Default returns the built-in region table.
func Default() []models.Region {
	regions, err := Parse(defaultTable)
	if err != nil {
		panic(fmt.Sprintf("embedded region table is invalid: %v", err))
	}
	return regions
}

// Load reads a region table from a YAML file with the same layout as the
// embedded one.
func Load(path string) ([]models.Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read regions file: %w", err)
	}

	regions, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return regions, nil
}

func Parse(data []byte) ([]models.Region, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse regions: %w", err)
	}

	if len(f.Regions) == 0 {
		return nil, ErrNoRegions
	}

	seen := make(map[string]struct{}, len(f.Regions))
	for i, r := range f.Regions {
		if problems := r.Validate(); len(problems) > 0 {
			return nil, fmt.Errorf("region %d (%s): %s", i, r.Code, strings.Join(problems, ", "))
		}
		if _, dup := seen[r.Code]; dup {
			return nil, fmt.Errorf("duplicate region code %q", r.Code)
		}
		seen[r.Code] = struct{}{}
	}

	return f.Regions, nil
}

// Select keeps the regions whose codes are listed, in table order. An empty
// code list selects everything. Codes match case-insensitively.
func Select(all []models.Region, codes []string) ([]models.Region, error) {
	if len(codes) == 0 {
		return all, nil
	}

	wanted := make(map[string]bool, len(codes))
	for _, code := range codes {
		wanted[strings.ToUpper(strings.TrimSpace(code))] = false
	}

	var selected []models.Region
	for _, r := range all {
		key := strings.ToUpper(r.Code)
		if _, ok := wanted[key]; ok {
			wanted[key] = true
			selected = append(selected, r)
		}
	}

	for code, found := range wanted {
		if !found {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRegion, code)
		}
	}

	return selected, nil
}
