package scraper

import (
	"strings"

	"github.com/maltedev/preciosjustos-scraper/internal/parser"
)

// ExtractField resolves locator against row and returns the trimmed text of
// the first match. No match, a lookup error, or a match without any text
// yields def. Text that trims to "" is returned as "".
func ExtractField(row parser.Node, locator, def string) (value string) {
	defer func() {
		if recover() != nil {
			value = def
		}
	}()

	nodes, err := row.Query(locator)
	if err != nil || len(nodes) == 0 {
		return def
	}

	text, ok := nodes[0].Text()
	if !ok {
		return def
	}

	return strings.TrimSpace(text)
}
