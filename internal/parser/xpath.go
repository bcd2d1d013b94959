package parser

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

const DialectXPath = "xpath"

// XPath parses documents into nodes queried with XPath expressions, the
// locator form used by the government site's table markup.
type XPath struct{}

func (XPath) Dialect() string { return DialectXPath }

func (XPath) Parse(content string) (Node, error) {
	doc, err := htmlquery.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return xpathNode{n: doc}, nil
}

type xpathNode struct {
	n *html.Node
}

func (x xpathNode) Query(path string) ([]Node, error) {
	found, err := htmlquery.QueryAll(x.n, path)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", path, err)
	}

	nodes := make([]Node, 0, len(found))
	for _, n := range found {
		nodes = append(nodes, xpathNode{n: n})
	}
	return nodes, nil
}

func (x xpathNode) Text() (string, bool) {
	return nodeText(x.n)
}
